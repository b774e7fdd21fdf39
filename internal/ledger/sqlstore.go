package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/orc-run/orc/internal/message"
)

// SQLStore is a durable Store backed by MySQL, an alternative to
// FileStore for deployments that already run a MySQL instance for other
// state. Both backends implement the identical Store interface so
// orchestrator code never branches on which one is in play.
type SQLStore struct {
	db *sql.DB
}

// OpenSQLStore opens dsn and ensures the ledger table exists.
func OpenSQLStore(ctx context.Context, dsn string) (*SQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("ledger: open mysql: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ledger: ping mysql: %w", err)
	}

	const schema = `
CREATE TABLE IF NOT EXISTS ledger_messages (
	seq            BIGINT AUTO_INCREMENT PRIMARY KEY,
	cluster_id     VARCHAR(255) NOT NULL,
	local_id       BIGINT NOT NULL,
	topic          VARCHAR(255) NOT NULL,
	sender         VARCHAR(255) NOT NULL,
	receiver       VARCHAR(255) NOT NULL,
	timestamp_ms   BIGINT NOT NULL,
	sender_model   VARCHAR(255),
	sender_provider VARCHAR(255),
	input_tokens   BIGINT NOT NULL DEFAULT 0,
	output_tokens  BIGINT NOT NULL DEFAULT 0,
	cost_usd       DOUBLE NOT NULL DEFAULT 0,
	content_json   MEDIUMTEXT NOT NULL,
	INDEX idx_cluster_ts (cluster_id, timestamp_ms)
)`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("ledger: create schema: %w", err)
	}

	return &SQLStore{db: db}, nil
}

func (s *SQLStore) Close() error { return s.db.Close() }

func (s *SQLStore) Append(ctx context.Context, msg message.Message) (message.Message, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return message.Message{}, fmt.Errorf("ledger: begin tx: %w", err)
	}
	defer tx.Rollback()

	var nextID int64
	row := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(local_id), 0) + 1 FROM ledger_messages WHERE cluster_id = ? FOR UPDATE`, msg.ClusterID)
	if err := row.Scan(&nextID); err != nil {
		return message.Message{}, fmt.Errorf("ledger: compute next id: %w", err)
	}

	var lastTS int64
	row = tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(timestamp_ms), 0) FROM ledger_messages WHERE cluster_id = ?`, msg.ClusterID)
	if err := row.Scan(&lastTS); err != nil {
		return message.Message{}, fmt.Errorf("ledger: compute last timestamp: %w", err)
	}

	msg.ID = nextID
	msg.Timestamp = time.Now().UnixMilli()
	if msg.Timestamp < lastTS {
		msg.Timestamp = lastTS
	}

	contentJSON, err := json.Marshal(msg.Content)
	if err != nil {
		return message.Message{}, fmt.Errorf("ledger: marshal content: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
INSERT INTO ledger_messages
	(cluster_id, local_id, topic, sender, receiver, timestamp_ms, sender_model, sender_provider, input_tokens, output_tokens, cost_usd, content_json)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ClusterID, msg.ID, msg.Topic, msg.Sender, msg.Receiver, msg.Timestamp,
		msg.SenderModel, msg.SenderProvider, msg.InputTokens, msg.OutputTokens, msg.CostUSD, contentJSON)
	if err != nil {
		return message.Message{}, fmt.Errorf("ledger: insert: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return message.Message{}, fmt.Errorf("ledger: commit: %w", err)
	}
	return msg, nil
}

func (s *SQLStore) queryRows(ctx context.Context, f Filter) ([]message.Message, error) {
	query := `SELECT local_id, timestamp_ms, cluster_id, topic, sender, receiver, sender_model, sender_provider, input_tokens, output_tokens, cost_usd, content_json FROM ledger_messages WHERE cluster_id = ?`
	args := []any{f.ClusterID}
	if f.Topic != "" {
		query += ` AND topic = ?`
		args = append(args, f.Topic)
	}
	if f.Sender != "" {
		query += ` AND sender = ?`
		args = append(args, f.Sender)
	}
	if f.Since != 0 {
		query += ` AND timestamp_ms >= ?`
		args = append(args, f.Since)
	}
	if f.Until != 0 {
		query += ` AND timestamp_ms <= ?`
		args = append(args, f.Until)
	}
	query += ` ORDER BY timestamp_ms ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ledger: query: %w", err)
	}
	defer rows.Close()

	var out []message.Message
	for rows.Next() {
		var m message.Message
		var contentJSON string
		if err := rows.Scan(&m.ID, &m.Timestamp, &m.ClusterID, &m.Topic, &m.Sender, &m.Receiver,
			&m.SenderModel, &m.SenderProvider, &m.InputTokens, &m.OutputTokens, &m.CostUSD, &contentJSON); err != nil {
			return nil, fmt.Errorf("ledger: scan: %w", err)
		}
		if err := json.Unmarshal([]byte(contentJSON), &m.Content); err != nil {
			return nil, fmt.Errorf("ledger: unmarshal content: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *SQLStore) Query(ctx context.Context, f Filter) ([]message.Message, error) {
	out, err := s.queryRows(ctx, f)
	if err != nil {
		return nil, err
	}
	return newestFirst(f.Limit, out), nil
}

func (s *SQLStore) FindLast(ctx context.Context, f Filter) (message.Message, error) {
	out, err := s.queryRows(ctx, f)
	if err != nil {
		return message.Message{}, err
	}
	if len(out) == 0 {
		return message.Message{}, ErrNotFound
	}
	return out[len(out)-1], nil
}

func (s *SQLStore) Count(ctx context.Context, f Filter) (int, error) {
	out, err := s.queryRows(ctx, f)
	if err != nil {
		return 0, err
	}
	return len(out), nil
}

func (s *SQLStore) TokenUsage(ctx context.Context, clusterID string, roleOf func(string) string) (TokenUsage, error) {
	rows, err := s.queryRows(ctx, Filter{ClusterID: clusterID})
	if err != nil {
		return TokenUsage{}, err
	}
	usage := TokenUsage{ByRole: make(map[string]RoleUsage)}
	for _, m := range rows {
		role := "system"
		if roleOf != nil {
			if r := roleOf(m.Sender); r != "" {
				role = r
			}
		}
		accumulate(usage.ByRole, role, m)
		usage.Total.InputTokens += m.InputTokens
		usage.Total.OutputTokens += m.OutputTokens
		usage.Total.CostUSD += m.CostUSD
	}
	return usage, nil
}
