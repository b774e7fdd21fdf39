package agent

import "time"

// nowMillis is the agent package's time source, a package var so tests
// can stub it.
var nowMillis = func() int64 { return time.Now().UnixMilli() }
