package types

import (
	"sync"
	"sync/atomic"
	"time"
)

// Defaults applied when configuration leaves value unset
const (
	DefaultDomain            = 0
	DefaultAnnounceInterval  = time.Second
	DefaultLeaseDuration     = 10 * time.Second
	DefaultLeaseCheck        = time.Second
	DefaultHeartbeatInterval = 200 * time.Millisecond
	DefaultReplayDepth       = 1024
	DefaultReplayMaxAge      = 30 * time.Second
	DefaultTombstones        = 4096
	DefaultPendingEndpoints  = 1024
	DefaultHTTPPort          = "8080"
)

// Once is an object that will perform exactly one action
// and reports whether it already happened
type Once struct {
	done uint32
	m    sync.Mutex
}

// Do calls the function f if and only if Do is being called for the
// first time for this instance of Once.
// Returns true when f was executed by this call
func (o *Once) Do(f func()) bool {
	if atomic.LoadUint32(&o.done) == 1 {
		return false
	}

	o.m.Lock()
	defer o.m.Unlock()

	if o.done == 0 {
		defer atomic.StoreUint32(&o.done, 1)
		f()
		return true
	}

	return false
}

// Done reports whether Do already executed
func (o *Once) Done() bool {
	return atomic.LoadUint32(&o.done) == 1
}
