package manager

import (
	"sync/atomic"
	"time"

	"github.com/loykin/procmgr/internal/process"
)

const noPID = -1

// runtime is the transient state of one managed process. Every field is an
// independent atomic so readers never block lifecycle operations; a snapshot
// spanning several fields is only approximately consistent.
type runtime struct {
	running   atomic.Bool
	starting  atomic.Bool // claimed while a start is in flight
	deleting  atomic.Bool // set while a delete owns the runtime
	pid       atomic.Int32
	startedAt atomic.Int64 // Unix seconds, 0 when absent
	restarts  atomic.Uint32
	lastExit  atomic.Int32
}

func newRuntime() *runtime {
	r := &runtime{}
	r.pid.Store(noPID)
	return r
}

// claim reserves the runtime for one start. It fails when another start is in
// flight, the process already runs or a delete owns the runtime.
func (r *runtime) claim() bool {
	if !r.starting.CompareAndSwap(false, true) {
		return false
	}
	if r.running.Load() || r.deleting.Load() {
		r.starting.Store(false)
		return false
	}
	return true
}

func (r *runtime) release() { r.starting.Store(false) }

// retire rejects new starts and waits for an in-flight start to finish, then
// holds the start claim until abandon or for good. It fails when another
// delete already owns the runtime.
func (r *runtime) retire() bool {
	if !r.deleting.CompareAndSwap(false, true) {
		return false
	}
	for !r.starting.CompareAndSwap(false, true) {
		time.Sleep(time.Millisecond)
	}
	return true
}

// abandon undoes retire after a delete that did not go through.
func (r *runtime) abandon() {
	r.deleting.Store(false)
	r.starting.Store(false)
}

// markStarted publishes the PID and start time before the running flag so a
// reader that observes running also observes the PID.
func (r *runtime) markStarted(pid int, at int64) {
	r.pid.Store(int32(pid))
	r.startedAt.Store(at)
	r.running.Store(true)
}

// takePID clears the PID, start time and running flag, returning what was
// recorded. Concurrent callers see the PID at most once.
func (r *runtime) takePID() (pid int32, startedAt int64) {
	pid = r.pid.Swap(noPID)
	startedAt = r.startedAt.Swap(0)
	r.running.Store(false)
	return pid, startedAt
}

func (r *runtime) status(c process.Config) process.Status {
	st := process.Status{
		ID:           c.ID,
		Name:         c.Name,
		IsRunning:    r.running.Load(),
		RestartCount: r.restarts.Load(),
		Config:       c,
	}
	if pid := r.pid.Load(); pid > 0 {
		v := int(pid)
		st.PID = &v
	}
	if at := r.startedAt.Load(); at > 0 {
		st.StartedAt = &at
	}
	if code := r.lastExit.Load(); code != 0 {
		st.LastExitCode = &code
	}
	return st
}
