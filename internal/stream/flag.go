package stream

import (
	"sync"
	"sync/atomic"
)

type StopReason string

const (
	StopReasonEndOfInput             StopReason = "end_of_input"
	StopReasonClientDisconnected     StopReason = "client_disconnected"
	StopReasonRestartBudgetExhausted StopReason = "restart_budget_exhausted"
	StopReasonBackendUnavailable     StopReason = "backend_unavailable"
	StopReasonClientWriteFailed      StopReason = "client_write_failed"
	StopReasonServerShutdown         StopReason = "server_shutdown"
	StopReasonInternalError          StopReason = "internal_error"
)

// ReceiveFlag is the shared "still receiving" signal of one connection. It
// starts active and can be cleared once; the first reason wins.
type ReceiveFlag struct {
	active atomic.Bool
	once   sync.Once
	done   chan struct{}
	reason atomic.Value
}

func NewReceiveFlag() *ReceiveFlag {
	f := &ReceiveFlag{done: make(chan struct{})}
	f.active.Store(true)
	return f
}

func (f *ReceiveFlag) Active() bool {
	return f.active.Load()
}

// Clear reports whether this call cleared the flag.
func (f *ReceiveFlag) Clear(reason StopReason) bool {
	cleared := false
	f.once.Do(func() {
		f.reason.Store(reason)
		f.active.Store(false)
		close(f.done)
		cleared = true
	})
	return cleared
}

func (f *ReceiveFlag) Done() <-chan struct{} {
	return f.done
}

func (f *ReceiveFlag) Reason() StopReason {
	if r, ok := f.reason.Load().(StopReason); ok {
		return r
	}
	return ""
}
