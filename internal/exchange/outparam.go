package exchange

import (
	"errors"
	"sync/atomic"

	"passthrough-proxy/internal/model"
)

// ErrAlreadySet is returned when a second outcome is set on a ResponseOutparam.
var ErrAlreadySet = errors.New("response outparam already set")

// CommitFunc delivers the final outcome of a session to the original caller.
// Exactly one of resp and err is non-nil.
type CommitFunc func(resp *model.ResponseDescriptor, err error) error

// ResponseOutparam is the single commit point of a session.
type ResponseOutparam struct {
	commit CommitFunc
	set    atomic.Bool
}

// NewResponseOutparam wraps the host's commit callback.
func NewResponseOutparam(commit CommitFunc) *ResponseOutparam {
	return &ResponseOutparam{commit: commit}
}

// Set hands the outcome to the host. Only the first call reaches the host;
// any later call returns ErrAlreadySet.
func (o *ResponseOutparam) Set(resp *model.ResponseDescriptor, err error) error {
	if !o.set.CompareAndSwap(false, true) {
		return ErrAlreadySet
	}
	return o.commit(resp, err)
}

// Committed reports whether an outcome has been set.
func (o *ResponseOutparam) Committed() bool {
	return o.set.Load()
}
