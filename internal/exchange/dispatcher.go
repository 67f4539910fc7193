package exchange

import "passthrough-proxy/internal/model"

// Dispatcher submits an outbound request and returns without waiting for it
// to complete. A request that cannot be submitted fails synchronously.
type Dispatcher interface {
	Dispatch(req *model.RequestDescriptor) (*PendingExchange, error)
}

// DispatcherFunc adapts a function to the Dispatcher interface.
type DispatcherFunc func(req *model.RequestDescriptor) (*PendingExchange, error)

func (f DispatcherFunc) Dispatch(req *model.RequestDescriptor) (*PendingExchange, error) {
	return f(req)
}
