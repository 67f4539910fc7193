package exchange

import (
	"errors"

	"passthrough-proxy/internal/future"
	"passthrough-proxy/internal/model"
)

// PendingExchange is one submitted backend request. It is resolved once by the
// transport, with either a response or an error, and awaited once by its session.
type PendingExchange struct {
	f *future.Future[*model.ResponseDescriptor]
}

// NewPendingExchange returns an exchange in the submitted state.
func NewPendingExchange() *PendingExchange {
	return &PendingExchange{f: future.New[*model.ResponseDescriptor]()}
}

// Resolve completes the exchange. Later calls are ignored and report false.
func (p *PendingExchange) Resolve(resp *model.ResponseDescriptor, err error) bool {
	return p.f.Resolve(resp, err)
}

// Subscribe returns the readiness signal of the exchange.
func (p *PendingExchange) Subscribe() future.Pollable {
	return p.f
}

var errNoOutcome = errors.New("exchange ready without response or error")

// Await suspends the caller until p completes and takes its outcome. A failed
// exchange is returned as a KindExchange error. A ready exchange carrying
// neither a response nor an error violates the transport contract and panics.
func Await(p *PendingExchange) (*model.ResponseDescriptor, error) {
	future.Block(p.Subscribe())

	resp, err := p.f.Get()
	if err != nil {
		return nil, Wrap(KindExchange, err)
	}
	if resp == nil {
		panic(errNoOutcome)
	}
	return resp, nil
}
