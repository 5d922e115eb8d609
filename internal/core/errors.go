package core

import "errors"

var (
	ErrDuplicateBinding = errors.New("connection already bound")
	ErrAlreadyPaired    = errors.New("connection already paired")
	ErrNotPaired        = errors.New("connection not paired")
	ErrMalformedFrame   = errors.New("malformed frame")
	ErrPeerUnavailable  = errors.New("peer unavailable")
	ErrTransportClosed  = errors.New("transport closed")
	ErrBackpressure     = errors.New("backpressure")
	ErrShuttingDown     = errors.New("broker shutting down")
)
