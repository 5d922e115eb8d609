package app

import "github.com/dkeye/callbridge/internal/core"

type ForwardAction int

const (
	NoAction ForwardAction = iota
	DropFrame
	KickPeer
)

// Policy decides what happens to a peer that could not take a frame.
type Policy interface {
	OnForwardFailure(peer core.Connection, err error) ForwardAction
}

// SimplePolicy treats every failed forward as a disconnect of the peer.
type SimplePolicy struct{}

func (SimplePolicy) OnForwardFailure(core.Connection, error) ForwardAction {
	return KickPeer
}
