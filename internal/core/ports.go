package core

import (
	"context"

	"github.com/dkeye/callbridge/internal/domain"
)

//go:generate mockgen -source=ports.go -destination=mocks/ports_mock.go -package=mocks

// SessionStore is the persistence side of a call.
// Lookups of unknown ids return domain.ErrUnknownCall.
type SessionStore interface {
	CreateSession(ctx context.Context, userID domain.UserID, voiceProfileID domain.VoiceProfileID) (domain.CallID, error)
	// CloseSession records the end time once; closing an ended call is a no-op.
	CloseSession(ctx context.Context, callID domain.CallID) error
	// GetVoiceProfileID returns domain.ErrCallEnded for calls that already ended.
	GetVoiceProfileID(ctx context.Context, callID domain.CallID) (domain.VoiceProfileID, error)
	GetUserID(ctx context.Context, callID domain.CallID) (domain.UserID, error)
	PersistMessage(ctx context.Context, callID domain.CallID, speaker domain.Speaker, text string) error
}

// Notifier is best-effort: implementations must not block the caller.
type Notifier interface {
	NotifyClientReady(ctx context.Context, callID domain.CallID)
	NotifyCallEnded(ctx context.Context, callID domain.CallID, reason string)
}

type NopNotifier struct{}

func (NopNotifier) NotifyClientReady(context.Context, domain.CallID)       {}
func (NopNotifier) NotifyCallEnded(context.Context, domain.CallID, string) {}
