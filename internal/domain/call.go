package domain

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

var (
	ErrUnknownCall = errors.New("unknown call")
	ErrCallEnded   = errors.New("call already ended")
)

// CallID is assigned by the session store when a call is started.
type CallID int64

func (id CallID) String() string { return strconv.FormatInt(int64(id), 10) }

// ParseCallID accepts the decimal form used in query strings and paths.
func ParseCallID(raw string) (CallID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, ErrInvalidID
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n <= 0 {
		return 0, ErrInvalidID
	}
	return CallID(n), nil
}

type CallState int

const (
	CallPending CallState = iota
	CallActive
	CallEnded
)

func (s CallState) String() string {
	switch s {
	case CallPending:
		return "PENDING"
	case CallActive:
		return "ACTIVE"
	case CallEnded:
		return "ENDED"
	default:
		return "UNKNOWN"
	}
}

type CallSession struct {
	ID             CallID         `json:"callSessionId"`
	UserID         UserID         `json:"userId"`
	VoiceProfileID VoiceProfileID `json:"voiceProfileId"`
	StartedAt      time.Time      `json:"startTime"`
	EndedAt        *time.Time     `json:"endTime,omitempty"`
}

func (s *CallSession) Ended() bool { return s.EndedAt != nil }
