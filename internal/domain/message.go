package domain

import (
	"errors"
	"strings"
	"time"
)

var ErrInvalidSpeaker = errors.New("invalid speaker")

// Speaker tells who said a transcript line.
type Speaker string

const (
	SpeakerUser Speaker = "USER"
	SpeakerAI   Speaker = "AI"
)

func ParseSpeaker(raw string) (Speaker, error) {
	switch Speaker(strings.ToUpper(strings.TrimSpace(raw))) {
	case SpeakerUser:
		return SpeakerUser, nil
	case SpeakerAI:
		return SpeakerAI, nil
	}
	return "", ErrInvalidSpeaker
}

type Message struct {
	ID        int64     `json:"messageId"`
	CallID    CallID    `json:"callSessionId"`
	Sender    Speaker   `json:"sender"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}
