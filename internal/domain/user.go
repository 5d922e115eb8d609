// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

const MaxProfileNameLen = 50

var (
	ErrProfileNameTooLong = errors.New("profile name too long")
	ErrProfileNameEmpty   = errors.New("profile name empty")
	ErrInvalidID          = errors.New("invalid id")
)

type (
	UserID         int64
	VoiceProfileID int64
)

func (id UserID) String() string         { return strconv.FormatInt(int64(id), 10) }
func (id VoiceProfileID) String() string { return strconv.FormatInt(int64(id), 10) }

// VoiceProfile is the metadata of a cloned voice. The audio sample itself
// lives outside this service.
type VoiceProfile struct {
	ID        VoiceProfileID `json:"voiceProfileId"`
	UserID    UserID         `json:"userId"`
	Name      string         `json:"profileName"`
	CreatedAt time.Time      `json:"createdAt"`
}

// NewVoiceProfile validates the name before anything touches the store.
func NewVoiceProfile(userID UserID, name string) (*VoiceProfile, error) {
	if userID <= 0 {
		return nil, ErrInvalidID
	}
	name = strings.TrimSpace(name)
	if len(name) == 0 {
		return nil, ErrProfileNameEmpty
	}
	if len(name) > MaxProfileNameLen {
		return nil, ErrProfileNameTooLong
	}
	return &VoiceProfile{UserID: userID, Name: name}, nil
}
