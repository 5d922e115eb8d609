package core

import (
	"encoding/json"
	"fmt"

	"github.com/dkeye/callbridge/internal/domain"
)

// Control message types carried in text frames.
const (
	ControlStart  = "start"
	ControlEnd    = "end"
	ControlReady  = "ready"
	ControlSystem = "system"
	ControlPing   = "ping"
	ControlPong   = "pong"
)

// StartMessage is pushed to a worker once per pairing, before any audio.
type StartMessage struct {
	Type           string                `json:"type"`
	SessionID      string                `json:"sessionId"`
	VoiceProfileID domain.VoiceProfileID `json:"voiceProfileId"`
	UserID         domain.UserID         `json:"userId"`
}

type EndMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	Reason    string `json:"reason,omitempty"`
}

type SystemMessage struct {
	Type  string `json:"type"`
	Event string `json:"event"`
}

func EncodeStart(callID domain.CallID, voiceProfileID domain.VoiceProfileID, userID domain.UserID) ([]byte, error) {
	return json.Marshal(StartMessage{
		Type:           ControlStart,
		SessionID:      callID.String(),
		VoiceProfileID: voiceProfileID,
		UserID:         userID,
	})
}

func EncodeEnd(callID domain.CallID, reason string) ([]byte, error) {
	return json.Marshal(EndMessage{Type: ControlEnd, SessionID: callID.String(), Reason: reason})
}

func EncodeReady() ([]byte, error) {
	return json.Marshal(SystemMessage{Type: ControlSystem, Event: ControlReady})
}

func EncodePong() ([]byte, error) {
	return json.Marshal(struct {
		Type string `json:"type"`
	}{Type: ControlPong})
}

// ControlType extracts the "type" field of a JSON text frame.
func ControlType(data []byte) (string, error) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	return env.Type, nil
}
