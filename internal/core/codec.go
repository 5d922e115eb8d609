package core

import (
	"unicode/utf8"

	"github.com/dkeye/callbridge/internal/domain"
)

// Header bytes of the worker -> broker sub-protocol: [1-byte type][payload].
const (
	HeaderAudioChunk     byte = 0x01
	HeaderUserTranscript byte = 0x02
	HeaderAiTranscript   byte = 0x03
)

type FrameKind int

const (
	KindUnknown FrameKind = iota
	KindAudioChunk
	KindUserTranscript
	KindAiTranscript
)

func (k FrameKind) String() string {
	switch k {
	case KindAudioChunk:
		return "audio_chunk"
	case KindUserTranscript:
		return "user_transcript"
	case KindAiTranscript:
		return "ai_transcript"
	default:
		return "unknown"
	}
}

// Speaker maps transcript kinds to the persisted sender.
func (k FrameKind) Speaker() (domain.Speaker, bool) {
	switch k {
	case KindUserTranscript:
		return domain.SpeakerUser, true
	case KindAiTranscript:
		return domain.SpeakerAI, true
	}
	return "", false
}

// WorkerFrame is a decoded worker frame. Payload never includes the header.
// For KindUnknown the raw payload and header are kept for logging.
type WorkerFrame struct {
	Kind    FrameKind
	Header  byte
	Payload Frame
}

// Text is only meaningful for transcript kinds.
func (f WorkerFrame) Text() string { return string(f.Payload) }

// DecodeWorkerFrame never fails: anything it cannot interpret is KindUnknown.
func DecodeWorkerFrame(frame Frame) WorkerFrame {
	if len(frame) == 0 {
		return WorkerFrame{Kind: KindUnknown, Payload: Frame{}}
	}
	out := WorkerFrame{Header: frame[0], Payload: frame[1:]}
	switch frame[0] {
	case HeaderAudioChunk:
		out.Kind = KindAudioChunk
	case HeaderUserTranscript, HeaderAiTranscript:
		if !utf8.Valid(out.Payload) {
			out.Kind = KindUnknown
			return out
		}
		out.Kind = KindUserTranscript
		if frame[0] == HeaderAiTranscript {
			out.Kind = KindAiTranscript
		}
	default:
		out.Kind = KindUnknown
	}
	return out
}

// EncodeWorkerFrame builds a worker frame; used by worker simulators and tests.
func EncodeWorkerFrame(kind FrameKind, payload []byte) (Frame, error) {
	var header byte
	switch kind {
	case KindAudioChunk:
		header = HeaderAudioChunk
	case KindUserTranscript:
		header = HeaderUserTranscript
	case KindAiTranscript:
		header = HeaderAiTranscript
	default:
		return nil, ErrMalformedFrame
	}
	out := make(Frame, 0, len(payload)+1)
	out = append(out, header)
	return append(out, payload...), nil
}
