// Package signal implements the walkie-talkie turn-coordination protocol
// exchanged over the room's broadcast data channel.
//
// Signals are flat JSON objects with a discriminant "signal" field, sent on
// a fixed topic. Both clients and the translation agent speak the same
// format. Signal flow for one turn:
//
//	RECORDING_START (client) -> RECORDING_STOP (client) ->
//	PROCESSING (agent) -> TTS_PLAYING (agent) -> TTS_COMPLETE (agent)
package signal

import (
	"encoding/json"
	"fmt"
)

// DefaultTopic is the broadcast topic signals are exchanged on
const DefaultTopic = "walkie-talkie"

// Kind identifies a signal variant
type Kind string

const (
	KindRecordingStart Kind = "RECORDING_START"
	KindRecordingStop  Kind = "RECORDING_STOP"
	KindProcessing     Kind = "PROCESSING"
	KindTTSPlaying     Kind = "TTS_PLAYING"
	KindTTSComplete    Kind = "TTS_COMPLETE"
	KindError          Kind = "ERROR"
)

var knownKinds = map[Kind]bool{
	KindRecordingStart: true,
	KindRecordingStop:  true,
	KindProcessing:     true,
	KindTTSPlaying:     true,
	KindTTSComplete:    true,
	KindError:          true,
}

// Signal is one turn-coordination message. Only the fields relevant to the
// Kind are populated; the rest stay zero and are omitted on the wire.
type Signal struct {
	Kind           Kind   `json:"signal"`
	UserID         string `json:"userId,omitempty"`         // RECORDING_START / RECORDING_STOP
	OriginalText   string `json:"originalText,omitempty"`   // TTS_PLAYING
	TranslatedText string `json:"translatedText,omitempty"` // TTS_PLAYING
	Message        string `json:"message,omitempty"`        // ERROR
}

// RecordingStart announces that userID has taken the turn and is recording
func RecordingStart(userID string) Signal {
	return Signal{Kind: KindRecordingStart, UserID: userID}
}

// RecordingStop announces that userID has released the turn
func RecordingStop(userID string) Signal {
	return Signal{Kind: KindRecordingStop, UserID: userID}
}

// Processing announces that the captured utterance is being translated
func Processing() Signal {
	return Signal{Kind: KindProcessing}
}

// TTSPlaying announces that synthesized speech is about to play, carrying
// the transcript pair for display
func TTSPlaying(originalText, translatedText string) Signal {
	return Signal{Kind: KindTTSPlaying, OriginalText: originalText, TranslatedText: translatedText}
}

// TTSComplete announces that playback finished and the turn is over
func TTSComplete() Signal {
	return Signal{Kind: KindTTSComplete}
}

// Error announces a failed turn
func Error(message string) Signal {
	return Signal{Kind: KindError, Message: message}
}

// DecodeError reports an inbound payload that is not a recognized signal.
// Callers drop the message and take no state action.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("signal decode: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("signal decode: %s", e.Reason)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Encode serializes a signal to its wire form
func Encode(s Signal) ([]byte, error) {
	if !knownKinds[s.Kind] {
		return nil, fmt.Errorf("unknown signal kind %q", s.Kind)
	}
	return json.Marshal(s)
}

// Decode parses a broadcast payload into a Signal. Unknown discriminants
// and malformed JSON return a *DecodeError; Decode(Encode(s)) == s for
// every constructible signal.
func Decode(data []byte) (Signal, error) {
	var s Signal
	if err := json.Unmarshal(data, &s); err != nil {
		return Signal{}, &DecodeError{Reason: "malformed payload", Err: err}
	}
	if s.Kind == "" {
		return Signal{}, &DecodeError{Reason: "missing signal field"}
	}
	if !knownKinds[s.Kind] {
		return Signal{}, &DecodeError{Reason: fmt.Sprintf("unknown signal %q", s.Kind)}
	}
	return s, nil
}
