// Package walkie implements the client-side turn-coordination state machine
// for walkie-talkie translation calls.
//
// Each participant runs one Engine. Local toggle actions and remote
// broadcast signals both funnel into a single serialized apply step, so the
// machine never sees two transitions interleave. State is shared between
// participants only through broadcast signals: it is eventually consistent,
// never linearizable with the peer's view.
package walkie

import (
	"time"
)

// State is the per-client view of the current turn
type State string

const (
	StateIdle       State = "idle"
	StateRecording  State = "recording"
	StateProcessing State = "processing"
	StatePlaying    State = "playing"
)

// TranscriptEntry is one translated utterance shown to the user. The
// transcript list is append-only for the lifetime of the call.
type TranscriptEntry struct {
	OriginalText   string
	TranslatedText string
	SpeakerID      string
	Timestamp      time.Time
}

// Store is the machine's state. ActiveSpeakerID is empty exactly when
// State is StateIdle; every transition preserves that invariant.
type Store struct {
	State           State
	ActiveSpeakerID string
	Transcripts     []TranscriptEntry
	Err             string
}

func initialStore() Store {
	return Store{State: StateIdle}
}

type eventKind int

const (
	evRecordingStart eventKind = iota
	evRecordingStop
	evProcessing
	evTTSPlaying
	evTTSComplete
	evError
	evClearError
)

// event is one input to the state machine, local or remote in origin
type event struct {
	kind           eventKind
	userID         string // evRecordingStart
	originalText   string // evTTSPlaying
	translatedText string // evTTSPlaying
	message        string // evError
	now            time.Time
}

// apply is the pure transition function. Events that do not fit the
// current state are ignored rather than guessed at: a duplicate or
// out-of-order signal must leave the store unchanged.
func apply(store Store, ev event) Store {
	switch ev.kind {
	case evRecordingStart:
		if store.State != StateIdle || ev.userID == "" {
			return store
		}
		store.State = StateRecording
		store.ActiveSpeakerID = ev.userID
		store.Err = ""
		return store

	case evRecordingStop:
		if store.State != StateRecording {
			return store
		}
		store.State = StateProcessing
		return store

	case evProcessing:
		if store.ActiveSpeakerID == "" {
			return store
		}
		store.State = StateProcessing
		return store

	case evTTSPlaying:
		if store.ActiveSpeakerID == "" {
			return store
		}
		store.State = StatePlaying
		store.Transcripts = append(store.Transcripts, TranscriptEntry{
			OriginalText:   ev.originalText,
			TranslatedText: ev.translatedText,
			SpeakerID:      store.ActiveSpeakerID,
			Timestamp:      ev.now,
		})
		return store

	case evTTSComplete:
		store.State = StateIdle
		store.ActiveSpeakerID = ""
		return store

	case evError:
		store.State = StateIdle
		store.ActiveSpeakerID = ""
		store.Err = ev.message
		return store

	case evClearError:
		store.Err = ""
		return store
	}

	return store
}
