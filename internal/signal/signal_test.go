package signal

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	signals := []Signal{
		RecordingStart("user-a"),
		RecordingStop("user-a"),
		Processing(),
		TTSPlaying("Hola", "Hello"),
		TTSComplete(),
		Error("Translation failed"),
	}

	for _, want := range signals {
		data, err := Encode(want)
		if err != nil {
			t.Fatalf("Encode(%s) failed: %v", want.Kind, err)
		}

		got, err := Decode(data)
		if err != nil {
			t.Fatalf("Decode(%s) failed: %v", want.Kind, err)
		}

		if got != want {
			t.Errorf("Round trip for %s: expected %+v, got %+v", want.Kind, want, got)
		}
	}
}

func TestEncode_WireFormat(t *testing.T) {
	data, err := Encode(RecordingStart("user-a"))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Encoded signal is not valid JSON: %v", err)
	}

	if raw["signal"] != "RECORDING_START" {
		t.Errorf("Expected signal 'RECORDING_START', got %v", raw["signal"])
	}
	if raw["userId"] != "user-a" {
		t.Errorf("Expected userId 'user-a', got %v", raw["userId"])
	}

	// Irrelevant fields must be omitted, not sent as empty strings
	if _, present := raw["originalText"]; present {
		t.Error("Expected originalText to be omitted for RECORDING_START")
	}
	if _, present := raw["message"]; present {
		t.Error("Expected message to be omitted for RECORDING_START")
	}
}

func TestEncode_UnknownKind(t *testing.T) {
	_, err := Encode(Signal{Kind: "BOGUS"})
	if err == nil {
		t.Error("Expected error encoding unknown kind")
	}
}

func TestDecode_UnknownSignal(t *testing.T) {
	_, err := Decode([]byte(`{"signal":"UNKNOWN"}`))

	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("Expected *DecodeError, got %v", err)
	}
}

func TestDecode_MissingDiscriminant(t *testing.T) {
	_, err := Decode([]byte(`{"userId":"user-a"}`))

	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("Expected *DecodeError, got %v", err)
	}
}

func TestDecode_MalformedJSON(t *testing.T) {
	_, err := Decode([]byte(`{not json`))

	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("Expected *DecodeError, got %v", err)
	}
	if decodeErr.Unwrap() == nil {
		t.Error("Expected wrapped JSON error")
	}
}

func TestDecode_IgnoresExtraFields(t *testing.T) {
	got, err := Decode([]byte(`{"signal":"TTS_COMPLETE","extra":"field"}`))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if got.Kind != KindTTSComplete {
		t.Errorf("Expected TTS_COMPLETE, got %s", got.Kind)
	}
}
