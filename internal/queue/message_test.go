package queue

import (
	"reflect"
	"strings"
	"testing"
)

func TestMessageRoundTrip(t *testing.T) {
	msg := Message{
		AnalysisID: "analysis-123",
		RequestID:  "request-456",
		EnqueuedAt: "2026-08-20T22:00:00Z",
		Version:    1,
	}

	payload, err := EncodeMessage(msg)
	if err != nil {
		t.Fatalf("encode message: %v", err)
	}

	got, err := DecodeMessage(payload)
	if err != nil {
		t.Fatalf("decode message: %v", err)
	}

	if !reflect.DeepEqual(got, msg) {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, msg)
	}
}

func TestMessageWireFieldNames(t *testing.T) {
	payload, err := EncodeMessage(Message{AnalysisID: "a", RequestID: "r", EnqueuedAt: "t", Version: 1})
	if err != nil {
		t.Fatalf("encode message: %v", err)
	}
	body := string(payload)
	for _, field := range []string{`"analysis_id"`, `"request_id"`, `"enqueued_at"`, `"version"`} {
		if !strings.Contains(body, field) {
			t.Fatalf("payload %s missing field %s", body, field)
		}
	}
}

func TestDecodeMessageRejectsMalformedPayload(t *testing.T) {
	if _, err := DecodeMessage([]byte("{not json")); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}
