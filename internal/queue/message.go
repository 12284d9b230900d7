package queue

import (
	"context"
	"encoding/json"
)

// Client sends messages to a queue backend.
type Client interface {
	Send(ctx context.Context, msg Message) error
}

// Message is the payload sent to downstream queue consumers. Field names
// follow the snake_case convention of the rest of the wire surface.
type Message struct {
	AnalysisID string `json:"analysis_id"`
	RequestID  string `json:"request_id"`
	EnqueuedAt string `json:"enqueued_at"`
	Version    int    `json:"version"`
}

// EncodeMessage returns the JSON representation of a message.
func EncodeMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeMessage parses a JSON payload into a Message.
func DecodeMessage(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}
