package hub

import (
	"encoding/json"
	"fmt"

	"framecast/internal/frame"
	"framecast/internal/stats"
)

// Wire message types. Every message is one JSON text frame with a "type" field.
const (
	TypeWelcome = "welcome"
	TypeFrame   = "frame"
	TypeStats   = "stats"
)

// WelcomeMessage is sent once to a connection right after it opens.
type WelcomeMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// FrameMessage carries one base64 JPEG.
type FrameMessage struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

// StatsMessage carries a periodic statistics record.
type StatsMessage struct {
	Type  string       `json:"type"`
	Stats stats.Record `json:"stats"`
}

// Message is the union of all server messages, as a viewer decodes them.
type Message struct {
	Type    string        `json:"type"`
	Message string        `json:"message,omitempty"`
	Data    string        `json:"data,omitempty"`
	Stats   *stats.Record `json:"stats,omitempty"`
}

// DecodeMessage parses one server message.
func DecodeMessage(b []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(b, &m); err != nil {
		return Message{}, fmt.Errorf("hub: decode message: %w", err)
	}
	return m, nil
}

func marshalWelcome(text string) ([]byte, error) {
	return json.Marshal(WelcomeMessage{Type: TypeWelcome, Message: text})
}

func marshalFrame(enc frame.EncodedFrame) ([]byte, error) {
	return json.Marshal(FrameMessage{Type: TypeFrame, Data: enc.Data})
}

func marshalStats(rec stats.Record) ([]byte, error) {
	return json.Marshal(StatsMessage{Type: TypeStats, Stats: rec})
}
