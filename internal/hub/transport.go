package hub

import "time"

// Transport is the message-oriented socket beneath a Conn. *websocket.Conn
// from gorilla/websocket satisfies it; tests substitute fakes.
//
// Only the Conn's write loop calls WriteMessage. WriteControl and Close may be
// called concurrently with everything else.
type Transport interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetReadLimit(limit int64)
	SetPongHandler(h func(appData string) error)
	Close() error
}
