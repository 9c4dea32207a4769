package hub

import (
	"errors"
	"net"
	"sync"
	"time"

	"framecast/internal/frame"
)

var errFakeWrite = errors.New("fake: write failed")

type readResult struct {
	msg []byte
	err error
}

// fakeTransport records what a Conn writes. failAfter makes every
// WriteMessage after that many successes fail; block stalls WriteMessage
// until it is closed or the transport is.
type fakeTransport struct {
	mu        sync.Mutex
	writes    [][]byte
	controls  []int
	failAfter int
	block     chan struct{}
	pong      func(string) error

	reads     chan readResult
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		failAfter: -1,
		reads:     make(chan readResult, 4),
		closed:    make(chan struct{}),
	}
}

func (f *fakeTransport) ReadMessage() (int, []byte, error) {
	select {
	case r := <-f.reads:
		return 1, r.msg, r.err
	case <-f.closed:
		return 0, nil, net.ErrClosed
	}
}

func (f *fakeTransport) WriteMessage(_ int, data []byte) error {
	if f.block != nil {
		select {
		case <-f.block:
		case <-f.closed:
			return net.ErrClosed
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAfter >= 0 && len(f.writes) >= f.failAfter {
		return errFakeWrite
	}
	f.writes = append(f.writes, append([]byte(nil), data...))
	return nil
}

func (f *fakeTransport) WriteControl(messageType int, _ []byte, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.controls = append(f.controls, messageType)
	return nil
}

func (f *fakeTransport) SetReadDeadline(time.Time) error  { return nil }
func (f *fakeTransport) SetWriteDeadline(time.Time) error { return nil }
func (f *fakeTransport) SetReadLimit(int64)               {}

func (f *fakeTransport) SetPongHandler(h func(string) error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pong = h
}

func (f *fakeTransport) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeTransport) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

func (f *fakeTransport) messages() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Message, 0, len(f.writes))
	for _, w := range f.writes {
		m, err := DecodeMessage(w)
		if err == nil {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeTransport) raw() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.writes...)
}

func (f *fakeTransport) controlTypes() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.controls...)
}

// countingEncoder wraps a real codec and counts calls.
type countingEncoder struct {
	mu    sync.Mutex
	calls int
	err   error
	codec *frame.JPEGCodec
}

func newCountingEncoder() *countingEncoder {
	return &countingEncoder{codec: frame.NewJPEGCodec(frame.DefaultQuality)}
}

func (e *countingEncoder) Encode(f frame.Frame) (frame.EncodedFrame, error) {
	e.mu.Lock()
	e.calls++
	err := e.err
	e.mu.Unlock()
	if err != nil {
		return frame.EncodedFrame{}, err
	}
	return e.codec.Encode(f)
}

func (e *countingEncoder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// recorder captures listener callbacks.
type recorder struct {
	mu           sync.Mutex
	connected    []int
	disconnected []int
	errors       []string
}

func (r *recorder) listener() ListenerFuncs {
	return ListenerFuncs{
		ClientConnected: func(n int) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.connected = append(r.connected, n)
		},
		ClientDisconnected: func(n int) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.disconnected = append(r.disconnected, n)
		},
		Error: func(msg string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.errors = append(r.errors, msg)
		},
	}
}

func (r *recorder) snapshot() (connected, disconnected []int, errs []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.connected...),
		append([]int(nil), r.disconnected...),
		append([]string(nil), r.errors...)
}
