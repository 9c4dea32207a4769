package hub

// Listener receives lifecycle notifications. Callbacks are delivered one at a
// time, in the order the events happened, from a goroutine that holds no hub
// or server lock, so they may call Close, CloseAll, Start or Stop. They run
// apart from the goroutine that caused the event and should return quickly.
type Listener interface {
	OnStarted()
	OnStopped()
	OnClientConnected(count int)
	OnClientDisconnected(count int)
	OnError(message string)
}

// ListenerFuncs adapts optional functions to Listener. Nil fields are skipped.
type ListenerFuncs struct {
	Started            func()
	Stopped            func()
	ClientConnected    func(count int)
	ClientDisconnected func(count int)
	Error              func(message string)
}

func (l ListenerFuncs) OnStarted() {
	if l.Started != nil {
		l.Started()
	}
}

func (l ListenerFuncs) OnStopped() {
	if l.Stopped != nil {
		l.Stopped()
	}
}

func (l ListenerFuncs) OnClientConnected(count int) {
	if l.ClientConnected != nil {
		l.ClientConnected(count)
	}
}

func (l ListenerFuncs) OnClientDisconnected(count int) {
	if l.ClientDisconnected != nil {
		l.ClientDisconnected(count)
	}
}

func (l ListenerFuncs) OnError(message string) {
	if l.Error != nil {
		l.Error(message)
	}
}
