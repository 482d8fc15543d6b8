package port

// Listener observes connector events. Callbacks run on the goroutine that
// caused the event and must not block.
type Listener interface {
	OnConnect(profile ConnectorProfile)
	OnDisconnect(profile ConnectorProfile, reason error)
	OnBufferOverflow(profile ConnectorProfile, dropped Record)
	OnSendError(profile ConnectorProfile, err error)
	OnReceive(profile ConnectorProfile, rec Record)
}

// ListenerFuncs implements Listener with optional function fields.
type ListenerFuncs struct {
	Connect        func(ConnectorProfile)
	Disconnect     func(ConnectorProfile, error)
	BufferOverflow func(ConnectorProfile, Record)
	SendError      func(ConnectorProfile, error)
	Receive        func(ConnectorProfile, Record)
}

func (l ListenerFuncs) OnConnect(p ConnectorProfile) {
	if l.Connect != nil {
		l.Connect(p)
	}
}

func (l ListenerFuncs) OnDisconnect(p ConnectorProfile, reason error) {
	if l.Disconnect != nil {
		l.Disconnect(p, reason)
	}
}

func (l ListenerFuncs) OnBufferOverflow(p ConnectorProfile, dropped Record) {
	if l.BufferOverflow != nil {
		l.BufferOverflow(p, dropped)
	}
}

func (l ListenerFuncs) OnSendError(p ConnectorProfile, err error) {
	if l.SendError != nil {
		l.SendError(p, err)
	}
}

func (l ListenerFuncs) OnReceive(p ConnectorProfile, rec Record) {
	if l.Receive != nil {
		l.Receive(p, rec)
	}
}
