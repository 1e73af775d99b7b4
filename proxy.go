package runloop

// Proxy sends application-defined events to the loop from any goroutine.
// Events are queued on a thread-safe ingress and drained by the owning
// goroutine inside its own dispatch cycle, arriving as [KindUserEvent].
type Proxy struct {
	loop *Loop
}

// CreateProxy returns a handle that other goroutines may use to send user
// events into the loop. Proxies may be created at any time, including
// before Run, and may be shared freely.
func (l *Loop) CreateProxy() *Proxy {
	return &Proxy{loop: l}
}

// SendEvent queues payload for delivery as a [KindUserEvent] and wakes the
// loop. Events sent before Run starts are delivered by the first cycle.
// Returns [ErrTerminated] once the loop has shut down.
func (p *Proxy) SendEvent(payload any) error {
	l := p.loop
	if l.state.Load() == StateTerminated {
		return ErrTerminated
	}
	l.proxy.Push(UserEvent(payload))
	return l.waker.Wake()
}
