// Package runloop provides a platform-independent run loop for applications
// that receive input, window, and device events from a native event source,
// with identical ordering and control-flow semantics on every platform.
//
// # Architecture
//
// The package is built around a [Loop] that owns a control-flow state
// machine. Each iteration of the loop is a cycle: a synthetic
// [KindNewEvents] notification carrying a [StartCause], followed by zero or
// more window/device/user events in arrival order, followed by a single
// [KindAboutToWait] notification, followed by a sleep whose duration is
// selected by the application via [ControlFlow] ([Poll], [Wait],
// [WaitUntil], or [Exit]).
//
// Native event delivery is abstracted behind the [Source] interface: a
// non-blocking readiness check plus a drain step producing decoded [Event]
// envelopes. Decoding of platform protocols is out of scope; adapters feed
// already-typed events into the loop.
//
// # Thread Safety
//
// A single goroutine owns the loop, its state machine, and its event
// buffers. Other goroutines interact only through [Proxy.SendEvent] and
// [Loop.Wake], both of which are safe for concurrent use. [Loop.Deliver],
// [Loop.RequestExit], and the Arm* methods of [Waker] must only be called
// from the owning goroutine (or, for Deliver, before [Loop.Run] starts).
//
// # Reentrancy
//
// Native layers may call back into the loop while the application's handler
// is already executing (nested modal pumps, synchronous platform
// delegates). Such events are appended to an internal FIFO and replayed
// after the outer dispatch returns; the handler is never invoked
// recursively and no reentrant event is dropped or reordered.
//
// # Usage
//
//	loop, err := runloop.New(runloop.WithSource(src))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	proxy := loop.CreateProxy() // safe to hand to other goroutines
//
//	err = loop.Run(ctx, func(ev runloop.Event, l *runloop.Loop, flow *runloop.ControlFlow) {
//	    switch ev.Kind {
//	    case runloop.KindNewEvents:
//	        // cycle started, ev.Cause says why
//	    case runloop.KindWindowEvent:
//	        // decoded platform event in ev.Payload
//	    case runloop.KindUserEvent:
//	        // value sent via proxy.SendEvent
//	    case runloop.KindAboutToWait:
//	        *flow = runloop.WaitUntil(time.Now().Add(16 * time.Millisecond))
//	    }
//	})
//
// # Error Model
//
// Programming errors (dispatching after termination, launching twice,
// calling owner-only methods off-thread) are fatal and panic. Native OS
// failures surface as [*OSError] from Run. A panic inside the application
// handler is surfaced as [*PanicError] from Run after internal state has
// been restored to a terminated, consistent condition.
package runloop
