package runloop

import "fmt"

// EventKind discriminates the variants of [Event].
type EventKind uint8

const (
	// KindNewEvents opens a cycle. Cause carries the [StartCause].
	KindNewEvents EventKind = iota
	// KindWindowEvent is a decoded per-window event. Window identifies the
	// window; Payload carries the adapter's decoded value.
	KindWindowEvent
	// KindDeviceEvent is a decoded raw-device event. Device identifies the
	// device; Payload carries the adapter's decoded value.
	KindDeviceEvent
	// KindUserEvent is a value sent from another goroutine via
	// [Proxy.SendEvent]; the value is in Payload.
	KindUserEvent
	// KindRedrawRequested asks the application to repaint the window
	// identified by Window. Render semantics are out of scope; the kind
	// exists so adapters can deliver it with the ordering guarantees of
	// every other event.
	KindRedrawRequested
	// KindAboutToWait closes a cycle; the loop is about to sleep. The
	// handler's last chance to adjust [ControlFlow] for this cycle.
	KindAboutToWait
	// KindLoopExiting is the final event ever delivered; the loop
	// terminates after the handler returns.
	KindLoopExiting
)

// String returns a human-readable representation of the kind.
func (k EventKind) String() string {
	switch k {
	case KindNewEvents:
		return "NewEvents"
	case KindWindowEvent:
		return "WindowEvent"
	case KindDeviceEvent:
		return "DeviceEvent"
	case KindUserEvent:
		return "UserEvent"
	case KindRedrawRequested:
		return "RedrawRequested"
	case KindAboutToWait:
		return "AboutToWait"
	case KindLoopExiting:
		return "LoopExiting"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(k))
	}
}

// WindowID identifies a window within its adapter's namespace.
type WindowID uint64

// DeviceID identifies an input device within its adapter's namespace.
type DeviceID uint64

// Event is the platform-neutral event envelope delivered to the
// application handler. Which fields are meaningful depends on Kind; see the
// [EventKind] constants.
type Event struct {
	Payload any
	Cause   StartCause
	Window  WindowID
	Device  DeviceID
	Kind    EventKind
}

// NewEventsEvent returns the synthetic event opening a cycle.
func NewEventsEvent(cause StartCause) Event {
	return Event{Kind: KindNewEvents, Cause: cause}
}

// WindowEvent returns a per-window event with a decoded payload.
func WindowEvent(id WindowID, payload any) Event {
	return Event{Kind: KindWindowEvent, Window: id, Payload: payload}
}

// DeviceEvent returns a raw-device event with a decoded payload.
func DeviceEvent(id DeviceID, payload any) Event {
	return Event{Kind: KindDeviceEvent, Device: id, Payload: payload}
}

// UserEvent returns an application-defined event.
func UserEvent(payload any) Event {
	return Event{Kind: KindUserEvent, Payload: payload}
}

// RedrawRequested returns a repaint request for the given window.
func RedrawRequested(id WindowID) Event {
	return Event{Kind: KindRedrawRequested, Window: id}
}

// String returns a human-readable representation of the event.
func (e Event) String() string {
	switch e.Kind {
	case KindNewEvents:
		return fmt.Sprintf("NewEvents(%s)", e.Cause)
	case KindWindowEvent, KindRedrawRequested:
		return fmt.Sprintf("%s(window=%d)", e.Kind, e.Window)
	case KindDeviceEvent:
		return fmt.Sprintf("DeviceEvent(device=%d)", e.Device)
	default:
		return e.Kind.String()
	}
}
