package runloop

import (
	"errors"
	"testing"
)

func TestEventString(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		ev   Event
		want string
	}{
		{NewEventsEvent(StartCause{Kind: CausePoll}), "NewEvents(Poll)"},
		{WindowEvent(3, "x"), "WindowEvent(window=3)"},
		{RedrawRequested(5), "RedrawRequested(window=5)"},
		{DeviceEvent(9, nil), "DeviceEvent(device=9)"},
		{UserEvent("v"), "UserEvent"},
		{Event{Kind: KindAboutToWait}, "AboutToWait"},
		{Event{Kind: KindLoopExiting}, "LoopExiting"},
	} {
		if got := tc.ev.String(); got != tc.want {
			t.Errorf("got %q, want %q", got, tc.want)
		}
	}
}

func TestPanicError(t *testing.T) {
	t.Parallel()

	t.Run("error payloads unwrap", func(t *testing.T) {
		t.Parallel()
		cause := errors.New("root cause")
		err := error(&PanicError{Value: cause})
		if !errors.Is(err, cause) {
			t.Error("cause not reachable via errors.Is")
		}
	})

	t.Run("non-error payloads do not unwrap", func(t *testing.T) {
		t.Parallel()
		err := &PanicError{Value: "a string"}
		if err.Unwrap() != nil {
			t.Error("string payload produced a cause")
		}
		if err.Error() == "" {
			t.Error("empty message")
		}
	})
}

func TestOSError(t *testing.T) {
	t.Parallel()

	cause := errors.New("EBADF")
	err := error(&OSError{Op: "wait for events", Err: cause})
	if !errors.Is(err, cause) {
		t.Error("cause not reachable via errors.Is")
	}
	var osErr *OSError
	if !errors.As(err, &osErr) || osErr.Op != "wait for events" {
		t.Errorf("errors.As failed: %v", err)
	}
}
