package runloop

import (
	"testing"
	"time"
)

func TestControlFlow(t *testing.T) {
	t.Parallel()

	t.Run("zero value is Wait", func(t *testing.T) {
		t.Parallel()
		var flow ControlFlow
		if flow.Kind() != ControlWait {
			t.Errorf("zero value kind = %v", flow.Kind())
		}
		if flow != Wait() {
			t.Error("zero value differs from Wait()")
		}
		if _, ok := flow.Deadline(); ok {
			t.Error("Wait reported a deadline")
		}
		if _, ok := flow.ExitCode(); ok {
			t.Error("Wait reported an exit code")
		}
	})

	t.Run("WaitUntil carries its deadline", func(t *testing.T) {
		t.Parallel()
		when := time.Now().Add(time.Second)
		flow := WaitUntil(when)
		if flow.Kind() != ControlWaitUntil {
			t.Errorf("kind = %v", flow.Kind())
		}
		deadline, ok := flow.Deadline()
		if !ok || !deadline.Equal(when) {
			t.Errorf("Deadline() = %v, %v", deadline, ok)
		}
	})

	t.Run("Exit carries its code", func(t *testing.T) {
		t.Parallel()
		flow := Exit(42)
		if flow.Kind() != ControlExit {
			t.Errorf("kind = %v", flow.Kind())
		}
		code, ok := flow.ExitCode()
		if !ok || code != 42 {
			t.Errorf("ExitCode() = %d, %v", code, ok)
		}
		if _, ok := flow.Deadline(); ok {
			t.Error("Exit reported a deadline")
		}
	})

	t.Run("Poll has neither deadline nor code", func(t *testing.T) {
		t.Parallel()
		flow := Poll()
		if flow.Kind() != ControlPoll {
			t.Errorf("kind = %v", flow.Kind())
		}
		if _, ok := flow.Deadline(); ok {
			t.Error("Poll reported a deadline")
		}
		if _, ok := flow.ExitCode(); ok {
			t.Error("Poll reported an exit code")
		}
	})

	t.Run("strings", func(t *testing.T) {
		t.Parallel()
		if got := Wait().String(); got != "Wait" {
			t.Errorf("Wait: %q", got)
		}
		if got := Poll().String(); got != "Poll" {
			t.Errorf("Poll: %q", got)
		}
		if got := Exit(3).String(); got != "Exit(3)" {
			t.Errorf("Exit: %q", got)
		}
	})
}

func TestStartCauseKindString(t *testing.T) {
	t.Parallel()

	for kind, want := range map[StartCauseKind]string{
		CauseInit:              "Init",
		CausePoll:              "Poll",
		CauseWaitCancelled:     "WaitCancelled",
		CauseResumeTimeReached: "ResumeTimeReached",
		StartCauseKind(99):     "Unknown(99)",
	} {
		if got := kind.String(); got != want {
			t.Errorf("%d: got %q, want %q", kind, got, want)
		}
	}
}
