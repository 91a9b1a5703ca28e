package device

import (
	"context"
	"testing"

	"github.com/dukerupert/drivemode/internal/model"
)

func runCalls(t *testing.T, states ...CallState) *recordingSubmitter {
	t.Helper()
	sub := &recordingSubmitter{}
	w := NewCallWatcher(sub, testLogger())
	for _, s := range states {
		if err := w.Handle(context.Background(), CallStateChange{State: s, Number: "5551234567"}); err != nil {
			t.Fatalf("Handle(%s): %v", s, err)
		}
	}
	return sub
}

func countStatus(reqs []MissedCallRequest, status string) int {
	n := 0
	for _, r := range reqs {
		if r.Status == status {
			n++
		}
	}
	return n
}

func TestCallWatcherRingingThenIdleIsMissed(t *testing.T) {
	sub := runCalls(t, CallRinging, CallIdle)

	if got := countStatus(sub.missed, model.CallStatusMissed); got != 1 {
		t.Errorf("missed submissions = %d, want 1", got)
	}
	if got := countStatus(sub.missed, model.CallStatusIncoming); got != 1 {
		t.Errorf("incoming submissions = %d, want 1", got)
	}
	if sub.missed[1].Number != "5551234567" {
		t.Errorf("number = %q", sub.missed[1].Number)
	}
}

func TestCallWatcherAnsweredIsNotMissed(t *testing.T) {
	sub := runCalls(t, CallRinging, CallOffhook, CallIdle)
	if got := countStatus(sub.missed, model.CallStatusMissed); got != 0 {
		t.Errorf("missed submissions = %d, want 0", got)
	}
}

func TestCallWatcherIdleWithoutRinging(t *testing.T) {
	sub := runCalls(t, CallIdle, CallOffhook, CallIdle)
	if len(sub.missed) != 0 {
		t.Errorf("submissions = %+v, want none", sub.missed)
	}
}

func TestCallWatcherNoDedup(t *testing.T) {
	sub := runCalls(t, CallRinging, CallRinging, CallIdle, CallIdle)
	if got := countStatus(sub.missed, model.CallStatusIncoming); got != 2 {
		t.Errorf("incoming = %d, want 2", got)
	}
	if got := countStatus(sub.missed, model.CallStatusMissed); got != 1 {
		t.Errorf("missed = %d, want 1", got)
	}
}

func TestCallWatcherSessionClearedAfterMiss(t *testing.T) {
	w := NewCallWatcher(&recordingSubmitter{}, testLogger())
	ctx := context.Background()
	w.Handle(ctx, CallStateChange{State: CallRinging, Number: "1"})
	if !w.Session().Ringing() {
		t.Fatal("expected ringing after ringing state")
	}
	w.Handle(ctx, CallStateChange{State: CallIdle, Number: "1"})
	if w.Session().Ringing() {
		t.Error("ringing flag still set after idle")
	}
}
