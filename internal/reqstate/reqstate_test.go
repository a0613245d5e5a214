package reqstate

import (
	"testing"
	"time"
)

func TestUnknownKeyReadsIdle(t *testing.T) {
	tracker := NewTracker[int]()
	state := tracker.Get("never-started")
	if state.Status != StatusIdle {
		t.Fatalf("expected idle, got %s", state.Status)
	}
	if state.Payload != nil || state.Error != "" {
		t.Fatalf("idle state must be empty, got %+v", state)
	}
}

func TestBeginClearsPreviousOutcome(t *testing.T) {
	tracker := NewTracker[int]()
	tracker.Begin("load").Fail("boom")

	if got := tracker.Get("load"); got.Status != StatusFailed || got.Error != "boom" {
		t.Fatalf("expected failed/boom, got %+v", got)
	}

	tracker.Begin("load")
	state := tracker.Get("load")
	if state.Status != StatusPending {
		t.Fatalf("expected pending, got %s", state.Status)
	}
	if state.Error != "" || state.Payload != nil {
		t.Fatalf("begin must clear previous payload and error, got %+v", state)
	}
}

func TestSucceedStoresPayload(t *testing.T) {
	tracker := NewTracker[string]()
	op := tracker.Begin("load")
	if !op.Succeed("hello") {
		t.Fatal("expected completion to apply")
	}

	state := tracker.Get("load")
	if state.Status != StatusSucceeded {
		t.Fatalf("expected succeeded, got %s", state.Status)
	}
	if state.Payload == nil || *state.Payload != "hello" {
		t.Fatalf("expected payload hello, got %+v", state.Payload)
	}
	if state.Error != "" {
		t.Fatalf("succeeded state must not carry an error, got %q", state.Error)
	}
}

func TestFailStoresMessageOnly(t *testing.T) {
	tracker := NewTracker[string]()
	tracker.Begin("load").Fail("network unreachable")

	state := tracker.Get("load")
	if state.Status != StatusFailed {
		t.Fatalf("expected failed, got %s", state.Status)
	}
	if state.Error != "network unreachable" {
		t.Fatalf("unexpected error message %q", state.Error)
	}
	if state.Payload != nil {
		t.Fatal("failed state must not carry a payload")
	}
}

func TestResetReturnsToIdle(t *testing.T) {
	tracker := NewTracker[int]()
	tracker.Begin("load").Succeed(7)
	tracker.Reset("load")

	state := tracker.Get("load")
	if state.Status != StatusIdle || state.Payload != nil || state.Error != "" {
		t.Fatalf("expected clean idle after reset, got %+v", state)
	}
}

func TestKeysAreIndependent(t *testing.T) {
	tracker := NewTracker[int]()
	tracker.Begin("a").Succeed(1)
	tracker.Begin("b")

	if got := tracker.Get("a"); got.Status != StatusSucceeded {
		t.Fatalf("key a: expected succeeded, got %s", got.Status)
	}
	if got := tracker.Get("b"); got.Status != StatusPending {
		t.Fatalf("key b: expected pending, got %s", got.Status)
	}
	if got := tracker.Get("c"); got.Status != StatusIdle {
		t.Fatalf("key c: expected idle, got %s", got.Status)
	}
}

func TestStaleCompletionIsDiscarded(t *testing.T) {
	tracker := NewTracker[int]()
	first := tracker.Begin("load")
	second := tracker.Begin("load")

	if first.Succeed(1) {
		t.Fatal("superseded completion must not apply")
	}
	if got := tracker.Get("load"); got.Status != StatusPending {
		t.Fatalf("expected pending after stale completion, got %s", got.Status)
	}

	if !second.Succeed(2) {
		t.Fatal("current completion must apply")
	}
	state := tracker.Get("load")
	if state.Payload == nil || *state.Payload != 2 {
		t.Fatalf("expected payload 2, got %+v", state.Payload)
	}
}

func TestResetSupersedesInFlightOp(t *testing.T) {
	tracker := NewTracker[int]()
	op := tracker.Begin("load")
	tracker.Reset("load")

	if op.Fail("late failure") {
		t.Fatal("completion after reset must be discarded")
	}
	if got := tracker.Get("load"); got.Status != StatusIdle {
		t.Fatalf("expected idle, got %s", got.Status)
	}
}

func TestRawCompletionLastWriteWins(t *testing.T) {
	tracker := NewTracker[int]()
	tracker.Begin("load")

	tracker.Succeed("load", 1)
	tracker.Fail("load", "slower request lost the race")

	state := tracker.Get("load")
	if state.Status != StatusFailed {
		t.Fatalf("raw completions overwrite in arrival order, got %s", state.Status)
	}
}

func TestSnapshotCopiesTable(t *testing.T) {
	tracker := NewTracker[int]()
	tracker.Begin("a").Succeed(1)
	tracker.Begin("b").Fail("nope")

	snapshot := tracker.Snapshot()
	if len(snapshot) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(snapshot))
	}
	delete(snapshot, "a")
	if got := tracker.Get("a"); got.Status != StatusSucceeded {
		t.Fatal("mutating a snapshot must not affect the tracker")
	}
}

func TestKeysSorted(t *testing.T) {
	tracker := NewTracker[int]()
	tracker.Begin("zebra")
	tracker.Begin("alpha")

	keys := tracker.Keys()
	if len(keys) != 2 || keys[0] != "alpha" || keys[1] != "zebra" {
		t.Fatalf("unexpected key order %v", keys)
	}
}

func TestWatchReceivesTransitions(t *testing.T) {
	tracker := NewTracker[int]()
	ch, cancel := tracker.Watch("load")
	defer cancel()

	op := tracker.Begin("load")
	op.Succeed(42)

	waitFor := func(want Status) State[int] {
		select {
		case state := <-ch:
			if state.Status != want {
				t.Fatalf("expected %s, got %s", want, state.Status)
			}
			return state
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %s", want)
			return State[int]{}
		}
	}

	waitFor(StatusPending)
	state := waitFor(StatusSucceeded)
	if state.Payload == nil || *state.Payload != 42 {
		t.Fatalf("expected payload 42, got %+v", state.Payload)
	}
}

func TestWatchCancelStopsDelivery(t *testing.T) {
	tracker := NewTracker[int]()
	ch, cancel := tracker.Watch("load")
	cancel()

	tracker.Begin("load").Succeed(1)

	select {
	case state, ok := <-ch:
		if ok {
			t.Fatalf("unexpected delivery after cancel: %+v", state)
		}
	default:
	}
}
