package registry

import (
	"errors"
	"sync"
	"testing"
)

func TestRegistry_Submit_InsertsPending(t *testing.T) {
	r := New[string, int]()

	if !r.Submit("a") {
		t.Fatal("expected first submit to insert")
	}

	status, ok := r.Status("a")
	if !ok || status != StatusPending {
		t.Fatalf("expected pending, got %v (ok=%v)", status, ok)
	}

	c := r.Snapshot()
	if c.Pending != 1 || c.Total() != 1 {
		t.Fatalf("unexpected counts: %+v", c)
	}
}

func TestRegistry_Submit_DuplicateIgnored(t *testing.T) {
	r := New[string, int]()
	r.Submit("a")

	if r.Submit("a") {
		t.Fatal("duplicate submit should be ignored")
	}
	if c := r.Snapshot(); c.Pending != 1 {
		t.Fatalf("expected 1 pending, got %+v", c)
	}
}

func TestRegistry_Submit_FailedKeyNotResubmittable(t *testing.T) {
	r := New[string, int]()
	r.Submit("a")
	r.Begin("a")
	r.Fail("a", errors.New("boom"))

	if r.Submit("a") {
		t.Fatal("failed key must re-enter only via Requeue")
	}
}

func TestRegistry_Lifecycle_FinishedPath(t *testing.T) {
	r := New[string, int]()
	r.Submit("a")
	r.Begin("a")
	r.Complete("a", 42)

	result, ok := r.Result("a")
	if !ok || result != 42 {
		t.Fatalf("expected result 42, got %d (ok=%v)", result, ok)
	}

	c := r.Snapshot()
	if c.Finished != 1 || c.Active() != 0 {
		t.Fatalf("unexpected counts: %+v", c)
	}
}

func TestRegistry_Fail_RecordsAttemptNumber(t *testing.T) {
	r := New[string, int]()
	r.Submit("a")

	cause := errors.New("boom")
	r.Begin("a")
	if attempts := r.Fail("a", cause); attempts != 1 {
		t.Fatalf("expected attempt 1, got %d", attempts)
	}

	failure, ok := r.Failure("a")
	if !ok {
		t.Fatal("expected a stored failure")
	}
	var attemptErr *AttemptError
	if !errors.As(failure, &attemptErr) {
		t.Fatalf("expected *AttemptError, got %T", failure)
	}
	if attemptErr.Attempt != 1 {
		t.Errorf("expected attempt 1, got %d", attemptErr.Attempt)
	}
	if !errors.Is(failure, cause) {
		t.Error("failure should unwrap to the original cause")
	}
}

func TestRegistry_Requeue_OnlyFromFailed(t *testing.T) {
	r := New[string, int]()
	r.Submit("a")

	if r.Requeue("a") {
		t.Fatal("requeue of a pending key should be rejected")
	}
	if r.Requeue("missing") {
		t.Fatal("requeue of an unknown key should be rejected")
	}

	r.Begin("a")
	r.Fail("a", errors.New("boom"))
	if !r.Requeue("a") {
		t.Fatal("requeue of a failed key should succeed")
	}

	status, _ := r.Status("a")
	if status != StatusPending {
		t.Fatalf("expected pending after requeue, got %v", status)
	}
	// Requeued keys are no longer failed, so the failure is not listed.
	if _, ok := r.Failure("a"); ok {
		t.Fatal("requeued key should not report a failure")
	}
}

func TestRegistry_Attempts_AccumulateAcrossRetries(t *testing.T) {
	r := New[string, int]()
	r.Submit("a")

	for i := 1; i <= 3; i++ {
		r.Begin("a")
		if got := r.Fail("a", errors.New("boom")); got != i {
			t.Fatalf("expected attempt %d, got %d", i, got)
		}
		r.Requeue("a")
	}

	if attempts, _ := r.Attempts("a"); attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestRegistry_Complete_ClearsFailure(t *testing.T) {
	r := New[string, int]()
	r.Submit("a")
	r.Begin("a")
	r.Fail("a", errors.New("boom"))
	r.Requeue("a")
	r.Begin("a")
	r.Complete("a", 7)

	if _, ok := r.Failure("a"); ok {
		t.Fatal("completing should clear the stored failure")
	}
	if result, ok := r.Result("a"); !ok || result != 7 {
		t.Fatalf("expected result 7, got %d (ok=%v)", result, ok)
	}
}

func TestRegistry_Begin_PanicsOnNonPending(t *testing.T) {
	r := New[string, int]()
	r.Submit("a")
	r.Begin("a")

	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic for begin on a running key")
		}
	}()
	r.Begin("a")
}

func TestRegistry_ResultsAndFailures_AreCopies(t *testing.T) {
	r := New[string, int]()
	r.Submit("ok")
	r.Begin("ok")
	r.Complete("ok", 1)
	r.Submit("bad")
	r.Begin("bad")
	r.Fail("bad", errors.New("boom"))

	results := r.Results()
	failures := r.Failures()
	if len(results) != 1 || len(failures) != 1 {
		t.Fatalf("expected 1 result and 1 failure, got %d and %d", len(results), len(failures))
	}

	results["mutated"] = 99
	if len(r.Results()) != 1 {
		t.Fatal("mutating the returned map must not affect the registry")
	}

	keys := r.FailedKeys()
	if len(keys) != 1 || keys[0] != "bad" {
		t.Fatalf("unexpected failed keys: %v", keys)
	}
}

func TestRegistry_Changed_WakesOnTransition(t *testing.T) {
	r := New[string, int]()
	changed := r.Changed()

	done := make(chan struct{})
	go func() {
		<-changed
		close(done)
	}()

	r.Submit("a")
	<-done
}

func TestRegistry_ConcurrentSubmits_ExactlyOnce(t *testing.T) {
	r := New[int, int]()

	const goroutines = 16
	var wg sync.WaitGroup
	inserted := make(chan bool, goroutines)
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			inserted <- r.Submit(1)
		}()
	}
	wg.Wait()
	close(inserted)

	wins := 0
	for ok := range inserted {
		if ok {
			wins++
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one successful submit, got %d", wins)
	}
}
