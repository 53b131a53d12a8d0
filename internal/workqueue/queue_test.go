package workqueue

import (
	"sync"
	"testing"
	"time"
)

func TestQueue_FIFOOrder(t *testing.T) {
	q := New[int]()
	for i := 0; i < 10; i++ {
		q.Push(i)
	}

	for want := 0; want < 10; want++ {
		got, ok := q.TryPop()
		if !ok {
			t.Fatalf("queue empty at %d", want)
		}
		if got != want {
			t.Fatalf("expected %d, got %d", want, got)
		}
	}
	if _, ok := q.TryPop(); ok {
		t.Fatal("expected empty queue")
	}
}

func TestQueue_TryPop_EmptyDoesNotBlock(t *testing.T) {
	q := New[string]()
	if key, ok := q.TryPop(); ok {
		t.Fatalf("expected empty, got %q", key)
	}
}

func TestQueue_PushMany_KeepsOrder(t *testing.T) {
	q := New[int]()
	q.Push(0)
	q.PushMany([]int{1, 2, 3})
	q.PushMany(nil)

	if q.Len() != 4 {
		t.Fatalf("expected 4 entries, got %d", q.Len())
	}
	for want := 0; want < 4; want++ {
		if got, _ := q.TryPop(); got != want {
			t.Fatalf("expected %d, got %d", want, got)
		}
	}
}

func TestQueue_Notify_WakesOnPush(t *testing.T) {
	q := New[int]()
	notify := q.Notify()

	done := make(chan int)
	go func() {
		<-notify
		key, _ := q.TryPop()
		done <- key
	}()

	q.Push(7)
	if got := <-done; got != 7 {
		t.Fatalf("expected 7, got %d", got)
	}
}

func TestQueue_PushMany_WakesAllWaiters(t *testing.T) {
	q := New[int]()
	notify := q.Notify()

	const waiters = 4
	var wg sync.WaitGroup
	for w := 0; w < waiters; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-notify
		}()
	}

	q.PushMany([]int{1, 2, 3})

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("not every waiter woke on PushMany")
	}

	// After the wake the queue hands out a fresh, open channel.
	select {
	case <-q.Notify():
		t.Fatal("notify channel should be open until the next push")
	default:
	}
}

func TestQueue_ConcurrentPushPop_NothingLost(t *testing.T) {
	q := New[int]()
	const producers = 8
	const perProducer = 1000

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		p := p
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Push(p*perProducer + i)
			}
		}()
	}
	wg.Wait()

	seen := make(map[int]bool, producers*perProducer)
	var mu sync.Mutex
	var consumers sync.WaitGroup
	for c := 0; c < 4; c++ {
		consumers.Add(1)
		go func() {
			defer consumers.Done()
			for {
				key, ok := q.TryPop()
				if !ok {
					return
				}
				mu.Lock()
				if seen[key] {
					t.Errorf("key %d popped twice", key)
				}
				seen[key] = true
				mu.Unlock()
			}
		}()
	}
	consumers.Wait()

	if len(seen) != producers*perProducer {
		t.Fatalf("expected %d unique keys, got %d", producers*perProducer, len(seen))
	}
	if q.Len() != 0 {
		t.Fatalf("expected drained queue, got %d", q.Len())
	}
}

func TestQueue_Compaction_PreservesContents(t *testing.T) {
	q := New[int]()
	const n = 8192
	for i := 0; i < n; i++ {
		q.Push(i)
	}
	// Drain past the compaction threshold while pushing more.
	for i := 0; i < n; i++ {
		got, ok := q.TryPop()
		if !ok || got != i {
			t.Fatalf("expected %d, got %d (ok=%v)", i, got, ok)
		}
		if i%2 == 0 {
			q.Push(n + i)
		}
	}
	if q.Len() != n/2 {
		t.Fatalf("expected %d remaining, got %d", n/2, q.Len())
	}
}
