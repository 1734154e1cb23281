package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestChunkQueuePopsInPushOrder(t *testing.T) {
	q := queueWith("a", "b", "c")
	for _, want := range []string{"a", "b", "c"} {
		chunk, status := q.Pop(context.Background(), 10*time.Millisecond)
		if status != PopChunk {
			t.Fatalf("expected chunk, got %s", status)
		}
		if string(chunk) != want {
			t.Fatalf("expected %q, got %q", want, chunk)
		}
	}
}

func TestChunkQueuePopReportsEmptyOnTimeout(t *testing.T) {
	q := NewChunkQueue()
	start := time.Now()
	chunk, status := q.Pop(context.Background(), 20*time.Millisecond)
	if status != PopEmpty || chunk != nil {
		t.Fatalf("expected empty pop, got %s %q", status, chunk)
	}
	if time.Since(start) < 15*time.Millisecond {
		t.Fatal("pop returned before the timeout elapsed")
	}
}

func TestChunkQueueDrainsBeforeReportingClosed(t *testing.T) {
	q := queueWith("a", "b")
	if !q.Close() {
		t.Fatal("expected first close to report true")
	}
	if q.Close() {
		t.Fatal("expected second close to report false")
	}

	var got []string
	for {
		chunk, status := q.Pop(context.Background(), 10*time.Millisecond)
		if status == PopClosed {
			break
		}
		if status != PopChunk {
			t.Fatalf("unexpected status %s", status)
		}
		got = append(got, string(chunk))
	}
	if fmt.Sprint(got) != "[a b]" {
		t.Fatalf("unexpected drained chunks: %v", got)
	}
	if _, status := q.Pop(context.Background(), 10*time.Millisecond); status != PopClosed {
		t.Fatalf("expected closed queue to stay closed, got %s", status)
	}
}

func TestChunkQueuePushAfterCloseFails(t *testing.T) {
	q := NewChunkQueue()
	q.Close()
	if err := q.Push([]byte("late")); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("expected ErrQueueClosed, got %v", err)
	}
}

func TestChunkQueueRequeuePutsChunkAtHead(t *testing.T) {
	q := queueWith("b", "c")
	q.Close()
	q.Requeue([]byte("a"))

	chunk, status := q.Pop(context.Background(), 10*time.Millisecond)
	if status != PopChunk || string(chunk) != "a" {
		t.Fatalf("expected requeued chunk first, got %s %q", status, chunk)
	}
	if q.Len() != 2 {
		t.Fatalf("expected 2 remaining chunks, got %d", q.Len())
	}
}

func TestChunkQueuePopWakesOnPush(t *testing.T) {
	q := NewChunkQueue()
	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = q.Push([]byte("x"))
	}()
	chunk, status := q.Pop(context.Background(), time.Second)
	if status != PopChunk || string(chunk) != "x" {
		t.Fatalf("expected pushed chunk, got %s %q", status, chunk)
	}
}

func TestChunkQueuePopReturnsOnCancel(t *testing.T) {
	q := NewChunkQueue()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	if _, status := q.Pop(ctx, time.Second); status != PopEmpty {
		t.Fatalf("expected empty on cancel, got %s", status)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Fatal("pop did not honor cancellation")
	}
}

func TestChunkQueueConcurrentProducerKeepsOrder(t *testing.T) {
	q := NewChunkQueue()
	const total = 500

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < total; i++ {
			_ = q.Push([]byte(fmt.Sprint(i)))
		}
		q.Close()
	}()

	next := 0
	for {
		chunk, status := q.Pop(context.Background(), 50*time.Millisecond)
		if status == PopClosed {
			break
		}
		if status == PopEmpty {
			continue
		}
		if string(chunk) != fmt.Sprint(next) {
			t.Fatalf("expected chunk %d, got %s", next, chunk)
		}
		next++
	}
	wg.Wait()
	if next != total {
		t.Fatalf("expected %d chunks, got %d", total, next)
	}
}
