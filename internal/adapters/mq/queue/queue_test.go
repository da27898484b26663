package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/botscope/internal/domain/model"
)

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if l := q.Len(); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}

	if err := q.Put(ctx, model.PlayerTask{Seq: 1, PlayerID: "p1"}); err != nil {
		t.Errorf("expected put to succeed, got %v", err)
	}
	if l := q.Len(); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	task := <-q.Dequeue()
	if task.PlayerID != "p1" || task.Seq != 1 {
		t.Errorf("expected p1/1, got %+v", task)
	}
	if l := q.Len(); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
}

func TestInMemoryQueue_CapacityAndOrder(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	_ = q.Put(ctx, model.PlayerTask{Seq: 1, PlayerID: "a"})
	_ = q.Put(ctx, model.PlayerTask{Seq: 2, PlayerID: "b"})
	if l := q.Len(); l != 2 {
		t.Errorf("expected length 2, got %d", l)
	}
	full, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	if err := q.Put(full, model.PlayerTask{Seq: 3, PlayerID: "c"}); err == nil {
		t.Error("expected put beyond capacity to fail")
	}

	if err := q.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	var got []string
	for task := range q.Dequeue() {
		got = append(got, task.PlayerID)
	}
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("expected [a b] after close, got %v", got)
	}
}

func TestInMemoryQueue_PutWaitsForSpace(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(1))
	ctx := context.Background()

	if err := q.Put(ctx, model.PlayerTask{Seq: 1, PlayerID: "a"}); err != nil {
		t.Fatalf("put: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- q.Put(ctx, model.PlayerTask{Seq: 2, PlayerID: "b"}) }()

	select {
	case <-done:
		t.Fatal("put returned while the queue was full")
	case <-time.After(20 * time.Millisecond):
	}

	<-q.Dequeue()
	if err := <-done; err != nil {
		t.Fatalf("put after space freed: %v", err)
	}
}

func TestInMemoryQueue_PutHonorsContext(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(1))
	_ = q.Put(context.Background(), model.PlayerTask{PlayerID: "a"})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := q.Put(ctx, model.PlayerTask{PlayerID: "b"}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestInMemoryQueue_Closed(t *testing.T) {
	q := NewInMemoryQueue()
	_ = q.Close()
	_ = q.Close()

	if err := q.Put(context.Background(), model.PlayerTask{PlayerID: "a"}); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}
