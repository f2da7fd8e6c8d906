package bus

import (
	"context"
	"errors"
	"testing"
)

func TestOnEmitOrder(t *testing.T) {
	b := New[int](8, DropOldest)
	var order []int
	b.On(func(v int) error { order = append(order, v*10+1); return nil })
	b.On(func(v int) error { order = append(order, v*10+2); return nil })
	b.Emit(1)
	want := []int{11, 12}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %d, want %d", i, order[i], want[i])
		}
	}
}

func TestOnceDisposesAfterFirst(t *testing.T) {
	b := New[int](8, DropOldest)
	count := 0
	b.Once(func(v int) error { count++; return nil })
	b.Emit(1)
	b.Emit(2)
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}

func TestHandlerErrorDoesNotBlockOthers(t *testing.T) {
	b := New[int](8, DropOldest)
	var secondRan bool
	b.On(func(v int) error { return errors.New("boom") })
	b.On(func(v int) error { secondRan = true; return nil })
	b.Emit(1)
	if !secondRan {
		t.Error("second handler did not run after first errored")
	}
}

func TestCompletePreventsNewHandlers(t *testing.T) {
	b := New[int](8, DropOldest)
	b.Complete()
	var ran bool
	b.On(func(v int) error { ran = true; return nil })
	b.Emit(1)
	if ran {
		t.Error("handler registered after Complete ran")
	}
}

func TestAsyncSequenceDrainsInOrder(t *testing.T) {
	b := New[int](8, DropOldest)
	b.Emit(1)
	b.Emit(2)
	ctx := context.Background()
	v, ok := b.Next(ctx)
	if !ok || v != 1 {
		t.Fatalf("Next() = %d,%v want 1,true", v, ok)
	}
	v, ok = b.Next(ctx)
	if !ok || v != 2 {
		t.Fatalf("Next() = %d,%v want 2,true", v, ok)
	}
}

func TestAsyncSequenceEndsOnComplete(t *testing.T) {
	b := New[int](8, DropOldest)
	b.Complete()
	_, ok := b.Next(context.Background())
	if ok {
		t.Error("Next() on completed empty bus should return ok=false")
	}
}

func TestDropOldestOverflow(t *testing.T) {
	b := New[int](2, DropOldest)
	b.Emit(1)
	b.Emit(2)
	b.Emit(3) // should drop 1
	ctx := context.Background()
	v, _ := b.Next(ctx)
	if v != 2 {
		t.Errorf("oldest surviving value = %d, want 2", v)
	}
	if b.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", b.Dropped())
	}
}
