package pulse

import (
	"errors"
	"testing"
)

func TestSubjectFansOutToAllSubscribers(t *testing.T) {
	s := NewSubject[int]()
	var a, b []int

	s.Subscribe(Observer[int]{OnNext: func(v int) { a = append(a, v) }})
	s.Subscribe(Observer[int]{OnNext: func(v int) { b = append(b, v) }})

	s.Next(1)
	s.Next(2)

	if len(a) != 2 || len(b) != 2 {
		t.Fatalf("expected both subscribers to see both values, got a=%v b=%v", a, b)
	}
}

func TestSubjectLateSubscriberAfterCompleteGetsDoneImmediately(t *testing.T) {
	s := NewSubject[int]()
	s.Complete()

	gotDone := false
	sub := s.Subscribe(Observer[int]{OnDone: func() { gotDone = true }})

	if !gotDone {
		t.Fatal("expected immediate OnDone for a subscriber joining after Complete")
	}
	if sub.Valid() {
		t.Fatal("expected no live slot to be created for a late subscriber")
	}
}

func TestSubjectLateSubscriberAfterErrorGetsLatchedError(t *testing.T) {
	boom := errors.New("boom")
	s := NewSubject[int]()
	s.Error(boom)

	var gotErr error
	s.Subscribe(Observer[int]{OnErr: func(e error) { gotErr = e }})

	if gotErr != boom {
		t.Fatalf("expected latched error %v, got %v", boom, gotErr)
	}
}

func TestSubjectUnsubscribeRemovesSlot(t *testing.T) {
	s := NewSubject[int]()
	var values []int
	sub := s.Subscribe(Observer[int]{OnNext: func(v int) { values = append(values, v) }})

	s.Next(1)
	sub.Reset()
	s.Next(2)

	if len(values) != 1 || values[0] != 1 {
		t.Fatalf("expected delivery to stop after unsubscribe, got %v", values)
	}
}
