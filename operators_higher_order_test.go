package pulse

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/zoobzio/clockz"
)

func TestBufferGroupsAndFlushesTailOnCompletion(t *testing.T) {
	src := fromSlice([]int{1, 2, 3, 4, 5, 6, 7})
	groups, _, done := collect(Pipe2(src, Buffer[int](3)))

	if !done {
		t.Fatal("expected OnDone after the tail flush")
	}
	want := [][]int{{1, 2, 3}, {4, 5, 6}, {7}}
	if len(groups) != len(want) {
		t.Fatalf("expected %v, got %v", want, groups)
	}
	for i := range want {
		if len(groups[i]) != len(want[i]) {
			t.Fatalf("expected %v, got %v", want, groups)
		}
		for j := range want[i] {
			if groups[i][j] != want[i][j] {
				t.Fatalf("expected %v, got %v", want, groups)
			}
		}
	}
}

func TestBufferDoesNotFlushTailOnError(t *testing.T) {
	boom := errors.New("boom")
	src := Create(func(obs Observer[int]) Subscription {
		obs.next(1)
		obs.next(2)
		obs.err(boom)
		return EmptySubscription()
	})

	groups, err, _ := collect(Pipe2(src, Buffer[int](3)))
	if err != boom {
		t.Fatalf("expected error forwarded, got %v", err)
	}
	if len(groups) != 0 {
		t.Fatalf("expected the partial tail to be discarded on error, got %v", groups)
	}
}

func TestBufferZeroCountPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected Buffer(0) to panic at construction")
		}
	}()
	Buffer[int](0)
}

func TestWindowGroupsIntoInnerObservables(t *testing.T) {
	src := fromSlice([]int{1, 2, 3, 4, 5, 6, 7})

	var outerDone bool
	var innerGroups [][]int
	var mu sync.Mutex

	Pipe2(src, Window[int](3)).Subscribe(Observer[Observable[int]]{
		OnNext: func(inner Observable[int]) {
			var group []int
			inner.Subscribe(Observer[int]{
				OnNext: func(v int) { group = append(group, v) },
				OnDone: func() {
					mu.Lock()
					innerGroups = append(innerGroups, group)
					mu.Unlock()
				},
			})
		},
		OnDone: func() { mu.Lock(); outerDone = true; mu.Unlock() },
	})

	mu.Lock()
	defer mu.Unlock()
	if !outerDone {
		t.Fatal("expected the outer observable to complete")
	}
	want := [][]int{{1, 2, 3}, {4, 5, 6}, {7}}
	if len(innerGroups) != len(want) {
		t.Fatalf("expected %v, got %v", want, innerGroups)
	}
	for i := range want {
		for j := range want[i] {
			if innerGroups[i][j] != want[i][j] {
				t.Fatalf("expected %v, got %v", want, innerGroups)
			}
		}
	}
}

func TestSwitchMapCancelsPreviousInner(t *testing.T) {
	clock := clockz.NewFakeClock()
	outer := &pushSource[int]{}

	var mu sync.Mutex
	var values []int

	Pipe2(outer.Observable(), SwitchMap(func(v int) Observable[int] {
		return Pipe2(Timer(80*time.Millisecond, NewImmediate(), clock), Map(func(int) int { return v }))
	})).Subscribe(Observer[int]{
		OnNext: func(v int) { mu.Lock(); values = append(values, v); mu.Unlock() },
	})

	outer.Next(1)
	clock.Advance(20 * time.Millisecond)
	clock.BlockUntilReady()
	time.Sleep(10 * time.Millisecond)

	outer.Next(2)
	clock.Advance(20 * time.Millisecond)
	clock.BlockUntilReady()
	time.Sleep(10 * time.Millisecond)

	outer.Next(3)
	clock.Advance(80 * time.Millisecond)
	clock.BlockUntilReady()
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(values) != 1 || values[0] != 3 {
		t.Fatalf("expected only the final outer value's inner to survive, got %v", values)
	}
}

func TestConcatMapSubscribesSeriallyInArrivalOrder(t *testing.T) {
	src := fromSlice([]int{1, 2, 3})
	result := Pipe2(src, ConcatMap(func(v int) Observable[int] {
		return fromSlice([]int{v * 10, v*10 + 1})
	}))

	values, _, done := collect(result)
	want := []int{10, 11, 20, 21, 30, 31}
	if !done {
		t.Fatal("expected OnDone once outer and all inners complete")
	}
	if len(values) != len(want) {
		t.Fatalf("expected %v, got %v", want, values)
	}
	for i := range want {
		if values[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, values)
		}
	}
}

func TestMergeCompletesOnlyWhenAllSourcesComplete(t *testing.T) {
	a := fromSlice([]int{1, 2})
	b := fromSlice([]int{3, 4})

	values, _, done := collect(Merge(a, b))
	if !done {
		t.Fatal("expected OnDone once both sources complete")
	}
	if len(values) != 4 {
		t.Fatalf("expected 4 merged values, got %v", values)
	}
}

func TestMergePropagatesFirstErrorAndCancelsSiblings(t *testing.T) {
	boom := errors.New("boom")
	a := Create(func(obs Observer[int]) Subscription {
		obs.err(boom)
		return EmptySubscription()
	})
	bCancelled := false
	b := Create(func(obs Observer[int]) Subscription {
		return NewSubscription(func() { bCancelled = true })
	})

	_, err, _ := collect(Merge(a, b))
	if err != boom {
		t.Fatalf("expected first error forwarded, got %v", err)
	}
	if !bCancelled {
		t.Fatal("expected sibling source to be cancelled on first error")
	}
}

func TestCombineLatestEmitsOnceBothHaveAValue(t *testing.T) {
	a := &pushSource[int]{}
	b := &pushSource[string]{}

	var results []string
	CombineLatest(a.Observable(), b.Observable(), func(x int, y string) string {
		return y
	}).Subscribe(Observer[string]{
		OnNext: func(v string) { results = append(results, v) },
	})

	a.Next(1)
	if len(results) != 0 {
		t.Fatalf("expected no emission until both sources have a value, got %v", results)
	}
	b.Next("x")
	if len(results) != 1 || results[0] != "x" {
		t.Fatalf("expected one emission once both have values, got %v", results)
	}
	a.Next(2)
	if len(results) != 2 || results[1] != "x" {
		t.Fatalf("expected combiner called again on second source update, got %v", results)
	}
}

func TestZipPairsHeadsAndCompletesWhenOneSourceDrains(t *testing.T) {
	a := fromSlice([]int{1, 2, 3})
	b := fromSlice([]string{"a", "b"})

	var results []string
	var done bool
	Zip(a, b, func(x int, y string) string { return y }).Subscribe(Observer[string]{
		OnNext: func(v string) { results = append(results, v) },
		OnDone: func() { done = true },
	})

	if !done {
		t.Fatal("expected Zip to complete once the shorter source drains")
	}
	if len(results) != 2 || results[0] != "a" || results[1] != "b" {
		t.Fatalf("expected [a b], got %v", results)
	}
}
