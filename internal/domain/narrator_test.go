package domain

import (
	"errors"
	"sync"
	"testing"
)

func TestNarratorAccumulator_AddTime(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		deltas  []int64
		want    int64
		wantErr bool
	}{
		{name: "single delta", deltas: []int64{30}, want: 30},
		{name: "zero delta", deltas: []int64{0}, want: 0},
		{name: "additive", deltas: []int64{10, 25}, want: 35},
		{name: "negative rejected", deltas: []int64{10, -5}, want: 10, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			n := NewNarratorAccumulator("1")
			var gotErr error
			for _, d := range tt.deltas {
				if err := n.AddTime(d); err != nil {
					gotErr = err
				}
			}
			if tt.wantErr != (gotErr != nil) {
				t.Fatalf("err = %v, wantErr %v", gotErr, tt.wantErr)
			}
			if gotErr != nil && !errors.Is(gotErr, ErrInvalidInput) {
				t.Errorf("err = %v, want ErrInvalidInput", gotErr)
			}
			if got := n.Time(); got != tt.want {
				t.Errorf("Time() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestNarratorAccumulator_AddTimeSplitEqualsSum(t *testing.T) {
	t.Parallel()

	a := NewNarratorAccumulator("1")
	b := NewNarratorAccumulator("1")
	for _, d := range []int64{17, 4000} {
		if err := a.AddTime(d); err != nil {
			t.Fatal(err)
		}
	}
	if err := b.AddTime(4017); err != nil {
		t.Fatal(err)
	}
	if a.Time() != b.Time() {
		t.Errorf("split = %d, single = %d", a.Time(), b.Time())
	}
}

func TestNarratorAccumulator_SetTime(t *testing.T) {
	t.Parallel()

	n := NewNarratorAccumulator("1")
	_ = n.AddTime(100)
	if err := n.SetTime(-1); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("SetTime(-1) err = %v, want ErrInvalidInput", err)
	}
	if n.Time() != 100 {
		t.Errorf("Time() = %d after rejected set, want 100", n.Time())
	}
	if err := n.SetTime(7); err != nil {
		t.Fatal(err)
	}
	if n.Time() != 7 {
		t.Errorf("Time() = %d, want 7", n.Time())
	}
}

func TestNarratorAccumulator_Narrated(t *testing.T) {
	t.Parallel()

	n := NewNarratorAccumulator("42")
	if n.Time() != 0 || n.LastNarration() != 0 {
		t.Fatalf("fresh accumulator = %+v", n.Record())
	}
	if err := n.Narrated(1000, 120); err != nil {
		t.Fatal(err)
	}
	if got := n.Record(); got.Time != 120 || got.LastNarration != 1000 {
		t.Errorf("after first narration = %+v, want time=120 last=1000", got)
	}
	if err := n.Narrated(1500, 30); err != nil {
		t.Fatal(err)
	}
	if got := n.Record(); got.Time != 150 || got.LastNarration != 1500 {
		t.Errorf("after second narration = %+v, want time=150 last=1500", got)
	}
	if err := n.Narrated(2000, -1); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("negative duration err = %v", err)
	}
	if got := n.Record(); got.Time != 150 || got.LastNarration != 1500 {
		t.Errorf("rejected narration mutated state: %+v", got)
	}
}

func TestNarratorAccumulator_ActiveAt(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		last   int64
		now    int64
		window int64
		want   bool
	}{
		{name: "never narrated", last: 0, now: 100, window: 1000, want: false},
		{name: "inside window", last: 500, now: 1000, window: 600, want: true},
		{name: "window edge", last: 400, now: 1000, window: 600, want: true},
		{name: "lapsed", last: 399, now: 1000, window: 600, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			n := NewNarratorAccumulator("1")
			_ = n.SetLastNarration(tt.last)
			if got := n.ActiveAt(tt.now, tt.window); got != tt.want {
				t.Errorf("ActiveAt = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNarratorAccumulator_ConcurrentAdds(t *testing.T) {
	t.Parallel()

	n := NewNarratorAccumulator("1")
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = n.AddTime(2)
		}()
	}
	wg.Wait()
	if n.Time() != 100 {
		t.Errorf("Time() = %d, want 100", n.Time())
	}
}

func TestRestoreNarrator(t *testing.T) {
	t.Parallel()

	if _, err := RestoreNarrator(NarratorRecord{UserID: "1", Time: -3}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("negative time err = %v", err)
	}
	n, err := RestoreNarrator(NarratorRecord{UserID: "9", Time: 60, LastNarration: 77})
	if err != nil {
		t.Fatal(err)
	}
	if got := n.Record(); got != (NarratorRecord{UserID: "9", Time: 60, LastNarration: 77}) {
		t.Errorf("Record() = %+v", got)
	}
}
