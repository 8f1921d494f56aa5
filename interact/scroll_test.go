package interact

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fakeScrollDriver replays scripted scroll offsets and selector counts. Once
// a script is exhausted its last value repeats forever, which is how a page
// that stopped loading behaves.
type fakeScrollDriver struct {
	tops   []float64
	counts []int

	topIdx   int
	countIdx int

	scrollByCalls     int
	scrollBottomCalls int
	countCalls        int
}

func (f *fakeScrollDriver) Count(ctx context.Context, selector string) (int, error) {
	f.countCalls++
	n := f.counts[f.countIdx]
	if f.countIdx < len(f.counts)-1 {
		f.countIdx++
	}
	return n, nil
}

func (f *fakeScrollDriver) ScrollBy(ctx context.Context, dx, dy int) error {
	f.scrollByCalls++
	return nil
}

func (f *fakeScrollDriver) ScrollTo(ctx context.Context, x, y int) error { return nil }

func (f *fakeScrollDriver) ScrollToBottom(ctx context.Context) error {
	f.scrollBottomCalls++
	return nil
}

func (f *fakeScrollDriver) ScrollToTop(ctx context.Context) error { return nil }

func (f *fakeScrollDriver) ScrollTop(ctx context.Context) (float64, error) {
	top := f.tops[f.topIdx]
	if f.topIdx < len(f.tops)-1 {
		f.topIdx++
	}
	return top, nil
}

func (f *fakeScrollDriver) ScrollHeight(ctx context.Context) (float64, error) {
	return 10000, nil
}

// risingTops returns n strictly increasing offsets, keeping the position
// signal from firing while a test exercises the count signal.
func risingTops(n int) []float64 {
	tops := make([]float64, n)
	for i := range tops {
		tops[i] = float64((i + 1) * 100)
	}
	return tops
}

func TestStabilize_StopsAfterSameTopStreak(t *testing.T) {
	drv := &fakeScrollDriver{tops: []float64{100, 200, 300}}
	s := NewScroller(drv, nil)

	err := s.Stabilize(context.Background(), ScrollConfig{
		ScrollStep:       400,
		LoadWait:         time.Millisecond,
		SameTopThreshold: 3,
	})
	if err != nil {
		t.Fatalf("Stabilize returned error: %v", err)
	}

	// Offsets 100, 200, 300 then 300 forever: three changing reads plus
	// three reads equal to the previous one. Six cycles, six scrolls.
	if drv.scrollByCalls != 6 {
		t.Errorf("expected 6 scroll steps, got %d", drv.scrollByCalls)
	}
}

func TestStabilize_ZeroStepJumpsToBottom(t *testing.T) {
	drv := &fakeScrollDriver{tops: []float64{500}}
	s := NewScroller(drv, nil)

	err := s.Stabilize(context.Background(), ScrollConfig{
		LoadWait:         time.Millisecond,
		SameTopThreshold: 2,
	})
	if err != nil {
		t.Fatalf("Stabilize returned error: %v", err)
	}
	if drv.scrollBottomCalls == 0 {
		t.Error("expected ScrollToBottom to be used when ScrollStep is zero")
	}
	if drv.scrollByCalls != 0 {
		t.Errorf("expected no ScrollBy calls, got %d", drv.scrollByCalls)
	}
}

func TestStabilizeOnSelector_StopsWhenCountStopsGrowing(t *testing.T) {
	drv := &fakeScrollDriver{
		tops:   risingTops(100),
		counts: []int{5, 8, 10},
	}
	s := NewScroller(drv, nil)

	count, err := s.StabilizeOnSelector(context.Background(), "li.item", ScrollConfig{
		ScrollStep:         400,
		LoadWait:           time.Millisecond,
		CountCheckEvery:    1,
		SameCountThreshold: 3,
	})
	if err != nil {
		t.Fatalf("StabilizeOnSelector returned error: %v", err)
	}
	if count != 10 {
		t.Errorf("expected final count 10, got %d", count)
	}
	// Counts 5, 8, 10 then 10 forever: three changing polls plus three
	// unchanged polls.
	if drv.countCalls != 6 {
		t.Errorf("expected 6 count polls, got %d", drv.countCalls)
	}
	// The run returns during the sixth poll, before that cycle scrolls.
	if drv.scrollByCalls != 5 {
		t.Errorf("expected 5 scroll steps, got %d", drv.scrollByCalls)
	}
}

func TestStabilizeOnSelector_DefaultThresholdIsTenFlatPolls(t *testing.T) {
	drv := &fakeScrollDriver{
		tops:   risingTops(100),
		counts: []int{4},
	}
	s := NewScroller(drv, nil)

	count, err := s.StabilizeOnSelector(context.Background(), "li", ScrollConfig{
		ScrollStep:      400,
		LoadWait:        time.Millisecond,
		CountCheckEvery: 1,
		// SameCountThreshold left zero: the default of 10 applies.
	})
	if err != nil {
		t.Fatalf("StabilizeOnSelector returned error: %v", err)
	}
	if count != 4 {
		t.Errorf("expected final count 4, got %d", count)
	}
	// One poll to set the baseline, then ten unchanged polls.
	if drv.countCalls != 11 {
		t.Errorf("expected 11 count polls, got %d", drv.countCalls)
	}
}

func TestStabilizeOnSelector_RespectsCountCheckEvery(t *testing.T) {
	drv := &fakeScrollDriver{
		tops:   risingTops(100),
		counts: []int{7},
	}
	s := NewScroller(drv, nil)

	_, err := s.StabilizeOnSelector(context.Background(), "li", ScrollConfig{
		ScrollStep:         400,
		LoadWait:           time.Millisecond,
		CountCheckEvery:    5,
		SameCountThreshold: 2,
	})
	if err != nil {
		t.Fatalf("StabilizeOnSelector returned error: %v", err)
	}
	// Polls happen on cycles 5, 10, 15: first sets the baseline, the next
	// two build the streak of 2.
	if drv.countCalls != 3 {
		t.Errorf("expected 3 count polls, got %d", drv.countCalls)
	}
	if drv.scrollByCalls != 14 {
		t.Errorf("expected 14 scroll steps, got %d", drv.scrollByCalls)
	}
}

func TestStabilizeOnSelector_StopsAtTarget(t *testing.T) {
	drv := &fakeScrollDriver{
		tops:   risingTops(100),
		counts: []int{5, 8, 12},
	}
	s := NewScroller(drv, nil)

	count, err := s.StabilizeOnSelector(context.Background(), "li", ScrollConfig{
		ScrollStep:      400,
		LoadWait:        time.Millisecond,
		CountCheckEvery: 1,
		Target:          8,
	})
	if err != nil {
		t.Fatalf("StabilizeOnSelector returned error: %v", err)
	}
	if count != 8 {
		t.Errorf("expected count 8 at target stop, got %d", count)
	}
	if drv.countCalls != 2 {
		t.Errorf("expected 2 count polls, got %d", drv.countCalls)
	}
}

func TestStabilizeOnSelector_RejectsBadSelector(t *testing.T) {
	s := NewScroller(&fakeScrollDriver{tops: []float64{0}}, nil)

	if _, err := s.StabilizeOnSelector(context.Background(), "li[", ScrollConfig{}); err == nil {
		t.Error("expected an error for an unparsable selector")
	}
	if _, err := s.StabilizeOnSelector(context.Background(), "  ", ScrollConfig{}); err == nil {
		t.Error("expected an error for a blank selector")
	}
}

func TestStabilize_CallbackErrorAbortsRun(t *testing.T) {
	drv := &fakeScrollDriver{tops: risingTops(100)}
	s := NewScroller(drv, nil)

	boom := errors.New("cycle budget spent")
	cycles := 0
	err := s.Stabilize(context.Background(), ScrollConfig{
		ScrollStep: 400,
		LoadWait:   time.Millisecond,
		Callbacks: []Callback{func(ctx context.Context) error {
			cycles++
			if cycles >= 3 {
				return boom
			}
			return nil
		}},
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected callback error, got %v", err)
	}
	if drv.scrollByCalls != 3 {
		t.Errorf("expected 3 scroll steps before abort, got %d", drv.scrollByCalls)
	}
}

func TestStabilize_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewScroller(&fakeScrollDriver{tops: risingTops(10)}, nil)
	err := s.Stabilize(ctx, ScrollConfig{ScrollStep: 400, LoadWait: time.Millisecond})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
