package feed

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qugrow/core/question"
)

type fakeList struct {
	mu  sync.Mutex
	ids []int
}

func (l *fakeList) IDs() []int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]int(nil), l.ids...)
}

func (l *fakeList) Prepend(items []question.Question) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ids := make([]int, 0, len(items)+len(l.ids))
	for _, q := range items {
		ids = append(ids, q.ID)
	}
	l.ids = append(ids, l.ids...)
}

type fakeFetcher struct {
	mu    sync.Mutex
	resp  []question.Question
	err   error
	calls int
	block chan struct{} // when set, FetchToday waits on it
}

func (f *fakeFetcher) set(ids ...int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resp = qs(ids...)
}

func (f *fakeFetcher) FetchToday(ctx context.Context, className string) ([]question.Question, error) {
	f.mu.Lock()
	f.calls++
	resp, err, block := f.resp, f.err, f.block
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	return resp, err
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func qs(ids ...int) []question.Question {
	out := make([]question.Question, len(ids))
	for i, id := range ids {
		out[i] = question.Question{ID: id, Content: "q"}
	}
	return out
}

type harness struct {
	ctrl    *Controller
	list    *fakeList
	fetcher *fakeFetcher
	notices []int
	refresh []Page
}

func newHarness(t *testing.T, rendered ...int) *harness {
	t.Helper()
	h := &harness{
		list:    &fakeList{ids: rendered},
		fetcher: &fakeFetcher{},
	}
	h.ctrl = NewController(Deps{
		Fetcher: h.fetcher,
		List:    h.list,
		Notify:  func(n int) { h.notices = append(h.notices, n) },
		Refresh: func(p Page) { h.refresh = append(h.refresh, p) },
		// long enough that the scheduler never fires during direct-Poll tests
		Interval: time.Hour,
		Delay:    time.Hour,
	})
	return h
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	require.NoError(t, h.ctrl.Start(Session{UserID: 1, ClassName: "3-A"}, PageStudent))
	t.Cleanup(h.ctrl.Stop)
}

func TestControllerStartPreconditions(t *testing.T) {
	h := newHarness(t)

	err := h.ctrl.Start(Session{UserID: 1}, PageStudent)
	assert.Equal(t, ErrNoClass, errors.Cause(err))

	err = h.ctrl.Start(Session{UserID: 1, ClassName: "3-A"}, PageLanding)
	assert.Equal(t, ErrInvalidPage, errors.Cause(err))

	assert.False(t, h.ctrl.Active())
}

func TestControllerStartAdoptsRenderedList(t *testing.T) {
	h := newHarness(t, 5, 9, 7)
	h.start(t)

	// pre-rendered questions are not "new"
	assert.Equal(t, 9, h.ctrl.Watermark())
	assert.True(t, h.ctrl.Active())
}

func TestControllerBootstrapWithoutNotification(t *testing.T) {
	h := newHarness(t)
	h.start(t)
	require.Equal(t, 0, h.ctrl.Watermark())

	h.fetcher.set(1, 2, 3)
	h.ctrl.Poll(context.Background())

	assert.Equal(t, 3, h.ctrl.Watermark())
	assert.Empty(t, h.notices, "first contact must not announce history")
	assert.Empty(t, h.refresh)
	assert.Empty(t, h.list.IDs(), "bootstrap only seeds the watermark")
}

func TestControllerPollMergesNewItems(t *testing.T) {
	h := newHarness(t, 5, 7, 9)
	h.start(t)

	h.fetcher.set(5, 7, 9, 12, 13)
	h.ctrl.Poll(context.Background())

	assert.Equal(t, []int{13, 12, 5, 7, 9}, h.list.IDs(), "new items prepend most recent first")
	assert.Equal(t, 13, h.ctrl.Watermark())
	assert.Equal(t, []int{2}, h.notices)
	assert.Equal(t, []Page{PageStudent}, h.refresh)
}

func TestControllerPollNoopWhenNothingNew(t *testing.T) {
	h := newHarness(t, 5, 7, 9)
	h.start(t)

	h.fetcher.set(5, 7, 9)
	h.ctrl.Poll(context.Background())

	assert.Equal(t, []int{5, 7, 9}, h.list.IDs())
	assert.Equal(t, 9, h.ctrl.Watermark())
	assert.Empty(t, h.notices)
}

func TestControllerPollSurvivesFetchFailure(t *testing.T) {
	h := newHarness(t, 5)
	h.start(t)

	h.fetcher.err = errors.New("boom")
	h.ctrl.Poll(context.Background())

	assert.Equal(t, 5, h.ctrl.Watermark())
	assert.True(t, h.ctrl.Active(), "a failed poll must not stop the schedule")
	assert.Empty(t, h.notices)

	h.fetcher.err = nil
	h.fetcher.set(5, 6)
	h.ctrl.Poll(context.Background())
	assert.Equal(t, 6, h.ctrl.Watermark())
}

func TestControllerInsertNewDropsDuplicates(t *testing.T) {
	h := newHarness(t, 10, 8)

	h.ctrl.InsertNew(qs(8, 11, 12))

	assert.Equal(t, []int{12, 11, 10, 8}, h.list.IDs())
}

func TestControllerWatermarkNeverLowers(t *testing.T) {
	h := newHarness(t, 42)
	h.ctrl.RecomputeWatermark()
	require.Equal(t, 42, h.ctrl.Watermark())

	// list shrank (e.g. a date-filtered re-render of an older day)
	h.list.mu.Lock()
	h.list.ids = []int{3, 4}
	h.list.mu.Unlock()
	h.ctrl.RecomputeWatermark()

	assert.Equal(t, 42, h.ctrl.Watermark())
}

func TestControllerStopIsIdempotent(t *testing.T) {
	h := newHarness(t)
	h.start(t)

	h.ctrl.Stop()
	h.ctrl.Stop()
	assert.False(t, h.ctrl.Active())
}

func TestControllerPollAfterLogoutStops(t *testing.T) {
	h := newHarness(t, 5)
	h.start(t)

	h.ctrl.Logout()
	h.fetcher.set(5, 6)
	h.ctrl.Poll(context.Background())

	assert.False(t, h.ctrl.Active())
	assert.Equal(t, 0, h.fetcher.callCount(), "no fetch without a session")
	assert.Equal(t, 5, h.ctrl.Watermark())
}

func TestControllerSkipsOverlappingPolls(t *testing.T) {
	h := newHarness(t, 5)
	h.start(t)

	block := make(chan struct{})
	h.fetcher.mu.Lock()
	h.fetcher.block = block
	h.fetcher.mu.Unlock()
	h.fetcher.set(5, 6)

	done := make(chan struct{})
	go func() {
		h.ctrl.Poll(context.Background())
		close(done)
	}()

	// wait for the first poll to enter the fetch
	require.Eventually(t, func() bool { return h.fetcher.callCount() == 1 },
		time.Second, 5*time.Millisecond)

	// a tick arriving now is skipped, not queued
	h.ctrl.Poll(context.Background())
	assert.Equal(t, 1, h.fetcher.callCount())

	close(block)
	<-done
	assert.Equal(t, 6, h.ctrl.Watermark())
}

func TestControllerRestartCancelsPreviousTimer(t *testing.T) {
	h := newHarness(t, 5)
	h.start(t)
	require.NoError(t, h.ctrl.Start(Session{UserID: 2, ClassName: "3-B"}, PageTeacher))
	defer h.ctrl.Stop()

	assert.Equal(t, 5, h.ctrl.Watermark(), "restart recomputes from the rendered list")

	h.fetcher.set(5, 6)
	h.ctrl.Poll(context.Background())
	assert.Equal(t, []Page{PageTeacher}, h.refresh, "restart replaces the session and page")
}

func TestControllerRestartResetsWatermark(t *testing.T) {
	h := newHarness(t, 42)
	h.start(t)
	require.Equal(t, 42, h.ctrl.Watermark())
	h.ctrl.Stop()

	// a different user signs in on the same page; the old list is gone
	h.list.mu.Lock()
	h.list.ids = nil
	h.list.mu.Unlock()
	require.NoError(t, h.ctrl.Start(Session{UserID: 2, ClassName: "1-B"}, PageStudent))
	defer h.ctrl.Stop()

	assert.Equal(t, 0, h.ctrl.Watermark(), "nothing rendered means a zero mark")

	// first contact seeds silently, then new arrivals are announced again
	h.fetcher.set(7, 8)
	h.ctrl.Poll(context.Background())
	require.Equal(t, 8, h.ctrl.Watermark())
	require.Empty(t, h.notices)

	h.fetcher.set(7, 8, 9)
	h.ctrl.Poll(context.Background())
	assert.Equal(t, []int{9}, h.list.IDs())
	assert.Equal(t, []int{1}, h.notices, "the new session's questions are not suppressed by the old mark")
}

func TestControllerScheduledPolling(t *testing.T) {
	list := &fakeList{}
	fetcher := &fakeFetcher{}
	fetcher.set(1, 2)

	var mu sync.Mutex
	var notices []int
	ctrl := NewController(Deps{
		Fetcher:  fetcher,
		List:     list,
		Notify:   func(n int) { mu.Lock(); notices = append(notices, n); mu.Unlock() },
		Interval: 10 * time.Millisecond,
		Delay:    time.Millisecond,
	})
	require.NoError(t, ctrl.Start(Session{UserID: 1, ClassName: "3-A"}, PageStudent))
	defer ctrl.Stop()

	// bootstrap tick, then a fresh question lands
	require.Eventually(t, func() bool { return ctrl.Watermark() == 2 },
		time.Second, time.Millisecond)
	fetcher.set(1, 2, 3)
	require.Eventually(t, func() bool { return ctrl.Watermark() == 3 },
		time.Second, time.Millisecond)

	ctrl.Stop()
	calls := fetcher.callCount()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, calls, fetcher.callCount(), "no fetches after stop")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1}, notices)
}
