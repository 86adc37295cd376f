package feed

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"

	"qugrow/core"
	"qugrow/core/question"
)

// Page identifies which view is active. Polling only makes sense on the two
// dashboards.
type Page string

const (
	PageLanding Page = "landing"
	PageStudent Page = "student"
	PageTeacher Page = "teacher"
)

var (
	ErrNoClass     = errors.New("user has no class affiliation")
	ErrInvalidPage = errors.New("polling is only available on dashboard pages")
)

type (
	// Session is the logged-in identity the controller polls on behalf of.
	Session struct {
		UserID    int
		ClassName string
	}

	// Fetcher retrieves the current today-feed for a class.
	Fetcher interface {
		FetchToday(ctx context.Context, className string) ([]question.Question, error)
	}

	// List is the visible question list the controller patches. It is the
	// single source of truth for "what is already on screen".
	List interface {
		// IDs reports the question ids currently rendered, in any order.
		IDs() []int
		// Prepend renders items at the top of the list, in the given order.
		Prepend(items []question.Question)
	}

	// Notifier surfaces a transient "n new questions" notice.
	Notifier func(count int)

	// Refresher reloads the page-specific side panels after new items
	// arrive: the weekly ranking on the student page, the aggregate stats
	// on the teacher page.
	Refresher func(page Page)

	Deps struct {
		Fetcher  Fetcher
		List     List
		Notify   Notifier
		Refresh  Refresher
		Logger   core.Logger
		Interval time.Duration // fixed poll interval
		Delay    time.Duration // grace delay before the first fetch
	}

	// Controller keeps a live-feeling feed without a push channel: it polls
	// the today-list, diffs against a high-water mark of already-rendered
	// ids, and merges anything new into the visible list.
	Controller struct {
		deps Deps

		mu        sync.Mutex
		watermark int
		active    bool
		inFlight  bool
		session   *Session
		page      Page
		done      chan struct{}
	}
)

func NewController(deps Deps) *Controller {
	if deps.Interval <= 0 {
		deps.Interval = 3 * time.Second
	}
	if deps.Delay <= 0 {
		deps.Delay = 500 * time.Millisecond
	}
	if deps.Notify == nil {
		deps.Notify = func(int) {}
	}
	if deps.Refresh == nil {
		deps.Refresh = func(Page) {}
	}
	return &Controller{deps: deps}
}

// Start begins polling for sess on the given dashboard page. Restarting is
// idempotent: any previous timer is cancelled first. The watermark is
// recomputed from whatever the list already shows so pre-rendered questions
// are not re-announced, and one fetch is scheduled shortly after start so
// the page does not wait a full interval.
func (c *Controller) Start(sess Session, page Page) error {
	if sess.ClassName == "" {
		return ErrNoClass
	}
	if page != PageStudent && page != PageTeacher {
		return ErrInvalidPage
	}

	c.Stop()

	c.mu.Lock()
	c.session = &sess
	c.page = page
	// a fresh session starts from the rendered list alone; a mark carried
	// over from a previous session would swallow announcements
	c.watermark = 0
	c.raiseWatermarkLocked()
	c.active = true
	c.done = make(chan struct{})
	done := c.done
	c.mu.Unlock()

	go c.run(done)
	return nil
}

// Stop cancels the recurring timer if one is running. Calling it when not
// running is a no-op. An in-flight fetch is not aborted; it only loses its
// future ticks.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

func (c *Controller) stopLocked() {
	if !c.active {
		return
	}
	c.active = false
	if c.done != nil {
		close(c.done)
		c.done = nil
	}
}

// Logout drops the session; the next poll self-terminates the loop.
func (c *Controller) Logout() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = nil
	c.stopLocked()
}

func (c *Controller) run(done chan struct{}) {
	grace := time.NewTimer(c.deps.Delay)
	defer grace.Stop()
	ticker := time.NewTicker(c.deps.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-grace.C:
			c.Poll(context.Background())
		case <-ticker.C:
			c.Poll(context.Background())
		}
	}
}

// Poll is the recurring unit of work. The session precondition is checked at
// invocation time, not only at schedule time: a user may log out while a
// tick is still pending. A tick that fires while a previous fetch is
// outstanding is skipped rather than overlapped.
func (c *Controller) Poll(ctx context.Context) {
	c.mu.Lock()
	if c.session == nil || c.session.ClassName == "" {
		c.stopLocked()
		c.mu.Unlock()
		return
	}
	if c.inFlight {
		c.mu.Unlock()
		return
	}
	c.inFlight = true
	className := c.session.ClassName
	c.mu.Unlock()

	list, err := c.deps.Fetcher.FetchToday(ctx, className)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.inFlight = false

	if err != nil {
		// no state change; polling continues on the existing schedule
		if c.deps.Logger != nil {
			c.deps.Logger.Warn(fmt.Sprintf("feed: poll failed: %v", err))
		}
		return
	}

	// first-contact bootstrap: pre-existing history is not "new"
	if c.watermark == 0 && len(list) > 0 {
		c.watermark = maxID(list)
		return
	}

	fresh := make([]question.Question, 0, len(list))
	for _, q := range list {
		if q.ID > c.watermark {
			fresh = append(fresh, q)
		}
	}
	if len(fresh) == 0 {
		return
	}

	c.insertNewLocked(fresh)
	if max := maxID(fresh); max > c.watermark {
		c.watermark = max
	}
	c.deps.Notify(len(fresh))
	c.deps.Refresh(c.page)
}

// InsertNew merges items known to be above the watermark into the visible
// list, most recent first. Items whose id is already rendered are dropped;
// a manual refresh can race a poll-triggered insert.
func (c *Controller) InsertNew(items []question.Question) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.insertNewLocked(items)
}

func (c *Controller) insertNewLocked(items []question.Question) {
	rendered := make(map[int]struct{})
	for _, id := range c.deps.List.IDs() {
		rendered[id] = struct{}{}
	}

	fresh := make([]question.Question, 0, len(items))
	for _, q := range items {
		if _, ok := rendered[q.ID]; ok {
			continue
		}
		fresh = append(fresh, q)
	}
	if len(fresh) == 0 {
		return
	}

	sort.Slice(fresh, func(i, j int) bool { return fresh[i].ID > fresh[j].ID })
	c.deps.List.Prepend(fresh)
}

// RecomputeWatermark raises the watermark to the maximum id currently
// rendered; it never lowers it. Call after any full-list re-render (initial
// load, date-filtered reload, manual refresh).
func (c *Controller) RecomputeWatermark() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.raiseWatermarkLocked()
}

func (c *Controller) raiseWatermarkLocked() {
	for _, id := range c.deps.List.IDs() {
		if id > c.watermark {
			c.watermark = id
		}
	}
}

func (c *Controller) Watermark() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.watermark
}

func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

func maxID(qs []question.Question) int {
	var max int
	for _, q := range qs {
		if q.ID > max {
			max = q.ID
		}
	}
	return max
}
