package api

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-co-op/gocron"
	"github.com/google/uuid"

	"github.com/rootline/rootline/pkg/tree"
)

// viewStore keeps server-side tree views by id.
type viewStore struct {
	newView func() *tree.View
	ttl     time.Duration
	now     func() time.Time
	logger  *log.Logger

	mu    sync.Mutex
	views map[string]*viewEntry

	scheduler *gocron.Scheduler
}

type viewEntry struct {
	view     *tree.View
	ownerID  string
	lastUsed time.Time
}

func newViewStore(newView func() *tree.View, ttl time.Duration, logger *log.Logger) *viewStore {
	return &viewStore{
		newView: newView,
		ttl:     ttl,
		now:     time.Now,
		logger:  logger,
		views:   make(map[string]*viewEntry),
	}
}

// open returns the view for id if it exists and belongs to ownerID, or a new
// view with a fresh id.
func (s *viewStore) open(id, ownerID string) (string, *tree.View) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.views[id]; ok && e.ownerID == ownerID {
		e.lastUsed = s.now()
		return id, e.view
	}
	id = uuid.NewString()
	v := s.newView()
	s.views[id] = &viewEntry{view: v, ownerID: ownerID, lastUsed: s.now()}
	return id, v
}

// get returns an existing view for ownerID.
func (s *viewStore) get(id, ownerID string) (*tree.View, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.views[id]
	if !ok || e.ownerID != ownerID {
		return nil, false
	}
	e.lastUsed = s.now()
	return e.view, true
}

// drop closes and removes a view.
func (s *viewStore) drop(id string) bool {
	s.mu.Lock()
	e, ok := s.views[id]
	delete(s.views, id)
	s.mu.Unlock()
	if ok {
		e.view.Close()
	}
	return ok
}

func (s *viewStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.views)
}

// sweep closes views idle for longer than the ttl and returns how many it
// closed.
func (s *viewStore) sweep() int {
	cutoff := s.now().Add(-s.ttl)
	var stale []*tree.View

	s.mu.Lock()
	for id, e := range s.views {
		if e.lastUsed.Before(cutoff) {
			stale = append(stale, e.view)
			delete(s.views, id)
		}
	}
	s.mu.Unlock()

	for _, v := range stale {
		v.Close()
	}
	if len(stale) > 0 {
		s.logger.Debug("closed idle views", "count", len(stale))
	}
	return len(stale)
}

// start schedules sweep every interval.
func (s *viewStore) start(interval time.Duration) error {
	sched := gocron.NewScheduler(time.UTC)
	sched.SingletonModeAll()
	if _, err := sched.Every(interval).Do(func() { s.sweep() }); err != nil {
		return err
	}
	sched.StartAsync()
	s.scheduler = sched
	return nil
}

// close stops the sweeper and closes every view.
func (s *viewStore) close() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
	s.mu.Lock()
	views := s.views
	s.views = make(map[string]*viewEntry)
	s.mu.Unlock()
	for _, e := range views {
		e.view.Close()
	}
}
