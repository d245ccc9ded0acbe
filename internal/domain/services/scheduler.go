package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/bimakw/dex-client/internal/domain/entities"
)

// DefaultDebounce is the quiet period after the last input change before a
// quote is recomputed
const DefaultDebounce = 400 * time.Millisecond

// QuoteFunc computes one quote. ctx is cancelled once a newer request for the
// same key is scheduled.
type QuoteFunc func(ctx context.Context) (*entities.SwapQuote, error)

// DraftResult is the committed outcome of the latest computation for a key
type DraftResult struct {
	Generation uint64              `json:"generation"`
	Quote      *entities.SwapQuote `json:"quote,omitempty"`
	Err        error               `json:"-"`
	ComputedAt time.Time           `json:"computedAt"`
}

type draft struct {
	generation uint64
	timer      *time.Timer
	cancel     context.CancelFunc
	latest     *DraftResult
}

// QuoteScheduler debounces quote recomputation per input key. A new request
// replaces the pending timer; a computation commits only if no newer request
// was scheduled for its key in the meantime.
type QuoteScheduler struct {
	delay   time.Duration
	timeout time.Duration
	logger  *zap.Logger

	mu       sync.Mutex
	seq      uint64
	drafts   map[string]*draft
	onCommit func(key string, result DraftResult)
	closed   bool
}

// NewQuoteScheduler creates a scheduler. delay <= 0 uses DefaultDebounce.
func NewQuoteScheduler(delay time.Duration, logger *zap.Logger) *QuoteScheduler {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuoteScheduler{
		delay:   delay,
		timeout: 15 * time.Second,
		logger:  logger.With(zap.String("component", "quote_scheduler")),
		drafts:  make(map[string]*draft),
	}
}

// OnCommit registers a callback run after each committed result. It runs on
// the computing goroutine and must not call back into the scheduler.
func (s *QuoteScheduler) OnCommit(fn func(key string, result DraftResult)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onCommit = fn
}

// Schedule registers a new input for key and returns its generation. Any
// pending timer for the key is stopped and any in-flight computation is
// cancelled and will not commit.
func (s *QuoteScheduler) Schedule(key string, compute QuoteFunc) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0
	}

	d, ok := s.drafts[key]
	if !ok {
		d = &draft{}
		s.drafts[key] = d
	}
	// generations are scheduler-wide so a cancelled key cannot reuse one
	s.seq++
	gen := s.seq
	d.generation = gen

	if d.timer != nil {
		d.timer.Stop()
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.timer = time.AfterFunc(s.delay, func() { s.run(key, gen, compute) })
	return gen
}

func (s *QuoteScheduler) run(key string, gen uint64, compute QuoteFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	s.mu.Lock()
	d, ok := s.drafts[key]
	if !ok || d.generation != gen || s.closed {
		s.mu.Unlock()
		return
	}
	d.cancel = cancel
	s.mu.Unlock()

	quote, err := compute(ctx)

	s.mu.Lock()
	d, ok = s.drafts[key]
	if !ok || d.generation != gen {
		s.mu.Unlock()
		s.logger.Debug("dropping superseded quote", zap.String("key", key), zap.Uint64("generation", gen))
		return
	}
	result := DraftResult{Generation: gen, Quote: quote, Err: err, ComputedAt: time.Now()}
	d.latest = &result
	d.cancel = nil
	onCommit := s.onCommit
	s.mu.Unlock()

	if onCommit != nil {
		onCommit(key, result)
	}
}

// Latest returns the last committed result for key
func (s *QuoteScheduler) Latest(key string) (DraftResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drafts[key]
	if !ok || d.latest == nil {
		return DraftResult{}, false
	}
	return *d.latest, true
}

// Pending reports whether a newer request than the committed result exists
func (s *QuoteScheduler) Pending(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drafts[key]
	if !ok {
		return false
	}
	return d.latest == nil || d.latest.Generation != d.generation
}

// Cancel drops the key along with its pending timer and committed result
func (s *QuoteScheduler) Cancel(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.drafts[key]; ok {
		stopDraft(d)
		delete(s.drafts, key)
	}
}

// Close stops every pending timer; later Schedule calls are ignored
func (s *QuoteScheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for key, d := range s.drafts {
		stopDraft(d)
		delete(s.drafts, key)
	}
}

func stopDraft(d *draft) {
	if d.timer != nil {
		d.timer.Stop()
	}
	if d.cancel != nil {
		d.cancel()
	}
}
