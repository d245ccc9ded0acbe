package wallet

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Detector reports whether a wallet is present and hands out its raw object
type Detector interface {
	Probe() bool
	Handle() Provider
}

// Environment is the global namespace the wallet injects itself into
type Environment interface {
	Lookup(name string) any
}

// EnvironmentFunc adapts a function to Environment
type EnvironmentFunc func(name string) any

func (f EnvironmentFunc) Lookup(name string) any { return f(name) }

// Flagged is implemented by generic injected objects that advertise which
// wallet they belong to through a capability flag
type Flagged interface {
	HasFlag(flag string) bool
}

// MultiProvider is implemented by generic injected objects that aggregate
// several wallets
type MultiProvider interface {
	Providers() []any
}

// InjectedDetector finds the target wallet using three strategies, in order:
// a dedicated namespaced object, a capability flag on the generic injected
// object, and membership in the generic object's provider list.
type InjectedDetector struct {
	Env       Environment
	Namespace string // dedicated global, e.g. "starkey"
	Generic   string // shared global, e.g. "ethereum"
	Flag      string // capability flag on the shared global
}

func (d *InjectedDetector) Probe() bool {
	return d.find() != nil
}

func (d *InjectedDetector) Handle() Provider {
	return d.find()
}

func (d *InjectedDetector) find() Provider {
	if d == nil || d.Env == nil {
		return nil
	}
	if d.Namespace != "" {
		if p := d.Env.Lookup(d.Namespace); p != nil {
			return p
		}
	}
	if d.Generic == "" {
		return nil
	}
	generic := d.Env.Lookup(d.Generic)
	if generic == nil {
		return nil
	}
	if d.Flag != "" && hasFlag(generic, d.Flag) {
		return generic
	}
	if multi, ok := generic.(MultiProvider); ok {
		for _, p := range multi.Providers() {
			if p != nil && d.Flag != "" && hasFlag(p, d.Flag) {
				return p
			}
		}
	}
	return nil
}

func hasFlag(p any, flag string) bool {
	if f, ok := p.(Flagged); ok {
		return f.HasFlag(flag)
	}
	if m, ok := p.(map[string]any); ok {
		v, _ := m[flag].(bool)
		return v
	}
	return false
}

// StaticDetector always reports the same provider; a nil provider means no
// wallet is installed
type StaticDetector struct {
	Provider Provider
}

func (d StaticDetector) Probe() bool      { return d.Provider != nil }
func (d StaticDetector) Handle() Provider { return d.Provider }

// Watcher polls a Detector until a wallet appears. It runs as a cancellable
// background task with a fixed interval and a ProbeNow entry point for
// out-of-band re-probes such as a window regaining focus.
type Watcher struct {
	detector Detector
	interval time.Duration
	onFound  func(Provider)
	logger   *zap.Logger

	probeNow chan struct{}

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	found   bool
	running bool
}

// NewWatcher creates a stopped watcher. onFound runs once, on the watcher
// goroutine, the first time the detector succeeds.
func NewWatcher(detector Detector, interval time.Duration, onFound func(Provider), logger *zap.Logger) *Watcher {
	if interval <= 0 {
		interval = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		detector: detector,
		interval: interval,
		onFound:  onFound,
		logger:   logger.With(zap.String("component", "wallet_watcher")),
		probeNow: make(chan struct{}, 1),
	}
}

// Start launches the polling goroutine. It is a no-op if already running or
// if a wallet was already found.
func (w *Watcher) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running || w.found {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	w.running = true
	go w.run(ctx, w.done)
}

// Stop cancels the polling goroutine and waits for it to exit
func (w *Watcher) Stop() {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel = nil
	w.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// ProbeNow requests an immediate probe. Requests made while one is already
// queued are coalesced.
func (w *Watcher) ProbeNow() {
	select {
	case w.probeNow <- struct{}{}:
	default:
	}
}

// Found reports whether the wallet has been detected
func (w *Watcher) Found() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.found
}

// Running reports whether the polling goroutine is active
func (w *Watcher) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Watcher) run(ctx context.Context, done chan struct{}) {
	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		close(done)
	}()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	if w.probe() {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-w.probeNow:
		}
		if w.probe() {
			return
		}
	}
}

func (w *Watcher) probe() bool {
	if !w.detector.Probe() {
		return false
	}
	w.mu.Lock()
	w.found = true
	w.mu.Unlock()

	w.logger.Info("wallet detected")
	if w.onFound != nil {
		w.onFound(w.detector.Handle())
	}
	return true
}
