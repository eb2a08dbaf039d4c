// Package lifecycle ties player cleanup to host signals and normal exit.
package lifecycle

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// DefaultTimeout bounds a single cleanup run.
const DefaultTimeout = 10 * time.Second

// Cleaner is torn down on host exit. *streams.Registry satisfies it.
type Cleaner interface {
	Cleanup(ctx context.Context)
}

// Hooks runs a Cleaner exactly once, whichever of a signal or a normal exit
// comes first.
type Hooks struct {
	cleaner  Cleaner
	timeout  time.Duration
	signals  []os.Signal
	onSignal func(os.Signal)
	logger   *slog.Logger

	once sync.Once
	done chan struct{}
}

// Option configures Hooks.
type Option func(*Hooks)

// WithTimeout bounds the cleanup run.
func WithTimeout(d time.Duration) Option {
	return func(h *Hooks) { h.timeout = d }
}

// WithSignals replaces the default SIGINT, SIGTERM and SIGHUP set.
func WithSignals(sigs ...os.Signal) Option {
	return func(h *Hooks) { h.signals = sigs }
}

// WithOnSignal runs fn after the cleanup triggered by a signal, typically to
// stop the host.
func WithOnSignal(fn func(os.Signal)) Option {
	return func(h *Hooks) { h.onSignal = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Hooks) { h.logger = l }
}

// New creates hooks for c. Nothing is bound until Bind.
func New(c Cleaner, opts ...Option) *Hooks {
	h := &Hooks{
		cleaner: c,
		timeout: DefaultTimeout,
		signals: []os.Signal{os.Interrupt, syscall.SIGTERM, syscall.SIGHUP},
		logger:  slog.Default(),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Bind starts listening for the configured signals. The returned function
// unbinds them; it does not run the cleanup.
func (h *Hooks) Bind() (unbind func()) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, h.signals...)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case sig := <-ch:
			h.logger.Info("Received signal, cleaning up", "signal", sig.String())
			h.Shutdown("signal " + sig.String())
			if h.onSignal != nil {
				h.onSignal(sig)
			}
		case <-stop:
		}
	}()

	var unbindOnce sync.Once
	return func() {
		unbindOnce.Do(func() {
			signal.Stop(ch)
			close(stop)
			wg.Wait()
		})
	}
}

// Shutdown runs the cleanup if it has not run yet and waits for it to finish.
// It is safe to call from any number of goroutines.
func (h *Hooks) Shutdown(reason string) {
	h.once.Do(func() {
		defer close(h.done)

		h.logger.Info("Shutting down players", "reason", reason)
		ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
		defer cancel()
		h.cleaner.Cleanup(ctx)
	})
	<-h.done
}

// Done is closed once the cleanup has finished.
func (h *Hooks) Done() <-chan struct{} {
	return h.done
}
