// ABOUTME: Connectivity observer combining a network probe with a manual offline override
// ABOUTME: Notifies observers only when the derived effectively-online value changes

package reachability

import (
	"context"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Monitor reports whether the real network path is usable right now.
// Implementations are best-effort and never return errors.
type Monitor interface {
	Probe(ctx context.Context) bool
}

// DialMonitor probes connectivity by opening a TCP connection.
type DialMonitor struct {
	Addr    string
	Timeout time.Duration
}

// Probe dials the configured address and reports success.
func (d *DialMonitor) Probe(ctx context.Context) bool {
	timeout := d.Timeout
	if timeout == 0 {
		timeout = 3 * time.Second
	}
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var dialer net.Dialer
	conn, err := dialer.DialContext(dialCtx, "tcp", d.Addr)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// Config holds configuration for the observer.
type Config struct {
	// ProbeInterval is how often the monitor is asked for the real path status
	ProbeInterval time.Duration

	// OfflineFlagPath, when non-empty, is a file whose presence forces
	// simulate-offline. It is watched so operators can toggle it at runtime.
	OfflineFlagPath string

	// Logger for observer activity
	Logger *slog.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ProbeInterval: 5 * time.Second,
		Logger:        slog.Default(),
	}
}

// Observer derives a single effectively-online signal from the real network
// path status and a manual simulate-offline override.
//
// effectively online = connected AND NOT simulate-offline.
//
// Callbacks registered with OnChange fire only when the derived value
// changes, never on no-op ticks of the underlying signals. Delivery is
// serialized on one goroutine so observers see transitions in order and
// exactly once.
type Observer struct {
	monitor Monitor
	config  *Config
	logger  *slog.Logger

	mu              sync.Mutex
	isConnected     bool
	simulateOffline bool
	derived         bool
	callbacks       []func(online bool)

	notifyCh chan bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// New creates an observer over the given monitor.
// Pass nil config for defaults.
func New(monitor Monitor, config *Config) *Observer {
	if config == nil {
		config = DefaultConfig()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Observer{
		monitor:  monitor,
		config:   config,
		logger:   logger.With("component", "reachability"),
		notifyCh: make(chan bool, 16),
	}
}

// OnChange registers a callback fired with the new derived value whenever
// effectively-online changes. Callbacks registered before Start see every
// transition; later registrations only see subsequent ones.
func (o *Observer) OnChange(fn func(online bool)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.callbacks = append(o.callbacks, fn)
}

// EffectivelyOnline reports the current derived connectivity.
func (o *Observer) EffectivelyOnline() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.derived
}

// SetSimulateOffline toggles the manual override, independent of the real
// network path status.
func (o *Observer) SetSimulateOffline(offline bool) {
	o.update(func() {
		o.simulateOffline = offline
	})
}

// setConnected records the probed network path status.
func (o *Observer) setConnected(connected bool) {
	o.update(func() {
		o.isConnected = connected
	})
}

// update applies a state mutation, recomputes the derived value and queues
// a notification only when it changed. The enqueue happens under the same
// lock as the recompute so concurrent updaters cannot queue transitions in
// an order that disagrees with the derived value; the channel is buffered
// and notifyLoop never receives while holding the lock, so this cannot
// deadlock.
func (o *Observer) update(mutate func()) {
	o.mu.Lock()
	defer o.mu.Unlock()

	mutate()
	derived := o.isConnected && !o.simulateOffline
	if derived == o.derived {
		return
	}
	o.derived = derived

	o.logger.Info("effectively online changed", "online", derived)
	o.notifyCh <- derived
}

// Start begins probing and notification delivery until ctx is cancelled.
// The initial probe runs synchronously so callers see a settled value.
func (o *Observer) Start(ctx context.Context) error {
	ctx, o.cancel = context.WithCancel(ctx)

	if o.config.OfflineFlagPath != "" {
		if err := o.watchOfflineFlag(ctx); err != nil {
			return err
		}
		o.applyOfflineFlag()
	}

	o.setConnected(o.monitor.Probe(ctx))

	o.wg.Add(2)
	go o.probeLoop(ctx)
	go o.notifyLoop(ctx)

	return nil
}

// Stop shuts down the observer and waits for its goroutines.
func (o *Observer) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	o.wg.Wait()
}

// probeLoop periodically asks the monitor for the real path status.
func (o *Observer) probeLoop(ctx context.Context) {
	defer o.wg.Done()

	ticker := time.NewTicker(o.config.ProbeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.setConnected(o.monitor.Probe(ctx))
		}
	}
}

// notifyLoop delivers derived-value transitions to callbacks, one at a
// time and in order.
func (o *Observer) notifyLoop(ctx context.Context) {
	defer o.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case online := <-o.notifyCh:
			o.mu.Lock()
			callbacks := make([]func(bool), len(o.callbacks))
			copy(callbacks, o.callbacks)
			o.mu.Unlock()

			for _, fn := range callbacks {
				fn(online)
			}
		}
	}
}

// watchOfflineFlag watches the flag file's directory for create/remove of
// the flag, so the override can be toggled while the process runs.
func (o *Observer) watchOfflineFlag(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	dir := filepath.Dir(o.config.OfflineFlagPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		watcher.Close()
		return err
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return err
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Name != o.config.OfflineFlagPath {
					continue
				}
				if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				o.logger.Debug("offline flag event", "op", event.Op.String())
				o.applyOfflineFlag()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				o.logger.Warn("offline flag watcher error", "error", err)
			}
		}
	}()

	return nil
}

// applyOfflineFlag syncs the override with the flag file's presence.
func (o *Observer) applyOfflineFlag() {
	_, err := os.Stat(o.config.OfflineFlagPath)
	o.SetSimulateOffline(err == nil)
}
