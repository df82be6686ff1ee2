package filegate

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// ============================================================================
// ChangeToken Implementations
// ============================================================================

// CallbackChangeToken is a ChangeToken that supports active callbacks.
// Used by drivers that have native change events (local, memory).
type CallbackChangeToken struct {
	mu        sync.RWMutex
	changed   atomic.Bool
	callbacks []func()
}

// NewCallbackChangeToken creates a new ChangeToken that supports active callbacks.
func NewCallbackChangeToken() *CallbackChangeToken {
	return &CallbackChangeToken{}
}

func (t *CallbackChangeToken) HasChanged() bool {
	return t.changed.Load()
}

func (t *CallbackChangeToken) ActiveChangeCallbacks() bool {
	return true
}

func (t *CallbackChangeToken) RegisterChangeCallback(callback func()) (unregister func()) {
	return registerCallback(&t.mu, &t.callbacks, callback)
}

// SignalChange marks the token as changed and invokes all callbacks.
// Drivers call it when a matching change is detected.
func (t *CallbackChangeToken) SignalChange() {
	if t.changed.Swap(true) {
		return // Already changed
	}
	invokeCallbacks(&t.mu, &t.callbacks)
}

// ============================================================================
// Polling ChangeToken
// ============================================================================

// PollingChangeToken is a ChangeToken for backends without native events,
// such as object stores. It calls CheckFunc every Interval until it reports
// a change or the context ends.
//
// To prevent goroutine leaks, cancel the context or call Stop.
type PollingChangeToken struct {
	mu        sync.RWMutex
	changed   atomic.Bool
	callbacks []func()
	cancel    context.CancelFunc
	checkFunc func() bool
	interval  time.Duration
	stopped   atomic.Bool
}

// PollingConfig configures a polling change token.
type PollingConfig struct {
	// Interval between polls (default: 5 seconds)
	Interval time.Duration
	// CheckFunc returns true if a change is detected
	CheckFunc func() bool
}

// NewPollingChangeToken creates a ChangeToken that polls for changes.
func NewPollingChangeToken(ctx context.Context, config PollingConfig) *PollingChangeToken {
	if config.Interval == 0 {
		config.Interval = 5 * time.Second
	}

	ctx, cancel := context.WithCancel(ctx)
	t := &PollingChangeToken{
		checkFunc: config.CheckFunc,
		interval:  config.Interval,
		cancel:    cancel,
	}

	// Safety net if the token is dropped without Stop
	runtime.SetFinalizer(t, func(token *PollingChangeToken) {
		token.Stop()
	})

	go t.poll(ctx)
	return t
}

func (t *PollingChangeToken) poll(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if t.checkFunc != nil && t.checkFunc() {
				if !t.changed.Swap(true) {
					invokeCallbacks(&t.mu, &t.callbacks)
				}
				return // Token is now spent
			}
		}
	}
}

func (t *PollingChangeToken) HasChanged() bool {
	return t.changed.Load()
}

func (t *PollingChangeToken) ActiveChangeCallbacks() bool {
	return true
}

func (t *PollingChangeToken) RegisterChangeCallback(callback func()) (unregister func()) {
	return registerCallback(&t.mu, &t.callbacks, callback)
}

// Stop stops the polling goroutine. It is safe to call Stop multiple times.
func (t *PollingChangeToken) Stop() {
	if t.stopped.Swap(true) {
		return
	}
	if t.cancel != nil {
		t.cancel()
	}
}

func registerCallback(mu *sync.RWMutex, callbacks *[]func(), callback func()) func() {
	mu.Lock()
	*callbacks = append(*callbacks, callback)
	index := len(*callbacks) - 1
	mu.Unlock()

	return func() {
		mu.Lock()
		defer mu.Unlock()
		if index < len(*callbacks) {
			// Set to nil instead of removing to avoid index shifting
			(*callbacks)[index] = nil
		}
	}
}

func invokeCallbacks(mu *sync.RWMutex, callbacks *[]func()) {
	mu.RLock()
	snapshot := make([]func(), len(*callbacks))
	copy(snapshot, *callbacks)
	mu.RUnlock()

	for _, cb := range snapshot {
		if cb != nil {
			cb()
		}
	}
}

// ============================================================================
// Helper: OnChange
// ============================================================================

// OnChange continuously watches for changes until ctx is cancelled or the
// producer fails. The next token is created before changeAction runs, so
// changes made while the action is running are not missed. The producer
// error, if any, is returned once watching stops.
//
//	err := filegate.OnChange(ctx,
//	    func() (filegate.ChangeToken, error) { return fs.(filegate.CanWatch).Watch(ctx, "*.pdf") },
//	    func() { scanInbox() },
//	)
func OnChange(ctx context.Context, tokenProducer func() (ChangeToken, error), changeAction func()) error {
	token, err := tokenProducer()
	if err != nil {
		return err
	}

	for {
		if !waitForChange(ctx, token) {
			return nil
		}

		next, err := tokenProducer()
		if err != nil {
			return err
		}
		changeAction()
		token = next
	}
}

// waitForChange blocks until token fires or ctx is done. It returns false
// when ctx ended first.
func waitForChange(ctx context.Context, token ChangeToken) bool {
	done := make(chan struct{})
	var once sync.Once
	unregister := token.RegisterChangeCallback(func() {
		once.Do(func() { close(done) })
	})
	defer unregister()
	if token.HasChanged() {
		once.Do(func() { close(done) })
	}

	select {
	case <-ctx.Done():
		return false
	case <-done:
		return true
	}
}
