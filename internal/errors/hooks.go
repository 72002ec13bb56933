package errors

import (
	"sync"
	"sync/atomic"
)

// ErrorHook is called synchronously for every built error while reporting
// is active. Hooks must be cheap and must not block.
type ErrorHook func(ee *EnhancedError)

var (
	hooksMu    sync.RWMutex
	errorHooks []ErrorHook

	// hasActiveReporting lets Build skip detection when nobody listens
	hasActiveReporting atomic.Bool
)

// AddErrorHook registers a hook, for example a metrics counter
func AddErrorHook(hook ErrorHook) {
	if hook == nil {
		return
	}
	hooksMu.Lock()
	errorHooks = append(errorHooks, hook)
	hooksMu.Unlock()
	updateReportingState()
}

// ClearErrorHooks removes all registered hooks
func ClearErrorHooks() {
	hooksMu.Lock()
	errorHooks = nil
	hooksMu.Unlock()
	updateReportingState()
}

func runHooks(ee *EnhancedError) {
	hooksMu.RLock()
	hooks := errorHooks
	hooksMu.RUnlock()

	for _, hook := range hooks {
		hook(ee)
	}
}

func updateReportingState() {
	hooksMu.RLock()
	active := len(errorHooks) > 0
	hooksMu.RUnlock()

	if r := GetTelemetryReporter(); r != nil && r.IsEnabled() {
		active = true
	}
	hasActiveReporting.Store(active)
}
