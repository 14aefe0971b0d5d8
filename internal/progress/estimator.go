// Package progress provides rate estimation for the CLI's backup poll loop.
package progress

import (
	"fmt"
	"sync"
	"time"
)

// Estimator smooths the observed copy rate with an exponential moving
// average and projects a time-remaining figure from it. A plain
// total/elapsed estimate whipsaws badly across the data-file → WAL →
// finalize phase transitions; the EMA stays usable.
type Estimator struct {
	mu sync.Mutex

	// Smoothed rate in progress-units/sec (progress is a [0,1] fraction).
	rateEMA float64
	alpha   float64

	lastUpdate   time.Time
	lastProgress float64

	sampleCount    int
	warmupRequired int
}

// NewEstimator creates an estimator. alpha controls smoothing (lower is
// smoother); warmupSamples is how many samples to require before reporting
// an ETA.
func NewEstimator(alpha float64, warmupSamples int) *Estimator {
	if alpha <= 0 || alpha > 1.0 {
		alpha = 0.2
	}
	if warmupSamples < 1 {
		warmupSamples = 3
	}
	return &Estimator{alpha: alpha, warmupRequired: warmupSamples}
}

// NewDefaultEstimator returns an estimator with the defaults used by the CLI.
func NewDefaultEstimator() *Estimator {
	return NewEstimator(0.2, 3)
}

// Update records a progress sample in [0, 1]. Samples closer together than
// 100ms are dropped to keep the EMA out of the noise.
func (e *Estimator) Update(progress float64, now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.lastUpdate.IsZero() {
		e.lastUpdate = now
		e.lastProgress = progress
		return
	}

	elapsed := now.Sub(e.lastUpdate).Seconds()
	if elapsed < 0.1 {
		return
	}

	delta := progress - e.lastProgress
	if delta < 0 {
		delta = 0
	}
	instantRate := delta / elapsed

	if e.rateEMA == 0 {
		e.rateEMA = instantRate
	} else {
		e.rateEMA = e.alpha*instantRate + (1-e.alpha)*e.rateEMA
	}

	e.lastUpdate = now
	e.lastProgress = progress
	e.sampleCount++
}

// ETA projects the time remaining to reach progress 1.0.
// Returns (0, false) until warmup completes or while the rate is
// effectively stalled.
func (e *Estimator) ETA(progress float64) (time.Duration, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sampleCount < e.warmupRequired || e.rateEMA < 1e-9 {
		return 0, false
	}

	remaining := 1.0 - progress
	if remaining <= 0 {
		return 0, true
	}
	return time.Duration(remaining / e.rateEMA * float64(time.Second)), true
}

// Reset clears all state for a new job.
func (e *Estimator) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rateEMA = 0
	e.lastUpdate = time.Time{}
	e.lastProgress = 0
	e.sampleCount = 0
}

// FormatETA renders a duration as a compact human string ("~2m05s"), or ""
// when no estimate is available.
func FormatETA(d time.Duration, ok bool) string {
	if !ok {
		return ""
	}
	switch {
	case d < time.Minute:
		return fmt.Sprintf("~%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("~%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("~%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	}
}
