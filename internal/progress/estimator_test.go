package progress

import (
	"testing"
	"time"
)

func TestEstimatorWarmup(t *testing.T) {
	e := NewEstimator(0.2, 3)
	base := time.Now()

	if _, ok := e.ETA(0.1); ok {
		t.Error("ETA should be unavailable before any samples")
	}

	e.Update(0.0, base)
	e.Update(0.1, base.Add(1*time.Second))
	e.Update(0.2, base.Add(2*time.Second))
	if _, ok := e.ETA(0.2); ok {
		t.Error("ETA should be unavailable during warmup")
	}

	e.Update(0.3, base.Add(3*time.Second))
	eta, ok := e.ETA(0.3)
	if !ok {
		t.Fatal("ETA should be available after warmup")
	}
	// Steady 0.1/s rate leaves 0.7 → about 7s.
	if eta < 5*time.Second || eta > 10*time.Second {
		t.Errorf("ETA = %v, want roughly 7s", eta)
	}
}

func TestEstimatorIgnoresRapidSamples(t *testing.T) {
	e := NewEstimator(0.2, 1)
	base := time.Now()

	e.Update(0.0, base)
	e.Update(0.5, base.Add(10*time.Millisecond)) // dropped: too soon
	if e.sampleCount != 0 {
		t.Errorf("sampleCount = %d, want 0", e.sampleCount)
	}

	e.Update(0.5, base.Add(1*time.Second))
	if e.sampleCount != 1 {
		t.Errorf("sampleCount = %d, want 1", e.sampleCount)
	}
}

func TestEstimatorStalledRate(t *testing.T) {
	e := NewEstimator(0.2, 1)
	base := time.Now()

	e.Update(0.5, base)
	e.Update(0.5, base.Add(1*time.Second))
	e.Update(0.5, base.Add(2*time.Second))

	if _, ok := e.ETA(0.5); ok {
		t.Error("ETA should be unavailable while stalled")
	}
}

func TestEstimatorReset(t *testing.T) {
	e := NewDefaultEstimator()
	base := time.Now()
	for i := 0; i < 5; i++ {
		e.Update(float64(i)*0.1, base.Add(time.Duration(i)*time.Second))
	}
	e.Reset()
	if _, ok := e.ETA(0.1); ok {
		t.Error("ETA should be unavailable after reset")
	}
}

func TestFormatETA(t *testing.T) {
	if got := FormatETA(0, false); got != "" {
		t.Errorf("FormatETA(_, false) = %q, want empty", got)
	}
	if got := FormatETA(42*time.Second, true); got != "~42s" {
		t.Errorf("FormatETA = %q, want ~42s", got)
	}
	if got := FormatETA(2*time.Minute+5*time.Second, true); got != "~2m05s" {
		t.Errorf("FormatETA = %q, want ~2m05s", got)
	}
	if got := FormatETA(3*time.Hour+7*time.Minute, true); got != "~3h07m" {
		t.Errorf("FormatETA = %q, want ~3h07m", got)
	}
}
