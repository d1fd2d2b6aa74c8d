package detect

import "time"

// AlertTimer decides when a clip has been watched long enough to raise the
// suspicious object alert. It fires at most once until Reset.
type AlertTimer struct {
	duration       time.Duration
	requireRegions bool
	fired          bool
}

func NewAlertTimer(cfg Config) *AlertTimer {
	return &AlertTimer{
		duration:       time.Duration(cfg.SuspiciousDuration),
		requireRegions: cfg.RequireRegions,
	}
}

// Tick reports whether the alert fires now. elapsed is measured from the
// start of the clip. Unless the timer was built with RequireRegions, present
// does not gate firing.
func (a *AlertTimer) Tick(elapsed time.Duration, present bool) bool {
	if a.fired || elapsed < a.duration {
		return false
	}
	if a.requireRegions && !present {
		return false
	}
	a.fired = true
	return true
}

// Fired reports whether the latch is set.
func (a *AlertTimer) Fired() bool {
	return a.fired
}

func (a *AlertTimer) Reset() {
	a.fired = false
}
