// Package sessionend is the best-effort tab-close detector. Browsers fire
// the same teardown signal for a reload and a real close; the only
// distinguishing evidence is how long the page had been alive. Nothing here
// is reliable and nothing here may block page teardown.
package sessionend

import (
	"time"
)

const defaultCloseThreshold = 100 * time.Millisecond

// Detector judges whether a page-teardown signal means a real close or a
// reload in progress, using the timestamp recorded at page load.
type Detector struct {
	threshold time.Duration
	nowTime   func() time.Time

	loadedAt time.Time
}

// DetectorOption defines a function type to modify the Detector instance.
type DetectorOption func(*Detector)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) DetectorOption {
	return func(d *Detector) {
		d.nowTime = nowFunc
	}
}

// WithThreshold overrides the reload/close threshold.
func WithThreshold(threshold time.Duration) DetectorOption {
	return func(d *Detector) {
		d.threshold = threshold
	}
}

// NewDetector records the page-load timestamp at construction.
func NewDetector(options ...DetectorOption) *Detector {
	d := &Detector{
		threshold: defaultCloseThreshold,
		nowTime:   time.Now,
	}

	for _, opt := range options {
		opt(d)
	}

	d.loadedAt = d.nowTime()
	return d
}

// PageLoaded re-arms the detector after a reload completes.
func (d *Detector) PageLoaded() {
	d.loadedAt = d.nowTime()
}

// JudgeClose reports whether a teardown signal arriving now looks like a
// real close. A signal within the threshold of page load is judged a
// reload in progress.
func (d *Detector) JudgeClose() bool {
	return d.nowTime().Sub(d.loadedAt) >= d.threshold
}
