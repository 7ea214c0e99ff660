package logging

import (
	"strings"
	"time"
)

// ProgressSampler suppresses repetitive progress logs while preserving signal
// when stages or percentage buckets change. Progress with an unknown percent
// (the encoder could not learn the input duration) is emitted at most once per
// interval instead.
type ProgressSampler struct {
	bucketSize float64
	interval   time.Duration
	lastStage  string
	lastBucket int
	lastEmit   time.Time
	now        func() time.Time
}

// NewProgressSampler constructs a sampler that emits when the percent crosses
// bucket boundaries (default 5%) or when the stage changes.
func NewProgressSampler(bucketSize float64) *ProgressSampler {
	if bucketSize <= 0 {
		bucketSize = 5
	}
	return &ProgressSampler{
		bucketSize: bucketSize,
		interval:   30 * time.Second,
		lastBucket: -1,
		now:        time.Now,
	}
}

// WithInterval sets the throttle used for unknown-percent updates.
func (s *ProgressSampler) WithInterval(interval time.Duration) *ProgressSampler {
	if s != nil && interval > 0 {
		s.interval = interval
	}
	return s
}

// ShouldLog reports whether a progress event should be logged. Percent is
// negative when unknown; stage is trimmed before comparison.
func (s *ProgressSampler) ShouldLog(percent float64, stage string) bool {
	if s == nil {
		return true
	}
	stage = strings.TrimSpace(stage)
	emit := false
	if stage != "" && stage != s.lastStage {
		s.lastStage = stage
		emit = true
		s.lastBucket = -1
	}
	if percent >= 0 {
		bucket := int(percent / s.bucketSize)
		if percent >= 100 {
			bucket = int(100 / s.bucketSize)
		}
		if bucket > s.lastBucket {
			s.lastBucket = bucket
			emit = true
		}
	} else if now := s.now(); s.lastEmit.IsZero() || now.Sub(s.lastEmit) >= s.interval {
		emit = true
	}
	if emit {
		s.lastEmit = s.now()
	}
	return emit
}

// Reset clears the sampler state (e.g. when a new job starts).
func (s *ProgressSampler) Reset() {
	if s == nil {
		return
	}
	s.lastStage = ""
	s.lastBucket = -1
	s.lastEmit = time.Time{}
}
