package logging

import (
	"testing"
	"time"
)

func TestNewProgressSampler(t *testing.T) {
	tests := []struct {
		name       string
		bucketSize float64
		wantSize   float64
	}{
		{"default bucket size for zero", 0, 5},
		{"default bucket size for negative", -1, 5},
		{"custom bucket size", 10, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewProgressSampler(tt.bucketSize)
			if s.bucketSize != tt.wantSize {
				t.Errorf("bucketSize = %v, want %v", s.bucketSize, tt.wantSize)
			}
			if s.lastBucket != -1 {
				t.Errorf("lastBucket = %d, want -1", s.lastBucket)
			}
		})
	}
}

func TestProgressSampler_NilSampler(t *testing.T) {
	var s *ProgressSampler
	if !s.ShouldLog(50, "encode") {
		t.Error("ShouldLog on nil sampler should always return true")
	}
	s.Reset()
}

func TestProgressSampler_StageChange(t *testing.T) {
	s := NewProgressSampler(5)

	if !s.ShouldLog(0, "remux") {
		t.Error("first stage should log")
	}
	if s.ShouldLog(0, "remux") {
		t.Error("same stage and percent should not log again")
	}
	if !s.ShouldLog(0, " encode ") {
		t.Error("different stage should log")
	}
	if s.lastStage != "encode" {
		t.Errorf("lastStage = %q, want encode", s.lastStage)
	}
}

func TestProgressSampler_PercentBuckets(t *testing.T) {
	s := NewProgressSampler(5)

	if !s.ShouldLog(0, "encode") {
		t.Error("0% should log")
	}
	if s.ShouldLog(3, "encode") {
		t.Error("3% should not log (same bucket)")
	}
	if !s.ShouldLog(5, "encode") {
		t.Error("5% should log (new bucket)")
	}
	if s.ShouldLog(7, "encode") {
		t.Error("7% should not log (same bucket)")
	}
	s.ShouldLog(95, "encode")
	if !s.ShouldLog(100, "encode") {
		t.Error("100% should log")
	}
	if s.ShouldLog(105, "encode") {
		t.Error("105% should share the 100% bucket")
	}
}

func TestProgressSampler_UnknownPercentThrottled(t *testing.T) {
	current := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewProgressSampler(5).WithInterval(10 * time.Second)
	s.now = func() time.Time { return current }

	if !s.ShouldLog(-1, "encode") {
		t.Fatal("first unknown-percent update should log")
	}
	current = current.Add(5 * time.Second)
	if s.ShouldLog(-1, "encode") {
		t.Fatal("update inside the interval should be suppressed")
	}
	current = current.Add(6 * time.Second)
	if !s.ShouldLog(-1, "encode") {
		t.Fatal("update after the interval should log")
	}
}

func TestProgressSampler_Reset(t *testing.T) {
	s := NewProgressSampler(5)
	s.ShouldLog(50, "encode")

	s.Reset()

	if s.lastStage != "" {
		t.Errorf("lastStage = %q, want empty after reset", s.lastStage)
	}
	if s.lastBucket != -1 {
		t.Errorf("lastBucket = %d, want -1 after reset", s.lastBucket)
	}
	if !s.ShouldLog(50, "encode") {
		t.Error("should log after reset")
	}
}
