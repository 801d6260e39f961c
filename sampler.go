package xrayradar

import (
	"math"

	"github.com/xrayradar/xrayradar-go/internal/crypto/randutil"
)

// Sampler admits events with a fixed probability. Draws come from a
// cryptographically secure source so decisions cannot be predicted.
type Sampler struct {
	rate float64
	draw func() float64
}

// NewSampler returns a Sampler for rate, which must be in [0, 1].
func NewSampler(rate float64) (*Sampler, error) {
	if !validSampleRate(rate) {
		return nil, &ConfigurationError{Field: "SampleRate", Value: rate, Reason: "must be between 0.0 and 1.0"}
	}
	return &Sampler{rate: rate, draw: randutil.Float64}, nil
}

// ShouldSend reports whether the next event is admitted.
func (s *Sampler) ShouldSend() bool {
	switch {
	case s.rate >= 1:
		return true
	case s.rate <= 0:
		return false
	}
	return s.draw() < s.rate
}

// Rate returns the configured sample rate.
func (s *Sampler) Rate() float64 {
	return s.rate
}

// validSampleRate reports whether rate is a number in [0, 1].
func validSampleRate(rate float64) bool {
	return !math.IsNaN(rate) && rate >= 0 && rate <= 1
}
