// Package decay implements temporal relevance for retrieved knowledge.
//
// Older content keeps part of its weight instead of fading to zero:
//
//	relevance = Floor + (1 - Floor) × exp(-ageDays / ScaleDays)
//
// With the defaults (Floor 0.5, ScaleDays 365) a node created today scores
// 1.0, one a year old about 0.68, and very old content approaches 0.5.
//
// Example Usage:
//
//	d := decay.New(decay.DefaultConfig())
//	score := fused * d.Relevance(node.Metadata.CreatedAt, time.Now())
package decay

import (
	"math"
	"time"
)

const day = 24 * time.Hour

// Config holds the decay curve parameters.
type Config struct {
	// Floor is the relevance of infinitely old content, in [0,1].
	Floor float64 `yaml:"floor"`
	// ScaleDays is the e-folding time of the exponential, in days.
	ScaleDays float64 `yaml:"scale_days"`
}

// DefaultConfig returns Floor 0.5 and ScaleDays 365.
func DefaultConfig() Config {
	return Config{Floor: 0.5, ScaleDays: 365}
}

// Decay computes temporal relevance. The zero value is not usable; use New.
type Decay struct {
	cfg Config
}

// New creates a Decay. Out-of-range values fall back to the defaults.
func New(cfg Config) *Decay {
	def := DefaultConfig()
	if cfg.Floor < 0 || cfg.Floor > 1 || math.IsNaN(cfg.Floor) {
		cfg.Floor = def.Floor
	}
	if cfg.ScaleDays <= 0 || math.IsNaN(cfg.ScaleDays) {
		cfg.ScaleDays = def.ScaleDays
	}
	return &Decay{cfg: cfg}
}

// Relevance returns the multiplier for content created at createdAt.
// Unknown (zero) and future timestamps are not penalized.
func (d *Decay) Relevance(createdAt, now time.Time) float64 {
	if createdAt.IsZero() || !createdAt.Before(now) {
		return 1
	}
	ageDays := float64(now.Sub(createdAt)) / float64(day)
	return d.cfg.Floor + (1-d.cfg.Floor)*math.Exp(-ageDays/d.cfg.ScaleDays)
}
