// Package attention simulates visual attention toward a target region.
// No frames are analysed: gaze is synthesized by a random walk and the score,
// focus stability and cognitive load are derived from it on every tick.
package attention

import (
	"errors"
	"time"

	"github.com/sweeney/attention-sensor/internal/capture"
)

// Status is the tracking state of a Simulator.
type Status string

const (
	StatusInactive Status = "inactive"
	StatusTracking Status = "tracking"
)

// Point is a screen coordinate in pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect is an axis-aligned bounding box in pixels.
type Rect struct {
	X      float64 `json:"x" yaml:"x"`
	Y      float64 `json:"y" yaml:"y"`
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// Center returns the midpoint of r.
func (r Rect) Center() Point {
	return Point{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

// Contains reports whether p lies inside r, edges included.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X <= r.X+r.Width &&
		p.Y >= r.Y && p.Y <= r.Y+r.Height
}

// Sample is one attention reading produced by a tick.
type Sample struct {
	Score          float64   `json:"score"`
	FocusStability float64   `json:"focusStability"`
	CognitiveLoad  float64   `json:"cognitiveLoad"`
	Gaze           Point     `json:"gazePoint"`
	Timestamp      time.Time `json:"timestamp"`
	Status         Status    `json:"status"`
}

// Config controls the simulator. It is copied on Start and never mutated
// while tracking.
type Config struct {
	Interval             time.Duration `yaml:"interval"`
	HistorySize          int           `yaml:"history_size"`
	TargetHitProbability float64       `yaml:"target_hit_probability"`
	GazeJitter           float64       `yaml:"gaze_jitter"`
	Viewport             Rect          `yaml:"viewport"`
	InitialScore         float64       `yaml:"initial_score"`

	// Score walk. Attention decays faster than it recovers.
	AttentiveGain    float64 `yaml:"attentive_gain"`
	AttentiveJitter  float64 `yaml:"attentive_jitter"`
	DistractedLoss   float64 `yaml:"distracted_loss"`
	DistractedJitter float64 `yaml:"distracted_jitter"`

	// Stability = 1 - StabilityGain * variance.
	StabilityGain float64 `yaml:"stability_gain"`

	LoadBase   float64 `yaml:"load_base"`
	LoadJitter float64 `yaml:"load_jitter"`

	// CarryScore seeds a restart with the last emitted score instead of
	// InitialScore. The history window is always fresh.
	CarryScore bool `yaml:"carry_score"`

	Capture        bool            `yaml:"capture"`
	CaptureOptions capture.Options `yaml:"capture_options"`
}

// DefaultConfig returns the stock simulator settings.
func DefaultConfig() Config {
	return Config{
		Interval:             time.Second,
		HistorySize:          10,
		TargetHitProbability: 0.7,
		GazeJitter:           50,
		Viewport:             Rect{Width: 1920, Height: 1080},
		InitialScore:         0.5,
		AttentiveGain:        0.05,
		AttentiveJitter:      0.02,
		DistractedLoss:       0.08,
		DistractedJitter:     0.03,
		StabilityGain:        5,
		LoadBase:             0.3,
		LoadJitter:           0.4,
	}
}

// InactiveSample is the sample reported before the first Start.
func (c Config) InactiveSample() Sample {
	return Sample{
		Score:          c.InitialScore,
		FocusStability: 1,
		Gaze:           c.Viewport.Center(),
		Status:         StatusInactive,
	}
}

// Validate reports configuration values the tick algorithm cannot use.
func (c Config) Validate() error {
	var errs []error
	if c.Interval <= 0 {
		errs = append(errs, errors.New("interval must be positive"))
	}
	if c.HistorySize <= 0 {
		errs = append(errs, errors.New("history_size must be positive"))
	}
	if c.TargetHitProbability < 0 || c.TargetHitProbability > 1 {
		errs = append(errs, errors.New("target_hit_probability must be in [0,1]"))
	}
	if c.InitialScore < 0 || c.InitialScore > 1 {
		errs = append(errs, errors.New("initial_score must be in [0,1]"))
	}
	if c.Viewport.Width <= 0 || c.Viewport.Height <= 0 {
		errs = append(errs, errors.New("viewport must have positive size"))
	}
	if c.GazeJitter < 0 || c.AttentiveJitter < 0 || c.DistractedJitter < 0 || c.LoadJitter < 0 {
		errs = append(errs, errors.New("jitter values must not be negative"))
	}
	return errors.Join(errs...)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
