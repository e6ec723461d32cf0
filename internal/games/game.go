package games

import "github.com/MJE43/stake-roulette-sim/internal/engine"

// Seeds is re-exported so callers only need the games package.
type Seeds = engine.Seeds

// GameSpec describes a game for listings and verification responses.
type GameSpec struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	MetricLabel string `json:"metric_label"`
}

// GameResult is the verification view of a single evaluation.
type GameResult struct {
	Metric      float64        `json:"metric"`
	MetricLabel string         `json:"metric_label"`
	Details     map[string]any `json:"details,omitempty"`
}
