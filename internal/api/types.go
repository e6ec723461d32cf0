package api

import (
	"github.com/shopspring/decimal"

	"github.com/MJE43/stake-roulette-sim/internal/betting"
	"github.com/MJE43/stake-roulette-sim/internal/games"
	"github.com/MJE43/stake-roulette-sim/internal/simulation"
	"github.com/MJE43/stake-roulette-sim/internal/store"
)

// EngineError is the body of every error response.
type EngineError struct {
	Type      string         `json:"type"`
	Message   string         `json:"message"`
	Context   map[string]any `json:"context,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	Timestamp string         `json:"timestamp,omitempty"`
}

// Error implements the error interface
func (e EngineError) Error() string {
	return e.Message
}

const (
	ErrTypeInvalidSeed   = "invalid_seed"
	ErrTypeInvalidParams = "invalid_params"
	ErrTypeValidation    = "validation_error"
	ErrTypeScript        = "script_error"
	ErrTypeNotFound      = "not_found"

	ErrTypeSimulationAborted = "simulation_aborted"

	ErrTypeTimeout            = "timeout"
	ErrTypeInternal           = "internal_error"
	ErrTypeServiceUnavailable = "service_unavailable"
)

// VersionInfo contains engine version information
type VersionInfo struct {
	EngineVersion string `json:"engine_version"`
	GitCommit     string `json:"git_commit,omitempty"`
	BuildTime     string `json:"build_time,omitempty"`
}

// VerifyRequest recomputes a single spin.
type VerifyRequest struct {
	Seeds  games.Seeds `json:"seeds"`
	Nonce  uint64      `json:"nonce"`
	Cursor uint64      `json:"cursor"`
}

// VerifyResponse is the recomputed spin and how the red-and-odd bet settles.
type VerifyResponse struct {
	Nonce          uint64               `json:"nonce"`
	Cursor         uint64               `json:"cursor"`
	ServerSeedHash string               `json:"server_seed_hash"`
	Pocket         int                  `json:"pocket"`
	Color          games.Color          `json:"color"`
	Parity         games.Parity         `json:"parity"`
	Float          float64              `json:"float"`
	Outcome        betting.OutcomeClass `json:"outcome"`
	Payout         int                  `json:"payout"`
	GameResult     games.GameResult     `json:"game_result"`
	EngineVersion  string               `json:"engine_version"`
}

// SimulateRequest runs a bounded martingale simulation. Money fields that
// are omitted fall back to the server defaults.
type SimulateRequest struct {
	Seeds           games.Seeds         `json:"seeds"`
	StartNonce      uint64              `json:"start_nonce"`
	MaxRounds       int                 `json:"max_rounds"`
	StartingBalance decimal.NullDecimal `json:"starting_balance"`
	BaseWager       decimal.NullDecimal `json:"base_wager"`
	LossMultiplier  decimal.NullDecimal `json:"loss_multiplier"`
	StopRule        string              `json:"stop_rule,omitempty"`
	Persist         bool                `json:"persist,omitempty"`
}

// SimulateResponse carries the final summary of the run.
type SimulateResponse struct {
	SessionID     string             `json:"session_id,omitempty"`
	Summary       simulation.Summary `json:"summary"`
	WinRate       float64            `json:"win_rate"`
	DurationMs    int64              `json:"duration_ms"`
	EngineVersion string             `json:"engine_version"`
}

// SeedHashRequest represents a seed hashing request
type SeedHashRequest struct {
	ServerSeed string `json:"server_seed"`
}

// SeedHashResponse represents a seed hashing response
type SeedHashResponse struct {
	Hash          string `json:"hash"`
	EngineVersion string `json:"engine_version"`
}

// SessionsResponse lists stored sessions.
type SessionsResponse struct {
	Sessions   []store.Session `json:"sessions"`
	TotalCount int             `json:"total_count"`
	Limit      int             `json:"limit"`
	Offset     int             `json:"offset"`
}

// HealthResponse represents a health check response
type HealthResponse struct {
	Status        string `json:"status"`
	EngineVersion string `json:"engine_version"`
	Timestamp     string `json:"timestamp"`
	Uptime        string `json:"uptime"`
	Store         string `json:"store"`
}
