package types

import (
	"time"
)

// DefaultRating is assumed for any position a player is eligible for but has
// no recorded rating.
const DefaultRating = 1500.0

// Canonical position codes. Teams are displayed with players in this order.
const (
	PositionSetter        = "S"
	PositionOutsideHitter = "OH"
	PositionMiddleBlocker = "MB"
	PositionOpposite      = "OPP"
	PositionLibero        = "L"
)

// PositionOrder is the canonical display ordering of positions within a team.
var PositionOrder = []string{
	PositionSetter,
	PositionOutsideHitter,
	PositionMiddleBlocker,
	PositionOpposite,
	PositionLibero,
}

// Player is a roster entry as submitted by the caller. Ratings are keyed by
// position code; positions the player is eligible for but has no rating for
// default to DefaultRating.
type Player struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	Positions []string           `json:"positions"`
	Ratings   map[string]float64 `json:"ratings"`
}

// RatingFor returns the player's rating at the given position, falling back
// to DefaultRating when unset.
func (p Player) RatingFor(position string) float64 {
	if r, ok := p.Ratings[position]; ok && r > 0 {
		return r
	}
	return DefaultRating
}

// CanPlay reports whether the player is eligible for the given position.
func (p Player) CanPlay(position string) bool {
	for _, pos := range p.Positions {
		if pos == position {
			return true
		}
	}
	return false
}

// IsSpecialist reports whether the player is eligible for exactly one position.
func (p Player) IsSpecialist() bool {
	return len(p.Positions) == 1
}

// Composition maps a position code to the required count of that position
// per team. Zero or omitted means the position is not used.
type Composition map[string]int

// TotalSlots returns the number of players each team requires.
func (c Composition) TotalSlots() int {
	total := 0
	for _, count := range c {
		total += count
	}
	return total
}

// AssignedPlayer is a player placed on a team with a concrete position.
type AssignedPlayer struct {
	Player
	AssignedPosition string  `json:"assigned_position"`
	PositionRating   float64 `json:"position_rating"`
}

// TeamResult is one balanced team in the final output.
type TeamResult struct {
	Players       []AssignedPlayer `json:"players"`
	TotalRating   float64          `json:"total_rating"`
	AverageRating float64          `json:"average_rating"`
}

// TeamStrength summarizes the rating strength of a single team.
type TeamStrength struct {
	TotalRating    float64 `json:"total_rating"`
	WeightedRating float64 `json:"weighted_rating"`
	AverageRating  float64 `json:"average_rating"`
	PlayerCount    int     `json:"player_count"`
}

// BalanceReport describes how even the final teams are.
type BalanceReport struct {
	IsBalanced    bool           `json:"is_balanced"`
	MaxDifference float64        `json:"max_difference"`
	Teams         []TeamStrength `json:"teams"`
}

// ValidationViolation describes one infeasible position requirement.
type ValidationViolation struct {
	Position  string `json:"position"`
	Needed    int    `json:"needed"`
	Available int    `json:"available"`
	Message   string `json:"message"`
}

// ValidationReport is always present on a result, even on success (with an
// empty violation list). Warnings flag tight but feasible requests, e.g. a
// position with no substitutes left over.
type ValidationReport struct {
	Valid      bool                  `json:"valid"`
	Violations []ValidationViolation `json:"violations"`
	Warnings   []string              `json:"warnings,omitempty"`
}

// SolverStats exposes per-solver progress counters. Informational only;
// nothing reads these back into solving decisions.
type SolverStats struct {
	Solver       string  `json:"solver"`
	Iterations   int     `json:"iterations"`
	Improvements int     `json:"improvements"`
	BestScore    float64 `json:"best_score"`
	Restarts     int     `json:"restarts,omitempty"`
	Failed       bool    `json:"failed,omitempty"`
	Error        string  `json:"error,omitempty"`
}

// OptimizeRequest is the request body for POST /api/v1/optimize.
type OptimizeRequest struct {
	Composition Composition       `json:"composition" binding:"required"`
	TeamCount   int               `json:"team_count" binding:"required"`
	Players     []Player          `json:"players" binding:"required"`
	Settings    *OptimizeSettings `json:"settings,omitempty"`
	ClientID    string            `json:"client_id,omitempty"`
}

// OptimizeSettings carries per-request tuning overrides. Zero values mean
// "use the configured default".
type OptimizeSettings struct {
	VarianceWeight        float64  `json:"variance_weight,omitempty"`
	PositionBalanceWeight float64  `json:"position_balance_weight,omitempty"`
	EnabledSolvers        []string `json:"enabled_solvers,omitempty"`
	DiversityGuard        *bool    `json:"diversity_guard,omitempty"`
	MultiStartTabu        bool     `json:"multi_start_tabu,omitempty"`
	Seed                  int64    `json:"seed,omitempty"`
}

// OptimizeResult is the structured result of a successful optimization.
type OptimizeResult struct {
	Teams              []TeamResult           `json:"teams"`
	Balance            BalanceReport          `json:"balance"`
	UnusedPlayers      []Player               `json:"unused_players"`
	Validation         ValidationReport       `json:"validation"`
	Algorithm          string                 `json:"algorithm"`
	Statistics         map[string]SolverStats `json:"statistics"`
	FinalScore         float64                `json:"final_score"`
	OptimizationTimeMs int64                  `json:"optimization_time_ms"`
}

// ProgressUpdate is pushed over the websocket hub while solvers run.
type ProgressUpdate struct {
	Type        string    `json:"type"`
	Solver      string    `json:"solver,omitempty"`
	Progress    float64   `json:"progress"`
	Message     string    `json:"message"`
	CurrentStep string    `json:"current_step"`
	BestScore   float64   `json:"best_score,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// ErrorResponse is the standard error body returned by the API.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code"`
	Details map[string]string `json:"details,omitempty"`
}

// SuccessResponse is the standard success envelope for non-result endpoints.
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// HealthStatus reports service health for the health endpoints.
type HealthStatus struct {
	Status    string            `json:"status"`
	Service   string            `json:"service"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}
