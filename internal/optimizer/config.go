package optimizer

import (
	"time"

	"github.com/teamforge/balance-service/internal/types"
)

// Solver names as used in configuration and statistics.
const (
	SolverGenetic    = "genetic"
	SolverTabu       = "tabu"
	SolverAnnealing  = "annealing"
	SolverAntColony  = "antcolony"
	SolverConstraint = "constraint"
)

// SolverConfig collects every tunable of the solver portfolio. The exact
// magnitudes are named defaults, not behavioral contracts; callers may
// override any of them per request.
type SolverConfig struct {
	// Fitness weights
	VarianceWeight        float64
	PositionBalanceWeight float64

	// Universal swap mixture (normalized at dispatch)
	PlainSwapWeight    float64
	AdaptiveSwapWeight float64
	CrossPosSwapWeight float64
	InTeamSwapWeight   float64
	AdaptiveSwapProb   float64

	// Genetic algorithm
	PopulationSize     int
	Generations        int
	EliteCount         int
	TournamentSize     int
	CrossoverRate      float64
	MutationRate       float64
	GAStagnationLimit  int
	DiversityGuard     bool
	DiversityThreshold float64

	// Tabu search
	TabuIterations       int
	TabuTenure           int
	NeighborhoodSize     int
	DiversifyInterval    int
	TabuRestartThreshold int
	MultiStartTabu       bool
	MultiStartCount      int

	// Simulated annealing
	InitialTemperature float64
	FinalTemperature   float64
	CoolingRate        float64
	SAIterations       int
	AdaptiveCooling    bool
	EquilibriumBlock   int
	ReheatThreshold    int
	ReheatTemperature  float64

	// Ant colony
	AntCount        int
	ACOIterations   int
	PheromoneAlpha  float64
	RatingBeta      float64
	EvaporationRate float64
	DepositConstant float64
	ElitistWeight   float64

	// Constraint programming
	BacktrackBudget int

	// Local search refinement
	RefineIterations    int
	RefineNeighborhood  int
	RefinePerturbation  bool
	RefineStuckAttempts int

	// Portfolio
	EnabledSolvers   []string
	BalanceThreshold float64
	Seed             int64
}

// DefaultSolverConfig returns the documented default tuning.
func DefaultSolverConfig() SolverConfig {
	return SolverConfig{
		VarianceWeight:        0.5,
		PositionBalanceWeight: 0.3,

		PlainSwapWeight:    0.25,
		AdaptiveSwapWeight: 0.25,
		CrossPosSwapWeight: 0.25,
		InTeamSwapWeight:   0.25,
		AdaptiveSwapProb:   0.7,

		PopulationSize:     60,
		Generations:        150,
		EliteCount:         4,
		TournamentSize:     3,
		CrossoverRate:      0.8,
		MutationRate:       0.2,
		GAStagnationLimit:  25,
		DiversityGuard:     true,
		DiversityThreshold: 0.9,

		TabuIterations:       400,
		TabuTenure:           50,
		NeighborhoodSize:     20,
		DiversifyInterval:    60,
		TabuRestartThreshold: 120,
		MultiStartTabu:       false,
		MultiStartCount:      3,

		InitialTemperature: 400.0,
		FinalTemperature:   0.1,
		CoolingRate:        0.95,
		SAIterations:       4000,
		AdaptiveCooling:    false,
		EquilibriumBlock:   50,
		ReheatThreshold:    600,
		ReheatTemperature:  120.0,

		AntCount:        20,
		ACOIterations:   60,
		PheromoneAlpha:  1.0,
		RatingBeta:      2.0,
		EvaporationRate: 0.1,
		DepositConstant: 100.0,
		ElitistWeight:   2.0,

		BacktrackBudget: 50000,

		RefineIterations:    200,
		RefineNeighborhood:  15,
		RefinePerturbation:  true,
		RefineStuckAttempts: 3,

		EnabledSolvers: []string{
			SolverGenetic, SolverTabu, SolverAnnealing,
			SolverAntColony, SolverConstraint,
		},
		BalanceThreshold: 100.0,
		Seed:             0,
	}
}

// AdaptToProblemSize scales iteration and population budgets to the problem
// magnitude (teamCount x totalPlayers) so wall-clock time stays bounded for
// large rosters and small problems do not waste cycles.
func (c *SolverConfig) AdaptToProblemSize(teamCount, playerCount int) {
	magnitude := teamCount * playerCount

	switch {
	case magnitude <= 50:
		c.PopulationSize = 30
		c.Generations = 80
		c.TabuIterations = 200
		c.SAIterations = 2000
		c.ACOIterations = 40
		c.AntCount = 12
		c.RefineIterations = 100
	case magnitude <= 200:
		// defaults hold
	case magnitude <= 600:
		c.PopulationSize = 80
		c.Generations = 200
		c.TabuIterations = 600
		c.SAIterations = 6000
		c.ACOIterations = 80
		c.AntCount = 25
		c.RefineIterations = 300
	default:
		c.PopulationSize = 100
		c.Generations = 250
		c.TabuIterations = 800
		c.SAIterations = 8000
		c.ACOIterations = 100
		c.AntCount = 30
		c.BacktrackBudget = 100000
		c.RefineIterations = 400
	}
}

// ApplySettings merges per-request overrides into the config.
func (c *SolverConfig) ApplySettings(settings *types.OptimizeSettings) {
	if settings == nil {
		return
	}
	if settings.VarianceWeight > 0 {
		c.VarianceWeight = settings.VarianceWeight
	}
	if settings.PositionBalanceWeight > 0 {
		c.PositionBalanceWeight = settings.PositionBalanceWeight
	}
	if len(settings.EnabledSolvers) > 0 {
		c.EnabledSolvers = settings.EnabledSolvers
	}
	if settings.DiversityGuard != nil {
		c.DiversityGuard = *settings.DiversityGuard
	}
	if settings.MultiStartTabu {
		c.MultiStartTabu = true
	}
	if settings.Seed != 0 {
		c.Seed = settings.Seed
	}
}

// SeedOrNow returns the configured seed, or the current time when unset.
func (c *SolverConfig) SeedOrNow() int64 {
	if c.Seed != 0 {
		return c.Seed
	}
	return time.Now().UnixNano()
}

// SolverEnabled reports whether the named solver is in the enabled set.
func (c *SolverConfig) SolverEnabled(name string) bool {
	for _, s := range c.EnabledSolvers {
		if s == name {
			return true
		}
	}
	return false
}
