package optimizer

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/teamforge/balance-service/internal/rating"
	"github.com/teamforge/balance-service/internal/types"
	"github.com/teamforge/balance-service/pkg/logger"
)

// Optimizer is the facade over the solver portfolio. It validates input,
// builds the initial candidate pool, runs every enabled solver concurrently,
// refines the winner, and assembles the structured result.
type Optimizer struct {
	cfg SolverConfig
	log *logrus.Logger
}

func New(cfg SolverConfig, log *logrus.Logger) *Optimizer {
	return &Optimizer{cfg: cfg, log: log}
}

type solverOutcome struct {
	name     string
	solution *Solution
	score    float64
	stats    types.SolverStats
	err      error
}

// Optimize runs the full pipeline. progressChan may be nil; when set,
// updates are sent non-blockingly at pipeline milestones.
func (o *Optimizer) Optimize(
	ctx context.Context,
	composition types.Composition,
	teamCount int,
	players []types.Player,
	settings *types.OptimizeSettings,
	progressChan chan<- types.ProgressUpdate,
) (*types.OptimizeResult, error) {
	optimizationID := uuid.New().String()
	start := time.Now()
	log := logger.WithOptimizationContext(o.log, optimizationID, teamCount, len(players))

	cfg := o.cfg
	cfg.ApplySettings(settings)
	cfg.AdaptToProblemSize(teamCount, len(players))

	log.WithFields(logrus.Fields{
		"composition": composition,
		"solvers":     cfg.EnabledSolvers,
	}).Info("Starting team balance optimization")
	o.sendProgress(progressChan, types.ProgressUpdate{
		Type: "optimization", Progress: 0.0,
		Message: "Validating composition...", CurrentStep: "validation",
		Timestamp: time.Now(),
	})

	validation := ValidateFeasibility(composition, teamCount, players)
	if !validation.Valid {
		log.WithField("violations", len(validation.Violations)).Warn("Optimization request is infeasible")
		return nil, &ValidationError{Report: validation}
	}

	byPosition := GroupByPosition(players)
	positions := PositionPriority(composition, byPosition, teamCount)

	seed := cfg.SeedOrNow()
	poolRng := rand.New(rand.NewSource(seed))
	pool := GeneratePool(composition, teamCount, byPosition, poolRng, 4, log)

	evaluator := NewEvaluator(cfg.VarianceWeight, cfg.PositionBalanceWeight)
	pc := &ProblemContext{
		Composition:       composition,
		TeamCount:         teamCount,
		Players:           players,
		PlayersByPosition: byPosition,
		Positions:         positions,
		Pool:              pool,
		Evaluator:         evaluator,
		Config:            cfg,
		Log:               log,
	}

	o.sendProgress(progressChan, types.ProgressUpdate{
		Type: "optimization", Progress: 0.1,
		Message: fmt.Sprintf("Running %d solvers...", len(cfg.EnabledSolvers)),
		CurrentStep: "solving", Timestamp: time.Now(),
	})

	outcomes := o.runPortfolio(ctx, pc, seed, log, progressChan)
	winner, statistics, err := o.selectWinner(outcomes, log)
	if err != nil {
		// Misconfiguration fallback: an empty or unrecognized solver list
		// produced nothing, so enable a minimal subset and retry once.
		if len(outcomes) == 0 {
			log.Warn("No solvers ran, retrying with default subset")
			pc.Config.EnabledSolvers = []string{SolverGenetic, SolverTabu}
			outcomes = o.runPortfolio(ctx, pc, seed+1, log, progressChan)
			winner, statistics, err = o.selectWinner(outcomes, log)
		}
		if err != nil {
			return nil, err
		}
	}

	o.sendProgress(progressChan, types.ProgressUpdate{
		Type: "optimization", Progress: 0.85,
		Message: "Refining best candidate...", CurrentStep: "refinement",
		BestScore: winner.score, Timestamp: time.Now(),
	})

	refiner := NewLocalSearch(seed + 101)
	refined, refinedScore := refiner.Refine(winner.solution, pc, log)

	result := o.assembleResult(refined, refinedScore, winner.name, statistics, validation, players, cfg)
	result.OptimizationTimeMs = time.Since(start).Milliseconds()

	log.WithFields(logrus.Fields{
		"algorithm":      result.Algorithm,
		"final_score":    result.FinalScore,
		"max_difference": result.Balance.MaxDifference,
		"unused_players": len(result.UnusedPlayers),
		"elapsed_ms":     result.OptimizationTimeMs,
	}).Info("Optimization completed")
	o.sendProgress(progressChan, types.ProgressUpdate{
		Type: "optimization", Progress: 1.0,
		Message: "Optimization completed", CurrentStep: "completed",
		BestScore: refinedScore, Timestamp: time.Now(),
	})

	return result, nil
}

// Validate exposes the feasibility check without solving.
func (o *Optimizer) Validate(composition types.Composition, teamCount int, players []types.Player) types.ValidationReport {
	return ValidateFeasibility(composition, teamCount, players)
}

// runPortfolio fans out one goroutine per enabled solver over the shared
// read-only context and joins them all, collecting successes and failures
// alike. A failure in one solver never aborts the others.
func (o *Optimizer) runPortfolio(
	ctx context.Context,
	pc *ProblemContext,
	seed int64,
	log *logrus.Entry,
	progressChan chan<- types.ProgressUpdate,
) []solverOutcome {
	solvers := o.buildSolvers(pc.Config, seed)

	results := make(chan solverOutcome, len(solvers))
	var wg sync.WaitGroup
	for _, solver := range solvers {
		wg.Add(1)
		go func(s Solver) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					results <- solverOutcome{
						name: s.Name(),
						err:  fmt.Errorf("solver %s panicked: %v", s.Name(), r),
					}
				}
			}()

			solution, err := s.Solve(ctx, pc)
			outcome := solverOutcome{name: s.Name(), stats: s.Stats(), err: err}
			if err == nil && solution != nil {
				outcome.solution = solution
				outcome.score = pc.Evaluator.Evaluate(solution)
			} else if err == nil {
				outcome.err = fmt.Errorf("solver %s returned no solution", s.Name())
			}
			results <- outcome
		}(solver)
	}
	wg.Wait()
	close(results)

	outcomes := make([]solverOutcome, 0, len(solvers))
	for outcome := range results {
		if outcome.err != nil {
			logger.WithSolver(log, outcome.name).WithError(outcome.err).Error("Solver failed")
		} else {
			logger.WithSolver(log, outcome.name).WithField("score", outcome.score).Debug("Solver finished")
			o.sendProgress(progressChan, types.ProgressUpdate{
				Type: "solver", Solver: outcome.name,
				Message:   fmt.Sprintf("Solver %s finished", outcome.name),
				BestScore: outcome.score, CurrentStep: "solving",
				Timestamp: time.Now(),
			})
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

var canonicalSolverOrder = []string{
	SolverGenetic, SolverTabu, SolverAnnealing, SolverAntColony, SolverConstraint,
}

func solverRank(name string) int {
	for i, s := range canonicalSolverOrder {
		if s == name {
			return i
		}
	}
	return len(canonicalSolverOrder)
}

func (o *Optimizer) buildSolvers(cfg SolverConfig, seed int64) []Solver {
	var solvers []Solver
	// Distinct seed offsets keep solver streams independent.
	if cfg.SolverEnabled(SolverGenetic) {
		solvers = append(solvers, NewGeneticSolver(seed+1))
	}
	if cfg.SolverEnabled(SolverTabu) {
		solvers = append(solvers, NewTabuSolver(seed+2))
	}
	if cfg.SolverEnabled(SolverAnnealing) {
		solvers = append(solvers, NewAnnealingSolver(seed+3))
	}
	if cfg.SolverEnabled(SolverAntColony) {
		solvers = append(solvers, NewAntColonySolver(seed+4))
	}
	if cfg.SolverEnabled(SolverConstraint) {
		solvers = append(solvers, NewConstraintSolver(seed+5))
	}
	return solvers
}

// selectWinner picks the lowest-score successful outcome. Ties break on the
// canonical solver order so concurrent arrival cannot change the result.
// Degenerate (non-finite) scores are only eligible when every candidate is
// degenerate, in which case the canonical order decides as well.
func (o *Optimizer) selectWinner(outcomes []solverOutcome, log *logrus.Entry) (solverOutcome, map[string]types.SolverStats, error) {
	statistics := make(map[string]types.SolverStats, len(outcomes))
	var winner solverOutcome
	var fallback solverOutcome
	found, degenerate := false, false

	for _, outcome := range outcomes {
		if outcome.err != nil {
			outcome.stats.Failed = true
			outcome.stats.Error = outcome.err.Error()
		}
		if outcome.name != "" {
			statistics[outcome.name] = outcome.stats
		}
		if outcome.err != nil || outcome.solution == nil {
			continue
		}
		if math.IsInf(outcome.score, 1) || math.IsNaN(outcome.score) {
			if !degenerate || solverRank(outcome.name) < solverRank(fallback.name) {
				fallback = outcome
				degenerate = true
			}
			continue
		}
		if !found || outcome.score < winner.score ||
			(outcome.score == winner.score && solverRank(outcome.name) < solverRank(winner.name)) {
			winner = outcome
			found = true
		}
	}

	if !found {
		if degenerate {
			log.Warn("All candidates scored non-finite, returning least-bad by solver order")
			return fallback, statistics, nil
		}
		return solverOutcome{}, statistics, fmt.Errorf("optimization failed: no solver produced a usable result")
	}
	return winner, statistics, nil
}

func (o *Optimizer) assembleResult(
	solution *Solution,
	score float64,
	algorithm string,
	statistics map[string]types.SolverStats,
	validation types.ValidationReport,
	players []types.Player,
	cfg SolverConfig,
) *types.OptimizeResult {
	// Sort players within each team by canonical position order, then teams
	// by descending strength.
	order := make(map[string]int, len(types.PositionOrder))
	for i, pos := range types.PositionOrder {
		order[pos] = i
	}
	positionRank := func(pos string) int {
		if r, ok := order[pos]; ok {
			return r
		}
		return len(order)
	}

	teams := make([]types.TeamResult, 0, len(solution.Teams))
	for i, team := range solution.Teams {
		sorted := make([]types.AssignedPlayer, len(team))
		copy(sorted, team)
		sort.SliceStable(sorted, func(a, b int) bool {
			ra, rb := positionRank(sorted[a].AssignedPosition), positionRank(sorted[b].AssignedPosition)
			if ra != rb {
				return ra < rb
			}
			return sorted[a].PositionRating > sorted[b].PositionRating
		})
		strength := solution.TeamStrength(i)
		avg := 0.0
		if len(team) > 0 {
			avg = strength / float64(len(team))
		}
		teams = append(teams, types.TeamResult{
			Players:       sorted,
			TotalRating:   strength,
			AverageRating: avg,
		})
	}
	sort.SliceStable(teams, func(a, b int) bool {
		return teams[a].TotalRating > teams[b].TotalRating
	})

	assignedTeams := make([][]types.AssignedPlayer, len(teams))
	for i, t := range teams {
		assignedTeams[i] = t.Players
	}
	balance := rating.EvaluateBalance(assignedTeams, cfg.BalanceThreshold)

	used := solution.PlayerIDs()
	unused := make([]types.Player, 0)
	for _, p := range players {
		if !used[p.ID] {
			unused = append(unused, p)
		}
	}

	return &types.OptimizeResult{
		Teams:         teams,
		Balance:       balance,
		UnusedPlayers: unused,
		Validation:    validation,
		Algorithm:     algorithm,
		Statistics:    statistics,
		FinalScore:    score,
	}
}

func (o *Optimizer) sendProgress(ch chan<- types.ProgressUpdate, update types.ProgressUpdate) {
	if ch == nil {
		return
	}
	select {
	case ch <- update:
	default:
		// Progress is best-effort; never stall solving on a slow consumer.
	}
}
