package optimizer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/teamforge/balance-service/internal/types"
)

// ValidationError carries the full violation list of an infeasible request.
// Violations accumulate so the caller sees every problem at once.
type ValidationError struct {
	Report types.ValidationReport
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Report.Violations))
	for _, v := range e.Report.Violations {
		msgs = append(msgs, v.Message)
	}
	return "infeasible composition: " + strings.Join(msgs, "; ")
}

// ValidateFeasibility checks that the requested composition can be satisfied
// by the available roster. It never fails fast: every violated position is
// collected. Warnings flag exact matches where no substitutes remain.
func ValidateFeasibility(composition types.Composition, teamCount int, players []types.Player) types.ValidationReport {
	report := types.ValidationReport{
		Valid:      true,
		Violations: []types.ValidationViolation{},
	}

	if teamCount < 1 {
		report.Valid = false
		report.Violations = append(report.Violations, types.ValidationViolation{
			Message: fmt.Sprintf("team count must be positive, got %d", teamCount),
		})
		return report
	}

	byPosition := GroupByPosition(players)

	positions := make([]string, 0, len(composition))
	for pos := range composition {
		positions = append(positions, pos)
	}
	sort.Strings(positions)

	for _, pos := range positions {
		count := composition[pos]
		if count <= 0 {
			continue
		}
		needed := count * teamCount
		available := len(byPosition[pos])
		if available < needed {
			report.Valid = false
			report.Violations = append(report.Violations, types.ValidationViolation{
				Position:  pos,
				Needed:    needed,
				Available: available,
				Message: fmt.Sprintf("position %s requires %d players (%d per team x %d teams) but only %d are eligible",
					pos, needed, count, teamCount, available),
			})
		} else if available == needed {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("position %s: exact match, no substitutes available (%d needed, %d eligible)", pos, needed, available))
		}
	}

	totalSlots := composition.TotalSlots() * teamCount
	if totalSlots > len(players) {
		report.Valid = false
		report.Violations = append(report.Violations, types.ValidationViolation{
			Needed:    totalSlots,
			Available: len(players),
			Message: fmt.Sprintf("composition requests %d total players across %d teams but the roster has only %d",
				totalSlots, teamCount, len(players)),
		})
	}

	return report
}
