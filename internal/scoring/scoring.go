// Package scoring computes the lead urgency/value score.
package scoring

import "github.com/leadintake/pkg/models"

// MaxScore is the highest score a lead can receive
const MaxScore = 6

var budgetPoints = map[models.Budget]int{
	models.BudgetHigh: 3,
	models.BudgetMid:  2,
}

var timelinePoints = map[models.Timeline]int{
	models.TimelineASAP: 3,
	models.TimelineSoon: 2,
}

// Score adds the budget and timeline contributions. Unrecognised values
// contribute nothing.
func Score(budget models.Budget, timeline models.Timeline) int {
	return budgetPoints[budget] + timelinePoints[timeline]
}
