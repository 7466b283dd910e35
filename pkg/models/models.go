package models

import (
	"strings"
	"time"
)

// Budget is the visitor's self-reported budget tier
type Budget string

const (
	BudgetLow     Budget = "LOW"
	BudgetMid     Budget = "MID"
	BudgetHigh    Budget = "HIGH"
	BudgetUnknown Budget = "UNKNOWN"
)

// Timeline is how soon the visitor wants the project started
type Timeline string

const (
	TimelineASAP      Timeline = "ASAP"
	TimelineSoon      Timeline = "SOON"
	TimelineLater     Timeline = "LATER"
	TimelineExploring Timeline = "EXPLORING"
)

// ParseBudget matches an enum token case-insensitively.
func ParseBudget(s string) (Budget, bool) {
	switch b := Budget(strings.ToUpper(strings.TrimSpace(s))); b {
	case BudgetLow, BudgetMid, BudgetHigh, BudgetUnknown:
		return b, true
	}
	return BudgetUnknown, false
}

// ParseTimeline matches an enum token case-insensitively.
func ParseTimeline(s string) (Timeline, bool) {
	switch t := Timeline(strings.ToUpper(strings.TrimSpace(s))); t {
	case TimelineASAP, TimelineSoon, TimelineLater, TimelineExploring:
		return t, true
	}
	return TimelineExploring, false
}

// Contractor is a tenant who owns a subset of leads
type Contractor struct {
	ID           int64     `json:"id" db:"id"`
	Name         *string   `json:"name,omitempty" db:"name"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"` // Never expose password hash in JSON
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Lead is a completed intake persisted for a contractor
type Lead struct {
	ID           int64     `json:"id" db:"id"`
	ProjectType  string    `json:"project_type" db:"project_type"`
	Budget       Budget    `json:"budget" db:"budget"`
	Timeline     Timeline  `json:"timeline" db:"timeline"`
	Name         string    `json:"name" db:"name"`
	Email        string    `json:"email" db:"email"`
	Phone        *string   `json:"phone,omitempty" db:"phone"`
	Zip          *string   `json:"zip,omitempty" db:"zip"`
	Score        int       `json:"score" db:"score"`
	Summary      string    `json:"summary" db:"summary"`
	ContractorID int64     `json:"contractor_id" db:"contractor_id"`
	Transcript   *string   `json:"transcript,omitempty" db:"transcript"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
