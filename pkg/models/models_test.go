package models

import "testing"

func TestParseBudget(t *testing.T) {
	tests := []struct {
		in   string
		want Budget
		ok   bool
	}{
		{"HIGH", BudgetHigh, true},
		{" mid ", BudgetMid, true},
		{"low", BudgetLow, true},
		{"unknown", BudgetUnknown, true},
		{"about 40k", BudgetUnknown, false},
		{"", BudgetUnknown, false},
	}
	for _, tt := range tests {
		got, ok := ParseBudget(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseBudget(%q) = (%s, %v), want (%s, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestParseTimeline(t *testing.T) {
	tests := []struct {
		in   string
		want Timeline
		ok   bool
	}{
		{"ASAP", TimelineASAP, true},
		{"soon", TimelineSoon, true},
		{"Later", TimelineLater, true},
		{"exploring", TimelineExploring, true},
		{"next spring", TimelineExploring, false},
	}
	for _, tt := range tests {
		got, ok := ParseTimeline(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseTimeline(%q) = (%s, %v), want (%s, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
