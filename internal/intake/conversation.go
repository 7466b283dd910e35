package intake

import (
	"encoding/json"
	"time"

	"github.com/leadintake/pkg/models"
)

// Stage is a step of the intake questionnaire
type Stage string

const (
	StageAwaitingBudget   Stage = "AwaitingBudget"
	StageAwaitingTimeline Stage = "AwaitingTimeline"
	StageAwaitingContact  Stage = "AwaitingContact"
	StageComplete         Stage = "Complete"
)

// Speakers recorded in a transcript
const (
	RoleAssistant = "assistant"
	RoleVisitor   = "visitor"
)

// Turn is one line of the intake dialogue
type Turn struct {
	Role string    `json:"role"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// Conversation is the in-progress intake for one session
type Conversation struct {
	SessionID    string           `json:"session_id"`
	ProjectType  string           `json:"project_type"`
	ContractorID *int64           `json:"contractor_id,omitempty"`
	Stage        Stage            `json:"stage"`
	Budget       *models.Budget   `json:"budget,omitempty"`
	Timeline     *models.Timeline `json:"timeline,omitempty"`
	Transcript   []Turn           `json:"transcript"`
	Version      int64            `json:"version"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
	ExpiresAt    time.Time        `json:"expires_at"`
}

func (c *Conversation) addTurn(role, text string, at time.Time) {
	c.Transcript = append(c.Transcript, Turn{Role: role, Text: text, At: at})
}

// TranscriptJSON renders the transcript for storage on the lead
func (c *Conversation) TranscriptJSON() (string, error) {
	b, err := json.Marshal(c.Transcript)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func cloneConversation(c *Conversation) *Conversation {
	out := *c
	if c.ContractorID != nil {
		id := *c.ContractorID
		out.ContractorID = &id
	}
	if c.Budget != nil {
		b := *c.Budget
		out.Budget = &b
	}
	if c.Timeline != nil {
		t := *c.Timeline
		out.Timeline = &t
	}
	out.Transcript = append([]Turn(nil), c.Transcript...)
	return &out
}
