package intake

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"
	"unicode"

	"github.com/rs/zerolog/log"

	"github.com/leadintake/internal/ai"
	"github.com/leadintake/internal/scoring"
	"github.com/leadintake/pkg/models"
)

// Classifier maps free text onto the budget and timeline enums. It must
// return a valid enum value even when the model is unavailable.
type Classifier interface {
	ClassifyBudget(ctx context.Context, text string) models.Budget
	ClassifyTimeline(ctx context.Context, text string) models.Timeline
}

// Summarizer produces the contractor-facing analysis of a lead
type Summarizer interface {
	Summarize(ctx context.Context, lead *models.Lead) ai.Summary
}

// LeadStore persists completed leads
type LeadStore interface {
	Insert(ctx context.Context, lead *models.Lead) (int64, error)
}

// Notifier announces a stored lead. Implementations must not block the
// caller for long and must swallow their own failures.
type Notifier interface {
	NotifyLead(ctx context.Context, lead *models.Lead)
}

// ServiceOptions wires the collaborators of a Service. Store and Leads are
// required; a nil Classifier only accepts enum tokens, a nil Summarizer
// stores the fallback summary and a nil Notifier skips notification.
type ServiceOptions struct {
	Store      Store
	Leads      LeadStore
	Classifier Classifier
	Summarizer Summarizer
	Notifier   Notifier
	Prompts    Prompts

	// DefaultContractorID attributes leads that arrive without a
	// contractor. Such leads are logged as house leads.
	DefaultContractorID int64
	ConversationTTL     time.Duration
}

// Service runs the intake questionnaire
type Service struct {
	opts  ServiceOptions
	locks *keyedMutex
	now   func() time.Time
}

func NewService(opts ServiceOptions) (*Service, error) {
	if opts.Store == nil {
		return nil, errors.New("intake: store is required")
	}
	if opts.Leads == nil {
		return nil, errors.New("intake: lead store is required")
	}
	if opts.Prompts == (Prompts{}) {
		opts.Prompts = DefaultPrompts()
	}
	if opts.DefaultContractorID <= 0 {
		opts.DefaultContractorID = 1
	}
	return &Service{
		opts:  opts,
		locks: newKeyedMutex(),
		now:   time.Now,
	}, nil
}

// Reply is the assistant's response to a step
type Reply struct {
	Stage  Stage  `json:"stage"`
	Prompt string `json:"reply"`
}

// Contact is what the visitor submits at the end of the questionnaire
type Contact struct {
	Name         string
	Email        string
	Phone        *string
	Zip          *string
	ContractorID *int64
}

// Submission is a complete lead posted in one request
type Submission struct {
	ProjectType string
	Budget      string
	Timeline    string
	Contact
}

// Start opens a conversation. Reusing the id of a conversation still in
// progress is rejected; a completed or expired one is replaced.
func (s *Service) Start(ctx context.Context, sessionID, projectType string, contractorID *int64) (Reply, error) {
	sessionID = strings.TrimSpace(sessionID)
	projectType = singleLine(projectType)
	if sessionID == "" || projectType == "" {
		return Reply{}, validationError(ReasonValidation, "sessionId and projectType are required")
	}
	if contractorID != nil && *contractorID <= 0 {
		return Reply{}, validationError(ReasonValidation, "contractorId must be positive")
	}

	unlock := s.locks.Lock(sessionID)
	defer unlock()

	now := s.now()
	conv := &Conversation{
		SessionID:    sessionID,
		ProjectType:  projectType,
		ContractorID: contractorID,
		Stage:        StageAwaitingBudget,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if s.opts.ConversationTTL > 0 {
		conv.ExpiresAt = now.Add(s.opts.ConversationTTL)
	}
	prompt := s.opts.Prompts.forStage(StageAwaitingBudget, projectType)
	conv.addTurn(RoleVisitor, projectType, now)
	conv.addTurn(RoleAssistant, prompt, now)

	if err := s.opts.Store.Create(ctx, conv); err != nil {
		if errors.Is(err, ErrSessionExists) {
			return Reply{}, &Error{Kind: ErrSessionExists, Reason: ReasonSessionExists, Msg: "session " + sessionID + " is already in progress"}
		}
		return Reply{}, s.downstream("conversation store", err)
	}

	log.Debug().Str("session_id", sessionID).Str("project_type", projectType).Msg("Intake conversation started")
	return Reply{Stage: conv.Stage, Prompt: prompt}, nil
}

// Answer records the visitor's reply to the current question and returns
// the next one.
func (s *Service) Answer(ctx context.Context, sessionID, message string) (Reply, error) {
	sessionID = strings.TrimSpace(sessionID)
	message = strings.TrimSpace(message)
	if sessionID == "" {
		return Reply{}, validationError(ReasonValidation, "sessionId is required")
	}

	unlock := s.locks.Lock(sessionID)
	defer unlock()

	conv, err := s.load(ctx, sessionID)
	if err != nil {
		return Reply{}, err
	}

	switch conv.Stage {
	case StageComplete:
		return Reply{}, ErrConversationComplete
	case StageAwaitingContact:
		return Reply{}, validationError(ReasonContactExpected, "contact details are expected at this stage")
	}
	if message == "" {
		return Reply{}, validationError(ReasonValidation, "message is required")
	}

	now := s.now()
	conv.addTurn(RoleVisitor, message, now)

	switch conv.Stage {
	case StageAwaitingBudget:
		budget := s.classifyBudget(ctx, message)
		conv.Budget = &budget
		conv.Stage = StageAwaitingTimeline
	case StageAwaitingTimeline:
		timeline := s.classifyTimeline(ctx, message)
		conv.Timeline = &timeline
		conv.Stage = StageAwaitingContact
	}

	prompt := s.opts.Prompts.forStage(conv.Stage, conv.ProjectType)
	conv.addTurn(RoleAssistant, prompt, now)
	s.touch(conv, now)

	if err := s.opts.Store.Save(ctx, conv); err != nil {
		return Reply{}, s.saveError(err)
	}
	return Reply{Stage: conv.Stage, Prompt: prompt}, nil
}

// Complete validates the contact details and turns the conversation into a
// stored lead. Validation and storage failures leave the conversation in
// AwaitingContact so the visitor can retry.
func (s *Service) Complete(ctx context.Context, sessionID string, contact Contact) (*models.Lead, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, validationError(ReasonValidation, "sessionId is required")
	}

	unlock := s.locks.Lock(sessionID)
	defer unlock()

	conv, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	switch conv.Stage {
	case StageComplete:
		return nil, ErrConversationComplete
	case StageAwaitingContact:
	default:
		return nil, validationError(ReasonConversationIncomplete, "conversation is still at %s", conv.Stage)
	}

	contact, err = normalizeContact(contact)
	if err != nil {
		return nil, err
	}

	now := s.now()
	conv.addTurn(RoleVisitor, contactLine(contact), now)
	transcript, err := conv.TranscriptJSON()
	if err != nil {
		return nil, err
	}

	contractorID := contact.ContractorID
	if contractorID == nil {
		contractorID = conv.ContractorID
	}

	lead := &models.Lead{
		ProjectType:  conv.ProjectType,
		Budget:       models.BudgetUnknown,
		Timeline:     models.TimelineExploring,
		Name:         contact.Name,
		Email:        contact.Email,
		Phone:        contact.Phone,
		Zip:          contact.Zip,
		ContractorID: s.attribute(contractorID, sessionID),
		Transcript:   &transcript,
	}
	if conv.Budget != nil {
		lead.Budget = *conv.Budget
	}
	if conv.Timeline != nil {
		lead.Timeline = *conv.Timeline
	}

	if err := s.finalize(ctx, lead); err != nil {
		return nil, err
	}

	conv.Stage = StageComplete
	conv.addTurn(RoleAssistant, s.opts.Prompts.forStage(StageComplete, conv.ProjectType), now)
	s.touch(conv, now)
	if err := s.markComplete(ctx, conv); err != nil {
		// The lead is already stored; report success. A later complete on
		// this session would store a second lead.
		log.Error().Err(err).Str("session_id", sessionID).Int64("lead_id", lead.ID).Msg("Failed to mark conversation complete")
	}

	return lead, nil
}

// markComplete saves the completed conversation, retrying once. A version
// conflict on the retry means the first write landed.
func (s *Service) markComplete(ctx context.Context, conv *Conversation) error {
	version := conv.Version
	err := s.opts.Store.Save(ctx, conv)
	if err == nil {
		return nil
	}
	log.Warn().Err(err).Str("session_id", conv.SessionID).Msg("Marking conversation complete failed, retrying")

	conv.Version = version
	err = s.opts.Store.Save(ctx, conv)
	if errors.Is(err, ErrVersionConflict) {
		if cur, getErr := s.opts.Store.Get(ctx, conv.SessionID); getErr == nil && cur.Stage == StageComplete {
			return nil
		}
	}
	return err
}

// Submit stores a lead whose answers arrive in a single request
func (s *Service) Submit(ctx context.Context, sub Submission) (*models.Lead, error) {
	sub.ProjectType = singleLine(sub.ProjectType)
	sub.Budget = strings.TrimSpace(sub.Budget)
	sub.Timeline = strings.TrimSpace(sub.Timeline)
	if sub.ProjectType == "" || sub.Budget == "" || sub.Timeline == "" {
		return nil, validationError(ReasonValidation, "projectType, budget and timeline are required")
	}

	contact, err := normalizeContact(sub.Contact)
	if err != nil {
		return nil, err
	}

	lead := &models.Lead{
		ProjectType:  sub.ProjectType,
		Budget:       s.classifyBudget(ctx, sub.Budget),
		Timeline:     s.classifyTimeline(ctx, sub.Timeline),
		Name:         contact.Name,
		Email:        contact.Email,
		Phone:        contact.Phone,
		Zip:          contact.Zip,
		ContractorID: s.attribute(contact.ContractorID, ""),
	}

	if err := s.finalize(ctx, lead); err != nil {
		return nil, err
	}
	return lead, nil
}

// finalize scores, summarizes, stores and announces a lead
func (s *Service) finalize(ctx context.Context, lead *models.Lead) error {
	lead.Score = scoring.Score(lead.Budget, lead.Timeline)

	summary := ai.Unavailable("summarizer not configured")
	if s.opts.Summarizer != nil {
		summary = s.opts.Summarizer.Summarize(ctx, lead)
	}
	if _, ok := summary.Text(); !ok {
		log.Warn().Str("reason", summary.Reason()).Msg("Lead summary unavailable, storing fallback")
	}
	lead.Summary = summary.OrFallback()

	id, err := s.opts.Leads.Insert(ctx, lead)
	if err != nil {
		return s.downstream("lead store", err)
	}
	lead.ID = id

	log.Info().
		Int64("lead_id", lead.ID).
		Int64("contractor_id", lead.ContractorID).
		Int("score", lead.Score).
		Msg("Lead saved")

	if s.opts.Notifier != nil {
		s.opts.Notifier.NotifyLead(ctx, lead)
	}
	return nil
}

func (s *Service) load(ctx context.Context, sessionID string) (*Conversation, error) {
	conv, err := s.opts.Store.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, &Error{Kind: ErrSessionNotFound, Reason: ReasonSessionNotFound, Msg: "start a new conversation"}
		}
		return nil, s.downstream("conversation store", err)
	}
	return conv, nil
}

func (s *Service) saveError(err error) error {
	if errors.Is(err, ErrSessionNotFound) || errors.Is(err, ErrVersionConflict) {
		return err
	}
	return s.downstream("conversation store", err)
}

func (s *Service) downstream(what string, err error) error {
	log.Error().Err(err).Str("collaborator", what).Msg("Intake dependency failed")
	return &Error{Kind: ErrDownstreamUnavailable, Reason: ReasonDownstreamUnavailable, Msg: what + " unavailable"}
}

func (s *Service) touch(conv *Conversation, now time.Time) {
	conv.UpdatedAt = now
	if s.opts.ConversationTTL > 0 {
		conv.ExpiresAt = now.Add(s.opts.ConversationTTL)
	}
}

// attribute resolves which contractor owns a lead
func (s *Service) attribute(contractorID *int64, sessionID string) int64 {
	if contractorID != nil && *contractorID > 0 {
		return *contractorID
	}
	log.Info().
		Str("session_id", sessionID).
		Int64("contractor_id", s.opts.DefaultContractorID).
		Msg("House lead: no contractor supplied, using default contractor")
	return s.opts.DefaultContractorID
}

func (s *Service) classifyBudget(ctx context.Context, text string) models.Budget {
	if b, ok := models.ParseBudget(text); ok {
		return b
	}
	if s.opts.Classifier == nil {
		return models.BudgetUnknown
	}
	if b, ok := models.ParseBudget(string(s.opts.Classifier.ClassifyBudget(ctx, text))); ok {
		return b
	}
	return models.BudgetUnknown
}

func (s *Service) classifyTimeline(ctx context.Context, text string) models.Timeline {
	if t, ok := models.ParseTimeline(text); ok {
		return t
	}
	if s.opts.Classifier == nil {
		return models.TimelineExploring
	}
	if t, ok := models.ParseTimeline(string(s.opts.Classifier.ClassifyTimeline(ctx, text))); ok {
		return t
	}
	return models.TimelineExploring
}

func normalizeContact(c Contact) (Contact, error) {
	c.Name = singleLine(c.Name)
	c.Email = strings.TrimSpace(c.Email)
	if c.Name == "" {
		return c, validationError(ReasonValidation, "name is required")
	}
	if !plausibleEmail(c.Email) {
		return c, validationError(ReasonValidation, "a valid email is required")
	}
	c.Phone = trimOptional(c.Phone)
	c.Zip = trimOptional(c.Zip)
	if c.ContractorID != nil && *c.ContractorID <= 0 {
		return c, validationError(ReasonValidation, "contractorId must be positive")
	}
	return c, nil
}

// plausibleEmail accepts a bare address with a dotted domain
func plausibleEmail(email string) bool {
	if email == "" {
		return false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return false
	}
	at := strings.LastIndex(email, "@")
	domain := email[at+1:]
	return strings.Contains(domain, ".") && !strings.HasSuffix(domain, ".")
}

// singleLine turns control characters into spaces and collapses runs of
// whitespace. Visitor text ends up in notification headers.
func singleLine(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func contactLine(c Contact) string {
	parts := []string{c.Name, c.Email}
	if c.Phone != nil {
		parts = append(parts, *c.Phone)
	}
	if c.Zip != nil {
		parts = append(parts, *c.Zip)
	}
	return strings.Join(parts, ", ")
}
