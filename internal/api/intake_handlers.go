package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/leadintake/internal/intake"
	"github.com/leadintake/pkg/models"
)

type intakeHandlers struct {
	service *intake.Service
}

// StartRequest opens a questionnaire
type StartRequest struct {
	SessionID    string `json:"sessionId"`
	ProjectType  string `json:"projectType"`
	ContractorID *int64 `json:"contractorId"`
}

// AnswerRequest carries the visitor's reply to the current prompt
type AnswerRequest struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

// CompleteRequest finishes a session, or submits a whole lead at once when
// SessionID is empty.
type CompleteRequest struct {
	SessionID    string  `json:"sessionId"`
	ProjectType  string  `json:"projectType"`
	Budget       string  `json:"budget"`
	Timeline     string  `json:"timeline"`
	Name         string  `json:"name"`
	Email        string  `json:"email"`
	Phone        *string `json:"phone"`
	Zip          *string `json:"zip"`
	ContractorID *int64  `json:"contractorId"`
}

// StepResponse is returned by start and answer
type StepResponse struct {
	Success bool         `json:"success"`
	Stage   intake.Stage `json:"stage"`
	Reply   string       `json:"reply"`
}

// CompleteResponse is returned once a lead is stored
type CompleteResponse struct {
	Success bool  `json:"success"`
	LeadID  int64 `json:"leadId"`
	Score   int   `json:"score"`
}

func (h *intakeHandlers) start(c echo.Context) error {
	var req StartRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	reply, err := h.service.Start(c.Request().Context(), req.SessionID, req.ProjectType, req.ContractorID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, StepResponse{Success: true, Stage: reply.Stage, Reply: reply.Prompt})
}

func (h *intakeHandlers) answer(c echo.Context) error {
	var req AnswerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	reply, err := h.service.Answer(c.Request().Context(), req.SessionID, req.Message)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, StepResponse{Success: true, Stage: reply.Stage, Reply: reply.Prompt})
}

func (h *intakeHandlers) complete(c echo.Context) error {
	var req CompleteRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	contact := intake.Contact{
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
		Zip:          req.Zip,
		ContractorID: req.ContractorID,
	}
	ctx := c.Request().Context()

	var (
		lead *models.Lead
		err  error
	)
	if strings.TrimSpace(req.SessionID) != "" {
		lead, err = h.service.Complete(ctx, req.SessionID, contact)
	} else {
		lead, err = h.service.Submit(ctx, intake.Submission{
			ProjectType: req.ProjectType,
			Budget:      req.Budget,
			Timeline:    req.Timeline,
			Contact:     contact,
		})
	}
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, CompleteResponse{Success: true, LeadID: lead.ID, Score: lead.Score})
}
