package api

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/leadintake/internal/api/auth"
	"github.com/leadintake/pkg/models"
)

// DashboardData is what a contractor sees of their own pipeline
type DashboardData struct {
	ContractorID int64          `json:"contractorId"`
	Leads        []*models.Lead `json:"leads"`
}

type dashboardHandlers struct {
	leads LeadLister
}

// data returns the authenticated contractor's leads, newest first. Must
// run behind auth.RequireAuth.
func (h *dashboardHandlers) data(c echo.Context) error {
	contractorID, ok := auth.ContractorID(c)
	if !ok {
		return auth.ErrUnauthenticated
	}

	leads, err := h.leads.ListByContractor(c.Request().Context(), contractorID)
	if err != nil {
		return fmt.Errorf("failed to list leads for contractor %d: %w", contractorID, err)
	}
	if leads == nil {
		leads = []*models.Lead{}
	}

	return c.JSON(http.StatusOK, DashboardData{ContractorID: contractorID, Leads: leads})
}
