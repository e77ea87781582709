package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "moneyminder/internal/errors"
	"moneyminder/internal/services"
)

// SummaryHandler serves the cached financial summary.
type SummaryHandler struct {
	summaryService services.SummaryServicer
	auditService   services.AuditServicer
}

// NewSummaryHandler creates a new SummaryHandler.
func NewSummaryHandler(summaryService services.SummaryServicer, auditService services.AuditServicer) *SummaryHandler {
	return &SummaryHandler{summaryService: summaryService, auditService: auditService}
}

// GetSummary returns the user's financial summary
// @Summary     Get financial summary
// @Tags        summary
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} map[string]models.FinancialSummary
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /summary [get]
func (h *SummaryHandler) GetSummary(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	summary, err := h.summaryService.GetSummary(c.Request.Context(), userID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": summary})
}

// UpdateSummary overwrites income and/or expenses
// @Summary     Update financial summary
// @Tags        summary
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body services.SummaryPatch true "Income and/or expenses"
// @Success     200 {object} map[string]models.FinancialSummary
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Router      /summary [patch]
func (h *SummaryHandler) UpdateSummary(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var patch services.SummaryPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		bindError(c, err)
		return
	}
	if patch.Income == nil && patch.Expenses == nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "At least one of income or expenses must be provided"))
		return
	}

	changed, err := h.summaryService.UpdateSummary(c.Request.Context(), userID, patch)
	if err != nil {
		respondWithError(c, err)
		return
	}
	if !changed {
		respondWithError(c, apperrors.ErrNoChanges)
		return
	}

	summary, err := h.summaryService.GetSummary(c.Request.Context(), userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	changes := map[string]interface{}{}
	if patch.Income != nil {
		changes["income"] = patch.Income.StringFixed(2)
	}
	if patch.Expenses != nil {
		changes["expenses"] = patch.Expenses.StringFixed(2)
	}
	h.auditService.Log(c.Request.Context(), userID, services.AuditUpdateSummary, "financial_summary", userID, c.ClientIP(), changes)

	c.JSON(http.StatusOK, gin.H{"summary": summary})
}

// ReconcileSummary rebuilds the summary from the ledger
// @Summary     Reconcile financial summary
// @Tags        summary
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} map[string]models.FinancialSummary
// @Router      /summary/reconcile [post]
func (h *SummaryHandler) ReconcileSummary(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	summary, err := h.summaryService.Reconcile(c.Request.Context(), userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(c.Request.Context(), userID, services.AuditReconcileSummary, "financial_summary", userID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"summary": summary})
}
