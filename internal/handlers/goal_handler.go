package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "moneyminder/internal/errors"
	"moneyminder/internal/models"
	"moneyminder/internal/services"
)

// GoalHandler handles savings goal requests.
type GoalHandler struct {
	goalService  services.GoalServicer
	auditService services.AuditServicer
}

// NewGoalHandler creates a new GoalHandler.
func NewGoalHandler(goalService services.GoalServicer, auditService services.AuditServicer) *GoalHandler {
	return &GoalHandler{goalService: goalService, auditService: auditService}
}

// CreateGoalRequest is the payload for a new savings goal.
type CreateGoalRequest struct {
	Name     string           `json:"name" binding:"required,max=255"`
	Target   *decimal.Decimal `json:"target" binding:"required,decimal_positive" swaggertype:"string"`
	Current  *decimal.Decimal `json:"current" binding:"omitempty,decimal_nonnegative" swaggertype:"string"`
	Deadline string           `json:"deadline" binding:"required"`
}

// UpdateGoalRequest is a partial goal update.
type UpdateGoalRequest struct {
	Name     *string          `json:"name" binding:"omitempty,min=1,max=255"`
	Target   *decimal.Decimal `json:"target" binding:"omitempty,decimal_positive" swaggertype:"string"`
	Current  *decimal.Decimal `json:"current" binding:"omitempty,decimal_nonnegative" swaggertype:"string"`
	Deadline *string          `json:"deadline"`
}

// ContributeRequest adds money to a goal.
type ContributeRequest struct {
	Amount *decimal.Decimal `json:"amount" binding:"required,decimal_positive" swaggertype:"string"`
}

// ListGoals returns the user's goals, nearest deadline first
// @Summary     List savings goals
// @Tags        goals
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} map[string][]models.SavingsGoal
// @Router      /goals [get]
func (h *GoalHandler) ListGoals(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	goals, err := h.goalService.ListGoals(c.Request.Context(), userID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"goals": goals})
}

// CreateGoal creates a savings goal
// @Summary     Create a savings goal
// @Tags        goals
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateGoalRequest true "Goal details"
// @Success     201 {object} map[string]models.SavingsGoal
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Router      /goals [post]
func (h *GoalHandler) CreateGoal(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateGoalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	deadline, err := parseDate("deadline", req.Deadline)
	if err != nil {
		respondWithError(c, err)
		return
	}

	in := services.NewGoal{Name: req.Name, Target: *req.Target, Deadline: deadline}
	if req.Current != nil {
		in.Current = *req.Current
	}

	goal, err := h.goalService.AddGoal(c.Request.Context(), userID, in)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(c.Request.Context(), userID, services.AuditCreateGoal, "savings_goal", goal.ID, c.ClientIP(),
		map[string]interface{}{"name": goal.Name, "target": goal.Target.StringFixed(2)})

	c.JSON(http.StatusCreated, gin.H{"goal": goal})
}

// UpdateGoal applies a partial update to a goal
// @Summary     Update a savings goal
// @Tags        goals
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string            true "Goal ID"
// @Param       request body UpdateGoalRequest true "Fields to change"
// @Success     200 {object} map[string]models.SavingsGoal
// @Failure     400 {object} ErrorResponse "Invalid input or no changes"
// @Failure     404 {object} ErrorResponse "Goal not found"
// @Router      /goals/{id} [patch]
func (h *GoalHandler) UpdateGoal(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	goalID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateGoalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	patch := services.GoalPatch{Name: req.Name, Target: req.Target, Current: req.Current}
	if req.Deadline != nil {
		deadline, err := parseDate("deadline", *req.Deadline)
		if err != nil {
			respondWithError(c, err)
			return
		}
		patch.Deadline = &deadline
	}
	if patch.IsEmpty() {
		respondWithError(c, apperrors.ErrNoChanges)
		return
	}

	if _, err := h.goalService.UpdateGoal(c.Request.Context(), userID, goalID, patch); err != nil {
		respondWithError(c, err)
		return
	}

	goal, err := h.goalService.GetGoal(c.Request.Context(), userID, goalID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(c.Request.Context(), userID, services.AuditUpdateGoal, "savings_goal", goalID, c.ClientIP(), goalChanges(req))

	c.JSON(http.StatusOK, gin.H{"goal": goal})
}

func goalChanges(req UpdateGoalRequest) map[string]interface{} {
	changes := make(map[string]interface{})
	if req.Name != nil {
		changes["name"] = *req.Name
	}
	if req.Target != nil {
		changes["target"] = req.Target.StringFixed(2)
	}
	if req.Current != nil {
		changes["current"] = req.Current.StringFixed(2)
	}
	if req.Deadline != nil {
		changes["deadline"] = *req.Deadline
	}
	return changes
}

// DeleteGoal removes a goal
// @Summary     Delete a savings goal
// @Tags        goals
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Goal ID"
// @Success     200 {object} SuccessResponse
// @Failure     404 {object} ErrorResponse "Goal not found"
// @Router      /goals/{id} [delete]
func (h *GoalHandler) DeleteGoal(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	goalID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.goalService.DeleteGoal(c.Request.Context(), userID, goalID); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(c.Request.Context(), userID, services.AuditDeleteGoal, "savings_goal", goalID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, SuccessResponse{Success: true})
}

// ContributeResponse is the goal after a contribution.
type ContributeResponse struct {
	Success bool                `json:"success"`
	Goal    *models.SavingsGoal `json:"goal"`
}

// Contribute adds money to a goal, capped at its target
// @Summary     Contribute to a savings goal
// @Tags        goals
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string            true "Goal ID"
// @Param       request body ContributeRequest true "Contribution"
// @Success     200 {object} ContributeResponse
// @Failure     400 {object} ErrorResponse "Invalid amount"
// @Failure     404 {object} ErrorResponse "Goal not found"
// @Router      /goals/{id}/contribute [post]
func (h *GoalHandler) Contribute(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	goalID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req ContributeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	goal, err := h.goalService.ContributeToGoal(c.Request.Context(), userID, goalID, *req.Amount)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(c.Request.Context(), userID, services.AuditContributeGoal, "savings_goal", goalID, c.ClientIP(),
		map[string]interface{}{"amount": req.Amount.StringFixed(2), "current": goal.Current.StringFixed(2)})

	c.JSON(http.StatusOK, ContributeResponse{Success: true, Goal: goal})
}
