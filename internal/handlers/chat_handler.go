package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"moneyminder/internal/advisor"
	apperrors "moneyminder/internal/errors"
	"moneyminder/internal/logger"
)

// ChatHandler streams financial advice from the configured advisor.
type ChatHandler struct {
	advisor advisor.Advisor
}

// NewChatHandler creates a new ChatHandler. A nil advisor makes the endpoint
// report ADVISOR_NOT_CONFIGURED.
func NewChatHandler(a advisor.Advisor) *ChatHandler {
	return &ChatHandler{advisor: a}
}

// ChatRequest is the conversation so far.
type ChatRequest struct {
	Messages []ChatMessage `json:"messages" binding:"required,min=1,max=50,dive"`
}

// ChatMessage is one turn of the conversation.
type ChatMessage struct {
	Role    string `json:"role" binding:"required,oneof=user assistant"`
	Content string `json:"content" binding:"required,max=4000"`
}

// Chat streams the advisor's reply as plain text
// @Summary     Ask the financial advisor
// @Tags        chat
// @Accept      json
// @Produce     plain
// @Security    BearerAuth
// @Param       request body ChatRequest true "Conversation"
// @Success     200 {string} string "Streamed reply"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     503 {object} ErrorResponse "Advisor not configured"
// @Router      /chat [post]
func (h *ChatHandler) Chat(c *gin.Context) {
	if h.advisor == nil {
		respondWithError(c, apperrors.ErrAdvisorNotConfigured)
		return
	}

	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	messages := make([]advisor.Message, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = advisor.Message{Role: m.Role, Content: m.Content}
	}

	started := false
	err := h.advisor.Stream(c.Request.Context(), messages, func(chunk string) error {
		if !started {
			c.Header("Content-Type", "text/plain; charset=utf-8")
			c.Header("Cache-Control", "no-cache")
			c.Status(http.StatusOK)
			started = true
		}
		if _, err := c.Writer.WriteString(chunk); err != nil {
			return err
		}
		c.Writer.Flush()
		return nil
	})
	if err == nil {
		if !started {
			c.Status(http.StatusOK)
		}
		return
	}

	if started {
		logger.Get().Warnw("advisor stream interrupted", "error", err, "path", c.Request.URL.Path)
		return
	}
	respondWithError(c, apperrors.Wrap(apperrors.ErrInternalServer, err))
}
