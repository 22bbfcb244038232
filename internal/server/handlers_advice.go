package server

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"healthadvisor/backend/internal/advisor"
	"healthadvisor/backend/internal/health"
)

const idempotencyHeader = "Idempotency-Key"

type adviceChatRequest struct {
	Intent         string `json:"intent"`
	Message        string `json:"message"`
	IdempotencyKey string `json:"idempotency_key"`
}

type mealFeedbackRequest struct {
	Meal health.Meal `json:"meal"`
}

func (a *App) adviceChat(c *gin.Context) {
	user, ok := authUserFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var payload adviceChatRequest
	if !mustJSON(c, &payload) {
		return
	}
	idemKey := strings.TrimSpace(c.GetHeader(idempotencyHeader))
	if idemKey == "" {
		idemKey = strings.TrimSpace(payload.IdempotencyKey)
	}

	resp, err := a.advisor.Chat(c.Request.Context(), advisor.ChatRequest{
		UserID:         user.ID,
		Intent:         payload.Intent,
		Message:        payload.Message,
		IdempotencyKey: idemKey,
	})
	if err != nil {
		writeAdvisorError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (a *App) mealFeedback(c *gin.Context) {
	user, ok := authUserFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var payload mealFeedbackRequest
	if !mustJSON(c, &payload) {
		return
	}
	resp, err := a.advisor.MealFeedback(c.Request.Context(), advisor.MealFeedbackRequest{
		UserID: user.ID,
		Meal:   payload.Meal,
	})
	if err != nil {
		writeAdvisorError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func writeAdvisorError(c *gin.Context, err error) {
	var validationErr *advisor.ValidationError
	if errors.As(err, &validationErr) {
		writeError(c, http.StatusBadRequest, validationErr.Error())
		return
	}
	log.Printf("advisor request failed path=%s err=%v", c.FullPath(), err)
	writeError(c, http.StatusInternalServerError, "Failed to build advice")
}
