package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"healthadvisor/backend/internal/persona"
)

type updatePersonaRequest struct {
	Persona   *string `json:"persona"`
	Verbosity *string `json:"verbosity"`
	LowAsk    *bool   `json:"low_ask"`
}

func (a *App) getPersonaSettings(c *gin.Context) {
	user, ok := authUserFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "Unauthorized")
		return
	}
	c.JSON(http.StatusOK, a.advisor.Prefs(c.Request.Context(), user.ID))
}

// updatePersonaSettings applies a partial update over the stored preferences.
func (a *App) updatePersonaSettings(c *gin.Context) {
	user, ok := authUserFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var payload updatePersonaRequest
	if !mustJSON(c, &payload) {
		return
	}

	prefs := a.advisor.Prefs(c.Request.Context(), user.ID)
	if payload.Persona != nil {
		value, valid := normalizePersona(*payload.Persona)
		if !valid {
			writeError(c, http.StatusBadRequest, "persona must be one of: friend, coach, advisor")
			return
		}
		prefs.Persona = value
	}
	if payload.Verbosity != nil {
		value, valid := normalizeVerbosity(*payload.Verbosity)
		if !valid {
			writeError(c, http.StatusBadRequest, "verbosity must be one of: minimal, detailed")
			return
		}
		prefs.Verbosity = value
	}
	if payload.LowAsk != nil {
		prefs.LowAsk = *payload.LowAsk
	}

	saved, err := a.advisor.SavePrefs(c.Request.Context(), user.ID, prefs)
	if err != nil {
		writeAdvisorError(c, err)
		return
	}
	c.JSON(http.StatusOK, saved)
}

func normalizePersona(input string) (persona.Persona, bool) {
	switch value := persona.Persona(strings.ToLower(strings.TrimSpace(input))); value {
	case persona.Friend, persona.Coach, persona.Advisor:
		return value, true
	default:
		return "", false
	}
}

func normalizeVerbosity(input string) (persona.Verbosity, bool) {
	switch value := persona.Verbosity(strings.ToLower(strings.TrimSpace(input))); value {
	case persona.Minimal, persona.Detailed:
		return value, true
	default:
		return "", false
	}
}
