package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"ForexSentinel/internal/model"
	"ForexSentinel/internal/scheduler"
)

// Pipeline is the control surface the API drives.
type Pipeline interface {
	UpdateSettings(settings model.Settings) error
	RefreshNews() bool
	RetryAnalysis() bool
}

// Handlers serves the dashboard API.
type Handlers struct {
	Store    *scheduler.Store
	Pipeline Pipeline
	Models   []string
	validate *validator.Validate
}

func NewHandlers(store *scheduler.Store, p Pipeline, models []string) *Handlers {
	return &Handlers{Store: store, Pipeline: p, Models: models, validate: validator.New()}
}

type settingsRequest struct {
	APIKey string `json:"apiKey" validate:"max=512"`
	Model  string `json:"model" validate:"required"`
}

type settingsResponse struct {
	Model     string   `json:"model"`
	HasAPIKey bool     `json:"hasApiKey"`
	Models    []string `json:"models"`
}

func errorBody(msg string) gin.H { return gin.H{"error": msg} }

func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)})
}

func (h *Handlers) GetState(c *gin.Context) {
	c.JSON(http.StatusOK, h.Store.Snapshot())
}

func (h *Handlers) GetNews(c *gin.Context) {
	snap := h.Store.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"items":     snap.News,
		"loading":   snap.NewsLoading,
		"error":     snap.NewsError,
		"updatedAt": snap.NewsUpdatedAt,
	})
}

func (h *Handlers) GetAnalysis(c *gin.Context) {
	snap := h.Store.Snapshot()
	body := gin.H{
		"strengths":    []model.CurrencyStrength{},
		"correlations": []model.Correlation{},
		"loading":      snap.AnalysisLoading,
		"error":        snap.AnalysisError,
		"enabled":      snap.AnalysisEnabled,
	}
	if a := snap.Analysis; a != nil {
		body["strengths"] = a.Strengths
		body["correlations"] = a.Correlations
		body["model"] = a.Model
		body["completedAt"] = a.CompletedAt
	}
	c.JSON(http.StatusOK, body)
}

func (h *Handlers) GetSettings(c *gin.Context) {
	c.JSON(http.StatusOK, h.settingsView())
}

func (h *Handlers) PutSettings(c *gin.Context) {
	var req settingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	req.APIKey = strings.TrimSpace(req.APIKey)
	if err := h.validate.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(describeValidation(err)))
		return
	}
	if err := h.validate.Var(req.Model, "oneof="+strings.Join(h.Models, " ")); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown model", "models": h.Models})
		return
	}

	if err := h.Pipeline.UpdateSettings(model.Settings{APIKey: req.APIKey, Model: req.Model}); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, scheduler.ErrUnknownModel) {
			status = http.StatusBadRequest
		}
		c.JSON(status, errorBody(err.Error()))
		return
	}
	c.JSON(http.StatusOK, h.settingsView())
}

func (h *Handlers) RefreshNews(c *gin.Context) {
	started := h.Pipeline.RefreshNews()
	c.JSON(http.StatusAccepted, gin.H{"started": started})
}

func (h *Handlers) RetryAnalysis(c *gin.Context) {
	if !h.Pipeline.RetryAnalysis() {
		c.JSON(http.StatusConflict, errorBody("analysis needs news and an API key"))
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"started": true})
}

func (h *Handlers) settingsView() settingsResponse {
	s := h.Store.Settings()
	return settingsResponse{Model: s.Model, HasAPIKey: s.APIKey != "", Models: h.Models}
}

// describeValidation names failing fields without echoing their values.
func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid request"
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, strings.ToLower(fe.Field()[:1])+fe.Field()[1:]+" "+fe.Tag())
	}
	return "invalid request: " + strings.Join(fields, ", ")
}
