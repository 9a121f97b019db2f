// Package server provides HTTP handlers and server setup for the AscendFit AI endpoints.
package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/labstack/echo/v4"

	"ascendfit/internal/core"
	"ascendfit/internal/dispatch"
	"ascendfit/internal/features"
	"ascendfit/internal/history"
	"ascendfit/internal/observability"
	"ascendfit/internal/stream"
)

// Handler holds the HTTP handlers
type Handler struct {
	dispatcher *dispatch.Dispatcher
	features   *features.Set
	// history is nil when interaction history is disabled
	history history.Reader
}

// NewHandler creates a handler over the dispatcher and feature set
func NewHandler(d *dispatch.Dispatcher, set *features.Set, reader history.Reader) *Handler {
	return &Handler{dispatcher: d, features: set, history: reader}
}

// Chat handles POST /functions/v1/chat-assistant and streams the reply as SSE
//
// @Summary      Stream a coaching chat reply
// @Tags         features
// @Accept       json
// @Produce      text/event-stream
// @Security     BearerAuth
// @Param        request  body      features.ChatRequest  true  "Conversation so far"
// @Success      200      {string}  string  "SSE stream of chat completion chunks ending in [DONE]"
// @Failure      400      {object}  object{error=string,code=string}
// @Failure      401      {object}  object{error=string,code=string}
// @Failure      402      {object}  object{error=string,code=string}
// @Failure      429      {object}  object{error=string,code=string}
// @Failure      500      {object}  object{error=string,code=string}
// @Router       /functions/v1/chat-assistant [post]
func (h *Handler) Chat(c echo.Context) error {
	var req features.ChatRequest
	if err := bind(c, &req); err != nil {
		return handleError(c, err)
	}

	w := stream.NewWriter(c.Response())
	err := dispatch.Stream(c.Request().Context(), h.dispatcher, h.features.Chat, &req, w.Emit)
	if err == nil {
		return nil
	}
	if !w.Started() {
		return handleError(c, err)
	}

	// headers are gone; report in-band and end the stream
	captureError(c, err)
	if errors.Is(err, c.Request().Context().Err()) {
		return nil
	}
	if wErr := w.WriteError(asFitError(err)); wErr != nil {
		slog.Debug("failed to write stream error", "error", wErr)
	}
	return nil
}

// MealPlan handles POST /functions/v1/generate-meal-plan
//
// @Summary      Generate a daily meal plan
// @Tags         features
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      features.MealPlanRequest  true  "Request"
// @Success      200      {object}  object{success=bool,mealPlan=features.MealPlan}
// @Failure      400      {object}  object{error=string,code=string}
// @Failure      401      {object}  object{error=string,code=string}
// @Failure      402      {object}  object{error=string,code=string}
// @Failure      429      {object}  object{error=string,code=string}
// @Failure      500      {object}  object{error=string,code=string}
// @Router       /functions/v1/generate-meal-plan [post]
func (h *Handler) MealPlan(c echo.Context) error {
	return serve(c, h.dispatcher, h.features.MealPlan, "mealPlan")
}

// Workout handles POST /functions/v1/generate-workout
//
// @Summary      Generate a workout
// @Tags         features
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      features.WorkoutRequest  true  "Request"
// @Success      200      {object}  object{success=bool,workout=features.WorkoutPlan}
// @Failure      400      {object}  object{error=string,code=string}
// @Failure      401      {object}  object{error=string,code=string}
// @Failure      402      {object}  object{error=string,code=string}
// @Failure      429      {object}  object{error=string,code=string}
// @Failure      500      {object}  object{error=string,code=string}
// @Router       /functions/v1/generate-workout [post]
func (h *Handler) Workout(c echo.Context) error {
	return serve(c, h.dispatcher, h.features.Workout, "workout")
}

// Video handles POST /functions/v1/analyze-video
//
// @Summary      Analyze exercise form in an uploaded video
// @Tags         features
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      features.VideoRequest  true  "Request"
// @Success      200      {object}  object{success=bool,analysis=features.VideoAnalysis}
// @Failure      400      {object}  object{error=string,code=string}
// @Failure      401      {object}  object{error=string,code=string}
// @Failure      402      {object}  object{error=string,code=string}
// @Failure      429      {object}  object{error=string,code=string}
// @Failure      500      {object}  object{error=string,code=string}
// @Router       /functions/v1/analyze-video [post]
func (h *Handler) Video(c echo.Context) error {
	return serve(c, h.dispatcher, h.features.Video, "analysis")
}

// Posture handles POST /functions/v1/analyze-posture-realtime
//
// @Summary      Check posture in a single frame
// @Tags         features
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      features.PostureRequest  true  "Request"
// @Success      200      {object}  object{success=bool,feedback=features.PostureFeedback}
// @Failure      400      {object}  object{error=string,code=string}
// @Failure      401      {object}  object{error=string,code=string}
// @Failure      402      {object}  object{error=string,code=string}
// @Failure      429      {object}  object{error=string,code=string}
// @Failure      500      {object}  object{error=string,code=string}
// @Router       /functions/v1/analyze-posture-realtime [post]
func (h *Handler) Posture(c echo.Context) error {
	return serve(c, h.dispatcher, h.features.Posture, "feedback")
}

// Health handles GET /health
//
// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// History handles GET /v1/history?feature=&since=&limit=
//
// @Summary      List recent AI interactions with per-feature totals
// @Tags         history
// @Produce      json
// @Security     BearerAuth
// @Param        feature  query     string  false  "Only entries for this feature"
// @Param        since    query     string  false  "RFC 3339 lower bound on the timestamp"
// @Param        limit    query     int     false  "Maximum number of entries"
// @Success      200      {object}  object{entries=[]history.Entry,summary=[]history.FeatureSummary}
// @Failure      400      {object}  object{error=string,code=string}
// @Failure      401      {object}  object{error=string,code=string}
// @Failure      404      {object}  object{error=string,code=string}
// @Router       /v1/history [get]
func (h *Handler) History(c echo.Context) error {
	if h.history == nil {
		return handleError(c, core.NewNotFoundError("interaction history is disabled"))
	}

	q := history.Query{Feature: c.QueryParam("feature")}
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return handleError(c, core.NewValidationError("limit must be a non-negative integer"))
		}
		q.Limit = n
	}
	if v := c.QueryParam("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return handleError(c, core.NewValidationError("since must be an RFC 3339 timestamp"))
		}
		q.Since = since
	}

	ctx := c.Request().Context()
	entries, err := h.history.List(ctx, q)
	if err != nil {
		return handleError(c, core.NewInternalError("failed to read history", err))
	}
	summary, err := h.history.Summary(ctx, q.Since)
	if err != nil {
		return handleError(c, core.NewInternalError("failed to summarize history", err))
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	if summary == nil {
		summary = []history.FeatureSummary{}
	}
	return c.JSON(http.StatusOK, map[string]any{"entries": entries, "summary": summary})
}

// serve binds the body, runs f and answers {success: true, <field>: result}
func serve[In any, Out any](c echo.Context, d *dispatch.Dispatcher, f *dispatch.Feature[In, Out], field string) error {
	var req In
	if err := bind(c, &req); err != nil {
		return handleError(c, err)
	}

	out, err := dispatch.Run(c.Request().Context(), d, f, &req)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true, field: out})
}

func bind(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		return core.NewValidationError("invalid request body")
	}
	return nil
}

// handleError converts an error into the {error, code} response. Unexpected
// failures are reported to Sentry and answered with a generic message.
func handleError(c echo.Context, err error) error {
	captureError(c, err)
	fe := asFitError(err)
	return c.JSON(fe.HTTPStatusCode(), fe.ToJSON())
}

func asFitError(err error) *core.FitError {
	var fe *core.FitError
	if errors.As(err, &fe) {
		return fe
	}
	return core.NewInternalError("an unexpected error occurred", err)
}

func captureError(c echo.Context, err error) {
	hub := sentryecho.GetHubFromContext(c)
	if hub == nil {
		return
	}
	observability.CaptureError(hub, err, c.Path(), core.GetRequestID(c.Request().Context()))
}
