package observability

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"

	"ascendfit/config"
	"ascendfit/internal/core"
)

// InitSentry configures the global Sentry client. It returns false without
// error when no DSN is set.
func InitSentry(cfg config.SentryConfig, release string) (bool, error) {
	if cfg.DSN == "" {
		slog.Info("sentry DSN not configured, error reporting disabled")
		return false, nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          release,
		SampleRate:       cfg.SampleRate,
		AttachStacktrace: true,
		BeforeSend:       scrubEvent,
	})
	if err != nil {
		return false, fmt.Errorf("sentry init: %w", err)
	}

	slog.Info("sentry initialized", "environment", cfg.Environment, "release", release)
	return true, nil
}

// scrubEvent strips credentials and inline media from outgoing events.
func scrubEvent(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	if event.Request != nil {
		for _, h := range []string{"Authorization", "Cookie", "Apikey", "X-Goog-Api-Key"} {
			delete(event.Request.Headers, h)
		}
		// request bodies carry base64 frames and videos
		event.Request.Data = ""
	}
	return event
}

// Reportable reports whether err should reach Sentry: internal failures and
// provider-side faults, never client mistakes or quota signals.
func Reportable(err error) bool {
	var fe *core.FitError
	if !errors.As(err, &fe) {
		return err != nil
	}
	return fe.HTTPStatusCode() >= 500
}

// CaptureError sends err to hub with feature and request tags when it is reportable.
func CaptureError(hub *sentry.Hub, err error, feature, requestID string) {
	if hub == nil || !Reportable(err) {
		return
	}
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("feature", feature)
		scope.SetTag("request_id", requestID)
		var fe *core.FitError
		if errors.As(err, &fe) {
			scope.SetTag("error_kind", string(fe.Kind))
			if fe.Provider != "" {
				scope.SetTag("provider", fe.Provider)
			}
		}
		hub.CaptureException(err)
	})
}

// FlushSentry waits for buffered events.
func FlushSentry(timeout time.Duration) bool {
	return sentry.Flush(timeout)
}
