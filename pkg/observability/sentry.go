package observability

import (
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/noah-isme/lms-points-api/pkg/config"
	appErrors "github.com/noah-isme/lms-points-api/pkg/errors"
)

// InitSentry configures the global Sentry hub. An empty DSN disables reporting.
func InitSentry(cfg *config.Config) (func(), error) {
	if cfg.Sentry.DSN == "" {
		return func() {}, nil
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.Sentry.DSN,
		Environment: cfg.Env,
		Release:     cfg.Sentry.Release,
	}); err != nil {
		return func() {}, err
	}
	return func() { sentry.Flush(2 * time.Second) }, nil
}

// CaptureErr reports server-side failures. Domain errors with a 4xx status are
// expected outcomes and are not sent.
func CaptureErr(err error) {
	if err == nil {
		return
	}
	if appErr := appErrors.FromError(err); appErr.Status < 500 {
		return
	}
	sentry.CaptureException(err)
}
