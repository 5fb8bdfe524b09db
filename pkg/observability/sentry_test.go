package observability

import (
	"errors"
	"sync"
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-points-api/pkg/config"
	appErrors "github.com/noah-isme/lms-points-api/pkg/errors"
)

func TestInitSentryWithoutDSNIsNoop(t *testing.T) {
	flush, err := InitSentry(&config.Config{})
	require.NoError(t, err)
	flush()
}

func TestCaptureErrSkipsClientErrors(t *testing.T) {
	var mu sync.Mutex
	var sent []*sentry.Event
	require.NoError(t, sentry.Init(sentry.ClientOptions{
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			mu.Lock()
			sent = append(sent, event)
			mu.Unlock()
			return nil
		},
	}))

	CaptureErr(nil)
	CaptureErr(appErrors.Clone(appErrors.ErrInsufficientPoints, ""))
	CaptureErr(appErrors.Clone(appErrors.ErrNotFound, ""))
	CaptureErr(appErrors.Unavailable(errors.New("conn reset"), "failed to load claim"))
	CaptureErr(errors.New("boom"))

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, sent, 2)
}
