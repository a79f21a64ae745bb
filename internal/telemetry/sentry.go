package telemetry

import (
	"time"

	"github.com/getsentry/sentry-go"
)

// SentryReporter forwards background failures to Sentry. A reporter built
// with an empty DSN drops everything.
type SentryReporter struct {
	hub *sentry.Hub
}

func NewSentryReporter(dsn, environment string) (*SentryReporter, error) {
	return newSentryReporter(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		AttachStacktrace: true,
	})
}

func newSentryReporter(opts sentry.ClientOptions) (*SentryReporter, error) {
	c, err := sentry.NewClient(opts)
	if err != nil {
		return nil, err
	}
	return &SentryReporter{hub: sentry.NewHub(c, sentry.NewScope())}, nil
}

func (r *SentryReporter) Report(err error) {
	if r == nil || err == nil {
		return
	}
	r.hub.CaptureException(err)
}

// Recover reports a recovered panic value.
func (r *SentryReporter) Recover(v interface{}) {
	if r == nil || v == nil {
		return
	}
	r.hub.Recover(v)
}

func (r *SentryReporter) Flush(timeout time.Duration) bool {
	if r == nil {
		return true
	}
	return r.hub.Flush(timeout)
}
