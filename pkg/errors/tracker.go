package errors

import "context"

// Tracker reports errors to an external tracking service. The logger calls
// CaptureError for every error-level entry; Flush runs during shutdown.
type Tracker interface {
	CaptureError(ctx context.Context, err error, tags map[string]string) error
	Flush(ctx context.Context) error
}
