package connectors

import (
	"context"
	"strings"

	"github.com/dharmasatrya/fareaggregator/internal/models"
	"github.com/dharmasatrya/fareaggregator/internal/ratelimit"
)

// Connector searches one upstream source. A legitimately empty result is a
// success with zero offers, not an error.
type Connector interface {
	Name() string
	Search(ctx context.Context, query models.Query) ([]models.Offer, error)
}

// ConnectorError reports an unrecoverable upstream condition such as an auth
// failure, an unresolvable route or malformed data.
type ConnectorError struct {
	Source  string
	Message string
	Err     error
}

func (e *ConnectorError) Error() string {
	msg := strings.TrimSpace(e.Message)
	if e.Err != nil {
		if msg == "" {
			return e.Err.Error()
		}
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *ConnectorError) Unwrap() error {
	return e.Err
}

// Kind names the failure class in run diagnostics.
func (e *ConnectorError) Kind() string {
	return "ConnectorError"
}

func NewConnectorError(source, message string, err error) *ConnectorError {
	return &ConnectorError{
		Source:  source,
		Message: message,
		Err:     err,
	}
}

type rateLimited struct {
	Connector
	limiter *ratelimit.SourceLimiter
}

// RateLimited wraps c so every search first waits for a token of its source.
func RateLimited(c Connector, limiter *ratelimit.SourceLimiter) Connector {
	if limiter == nil {
		return c
	}
	return &rateLimited{Connector: c, limiter: limiter}
}

func (r *rateLimited) Search(ctx context.Context, query models.Query) ([]models.Offer, error) {
	if err := r.limiter.Wait(ctx, r.Name()); err != nil {
		return nil, err
	}
	return r.Connector.Search(ctx, query)
}
