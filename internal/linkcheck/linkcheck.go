package linkcheck

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dharmasatrya/fareaggregator/internal/models"
)

// Prober reports whether a booking URL currently resolves. It never fails;
// transport problems read as false.
type Prober interface {
	Probe(ctx context.Context, rawURL string) bool
}

type HTTPProber struct {
	client *http.Client
}

func NewHTTPProber(timeout time.Duration) *HTTPProber {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPProber{client: &http.Client{Timeout: timeout}}
}

// Probe tries HEAD first and falls back to GET.
func (p *HTTPProber) Probe(ctx context.Context, rawURL string) bool {
	if !supportedScheme(rawURL) {
		return false
	}
	if p.do(ctx, http.MethodHead, rawURL) {
		return true
	}
	return p.do(ctx, http.MethodGet, rawURL)
}

func (p *HTTPProber) do(ctx context.Context, method, rawURL string) bool {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	return resp.StatusCode < http.StatusBadRequest
}

// Close drops idle keep-alive connections.
func (p *HTTPProber) Close() {
	p.client.CloseIdleConnections()
}

func supportedScheme(rawURL string) bool {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

type Validator struct {
	prober Prober
	logger *zap.Logger
}

func NewValidator(prober Prober, logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{prober: prober, logger: logger}
}

// Validate sets DeepLinkValid on every offer in place, probing all of them
// concurrently. One bad URL never affects the others.
func (v *Validator) Validate(ctx context.Context, offers []models.Offer) {
	var wg sync.WaitGroup
	for i := range offers {
		wg.Add(1)
		go func(o *models.Offer) {
			defer wg.Done()
			o.DeepLinkValid = v.check(ctx, o.BookingURL)
		}(&offers[i])
	}
	wg.Wait()
}

func (v *Validator) check(ctx context.Context, rawURL string) (valid bool) {
	defer func() {
		if r := recover(); r != nil {
			v.logger.Error("link probe panicked", zap.String("url", rawURL), zap.Any("panic", r))
			valid = false
		}
	}()

	if !supportedScheme(rawURL) {
		return false
	}
	return v.prober.Probe(ctx, rawURL)
}
