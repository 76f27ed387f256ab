package linkcheck

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dharmasatrya/fareaggregator/internal/models"
)

func TestHTTPProber_HeadSuccess(t *testing.T) {
	var methods []string
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		methods = append(methods, r.Method)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := NewHTTPProber(time.Second)
	defer p.Close()

	assert.True(t, p.Probe(context.Background(), srv.URL+"/book"))
	assert.Equal(t, []string{http.MethodHead}, methods)
}

func TestHTTPProber_FallsBackToGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Write([]byte("<html>ok</html>"))
	}))
	defer srv.Close()

	assert.True(t, NewHTTPProber(time.Second).Probe(context.Background(), srv.URL))
}

func TestHTTPProber_BothFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	assert.False(t, NewHTTPProber(time.Second).Probe(context.Background(), srv.URL))
}

func TestHTTPProber_RedirectBelowErrorThresholdIsValid(t *testing.T) {
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer target.Close()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, target.URL, http.StatusFound)
	}))
	defer srv.Close()

	assert.True(t, NewHTTPProber(time.Second).Probe(context.Background(), srv.URL))
}

func TestHTTPProber_UnreachableAndBadSchemes(t *testing.T) {
	p := NewHTTPProber(200 * time.Millisecond)
	assert.False(t, p.Probe(context.Background(), "http://127.0.0.1:1/nothing"))
	assert.False(t, p.Probe(context.Background(), "ftp://example.com/file"))
	assert.False(t, p.Probe(context.Background(), "javascript:alert(1)"))
	assert.False(t, p.Probe(context.Background(), ""))
}

type fakeProber struct {
	mu    sync.Mutex
	seen  []string
	valid map[string]bool
	delay time.Duration
}

func (f *fakeProber) Probe(ctx context.Context, rawURL string) bool {
	f.mu.Lock()
	f.seen = append(f.seen, rawURL)
	f.mu.Unlock()
	if strings.Contains(rawURL, "panic") {
		panic("prober exploded")
	}
	time.Sleep(f.delay)
	return f.valid[rawURL]
}

func TestValidator_MarksEachOfferIndependently(t *testing.T) {
	prober := &fakeProber{
		valid: map[string]bool{"https://ok.example/a": true},
		delay: 50 * time.Millisecond,
	}
	offers := []models.Offer{
		{BookingURL: "https://ok.example/a"},
		{BookingURL: "https://dead.example/b", DeepLinkValid: true},
		{BookingURL: "mailto:sales@example.com"},
		{BookingURL: "https://panic.example/c"},
		{BookingURL: "https://ok.example/a"},
	}

	start := time.Now()
	NewValidator(prober, nil).Validate(context.Background(), offers)

	assert.Less(t, time.Since(start), 200*time.Millisecond)
	assert.True(t, offers[0].DeepLinkValid)
	assert.False(t, offers[1].DeepLinkValid)
	assert.False(t, offers[2].DeepLinkValid)
	assert.False(t, offers[3].DeepLinkValid)
	assert.True(t, offers[4].DeepLinkValid)
	assert.NotContains(t, prober.seen, "mailto:sales@example.com")
}

func TestValidator_Empty(t *testing.T) {
	NewValidator(&fakeProber{}, nil).Validate(context.Background(), nil)
}
