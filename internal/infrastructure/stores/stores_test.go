package stores

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pricewatch/crawler/internal/usecase"
	"go.uber.org/zap"
)

// newTestFetcher builds a fetcher without meaningful rate limiting
func newTestFetcher(t *testing.T, proxy string) *Fetcher {
	t.Helper()
	return NewFetcher(FetcherConfig{
		Timeout:       5 * time.Second,
		UserAgent:     "pricewatch-test",
		RatePerSecond: 1000,
		Burst:         100,
		CORSProxy:     proxy,
	}, zap.NewNop())
}

func newTestMatcher() *usecase.MatchingService {
	return usecase.NewMatchingService(usecase.MatchConfig{}, zap.NewNop())
}

func newServer(t *testing.T, mux *http.ServeMux) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func ctx() context.Context {
	return context.Background()
}
