package http

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pricewatch/crawler/config"
	"github.com/pricewatch/crawler/internal/domain"
	"github.com/pricewatch/crawler/internal/usecase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMain sets up test environment before running tests
func TestMain(m *testing.M) {
	// Set Gin to test mode once for all tests
	gin.SetMode(gin.TestMode)

	os.Exit(m.Run())
}

// fakeChecks records calls made by the handlers
type fakeChecks struct {
	mu        sync.Mutex
	started   []string
	startErr  error
	snapshot  usecase.Snapshot
	closed    int
	overrides []domain.StoreLink
}

func (f *fakeChecks) Start(_ context.Context, productName string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return "", f.startErr
	}
	f.started = append(f.started, productName)
	f.snapshot = usecase.Snapshot{SessionID: "session-1", ProductName: productName, State: domain.StateConnecting}
	return "session-1", nil
}

func (f *fakeChecks) Snapshot() usecase.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshot
}

func (f *fakeChecks) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	f.snapshot = usecase.Snapshot{State: domain.StateIdle}
}

func (f *fakeChecks) SubmitOverride(storeName, url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.overrides = append(f.overrides, domain.StoreLink{Store: storeName, URL: url})
}

type staticModules []string

func (m staticModules) Modules() []string { return m }

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Port:           "8080",
			Environment:    "test",
			AllowedOrigins: []string{"http://localhost:*"},
		},
		Cache: config.CacheConfig{Type: "memory"},
	}
}

// setupTestRouter creates a test router around checks (which may be nil)
func setupTestRouter(checks CheckService) (*gin.Engine, *Hub) {
	hub := NewHub(8, nil)
	handler := NewHandler(checks, staticModules{"products.crawlers.ctelecom", "products.crawlers.kalatik"}, hub, nil)
	return SetupRouter(testConfig(), handler, nil), hub
}

func doJSON(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response), "body: %s", w.Body.String())
	return response
}

func TestHealthCheckEndpoint(t *testing.T) {
	t.Run("returns healthy status", func(t *testing.T) {
		router, _ := setupTestRouter(nil)

		w := doJSON(router, http.MethodGet, "/health", "")

		require.Equal(t, http.StatusOK, w.Code)
		response := decodeBody(t, w)
		assert.Equal(t, "healthy", response["status"])
		assert.Equal(t, "pricewatch-crawler", response["service"])
		assert.NotEmpty(t, response["version"])
	})

	t.Run("accepts GET requests only", func(t *testing.T) {
		router, _ := setupTestRouter(nil)

		for _, method := range []string{"POST", "PUT", "DELETE", "PATCH"} {
			w := doJSON(router, method, "/health", "")
			assert.Equal(t, http.StatusNotFound, w.Code, "method %s", method)
		}
	})
}

func TestStartCheck(t *testing.T) {
	t.Run("starts a session", func(t *testing.T) {
		checks := &fakeChecks{}
		router, _ := setupTestRouter(checks)

		w := doJSON(router, http.MethodPost, "/api/v1/checks", `{"productName":"Galaxy A54"}`)

		require.Equal(t, http.StatusAccepted, w.Code)
		assert.Equal(t, "session-1", decodeBody(t, w)["sessionId"])
		assert.Equal(t, []string{"Galaxy A54"}, checks.started)
	})

	t.Run("returns 400 for missing productName", func(t *testing.T) {
		router, _ := setupTestRouter(&fakeChecks{})

		w := doJSON(router, http.MethodPost, "/api/v1/checks", `{"name":"x"}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.NotNil(t, decodeBody(t, w)["error"])
	})

	t.Run("returns 400 for invalid JSON", func(t *testing.T) {
		router, _ := setupTestRouter(&fakeChecks{})

		w := doJSON(router, http.MethodPost, "/api/v1/checks", `{not json`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("maps invalid request from the engine", func(t *testing.T) {
		router, _ := setupTestRouter(&fakeChecks{startErr: domain.ErrInvalidRequest})

		w := doJSON(router, http.MethodPost, "/api/v1/checks", `{"productName":"   "}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("returns 503 without engine", func(t *testing.T) {
		router, _ := setupTestRouter(nil)

		w := doJSON(router, http.MethodPost, "/api/v1/checks", `{"productName":"Galaxy A54"}`)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestGetAndCloseCheck(t *testing.T) {
	url := "https://shop/p/1"
	checks := &fakeChecks{snapshot: usecase.Snapshot{
		SessionID:   "session-1",
		ProductName: "Galaxy A54",
		State:       domain.StateStreaming,
		Stores:      []domain.StoreDescriptor{{Name: "Shop", IsFrontend: true}},
		Results: []domain.StoreResult{
			domain.SuccessResult("Shop", url, []domain.PriceOffer{{Variant: "black", Price: 1250}}),
		},
		Overrides: map[string]string{},
	}}
	router, _ := setupTestRouter(checks)

	w := doJSON(router, http.MethodGet, "/api/v1/checks", "")
	require.Equal(t, http.StatusOK, w.Code)

	var snap usecase.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, "Galaxy A54", snap.ProductName)
	assert.Equal(t, domain.StateStreaming, snap.State)
	require.Len(t, snap.Results, 1)
	assert.Equal(t, int64(1250), snap.Results[0].Offers[0].Price)
	assert.Equal(t, url, snap.Results[0].ResolvedURL())

	w = doJSON(router, http.MethodDelete, "/api/v1/checks", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 1, checks.closed)
}

func TestSubmitOverride(t *testing.T) {
	t.Run("accepts override for active session", func(t *testing.T) {
		checks := &fakeChecks{snapshot: usecase.Snapshot{SessionID: "session-1"}}
		router, _ := setupTestRouter(checks)

		w := doJSON(router, http.MethodPost, "/api/v1/checks/overrides", `{"store":"Digikala","url":"https://dk/p/1"}`)

		require.Equal(t, http.StatusAccepted, w.Code)
		assert.Equal(t, []domain.StoreLink{{Store: "Digikala", URL: "https://dk/p/1"}}, checks.overrides)
	})

	t.Run("records empty url text", func(t *testing.T) {
		checks := &fakeChecks{snapshot: usecase.Snapshot{SessionID: "session-1"}}
		router, _ := setupTestRouter(checks)

		w := doJSON(router, http.MethodPost, "/api/v1/checks/overrides", `{"store":"Digikala","url":""}`)

		require.Equal(t, http.StatusAccepted, w.Code)
		assert.Len(t, checks.overrides, 1)
	})

	t.Run("requires store", func(t *testing.T) {
		router, _ := setupTestRouter(&fakeChecks{snapshot: usecase.Snapshot{SessionID: "session-1"}})

		w := doJSON(router, http.MethodPost, "/api/v1/checks/overrides", `{"url":"https://dk/p/1"}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("conflict without session", func(t *testing.T) {
		checks := &fakeChecks{}
		router, _ := setupTestRouter(checks)

		w := doJSON(router, http.MethodPost, "/api/v1/checks/overrides", `{"store":"Digikala","url":"https://dk/p/1"}`)

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Empty(t, checks.overrides)
	})
}

func TestListAdapters(t *testing.T) {
	router, _ := setupTestRouter(nil)

	w := doJSON(router, http.MethodGet, "/api/v1/adapters", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t,
		[]interface{}{"products.crawlers.ctelecom", "products.crawlers.kalatik"},
		decodeBody(t, w)["modules"])
}

func TestStreamEvents(t *testing.T) {
	checks := &fakeChecks{snapshot: usecase.Snapshot{SessionID: "session-1", State: domain.StateStreaming}}
	router, hub := setupTestRouter(checks)

	server := httptest.NewServer(router)
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/api/v1/checks/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	reader := bufio.NewReader(resp.Body)

	name, data := readSSE(t, reader)
	assert.Equal(t, "snapshot", name)
	assert.Contains(t, data, `"sessionId":"session-1"`)

	require.Eventually(t, func() bool { return hub.Subscribers() == 1 }, time.Second, 5*time.Millisecond)

	result := domain.SuccessResult("Shop", "https://shop/p/1", []domain.PriceOffer{{Variant: "black", Price: 10}})
	hub.OnEvent(usecase.Event{Type: usecase.EventResult, SessionID: "session-1", Store: "Shop", Result: &result})

	name, data = readSSE(t, reader)
	assert.Equal(t, "result", name)

	var event usecase.Event
	require.NoError(t, json.Unmarshal([]byte(data), &event))
	assert.Equal(t, "Shop", event.Store)
	require.NotNil(t, event.Result)
	assert.Equal(t, int64(10), event.Result.Offers[0].Price)
}

// readSSE reads one event block and returns its name and data
func readSSE(t *testing.T, r *bufio.Reader) (string, string) {
	t.Helper()
	var name, data string
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\r\n")
		switch {
		case line == "":
			if name != "" || data != "" {
				return name, data
			}
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data += strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}
	}
}

func TestCORSIntegration(t *testing.T) {
	router, _ := setupTestRouter(&fakeChecks{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/checks", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRecoveryMiddleware(t *testing.T) {
	router, _ := setupTestRouter(nil)
	router.GET("/panic", func(c *gin.Context) {
		panic("test panic")
	})

	w := doJSON(router, http.MethodGet, "/panic", "")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestAPIVersioning(t *testing.T) {
	router, _ := setupTestRouter(&fakeChecks{})

	assert.NotEqual(t, http.StatusNotFound, doJSON(router, http.MethodGet, "/api/v1/checks", "").Code)
	assert.Equal(t, http.StatusNotFound, doJSON(router, http.MethodGet, "/api/checks", "").Code)
}
