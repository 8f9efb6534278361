package handlers_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"leafline/internal/config"
	"leafline/internal/http/handlers"
	applog "leafline/internal/log"
	"leafline/internal/repos"
)

func testConfig() config.Config {
	return config.Config{
		UPIPayeeVPA:       "leafline@upi",
		UPIPayeeName:      "Leafline Store",
		ShippingStandard:  "0",
		ShippingExpress:   "150",
		ShippingOvernight: "300",
	}
}

type testApp struct {
	app  *fiber.App
	deps *handlers.Deps
	db   *sqlx.DB
}

func newTestApp(t *testing.T, opts handlers.Options) testApp {
	t.Helper()
	db, err := repos.OpenDB("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	if opts.Lucky == nil {
		opts.Lucky = func() decimal.Decimal { return decimal.RequireFromString("0.37") }
	}
	deps, err := handlers.NewDeps(db, testConfig(), opts)
	require.NoError(t, err)

	app := fiber.New()
	app.Server().MaxRequestBodySize = 1 << 20
	app.Use(requestid.New())
	handlers.Register(app, deps)
	return testApp{app: app, deps: deps, db: db}
}

// call sends a JSON request with an optional sid cookie and decodes a JSON object reply.
func (a testApp) call(t *testing.T, method, path string, body any, sid string) (*http.Response, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if sid != "" {
		req.AddCookie(&http.Cookie{Name: "sid", Value: sid})
	}
	resp, err := a.app.Test(req, 5000)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(bytes.TrimSpace(raw)) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp, out
}

func (a testApp) login(t *testing.T, sid, email string) {
	t.Helper()
	resp, _ := a.call(t, http.MethodPost, "/api/v1/auth/login", map[string]string{"email": email, "password": "Passw0rd!"}, sid)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func cookie(resp *http.Response, name string) string {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

func mumbaiAddress() map[string]any {
	return map[string]any{
		"full_name":    "Asha Rao",
		"phone":        "9876543210",
		"address_line": "12 Marine Drive, Churchgate",
		"pincode":      "400001",
		"city":         "Mumbai",
		"state":        "Maharashtra",
	}
}

type logEntry struct {
	Level  string         `json:"level"`
	Action string         `json:"action"`
	ReqID  string         `json:"req_id"`
	Fields map[string]any `json:"fields"`
}

type lockedWriter struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (w *lockedWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(p)
}

func (w *lockedWriter) entries() []logEntry {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []logEntry
	for _, line := range strings.Split(strings.TrimSpace(w.buf.String()), "\n") {
		var e logEntry
		if err := json.Unmarshal([]byte(line), &e); err == nil {
			out = append(out, e)
		}
	}
	return out
}

// captureLogs redirects the application log for the rest of the test.
func captureLogs(t *testing.T) *lockedWriter {
	t.Helper()
	w := &lockedWriter{}
	applog.Setup(w, "debug")
	t.Cleanup(func() { applog.Setup(os.Stdout, "info") })
	return w
}

func findLog(entries []logEntry, action string) (logEntry, bool) {
	for _, e := range entries {
		if e.Action == action {
			return e, true
		}
	}
	return logEntry{}, false
}
