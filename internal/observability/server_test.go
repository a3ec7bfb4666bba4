package observability

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/luxbridge/luxbridge/internal/config"
)

func opsGet(t *testing.T, srv *OpsServer, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	srv.srv.Handler.ServeHTTP(w, req)
	return w
}

func TestOpsEndpoints(t *testing.T) {
	status := func() (string, bool) { return "operational", true }
	srv := NewOpsServer(config.OpsConfig{ListenAddr: ":0"}, status, zerolog.Nop())

	if w := opsGet(t, srv, "/health", ""); w.Code != http.StatusOK {
		t.Fatalf("/health: %d", w.Code)
	}

	w := opsGet(t, srv, "/status", "")
	if w.Code != http.StatusOK {
		t.Fatalf("/status: %d", w.Code)
	}
	var body struct {
		State       string `json:"state"`
		Operational bool   `json:"operational"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode /status: %v", err)
	}
	if body.State != "operational" || !body.Operational {
		t.Fatalf("unexpected status body: %+v", body)
	}

	if w := opsGet(t, srv, "/metrics", ""); w.Code != http.StatusOK {
		t.Fatalf("/metrics: %d", w.Code)
	}
}

func TestOpsAuthToken(t *testing.T) {
	status := func() (string, bool) { return "udp_listening", false }
	srv := NewOpsServer(config.OpsConfig{ListenAddr: ":0", AuthToken: "s3cret"}, status, zerolog.Nop())

	if w := opsGet(t, srv, "/status", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: %d", w.Code)
	}
	if w := opsGet(t, srv, "/status", "wrong"); w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong token: %d", w.Code)
	}
	if w := opsGet(t, srv, "/status", "s3cret"); w.Code != http.StatusOK {
		t.Fatalf("valid token: %d", w.Code)
	}
}
