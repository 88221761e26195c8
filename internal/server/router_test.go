package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/magnifycash/backend/internal/aggregator"
	"github.com/magnifycash/backend/internal/auth"
	"github.com/magnifycash/backend/internal/config"
	"github.com/magnifycash/backend/internal/http/handlers"
)

type staticSnapshots struct{}

func (staticSnapshots) Get(context.Context, string) aggregator.View {
	return aggregator.View{IsError: true}
}
func (staticSnapshots) Refetch(context.Context, string) aggregator.View { return aggregator.View{} }
func (staticSnapshots) Invalidate(context.Context, string) error        { return nil }

func newTestRouter(jwt *auth.JWTManager) http.Handler {
	cfg := config.Config{Env: "test", AuthChainID: 480}
	return NewRouter(cfg, zerolog.Nop(), Dependencies{
		ReadyChecks:         map[string]handlers.Pinger{"database": handlers.PingFunc(func(context.Context) error { return nil })},
		AuthHandler:         handlers.NewAuthHandler(nil, auth.CookieConfig{}, time.Minute, time.Hour),
		ContractDataHandler: handlers.NewContractDataHandler(staticSnapshots{}),
		JWTManager:          jwt,
	})
}

func TestPublicRoutes(t *testing.T) {
	r := newTestRouter(auth.NewJWTManager("iss", "aud", "secret"))

	for _, path := range []string{"/health", "/ready", "/v1/meta"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, w.Code)
		}
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/nope", nil))
	if w.Code != http.StatusNotFound || !strings.Contains(w.Body.String(), "not_found") {
		t.Fatalf("expected not_found, got %d %s", w.Code, w.Body.String())
	}
}

func TestWalletRoutesRequireSession(t *testing.T) {
	jwt := auth.NewJWTManager("iss", "aud", "secret")
	r := newTestRouter(jwt)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/contract-data", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without cookie, got %d", w.Code)
	}

	token, err := jwt.Mint("user-1", "session-1", "0x1111111111111111111111111111111111111111", auth.TokenAccess, time.Minute)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/v1/contract-data", nil)
	req.AddCookie(&http.Cookie{Name: auth.AccessCookieName, Value: token})
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected snapshot failure to surface as 502, got %d", w.Code)
	}
}
