package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/buzzposter/buzzposter/internal/auth/apikey"
	"github.com/buzzposter/buzzposter/internal/auth/late"
	"github.com/buzzposter/buzzposter/internal/auth/quota"
	"github.com/buzzposter/buzzposter/internal/config"
	"github.com/buzzposter/buzzposter/internal/db/models"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDeps(t *testing.T) Deps {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.UsageLog{}); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}

	cfg := &config.Config{}
	cfg.Server.BaseURL = "http://localhost:8000"
	cfg.Late.ClientID = "client-test"
	cfg.Late.ClientSecret = "secret-test"
	cfg.Late.AuthorizeURL = "https://provider.example/oauth/authorize"
	cfg.Late.TokenURL = "https://provider.example/oauth/token"
	cfg.Late.APIBaseURL = "https://provider.example/api"
	cfg.Late.RequestTimeout = "5s"
	cfg.Billing.WebhookSecret = "whsec_test"

	return Deps{
		Cfg:     cfg,
		DB:      db,
		Auth:    apikey.New(db),
		Tokens:  late.NewManager(db, cfg),
		Limiter: quota.New(db),
		MCP:     http.NotFoundHandler(),
	}
}

func seedUser(t *testing.T, db *gorm.DB, tier string) *models.User {
	t.Helper()
	user := &models.User{
		ID:     uuid.NewString(),
		Email:  uuid.NewString() + "@example.com",
		APIKey: "bp_test_" + uuid.NewString(),
		Tier:   tier,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func TestSignupHandler(t *testing.T) {
	d := newTestDeps(t)
	h := SignupHandler(d.DB)

	r := httptest.NewRequest(http.MethodPost, "/signup", strings.NewReader(`{"email":"new@example.com"}`))
	w := httptest.NewRecorder()
	h(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", w.Code, w.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !strings.HasPrefix(resp["api_key"], apikey.Prefix) {
		t.Fatalf("api_key = %q, missing prefix", resp["api_key"])
	}
	if resp["tier"] != models.TierFree {
		t.Fatalf("tier = %q, want free", resp["tier"])
	}

	var stored models.User
	if err := d.DB.First(&stored, "email = ?", "new@example.com").Error; err != nil {
		t.Fatalf("user not persisted: %v", err)
	}
	if stored.APIKey != resp["api_key"] {
		t.Fatal("persisted key differs from response")
	}
}

func TestSignupHandler_Rejections(t *testing.T) {
	d := newTestDeps(t)
	existing := seedUser(t, d.DB, models.TierFree)
	h := SignupHandler(d.DB)

	tests := []struct {
		name string
		body string
	}{
		{name: "duplicate email", body: `{"email":"` + existing.Email + `"}`},
		{name: "missing email", body: `{}`},
		{name: "malformed email", body: `{"email":"not-an-email"}`},
		{name: "invalid json", body: `{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/signup", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			h(w, r)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", w.Code)
			}
		})
	}
}

func TestConnectHandler(t *testing.T) {
	d := newTestDeps(t)
	user := seedUser(t, d.DB, models.TierPro)
	h := ConnectHandler(d)

	r := httptest.NewRequest(http.MethodGet, "/auth/late/connect?api_key="+url.QueryEscape(user.APIKey), nil)
	w := httptest.NewRecorder()
	h(w, r)

	if w.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302 (%s)", w.Code, w.Body.String())
	}
	loc, err := url.Parse(w.Header().Get("Location"))
	if err != nil {
		t.Fatalf("parse redirect: %v", err)
	}
	if !strings.HasPrefix(loc.String(), d.Cfg.Late.AuthorizeURL) {
		t.Fatalf("redirect = %s, want provider authorize URL", loc)
	}

	state := loc.Query().Get("state")
	if state == "" {
		t.Fatal("redirect missing state parameter")
	}
	var stored models.User
	if err := d.DB.First(&stored, "id = ?", user.ID).Error; err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if stored.OAuthState != state {
		t.Fatalf("persisted state %q does not match redirect state %q", stored.OAuthState, state)
	}
	if got := loc.Query().Get("client_id"); got != "client-test" {
		t.Fatalf("client_id = %q", got)
	}
}

func TestConnectHandler_Unconfigured(t *testing.T) {
	d := newTestDeps(t)
	d.Cfg.Late.ClientSecret = ""
	user := seedUser(t, d.DB, models.TierPro)
	h := ConnectHandler(d)

	r := httptest.NewRequest(http.MethodGet, "/auth/late/connect?api_key="+url.QueryEscape(user.APIKey), nil)
	w := httptest.NewRecorder()
	h(w, r)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
}

func TestConnectHandler_BadKey(t *testing.T) {
	d := newTestDeps(t)
	h := ConnectHandler(d)

	r := httptest.NewRequest(http.MethodGet, "/auth/late/connect?api_key=bp_wrong", nil)
	w := httptest.NewRecorder()
	h(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestCallbackHandler_InvalidState(t *testing.T) {
	d := newTestDeps(t)
	h := CallbackHandler(d)

	r := httptest.NewRequest(http.MethodGet, "/auth/late/callback?code=abc&state=bogus", nil)
	w := httptest.NewRecorder()
	h(w, r)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestCallbackHandler_MissingCode(t *testing.T) {
	d := newTestDeps(t)
	h := CallbackHandler(d)

	r := httptest.NewRequest(http.MethodGet, "/auth/late/callback?state=whatever", nil)
	w := httptest.NewRecorder()
	h(w, r)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestStatusHandler_Disconnected(t *testing.T) {
	d := newTestDeps(t)
	user := seedUser(t, d.DB, models.TierFree)
	h := StatusHandler(d)

	r := httptest.NewRequest(http.MethodGet, "/auth/late/status?api_key="+url.QueryEscape(user.APIKey), nil)
	w := httptest.NewRecorder()
	h(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", w.Code, w.Body.String())
	}
	var st late.Status
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if st.Connected {
		t.Fatal("expected disconnected")
	}
}

func TestHealthHandler(t *testing.T) {
	h := HealthHandler()
	r := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	h(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["status"] != "ok" {
		t.Fatalf("status field = %q", resp["status"])
	}
}

func TestRouter_Routes(t *testing.T) {
	d := newTestDeps(t)
	router := NewRouter(d)

	r := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("/healthz status = %d", w.Code)
	}

	r = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d", w.Code)
	}
}
