package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/postroom/newsletter-backend/internal/config"
	"github.com/postroom/newsletter-backend/internal/email"
	"github.com/postroom/newsletter-backend/internal/http/middleware"
	"github.com/postroom/newsletter-backend/internal/repo"
)

func testConfig() config.Config {
	return config.Config{
		Port:        "0",
		GinMode:     "test",
		LogLevel:    "error",
		APIBasePath: "/api/v1",
		BaseURL:     "http://localhost",
		RateRPS:     1000,
		RateBurst:   1000,
		Security:    config.SecurityConfig{},
		OTEL:        config.OTELConfig{ServiceName: "newsletter-backend"},
	}
}

func newRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("router_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	r := gin.New()
	RegisterRoutes(r, db, email.LogSender{}, testConfig())
	return r, db
}

func TestRouter_Health(t *testing.T) {
	r, _ := newRouter(t)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestRouter_Metrics(t *testing.T) {
	r, _ := newRouter(t)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestRouter_UnknownRoute404Envelope(t *testing.T) {
	r, _ := newRouter(t)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	if !strings.Contains(w.Body.String(), "not_found") {
		t.Fatalf("body = %s", w.Body.String())
	}
}

func TestRouter_MethodNotAllowed405(t *testing.T) {
	r, _ := newRouter(t)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/v1/subscriptions", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", w.Code)
	}
}

func TestRouter_AdminRequiresIdentity(t *testing.T) {
	r, _ := newRouter(t)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/admin/newsletters", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

// Full subscribe, confirm, publish, replay cycle through the real stack.
func TestRouter_EndToEndPublishFlow(t *testing.T) {
	r, db := newRouter(t)

	// Sign up.
	body := `{"email":"ursula@example.com","name":"Ursula Le Guin"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/subscriptions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("subscribe: status = %d body %s", w.Code, w.Body.String())
	}

	// Duplicate signup conflicts.
	req = httptest.NewRequest(http.MethodPost, "/api/v1/subscriptions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate subscribe: status = %d, want 409", w.Code)
	}

	// Confirm using the stored token (LogSender drops the email).
	var token struct{ Token string }
	if err := db.Table("subscription_tokens").Select("token").Take(&token).Error; err != nil {
		t.Fatalf("load token: %v", err)
	}
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/subscriptions/confirm?token="+token.Token, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("confirm: status = %d body %s", w.Code, w.Body.String())
	}

	// Publish an issue.
	publish := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/newsletters",
			strings.NewReader(`{"title":"Issue #1","text_content":"hello"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(middleware.HeaderUserID, "editor-1")
		req.Header.Set(middleware.HeaderIdempotencyKey, "pub-1")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w = publish()
	if w.Code != http.StatusSeeOther {
		t.Fatalf("publish: status = %d body %s", w.Code, w.Body.String())
	}
	if loc := w.Header().Get("Location"); loc != "/admin/newsletters" {
		t.Fatalf("Location = %q", loc)
	}

	// Retry with the same key replays without a second issue.
	w = publish()
	if w.Code != http.StatusSeeOther {
		t.Fatalf("replayed publish: status = %d", w.Code)
	}
	if w.Header().Get("Idempotency-Replayed") != "true" {
		t.Fatalf("replay header missing")
	}

	var issues int64
	db.Table("newsletter_issues").Count(&issues)
	if issues != 1 {
		t.Fatalf("issues = %d, want exactly 1", issues)
	}
	var queued int64
	db.Table("delivery_queue").Count(&queued)
	if queued != 1 {
		t.Fatalf("queued = %d, want exactly 1", queued)
	}

	// The published issue shows up in the listing.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/admin/newsletters", nil)
	req.Header.Set(middleware.HeaderUserID, "editor-1")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("list: status = %d", w.Code)
	}
	var list struct {
		Newsletters []json.RawMessage `json:"newsletters"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("list body: %v", err)
	}
	if len(list.Newsletters) != 1 {
		t.Fatalf("listed %d issues, want 1", len(list.Newsletters))
	}
}

func TestRouter_BadIdempotencyKeyRejected(t *testing.T) {
	r, _ := newRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/newsletters",
		strings.NewReader(`{"title":"t","text_content":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.HeaderUserID, "editor-1")
	req.Header.Set(middleware.HeaderIdempotencyKey, "bad key!")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}
