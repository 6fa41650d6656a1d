package middleware

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestRequestID_GeneratesAndEchoes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	if rid := w.Header().Get("X-Request-ID"); rid == "" {
		t.Fatalf("no request id generated")
	}
}

func TestRequestID_PropagatesIncoming(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Request-ID", "upstream-id")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if rid := w.Header().Get("X-Request-ID"); rid != "upstream-id" {
		t.Fatalf("request id = %q, want upstream-id", rid)
	}
}

func TestRecovery_PanicBecomesJSON500(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.Use(Recovery())
	r.GET("/boom", func(c *gin.Context) { panic("kaboom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if !strings.Contains(w.Body.String(), "internal_error") {
		t.Fatalf("body = %s", w.Body.String())
	}
}

func TestMaskQuery(t *testing.T) {
	cases := []struct {
		name string
		in   string
	}{
		{"token masked", "token=secret-value"},
		{"email masked", "email=a%40example.com"},
		{"mixed", "page=2&token=secret&email=x%40y.z"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := maskQuery(tc.in)
			if strings.Contains(out, "secret") || strings.Contains(out, "example.com") || strings.Contains(out, "y.z") {
				t.Fatalf("maskQuery(%q) leaked a value: %q", tc.in, out)
			}
			values, err := url.ParseQuery(out)
			if err != nil {
				t.Fatalf("masked query unparsable: %v", err)
			}
			for _, name := range []string{"token", "email"} {
				if v := values.Get(name); v != "" && v != "***" {
					t.Fatalf("%s = %q, want ***", name, v)
				}
			}
		})
	}
}

func TestMaskQuery_LeavesOthersAlone(t *testing.T) {
	if out := maskQuery("page=2&page_size=20"); out != "page=2&page_size=20" {
		t.Fatalf("benign query rewritten: %q", out)
	}
	if out := maskQuery(""); out != "" {
		t.Fatalf("empty query = %q", out)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("abcdef", 4); got != "abcd" {
		t.Fatalf("truncate = %q", got)
	}
	if got := truncate("ab", 4); got != "ab" {
		t.Fatalf("truncate = %q", got)
	}
}

func TestLoggerFrom_FallsBackToGlobal(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if LoggerFrom(c) == nil {
		t.Fatalf("LoggerFrom returned nil outside Logger middleware")
	}
}
