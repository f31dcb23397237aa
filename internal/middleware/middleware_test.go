package middleware

import (
	"context"
	"net/http"
	"testing"

	"github.com/cloudwego/hertz/pkg/app"
	hzconfig "github.com/cloudwego/hertz/pkg/common/config"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/cloudwego/hertz/pkg/route"
)

func newEngine() *route.Engine {
	return route.NewEngine(hzconfig.NewOptions(nil))
}

func TestGetUserID(t *testing.T) {
	engine := newEngine()
	var got int64
	var gotOK bool
	engine.GET("/me", func(ctx context.Context, c *app.RequestContext) {
		c.Set(IdentityKey, int64(42))
		got, gotOK = GetUserID(ctx, c)
		c.Status(http.StatusOK)
	})
	engine.GET("/anon", func(ctx context.Context, c *app.RequestContext) {
		_, gotOK = GetUserID(ctx, c)
		c.Status(http.StatusOK)
	})

	ut.PerformRequest(engine, http.MethodGet, "/me", nil)
	if !gotOK || got != 42 {
		t.Fatalf("GetUserID = %d, %v, want 42, true", got, gotOK)
	}

	ut.PerformRequest(engine, http.MethodGet, "/anon", nil)
	if gotOK {
		t.Fatalf("GetUserID ok = true for anonymous request")
	}
}

func TestLocationRateLimitPerJourney(t *testing.T) {
	engine := newEngine()
	cfg := RateLimitConfig{Window: 60, MaxRequests: 2, KeyPrefix: "rate:test", ByParam: "journey_id"}
	engine.POST("/v1/journeys/:journey_id/locations", RateLimitMiddleware(cfg, nil), func(ctx context.Context, c *app.RequestContext) {
		c.Status(http.StatusNoContent)
	})

	for i := 0; i < 2; i++ {
		w := ut.PerformRequest(engine, http.MethodPost, "/v1/journeys/a/locations", nil)
		if w.Code != http.StatusNoContent {
			t.Fatalf("request %d status = %d, want %d", i, w.Code, http.StatusNoContent)
		}
	}

	w := ut.PerformRequest(engine, http.MethodPost, "/v1/journeys/a/locations", nil)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("third request status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}

	// 其他行程不受影响
	w = ut.PerformRequest(engine, http.MethodPost, "/v1/journeys/b/locations", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("other journey status = %d, want %d", w.Code, http.StatusNoContent)
	}
}

func TestRecoverMiddleware(t *testing.T) {
	engine := newEngine()
	cfg := NewRecoverConfig()
	cfg.IsProduction = true
	engine.Use(RecoverMiddlewareWithConfig(cfg))
	engine.GET("/boom", func(ctx context.Context, c *app.RequestContext) {
		panic("boom")
	})

	w := ut.PerformRequest(engine, http.MethodGet, "/boom", nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
}

func TestCORSAllowList(t *testing.T) {
	origins, err := parseOrigins([]string{"https://Track.SafeWalk.example", " ", "http://localhost:3000"})
	if err != nil {
		t.Fatalf("parseOrigins: %v", err)
	}
	if len(origins) != 2 {
		t.Fatalf("parsed %d origins, want 2", len(origins))
	}
	if _, err := parseOrigins([]string{"track.safewalk.example"}); err == nil {
		t.Fatal("expected error for origin without scheme")
	}

	engine := newEngine()
	engine.Use(NewCORS(origins))
	engine.GET("/track/:journey_id", func(ctx context.Context, c *app.RequestContext) {
		c.Status(http.StatusOK)
	})
	engine.OPTIONS("/track/:journey_id", func(ctx context.Context, c *app.RequestContext) {
		c.Status(http.StatusOK)
	})

	w := ut.PerformRequest(engine, http.MethodGet, "/track/j1", nil, ut.Header{Key: "Origin", Value: "https://track.safewalk.example"})
	if got := w.Result().Header.Get("Access-Control-Allow-Origin"); got != "https://track.safewalk.example" {
		t.Fatalf("allowed origin header = %q", got)
	}

	w = ut.PerformRequest(engine, http.MethodGet, "/track/j1", nil, ut.Header{Key: "Origin", Value: "https://evil.example"})
	if w.Code != http.StatusOK {
		t.Fatalf("foreign origin status = %d, want %d", w.Code, http.StatusOK)
	}
	if got := w.Result().Header.Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("foreign origin header = %q, want empty", got)
	}

	w = ut.PerformRequest(engine, http.MethodOptions, "/track/j1", nil, ut.Header{Key: "Origin", Value: "https://evil.example"})
	if w.Code != http.StatusForbidden {
		t.Fatalf("foreign preflight status = %d, want %d", w.Code, http.StatusForbidden)
	}

	w = ut.PerformRequest(engine, http.MethodOptions, "/track/j1", nil, ut.Header{Key: "Origin", Value: "http://localhost:3000"})
	if w.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if got := w.Result().Header.Get("Access-Control-Allow-Methods"); got != "GET, POST, OPTIONS" {
		t.Fatalf("allow methods = %q", got)
	}
}

func TestCORSWithoutAllowListEchoesOrigin(t *testing.T) {
	engine := newEngine()
	engine.Use(NewCORS(nil))
	engine.GET("/health", func(ctx context.Context, c *app.RequestContext) {
		c.Status(http.StatusOK)
	})

	w := ut.PerformRequest(engine, http.MethodGet, "/health", nil, ut.Header{Key: "Origin", Value: "https://anywhere.example"})
	if got := w.Result().Header.Get("Access-Control-Allow-Origin"); got != "https://anywhere.example" {
		t.Fatalf("origin header = %q", got)
	}
}
