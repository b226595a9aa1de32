package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func ginRouter(verify func(ctx context.Context, rawToken string) error) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	api := engine.Group("/api/v1")
	api.Use(ginVerify(verify))
	api.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})
	return engine
}

func TestGinVerifyRejectsMissingToken(t *testing.T) {
	verified := false
	engine := ginRouter(func(ctx context.Context, rawToken string) error {
		verified = true
		return nil
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil)
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", rec.Code)
	}
	if verified {
		t.Error("Expected no verification attempt without a token")
	}
}

func TestGinVerifyRejectsInvalidToken(t *testing.T) {
	engine := ginRouter(func(ctx context.Context, rawToken string) error {
		return errors.New("signature mismatch")
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil)
	req.Header.Set("Authorization", "Bearer forged")
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", rec.Code)
	}
}

func TestGinVerifyPassesValidToken(t *testing.T) {
	var seen string
	engine := ginRouter(func(ctx context.Context, rawToken string) error {
		seen = rawToken
		return nil
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}
	if seen != "good-token" {
		t.Errorf("Expected the raw token to reach the verifier, got %q", seen)
	}
}
