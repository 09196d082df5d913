package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/config"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/database/dbtest"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/models"
)

func signedToken(t *testing.T, secret string, userID uint, ttl time.Duration) string {
	t.Helper()
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(ttl).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return token
}

func okHandler(seen *uint) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, ok := r.Context().Value(UserIDKey).(uint); ok {
			*seen = id
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestJWTMiddleware_SlidingSession(t *testing.T) {
	cfg := &config.Config{JWTSecret: "test-secret"}
	handler := NewAuthHandler(cfg, nil)

	t.Run("TokenRenewed", func(t *testing.T) {
		// 11h left is under half of TokenDuration.
		tokenString := signedToken(t, cfg.JWTSecret, 1, 11*time.Hour)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: CookieName, Value: tokenString})
		rr := httptest.NewRecorder()

		var seen uint
		handler.AuthMiddleware(okHandler(&seen)).ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("expected status OK, got %v", rr.Code)
		}
		if seen != 1 {
			t.Errorf("expected user 1 in context, got %d", seen)
		}

		found := false
		for _, c := range rr.Result().Cookies() {
			if c.Name == CookieName {
				found = true
				if c.Value == tokenString {
					t.Errorf("expected new token value, but got the old one")
				}
			}
		}
		if !found {
			t.Errorf("expected new auth_token cookie to be set")
		}
	})

	t.Run("TokenNotRenewed", func(t *testing.T) {
		tokenString := signedToken(t, cfg.JWTSecret, 1, 13*time.Hour)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: CookieName, Value: tokenString})
		rr := httptest.NewRecorder()

		var seen uint
		handler.AuthMiddleware(okHandler(&seen)).ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("expected status OK, got %v", rr.Code)
		}
		for _, c := range rr.Result().Cookies() {
			if c.Name == CookieName {
				t.Errorf("did not expect a new auth_token cookie to be set")
			}
		}
	})

	t.Run("ExpiredToken", func(t *testing.T) {
		tokenString := signedToken(t, cfg.JWTSecret, 1, -time.Minute)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: CookieName, Value: tokenString})
		rr := httptest.NewRecorder()

		var seen uint
		handler.AuthMiddleware(okHandler(&seen)).ServeHTTP(rr, req)

		if rr.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %v", rr.Code)
		}
	})

	t.Run("NoCookie", func(t *testing.T) {
		rr := httptest.NewRecorder()
		var seen uint
		handler.AuthMiddleware(okHandler(&seen)).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %v", rr.Code)
		}
	})
}

func TestAPIKeyMiddleware(t *testing.T) {
	db := dbtest.Open(t)
	user := models.User{DiscordID: "7", Username: "script"}
	db.Create(&user)

	past := time.Now().Add(-time.Hour)
	db.Create(&models.APIKey{UserID: user.ID, KeyHash: models.HashAPIKey("live-key"), Prefix: "live", Name: "ci"})
	db.Create(&models.APIKey{UserID: user.ID, KeyHash: models.HashAPIKey("old-key"), Prefix: "old-", Name: "old", ExpiresAt: &past})

	handler := NewAuthHandler(&config.Config{JWTSecret: "test-secret"}, db)

	t.Run("Valid", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(APIKeyHeader, "live-key")
		rr := httptest.NewRecorder()

		var seen uint
		handler.AuthMiddleware(okHandler(&seen)).ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status OK, got %v", rr.Code)
		}
		if seen != user.ID {
			t.Errorf("expected user %d in context, got %d", user.ID, seen)
		}

		var key models.APIKey
		db.Where("prefix = ?", "live").First(&key)
		if key.LastUsedAt == nil {
			t.Errorf("expected last_used_at to be recorded")
		}
	})

	for name, raw := range map[string]string{"Expired": "old-key", "Unknown": "nope"} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set(APIKeyHeader, raw)
			rr := httptest.NewRecorder()

			var seen uint
			handler.AuthMiddleware(okHandler(&seen)).ServeHTTP(rr, req)

			if rr.Code != http.StatusUnauthorized {
				t.Errorf("expected 401, got %v", rr.Code)
			}
			if seen != 0 {
				t.Errorf("expected next handler not to run")
			}
		})
	}
}
