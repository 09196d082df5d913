package auth

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/models"
	"gorm.io/gorm"
)

type contextKey string

const UserIDKey contextKey = "user_id"

const APIKeyHeader = "X-API-KEY"

var errNoToken = errors.New("no token found")

// authenticate resolves the caller from an API key or, failing that, a JWT.
// fresh is a replacement token once the old one is past half its lifetime.
func (h *AuthHandler) authenticate(apiKey, token string) (userID uint, fresh string, err error) {
	if apiKey != "" {
		userID, err = h.authenticateAPIKey(apiKey)
		return userID, "", err
	}
	if token == "" {
		return 0, "", errNoToken
	}
	userID, exp, err := h.parseToken(token)
	if err != nil {
		return 0, "", errors.New("invalid token")
	}
	// Sliding session: refresh once past half the token lifetime.
	if !exp.IsZero() && time.Until(exp) < TokenDuration/2 {
		if t, err := h.GenerateToken(userID); err == nil {
			fresh = t
		}
	}
	return userID, fresh, nil
}

// AuthMiddleware resolves the caller from an API key or the JWT cookie and
// stores the user ID in the request context.
func (h *AuthHandler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := ""
		if cookie, err := r.Cookie(CookieName); err == nil {
			token = cookie.Value
		}
		userID, fresh, err := h.authenticate(r.Header.Get(APIKeyHeader), token)
		if err != nil {
			http.Error(w, "Unauthorized: "+err.Error(), http.StatusUnauthorized)
			return
		}
		if fresh != "" {
			http.SetCookie(w, h.tokenCookie(fresh))
		}
		ctx := context.WithValue(r.Context(), UserIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// HumaMiddleware is AuthMiddleware for huma operations.
func (h *AuthHandler) HumaMiddleware(api huma.API) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		token := ""
		if cookie, err := huma.ReadCookie(ctx, CookieName); err == nil {
			token = cookie.Value
		}
		userID, fresh, err := h.authenticate(ctx.Header(APIKeyHeader), token)
		if err != nil {
			_ = huma.WriteErr(api, ctx, http.StatusUnauthorized, "Unauthorized: "+err.Error())
			return
		}
		if fresh != "" {
			ctx.AppendHeader("Set-Cookie", h.tokenCookie(fresh).String())
		}
		next(huma.WithValue(ctx, UserIDKey, userID))
	}
}

func (h *AuthHandler) authenticateAPIKey(raw string) (uint, error) {
	var key models.APIKey
	if err := h.db.Where("key_hash = ?", models.HashAPIKey(raw)).First(&key).Error; err != nil {
		return 0, errors.New("invalid API key")
	}
	now := time.Now()
	if key.Expired(now) {
		return 0, errors.New("API key expired")
	}
	h.db.Model(&key).Update("last_used_at", now)
	return key.UserID, nil
}

// AuthInput is embedded by huma inputs that need a signed-in caller.
type AuthInput struct {
	Cookie string `header:"Cookie" doc:"Session cookie"`
}

// Authorize returns the caller's user ID. A user already resolved by
// AuthMiddleware wins over the cookie header.
func (h *AuthHandler) Authorize(ctx context.Context, cookieHeader string) (uint, error) {
	if id, ok := ctx.Value(UserIDKey).(uint); ok && id != 0 {
		return id, nil
	}
	header := http.Header{}
	header.Add("Cookie", cookieHeader)
	cookie, err := (&http.Request{Header: header}).Cookie(CookieName)
	if err != nil {
		return 0, huma.Error401Unauthorized("No token found")
	}
	userID, _, err := h.parseToken(cookie.Value)
	if err != nil {
		return 0, huma.Error401Unauthorized("Invalid token")
	}
	return userID, nil
}

// RequireAdmin loads the caller and fails unless they are an admin.
func (h *AuthHandler) RequireAdmin(ctx context.Context, cookieHeader string) (*models.User, error) {
	userID, err := h.Authorize(ctx, cookieHeader)
	if err != nil {
		return nil, err
	}
	var user models.User
	if err := h.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, huma.Error401Unauthorized("Unknown user")
		}
		return nil, huma.Error500InternalServerError("Failed to load user", err)
	}
	if !user.IsAdmin {
		return nil, huma.Error403Forbidden("Admin access required")
	}
	return &user, nil
}

type MeOutput struct {
	Body struct {
		ID        uint   `json:"id"`
		DiscordID string `json:"discord_id"`
		Username  string `json:"username"`
		Email     string `json:"email"`
		Avatar    string `json:"avatar"`
		IsAdmin   bool   `json:"is_admin"`
	}
}

func (h *AuthHandler) HandleMe(ctx context.Context, input *AuthInput) (*MeOutput, error) {
	userID, err := h.Authorize(ctx, input.Cookie)
	if err != nil {
		return nil, err
	}
	var user models.User
	if err := h.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		return nil, huma.Error404NotFound("User not found")
	}
	out := &MeOutput{}
	out.Body.ID = user.ID
	out.Body.DiscordID = user.DiscordID
	out.Body.Username = user.Username
	out.Body.Email = user.Email
	out.Body.Avatar = user.Avatar
	out.Body.IsAdmin = user.IsAdmin
	return out, nil
}
