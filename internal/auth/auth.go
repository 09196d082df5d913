package auth

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/config"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/logger"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/models"
	"golang.org/x/oauth2"
	"gorm.io/gorm"
)

const (
	DiscordAuthorizeEndpoint = "https://discord.com/api/oauth2/authorize"
	DiscordTokenEndpoint     = "https://discord.com/api/oauth2/token"
	DiscordUserAPI           = "https://discord.com/api/users/@me"
	DiscordUserGuildsAPI     = "https://discord.com/api/users/@me/guilds"

	CookieName      = "auth_token"
	stateCookieName = "oauth_state"
	TokenDuration   = 24 * time.Hour
)

var ErrUnauthorized = errors.New("unauthorized")

type AuthHandler struct {
	oauthConfig *oauth2.Config
	db          *gorm.DB
	cfg         *config.Config
	// Overridable in tests.
	userAPI   string
	guildsAPI string
}

func NewAuthHandler(cfg *config.Config, db *gorm.DB) *AuthHandler {
	return &AuthHandler{
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.DiscordClientID,
			ClientSecret: cfg.DiscordClientSecret,
			RedirectURL:  cfg.DiscordRedirectURL,
			Scopes:       []string{"identify", "email", "guilds"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  DiscordAuthorizeEndpoint,
				TokenURL: DiscordTokenEndpoint,
			},
		},
		db:        db,
		cfg:       cfg,
		userAPI:   DiscordUserAPI,
		guildsAPI: DiscordUserGuildsAPI,
	}
}

func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		http.Error(w, "Failed to start login", http.StatusInternalServerError)
		return
	}
	state := hex.EncodeToString(buf)
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/auth/discord",
		Expires:  time.Now().Add(10 * time.Minute),
		HttpOnly: true,
		Secure:   h.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOnline), http.StatusTemporaryRedirect)
}

type discordUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Avatar   string `json:"avatar"`
}

func (h *AuthHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "Code not found", http.StatusBadRequest)
		return
	}
	state, err := r.Cookie(stateCookieName)
	if err != nil || state.Value == "" || state.Value != r.URL.Query().Get("state") {
		http.Error(w, "Invalid login state", http.StatusBadRequest)
		return
	}

	token, err := h.oauthConfig.Exchange(r.Context(), code)
	if err != nil {
		logger.Warnw("discord_token_exchange_failed", "error", err)
		http.Error(w, "Failed to exchange token", http.StatusInternalServerError)
		return
	}
	client := h.oauthConfig.Client(r.Context(), token)

	if h.cfg.DiscordGuildID != "" {
		member, err := h.isGuildMember(client)
		if err != nil {
			logger.Warnw("discord_guilds_failed", "error", err)
			http.Error(w, "Failed to get user guilds", http.StatusInternalServerError)
			return
		}
		if !member {
			http.Error(w, "Access denied: You are not a member of the required guild.", http.StatusForbidden)
			return
		}
	}

	var du discordUser
	if err := getJSON(client, h.userAPI, &du); err != nil {
		logger.Warnw("discord_user_failed", "error", err)
		http.Error(w, "Failed to get user info", http.StatusInternalServerError)
		return
	}

	user, err := h.upsertUser(du)
	if err != nil {
		logger.Errorw("user_save_failed", "discord_id", du.ID, "error", err)
		http.Error(w, "Failed to save user", http.StatusInternalServerError)
		return
	}

	jwtToken, err := h.GenerateToken(user.ID)
	if err != nil {
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}
	http.SetCookie(w, h.tokenCookie(jwtToken))
	logger.Infow("admin_login", "user_id", user.ID, "is_admin", user.IsAdmin)

	if h.cfg.FrontendURL != "" {
		http.Redirect(w, r, h.cfg.FrontendURL, http.StatusSeeOther)
		return
	}
	_, _ = w.Write([]byte(fmt.Sprintf("Welcome %s! You are logged in.", user.Username)))
}

func (h *AuthHandler) isGuildMember(client *http.Client) (bool, error) {
	var guilds []struct {
		ID string `json:"id"`
	}
	if err := getJSON(client, h.guildsAPI, &guilds); err != nil {
		return false, err
	}
	for _, g := range guilds {
		if g.ID == h.cfg.DiscordGuildID {
			return true, nil
		}
	}
	return false, nil
}

func getJSON(client *http.Client, url string, out interface{}) error {
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// upsertUser stores the Discord profile. The admin flag follows the
// configured allow-list on every login.
func (h *AuthHandler) upsertUser(du discordUser) (*models.User, error) {
	var user models.User
	if err := h.db.FirstOrInit(&user, models.User{DiscordID: du.ID}).Error; err != nil {
		return nil, err
	}
	user.Username = du.Username
	user.Email = du.Email
	user.Avatar = du.Avatar
	user.IsAdmin = h.cfg.IsAdminDiscordID(du.ID)
	if err := h.db.Save(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (h *AuthHandler) GenerateToken(userID uint) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(TokenDuration).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(h.cfg.JWTSecret))
}

// parseToken validates a signed token and returns its user and expiry.
func (h *AuthHandler) parseToken(tokenString string) (uint, time.Time, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(h.cfg.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return 0, time.Time{}, ErrUnauthorized
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, time.Time{}, ErrUnauthorized
	}
	userIDFloat, ok := claims["user_id"].(float64)
	if !ok || userIDFloat <= 0 {
		return 0, time.Time{}, ErrUnauthorized
	}
	var exp time.Time
	if expFloat, ok := claims["exp"].(float64); ok {
		exp = time.Unix(int64(expFloat), 0)
	}
	return uint(userIDFloat), exp, nil
}

func (h *AuthHandler) tokenCookie(token string) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Expires:  time.Now().Add(TokenDuration),
		HttpOnly: true,
		Secure:   h.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
		Path:     "/",
	}
}
