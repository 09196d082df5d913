package handlers

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/auth"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/models"
	"gorm.io/gorm"
)

const apiKeyPrefixLen = 8

type APIKeyHandler struct {
	db          *gorm.DB
	authHandler *auth.AuthHandler
}

func NewAPIKeyHandler(db *gorm.DB, authHandler *auth.AuthHandler) *APIKeyHandler {
	return &APIKeyHandler{db: db, authHandler: authHandler}
}

type CreateAPIKeyInput struct {
	auth.AuthInput
	Body struct {
		Name      string     `json:"name"`
		ExpiresAt *time.Time `json:"expires_at,omitempty"`
	}
}

type APIKeyResponse struct {
	ID         uint       `json:"id"`
	Name       string     `json:"name"`
	Key        string     `json:"key"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  *time.Time `json:"expires_at"`
	LastUsedAt *time.Time `json:"last_used_at"`
}

type CreateAPIKeyOutput struct {
	Body APIKeyResponse
}

// HandleCreate issues a key. The plaintext is returned once; only its hash
// is stored.
func (h *APIKeyHandler) HandleCreate(ctx context.Context, input *CreateAPIKeyInput) (*CreateAPIKeyOutput, error) {
	user, err := h.authHandler.RequireAdmin(ctx, input.Cookie)
	if err != nil {
		return nil, err
	}

	keyBytes := make([]byte, 32)
	if _, err := rand.Read(keyBytes); err != nil {
		return nil, huma.Error500InternalServerError("Failed to generate key")
	}
	key := hex.EncodeToString(keyBytes)

	apiKey := models.APIKey{
		UserID:    user.ID,
		KeyHash:   models.HashAPIKey(key),
		Prefix:    key[:apiKeyPrefixLen],
		Name:      input.Body.Name,
		ExpiresAt: input.Body.ExpiresAt,
	}

	if err := h.db.WithContext(ctx).Create(&apiKey).Error; err != nil {
		return nil, huma.Error500InternalServerError("Failed to create API key")
	}

	return &CreateAPIKeyOutput{
		Body: APIKeyResponse{
			ID:         apiKey.ID,
			Name:       apiKey.Name,
			Key:        key,
			CreatedAt:  apiKey.CreatedAt,
			ExpiresAt:  apiKey.ExpiresAt,
			LastUsedAt: apiKey.LastUsedAt,
		},
	}, nil
}

type ListAPIKeysOutput struct {
	Body []APIKeyResponse
}

func (h *APIKeyHandler) HandleList(ctx context.Context, input *auth.AuthInput) (*ListAPIKeysOutput, error) {
	userID, err := h.authHandler.Authorize(ctx, input.Cookie)
	if err != nil {
		return nil, err
	}

	var apiKeys []models.APIKey
	if err := h.db.WithContext(ctx).Where("user_id = ?", userID).Order("id").Find(&apiKeys).Error; err != nil {
		return nil, huma.Error500InternalServerError("Failed to list API keys")
	}

	response := make([]APIKeyResponse, 0, len(apiKeys))
	for _, k := range apiKeys {
		response = append(response, APIKeyResponse{
			ID:         k.ID,
			Name:       k.Name,
			Key:        k.Prefix + "...",
			CreatedAt:  k.CreatedAt,
			ExpiresAt:  k.ExpiresAt,
			LastUsedAt: k.LastUsedAt,
		})
	}

	return &ListAPIKeysOutput{Body: response}, nil
}

type DeleteAPIKeyInput struct {
	auth.AuthInput
	ID uint `path:"id"`
}

func (h *APIKeyHandler) HandleDelete(ctx context.Context, input *DeleteAPIKeyInput) (*struct{}, error) {
	userID, err := h.authHandler.Authorize(ctx, input.Cookie)
	if err != nil {
		return nil, err
	}

	res := h.db.WithContext(ctx).Where("id = ? AND user_id = ?", input.ID, userID).Delete(&models.APIKey{})
	if res.Error != nil {
		return nil, huma.Error500InternalServerError("Failed to delete API key")
	}
	if res.RowsAffected == 0 {
		return nil, huma.Error404NotFound("API key not found")
	}

	return nil, nil
}

func (h *APIKeyHandler) register(api huma.API, protect func(*huma.Operation)) {
	op := func(id, method, path, summary string) huma.Operation {
		o := huma.Operation{
			OperationID: id,
			Method:      method,
			Path:        path,
			Summary:     summary,
			Tags:        []string{"API Keys"},
		}
		protect(&o)
		return o
	}

	huma.Register(api, op("create-api-key", http.MethodPost, "/api-keys", "Create an API key"), h.HandleCreate)
	huma.Register(api, op("list-api-keys", http.MethodGet, "/api-keys", "List your API keys"), h.HandleList)
	huma.Register(api, op("delete-api-key", http.MethodDelete, "/api-keys/{id}", "Delete an API key"), h.HandleDelete)
}
