package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/upb/llm-chat-gateway/middleware"
	"github.com/upb/llm-chat-gateway/models"
	"github.com/upb/llm-chat-gateway/repositories"
	"github.com/upb/llm-chat-gateway/services/providers"
	"github.com/upb/llm-chat-gateway/services/secrets"
	"github.com/upb/llm-chat-gateway/utils"
	"go.uber.org/zap"
)

// DefaultSecretKey is the vault key used when a request supplies an API key
// without naming one.
const DefaultSecretKey = "api_key"

// SecretStore accepts plaintext secrets handed in over the API.
type SecretStore interface {
	Put(ref secrets.SecretRef, value string)
	Delete(ref secrets.SecretRef)
}

// ModelInvalidator drops cached model lists.
type ModelInvalidator interface {
	InvalidateModels(cred *models.ProviderCredential)
}

// CredentialRequest is the body of create and update calls. APIKey goes to
// the secret store; only its reference is persisted.
type CredentialRequest struct {
	ProviderID   string            `json:"providerId" validate:"required,max=64"`
	Label        string            `json:"label" validate:"required,max=120"`
	BaseURL      string            `json:"baseUrl,omitempty" validate:"omitempty,url"`
	Headers      map[string]string `json:"headers,omitempty"`
	DefaultModel string            `json:"defaultModel,omitempty" validate:"max=200"`
	SecretKey    string            `json:"secretKey,omitempty" validate:"max=64"`
	APIKey       string            `json:"apiKey,omitempty"`
}

// CredentialHandler handles credential CRUD.
type CredentialHandler struct {
	repo     repositories.CredentialRepository
	registry *providers.Registry
	vault    SecretStore
	models   ModelInvalidator
	logger   *zap.Logger
}

// NewCredentialHandler creates a new CredentialHandler. vault may be nil, in
// which case requests carrying an apiKey are rejected.
func NewCredentialHandler(repo repositories.CredentialRepository, registry *providers.Registry, vault SecretStore, invalidator ModelInvalidator, logger *zap.Logger) *CredentialHandler {
	return &CredentialHandler{
		repo:     repo,
		registry: registry,
		vault:    vault,
		models:   invalidator,
		logger:   logger,
	}
}

// HandleList handles GET /api/v1/credentials
func (h *CredentialHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	creds, err := h.repo.List(r.Context())
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, creds)
}

// HandleGet handles GET /api/v1/credentials/{id}
func (h *CredentialHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := utils.ParseUUID(chi.URLParam(r, "id"))
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}

	cred, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, cred)
}

// HandleCreate handles POST /api/v1/credentials
func (h *CredentialHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, ok := h.decode(w, r)
	if !ok {
		return
	}

	cred := models.NewProviderCredential(body.ProviderID, body.Label, "")
	apply(cred, body)

	if !h.storeSecret(w, cred, body) {
		return
	}

	if err := h.repo.Create(ctx, cred); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("credential created",
		zap.String("request_id", middleware.GetRequestIDFromContext(ctx)),
		zap.String("id", cred.ID.String()),
		zap.String("provider_id", cred.ProviderID))
	_ = utils.WriteCreated(w, cred)
}

// HandleUpdate handles PUT /api/v1/credentials/{id}. The cached model list
// of the credential is dropped.
func (h *CredentialHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := utils.ParseUUID(chi.URLParam(r, "id"))
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}

	body, ok := h.decode(w, r)
	if !ok {
		return
	}

	cred, err := h.repo.GetByID(ctx, id)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	cred.ProviderID = body.ProviderID
	apply(cred, body)
	if !h.storeSecret(w, cred, body) {
		return
	}
	cred.Touch()

	if err := h.repo.Update(ctx, cred); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	h.models.InvalidateModels(cred)

	h.logger.Info("credential updated",
		zap.String("request_id", middleware.GetRequestIDFromContext(ctx)),
		zap.String("id", cred.ID.String()))
	_ = utils.WriteOK(w, cred)
}

// HandleDelete handles DELETE /api/v1/credentials/{id}
func (h *CredentialHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := utils.ParseUUID(chi.URLParam(r, "id"))
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}

	cred, err := h.repo.GetByID(ctx, id)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := h.repo.Delete(ctx, id); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	h.models.InvalidateModels(cred)
	if h.vault != nil && cred.SecretRef != nil {
		h.vault.Delete(*cred.SecretRef)
	}

	h.logger.Info("credential deleted",
		zap.String("request_id", middleware.GetRequestIDFromContext(ctx)),
		zap.String("id", id.String()))
	utils.WriteNoContent(w)
}

func (h *CredentialHandler) decode(w http.ResponseWriter, r *http.Request) (*CredentialRequest, bool) {
	var body CredentialRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return nil, false
	}

	if err := utils.ValidateStruct(&body); err != nil {
		HandleValidationError(w, err, h.logger)
		return nil, false
	}

	if _, err := h.registry.Lookup(body.ProviderID); err != nil {
		HandleServiceError(w, err, h.logger)
		return nil, false
	}
	return &body, true
}

// storeSecret points the credential at its secret and, when the request
// carried a plaintext key, hands it to the vault.
func (h *CredentialHandler) storeSecret(w http.ResponseWriter, cred *models.ProviderCredential, body *CredentialRequest) bool {
	key := body.SecretKey
	if key == "" && body.APIKey != "" {
		key = DefaultSecretKey
	}
	if key != "" {
		cred.SecretRef = &secrets.SecretRef{
			ProviderID:   cred.ProviderID,
			Key:          key,
			CredentialID: cred.ID.String(),
		}
	}

	if body.APIKey == "" {
		return true
	}
	if h.vault == nil {
		_ = utils.WriteBadRequest(w, "apiKey is not accepted by this server; configure the secret in the environment", nil)
		return false
	}
	h.vault.Put(*cred.SecretRef, body.APIKey)
	return true
}

func apply(cred *models.ProviderCredential, body *CredentialRequest) {
	cred.Label = body.Label
	cred.BaseURL = body.BaseURL
	cred.Headers = body.Headers
	cred.DefaultModel = body.DefaultModel
}
