package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/sahilm/fuzzy"
	"github.com/upb/llm-chat-gateway/middleware"
	"github.com/upb/llm-chat-gateway/models"
	"github.com/upb/llm-chat-gateway/repositories"
	"github.com/upb/llm-chat-gateway/services/chat"
	"github.com/upb/llm-chat-gateway/services/providers"
	"github.com/upb/llm-chat-gateway/services/secrets"
	"github.com/upb/llm-chat-gateway/utils"
	"go.uber.org/zap"
)

// ChatService is the slice of chat.Manager the HTTP layer uses.
type ChatService interface {
	SendTurn(ctx context.Context, req chat.TurnRequest) (*chat.TurnResult, error)
	StreamTurn(ctx context.Context, req chat.TurnRequest) <-chan chat.Event
	ListModels(ctx context.Context, cred *models.ProviderCredential, forceRefresh bool) ([]string, error)
	ChooseModel(ctx context.Context, cred *models.ProviderCredential) string
	FallbackModels(cred *models.ProviderCredential) []string
}

// TurnRequest is the body of POST /api/v1/turns.
type TurnRequest struct {
	CredentialID string              `json:"credentialId" validate:"required,uuid"`
	Model        string              `json:"model,omitempty" validate:"max=200"`
	System       string              `json:"system,omitempty"`
	Messages     []providers.Message `json:"messages" validate:"required,min=1,dive"`
	Temperature  *float64            `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
	TopP         *float64            `json:"topP,omitempty" validate:"omitempty,gte=0,lte=1"`
	MaxTokens    *int                `json:"maxTokens,omitempty" validate:"omitempty,gt=0"`
	Stream       bool                `json:"stream,omitempty"`
}

// ModelListResponse is returned by the list models endpoint. Fallback is set
// when the endpoint could not be reached and the static list was served.
type ModelListResponse struct {
	Models   []string `json:"models"`
	Fallback bool     `json:"fallback"`
	Error    string   `json:"error,omitempty"`
}

// ChatHandler serves turns and model discovery.
type ChatHandler struct {
	chat   ChatService
	creds  repositories.CredentialRepository
	logger *zap.Logger
}

// NewChatHandler creates a new ChatHandler
func NewChatHandler(chat ChatService, creds repositories.CredentialRepository, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		chat:   chat,
		creds:  creds,
		logger: logger,
	}
}

// HandleTurn handles POST /api/v1/turns
func (h *ChatHandler) HandleTurn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	var body TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.logger.Warn("failed to parse request body",
			zap.String("request_id", requestID),
			zap.Error(err))
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}

	if err := utils.ValidateStruct(&body); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	id, _ := utils.ParseUUID(body.CredentialID)
	cred, err := h.creds.GetByID(ctx, id)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	req := chat.TurnRequest{
		Credential:  cred,
		System:      body.System,
		Model:       body.Model,
		Messages:    body.Messages,
		Temperature: body.Temperature,
		TopP:        body.TopP,
		MaxTokens:   body.MaxTokens,
	}

	if body.Stream {
		h.streamTurn(w, r, req)
		return
	}

	result, err := h.chat.SendTurn(ctx, req)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, result)
}

// streamTurn relays the tagged event stream as server-sent events. Once the
// stream has started, failures are reported in-band as an error event.
func (h *ChatHandler) streamTurn(w http.ResponseWriter, r *http.Request, req chat.TurnRequest) {
	sse, err := utils.NewSSEWriter(w)
	if err != nil {
		h.logger.Error("streaming unsupported", zap.Error(err))
		_ = utils.WriteInternalServerError(w, "Streaming unsupported")
		return
	}

	writeFailed := false
	for ev := range h.chat.StreamTurn(r.Context(), req) {
		if writeFailed {
			continue
		}

		var payload interface{} = ev
		if ev.Type == chat.EventError {
			payload = streamError{
				Type:    ev.Type,
				Status:  StatusForError(ev.Err),
				Message: secrets.MaskAllSecrets(ev.Err.Error()),
			}
		}

		if err := sse.WriteEvent(string(ev.Type), payload); err != nil {
			h.logger.Debug("client went away during stream",
				zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())),
				zap.Error(err))
			writeFailed = true
		}
	}
}

type streamError struct {
	Type    chat.EventType `json:"type"`
	Status  int            `json:"status"`
	Message string         `json:"message"`
}

// HandleListModels handles GET /api/v1/credentials/{id}/models
func (h *ChatHandler) HandleListModels(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	cred, ok := h.loadCredential(w, r)
	if !ok {
		return
	}

	refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh"))
	resp := ModelListResponse{}

	list, err := h.chat.ListModels(ctx, cred, refresh)
	if err != nil {
		message := secrets.MaskAllSecrets(err.Error())
		h.logger.Warn("listing models failed, serving fallback list",
			zap.String("request_id", middleware.GetRequestIDFromContext(ctx)),
			zap.String("provider_id", cred.ProviderID),
			zap.String("error", message))
		list = h.chat.FallbackModels(cred)
		resp.Fallback = true
		resp.Error = message
	}

	resp.Models = FilterModels(list, r.URL.Query().Get("q"))
	_ = utils.WriteOK(w, resp)
}

// HandleChooseModel handles GET /api/v1/credentials/{id}/model
func (h *ChatHandler) HandleChooseModel(w http.ResponseWriter, r *http.Request) {
	cred, ok := h.loadCredential(w, r)
	if !ok {
		return
	}

	_ = utils.WriteOK(w, map[string]string{
		"model": h.chat.ChooseModel(r.Context(), cred),
	})
}

func (h *ChatHandler) loadCredential(w http.ResponseWriter, r *http.Request) (*models.ProviderCredential, bool) {
	id, err := utils.ParseUUID(chi.URLParam(r, "id"))
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return nil, false
	}

	cred, err := h.creds.GetByID(r.Context(), id)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return nil, false
	}
	return cred, true
}

// FilterModels ranks list by fuzzy match against q. An empty q keeps the
// original order.
func FilterModels(list []string, q string) []string {
	if list == nil {
		list = []string{}
	}
	if q == "" {
		return list
	}

	matches := fuzzy.Find(q, list)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.Str)
	}
	return out
}
