package handlers

import (
	"net/http"

	"github.com/upb/llm-chat-gateway/services"
	"github.com/upb/llm-chat-gateway/services/secrets"
	"github.com/upb/llm-chat-gateway/services/transport"
	"github.com/upb/llm-chat-gateway/utils"
	"go.uber.org/zap"
)

// StatusForError maps a service error to its HTTP status.
func StatusForError(err error) int {
	switch {
	case transport.IsCancelled(err):
		return http.StatusRequestTimeout
	case transport.IsTransportError(err):
		return http.StatusBadGateway
	}

	switch services.GetErrorType(err) {
	case services.ErrorTypeConfiguration, services.ErrorTypeValidation:
		return http.StatusBadRequest
	case services.ErrorTypeNotFound:
		return http.StatusNotFound
	case services.ErrorTypeTransport, services.ErrorTypeParse:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// HandleServiceError maps domain and transport errors to HTTP responses.
// Messages are masked before they reach the client or the log.
func HandleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	status := StatusForError(err)
	message := secrets.MaskAllSecrets(err.Error())
	details := services.GetErrorDetails(err)

	if status == http.StatusInternalServerError {
		logger.Error("internal server error",
			zap.String("error", message),
			zap.String("error_type", string(services.GetErrorType(err))))
		message = "An internal error occurred"
		details = nil
	} else {
		logger.Debug("handled service error",
			zap.Int("status", status),
			zap.String("error", message))
	}

	if code := transport.StatusCode(err); code > 0 {
		details = withDetail(details, "upstream_status", code)
	}

	if writeErr := utils.WriteError(w, status, message, details); writeErr != nil {
		logger.Error("failed to write error response", zap.Error(writeErr))
	}
}

// HandleValidationError handles validation errors from request parsing
func HandleValidationError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if utils.IsValidationError(err) {
		fields := utils.GetValidationFields(err)
		details := make(map[string]interface{})
		for k, v := range fields {
			details[k] = v
		}
		if err := utils.WriteBadRequest(w, "Validation failed", details); err != nil {
			logger.Error("failed to write validation error response", zap.Error(err))
		}
		return
	}

	if err := utils.WriteBadRequest(w, err.Error(), nil); err != nil {
		logger.Error("failed to write validation error response", zap.Error(err))
	}
}

func withDetail(details map[string]interface{}, key string, value interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(details)+1)
	for k, v := range details {
		out[k] = v
	}
	out[key] = value
	return out
}
