package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/upb/llm-chat-gateway/services/secrets"
)

// ProviderCredential is a named, provider-scoped configuration bundle. It
// never holds a plaintext secret, only a reference into the vault.
type ProviderCredential struct {
	ID           uuid.UUID          `json:"id" db:"id" yaml:"id"`
	ProviderID   string             `json:"providerId" db:"provider_id" yaml:"providerId" validate:"required,max=64"`
	Label        string             `json:"label" db:"label" yaml:"label" validate:"required,max=120"`
	BaseURL      string             `json:"baseUrl,omitempty" db:"base_url" yaml:"baseUrl,omitempty" validate:"omitempty,url"`
	Headers      map[string]string  `json:"headers,omitempty" db:"headers" yaml:"headers,omitempty"`
	DefaultModel string             `json:"defaultModel,omitempty" db:"default_model" yaml:"defaultModel,omitempty" validate:"max=200"`
	SecretRef    *secrets.SecretRef `json:"secretRef,omitempty" db:"-" yaml:"secretRef,omitempty"`
	CreatedAt    time.Time          `json:"createdAt" db:"created_at" yaml:"createdAt"`
	UpdatedAt    time.Time          `json:"updatedAt" db:"updated_at" yaml:"updatedAt"`
}

// TableName returns the table name for the ProviderCredential model
func (ProviderCredential) TableName() string {
	return "provider_credentials"
}

// NewProviderCredential creates a new ProviderCredential instance. When a
// secret key is given, the secret reference points at this credential.
func NewProviderCredential(providerID, label, secretKey string) *ProviderCredential {
	now := time.Now()
	c := &ProviderCredential{
		ID:         uuid.New(),
		ProviderID: providerID,
		Label:      label,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if secretKey != "" {
		c.SecretRef = &secrets.SecretRef{
			ProviderID:   providerID,
			Key:          secretKey,
			CredentialID: c.ID.String(),
		}
	}
	return c
}

// CacheKey identifies the credential in the model-list cache.
func (c *ProviderCredential) CacheKey() string {
	return c.ID.String()
}

// Touch updates the modification timestamp.
func (c *ProviderCredential) Touch() {
	c.UpdatedAt = time.Now()
}
