package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/upb/llm-chat-gateway/models"
)

// CredentialRepository handles provider credential persistence. Only the
// secret reference is stored, never the secret itself.
type CredentialRepository interface {
	// Create stores a new credential
	Create(ctx context.Context, cred *models.ProviderCredential) error

	// GetByID retrieves a credential by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.ProviderCredential, error)

	// List retrieves all credentials ordered by label
	List(ctx context.Context) ([]*models.ProviderCredential, error)

	// Update replaces a stored credential
	Update(ctx context.Context, cred *models.ProviderCredential) error

	// Delete removes a credential
	Delete(ctx context.Context, id uuid.UUID) error
}

// Repositories holds all repository instances
type Repositories struct {
	Credentials CredentialRepository
}
