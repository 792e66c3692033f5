package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/upb/llm-chat-gateway/models"
	"github.com/upb/llm-chat-gateway/repositories"
	"github.com/upb/llm-chat-gateway/services"
	"github.com/upb/llm-chat-gateway/services/secrets"
	"go.uber.org/zap"
)

// uniqueViolation is the SQLSTATE for a duplicate key.
const uniqueViolation = "23505"

const credentialColumns = `id, provider_id, label, base_url, headers, default_model,
		       secret_provider_id, secret_key, secret_credential_id, created_at, updated_at`

// CredentialRepository implements the repositories.CredentialRepository interface
type CredentialRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewCredentialRepository creates a new credential repository
func NewCredentialRepository(db *DB, logger *zap.Logger) repositories.CredentialRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CredentialRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new credential
func (r *CredentialRepository) Create(ctx context.Context, cred *models.ProviderCredential) error {
	query := `
		INSERT INTO provider_credentials (` + credentialColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	headers, err := encodeHeaders(cred.Headers)
	if err != nil {
		return err
	}
	refProvider, refKey, refCredential := secretRefColumns(cred.SecretRef)

	_, err = r.db.ExecContext(ctx, query,
		cred.ID,
		cred.ProviderID,
		cred.Label,
		nullString(cred.BaseURL),
		headers,
		nullString(cred.DefaultModel),
		refProvider,
		refKey,
		refCredential,
		cred.CreatedAt,
		cred.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return services.ErrCredentialExists.WithDetail("id", cred.ID.String())
		}
		return fmt.Errorf("failed to create credential: %w", err)
	}

	r.logger.Debug("credential created",
		zap.String("id", cred.ID.String()),
		zap.String("provider_id", cred.ProviderID))
	return nil
}

// GetByID retrieves a credential by ID
func (r *CredentialRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ProviderCredential, error) {
	query := `
		SELECT ` + credentialColumns + `
		FROM provider_credentials
		WHERE id = $1
	`

	cred, err := scanCredential(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, services.ErrCredentialNotFound.WithDetail("id", id.String())
		}
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}

	return cred, nil
}

// List retrieves all credentials ordered by label
func (r *CredentialRepository) List(ctx context.Context) ([]*models.ProviderCredential, error) {
	query := `
		SELECT ` + credentialColumns + `
		FROM provider_credentials
		ORDER BY label ASC, created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}
	defer rows.Close()

	creds := []*models.ProviderCredential{}
	for rows.Next() {
		cred, err := scanCredential(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan credential: %w", err)
		}
		creds = append(creds, cred)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating credentials: %w", err)
	}

	return creds, nil
}

// Update updates a credential
func (r *CredentialRepository) Update(ctx context.Context, cred *models.ProviderCredential) error {
	query := `
		UPDATE provider_credentials
		SET provider_id = $2,
		    label = $3,
		    base_url = $4,
		    headers = $5,
		    default_model = $6,
		    secret_provider_id = $7,
		    secret_key = $8,
		    secret_credential_id = $9,
		    updated_at = $10
		WHERE id = $1
	`

	headers, err := encodeHeaders(cred.Headers)
	if err != nil {
		return err
	}
	refProvider, refKey, refCredential := secretRefColumns(cred.SecretRef)

	result, err := r.db.ExecContext(ctx, query,
		cred.ID,
		cred.ProviderID,
		cred.Label,
		nullString(cred.BaseURL),
		headers,
		nullString(cred.DefaultModel),
		refProvider,
		refKey,
		refCredential,
		cred.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update credential: %w", err)
	}

	if err := requireOneRow(result, cred.ID); err != nil {
		return err
	}

	r.logger.Debug("credential updated", zap.String("id", cred.ID.String()))
	return nil
}

// Delete deletes a credential
func (r *CredentialRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM provider_credentials WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}

	if err := requireOneRow(result, id); err != nil {
		return err
	}

	r.logger.Debug("credential deleted", zap.String("id", id.String()))
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCredential(row rowScanner) (*models.ProviderCredential, error) {
	var (
		cred                               models.ProviderCredential
		baseURL, defaultModel              sql.NullString
		refProvider, refKey, refCredential sql.NullString
		headers                            []byte
	)

	err := row.Scan(
		&cred.ID,
		&cred.ProviderID,
		&cred.Label,
		&baseURL,
		&headers,
		&defaultModel,
		&refProvider,
		&refKey,
		&refCredential,
		&cred.CreatedAt,
		&cred.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	cred.BaseURL = baseURL.String
	cred.DefaultModel = defaultModel.String
	if len(headers) > 0 {
		if err := json.Unmarshal(headers, &cred.Headers); err != nil {
			return nil, fmt.Errorf("failed to decode headers: %w", err)
		}
		if len(cred.Headers) == 0 {
			cred.Headers = nil
		}
	}
	if refKey.Valid && refKey.String != "" {
		cred.SecretRef = &secrets.SecretRef{
			ProviderID:   refProvider.String,
			Key:          refKey.String,
			CredentialID: refCredential.String,
		}
	}

	return &cred, nil
}

func encodeHeaders(headers map[string]string) ([]byte, error) {
	if headers == nil {
		headers = map[string]string{}
	}
	data, err := json.Marshal(headers)
	if err != nil {
		return nil, fmt.Errorf("failed to encode headers: %w", err)
	}
	return data, nil
}

func secretRefColumns(ref *secrets.SecretRef) (sql.NullString, sql.NullString, sql.NullString) {
	if ref == nil {
		return sql.NullString{}, sql.NullString{}, sql.NullString{}
	}
	return nullString(ref.ProviderID), nullString(ref.Key), nullString(ref.CredentialID)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func requireOneRow(result sql.Result, id uuid.UUID) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return services.ErrCredentialNotFound.WithDetail("id", id.String())
	}
	return nil
}
