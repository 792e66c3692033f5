// Package yamlfile stores provider credentials in a single YAML document.
// Only secret references are written; secret values never touch the file.
package yamlfile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/upb/llm-chat-gateway/models"
	"github.com/upb/llm-chat-gateway/repositories"
	"github.com/upb/llm-chat-gateway/services"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type document struct {
	Credentials []*models.ProviderCredential `yaml:"credentials"`
}

// Store is a file-backed repositories.CredentialRepository. The whole file is
// read on every call and replaced atomically on every write.
type Store struct {
	path   string
	mu     sync.Mutex
	logger *zap.Logger
}

var _ repositories.CredentialRepository = (*Store)(nil)

// NewStore creates a store at path. The file is created on first write.
func NewStore(path string, logger *zap.Logger) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("credentials file path must be provided")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create credentials directory: %w", err)
		}
	}
	return &Store{path: path, logger: logger}, nil
}

// Path returns the backing file.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) Create(ctx context.Context, cred *models.ProviderCredential) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}
	if index(doc, cred.ID) >= 0 {
		return services.ErrCredentialExists.WithDetail("id", cred.ID.String())
	}
	doc.Credentials = append(doc.Credentials, clone(cred))
	if err := s.write(doc); err != nil {
		return err
	}

	s.logger.Debug("credential created",
		zap.String("id", cred.ID.String()),
		zap.String("provider_id", cred.ProviderID))
	return nil
}

func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (*models.ProviderCredential, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	i := index(doc, id)
	if i < 0 {
		return nil, services.ErrCredentialNotFound.WithDetail("id", id.String())
	}
	return clone(doc.Credentials[i]), nil
}

// List returns all credentials ordered by label.
func (s *Store) List(ctx context.Context) ([]*models.ProviderCredential, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	out := make([]*models.ProviderCredential, 0, len(doc.Credentials))
	for _, c := range doc.Credentials {
		out = append(out, clone(c))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Label < out[j].Label
	})
	return out, nil
}

func (s *Store) Update(ctx context.Context, cred *models.ProviderCredential) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}
	i := index(doc, cred.ID)
	if i < 0 {
		return services.ErrCredentialNotFound.WithDetail("id", cred.ID.String())
	}
	doc.Credentials[i] = clone(cred)
	if err := s.write(doc); err != nil {
		return err
	}

	s.logger.Debug("credential updated", zap.String("id", cred.ID.String()))
	return nil
}

func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}
	i := index(doc, id)
	if i < 0 {
		return services.ErrCredentialNotFound.WithDetail("id", id.String())
	}
	doc.Credentials = append(doc.Credentials[:i], doc.Credentials[i+1:]...)
	if err := s.write(doc); err != nil {
		return err
	}

	s.logger.Debug("credential deleted", zap.String("id", id.String()))
	return nil
}

func (s *Store) read() (*document, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &document{}, nil
		}
		return nil, fmt.Errorf("read credentials file: %w", err)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode credentials file: %w", err)
	}
	return &doc, nil
}

func (s *Store) write(doc *document) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), "credentials-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp credentials file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write credentials: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close credentials temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("persist credentials: %w", err)
	}
	return nil
}

func index(doc *document, id uuid.UUID) int {
	for i, c := range doc.Credentials {
		if c != nil && c.ID == id {
			return i
		}
	}
	return -1
}

func clone(c *models.ProviderCredential) *models.ProviderCredential {
	out := *c
	if c.Headers != nil {
		out.Headers = make(map[string]string, len(c.Headers))
		for k, v := range c.Headers {
			out.Headers[k] = v
		}
	}
	if c.SecretRef != nil {
		ref := *c.SecretRef
		out.SecretRef = &ref
	}
	return &out
}
