package yamlfile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/llm-chat-gateway/models"
	"github.com/upb/llm-chat-gateway/services"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "nested", "credentials.yaml"), zap.NewNop())
	require.NoError(t, err)
	return store
}

func TestNewStore_RequiresPath(t *testing.T) {
	_, err := NewStore("  ", nil)
	assert.Error(t, err)
}

func TestStore_EmptyWhenFileMissing(t *testing.T) {
	store := newTestStore(t)

	creds, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, creds)
}

func TestStore_CRUD(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	cred := models.NewProviderCredential("openai", "Work", "api_key")
	cred.Headers = map[string]string{"OpenAI-Project": "proj"}
	require.NoError(t, store.Create(ctx, cred))

	got, err := store.GetByID(ctx, cred.ID)
	require.NoError(t, err)
	assert.Equal(t, cred.ProviderID, got.ProviderID)
	assert.Equal(t, cred.Headers, got.Headers)
	require.NotNil(t, got.SecretRef)
	assert.Equal(t, *cred.SecretRef, *got.SecretRef)

	got.DefaultModel = "gpt-4o-mini"
	require.NoError(t, store.Update(ctx, got))

	again, err := store.GetByID(ctx, cred.ID)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", again.DefaultModel)

	require.NoError(t, store.Delete(ctx, cred.ID))
	_, err = store.GetByID(ctx, cred.ID)
	assert.True(t, errors.Is(err, services.ErrCredentialNotFound))
}

func TestStore_PersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	cred := models.NewProviderCredential("groq", "Fast", "api_key")
	require.NoError(t, store.Create(ctx, cred))

	reopened, err := NewStore(store.Path(), nil)
	require.NoError(t, err)
	got, err := reopened.GetByID(ctx, cred.ID)
	require.NoError(t, err)
	assert.Equal(t, "Fast", got.Label)
}

func TestStore_NeverWritesSecretValues(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	cred := models.NewProviderCredential("openai", "Work", "api_key")
	require.NoError(t, store.Create(ctx, cred))

	data, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Contains(t, string(data), "secretRef:")
	assert.Contains(t, string(data), "key: api_key")
	assert.NotContains(t, string(data), "sk-")
}

func TestStore_ListOrderedByLabel(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	for _, label := range []string{"charlie", "alpha", "bravo"} {
		require.NoError(t, store.Create(ctx, models.NewProviderCredential("openai", label, "")))
	}

	creds, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, creds, 3)
	assert.Equal(t, "alpha", creds[0].Label)
	assert.Equal(t, "bravo", creds[1].Label)
	assert.Equal(t, "charlie", creds[2].Label)
}

func TestStore_Errors(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	cred := models.NewProviderCredential("openai", "Work", "")
	require.NoError(t, store.Create(ctx, cred))

	t.Run("duplicate create", func(t *testing.T) {
		err := store.Create(ctx, cred)
		assert.True(t, errors.Is(err, services.ErrCredentialExists))
	})

	t.Run("update missing", func(t *testing.T) {
		err := store.Update(ctx, models.NewProviderCredential("openai", "Ghost", ""))
		assert.True(t, services.IsNotFoundError(err))
	})

	t.Run("delete missing", func(t *testing.T) {
		err := store.Delete(ctx, uuid.New())
		assert.True(t, services.IsNotFoundError(err))
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := store.List(cctx)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("corrupt file", func(t *testing.T) {
		require.NoError(t, os.WriteFile(store.Path(), []byte("credentials: [oops"), 0o600))
		_, err := store.List(ctx)
		assert.Error(t, err)
	})
}

func TestStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	cred := models.NewProviderCredential("openai", "Work", "")
	cred.Headers = map[string]string{"X-Title": "a"}
	require.NoError(t, store.Create(ctx, cred))

	got, err := store.GetByID(ctx, cred.ID)
	require.NoError(t, err)
	got.Headers["X-Title"] = "mutated"

	again, err := store.GetByID(ctx, cred.ID)
	require.NoError(t, err)
	assert.Equal(t, "a", again.Headers["X-Title"])
}
