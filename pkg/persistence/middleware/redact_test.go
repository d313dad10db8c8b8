package middleware_test

import (
	"context"
	"testing"

	"github.com/aretw0/switchboard/pkg/domain"
	"github.com/aretw0/switchboard/pkg/persistence/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedactMiddleware_Masking(t *testing.T) {
	underlyingStore := NewMockStore()
	secureStore := middleware.NewRedactMiddleware([]string{middleware.EmailPattern, middleware.APIKeyPattern})(underlyingStore)

	ctx := context.Background()
	conv := domain.NewConversation(
		domain.UserMessage("mail results to jdoe@example.org, key sk-abcdefghijklmnop1234"),
		domain.AssistantMessage("researcher", "public answer"),
	)

	require.NoError(t, secureStore.Save(ctx, "pii-thread", conv))

	first, _ := conv.First()
	assert.Contains(t, first.Content, "jdoe@example.org", "caller's conversation is untouched")

	stored, err := underlyingStore.Load(ctx, "pii-thread")
	require.NoError(t, err)
	require.Equal(t, 2, stored.Len())
	assert.Equal(t, "mail results to ***, key ***", stored.At(0).Content)
	assert.Equal(t, "public answer", stored.At(1).Content)
	assert.Equal(t, "researcher", stored.At(1).Name)
}

func TestChain_RedactsBeforeEncrypting(t *testing.T) {
	underlyingStore := NewMockStore()
	store := middleware.Chain(underlyingStore,
		middleware.NewRedactMiddleware([]string{middleware.EmailPattern}),
		middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)}),
	)

	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "t1", domain.NewConversation(domain.UserMessage("reach me at a@b.io"))))

	stored, err := underlyingStore.Load(ctx, "t1")
	require.NoError(t, err)
	sealed, _ := stored.First()
	assert.Equal(t, middleware.EnvelopeName, sealed.Name)

	loaded, err := store.Load(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "reach me at ***", loaded.At(0).Content)

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"t1"}, ids)
}
