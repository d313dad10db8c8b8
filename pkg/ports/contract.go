package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/switchboard/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunCheckpointStoreContract runs a suite of tests to verify that a CheckpointStore implementation
// adheres to the defined interface contract.
func RunCheckpointStoreContract(t *testing.T, store CheckpointStore) {
	ctx := context.Background()
	threadID := "contract-test-thread-" + time.Now().Format("20060102150405.000000000")

	t.Run("Save and Load", func(t *testing.T) {
		conv := domain.NewConversation(
			domain.UserMessage("summarise the latest findings"),
			domain.AssistantMessage("supervisor", "needs research first"),
		)

		err := store.Save(ctx, threadID, conv)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, threadID)
		require.NoError(t, err, "Load should not return error")
		require.Equal(t, conv.Len(), loaded.Len())
		for i := 0; i < conv.Len(); i++ {
			assert.Equal(t, conv.At(i).Role, loaded.At(i).Role)
			assert.Equal(t, conv.At(i).Name, loaded.At(i).Name)
			assert.Equal(t, conv.At(i).Content, loaded.At(i).Content)
		}
	})

	t.Run("Save Extends", func(t *testing.T) {
		prev, err := store.Load(ctx, threadID)
		require.NoError(t, err)

		next := prev.Append(domain.AssistantMessage("researcher", "three relevant papers"))
		require.NoError(t, store.Save(ctx, threadID, next))

		loaded, err := store.Load(ctx, threadID)
		require.NoError(t, err)
		assert.Equal(t, prev.Len()+1, loaded.Len())
		assert.True(t, loaded.HasPrefix(prev), "history must be preserved in order")
		last, _ := loaded.Last()
		assert.Equal(t, "researcher", last.Name)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+threadID)
		assert.ErrorIs(t, err, domain.ErrThreadNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, threadID, domain.NewConversation(domain.UserMessage("x")))
		require.NoError(t, err)

		err = store.Delete(ctx, threadID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, threadID)
		assert.ErrorIs(t, err, domain.ErrThreadNotFound, "Load after Delete should return ErrThreadNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := threadID + "-1"
		id2 := threadID + "-2"
		_ = store.Save(ctx, id1, domain.NewConversation(domain.UserMessage("one")))
		_ = store.Save(ctx, id2, domain.NewConversation(domain.UserMessage("two")))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		threads, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, threads, id1)
		assert.Contains(t, threads, id2)
	})
}
