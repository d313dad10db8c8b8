package domain_test

import (
	"testing"

	"github.com/aretw0/switchboard/pkg/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThreadID_Deterministic(t *testing.T) {
	a, err := domain.ThreadID("alice")
	require.NoError(t, err)
	b, err := domain.ThreadID("alice")
	require.NoError(t, err)
	assert.Equal(t, a, b)

	parsed, err := uuid.Parse(a)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(5), parsed.Version())
}

func TestThreadID_Normalization(t *testing.T) {
	base, _ := domain.ThreadID("Alice Smith")
	for _, variant := range []string{"alice smith", "  ALICE   smith ", "alice\tsmith"} {
		id, err := domain.ThreadID(variant)
		require.NoError(t, err)
		assert.Equal(t, base, id, variant)
	}

	other, _ := domain.ThreadID("bob")
	assert.NotEqual(t, base, other)
}

func TestThreadID_Namespace(t *testing.T) {
	a, _ := domain.ThreadIDIn(uuid.NameSpaceOID, "alice")
	b, _ := domain.ThreadIDIn(uuid.NameSpaceURL, "alice")
	assert.NotEqual(t, a, b)
}

func TestThreadID_Empty(t *testing.T) {
	_, err := domain.ThreadID("   ")
	assert.ErrorIs(t, err, domain.ErrEmptyUsername)
}
