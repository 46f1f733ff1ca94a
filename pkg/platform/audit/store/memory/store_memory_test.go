package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "memberverify/pkg/platform/audit"
)

func TestInMemoryStore_ListRecentNewestFirst(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()
	base := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	for i := range 3 {
		entry := audit.NewEntry("admin", audit.ActionSoftDeleteMember, audit.TargetMember, "m", nil, base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, store.Append(ctx, entry))
	}

	got, err := store.ListRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, base.Add(2*time.Minute), got[0].CreatedAt)
	assert.Equal(t, base.Add(time.Minute), got[1].CreatedAt)
}

func TestInMemoryStore_ListRecentClampsLimit(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()
	now := time.Now()
	for range audit.MaxListLimit + 10 {
		require.NoError(t, store.Append(ctx, audit.NewEntry("admin", audit.ActionViewBadge, audit.TargetMember, "m", nil, now)))
	}

	got, err := store.ListRecent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, got, audit.MaxListLimit)

	store.Clear()
	got, err = store.ListRecent(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}
