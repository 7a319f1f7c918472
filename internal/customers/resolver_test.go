package customers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/servdesk-io/servdesk/internal/database"
	"github.com/servdesk-io/servdesk/internal/repository"
)

func newTestResolver(t *testing.T) *Resolver {
	t.Helper()
	db, err := database.OpenForTest()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewResolver(repository.NewCustomerRepository(db))
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "a@ex.com", NormalizeEmail("  A@Ex.com "))
	assert.Equal(t, "", NormalizeEmail("   "))
}

func TestResolveCreates(t *testing.T) {
	r := newTestResolver(t)
	ctx := context.Background()

	c, err := r.Resolve(ctx, "A@Ex.com", "Alice")
	require.NoError(t, err)
	assert.Equal(t, "a@ex.com", c.Email)
	require.NotNil(t, c.Name)
	assert.Equal(t, "Alice", *c.Name)
	assert.NotZero(t, c.ID)
}

func TestResolveReusesExisting(t *testing.T) {
	r := newTestResolver(t)
	ctx := context.Background()

	first, err := r.Resolve(ctx, "a@ex.com", "Alice")
	require.NoError(t, err)
	second, err := r.Resolve(ctx, "A@EX.COM", "Someone Else")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	// An existing name is never overwritten.
	require.NotNil(t, second.Name)
	assert.Equal(t, "Alice", *second.Name)
}

func TestResolveBackfillsName(t *testing.T) {
	r := newTestResolver(t)
	ctx := context.Background()

	anon, err := r.Resolve(ctx, "a@ex.com", "")
	require.NoError(t, err)
	assert.Nil(t, anon.Name)

	named, err := r.Resolve(ctx, "a@ex.com", "Alice")
	require.NoError(t, err)
	require.NotNil(t, named.Name)
	assert.Equal(t, "Alice", *named.Name)
}

func TestResolveRequiresEmail(t *testing.T) {
	r := newTestResolver(t)
	_, err := r.Resolve(context.Background(), "   ", "Alice")
	assert.Error(t, err)
}
