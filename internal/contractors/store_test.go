package contractors

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadintake/internal/database/pgtest"
)

func exerciseStore(t *testing.T, s Store) {
	ctx := context.Background()
	name := "Acme Remodeling"

	c, err := s.Create(ctx, &name, "owner@acme.test", "$2a$10$hash")
	require.NoError(t, err)
	assert.NotZero(t, c.ID)
	assert.False(t, c.CreatedAt.IsZero())

	_, err = s.Create(ctx, nil, "owner@acme.test", "$2a$10$other")
	assert.ErrorIs(t, err, ErrDuplicateEmail)

	anon, err := s.Create(ctx, nil, "solo@acme.test", "$2a$10$solo")
	require.NoError(t, err)
	assert.NotEqual(t, c.ID, anon.ID)

	byEmail, err := s.GetByEmail(ctx, "owner@acme.test")
	require.NoError(t, err)
	assert.Equal(t, c.ID, byEmail.ID)
	require.NotNil(t, byEmail.Name)
	assert.Equal(t, name, *byEmail.Name)
	assert.Equal(t, "$2a$10$hash", byEmail.PasswordHash)

	byID, err := s.GetByID(ctx, anon.ID)
	require.NoError(t, err)
	assert.Equal(t, "solo@acme.test", byID.Email)
	assert.Nil(t, byID.Name)

	_, err = s.GetByEmail(ctx, "nobody@acme.test")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetByID(ctx, 9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInMemoryStore(t *testing.T) {
	exerciseStore(t, NewInMemoryStore())
}

func TestPostgresStore(t *testing.T) {
	exerciseStore(t, NewPostgresStore(pgtest.Start(t)))
}
