// exception/store_test.go
package exception_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gk_errors "github.com/Milip-bit/AWS-CICD-Secure-Cloud-Lab/errors"
	"github.com/Milip-bit/AWS-CICD-Secure-Cloud-Lab/exception"
	"github.com/Milip-bit/AWS-CICD-Secure-Cloud-Lab/model"
)

func openStore(t *testing.T) *exception.Store {
	t.Helper()
	store, err := exception.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestCreateFillsIDAndCreatedAt(t *testing.T) {
	store := openStore(t)

	exc, err := store.Create(context.Background(), model.Exception{
		FindingCode:   "hardcoded-secret",
		Environment:   "dev",
		Justification: "test fixture credential, rotated weekly",
		CreatedBy:     "alex",
	})

	require.NoError(t, err)
	assert.NotEmpty(t, exc.ID)
	assert.False(t, exc.CreatedAt.IsZero())
}

func TestCreateRejectsMissingFields(t *testing.T) {
	store := openStore(t)

	_, err := store.Create(context.Background(), model.Exception{FindingCode: "x"})
	assert.ErrorIs(t, err, gk_errors.ErrInvalidExceptionData)

	_, err = store.Create(context.Background(), model.Exception{Justification: "because"})
	assert.ErrorIs(t, err, gk_errors.ErrInvalidExceptionData)
}

func TestRoundTripPreservesFields(t *testing.T) {
	store := openStore(t)
	expires := time.Date(2026, 9, 30, 12, 0, 0, 0, time.UTC)

	created, err := store.Create(context.Background(), model.Exception{
		FindingCode:   "aws-access-key",
		Environment:   "prod",
		Fingerprint:   "f00dcafe",
		Justification: "scanner false positive on example key",
		ExpiresAt:     expires,
		CreatedBy:     "sam",
	})
	require.NoError(t, err)

	got, err := store.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "aws-access-key", got.FindingCode)
	assert.Equal(t, "prod", got.Environment)
	assert.Equal(t, "f00dcafe", got.Fingerprint)
	assert.True(t, got.ExpiresAt.Equal(expires))
	assert.Equal(t, "sam", got.CreatedBy)
}

func TestZeroExpiryRoundTripsAsNever(t *testing.T) {
	store := openStore(t)

	created, err := store.Create(context.Background(), model.Exception{
		FindingCode:   "unused-variable",
		Justification: "kept for the next refactor",
	})
	require.NoError(t, err)

	got, err := store.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.True(t, got.ExpiresAt.IsZero())
	assert.False(t, got.Expired(time.Date(2099, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestListReturnsExpiredExceptionsToo(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	_, err := store.Create(ctx, model.Exception{
		FindingCode:   "a",
		Justification: "live",
		CreatedAt:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	_, err = store.Create(ctx, model.Exception{
		FindingCode:   "b",
		Justification: "long expired",
		ExpiresAt:     time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		CreatedAt:     time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	all, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].FindingCode)
	assert.Equal(t, "b", all[1].FindingCode)
}

func TestGetUnknownIDIsNotFound(t *testing.T) {
	store := openStore(t)
	_, err := store.Get(context.Background(), "no-such-id")
	assert.ErrorIs(t, err, gk_errors.ErrExceptionNotFound)
}

func TestDeleteRevokes(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, model.Exception{
		FindingCode:   "hardcoded-secret",
		Justification: "temporary",
	})
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, created.ID))

	_, err = store.Get(ctx, created.ID)
	assert.ErrorIs(t, err, gk_errors.ErrExceptionNotFound)
	assert.ErrorIs(t, store.Delete(ctx, created.ID), gk_errors.ErrExceptionNotFound)
}
