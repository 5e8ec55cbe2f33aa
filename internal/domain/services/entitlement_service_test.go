package services

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"swapbot/internal/config"
	"swapbot/internal/domain/models"
	"swapbot/internal/domain/repositories"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testQuota() config.QuotaConfig {
	return config.QuotaConfig{
		FreeRequests:      10,
		PremiumRequests:   100,
		PremiumTargets:    10,
		PremiumDays:       30,
		CooldownSeconds:   20,
		BurstWindow:       2 * time.Second,
		ReconcileInterval: 24 * time.Hour,
	}
}

func newTestLedger(t *testing.T, clock Clock) (*EntitlementService, *memUserRepo, *memPurchaseRepo) {
	t.Helper()
	users := newMemUserRepo()
	purchases := newMemPurchaseRepo()
	ledger := NewEntitlementService(users, purchases, testQuota(), clock, testLogger())
	return ledger, users, purchases
}

func TestDecrementClampedStopsAtZero(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	ledger, users, _ := newTestLedger(t, clock)

	users.put(&models.User{ID: 1, Tier: models.TierFree, RequestsLeft: 3})

	consumed, remaining, err := ledger.DecrementClamped(ctx, 1, repositories.ResourceRequests, 5)
	require.NoError(t, err)
	require.Equal(t, 3, consumed)
	require.Equal(t, 0, remaining)

	user, err := users.GetUser(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 0, user.RequestsLeft)

	// Decrementing an empty balance consumes nothing and never errors.
	consumed, remaining, err = ledger.DecrementClamped(ctx, 1, repositories.ResourceRequests, 2)
	require.NoError(t, err)
	require.Equal(t, 0, consumed)
	require.Equal(t, 0, remaining)
}

func TestDecrementClampedZeroIsReadOnly(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	ledger, users, _ := newTestLedger(t, clock)

	users.put(&models.User{ID: 1, Tier: models.TierFree, RequestsLeft: 7})

	consumed, remaining, err := ledger.DecrementClamped(ctx, 1, repositories.ResourceRequests, 0)
	require.NoError(t, err)
	require.Equal(t, 0, consumed)
	require.Equal(t, 7, remaining)
}

func TestCheckBalance(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	ledger, users, _ := newTestLedger(t, clock)

	users.put(&models.User{ID: 1, RequestsLeft: 1, TargetsLeft: 0})

	ok, err := ledger.CheckBalance(ctx, 1, repositories.ResourceRequests)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = ledger.CheckBalance(ctx, 1, repositories.ResourceTargets)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRecordPurchaseAppliesImmediateTopUp(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := newFakeClock(now)
	ledger, users, purchases := newTestLedger(t, clock)

	users.put(&models.User{ID: 7, Tier: models.TierFree, RequestsLeft: 2})

	purchase, err := ledger.RecordPurchase(ctx, 7, 0, -1)
	require.NoError(t, err)
	require.Equal(t, 100, purchase.RequestsGrant)
	require.Equal(t, 10, purchase.TargetsGrant)
	require.Equal(t, now.AddDate(0, 0, 30), purchase.ExpiresAt)

	user, err := users.GetUser(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, models.TierPremium, user.Tier)
	require.Equal(t, 102, user.RequestsLeft)
	require.Equal(t, 10, user.TargetsLeft)
	require.NotNil(t, user.PremiumExpiration)

	active, err := purchases.ListActive(ctx, 7, now)
	require.NoError(t, err)
	require.Len(t, active, 1)
}

func TestRecordPurchaseStacks(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := newFakeClock(now)
	ledger, users, purchases := newTestLedger(t, clock)

	users.put(&models.User{ID: 7, Tier: models.TierFree, RequestsLeft: 0})

	_, err := ledger.RecordPurchase(ctx, 7, 100, 0)
	require.NoError(t, err)
	_, err = ledger.RecordPurchase(ctx, 7, 50, 10)
	require.NoError(t, err)

	active, err := purchases.ListActive(ctx, 7, now)
	require.NoError(t, err)
	require.Len(t, active, 2)

	user, err := users.GetUser(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, 150, user.RequestsLeft)
	require.Equal(t, 10, user.TargetsLeft)
}

func TestResetToFree(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := newFakeClock(now)
	ledger, users, purchases := newTestLedger(t, clock)

	users.put(&models.User{ID: 7, Tier: models.TierFree, RequestsLeft: 0})
	_, err := ledger.RecordPurchase(ctx, 7, 100, 10)
	require.NoError(t, err)

	require.NoError(t, ledger.ResetToFree(ctx, 7))

	user, err := users.GetUser(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, models.TierFree, user.Tier)
	require.Nil(t, user.PremiumExpiration)
	require.Equal(t, 10, user.RequestsLeft)
	require.Equal(t, 0, user.TargetsLeft)

	active, err := purchases.ListActive(ctx, 7, now)
	require.NoError(t, err)
	require.Empty(t, active)
}
