package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/fwojciec/leadscout"
	"github.com/fwojciec/leadscout/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestDomain(t *testing.T, svc *sqlite.DomainService, name string) *leadscout.Domain {
	t.Helper()
	d := &leadscout.Domain{
		Name:    name,
		Sources: []string{"bing"},
		Signals: leadscout.SoftSignals{Cart: true},
	}
	require.NoError(t, svc.CreateDomain(context.Background(), d))
	return d
}

func TestDomainService_CreateDomain(t *testing.T) {
	t.Parallel()

	t.Run("creates domain in the initial states", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		svc := sqlite.NewDomainService(db)
		ctx := context.Background()

		createTestDomain(t, svc, "gloveshop.com")

		got, err := svc.FindDomainByName(ctx, "gloveshop.com")
		require.NoError(t, err)
		assert.Equal(t, leadscout.VetUnvetted, got.VetState)
		assert.Equal(t, leadscout.CrawlNotStarted, got.CrawlStatus)
		assert.Equal(t, []string{"bing"}, got.Sources)
		assert.True(t, got.Signals.Cart)
		assert.False(t, got.DiscoveredAt.IsZero())
		assert.True(t, got.VettedAt.IsZero())
	})

	t.Run("returns ECONFLICT for an existing domain", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		svc := sqlite.NewDomainService(db)
		createTestDomain(t, svc, "gloveshop.com")

		err := svc.CreateDomain(context.Background(), &leadscout.Domain{Name: "gloveshop.com"})
		assert.Equal(t, leadscout.ECONFLICT, leadscout.ErrorCode(err))
	})

	t.Run("returns EINVALID without a name", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		svc := sqlite.NewDomainService(db)

		err := svc.CreateDomain(context.Background(), &leadscout.Domain{})
		assert.Equal(t, leadscout.EINVALID, leadscout.ErrorCode(err))
	})
}

func TestDomainService_FindDomainByName(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	svc := sqlite.NewDomainService(db)

	_, err := svc.FindDomainByName(context.Background(), "missing.com")
	assert.Equal(t, leadscout.ENOTFOUND, leadscout.ErrorCode(err))
}

func TestDomainService_FindDomains(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	svc := sqlite.NewDomainService(db)
	ctx := context.Background()

	createTestDomain(t, svc, "a.com")
	createTestDomain(t, svc, "b.com")
	createTestDomain(t, svc, "c.com")
	require.NoError(t, svc.SetVetting(ctx, "b.com", leadscout.VetOutcome{
		State: leadscout.VetAccepted, Decision: leadscout.DecisionAccept, Stage: leadscout.StageRule,
	}))

	t.Run("filters by vet state", func(t *testing.T) {
		got, err := svc.FindDomains(ctx, leadscout.DomainFilter{VetState: ptr(leadscout.VetAccepted)})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "b.com", got[0].Name)
	})

	t.Run("paginates", func(t *testing.T) {
		got, err := svc.FindDomains(ctx, leadscout.DomainFilter{Offset: 1})
		require.NoError(t, err)
		assert.Len(t, got, 2)

		got, err = svc.FindDomains(ctx, leadscout.DomainFilter{Limit: 1})
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})
}

func TestDomainService_SetVetting(t *testing.T) {
	t.Parallel()

	t.Run("records an unclear outcome and then a final one", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		svc := sqlite.NewDomainService(db)
		ctx := context.Background()
		createTestDomain(t, svc, "shop.com")

		require.NoError(t, svc.SetVetting(ctx, "shop.com", leadscout.VetOutcome{
			State: leadscout.VetUnclear, Decision: leadscout.DecisionUnclear, Stage: leadscout.StageRule, Score: 0.4,
		}))
		require.NoError(t, svc.SetVetting(ctx, "shop.com", leadscout.VetOutcome{
			State: leadscout.VetAccepted, Decision: leadscout.DecisionAccept, Stage: leadscout.StageModel,
			Score: 0.9, Rationale: "sells gloves",
		}))

		got, err := svc.FindDomainByName(ctx, "shop.com")
		require.NoError(t, err)
		assert.Equal(t, leadscout.VetAccepted, got.VetState)
		assert.Equal(t, leadscout.StageModel, got.VetStage)
		assert.InDelta(t, 0.9, got.VetScore, 1e-9)
		assert.Equal(t, "sells gloves", got.VetRationale)
		assert.False(t, got.VettedAt.IsZero())
	})

	t.Run("refuses to overwrite a final decision", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		svc := sqlite.NewDomainService(db)
		ctx := context.Background()
		createTestDomain(t, svc, "shop.com")

		require.NoError(t, svc.SetVetting(ctx, "shop.com", leadscout.VetOutcome{
			State: leadscout.VetRejected, Decision: leadscout.DecisionReject, Stage: leadscout.StageRule,
		}))
		err := svc.SetVetting(ctx, "shop.com", leadscout.VetOutcome{
			State: leadscout.VetAccepted, Decision: leadscout.DecisionAccept, Stage: leadscout.StageRule,
		})
		assert.Equal(t, leadscout.ECONFLICT, leadscout.ErrorCode(err))
	})

	t.Run("reset allows vetting again", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		svc := sqlite.NewDomainService(db)
		ctx := context.Background()
		createTestDomain(t, svc, "shop.com")

		require.NoError(t, svc.SetVetting(ctx, "shop.com", leadscout.VetOutcome{
			State: leadscout.VetRejected, Decision: leadscout.DecisionReject, Stage: leadscout.StageRule,
			Rationale: "fetch failed",
		}))
		require.NoError(t, svc.ResetVetting(ctx, "shop.com"))

		got, err := svc.FindDomainByName(ctx, "shop.com")
		require.NoError(t, err)
		assert.Equal(t, leadscout.VetUnvetted, got.VetState)
		assert.Empty(t, got.VetRationale)
		assert.True(t, got.VettedAt.IsZero())

		require.NoError(t, svc.SetVetting(ctx, "shop.com", leadscout.VetOutcome{
			State: leadscout.VetAccepted, Decision: leadscout.DecisionAccept, Stage: leadscout.StageRule,
		}))
	})

	t.Run("reset of unknown domain returns ENOTFOUND", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		svc := sqlite.NewDomainService(db)

		err := svc.ResetVetting(context.Background(), "missing.com")
		assert.Equal(t, leadscout.ENOTFOUND, leadscout.ErrorCode(err))
	})
}

func TestDomainService_UpdateDomain(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	svc := sqlite.NewDomainService(db)
	ctx := context.Background()
	createTestDomain(t, svc, "shop.com")

	crawledAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	got, err := svc.UpdateDomain(ctx, "shop.com", leadscout.DomainUpdate{
		CrawlStatus:   ptr(leadscout.CrawlFailed),
		CrawlPages:    ptr(12),
		FailureReason: ptr("too many consecutive failures"),
		Sources:       []string{"bing", "brave"},
		CrawledAt:     &crawledAt,
	})
	require.NoError(t, err)
	assert.Equal(t, leadscout.CrawlFailed, got.CrawlStatus)
	assert.Equal(t, []string{"bing", "brave"}, got.Sources)

	reloaded, err := svc.FindDomainByName(ctx, "shop.com")
	require.NoError(t, err)
	assert.Equal(t, 12, reloaded.CrawlPages)
	assert.Equal(t, "too many consecutive failures", reloaded.FailureReason)
	assert.True(t, crawledAt.Equal(reloaded.CrawledAt))
	assert.Equal(t, leadscout.VetUnvetted, reloaded.VetState, "crawl updates leave vetting alone")
}

func TestHitService(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	svc := sqlite.NewHitService(db)
	ctx := context.Background()

	require.NoError(t, svc.CreateHits(ctx, []*leadscout.DiscoveredHit{
		{Domain: "a.com", URL: "https://a.com/products/x", Query: "goalkeeper gloves buy", Engine: "bing", Rank: 1},
		{Domain: "b.com", URL: "https://b.com/", Query: "goalkeeper gloves buy", Engine: "brave", Rank: 2},
		{Domain: "a.com", URL: "https://a.com/", Query: "goalkeeper gloves shop", Engine: "brave", Rank: 4},
	}))

	got, err := svc.FindHits(ctx, leadscout.HitFilter{Domain: ptr("a.com")})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "https://a.com/products/x", got[0].URL)
	assert.NotEmpty(t, got[0].ID)

	got, err = svc.FindHits(ctx, leadscout.HitFilter{Engine: ptr("brave")})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	err = svc.CreateHits(ctx, []*leadscout.DiscoveredHit{{Domain: "c.com"}})
	assert.Equal(t, leadscout.EINVALID, leadscout.ErrorCode(err))
}
