package auction_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	askrepo "github.com/Ramsey-B/briar/internal/repositories/ask"
	bidrepo "github.com/Ramsey-B/briar/internal/repositories/bid"
	revealrepo "github.com/Ramsey-B/briar/internal/repositories/contactreveal"
	profilerepo "github.com/Ramsey-B/briar/internal/repositories/profile"
	relrepo "github.com/Ramsey-B/briar/internal/repositories/relationship"
	"github.com/Ramsey-B/briar/pkg/auction"
	"github.com/Ramsey-B/briar/pkg/clock"
	"github.com/Ramsey-B/briar/pkg/database"
	"github.com/Ramsey-B/briar/pkg/events"
	"github.com/Ramsey-B/briar/pkg/models"
	briarredis "github.com/Ramsey-B/briar/pkg/redis"
	"github.com/Ramsey-B/briar/pkg/relationship"
)

func getTestLogger() ectologger.Logger {
	zapLogger, _ := zap.NewDevelopment()
	return zapadapter.NewZapEctoLogger(zapLogger, nil)
}

func getTestDB(t *testing.T) database.DB {
	// Use environment variables or defaults for test DB
	dbHost := os.Getenv("DB_HOST")
	if dbHost == "" {
		dbHost = "localhost"
	}
	dbUser := os.Getenv("DB_USER_NAME")
	if dbUser == "" {
		dbUser = "user"
	}
	dbPass := os.Getenv("DB_PASSWORD")
	if dbPass == "" {
		dbPass = "password"
	}
	dbName := os.Getenv("DB_NAME")
	if dbName == "" {
		dbName = "briar"
	}

	dsn := "host=" + dbHost + " user=" + dbUser + " password=" + dbPass + " dbname=" + dbName + " sslmode=disable"
	db, err := sqlx.Connect("postgres", dsn)
	require.NoError(t, err, "Failed to connect to test database")

	return database.NewDatabaseInstance(db, getTestLogger())
}

func getTestRedis(t *testing.T) *briarredis.Client {
	redisHost := os.Getenv("REDIS_HOST")
	if redisHost == "" {
		redisHost = "localhost"
	}

	client, err := briarredis.NewClient(briarredis.Config{
		Host: redisHost,
		Port: 6379,
	}, getTestLogger())
	require.NoError(t, err, "Failed to connect to test Redis")

	return client
}

type testEngines struct {
	db         database.DB
	askRepo    *askrepo.Repository
	bidRepo    *bidrepo.Repository
	relRepo    *relrepo.Repository
	revealRepo *revealrepo.Repository
	clk        *clock.Fake
	hub        *events.Hub
	ledger     *auction.Ledger
	acceptance *auction.Acceptance
}

func newTestEngines(t *testing.T, now time.Time, cache *briarredis.Cache) *testEngines {
	logger := getTestLogger()
	db := getTestDB(t)

	asks := askrepo.NewRepository(db, logger)
	bids := bidrepo.NewRepository(db, logger)
	rels := relrepo.NewRepository(db, logger)
	reveals := revealrepo.NewRepository(db, logger)
	profiles := profilerepo.NewRepository(db, logger)

	clk := clock.NewFake(now)
	hub := events.NewHub()
	emitter := events.NewEmitter(nil, hub, "test", logger)
	former := relationship.NewFormer(rels, logger)

	return &testEngines{
		db:         db,
		askRepo:    asks,
		bidRepo:    bids,
		relRepo:    rels,
		revealRepo: reveals,
		clk:        clk,
		hub:        hub,
		ledger:     auction.NewLedger(asks, bids, nil, cache, auction.NewExtender(), clk, emitter, logger, auction.LedgerConfig{}),
		acceptance: auction.NewAcceptance(asks, bids, rels, reveals, profiles, former, nil, cache, emitter, logger),
	}
}

func (e *testEngines) insertProfile(t *testing.T, userID, name, email, phone string) {
	t.Helper()
	_, err := e.db.ExecContext(context.Background(),
		"INSERT INTO profiles (user_id, name, email, phone) VALUES ($1, $2, $3, $4)",
		userID, name, email, phone)
	require.NoError(t, err)
}

func TestAuctionLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	base := time.Date(2025, 5, 20, 12, 0, 0, 0, time.UTC)
	endsAt := base.Add(time.Hour)
	singleDate := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	e := newTestEngines(t, base, nil)
	ctx := context.Background()

	ownerID := uuid.New().String()
	bidderA := uuid.New().String()
	bidderB := uuid.New().String()
	e.insertProfile(t, bidderB, "John Doe", "john@example.com", "555-0142")

	lot, err := e.askRepo.Create(ctx, &models.Ask{
		OwnerID:    ownerID,
		OwnerName:  "Mary Stone",
		CostType:   models.CostTypePerUnit,
		CostAmount: 100,
		SingleDate: &singleDate,
		Details:    "Deliver 40 units",
		EndsAt:     &endsAt,
	})
	require.NoError(t, err)
	assert.Equal(t, models.AskStatusActive, lot.Status)

	// First bid lands well before the closing window: no extension.
	bidFromA, err := e.ledger.Place(ctx, lot.ID, bidderA, &models.PlaceBidRequest{
		BidderName: "Ann Price",
		Amount:     90,
	})
	require.NoError(t, err)
	assert.Equal(t, models.BidStatusPending, bidFromA.Status)

	fetched, err := e.askRepo.Get(ctx, lot.ID)
	require.NoError(t, err)
	assert.True(t, fetched.EndsAt.Equal(endsAt), "early bid must not move the window")

	// Second bid lands with 45s left: the window moves 60s past its
	// previous end, not 60s past the bid.
	e.clk.Set(endsAt.Add(-45 * time.Second))
	bidFromB, err := e.ledger.Place(ctx, lot.ID, bidderB, &models.PlaceBidRequest{
		BidderName: "John Doe",
		Amount:     80,
		Pitch:      "Can start immediately",
	})
	require.NoError(t, err)

	fetched, err = e.askRepo.Get(ctx, lot.ID)
	require.NoError(t, err)
	assert.True(t, fetched.EndsAt.Equal(endsAt.Add(60*time.Second)), "late bid must extend from the previous end")

	stats, err := e.ledger.Statistics(ctx, lot.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Count)
	assert.Equal(t, 80.0, stats.Lowest)
	assert.Equal(t, 85.0, stats.Average)

	// Owner accepts the lower bid.
	rel, err := e.acceptance.Accept(ctx, lot.ID, bidFromB.ID, ownerID)
	require.NoError(t, err)
	assert.Equal(t, models.RelationshipStatusActive, rel.Status)
	assert.Equal(t, ownerID, rel.RequesterID)
	assert.Equal(t, bidderB, rel.ProviderID)
	assert.Equal(t, "JDMS0001", rel.Code)
	assert.Equal(t, models.CostTypePerUnit, rel.PaymentTerms.Data.CostType)
	assert.Equal(t, 80.0, rel.PaymentTerms.Data.Amount)
	require.NotNil(t, rel.ExpiresAt)
	assert.True(t, rel.ExpiresAt.Equal(singleDate), "relationship expiry follows the scheduled date")

	fetched, err = e.askRepo.Get(ctx, lot.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AskStatusCompleted, fetched.Status)

	views, err := e.ledger.ListBids(ctx, lot.ID)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, models.BidStatusRejected, views[0].Status)
	assert.Equal(t, models.BidStatusAccepted, views[1].Status)

	// The winner's contact is frozen for the requester.
	reveal, err := e.revealRepo.GetByAsk(ctx, lot.ID)
	require.NoError(t, err)
	assert.Equal(t, ownerID, reveal.RequesterID)
	assert.Equal(t, bidderB, reveal.ProviderID)
	assert.Equal(t, "John Doe", reveal.Contact.Data.Name)
	assert.Equal(t, "john@example.com", reveal.Contact.Data.Email)

	// A retried acceptance is a no-op conflict, not a second relationship.
	_, err = e.acceptance.Accept(ctx, lot.ID, bidFromB.ID, ownerID)
	require.Error(t, err)
	assert.True(t, auction.IsAlreadyResolved(err))

	rels, err := e.relRepo.ListByParty(ctx, ownerID, 10)
	require.NoError(t, err)
	assert.Len(t, rels, 1)

	// Bidding on a resolved ask is rejected.
	_, err = e.ledger.Place(ctx, lot.ID, bidderA, &models.PlaceBidRequest{
		BidderName: "Ann Price",
		Amount:     70,
	})
	require.Error(t, err)
	assert.True(t, auction.IsAuctionClosed(err))

	// Archival is owner-only and one-way.
	_, err = e.acceptance.Archive(ctx, lot.ID, bidderA)
	require.Error(t, err)
	assert.True(t, auction.IsNotOwner(err))

	archived, err := e.acceptance.Archive(ctx, lot.ID, ownerID)
	require.NoError(t, err)
	assert.NotNil(t, archived.ArchivedAt)
}

func TestAuctionLifecycle_LazyExpiry(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	base := time.Date(2025, 5, 20, 12, 0, 0, 0, time.UTC)
	endsAt := base.Add(time.Hour)

	e := newTestEngines(t, base, nil)
	ctx := context.Background()

	term := "spring season"
	lot, err := e.askRepo.Create(ctx, &models.Ask{
		OwnerID:    uuid.New().String(),
		OwnerName:  "Mary Stone",
		CostType:   models.CostTypeHourly,
		CostAmount: 50,
		NamedTerm:  &term,
		EndsAt:     &endsAt,
	})
	require.NoError(t, err)

	// A bid landing after the window lapsed flips the ask on the spot
	// instead of waiting for the sweep.
	e.clk.Set(endsAt.Add(time.Second))
	_, err = e.ledger.Place(ctx, lot.ID, uuid.New().String(), &models.PlaceBidRequest{
		BidderName: "Ann Price",
		Amount:     40,
	})
	require.Error(t, err)
	assert.True(t, auction.IsAuctionClosed(err))

	fetched, err := e.askRepo.Get(ctx, lot.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AskStatusExpired, fetched.Status)
}

func TestAuctionLifecycle_MissingProfileSkipsReveal(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	base := time.Date(2025, 5, 20, 12, 0, 0, 0, time.UTC)

	e := newTestEngines(t, base, nil)
	ctx := context.Background()

	ownerID := uuid.New().String()
	bidderID := uuid.New().String()

	singleDate := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	lot, err := e.askRepo.Create(ctx, &models.Ask{
		OwnerID:    ownerID,
		OwnerName:  "Mary Stone",
		CostType:   models.CostTypeFlat,
		CostAmount: 500,
		SingleDate: &singleDate,
	})
	require.NoError(t, err)

	placed, err := e.ledger.Place(ctx, lot.ID, bidderID, &models.PlaceBidRequest{
		BidderName: "Ann Price",
		Amount:     450,
	})
	require.NoError(t, err)

	watch := e.hub.Subscribe(lot.ID)
	defer e.hub.Unsubscribe(lot.ID, watch)

	// No profile row for the bidder: acceptance still lands, just without
	// a contact snapshot.
	rel, err := e.acceptance.Accept(ctx, lot.ID, placed.ID, ownerID)
	require.NoError(t, err)
	assert.Equal(t, models.RelationshipStatusActive, rel.Status)
	require.NotNil(t, rel.ExpiresAt)
	assert.True(t, rel.ExpiresAt.Equal(singleDate))

	_, err = e.revealRepo.GetByAsk(ctx, lot.ID)
	require.Error(t, err)

	// The acceptance events still fire, but nothing announces a reveal
	// that never happened.
	seen := map[string]bool{}
drain:
	for {
		select {
		case ev := <-watch:
			seen[ev.EventType] = true
		default:
			break drain
		}
	}
	assert.True(t, seen[string(events.EventTypeBidAccepted)])
	assert.False(t, seen[string(events.EventTypeContactRevealed)])
}

func TestAuctionLifecycle_StatisticsRefreshAfterAcceptance(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	base := time.Date(2025, 5, 20, 12, 0, 0, 0, time.UTC)
	singleDate := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	client := getTestRedis(t)
	defer client.Close()
	cache := briarredis.NewCache(client, "briar-test:"+uuid.New().String()+":", time.Minute)

	e := newTestEngines(t, base, cache)
	ctx := context.Background()

	ownerID := uuid.New().String()
	lot, err := e.askRepo.Create(ctx, &models.Ask{
		OwnerID:    ownerID,
		OwnerName:  "Mary Stone",
		CostType:   models.CostTypeFlat,
		CostAmount: 500,
		SingleDate: &singleDate,
	})
	require.NoError(t, err)

	_, err = e.ledger.Place(ctx, lot.ID, uuid.New().String(), &models.PlaceBidRequest{
		BidderName: "Ann Price",
		Amount:     450,
	})
	require.NoError(t, err)
	winner, err := e.ledger.Place(ctx, lot.ID, uuid.New().String(), &models.PlaceBidRequest{
		BidderName: "John Doe",
		Amount:     400,
	})
	require.NoError(t, err)

	// Prime the cache.
	stats, err := e.ledger.Statistics(ctx, lot.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Count)
	assert.Equal(t, 400.0, stats.Lowest)

	_, err = e.acceptance.Accept(ctx, lot.ID, winner.ID, ownerID)
	require.NoError(t, err)

	// Acceptance emptied the pending set; the cached counts must not
	// outlive it.
	stats, err = e.ledger.Statistics(ctx, lot.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Count)
}

func TestAuctionLifecycle_ConcurrentAcceptance(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	base := time.Date(2025, 5, 20, 12, 0, 0, 0, time.UTC)
	singleDate := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	e := newTestEngines(t, base, nil)
	ctx := context.Background()

	ownerID := uuid.New().String()
	lot, err := e.askRepo.Create(ctx, &models.Ask{
		OwnerID:    ownerID,
		OwnerName:  "Mary Stone",
		CostType:   models.CostTypeFlat,
		CostAmount: 500,
		SingleDate: &singleDate,
	})
	require.NoError(t, err)

	first, err := e.ledger.Place(ctx, lot.ID, uuid.New().String(), &models.PlaceBidRequest{
		BidderName: "Ann Price",
		Amount:     450,
	})
	require.NoError(t, err)
	second, err := e.ledger.Place(ctx, lot.ID, uuid.New().String(), &models.PlaceBidRequest{
		BidderName: "John Doe",
		Amount:     400,
	})
	require.NoError(t, err)

	// Both rival bids race for acceptance. The row lock serializes them:
	// exactly one wins, the other sees the resolved ask.
	results := make([]error, 2)
	var wg sync.WaitGroup
	wg.Add(2)
	for i, bidID := range []string{first.ID, second.ID} {
		go func(i int, bidID string) {
			defer wg.Done()
			_, results[i] = e.acceptance.Accept(ctx, lot.ID, bidID, ownerID)
		}(i, bidID)
	}
	wg.Wait()

	var won, conflicted int
	for _, acceptErr := range results {
		if acceptErr == nil {
			won++
			continue
		}
		assert.True(t, auction.IsAlreadyResolved(acceptErr))
		conflicted++
	}
	assert.Equal(t, 1, won)
	assert.Equal(t, 1, conflicted)

	rels, err := e.relRepo.ListByParty(ctx, ownerID, 10)
	require.NoError(t, err)
	assert.Len(t, rels, 1)

	views, err := e.ledger.ListBids(ctx, lot.ID)
	require.NoError(t, err)
	accepted := 0
	for _, view := range views {
		if view.Status == models.BidStatusAccepted {
			accepted++
		}
	}
	assert.Equal(t, 1, accepted)
}

func TestAuctionLifecycle_PlacementRacingAcceptance(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	base := time.Date(2025, 5, 20, 12, 0, 0, 0, time.UTC)
	singleDate := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	e := newTestEngines(t, base, nil)
	ctx := context.Background()

	ownerID := uuid.New().String()
	lot, err := e.askRepo.Create(ctx, &models.Ask{
		OwnerID:    ownerID,
		OwnerName:  "Mary Stone",
		CostType:   models.CostTypeFlat,
		CostAmount: 500,
		SingleDate: &singleDate,
	})
	require.NoError(t, err)

	winner, err := e.ledger.Place(ctx, lot.ID, uuid.New().String(), &models.PlaceBidRequest{
		BidderName: "Ann Price",
		Amount:     450,
	})
	require.NoError(t, err)

	// A new bid races the acceptance. Either it lands first and gets swept
	// into the rejections, or it finds the auction already closed.
	var (
		wg        sync.WaitGroup
		placed    *models.Bid
		placeErr  error
		acceptErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		placed, placeErr = e.ledger.Place(ctx, lot.ID, uuid.New().String(), &models.PlaceBidRequest{
			BidderName: "John Doe",
			Amount:     400,
		})
	}()
	go func() {
		defer wg.Done()
		_, acceptErr = e.acceptance.Accept(ctx, lot.ID, winner.ID, ownerID)
	}()
	wg.Wait()

	require.NoError(t, acceptErr)
	if placeErr != nil {
		assert.True(t, auction.IsAuctionClosed(placeErr))
	} else {
		late, err := e.bidRepo.Get(ctx, placed.ID)
		require.NoError(t, err)
		assert.Equal(t, models.BidStatusRejected, late.Status)
	}

	rels, err := e.relRepo.ListByParty(ctx, ownerID, 10)
	require.NoError(t, err)
	assert.Len(t, rels, 1)
}

func TestAuctionLifecycle_UnknownAsk(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	base := time.Date(2025, 5, 20, 12, 0, 0, 0, time.UTC)
	e := newTestEngines(t, base, nil)
	ctx := context.Background()

	missing := uuid.New().String()
	actor := uuid.New().String()

	_, err := e.ledger.Place(ctx, missing, actor, &models.PlaceBidRequest{
		BidderName: "Ann Price",
		Amount:     10,
	})
	assert.Equal(t, auction.CodeAskNotFound, auction.ErrorCode(err))

	_, err = e.ledger.ActiveBid(ctx, missing, actor)
	assert.Equal(t, auction.CodeAskNotFound, auction.ErrorCode(err))

	_, err = e.ledger.ListBids(ctx, missing)
	assert.Equal(t, auction.CodeAskNotFound, auction.ErrorCode(err))

	_, err = e.ledger.Statistics(ctx, missing)
	assert.Equal(t, auction.CodeAskNotFound, auction.ErrorCode(err))

	_, err = e.acceptance.Accept(ctx, missing, uuid.New().String(), actor)
	assert.Equal(t, auction.CodeAskNotFound, auction.ErrorCode(err))

	_, err = e.acceptance.Archive(ctx, missing, actor)
	assert.Equal(t, auction.CodeAskNotFound, auction.ErrorCode(err))
}
