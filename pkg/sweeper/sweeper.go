// Package sweeper runs the background passes that move rows forward in
// time: lapsed asks to expired, resolved asks past their cooldown to
// archived, and relationships past their schedule end to expired.
package sweeper

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/briar/internal/repositories/ask"
	"github.com/Ramsey-B/briar/internal/repositories/relationship"
	"github.com/Ramsey-B/briar/pkg/auction"
	"github.com/Ramsey-B/briar/pkg/clock"
	"github.com/Ramsey-B/briar/pkg/events"
	"github.com/Ramsey-B/briar/pkg/metrics"
	"github.com/Ramsey-B/briar/pkg/models"
	"github.com/Ramsey-B/briar/pkg/redis"
	"github.com/Ramsey-B/briar/pkg/tracing"
)

// ErrAlreadyRunning is returned when starting a sweeper that is running
var ErrAlreadyRunning = errors.New("sweeper already running")

const (
	// DefaultInterval is the default time between sweep passes
	DefaultInterval = 30 * time.Second

	// DefaultBatchSize bounds how many rows one pass will touch per kind
	DefaultBatchSize = 100

	// DefaultArchiveCooldown is how long a resolved ask stays visible
	// before the sweeper archives it
	DefaultArchiveCooldown = 30 * 24 * time.Hour

	sweepLockKey = "sweep"
	sweepLockTTL = 60 * time.Second
)

// Config holds sweeper configuration
type Config struct {
	Interval        time.Duration
	BatchSize       int
	ArchiveCooldown time.Duration
}

// Sweeper periodically expires, archives, and lapses rows. A distributed
// lock keeps passes single-flight across instances. It plugs into the
// startup orchestrator as a dependency.
type Sweeper struct {
	askRepo *ask.Repository
	relRepo *relationship.Repository
	locker  *redis.Locker
	clock   clock.Clock
	emitter *events.Emitter
	logger  ectologger.Logger
	config  Config

	mu       sync.Mutex
	running  bool
	stopCh   chan struct{}
	stoppedC chan struct{}
}

// New creates a new Sweeper
func New(
	askRepo *ask.Repository,
	relRepo *relationship.Repository,
	locker *redis.Locker,
	clk clock.Clock,
	emitter *events.Emitter,
	logger ectologger.Logger,
	config Config,
) *Sweeper {
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultBatchSize
	}
	if config.ArchiveCooldown <= 0 {
		config.ArchiveCooldown = DefaultArchiveCooldown
	}

	return &Sweeper{
		askRepo:  askRepo,
		relRepo:  relRepo,
		locker:   locker,
		clock:    clk,
		emitter:  emitter,
		logger:   logger,
		config:   config,
		stopCh:   make(chan struct{}),
		stoppedC: make(chan struct{}),
	}
}

// GetName implements startup.StartupDependency
func (s *Sweeper) GetName() string {
	return "sweeper"
}

// DependsOn implements startup.StartupDependency
func (s *Sweeper) DependsOn() []string {
	return []string{"database", "redis", "kafka-producer"}
}

// Start begins the sweep loop
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.running = true
	s.mu.Unlock()

	s.logger.WithContext(ctx).Infof("Starting sweeper: interval=%s batch_size=%d archive_cooldown=%s",
		s.config.Interval, s.config.BatchSize, s.config.ArchiveCooldown)

	go s.loop(ctx)
	return nil
}

// Stop stops the sweeper gracefully
func (s *Sweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopCh)

	select {
	case <-s.stoppedC:
		s.logger.WithContext(ctx).Info("Sweeper stopped gracefully")
	case <-ctx.Done():
		s.logger.WithContext(ctx).Warn("Sweeper shutdown timed out")
		return ctx.Err()
	}
	return nil
}

func (s *Sweeper) loop(ctx context.Context) {
	defer close(s.stoppedC)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	s.runPass(ctx)

	for {
		select {
		case <-s.stopCh:
			s.logger.WithContext(ctx).Debug("Sweeper loop stopping")
			return
		case <-ticker.C:
			s.runPass(ctx)
		}
	}
}

// runPass runs one sweep under the cross-instance lock. Losing the lock
// race just means another instance is sweeping.
func (s *Sweeper) runPass(ctx context.Context) {
	ctx, span := tracing.StartSpan(ctx, "sweeper.Sweeper.runPass")
	defer span.End()

	start := time.Now()

	run := func() error {
		expired := s.expireAsks(ctx)
		archived := s.archiveAsks(ctx)
		lapsed := s.expireRelationships(ctx)

		if expired+archived+lapsed > 0 {
			s.logger.WithContext(ctx).Infof("Sweep pass completed: expired=%d archived=%d lapsed=%d duration=%s",
				expired, archived, lapsed, time.Since(start))
		}
		return nil
	}

	if s.locker == nil {
		_ = run()
	} else if err := s.locker.WithLock(ctx, sweepLockKey, sweepLockTTL, run); err != nil {
		if errors.Is(err, redis.ErrLockNotAcquired) {
			s.logger.WithContext(ctx).Debug("Sweep lock held elsewhere, skipping pass")
			return
		}
		s.logger.WithContext(ctx).WithError(err).Error("Sweep pass failed")
		return
	}

	metrics.SweepDuration.Observe(time.Since(start).Seconds())
}

// expireAsks flips lapsed active asks to expired. The status CAS makes the
// flip race-safe against a concurrent acceptance.
func (s *Sweeper) expireAsks(ctx context.Context) int {
	now := s.clock.Now()

	asks, err := s.askRepo.ListExpirable(ctx, now, s.config.BatchSize)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Failed to list expirable asks")
		return 0
	}

	count := 0
	for i := range asks {
		lot := &asks[i]
		if !auction.Expirable(lot, now) {
			continue
		}

		flipped, err := s.askRepo.SetStatus(ctx, lot.ID, models.AskStatusActive, models.AskStatusExpired)
		if err != nil {
			s.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"ask_id": lot.ID}).Error("Failed to expire ask")
			continue
		}
		if !flipped {
			// Accepted between the list and the flip
			continue
		}

		lot.Status = models.AskStatusExpired
		metrics.AsksResolvedTotal.WithLabelValues("expired").Inc()
		metrics.SweepRowsTotal.WithLabelValues("ask_expired").Inc()
		s.emitter.EmitAskExpired(ctx, lot)
		count++
	}
	return count
}

// archiveAsks archives resolved asks whose cooldown has elapsed
func (s *Sweeper) archiveAsks(ctx context.Context) int {
	now := s.clock.Now()
	cutoff := now.Add(-s.config.ArchiveCooldown)

	asks, err := s.askRepo.ListArchivable(ctx, cutoff, s.config.BatchSize)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Failed to list archivable asks")
		return 0
	}

	count := 0
	for i := range asks {
		lot := &asks[i]

		if err := s.askRepo.Archive(ctx, lot.ID, now); err != nil {
			s.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"ask_id": lot.ID}).Error("Failed to archive ask")
			continue
		}

		archivedAt := now
		lot.ArchivedAt = &archivedAt
		metrics.SweepRowsTotal.WithLabelValues("ask_archived").Inc()
		s.emitter.EmitAskArchived(ctx, lot, "")
		count++
	}
	return count
}

// expireRelationships lapses relationships whose schedule end has passed
func (s *Sweeper) expireRelationships(ctx context.Context) int {
	now := s.clock.Now()

	ids, err := s.relRepo.ExpireLapsed(ctx, now)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Failed to expire relationships")
		return 0
	}

	for _, id := range ids {
		rel, err := s.relRepo.Get(ctx, id)
		if err != nil {
			s.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"relationship_id": id}).Error("Failed to load expired relationship")
			continue
		}
		metrics.SweepRowsTotal.WithLabelValues("relationship_expired").Inc()
		s.emitter.EmitRelationshipExpired(ctx, rel)
	}
	return len(ids)
}
