package availability

import (
	"context"
	"time"

	"go.uber.org/zap"

	availabilityRepo "creatorhub/database/repository/availability"
	bookingRepo "creatorhub/database/repository/booking"
	calendarLinkRepo "creatorhub/database/repository/calendarlink"
	"creatorhub/models"
	"creatorhub/services/calendarsync"
	"creatorhub/utils"
)

const (
	StrategyTransaction = "transaction"
	StrategyHold        = "hold"
)

// Config carries the tunables read from configuration.
type Config struct {
	ProviderTimeout time.Duration // per provider, per call
	ClaimStrategy   string        // "transaction" (default) or "hold"
	HoldTTL         time.Duration
	LockTTL         time.Duration // per-creator claim lock lease
	LockWait        time.Duration // how long a claim waits for the lock
	MaxRange        time.Duration // widest range GenerateAvailableSlots accepts
}

func (c Config) withDefaults() Config {
	if c.ProviderTimeout <= 0 {
		c.ProviderTimeout = 3 * time.Second
	}
	if c.ClaimStrategy == "" {
		c.ClaimStrategy = StrategyTransaction
	}
	if c.HoldTTL <= 0 {
		c.HoldTTL = 5 * time.Minute
	}
	if c.LockTTL <= 0 {
		c.LockTTL = 10 * time.Second
	}
	if c.LockWait <= 0 {
		c.LockWait = 2 * time.Second
	}
	if c.MaxRange <= 0 {
		c.MaxRange = 93 * 24 * time.Hour
	}
	return c
}

// DefaultAvailabilityService implements AvailabilityService and BackgroundService.
// Locker, Tasks and Conflicts are optional.
type DefaultAvailabilityService struct {
	Rules       availabilityRepo.RuleRepository
	Bookings    bookingRepo.BookingRepository
	Connections calendarLinkRepo.ConnectionRepository
	Calendars   *calendarsync.Registry
	Conflicts   ConflictDetectionService
	Locker      utils.Locker
	Tasks       TaskQueue
	Clock       utils.Clock
	Logger      *zap.Logger
	Config      Config
}

var (
	_ AvailabilityService = (*DefaultAvailabilityService)(nil)
	_ BackgroundService   = (*DefaultAvailabilityService)(nil)
)

func (s *DefaultAvailabilityService) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock.Now()
}

func (s *DefaultAvailabilityService) log() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

func (s *DefaultAvailabilityService) cfg() Config { return s.Config.withDefaults() }

func (s *DefaultAvailabilityService) conflicts() ConflictDetectionService {
	if s.Conflicts != nil {
		return s.Conflicts
	}
	return &DefaultConflictDetectionService{
		Bookings:        s.Bookings,
		Calendars:       s.Calendars,
		Clock:           s.Clock,
		Logger:          s.log(),
		ProviderTimeout: s.cfg().ProviderTimeout,
	}
}

// authorize rejects actors that may not manage creatorID's calendar.
func authorize(actor models.Actor, creatorID string) error {
	if !actor.CanManage(creatorID) {
		return ErrForbidden
	}
	return nil
}

// detach keeps values of ctx but not its cancellation, for follow-up work that
// must not be lost when the caller goes away.
func detach(ctx context.Context) context.Context { return context.WithoutCancel(ctx) }
