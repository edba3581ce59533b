package availability

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	availabilityRepo "creatorhub/database/repository/availability"
	bookingRepo "creatorhub/database/repository/booking"
	calendarLinkRepo "creatorhub/database/repository/calendarlink"
	"creatorhub/models"
	"creatorhub/services/timewindow"
)

// BlockTimeSlot records a manual block on the creator's calendar and returns
// its id. Blocks may overlap existing bookings.
func (s *DefaultAvailabilityService) BlockTimeSlot(ctx context.Context, actor models.Actor, creatorID string, start, end time.Time, reason string) (string, error) {
	if err := authorize(actor, creatorID); err != nil {
		return "", err
	}
	if _, err := timewindow.New(start, end); err != nil {
		return "", newValidationError("endTime", "must be after startTime")
	}
	now := s.now()
	block := &models.Booking{
		ID:        uuid.New().String(),
		CreatorID: creatorID,
		Kind:      models.KindManualBlock,
		Status:    models.BookingConfirmed,
		StartTime: start.UTC(),
		EndTime:   end.UTC(),
		Reason:    reason,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Bookings.Create(ctx, block); err != nil {
		return "", fmt.Errorf("failed to create block: %w", err)
	}
	s.log().Info("time blocked",
		zap.String("creatorId", creatorID),
		zap.String("blockId", block.ID),
		zap.Time("start", block.StartTime),
		zap.Time("end", block.EndTime))
	return block.ID, nil
}

// validateBlackout checks a blackout input and returns the exception to store.
func validateBlackout(in models.BlackoutInput) (*models.BlackoutException, error) {
	ve := &ValidationError{}
	first, err := time.Parse(dateLayout, in.Date)
	if err != nil {
		ve.add("date", "must be YYYY-MM-DD")
	}
	endDate := in.EndDate
	if endDate == "" {
		endDate = in.Date
	} else if last, err := time.Parse(dateLayout, endDate); err != nil {
		ve.add("endDate", "must be YYYY-MM-DD")
	} else if !first.IsZero() && last.Before(first) {
		ve.add("endDate", "must not be before date")
	}

	if (in.StartTime == "") != (in.EndTime == "") {
		ve.add("startTime", "startTime and endTime go together")
	} else if in.StartTime != "" {
		startMin, err1 := parseClock(in.StartTime, false)
		endMin, err2 := parseClock(in.EndTime, true)
		switch {
		case err1 != nil:
			ve.add("startTime", "%v", err1)
		case err2 != nil:
			ve.add("endTime", "%v", err2)
		case endMin <= startMin:
			ve.add("endTime", "must be after startTime")
		}
	}

	freq := strings.ToLower(in.Frequency)
	if in.Recurring {
		if freq == "" {
			freq = models.RecurWeekly
		}
		if freq != models.RecurWeekly && freq != models.RecurYearly {
			ve.add("frequency", "must be weekly or yearly")
		}
	} else {
		freq = ""
	}
	if in.CreatorID == "" {
		ve.add("creatorId", "is required")
	}
	if err := ve.orNil(); err != nil {
		return nil, err
	}

	return &models.BlackoutException{
		ID:        uuid.New().String(),
		CreatorID: in.CreatorID,
		Date:      in.Date,
		EndDate:   endDate,
		StartTime: in.StartTime,
		EndTime:   in.EndTime,
		Reason:    in.Reason,
		Recurring: in.Recurring,
		Frequency: freq,
	}, nil
}

// AddBlackoutDate stores a blackout. Slots inside it disappear from generated
// availability and claims inside it are rejected.
func (s *DefaultAvailabilityService) AddBlackoutDate(ctx context.Context, actor models.Actor, in models.BlackoutInput) (*models.BlackoutException, error) {
	if err := authorize(actor, in.CreatorID); err != nil {
		return nil, err
	}
	exc, err := validateBlackout(in)
	if err != nil {
		return nil, err
	}
	exc.CreatedAt = s.now()
	if err := s.Rules.AddException(ctx, exc); err != nil {
		return nil, fmt.Errorf("failed to add blackout date: %w", err)
	}
	s.log().Info("blackout added",
		zap.String("creatorId", exc.CreatorID),
		zap.String("date", exc.Date),
		zap.Bool("recurring", exc.Recurring))
	return exc, nil
}

func (s *DefaultAvailabilityService) ListExceptions(ctx context.Context, creatorID, fromDate, toDate string) ([]models.BlackoutException, error) {
	if _, err := time.Parse(dateLayout, fromDate); err != nil {
		return nil, newValidationError("from", "must be YYYY-MM-DD")
	}
	if _, err := time.Parse(dateLayout, toDate); err != nil {
		return nil, newValidationError("to", "must be YYYY-MM-DD")
	}
	excs, err := s.Rules.GetExceptions(ctx, creatorID, fromDate, toDate)
	if err != nil {
		return nil, fmt.Errorf("failed to list blackout dates: %w", err)
	}
	if excs == nil {
		excs = []models.BlackoutException{}
	}
	return excs, nil
}

func (s *DefaultAvailabilityService) RemoveBlackout(ctx context.Context, actor models.Actor, creatorID, exceptionID string) error {
	if err := authorize(actor, creatorID); err != nil {
		return err
	}
	err := s.Rules.DeleteException(ctx, creatorID, exceptionID)
	if errors.Is(err, availabilityRepo.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to remove blackout: %w", err)
	}
	return nil
}

// MirrorBooking copies a confirmed booking into one connected calendar. It is
// idempotent: a booking already mirrored to provider is skipped.
func (s *DefaultAvailabilityService) MirrorBooking(ctx context.Context, bookingID, provider string) error {
	b, err := s.Bookings.GetByID(ctx, bookingID)
	if errors.Is(err, bookingRepo.ErrNotFound) {
		s.log().Warn("mirror skipped, booking gone", zap.String("bookingId", bookingID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load booking: %w", err)
	}
	if b.Status != models.BookingConfirmed {
		return nil
	}
	if _, done := b.ExternalEventIDs[provider]; done {
		return nil
	}
	if s.Calendars == nil {
		return fmt.Errorf("no calendar providers configured")
	}
	p, err := s.Calendars.Get(provider)
	if err != nil {
		return fmt.Errorf("mirror to %s: %w", provider, err)
	}

	label := "Booked"
	if b.Reason != "" {
		label = b.Reason
	}
	eventID, err := p.CreateBlock(ctx, b.CreatorID, timewindow.Interval{Start: b.StartTime, End: b.EndTime}, label)
	if err != nil {
		return fmt.Errorf("mirror to %s: %w", provider, err)
	}
	if err := s.Bookings.SetExternalEventID(ctx, bookingID, provider, eventID); err != nil {
		return fmt.Errorf("failed to record mirrored event: %w", err)
	}
	s.log().Info("booking mirrored",
		zap.String("bookingId", bookingID),
		zap.String("provider", provider),
		zap.String("eventId", eventID))
	return nil
}

// ConnectCalendar stores or replaces the creator's connection to a provider.
func (s *DefaultAvailabilityService) ConnectCalendar(ctx context.Context, actor models.Actor, conn models.CalendarConnection) (*models.CalendarConnection, error) {
	if err := authorize(actor, conn.CreatorID); err != nil {
		return nil, err
	}
	ve := &ValidationError{}
	switch conn.Provider {
	case models.ProviderGoogle:
		if conn.AccessToken == "" && conn.RefreshToken == "" {
			ve.add("refreshToken", "google connections need a token")
		}
	case models.ProviderCalDAV:
		if conn.Endpoint == "" {
			ve.add("endpoint", "is required for caldav")
		}
	default:
		ve.add("provider", "must be %s or %s", models.ProviderGoogle, models.ProviderCalDAV)
	}
	if err := ve.orNil(); err != nil {
		return nil, err
	}

	now := s.now()
	if existing, err := s.Connections.Get(ctx, conn.CreatorID, conn.Provider); err == nil {
		conn.ID = existing.ID
		conn.CreatedAt = existing.CreatedAt
	} else if !errors.Is(err, calendarLinkRepo.ErrNotFound) {
		return nil, fmt.Errorf("failed to load calendar connection: %w", err)
	} else {
		conn.ID = uuid.New().String()
		conn.CreatedAt = now
	}
	conn.UpdatedAt = now
	if err := s.Connections.Upsert(ctx, &conn); err != nil {
		return nil, fmt.Errorf("failed to save calendar connection: %w", err)
	}
	s.log().Info("calendar connected",
		zap.String("creatorId", conn.CreatorID),
		zap.String("provider", conn.Provider),
		zap.Bool("mirror", conn.MirrorBookings))
	redacted := conn.Redacted()
	return &redacted, nil
}

func (s *DefaultAvailabilityService) ListConnections(ctx context.Context, actor models.Actor, creatorID string) ([]models.CalendarConnection, error) {
	if err := authorize(actor, creatorID); err != nil {
		return nil, err
	}
	conns, err := s.Connections.ListByCreator(ctx, creatorID)
	if err != nil {
		return nil, fmt.Errorf("failed to list calendar connections: %w", err)
	}
	out := make([]models.CalendarConnection, 0, len(conns))
	for _, c := range conns {
		out = append(out, c.Redacted())
	}
	return out, nil
}
