package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	bookingRepo "creatorhub/database/repository/booking"
	"creatorhub/models"
	"creatorhub/services/timewindow"
)

const lockRetryInterval = 50 * time.Millisecond

func claimLockKey(creatorID string) string { return "claim:" + creatorID }

// acquireClaimLock takes the per-creator claim lock, retrying until LockWait
// elapses. Without a Locker it is a no-op.
func (s *DefaultAvailabilityService) acquireClaimLock(ctx context.Context, creatorID string) (func(), error) {
	if s.Locker == nil {
		return func() {}, nil
	}
	cfg := s.cfg()
	key := claimLockKey(creatorID)
	deadline := time.Now().Add(cfg.LockWait)
	for {
		token, ok, err := s.Locker.Lock(ctx, key, cfg.LockTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to acquire claim lock: %w", err)
		}
		if ok {
			return func() {
				if err := s.Locker.Unlock(detach(ctx), key, token); err != nil {
					s.log().Warn("failed to release claim lock", zap.String("creatorId", creatorID), zap.Error(err))
				}
			}, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrClaimContended
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetryInterval):
		}
	}
}

// Claim confirms a booking for the requested interval only if it is still
// free at the moment of the claim. Of any number of concurrent claims for
// overlapping intervals at most one succeeds; the others get an error matching
// ErrSlotNoLongerAvailable. Connected calendars that cannot be consulted fail
// the claim closed.
func (s *DefaultAvailabilityService) Claim(ctx context.Context, req models.ClaimRequest) (*models.Booking, error) {
	if err := validate.Struct(req); err != nil {
		ve := &ValidationError{}
		collectValidatorErrors(ve, err)
		return nil, ve
	}
	slot := timewindow.Interval{Start: req.StartTime.UTC(), End: req.EndTime.UTC()}

	release, err := s.acquireClaimLock(ctx, req.CreatorID)
	if err != nil {
		return nil, err
	}
	defer release()

	rc, err := s.loadRuleContext(ctx, req.CreatorID, slot)
	if errors.Is(err, ErrRuleNotFound) {
		return nil, &SlotUnavailableError{Conflicts: []models.ConflictDescriptor{{
			Kind: models.ConflictOutsideWorkingHours, Source: "rule",
			StartTime: slot.Start, EndTime: slot.End, Detail: "creator has no availability rule",
		}}}
	}
	if err != nil {
		return nil, err
	}

	var previous *models.Booking
	if req.ExcludeBookingID != "" {
		previous, err = s.Bookings.GetByID(ctx, req.ExcludeBookingID)
		if errors.Is(err, bookingRepo.ErrNotFound) {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load booking: %w", err)
		}
		if previous.CreatorID != req.CreatorID || previous.ClientID != req.ClientID {
			return nil, ErrForbidden
		}
	}

	if conflicts, err := ruleConflicts(rc, slot.Start, slot.End, s.now()); err != nil {
		return nil, err
	} else if len(conflicts) > 0 {
		return nil, &SlotUnavailableError{Conflicts: conflicts}
	}

	// Calendars are checked outside the store transaction so a slow provider
	// never holds it open.
	detector := s.conflicts()
	external, err := detector.HasConflict(ctx, req.CreatorID, slot.Start, slot.End, ConflictOptions{
		Rule:             rc.rule,
		ExcludeBookingID: req.ExcludeBookingID,
		Strict:           true,
		SkipBookings:     true,
	})
	if err != nil {
		return nil, err
	}
	if external.HasConflicts {
		return nil, &SlotUnavailableError{Conflicts: external.Conflicts}
	}

	mirrorTo := s.mirrorTargets(ctx, req.CreatorID)
	var booking *models.Booking
	switch s.cfg().ClaimStrategy {
	case StrategyHold:
		booking, err = s.claimWithHold(ctx, req, slot, rc.rule, mirrorTo, previous)
	default:
		booking, err = s.claimInTransaction(ctx, req, slot, rc.rule, mirrorTo)
	}
	if err != nil {
		s.log().Info("claim rejected",
			zap.String("creatorId", req.CreatorID),
			zap.Time("start", slot.Start),
			zap.Error(err))
		return nil, err
	}

	s.log().Info("booking confirmed",
		zap.String("bookingId", booking.ID),
		zap.String("creatorId", booking.CreatorID),
		zap.Time("start", booking.StartTime),
		zap.Time("end", booking.EndTime))
	s.enqueueMirrors(ctx, booking)
	return booking, nil
}

func (s *DefaultAvailabilityService) newBooking(req models.ClaimRequest, slot timewindow.Interval, status models.BookingStatus, mirrorTo []string) *models.Booking {
	now := s.now()
	return &models.Booking{
		ID:        uuid.New().String(),
		CreatorID: req.CreatorID,
		ClientID:  req.ClientID,
		Kind:      models.KindClientBooking,
		Status:    status,
		StartTime: slot.Start,
		EndTime:   slot.End,
		MirrorTo:  mirrorTo,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// claimInTransaction re-checks stored busy time and inserts the confirmed
// booking inside one store transaction serialized per creator.
func (s *DefaultAvailabilityService) claimInTransaction(ctx context.Context, req models.ClaimRequest, slot timewindow.Interval, rule *models.AvailabilityRule, mirrorTo []string) (*models.Booking, error) {
	booking := s.newBooking(req, slot, models.BookingConfirmed, mirrorTo)
	detector := s.conflicts()

	err := s.Bookings.WithClaimTransaction(ctx, req.CreatorID, func(tx context.Context) error {
		res, err := detector.HasConflict(tx, req.CreatorID, slot.Start, slot.End, ConflictOptions{
			Rule:             rule,
			ExcludeBookingID: req.ExcludeBookingID,
			SkipExternal:     true,
		})
		if err != nil {
			return err
		}
		if res.HasConflicts {
			return &SlotUnavailableError{Conflicts: res.Conflicts}
		}
		if req.ExcludeBookingID != "" {
			if err := s.cancelRescheduled(tx, req.ExcludeBookingID); err != nil {
				return err
			}
		}
		return s.Bookings.Create(tx, booking)
	})
	if err != nil {
		return nil, s.claimError(err, slot)
	}
	return booking, nil
}

// claimWithHold places a short-lived hold, then confirms it only if no other
// live record for the interval is older. A confirmed record always wins. A
// rescheduled booking is cancelled only once the new one has been confirmed
// and has survived the race check.
func (s *DefaultAvailabilityService) claimWithHold(ctx context.Context, req models.ClaimRequest, slot timewindow.Interval, rule *models.AvailabilityRule, mirrorTo []string, previous *models.Booking) (*models.Booking, error) {
	hold := s.newBooking(req, slot, models.BookingPending, mirrorTo)
	expires := hold.CreatedAt.Add(s.cfg().HoldTTL)
	hold.HoldExpiresAt = &expires

	if err := s.Bookings.Create(ctx, hold); err != nil {
		return nil, s.claimError(err, slot)
	}
	if s.Tasks != nil {
		payload := models.HoldReleasePayload{BookingID: hold.ID, CreatorID: hold.CreatorID}
		if err := s.Tasks.EnqueueHoldRelease(ctx, payload, expires); err != nil {
			s.log().Warn("failed to schedule hold release", zap.String("bookingId", hold.ID), zap.Error(err))
		}
	}

	// The unique confirmed-start index admits one of the two when the new
	// slot keeps the old start, so the old booking steps aside first and is
	// put back if the new one does not stand.
	swap := previous != nil && previous.Status == models.BookingConfirmed &&
		previous.Kind == models.KindClientBooking && previous.StartTime.Equal(slot.Start)
	swapped := false
	restore := func() {
		if !swapped {
			return
		}
		if err := s.Bookings.UpdateStatus(detach(ctx), previous.ID,
			[]models.BookingStatus{models.BookingCancelled}, models.BookingConfirmed, ""); err != nil {
			s.log().Error("failed to restore rescheduled booking", zap.String("bookingId", previous.ID), zap.Error(err))
		}
	}
	abandon := func(cause error) (*models.Booking, error) {
		if err := s.Bookings.Delete(detach(ctx), hold.ID); err != nil && !errors.Is(err, bookingRepo.ErrNotFound) {
			s.log().Warn("failed to remove losing hold", zap.String("bookingId", hold.ID), zap.Error(err))
		}
		restore()
		return nil, s.claimError(cause, slot)
	}
	withdraw := func(reason string) {
		if err := s.Bookings.UpdateStatus(detach(ctx), hold.ID,
			[]models.BookingStatus{models.BookingConfirmed}, models.BookingCancelled, reason); err != nil {
			s.log().Warn("failed to withdraw booking", zap.String("bookingId", hold.ID), zap.Error(err))
		}
		restore()
	}

	rivals, err := s.rivals(ctx, req, slot, rule, hold.ID)
	if err != nil {
		return abandon(err)
	}
	var beaten []models.ConflictDescriptor
	for _, r := range rivals {
		if r.Status == models.BookingConfirmed || r.Kind == models.KindManualBlock || olderThan(r, *hold) {
			beaten = append(beaten, descriptorFor(r))
		}
	}
	if len(beaten) > 0 {
		return abandon(&SlotUnavailableError{Conflicts: beaten})
	}

	if swap {
		if err := s.cancelRescheduled(ctx, previous.ID); err != nil {
			return abandon(err)
		}
		swapped = true
	}
	if err := s.Bookings.ConfirmHold(ctx, hold.ID, s.now()); err != nil {
		return abandon(err)
	}

	// Two holds may both have confirmed if each was inserted after the other's
	// check; both then see the other here and step back.
	rivals, err = s.rivals(ctx, req, slot, rule, hold.ID)
	if err != nil {
		withdraw("claim_failed")
		return nil, err
	}
	for _, r := range rivals {
		if r.Status == models.BookingConfirmed {
			withdraw("claim_race")
			return nil, &SlotUnavailableError{Conflicts: []models.ConflictDescriptor{descriptorFor(r)}}
		}
	}

	if previous != nil && !swapped {
		if err := s.cancelRescheduled(ctx, previous.ID); err != nil {
			withdraw("reschedule_failed")
			return nil, s.claimError(err, slot)
		}
	}

	hold.Status = models.BookingConfirmed
	hold.HoldExpiresAt = nil
	return hold, nil
}

// cancelRescheduled cancels the booking a reschedule replaces.
func (s *DefaultAvailabilityService) cancelRescheduled(ctx context.Context, bookingID string) error {
	return s.Bookings.UpdateStatus(ctx, bookingID,
		[]models.BookingStatus{models.BookingPending, models.BookingConfirmed},
		models.BookingCancelled, "rescheduled")
}

// rivals lists live records other than self whose buffered interval overlaps slot.
func (s *DefaultAvailabilityService) rivals(ctx context.Context, req models.ClaimRequest, slot timewindow.Interval, rule *models.AvailabilityRule, self string) ([]models.Booking, error) {
	fetch := slot.Expand(rule.MaxBuffer(), rule.MaxBuffer())
	records, err := s.Bookings.ListBusyInRange(ctx, req.CreatorID, fetch.Start, fetch.End, s.now(), self)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	out := records[:0]
	for _, r := range records {
		if r.ID == req.ExcludeBookingID {
			continue
		}
		buf := rule.BufferFor(r.BusyKind())
		if timewindow.Overlaps(timewindow.Interval{Start: r.StartTime, End: r.EndTime}.Expand(buf, buf), slot) {
			out = append(out, r)
		}
	}
	return out, nil
}

func olderThan(a, b models.Booking) bool {
	if a.CreatedAt.Equal(b.CreatedAt) {
		return a.ID < b.ID
	}
	return a.CreatedAt.Before(b.CreatedAt)
}

func descriptorFor(b models.Booking) models.ConflictDescriptor {
	return models.ConflictDescriptor{
		Kind:      models.ConflictKind(b.BusyKind()),
		Source:    "booking",
		StartTime: b.StartTime,
		EndTime:   b.EndTime,
		BookingID: b.ID,
	}
}

// claimError maps store outcomes of a lost race to SlotUnavailableError.
func (s *DefaultAvailabilityService) claimError(err error, slot timewindow.Interval) error {
	var unavailable *SlotUnavailableError
	switch {
	case errors.As(err, &unavailable):
		return unavailable
	case errors.Is(err, bookingRepo.ErrDuplicateSlot), errors.Is(err, bookingRepo.ErrStatusConflict):
		return &SlotUnavailableError{Conflicts: []models.ConflictDescriptor{{
			Kind: models.ConflictBooking, Source: "booking",
			StartTime: slot.Start, EndTime: slot.End,
			Detail: "claimed concurrently",
		}}}
	default:
		return fmt.Errorf("claim failed: %w", err)
	}
}

// mirrorTargets lists the providers the creator asked bookings to be copied to.
func (s *DefaultAvailabilityService) mirrorTargets(ctx context.Context, creatorID string) []string {
	if s.Connections == nil {
		return nil
	}
	conns, err := s.Connections.ListByCreator(ctx, creatorID)
	if err != nil {
		s.log().Warn("failed to list calendar connections", zap.String("creatorId", creatorID), zap.Error(err))
		return nil
	}
	var out []string
	for _, c := range conns {
		if c.MirrorBookings {
			out = append(out, c.Provider)
		}
	}
	return out
}

// enqueueMirrors schedules the calendar copies of a new booking. Failures are
// logged; the booking stands.
func (s *DefaultAvailabilityService) enqueueMirrors(ctx context.Context, b *models.Booking) {
	if s.Tasks == nil {
		return
	}
	for _, provider := range b.MirrorTo {
		payload := models.MirrorBookingPayload{BookingID: b.ID, CreatorID: b.CreatorID, Provider: provider}
		if err := s.Tasks.EnqueueMirror(detach(ctx), payload); err != nil {
			s.log().Error("failed to enqueue booking mirror",
				zap.String("bookingId", b.ID),
				zap.String("provider", provider),
				zap.Error(err))
		}
	}
}

// CancelBooking cancels a pending or confirmed booking. The client who made
// it, the creator and admins may cancel.
func (s *DefaultAvailabilityService) CancelBooking(ctx context.Context, actor models.Actor, bookingID string) error {
	b, err := s.Bookings.GetByID(ctx, bookingID)
	if errors.Is(err, bookingRepo.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load booking: %w", err)
	}
	if !actor.CanManage(b.CreatorID) && (actor.ID == "" || actor.ID != b.ClientID) {
		return ErrForbidden
	}
	err = s.Bookings.UpdateStatus(ctx, bookingID,
		[]models.BookingStatus{models.BookingPending, models.BookingConfirmed},
		models.BookingCancelled, "cancelled by "+actor.Role)
	if errors.Is(err, bookingRepo.ErrStatusConflict) {
		return newValidationError("status", "booking is %s and cannot be cancelled", b.Status)
	}
	if err != nil {
		return fmt.Errorf("failed to cancel booking: %w", err)
	}
	s.log().Info("booking cancelled", zap.String("bookingId", bookingID), zap.String("by", actor.ID))
	return nil
}

// ReleaseExpiredHold cancels a hold whose expiry has passed. Holds that were
// confirmed, cancelled or are still live are left alone.
func (s *DefaultAvailabilityService) ReleaseExpiredHold(ctx context.Context, bookingID string) error {
	b, err := s.Bookings.GetByID(ctx, bookingID)
	if errors.Is(err, bookingRepo.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load hold: %w", err)
	}
	if b.Status != models.BookingPending || b.HoldExpiresAt == nil || b.HoldExpiresAt.After(s.now()) {
		return nil
	}
	err = s.Bookings.UpdateStatus(ctx, bookingID, []models.BookingStatus{models.BookingPending}, models.BookingCancelled, "hold_expired")
	if err != nil && !errors.Is(err, bookingRepo.ErrStatusConflict) {
		return fmt.Errorf("failed to release hold: %w", err)
	}
	s.log().Debug("expired hold released", zap.String("bookingId", bookingID))
	return nil
}
