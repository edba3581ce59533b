package models

import "time"

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCompleted BookingStatus = "completed"
	BookingCancelled BookingStatus = "cancelled"
	BookingRefunded  BookingStatus = "refunded"
)

// BookingKind separates client bookings from a creator's own manual blocks.
type BookingKind string

const (
	KindClientBooking BookingKind = "booking"
	KindManualBlock   BookingKind = "manual_block"
)

// Booking is a reservation of a creator's time. Holds are pending bookings with
// a HoldExpiresAt; manual blocks are confirmed bookings of kind manual_block.
type Booking struct {
	ID               string            `bson:"id" json:"id"`                                                 // Unique booking identifier (UUID)
	CreatorID        string            `bson:"creatorId" json:"creatorId"`                                   // Creator whose time is reserved
	ClientID         string            `bson:"clientId,omitempty" json:"clientId,omitempty"`                 // Empty for manual blocks
	Kind             BookingKind       `bson:"kind" json:"kind"`                                             // booking or manual_block
	Status           BookingStatus     `bson:"status" json:"status"`                                         // pending, confirmed, completed, cancelled, refunded
	StartTime        time.Time         `bson:"startTime" json:"startTime"`                                   // Inclusive
	EndTime          time.Time         `bson:"endTime" json:"endTime"`                                       // Exclusive
	HoldExpiresAt    *time.Time        `bson:"holdExpiresAt,omitempty" json:"holdExpiresAt,omitempty"`       // Set while the booking is a hold
	Reason           string            `bson:"reason,omitempty" json:"reason,omitempty"`                     // Manual block label
	MirrorTo         []string          `bson:"mirrorTo,omitempty" json:"mirrorTo,omitempty"`                 // Providers to copy the booking to
	ExternalEventIDs map[string]string `bson:"externalEventIds,omitempty" json:"externalEventIds,omitempty"` // provider -> external event id
	CancelReason     string            `bson:"cancelReason,omitempty" json:"cancelReason,omitempty"`
	CreatedAt        time.Time         `bson:"createdAt" json:"createdAt"`
	UpdatedAt        time.Time         `bson:"updatedAt" json:"updatedAt"`
}

// IsBusy reports whether the booking occupies the creator's time at now.
// Confirmed bookings always do; pending ones only while their hold is live.
func (b Booking) IsBusy(now time.Time) bool {
	switch b.Status {
	case BookingConfirmed:
		return true
	case BookingPending:
		return b.HoldExpiresAt == nil || b.HoldExpiresAt.After(now)
	default:
		return false
	}
}

// BusyKind classifies the booking for buffer and conflict reporting.
func (b Booking) BusyKind() BusyKind {
	switch {
	case b.Kind == KindManualBlock:
		return BusyManualBlock
	case b.Status == BookingPending:
		return BusyHold
	default:
		return BusyBooking
	}
}

// ClaimRequest is the input for confirming a booking against live availability.
type ClaimRequest struct {
	CreatorID        string    `json:"creatorId" validate:"required"`
	ClientID         string    `json:"clientId" validate:"required"`
	StartTime        time.Time `json:"startTime" validate:"required"`
	EndTime          time.Time `json:"endTime" validate:"required,gtfield=StartTime"`
	ExcludeBookingID string    `json:"excludeBookingId,omitempty"` // Booking being rescheduled; its own slot is ignored and it is cancelled on success
}
