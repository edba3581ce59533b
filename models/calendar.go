package models

import "time"

// ExternalBusyBlock is busy time reported by a connected calendar. Never persisted.
type ExternalBusyBlock struct {
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	Source    string    `json:"source"` // provider name
	Opaque    bool      `json:"opaque"` // provider only reveals busy/free
}

const (
	ProviderGoogle = "google"
	ProviderCalDAV = "caldav"
)

// CalendarConnection links a creator to one external calendar.
type CalendarConnection struct {
	ID             string    `bson:"id" json:"id"`
	CreatorID      string    `bson:"creatorId" json:"creatorId"`
	Provider       string    `bson:"provider" json:"provider" binding:"required,oneof=google caldav"`
	CalendarID     string    `bson:"calendarId" json:"calendarId"`                         // Google calendar id or CalDAV collection path
	Endpoint       string    `bson:"endpoint,omitempty" json:"endpoint,omitempty"`         // CalDAV server URL
	Username       string    `bson:"username,omitempty" json:"username,omitempty"`         // CalDAV basic auth
	Secret         string    `bson:"secret,omitempty" json:"secret,omitempty"`             // CalDAV app password
	AccessToken    string    `bson:"accessToken,omitempty" json:"accessToken,omitempty"`   // Google OAuth
	RefreshToken   string    `bson:"refreshToken,omitempty" json:"refreshToken,omitempty"` // Google OAuth
	TokenExpiry    time.Time `bson:"tokenExpiry,omitempty" json:"tokenExpiry,omitempty"`
	MirrorBookings bool      `bson:"mirrorBookings" json:"mirrorBookings"`
	CreatedAt      time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time `bson:"updatedAt" json:"updatedAt"`
}

// Redacted strips credentials before a connection leaves the service.
func (c CalendarConnection) Redacted() CalendarConnection {
	c.Secret = ""
	c.AccessToken = ""
	c.RefreshToken = ""
	return c
}

// MirrorBookingPayload asks the worker to copy a booking to one provider.
type MirrorBookingPayload struct {
	BookingID string `json:"bookingId"`
	CreatorID string `json:"creatorId"`
	Provider  string `json:"provider"`
}

// HoldReleasePayload asks the worker to release a hold that was never confirmed.
type HoldReleasePayload struct {
	BookingID string `json:"bookingId"`
	CreatorID string `json:"creatorId"`
}
