package calendarsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	calendarLinkRepo "creatorhub/database/repository/calendarlink"
	"creatorhub/models"
	"creatorhub/services/timewindow"
)

const defaultGoogleCalendar = "primary"

// GoogleProvider reads free/busy data from and writes events to Google Calendar
// using each creator's stored OAuth token.
type GoogleProvider struct {
	conns      calendarLinkRepo.ConnectionRepository
	oauth      *oauth2.Config
	logger     *zap.Logger
	clientOpts []option.ClientOption
}

type GoogleOption func(*GoogleProvider)

// WithGoogleClientOptions appends options to every calendar.Service built,
// e.g. option.WithEndpoint for a test server.
func WithGoogleClientOptions(opts ...option.ClientOption) GoogleOption {
	return func(p *GoogleProvider) {
		p.clientOpts = append(p.clientOpts, opts...)
	}
}

func NewGoogleProvider(conns calendarLinkRepo.ConnectionRepository, clientID, clientSecret string, logger *zap.Logger, opts ...GoogleOption) *GoogleProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &GoogleProvider{
		conns: conns,
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{calendar.CalendarReadonlyScope, calendar.CalendarEventsScope},
		},
		logger: logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *GoogleProvider) Name() string { return models.ProviderGoogle }

func (p *GoogleProvider) ListBusyBlocks(ctx context.Context, creatorID string, start, end time.Time) ([]models.ExternalBusyBlock, error) {
	srv, conn, done, err := p.service(ctx, creatorID)
	if err != nil {
		return nil, err
	}
	defer done()

	calID := calendarID(conn)
	resp, err := srv.Freebusy.Query(&calendar.FreeBusyRequest{
		TimeMin: start.UTC().Format(time.RFC3339),
		TimeMax: end.UTC().Format(time.RFC3339),
		Items:   []*calendar.FreeBusyRequestItem{{Id: calID}},
	}).Context(ctx).Do()
	if err != nil {
		return nil, unavailable(p.Name(), fmt.Errorf("freebusy query: %w", err))
	}
	return busyFromFreeBusy(resp, calID, p.Name())
}

// DetectConflict asks Google's free/busy endpoint about exactly [start, end).
func (p *GoogleProvider) DetectConflict(ctx context.Context, creatorID string, start, end time.Time) (bool, error) {
	blocks, err := p.ListBusyBlocks(ctx, creatorID, start, end)
	if err != nil {
		return false, err
	}
	candidate := timewindow.Interval{Start: start, End: end}
	for _, b := range blocks {
		if timewindow.Overlaps(candidate, timewindow.Interval{Start: b.StartTime, End: b.EndTime}) {
			return true, nil
		}
	}
	return false, nil
}

func (p *GoogleProvider) CreateBlock(ctx context.Context, creatorID string, slot timewindow.Interval, label string) (string, error) {
	srv, conn, done, err := p.service(ctx, creatorID)
	if err != nil {
		return "", err
	}
	defer done()

	ev, err := srv.Events.Insert(calendarID(conn), &calendar.Event{
		Summary:      label,
		Start:        &calendar.EventDateTime{DateTime: slot.Start.UTC().Format(time.RFC3339), TimeZone: "UTC"},
		End:          &calendar.EventDateTime{DateTime: slot.End.UTC().Format(time.RFC3339), TimeZone: "UTC"},
		Transparency: "opaque",
	}).Context(ctx).Do()
	if err != nil {
		return "", unavailable(p.Name(), fmt.Errorf("insert event: %w", err))
	}
	return ev.Id, nil
}

// service builds a calendar client for the creator. done persists a token the
// oauth2 library refreshed during the call.
func (p *GoogleProvider) service(ctx context.Context, creatorID string) (*calendar.Service, *models.CalendarConnection, func(), error) {
	conn, err := p.conns.Get(ctx, creatorID, p.Name())
	if errors.Is(err, calendarLinkRepo.ErrNotFound) {
		return nil, nil, nil, ErrNotConnected
	}
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load google connection: %w", err)
	}

	token := &oauth2.Token{
		AccessToken:  conn.AccessToken,
		RefreshToken: conn.RefreshToken,
		Expiry:       conn.TokenExpiry,
		TokenType:    "Bearer",
	}
	ts := oauth2.ReuseTokenSource(token, p.oauth.TokenSource(ctx, token))

	opts := append([]option.ClientOption{option.WithTokenSource(ts)}, p.clientOpts...)
	srv, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, nil, nil, unavailable(p.Name(), fmt.Errorf("create calendar service: %w", err))
	}

	done := func() {
		fresh, err := ts.Token()
		if err != nil || fresh.AccessToken == conn.AccessToken {
			return
		}
		if err := p.conns.UpdateToken(context.WithoutCancel(ctx), creatorID, p.Name(), fresh.AccessToken, fresh.RefreshToken, fresh.Expiry.Unix()); err != nil {
			p.logger.Warn("failed to persist refreshed google token", zap.String("creatorId", creatorID), zap.Error(err))
		}
	}
	return srv, conn, done, nil
}

func calendarID(conn *models.CalendarConnection) string {
	if conn.CalendarID == "" {
		return defaultGoogleCalendar
	}
	return conn.CalendarID
}

func busyFromFreeBusy(resp *calendar.FreeBusyResponse, calID, source string) ([]models.ExternalBusyBlock, error) {
	cal, ok := resp.Calendars[calID]
	if !ok {
		return nil, nil
	}
	if len(cal.Errors) > 0 {
		return nil, unavailable(source, fmt.Errorf("freebusy calendar %s: %s", calID, cal.Errors[0].Reason))
	}

	blocks := make([]models.ExternalBusyBlock, 0, len(cal.Busy))
	for _, period := range cal.Busy {
		start, err := time.Parse(time.RFC3339, period.Start)
		if err != nil {
			return nil, unavailable(source, fmt.Errorf("parse busy start %q: %w", period.Start, err))
		}
		end, err := time.Parse(time.RFC3339, period.End)
		if err != nil {
			return nil, unavailable(source, fmt.Errorf("parse busy end %q: %w", period.End, err))
		}
		if !end.After(start) {
			continue
		}
		blocks = append(blocks, models.ExternalBusyBlock{StartTime: start, EndTime: end, Source: source, Opaque: true})
	}
	return blocks, nil
}
