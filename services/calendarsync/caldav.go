package calendarsync

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav/caldav"
	"github.com/google/uuid"
	"go.uber.org/zap"

	calendarLinkRepo "creatorhub/database/repository/calendarlink"
	"creatorhub/models"
	"creatorhub/services/timewindow"
)

// basicAuthTransport adds the creator's CalDAV credentials to each request.
type basicAuthTransport struct {
	Username  string
	Password  string
	Transport http.RoundTripper
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.SetBasicAuth(t.Username, t.Password)
	req.Header.Set("User-Agent", "creatorhub/1.0")
	return t.Transport.RoundTrip(req)
}

// CalDAVProvider talks to any CalDAV server (iCloud, Fastmail, Nextcloud).
type CalDAVProvider struct {
	conns     calendarLinkRepo.ConnectionRepository
	transport http.RoundTripper
	logger    *zap.Logger
}

func NewCalDAVProvider(conns calendarLinkRepo.ConnectionRepository, transport http.RoundTripper, logger *zap.Logger) *CalDAVProvider {
	if transport == nil {
		transport = http.DefaultTransport
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CalDAVProvider{conns: conns, transport: transport, logger: logger}
}

func (p *CalDAVProvider) Name() string { return models.ProviderCalDAV }

func (p *CalDAVProvider) ListBusyBlocks(ctx context.Context, creatorID string, start, end time.Time) ([]models.ExternalBusyBlock, error) {
	client, calPath, err := p.open(ctx, creatorID)
	if err != nil {
		return nil, err
	}

	query := &caldav.CalendarQuery{
		CompRequest: caldav.CalendarCompRequest{
			Name: "VCALENDAR",
			Comps: []caldav.CalendarCompRequest{{
				Name:  "VEVENT",
				Props: []string{"UID", "DTSTART", "DTEND", "DURATION", "RRULE", "TRANSP", "STATUS"},
			}},
		},
		CompFilter: caldav.CompFilter{
			Name:  "VCALENDAR",
			Comps: []caldav.CompFilter{{Name: "VEVENT", Start: start.UTC(), End: end.UTC()}},
		},
	}
	objects, err := client.QueryCalendar(ctx, calPath, query)
	if err != nil {
		return nil, unavailable(p.Name(), fmt.Errorf("calendar query: %w", err))
	}

	window := timewindow.Interval{Start: start, End: end}
	var blocks []models.ExternalBusyBlock
	for _, obj := range objects {
		if obj.Data == nil {
			continue
		}
		blocks = append(blocks, busyFromCalendar(obj.Data, window, p.Name(), p.logger)...)
	}
	return blocks, nil
}

func (p *CalDAVProvider) CreateBlock(ctx context.Context, creatorID string, slot timewindow.Interval, label string) (string, error) {
	client, calPath, err := p.open(ctx, creatorID)
	if err != nil {
		return "", err
	}

	uid := uuid.NewString()
	cal := blockCalendar(uid, slot, label, time.Now().UTC())
	if _, err := client.PutCalendarObject(ctx, path.Join(calPath, uid+".ics"), cal); err != nil {
		return "", unavailable(p.Name(), fmt.Errorf("put event: %w", err))
	}
	return uid, nil
}

func (p *CalDAVProvider) open(ctx context.Context, creatorID string) (*caldav.Client, string, error) {
	conn, err := p.conns.Get(ctx, creatorID, p.Name())
	if errors.Is(err, calendarLinkRepo.ErrNotFound) {
		return nil, "", ErrNotConnected
	}
	if err != nil {
		return nil, "", fmt.Errorf("load caldav connection: %w", err)
	}

	httpClient := &http.Client{Transport: &basicAuthTransport{
		Username:  conn.Username,
		Password:  conn.Secret,
		Transport: p.transport,
	}}
	client, err := caldav.NewClient(httpClient, conn.Endpoint)
	if err != nil {
		return nil, "", unavailable(p.Name(), fmt.Errorf("create caldav client: %w", err))
	}

	if conn.CalendarID != "" {
		return client, conn.CalendarID, nil
	}
	calPath, err := discoverCalendar(ctx, client)
	if err != nil {
		return nil, "", unavailable(p.Name(), err)
	}
	return client, calPath, nil
}

// discoverCalendar walks principal -> home set -> calendars and returns the
// first collection that accepts events.
func discoverCalendar(ctx context.Context, client *caldav.Client) (string, error) {
	principal, err := client.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return "", fmt.Errorf("find principal: %w", err)
	}
	homeSet, err := client.FindCalendarHomeSet(ctx, principal)
	if err != nil {
		return "", fmt.Errorf("find calendar home set: %w", err)
	}
	calendars, err := client.FindCalendars(ctx, homeSet)
	if err != nil {
		return "", fmt.Errorf("find calendars: %w", err)
	}
	for _, cal := range calendars {
		if len(cal.SupportedComponentSet) == 0 {
			return cal.Path, nil
		}
		for _, comp := range cal.SupportedComponentSet {
			if comp == ical.CompEvent {
				return cal.Path, nil
			}
		}
	}
	return "", errors.New("no event calendar found")
}

// busyFromCalendar extracts opaque, non-cancelled events overlapping window.
// Recurring events are expanded inside the window.
func busyFromCalendar(cal *ical.Calendar, window timewindow.Interval, source string, logger *zap.Logger) []models.ExternalBusyBlock {
	if logger == nil {
		logger = zap.NewNop()
	}
	var blocks []models.ExternalBusyBlock
	for _, ev := range cal.Events() {
		if propEquals(ev.Props, "TRANSP", "TRANSPARENT") || propEquals(ev.Props, "STATUS", "CANCELLED") {
			continue
		}
		start, err := ev.DateTimeStart(time.UTC)
		if err != nil {
			logger.Debug("skipping caldav event without usable DTSTART", zap.Error(err))
			continue
		}
		end, err := ev.DateTimeEnd(time.UTC)
		if err != nil || !end.After(start) {
			continue
		}
		length := end.Sub(start)

		starts := []time.Time{start}
		set, err := ev.RecurrenceSet(time.UTC)
		switch {
		case err != nil:
			logger.Warn("caldav event recurrence unreadable, using first occurrence only",
				zap.String("uid", eventUID(ev)), zap.Error(err))
		case set != nil:
			starts = set.Between(window.Start.Add(-length), window.End, true)
		}
		for _, s := range starts {
			occ := timewindow.Interval{Start: s, End: s.Add(length)}
			if !timewindow.Overlaps(occ, window) {
				continue
			}
			blocks = append(blocks, models.ExternalBusyBlock{StartTime: occ.Start, EndTime: occ.End, Source: source, Opaque: true})
		}
	}
	return blocks
}

func eventUID(ev ical.Event) string {
	if p := ev.Props.Get(ical.PropUID); p != nil {
		return p.Value
	}
	return ""
}

func propEquals(props ical.Props, name, value string) bool {
	p := props.Get(name)
	return p != nil && strings.EqualFold(strings.TrimSpace(p.Value), value)
}

// blockCalendar builds the VCALENDAR written for a mirrored booking.
func blockCalendar(uid string, slot timewindow.Interval, label string, now time.Time) *ical.Calendar {
	ev := ical.NewEvent()
	ev.Props.SetText(ical.PropUID, uid)
	ev.Props.SetText(ical.PropSummary, label)
	ev.Props.SetDateTime(ical.PropDateTimeStamp, now)
	ev.Props.SetDateTime(ical.PropDateTimeStart, slot.Start.UTC())
	ev.Props.SetDateTime(ical.PropDateTimeEnd, slot.End.UTC())
	ev.Props.SetText("TRANSP", "OPAQUE")

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, "-//creatorhub//availability//EN")
	cal.Children = append(cal.Children, ev.Component)
	return cal
}
