package calendarsync

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"google.golang.org/api/option"

	calendarLinkRepo "creatorhub/database/repository/calendarlink"
	"creatorhub/models"
	"creatorhub/services/timewindow"
)

func newGoogleTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/freeBusy":
			var req struct {
				Items []struct {
					ID string `json:"id"`
				} `json:"items"`
			}
			_ = json.NewDecoder(r.Body).Decode(&req)
			calID := "primary"
			if len(req.Items) > 0 {
				calID = req.Items[0].ID
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"kind": "calendar#freeBusy",
				"calendars": map[string]any{
					calID: map[string]any{
						"busy": []map[string]string{
							{"start": hour(10).Format(time.RFC3339), "end": hour(11).Format(time.RFC3339)},
						},
					},
				},
			})
		case r.Method == http.MethodPost && r.URL.Path == "/calendars/primary/events":
			_ = json.NewEncoder(w).Encode(map[string]any{"id": "evt-123", "status": "confirmed"})
		default:
			http.NotFound(w, r)
		}
	}))
}

func newTestGoogleProvider(t *testing.T, srv *httptest.Server) (*GoogleProvider, *calendarLinkRepo.MemoryConnectionRepo) {
	t.Helper()
	conns := calendarLinkRepo.NewMemoryConnectionRepo()
	err := conns.Upsert(context.Background(), &models.CalendarConnection{
		CreatorID:   "c1",
		Provider:    models.ProviderGoogle,
		AccessToken: "token",
		TokenExpiry: time.Now().Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	p := NewGoogleProvider(conns, "client", "secret", nil,
		WithGoogleClientOptions(option.WithHTTPClient(srv.Client()), option.WithEndpoint(srv.URL+"/")))
	return p, conns
}

func TestGoogleListBusyBlocks(t *testing.T) {
	srv := newGoogleTestServer(t)
	defer srv.Close()
	p, _ := newTestGoogleProvider(t, srv)

	blocks, err := p.ListBusyBlocks(context.Background(), "c1", hour(8), hour(18))
	if err != nil {
		t.Fatalf("ListBusyBlocks: %v", err)
	}
	if len(blocks) != 1 || !blocks[0].StartTime.Equal(hour(10)) || blocks[0].Source != models.ProviderGoogle {
		t.Errorf("unexpected blocks %+v", blocks)
	}

	busy, err := p.DetectConflict(context.Background(), "c1", hour(10), hour(10).Add(30*time.Minute))
	if err != nil || !busy {
		t.Errorf("DetectConflict = %v, %v; want true", busy, err)
	}
}

func TestGoogleCreateBlock(t *testing.T) {
	srv := newGoogleTestServer(t)
	defer srv.Close()
	p, _ := newTestGoogleProvider(t, srv)

	id, err := p.CreateBlock(context.Background(), "c1", timewindow.Interval{Start: hour(10), End: hour(11)}, "Session")
	if err != nil {
		t.Fatalf("CreateBlock: %v", err)
	}
	if id != "evt-123" {
		t.Errorf("event id = %q", id)
	}
}

func TestGoogleNotConnected(t *testing.T) {
	srv := newGoogleTestServer(t)
	defer srv.Close()
	p, _ := newTestGoogleProvider(t, srv)

	if _, err := p.ListBusyBlocks(context.Background(), "someone-else", hour(8), hour(18)); !errors.Is(err, ErrNotConnected) {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
}

func TestGoogleServerErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":500,"message":"boom"}}`, http.StatusInternalServerError)
	}))
	defer srv.Close()
	p, _ := newTestGoogleProvider(t, srv)

	_, err := p.ListBusyBlocks(context.Background(), "c1", hour(8), hour(18))
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Errorf("expected ErrProviderUnavailable, got %v", err)
	}
}
