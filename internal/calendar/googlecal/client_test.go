package googlecal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"salonsched/internal/calendar"
	"salonsched/internal/domain"
)

func newTokenServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "test-access-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newClient(t *testing.T, api http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	apiSrv := httptest.NewServer(api)
	t.Cleanup(apiSrv.Close)
	tokenSrv := newTokenServer(t)
	c := New(Config{
		ClientID:     "cid",
		ClientSecret: "secret",
		BaseURL:      apiSrv.URL,
		TokenURL:     tokenSrv.URL + "/token",
		Timeout:      2 * time.Second,
	})
	return c, apiSrv
}

func testCalendarLink() domain.StaffCalendarLink {
	return domain.StaffCalendarLink{
		StaffID:      uuid.New(),
		CalendarID:   "staff@example.com",
		RefreshToken: "refresh",
	}
}

func TestCheckFree(t *testing.T) {
	link := testCalendarLink()
	start := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	cases := []struct {
		name      string
		busyStart time.Time
		busyEnd   time.Time
		wantFree  bool
	}{
		{"overlapping busy span", start.Add(30 * time.Minute), end.Add(time.Hour), false},
		{"back-to-back busy span", end, end.Add(time.Hour), true},
		{"no busy spans", time.Time{}, time.Time{}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/freeBusy" {
					t.Fatalf("path = %q, want /freeBusy", r.URL.Path)
				}
				if got := r.Header.Get("Authorization"); got != "Bearer test-access-token" {
					t.Fatalf("authorization = %q", got)
				}
				busy := []map[string]string{}
				if !tc.busyStart.IsZero() {
					busy = append(busy, map[string]string{
						"start": tc.busyStart.Format(time.RFC3339),
						"end":   tc.busyEnd.Format(time.RFC3339),
					})
				}
				_ = json.NewEncoder(w).Encode(map[string]any{
					"calendars": map[string]any{
						link.CalendarID: map[string]any{"busy": busy},
					},
				})
			}))

			free, err := c.CheckFree(context.Background(), link, start, end)
			if err != nil {
				t.Fatalf("CheckFree error: %v", err)
			}
			if free != tc.wantFree {
				t.Fatalf("free = %v, want %v", free, tc.wantFree)
			}
		})
	}
}

func TestCheckFreeCalendarErrorIsUnavailable(t *testing.T) {
	link := testCalendarLink()
	c, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"calendars": map[string]any{
				link.CalendarID: map[string]any{
					"errors": []map[string]string{{"reason": "notFound"}},
				},
			},
		})
	}))

	_, err := c.CheckFree(context.Background(), link, time.Now(), time.Now().Add(time.Hour))
	if !errors.Is(err, calendar.ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}

func TestCheckFreeServerErrorIsUnavailable(t *testing.T) {
	c, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "backend down", http.StatusInternalServerError)
	}))

	_, err := c.CheckFree(context.Background(), testCalendarLink(), time.Now(), time.Now().Add(time.Hour))
	if !errors.Is(err, calendar.ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}

func TestCreateEvent(t *testing.T) {
	link := testCalendarLink()
	snap := calendar.EventSnapshot{
		AppointmentID: uuid.New(),
		Summary:       "Salon appointment",
		Notes:         "color and cut",
		Start:         time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC),
		End:           time.Date(2026, 3, 9, 11, 0, 0, 0, time.UTC),
	}

	c, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/calendars/staff@example.com/events" {
			t.Fatalf("path = %q", r.URL.Path)
		}
		var body struct {
			Summary            string `json:"summary"`
			Description        string `json:"description"`
			ExtendedProperties struct {
				Private map[string]string `json:"private"`
			} `json:"extendedProperties"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body.Summary != snap.Summary || body.Description != snap.Notes {
			t.Fatalf("body = %+v", body)
		}
		if got := body.ExtendedProperties.Private["salonschedAppointmentId"]; got != snap.AppointmentID.String() {
			t.Fatalf("appointment id property = %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "evt-42"})
	}))

	id, err := c.CreateEvent(context.Background(), link, snap)
	if err != nil {
		t.Fatalf("CreateEvent error: %v", err)
	}
	if id != "evt-42" {
		t.Fatalf("id = %q, want evt-42", id)
	}
}

func TestUpdateEvent(t *testing.T) {
	var gotMethod, gotPath string
	c, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))

	err := c.UpdateEvent(context.Background(), testCalendarLink(), "evt-42", calendar.EventSnapshot{})
	if err != nil {
		t.Fatalf("UpdateEvent error: %v", err)
	}
	if gotMethod != http.MethodPut || gotPath != "/calendars/staff@example.com/events/evt-42" {
		t.Fatalf("request = %s %s", gotMethod, gotPath)
	}
}

func TestDeleteEventToleratesMissingEvent(t *testing.T) {
	c, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	if err := c.DeleteEvent(context.Background(), testCalendarLink(), "evt-gone"); err != nil {
		t.Fatalf("DeleteEvent error: %v", err)
	}
}

func TestUnreachableAPIIsUnavailable(t *testing.T) {
	tokenSrv := newTokenServer(t)
	c := New(Config{
		ClientID: "cid",
		BaseURL:  "http://127.0.0.1:1",
		TokenURL: tokenSrv.URL + "/token",
		Timeout:  time.Second,
	})

	_, err := c.CreateEvent(context.Background(), testCalendarLink(), calendar.EventSnapshot{})
	if !errors.Is(err, calendar.ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}
