package googlecal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"salonsched/internal/calendar"
	"salonsched/internal/domain"
)

const defaultBaseURL = "https://www.googleapis.com/calendar/v3"

type Config struct {
	ClientID     string
	ClientSecret string

	// BaseURL and TokenURL are overridable for tests.
	BaseURL  string
	TokenURL string

	Timeout time.Duration
}

// Client speaks the Google Calendar v3 REST surface directly. Staff link
// refresh tokens are exchanged for access tokens per call via oauth2.
type Client struct {
	http    *http.Client
	oauth   *oauth2.Config
	baseURL string
}

func New(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	endpoint := google.Endpoint
	if cfg.TokenURL != "" {
		endpoint = oauth2.Endpoint{TokenURL: cfg.TokenURL}
	}
	return &Client{
		http: &http.Client{Timeout: timeout},
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     endpoint,
		},
		baseURL: baseURL,
	}
}

func (c *Client) CheckFree(ctx context.Context, link domain.StaffCalendarLink, start, end time.Time) (bool, error) {
	body := map[string]any{
		"timeMin": start.UTC().Format(time.RFC3339),
		"timeMax": end.UTC().Format(time.RFC3339),
		"items":   []map[string]string{{"id": link.CalendarID}},
	}

	var out struct {
		Calendars map[string]struct {
			Busy []struct {
				Start time.Time `json:"start"`
				End   time.Time `json:"end"`
			} `json:"busy"`
			Errors []struct {
				Reason string `json:"reason"`
			} `json:"errors"`
		} `json:"calendars"`
	}
	if err := c.do(ctx, link, http.MethodPost, c.baseURL+"/freeBusy", body, &out); err != nil {
		return false, err
	}

	cal, ok := out.Calendars[link.CalendarID]
	if !ok {
		return false, fmt.Errorf("%w: freebusy response missing calendar %q", calendar.ErrUnavailable, link.CalendarID)
	}
	if len(cal.Errors) > 0 {
		return false, fmt.Errorf("%w: freebusy error %q", calendar.ErrUnavailable, cal.Errors[0].Reason)
	}

	for _, b := range cal.Busy {
		if domain.Overlaps(start, end, b.Start, b.End) {
			return false, nil
		}
	}
	return true, nil
}

func (c *Client) CreateEvent(ctx context.Context, link domain.StaffCalendarLink, snap calendar.EventSnapshot) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	err := c.do(ctx, link, http.MethodPost, c.eventsURL(link, ""), eventBody(snap), &out)
	if err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", fmt.Errorf("%w: event create returned no id", calendar.ErrUnavailable)
	}
	return out.ID, nil
}

func (c *Client) UpdateEvent(ctx context.Context, link domain.StaffCalendarLink, externalEventID string, snap calendar.EventSnapshot) error {
	return c.do(ctx, link, http.MethodPut, c.eventsURL(link, externalEventID), eventBody(snap), nil)
}

func (c *Client) DeleteEvent(ctx context.Context, link domain.StaffCalendarLink, externalEventID string) error {
	return c.do(ctx, link, http.MethodDelete, c.eventsURL(link, externalEventID), nil, nil)
}

func (c *Client) eventsURL(link domain.StaffCalendarLink, eventID string) string {
	u := c.baseURL + "/calendars/" + url.PathEscape(link.CalendarID) + "/events"
	if eventID != "" {
		u += "/" + url.PathEscape(eventID)
	}
	return u
}

func eventBody(snap calendar.EventSnapshot) map[string]any {
	return map[string]any{
		"summary":     snap.Summary,
		"description": snap.Notes,
		"start":       map[string]string{"dateTime": snap.Start.UTC().Format(time.RFC3339)},
		"end":         map[string]string{"dateTime": snap.End.UTC().Format(time.RFC3339)},
		"extendedProperties": map[string]any{
			"private": map[string]string{"salonschedAppointmentId": snap.AppointmentID.String()},
		},
	}
}

func (c *Client) do(ctx context.Context, link domain.StaffCalendarLink, method, apiURL string, body any, out any) error {
	token, err := c.accessToken(ctx, link)
	if err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", calendar.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	// A mirror delete racing a manual cleanup in the external calendar is
	// not a failure.
	if method == http.MethodDelete && (resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone) {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: status %d: %s", calendar.ErrUnavailable, resp.StatusCode, string(msg))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", calendar.ErrUnavailable, err)
	}
	return nil
}

func (c *Client) accessToken(ctx context.Context, link domain.StaffCalendarLink) (string, error) {
	// Keep oauth's own HTTP client on the same timeout budget.
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.http)
	tok, err := c.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: link.RefreshToken}).Token()
	if err != nil {
		return "", fmt.Errorf("%w: token refresh: %v", calendar.ErrUnavailable, err)
	}
	return tok.AccessToken, nil
}
