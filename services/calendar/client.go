package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"fitbook/config"
	"fitbook/models"
)

// SyncError marks a provider-side failure. It is recovered locally via
// backoff retry and never surfaced as a booking failure.
type SyncError struct {
	BookingID string
	Err       error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("calendar sync for booking %s failed: %v", e.BookingID, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }

// HTTPCalendarClient implements CalendarClient against the configured
// calendar API.
type HTTPCalendarClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewHTTPCalendarClient() *HTTPCalendarClient {
	return &HTTPCalendarClient{
		baseURL: config.AppConfig.CalendarAPIBaseURL,
		apiKey:  config.AppConfig.CalendarAPIKey,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

type eventPayload struct {
	BookingID string    `json:"bookingId"`
	TrainerID string    `json:"trainerId"`
	ClientID  string    `json:"clientId"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Status    string    `json:"status"`
}

type eventResponse struct {
	EventID string `json:"eventId"`
}

func (c *HTTPCalendarClient) UpsertEvent(ctx context.Context, b *models.Booking) (string, error) {
	payload := eventPayload{
		BookingID: b.ID,
		TrainerID: b.TrainerID,
		ClientID:  b.ClientID,
		Start:     b.ScheduledAt,
		End:       b.ScheduledAt.Add(time.Duration(b.DurationMinutes) * time.Minute),
		Status:    string(b.Status),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", &SyncError{BookingID: b.ID, Err: err}
	}

	method := http.MethodPost
	url := c.baseURL + "/events"
	if b.CalendarEventID != "" {
		method = http.MethodPut
		url = c.baseURL + "/events/" + b.CalendarEventID
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return "", &SyncError{BookingID: b.ID, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &SyncError{BookingID: b.ID, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &SyncError{BookingID: b.ID, Err: fmt.Errorf("calendar API returned %d: %s", resp.StatusCode, msg)}
	}

	var out eventResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &SyncError{BookingID: b.ID, Err: err}
	}
	if out.EventID == "" {
		out.EventID = b.CalendarEventID
	}
	return out.EventID, nil
}

func (c *HTTPCalendarClient) DeleteEvent(ctx context.Context, b *models.Booking) error {
	if b.CalendarEventID == "" {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/events/"+b.CalendarEventID, nil)
	if err != nil {
		return &SyncError{BookingID: b.ID, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return &SyncError{BookingID: b.ID, Err: err}
	}
	defer resp.Body.Close()

	// A vanished event is the desired end state, not a failure.
	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &SyncError{BookingID: b.ID, Err: fmt.Errorf("calendar API returned %d: %s", resp.StatusCode, msg)}
	}
	return nil
}
