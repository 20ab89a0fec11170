package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// BridgeGateway is the HTTP implementation of Gateway, talking to the
// device push bridge that owns the actual OS notification
// registrations.
type BridgeGateway struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *zap.Logger
}

// NewBridgeGateway creates a gateway against the push bridge at baseURL.
func NewBridgeGateway(baseURL, apiKey string, logger *zap.Logger) *BridgeGateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BridgeGateway{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
	}
}

// CheckPermissions reports whether the device has authorized reminders.
func (g *BridgeGateway) CheckPermissions(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/v1/permissions", nil)
	if err != nil {
		return false, err
	}
	g.authorize(req)

	resp, err := g.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("permission check: %w", err)
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("permission check: unexpected status %d", resp.StatusCode)
	}

	var body struct {
		Granted bool `json:"granted"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, fmt.Errorf("permission check: decode: %w", err)
	}
	return body.Granted, nil
}

// ScheduleDailyReminder registers one repeating daily reminder and
// returns the bridge-assigned reminder id.
func (g *BridgeGateway) ScheduleDailyReminder(ctx context.Context, r ReminderRequest) (string, error) {
	payload, err := json.Marshal(struct {
		ReminderRequest
		Category string `json:"category"`
		Repeat   string `json:"repeat"`
	}{
		ReminderRequest: r,
		Category:        Category(r.MedicationID),
		Repeat:          "daily",
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/reminders", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	g.authorize(req)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("schedule reminder: %w", err)
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("schedule reminder: unexpected status %d", resp.StatusCode)
	}

	var body struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("schedule reminder: decode: %w", err)
	}
	return body.ID, nil
}

// CancelCategory retracts every reminder in the category. A 404 from
// the bridge means there was nothing to cancel, which is a success.
func (g *BridgeGateway) CancelCategory(ctx context.Context, category string) error {
	u := g.baseURL + "/v1/reminders?category=" + url.QueryEscape(category)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, u, nil)
	if err != nil {
		return err
	}
	g.authorize(req)

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("cancel category: %w", err)
	}
	defer drain(resp)

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent, http.StatusNotFound:
		return nil
	default:
		return fmt.Errorf("cancel category: unexpected status %d", resp.StatusCode)
	}
}

func (g *BridgeGateway) authorize(req *http.Request) {
	if g.apiKey != "" {
		req.Header.Set("X-API-Key", g.apiKey)
	}
}

func drain(resp *http.Response) {
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
