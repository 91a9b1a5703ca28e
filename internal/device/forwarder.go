package device

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/drivemode/internal/model"
)

// Verdict is the backend's answer for one message.
type Verdict int

const (
	VerdictUnknown Verdict = iota
	VerdictEmergency
	VerdictNotEmergency
)

func (v Verdict) String() string {
	switch v {
	case VerdictEmergency:
		return "emergency"
	case VerdictNotEmergency:
		return "not_emergency"
	default:
		return "unknown"
	}
}

// EmergencyClient asks the backend whether a message text is an emergency.
type EmergencyClient struct {
	url        string
	httpClient *http.Client
}

// NewEmergencyClient targets <backendURL>/api/check-emergency. A zero timeout
// means 30s.
func NewEmergencyClient(backendURL string, timeout time.Duration) *EmergencyClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &EmergencyClient{
		url:        strings.TrimRight(backendURL, "/") + "/api/check-emergency",
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Check maps 200 to VerdictEmergency and 204 to VerdictNotEmergency. Any
// other status is VerdictUnknown with a non-nil error.
func (c *EmergencyClient) Check(ctx context.Context, text string) (Verdict, error) {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return VerdictUnknown, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return VerdictUnknown, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return VerdictUnknown, fmt.Errorf("check emergency: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case http.StatusOK:
		return VerdictEmergency, nil
	case http.StatusNoContent:
		return VerdictNotEmergency, nil
	default:
		return VerdictUnknown, fmt.Errorf("check emergency: unexpected status %d", resp.StatusCode)
	}
}

// EmergencyChecker classifies a message text.
type EmergencyChecker interface {
	Check(ctx context.Context, text string) (Verdict, error)
}

// Forwarder sends each received SMS to the classifier. An emergency is
// reported as a missed call and sounds the alarm.
type Forwarder struct {
	checker EmergencyChecker
	submit  MissedCallSubmitter
	alerter *Alerter
	logger  *slog.Logger
}

func NewForwarder(checker EmergencyChecker, submit MissedCallSubmitter, alerter *Alerter, logger *slog.Logger) *Forwarder {
	return &Forwarder{
		checker: checker,
		submit:  submit,
		alerter: alerter,
		logger:  logger.With("component", "forwarder"),
	}
}

// Handle classifies one message. Classification failures are logged and
// treated as not an emergency; only a failed submission is returned.
func (f *Forwarder) Handle(ctx context.Context, msg SMS) (Verdict, error) {
	verdict, err := f.checker.Check(ctx, msg.Text)
	if err != nil {
		f.logger.Error("classify sms", "sender", msg.Sender, "error", err)
		return VerdictUnknown, nil
	}
	if verdict != VerdictEmergency {
		f.logger.Debug("sms not classified as emergency", "sender", msg.Sender, "verdict", verdict)
		return verdict, nil
	}

	f.logger.Info("emergency confirmed", "sender", msg.Sender)
	if err := f.submit.SubmitMissedCall(ctx, MissedCallRequest{
		Number:      msg.Sender,
		Status:      model.CallStatusMissed,
		IsEmergency: true,
	}); err != nil {
		return verdict, err
	}

	err = f.alerter.Alert(ctx)
	switch {
	case errors.Is(err, ErrNoPolicyAccess):
		f.logger.Error("cannot override do-not-disturb to play alert", "error", err)
	case err != nil:
		f.logger.Error("play emergency alert", "error", err)
	}
	return verdict, nil
}
