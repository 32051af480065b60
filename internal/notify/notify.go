// Package notify sends customer-facing SMS notifications through Twilio.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/crewdeskhq/crewdesk/internal/worker"
)

// SMSSender sends a text message to a phone number.
type SMSSender interface {
	SendSMS(ctx context.Context, to string, body string) error
}

// Opts holds configuration options for the Twilio SMS client.
type Opts struct {
	AccountSID string
	AuthToken  string
	FromNumber string
}

// Option defines a configuration option for the Twilio SMS client.
type Option func(*Opts)

func WithAccountSID(sid string) Option {
	return func(o *Opts) { o.AccountSID = sid }
}

func WithAuthToken(token string) Option {
	return func(o *Opts) { o.AuthToken = token }
}

func WithFromNumber(from string) Option {
	return func(o *Opts) { o.FromNumber = from }
}

// TwilioClient wraps the Twilio REST API for outbound SMS.
type TwilioClient struct {
	client     *twilio.RestClient
	fromNumber string // E.164 format, e.g. "+15550100"
}

var _ SMSSender = (*TwilioClient)(nil)

// NewTwilioClient creates the SMS client. Options missing at the call site
// fall back to the TWILIO_* environment variables.
func NewTwilioClient(opts ...Option) (*TwilioClient, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.AccountSID == "" {
		cfg.AccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	}
	if cfg.AuthToken == "" {
		cfg.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	}
	if cfg.FromNumber == "" {
		cfg.FromNumber = os.Getenv("TWILIO_FROM_NUMBER")
	}

	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, fmt.Errorf("account SID and auth token must be provided")
	}
	if cfg.FromNumber == "" {
		return nil, fmt.Errorf("from number must be provided")
	}

	client := twilio.NewRestClientWithParams(
		twilio.ClientParams{
			Username: cfg.AccountSID,
			Password: cfg.AuthToken,
		},
	)

	return &TwilioClient{
		client:     client,
		fromNumber: cfg.FromNumber,
	}, nil
}

// SendSMS sends a text message using the Twilio API.
func (c *TwilioClient) SendSMS(ctx context.Context, to string, body string) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(c.fromNumber)
	params.SetBody(body)

	_, err := c.client.Api.CreateMessage(params)
	if err != nil {
		slog.Error("Twilio SendSMS failed", "to", to, "error", err)
		return fmt.Errorf("failed to send SMS to %s: %w", to, err)
	}

	slog.Debug("Twilio SMS sent", "to", to)
	return nil
}

// DisabledClient stands in for the Twilio client when the TWILIO_* variables
// are not set. Notification jobs fail permanently instead of retrying against
// a sender that will never exist.
type DisabledClient struct{}

var _ SMSSender = (*DisabledClient)(nil)

func NewDisabledClient() *DisabledClient {
	return &DisabledClient{}
}

func (d *DisabledClient) SendSMS(ctx context.Context, to string, body string) error {
	return worker.NonRetryable(fmt.Errorf("SMS notifications are not configured"))
}

// MockClient records sent messages for tests.
type MockClient struct {
	SentMessages []SentMessage
	Err          error // returned by SendSMS when set
}

type SentMessage struct {
	To   string
	Body string
}

var _ SMSSender = (*MockClient)(nil)

func NewMockClient() *MockClient {
	return &MockClient{SentMessages: []SentMessage{}}
}

func (m *MockClient) SendSMS(ctx context.Context, to string, body string) error {
	if m.Err != nil {
		return m.Err
	}
	m.SentMessages = append(m.SentMessages, SentMessage{To: to, Body: body})
	return nil
}
