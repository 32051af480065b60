package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/crewdeskhq/crewdesk/internal/store"
	"github.com/crewdeskhq/crewdesk/internal/worker"
)

// JobTypeNotifyCustomer is the job type for outbound customer SMS.
const JobTypeNotifyCustomer = "notify_customer"

type notifyPayload struct {
	CustomerID string `json:"customer_id"`
	Body       string `json:"body"`
}

// Processor executes notify_customer jobs.
type Processor struct {
	customers store.CustomerRepo
	sender    SMSSender
}

func NewProcessor(customers store.CustomerRepo, sender SMSSender) *Processor {
	return &Processor{customers: customers, sender: sender}
}

// Register installs the notification handler on the registry.
func (p *Processor) Register(r *worker.Registry) {
	r.Register(JobTypeNotifyCustomer, p.HandleNotifyCustomer)
}

// HandleNotifyCustomer sends the payload body to the customer's phone.
// A missing customer or phone number cannot be fixed by retrying; transport
// failures can.
func (p *Processor) HandleNotifyCustomer(ctx context.Context, payload string) error {
	var body notifyPayload
	if err := json.Unmarshal([]byte(payload), &body); err != nil {
		return worker.NonRetryable(fmt.Errorf("notify_customer payload: %w", err))
	}
	if body.CustomerID == "" {
		return worker.NonRetryable(errors.New("notify_customer payload missing customer_id"))
	}
	if body.Body == "" {
		return worker.NonRetryable(errors.New("notify_customer payload missing body"))
	}

	customer, err := p.customers.GetCustomer(body.CustomerID)
	if err != nil {
		return err
	}
	if customer == nil {
		return worker.NonRetryable(fmt.Errorf("customer %s not found", body.CustomerID))
	}
	if customer.Phone == "" {
		return worker.NonRetryable(fmt.Errorf("customer %s has no phone number", customer.ID))
	}

	if err := p.sender.SendSMS(ctx, customer.Phone, body.Body); err != nil {
		return err
	}
	slog.Info("Processor: customer notified", "customerID", customer.ID)
	return nil
}
