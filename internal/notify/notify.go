package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"pitstop/internal/config"
)

const defaultTimeout = 5 * time.Second

// BookingNotice is the payload for a booking confirmation mail.
type BookingNotice struct {
	To                 string  `json:"to"`
	From               string  `json:"from"`
	CustomerName       string  `json:"user_name"`
	ServiceOrderID     string  `json:"service_order_id"`
	VIN                string  `json:"vehicle_vin"`
	RegistrationNumber string  `json:"registration_number"`
	Make               string  `json:"make,omitempty"`
	Model              string  `json:"model,omitempty"`
	ScheduledAt        *string `json:"scheduled_at,omitempty"`
	CreatedAt          string  `json:"created_at"`
}

// CompletionNotice is the payload for a service completion mail. It is a
// snapshot taken at commit time; the dispatcher never reads state afterwards.
type CompletionNotice struct {
	To                 string   `json:"to"`
	From               string   `json:"from"`
	CustomerName       string   `json:"user_name"`
	ServiceOrderID     string   `json:"service_order_id"`
	VIN                string   `json:"vehicle_vin"`
	RegistrationNumber string   `json:"registration_number"`
	Make               string   `json:"make,omitempty"`
	Model              string   `json:"model,omitempty"`
	ManagerName        string   `json:"service_manager,omitempty"`
	MechanicName       string   `json:"mechanic,omitempty"`
	EstimatedCost      *float64 `json:"estimated_cost,omitempty"`
	FinalCost          *float64 `json:"final_cost,omitempty"`
	CompletedAt        string   `json:"completed_at"`
	ServiceDetails     string   `json:"service_details,omitempty"`
	EvidenceURL        string   `json:"service_image_url,omitempty"`
}

// Notifier is the engine's view of the mail collaborator. Implementations
// must not block the caller and must never return delivery problems; the
// engine's state transitions do not depend on the outcome.
type Notifier interface {
	BookingConfirmed(n BookingNotice)
	ServiceCompleted(n CompletionNotice)
}

// Dispatcher posts notices to the external mail collaborator. Each send runs
// on its own goroutine with a bounded timeout; failures are logged with the
// service order id and dropped.
type Dispatcher struct {
	cfg    config.NotifyConfig
	client *http.Client
	logger *log.Logger
}

func NewDispatcher(cfg config.NotifyConfig, logger *log.Logger) *Dispatcher {
	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Dispatcher{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

func (d *Dispatcher) BookingConfirmed(n BookingNotice) {
	if strings.TrimSpace(d.cfg.BookingURL) == "" {
		return
	}
	n.From = d.cfg.From
	go d.post(d.cfg.BookingURL, "booking", n.ServiceOrderID, n)
}

func (d *Dispatcher) ServiceCompleted(n CompletionNotice) {
	if strings.TrimSpace(d.cfg.CompletionURL) == "" {
		return
	}
	n.From = d.cfg.From
	go d.post(d.cfg.CompletionURL, "completion", n.ServiceOrderID, n)
}

func (d *Dispatcher) post(url, kind, serviceOrderID string, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		d.logger.Printf("notify: marshal %s notice for %s failed: %v", kind, serviceOrderID, err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), d.client.Timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		d.logger.Printf("notify: %s request for %s failed: %v", kind, serviceOrderID, err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := d.client.Do(req)
	if err != nil {
		d.logger.Printf("notify: deliver %s notice for %s failed: %v", kind, serviceOrderID, err)
		return
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		d.logger.Printf("notify: deliver %s notice for %s failed: %v", kind, serviceOrderID,
			fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(bodyBytes))))
		return
	}
	d.logger.Printf("notify: %s notice for %s delivered", kind, serviceOrderID)
}

// Nop discards every notice. Used when no collaborator is configured.
type Nop struct{}

func (Nop) BookingConfirmed(BookingNotice) {}

func (Nop) ServiceCompleted(CompletionNotice) {}
