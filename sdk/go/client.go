package pitstopsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Pitstop HTTP API client.
type Client struct {
	BaseURL     string
	BearerToken string
	ActorID     string // legacy X-Actor-Id auth, used when no bearer token is set
	ActorRole   string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// WorkOrder represents the API work order model.
type WorkOrder struct {
	ServiceOrderID string   `json:"service_order_id"`
	VehicleID      int64    `json:"vehicle_id"`
	ManagerID      *string  `json:"manager_id,omitempty"`
	MechanicID     *string  `json:"mechanic_id,omitempty"`
	Status         string   `json:"status"`
	Description    string   `json:"description,omitempty"`
	ScheduledAt    *string  `json:"scheduled_at,omitempty"`
	StartedAt      *string  `json:"started_at,omitempty"`
	CompletedAt    *string  `json:"completed_at,omitempty"`
	EstimatedCost  *float64 `json:"estimated_cost,omitempty"`
	FinalCost      *float64 `json:"final_cost,omitempty"`
	CreatedAt      string   `json:"created_at"`
	UpdatedAt      string   `json:"updated_at"`
}

// Vehicle represents the API vehicle model.
type Vehicle struct {
	ID                 int64   `json:"id"`
	OwnerID            string  `json:"owner_id"`
	RegistrationNumber string  `json:"registration_number"`
	VIN                string  `json:"vin"`
	Make               string  `json:"make,omitempty"`
	Model              string  `json:"model,omitempty"`
	BookedForService   bool    `json:"booked_for_service"`
	ServiceDone        bool    `json:"service_done"`
	AssignedManagerID  *string `json:"assigned_manager_id,omitempty"`
	CreatedAt          string  `json:"created_at"`
}

// Event represents a lifecycle log entry.
type Event struct {
	ID             int64  `json:"id"`
	TS             string `json:"ts"`
	Type           string `json:"type"`
	ServiceOrderID string `json:"service_order_id,omitempty"`
	ActorID        string `json:"actor_id"`
	Payload        string `json:"payload_json"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// RegisterVehicle registers a vehicle for a customer.
func (c *Client) RegisterVehicle(ctx context.Context, ownerID, registrationNumber, vin, make_, model string) (Vehicle, error) {
	body := map[string]any{
		"owner_id":            ownerID,
		"registration_number": registrationNumber,
		"vin":                 vin,
		"make":                make_,
		"model":               model,
	}
	var resp Vehicle
	err := c.do(ctx, http.MethodPost, "v0/vehicles", body, &resp)
	return resp, err
}

// BookService books a vehicle in for service and returns the new work order.
func (c *Client) BookService(ctx context.Context, customerID string, vehicleID int64, description string) (WorkOrder, error) {
	body := map[string]any{
		"customer_id": customerID,
		"vehicle_id":  vehicleID,
		"description": description,
	}
	var resp WorkOrder
	err := c.do(ctx, http.MethodPost, "v0/workorders", body, &resp)
	return resp, err
}

// WorkOrder fetches one work order by service order id.
func (c *Client) WorkOrder(ctx context.Context, serviceOrderID string) (WorkOrder, error) {
	var resp WorkOrder
	endpoint := fmt.Sprintf("v0/workorders/%s", url.PathEscape(serviceOrderID))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// OpenWorkOrders lists unassigned work orders.
func (c *Client) OpenWorkOrders(ctx context.Context) ([]WorkOrder, error) {
	var resp []WorkOrder
	err := c.do(ctx, http.MethodGet, "v0/workorders/open", nil, &resp)
	return resp, err
}

// AssignManager puts a service manager on the order.
func (c *Client) AssignManager(ctx context.Context, serviceOrderID, managerID string) (WorkOrder, error) {
	var resp WorkOrder
	endpoint := fmt.Sprintf("v0/workorders/%s/assign-manager", url.PathEscape(serviceOrderID))
	err := c.do(ctx, http.MethodPost, endpoint, map[string]any{"manager_id": managerID}, &resp)
	return resp, err
}

// AssignMechanic puts a mechanic and a cost estimate on the order.
func (c *Client) AssignMechanic(ctx context.Context, serviceOrderID, mechanicID string, estimatedCost float64) (WorkOrder, error) {
	var resp WorkOrder
	endpoint := fmt.Sprintf("v0/workorders/%s/assign-mechanic", url.PathEscape(serviceOrderID))
	err := c.do(ctx, http.MethodPost, endpoint, map[string]any{
		"mechanic_id":    mechanicID,
		"estimated_cost": estimatedCost,
	}, &resp)
	return resp, err
}

// Start begins work on an assigned order.
func (c *Client) Start(ctx context.Context, serviceOrderID string) (WorkOrder, error) {
	var resp WorkOrder
	endpoint := fmt.Sprintf("v0/workorders/%s/start", url.PathEscape(serviceOrderID))
	err := c.do(ctx, http.MethodPost, endpoint, map[string]any{}, &resp)
	return resp, err
}

// Complete finishes an in-progress order with the final cost.
func (c *Client) Complete(ctx context.Context, serviceOrderID string, finalCost float64, serviceDetails string) (WorkOrder, error) {
	var resp WorkOrder
	endpoint := fmt.Sprintf("v0/workorders/%s/complete", url.PathEscape(serviceOrderID))
	err := c.do(ctx, http.MethodPost, endpoint, map[string]any{
		"final_cost":      finalCost,
		"service_details": serviceDetails,
	}, &resp)
	return resp, err
}

// Cancel aborts an order that has not started.
func (c *Client) Cancel(ctx context.Context, serviceOrderID string) (WorkOrder, error) {
	var resp WorkOrder
	endpoint := fmt.Sprintf("v0/workorders/%s/cancel", url.PathEscape(serviceOrderID))
	err := c.do(ctx, http.MethodPost, endpoint, map[string]any{}, &resp)
	return resp, err
}

// Events returns recent lifecycle events, optionally scoped to one order.
func (c *Client) Events(ctx context.Context, serviceOrderID string, limit int) ([]Event, error) {
	endpoint := "v0/events"
	params := url.Values{}
	if serviceOrderID != "" {
		params.Set("service_order_id", serviceOrderID)
	}
	if limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", limit))
	}
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	var resp []Event
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.ActorID != "":
		req.Header.Set("X-Actor-Id", c.ActorID)
		if c.ActorRole != "" {
			req.Header.Set("X-Actor-Role", c.ActorRole)
		}
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
