package domain

// Work order statuses. COMPLETED and CANCELLED are terminal.
const (
	StatusOpen       = "OPEN"
	StatusAssigned   = "ASSIGNED"
	StatusInProgress = "IN_PROGRESS"
	StatusCompleted  = "COMPLETED"
	StatusCancelled  = "CANCELLED"
)

// Terminal reports whether no further transition is permitted from status.
func Terminal(status string) bool {
	return status == StatusCompleted || status == StatusCancelled
}

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
	Version            int64   `json:"version"`
	CreatedAt          string  `json:"created_at" format:"date-time"`
	UpdatedAt          string  `json:"updated_at" format:"date-time"`
}

type WorkOrder struct {
	ID             int64    `json:"id"`
	ServiceOrderID string   `json:"service_order_id"`
	VehicleID      int64    `json:"vehicle_id"`
	ManagerID      *string  `json:"manager_id,omitempty"`
	MechanicID     *string  `json:"mechanic_id,omitempty"`
	Status         string   `json:"status" enum:"OPEN,ASSIGNED,IN_PROGRESS,COMPLETED,CANCELLED"`
	Description    string   `json:"description,omitempty"`
	ScheduledAt    *string  `json:"scheduled_at,omitempty" format:"date-time"`
	StartedAt      *string  `json:"started_at,omitempty" format:"date-time"`
	CompletedAt    *string  `json:"completed_at,omitempty" format:"date-time"`
	EstimatedCost  *float64 `json:"estimated_cost,omitempty"`
	FinalCost      *float64 `json:"final_cost,omitempty"`
	CreatedAt      string   `json:"created_at" format:"date-time"`
	UpdatedAt      string   `json:"updated_at" format:"date-time"`
}

type Customer struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type ServiceManager struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Mechanic struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Event struct {
	ID             int64  `json:"id"`
	TS             string `json:"ts" format:"date-time"`
	Type           string `json:"type"`
	ServiceOrderID string `json:"service_order_id,omitempty"`
	ActorID        string `json:"actor_id"`
	Payload        string `json:"payload_json"`
}

// ServiceStatus is the customer-facing view of one work order joined with
// its vehicle.
type ServiceStatus struct {
	ServiceOrderID     string   `json:"service_order_id"`
	RegistrationNumber string   `json:"registration_number"`
	VIN                string   `json:"vin"`
	Make               string   `json:"make,omitempty"`
	Model              string   `json:"model,omitempty"`
	Status             string   `json:"status"`
	ScheduledAt        *string  `json:"scheduled_at,omitempty" format:"date-time"`
	CompletedAt        *string  `json:"completed_at,omitempty" format:"date-time"`
	EstimatedCost      *float64 `json:"estimated_cost,omitempty"`
	FinalCost          *float64 `json:"final_cost,omitempty"`
}
