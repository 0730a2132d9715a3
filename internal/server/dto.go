package server

import (
	"pitstop/internal/domain"
)

// Request payloads

type CreateBookingRequest struct {
	CustomerID  string  `json:"customer_id,omitempty"`
	VehicleID   int64   `json:"vehicle_id"`
	Description string  `json:"description,omitempty"`
	ScheduledAt *string `json:"scheduled_at,omitempty" format:"date-time"`
}

type AssignManagerRequest struct {
	ManagerID string `json:"manager_id"`
}

type AssignMechanicRequest struct {
	MechanicID    string  `json:"mechanic_id"`
	EstimatedCost float64 `json:"estimated_cost"`
}

type CompleteRequest struct {
	FinalCost      float64 `json:"final_cost"`
	ServiceDetails string  `json:"service_details,omitempty"`
	EvidenceURL    string  `json:"service_image_url,omitempty"`
}

type UpdateCostsRequest struct {
	EstimatedCost *float64 `json:"estimated_cost,omitempty"`
	FinalCost     *float64 `json:"final_cost,omitempty"`
}

type ProgressRequest struct {
	Note string `json:"note"`
}

type RegisterVehicleRequest struct {
	OwnerID            string `json:"owner_id,omitempty"`
	RegistrationNumber string `json:"registration_number"`
	VIN                string `json:"vin"`
	Make               string `json:"make,omitempty"`
	Model              string `json:"model,omitempty"`
}

// Response payloads

type WorkOrderResponse struct {
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

type VehicleResponse struct {
	ID                 int64   `json:"id"`
	OwnerID            string  `json:"owner_id"`
	RegistrationNumber string  `json:"registration_number"`
	VIN                string  `json:"vin"`
	Make               string  `json:"make,omitempty"`
	Model              string  `json:"model,omitempty"`
	BookedForService   bool    `json:"booked_for_service"`
	ServiceDone        bool    `json:"service_done"`
	AssignedManagerID  *string `json:"assigned_manager_id,omitempty"`
	CreatedAt          string  `json:"created_at" format:"date-time"`
}

type EventResponse struct {
	ID             int64  `json:"id"`
	TS             string `json:"ts" format:"date-time"`
	Type           string `json:"type"`
	ServiceOrderID string `json:"service_order_id,omitempty"`
	ActorID        string `json:"actor_id"`
	Payload        string `json:"payload_json"`
}

func workOrderResponse(wo domain.WorkOrder) WorkOrderResponse {
	return WorkOrderResponse{
		ServiceOrderID: wo.ServiceOrderID,
		VehicleID:      wo.VehicleID,
		ManagerID:      wo.ManagerID,
		MechanicID:     wo.MechanicID,
		Status:         wo.Status,
		Description:    wo.Description,
		ScheduledAt:    wo.ScheduledAt,
		StartedAt:      wo.StartedAt,
		CompletedAt:    wo.CompletedAt,
		EstimatedCost:  wo.EstimatedCost,
		FinalCost:      wo.FinalCost,
		CreatedAt:      wo.CreatedAt,
		UpdatedAt:      wo.UpdatedAt,
	}
}

func mapWorkOrders(items []domain.WorkOrder) []WorkOrderResponse {
	out := make([]WorkOrderResponse, 0, len(items))
	for _, wo := range items {
		out = append(out, workOrderResponse(wo))
	}
	return out
}

func vehicleResponse(v domain.Vehicle) VehicleResponse {
	return VehicleResponse{
		ID:                 v.ID,
		OwnerID:            v.OwnerID,
		RegistrationNumber: v.RegistrationNumber,
		VIN:                v.VIN,
		Make:               v.Make,
		Model:              v.Model,
		BookedForService:   v.BookedForService,
		ServiceDone:        v.ServiceDone,
		AssignedManagerID:  v.AssignedManagerID,
		CreatedAt:          v.CreatedAt,
	}
}

func mapVehicles(items []domain.Vehicle) []VehicleResponse {
	out := make([]VehicleResponse, 0, len(items))
	for _, v := range items {
		out = append(out, vehicleResponse(v))
	}
	return out
}

func mapEvents(items []domain.Event) []EventResponse {
	out := make([]EventResponse, 0, len(items))
	for _, evt := range items {
		out = append(out, EventResponse{
			ID:             evt.ID,
			TS:             evt.TS,
			Type:           evt.Type,
			ServiceOrderID: evt.ServiceOrderID,
			ActorID:        evt.ActorID,
			Payload:        evt.Payload,
		})
	}
	return out
}
