package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"pitstop/internal/config"
	"pitstop/internal/domain"
	"pitstop/internal/events"
	"pitstop/internal/notify"
	"pitstop/internal/repo"
)

// casAttempts bounds the optimistic-concurrency retry loop. Contention
// windows are short (two staff members racing on one order), so there is no
// backoff between attempts.
const casAttempts = 3

// Engine owns every write to work_orders.status and the vehicle booking
// flags. Each operation executes as one transaction covering both tables;
// notification dispatch happens only after the transaction commits.
type Engine struct {
	DB       *sql.DB
	Repo     repo.Repo
	Events   events.Writer
	Notifier notify.Notifier
	Config   *config.Config
	Now      func() time.Time
}

func New(db *sql.DB, cfg *config.Config, n notify.Notifier) Engine {
	if n == nil {
		n = notify.Nop{}
	}
	return Engine{
		DB:       db,
		Repo:     repo.Repo{DB: db},
		Events:   events.Writer{DB: db},
		Notifier: n,
		Config:   cfg,
		Now:      time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) nowRFC3339() string {
	return e.now().UTC().Format(time.RFC3339)
}

// allowedTransitions is the work order state machine as a directed graph.
// ASSIGNED loops on itself: manager and mechanic assignment both land there
// and either may happen first.
var allowedTransitions = map[string][]string{
	domain.StatusOpen:       {domain.StatusAssigned, domain.StatusCancelled},
	domain.StatusAssigned:   {domain.StatusAssigned, domain.StatusInProgress, domain.StatusCancelled},
	domain.StatusInProgress: {domain.StatusCompleted},
}

func ensureTransition(wo domain.WorkOrder, to string) error {
	for _, allowed := range allowedTransitions[wo.Status] {
		if allowed == to {
			return nil
		}
	}
	return InvalidTransitionError{ServiceOrderID: wo.ServiceOrderID, Current: wo.Status, Target: to}
}

func newServiceOrderID() string {
	return "SRV-" + uuid.NewString()[:8]
}

// BookingOptions are parameters for creating a work order.
type BookingOptions struct {
	CustomerID  string
	VehicleID   int64
	Description string
	ScheduledAt string
	ActorID     string
}

// CreateBooking validates vehicle ownership and availability, creates a work
// order in OPEN and flips the vehicle's booking flag, all in one transaction.
// The booking confirmation mail is dispatched best-effort after commit.
func (e Engine) CreateBooking(ctx context.Context, opts BookingOptions) (domain.WorkOrder, error) {
	if strings.TrimSpace(opts.CustomerID) == "" {
		return domain.WorkOrder{}, errors.New("customer_id required")
	}
	customer, err := e.Repo.GetCustomer(ctx, opts.CustomerID)
	if err != nil {
		return domain.WorkOrder{}, fmt.Errorf("customer %s: %w", opts.CustomerID, err)
	}
	if _, err := e.Repo.GetVehicleForOwner(ctx, opts.VehicleID, opts.CustomerID); err != nil {
		return domain.WorkOrder{}, fmt.Errorf("vehicle %d: %w", opts.VehicleID, err)
	}

	var created domain.WorkOrder
	var booked domain.Vehicle
	err = e.withRetry(ctx, newServiceOrderID(), func(tx *sql.Tx, serviceOrderID string) error {
		vehicle, err := e.Repo.GetVehicleTx(ctx, tx, opts.VehicleID)
		if err != nil {
			return err
		}
		if vehicle.BookedForService {
			return AlreadyBookedError{VehicleID: vehicle.ID}
		}
		// The booking flag mirrors order state but the orders table is
		// authoritative: a non-terminal order blocks a second booking even
		// when the flag is out of sync.
		if _, err := e.Repo.OpenWorkOrderForVehicleTx(ctx, tx, vehicle.ID); err == nil {
			return AlreadyBookedError{VehicleID: vehicle.ID}
		} else if !errors.Is(err, repo.ErrNotFound) {
			return err
		}
		now := e.nowRFC3339()
		wo := domain.WorkOrder{
			ServiceOrderID: serviceOrderID,
			VehicleID:      vehicle.ID,
			Status:         domain.StatusOpen,
			Description:    strings.TrimSpace(opts.Description),
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if s := strings.TrimSpace(opts.ScheduledAt); s != "" {
			wo.ScheduledAt = &s
		}
		id, err := e.Repo.InsertWorkOrderTx(ctx, tx, wo)
		if err != nil {
			return err
		}
		wo.ID = id

		vehicle.BookedForService = true
		vehicle.ServiceDone = false
		vehicle.UpdatedAt = now
		if err := e.Repo.UpdateVehicleCAS(ctx, tx, vehicle); err != nil {
			return err
		}
		if err := e.Events.Append(ctx, tx, "workorder.created", wo.ServiceOrderID, opts.ActorID, events.EventPayload{
			"vehicle_id": vehicle.ID,
			"status":     wo.Status,
		}); err != nil {
			return err
		}
		created = wo
		booked = vehicle
		return nil
	})
	if err != nil {
		return domain.WorkOrder{}, err
	}

	e.Notifier.BookingConfirmed(notify.BookingNotice{
		To:                 customer.Email,
		CustomerName:       customer.Name,
		ServiceOrderID:     created.ServiceOrderID,
		VIN:                booked.VIN,
		RegistrationNumber: booked.RegistrationNumber,
		Make:               booked.Make,
		Model:              booked.Model,
		ScheduledAt:        created.ScheduledAt,
		CreatedAt:          created.CreatedAt,
	})
	return created, nil
}

// AssignManager puts a manager on the order and moves it to ASSIGNED.
// Re-assignment overwrites until the order moves past ASSIGNED.
func (e Engine) AssignManager(ctx context.Context, serviceOrderID, managerID, actorID string) (domain.WorkOrder, error) {
	manager, err := e.Repo.GetManager(ctx, managerID)
	if err != nil {
		return domain.WorkOrder{}, fmt.Errorf("service manager %s: %w", managerID, err)
	}
	return e.transition(ctx, serviceOrderID, func(wo *domain.WorkOrder, v *domain.Vehicle, now string) (string, events.EventPayload, error) {
		if err := ensureTransition(*wo, domain.StatusAssigned); err != nil {
			return "", nil, err
		}
		wo.ManagerID = &manager.ID
		wo.Status = domain.StatusAssigned
		v.AssignedManagerID = &manager.ID
		v.BookedForService = true
		v.ServiceDone = false
		return "workorder.manager_assigned", events.EventPayload{"manager_id": manager.ID}, nil
	}, actorID)
}

// AssignMechanic puts a mechanic and an estimate on the order. Valid from
// OPEN or ASSIGNED; idempotent at the status level.
func (e Engine) AssignMechanic(ctx context.Context, serviceOrderID, mechanicID string, estimatedCost float64, actorID string) (domain.WorkOrder, error) {
	mechanic, err := e.Repo.GetMechanic(ctx, mechanicID)
	if err != nil {
		return domain.WorkOrder{}, fmt.Errorf("mechanic %s: %w", mechanicID, err)
	}
	return e.transition(ctx, serviceOrderID, func(wo *domain.WorkOrder, v *domain.Vehicle, now string) (string, events.EventPayload, error) {
		if err := ensureTransition(*wo, domain.StatusAssigned); err != nil {
			return "", nil, err
		}
		wo.MechanicID = &mechanic.ID
		wo.EstimatedCost = &estimatedCost
		wo.Status = domain.StatusAssigned
		v.BookedForService = true
		v.ServiceDone = false
		return "workorder.mechanic_assigned", events.EventPayload{"mechanic_id": mechanic.ID, "estimated_cost": estimatedCost}, nil
	}, actorID)
}

// Start moves an ASSIGNED order to IN_PROGRESS and stamps started_at. When
// mechanicID is non-empty the order must be assigned to that mechanic.
func (e Engine) Start(ctx context.Context, serviceOrderID, mechanicID, actorID string) (domain.WorkOrder, error) {
	return e.transition(ctx, serviceOrderID, func(wo *domain.WorkOrder, v *domain.Vehicle, now string) (string, events.EventPayload, error) {
		if err := requireAssignedMechanic(*wo, mechanicID); err != nil {
			return "", nil, err
		}
		if err := ensureTransition(*wo, domain.StatusInProgress); err != nil {
			return "", nil, err
		}
		wo.Status = domain.StatusInProgress
		if wo.StartedAt == nil {
			wo.StartedAt = &now
		}
		v.BookedForService = true
		v.ServiceDone = false
		return "workorder.started", events.EventPayload{}, nil
	}, actorID)
}

// CompleteOptions are parameters for finishing a work order.
type CompleteOptions struct {
	ServiceOrderID string
	MechanicID     string // non-empty restricts to the assigned mechanic
	FinalCost      float64
	ServiceDetails string
	EvidenceURL    string
	ActorID        string
}

// Complete moves an IN_PROGRESS order to COMPLETED, stamps completed_at and
// the final cost, resets the vehicle to (booked=false, done=true) and clears
// its assigned manager. The completion mail is dispatched after commit with a
// snapshot of the committed state; delivery failure never surfaces here.
func (e Engine) Complete(ctx context.Context, opts CompleteOptions) (domain.WorkOrder, error) {
	wo, err := e.transition(ctx, opts.ServiceOrderID, func(wo *domain.WorkOrder, v *domain.Vehicle, now string) (string, events.EventPayload, error) {
		if err := requireAssignedMechanic(*wo, opts.MechanicID); err != nil {
			return "", nil, err
		}
		if err := ensureTransition(*wo, domain.StatusCompleted); err != nil {
			return "", nil, err
		}
		wo.Status = domain.StatusCompleted
		if wo.CompletedAt == nil {
			wo.CompletedAt = &now
		}
		finalCost := opts.FinalCost
		wo.FinalCost = &finalCost
		if details := strings.TrimSpace(opts.ServiceDetails); details != "" {
			wo.Description = appendLine(wo.Description, "Service Details: "+details)
		}
		v.ServiceDone = true
		v.BookedForService = false
		v.AssignedManagerID = nil
		return "workorder.completed", events.EventPayload{"final_cost": finalCost}, nil
	}, opts.ActorID)
	if err != nil {
		return domain.WorkOrder{}, err
	}

	e.Notifier.ServiceCompleted(e.completionSnapshot(ctx, wo, opts))
	return wo, nil
}

// completionSnapshot assembles the mail payload from committed state.
// Lookup failures degrade the payload instead of failing the completion.
func (e Engine) completionSnapshot(ctx context.Context, wo domain.WorkOrder, opts CompleteOptions) notify.CompletionNotice {
	n := notify.CompletionNotice{
		ServiceOrderID: wo.ServiceOrderID,
		EstimatedCost:  wo.EstimatedCost,
		FinalCost:      wo.FinalCost,
		ServiceDetails: strings.TrimSpace(opts.ServiceDetails),
		EvidenceURL:    strings.TrimSpace(opts.EvidenceURL),
	}
	if wo.CompletedAt != nil {
		n.CompletedAt = *wo.CompletedAt
	}
	if vehicle, err := e.Repo.GetVehicle(ctx, wo.VehicleID); err == nil {
		n.VIN = vehicle.VIN
		n.RegistrationNumber = vehicle.RegistrationNumber
		n.Make = vehicle.Make
		n.Model = vehicle.Model
		if customer, err := e.Repo.GetCustomer(ctx, vehicle.OwnerID); err == nil {
			n.To = customer.Email
			n.CustomerName = customer.Name
		}
	}
	if wo.ManagerID != nil {
		if m, err := e.Repo.GetManager(ctx, *wo.ManagerID); err == nil {
			n.ManagerName = m.Name
		}
	}
	if wo.MechanicID != nil {
		if m, err := e.Repo.GetMechanic(ctx, *wo.MechanicID); err == nil {
			n.MechanicName = m.Name
		}
	}
	return n
}

// UpdateCosts overwrites only the supplied cost fields; a nil field is left
// untouched. Final cost is accepted once the service has started, never
// before.
func (e Engine) UpdateCosts(ctx context.Context, serviceOrderID string, estimatedCost, finalCost *float64, actorID string) (domain.WorkOrder, error) {
	return e.transition(ctx, serviceOrderID, func(wo *domain.WorkOrder, v *domain.Vehicle, now string) (string, events.EventPayload, error) {
		if domain.Terminal(wo.Status) {
			return "", nil, InvalidTransitionError{ServiceOrderID: wo.ServiceOrderID, Current: wo.Status, Target: wo.Status}
		}
		if finalCost != nil && wo.Status != domain.StatusInProgress {
			return "", nil, InvalidTransitionError{ServiceOrderID: wo.ServiceOrderID, Current: wo.Status, Target: wo.Status}
		}
		payload := events.EventPayload{}
		if estimatedCost != nil {
			wo.EstimatedCost = estimatedCost
			payload["estimated_cost"] = *estimatedCost
		}
		if finalCost != nil {
			wo.FinalCost = finalCost
			payload["final_cost"] = *finalCost
		}
		return "workorder.costs_updated", payload, nil
	}, actorID)
}

// Cancel aborts an order that has not started. The vehicle's booking flag
// clears; service_done stays false because no service happened.
func (e Engine) Cancel(ctx context.Context, serviceOrderID, actorID string) (domain.WorkOrder, error) {
	return e.transition(ctx, serviceOrderID, func(wo *domain.WorkOrder, v *domain.Vehicle, now string) (string, events.EventPayload, error) {
		if err := ensureTransition(*wo, domain.StatusCancelled); err != nil {
			return "", nil, err
		}
		wo.Status = domain.StatusCancelled
		v.BookedForService = false
		v.ServiceDone = false
		v.AssignedManagerID = nil
		return "workorder.cancelled", events.EventPayload{}, nil
	}, actorID)
}

// AppendProgress adds a dated progress note to the description without
// touching the status. When mechanicID is non-empty the order must be
// assigned to that mechanic.
func (e Engine) AppendProgress(ctx context.Context, serviceOrderID, mechanicID, note, actorID string) (domain.WorkOrder, error) {
	note = strings.TrimSpace(note)
	if note == "" {
		return domain.WorkOrder{}, errors.New("progress note required")
	}
	return e.transition(ctx, serviceOrderID, func(wo *domain.WorkOrder, v *domain.Vehicle, now string) (string, events.EventPayload, error) {
		if err := requireAssignedMechanic(*wo, mechanicID); err != nil {
			return "", nil, err
		}
		if domain.Terminal(wo.Status) {
			return "", nil, InvalidTransitionError{ServiceOrderID: wo.ServiceOrderID, Current: wo.Status, Target: wo.Status}
		}
		wo.Description = appendLine(wo.Description, note)
		return "workorder.progress", events.EventPayload{"note": note}, nil
	}, actorID)
}

// RegisterVehicle records a vehicle in the registry. Vehicles start
// unbooked; only the lifecycle engine mutates the flags afterwards.
func (e Engine) RegisterVehicle(ctx context.Context, v domain.Vehicle) (domain.Vehicle, error) {
	if _, err := e.Repo.GetCustomer(ctx, v.OwnerID); err != nil {
		return domain.Vehicle{}, fmt.Errorf("customer %s: %w", v.OwnerID, err)
	}
	if strings.TrimSpace(v.VIN) == "" || strings.TrimSpace(v.RegistrationNumber) == "" {
		return domain.Vehicle{}, errors.New("vin and registration_number required")
	}
	now := e.nowRFC3339()
	v.BookedForService = false
	v.ServiceDone = false
	v.AssignedManagerID = nil
	v.Version = 0
	v.CreatedAt = now
	v.UpdatedAt = now
	id, err := e.Repo.InsertVehicle(ctx, v)
	if err != nil {
		return domain.Vehicle{}, err
	}
	v.ID = id
	return v, nil
}

// transition runs one lifecycle step under the bounded CAS retry loop. The
// mutate callback adjusts the loaded work order and vehicle in place and
// names the audit event; the surrounding machinery re-reads both rows on
// every attempt so a retried transition always starts from fresh state.
func (e Engine) transition(ctx context.Context, serviceOrderID string,
	mutate func(wo *domain.WorkOrder, v *domain.Vehicle, now string) (string, events.EventPayload, error),
	actorID string) (domain.WorkOrder, error) {

	var result domain.WorkOrder
	err := e.withRetry(ctx, serviceOrderID, func(tx *sql.Tx, _ string) error {
		wo, err := e.Repo.GetWorkOrderByServiceOrderIDTx(ctx, tx, serviceOrderID)
		if err != nil {
			return fmt.Errorf("work order %s: %w", serviceOrderID, err)
		}
		vehicle, err := e.Repo.GetVehicleTx(ctx, tx, wo.VehicleID)
		if err != nil {
			return fmt.Errorf("vehicle %d: %w", wo.VehicleID, err)
		}
		now := e.nowRFC3339()
		evtType, payload, err := mutate(&wo, &vehicle, now)
		if err != nil {
			return err
		}
		wo.UpdatedAt = now
		vehicle.UpdatedAt = now
		if err := e.Repo.UpdateWorkOrderTx(ctx, tx, wo); err != nil {
			return err
		}
		if err := e.Repo.UpdateVehicleCAS(ctx, tx, vehicle); err != nil {
			return err
		}
		if payload == nil {
			payload = events.EventPayload{}
		}
		payload["status"] = wo.Status
		if err := e.Events.Append(ctx, tx, evtType, wo.ServiceOrderID, actorID, payload); err != nil {
			return err
		}
		result = wo
		return nil
	})
	if err != nil {
		return domain.WorkOrder{}, err
	}
	return result, nil
}

// withRetry commits fn transactionally, retrying the whole unit on a vehicle
// version conflict up to casAttempts times before surfacing Conflict.
func (e Engine) withRetry(ctx context.Context, serviceOrderID string, fn func(tx *sql.Tx, serviceOrderID string) error) error {
	for attempt := 0; attempt < casAttempts; attempt++ {
		err := func() error {
			tx, err := e.DB.BeginTx(ctx, nil)
			if err != nil {
				return err
			}
			defer tx.Rollback()
			if err := fn(tx, serviceOrderID); err != nil {
				return err
			}
			return tx.Commit()
		}()
		if err == nil {
			return nil
		}
		if !errors.Is(err, repo.ErrVersionConflict) {
			return err
		}
	}
	return ConflictError{ServiceOrderID: serviceOrderID}
}

func requireAssignedMechanic(wo domain.WorkOrder, mechanicID string) error {
	if mechanicID == "" {
		return nil
	}
	if wo.MechanicID == nil || *wo.MechanicID != mechanicID {
		return fmt.Errorf("work order %s not assigned to mechanic %s: %w", wo.ServiceOrderID, mechanicID, repo.ErrNotFound)
	}
	return nil
}

func appendLine(description, line string) string {
	if description == "" {
		return line
	}
	return description + "\n" + line
}
