package engine_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"pitstop/internal/config"
	"pitstop/internal/db"
	"pitstop/internal/domain"
	"pitstop/internal/engine"
	"pitstop/internal/migrate"
	"pitstop/internal/notify"
	"pitstop/internal/repo"
)

type recorder struct {
	bookings    []notify.BookingNotice
	completions []notify.CompletionNotice
}

func (r *recorder) BookingConfirmed(n notify.BookingNotice) {
	r.bookings = append(r.bookings, n)
}

func (r *recorder) ServiceCompleted(n notify.CompletionNotice) {
	r.completions = append(r.completions, n)
}

type testEnv struct {
	Engine    engine.Engine
	Notices   *recorder
	VehicleID int64
	Ctx       context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	rec := &recorder{}
	eng := engine.New(conn, config.Default(), rec)
	frozen := func() time.Time { return time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC) }
	eng.Now = frozen
	eng.Events.Now = frozen
	ctx := context.Background()
	now := frozen().Format(time.RFC3339)
	if err := eng.Repo.UpsertCustomer(ctx, domain.Customer{ID: "cust-1", Name: "Ada Wong", Email: "ada@example.com", CreatedAt: now}); err != nil {
		t.Fatalf("seed customer: %v", err)
	}
	if err := eng.Repo.UpsertManager(ctx, domain.ServiceManager{ID: "mgr-1", Name: "Sam Park", CreatedAt: now}); err != nil {
		t.Fatalf("seed manager: %v", err)
	}
	if err := eng.Repo.UpsertMechanic(ctx, domain.Mechanic{ID: "mech-1", Name: "Lee Fixit", CreatedAt: now}); err != nil {
		t.Fatalf("seed mechanic: %v", err)
	}
	v, err := eng.RegisterVehicle(ctx, domain.Vehicle{
		OwnerID:            "cust-1",
		RegistrationNumber: "KA-01-AB-1234",
		VIN:                "1HGCM82633A004352",
		Make:               "Honda",
		Model:              "Accord",
	})
	if err != nil {
		t.Fatalf("seed vehicle: %v", err)
	}
	return testEnv{Engine: eng, Notices: rec, VehicleID: v.ID, Ctx: ctx}
}

func (env testEnv) book(t *testing.T) domain.WorkOrder {
	t.Helper()
	wo, err := env.Engine.CreateBooking(env.Ctx, engine.BookingOptions{
		CustomerID:  "cust-1",
		VehicleID:   env.VehicleID,
		Description: "Brakes squealing",
		ActorID:     "cust-1",
	})
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}
	return wo
}

func TestBookingLifecycle(t *testing.T) {
	env := newTestEnv(t)
	wo := env.book(t)
	if wo.Status != domain.StatusOpen {
		t.Fatalf("expected OPEN, got %s", wo.Status)
	}
	if !strings.HasPrefix(wo.ServiceOrderID, "SRV-") || len(wo.ServiceOrderID) != 12 {
		t.Fatalf("unexpected service order id %q", wo.ServiceOrderID)
	}
	vehicle, err := env.Engine.Repo.GetVehicle(env.Ctx, env.VehicleID)
	if err != nil {
		t.Fatal(err)
	}
	if !vehicle.BookedForService || vehicle.ServiceDone {
		t.Fatalf("expected booked vehicle, got booked=%v done=%v", vehicle.BookedForService, vehicle.ServiceDone)
	}

	wo, err = env.Engine.AssignManager(env.Ctx, wo.ServiceOrderID, "mgr-1", "mgr-1")
	if err != nil {
		t.Fatalf("assign manager: %v", err)
	}
	if wo.Status != domain.StatusAssigned || wo.ManagerID == nil || *wo.ManagerID != "mgr-1" {
		t.Fatalf("unexpected order after manager assignment: %+v", wo)
	}
	vehicle, _ = env.Engine.Repo.GetVehicle(env.Ctx, env.VehicleID)
	if vehicle.AssignedManagerID == nil || *vehicle.AssignedManagerID != "mgr-1" {
		t.Fatalf("vehicle manager not recorded: %+v", vehicle)
	}

	wo, err = env.Engine.AssignMechanic(env.Ctx, wo.ServiceOrderID, "mech-1", 250, "mgr-1")
	if err != nil {
		t.Fatalf("assign mechanic: %v", err)
	}
	if wo.MechanicID == nil || *wo.MechanicID != "mech-1" || wo.EstimatedCost == nil || *wo.EstimatedCost != 250 {
		t.Fatalf("unexpected order after mechanic assignment: %+v", wo)
	}

	wo, err = env.Engine.Start(env.Ctx, wo.ServiceOrderID, "mech-1", "mech-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if wo.Status != domain.StatusInProgress || wo.StartedAt == nil {
		t.Fatalf("unexpected order after start: %+v", wo)
	}

	wo, err = env.Engine.Complete(env.Ctx, engine.CompleteOptions{
		ServiceOrderID: wo.ServiceOrderID,
		MechanicID:     "mech-1",
		FinalCost:      310.50,
		ServiceDetails: "Replaced brake pads and rotors",
		ActorID:        "mech-1",
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if wo.Status != domain.StatusCompleted || wo.CompletedAt == nil {
		t.Fatalf("unexpected order after complete: %+v", wo)
	}
	if wo.FinalCost == nil || *wo.FinalCost != 310.50 {
		t.Fatalf("final cost not recorded: %+v", wo)
	}
	if !strings.Contains(wo.Description, "Service Details: Replaced brake pads and rotors") {
		t.Fatalf("service details not appended: %q", wo.Description)
	}
	vehicle, _ = env.Engine.Repo.GetVehicle(env.Ctx, env.VehicleID)
	if vehicle.BookedForService || !vehicle.ServiceDone || vehicle.AssignedManagerID != nil {
		t.Fatalf("vehicle not released after completion: %+v", vehicle)
	}
}

func TestDoubleBookingRejected(t *testing.T) {
	env := newTestEnv(t)
	first := env.book(t)
	_, err := env.Engine.CreateBooking(env.Ctx, engine.BookingOptions{
		CustomerID: "cust-1",
		VehicleID:  env.VehicleID,
		ActorID:    "cust-1",
	})
	var abe engine.AlreadyBookedError
	if !errors.As(err, &abe) {
		t.Fatalf("expected AlreadyBookedError, got %v", err)
	}
	if abe.VehicleID != env.VehicleID {
		t.Fatalf("wrong vehicle in conflict: %d", abe.VehicleID)
	}

	// release via the full lifecycle, then rebook
	if _, err := env.Engine.AssignMechanic(env.Ctx, first.ServiceOrderID, "mech-1", 100, "mgr-1"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.Start(env.Ctx, first.ServiceOrderID, "mech-1", "mech-1"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.Complete(env.Ctx, engine.CompleteOptions{ServiceOrderID: first.ServiceOrderID, FinalCost: 120, ActorID: "mech-1"}); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.CreateBooking(env.Ctx, engine.BookingOptions{CustomerID: "cust-1", VehicleID: env.VehicleID, ActorID: "cust-1"}); err != nil {
		t.Fatalf("rebooking after completion should succeed: %v", err)
	}
}

func TestCancelReleasesVehicle(t *testing.T) {
	env := newTestEnv(t)
	wo := env.book(t)
	wo, err := env.Engine.Cancel(env.Ctx, wo.ServiceOrderID, "cust-1")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if wo.Status != domain.StatusCancelled {
		t.Fatalf("expected CANCELLED, got %s", wo.Status)
	}
	vehicle, _ := env.Engine.Repo.GetVehicle(env.Ctx, env.VehicleID)
	if vehicle.BookedForService || vehicle.ServiceDone {
		t.Fatalf("vehicle not released after cancel: %+v", vehicle)
	}

	// terminal state rejects further transitions
	_, err = env.Engine.Cancel(env.Ctx, wo.ServiceOrderID, "cust-1")
	var ite engine.InvalidTransitionError
	if !errors.As(err, &ite) || ite.Current != domain.StatusCancelled {
		t.Fatalf("expected InvalidTransitionError from CANCELLED, got %v", err)
	}
}

func TestStartRequiresAssignment(t *testing.T) {
	env := newTestEnv(t)
	wo := env.book(t)
	_, err := env.Engine.Start(env.Ctx, wo.ServiceOrderID, "", "mech-1")
	var ite engine.InvalidTransitionError
	if !errors.As(err, &ite) {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}
	if ite.Current != domain.StatusOpen {
		t.Fatalf("expected current status OPEN in error, got %s", ite.Current)
	}
}

func TestCompleteRequiresInProgress(t *testing.T) {
	env := newTestEnv(t)
	wo := env.book(t)
	if _, err := env.Engine.AssignMechanic(env.Ctx, wo.ServiceOrderID, "mech-1", 100, "mgr-1"); err != nil {
		t.Fatal(err)
	}
	_, err := env.Engine.Complete(env.Ctx, engine.CompleteOptions{ServiceOrderID: wo.ServiceOrderID, FinalCost: 120, ActorID: "mech-1"})
	var ite engine.InvalidTransitionError
	if !errors.As(err, &ite) || ite.Current != domain.StatusAssigned {
		t.Fatalf("expected InvalidTransitionError from ASSIGNED, got %v", err)
	}
}

func TestAssignMechanicIdempotentAtStatusLevel(t *testing.T) {
	env := newTestEnv(t)
	wo := env.book(t)
	if _, err := env.Engine.AssignMechanic(env.Ctx, wo.ServiceOrderID, "mech-1", 100, "mgr-1"); err != nil {
		t.Fatal(err)
	}
	wo, err := env.Engine.AssignMechanic(env.Ctx, wo.ServiceOrderID, "mech-1", 140, "mgr-1")
	if err != nil {
		t.Fatalf("re-assign while ASSIGNED should succeed: %v", err)
	}
	if wo.Status != domain.StatusAssigned || *wo.EstimatedCost != 140 {
		t.Fatalf("unexpected order after re-assign: %+v", wo)
	}

	// past ASSIGNED the order is locked to its mechanic
	if _, err := env.Engine.Start(env.Ctx, wo.ServiceOrderID, "mech-1", "mech-1"); err != nil {
		t.Fatal(err)
	}
	_, err = env.Engine.AssignMechanic(env.Ctx, wo.ServiceOrderID, "mech-1", 150, "mgr-1")
	var ite engine.InvalidTransitionError
	if !errors.As(err, &ite) || ite.Current != domain.StatusInProgress {
		t.Fatalf("expected InvalidTransitionError from IN_PROGRESS, got %v", err)
	}
}

func TestFinalCostGate(t *testing.T) {
	env := newTestEnv(t)
	wo := env.book(t)
	fc := 99.0
	_, err := env.Engine.UpdateCosts(env.Ctx, wo.ServiceOrderID, nil, &fc, "mgr-1")
	var ite engine.InvalidTransitionError
	if !errors.As(err, &ite) {
		t.Fatalf("final cost before start should be rejected, got %v", err)
	}

	est := 80.0
	if _, err := env.Engine.UpdateCosts(env.Ctx, wo.ServiceOrderID, &est, nil, "mgr-1"); err != nil {
		t.Fatalf("estimated cost in OPEN should be allowed: %v", err)
	}

	if _, err := env.Engine.AssignMechanic(env.Ctx, wo.ServiceOrderID, "mech-1", 80, "mgr-1"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.Start(env.Ctx, wo.ServiceOrderID, "mech-1", "mech-1"); err != nil {
		t.Fatal(err)
	}
	got, err := env.Engine.UpdateCosts(env.Ctx, wo.ServiceOrderID, nil, &fc, "mgr-1")
	if err != nil {
		t.Fatalf("final cost while IN_PROGRESS should be allowed: %v", err)
	}
	if got.FinalCost == nil || *got.FinalCost != fc {
		t.Fatalf("final cost not recorded: %+v", got)
	}
}

func TestMechanicScoping(t *testing.T) {
	env := newTestEnv(t)
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC).Format(time.RFC3339)
	if err := env.Engine.Repo.UpsertMechanic(env.Ctx, domain.Mechanic{ID: "mech-2", Name: "Kit Spanner", CreatedAt: now}); err != nil {
		t.Fatal(err)
	}
	wo := env.book(t)
	if _, err := env.Engine.AssignMechanic(env.Ctx, wo.ServiceOrderID, "mech-1", 100, "mgr-1"); err != nil {
		t.Fatal(err)
	}
	_, err := env.Engine.Start(env.Ctx, wo.ServiceOrderID, "mech-2", "mech-2")
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("start by unassigned mechanic should report not found, got %v", err)
	}
	if _, err := env.Engine.Start(env.Ctx, wo.ServiceOrderID, "mech-1", "mech-1"); err != nil {
		t.Fatalf("assigned mechanic should start: %v", err)
	}
}

func TestProgressNotesAppend(t *testing.T) {
	env := newTestEnv(t)
	wo := env.book(t)
	if _, err := env.Engine.AssignMechanic(env.Ctx, wo.ServiceOrderID, "mech-1", 100, "mgr-1"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.Start(env.Ctx, wo.ServiceOrderID, "mech-1", "mech-1"); err != nil {
		t.Fatal(err)
	}
	wo, err := env.Engine.AppendProgress(env.Ctx, wo.ServiceOrderID, "mech-1", "Pads ordered", "mech-1")
	if err != nil {
		t.Fatal(err)
	}
	wo, err = env.Engine.AppendProgress(env.Ctx, wo.ServiceOrderID, "mech-1", "Pads installed", "mech-1")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(wo.Description, "Pads ordered") || !strings.Contains(wo.Description, "Pads installed") {
		t.Fatalf("progress notes missing from description: %q", wo.Description)
	}
	if !strings.HasPrefix(wo.Description, "Brakes squealing") {
		t.Fatalf("original description lost: %q", wo.Description)
	}
}

func TestNotificationsRecorded(t *testing.T) {
	env := newTestEnv(t)
	wo := env.book(t)
	if len(env.Notices.bookings) != 1 {
		t.Fatalf("expected 1 booking notice, got %d", len(env.Notices.bookings))
	}
	bn := env.Notices.bookings[0]
	if bn.To != "ada@example.com" || bn.ServiceOrderID != wo.ServiceOrderID || bn.VIN != "1HGCM82633A004352" {
		t.Fatalf("unexpected booking notice: %+v", bn)
	}

	if _, err := env.Engine.AssignManager(env.Ctx, wo.ServiceOrderID, "mgr-1", "mgr-1"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.AssignMechanic(env.Ctx, wo.ServiceOrderID, "mech-1", 200, "mgr-1"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.Start(env.Ctx, wo.ServiceOrderID, "mech-1", "mech-1"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.Complete(env.Ctx, engine.CompleteOptions{
		ServiceOrderID: wo.ServiceOrderID,
		FinalCost:      225,
		ServiceDetails: "Full service",
		ActorID:        "mech-1",
	}); err != nil {
		t.Fatal(err)
	}
	if len(env.Notices.completions) != 1 {
		t.Fatalf("expected 1 completion notice, got %d", len(env.Notices.completions))
	}
	cn := env.Notices.completions[0]
	if cn.To != "ada@example.com" || cn.ManagerName != "Sam Park" || cn.MechanicName != "Lee Fixit" {
		t.Fatalf("unexpected completion notice: %+v", cn)
	}
	if cn.FinalCost == nil || *cn.FinalCost != 225 || cn.ServiceDetails != "Full service" {
		t.Fatalf("unexpected completion payload: %+v", cn)
	}
}

func TestCompletionSurvivesUndeliverableNotifications(t *testing.T) {
	env := newTestEnv(t)
	// real dispatcher pointed at a port nothing listens on
	cfg := config.Default()
	cfg.Notify.BookingURL = "http://127.0.0.1:1/mail"
	cfg.Notify.CompletionURL = "http://127.0.0.1:1/mail"
	cfg.Notify.TimeoutSeconds = 1
	env.Engine.Notifier = notify.NewDispatcher(cfg.Notify, nil)

	wo := env.book(t)
	if _, err := env.Engine.AssignMechanic(env.Ctx, wo.ServiceOrderID, "mech-1", 100, "mgr-1"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.Start(env.Ctx, wo.ServiceOrderID, "mech-1", "mech-1"); err != nil {
		t.Fatal(err)
	}
	wo, err := env.Engine.Complete(env.Ctx, engine.CompleteOptions{ServiceOrderID: wo.ServiceOrderID, FinalCost: 120, ActorID: "mech-1"})
	if err != nil {
		t.Fatalf("complete must not depend on delivery: %v", err)
	}
	if wo.Status != domain.StatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", wo.Status)
	}
	vehicle, _ := env.Engine.Repo.GetVehicle(env.Ctx, env.VehicleID)
	if vehicle.BookedForService || !vehicle.ServiceDone {
		t.Fatalf("vehicle flags not updated: %+v", vehicle)
	}
}

func TestLifecycleEventsRecorded(t *testing.T) {
	env := newTestEnv(t)
	wo := env.book(t)
	if _, err := env.Engine.AssignMechanic(env.Ctx, wo.ServiceOrderID, "mech-1", 100, "mgr-1"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.Start(env.Ctx, wo.ServiceOrderID, "mech-1", "mech-1"); err != nil {
		t.Fatal(err)
	}
	events, err := env.Engine.Repo.ListEvents(env.Ctx, wo.ServiceOrderID, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	// newest first
	want := []string{"workorder.started", "workorder.mechanic_assigned", "workorder.created"}
	for i, evt := range events {
		if evt.Type != want[i] {
			t.Fatalf("event %d: expected %s, got %s", i, want[i], evt.Type)
		}
	}
}

func TestBookingUnknownVehicle(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.CreateBooking(env.Ctx, engine.BookingOptions{CustomerID: "cust-1", VehicleID: 9999, ActorID: "cust-1"})
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestBookingVehicleOwnedByAnotherCustomer(t *testing.T) {
	env := newTestEnv(t)
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC).Format(time.RFC3339)
	if err := env.Engine.Repo.UpsertCustomer(env.Ctx, domain.Customer{ID: "cust-2", Name: "Ben Oak", Email: "ben@example.com", CreatedAt: now}); err != nil {
		t.Fatal(err)
	}
	_, err := env.Engine.CreateBooking(env.Ctx, engine.BookingOptions{CustomerID: "cust-2", VehicleID: env.VehicleID, ActorID: "cust-2"})
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found for foreign vehicle, got %v", err)
	}
}

func TestBookingBlockedByLingeringOrder(t *testing.T) {
	env := newTestEnv(t)
	env.book(t)

	// Clear the flag behind the engine's back; the OPEN order row stays.
	if _, err := env.Engine.DB.ExecContext(env.Ctx, `UPDATE vehicles SET booked_for_service=0 WHERE id=?`, env.VehicleID); err != nil {
		t.Fatal(err)
	}

	_, err := env.Engine.CreateBooking(env.Ctx, engine.BookingOptions{
		CustomerID: "cust-1",
		VehicleID:  env.VehicleID,
		ActorID:    "cust-1",
	})
	var abe engine.AlreadyBookedError
	if !errors.As(err, &abe) {
		t.Fatalf("expected AlreadyBookedError while an order is still live, got %v", err)
	}
	if abe.VehicleID != env.VehicleID {
		t.Fatalf("wrong vehicle in conflict: %d", abe.VehicleID)
	}
}

func TestConcurrentManagerAssignment(t *testing.T) {
	env := newTestEnv(t)
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC).Format(time.RFC3339)
	if err := env.Engine.Repo.UpsertManager(env.Ctx, domain.ServiceManager{ID: "mgr-2", Name: "Ira Stone", CreatedAt: now}); err != nil {
		t.Fatal(err)
	}
	wo := env.book(t)

	managers := []string{"mgr-1", "mgr-2"}
	results := make([]error, len(managers))
	var wg sync.WaitGroup
	for i, id := range managers {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, results[i] = env.Engine.AssignManager(env.Ctx, wo.ServiceOrderID, id, id)
		}(i, id)
	}
	wg.Wait()

	wins := 0
	for i, err := range results {
		var ce engine.ConflictError
		switch {
		case err == nil:
			wins++
		case errors.As(err, &ce):
		default:
			t.Fatalf("assign %s: unexpected error %v", managers[i], err)
		}
	}
	if wins == 0 {
		t.Fatal("neither assignment went through")
	}

	got, err := env.Engine.Repo.GetWorkOrderByServiceOrderID(env.Ctx, wo.ServiceOrderID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.StatusAssigned {
		t.Fatalf("expected ASSIGNED, got %s", got.Status)
	}
	if got.ManagerID == nil || (*got.ManagerID != "mgr-1" && *got.ManagerID != "mgr-2") {
		t.Fatalf("expected one of the racing managers on the order, got %v", got.ManagerID)
	}
	vehicle, err := env.Engine.Repo.GetVehicle(env.Ctx, env.VehicleID)
	if err != nil {
		t.Fatal(err)
	}
	if vehicle.AssignedManagerID == nil || *vehicle.AssignedManagerID != *got.ManagerID {
		t.Fatalf("vehicle manager %v does not match order manager %v", vehicle.AssignedManagerID, got.ManagerID)
	}
}
