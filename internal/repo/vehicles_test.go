package repo_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"pitstop/internal/db"
	"pitstop/internal/domain"
	"pitstop/internal/migrate"
	"pitstop/internal/repo"
)

func newTestRepo(t *testing.T) repo.Repo {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return repo.Repo{DB: conn}
}

func seedVehicle(t *testing.T, r repo.Repo) domain.Vehicle {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC().Format(time.RFC3339)
	if err := r.UpsertCustomer(ctx, domain.Customer{ID: "cust-1", Name: "Ada Wong", Email: "ada@example.com", CreatedAt: now}); err != nil {
		t.Fatalf("seed customer: %v", err)
	}
	v := domain.Vehicle{
		OwnerID:            "cust-1",
		RegistrationNumber: "KA-01-AB-1234",
		VIN:                "1HGCM82633A004352",
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	id, err := r.InsertVehicle(ctx, v)
	if err != nil {
		t.Fatalf("insert vehicle: %v", err)
	}
	v.ID = id
	return v
}

func inTx(t *testing.T, r repo.Repo, fn func(tx *sql.Tx) error) error {
	t.Helper()
	tx, err := r.DB.BeginTx(context.Background(), nil)
	if err != nil {
		t.Fatalf("begin tx: %v", err)
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func TestVehicleCASIncrementsVersion(t *testing.T) {
	r := newTestRepo(t)
	v := seedVehicle(t, r)
	ctx := context.Background()

	v.BookedForService = true
	if err := inTx(t, r, func(tx *sql.Tx) error {
		return r.UpdateVehicleCAS(ctx, tx, v)
	}); err != nil {
		t.Fatalf("cas update: %v", err)
	}

	got, err := r.GetVehicle(ctx, v.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Version != v.Version+1 {
		t.Fatalf("expected version %d, got %d", v.Version+1, got.Version)
	}
	if !got.BookedForService {
		t.Fatalf("update not applied: %+v", got)
	}
}

func TestVehicleCASRejectsStaleVersion(t *testing.T) {
	r := newTestRepo(t)
	v := seedVehicle(t, r)
	ctx := context.Background()

	fresh := v
	fresh.BookedForService = true
	if err := inTx(t, r, func(tx *sql.Tx) error {
		return r.UpdateVehicleCAS(ctx, tx, fresh)
	}); err != nil {
		t.Fatalf("first cas update: %v", err)
	}

	// second writer still holds the pre-update snapshot
	stale := v
	stale.ServiceDone = true
	err := inTx(t, r, func(tx *sql.Tx) error {
		return r.UpdateVehicleCAS(ctx, tx, stale)
	})
	if !errors.Is(err, repo.ErrVersionConflict) {
		t.Fatalf("expected version conflict, got %v", err)
	}

	got, err := r.GetVehicle(ctx, v.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ServiceDone {
		t.Fatalf("stale write must not apply: %+v", got)
	}
}

func TestOpenWorkOrderForVehicleIgnoresTerminal(t *testing.T) {
	r := newTestRepo(t)
	v := seedVehicle(t, r)
	ctx := context.Background()
	now := time.Now().UTC().Format(time.RFC3339)

	insert := func(serviceOrderID, status string) {
		t.Helper()
		err := inTx(t, r, func(tx *sql.Tx) error {
			_, err := r.InsertWorkOrderTx(ctx, tx, domain.WorkOrder{
				ServiceOrderID: serviceOrderID,
				VehicleID:      v.ID,
				Status:         status,
				CreatedAt:      now,
				UpdatedAt:      now,
			})
			return err
		})
		if err != nil {
			t.Fatalf("insert %s: %v", serviceOrderID, err)
		}
	}
	insert("SRV-done0001", domain.StatusCompleted)
	insert("SRV-gone0001", domain.StatusCancelled)

	err := inTx(t, r, func(tx *sql.Tx) error {
		_, err := r.OpenWorkOrderForVehicleTx(ctx, tx, v.ID)
		return err
	})
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("terminal orders must not count as open, got %v", err)
	}

	insert("SRV-live0001", domain.StatusInProgress)
	var open domain.WorkOrder
	err = inTx(t, r, func(tx *sql.Tx) error {
		var inner error
		open, inner = r.OpenWorkOrderForVehicleTx(ctx, tx, v.ID)
		return inner
	})
	if err != nil {
		t.Fatalf("expected open order: %v", err)
	}
	if open.ServiceOrderID != "SRV-live0001" {
		t.Fatalf("unexpected open order: %+v", open)
	}
}
