package repo

import (
	"context"
	"database/sql"
	"errors"

	"pitstop/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

// ErrVersionConflict is returned by compare-and-set vehicle writes when the
// row's version moved since it was read.
var ErrVersionConflict = errors.New("version conflict")

const workOrderColumns = `id,service_order_id,vehicle_id,manager_id,mechanic_id,status,COALESCE(description,'') AS description,scheduled_at,started_at,completed_at,estimated_cost,final_cost,created_at,updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkOrder(row rowScanner) (domain.WorkOrder, error) {
	var wo domain.WorkOrder
	var managerID, mechanicID, scheduledAt, startedAt, completedAt sql.NullString
	var estimated, final sql.NullFloat64
	err := row.Scan(&wo.ID, &wo.ServiceOrderID, &wo.VehicleID, &managerID, &mechanicID, &wo.Status,
		&wo.Description, &scheduledAt, &startedAt, &completedAt, &estimated, &final, &wo.CreatedAt, &wo.UpdatedAt)
	if err == sql.ErrNoRows {
		return wo, ErrNotFound
	}
	if err != nil {
		return wo, err
	}
	wo.ManagerID = optString(managerID)
	wo.MechanicID = optString(mechanicID)
	wo.ScheduledAt = optString(scheduledAt)
	wo.StartedAt = optString(startedAt)
	wo.CompletedAt = optString(completedAt)
	wo.EstimatedCost = optFloat(estimated)
	wo.FinalCost = optFloat(final)
	return wo, nil
}

func (r Repo) InsertWorkOrderTx(ctx context.Context, tx *sql.Tx, wo domain.WorkOrder) (int64, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO work_orders(service_order_id,vehicle_id,manager_id,mechanic_id,status,description,scheduled_at,started_at,completed_at,estimated_cost,final_cost,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		wo.ServiceOrderID, wo.VehicleID, wo.ManagerID, wo.MechanicID, wo.Status, nullableString(wo.Description),
		wo.ScheduledAt, wo.StartedAt, wo.CompletedAt, wo.EstimatedCost, wo.FinalCost, wo.CreatedAt, wo.UpdatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r Repo) UpdateWorkOrderTx(ctx context.Context, tx *sql.Tx, wo domain.WorkOrder) error {
	res, err := tx.ExecContext(ctx, `UPDATE work_orders SET manager_id=?,mechanic_id=?,status=?,description=?,scheduled_at=?,started_at=?,completed_at=?,estimated_cost=?,final_cost=?,updated_at=? WHERE id=?`,
		wo.ManagerID, wo.MechanicID, wo.Status, nullableString(wo.Description),
		wo.ScheduledAt, wo.StartedAt, wo.CompletedAt, wo.EstimatedCost, wo.FinalCost, wo.UpdatedAt, wo.ID)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) GetWorkOrderByServiceOrderID(ctx context.Context, serviceOrderID string) (domain.WorkOrder, error) {
	return scanWorkOrder(r.DB.QueryRowContext(ctx,
		`SELECT `+workOrderColumns+` FROM work_orders WHERE service_order_id=?`, serviceOrderID))
}

func (r Repo) GetWorkOrderByServiceOrderIDTx(ctx context.Context, tx *sql.Tx, serviceOrderID string) (domain.WorkOrder, error) {
	return scanWorkOrder(tx.QueryRowContext(ctx,
		`SELECT `+workOrderColumns+` FROM work_orders WHERE service_order_id=?`, serviceOrderID))
}

func (r Repo) ListWorkOrdersByStatus(ctx context.Context, status string) ([]domain.WorkOrder, error) {
	return r.listWorkOrders(ctx, `SELECT `+workOrderColumns+` FROM work_orders WHERE status=? ORDER BY created_at DESC, id DESC`, status)
}

func (r Repo) ListWorkOrdersByMechanic(ctx context.Context, mechanicID string) ([]domain.WorkOrder, error) {
	return r.listWorkOrders(ctx, `SELECT `+workOrderColumns+` FROM work_orders WHERE mechanic_id=? ORDER BY created_at DESC, id DESC`, mechanicID)
}

func (r Repo) listWorkOrders(ctx context.Context, query string, args ...any) ([]domain.WorkOrder, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.WorkOrder
	for rows.Next() {
		wo, err := scanWorkOrder(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, wo)
	}
	return res, rows.Err()
}

// OpenWorkOrderForVehicleTx returns the non-terminal work order referencing
// the vehicle, if any.
func (r Repo) OpenWorkOrderForVehicleTx(ctx context.Context, tx *sql.Tx, vehicleID int64) (domain.WorkOrder, error) {
	return scanWorkOrder(tx.QueryRowContext(ctx,
		`SELECT `+workOrderColumns+` FROM work_orders WHERE vehicle_id=? AND status NOT IN (?,?) LIMIT 1`,
		vehicleID, domain.StatusCompleted, domain.StatusCancelled))
}

// ServiceStatusForCustomer lists the customer's work orders joined with
// vehicle identity, newest first.
func (r Repo) ServiceStatusForCustomer(ctx context.Context, customerID string) ([]domain.ServiceStatus, error) {
	rows, err := r.DB.QueryContext(ctx, `
SELECT wo.service_order_id, v.registration_number, v.vin, COALESCE(v.make,''), COALESCE(v.model,''),
       wo.status, wo.scheduled_at, wo.completed_at, wo.estimated_cost, wo.final_cost
FROM work_orders wo
JOIN vehicles v ON v.id = wo.vehicle_id
WHERE v.owner_id = ?
ORDER BY wo.created_at DESC, wo.id DESC`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ServiceStatus
	for rows.Next() {
		var st domain.ServiceStatus
		var scheduledAt, completedAt sql.NullString
		var estimated, final sql.NullFloat64
		if err := rows.Scan(&st.ServiceOrderID, &st.RegistrationNumber, &st.VIN, &st.Make, &st.Model,
			&st.Status, &scheduledAt, &completedAt, &estimated, &final); err != nil {
			return nil, err
		}
		st.ScheduledAt = optString(scheduledAt)
		st.CompletedAt = optString(completedAt)
		st.EstimatedCost = optFloat(estimated)
		st.FinalCost = optFloat(final)
		res = append(res, st)
	}
	return res, rows.Err()
}

func notFoundOr(err error) error {
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	return err
}

func nullableString(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func optString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func optFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
