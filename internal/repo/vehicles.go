package repo

import (
	"context"
	"database/sql"

	"pitstop/internal/domain"
)

const vehicleColumns = `id,owner_id,registration_number,vin,COALESCE(make,'') AS make,COALESCE(model,'') AS model,booked_for_service,service_done,assigned_manager_id,version,created_at,updated_at`

func scanVehicle(row rowScanner) (domain.Vehicle, error) {
	var v domain.Vehicle
	var manager sql.NullString
	err := row.Scan(&v.ID, &v.OwnerID, &v.RegistrationNumber, &v.VIN, &v.Make, &v.Model,
		&v.BookedForService, &v.ServiceDone, &manager, &v.Version, &v.CreatedAt, &v.UpdatedAt)
	if err == sql.ErrNoRows {
		return v, ErrNotFound
	}
	if err != nil {
		return v, err
	}
	v.AssignedManagerID = optString(manager)
	return v, nil
}

func (r Repo) InsertVehicle(ctx context.Context, v domain.Vehicle) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `INSERT INTO vehicles(owner_id,registration_number,vin,make,model,booked_for_service,service_done,assigned_manager_id,version,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		v.OwnerID, v.RegistrationNumber, v.VIN, nullableString(v.Make), nullableString(v.Model),
		v.BookedForService, v.ServiceDone, v.AssignedManagerID, v.Version, v.CreatedAt, v.UpdatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r Repo) GetVehicle(ctx context.Context, id int64) (domain.Vehicle, error) {
	return scanVehicle(r.DB.QueryRowContext(ctx, `SELECT `+vehicleColumns+` FROM vehicles WHERE id=?`, id))
}

func (r Repo) GetVehicleTx(ctx context.Context, tx *sql.Tx, id int64) (domain.Vehicle, error) {
	return scanVehicle(tx.QueryRowContext(ctx, `SELECT `+vehicleColumns+` FROM vehicles WHERE id=?`, id))
}

// GetVehicleForOwner resolves a vehicle only when it belongs to the given
// customer.
func (r Repo) GetVehicleForOwner(ctx context.Context, id int64, ownerID string) (domain.Vehicle, error) {
	return scanVehicle(r.DB.QueryRowContext(ctx,
		`SELECT `+vehicleColumns+` FROM vehicles WHERE id=? AND owner_id=?`, id, ownerID))
}

func (r Repo) ListVehicles(ctx context.Context, ownerID string) ([]domain.Vehicle, error) {
	query := `SELECT ` + vehicleColumns + ` FROM vehicles ORDER BY created_at DESC, id DESC`
	args := []any{}
	if ownerID != "" {
		query = `SELECT ` + vehicleColumns + ` FROM vehicles WHERE owner_id=? ORDER BY created_at DESC, id DESC`
		args = append(args, ownerID)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Vehicle
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, v)
	}
	return res, rows.Err()
}

// UpdateVehicleCAS writes the vehicle's mutable fields conditioned on the
// version being unchanged since the read, bumping it on success. Returns
// ErrVersionConflict when another writer got there first.
func (r Repo) UpdateVehicleCAS(ctx context.Context, tx *sql.Tx, v domain.Vehicle) error {
	res, err := tx.ExecContext(ctx, `UPDATE vehicles SET booked_for_service=?,service_done=?,assigned_manager_id=?,updated_at=?,version=version+1 WHERE id=? AND version=?`,
		v.BookedForService, v.ServiceDone, v.AssignedManagerID, v.UpdatedAt, v.ID, v.Version)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrVersionConflict
	}
	return nil
}
