package repo

import (
	"context"

	"pitstop/internal/domain"
)

// Customers, managers and mechanics are owned by the external identity
// collaborator; these are read-mostly lookups plus seeding inserts.

func (r Repo) UpsertCustomer(ctx context.Context, c domain.Customer) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO customers(id,name,email,created_at) VALUES (?,?,?,?)
ON CONFLICT(id) DO UPDATE SET name=excluded.name, email=excluded.email`,
		c.ID, c.Name, c.Email, c.CreatedAt)
	return err
}

func (r Repo) GetCustomer(ctx context.Context, id string) (domain.Customer, error) {
	var c domain.Customer
	err := r.DB.QueryRowContext(ctx, `SELECT id,name,email,created_at FROM customers WHERE id=?`, id).
		Scan(&c.ID, &c.Name, &c.Email, &c.CreatedAt)
	if err != nil {
		return c, notFoundOr(err)
	}
	return c, nil
}

func (r Repo) UpsertManager(ctx context.Context, m domain.ServiceManager) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO service_managers(id,name,email,created_at) VALUES (?,?,?,?)
ON CONFLICT(id) DO UPDATE SET name=excluded.name, email=excluded.email`,
		m.ID, m.Name, nullableString(m.Email), m.CreatedAt)
	return err
}

func (r Repo) GetManager(ctx context.Context, id string) (domain.ServiceManager, error) {
	var m domain.ServiceManager
	err := r.DB.QueryRowContext(ctx, `SELECT id,name,COALESCE(email,''),created_at FROM service_managers WHERE id=?`, id).
		Scan(&m.ID, &m.Name, &m.Email, &m.CreatedAt)
	if err != nil {
		return m, notFoundOr(err)
	}
	return m, nil
}

func (r Repo) ListManagers(ctx context.Context) ([]domain.ServiceManager, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,name,COALESCE(email,''),created_at FROM service_managers ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ServiceManager
	for rows.Next() {
		var m domain.ServiceManager
		if err := rows.Scan(&m.ID, &m.Name, &m.Email, &m.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

func (r Repo) UpsertMechanic(ctx context.Context, m domain.Mechanic) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO mechanics(id,name,email,created_at) VALUES (?,?,?,?)
ON CONFLICT(id) DO UPDATE SET name=excluded.name, email=excluded.email`,
		m.ID, m.Name, nullableString(m.Email), m.CreatedAt)
	return err
}

func (r Repo) GetMechanic(ctx context.Context, id string) (domain.Mechanic, error) {
	var m domain.Mechanic
	err := r.DB.QueryRowContext(ctx, `SELECT id,name,COALESCE(email,''),created_at FROM mechanics WHERE id=?`, id).
		Scan(&m.ID, &m.Name, &m.Email, &m.CreatedAt)
	if err != nil {
		return m, notFoundOr(err)
	}
	return m, nil
}

func (r Repo) ListMechanics(ctx context.Context) ([]domain.Mechanic, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,name,COALESCE(email,''),created_at FROM mechanics ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Mechanic
	for rows.Next() {
		var m domain.Mechanic
		if err := rows.Scan(&m.ID, &m.Name, &m.Email, &m.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}
