package repo

import (
	"context"

	"pitstop/internal/domain"
)

// ListEvents returns the newest audit events, optionally scoped to one
// service order.
func (r Repo) ListEvents(ctx context.Context, serviceOrderID string, limit int) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id,ts,type,COALESCE(service_order_id,''),actor_id,payload_json FROM events ORDER BY id DESC LIMIT ?`
	args := []any{limit}
	if serviceOrderID != "" {
		query = `SELECT id,ts,type,COALESCE(service_order_id,''),actor_id,payload_json FROM events WHERE service_order_id=? ORDER BY id DESC LIMIT ?`
		args = []any{serviceOrderID, limit}
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.ServiceOrderID, &e.ActorID, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}
