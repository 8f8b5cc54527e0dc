package state

import (
	"context"
	"database/sql"
	"fmt"
)

type EventRow struct {
	EventID       string `json:"event_id"`
	SessionID     string `json:"session_id"`
	UserID        string `json:"user_id"`
	EventName     string `json:"event_name"`
	EventTime     string `json:"event_time"`
	PathName      string `json:"path_name,omitempty"`
	Payload       string `json:"payload"`
	EventLocation string `json:"event_location,omitempty"`
}

type OrderRow struct {
	OrderID         string  `json:"order_id"`
	UserID          string  `json:"user_id"`
	SessionID       string  `json:"session_id"`
	ProductsPayload string  `json:"products_payload"`
	PaidAmount      float64 `json:"paid_amount"`
	OrderDate       string  `json:"order_date"`
	SessionLocation string  `json:"session_location,omitempty"`
}

func (s *Store) InsertEvents(ctx context.Context, rows []EventRow) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin events tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO user_events (event_id, session_id, user_id, event_name, event_time, path_name, payload, event_location)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert events: %w", err)
	}
	defer stmt.Close()
	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r.EventID, r.SessionID, r.UserID, r.EventName, r.EventTime,
			nullable(r.PathName), r.Payload, nullable(r.EventLocation)); err != nil {
			return fmt.Errorf("insert event %s: %w", r.EventID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit events: %w", err)
	}
	return nil
}

func (s *Store) InsertOrder(ctx context.Context, r OrderRow) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_orders (order_id, user_id, session_id, products_payload, paid_amount, order_date, session_location)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, r.OrderID, r.UserID, r.SessionID, r.ProductsPayload, r.PaidAmount, r.OrderDate, nullable(r.SessionLocation))
	if err != nil {
		return fmt.Errorf("insert order %s: %w", r.OrderID, err)
	}
	return nil
}

func (s *Store) ListEvents(ctx context.Context, sessionID string, limit int) ([]EventRow, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT event_id, session_id, user_id, event_name, event_time, path_name, payload, event_location
		FROM user_events WHERE session_id = ? ORDER BY event_time, event_id LIMIT ?
	`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []EventRow
	for rows.Next() {
		var r EventRow
		var pathName, payload, location sql.NullString
		if err := rows.Scan(&r.EventID, &r.SessionID, &r.UserID, &r.EventName, &r.EventTime, &pathName, &payload, &location); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		r.PathName = pathName.String
		r.Payload = payload.String
		r.EventLocation = location.String
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return out, nil
}

func (s *Store) GetOrder(ctx context.Context, orderID string) (OrderRow, bool, error) {
	var r OrderRow
	var location sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT order_id, user_id, session_id, products_payload, paid_amount, order_date, session_location
		FROM user_orders WHERE order_id = ?
	`, orderID).Scan(&r.OrderID, &r.UserID, &r.SessionID, &r.ProductsPayload, &r.PaidAmount, &r.OrderDate, &location)
	if err == sql.ErrNoRows {
		return OrderRow{}, false, nil
	}
	if err != nil {
		return OrderRow{}, false, fmt.Errorf("get order %s: %w", orderID, err)
	}
	r.SessionLocation = location.String
	return r, true, nil
}

type Counts struct {
	Events int `json:"events"`
	Orders int `json:"orders"`
}

func (s *Store) CountAnalytics(ctx context.Context) (Counts, error) {
	var c Counts
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM user_events`).Scan(&c.Events); err != nil {
		return Counts{}, fmt.Errorf("count events: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM user_orders`).Scan(&c.Orders); err != nil {
		return Counts{}, fmt.Errorf("count orders: %w", err)
	}
	return c, nil
}
