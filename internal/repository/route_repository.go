package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xevcp/backend/internal/models"
)

type RouteRepository struct {
	db *sql.DB
}

func NewRouteRepository(db *sql.DB) *RouteRepository {
	return &RouteRepository{db: db}
}

const routeColumns = `r.id, r.from_city, r.to_city, r.price, r.duration, r.bus_type, r.distance, r.description,
	r.route_map_image, r.thumbnail_image, r.operating_start, r.operating_end, r.interval_minutes,
	r.is_active, r.created_at, r.updated_at`

func scanRoute(row rowScanner, extra ...any) (*models.Route, error) {
	var rt models.Route
	dest := []any{
		&rt.ID, &rt.From, &rt.To, &rt.Price, &rt.Duration, &rt.BusType, &rt.Distance, &rt.Description,
		&rt.RouteMapImage, &rt.ThumbnailImage, &rt.OperatingStart, &rt.OperatingEnd, &rt.IntervalMinutes,
		&rt.IsActive, &rt.CreatedAt, &rt.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return &rt, nil
}

// List returns all routes with their booking and schedule counts, newest first.
func (r *RouteRepository) List(ctx context.Context) ([]models.Route, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+routeColumns+`,
		       (SELECT COUNT(*) FROM bookings b WHERE b.route_id = r.id),
		       (SELECT COUNT(*) FROM schedules s WHERE s.route_id = r.id)
		FROM routes r
		ORDER BY r.created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query routes: %w", err)
	}
	defer rows.Close()

	routes := []models.Route{}
	for rows.Next() {
		var bookings, schedules int
		rt, err := scanRoute(rows, &bookings, &schedules)
		if err != nil {
			return nil, fmt.Errorf("scan route: %w", err)
		}
		rt.BookingCount, rt.ScheduleCount = bookings, schedules
		routes = append(routes, *rt)
	}
	return routes, rows.Err()
}

func (r *RouteRepository) Get(ctx context.Context, id string) (*models.Route, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+routeColumns+` FROM routes r WHERE r.id = $1`, id)
	rt, err := scanRoute(row)
	if err != nil {
		return nil, notFound(err)
	}
	return rt, nil
}

func (r *RouteRepository) Create(ctx context.Context, rt *models.Route) error {
	if rt.ID == "" {
		rt.ID = uuid.New().String()
	}
	now := time.Now()
	rt.CreatedAt, rt.UpdatedAt = now, now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO routes (id, from_city, to_city, price, duration, bus_type, distance, description,
			route_map_image, thumbnail_image, operating_start, operating_end, interval_minutes, is_active,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		rt.ID, rt.From, rt.To, rt.Price, rt.Duration, rt.BusType, rt.Distance, rt.Description,
		rt.RouteMapImage, rt.ThumbnailImage, rt.OperatingStart, rt.OperatingEnd, rt.IntervalMinutes,
		rt.IsActive, rt.CreatedAt, rt.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert route: %w", err)
	}
	return nil
}

// RouteUpdate lists the columns a partial update may touch. Nil fields are
// left unchanged. A non-nil pointer to an empty string clears an optional
// text column.
type RouteUpdate struct {
	From            *string
	To              *string
	Price           *int64
	Duration        *string
	BusType         *string
	Distance        *string
	Description     *string
	RouteMapImage   *string
	ThumbnailImage  *string
	OperatingStart  *string
	OperatingEnd    *string
	IntervalMinutes *int
	IsActive        *bool
}

// Update applies u to the route and returns the stored result.
func (r *RouteRepository) Update(ctx context.Context, id string, u RouteUpdate) (*models.Route, error) {
	var sets []string
	var args []any
	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	optional := func(column string, value *string) {
		if *value == "" {
			set(column, nil)
			return
		}
		set(column, *value)
	}

	if u.From != nil {
		set("from_city", *u.From)
	}
	if u.To != nil {
		set("to_city", *u.To)
	}
	if u.Price != nil {
		set("price", *u.Price)
	}
	if u.Duration != nil {
		set("duration", *u.Duration)
	}
	if u.BusType != nil {
		set("bus_type", *u.BusType)
	}
	if u.Distance != nil {
		optional("distance", u.Distance)
	}
	if u.Description != nil {
		optional("description", u.Description)
	}
	if u.RouteMapImage != nil {
		optional("route_map_image", u.RouteMapImage)
	}
	if u.ThumbnailImage != nil {
		optional("thumbnail_image", u.ThumbnailImage)
	}
	if u.OperatingStart != nil {
		set("operating_start", *u.OperatingStart)
	}
	if u.OperatingEnd != nil {
		set("operating_end", *u.OperatingEnd)
	}
	if u.IntervalMinutes != nil {
		set("interval_minutes", *u.IntervalMinutes)
	}
	if u.IsActive != nil {
		set("is_active", *u.IsActive)
	}
	set("updated_at", time.Now())

	args = append(args, id)
	row := r.db.QueryRowContext(ctx, fmt.Sprintf(
		`UPDATE routes r SET %s WHERE r.id = $%d RETURNING `+routeColumns,
		strings.Join(sets, ", "), len(args)), args...)

	rt, err := scanRoute(row)
	if err != nil {
		return nil, notFound(err)
	}
	return rt, nil
}

// Delete removes a route and its schedules. Routes that were ever booked are
// kept and ErrHasBookings is returned; deactivate them instead.
func (r *RouteRepository) Delete(ctx context.Context, id string) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		var bookings int
		err := tx.QueryRowContext(ctx, `
			SELECT (SELECT COUNT(*) FROM bookings WHERE route_id = r.id)
			FROM routes r
			WHERE r.id = $1
			FOR UPDATE`, id).Scan(&bookings)
		if err != nil {
			return notFound(err)
		}
		if bookings > 0 {
			return ErrHasBookings
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM schedules WHERE route_id = $1`, id); err != nil {
			return fmt.Errorf("delete schedules of route %s: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM routes WHERE id = $1`, id); err != nil {
			return fmt.Errorf("delete route %s: %w", id, err)
		}
		return nil
	})
}
