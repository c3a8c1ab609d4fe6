package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/mohammaddarweesh/FlightMnagementsystem-sub003/internal/domain/flight"
)

type flightRow struct {
	ID            string    `db:"id"`
	FlightNumber  string    `db:"flight_number"`
	Origin        string    `db:"origin"`
	Destination   string    `db:"destination"`
	DepartureTime time.Time `db:"departure_time"`
	ArrivalTime   time.Time `db:"arrival_time"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
	Version       int       `db:"version"`
}

func (r *flightRow) toEntity() *flight.Flight {
	return &flight.Flight{
		ID: r.ID, FlightNumber: r.FlightNumber,
		Origin: r.Origin, Destination: r.Destination,
		DepartureTime: r.DepartureTime, ArrivalTime: r.ArrivalTime,
		CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt, Version: r.Version,
	}
}

type fareClassRow struct {
	ID        string    `db:"id"`
	FlightID  string    `db:"flight_id"`
	Code      string    `db:"code"`
	Name      string    `db:"name"`
	BaseFare  int       `db:"base_fare"`
	Capacity  int       `db:"capacity"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r *fareClassRow) toEntity() *flight.FareClass {
	return &flight.FareClass{
		ID: r.ID, FlightID: r.FlightID, Code: r.Code, Name: r.Name,
		BaseFare: r.BaseFare, Capacity: r.Capacity,
		CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
	}
}

type FlightRepository struct{ db *sqlx.DB }

func NewFlightRepository(db *sqlx.DB) *FlightRepository { return &FlightRepository{db: db} }

func (r *FlightRepository) Create(ctx context.Context, f *flight.Flight) error {
	query := `INSERT INTO flights (flight_number, origin, destination, departure_time, arrival_time, created_at, updated_at, version) VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`
	return r.db.QueryRowContext(ctx, query, f.FlightNumber, f.Origin, f.Destination, f.DepartureTime, f.ArrivalTime, f.CreatedAt, f.UpdatedAt, f.Version).Scan(&f.ID)
}

func (r *FlightRepository) GetByID(ctx context.Context, id string) (*flight.Flight, error) {
	var row flightRow
	query := `SELECT id, flight_number, origin, destination, departure_time, arrival_time, created_at, updated_at, version FROM flights WHERE id = $1`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, flight.ErrFlightNotFound
		}
		return nil, fmt.Errorf("フライト取得に失敗: %w", err)
	}
	return row.toEntity(), nil
}

func (r *FlightRepository) List(ctx context.Context, limit, offset int) ([]*flight.Flight, error) {
	var rows []flightRow
	query := `SELECT id, flight_number, origin, destination, departure_time, arrival_time, created_at, updated_at, version FROM flights ORDER BY departure_time ASC LIMIT $1 OFFSET $2`
	if err := r.db.SelectContext(ctx, &rows, query, limit, offset); err != nil {
		return nil, fmt.Errorf("フライト一覧取得に失敗: %w", err)
	}
	flights := make([]*flight.Flight, len(rows))
	for i, row := range rows {
		flights[i] = row.toEntity()
	}
	return flights, nil
}

func (r *FlightRepository) CreateFareClass(ctx context.Context, fc *flight.FareClass) error {
	query := `INSERT INTO fare_classes (flight_id, code, name, base_fare, capacity, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
	return r.db.QueryRowContext(ctx, query, fc.FlightID, fc.Code, fc.Name, fc.BaseFare, fc.Capacity, fc.CreatedAt, fc.UpdatedAt).Scan(&fc.ID)
}

func (r *FlightRepository) GetFareClassByID(ctx context.Context, id string) (*flight.FareClass, error) {
	var row fareClassRow
	query := `SELECT id, flight_id, code, name, base_fare, capacity, created_at, updated_at FROM fare_classes WHERE id = $1`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, flight.ErrFareClassNotFound
		}
		return nil, fmt.Errorf("運賃クラス取得に失敗: %w", err)
	}
	return row.toEntity(), nil
}

func (r *FlightRepository) GetFareClassesByFlightID(ctx context.Context, flightID string) ([]*flight.FareClass, error) {
	var rows []fareClassRow
	query := `SELECT id, flight_id, code, name, base_fare, capacity, created_at, updated_at FROM fare_classes WHERE flight_id = $1 ORDER BY base_fare DESC`
	if err := r.db.SelectContext(ctx, &rows, query, flightID); err != nil {
		return nil, fmt.Errorf("運賃クラス一覧取得に失敗: %w", err)
	}
	fareClasses := make([]*flight.FareClass, len(rows))
	for i, row := range rows {
		fareClasses[i] = row.toEntity()
	}
	return fareClasses, nil
}

var _ flight.Repository = (*FlightRepository)(nil)
