package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/mohammaddarweesh/FlightMnagementsystem-sub003/internal/domain/booking"
	"github.com/mohammaddarweesh/FlightMnagementsystem-sub003/internal/domain/transaction"
)

type bookingRow struct {
	ID               string     `db:"id"`
	Reference        string     `db:"reference"`
	Status           string     `db:"status"`
	FlightID         string     `db:"flight_id"`
	FareClassID      string     `db:"fare_class_id"`
	HoldReference    string     `db:"hold_reference"`
	IdempotencyKey   string     `db:"idempotency_key"`
	TotalAmount      int        `db:"total_amount"`
	ContactEmail     string     `db:"contact_email"`
	ContactPhone     string     `db:"contact_phone"`
	PaymentReference *string    `db:"payment_reference"`
	CancelReason     *string    `db:"cancel_reason"`
	ExpiresAt        time.Time  `db:"expires_at"`
	ConfirmedAt      *time.Time `db:"confirmed_at"`
	CancelledAt      *time.Time `db:"cancelled_at"`
	CheckedInAt      *time.Time `db:"checked_in_at"`
	CreatedAt        time.Time  `db:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at"`
}

type passengerRow struct {
	ID                string     `db:"id"`
	BookingID         string     `db:"booking_id"`
	FirstName         string     `db:"first_name"`
	LastName          string     `db:"last_name"`
	PassportNumber    string     `db:"passport_number"`
	SeatID            *string    `db:"seat_id"`
	CheckedIn         bool       `db:"checked_in"`
	BoardingReference *string    `db:"boarding_reference"`
	CheckedInAt       *time.Time `db:"checked_in_at"`
}

type modificationRow struct {
	ID            string    `db:"id"`
	BookingID     string    `db:"booking_id"`
	Type          string    `db:"modification_type"`
	PreviousValue string    `db:"previous_value"`
	NewValue      string    `db:"new_value"`
	CostImpact    int       `db:"cost_impact"`
	Actor         string    `db:"actor"`
	CreatedAt     time.Time `db:"created_at"`
}

const bookingColumns = `id, reference, status, flight_id, fare_class_id, hold_reference, idempotency_key, total_amount, contact_email, contact_phone, payment_reference, cancel_reason, expires_at, confirmed_at, cancelled_at, checked_in_at, created_at, updated_at`

type BookingRepository struct{ db *sqlx.DB }

func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

func (r *BookingRepository) Create(ctx context.Context, tx transaction.Tx, b *booking.Booking) error {
	sqlxTx := UnwrapTx(tx)
	query := `INSERT INTO bookings (reference, status, flight_id, fare_class_id, hold_reference, idempotency_key, total_amount, contact_email, contact_phone, expires_at, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12) RETURNING id`
	if err := sqlxTx.QueryRowContext(ctx, query,
		b.Reference, string(b.Status), b.FlightID, b.FareClassID, b.HoldReference,
		b.IdempotencyKey, b.TotalAmount, b.ContactEmail, b.ContactPhone,
		b.ExpiresAt, b.CreatedAt, b.UpdatedAt,
	).Scan(&b.ID); err != nil {
		return fmt.Errorf("予約作成に失敗: %w", err)
	}

	for _, p := range b.Passengers {
		p.BookingID = b.ID
		if err := sqlxTx.QueryRowContext(ctx,
			`INSERT INTO booking_passengers (booking_id, first_name, last_name, passport_number, seat_id) VALUES ($1, $2, $3, $4, $5) RETURNING id`,
			p.BookingID, p.FirstName, p.LastName, p.PassportNumber, p.SeatID,
		).Scan(&p.ID); err != nil {
			return fmt.Errorf("搭乗者作成に失敗: %w", err)
		}
	}

	for _, seatID := range b.SeatIDs {
		if _, err := sqlxTx.ExecContext(ctx, `INSERT INTO booking_seats (booking_id, seat_id) VALUES ($1, $2)`, b.ID, seatID); err != nil {
			return fmt.Errorf("予約座席関連付けに失敗: %w", err)
		}
	}
	return nil
}

func (r *BookingRepository) GetByID(ctx context.Context, id string) (*booking.Booking, error) {
	var row bookingRow
	if err := r.db.GetContext(ctx, &row, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, booking.ErrBookingNotFound
		}
		return nil, fmt.Errorf("予約取得に失敗: %w", err)
	}
	return r.loadRelations(ctx, &row)
}

func (r *BookingRepository) GetByReference(ctx context.Context, reference string) (*booking.Booking, error) {
	var row bookingRow
	if err := r.db.GetContext(ctx, &row, `SELECT `+bookingColumns+` FROM bookings WHERE reference = $1`, reference); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, booking.ErrBookingNotFound
		}
		return nil, fmt.Errorf("予約取得に失敗: %w", err)
	}
	return r.loadRelations(ctx, &row)
}

// GetForUpdate は予約行を FOR UPDATE でロックして取得する
// 同一予約へのコマンドはこのロックで直列化される
func (r *BookingRepository) GetForUpdate(ctx context.Context, tx transaction.Tx, id string) (*booking.Booking, error) {
	sqlxTx := UnwrapTx(tx)
	var row bookingRow
	if err := sqlxTx.GetContext(ctx, &row, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, booking.ErrBookingNotFound
		}
		return nil, fmt.Errorf("予約ロック取得に失敗: %w", err)
	}
	return r.loadRelations(ctx, &row)
}

func (r *BookingRepository) Update(ctx context.Context, tx transaction.Tx, b *booking.Booking) error {
	sqlxTx := UnwrapTx(tx)
	query := `UPDATE bookings SET status = $1, total_amount = $2, payment_reference = $3, cancel_reason = $4, expires_at = $5, confirmed_at = $6, cancelled_at = $7, checked_in_at = $8, updated_at = $9 WHERE id = $10`
	result, err := sqlxTx.ExecContext(ctx, query,
		string(b.Status), b.TotalAmount, b.PaymentReference, b.CancelReason,
		b.ExpiresAt, b.ConfirmedAt, b.CancelledAt, b.CheckedInAt, b.UpdatedAt, b.ID,
	)
	if err != nil {
		return fmt.Errorf("予約更新に失敗: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return booking.ErrBookingNotFound
	}
	return nil
}

func (r *BookingRepository) UpdatePassenger(ctx context.Context, tx transaction.Tx, p *booking.Passenger) error {
	sqlxTx := UnwrapTx(tx)
	query := `UPDATE booking_passengers SET first_name = $1, last_name = $2, passport_number = $3, seat_id = $4, checked_in = $5, boarding_reference = $6, checked_in_at = $7 WHERE id = $8`
	result, err := sqlxTx.ExecContext(ctx, query,
		p.FirstName, p.LastName, p.PassportNumber, p.SeatID,
		p.CheckedIn, p.BoardingReference, p.CheckedInAt, p.ID,
	)
	if err != nil {
		return fmt.Errorf("搭乗者更新に失敗: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return booking.ErrPassengerNotFound
	}
	return nil
}

func (r *BookingRepository) AppendModification(ctx context.Context, tx transaction.Tx, m *booking.Modification) error {
	sqlxTx := UnwrapTx(tx)
	query := `INSERT INTO booking_modifications (booking_id, modification_type, previous_value, new_value, cost_impact, actor, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
	if err := sqlxTx.QueryRowContext(ctx, query,
		m.BookingID, string(m.Type), m.PreviousValue, m.NewValue, m.CostImpact, m.Actor, m.CreatedAt,
	).Scan(&m.ID); err != nil {
		return fmt.Errorf("変更ログ追記に失敗: %w", err)
	}
	return nil
}

func (r *BookingRepository) GetModifications(ctx context.Context, bookingID string) ([]*booking.Modification, error) {
	var rows []modificationRow
	query := `SELECT id, booking_id, modification_type, previous_value, new_value, cost_impact, actor, created_at FROM booking_modifications WHERE booking_id = $1 ORDER BY created_at ASC`
	if err := r.db.SelectContext(ctx, &rows, query, bookingID); err != nil {
		return nil, fmt.Errorf("変更ログ取得に失敗: %w", err)
	}
	mods := make([]*booking.Modification, len(rows))
	for i, row := range rows {
		mods[i] = &booking.Modification{
			ID: row.ID, BookingID: row.BookingID,
			Type: booking.ModificationType(row.Type),
			PreviousValue: row.PreviousValue, NewValue: row.NewValue,
			CostImpact: row.CostImpact, Actor: row.Actor, CreatedAt: row.CreatedAt,
		}
	}
	return mods, nil
}

// GetExpiredPending は期限切れの Draft/PaymentPending 予約をロックして返す
// 複数プロセスのリーパーが同じ予約を取り合わないよう SKIP LOCKED で読む
func (r *BookingRepository) GetExpiredPending(ctx context.Context, tx transaction.Tx, now time.Time, limit int) ([]*booking.Booking, error) {
	sqlxTx := UnwrapTx(tx)
	var rows []bookingRow
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE status IN ('draft', 'payment_pending') AND expires_at <= $1 ORDER BY expires_at ASC LIMIT $2 FOR UPDATE SKIP LOCKED`
	if err := sqlxTx.SelectContext(ctx, &rows, query, now, limit); err != nil {
		return nil, fmt.Errorf("期限切れ予約取得に失敗: %w", err)
	}
	result := make([]*booking.Booking, len(rows))
	for i := range rows {
		b, err := r.loadRelations(ctx, &rows[i])
		if err != nil {
			return nil, err
		}
		result[i] = b
	}
	return result, nil
}

func (r *BookingRepository) loadRelations(ctx context.Context, row *bookingRow) (*booking.Booking, error) {
	var pRows []passengerRow
	if err := r.db.SelectContext(ctx, &pRows, `SELECT id, booking_id, first_name, last_name, passport_number, seat_id, checked_in, boarding_reference, checked_in_at FROM booking_passengers WHERE booking_id = $1 ORDER BY id`, row.ID); err != nil {
		return nil, fmt.Errorf("搭乗者取得に失敗: %w", err)
	}
	passengers := make([]*booking.Passenger, len(pRows))
	for i, p := range pRows {
		passengers[i] = &booking.Passenger{
			ID: p.ID, BookingID: p.BookingID,
			FirstName: p.FirstName, LastName: p.LastName, PassportNumber: p.PassportNumber,
			SeatID: p.SeatID, CheckedIn: p.CheckedIn,
			BoardingReference: p.BoardingReference, CheckedInAt: p.CheckedInAt,
		}
	}

	var seatIDs []string
	if err := r.db.SelectContext(ctx, &seatIDs, `SELECT seat_id FROM booking_seats WHERE booking_id = $1`, row.ID); err != nil {
		return nil, fmt.Errorf("座席ID取得に失敗: %w", err)
	}

	return &booking.Booking{
		ID: row.ID, Reference: row.Reference, Status: booking.Status(row.Status),
		FlightID: row.FlightID, FareClassID: row.FareClassID,
		Passengers: passengers, SeatIDs: seatIDs,
		HoldReference: row.HoldReference, IdempotencyKey: row.IdempotencyKey,
		TotalAmount: row.TotalAmount,
		ContactEmail: row.ContactEmail, ContactPhone: row.ContactPhone,
		PaymentReference: row.PaymentReference, CancelReason: row.CancelReason,
		ExpiresAt: row.ExpiresAt, ConfirmedAt: row.ConfirmedAt,
		CancelledAt: row.CancelledAt, CheckedInAt: row.CheckedInAt,
		CreatedAt: row.CreatedAt, UpdatedAt: row.UpdatedAt,
	}, nil
}

var _ booking.Repository = (*BookingRepository)(nil)
