package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	pgExclusionViolation  = "23P01"
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

// querier is the subset of *pgxpool.Pool the repository uses.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgRepository struct {
	db querier
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{db: pool}
}

func newPgRepositoryWithQuerier(db querier) *PgRepository {
	return &PgRepository{db: db}
}

// Helpers

const (
	practitionerColumns = `id, account_id, name, department, active, created_at, updated_at`
	clientColumns       = `id, account_id, name, identity_number, active, created_at, updated_at`
	bookingColumns      = `id, practitioner_id, client_id, start_time, end_time, note, completed, cancelled, created_at, updated_at`
)

func partyTable(party Party) (table, column string, err error) {
	switch party {
	case PartyPractitioner:
		return "practitioners", "practitioner_id", nil
	case PartyClient:
		return "clients", "client_id", nil
	}
	return "", "", fmt.Errorf("unknown party %q", party)
}

func partyNotFound(party Party) error {
	if party == PartyPractitioner {
		return ErrPractitionerNotFound
	}
	return ErrClientNotFound
}

func scanPractitioner(row pgx.Row) (*Practitioner, error) {
	var p Practitioner
	var department int16

	err := row.Scan(
		&p.ID,
		&p.AccountID,
		&p.Name,
		&department,
		&p.Active,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPractitionerNotFound
		}
		return nil, err
	}

	p.Department = Department(department)
	return &p, nil
}

func scanClient(row pgx.Row) (*Client, error) {
	var c Client

	err := row.Scan(
		&c.ID,
		&c.AccountID,
		&c.Name,
		&c.IdentityNumber,
		&c.Active,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}

	return &c, nil
}

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking

	err := row.Scan(
		&b.ID,
		&b.PractitionerID,
		&b.ClientID,
		&b.Start,
		&b.End,
		&b.Note,
		&b.Completed,
		&b.Cancelled,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}

	b.Start = Normalize(b.Start)
	b.End = Normalize(b.End)
	return &b, nil
}

func collectBookings(rows pgx.Rows) ([]Booking, error) {
	defer rows.Close()

	var result []Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *b)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// mapWriteError turns constraint violations into business errors.
func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case pgExclusionViolation:
		return ErrBookingOverlap
	case pgUniqueViolation:
		if pgErr.ConstraintName == "clients_identity_number_key" {
			return ErrDuplicateIdentityNumber
		}
	case pgCheckViolation:
		switch pgErr.ConstraintName {
		case "bookings_range_check":
			return ErrInvalidRange
		case "clients_identity_number_format":
			return validationError("identity number must be exactly 11 digits")
		}
	case pgForeignKeyViolation:
		// Raised on booking writes whose party row vanished. Deletes of a
		// referenced party are mapped by DeleteParty instead.
		switch pgErr.ConstraintName {
		case "bookings_practitioner_id_fkey":
			return ErrPractitionerNotFound
		case "bookings_client_id_fkey":
			return ErrClientNotFound
		}
	}
	return err
}

// Parties

func (r *PgRepository) FindPractitioner(ctx context.Context, id uuid.UUID) (*Practitioner, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+practitionerColumns+`
		FROM practitioners
		WHERE id = $1
	`, id)
	return scanPractitioner(row)
}

func (r *PgRepository) FindPractitionerByAccount(ctx context.Context, accountID uuid.UUID) (*Practitioner, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+practitionerColumns+`
		FROM practitioners
		WHERE account_id = $1
		ORDER BY created_at
		LIMIT 1
	`, accountID)
	return scanPractitioner(row)
}

func (r *PgRepository) FindClient(ctx context.Context, id uuid.UUID) (*Client, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+clientColumns+`
		FROM clients
		WHERE id = $1
	`, id)
	return scanClient(row)
}

func (r *PgRepository) FindClientByAccount(ctx context.Context, accountID uuid.UUID) (*Client, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+clientColumns+`
		FROM clients
		WHERE account_id = $1
		ORDER BY created_at
		LIMIT 1
	`, accountID)
	return scanClient(row)
}

func (r *PgRepository) CreatePractitioner(ctx context.Context, p Practitioner) (*Practitioner, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}

	row := r.db.QueryRow(ctx, `
		INSERT INTO practitioners (id, account_id, name, department, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, TRUE, now(), now())
		RETURNING `+practitionerColumns,
		p.ID, p.AccountID, p.Name, int16(p.Department))

	created, err := scanPractitioner(row)
	if err != nil {
		return nil, mapWriteError(err)
	}
	return created, nil
}

func (r *PgRepository) CreateClient(ctx context.Context, c Client) (*Client, error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}

	row := r.db.QueryRow(ctx, `
		INSERT INTO clients (id, account_id, name, identity_number, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, TRUE, now(), now())
		RETURNING `+clientColumns,
		c.ID, c.AccountID, c.Name, c.IdentityNumber)

	created, err := scanClient(row)
	if err != nil {
		return nil, mapWriteError(err)
	}
	return created, nil
}

func (r *PgRepository) DeactivateParty(ctx context.Context, party Party, id uuid.UUID) error {
	table, _, err := partyTable(party)
	if err != nil {
		return err
	}

	tag, err := r.db.Exec(ctx, `
		UPDATE `+table+`
		SET active = FALSE,
		    account_id = NULL,
		    updated_at = now()
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("deactivate %s: %w", party, err)
	}
	if tag.RowsAffected() == 0 {
		return partyNotFound(party)
	}
	return nil
}

func (r *PgRepository) DeleteParty(ctx context.Context, party Party, id uuid.UUID) error {
	table, _, err := partyTable(party)
	if err != nil {
		return err
	}

	tag, err := r.db.Exec(ctx, `DELETE FROM `+table+` WHERE id = $1`, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return ErrPartyHasHistory
		}
		return fmt.Errorf("delete %s: %w", party, err)
	}
	if tag.RowsAffected() == 0 {
		return partyNotFound(party)
	}
	return nil
}

// Reads

func (r *PgRepository) GetBooking(ctx context.Context, id uuid.UUID) (*Booking, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE id = $1
	`, id)
	return scanBooking(row)
}

func (r *PgRepository) ListBookings(ctx context.Context, filter BookingFilter) ([]Booking, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if filter.PractitionerID != uuid.Nil {
		add("practitioner_id = $%d", filter.PractitionerID)
	}
	if filter.ClientID != uuid.Nil {
		add("client_id = $%d", filter.ClientID)
	}
	if !filter.From.IsZero() {
		add("end_time > $%d", Normalize(filter.From))
	}
	if !filter.To.IsZero() {
		add("start_time < $%d", Normalize(filter.To))
	}
	if !filter.IncludeCancelled {
		where = append(where, "cancelled = FALSE")
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY start_time, id`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectBookings(rows)
}

func (r *PgRepository) ListActiveBookingsForPractitioner(ctx context.Context, practitionerID uuid.UUID) ([]Booking, error) {
	rows, err := r.db.Query(ctx, `
		SELECT b.id, b.practitioner_id, b.client_id, b.start_time, b.end_time, b.note,
		       b.completed, b.cancelled, b.created_at, b.updated_at
		FROM bookings b
		JOIN practitioners p ON p.id = b.practitioner_id
		JOIN clients c ON c.id = b.client_id
		WHERE b.practitioner_id = $1
		  AND b.cancelled = FALSE
		  AND p.active = TRUE
		  AND c.active = TRUE
		ORDER BY b.start_time
	`, practitionerID)
	if err != nil {
		return nil, err
	}
	return collectBookings(rows)
}

func (r *PgRepository) ListBookingsInRange(ctx context.Context, practitionerID uuid.UUID, start, end time.Time) ([]BookingView, error) {
	rows, err := r.db.Query(ctx, `
		SELECT b.id, b.practitioner_id, b.client_id, b.start_time, b.end_time, b.note,
		       b.completed, b.cancelled, b.created_at, b.updated_at,
		       c.name, p.active, c.active
		FROM bookings b
		JOIN practitioners p ON p.id = b.practitioner_id
		JOIN clients c ON c.id = b.client_id
		WHERE b.practitioner_id = $1
		  AND b.cancelled = FALSE
		  AND p.active = TRUE
		  AND c.active = TRUE
		  AND b.start_time < $3
		  AND b.end_time > $2
		ORDER BY b.start_time
	`, practitionerID, Normalize(start), Normalize(end))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []BookingView
	for rows.Next() {
		var v BookingView
		err := rows.Scan(
			&v.ID,
			&v.PractitionerID,
			&v.ClientID,
			&v.Start,
			&v.End,
			&v.Note,
			&v.Completed,
			&v.Cancelled,
			&v.CreatedAt,
			&v.UpdatedAt,
			&v.ClientName,
			&v.PractitionerActive,
			&v.ClientActive,
		)
		if err != nil {
			return nil, err
		}
		v.Start = Normalize(v.Start)
		v.End = Normalize(v.End)
		result = append(result, v)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) ListOpenBookingsForParty(ctx context.Context, party Party, id uuid.UUID) ([]Booking, error) {
	_, column, err := partyTable(party)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE `+column+` = $1
		  AND cancelled = FALSE
		ORDER BY start_time
	`, id)
	if err != nil {
		return nil, err
	}
	return collectBookings(rows)
}

func (r *PgRepository) CountFutureActiveBookings(ctx context.Context, party Party, id uuid.UUID, now time.Time) (int, error) {
	_, column, err := partyTable(party)
	if err != nil {
		return 0, err
	}

	var n int
	err = r.db.QueryRow(ctx, `
		SELECT count(*)
		FROM bookings
		WHERE `+column+` = $1
		  AND cancelled = FALSE
		  AND start_time > $2
	`, id, Normalize(now)).Scan(&n)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (r *PgRepository) CountBookingsForParty(ctx context.Context, party Party, id uuid.UUID) (int, error) {
	_, column, err := partyTable(party)
	if err != nil {
		return 0, err
	}

	var n int
	err = r.db.QueryRow(ctx, `SELECT count(*) FROM bookings WHERE `+column+` = $1`, id).Scan(&n)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Writes

// activePartiesGuard holds when practitioner $2 and client $3 exist and are
// active. FOR SHARE makes a concurrent deactivation wait for this write, and
// a write queued behind a deactivation re-reads the party and skips the row.
const activePartiesGuard = `
	EXISTS (SELECT 1 FROM practitioners WHERE id = $2 AND active FOR SHARE)
	AND EXISTS (SELECT 1 FROM clients WHERE id = $3 AND active FOR SHARE)`

func (r *PgRepository) SaveBooking(ctx context.Context, b Booking) (*Booking, error) {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}

	row := r.db.QueryRow(ctx, `
		INSERT INTO bookings (id, practitioner_id, client_id, start_time, end_time, note, completed, cancelled, created_at, updated_at)
		SELECT $1::uuid, $2::uuid, $3::uuid, $4::timestamptz, $5::timestamptz, $6::text, $7::boolean, FALSE, now(), now()
		WHERE `+activePartiesGuard+`
		RETURNING `+bookingColumns,
		b.ID, b.PractitionerID, b.ClientID, Normalize(b.Start), Normalize(b.End), b.Note, b.Completed)

	saved, err := scanBooking(row)
	if errors.Is(err, ErrBookingNotFound) {
		return nil, r.partyRejection(ctx, b.PractitionerID, b.ClientID)
	}
	if err != nil {
		return nil, mapWriteError(err)
	}
	return saved, nil
}

// UpdateBooking overwrites the mutable fields. The cancelled flag is never
// written here. A cancelled row, a completed row being reset to pending and
// inactive parties leave the row untouched.
func (r *PgRepository) UpdateBooking(ctx context.Context, b Booking) (*Booking, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE bookings
		SET practitioner_id = $2,
		    client_id = $3,
		    start_time = $4,
		    end_time = $5,
		    note = $6,
		    completed = $7,
		    updated_at = now()
		WHERE id = $1
		  AND cancelled = FALSE
		  AND (completed = FALSE OR $7)
		  AND `+activePartiesGuard+`
		RETURNING `+bookingColumns,
		b.ID, b.PractitionerID, b.ClientID, Normalize(b.Start), Normalize(b.End), b.Note, b.Completed)

	updated, err := scanBooking(row)
	if errors.Is(err, ErrBookingNotFound) {
		return nil, r.updateRejection(ctx, b)
	}
	if err != nil {
		return nil, mapWriteError(err)
	}
	return updated, nil
}

// updateRejection explains an UPDATE that matched no row.
func (r *PgRepository) updateRejection(ctx context.Context, b Booking) error {
	current, err := r.GetBooking(ctx, b.ID)
	if err != nil {
		return err
	}
	switch {
	case current.Cancelled:
		return ErrBookingCancelled
	case current.Completed && !b.Completed:
		return ErrBookingCompleted
	}
	return r.partyRejection(ctx, b.PractitionerID, b.ClientID)
}

// partyRejection explains a booking write skipped by activePartiesGuard.
func (r *PgRepository) partyRejection(ctx context.Context, practitionerID, clientID uuid.UUID) error {
	var practitionerActive, clientActive *bool
	err := r.db.QueryRow(ctx, `
		SELECT (SELECT active FROM practitioners WHERE id = $1),
		       (SELECT active FROM clients WHERE id = $2)
	`, practitionerID, clientID).Scan(&practitionerActive, &clientActive)
	if err != nil {
		return fmt.Errorf("load party state: %w", err)
	}

	switch {
	case practitionerActive == nil:
		return ErrPractitionerNotFound
	case !*practitionerActive:
		return ErrPractitionerInactive
	case clientActive == nil:
		return ErrClientNotFound
	case !*clientActive:
		return ErrClientInactive
	}
	// both parties came back active; the guard lost a race with a reactivation
	return ErrScheduleBusy
}

func (r *PgRepository) CancelBooking(ctx context.Context, id uuid.UUID) (*Booking, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE bookings
		SET cancelled = TRUE,
		    updated_at = CASE WHEN cancelled THEN updated_at ELSE now() END
		WHERE id = $1
		RETURNING `+bookingColumns, id)
	return scanBooking(row)
}

func (r *PgRepository) DeleteBooking(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM bookings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete booking: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrBookingNotFound
	}
	return nil
}

// Sweep

func (r *PgRepository) ListSweepCandidates(ctx context.Context, now time.Time) ([]Booking, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE completed = FALSE
		  AND cancelled = FALSE
		  AND end_time <= $1
		ORDER BY end_time
	`, Normalize(now))
	if err != nil {
		return nil, err
	}
	return collectBookings(rows)
}

func (r *PgRepository) MarkCompleted(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE bookings
		SET completed = TRUE,
		    updated_at = now()
		WHERE id = $1
		  AND completed = FALSE
		  AND cancelled = FALSE
	`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Event logging

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO event_logs (event_type, booking_id, party_id, payload, created_at)
		VALUES ($1, $2, $3, $4, COALESCE($5, now()))
	`, ev.EventType, ev.BookingID, ev.PartyID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
