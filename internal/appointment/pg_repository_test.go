package appointment

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var bookingColumnNames = []string{
	"id", "practitioner_id", "client_id", "start_time", "end_time", "note",
	"completed", "cancelled", "created_at", "updated_at",
}

func newMockRepository(t *testing.T) (pgxmock.PgxPoolIface, *PgRepository) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})
	return mock, newPgRepositoryWithQuerier(mock)
}

func TestPgFindPractitioner(t *testing.T) {
	mock, repo := newMockRepository(t)
	id := uuid.New()
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectQuery(`FROM practitioners\s+WHERE id = \$1`).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"id", "account_id", "name", "department", "active", "created_at", "updated_at"}).
			AddRow(id, (*uuid.UUID)(nil), "Dr. Kilic", int16(DepartmentOncology), true, created, created))

	p, err := repo.FindPractitioner(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Dr. Kilic", p.Name)
	assert.Equal(t, DepartmentOncology, p.Department)
	assert.True(t, p.Active)
	assert.Nil(t, p.AccountID)
}

func TestPgGetBookingNotFound(t *testing.T) {
	mock, repo := newMockRepository(t)
	id := uuid.New()

	mock.ExpectQuery(`FROM bookings\s+WHERE id = \$1`).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(bookingColumnNames))

	_, err := repo.GetBooking(context.Background(), id)
	assert.ErrorIs(t, err, ErrBookingNotFound)
}

func TestPgSaveBookingMapsExclusionViolation(t *testing.T) {
	mock, repo := newMockRepository(t)
	start := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`INSERT INTO bookings`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), start, start.Add(30*time.Minute), "", false).
		WillReturnError(&pgconn.PgError{Code: "23P01", ConstraintName: "bookings_no_overlap"})

	_, err := repo.SaveBooking(context.Background(), Booking{
		PractitionerID: uuid.New(),
		ClientID:       uuid.New(),
		Start:          start,
		End:            start.Add(30 * time.Minute),
	})
	assert.ErrorIs(t, err, ErrBookingOverlap)
	assert.Equal(t, KindConflict, KindOf(err))
}

func TestPgSaveBookingReturnsRow(t *testing.T) {
	mock, repo := newMockRepository(t)
	id, pid, cid := uuid.New(), uuid.New(), uuid.New()
	start := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`INSERT INTO bookings`).
		WithArgs(id, pid, cid, start, start.Add(time.Hour), "first visit", false).
		WillReturnRows(pgxmock.NewRows(bookingColumnNames).
			AddRow(id, pid, cid, start, start.Add(time.Hour), "first visit", false, false, now, now))

	b, err := repo.SaveBooking(context.Background(), Booking{
		ID: id, PractitionerID: pid, ClientID: cid, Start: start, End: start.Add(time.Hour), Note: "first visit",
	})
	require.NoError(t, err)
	assert.Equal(t, id, b.ID)
	assert.Equal(t, StatePending, b.State())
}

func TestPgSaveBookingMapsMissingPartyByConstraint(t *testing.T) {
	cases := []struct {
		constraint string
		want       error
	}{
		{"bookings_practitioner_id_fkey", ErrPractitionerNotFound},
		{"bookings_client_id_fkey", ErrClientNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.constraint, func(t *testing.T) {
			mock, repo := newMockRepository(t)
			start := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)

			mock.ExpectQuery(`INSERT INTO bookings`).
				WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), start, start.Add(time.Hour), "", false).
				WillReturnError(&pgconn.PgError{Code: "23503", ConstraintName: tc.constraint})

			_, err := repo.SaveBooking(context.Background(), Booking{
				PractitionerID: uuid.New(), ClientID: uuid.New(), Start: start, End: start.Add(time.Hour),
			})
			assert.ErrorIs(t, err, tc.want)
			assert.Equal(t, KindNotFound, KindOf(err))
		})
	}
}

func TestPgSaveBookingSkippedForInactiveParty(t *testing.T) {
	active, inactive := true, false
	cases := []struct {
		name         string
		practitioner *bool
		client       *bool
		want         error
	}{
		{"practitioner inactive", &inactive, &active, ErrPractitionerInactive},
		{"practitioner missing", nil, &active, ErrPractitionerNotFound},
		{"client inactive", &active, &inactive, ErrClientInactive},
		{"client missing", &active, nil, ErrClientNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mock, repo := newMockRepository(t)
			pid, cid := uuid.New(), uuid.New()
			start := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)

			mock.ExpectQuery(`INSERT INTO bookings(.|\n)*FROM practitioners WHERE id = \$2 AND active FOR SHARE`).
				WithArgs(pgxmock.AnyArg(), pid, cid, start, start.Add(time.Hour), "", false).
				WillReturnRows(pgxmock.NewRows(bookingColumnNames))
			mock.ExpectQuery(`SELECT active FROM practitioners WHERE id = \$1`).
				WithArgs(pid, cid).
				WillReturnRows(pgxmock.NewRows([]string{"practitioner_active", "client_active"}).
					AddRow(tc.practitioner, tc.client))

			_, err := repo.SaveBooking(context.Background(), Booking{
				PractitionerID: pid, ClientID: cid, Start: start, End: start.Add(time.Hour),
			})
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestPgUpdateBookingRefusesToReopenCompleted(t *testing.T) {
	mock, repo := newMockRepository(t)
	id, pid, cid := uuid.New(), uuid.New(), uuid.New()
	start := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)
	now := time.Date(2024, 6, 4, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`UPDATE bookings(.|\n)*AND \(completed = FALSE OR \$7\)`).
		WithArgs(id, pid, cid, start, start.Add(time.Hour), "moved", false).
		WillReturnRows(pgxmock.NewRows(bookingColumnNames))
	mock.ExpectQuery(`FROM bookings\s+WHERE id = \$1`).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(bookingColumnNames).
			AddRow(id, pid, cid, start, start.Add(time.Hour), "", true, false, now, now))

	_, err := repo.UpdateBooking(context.Background(), Booking{
		ID: id, PractitionerID: pid, ClientID: cid, Start: start, End: start.Add(time.Hour), Note: "moved",
	})
	assert.ErrorIs(t, err, ErrBookingCompleted)
}

func TestPgUpdateBookingRefusesCancelled(t *testing.T) {
	mock, repo := newMockRepository(t)
	id, pid, cid := uuid.New(), uuid.New(), uuid.New()
	start := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`UPDATE bookings`).
		WithArgs(id, pid, cid, start, start.Add(time.Hour), "", false).
		WillReturnRows(pgxmock.NewRows(bookingColumnNames))
	mock.ExpectQuery(`FROM bookings\s+WHERE id = \$1`).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(bookingColumnNames).
			AddRow(id, pid, cid, start, start.Add(time.Hour), "", false, true, now, now))

	_, err := repo.UpdateBooking(context.Background(), Booking{
		ID: id, PractitionerID: pid, ClientID: cid, Start: start, End: start.Add(time.Hour),
	})
	assert.ErrorIs(t, err, ErrBookingCancelled)
}

func TestPgCreateClientMapsUniqueViolation(t *testing.T) {
	mock, repo := newMockRepository(t)

	mock.ExpectQuery(`INSERT INTO clients`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "Ali Veli", "12345678901").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "clients_identity_number_key"})

	_, err := repo.CreateClient(context.Background(), Client{Name: "Ali Veli", IdentityNumber: "12345678901"})
	assert.ErrorIs(t, err, ErrDuplicateIdentityNumber)
}

func TestPgListBookingsInRange(t *testing.T) {
	mock, repo := newMockRepository(t)
	pid, cid := uuid.New(), uuid.New()
	start := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 7)
	slot := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)

	cols := append(append([]string{}, bookingColumnNames...), "name", "active", "active")
	mock.ExpectQuery(`AND b.start_time < \$3\s+AND b.end_time > \$2`).
		WithArgs(pid, start, end).
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow(uuid.New(), pid, cid, slot, slot.Add(30*time.Minute), "", false, false, slot, slot, "Hande Er", true, true))

	views, err := repo.ListBookingsInRange(context.Background(), pid, start, end)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "Hande Er", views[0].ClientName)
	assert.True(t, views[0].PractitionerActive)
	assert.True(t, views[0].ClientActive)
	assert.Equal(t, slot, views[0].Start)
}

func TestPgListBookingsBuildsFilter(t *testing.T) {
	mock, repo := newMockRepository(t)
	pid := uuid.New()
	from := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`WHERE practitioner_id = \$1 AND end_time > \$2 AND cancelled = FALSE ORDER BY start_time, id`).
		WithArgs(pid, from).
		WillReturnRows(pgxmock.NewRows(bookingColumnNames))

	bookings, err := repo.ListBookings(context.Background(), BookingFilter{PractitionerID: pid, From: from})
	require.NoError(t, err)
	assert.Empty(t, bookings)
}

func TestPgMarkCompleted(t *testing.T) {
	mock, repo := newMockRepository(t)
	id := uuid.New()

	mock.ExpectExec(`SET completed = TRUE`).
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`SET completed = TRUE`).
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	changed, err := repo.MarkCompleted(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = repo.MarkCompleted(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, changed, "already completed rows are left alone")
}

func TestPgDeactivateParty(t *testing.T) {
	mock, repo := newMockRepository(t)
	id := uuid.New()

	mock.ExpectExec(`UPDATE clients\s+SET active = FALSE,\s+account_id = NULL`).
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.DeactivateParty(context.Background(), PartyClient, id)
	assert.ErrorIs(t, err, ErrClientNotFound)
}

func TestPgDeletePartyWithHistory(t *testing.T) {
	mock, repo := newMockRepository(t)
	id := uuid.New()

	mock.ExpectExec(`DELETE FROM practitioners WHERE id = \$1`).
		WithArgs(id).
		WillReturnError(&pgconn.PgError{Code: "23503", ConstraintName: "bookings_practitioner_id_fkey"})

	err := repo.DeleteParty(context.Background(), PartyPractitioner, id)
	assert.ErrorIs(t, err, ErrPartyHasHistory)
}

func TestPgCountFutureActiveBookings(t *testing.T) {
	mock, repo := newMockRepository(t)
	id := uuid.New()
	now := time.Date(2024, 6, 5, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`WHERE client_id = \$1\s+AND cancelled = FALSE\s+AND start_time > \$2`).
		WithArgs(id, now).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(3))

	n, err := repo.CountFutureActiveBookings(context.Background(), PartyClient, id, now)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestPgInsertEvent(t *testing.T) {
	mock, repo := newMockRepository(t)
	bookingID := uuid.New()
	payload := []byte(`{"reason":"sweep"}`)

	mock.ExpectExec(`INSERT INTO event_logs`).
		WithArgs(EventBookingCompleted, &bookingID, (*uuid.UUID)(nil), payload, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := repo.InsertEvent(context.Background(), EventLog{
		EventType: EventBookingCompleted,
		BookingID: &bookingID,
		Payload:   payload,
		CreatedAt: time.Now(),
	})
	require.NoError(t, err)
}

func TestPgUnknownParty(t *testing.T) {
	_, repo := newMockRepository(t)

	_, err := repo.CountBookingsForParty(context.Background(), Party("nurse"), uuid.New())
	assert.Error(t, err)
}
