package repository

import (
    "context"
    "database/sql"
    "database/sql/driver"
    "testing"
    "time"

    "github.com/DATA-DOG/go-sqlmock"
    "github.com/go-sql-driver/mysql"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/bus-ticket-booking/internal/model"
)

var ticketRowColumns = []string{
    "id", "user_id", "ticket_number",
    "passenger_name", "passenger_email", "passenger_phone",
    "route_id", "route_name", "bus_id", "bus_number",
    "departure_date", "departure_time", "arrival_time",
    "seat_numbers", "price_per_seat_cents", "total_price_cents",
    "status", "booked_at", "updated_at",
}

func ticketRow(id, userID uint64, number, status string, bookedAt time.Time) []driver.Value {
    return []driver.Value{
        id, userID, number,
        "Aylin Moradi", "aylin@example.com", "+989121234567",
        "42", "Tehran - Isfahan", "7", "IR-7421",
        "2026-09-14", "08:30", "14:15",
        []byte(`["A1","A2"]`), uint32(1000), uint32(2000),
        status, bookedAt, bookedAt,
    }
}

func TestCreatePopulatesStoredRow(t *testing.T) {
    db, mock, err := sqlmock.New()
    require.NoError(t, err)
    defer db.Close()
    repo := NewTicketRepo(db)

    now := time.Now().UTC().Truncate(time.Second)
    mock.ExpectExec("INSERT INTO tickets").
        WillReturnResult(sqlmock.NewResult(5, 1))
    mock.ExpectQuery("FROM tickets WHERE id = \\?").
        WithArgs(uint64(5)).
        WillReturnRows(sqlmock.NewRows(ticketRowColumns).
            AddRow(ticketRow(5, 11, "TKT-0AB1C2D3", model.StatusConfirmed, now)...))

    ticket := &model.Ticket{
        UserID:            11,
        TicketNumber:      "TKT-0AB1C2D3",
        PassengerName:     "Aylin Moradi",
        PassengerEmail:    "aylin@example.com",
        PassengerPhone:    "+989121234567",
        RouteID:           "42",
        RouteName:         "Tehran - Isfahan",
        BusID:             "7",
        BusNumber:         "IR-7421",
        DepartureDate:     "2026-09-14",
        DepartureTime:     "08:30",
        ArrivalTime:       "14:15",
        SeatNumbers:       []string{"A1", "A2"},
        PricePerSeatCents: 1000,
        TotalPriceCents:   2000,
        Status:            model.StatusConfirmed,
    }
    require.NoError(t, repo.Create(context.Background(), ticket))
    assert.Equal(t, uint64(5), ticket.ID)
    assert.Equal(t, now, ticket.BookedAt)
    assert.Equal(t, []string{"A1", "A2"}, ticket.SeatNumbers)
    assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateDuplicateTicketNumber(t *testing.T) {
    db, mock, err := sqlmock.New()
    require.NoError(t, err)
    defer db.Close()
    repo := NewTicketRepo(db)

    mock.ExpectExec("INSERT INTO tickets").
        WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'TKT-0AB1C2D3'"})

    ticket := &model.Ticket{UserID: 11, TicketNumber: "TKT-0AB1C2D3", SeatNumbers: []string{"A1"}, Status: model.StatusConfirmed}
    err = repo.Create(context.Background(), ticket)
    assert.ErrorIs(t, err, ErrDuplicateTicketNumber)
    assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByIDForUserScopesOwnership(t *testing.T) {
    db, mock, err := sqlmock.New()
    require.NoError(t, err)
    defer db.Close()
    repo := NewTicketRepo(db)

    now := time.Now().UTC()
    mock.ExpectQuery("FROM tickets WHERE id = \\? AND user_id = \\?").
        WithArgs(uint64(5), uint64(11)).
        WillReturnRows(sqlmock.NewRows(ticketRowColumns).
            AddRow(ticketRow(5, 11, "TKT-0AB1C2D3", model.StatusConfirmed, now)...))

    ticket, err := repo.GetByIDForUser(context.Background(), 5, 11)
    require.NoError(t, err)
    assert.Equal(t, "TKT-0AB1C2D3", ticket.TicketNumber)

    // the same ticket fetched by a different user yields no rows
    mock.ExpectQuery("FROM tickets WHERE id = \\? AND user_id = \\?").
        WithArgs(uint64(5), uint64(99)).
        WillReturnRows(sqlmock.NewRows(ticketRowColumns))

    _, err = repo.GetByIDForUser(context.Background(), 5, 99)
    assert.ErrorIs(t, err, sql.ErrNoRows)
    assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListByUserWithStatusFilter(t *testing.T) {
    db, mock, err := sqlmock.New()
    require.NoError(t, err)
    defer db.Close()
    repo := NewTicketRepo(db)

    now := time.Now().UTC()
    mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM tickets WHERE user_id = \\? AND status = \\?").
        WithArgs(uint64(11), model.StatusConfirmed).
        WillReturnRows(sqlmock.NewRows([]string{"COUNT(*)"}).AddRow(3))
    mock.ExpectQuery("FROM tickets WHERE user_id = \\? AND status = \\? ORDER BY booked_at DESC").
        WithArgs(uint64(11), model.StatusConfirmed, 2, 0).
        WillReturnRows(sqlmock.NewRows(ticketRowColumns).
            AddRow(ticketRow(6, 11, "TKT-11111111", model.StatusConfirmed, now)...).
            AddRow(ticketRow(5, 11, "TKT-22222222", model.StatusConfirmed, now.Add(-time.Hour))...))

    tickets, total, err := repo.ListByUser(context.Background(), 11, model.StatusConfirmed, 2, 0)
    require.NoError(t, err)
    assert.Equal(t, 3, total)
    require.Len(t, tickets, 2)
    assert.Equal(t, "TKT-11111111", tickets[0].TicketNumber)
    assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListByUserEmptyPage(t *testing.T) {
    db, mock, err := sqlmock.New()
    require.NoError(t, err)
    defer db.Close()
    repo := NewTicketRepo(db)

    mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM tickets WHERE user_id = \\?").
        WithArgs(uint64(11)).
        WillReturnRows(sqlmock.NewRows([]string{"COUNT(*)"}).AddRow(0))
    mock.ExpectQuery("FROM tickets WHERE user_id = \\? ORDER BY booked_at DESC").
        WithArgs(uint64(11), 10, 0).
        WillReturnRows(sqlmock.NewRows(ticketRowColumns))

    tickets, total, err := repo.ListByUser(context.Background(), 11, "", 10, 0)
    require.NoError(t, err)
    assert.Zero(t, total)
    assert.NotNil(t, tickets)
    assert.Empty(t, tickets)
    assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompareAndSetStatus(t *testing.T) {
    db, mock, err := sqlmock.New()
    require.NoError(t, err)
    defer db.Close()
    repo := NewTicketRepo(db)

    mock.ExpectExec("UPDATE tickets SET status = \\?, updated_at = UTC_TIMESTAMP\\(\\) WHERE id = \\? AND status = \\?").
        WithArgs(model.StatusCancelled, uint64(5), model.StatusConfirmed).
        WillReturnResult(sqlmock.NewResult(0, 1))

    ok, err := repo.CompareAndSetStatus(context.Background(), 5, model.StatusConfirmed, model.StatusCancelled)
    require.NoError(t, err)
    assert.True(t, ok)

    // a second transition finds no row in the expected status
    mock.ExpectExec("UPDATE tickets SET status = \\?, updated_at = UTC_TIMESTAMP\\(\\) WHERE id = \\? AND status = \\?").
        WithArgs(model.StatusCancelled, uint64(5), model.StatusConfirmed).
        WillReturnResult(sqlmock.NewResult(0, 0))

    ok, err = repo.CompareAndSetStatus(context.Background(), 5, model.StatusConfirmed, model.StatusCancelled)
    require.NoError(t, err)
    assert.False(t, ok)
    assert.NoError(t, mock.ExpectationsWereMet())
}
