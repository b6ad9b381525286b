package repository

import (
    "context"
    "database/sql"
    "encoding/json"
    "errors"

    "github.com/go-sql-driver/mysql"

    "github.com/iliyamo/bus-ticket-booking/internal/model"
)

// mysqlDuplicateEntry is the MySQL error number raised when an INSERT
// violates a unique constraint (ER_DUP_ENTRY).
const mysqlDuplicateEntry = 1062

// ticketColumns lists the columns selected for every ticket read so that
// scanTicket stays in sync with a single definition.
const ticketColumns = `id, user_id, ticket_number,
              passenger_name, passenger_email, passenger_phone,
              route_id, route_name, bus_id, bus_number,
              departure_date, departure_time, arrival_time,
              seat_numbers, price_per_seat_cents, total_price_cents,
              status, booked_at, updated_at`

// TicketRepo provides persistence for tickets.  All mutation goes
// through Create or CompareAndSetStatus; there is deliberately no
// general update method, so the cancellation race is handled entirely
// by the store's atomic status transition.  Timestamps are stored in
// UTC.
type TicketRepo struct {
    db *sql.DB
}

// NewTicketRepo returns a new TicketRepo bound to the given database.
func NewTicketRepo(db *sql.DB) *TicketRepo { return &TicketRepo{db: db} }

// DB exposes the underlying handle for callers that manage transactions.
func (r *TicketRepo) DB() *sql.DB { return r.db }

// Create inserts a new ticket row and populates the generated ID and
// DB-side timestamps on the provided model.  When the ticket number
// collides with an existing row, ErrDuplicateTicketNumber is returned
// and the caller is expected to regenerate the number and retry.
func (r *TicketRepo) Create(ctx context.Context, t *model.Ticket) error {
    seatJSON, err := json.Marshal(t.SeatNumbers)
    if err != nil {
        return err
    }
    const q = `INSERT INTO tickets
               (user_id, ticket_number,
                passenger_name, passenger_email, passenger_phone,
                route_id, route_name, bus_id, bus_number,
                departure_date, departure_time, arrival_time,
                seat_numbers, price_per_seat_cents, total_price_cents, status)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
    result, err := r.db.ExecContext(ctx, q,
        t.UserID, t.TicketNumber,
        t.PassengerName, t.PassengerEmail, t.PassengerPhone,
        t.RouteID, t.RouteName, t.BusID, t.BusNumber,
        t.DepartureDate, t.DepartureTime, t.ArrivalTime,
        seatJSON, t.PricePerSeatCents, t.TotalPriceCents, t.Status,
    )
    if err != nil {
        var me *mysql.MySQLError
        if errors.As(err, &me) && me.Number == mysqlDuplicateEntry {
            return ErrDuplicateTicketNumber
        }
        return err
    }
    id, err := result.LastInsertId()
    if err != nil {
        return err
    }
    t.ID = uint64(id)
    // Query back the full row to populate timestamps and defaults
    const sel = `SELECT ` + ticketColumns + ` FROM tickets WHERE id = ?`
    row := r.db.QueryRowContext(ctx, sel, t.ID)
    stored, err := scanTicket(row)
    if err != nil {
        return err
    }
    *t = *stored
    return nil
}

// GetByIDForUser returns a single ticket for the given user.  Ownership
// is enforced in the query itself: a ticket that exists but belongs to a
// different user yields sql.ErrNoRows, exactly like a missing ticket.
func (r *TicketRepo) GetByIDForUser(ctx context.Context, ticketID, userID uint64) (*model.Ticket, error) {
    const q = `SELECT ` + ticketColumns + ` FROM tickets WHERE id = ? AND user_id = ?`
    return scanTicket(r.db.QueryRowContext(ctx, q, ticketID, userID))
}

// ListByUser returns a page of the user's tickets ordered by booking
// time descending (newest first), plus the total count of matching rows
// for pagination.  When status is non-empty the listing is restricted
// to that status.  An empty page yields an empty slice, not nil.
func (r *TicketRepo) ListByUser(ctx context.Context, userID uint64, status string, limit, offset int) ([]model.Ticket, int, error) {
    countQ := `SELECT COUNT(*) FROM tickets WHERE user_id = ?`
    listQ := `SELECT ` + ticketColumns + ` FROM tickets WHERE user_id = ?`
    args := []interface{}{userID}
    if status != "" {
        countQ += ` AND status = ?`
        listQ += ` AND status = ?`
        args = append(args, status)
    }
    var total int
    if err := r.db.QueryRowContext(ctx, countQ, args...).Scan(&total); err != nil {
        return nil, 0, err
    }
    listQ += ` ORDER BY booked_at DESC, id DESC LIMIT ? OFFSET ?`
    args = append(args, limit, offset)
    rows, err := r.db.QueryContext(ctx, listQ, args...)
    if err != nil {
        return nil, 0, err
    }
    defer rows.Close()
    tickets := make([]model.Ticket, 0)
    for rows.Next() {
        t, err := scanTicket(rows)
        if err != nil {
            return nil, 0, err
        }
        tickets = append(tickets, *t)
    }
    if err := rows.Err(); err != nil {
        return nil, 0, err
    }
    return tickets, total, nil
}

// CompareAndSetStatus atomically transitions a ticket from the expected
// status to the new status and bumps updated_at.  It returns false when
// the row no longer carries the expected status, which is how a caller
// learns it lost a concurrent transition race.  At most one caller can
// observe true for a given confirmed -> cancelled transition.
func (r *TicketRepo) CompareAndSetStatus(ctx context.Context, ticketID uint64, expected, next string) (bool, error) {
    const q = `UPDATE tickets SET status = ?, updated_at = UTC_TIMESTAMP() WHERE id = ? AND status = ?`
    result, err := r.db.ExecContext(ctx, q, next, ticketID, expected)
    if err != nil {
        return false, err
    }
    n, err := result.RowsAffected()
    if err != nil {
        return false, err
    }
    return n == 1, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for scanTicket.
type rowScanner interface {
    Scan(dest ...interface{}) error
}

// scanTicket reads one ticket row in ticketColumns order and decodes the
// seat_numbers JSON column into a string slice.
func scanTicket(row rowScanner) (*model.Ticket, error) {
    var t model.Ticket
    var seatJSON []byte
    if err := row.Scan(
        &t.ID, &t.UserID, &t.TicketNumber,
        &t.PassengerName, &t.PassengerEmail, &t.PassengerPhone,
        &t.RouteID, &t.RouteName, &t.BusID, &t.BusNumber,
        &t.DepartureDate, &t.DepartureTime, &t.ArrivalTime,
        &seatJSON, &t.PricePerSeatCents, &t.TotalPriceCents,
        &t.Status, &t.BookedAt, &t.UpdatedAt,
    ); err != nil {
        return nil, err
    }
    if len(seatJSON) > 0 {
        if err := json.Unmarshal(seatJSON, &t.SeatNumbers); err != nil {
            return nil, err
        }
    }
    return &t, nil
}
