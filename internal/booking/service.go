// Package booking implements the coordinator that keeps ticket state
// consistent with the external fleet service.  Both mutating flows
// order the remote seat call strictly before the local write, so the
// local store is a conservative reflection of remote reservation
// state: it can lag reality but never claims a reservation or release
// the fleet service does not also hold.
package booking

import (
    "context"
    "database/sql"
    "errors"
    "fmt"
    "log"
    "math"
    "strings"

    "github.com/google/uuid"

    "github.com/iliyamo/bus-ticket-booking/internal/fleet"
    "github.com/iliyamo/bus-ticket-booking/internal/model"
    "github.com/iliyamo/bus-ticket-booking/internal/repository"
)

// TicketStore is the slice of the repository the coordinator mutates
// through.  All writes go through Create or CompareAndSetStatus; the
// store's uniqueness constraint and atomic status transition are the
// only concurrency controls the coordinator relies on.
type TicketStore interface {
    Create(ctx context.Context, t *model.Ticket) error
    GetByIDForUser(ctx context.Context, ticketID, userID uint64) (*model.Ticket, error)
    CompareAndSetStatus(ctx context.Context, ticketID uint64, expected, next string) (bool, error)
}

// SeatInventory is the remote seat reservation capability.  A nil
// return means the remote mutation is held; fleet.ErrRejected and
// fleet.ErrUnavailable are the two failure outcomes.
type SeatInventory interface {
    ReserveSeats(ctx context.Context, busID string, seatNumbers []string, userID uint64) error
    ReleaseSeats(ctx context.Context, busID string, seatNumbers []string, userID uint64) error
}

// maxCreateAttempts bounds ticket-number regeneration when Create hits
// the uniqueness constraint.  The code space is 16^8 so a second
// attempt is already rare.
const maxCreateAttempts = 3

const ticketNumberPrefix = "TKT-"

// Draft carries the unvalidated input of a booking request.  Prices
// are signed here so that negative input can be rejected during
// validation rather than silently wrapping during binding.
type Draft struct {
    PassengerName     string   `json:"passenger_name"`
    PassengerEmail    string   `json:"passenger_email"`
    PassengerPhone    string   `json:"passenger_phone"`
    RouteID           string   `json:"route_id"`
    RouteName         string   `json:"route_name"`
    BusID             string   `json:"bus_id"`
    BusNumber         string   `json:"bus_number"`
    DepartureDate     string   `json:"departure_date"`
    DepartureTime     string   `json:"departure_time"`
    ArrivalTime       string   `json:"arrival_time"`
    SeatNumbers       []string `json:"seat_numbers"`
    PricePerSeatCents int64    `json:"price_per_seat_cents"`
    TotalPriceCents   int64    `json:"total_price_cents"`
}

// Service coordinates ticket creation and cancellation with the fleet
// service.  One request maps to one call; the Service itself holds no
// mutable state and is safe for concurrent use.
type Service struct {
    store     TicketStore
    inventory SeatInventory
}

// NewService constructs a Service.  Both dependencies must be non-nil.
func NewService(store TicketStore, inventory SeatInventory) *Service {
    if store == nil || inventory == nil {
        panic("nil dependency passed to booking.NewService")
    }
    return &Service{store: store, inventory: inventory}
}

// CreateTicket books seats for the user.  The flow is: validate the
// draft, reserve the seats with the fleet service, and only then write
// the local row with status confirmed.  A rejected or unreachable
// remote call therefore never leaves a confirmed ticket without a
// backing reservation.  Duplicate ticket numbers are regenerated up to
// maxCreateAttempts; the remote reservation is not re-attempted or
// rolled back on that path since it already covers the seats being
// persisted.
func (s *Service) CreateTicket(ctx context.Context, userID uint64, d Draft) (*model.Ticket, error) {
    if userID == 0 {
        return nil, invalid("user_id", "missing caller identity")
    }
    if err := validateDraft(d); err != nil {
        return nil, err
    }
    if err := s.inventory.ReserveSeats(ctx, d.BusID, d.SeatNumbers, userID); err != nil {
        switch {
        case errors.Is(err, fleet.ErrRejected):
            return nil, fmt.Errorf("%w: %v", ErrSeatsUnavailable, err)
        case errors.Is(err, fleet.ErrUnavailable):
            return nil, fmt.Errorf("%w: %v", ErrInventoryUnavailable, err)
        default:
            return nil, fmt.Errorf("reserve seats: %w", err)
        }
    }
    for attempt := 1; attempt <= maxCreateAttempts; attempt++ {
        t := &model.Ticket{
            UserID:            userID,
            TicketNumber:      newTicketNumber(),
            PassengerName:     d.PassengerName,
            PassengerEmail:    d.PassengerEmail,
            PassengerPhone:    d.PassengerPhone,
            RouteID:           d.RouteID,
            RouteName:         d.RouteName,
            BusID:             d.BusID,
            BusNumber:         d.BusNumber,
            DepartureDate:     d.DepartureDate,
            DepartureTime:     d.DepartureTime,
            ArrivalTime:       d.ArrivalTime,
            SeatNumbers:       d.SeatNumbers,
            PricePerSeatCents: uint32(d.PricePerSeatCents),
            TotalPriceCents:   uint32(d.TotalPriceCents),
            Status:            model.StatusConfirmed,
        }
        err := s.store.Create(ctx, t)
        if err == nil {
            return t, nil
        }
        if errors.Is(err, repository.ErrDuplicateTicketNumber) {
            continue
        }
        // The remote reservation already succeeded and is not rolled
        // back here, so these seats stay reserved with no local ticket
        // until reconciled out-of-band.
        log.Printf("booking: ticket persistence failed after seat reservation (bus=%s user=%d): %v", d.BusID, userID, err)
        return nil, fmt.Errorf("persist ticket: %w", err)
    }
    log.Printf("booking: exhausted %d ticket number attempts (bus=%s user=%d)", maxCreateAttempts, d.BusID, userID)
    return nil, ErrTicketNumberExhausted
}

// CancelTicket cancels one of the user's tickets.  The ticket's
// recorded seat set is released with the fleet service before the local
// status changes; a rejected or unreachable release leaves the ticket
// confirmed.  The compare-and-set transition guarantees that under
// concurrent cancels exactly one caller wins, and the loser reports
// ErrAlreadyCancelled without issuing a second remote release.
func (s *Service) CancelTicket(ctx context.Context, userID, ticketID uint64) (*model.Ticket, error) {
    t, err := s.store.GetByIDForUser(ctx, ticketID, userID)
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return nil, ErrTicketNotFound
        }
        return nil, fmt.Errorf("load ticket: %w", err)
    }
    switch t.Status {
    case model.StatusConfirmed:
        // cancellable
    case model.StatusCancelled:
        return nil, ErrAlreadyCancelled
    default:
        return nil, ErrNotCancellable
    }
    if err := s.inventory.ReleaseSeats(ctx, t.BusID, t.SeatNumbers, userID); err != nil {
        switch {
        case errors.Is(err, fleet.ErrRejected):
            return nil, fmt.Errorf("%w: %v", ErrReleaseDeclined, err)
        case errors.Is(err, fleet.ErrUnavailable):
            return nil, fmt.Errorf("%w: %v", ErrInventoryUnavailable, err)
        default:
            return nil, fmt.Errorf("release seats: %w", err)
        }
    }
    ok, err := s.store.CompareAndSetStatus(ctx, t.ID, model.StatusConfirmed, model.StatusCancelled)
    if err != nil {
        return nil, fmt.Errorf("update ticket status: %w", err)
    }
    if !ok {
        // Lost the race with a concurrent cancel.  The remote release
        // is assumed idempotent, so the extra call above is harmless.
        return nil, ErrAlreadyCancelled
    }
    t.Status = model.StatusCancelled
    return t, nil
}

// newTicketNumber generates a human-shareable ticket code: the TKT-
// prefix followed by the first eight hex characters of a random UUID,
// upper-cased.
func newTicketNumber() string {
    u := uuid.New()
    return fmt.Sprintf("%s%X", ticketNumberPrefix, u[:4])
}

// validateDraft checks the booking draft before any remote call is
// made.  Total price is recorded as submitted and is not checked
// against per-seat price times seat count.
func validateDraft(d Draft) error {
    if strings.TrimSpace(d.PassengerName) == "" {
        return invalid("passenger_name", "required")
    }
    email := strings.TrimSpace(d.PassengerEmail)
    if email == "" {
        return invalid("passenger_email", "required")
    }
    if at := strings.Index(email, "@"); at < 1 || at == len(email)-1 {
        return invalid("passenger_email", "not a valid email address")
    }
    if strings.TrimSpace(d.PassengerPhone) == "" {
        return invalid("passenger_phone", "required")
    }
    if strings.TrimSpace(d.RouteID) == "" {
        return invalid("route_id", "required")
    }
    if strings.TrimSpace(d.BusID) == "" {
        return invalid("bus_id", "required")
    }
    if len(d.SeatNumbers) == 0 {
        return invalid("seat_numbers", "at least one seat is required")
    }
    seen := make(map[string]struct{}, len(d.SeatNumbers))
    for _, sn := range d.SeatNumbers {
        if strings.TrimSpace(sn) == "" {
            return invalid("seat_numbers", "seat numbers must not be blank")
        }
        if _, dup := seen[sn]; dup {
            return invalid("seat_numbers", "duplicate seat "+sn)
        }
        seen[sn] = struct{}{}
    }
    if d.PricePerSeatCents < 0 {
        return invalid("price_per_seat_cents", "must not be negative")
    }
    if d.TotalPriceCents < 0 {
        return invalid("total_price_cents", "must not be negative")
    }
    if d.PricePerSeatCents > math.MaxUint32 || d.TotalPriceCents > math.MaxUint32 {
        return invalid("total_price_cents", "price out of range")
    }
    return nil
}
