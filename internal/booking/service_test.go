package booking

import (
    "context"
    "database/sql"
    "errors"
    "regexp"
    "sync"
    "testing"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/bus-ticket-booking/internal/fleet"
    "github.com/iliyamo/bus-ticket-booking/internal/model"
    "github.com/iliyamo/bus-ticket-booking/internal/repository"
)

// fakeStore is an in-memory TicketStore.  Its compare-and-set is
// guarded by a mutex so concurrent cancel tests exercise the same
// at-most-one-winner guarantee the real store provides.
type fakeStore struct {
    mu        sync.Mutex
    seq       uint64
    tickets   map[uint64]*model.Ticket
    numbers   map[string]bool
    dupsLeft  int   // force this many duplicate-key failures first
    createErr error // non-duplicate failure to inject
}

func newFakeStore() *fakeStore {
    return &fakeStore{tickets: map[uint64]*model.Ticket{}, numbers: map[string]bool{}}
}

func (f *fakeStore) Create(_ context.Context, t *model.Ticket) error {
    f.mu.Lock()
    defer f.mu.Unlock()
    if f.createErr != nil {
        return f.createErr
    }
    if f.dupsLeft > 0 {
        f.dupsLeft--
        return repository.ErrDuplicateTicketNumber
    }
    if f.numbers[t.TicketNumber] {
        return repository.ErrDuplicateTicketNumber
    }
    f.seq++
    t.ID = f.seq
    f.numbers[t.TicketNumber] = true
    cp := *t
    f.tickets[t.ID] = &cp
    return nil
}

func (f *fakeStore) GetByIDForUser(_ context.Context, ticketID, userID uint64) (*model.Ticket, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    t, ok := f.tickets[ticketID]
    if !ok || t.UserID != userID {
        return nil, sql.ErrNoRows
    }
    cp := *t
    return &cp, nil
}

func (f *fakeStore) CompareAndSetStatus(_ context.Context, ticketID uint64, expected, next string) (bool, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    t, ok := f.tickets[ticketID]
    if !ok || t.Status != expected {
        return false, nil
    }
    t.Status = next
    return true, nil
}

// casRefused wraps a fakeStore whose compare-and-set always reports a
// lost race, regardless of the loaded status.
type casRefused struct{ *fakeStore }

func (c casRefused) CompareAndSetStatus(context.Context, uint64, string, string) (bool, error) {
    return false, nil
}

type fakeInventory struct {
    mu         sync.Mutex
    reserveErr error
    releaseErr error
    reserves   int
    releases   int
    lastBus    string
    lastSeats  []string
    lastUser   uint64
}

func (f *fakeInventory) ReserveSeats(_ context.Context, busID string, seats []string, userID uint64) error {
    f.mu.Lock()
    defer f.mu.Unlock()
    f.reserves++
    f.lastBus, f.lastSeats, f.lastUser = busID, seats, userID
    return f.reserveErr
}

func (f *fakeInventory) ReleaseSeats(_ context.Context, busID string, seats []string, userID uint64) error {
    f.mu.Lock()
    defer f.mu.Unlock()
    f.releases++
    f.lastBus, f.lastSeats, f.lastUser = busID, seats, userID
    return f.releaseErr
}

func validDraft() Draft {
    return Draft{
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
    }
}

var ticketNumberPattern = regexp.MustCompile(`^TKT-[0-9A-F]{8}$`)

func TestCreateTicketSuccess(t *testing.T) {
    store := newFakeStore()
    inv := &fakeInventory{}
    svc := NewService(store, inv)

    ticket, err := svc.CreateTicket(context.Background(), 11, validDraft())
    require.NoError(t, err)
    assert.Equal(t, model.StatusConfirmed, ticket.Status)
    assert.Regexp(t, ticketNumberPattern, ticket.TicketNumber)
    assert.Equal(t, uint64(11), ticket.UserID)
    assert.Equal(t, []string{"A1", "A2"}, ticket.SeatNumbers)
    assert.Equal(t, uint32(1000), ticket.PricePerSeatCents)
    assert.Equal(t, uint32(2000), ticket.TotalPriceCents)

    assert.Equal(t, 1, inv.reserves)
    assert.Equal(t, "7", inv.lastBus)
    assert.Equal(t, uint64(11), inv.lastUser)
    assert.Len(t, store.tickets, 1)
}

func TestCreateTicketValidation(t *testing.T) {
    cases := []struct {
        name  string
        field string
        edit  func(*Draft)
    }{
        {"missing name", "passenger_name", func(d *Draft) { d.PassengerName = "  " }},
        {"missing email", "passenger_email", func(d *Draft) { d.PassengerEmail = "" }},
        {"bad email", "passenger_email", func(d *Draft) { d.PassengerEmail = "not-an-email" }},
        {"missing phone", "passenger_phone", func(d *Draft) { d.PassengerPhone = "" }},
        {"missing route", "route_id", func(d *Draft) { d.RouteID = "" }},
        {"missing bus", "bus_id", func(d *Draft) { d.BusID = "" }},
        {"no seats", "seat_numbers", func(d *Draft) { d.SeatNumbers = nil }},
        {"blank seat", "seat_numbers", func(d *Draft) { d.SeatNumbers = []string{"A1", " "} }},
        {"duplicate seat", "seat_numbers", func(d *Draft) { d.SeatNumbers = []string{"A1", "A1"} }},
        {"negative price", "price_per_seat_cents", func(d *Draft) { d.PricePerSeatCents = -1 }},
        {"negative total", "total_price_cents", func(d *Draft) { d.TotalPriceCents = -5 }},
    }
    for _, tc := range cases {
        t.Run(tc.name, func(t *testing.T) {
            store := newFakeStore()
            inv := &fakeInventory{}
            svc := NewService(store, inv)

            d := validDraft()
            tc.edit(&d)
            _, err := svc.CreateTicket(context.Background(), 11, d)

            var ve *ValidationError
            require.ErrorAs(t, err, &ve)
            assert.Equal(t, tc.field, ve.Field)
            // validation fails before any remote call or write
            assert.Zero(t, inv.reserves)
            assert.Empty(t, store.tickets)
        })
    }
}

func TestCreateTicketReservationRejected(t *testing.T) {
    store := newFakeStore()
    inv := &fakeInventory{reserveErr: fleet.ErrRejected}
    svc := NewService(store, inv)

    _, err := svc.CreateTicket(context.Background(), 11, validDraft())
    assert.ErrorIs(t, err, ErrSeatsUnavailable)
    assert.NotErrorIs(t, err, ErrInventoryUnavailable)
    assert.Empty(t, store.tickets, "no ticket may exist without a backing reservation")
}

func TestCreateTicketInventoryUnreachable(t *testing.T) {
    store := newFakeStore()
    inv := &fakeInventory{reserveErr: fleet.ErrUnavailable}
    svc := NewService(store, inv)

    _, err := svc.CreateTicket(context.Background(), 11, validDraft())
    assert.ErrorIs(t, err, ErrInventoryUnavailable)
    assert.NotErrorIs(t, err, ErrSeatsUnavailable)
    assert.Empty(t, store.tickets)
}

func TestCreateTicketRegeneratesDuplicateNumbers(t *testing.T) {
    store := newFakeStore()
    store.dupsLeft = 2
    inv := &fakeInventory{}
    svc := NewService(store, inv)

    ticket, err := svc.CreateTicket(context.Background(), 11, validDraft())
    require.NoError(t, err)
    assert.Regexp(t, ticketNumberPattern, ticket.TicketNumber)
    // the reservation is made once, not per persistence attempt
    assert.Equal(t, 1, inv.reserves)
}

func TestCreateTicketNumberExhausted(t *testing.T) {
    store := newFakeStore()
    store.dupsLeft = maxCreateAttempts
    inv := &fakeInventory{}
    svc := NewService(store, inv)

    _, err := svc.CreateTicket(context.Background(), 11, validDraft())
    assert.ErrorIs(t, err, ErrTicketNumberExhausted)
}

func TestCreateTicketStorageFailure(t *testing.T) {
    store := newFakeStore()
    store.createErr = errors.New("connection reset")
    inv := &fakeInventory{}
    svc := NewService(store, inv)

    _, err := svc.CreateTicket(context.Background(), 11, validDraft())
    require.Error(t, err)
    var ve *ValidationError
    assert.False(t, errors.As(err, &ve))
    // the orphaned remote reservation is not released on this path
    assert.Equal(t, 1, inv.reserves)
    assert.Zero(t, inv.releases)
}

// seedConfirmed places a confirmed ticket in the store and returns it.
func seedConfirmed(store *fakeStore, userID uint64) *model.Ticket {
    t := &model.Ticket{
        UserID:       userID,
        TicketNumber: "TKT-0AB1C2D3",
        BusID:        "7",
        SeatNumbers:  []string{"A1", "A2"},
        Status:       model.StatusConfirmed,
    }
    _ = store.Create(context.Background(), t)
    return t
}

func TestCancelTicketSuccess(t *testing.T) {
    store := newFakeStore()
    inv := &fakeInventory{}
    svc := NewService(store, inv)
    seeded := seedConfirmed(store, 11)

    cancelled, err := svc.CancelTicket(context.Background(), 11, seeded.ID)
    require.NoError(t, err)
    assert.Equal(t, model.StatusCancelled, cancelled.Status)
    assert.Equal(t, 1, inv.releases)
    // the release uses the ticket's recorded seat set
    assert.Equal(t, []string{"A1", "A2"}, inv.lastSeats)
    assert.Equal(t, "7", inv.lastBus)
    assert.Equal(t, model.StatusCancelled, store.tickets[seeded.ID].Status)
    // the seat set stays on record as history
    assert.Equal(t, []string{"A1", "A2"}, store.tickets[seeded.ID].SeatNumbers)
}

func TestCancelTicketTwice(t *testing.T) {
    store := newFakeStore()
    inv := &fakeInventory{}
    svc := NewService(store, inv)
    seeded := seedConfirmed(store, 11)

    _, err := svc.CancelTicket(context.Background(), 11, seeded.ID)
    require.NoError(t, err)
    _, err = svc.CancelTicket(context.Background(), 11, seeded.ID)
    assert.ErrorIs(t, err, ErrAlreadyCancelled)
    assert.Equal(t, 1, inv.releases, "the second cancel must not release again")
}

func TestCancelTicketNotFound(t *testing.T) {
    store := newFakeStore()
    inv := &fakeInventory{}
    svc := NewService(store, inv)
    seeded := seedConfirmed(store, 11)

    _, err := svc.CancelTicket(context.Background(), 11, seeded.ID+100)
    assert.ErrorIs(t, err, ErrTicketNotFound)

    // another user's ticket is indistinguishable from a missing one
    _, err = svc.CancelTicket(context.Background(), 99, seeded.ID)
    assert.ErrorIs(t, err, ErrTicketNotFound)
    assert.Zero(t, inv.releases)
}

func TestCancelTicketReleaseUnreachable(t *testing.T) {
    store := newFakeStore()
    inv := &fakeInventory{releaseErr: fleet.ErrUnavailable}
    svc := NewService(store, inv)
    seeded := seedConfirmed(store, 11)

    _, err := svc.CancelTicket(context.Background(), 11, seeded.ID)
    assert.ErrorIs(t, err, ErrInventoryUnavailable)
    assert.Equal(t, model.StatusConfirmed, store.tickets[seeded.ID].Status,
        "a failed release must leave the ticket confirmed")
}

func TestCancelTicketReleaseDeclined(t *testing.T) {
    store := newFakeStore()
    inv := &fakeInventory{releaseErr: fleet.ErrRejected}
    svc := NewService(store, inv)
    seeded := seedConfirmed(store, 11)

    _, err := svc.CancelTicket(context.Background(), 11, seeded.ID)
    assert.ErrorIs(t, err, ErrReleaseDeclined)
    assert.Equal(t, model.StatusConfirmed, store.tickets[seeded.ID].Status)
}

func TestCancelTicketCompleted(t *testing.T) {
    store := newFakeStore()
    inv := &fakeInventory{}
    svc := NewService(store, inv)
    seeded := seedConfirmed(store, 11)
    store.tickets[seeded.ID].Status = model.StatusCompleted

    _, err := svc.CancelTicket(context.Background(), 11, seeded.ID)
    assert.ErrorIs(t, err, ErrNotCancellable)
    assert.Zero(t, inv.releases)
}

func TestCancelTicketLostRace(t *testing.T) {
    store := newFakeStore()
    inv := &fakeInventory{}
    svc := NewService(casRefused{store}, inv)
    seeded := seedConfirmed(store, 11)

    _, err := svc.CancelTicket(context.Background(), 11, seeded.ID)
    assert.ErrorIs(t, err, ErrAlreadyCancelled)
    assert.Equal(t, 1, inv.releases, "losing the race must not trigger another release")
}

func TestCancelTicketConcurrent(t *testing.T) {
    store := newFakeStore()
    inv := &fakeInventory{}
    svc := NewService(store, inv)
    seeded := seedConfirmed(store, 11)

    const callers = 8
    errs := make(chan error, callers)
    var wg sync.WaitGroup
    for i := 0; i < callers; i++ {
        wg.Add(1)
        go func() {
            defer wg.Done()
            _, err := svc.CancelTicket(context.Background(), 11, seeded.ID)
            errs <- err
        }()
    }
    wg.Wait()
    close(errs)

    succeeded, alreadyCancelled := 0, 0
    for err := range errs {
        switch {
        case err == nil:
            succeeded++
        case errors.Is(err, ErrAlreadyCancelled):
            alreadyCancelled++
        default:
            t.Fatalf("unexpected error: %v", err)
        }
    }
    assert.Equal(t, 1, succeeded, "exactly one concurrent cancel may win")
    assert.Equal(t, callers-1, alreadyCancelled)
    assert.Equal(t, model.StatusCancelled, store.tickets[seeded.ID].Status)
    assert.GreaterOrEqual(t, inv.releases, 1)
}

func TestTicketNumbersNeverReused(t *testing.T) {
    store := newFakeStore()
    inv := &fakeInventory{}
    svc := NewService(store, inv)

    seen := map[string]bool{}
    for i := 0; i < 50; i++ {
        ticket, err := svc.CreateTicket(context.Background(), 11, validDraft())
        require.NoError(t, err)
        assert.False(t, seen[ticket.TicketNumber], "ticket number reused: %s", ticket.TicketNumber)
        seen[ticket.TicketNumber] = true
        if i%2 == 0 {
            _, err := svc.CancelTicket(context.Background(), 11, ticket.ID)
            require.NoError(t, err)
        }
    }
}
