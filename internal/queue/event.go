// Package queue defines message payloads exchanged over the message broker.
package queue

// Event names carried on the ticket.events queue.
const (
    EventTicketBooked    = "ticket.booked"
    EventTicketCancelled = "ticket.cancelled"
)

// TicketEvent is published after a booking or cancellation has been
// committed locally.  It carries enough information for downstream
// consumers to log, notify, or feed analytics without querying the
// primary database.
type TicketEvent struct {
    Event           string   `json:"event"`
    TicketID        uint64   `json:"ticket_id"`
    TicketNumber    string   `json:"ticket_number"`
    UserID          uint64   `json:"user_id"`
    RouteName       string   `json:"route_name"`
    BusNumber       string   `json:"bus_number"`
    DepartureDate   string   `json:"departure_date"`
    DepartureTime   string   `json:"departure_time"`
    SeatNumbers     []string `json:"seat_numbers"`
    TotalPriceCents uint32   `json:"total_price_cents"`
    OccurredAt      string   `json:"occurred_at"`
}
