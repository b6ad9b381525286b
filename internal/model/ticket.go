package model

import "time"

// Ticket status values.  A ticket is created as StatusConfirmed and may
// move to StatusCancelled exactly once.  StatusCompleted is written by a
// post-journey batch job outside this service and is never set here.
const (
    StatusConfirmed = "confirmed" // seats are reserved with the fleet service
    StatusCancelled = "cancelled" // seats have been released back to the fleet service
    StatusCompleted = "completed" // journey finished; set by an external process
)

// Ticket records a passenger booking on a bus journey.  The route and bus
// fields are opaque references into the external fleet/route service and
// are round-tripped without local validation.  Seat numbers are stored as
// a JSON array in the database and are immutable after creation; on
// cancellation the set is retained as history even though the seats have
// been released remotely.
//
// Fields:
//  ID                – primary key identifier (internal record key).
//  UserID            – user who booked the ticket; ownership never transfers.
//  TicketNumber      – unique human-shareable code ("TKT-" + 8 hex chars),
//                      generated at creation and never reused.
//  PassengerName     – passenger full name.
//  PassengerEmail    – passenger contact email.
//  PassengerPhone    – passenger contact phone.
//  RouteID           – external route reference.
//  RouteName         – route display name as captured at booking time.
//  BusID             – external bus reference; immutable once set.
//  BusNumber         – bus display number as captured at booking time.
//  DepartureDate     – journey date (YYYY-MM-DD).
//  DepartureTime     – departure time of day (HH:MM).
//  ArrivalTime       – arrival time of day (HH:MM).
//  SeatNumbers       – ordered, non-empty seat identifiers; immutable.
//  PricePerSeatCents – per-seat price in cents.
//  TotalPriceCents   – total price in cents.
//  Status            – confirmed, cancelled or completed.
//  BookedAt          – creation timestamp; immutable.
//  UpdatedAt         – bumped on every mutation.
type Ticket struct {
    ID                uint64    `json:"id"`                   // tickets.id
    UserID            uint64    `json:"user_id"`              // tickets.user_id
    TicketNumber      string    `json:"ticket_number"`        // tickets.ticket_number
    PassengerName     string    `json:"passenger_name"`       // tickets.passenger_name
    PassengerEmail    string    `json:"passenger_email"`      // tickets.passenger_email
    PassengerPhone    string    `json:"passenger_phone"`      // tickets.passenger_phone
    RouteID           string    `json:"route_id"`             // tickets.route_id
    RouteName         string    `json:"route_name"`           // tickets.route_name
    BusID             string    `json:"bus_id"`               // tickets.bus_id
    BusNumber         string    `json:"bus_number"`           // tickets.bus_number
    DepartureDate     string    `json:"departure_date"`       // tickets.departure_date
    DepartureTime     string    `json:"departure_time"`       // tickets.departure_time
    ArrivalTime       string    `json:"arrival_time"`         // tickets.arrival_time
    SeatNumbers       []string  `json:"seat_numbers"`         // tickets.seat_numbers (JSON)
    PricePerSeatCents uint32    `json:"price_per_seat_cents"` // tickets.price_per_seat_cents
    TotalPriceCents   uint32    `json:"total_price_cents"`    // tickets.total_price_cents
    Status            string    `json:"status"`               // tickets.status
    BookedAt          time.Time `json:"booked_at"`            // tickets.booked_at
    UpdatedAt         time.Time `json:"updated_at"`           // tickets.updated_at
}
