package handler

import (
    "context"
    "database/sql"
    "errors"
    "net/http"
    "strconv"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/bus-ticket-booking/internal/booking"
    "github.com/iliyamo/bus-ticket-booking/internal/config"
    "github.com/iliyamo/bus-ticket-booking/internal/metrics"
    "github.com/iliyamo/bus-ticket-booking/internal/middleware"
    "github.com/iliyamo/bus-ticket-booking/internal/model"
    "github.com/iliyamo/bus-ticket-booking/internal/queue"
    queue_publisher "github.com/iliyamo/bus-ticket-booking/internal/service"
)

// Listing page sizes: a fixed default with a client override bounded by
// a maximum, matching the platform's other list endpoints.  The page
// number is capped as well so the computed offset stays within int
// range regardless of input.
const (
    defaultPageSize = 10
    maxPageSize     = 50
    maxPage         = 100000
)

// Booker is the slice of the booking coordinator the handler needs.
type Booker interface {
    CreateTicket(ctx context.Context, userID uint64, d booking.Draft) (*model.Ticket, error)
    CancelTicket(ctx context.Context, userID, ticketID uint64) (*model.Ticket, error)
}

// TicketReader is the read-only view over the ticket store used for
// listing and detail fetches.  No coordination logic sits behind it.
type TicketReader interface {
    GetByIDForUser(ctx context.Context, ticketID, userID uint64) (*model.Ticket, error)
    ListByUser(ctx context.Context, userID uint64, status string, limit, offset int) ([]model.Ticket, int, error)
}

// TicketHandler exposes the ticket endpoints.  All methods assume JWT
// authentication has already run, and return 401 when the user ID
// cannot be extracted from the context.
type TicketHandler struct {
    Booking  Booker
    Tickets  TicketReader
    CacheCfg config.CacheConfig
    Redis    *redis.Client
}

// NewTicketHandler constructs a TicketHandler.  Booking and Tickets
// must be non-nil; Redis may be nil, which disables cache invalidation
// along with the cache itself.
func NewTicketHandler(b Booker, t TicketReader, cacheCfg config.CacheConfig, rdb *redis.Client) *TicketHandler {
    if b == nil || t == nil {
        panic("nil dependency passed to NewTicketHandler")
    }
    return &TicketHandler{Booking: b, Tickets: t, CacheCfg: cacheCfg, Redis: rdb}
}

// ListTickets handles GET /v1/tickets.  It returns the caller's own
// tickets, newest first, optionally filtered by ?status= and paginated
// with ?page= and ?page_size=.
func (h *TicketHandler) ListTickets(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    status := c.QueryParam("status")
    switch status {
    case "", model.StatusConfirmed, model.StatusCancelled, model.StatusCompleted:
    default:
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid status filter"})
    }
    page := 1
    if v := c.QueryParam("page"); v != "" {
        if n, err := strconv.Atoi(v); err == nil && n > 0 {
            page = n
        } else {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid page"})
        }
        if page > maxPage {
            page = maxPage
        }
    }
    pageSize := defaultPageSize
    if v := c.QueryParam("page_size"); v != "" {
        n, err := strconv.Atoi(v)
        if err != nil || n < 1 {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid page_size"})
        }
        pageSize = n
        if pageSize > maxPageSize {
            pageSize = maxPageSize
        }
    }
    ctx := c.Request().Context()
    tickets, total, err := h.Tickets.ListByUser(ctx, userID, status, pageSize, (page-1)*pageSize)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load tickets"})
    }
    return c.JSON(http.StatusOK, echo.Map{
        "items":     tickets,
        "total":     total,
        "page":      page,
        "page_size": pageSize,
    })
}

// GetTicket handles GET /v1/tickets/:id.  A ticket that does not exist
// and a ticket owned by someone else both produce the same 404, so the
// endpoint never reveals whether another user holds a given ID.
func (h *TicketHandler) GetTicket(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    ticketID, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil || ticketID == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid ticket id"})
    }
    t, err := h.Tickets.GetByIDForUser(c.Request().Context(), ticketID, userID)
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "ticket not found"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch ticket"})
    }
    return c.JSON(http.StatusOK, echo.Map{"item": t})
}

// BookTicket handles POST /v1/tickets.  The coordinator reserves the
// seats with the fleet service before the local row is written; the
// handler only maps outcomes to status codes.  A rejected reservation
// is a 400 the user can correct, an unreachable fleet service is a 503
// worth retrying later.
func (h *TicketHandler) BookTicket(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    var draft booking.Draft
    if err := c.Bind(&draft); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    t, err := h.Booking.CreateTicket(c.Request().Context(), userID, draft)
    if err != nil {
        var ve *booking.ValidationError
        switch {
        case errors.As(err, &ve):
            metrics.BookingOperations.WithLabelValues("book", "validation_error").Inc()
            return c.JSON(http.StatusBadRequest, echo.Map{"error": ve.Error(), "field": ve.Field})
        case errors.Is(err, booking.ErrSeatsUnavailable):
            metrics.BookingOperations.WithLabelValues("book", "rejected").Inc()
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "failed to reserve seats, please try again"})
        case errors.Is(err, booking.ErrInventoryUnavailable):
            metrics.BookingOperations.WithLabelValues("book", "unavailable").Inc()
            return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "service temporarily unavailable, please try again later"})
        default:
            metrics.BookingOperations.WithLabelValues("book", "error").Inc()
            return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to book ticket"})
        }
    }
    metrics.BookingOperations.WithLabelValues("book", "success").Inc()
    h.afterMutation(userID, queue.EventTicketBooked, t)
    return c.JSON(http.StatusCreated, echo.Map{"item": t})
}

// CancelTicket handles DELETE /v1/tickets/:id.  The seats are released
// with the fleet service before the local status flips; when the
// release fails the ticket stays confirmed and the caller is told
// whether to correct (400) or retry later (503).
func (h *TicketHandler) CancelTicket(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    ticketID, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil || ticketID == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid ticket id"})
    }
    t, err := h.Booking.CancelTicket(c.Request().Context(), userID, ticketID)
    if err != nil {
        switch {
        case errors.Is(err, booking.ErrTicketNotFound):
            metrics.BookingOperations.WithLabelValues("cancel", "not_found").Inc()
            return c.JSON(http.StatusNotFound, echo.Map{"error": "ticket not found"})
        case errors.Is(err, booking.ErrAlreadyCancelled):
            metrics.BookingOperations.WithLabelValues("cancel", "already_cancelled").Inc()
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "ticket is already cancelled"})
        case errors.Is(err, booking.ErrNotCancellable):
            metrics.BookingOperations.WithLabelValues("cancel", "not_cancellable").Inc()
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "ticket can no longer be cancelled"})
        case errors.Is(err, booking.ErrReleaseDeclined):
            metrics.BookingOperations.WithLabelValues("cancel", "rejected").Inc()
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "failed to cancel ticket, please contact support"})
        case errors.Is(err, booking.ErrInventoryUnavailable):
            metrics.BookingOperations.WithLabelValues("cancel", "unavailable").Inc()
            return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "service temporarily unavailable, please try again later"})
        default:
            metrics.BookingOperations.WithLabelValues("cancel", "error").Inc()
            return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to cancel ticket"})
        }
    }
    metrics.BookingOperations.WithLabelValues("cancel", "success").Inc()
    h.afterMutation(userID, queue.EventTicketCancelled, t)
    return c.JSON(http.StatusOK, echo.Map{"message": "ticket cancelled successfully"})
}

// afterMutation drops the user's cached listings and publishes the
// ticket event off the request path.  Both are best effort: the booking
// is already committed, and a stale cache entry expires with its TTL.
func (h *TicketHandler) afterMutation(userID uint64, event string, t *model.Ticket) {
    ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
    middleware.InvalidateUser(ctx, h.CacheCfg, h.Redis, userID)
    cancel()
    ev := queue.TicketEvent{
        Event:           event,
        TicketID:        t.ID,
        TicketNumber:    t.TicketNumber,
        UserID:          t.UserID,
        RouteName:       t.RouteName,
        BusNumber:       t.BusNumber,
        DepartureDate:   t.DepartureDate,
        DepartureTime:   t.DepartureTime,
        SeatNumbers:     t.SeatNumbers,
        TotalPriceCents: t.TotalPriceCents,
        OccurredAt:      time.Now().UTC().Format(time.RFC3339),
    }
    go func() {
        ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
        defer cancel()
        _ = queue_publisher.PublishTicketEvent(ctx, ev)
    }()
}
