// Package fleet is a thin client for the external fleet service that
// owns physical seat availability.  Every booking mutation in this
// system is gated on a call made through this package: seats are
// reserved before a ticket row is written and released before a ticket
// is marked cancelled, so the local store never claims a reservation
// state the fleet service does not also hold.
package fleet

import (
    "bytes"
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "io"
    "net/http"
    "strings"
    "time"
)

// ErrRejected is returned when the fleet service actively declined the
// request (seats unavailable, unknown bus).  This is a correctable,
// client-facing outcome and must never be reported as ErrUnavailable.
var ErrRejected = errors.New("fleet service rejected request")

// ErrUnavailable is returned when the request could not be completed:
// connection failure, timeout, or an unexpected response status.  The
// caller should surface it as a transient error and try again later.
var ErrUnavailable = errors.New("fleet service unavailable")

const defaultTimeout = 5 * time.Second

// Client performs synchronous seat reservation calls against the fleet
// service.  It performs no retries; retry policy, if any, belongs to
// the caller.
type Client struct {
    baseURL string
    http    *http.Client
}

// NewClient returns a Client for the given base URL.  A non-positive
// timeout falls back to a 5 second default.
func NewClient(baseURL string, timeout time.Duration) *Client {
    if timeout <= 0 {
        timeout = defaultTimeout
    }
    return &Client{
        baseURL: strings.TrimRight(baseURL, "/"),
        http:    &http.Client{Timeout: timeout},
    }
}

// seatRequest is the body shape shared by the reserve and cancel
// endpoints of the fleet service.
type seatRequest struct {
    SeatNumbers []string `json:"seat_numbers"`
    UserID      uint64   `json:"user_id"`
}

// ReserveSeats asks the fleet service to mark the given seats on a bus
// as occupied by the user.  A nil return means the reservation is held
// remotely; ErrRejected means the service declined (for example a seat
// is already taken); ErrUnavailable means the outcome is a transport or
// infrastructure failure.
func (c *Client) ReserveSeats(ctx context.Context, busID string, seatNumbers []string, userID uint64) error {
    return c.patch(ctx, busID, "reserve", seatNumbers, userID)
}

// ReleaseSeats asks the fleet service to free the given seats on a bus.
// Outcome semantics match ReserveSeats.
func (c *Client) ReleaseSeats(ctx context.Context, busID string, seatNumbers []string, userID uint64) error {
    return c.patch(ctx, busID, "cancel", seatNumbers, userID)
}

// patch issues a PATCH against /api/buses/{busID}/{action}.  The request
// deliberately detaches from the caller's cancellation: once a seat
// mutation is in flight it must run to a terminal outcome, because the
// fleet service may already have applied it.  The client's own timeout
// still bounds the call.
func (c *Client) patch(ctx context.Context, busID, action string, seatNumbers []string, userID uint64) error {
    body, err := json.Marshal(seatRequest{SeatNumbers: seatNumbers, UserID: userID})
    if err != nil {
        return fmt.Errorf("%w: encode request: %v", ErrUnavailable, err)
    }
    url := fmt.Sprintf("%s/api/buses/%s/%s", c.baseURL, busID, action)
    req, err := http.NewRequestWithContext(context.WithoutCancel(ctx), http.MethodPatch, url, bytes.NewReader(body))
    if err != nil {
        return fmt.Errorf("%w: build request: %v", ErrUnavailable, err)
    }
    req.Header.Set("Content-Type", "application/json")
    resp, err := c.http.Do(req)
    if err != nil {
        return fmt.Errorf("%w: %v", ErrUnavailable, err)
    }
    defer resp.Body.Close()
    // Drain so the connection can be reused
    _, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

    switch {
    case resp.StatusCode >= 200 && resp.StatusCode < 300:
        return nil
    case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusNotFound:
        // The fleet service's documented rejection statuses: seats
        // unavailable or unknown bus.
        return fmt.Errorf("%w: status %d", ErrRejected, resp.StatusCode)
    default:
        return fmt.Errorf("%w: unexpected status %d", ErrUnavailable, resp.StatusCode)
    }
}
