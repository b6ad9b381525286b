// Package repository implements the durable ticket record store on top
// of MySQL.  Sentinel errors defined here let higher layers distinguish
// failure scenarios without inspecting driver-specific error values.
// Lookups scoped to a user return sql.ErrNoRows both when a ticket does
// not exist and when it belongs to someone else, so callers cannot leak
// the existence of another user's tickets.
package repository

import "errors"

// ErrDuplicateTicketNumber is returned by Create when the generated
// ticket number collides with an existing row.  The caller should
// regenerate the number and retry; the collision probability is
// negligible but the uniqueness constraint is the only authority.
var ErrDuplicateTicketNumber = errors.New("duplicate ticket number")
