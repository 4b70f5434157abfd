package logging

import (
	"time"

	"github.com/felixgeelhaar/bolt/v3"

	"github.com/felixgeelhaar/hitl-go/domain/ticket"
)

// Field is a function that applies structured data to a log event.
type Field func(*bolt.Event) *bolt.Event

// Common field constructors for approval workflow logging.

// TicketID adds a ticket id field.
func TicketID(id string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("ticket_id", id)
	}
}

// SubjectID adds a subject id field.
func SubjectID(id string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("subject_id", id)
	}
}

// StatusField adds a ticket status field.
func StatusField(s ticket.Status) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("status", string(s))
	}
}

// Decision adds a decision field for resolve operations.
func Decision(s ticket.Status) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("decision", string(s))
	}
}

// CallID adds the resume correlation id field.
func CallID(id string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("call_id", id)
	}
}

// Session adds the runtime user/session pair.
func Session(userID, sessionID string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("user_id", userID).Str("session_id", sessionID)
	}
}

// Str adds an arbitrary string field.
func Str(key, value string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str(key, value)
	}
}

// Recipient adds a notification recipient field.
func Recipient(contact string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("recipient", contact)
	}
}

// Endpoint adds a delivery endpoint field.
func Endpoint(url string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("endpoint", url)
	}
}

// Count adds a count field for sweeps and listings.
func Count(n int) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int("count", n)
	}
}

// Duration adds a duration field in milliseconds.
func Duration(d time.Duration) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int64("duration_ms", d.Milliseconds())
	}
}

// ErrorField adds an error field.
func ErrorField(err error) Field {
	return func(e *bolt.Event) *bolt.Event {
		if err == nil {
			return e
		}
		return e.Err(err)
	}
}
