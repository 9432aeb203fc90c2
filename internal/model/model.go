// Package model defines the core domain types for the event portal.
package model

import "time"

// Role is the authorization role carried by an authenticated identity.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Identity is the authenticated caller of a core operation.
type Identity struct {
	UserID string
	Role   Role
}

// IsZero reports whether no identity was supplied.
func (i Identity) IsZero() bool {
	return i.UserID == ""
}

// IsAdmin returns true for administrators.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// CanManage reports whether the identity may act on a resource owned by ownerID.
func (i Identity) CanManage(ownerID string) bool {
	return i.IsAdmin() || (i.UserID != "" && i.UserID == ownerID)
}

// Event represents a registrable event created by an organizer.
// Capacity and Organizer never change after creation; RegisteredCount is
// written only through the ledger.
type Event struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	Date            time.Time `json:"date"`
	Time            string    `json:"time"`
	Venue           string    `json:"venue"`
	Organizer       string    `json:"organizer"`
	Capacity        int       `json:"capacity"`
	RegisteredCount int       `json:"registeredCount"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Remaining returns the number of available places.
func (e *Event) Remaining() int {
	return e.Capacity - e.RegisteredCount
}

// IsFull returns true when no places remain.
func (e *Event) IsFull() bool {
	return e.RegisteredCount >= e.Capacity
}

// EventSummary is the subset of an event shown alongside a user's registrations.
type EventSummary struct {
	ID    string    `json:"id"`
	Title string    `json:"title"`
	Date  time.Time `json:"date"`
	Time  string    `json:"time"`
	Venue string    `json:"venue"`
}

// RegistrationStatus is the lifecycle state of a registration.
// The only transition is active -> cancelled.
type RegistrationStatus string

const (
	StatusActive    RegistrationStatus = "active"
	StatusCancelled RegistrationStatus = "cancelled"
)

// Registration represents a user's registration for an event.
type Registration struct {
	ID           string             `json:"id"`
	EventID      string             `json:"event"`
	UserID       string             `json:"user"`
	RegisteredAt time.Time          `json:"registeredAt"`
	Status       RegistrationStatus `json:"status"`
}

// IsActive returns true while the registration holds a place.
func (r *Registration) IsActive() bool {
	return r.Status == StatusActive
}

// RegistrationWithEvent is a registration with its event expanded in place of the id.
type RegistrationWithEvent struct {
	Registration
	Event EventSummary `json:"event"`
}

// CreateEventRequest is the payload for creating a new event.
type CreateEventRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	Venue       string `json:"venue"`
	Capacity    int    `json:"capacity"`
}

// EventDraft is a validated CreateEventRequest.
type EventDraft struct {
	Title       string
	Description string
	Date        time.Time
	Time        string
	Venue       string
	Capacity    int
}

// UpdateEventRequest carries the descriptive fields an organizer may change.
// Nil fields are left untouched. Capacity is immutable and has no field here.
type UpdateEventRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Date        *string `json:"date,omitempty"`
	Time        *string `json:"time,omitempty"`
	Venue       *string `json:"venue,omitempty"`
}

// EventUpdate is a validated UpdateEventRequest ready for storage.
type EventUpdate struct {
	Title       *string
	Description *string
	Date        *time.Time
	Time        *string
	Venue       *string
}

// RegisterRequest is the payload for registering for an event.
type RegisterRequest struct {
	EventID string `json:"eventId"`
}

// FieldError describes one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Response is the standard JSON envelope returned by every endpoint.
type Response struct {
	Success bool         `json:"success"`
	Count   *int         `json:"count,omitempty"`
	Data    any          `json:"data,omitempty"`
	Message string       `json:"message,omitempty"`
	Errors  []FieldError `json:"errors,omitempty"`
}
