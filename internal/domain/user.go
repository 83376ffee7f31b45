package domain

import "time"

// User is a private-chat user of the bot. Created on first contact,
// never deleted.
type User struct {
	ID         int64      `db:"id"`
	FirstName  string     `db:"first_name"`
	LastName   *string    `db:"last_name"`
	Username   *string    `db:"username"`
	IsApproved bool       `db:"is_approved"`
	IsAdmin    bool       `db:"is_admin"`
	ApprovedBy *int64     `db:"approved_by"`
	ApprovedAt *time.Time `db:"approved_at"`
	// RequestedAt is nil when the user has no pending approval request.
	RequestedAt *time.Time `db:"requested_at"`
	CreatedAt   time.Time  `db:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"`
}

// HasPendingRequest reports whether the user asked for approval and was not
// yet approved or rejected.
func (u *User) HasPendingRequest() bool {
	return u != nil && !u.IsApproved && u.RequestedAt != nil
}
