package model

import "time"

// Role names carried in the JWT "role" claim and the users.role column.
const (
	RoleAdmin   = "admin"
	RoleTeacher = "teacher"
	RoleStudent = "student"
)

// IsValidRole reports whether r is one of the known roles.
func IsValidRole(r string) bool {
	return r == RoleAdmin || r == RoleTeacher || r == RoleStudent
}

// User represents an application user record as stored in the
// `users` table. Each field corresponds to a column in the
// database. The json tags are omitted here because these structs
// are primarily used internally by the repository layer; handlers
// define separate response types with appropriate JSON tags.
//
// Credits is the spendable booking balance.  It is only changed by
// the credit ledger inside a store transaction and never drops
// below zero.
//
// Fields:
//  ID           – UUID primary key of the user.
//  Email        – unique, lower-cased email address.
//  PasswordHash – bcrypt hashed password.
//  Name         – display name.
//  Phone        – optional contact number.
//  Role         – admin, teacher or student.
//  Credits      – current booking balance.
//  IsActive     – false once the account has been deactivated.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type User struct {
	ID           string    // users.id
	Email        string    // users.email
	PasswordHash string    // users.password_hash
	Name         string    // users.name
	Phone        string    // users.phone
	Role         string    // users.role
	Credits      int       // users.credits
	IsActive     bool      // users.is_active
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}
