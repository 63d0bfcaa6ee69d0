package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Class is a recurring dance class taught by one professor.  A
// reservation books one dated occurrence of a class; capacity is
// enforced per (class, date).
//
// Fields:
//  ID              – UUID primary key.
//  Name            – short title shown in listings.
//  Description     – free text.
//  ProfessorID     – user id of the teacher running the class.
//  ProfessorName   – denormalised display name of the teacher.
//  MaxStudents     – confirmed reservations allowed per occurrence.
//  DurationMinutes – length of one session.
//  Price           – informational list price; bookings cost credits.
//  IsActive        – inactive classes cannot be booked.
//  CreatedAt       – creation timestamp.
//  UpdatedAt       – last update timestamp.
type Class struct {
	ID              string          // classes.id
	Name            string          // classes.name
	Description     string          // classes.description
	ProfessorID     string          // classes.professor_id
	ProfessorName   string          // classes.professor_name
	MaxStudents     int             // classes.max_students
	DurationMinutes int             // classes.duration_minutes
	Price           decimal.Decimal // classes.price
	IsActive        bool            // classes.is_active
	CreatedAt       time.Time       // classes.created_at
	UpdatedAt       time.Time       // classes.updated_at
}
