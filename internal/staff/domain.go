package staff

import "time"

// Member represents a teaching or administrative staff record.
type Member struct {
	ID        int64
	FullName  string
	Subject   string
	Phone     string
	Email     string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
