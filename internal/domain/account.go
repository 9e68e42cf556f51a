package domain

import "time"

// Account is a named balance bucket owned by one user. Balance is held in
// minor units (cents). Version increments on every successful balance
// mutation and is the basis for optimistic conflict detection.
type Account struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Name      string    `json:"name"`
	Balance   int64     `json:"balance"`
	Version   int64     `json:"version"`
	Overdraft bool      `json:"overdraft"`
	CreatedAt time.Time `json:"created_at"`
}
