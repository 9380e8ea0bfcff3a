// Package model defines the data structures used throughout the application.
package model

import "time"

// Crate is one persisted catalog entry.
//
// ID is assigned by the store on insert and never changes afterwards.
// CreatedAt is likewise set once by the store; an update never touches it.
//
// WHY *string FOR Description?
// The description is optional. A nil pointer serializes as JSON null and is
// stored as SQL NULL, which keeps "no description" distinct from "".
type Crate struct {
	ID          int64     `json:"id"          db:"id"`
	Name        string    `json:"name"        db:"name"`
	Version     string    `json:"version"     db:"version"`
	Description *string   `json:"description" db:"description"`
	CreatedAt   time.Time `json:"createdAt"   db:"created_at"`
}

// NewCrate is the creation payload: a Crate without the store-assigned fields.
type NewCrate struct {
	Name        string  `json:"name"`
	Version     string  `json:"version"`
	Description *string `json:"description"`
}
