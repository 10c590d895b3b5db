package model

import "time"

// Specialist represents a published listing in the `specialists` table.
// Name mirrors the author's display name by default and is kept in sync
// when the author renames their profile.  IsApproved is true immediately
// for admin-created listings; listings published by regular users start
// unapproved pending review.
type Specialist struct {
	ID           uint64
	Name         string
	Specialty    string
	Category     string
	Description  string
	Experience   float64
	Rating       float64
	Location     string
	PricePerHour float64
	AvatarURL    string
	UserID       uint64
	CreatedBy    uint64
	IsApproved   bool
	CreatedAt    time.Time
}

// Category is a row of the `categories` reference table.  Slug is the
// URL-friendly unique key used by the public filter endpoints.
type Category struct {
	ID          uint64
	Name        string
	Slug        string
	Description string
	IconURL     string
}
