// Package queue defines message payloads exchanged over the message broker.
package queue

// SpecialistPublishedEvent is published when a listing is created. It
// carries enough information for downstream consumers to log, notify, or
// trigger analytics without querying the primary database. Promoted marks
// the author's first listing, the one that flipped their role from user
// to specialist.
type SpecialistPublishedEvent struct {
	SpecialistID uint64 `json:"specialist_id"`
	UserID       uint64 `json:"user_id"`
	Name         string `json:"name"`
	Specialty    string `json:"specialty"`
	Category     string `json:"category"`
	Approved     bool   `json:"approved"`
	Promoted     bool   `json:"promoted"`
	PublishedAt  string `json:"published_at"`
}
