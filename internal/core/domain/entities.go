package domain

import (
	"time"
)

// Task is a pinned reminder: something to do at a place.
type Task struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Location  GeoPoint  `json:"location"`
	CreatedAt time.Time `json:"created_at"`
}

// RankedTask is a task annotated with its distance from a reference point.
type RankedTask struct {
	Task
	DistanceKm float64 `json:"distance_km"`
}

// Position is a live reading from the device's location provider.
// Positions are never persisted.
type Position struct {
	Location  GeoPoint  `json:"location"`
	Time      time.Time `json:"time"`
	AccuracyM float64   `json:"accuracy_m,omitempty"`
}

// Route is the overlay drawn between the current position and the target.
type Route struct {
	From       GeoPoint  `json:"from"`
	To         GeoPoint  `json:"to"`
	TaskID     int64     `json:"task_id"`
	DistanceKm float64   `json:"distance_km"`
	DrawnAt    time.Time `json:"drawn_at"`
}

// AnnouncementKind classifies a spoken/visual notification.
type AnnouncementKind string

const (
	AnnounceReached      AnnouncementKind = "reached"
	AnnounceNextTarget   AnnouncementKind = "next_target"
	AnnounceAllCompleted AnnouncementKind = "all_completed"
	// AnnounceNotice carries a user-visible failure; it is shown, not spoken.
	AnnounceNotice AnnouncementKind = "notice"
)

// Announcement is a message for the user.
type Announcement struct {
	Kind    AnnouncementKind `json:"kind"`
	Message string           `json:"message"`
	TaskID  int64            `json:"task_id,omitempty"`
	Time    time.Time        `json:"time"`
}

// Spoken reports whether the announcement should reach the voice backend.
func (a Announcement) Spoken() bool {
	return a.Kind != AnnounceNotice
}

// Place is a geocoding match.
type Place struct {
	Name     string   `json:"name"`
	Location GeoPoint `json:"location"`
}

// TaskEvent is published whenever the task set changes.
type TaskEvent struct {
	Type   string    `json:"type"` // "created" | "deleted"
	TaskID int64     `json:"task_id"`
	Title  string    `json:"title,omitempty"`
	Time   time.Time `json:"time"`
}
