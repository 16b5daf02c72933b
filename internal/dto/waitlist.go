package dto

import (
	"time"

	"github.com/openadmit/admissions-api/internal/models"
)

// QueueEntryView is one row of the staff-facing ranked queue.
type QueueEntryView struct {
	ID          string `json:"id"`
	LeadID      string `json:"lead_id"`
	ChildName   string `json:"child_name"`
	ParentName  string `json:"parent_name"`
	ParentEmail string `json:"parent_email"`
	SchoolID    string `json:"school_id"`
	Program     string `json:"program"`

	// Status uses the constrained parent-facing vocabulary.
	Status        string `json:"status"`
	PriorityScore int    `json:"priority_score"`
	PriorityLabel string `json:"priority_label"`
	UIScore       int    `json:"ui_score"`

	// WaitlistPosition is the stored, manually-adjustable order.
	// PositionInProgram is the 1-based rank within the priority-sorted
	// display order; the two deliberately differ.
	WaitlistPosition  int    `json:"waitlist_position"`
	PositionInProgram int    `json:"position_in_program"`
	ProgramPosition   string `json:"program_position"`

	AvailableSpots int       `json:"available_spots"`
	HasSiblings    bool      `json:"has_siblings"`
	Notes          *string   `json:"notes,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// QueueStats summarizes the staff queue payload.
type QueueStats struct {
	TotalWaitlisted int `json:"total_waitlisted"`
	TotalSchools    int `json:"total_schools"`
}

// QueueView is the staff-facing queue response.
type QueueView struct {
	Entries           []QueueEntryView                   `json:"entries"`
	CapacityByProgram map[string]models.CapacitySnapshot `json:"capacity_by_program"`
	Stats             QueueStats                         `json:"stats"`
}

// ParentWaitlistEntry is one row of the parent-facing view. Position is a
// sequential counter within the visible subset, not the stored position.
type ParentWaitlistEntry struct {
	ChildName      string `json:"child_name"`
	SchoolID       string `json:"school_id"`
	Program        string `json:"program"`
	Position       int    `json:"position"`
	Status         string `json:"status"`
	EstimatedWait  string `json:"estimated_wait"`
	AvailableSpots int    `json:"available_spots"`
}
