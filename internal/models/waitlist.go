package models

import "time"

// WaitlistStatus represents the lifecycle of a waitlist entry.
type WaitlistStatus string

// Possible waitlist statuses. DECLINED and ENROLLED are terminal.
const (
	WaitlistStatusWaitlisted WaitlistStatus = "WAITLISTED"
	WaitlistStatusContacted  WaitlistStatus = "CONTACTED"
	WaitlistStatusInterested WaitlistStatus = "INTERESTED"
	WaitlistStatusToured     WaitlistStatus = "TOURED"
	WaitlistStatusDeclined   WaitlistStatus = "DECLINED"
	WaitlistStatusEnrolled   WaitlistStatus = "ENROLLED"
)

// Terminal reports whether the status retires the entry from active ranking.
func (s WaitlistStatus) Terminal() bool {
	return s == WaitlistStatusDeclined || s == WaitlistStatusEnrolled
}

// Valid reports whether the status is one of the known values.
func (s WaitlistStatus) Valid() bool {
	switch s {
	case WaitlistStatusWaitlisted, WaitlistStatusContacted, WaitlistStatusInterested,
		WaitlistStatusToured, WaitlistStatusDeclined, WaitlistStatusEnrolled:
		return true
	}
	return false
}

// WaitlistEntry is one active ranking slot for a lead in a program at a school.
// waitlist_position is unique and contiguous (1..N) among non-terminal entries
// of the same (school_id, program) partition.
type WaitlistEntry struct {
	ID               string         `db:"id" json:"id"`
	LeadID           string         `db:"lead_id" json:"lead_id"`
	SchoolID         string         `db:"school_id" json:"school_id"`
	Program          string         `db:"program" json:"program"`
	WaitlistPosition int            `db:"waitlist_position" json:"waitlist_position"`
	PriorityScore    int            `db:"priority_score" json:"priority_score"`
	Status           WaitlistStatus `db:"status" json:"status"`
	Notes            *string        `db:"notes" json:"notes,omitempty"`
	OfferDate        *time.Time     `db:"offer_date" json:"offer_date,omitempty"`
	CreatedAt        time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at" json:"updated_at"`
}

// WaitlistEntryDetail enriches WaitlistEntry with lead display fields.
type WaitlistEntryDetail struct {
	WaitlistEntry
	ChildName   string  `db:"child_name" json:"child_name"`
	ParentName  string  `db:"parent_name" json:"parent_name"`
	ParentEmail string  `db:"parent_email" json:"parent_email"`
	ParentPhone *string `db:"parent_phone" json:"parent_phone,omitempty"`
	LeadStatus  string  `db:"lead_status" json:"lead_status"`
}

// WaitlistFilter scopes queue reads. Empty fields match everything.
type WaitlistFilter struct {
	SchoolID string
	Program  string
}

// OptionalString distinguishes "absent", "explicitly cleared" and "set".
// Valid=false means the field was not present in the patch; Valid=true with a
// nil Value clears the column.
type OptionalString struct {
	Valid bool
	Value *string
}

// OptionalInt carries an integer patch field when Valid is true.
type OptionalInt struct {
	Valid bool
	Value int
}

// OptionalTime distinguishes absent, cleared and set timestamp fields.
type OptionalTime struct {
	Valid bool
	Value *time.Time
}

// WaitlistPatch is the explicit tagged patch applied by UpdateFields.
// PriorityScore holds the stored 0-100 scale, not the UI scale.
type WaitlistPatch struct {
	Notes         OptionalString
	PriorityScore OptionalInt
	OfferDate     OptionalTime
}

// Empty reports whether the patch carries no changes.
func (p WaitlistPatch) Empty() bool {
	return !p.Notes.Valid && !p.PriorityScore.Valid && !p.OfferDate.Valid
}

// Partition identifies one contiguous position sequence.
type Partition struct {
	SchoolID string `db:"school_id" json:"school_id"`
	Program  string `db:"program" json:"program"`
}
