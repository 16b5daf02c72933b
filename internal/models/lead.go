package models

import "time"

// Lead is the admissions lead read model consumed by the waitlist engine.
// Lead CRUD lives outside this service; only the fields the engine reads are
// mapped here.
type Lead struct {
	ID           string     `db:"id" json:"id"`
	SchoolID     string     `db:"school_id" json:"school_id"`
	ChildName    string     `db:"child_name" json:"child_name"`
	ParentName   string     `db:"parent_name" json:"parent_name"`
	ParentEmail  string     `db:"parent_email" json:"parent_email"`
	ParentPhone  *string    `db:"parent_phone" json:"parent_phone,omitempty"`
	LeadScore    *int       `db:"lead_score" json:"lead_score,omitempty"`
	LeadStatus   string     `db:"lead_status" json:"lead_status"`
	Program      string     `db:"program" json:"program"`
	NextFollowUp *time.Time `db:"next_follow_up" json:"next_follow_up,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}
