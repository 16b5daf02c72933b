package models

// Class is the live class-roster read model used for capacity aggregation.
type Class struct {
	ID                string `db:"id" json:"id"`
	SchoolID          string `db:"school_id" json:"school_id"`
	Name              string `db:"name" json:"name"`
	Program           string `db:"program" json:"program"`
	Capacity          int    `db:"capacity" json:"capacity"`
	CurrentEnrollment int    `db:"current_enrollment" json:"current_enrollment"`
}

// CapacitySnapshot is the derived per-program aggregate. Available never goes
// negative even when a program is over-enrolled.
type CapacitySnapshot struct {
	Capacity  int `json:"capacity"`
	Enrolled  int `json:"enrolled"`
	Available int `json:"available"`
}
