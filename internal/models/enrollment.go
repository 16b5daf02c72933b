package models

// EnrollmentStatus represents the lifecycle of a converted enrollment.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusActive    EnrollmentStatus = "ACTIVE"
	EnrollmentStatusWithdrawn EnrollmentStatus = "WITHDRAWN"
	EnrollmentStatusGraduated EnrollmentStatus = "GRADUATED"
)

// ParentEnrollment pairs a parent email with an actively-enrolled lead.
type ParentEnrollment struct {
	ParentEmail string `db:"parent_email" json:"parent_email"`
	LeadID      string `db:"lead_id" json:"lead_id"`
}
