package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/openadmit/admissions-api/internal/models"
	appErrors "github.com/openadmit/admissions-api/pkg/errors"
)

type parentEnrollmentReader interface {
	FindActiveByParentEmails(ctx context.Context, schoolID string, emails []string) ([]models.ParentEnrollment, error)
}

// SiblingService resolves family relationships through shared parent emails
// on active enrollments. Read-only.
type SiblingService struct {
	enrollments parentEnrollmentReader
	logger      *zap.Logger
}

// NewSiblingService constructs SiblingService.
func NewSiblingService(enrollments parentEnrollmentReader, logger *zap.Logger) *SiblingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SiblingService{enrollments: enrollments, logger: logger}
}

// Resolve maps each lowercased parent email to the set of lead IDs with an
// active enrollment at the school. Emails are matched case-insensitively;
// blank emails never match.
func (s *SiblingService) Resolve(ctx context.Context, schoolID string, parentEmails []string) (map[string]map[string]struct{}, error) {
	emails := make([]string, 0, len(parentEmails))
	seen := make(map[string]struct{}, len(parentEmails))
	for _, email := range parentEmails {
		normalized := normalizeEmail(email)
		if normalized == "" {
			continue
		}
		if _, dup := seen[normalized]; dup {
			continue
		}
		seen[normalized] = struct{}{}
		emails = append(emails, normalized)
	}

	result := make(map[string]map[string]struct{}, len(emails))
	if len(emails) == 0 {
		return result, nil
	}

	pairs, err := s.enrollments.FindActiveByParentEmails(ctx, schoolID, emails)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUpstreamUnavailable.Code, appErrors.ErrUpstreamUnavailable.Status, "enrollment lookup failed")
	}

	for _, pair := range pairs {
		email := strings.ToLower(pair.ParentEmail)
		if result[email] == nil {
			result[email] = make(map[string]struct{})
		}
		result[email][pair.LeadID] = struct{}{}
	}
	return result, nil
}

// HasSiblings reports whether the family set contains an enrolled child other
// than the lead itself.
func HasSiblings(siblings map[string]struct{}, ownLeadID string) bool {
	for leadID := range siblings {
		if leadID != ownLeadID {
			return true
		}
	}
	return false
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
