package service

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/openadmit/admissions-api/internal/dto"
	"github.com/openadmit/admissions-api/internal/models"
	appErrors "github.com/openadmit/admissions-api/pkg/errors"
)

type queueEntryLister interface {
	ListActiveDetailed(ctx context.Context, filter models.WaitlistFilter) ([]models.WaitlistEntryDetail, error)
	ListActiveByParentEmail(ctx context.Context, parentEmail string) ([]models.WaitlistEntryDetail, error)
}

type enrolledLeadChecker interface {
	ListActiveLeadIDs(ctx context.Context, schoolID string, leadIDs []string) (map[string]struct{}, error)
}

// parentStatusLabels maps stored statuses to the constrained parent-facing
// vocabulary. Anything unknown falls back to "Waitlisted".
var parentStatusLabels = map[models.WaitlistStatus]string{
	models.WaitlistStatusWaitlisted: "Waitlisted",
	models.WaitlistStatusContacted:  "Contacted",
	models.WaitlistStatusInterested: "Interested",
	models.WaitlistStatusToured:     "Toured",
	models.WaitlistStatusEnrolled:   "Enrolled",
	models.WaitlistStatusDeclined:   "Declined",
}

// QueueService assembles the ranked queue views consumed by staff and
// parents. The displayed ranking sorts by (priority score DESC, created_at
// ASC) and is independent of the stored waitlist_position, which remains the
// authoritative manual order; "position of N" displays always come from the
// priority sort. Enrichment lookups (capacity, siblings, enrollments) degrade
// to defaults so a read stays available when a collaborator is down.
type QueueService struct {
	entries     queueEntryLister
	capacity    capacitySnapshotter
	siblings    siblingResolver
	enrollments enrolledLeadChecker
	metrics     *MetricsService
	logger      *zap.Logger
}

// NewQueueService constructs QueueService.
func NewQueueService(entries queueEntryLister, capacity capacitySnapshotter, siblings siblingResolver, enrollments enrolledLeadChecker, metrics *MetricsService, logger *zap.Logger) *QueueService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueueService{
		entries:     entries,
		capacity:    capacity,
		siblings:    siblings,
		enrollments: enrollments,
		metrics:     metrics,
		logger:      logger,
	}
}

// GetQueue produces the staff-facing ranked view for the requested scope.
func (s *QueueService) GetQueue(ctx context.Context, filter models.WaitlistFilter) (*dto.QueueView, error) {
	entries, err := s.entries.ListActiveDetailed(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load waitlist entries")
	}
	s.metrics.RecordQueueRead("staff")

	schools := distinctSchools(entries)
	capacityBySchool := s.capacityBySchool(ctx, schools)
	siblingsBySchool := s.siblingsBySchool(ctx, entries, schools)

	groups := groupByPartition(entries)
	views := make([]dto.QueueEntryView, 0, len(entries))
	for _, group := range groups {
		sortByPriority(group)
		total := len(group)
		for i, entry := range group {
			capMap := capacityBySchool[entry.SchoolID]
			snap, hasClasses := capMap[entry.Program]

			programPosition := "No classes"
			if hasClasses {
				programPosition = fmt.Sprintf("%d of %d", i+1, total)
			}

			familySet := siblingsBySchool[entry.SchoolID][normalizeEmail(entry.ParentEmail)]

			views = append(views, dto.QueueEntryView{
				ID:                entry.ID,
				LeadID:            entry.LeadID,
				ChildName:         entry.ChildName,
				ParentName:        entry.ParentName,
				ParentEmail:       entry.ParentEmail,
				SchoolID:          entry.SchoolID,
				Program:           entry.Program,
				Status:            parentStatusLabel(entry.Status),
				PriorityScore:     entry.PriorityScore,
				PriorityLabel:     PriorityLabel(entry.PriorityScore),
				UIScore:           ToUIScore(entry.PriorityScore),
				WaitlistPosition:  entry.WaitlistPosition,
				PositionInProgram: i + 1,
				ProgramPosition:   programPosition,
				AvailableSpots:    snap.Available,
				HasSiblings:       HasSiblings(familySet, entry.LeadID),
				Notes:             entry.Notes,
				CreatedAt:         entry.CreatedAt,
			})
		}
	}

	sort.SliceStable(views, func(i, j int) bool {
		if views[i].SchoolID != views[j].SchoolID {
			return views[i].SchoolID < views[j].SchoolID
		}
		if views[i].Program != views[j].Program {
			return views[i].Program < views[j].Program
		}
		return views[i].PositionInProgram < views[j].PositionInProgram
	})

	return &dto.QueueView{
		Entries:           views,
		CapacityByProgram: mergeCapacity(capacityBySchool),
		Stats: dto.QueueStats{
			TotalWaitlisted: len(entries),
			TotalSchools:    len(schools),
		},
	}, nil
}

// GetParentView produces the family-facing view for one parent email.
// Children who already hold an active enrollment are hidden even when their
// entry has not been transitioned yet.
func (s *QueueService) GetParentView(ctx context.Context, parentEmail string) ([]dto.ParentWaitlistEntry, error) {
	email := normalizeEmail(parentEmail)
	if email == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "parent email required")
	}

	entries, err := s.entries.ListActiveByParentEmail(ctx, email)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load waitlist entries")
	}
	s.metrics.RecordQueueRead("parent")

	schools := distinctSchools(entries)
	enrolled := s.enrolledBySchool(ctx, entries, schools)
	capacityBySchool := s.capacityBySchool(ctx, schools)

	visible := entries[:0]
	for _, entry := range entries {
		if _, isEnrolled := enrolled[entry.SchoolID][entry.LeadID]; isEnrolled {
			continue
		}
		visible = append(visible, entry)
	}

	groups := groupByPartition(visible)
	result := make([]dto.ParentWaitlistEntry, 0, len(visible))
	for _, group := range groups {
		sortByPriority(group)
		for i, entry := range group {
			position := i + 1
			snap := capacityBySchool[entry.SchoolID][entry.Program]
			result = append(result, dto.ParentWaitlistEntry{
				ChildName:      entry.ChildName,
				SchoolID:       entry.SchoolID,
				Program:        entry.Program,
				Position:       position,
				Status:         parentStatusLabel(entry.Status),
				EstimatedWait:  estimateWait(position),
				AvailableSpots: snap.Available,
			})
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		if result[i].SchoolID != result[j].SchoolID {
			return result[i].SchoolID < result[j].SchoolID
		}
		if result[i].Program != result[j].Program {
			return result[i].Program < result[j].Program
		}
		return result[i].Position < result[j].Position
	})
	return result, nil
}

// estimateWait converts a displayed position into a coarse wait-time band.
func estimateWait(position int) string {
	switch {
	case position <= 3:
		return "1-2 weeks"
	case position <= 6:
		return "2-4 weeks"
	case position <= 10:
		return "1-2 months"
	default:
		return "2-3 months"
	}
}

func parentStatusLabel(status models.WaitlistStatus) string {
	if label, ok := parentStatusLabels[status]; ok {
		return label
	}
	return "Waitlisted"
}

func (s *QueueService) capacityBySchool(ctx context.Context, schools []string) map[string]map[string]models.CapacitySnapshot {
	result := make(map[string]map[string]models.CapacitySnapshot, len(schools))
	if s.capacity == nil {
		return result
	}
	for _, schoolID := range schools {
		snapshot, err := s.capacity.Snapshot(ctx, schoolID)
		if err != nil {
			s.logger.Warn("capacity snapshot degraded", zap.String("school_id", schoolID), zap.Error(err))
			snapshot = map[string]models.CapacitySnapshot{}
		}
		result[schoolID] = snapshot
	}
	return result
}

func (s *QueueService) siblingsBySchool(ctx context.Context, entries []models.WaitlistEntryDetail, schools []string) map[string]map[string]map[string]struct{} {
	result := make(map[string]map[string]map[string]struct{}, len(schools))
	if s.siblings == nil {
		return result
	}
	for _, schoolID := range schools {
		emails := make([]string, 0, len(entries))
		for _, entry := range entries {
			if entry.SchoolID == schoolID {
				emails = append(emails, entry.ParentEmail)
			}
		}
		families, err := s.siblings.Resolve(ctx, schoolID, emails)
		if err != nil {
			s.logger.Warn("sibling resolution degraded", zap.String("school_id", schoolID), zap.Error(err))
			families = map[string]map[string]struct{}{}
		}
		result[schoolID] = families
	}
	return result
}

func (s *QueueService) enrolledBySchool(ctx context.Context, entries []models.WaitlistEntryDetail, schools []string) map[string]map[string]struct{} {
	result := make(map[string]map[string]struct{}, len(schools))
	if s.enrollments == nil {
		return result
	}
	for _, schoolID := range schools {
		leadIDs := make([]string, 0, len(entries))
		for _, entry := range entries {
			if entry.SchoolID == schoolID {
				leadIDs = append(leadIDs, entry.LeadID)
			}
		}
		active, err := s.enrollments.ListActiveLeadIDs(ctx, schoolID, leadIDs)
		if err != nil {
			s.logger.Warn("enrollment lookup degraded", zap.String("school_id", schoolID), zap.Error(err))
			active = map[string]struct{}{}
		}
		result[schoolID] = active
	}
	return result
}

func distinctSchools(entries []models.WaitlistEntryDetail) []string {
	seen := make(map[string]struct{})
	var schools []string
	for _, entry := range entries {
		if _, ok := seen[entry.SchoolID]; ok {
			continue
		}
		seen[entry.SchoolID] = struct{}{}
		schools = append(schools, entry.SchoolID)
	}
	sort.Strings(schools)
	return schools
}

func groupByPartition(entries []models.WaitlistEntryDetail) [][]models.WaitlistEntryDetail {
	index := make(map[string]int)
	var groups [][]models.WaitlistEntryDetail
	for _, entry := range entries {
		key := entry.SchoolID + "|" + entry.Program
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], entry)
	}
	return groups
}

// sortByPriority orders one partition by the display ranking.
func sortByPriority(group []models.WaitlistEntryDetail) {
	sort.SliceStable(group, func(i, j int) bool {
		if group[i].PriorityScore != group[j].PriorityScore {
			return group[i].PriorityScore > group[j].PriorityScore
		}
		return group[i].CreatedAt.Before(group[j].CreatedAt)
	})
}

func mergeCapacity(bySchool map[string]map[string]models.CapacitySnapshot) map[string]models.CapacitySnapshot {
	merged := make(map[string]models.CapacitySnapshot)
	for _, snapshot := range bySchool {
		for program, snap := range snapshot {
			agg := merged[program]
			agg.Capacity += snap.Capacity
			agg.Enrolled += snap.Enrolled
			agg.Available += snap.Available
			merged[program] = agg
		}
	}
	return merged
}
