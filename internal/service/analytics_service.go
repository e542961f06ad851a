package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/issue-service/internal/domain"
	"github.com/spec-kit/issue-service/internal/repository"
)

// StatusOther buckets issues whose status is not one of the known values.
const StatusOther = "Other"

const trendDays = 7

// StatusCount is one slice of the status distribution chart.
type StatusCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
	Color string `json:"color"`
}

// WeeklyTrend counts issues created on each of the last seven days,
// oldest first. Labels are MM-DD.
type WeeklyTrend struct {
	Labels []string `json:"labels"`
	Counts []int    `json:"counts"`
}

// AnalyticsService aggregates issue statistics for staff dashboards.
// Failures produce empty results and a log entry.
type AnalyticsService struct {
	issues repository.IssueRepository
	now    func() time.Time
	logger *zap.Logger
}

// AnalyticsDependencies bundles collaborators for the analytics service.
type AnalyticsDependencies struct {
	IssueRepo repository.IssueRepository
	Clock     func() time.Time
	Logger    *zap.Logger
}

// NewAnalyticsService constructs the service.
func NewAnalyticsService(deps AnalyticsDependencies) *AnalyticsService {
	s := &AnalyticsService{issues: deps.IssueRepo, now: deps.Clock, logger: deps.Logger}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// StatusDistribution counts issues per status. Empty buckets are left out.
func (s *AnalyticsService) StatusDistribution(ctx context.Context) []StatusCount {
	issues, err := s.issues.List(ctx, repository.IssueFilter{})
	if err != nil {
		s.logger.Error("status distribution failed", zap.Error(err))
		return []StatusCount{}
	}

	counts := make(map[string]int, len(domain.IssueStatuses)+1)
	for _, issue := range issues {
		if issue.Status.Valid() {
			counts[string(issue.Status)]++
		} else {
			counts[StatusOther]++
		}
	}

	buckets := make([]string, 0, len(domain.IssueStatuses)+1)
	for _, status := range domain.IssueStatuses {
		buckets = append(buckets, string(status))
	}
	buckets = append(buckets, StatusOther)

	out := make([]StatusCount, 0, len(buckets))
	for _, name := range buckets {
		if counts[name] == 0 {
			continue
		}
		out = append(out, StatusCount{Name: name, Count: counts[name], Color: statusColor(name)})
	}
	return out
}

// WeeklyTrend counts issues created per UTC day over the last seven days,
// today included.
func (s *AnalyticsService) WeeklyTrend(ctx context.Context) WeeklyTrend {
	issues, err := s.issues.List(ctx, repository.IssueFilter{})
	if err != nil {
		s.logger.Error("weekly trend failed", zap.Error(err))
		return WeeklyTrend{Labels: []string{}, Counts: []int{}}
	}

	today := s.now().UTC()
	days := make(map[string]int, trendDays)
	trend := WeeklyTrend{Labels: make([]string, trendDays), Counts: make([]int, trendDays)}
	for i := 0; i < trendDays; i++ {
		day := today.AddDate(0, 0, i-(trendDays-1))
		days[day.Format("2006-01-02")] = i
		trend.Labels[i] = day.Format("01-02")
	}

	for _, issue := range issues {
		if issue.CreatedAt.IsZero() {
			continue
		}
		if i, ok := days[issue.CreatedAt.UTC().Format("2006-01-02")]; ok {
			trend.Counts[i]++
		}
	}
	return trend
}

func statusColor(status string) string {
	switch domain.IssueStatus(status) {
	case domain.IssueStatusOpen:
		return "#FF3B30"
	case domain.IssueStatusInProgress:
		return "#FF9500"
	case domain.IssueStatusResolved:
		return "#34C759"
	default:
		return "#8E8E93"
	}
}
