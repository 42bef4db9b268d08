package report

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/oggyb/kinnect/internal/app"
	"github.com/oggyb/kinnect/internal/db"
	"github.com/oggyb/kinnect/internal/dto"
	svcErr "github.com/oggyb/kinnect/internal/errors"
	"github.com/oggyb/kinnect/internal/repository"
	"github.com/oggyb/kinnect/internal/service/guard"
	"github.com/oggyb/kinnect/internal/utils/pagination"
)

var (
	ErrReportSelf      = svcErr.InvalidArgument("CANNOT_REPORT_SELF", "You cannot report yourself")
	ErrAlreadyReported = svcErr.AlreadyExists("ALREADY_REPORTED", "You have already reported this user")
	ErrReportNotFound  = svcErr.NotFound("REPORT_NOT_FOUND", "Report not found")
	ErrInvalidStatus   = svcErr.InvalidArgument("INVALID_REPORT_STATUS", "status must be pending, resolved or dismissed")
)

// Service files user reports and lets moderators work through them.
type Service struct {
	appCtx  *app.AppContext
	users   *repository.UserRepository
	reports *repository.ReportRepository
}

func NewReportService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:  appCtx,
		users:   repository.NewUserRepository(appCtx.DB),
		reports: repository.NewReportRepository(appCtx.DB),
	}
}

// ReportUser files one report from reporterID against reportedID.
// Only one report may exist per unordered pair, whoever filed it.
func (s *Service) ReportUser(ctx context.Context, reporterID, reportedID, reason, description string) (*dto.Report, error) {
	s.appCtx.Logger.Debug("ReportUser called", "reporter", reporterID, "reported", reportedID)

	if reporterID == reportedID {
		return nil, ErrReportSelf
	}
	if _, err := s.users.FindByID(ctx, reportedID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, guard.ErrUserNotFound
		}
		return nil, svcErr.Map(err)
	}

	exists, err := s.reports.ExistsBetween(ctx, reporterID, reportedID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	if exists {
		return nil, ErrAlreadyReported
	}

	r := &db.UserReport{
		ReporterID:     reporterID,
		ReportedUserID: reportedID,
		Reason:         reason,
		Description:    description,
		Status:         db.ReportPending,
	}
	if err := s.reports.Create(ctx, r); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrAlreadyReported
		}
		s.appCtx.Logger.Error("create report failed", "err", err)
		return nil, svcErr.Map(err)
	}
	out := dto.NewReport(r)
	return &out, nil
}

// ListReports pages through reports, optionally filtered by status, newest first.
func (s *Service) ListReports(ctx context.Context, status db.ReportStatus, page, limit int) ([]dto.Report, int64, error) {
	if status != "" && !validStatus(status) {
		return nil, 0, ErrInvalidStatus
	}
	rows, total, err := s.reports.List(ctx, status, pagination.ClampPage(page), pagination.ClampLimit(limit))
	if err != nil {
		return nil, 0, svcErr.Map(err)
	}
	out := make([]dto.Report, 0, len(rows))
	for i := range rows {
		out = append(out, dto.NewReport(&rows[i]))
	}
	return out, total, nil
}

// UpdateReportStatus moves a report to status. Notes and the resolver are kept
// only when the report ends up resolved.
func (s *Service) UpdateReportStatus(ctx context.Context, moderatorID, reportID string, status db.ReportStatus, notes string) (*dto.Report, error) {
	s.appCtx.Logger.Debug("UpdateReportStatus called", "moderator", moderatorID, "report", reportID, "status", status)

	if !validStatus(status) {
		return nil, ErrInvalidStatus
	}
	if err := s.reports.UpdateStatus(ctx, reportID, status, moderatorID, notes, s.appCtx.Now()); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReportNotFound
		}
		return nil, svcErr.Map(err)
	}
	r, err := s.reports.FindByID(ctx, reportID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	out := dto.NewReport(r)
	return &out, nil
}

func validStatus(s db.ReportStatus) bool {
	switch s {
	case db.ReportPending, db.ReportResolved, db.ReportDismissed:
		return true
	}
	return false
}
