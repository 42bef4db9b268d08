package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/oggyb/kinnect/internal/db"
)

// ReportRepository provides data access for user reports.
type ReportRepository struct {
	db *gorm.DB
}

// NewReportRepository creates a new repository bound to the given DB connection.
func NewReportRepository(database *gorm.DB) *ReportRepository {
	return &ReportRepository{db: database}
}

// Create inserts a report. The unordered pair key is unique, so a second report
// between the same two users fails with gorm.ErrDuplicatedKey.
func (r *ReportRepository) Create(ctx context.Context, report *db.UserReport) error {
	report.PairKey = db.PairKey(report.ReporterID, report.ReportedUserID)
	return r.db.WithContext(ctx).Create(report).Error
}

// ExistsBetween reports whether a or b already reported the other.
func (r *ReportRepository) ExistsBetween(ctx context.Context, a, b string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.UserReport{}).
		Where("pair_key = ?", db.PairKey(a, b)).
		Count(&count).Error
	return count > 0, err
}

func (r *ReportRepository) FindByID(ctx context.Context, id string) (*db.UserReport, error) {
	var report db.UserReport
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&report).Error; err != nil {
		return nil, err
	}
	return &report, nil
}

// List returns reports newest first, optionally filtered by status.
func (r *ReportRepository) List(ctx context.Context, status db.ReportStatus, page, limit int) ([]db.UserReport, int64, error) {
	q := r.db.WithContext(ctx).Model(&db.UserReport{})
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var reports []db.UserReport
	err := q.Order("created_at DESC, id DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&reports).Error
	return reports, total, err
}

// UpdateStatus sets the report status. Resolution fields are written only when
// the new status is resolved, and cleared otherwise.
func (r *ReportRepository) UpdateStatus(
	ctx context.Context,
	id string,
	status db.ReportStatus,
	adminID, notes string,
	at time.Time,
) error {
	fields := map[string]any{"status": status}
	if status == db.ReportResolved {
		fields["admin_notes"] = notes
		fields["resolved_by"] = adminID
		fields["resolved_at"] = at
	} else {
		fields["admin_notes"] = ""
		fields["resolved_by"] = nil
		fields["resolved_at"] = nil
	}
	res := r.db.WithContext(ctx).Model(&db.UserReport{}).Where("id = ?", id).Updates(fields)
	return matched(res, &db.UserReport{}, "id = ?", id)
}
