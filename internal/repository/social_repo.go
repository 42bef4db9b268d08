package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oggyb/kinnect/internal/db"
	"github.com/oggyb/kinnect/internal/utils/pagination"
)

// SocialRepository provides data access for follow and block edges.
type SocialRepository struct {
	db *gorm.DB
}

// NewSocialRepository creates a new repository bound to the given DB connection.
func NewSocialRepository(database *gorm.DB) *SocialRepository {
	return &SocialRepository{db: database}
}

// AddFollow inserts follower -> followee.
//
// Behavior:
//   - Composite PK makes this set-union: an existing edge is left untouched.
//   - Returns whether a new edge was created.
func (r *SocialRepository) AddFollow(ctx context.Context, followerID, followeeID string) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&db.Follow{FollowerID: followerID, FolloweeID: followeeID})
	return res.RowsAffected > 0, res.Error
}

// RemoveFollow deletes follower -> followee. Returns whether an edge existed.
func (r *SocialRepository) RemoveFollow(ctx context.Context, followerID, followeeID string) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("follower_id = ? AND followee_id = ?", followerID, followeeID).
		Delete(&db.Follow{})
	return res.RowsAffected > 0, res.Error
}

// IsFollowing checks whether follower follows followee.
func (r *SocialRepository) IsFollowing(ctx context.Context, followerID, followeeID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.Follow{}).
		Where("follower_id = ? AND followee_id = ?", followerID, followeeID).
		Count(&count).Error
	return count > 0, err
}

// IsMutualFollow checks whether a and b follow each other.
func (r *SocialRepository) IsMutualFollow(ctx context.Context, a, b string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.Follow{}).
		Where("(follower_id = ? AND followee_id = ?) OR (follower_id = ? AND followee_id = ?)", a, b, b, a).
		Count(&count).Error
	return count == 2, err
}

// CountFollowers returns how many users follow userID.
func (r *SocialRepository) CountFollowers(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&db.Follow{}).Where("followee_id = ?", userID).Count(&count).Error
	return count, err
}

// CountFollowing returns how many users userID follows.
func (r *SocialRepository) CountFollowing(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&db.Follow{}).Where("follower_id = ?", userID).Count(&count).Error
	return count, err
}

// Edge is one entry of a follower/following listing.
type Edge struct {
	UserID    string
	CreatedAt time.Time
}

// ListFollowers returns the users following userID, newest edge first.
//
// Behavior:
//   - Ordered by created_at DESC, follower_id DESC.
//   - Supports cursor-based pagination via paginationToken.
func (r *SocialRepository) ListFollowers(ctx context.Context, userID string, paginationToken *string, limit int) ([]Edge, *string, error) {
	return r.listEdges(ctx, "followee_id", "follower_id", userID, paginationToken, limit)
}

// ListFollowing returns the users userID follows, newest edge first.
func (r *SocialRepository) ListFollowing(ctx context.Context, userID string, paginationToken *string, limit int) ([]Edge, *string, error) {
	return r.listEdges(ctx, "follower_id", "followee_id", userID, paginationToken, limit)
}

func (r *SocialRepository) listEdges(
	ctx context.Context,
	ownerCol, otherCol, userID string,
	paginationToken *string,
	limit int,
) ([]Edge, *string, error) {
	// decode cursor if provided
	cursor, err := pagination.Decode(getString(paginationToken))
	if err != nil {
		return nil, nil, err
	}

	query := r.db.WithContext(ctx).
		Model(&db.Follow{}).
		Select(otherCol+" AS user_id, created_at").
		Where(ownerCol+" = ?", userID).
		Order("created_at DESC, " + otherCol + " DESC").
		Limit(limit + 1)

	// apply cursor
	if !cursor.IsZero() {
		ts := time.UnixMilli(cursor.CreatedUnix).UTC()
		query = query.Where(
			"(created_at < ? OR (created_at = ? AND "+otherCol+" < ?))",
			ts, ts, cursor.ID,
		)
	}

	var edges []Edge
	if err := query.Scan(&edges).Error; err != nil {
		return nil, nil, err
	}

	// pagination: build next cursor if needed
	var nextToken *string
	if len(edges) > limit {
		last := edges[limit-1]
		token, _ := pagination.Encode(pagination.Cursor{
			ID:          last.UserID,
			CreatedUnix: last.CreatedAt.UnixMilli(),
		})
		nextToken = &token
		edges = edges[:limit]
	}

	return edges, nextToken, nil
}

// AddBlock inserts blocker -> blocked. Existing edges are left untouched.
func (r *SocialRepository) AddBlock(ctx context.Context, blockerID, blockedID string) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&db.Block{BlockerID: blockerID, BlockedID: blockedID})
	return res.RowsAffected > 0, res.Error
}

// RemoveBlock deletes blocker -> blocked. Returns whether an edge existed.
func (r *SocialRepository) RemoveBlock(ctx context.Context, blockerID, blockedID string) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("blocker_id = ? AND blocked_id = ?", blockerID, blockedID).
		Delete(&db.Block{})
	return res.RowsAffected > 0, res.Error
}

// IsBlockedEitherWay reports whether a blocked b or b blocked a.
func (r *SocialRepository) IsBlockedEitherWay(ctx context.Context, a, b string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.Block{}).
		Where("(blocker_id = ? AND blocked_id = ?) OR (blocker_id = ? AND blocked_id = ?)", a, b, b, a).
		Count(&count).Error
	return count > 0, err
}

// ListBlocked returns the edges userID created, newest first.
func (r *SocialRepository) ListBlocked(ctx context.Context, userID string) ([]db.Block, error) {
	var blocks []db.Block
	err := r.db.WithContext(ctx).
		Where("blocker_id = ?", userID).
		Order("created_at DESC").
		Find(&blocks).Error
	return blocks, err
}

// SeverPair removes follow edges in both directions between a and b.
func (r *SocialRepository) SeverPair(ctx context.Context, a, b string) error {
	return r.db.WithContext(ctx).
		Where("(follower_id = ? AND followee_id = ?) OR (follower_id = ? AND followee_id = ?)", a, b, b, a).
		Delete(&db.Follow{}).Error
}

// getString safely dereferences a string pointer for pagination tokens.
func getString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// matched turns an update result into gorm.ErrRecordNotFound when no row matched.
// MySQL reports rows changed rather than rows matched, so a zero count is confirmed
// with a lookup before it is treated as missing.
func matched(res *gorm.DB, model any, query string, args ...any) error {
	if res.Error != nil || res.RowsAffected > 0 {
		return res.Error
	}
	var n int64
	if err := res.Session(&gorm.Session{NewDB: true}).Model(model).Where(query, args...).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
