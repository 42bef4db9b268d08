package social

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/oggyb/kinnect/internal/app"
	"github.com/oggyb/kinnect/internal/db"
	"github.com/oggyb/kinnect/internal/dto"
	svcErr "github.com/oggyb/kinnect/internal/errors"
	"github.com/oggyb/kinnect/internal/events"
	"github.com/oggyb/kinnect/internal/metrics"
	"github.com/oggyb/kinnect/internal/repository"
	"github.com/oggyb/kinnect/internal/service/guard"
	"github.com/oggyb/kinnect/internal/utils/pagination"
)

var (
	ErrFollowSelf              = svcErr.InvalidArgument("CANNOT_FOLLOW_SELF", "You cannot follow yourself")
	ErrBlockSelf               = svcErr.InvalidArgument("CANNOT_BLOCK_SELF", "You cannot block yourself")
	ErrAlreadyFollowing        = svcErr.AlreadyExists("ALREADY_FOLLOWING", "Already following this user")
	ErrFollowRequestExists     = svcErr.AlreadyExists("FOLLOW_REQUEST_EXISTS", "A follow request is already pending between you and this user")
	ErrFollowRequestNotFound   = svcErr.NotFound("FOLLOW_REQUEST_NOT_FOUND", "Follow request not found")
	ErrFollowRequestExpired    = svcErr.InvalidArgument("FOLLOW_REQUEST_EXPIRED", "Follow request has expired")
	ErrFollowRequestNotPending = svcErr.AlreadyExists("FOLLOW_REQUEST_NOT_PENDING", "Follow request is no longer pending")
	ErrNotFollowing            = svcErr.NotFound("NOT_FOLLOWING", "You are not following this user")
	ErrNotFollower             = svcErr.NotFound("NOT_FOLLOWER", "This user does not follow you")
	ErrNotBlocked              = svcErr.NotFound("NOT_BLOCKED", "This user is not blocked")
	ErrPrivateAccount          = svcErr.Forbidden("PRIVATE_ACCOUNT", "This account is private")
	ErrInvalidDirection        = svcErr.InvalidArgument("INVALID_DIRECTION", "direction must be incoming or outgoing")
	ErrInvalidPaginationToken  = svcErr.InvalidArgument("INVALID_PAGINATION_TOKEN", "pagination token is invalid")
)

// Direction selects which side of a request ledger to list.
type Direction string

const (
	Incoming Direction = "incoming"
	Outgoing Direction = "outgoing"
)

// Counts is the follower/following tally of one user.
type Counts struct {
	Followers int64 `json:"followers"`
	Following int64 `json:"following"`
}

// FollowEntry is one row of a followers/following listing.
type FollowEntry struct {
	User       dto.UserSummary `json:"user"`
	FollowedAt time.Time       `json:"followedAt"`
}

// BlockedUser is one row of the caller's block list.
type BlockedUser struct {
	User      dto.UserSummary `json:"user"`
	BlockedAt time.Time       `json:"blockedAt"`
}

// Service implements follow requests, the follow graph and blocking.
type Service struct {
	appCtx   *app.AppContext
	users    *repository.UserRepository
	social   *repository.SocialRepository
	requests *repository.FollowRequestRepository
	guard    *guard.Guard
}

// NewSocialService creates the service with repositories bound to the AppContext DB.
func NewSocialService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:   appCtx,
		users:    repository.NewUserRepository(appCtx.DB),
		social:   repository.NewSocialRepository(appCtx.DB),
		requests: repository.NewFollowRequestRepository(appCtx.DB),
		guard:    guard.New(appCtx.DB),
	}
}

// SendFollowRequest asks to follow `to`.
//
// Behavior:
//   - Fails on self, missing or inactive users, and a block in either direction.
//   - Fails when already following, or when a live pending request exists in either direction.
//   - The ledger keeps one row per ordered pair: an answered or lapsed row is reopened
//     with a fresh expiry instead of inserting a second row.
func (s *Service) SendFollowRequest(ctx context.Context, from, to, message string) (*dto.FollowRequest, error) {
	s.appCtx.Logger.Debug("SendFollowRequest called", "from", from, "to", to)

	if from == to {
		return nil, ErrFollowSelf
	}
	if _, _, err := s.guard.Pair(ctx, from, to); err != nil {
		return nil, err
	}

	following, err := s.social.IsFollowing(ctx, from, to)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	if following {
		return nil, ErrAlreadyFollowing
	}

	now := s.appCtx.Now()
	if _, err := s.requests.PendingBetween(ctx, from, to, now); err == nil {
		return nil, ErrFollowRequestExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, svcErr.Map(err)
	}

	expiresAt := now.Add(s.appCtx.Config.Requests.TTL)
	existing, err := s.requests.FindPair(ctx, from, to)
	switch {
	case err == nil:
		reopened, err := s.requests.Reopen(ctx, existing.ID, message, now, expiresAt)
		if err != nil {
			return nil, svcErr.Map(err)
		}
		if !reopened {
			return nil, ErrFollowRequestExists
		}
		existing, err = s.requests.FindByID(ctx, existing.ID)
		if err != nil {
			return nil, svcErr.Map(err)
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		existing = &db.FollowRequest{
			RequesterID: from,
			RecipientID: to,
			Status:      db.StatusPending,
			Message:     message,
			ExpiresAt:   expiresAt,
			CreatedAt:   now,
		}
		if err := s.requests.Create(ctx, existing); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return nil, ErrFollowRequestExists
			}
			s.appCtx.Logger.Error("create follow request failed", "err", err)
			return nil, svcErr.Map(err)
		}
	default:
		return nil, svcErr.Map(err)
	}

	metrics.RequestTransitionsTotal.WithLabelValues("follow", string(db.StatusPending)).Inc()
	s.publish(ctx, events.FollowRequested, map[string]string{"requestId": existing.ID, "from": from, "to": to})

	out := dto.NewFollowRequest(existing)
	return &out, nil
}

// AcceptFollowRequest lets the recipient accept a pending request.
//
// The status change and the follow edge are written in one transaction. The edge insert
// is a set union, so an edge that already exists (a concurrent accept, or a follow created
// another way) is left as is and the request is still marked accepted.
// An expired request is removed and reported as FOLLOW_REQUEST_EXPIRED.
func (s *Service) AcceptFollowRequest(ctx context.Context, recipientID, requestID string) (*dto.FollowRequest, error) {
	s.appCtx.Logger.Debug("AcceptFollowRequest called", "recipient", recipientID, "request", requestID)

	now := s.appCtx.Now()
	var (
		req     *db.FollowRequest
		expired bool
	)
	err := s.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		requests := repository.NewFollowRequestRepository(tx)
		graph := repository.NewSocialRepository(tx)

		var err error
		req, err = s.loadPending(ctx, requests, requestID, recipientID, func(r *db.FollowRequest) string { return r.RecipientID })
		if err != nil {
			return err
		}
		if req.Expired(now) {
			expired = true
			return requests.Delete(ctx, req.ID)
		}

		ok, err := requests.Transition(ctx, req.ID, db.StatusAccepted, now)
		if err != nil {
			return err
		}
		if !ok {
			return ErrFollowRequestNotPending
		}

		created, err := graph.AddFollow(ctx, req.RequesterID, req.RecipientID)
		if err != nil {
			return err
		}
		if !created {
			s.appCtx.Logger.Info("follow edge already present on accept", "request", req.ID)
		}
		return nil
	})
	if err != nil {
		return nil, svcErr.Map(err)
	}
	if expired {
		metrics.RequestTransitionsTotal.WithLabelValues("follow", string(db.StatusExpired)).Inc()
		return nil, ErrFollowRequestExpired
	}

	_ = s.appCtx.RedisCache.InvalidateCounts(ctx, req.RequesterID, req.RecipientID)
	metrics.RequestTransitionsTotal.WithLabelValues("follow", string(db.StatusAccepted)).Inc()
	s.publish(ctx, events.FollowAccepted, map[string]string{"requestId": req.ID, "follower": req.RequesterID, "followee": req.RecipientID})

	req.Status = db.StatusAccepted
	req.RespondedAt = &now
	out := dto.NewFollowRequest(req)
	return &out, nil
}

// RejectFollowRequest lets the recipient decline a pending request. Rejection is terminal
// until the requester asks again.
func (s *Service) RejectFollowRequest(ctx context.Context, recipientID, requestID string) (*dto.FollowRequest, error) {
	s.appCtx.Logger.Debug("RejectFollowRequest called", "recipient", recipientID, "request", requestID)

	req, err := s.loadPending(ctx, s.requests, requestID, recipientID, func(r *db.FollowRequest) string { return r.RecipientID })
	if err != nil {
		return nil, err
	}
	now := s.appCtx.Now()
	if req.Expired(now) {
		_ = s.requests.Delete(ctx, req.ID)
		return nil, ErrFollowRequestExpired
	}

	ok, err := s.requests.Transition(ctx, req.ID, db.StatusRejected, now)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	if !ok {
		return nil, ErrFollowRequestNotPending
	}
	metrics.RequestTransitionsTotal.WithLabelValues("follow", string(db.StatusRejected)).Inc()

	req.Status = db.StatusRejected
	req.RespondedAt = &now
	out := dto.NewFollowRequest(req)
	return &out, nil
}

// CancelFollowRequest lets the requester withdraw a pending request.
func (s *Service) CancelFollowRequest(ctx context.Context, requesterID, requestID string) error {
	s.appCtx.Logger.Debug("CancelFollowRequest called", "requester", requesterID, "request", requestID)

	req, err := s.loadPending(ctx, s.requests, requestID, requesterID, func(r *db.FollowRequest) string { return r.RequesterID })
	if err != nil {
		return err
	}
	if err := s.requests.Delete(ctx, req.ID); err != nil {
		return svcErr.Map(err)
	}
	return nil
}

// ListFollowRequests returns the caller's live pending requests, newest first.
func (s *Service) ListFollowRequests(ctx context.Context, userID string, dir Direction) ([]dto.FollowRequest, error) {
	if dir != Incoming && dir != Outgoing {
		return nil, ErrInvalidDirection
	}
	reqs, err := s.requests.ListPending(ctx, userID, dir == Incoming, s.appCtx.Now())
	if err != nil {
		return nil, svcErr.Map(err)
	}

	ids := make([]string, 0, len(reqs)*2)
	for _, r := range reqs {
		ids = append(ids, r.RequesterID, r.RecipientID)
	}
	users, err := s.users.FindManyByID(ctx, ids)
	if err != nil {
		return nil, svcErr.Map(err)
	}

	out := make([]dto.FollowRequest, 0, len(reqs))
	for i := range reqs {
		item := dto.NewFollowRequest(&reqs[i])
		if u, ok := users[reqs[i].RequesterID]; ok {
			sum := dto.NewUserSummary(&u)
			item.Requester = &sum
		}
		if u, ok := users[reqs[i].RecipientID]; ok {
			sum := dto.NewUserSummary(&u)
			item.Recipient = &sum
		}
		out = append(out, item)
	}
	return out, nil
}

// Unfollow removes userID -> targetID.
func (s *Service) Unfollow(ctx context.Context, userID, targetID string) error {
	removed, err := s.social.RemoveFollow(ctx, userID, targetID)
	if err != nil {
		return svcErr.Map(err)
	}
	if !removed {
		return ErrNotFollowing
	}
	_ = s.appCtx.RedisCache.InvalidateCounts(ctx, userID, targetID)
	return nil
}

// RemoveFollower removes followerID -> userID.
func (s *Service) RemoveFollower(ctx context.Context, userID, followerID string) error {
	removed, err := s.social.RemoveFollow(ctx, followerID, userID)
	if err != nil {
		return svcErr.Map(err)
	}
	if !removed {
		return ErrNotFollower
	}
	_ = s.appCtx.RedisCache.InvalidateCounts(ctx, userID, followerID)
	return nil
}

// ListFollowers returns who follows targetID as seen by viewerID.
func (s *Service) ListFollowers(ctx context.Context, viewerID, targetID string, token *string, limit int) ([]FollowEntry, *string, error) {
	if err := s.canViewGraph(ctx, viewerID, targetID); err != nil {
		return nil, nil, err
	}
	edges, next, err := s.social.ListFollowers(ctx, targetID, token, pagination.ClampLimit(limit))
	if err != nil {
		return nil, nil, mapListErr(err)
	}
	entries, err := s.entries(ctx, edges)
	return entries, next, err
}

// ListFollowing returns who targetID follows as seen by viewerID.
func (s *Service) ListFollowing(ctx context.Context, viewerID, targetID string, token *string, limit int) ([]FollowEntry, *string, error) {
	if err := s.canViewGraph(ctx, viewerID, targetID); err != nil {
		return nil, nil, err
	}
	edges, next, err := s.social.ListFollowing(ctx, targetID, token, pagination.ClampLimit(limit))
	if err != nil {
		return nil, nil, mapListErr(err)
	}
	entries, err := s.entries(ctx, edges)
	return entries, next, err
}

// Counts returns follower and following totals.
// Cache-first strategy:
//  1. Attempts to read both counters from Redis.
//  2. On a miss, falls back to the DB and stores the value with a 1h TTL.
func (s *Service) Counts(ctx context.Context, userID string) (*Counts, error) {
	s.appCtx.Logger.Debug("Counts called", "user", userID)

	followers, err := s.cachedCount(ctx, s.appCtx.RedisCache.KeyForFollowerCount(userID), func() (int64, error) {
		return s.social.CountFollowers(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	following, err := s.cachedCount(ctx, s.appCtx.RedisCache.KeyForFollowingCount(userID), func() (int64, error) {
		return s.social.CountFollowing(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	return &Counts{Followers: followers, Following: following}, nil
}

// Block makes userID block targetID.
//
// Behavior:
//   - Idempotent: blocking twice keeps one edge.
//   - Follow edges in both directions and pending follow/message requests between the
//     pair are removed in the same transaction.
func (s *Service) Block(ctx context.Context, userID, targetID string) error {
	s.appCtx.Logger.Debug("Block called", "user", userID, "target", targetID)

	if userID == targetID {
		return ErrBlockSelf
	}
	if _, err := s.users.FindByID(ctx, targetID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return guard.ErrUserNotFound
		}
		return svcErr.Map(err)
	}

	err := s.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		graph := repository.NewSocialRepository(tx)
		if _, err := graph.AddBlock(ctx, userID, targetID); err != nil {
			return err
		}
		if err := graph.SeverPair(ctx, userID, targetID); err != nil {
			return err
		}
		if err := repository.NewFollowRequestRepository(tx).DeletePendingBetween(ctx, userID, targetID); err != nil {
			return err
		}
		return repository.NewMessageRequestRepository(tx).DeletePendingBetween(ctx, userID, targetID)
	})
	if err != nil {
		s.appCtx.Logger.Error("block failed", "err", err)
		return svcErr.Map(err)
	}

	_ = s.appCtx.RedisCache.InvalidateCounts(ctx, userID, targetID)
	s.publish(ctx, events.UserBlocked, map[string]string{"blocker": userID, "blocked": targetID})
	return nil
}

// Unblock removes userID's block on targetID.
func (s *Service) Unblock(ctx context.Context, userID, targetID string) error {
	removed, err := s.social.RemoveBlock(ctx, userID, targetID)
	if err != nil {
		return svcErr.Map(err)
	}
	if !removed {
		return ErrNotBlocked
	}
	return nil
}

// ListBlocked returns the users userID has blocked, newest first.
func (s *Service) ListBlocked(ctx context.Context, userID string) ([]BlockedUser, error) {
	blocks, err := s.social.ListBlocked(ctx, userID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	ids := make([]string, 0, len(blocks))
	for _, b := range blocks {
		ids = append(ids, b.BlockedID)
	}
	users, err := s.users.FindManyByID(ctx, ids)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	out := make([]BlockedUser, 0, len(blocks))
	for _, b := range blocks {
		u, ok := users[b.BlockedID]
		if !ok {
			continue
		}
		out = append(out, BlockedUser{User: dto.NewUserSummary(&u), BlockedAt: b.CreatedAt})
	}
	return out, nil
}

// loadPending fetches a request the caller owns (per owner) that is still pending.
func (s *Service) loadPending(
	ctx context.Context,
	requests *repository.FollowRequestRepository,
	requestID, callerID string,
	owner func(*db.FollowRequest) string,
) (*db.FollowRequest, error) {
	req, err := requests.FindByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFollowRequestNotFound
		}
		return nil, err
	}
	if owner(req) != callerID {
		return nil, ErrFollowRequestNotFound
	}
	if req.Status != db.StatusPending {
		return nil, ErrFollowRequestNotPending
	}
	return req, nil
}

// canViewGraph hides a user's graph from blocked viewers and, for private accounts, from non-followers.
func (s *Service) canViewGraph(ctx context.Context, viewerID, targetID string) error {
	target, err := s.guard.ActiveUser(ctx, targetID)
	if err != nil {
		return err
	}
	if viewerID == targetID {
		return nil
	}
	if err := s.guard.NotBlocked(ctx, viewerID, targetID); err != nil {
		return guard.ErrUserNotFound
	}
	if !target.IsPrivate {
		return nil
	}
	following, err := s.social.IsFollowing(ctx, viewerID, targetID)
	if err != nil {
		return svcErr.Map(err)
	}
	if !following {
		return ErrPrivateAccount
	}
	return nil
}

func (s *Service) entries(ctx context.Context, edges []repository.Edge) ([]FollowEntry, error) {
	ids := make([]string, 0, len(edges))
	for _, e := range edges {
		ids = append(ids, e.UserID)
	}
	users, err := s.users.FindManyByID(ctx, ids)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	out := make([]FollowEntry, 0, len(edges))
	for _, e := range edges {
		u, ok := users[e.UserID]
		if !ok {
			continue
		}
		out = append(out, FollowEntry{User: dto.NewUserSummary(&u), FollowedAt: e.CreatedAt})
	}
	return out, nil
}

func (s *Service) cachedCount(ctx context.Context, key string, load func() (int64, error)) (int64, error) {
	// try cache first
	if n, ok, _ := s.appCtx.RedisCache.GetCount(ctx, key); ok {
		return n, nil
	}

	// fallback: DB
	n, err := load()
	if err != nil {
		return 0, svcErr.Map(err)
	}
	_ = s.appCtx.RedisCache.SetCount(ctx, key, n)
	return n, nil
}

func (s *Service) publish(ctx context.Context, subject string, data any) {
	if err := s.appCtx.Events.Publish(ctx, subject, data); err != nil {
		s.appCtx.Logger.Warn("publish event failed", "subject", subject, "err", err)
	}
}

// mapListErr reports an undecodable cursor as a bad request and everything else as usual.
func mapListErr(err error) error {
	if errors.Is(err, pagination.ErrInvalidToken) {
		return ErrInvalidPaginationToken
	}
	return svcErr.Map(err)
}
