package group

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Common errors
var (
	ErrGroupNotFound = errors.New("group not found")
	ErrNotMember     = errors.New("not a member of this group")
	ErrAlreadyMember = errors.New("already a member of this group")
	ErrAdminRequired = errors.New("must be a group admin")
	ErrInvalidInvite = errors.New("invalid invite code")
)

// Service handles group business logic
type Service struct {
	repo *Repository
}

// NewService creates a new group service
func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// Create creates a group; the creator becomes the ADMIN member
func (s *Service) Create(ctx context.Context, userID int64, req *CreateGroupRequest) (*Group, error) {
	inviteCode := uuid.NewString()
	return s.repo.Create(ctx, req.Name, req.Description, inviteCode, userID)
}

// GetWithMembers retrieves a group and its member list, restricted to members
func (s *Service) GetWithMembers(ctx context.Context, groupID, userID int64) (*Group, []*GroupMember, error) {
	group, err := s.repo.GetByID(ctx, groupID)
	if err != nil {
		return nil, nil, err
	}
	if group == nil {
		return nil, nil, ErrGroupNotFound
	}

	isMember, err := s.repo.IsMember(ctx, groupID, userID)
	if err != nil {
		return nil, nil, err
	}
	if !isMember {
		return nil, nil, ErrNotMember
	}

	members, err := s.repo.ListMembers(ctx, groupID)
	if err != nil {
		return nil, nil, err
	}

	return group, members, nil
}

// ListForUser retrieves all groups the user belongs to
func (s *Service) ListForUser(ctx context.Context, userID int64) ([]*Group, error) {
	return s.repo.ListByUserID(ctx, userID)
}

// Join adds the user to the group matching the invite code
func (s *Service) Join(ctx context.Context, userID int64, inviteCode string) (*Group, error) {
	group, err := s.repo.GetByInviteCode(ctx, inviteCode)
	if err != nil {
		return nil, err
	}
	if group == nil {
		return nil, ErrInvalidInvite
	}

	isMember, err := s.repo.IsMember(ctx, group.ID, userID)
	if err != nil {
		return nil, err
	}
	if isMember {
		return nil, ErrAlreadyMember
	}

	if err := s.repo.AddMember(ctx, group.ID, userID, MemberRoleMember); err != nil {
		return nil, err
	}

	return group, nil
}

// InviteCode returns the group's invite code, restricted to members
func (s *Service) InviteCode(ctx context.Context, groupID, userID int64) (string, error) {
	group, err := s.repo.GetByID(ctx, groupID)
	if err != nil {
		return "", err
	}
	if group == nil {
		return "", ErrGroupNotFound
	}

	isMember, err := s.repo.IsMember(ctx, groupID, userID)
	if err != nil {
		return "", err
	}
	if !isMember {
		return "", ErrNotMember
	}

	return group.InviteCode, nil
}

// SetPeriod stores the group's settlement cadence. Admin only.
func (s *Service) SetPeriod(ctx context.Context, groupID, userID int64, req *SetPeriodRequest) (*SettlementPeriod, error) {
	role, err := s.repo.GetMemberRole(ctx, groupID, userID)
	if err != nil {
		return nil, err
	}
	if role == "" {
		return nil, ErrNotMember
	}
	if role != MemberRoleAdmin {
		return nil, ErrAdminRequired
	}

	period, err := parsePeriodRequest(req)
	if err != nil {
		return nil, err
	}

	next := period.NextAfter(time.Now().UTC())
	return s.repo.SetPeriod(ctx, groupID, period, next)
}

// GetPeriod retrieves the group's settlement cadence, restricted to members
func (s *Service) GetPeriod(ctx context.Context, groupID, userID int64) (*SettlementPeriod, error) {
	isMember, err := s.repo.IsMember(ctx, groupID, userID)
	if err != nil {
		return nil, err
	}
	if !isMember {
		return nil, ErrNotMember
	}

	sp, err := s.repo.GetPeriod(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if sp == nil {
		return nil, ErrGroupNotFound
	}
	return sp, nil
}

// parsePeriodRequest accepts either the shorthand form ("1d") or an explicit
// value/unit pair.
func parsePeriodRequest(req *SetPeriodRequest) (Period, error) {
	if req.Period != "" {
		return ParsePeriod(req.Period)
	}
	if req.Value > 0 && len(req.Unit) == 1 {
		return ParsePeriod(strconv.Itoa(req.Value) + req.Unit)
	}
	return Period{}, ErrInvalidPeriod
}
