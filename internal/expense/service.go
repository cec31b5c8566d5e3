package expense

import (
	"context"
	"errors"
	"time"

	"github.com/fairsplit/fairsplit/internal/balance"
	"github.com/fairsplit/fairsplit/internal/expense/split"
	"github.com/fairsplit/fairsplit/internal/group"
)

// Common errors
var (
	ErrExpenseNotFound       = errors.New("expense not found")
	ErrNotGroupMember        = errors.New("not a member of this group")
	ErrInvalidAmount         = errors.New("amount must be greater than zero")
	ErrParticipantNotMember  = errors.New("all participants must be group members")
	ErrParticipantsForbidden = errors.New("participants are only accepted for EXACT and PERCENTAGE splits")
)

// Service handles expense business logic
type Service struct {
	repo         *Repository
	groups       *group.Repository
	splitFactory *split.Factory
}

// NewService creates a new expense service with dependencies injected
func NewService(repo *Repository, groups *group.Repository, splitFactory *split.Factory) *Service {
	return &Service{
		repo:         repo,
		groups:       groups,
		splitFactory: splitFactory,
	}
}

// CreateSplit appends an expense to the group ledger. EQUAL expenses carry no
// stored shares (they split among the members current at balance time);
// EXACT and PERCENTAGE splits validate and store per-member shares now.
func (s *Service) CreateSplit(ctx context.Context, userID int64, req *CreateSplitRequest) (*Expense, error) {
	if !req.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	isMember, err := s.groups.IsMember(ctx, req.GroupID, userID)
	if err != nil {
		return nil, err
	}
	if !isMember {
		return nil, ErrNotGroupMember
	}

	paidBy := req.PaidByUserID
	if paidBy == 0 {
		paidBy = userID
	}
	if paidBy != userID {
		isMember, err := s.groups.IsMember(ctx, req.GroupID, paidBy)
		if err != nil {
			return nil, err
		}
		if !isMember {
			return nil, ErrParticipantNotMember
		}
	}

	splitType := req.SplitType
	if splitType == "" {
		splitType = string(split.TypeEqual)
	}
	strategy, err := s.splitFactory.CreateFromString(splitType)
	if err != nil {
		return nil, err
	}

	var shares []Share
	if strategy.Type() == split.TypeEqual {
		if len(req.Participants) > 0 {
			return nil, ErrParticipantsForbidden
		}
	} else {
		computed, err := s.computeShares(ctx, req, paidBy, strategy)
		if err != nil {
			return nil, err
		}
		shares = computed
	}

	spentAt := time.Now().UTC()
	if req.SpentAt != nil {
		spentAt = req.SpentAt.UTC()
	}

	return s.repo.Create(ctx, req.GroupID, paidBy, req.Amount.Round(2), req.Description, string(strategy.Type()), spentAt, shares)
}

// computeShares validates participants against group membership and runs the
// split strategy.
func (s *Service) computeShares(ctx context.Context, req *CreateSplitRequest, paidBy int64, strategy split.Strategy) ([]Share, error) {
	memberIDs, err := s.groups.GetMemberIDs(ctx, req.GroupID)
	if err != nil {
		return nil, err
	}
	members := make(map[int64]bool, len(memberIDs))
	for _, id := range memberIDs {
		members[id] = true
	}
	for _, p := range req.Participants {
		if !members[p.UserID] {
			return nil, ErrParticipantNotMember
		}
	}

	outputs, err := strategy.Calculate(req.Amount, paidBy, req.Participants)
	if err != nil {
		return nil, err
	}

	shares := make([]Share, len(outputs))
	for i, out := range outputs {
		shares[i] = Share{UserID: out.UserID, Amount: out.Amount}
	}
	return shares, nil
}

// GetByID retrieves an expense, restricted to members of its group
func (s *Service) GetByID(ctx context.Context, id, userID int64) (*Expense, error) {
	expense, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if expense == nil {
		return nil, ErrExpenseNotFound
	}

	isMember, err := s.groups.IsMember(ctx, expense.GroupID, userID)
	if err != nil {
		return nil, err
	}
	if !isMember {
		return nil, ErrNotGroupMember
	}

	return expense, nil
}

// ListByGroup retrieves a group's expenses inside a window keyword
func (s *Service) ListByGroup(ctx context.Context, groupID, userID int64, windowKeyword string) ([]*Expense, error) {
	isMember, err := s.groups.IsMember(ctx, groupID, userID)
	if err != nil {
		return nil, err
	}
	if !isMember {
		return nil, ErrNotGroupMember
	}

	window, err := balance.ParseWindow(windowKeyword, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	return s.repo.ListByGroup(ctx, groupID, window)
}
