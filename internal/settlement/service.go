package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fairsplit/fairsplit/internal/balance"
	"github.com/fairsplit/fairsplit/internal/expense"
	"github.com/fairsplit/fairsplit/internal/group"
	"github.com/fairsplit/fairsplit/pkg/logger"
)

// Common errors
var (
	ErrSettlementNotFound = errors.New("settlement not found")
	ErrNotGroupMember     = errors.New("not a member of this group")
	ErrNotReceiver        = errors.New("only the receiver can confirm a settlement")
	ErrNotPayer           = errors.New("only the payer can pay a settlement")
	ErrAmountMismatch     = errors.New("amount does not match the settlement")
)

// dueWindow is how long payers get before a settlement is due.
const dueWindow = 7 * 24 * time.Hour

// Store persists settlements.
type Store interface {
	PersistPlan(ctx context.Context, groupID int64, transfers []Transfer, dueDate time.Time) ([]*Settlement, error)
	GetByID(ctx context.Context, id int64) (*Settlement, error)
	Confirm(ctx context.Context, id int64, method string) (*Settlement, bool, error)
	ListByGroup(ctx context.Context, groupID int64) ([]*Settlement, error)
	ListByUser(ctx context.Context, userID int64) ([]*Settlement, error)
}

// ExpenseSource feeds the balance calculator.
type ExpenseSource interface {
	ListUnsettledByGroup(ctx context.Context, groupID int64, window balance.Window) ([]*expense.Expense, error)
}

// MemberSource answers group membership questions.
type MemberSource interface {
	IsMember(ctx context.Context, groupID, userID int64) (bool, error)
	GetMemberIDs(ctx context.Context, groupID int64) ([]int64, error)
	ListMembers(ctx context.Context, groupID int64) ([]*group.GroupMember, error)
}

// Notifier delivers settlement lifecycle notifications. Delivery failures are
// logged, never propagated: a settlement round must not fail because a
// notification could not be written.
type Notifier interface {
	SettlementDue(ctx context.Context, recipientID, settlementID int64, message string) error
	SettlementConfirmed(ctx context.Context, recipientID, settlementID int64, message string) error
}

// Service handles settlement business logic
type Service struct {
	store    Store
	expenses ExpenseSource
	members  MemberSource
	notifier Notifier
}

// NewService creates a new settlement service with dependencies injected
func NewService(store Store, expenses ExpenseSource, members MemberSource, notifier Notifier) *Service {
	return &Service{
		store:    store,
		expenses: expenses,
		members:  members,
		notifier: notifier,
	}
}

// ComputeBalances derives the group's per-member balances from its unsettled
// expenses inside the window.
func (s *Service) ComputeBalances(ctx context.Context, groupID int64, window balance.Window) (map[int64]*balance.Balance, error) {
	memberIDs, err := s.members.GetMemberIDs(ctx, groupID)
	if err != nil {
		return nil, err
	}

	expenses, err := s.expenses.ListUnsettledByGroup(ctx, groupID, window)
	if err != nil {
		return nil, err
	}

	entries := make([]balance.Entry, len(expenses))
	for i, e := range expenses {
		entries[i] = balance.Entry{Amount: e.Amount, PaidBy: e.PaidByUserID}
		if len(e.Shares) > 0 {
			entries[i].Shares = shareMap(e.Shares)
		}
	}

	return balance.Compute(memberIDs, entries)
}

func shareMap(shares []expense.Share) map[int64]decimal.Decimal {
	m := make(map[int64]decimal.Decimal, len(shares))
	for _, s := range shares {
		m[s.UserID] = s.Amount
	}
	return m
}

// GetGroupBalances reports every member's position inside a window keyword,
// restricted to group members.
func (s *Service) GetGroupBalances(ctx context.Context, groupID, userID int64, windowKeyword string) (*GroupBalancesResponse, error) {
	if err := s.requireMember(ctx, groupID, userID); err != nil {
		return nil, err
	}

	window, err := balance.ParseWindow(windowKeyword, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	balances, err := s.ComputeBalances(ctx, groupID, window)
	if err != nil {
		return nil, err
	}

	members, err := s.members.ListMembers(ctx, groupID)
	if err != nil {
		return nil, err
	}

	resp := &GroupBalancesResponse{GroupID: groupID, Window: windowKeyword, Members: make([]MemberBalance, 0, len(members))}
	if resp.Window == "" {
		resp.Window = "all"
	}
	for _, m := range members {
		b, ok := balances[m.UserID]
		if !ok {
			b = &balance.Balance{UserID: m.UserID}
		}
		resp.Members = append(resp.Members, MemberBalance{
			UserID:       m.UserID,
			Name:         m.Name,
			OwesAmount:   b.Owes,
			IsOwedAmount: b.IsOwed,
			NetBalance:   b.Net,
		})
	}
	return resp, nil
}

// Finalize plans and persists a settlement round for the group, on behalf of
// a member.
func (s *Service) Finalize(ctx context.Context, groupID, userID int64) (*FinalizeResponse, error) {
	if err := s.requireMember(ctx, groupID, userID); err != nil {
		return nil, err
	}
	return s.finalize(ctx, groupID)
}

// FinalizeAuto runs a finalization round without a requesting user. The
// scheduler calls this when a group's settlement period elapses.
func (s *Service) FinalizeAuto(ctx context.Context, groupID int64) error {
	_, err := s.finalize(ctx, groupID)
	return err
}

func (s *Service) finalize(ctx context.Context, groupID int64) (*FinalizeResponse, error) {
	balances, err := s.ComputeBalances(ctx, groupID, balance.Window{})
	if err != nil {
		return nil, err
	}

	transfers, err := Plan(balances)
	if err != nil {
		return nil, err
	}

	dueDate := time.Now().UTC().Add(dueWindow)
	settlements, err := s.store.PersistPlan(ctx, groupID, transfers, dueDate)
	if err != nil {
		return nil, err
	}

	for _, st := range settlements {
		if st.Status != StatusPending {
			continue
		}
		msg := fmt.Sprintf("You owe %s $%s", st.ReceiverName, st.Amount.StringFixed(2))
		if err := s.notifier.SettlementDue(ctx, st.PayerUserID, st.ID, msg); err != nil {
			logger.Get().Warnw("failed to notify payer", "settlement_id", st.ID, "error", err)
		}
	}

	return &FinalizeResponse{GroupID: groupID, Settlements: settlements}, nil
}

// Confirm marks a settlement as paid and verified. Only the receiver may
// confirm, and the reported amount must match the settlement's. Confirming
// an already Confirmed settlement succeeds with the existing record.
func (s *Service) Confirm(ctx context.Context, id, userID int64, req *ConfirmRequest) (*Settlement, error) {
	return s.complete(ctx, id, userID, req.Amount, req.PaymentMethod, false)
}

// Pay is the payer-side completion of a settlement. It follows the same
// transition as Confirm but authorizes the payer instead of the receiver.
func (s *Service) Pay(ctx context.Context, id, userID int64, req *PayRequest) (*Settlement, error) {
	return s.complete(ctx, id, userID, req.Amount, req.PaymentMethod, true)
}

func (s *Service) complete(ctx context.Context, id, userID int64, amount decimal.Decimal, method string, byPayer bool) (*Settlement, error) {
	existing, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, ErrSettlementNotFound
	}

	if byPayer {
		if existing.PayerUserID != userID {
			return nil, ErrNotPayer
		}
	} else if existing.ReceiverUserID != userID {
		return nil, ErrNotReceiver
	}

	if amount.Sub(existing.Amount).Abs().GreaterThanOrEqual(minUnit) {
		return nil, ErrAmountMismatch
	}

	confirmed, transitioned, err := s.store.Confirm(ctx, id, method)
	if err != nil {
		return nil, err
	}
	if !transitioned {
		// Lost the race or repeated call; Confirmed is terminal, so the
		// existing record is the answer.
		current, err := s.store.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if current == nil {
			return nil, ErrSettlementNotFound
		}
		return current, nil
	}

	counterparty := confirmed.PayerUserID
	msg := fmt.Sprintf("%s confirmed your payment of $%s", confirmed.ReceiverName, confirmed.Amount.StringFixed(2))
	if byPayer {
		counterparty = confirmed.ReceiverUserID
		msg = fmt.Sprintf("%s paid you $%s", confirmed.PayerName, confirmed.Amount.StringFixed(2))
	}
	if err := s.notifier.SettlementConfirmed(ctx, counterparty, confirmed.ID, msg); err != nil {
		logger.Get().Warnw("failed to notify counterparty", "settlement_id", confirmed.ID, "error", err)
	}

	return confirmed, nil
}

// GetByID retrieves a settlement, restricted to members of its group
func (s *Service) GetByID(ctx context.Context, id, userID int64) (*Settlement, error) {
	settlement, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if settlement == nil {
		return nil, ErrSettlementNotFound
	}
	if err := s.requireMember(ctx, settlement.GroupID, userID); err != nil {
		return nil, err
	}
	return settlement, nil
}

// ListByGroup retrieves a group's settlements, restricted to members
func (s *Service) ListByGroup(ctx context.Context, groupID, userID int64) ([]*Settlement, error) {
	if err := s.requireMember(ctx, groupID, userID); err != nil {
		return nil, err
	}
	return s.store.ListByGroup(ctx, groupID)
}

// History retrieves every settlement the user pays or receives
func (s *Service) History(ctx context.Context, userID int64) ([]*Settlement, error) {
	return s.store.ListByUser(ctx, userID)
}

// Summary aggregates a group's settlement state, restricted to members
func (s *Service) Summary(ctx context.Context, groupID, userID int64) (*SummaryResponse, error) {
	settlements, err := s.ListByGroup(ctx, groupID, userID)
	if err != nil {
		return nil, err
	}

	resp := &SummaryResponse{GroupID: groupID}
	for _, st := range settlements {
		switch st.Status {
		case StatusPending:
			resp.PendingCount++
			resp.PendingTotal = resp.PendingTotal.Add(st.Amount)
		case StatusConfirmed:
			resp.ConfirmedCount++
			resp.ConfirmedTotal = resp.ConfirmedTotal.Add(st.Amount)
		}
	}
	resp.FullySettled = resp.PendingCount == 0
	return resp, nil
}

func (s *Service) requireMember(ctx context.Context, groupID, userID int64) error {
	isMember, err := s.members.IsMember(ctx, groupID, userID)
	if err != nil {
		return err
	}
	if !isMember {
		return ErrNotGroupMember
	}
	return nil
}
