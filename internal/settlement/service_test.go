package settlement

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairsplit/fairsplit/internal/balance"
	"github.com/fairsplit/fairsplit/internal/expense"
	"github.com/fairsplit/fairsplit/internal/group"
)

// fakeStore reproduces the persistence semantics the service relies on:
// pairs confirmed in the open round are not re-billed, a pending pair is
// refreshed instead of duplicated, and a confirm that empties the pending
// set closes the round, settling the expenses that existed when the round
// was planned.
type fakeStore struct {
	nextID      int64
	settlements map[int64]*Settlement
	expenses    *fakeExpenses
	lastPlanned map[int64]time.Time
	lastSettled map[int64]time.Time
}

func newFakeStore(expenses *fakeExpenses) *fakeStore {
	return &fakeStore{
		settlements: make(map[int64]*Settlement),
		expenses:    expenses,
		lastPlanned: make(map[int64]time.Time),
		lastSettled: make(map[int64]time.Time),
	}
}

func (f *fakeStore) PersistPlan(_ context.Context, groupID int64, transfers []Transfer, dueDate time.Time) ([]*Settlement, error) {
	confirmed := make(map[Pair]bool)
	pendingByPair := make(map[Pair]*Settlement)
	for _, s := range f.settlements {
		if s.GroupID != groupID {
			continue
		}
		pair := Pair{PayerUserID: s.PayerUserID, ReceiverUserID: s.ReceiverUserID}
		if s.Status == StatusConfirmed {
			if s.CreatedAt.After(f.lastSettled[groupID]) {
				confirmed[pair] = true
			}
		} else {
			pendingByPair[pair] = s
		}
	}
	f.lastPlanned[groupID] = time.Now().UTC()

	for _, t := range filterConfirmed(transfers, confirmed) {
		pair := Pair{PayerUserID: t.PayerUserID, ReceiverUserID: t.ReceiverUserID}
		if s, ok := pendingByPair[pair]; ok {
			s.Amount = t.Amount
			due := dueDate
			s.DueDate = &due
			continue
		}
		f.nextID++
		due := dueDate
		f.settlements[f.nextID] = &Settlement{
			ID:             f.nextID,
			GroupID:        groupID,
			PayerUserID:    t.PayerUserID,
			ReceiverUserID: t.ReceiverUserID,
			Amount:         t.Amount,
			Status:         StatusPending,
			DueDate:        &due,
			CreatedAt:      time.Now().UTC(),
		}
	}

	return f.listGroup(groupID), nil
}

func (f *fakeStore) listGroup(groupID int64) []*Settlement {
	var out []*Settlement
	for _, s := range f.settlements {
		if s.GroupID == groupID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *fakeStore) GetByID(_ context.Context, id int64) (*Settlement, error) {
	s, ok := f.settlements[id]
	if !ok {
		return nil, nil
	}
	copied := *s
	return &copied, nil
}

func (f *fakeStore) Confirm(_ context.Context, id int64, method string) (*Settlement, bool, error) {
	s, ok := f.settlements[id]
	if !ok || s.Status != StatusPending {
		return nil, false, nil
	}
	now := time.Now().UTC()
	s.Status = StatusConfirmed
	s.PaymentDate = &now
	s.PaymentMethod = &method

	pendingLeft := 0
	for _, other := range f.settlements {
		if other.GroupID == s.GroupID && other.Status == StatusPending {
			pendingLeft++
		}
	}
	if pendingLeft == 0 {
		planned := f.lastPlanned[s.GroupID]
		for _, e := range f.expenses.expenses {
			if e.GroupID == s.GroupID && !e.IsSettled && !e.CreatedAt.After(planned) {
				e.IsSettled = true
			}
		}
		f.lastSettled[s.GroupID] = now
	}

	copied := *s
	return &copied, true, nil
}

func (f *fakeStore) ListByGroup(_ context.Context, groupID int64) ([]*Settlement, error) {
	return f.listGroup(groupID), nil
}

func (f *fakeStore) ListByUser(_ context.Context, userID int64) ([]*Settlement, error) {
	var out []*Settlement
	for _, s := range f.settlements {
		if s.PayerUserID == userID || s.ReceiverUserID == userID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

type fakeExpenses struct {
	expenses []*expense.Expense
}

func (f *fakeExpenses) ListUnsettledByGroup(_ context.Context, groupID int64, window balance.Window) ([]*expense.Expense, error) {
	var out []*expense.Expense
	for _, e := range f.expenses {
		if e.GroupID == groupID && !e.IsSettled && window.Contains(e.SpentAt) {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeMembers struct {
	groupID   int64
	memberIDs []int64
	names     map[int64]string
}

func (f *fakeMembers) IsMember(_ context.Context, groupID, userID int64) (bool, error) {
	if groupID != f.groupID {
		return false, nil
	}
	for _, id := range f.memberIDs {
		if id == userID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeMembers) GetMemberIDs(_ context.Context, groupID int64) ([]int64, error) {
	if groupID != f.groupID {
		return nil, nil
	}
	return f.memberIDs, nil
}

func (f *fakeMembers) ListMembers(_ context.Context, groupID int64) ([]*group.GroupMember, error) {
	if groupID != f.groupID {
		return nil, nil
	}
	var out []*group.GroupMember
	for _, id := range f.memberIDs {
		out = append(out, &group.GroupMember{GroupID: groupID, UserID: id, Name: f.names[id]})
	}
	return out, nil
}

type notified struct {
	recipientID  int64
	settlementID int64
	message      string
}

type fakeNotifier struct {
	due       []notified
	confirmed []notified
}

func (f *fakeNotifier) SettlementDue(_ context.Context, recipientID, settlementID int64, message string) error {
	f.due = append(f.due, notified{recipientID, settlementID, message})
	return nil
}

func (f *fakeNotifier) SettlementConfirmed(_ context.Context, recipientID, settlementID int64, message string) error {
	f.confirmed = append(f.confirmed, notified{recipientID, settlementID, message})
	return nil
}

const testGroupID = int64(7)

// newTestService wires a group of Alice (1), Bob (2) and Carol (3) where
// Alice paid $90 split equally.
func newTestService() (*Service, *fakeStore, *fakeExpenses, *fakeNotifier) {
	expenses := &fakeExpenses{expenses: []*expense.Expense{{
		ID:           1,
		GroupID:      testGroupID,
		PaidByUserID: 1,
		Amount:       dec("90.00"),
		SplitType:    "EQUAL",
		SpentAt:      time.Now().UTC(),
		CreatedAt:    time.Now().UTC(),
	}}}
	store := newFakeStore(expenses)
	members := &fakeMembers{
		groupID:   testGroupID,
		memberIDs: []int64{1, 2, 3},
		names:     map[int64]string{1: "Alice", 2: "Bob", 3: "Carol"},
	}
	notifier := &fakeNotifier{}
	return NewService(store, expenses, members, notifier), store, expenses, notifier
}

func TestFinalizePlansPendingSettlements(t *testing.T) {
	svc, _, _, notifier := newTestService()
	ctx := context.Background()

	result, err := svc.Finalize(ctx, testGroupID, 1)
	require.NoError(t, err)
	require.Len(t, result.Settlements, 2)

	for _, s := range result.Settlements {
		assert.Equal(t, StatusPending, s.Status)
		assert.Equal(t, int64(1), s.ReceiverUserID)
		assert.True(t, s.Amount.Equal(dec("30")), "amount = %s", s.Amount)
		require.NotNil(t, s.DueDate)
		assert.True(t, s.DueDate.After(time.Now()))
	}
	assert.ElementsMatch(t,
		[]int64{2, 3},
		[]int64{result.Settlements[0].PayerUserID, result.Settlements[1].PayerUserID},
	)

	// Each payer was told they owe.
	require.Len(t, notifier.due, 2)
}

func TestFinalizeIsIdempotent(t *testing.T) {
	svc, store, _, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Finalize(ctx, testGroupID, 1)
	require.NoError(t, err)
	again, err := svc.Finalize(ctx, testGroupID, 2)
	require.NoError(t, err)

	assert.Len(t, again.Settlements, 2, "re-finalize must not duplicate")
	assert.Len(t, store.settlements, 2)
}

func TestFinalizeRequiresMembership(t *testing.T) {
	svc, _, _, _ := newTestService()

	_, err := svc.Finalize(context.Background(), testGroupID, 99)
	assert.ErrorIs(t, err, ErrNotGroupMember)
}

func TestConfirmedPairNotRegenerated(t *testing.T) {
	svc, store, _, _ := newTestService()
	ctx := context.Background()

	result, err := svc.Finalize(ctx, testGroupID, 1)
	require.NoError(t, err)

	// Bob pays his settlement; ledger is unchanged, so replanning would
	// produce the same transfer again.
	var bobs *Settlement
	for _, s := range result.Settlements {
		if s.PayerUserID == 2 {
			bobs = s
		}
	}
	require.NotNil(t, bobs)
	_, err = svc.Pay(ctx, bobs.ID, 2, &PayRequest{PaymentMethod: "cash", Amount: bobs.Amount})
	require.NoError(t, err)

	again, err := svc.Finalize(ctx, testGroupID, 1)
	require.NoError(t, err)

	var pending, confirmed int
	for _, s := range again.Settlements {
		switch s.Status {
		case StatusPending:
			pending++
			assert.Equal(t, int64(3), s.PayerUserID, "only Carol's settlement stays pending")
		case StatusConfirmed:
			confirmed++
		}
	}
	assert.Equal(t, 1, pending)
	assert.Equal(t, 1, confirmed)
	assert.Len(t, store.settlements, 2, "Bob must not be re-billed")
}

func TestSettledPairBillableInNextRound(t *testing.T) {
	svc, store, expenses, _ := newTestService()
	ctx := context.Background()

	first, err := svc.Finalize(ctx, testGroupID, 1)
	require.NoError(t, err)
	for _, s := range first.Settlements {
		_, err := svc.Confirm(ctx, s.ID, 1, &ConfirmRequest{Amount: s.Amount})
		require.NoError(t, err)
	}
	assert.True(t, expenses.expenses[0].IsSettled, "full confirmation closes the round")

	// Alice fronts a fresh expense between the same members.
	expenses.expenses = append(expenses.expenses, &expense.Expense{
		ID:           2,
		GroupID:      testGroupID,
		PaidByUserID: 1,
		Amount:       dec("60.00"),
		SplitType:    "EQUAL",
		SpentAt:      time.Now().UTC(),
		CreatedAt:    time.Now().UTC(),
	})

	again, err := svc.Finalize(ctx, testGroupID, 1)
	require.NoError(t, err)

	var pending []*Settlement
	for _, s := range again.Settlements {
		if s.Status == StatusPending {
			pending = append(pending, s)
		}
	}
	require.Len(t, pending, 2, "pairs settled in a closed round must be billable again")
	for _, s := range pending {
		assert.Equal(t, int64(1), s.ReceiverUserID)
		assert.True(t, s.Amount.Equal(dec("20")), "amount = %s", s.Amount)
	}
	assert.Len(t, store.settlements, 4)
}

func TestBackdatedExpenseSurvivesRoundClose(t *testing.T) {
	svc, _, expenses, _ := newTestService()
	ctx := context.Background()

	first, err := svc.Finalize(ctx, testGroupID, 1)
	require.NoError(t, err)

	// Bob logs an expense after the round was planned but dates it two days
	// back. It never entered the plan, so closing the round must not touch it.
	expenses.expenses = append(expenses.expenses, &expense.Expense{
		ID:           2,
		GroupID:      testGroupID,
		PaidByUserID: 2,
		Amount:       dec("30.00"),
		SplitType:    "EQUAL",
		SpentAt:      time.Now().UTC().Add(-48 * time.Hour),
		CreatedAt:    time.Now().UTC(),
	})

	for _, s := range first.Settlements {
		_, err := svc.Confirm(ctx, s.ID, 1, &ConfirmRequest{Amount: s.Amount})
		require.NoError(t, err)
	}
	assert.True(t, expenses.expenses[0].IsSettled)
	assert.False(t, expenses.expenses[1].IsSettled, "an expense logged after planning stays in the ledger")

	again, err := svc.Finalize(ctx, testGroupID, 1)
	require.NoError(t, err)

	var pending []*Settlement
	for _, s := range again.Settlements {
		if s.Status == StatusPending {
			pending = append(pending, s)
		}
	}
	require.Len(t, pending, 2)
	for _, s := range pending {
		assert.Equal(t, int64(2), s.ReceiverUserID, "Bob collects on the backdated expense")
		assert.True(t, s.Amount.Equal(dec("10")), "amount = %s", s.Amount)
	}
}

func TestConfirm(t *testing.T) {
	svc, _, _, notifier := newTestService()
	ctx := context.Background()

	result, err := svc.Finalize(ctx, testGroupID, 1)
	require.NoError(t, err)
	target := result.Settlements[0]

	t.Run("only the receiver may confirm", func(t *testing.T) {
		_, err := svc.Confirm(ctx, target.ID, target.PayerUserID, &ConfirmRequest{Amount: target.Amount})
		assert.ErrorIs(t, err, ErrNotReceiver)
	})

	t.Run("amount must match", func(t *testing.T) {
		_, err := svc.Confirm(ctx, target.ID, 1, &ConfirmRequest{Amount: dec("29.99")})
		assert.ErrorIs(t, err, ErrAmountMismatch)
	})

	t.Run("receiver confirms", func(t *testing.T) {
		confirmed, err := svc.Confirm(ctx, target.ID, 1, &ConfirmRequest{PaymentMethod: "bank transfer", Amount: target.Amount})
		require.NoError(t, err)
		assert.Equal(t, StatusConfirmed, confirmed.Status)
		require.NotNil(t, confirmed.PaymentDate)
		require.NotNil(t, confirmed.PaymentMethod)
		assert.Equal(t, "bank transfer", *confirmed.PaymentMethod)

		// Payer is told their payment was verified.
		require.Len(t, notifier.confirmed, 1)
		assert.Equal(t, target.PayerUserID, notifier.confirmed[0].recipientID)
	})

	t.Run("double confirm is idempotent", func(t *testing.T) {
		again, err := svc.Confirm(ctx, target.ID, 1, &ConfirmRequest{PaymentMethod: "cash", Amount: target.Amount})
		require.NoError(t, err)
		assert.Equal(t, StatusConfirmed, again.Status)
		require.NotNil(t, again.PaymentMethod)
		assert.Equal(t, "bank transfer", *again.PaymentMethod, "terminal state must not change")
		assert.Len(t, notifier.confirmed, 1, "no duplicate notification")
	})

	t.Run("unknown settlement", func(t *testing.T) {
		_, err := svc.Confirm(ctx, 9999, 1, &ConfirmRequest{Amount: dec("1")})
		assert.ErrorIs(t, err, ErrSettlementNotFound)
	})
}

func TestPayRequiresPayer(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()

	result, err := svc.Finalize(ctx, testGroupID, 1)
	require.NoError(t, err)
	target := result.Settlements[0]

	_, err = svc.Pay(ctx, target.ID, 1, &PayRequest{Amount: target.Amount})
	assert.ErrorIs(t, err, ErrNotPayer)
}

func TestGetGroupBalances(t *testing.T) {
	svc, _, _, _ := newTestService()

	resp, err := svc.GetGroupBalances(context.Background(), testGroupID, 2, "")
	require.NoError(t, err)
	assert.Equal(t, testGroupID, resp.GroupID)
	assert.Equal(t, "all", resp.Window)
	require.Len(t, resp.Members, 3)

	byUser := make(map[int64]MemberBalance)
	for _, m := range resp.Members {
		byUser[m.UserID] = m
	}
	assert.Equal(t, "Alice", byUser[1].Name)
	assert.True(t, byUser[1].NetBalance.Equal(dec("60")))
	assert.True(t, byUser[2].NetBalance.Equal(dec("-30")))
	assert.True(t, byUser[3].NetBalance.Equal(dec("-30")))
}

func TestGetGroupBalancesRejectsUnknownWindow(t *testing.T) {
	svc, _, _, _ := newTestService()

	_, err := svc.GetGroupBalances(context.Background(), testGroupID, 1, "fortnight")
	assert.ErrorIs(t, err, balance.ErrUnknownWindow)
}

func TestSummary(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()

	result, err := svc.Finalize(ctx, testGroupID, 1)
	require.NoError(t, err)

	summary, err := svc.Summary(ctx, testGroupID, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.PendingCount)
	assert.Equal(t, 0, summary.ConfirmedCount)
	assert.True(t, summary.PendingTotal.Equal(dec("60")))
	assert.False(t, summary.FullySettled)

	for _, s := range result.Settlements {
		_, err := svc.Confirm(ctx, s.ID, 1, &ConfirmRequest{Amount: s.Amount})
		require.NoError(t, err)
	}

	summary, err = svc.Summary(ctx, testGroupID, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.PendingCount)
	assert.Equal(t, 2, summary.ConfirmedCount)
	assert.True(t, summary.ConfirmedTotal.Equal(dec("60")))
	assert.True(t, summary.FullySettled)
}
