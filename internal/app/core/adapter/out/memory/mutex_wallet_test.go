package memory

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/JoeShih716/go-mem-wallet/internal/app/core/domain"
	"github.com/JoeShih716/go-mem-wallet/internal/app/core/usecase"
)

// fakeStore 記憶體 Store，可設定讓 Save 失敗
type fakeStore struct {
	mu       sync.Mutex
	snapshot *usecase.Snapshot
	failSave bool
	saves    int
}

func (s *fakeStore) Load(ctx context.Context) (*usecase.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := usecase.NewSnapshot()
	if s.snapshot == nil {
		return out, nil
	}
	for id, a := range s.snapshot.Accounts {
		out.Accounts[id] = a.Clone()
	}
	for _, w := range s.snapshot.Withdrawals {
		out.Withdrawals = append(out.Withdrawals, w.Clone())
	}
	return out, nil
}

func (s *fakeStore) Save(ctx context.Context, snapshot *usecase.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSave {
		return errors.New("disk full")
	}
	s.saves++
	s.snapshot = snapshot
	return nil
}

func (s *fakeStore) setFail(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failSave = fail
}

// plainHasher 測試用，避免 bcrypt 拖慢測試
type plainHasher struct{}

func (plainHasher) Hash(plain string) (string, error) { return "h:" + plain, nil }
func (plainHasher) Verify(hash, plain string) bool    { return hash == "h:"+plain }

type fakeJournal struct {
	mu      sync.Mutex
	entries []domain.JournalEntry
}

func (j *fakeJournal) Write(v any) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, *v.(*domain.JournalEntry))
	return nil
}

func newTestWallet(t *testing.T, policy domain.Policy, opts ...Option) (*MutexWallet, *fakeStore) {
	t.Helper()
	store := &fakeStore{}
	w, err := NewMutexWallet(context.Background(), store, plainHasher{}, policy, opts...)
	if err != nil {
		t.Fatalf("NewMutexWallet failed: %v", err)
	}
	return w, store
}

// fund 建立帳戶並存入 balance
func fund(t *testing.T, w *MutexWallet, id string, balance int64) {
	t.Helper()
	ctx := context.Background()
	if _, err := w.CreateAccount(ctx, id, id, "pw"); err != nil {
		t.Fatalf("CreateAccount(%s) failed: %v", id, err)
	}
	if balance > 0 {
		if _, err := w.Deposit(ctx, id, balance, ""); err != nil {
			t.Fatalf("Deposit(%s) failed: %v", id, err)
		}
	}
}

func balanceOf(t *testing.T, w *MutexWallet, id string) int64 {
	t.Helper()
	a, err := w.GetAccount(context.Background(), id)
	if err != nil {
		t.Fatalf("GetAccount(%s) failed: %v", id, err)
	}
	return a.Balance
}

func TestMutexWallet_CreateAccount(t *testing.T) {
	w, _ := newTestWallet(t, domain.DefaultPolicy())
	ctx := context.Background()

	a, err := w.CreateAccount(ctx, "a@x.com", "Alice", "secret")
	if err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}
	if a.Balance != 0 || a.Status != domain.AccountStatusActive {
		t.Errorf("Unexpected new account: %+v", a)
	}
	if a.CredentialHash == "secret" {
		t.Error("Credential stored in plain text")
	}

	if _, err := w.CreateAccount(ctx, "a@x.com", "Again", "x"); !errors.Is(err, domain.ErrDuplicateAccount) {
		t.Errorf("Expected ErrDuplicateAccount, got %v", err)
	}
	if _, err := w.CreateAccount(ctx, " ", "Blank", "x"); !errors.Is(err, domain.ErrInvalidAccount) {
		t.Errorf("Expected ErrInvalidAccount, got %v", err)
	}
	if _, err := w.CreateAccount(ctx, "b@x.com", "B", ""); !errors.Is(err, domain.ErrInvalidAccount) {
		t.Errorf("Expected ErrInvalidAccount, got %v", err)
	}
}

func TestMutexWallet_Authenticate(t *testing.T) {
	ctx := context.Background()

	t.Run("credentials", func(t *testing.T) {
		w, _ := newTestWallet(t, domain.DefaultPolicy())
		fund(t, w, "a", 0)

		if _, err := w.Authenticate(ctx, "a", "pw"); err != nil {
			t.Errorf("Authenticate failed: %v", err)
		}
		if _, err := w.Authenticate(ctx, "a", "wrong"); !errors.Is(err, domain.ErrBadCredential) {
			t.Errorf("Expected ErrBadCredential, got %v", err)
		}
		if _, err := w.Authenticate(ctx, "nobody", "pw"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("blocked", func(t *testing.T) {
		w, _ := newTestWallet(t, domain.DefaultPolicy())
		fund(t, w, "a", 0)
		if err := w.SetStatus(ctx, "a", domain.AccountStatusBlocked); err != nil {
			t.Fatalf("SetStatus failed: %v", err)
		}
		if _, err := w.Authenticate(ctx, "a", "pw"); !errors.Is(err, domain.ErrAccountBlocked) {
			t.Errorf("Expected ErrAccountBlocked, got %v", err)
		}
	})

	t.Run("pending requires approval", func(t *testing.T) {
		policy := domain.DefaultPolicy()
		policy.RequireApproval = true
		w, _ := newTestWallet(t, policy)
		fund(t, w, "a", 0)

		if _, err := w.Authenticate(ctx, "a", "pw"); !errors.Is(err, domain.ErrAccountNotApproved) {
			t.Errorf("Expected ErrAccountNotApproved, got %v", err)
		}
		if err := w.SetStatus(ctx, "a", domain.AccountStatusActive); err != nil {
			t.Fatalf("SetStatus failed: %v", err)
		}
		if _, err := w.Authenticate(ctx, "a", "pw"); err != nil {
			t.Errorf("Authenticate after approval failed: %v", err)
		}
	})
}

func TestMutexWallet_Deposit(t *testing.T) {
	w, _ := newTestWallet(t, domain.DefaultPolicy())
	fund(t, w, "a", 0)
	ctx := context.Background()

	balance, err := w.Deposit(ctx, "a", 250, "")
	if err != nil {
		t.Fatalf("Deposit failed: %v", err)
	}
	if balance != 250 || balanceOf(t, w, "a") != 250 {
		t.Errorf("Expected balance 250, got %d", balance)
	}
	if _, err := w.Deposit(ctx, "a", 0, ""); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Errorf("Expected ErrInvalidAmount, got %v", err)
	}
	if _, err := w.Deposit(ctx, "ghost", 10, ""); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestMutexWallet_DepositLimits(t *testing.T) {
	tests := []struct {
		name        string
		policy      domain.Policy
		balance     int64
		amount      int64
		method      string
		wantErr     error
		wantBalance int64
	}{
		{"policy minimum", domain.DefaultPolicy(), 0, 10, "", nil, 10},
		{"below policy minimum", domain.DefaultPolicy(), 0, 9, "", domain.ErrInvalidAmount, 0},
		{"policy maximum", domain.DefaultPolicy(), 0, 100000, "", nil, 100000},
		{"above policy maximum", domain.DefaultPolicy(), 0, 100001, "", domain.ErrInvalidAmount, 0},
		{"unbounded fills to max", domain.Policy{}, math.MaxInt64 - 5, 5, "", nil, math.MaxInt64},
		{"balance overflow", domain.Policy{}, math.MaxInt64, 2, "", domain.ErrInvalidAmount, math.MaxInt64},
		{"known method", domain.DefaultPolicy(), 0, 500, "EasyPaisa", nil, 500},
		{"unknown method", domain.DefaultPolicy(), 0, 500, "Cash", domain.ErrInvalidDepositMethod, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, _ := newTestWallet(t, tt.policy)
			fund(t, w, "a", tt.balance)

			balance, err := w.Deposit(context.Background(), "a", tt.amount, tt.method)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Expected error %v, got %v", tt.wantErr, err)
			}
			if err == nil && balance != tt.wantBalance {
				t.Errorf("Expected returned balance %d, got %d", tt.wantBalance, balance)
			}
			if got := balanceOf(t, w, "a"); got != tt.wantBalance {
				t.Errorf("Expected balance %d, got %d", tt.wantBalance, got)
			}
		})
	}
}

func TestMutexWallet_Transfer_ReceiverOverflow(t *testing.T) {
	w, _ := newTestWallet(t, domain.Policy{})
	fund(t, w, "full", math.MaxInt64)
	fund(t, w, "a", 100)

	if _, err := w.Transfer(context.Background(), "a", "full", 2); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Fatalf("Expected ErrInvalidAmount, got %v", err)
	}
	if got := balanceOf(t, w, "a"); got != 100 {
		t.Errorf("Sender balance changed: %d", got)
	}
	if got := balanceOf(t, w, "full"); got != math.MaxInt64 {
		t.Errorf("Receiver balance changed: %d", got)
	}
}

func TestMutexWallet_WithdrawDebit(t *testing.T) {
	w, _ := newTestWallet(t, domain.DefaultPolicy())
	fund(t, w, "a", 500)
	ctx := context.Background()

	balance, err := w.WithdrawDebit(ctx, "a", 200)
	if err != nil {
		t.Fatalf("WithdrawDebit failed: %v", err)
	}
	if balance != 300 {
		t.Errorf("Expected 300, got %d", balance)
	}
	if _, err := w.WithdrawDebit(ctx, "a", 50); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Errorf("Expected ErrInvalidAmount below minimum, got %v", err)
	}
	if _, err := w.WithdrawDebit(ctx, "a", 400); !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Errorf("Expected ErrInsufficientFunds, got %v", err)
	}
	if got := balanceOf(t, w, "a"); got != 300 {
		t.Errorf("Failed debits changed the balance: %d", got)
	}
}

func TestMutexWallet_Transfer(t *testing.T) {
	ctx := context.Background()

	t.Run("conserves total", func(t *testing.T) {
		w, _ := newTestWallet(t, domain.DefaultPolicy())
		fund(t, w, "a", 300)
		fund(t, w, "b", 200)

		balance, err := w.Transfer(ctx, "a", "b", 120)
		if err != nil {
			t.Fatalf("Transfer failed: %v", err)
		}
		if balance != 180 {
			t.Errorf("Expected sender balance 180, got %d", balance)
		}
		if a, b := balanceOf(t, w, "a"), balanceOf(t, w, "b"); a+b != 500 || b != 320 {
			t.Errorf("Unexpected balances a=%d b=%d", a, b)
		}
	})

	t.Run("insufficient funds", func(t *testing.T) {
		w, _ := newTestWallet(t, domain.DefaultPolicy())
		fund(t, w, "a", 50)
		fund(t, w, "b", 0)

		if _, err := w.Transfer(ctx, "a", "b", 100); !errors.Is(err, domain.ErrInsufficientFunds) {
			t.Errorf("Expected ErrInsufficientFunds, got %v", err)
		}
		if balanceOf(t, w, "a") != 50 || balanceOf(t, w, "b") != 0 {
			t.Error("Failed transfer mutated balances")
		}
	})

	t.Run("unknown receiver", func(t *testing.T) {
		w, _ := newTestWallet(t, domain.DefaultPolicy())
		fund(t, w, "a", 50)

		if _, err := w.Transfer(ctx, "a", "ghost", 10); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
		if balanceOf(t, w, "a") != 50 {
			t.Error("Failed transfer debited the sender")
		}
	})

	t.Run("invalid input", func(t *testing.T) {
		w, _ := newTestWallet(t, domain.DefaultPolicy())
		fund(t, w, "a", 50)

		if _, err := w.Transfer(ctx, "a", "a", 10); !errors.Is(err, domain.ErrSameAccount) {
			t.Errorf("Expected ErrSameAccount, got %v", err)
		}
		if _, err := w.Transfer(ctx, "a", "a", 0); !errors.Is(err, domain.ErrInvalidAmount) {
			t.Errorf("Expected ErrInvalidAmount, got %v", err)
		}
	})
}

func TestMutexWallet_Recharge(t *testing.T) {
	w, _ := newTestWallet(t, domain.DefaultPolicy())
	fund(t, w, "a", 100)
	ctx := context.Background()

	balance, err := w.Recharge(ctx, "a", domain.Recharge{Mobile: "03001234567", Operator: "Telenor", Amount: 40})
	if err != nil {
		t.Fatalf("Recharge failed: %v", err)
	}
	if balance != 60 {
		t.Errorf("Expected 60, got %d", balance)
	}
	if _, err := w.Recharge(ctx, "a", domain.Recharge{Mobile: "03001234567", Operator: "Telenor", Amount: 100}); !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Errorf("Expected ErrInsufficientFunds, got %v", err)
	}
	if _, err := w.Recharge(ctx, "a", domain.Recharge{Mobile: "123", Operator: "Telenor", Amount: 20}); !errors.Is(err, domain.ErrInvalidRecharge) {
		t.Errorf("Expected ErrInvalidRecharge, got %v", err)
	}
}

func TestMutexWallet_SubmitReject_RestoresBalance(t *testing.T) {
	w, _ := newTestWallet(t, domain.DefaultPolicy())
	fund(t, w, "a", 500)
	ctx := context.Background()

	id, err := w.Submit(ctx, "a", 200)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if got := balanceOf(t, w, "a"); got != 300 {
		t.Errorf("Expected 300 after submit, got %d", got)
	}

	history := slices.Collect(w.History("a"))
	if len(history) != 1 || history[0].ID != id || history[0].Status != domain.WithdrawalStatusPending {
		t.Fatalf("Unexpected history: %+v", history)
	}

	rejected, err := w.Reject(ctx, id)
	if err != nil {
		t.Fatalf("Reject failed: %v", err)
	}
	if rejected.Status != domain.WithdrawalStatusRejected || rejected.DecidedAt.IsZero() {
		t.Errorf("Unexpected rejected request: %+v", rejected)
	}
	if got := balanceOf(t, w, "a"); got != 500 {
		t.Errorf("Expected 500 after reject, got %d", got)
	}

	// 第二次駁回不可再退款
	if _, err := w.Reject(ctx, id); !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("Expected ErrInvalidState on second reject, got %v", err)
	}
	if got := balanceOf(t, w, "a"); got != 500 {
		t.Errorf("Expected 500 after second reject, got %d", got)
	}
}

func TestMutexWallet_Reject_RefundIgnoresDepositLimit(t *testing.T) {
	policy := domain.DefaultPolicy()
	policy.MaxDeposit = 250
	w, _ := newTestWallet(t, policy)
	fund(t, w, "a", 250)
	ctx := context.Background()
	if _, err := w.Deposit(ctx, "a", 250, ""); err != nil {
		t.Fatalf("Deposit failed: %v", err)
	}

	id, err := w.Submit(ctx, "a", 300)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if _, err := w.Reject(ctx, id); err != nil {
		t.Fatalf("Reject failed: %v", err)
	}
	if got := balanceOf(t, w, "a"); got != 500 {
		t.Errorf("Expected full refund to 500, got %d", got)
	}
}

func TestMutexWallet_Approve(t *testing.T) {
	w, _ := newTestWallet(t, domain.DefaultPolicy())
	fund(t, w, "a", 500)
	ctx := context.Background()

	id, err := w.Submit(ctx, "a", 200)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	approved, err := w.Approve(ctx, id)
	if err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	if approved.Status != domain.WithdrawalStatusApproved {
		t.Errorf("Expected Approved, got %s", approved.Status)
	}
	if got := balanceOf(t, w, "a"); got != 300 {
		t.Errorf("Approve changed the balance: %d", got)
	}

	if _, err := w.Approve(ctx, id); !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("Second approve: expected ErrInvalidState, got %v", err)
	}
	if _, err := w.Reject(ctx, id); !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("Reject after approve: expected ErrInvalidState, got %v", err)
	}
	if got := balanceOf(t, w, "a"); got != 300 {
		t.Errorf("Failed reject refunded: %d", got)
	}
	if _, err := w.Approve(ctx, 999); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestMutexWallet_Submit_Validation(t *testing.T) {
	w, _ := newTestWallet(t, domain.DefaultPolicy())
	fund(t, w, "a", 80)
	ctx := context.Background()

	if _, err := w.Submit(ctx, "a", 50); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Errorf("Below minimum: expected ErrInvalidAmount, got %v", err)
	}
	if _, err := w.Submit(ctx, "a", 20000); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Errorf("Above maximum: expected ErrInvalidAmount, got %v", err)
	}
	if _, err := w.Submit(ctx, "a", 100); !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Errorf("Expected ErrInsufficientFunds, got %v", err)
	}
	if _, err := w.Submit(ctx, "ghost", 100); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if n := len(slices.Collect(w.Requests(domain.WithdrawalFilter{}))); n != 0 {
		t.Errorf("Failed submits appended %d requests", n)
	}
	if got := balanceOf(t, w, "a"); got != 80 {
		t.Errorf("Failed submits changed the balance: %d", got)
	}
}

func TestMutexWallet_FailedSave_LeavesStateUnchanged(t *testing.T) {
	w, store := newTestWallet(t, domain.DefaultPolicy())
	fund(t, w, "a", 500)
	fund(t, w, "b", 0)
	ctx := context.Background()

	pending, err := w.Submit(ctx, "a", 100)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	before := w.Dashboard(ctx)

	store.setFail(true)

	if _, err := w.Deposit(ctx, "a", 10, ""); !errors.Is(err, domain.ErrPersistFailed) {
		t.Errorf("Deposit: expected ErrPersistFailed, got %v", err)
	}
	if _, err := w.Transfer(ctx, "a", "b", 10); !errors.Is(err, domain.ErrPersistFailed) {
		t.Errorf("Transfer: expected ErrPersistFailed, got %v", err)
	}
	if _, err := w.Submit(ctx, "a", 100); !errors.Is(err, domain.ErrPersistFailed) {
		t.Errorf("Submit: expected ErrPersistFailed, got %v", err)
	}
	if _, err := w.Reject(ctx, pending); !errors.Is(err, domain.ErrPersistFailed) {
		t.Errorf("Reject: expected ErrPersistFailed, got %v", err)
	}
	if _, err := w.CreateAccount(ctx, "c", "C", "pw"); !errors.Is(err, domain.ErrPersistFailed) {
		t.Errorf("CreateAccount: expected ErrPersistFailed, got %v", err)
	}

	if after := w.Dashboard(ctx); after != before {
		t.Errorf("State changed after failed saves: before %+v, after %+v", before, after)
	}
	if balanceOf(t, w, "a") != 400 || balanceOf(t, w, "b") != 0 {
		t.Error("Balances changed after failed saves")
	}
	requests := slices.Collect(w.Requests(domain.WithdrawalFilter{}))
	if len(requests) != 1 || requests[0].Status != domain.WithdrawalStatusPending {
		t.Errorf("Queue changed after failed saves: %+v", requests)
	}

	// 恢復後申請編號不會跳號
	store.setFail(false)
	next, err := w.Submit(ctx, "a", 100)
	if err != nil {
		t.Fatalf("Submit after recovery failed: %v", err)
	}
	if next != pending+1 {
		t.Errorf("Expected request id %d, got %d", pending+1, next)
	}
}

func TestMutexWallet_History(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	clock := func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	w, _ := newTestWallet(t, domain.DefaultPolicy(), WithClock(clock))
	fund(t, w, "a", 1000)
	fund(t, w, "b", 1000)
	ctx := context.Background()

	for _, amount := range []int64{100, 200, 300} {
		if _, err := w.Submit(ctx, "a", amount); err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
		if _, err := w.Submit(ctx, "b", amount); err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
	}

	seq := w.History("a")
	first := slices.Collect(seq)
	second := slices.Collect(seq)
	if len(first) != 3 || !slices.Equal(first, second) {
		t.Fatalf("History is not restartable: %v vs %v", first, second)
	}
	for i, r := range first {
		if r.AccountID != "a" {
			t.Errorf("History contains another account: %+v", r)
		}
		if i > 0 && r.CreatedAt.Before(first[i-1].CreatedAt) {
			t.Errorf("History not ascending at %d", i)
		}
	}

	// 迭代中呼叫其他方法不會死鎖
	for r := range w.History("a") {
		if _, err := w.Reject(ctx, r.ID); err != nil {
			t.Fatalf("Reject inside iteration failed: %v", err)
		}
		break
	}

	if n := len(slices.Collect(w.History("nobody"))); n != 0 {
		t.Errorf("Expected empty history, got %d", n)
	}

	pending := slices.Collect(w.Requests(domain.WithdrawalFilter{Status: domain.WithdrawalStatusPending}))
	if len(pending) != 5 {
		t.Errorf("Expected 5 pending requests, got %d", len(pending))
	}
	stats := w.Stats(ctx)
	if stats != (domain.QueueStats{Total: 6, Pending: 5, Rejected: 1}) {
		t.Errorf("Unexpected stats: %+v", stats)
	}
}

func TestMutexWallet_UpdateProfile(t *testing.T) {
	w, _ := newTestWallet(t, domain.DefaultPolicy())
	fund(t, w, "a", 70)
	ctx := context.Background()

	name, cred := "Alice Cooper", "new-pw"
	updated, err := w.UpdateProfile(ctx, "a", domain.ProfileUpdate{Name: &name, Credential: &cred})
	if err != nil {
		t.Fatalf("UpdateProfile failed: %v", err)
	}
	if updated.ID != "a" || updated.Name != name || updated.Balance != 70 {
		t.Errorf("Unexpected profile: %+v", updated)
	}
	if _, err := w.Authenticate(ctx, "a", "pw"); !errors.Is(err, domain.ErrBadCredential) {
		t.Errorf("Old credential still accepted: %v", err)
	}
	if _, err := w.Authenticate(ctx, "a", cred); err != nil {
		t.Errorf("New credential rejected: %v", err)
	}

	blank := " "
	if _, err := w.UpdateProfile(ctx, "a", domain.ProfileUpdate{Name: &blank}); !errors.Is(err, domain.ErrInvalidProfile) {
		t.Errorf("Expected ErrInvalidProfile, got %v", err)
	}
	if _, err := w.UpdateProfile(ctx, "a", domain.ProfileUpdate{}); !errors.Is(err, domain.ErrInvalidProfile) {
		t.Errorf("Expected ErrInvalidProfile for empty update, got %v", err)
	}
	if _, err := w.UpdateProfile(ctx, "ghost", domain.ProfileUpdate{Name: &name}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestMutexWallet_SetStatus(t *testing.T) {
	w, _ := newTestWallet(t, domain.DefaultPolicy())
	fund(t, w, "a", 0)
	ctx := context.Background()

	if err := w.SetStatus(ctx, "a", "frozen"); !errors.Is(err, domain.ErrInvalidStatus) {
		t.Errorf("Expected ErrInvalidStatus, got %v", err)
	}
	if err := w.SetStatus(ctx, "ghost", domain.AccountStatusBlocked); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestMutexWallet_Dashboard(t *testing.T) {
	w, _ := newTestWallet(t, domain.DefaultPolicy())
	fund(t, w, "a", 500)
	fund(t, w, "b", 300)
	ctx := context.Background()

	if _, err := w.Submit(ctx, "a", 100); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	d := w.Dashboard(ctx)
	if d.Accounts != 2 || d.TotalBalance != 700 || d.Withdrawals.Pending != 1 {
		t.Errorf("Unexpected dashboard: %+v", d)
	}
}

func TestMutexWallet_Dashboard_TotalSaturates(t *testing.T) {
	snapshot := usecase.NewSnapshot()
	snapshot.Accounts["a"] = &domain.Account{ID: "a", Balance: math.MaxInt64 - 1, Status: domain.AccountStatusActive}
	snapshot.Accounts["b"] = &domain.Account{ID: "b", Balance: 5, Status: domain.AccountStatusActive}
	ctx := context.Background()
	w, err := NewMutexWallet(ctx, &fakeStore{snapshot: snapshot}, plainHasher{}, domain.DefaultPolicy())
	if err != nil {
		t.Fatalf("NewMutexWallet failed: %v", err)
	}

	if d := w.Dashboard(ctx); d.TotalBalance != math.MaxInt64 || d.Accounts != 2 {
		t.Errorf("Expected saturated total, got %+v", d)
	}
}

func TestMutexWallet_Reload(t *testing.T) {
	w, store := newTestWallet(t, domain.DefaultPolicy())
	fund(t, w, "a", 500)
	ctx := context.Background()

	first, err := w.Submit(ctx, "a", 100)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	reloaded, err := NewMutexWallet(ctx, store, plainHasher{}, domain.DefaultPolicy())
	if err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if got := balanceOf(t, reloaded, "a"); got != 400 {
		t.Errorf("Expected reloaded balance 400, got %d", got)
	}
	next, err := reloaded.Submit(ctx, "a", 100)
	if err != nil {
		t.Fatalf("Submit after reload failed: %v", err)
	}
	if next != first+1 {
		t.Errorf("Expected request id %d, got %d", first+1, next)
	}
}

func TestMutexWallet_Journal(t *testing.T) {
	journal := &fakeJournal{}
	w, _ := newTestWallet(t, domain.DefaultPolicy(), WithJournal(journal), WithJournalSequence(41))
	fund(t, w, "a", 500)
	ctx := context.Background()

	id, err := w.Submit(ctx, "a", 200)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if _, err := w.Reject(ctx, id); err != nil {
		t.Fatalf("Reject failed: %v", err)
	}
	// 失敗的操作不寫日誌
	_, _ = w.Deposit(ctx, "a", -1, "")

	want := []domain.EntryType{domain.EntryTypeSignUp, domain.EntryTypeDeposit, domain.EntryTypeSubmit, domain.EntryTypeReject}
	if len(journal.entries) != len(want) {
		t.Fatalf("Expected %d entries, got %d", len(want), len(journal.entries))
	}
	for i, e := range journal.entries {
		if e.Type != want[i] {
			t.Errorf("Entry %d: expected %s, got %s", i, want[i], e.Type)
		}
		if e.Sequence != uint64(42+i) {
			t.Errorf("Entry %d: expected sequence %d, got %d", i, 42+i, e.Sequence)
		}
	}
	if last := journal.entries[3]; last.RequestID != id || last.Amount != 200 {
		t.Errorf("Unexpected reject entry: %+v", last)
	}
}

func TestMutexWallet_Journal_DepositMethod(t *testing.T) {
	journal := &fakeJournal{}
	w, _ := newTestWallet(t, domain.DefaultPolicy(), WithJournal(journal))
	fund(t, w, "a", 0)

	if _, err := w.Deposit(context.Background(), "a", 300, "Bank Transfer"); err != nil {
		t.Fatalf("Deposit failed: %v", err)
	}
	last := journal.entries[len(journal.entries)-1]
	if last.Type != domain.EntryTypeDeposit || last.To != "a" || last.Amount != 300 || last.Detail != "Bank Transfer" {
		t.Errorf("Unexpected deposit entry: %+v", last)
	}
}

func TestMutexWallet_ConcurrentTransfers(t *testing.T) {
	w, _ := newTestWallet(t, domain.Policy{MinWithdraw: 1})
	ctx := context.Background()

	const accounts = 5
	const perAccount = 1000
	for i := 0; i < accounts; i++ {
		fund(t, w, fmt.Sprintf("acc-%d", i), perAccount)
	}

	var wg sync.WaitGroup
	for g := 0; g < 20; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				from := fmt.Sprintf("acc-%d", (g+i)%accounts)
				to := fmt.Sprintf("acc-%d", (g+i+1)%accounts)
				switch i % 3 {
				case 0:
					_, _ = w.Transfer(ctx, from, to, int64(1+i%7))
				case 1:
					if id, err := w.Submit(ctx, from, 3); err == nil {
						_, _ = w.Reject(ctx, id)
					}
				default:
					_ = w.Dashboard(ctx)
				}
			}
		}(g)
	}
	wg.Wait()

	var total int64
	for i := 0; i < accounts; i++ {
		b := balanceOf(t, w, fmt.Sprintf("acc-%d", i))
		if b < 0 {
			t.Errorf("Negative balance on acc-%d: %d", i, b)
		}
		total += b
	}
	if total != accounts*perAccount {
		t.Errorf("Expected total %d, got %d", accounts*perAccount, total)
	}
}
