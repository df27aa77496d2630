package usecase_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/JoeShih716/go-mem-wallet/internal/app/core/adapter/out/export"
	"github.com/JoeShih716/go-mem-wallet/internal/app/core/adapter/out/jsonfile"
	"github.com/JoeShih716/go-mem-wallet/internal/app/core/adapter/out/memory"
	"github.com/JoeShih716/go-mem-wallet/internal/app/core/domain"
	"github.com/JoeShih716/go-mem-wallet/internal/app/core/usecase"
	"github.com/JoeShih716/go-mem-wallet/pkg/async"
	"github.com/JoeShih716/go-mem-wallet/pkg/credential"
)

// inlineDispatcher 直接在呼叫端執行任務
type inlineDispatcher struct {
	err error
}

func (d *inlineDispatcher) Dispatch(task async.Task) error {
	if d.err != nil {
		return d.err
	}
	_ = task(context.Background())
	return nil
}

type stubNotifier struct {
	mu    sync.Mutex
	err   error
	sent  []string
	total int64
}

func (n *stubNotifier) NotifyWithdrawal(_ context.Context, accountID string, amount int64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, accountID)
	n.total += amount
	return n.err
}

type recordingCollector struct {
	mu       sync.Mutex
	outcomes map[string][]string
	notified []bool
	dropped  int
	pending  int
}

func newRecordingCollector() *recordingCollector {
	return &recordingCollector{outcomes: make(map[string][]string)}
}

func (c *recordingCollector) RecordOperation(operation, outcome string, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outcomes[operation] = append(c.outcomes[operation], outcome)
}

func (c *recordingCollector) RecordNotification(success bool, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notified = append(c.notified, success)
}

func (c *recordingCollector) RecordNotificationDropped() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dropped++
}

func (c *recordingCollector) SetPendingWithdrawals(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = n
}

var admin = usecase.AdminCredential{User: "admin", Password: "secret"}

func newTestCore(t *testing.T, opts ...usecase.CoreOption) *usecase.CoreUseCase {
	t.Helper()
	store, err := jsonfile.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	wallet, err := memory.NewMutexWallet(context.Background(), store,
		credential.NewBcrypt(bcrypt.MinCost), domain.DefaultPolicy())
	if err != nil {
		t.Fatalf("NewMutexWallet failed: %v", err)
	}
	return usecase.NewCoreUseCase(wallet, admin, opts...)
}

func signUpWithFunds(t *testing.T, core *usecase.CoreUseCase, id string, amount int64) {
	t.Helper()
	ctx := context.Background()
	if _, err := core.SignUp(ctx, id, "name", "pw"); err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	if _, err := core.Deposit(ctx, id, amount, ""); err != nil {
		t.Fatalf("Deposit failed: %v", err)
	}
}

func TestCore_AuthorizeAdmin(t *testing.T) {
	core := newTestCore(t)

	if err := core.AuthorizeAdmin("admin", "secret"); err != nil {
		t.Errorf("Expected admin authorized, got %v", err)
	}
	if err := core.AuthorizeAdmin("admin", "wrong"); !errors.Is(err, domain.ErrAdminUnauthorized) {
		t.Errorf("Expected ErrAdminUnauthorized, got %v", err)
	}
	if err := core.AuthorizeAdmin("", ""); !errors.Is(err, domain.ErrAdminUnauthorized) {
		t.Errorf("Expected ErrAdminUnauthorized for empty input, got %v", err)
	}
}

func TestCore_AuthorizeAdmin_NotConfigured(t *testing.T) {
	store, _ := jsonfile.NewStore(t.TempDir())
	wallet, err := memory.NewMutexWallet(context.Background(), store,
		credential.NewBcrypt(bcrypt.MinCost), domain.DefaultPolicy())
	if err != nil {
		t.Fatal(err)
	}
	core := usecase.NewCoreUseCase(wallet, usecase.AdminCredential{})

	if err := core.AuthorizeAdmin("", ""); !errors.Is(err, domain.ErrAdminUnauthorized) {
		t.Errorf("Empty admin credential must never authorize, got %v", err)
	}
}

func TestCore_WithdrawNotifies(t *testing.T) {
	notifier := &stubNotifier{}
	collector := newRecordingCollector()
	core := newTestCore(t,
		usecase.WithNotifier(notifier, &inlineDispatcher{}),
		usecase.WithMetrics(collector))
	signUpWithFunds(t, core, "a@x.com", 1000)

	id, err := core.Withdraw(context.Background(), "a@x.com", 300)
	if err != nil {
		t.Fatalf("Withdraw failed: %v", err)
	}
	if id != 1 {
		t.Errorf("Expected request id 1, got %d", id)
	}
	if len(notifier.sent) != 1 || notifier.sent[0] != "a@x.com" || notifier.total != 300 {
		t.Errorf("Unexpected notifications: %+v", notifier)
	}
	if collector.pending != 1 {
		t.Errorf("Expected pending gauge 1, got %d", collector.pending)
	}
	if len(collector.notified) != 1 || !collector.notified[0] {
		t.Errorf("Expected one successful notification, got %v", collector.notified)
	}
}

func TestCore_NotifierFailureDoesNotFailWithdraw(t *testing.T) {
	notifier := &stubNotifier{err: errors.New("smtp down")}
	collector := newRecordingCollector()
	core := newTestCore(t,
		usecase.WithNotifier(notifier, &inlineDispatcher{}),
		usecase.WithMetrics(collector))
	signUpWithFunds(t, core, "a@x.com", 1000)

	if _, err := core.Withdraw(context.Background(), "a@x.com", 300); err != nil {
		t.Fatalf("Withdraw must succeed when notification fails, got %v", err)
	}
	account, _ := core.GetAccount(context.Background(), "a@x.com")
	if account.Balance != 700 {
		t.Errorf("Expected balance 700, got %d", account.Balance)
	}
	if len(collector.notified) != 1 || collector.notified[0] {
		t.Errorf("Expected one failed notification, got %v", collector.notified)
	}
}

func TestCore_NotificationDroppedWhenQueueFull(t *testing.T) {
	collector := newRecordingCollector()
	core := newTestCore(t,
		usecase.WithNotifier(&stubNotifier{}, &inlineDispatcher{err: async.ErrQueueFull}),
		usecase.WithMetrics(collector))
	signUpWithFunds(t, core, "a@x.com", 1000)

	if _, err := core.Withdraw(context.Background(), "a@x.com", 300); err != nil {
		t.Fatalf("Withdraw failed: %v", err)
	}
	if collector.dropped != 1 {
		t.Errorf("Expected 1 dropped notification, got %d", collector.dropped)
	}
}

func TestCore_RejectRestoresBalance(t *testing.T) {
	collector := newRecordingCollector()
	core := newTestCore(t, usecase.WithMetrics(collector))
	signUpWithFunds(t, core, "a@x.com", 1000)
	ctx := context.Background()

	id, err := core.Withdraw(ctx, "a@x.com", 400)
	if err != nil {
		t.Fatal(err)
	}
	request, err := core.Reject(ctx, id)
	if err != nil {
		t.Fatalf("Reject failed: %v", err)
	}
	if request.Status != domain.WithdrawalStatusRejected {
		t.Errorf("Expected Rejected, got %s", request.Status)
	}
	account, _ := core.GetAccount(ctx, "a@x.com")
	if account.Balance != 1000 {
		t.Errorf("Expected balance restored to 1000, got %d", account.Balance)
	}
	if collector.pending != 0 {
		t.Errorf("Expected pending gauge 0, got %d", collector.pending)
	}
	if _, err := core.Approve(ctx, id); !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("Expected ErrInvalidState, got %v", err)
	}
}

func TestCore_History(t *testing.T) {
	core := newTestCore(t)
	signUpWithFunds(t, core, "a@x.com", 1000)
	signUpWithFunds(t, core, "b@x.com", 1000)
	ctx := context.Background()

	for _, amount := range []int64{100, 200} {
		if _, err := core.Withdraw(ctx, "a@x.com", amount); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := core.Withdraw(ctx, "b@x.com", 150); err != nil {
		t.Fatal(err)
	}

	history, err := core.History(ctx, "a@x.com")
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 2 || history[0].Amount != 100 || history[1].Amount != 200 {
		t.Errorf("Unexpected history: %+v", history)
	}

	if _, err := core.History(ctx, "nobody@x.com"); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Errorf("Expected ErrAccountNotFound, got %v", err)
	}

	stats := core.Stats(ctx)
	if stats.Total != 3 || stats.Pending != 3 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
	listed := core.ListRequests(ctx, domain.WithdrawalFilter{AccountID: "b@x.com"})
	if len(listed) != 1 || listed[0].Amount != 150 {
		t.Errorf("Unexpected filtered list: %+v", listed)
	}
}

func TestCore_Export(t *testing.T) {
	core := newTestCore(t, usecase.WithExporters(export.NewRegistry(export.NewCSV(), export.NewXLSX())))
	signUpWithFunds(t, core, "a@x.com", 1000)
	ctx := context.Background()
	if _, err := core.Withdraw(ctx, "a@x.com", 100); err != nil {
		t.Fatal(err)
	}

	data, contentType, err := core.Export(ctx, "csv", domain.WithdrawalFilter{})
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if contentType != "text/csv" || len(data) == 0 {
		t.Errorf("Unexpected csv export: %q %d bytes", contentType, len(data))
	}

	if _, _, err := core.Export(ctx, "pdf", domain.WithdrawalFilter{}); !errors.Is(err, domain.ErrUnknownFormat) {
		t.Errorf("Expected ErrUnknownFormat, got %v", err)
	}
}

func TestCore_ExportWithoutExporters(t *testing.T) {
	core := newTestCore(t)
	if _, _, err := core.Export(context.Background(), "csv", domain.WithdrawalFilter{}); !errors.Is(err, domain.ErrUnknownFormat) {
		t.Errorf("Expected ErrUnknownFormat, got %v", err)
	}
}

func TestCore_RecordsOutcomes(t *testing.T) {
	collector := newRecordingCollector()
	core := newTestCore(t, usecase.WithMetrics(collector))
	signUpWithFunds(t, core, "a@x.com", 100)
	ctx := context.Background()

	_, _ = core.Deposit(ctx, "a@x.com", -5, "")
	_, _ = core.Withdraw(ctx, "a@x.com", 5000)
	_, _ = core.Login(ctx, "a@x.com", "wrong")

	want := map[string][]string{
		"sign_up":  {"ok"},
		"deposit":  {"ok", "invalid_amount"},
		"withdraw": {"insufficient_funds"},
		"login":    {"bad_credential"},
	}
	for op, outcomes := range want {
		got := collector.outcomes[op]
		if len(got) != len(outcomes) {
			t.Errorf("%s: expected %v, got %v", op, outcomes, got)
			continue
		}
		for i := range outcomes {
			if got[i] != outcomes[i] {
				t.Errorf("%s: expected %v, got %v", op, outcomes, got)
			}
		}
	}
}
