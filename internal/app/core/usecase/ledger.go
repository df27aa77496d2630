package usecase

import (
	"context"
	"iter"

	"github.com/JoeShih716/go-mem-wallet/internal/app/core/domain"
)

// Ledger 帳戶帳本，負責餘額的所有異動
type Ledger interface {
	// CreateAccount 註冊新帳戶，初始狀態依 Policy 決定
	CreateAccount(ctx context.Context, id, name, credential string) (domain.Account, error)
	// Authenticate 驗證帳密與帳戶狀態
	Authenticate(ctx context.Context, id, credential string) (domain.Account, error)
	// GetAccount 取得帳戶 (副本)
	GetAccount(ctx context.Context, id string) (domain.Account, error)
	// Deposit 存款，回傳新餘額；method 為存款管道，空字串表示未指定
	Deposit(ctx context.Context, id string, amount int64, method string) (int64, error)
	// WithdrawDebit 純扣款 (檢查提款上下限)，不處理審核流程
	WithdrawDebit(ctx context.Context, id string, amount int64) (int64, error)
	// Transfer 轉帳，回傳轉出方新餘額
	Transfer(ctx context.Context, fromID, toID string, amount int64) (int64, error)
	// Recharge 手機儲值，回傳新餘額
	Recharge(ctx context.Context, id string, recharge domain.Recharge) (int64, error)
	// SetStatus 變更帳戶狀態 (管理員)
	SetStatus(ctx context.Context, id string, status domain.AccountStatus) error
	// UpdateProfile 更新名稱或密碼，帳戶 ID 不會變更
	UpdateProfile(ctx context.Context, id string, update domain.ProfileUpdate) (domain.Account, error)
	// Dashboard 總帳戶數、總餘額與提款統計
	Dashboard(ctx context.Context) domain.Dashboard
}

// WithdrawalQueue 提款申請佇列
type WithdrawalQueue interface {
	// Submit 先扣款再建立 Pending 申請，回傳申請編號
	Submit(ctx context.Context, accountID string, amount int64) (uint64, error)
	// Approve 核准，不異動餘額
	Approve(ctx context.Context, requestID uint64) (domain.WithdrawalRequest, error)
	// Reject 駁回並退款
	Reject(ctx context.Context, requestID uint64) (domain.WithdrawalRequest, error)
	// History 指定帳戶的申請紀錄，依建立時間由舊到新，可重複迭代
	History(accountID string) iter.Seq[domain.WithdrawalRequest]
	// Requests 依條件列出申請
	Requests(filter domain.WithdrawalFilter) iter.Seq[domain.WithdrawalRequest]
	// Stats 統計各狀態數量
	Stats(ctx context.Context) domain.QueueStats
}

// Wallet 同一把鎖保護的 Ledger + WithdrawalQueue
type Wallet interface {
	Ledger
	WithdrawalQueue
}
