package usecase

import (
	"context"
	"io"

	"github.com/JoeShih716/go-mem-wallet/internal/app/core/domain"
)

// Snapshot 儲存層的完整資料
//
// Store 實作不可修改 Snapshot 內的指標，這些物件與記憶體狀態共用
type Snapshot struct {
	Accounts    map[string]*domain.Account
	Withdrawals []*domain.WithdrawalRequest
}

// NewSnapshot 建立空的 Snapshot
func NewSnapshot() *Snapshot {
	return &Snapshot{
		Accounts:    make(map[string]*domain.Account),
		Withdrawals: make([]*domain.WithdrawalRequest, 0),
	}
}

// Store 帳戶與提款申請的儲存層
type Store interface {
	// Load 載入全部資料，不存在時回傳空的 Snapshot
	Load(ctx context.Context) (*Snapshot, error)
	// Save 整份覆寫
	Save(ctx context.Context, snapshot *Snapshot) error
}

// Journal 帳務日誌 (WAL)
type Journal interface {
	Write(v any) error
}

// CredentialHasher 密碼雜湊
type CredentialHasher interface {
	Hash(plain string) (string, error)
	Verify(hash, plain string) bool
}

// Notifier 提款通知，失敗不影響提款申請
type Notifier interface {
	NotifyWithdrawal(ctx context.Context, accountID string, amount int64) error
}

// Exporter 將提款申請匯出為表格檔案
type Exporter interface {
	Format() string
	ContentType() string
	Export(w io.Writer, requests []domain.WithdrawalRequest) error
}

// ExporterRegistry 依格式名稱取得 Exporter，不支援時回傳 domain.ErrUnknownFormat
type ExporterRegistry interface {
	Get(format string) (Exporter, error)
}
