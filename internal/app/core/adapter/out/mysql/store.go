package mysql

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/JoeShih716/go-mem-wallet/internal/app/core/domain"
	"github.com/JoeShih716/go-mem-wallet/internal/app/core/usecase"
	"github.com/JoeShih716/go-mem-wallet/pkg/mysql"
)

// saveBatchSize 批次寫入筆數
const saveBatchSize = 500

// sqlAccount 對應資料庫的 accounts 表
type sqlAccount struct {
	ID             string `gorm:"primaryKey;size:191"`
	Name           string `gorm:"size:255"`
	CredentialHash string `gorm:"size:255"`
	Balance        int64
	Status         string    `gorm:"size:16"`
	CreatedAt      time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime:false"`
}

func (*sqlAccount) TableName() string {
	return "accounts"
}

// sqlWithdrawal 對應資料庫的 withdrawal_requests 表
type sqlWithdrawal struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement:false"`
	AccountID string `gorm:"size:191;index"`
	Amount    int64
	Status    string     `gorm:"size:16;index"`
	CreatedAt time.Time  `gorm:"autoCreateTime:false"`
	DecidedAt *time.Time // Pending 時為 NULL
}

func (*sqlWithdrawal) TableName() string {
	return "withdrawal_requests"
}

// Store 以 MySQL 實作 usecase.Store
type Store struct {
	client *mysql.Client
}

func NewStore(client *mysql.Client) *Store {
	return &Store{
		client: client,
	}
}

// AutoMigrate 建立或更新資料表
func (s *Store) AutoMigrate(ctx context.Context) error {
	return s.client.DB().WithContext(ctx).AutoMigrate(&sqlAccount{}, &sqlWithdrawal{})
}

// Load 載入所有帳戶與提款申請
func (s *Store) Load(ctx context.Context) (*usecase.Snapshot, error) {
	db := s.client.DB().WithContext(ctx)

	var accounts []sqlAccount
	if err := db.Find(&accounts).Error; err != nil {
		return nil, fmt.Errorf("load accounts: %w", err)
	}
	var withdrawals []sqlWithdrawal
	if err := db.Order("created_at ASC, id ASC").Find(&withdrawals).Error; err != nil {
		return nil, fmt.Errorf("load withdrawals: %w", err)
	}

	snapshot := usecase.NewSnapshot()
	for i := range accounts {
		account := toDomainAccount(&accounts[i])
		snapshot.Accounts[account.ID] = account
	}
	for i := range withdrawals {
		snapshot.Withdrawals = append(snapshot.Withdrawals, toDomainWithdrawal(&withdrawals[i]))
	}
	return snapshot, nil
}

// Save 在同一個 Transaction 內清空後重新寫入 (整份覆寫)
func (s *Store) Save(ctx context.Context, snapshot *usecase.Snapshot) error {
	accounts := make([]sqlAccount, 0, len(snapshot.Accounts))
	for _, account := range snapshot.Accounts {
		accounts = append(accounts, toSQLAccount(account))
	}
	withdrawals := make([]sqlWithdrawal, 0, len(snapshot.Withdrawals))
	for _, w := range snapshot.Withdrawals {
		withdrawals = append(withdrawals, toSQLWithdrawal(w))
	}

	return s.client.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&sqlWithdrawal{}).Error; err != nil {
			return fmt.Errorf("clear withdrawals: %w", err)
		}
		if err := tx.Where("1 = 1").Delete(&sqlAccount{}).Error; err != nil {
			return fmt.Errorf("clear accounts: %w", err)
		}
		if len(accounts) > 0 {
			if err := tx.CreateInBatches(&accounts, saveBatchSize).Error; err != nil {
				return fmt.Errorf("insert accounts: %w", err)
			}
		}
		if len(withdrawals) > 0 {
			if err := tx.CreateInBatches(&withdrawals, saveBatchSize).Error; err != nil {
				return fmt.Errorf("insert withdrawals: %w", err)
			}
		}
		return nil
	})
}

func toSQLAccount(a *domain.Account) sqlAccount {
	return sqlAccount{
		ID:             a.ID,
		Name:           a.Name,
		CredentialHash: a.CredentialHash,
		Balance:        a.Balance,
		Status:         string(a.Status),
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
}

func toDomainAccount(a *sqlAccount) *domain.Account {
	status := domain.AccountStatus(a.Status)
	if !status.Valid() {
		status = domain.AccountStatusActive
	}
	return &domain.Account{
		ID:             a.ID,
		Name:           a.Name,
		CredentialHash: a.CredentialHash,
		Balance:        a.Balance,
		Status:         status,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
}

func toSQLWithdrawal(w *domain.WithdrawalRequest) sqlWithdrawal {
	row := sqlWithdrawal{
		ID:        w.ID,
		AccountID: w.AccountID,
		Amount:    w.Amount,
		Status:    string(w.Status),
		CreatedAt: w.CreatedAt,
	}
	if !w.DecidedAt.IsZero() {
		decidedAt := w.DecidedAt
		row.DecidedAt = &decidedAt
	}
	return row
}

func toDomainWithdrawal(w *sqlWithdrawal) *domain.WithdrawalRequest {
	request := &domain.WithdrawalRequest{
		ID:        w.ID,
		AccountID: w.AccountID,
		Amount:    w.Amount,
		Status:    domain.WithdrawalStatus(w.Status),
		CreatedAt: w.CreatedAt,
	}
	if w.DecidedAt != nil {
		request.DecidedAt = *w.DecidedAt
	}
	return request
}

var _ usecase.Store = (*Store)(nil)
