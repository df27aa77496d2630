package domain

import (
	"math"
	"strings"
	"time"
)

// AccountStatus 帳戶狀態
type AccountStatus string

const (
	// 等待管理員審核
	AccountStatusPending AccountStatus = "pending"
	// 正常
	AccountStatusActive AccountStatus = "active"
	// 停用
	AccountStatusBlocked AccountStatus = "blocked"
)

// Valid 是否為合法的帳戶狀態
func (s AccountStatus) Valid() bool {
	switch s {
	case AccountStatusPending, AccountStatusActive, AccountStatusBlocked:
		return true
	}
	return false
}

// ParseAccountStatus 解析字串為帳戶狀態 (不分大小寫)
func ParseAccountStatus(s string) (AccountStatus, error) {
	status := AccountStatus(strings.ToLower(strings.TrimSpace(s)))
	if !status.Valid() {
		return "", ErrInvalidStatus
	}
	return status, nil
}

// Account 錢包帳戶
//
// ID 建立後不可變更 (例如 email)，餘額以整數貨幣單位表示且永不為負
type Account struct {
	ID             string
	Name           string
	CredentialHash string
	Balance        int64
	Status         AccountStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func NewAccount(id, name, credentialHash string, status AccountStatus, now time.Time) *Account {
	return &Account{
		ID:             id,
		Name:           name,
		CredentialHash: credentialHash,
		Balance:        0,
		Status:         status,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Deposit 存款，餘額會超出 int64 時回傳 ErrInvalidAmount
func (a *Account) Deposit(amount int64) error {
	if amount <= 0 || amount > math.MaxInt64-a.Balance {
		return ErrInvalidAmount
	}

	a.Balance = a.Balance + amount
	return nil
}

// Withdraw 提款
func (a *Account) Withdraw(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	if a.Balance < amount {
		return ErrInsufficientFunds
	}

	a.Balance = a.Balance - amount
	return nil
}

// Clone 複製一份帳戶，修改副本不影響原本的資料
func (a *Account) Clone() *Account {
	c := *a
	return &c
}

// ProfileUpdate 個人資料更新，nil 表示不變更
type ProfileUpdate struct {
	Name       *string
	Credential *string
}

// Empty 沒有任何欄位要更新
func (p ProfileUpdate) Empty() bool {
	return p.Name == nil && p.Credential == nil
}
