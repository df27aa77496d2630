package domain

import "slices"

const (
	DefaultMinWithdraw int64 = 100
	DefaultMaxWithdraw int64 = 10000

	DefaultMinDeposit int64 = 10
	DefaultMaxDeposit int64 = 100000

	MinRecharge int64 = 10
	MaxRecharge int64 = 5000

	// 手機號碼固定 11 碼
	MobileNumberLength = 11
)

// RechargeOperators 支援的電信商
var RechargeOperators = []string{"Jazz", "Zong", "Telenor", "Ufone"}

// DepositMethods 支援的存款管道
var DepositMethods = []string{"JazzCash", "EasyPaisa", "Bank Transfer"}

// Policy 帳務規則
type Policy struct {
	// MinWithdraw 單筆提款下限
	MinWithdraw int64
	// MaxWithdraw 單筆提款上限，0 表示不限
	MaxWithdraw int64
	// MinDeposit 單筆存款下限，0 表示只要求正數
	MinDeposit int64
	// MaxDeposit 單筆存款上限，0 表示不限
	MaxDeposit int64
	// RequireApproval 新帳戶需管理員審核才能登入
	RequireApproval bool
}

func DefaultPolicy() Policy {
	return Policy{
		MinWithdraw: DefaultMinWithdraw,
		MaxWithdraw: DefaultMaxWithdraw,
		MinDeposit:  DefaultMinDeposit,
		MaxDeposit:  DefaultMaxDeposit,
	}
}

// ValidateWithdraw 檢查提款金額是否在上下限內
func (p Policy) ValidateWithdraw(amount int64) error {
	if amount <= 0 || amount < p.MinWithdraw {
		return ErrInvalidAmount
	}
	if p.MaxWithdraw > 0 && amount > p.MaxWithdraw {
		return ErrInvalidAmount
	}
	return nil
}

// ValidateDeposit 檢查存款金額是否在上下限內，駁回提款的退款不經過這裡
func (p Policy) ValidateDeposit(amount int64) error {
	if amount <= 0 || amount < p.MinDeposit {
		return ErrInvalidAmount
	}
	if p.MaxDeposit > 0 && amount > p.MaxDeposit {
		return ErrInvalidAmount
	}
	return nil
}

// ValidateDepositMethod 空字串表示未指定管道
func ValidateDepositMethod(method string) error {
	if method == "" || slices.Contains(DepositMethods, method) {
		return nil
	}
	return ErrInvalidDepositMethod
}

// InitialStatus 新帳戶的初始狀態
func (p Policy) InitialStatus() AccountStatus {
	if p.RequireApproval {
		return AccountStatusPending
	}
	return AccountStatusActive
}

// Recharge 手機儲值
type Recharge struct {
	Mobile   string
	Operator string
	Amount   int64
}

// Validate 檢查手機號碼、電信商與金額
func (r Recharge) Validate() error {
	if r.Amount < MinRecharge || r.Amount > MaxRecharge {
		return ErrInvalidAmount
	}
	if len(r.Mobile) != MobileNumberLength {
		return ErrInvalidRecharge
	}
	for _, c := range r.Mobile {
		if c < '0' || c > '9' {
			return ErrInvalidRecharge
		}
	}
	if !slices.Contains(RechargeOperators, r.Operator) {
		return ErrInvalidRecharge
	}
	return nil
}
