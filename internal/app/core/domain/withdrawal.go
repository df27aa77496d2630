package domain

import (
	"strings"
	"time"
)

// WithdrawalStatus 提款申請狀態
type WithdrawalStatus string

const (
	WithdrawalStatusPending  WithdrawalStatus = "Pending"
	WithdrawalStatusApproved WithdrawalStatus = "Approved"
	WithdrawalStatusRejected WithdrawalStatus = "Rejected"
)

// transitions 狀態機: Pending -> {Approved, Rejected}，Approved/Rejected 為終止狀態
var transitions = map[WithdrawalStatus][]WithdrawalStatus{
	WithdrawalStatusPending: {WithdrawalStatusApproved, WithdrawalStatusRejected},
}

// IsTerminal 是否為終止狀態
func (s WithdrawalStatus) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// Valid 是否為合法的提款狀態
func (s WithdrawalStatus) Valid() bool {
	switch s {
	case WithdrawalStatusPending, WithdrawalStatusApproved, WithdrawalStatusRejected:
		return true
	}
	return false
}

// CanTransition 是否允許從 s 轉換到 to
func (s WithdrawalStatus) CanTransition(to WithdrawalStatus) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// ParseWithdrawalStatus 解析字串 (不分大小寫)
func ParseWithdrawalStatus(s string) (WithdrawalStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pending":
		return WithdrawalStatusPending, nil
	case "approved":
		return WithdrawalStatusApproved, nil
	case "rejected":
		return WithdrawalStatusRejected, nil
	}
	return "", ErrInvalidState
}

// WithdrawalRequest 提款申請
//
// 送出時款項已從餘額扣除 (escrow)，核准不再異動餘額，駁回則退款
type WithdrawalRequest struct {
	ID        uint64
	AccountID string
	Amount    int64
	Status    WithdrawalStatus
	CreatedAt time.Time
	// DecidedAt 管理員核准/駁回的時間，Pending 時為零值
	DecidedAt time.Time
}

func NewWithdrawalRequest(id uint64, accountID string, amount int64, now time.Time) *WithdrawalRequest {
	return &WithdrawalRequest{
		ID:        id,
		AccountID: accountID,
		Amount:    amount,
		Status:    WithdrawalStatusPending,
		CreatedAt: now,
	}
}

// Transition 轉換狀態，不允許的轉換回傳 ErrInvalidState
func (w *WithdrawalRequest) Transition(to WithdrawalStatus, now time.Time) error {
	if w.Status.IsTerminal() || !w.Status.CanTransition(to) {
		return ErrInvalidState
	}
	w.Status = to
	w.DecidedAt = now
	return nil
}

// Approve 核准
func (w *WithdrawalRequest) Approve(now time.Time) error {
	return w.Transition(WithdrawalStatusApproved, now)
}

// Reject 駁回，呼叫端負責退款
func (w *WithdrawalRequest) Reject(now time.Time) error {
	return w.Transition(WithdrawalStatusRejected, now)
}

func (w *WithdrawalRequest) Clone() *WithdrawalRequest {
	c := *w
	return &c
}

// WithdrawalFilter 查詢條件，空值表示不篩選
type WithdrawalFilter struct {
	AccountID string
	Status    WithdrawalStatus
}

// Match 是否符合篩選條件
func (f WithdrawalFilter) Match(w *WithdrawalRequest) bool {
	if f.AccountID != "" && w.AccountID != f.AccountID {
		return false
	}
	if f.Status != "" && w.Status != f.Status {
		return false
	}
	return true
}

// QueueStats 提款申請統計
type QueueStats struct {
	Total    int
	Pending  int
	Approved int
	Rejected int
}

// Add 累計一筆申請
func (s *QueueStats) Add(status WithdrawalStatus) {
	s.Total++
	switch status {
	case WithdrawalStatusPending:
		s.Pending++
	case WithdrawalStatusApproved:
		s.Approved++
	case WithdrawalStatusRejected:
		s.Rejected++
	}
}

// Dashboard 管理後台總覽
type Dashboard struct {
	Accounts     int
	TotalBalance int64
	Withdrawals  QueueStats
}
