package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound 找不到資料 (帳戶或提款申請)
	ErrNotFound = errors.New("not found")

	// ErrAccountNotFound 找不到帳戶
	ErrAccountNotFound = fmt.Errorf("account %w", ErrNotFound)

	// ErrRequestNotFound 找不到提款申請
	ErrRequestNotFound = fmt.Errorf("withdrawal request %w", ErrNotFound)

	// ErrDuplicateAccount 帳戶已存在
	ErrDuplicateAccount = errors.New("account already exists")

	// ErrInvalidAccount 註冊資料不完整 (帳號或密碼為空)
	ErrInvalidAccount = errors.New("invalid account data")

	// ErrBadCredential 密碼錯誤
	ErrBadCredential = errors.New("bad credential")

	// ErrAccountBlocked 帳戶已停用
	ErrAccountBlocked = errors.New("account blocked")

	// ErrAccountNotApproved 帳戶尚未審核通過
	ErrAccountNotApproved = errors.New("account not approved")

	// ErrInvalidAmount 金額不合法 (非正數或超出上下限)
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInsufficientFunds 餘額不足
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvalidState 提款申請狀態不允許此操作
	ErrInvalidState = errors.New("invalid state")

	// ErrInvalidStatus 帳戶狀態值不合法
	ErrInvalidStatus = errors.New("invalid account status")

	// ErrInvalidProfile 個人資料更新內容不合法
	ErrInvalidProfile = errors.New("invalid profile update")

	// ErrInvalidRecharge 手機號碼或電信商不合法
	ErrInvalidRecharge = errors.New("invalid recharge")

	// ErrInvalidDepositMethod 不支援的存款管道
	ErrInvalidDepositMethod = errors.New("invalid deposit method")

	// ErrSameAccount 轉出與轉入帳戶相同
	ErrSameAccount = errors.New("cannot transfer to the same account")

	// ErrPersistFailed 寫入儲存層失敗，記憶體狀態未變更
	ErrPersistFailed = errors.New("persist failed")

	// ErrAdminUnauthorized 管理員帳密錯誤
	ErrAdminUnauthorized = errors.New("admin unauthorized")

	// ErrUnknownFormat 不支援的匯出格式
	ErrUnknownFormat = errors.New("unknown export format")
)

// codes 錯誤對應的代碼，用於 metrics label 與傳輸層
var codes = []struct {
	err  error
	code string
}{
	{ErrNotFound, "not_found"},
	{ErrDuplicateAccount, "duplicate_account"},
	{ErrInvalidAccount, "invalid_account"},
	{ErrBadCredential, "bad_credential"},
	{ErrAccountBlocked, "account_blocked"},
	{ErrAccountNotApproved, "account_not_approved"},
	{ErrInvalidAmount, "invalid_amount"},
	{ErrInsufficientFunds, "insufficient_funds"},
	{ErrInvalidState, "invalid_state"},
	{ErrInvalidStatus, "invalid_status"},
	{ErrInvalidProfile, "invalid_profile"},
	{ErrInvalidRecharge, "invalid_recharge"},
	{ErrInvalidDepositMethod, "invalid_deposit_method"},
	{ErrSameAccount, "same_account"},
	{ErrPersistFailed, "persist_failed"},
	{ErrAdminUnauthorized, "admin_unauthorized"},
	{ErrUnknownFormat, "unknown_format"},
}

// Code 回傳錯誤的穩定代碼，nil 回傳 "ok"，未知錯誤回傳 "internal"
func Code(err error) string {
	if err == nil {
		return "ok"
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "internal"
}
