package domain

import "github.com/google/uuid"

// EntryType 帳務日誌類型
// 為了節省空間，使用 uint8
type EntryType uint8

const (
	EntryTypeSignUp EntryType = iota + 1
	EntryTypeDeposit
	EntryTypeWithdraw
	EntryTypeTransfer
	EntryTypeRecharge
	EntryTypeSubmit
	EntryTypeApprove
	EntryTypeReject
	EntryTypeStatus
	EntryTypeProfile
)

var entryTypeNames = map[EntryType]string{
	EntryTypeSignUp:   "signup",
	EntryTypeDeposit:  "deposit",
	EntryTypeWithdraw: "withdraw",
	EntryTypeTransfer: "transfer",
	EntryTypeRecharge: "recharge",
	EntryTypeSubmit:   "submit",
	EntryTypeApprove:  "approve",
	EntryTypeReject:   "reject",
	EntryTypeStatus:   "status",
	EntryTypeProfile:  "profile",
}

func (t EntryType) String() string {
	if name, ok := entryTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// JournalEntry 每筆已提交的異動寫一筆，寫入 WAL
// 不可包含任何密碼或雜湊
type JournalEntry struct {
	// Sequence: 由錢包引擎分配的遞增序號 (1, 2, 3...)
	Sequence uint64
	// From, To: 帳戶 ID，依類型可能只有其中一個
	From string `json:",omitempty"`
	To   string `json:",omitempty"`
	// Amount: 金額
	Amount int64 `json:",omitempty"`
	// RequestID: 提款申請編號
	RequestID uint64 `json:",omitempty"`
	// Detail: 補充資訊，例如新的帳戶狀態、儲值號碼或存款管道
	Detail string `json:",omitempty"`
	// CreatedAt: 異動時間 (UnixNano)
	CreatedAt int64
	// EntryID: 外部追蹤號 (UUID)
	EntryID uuid.UUID
	Type    EntryType
}
