package export

import (
	"strconv"
	"time"

	"github.com/JoeShih716/go-mem-wallet/internal/app/core/domain"
	"github.com/JoeShih716/go-mem-wallet/internal/app/core/usecase"
)

// TimeLayout 匯出檔案的時間格式
const TimeLayout = "2006-01-02 15:04:05"

// Header 匯出檔案的欄位
var Header = []string{"ID", "User", "Amount", "Status", "Created At", "Decided At"}

// Registry 依格式名稱取得 Exporter
type Registry map[string]usecase.Exporter

// NewRegistry 註冊所有內建格式
func NewRegistry(exporters ...usecase.Exporter) Registry {
	if len(exporters) == 0 {
		exporters = []usecase.Exporter{NewCSV(), NewXLSX()}
	}
	r := make(Registry, len(exporters))
	for _, e := range exporters {
		r[e.Format()] = e
	}
	return r
}

// Get 取得 Exporter，不支援時回傳 domain.ErrUnknownFormat
func (r Registry) Get(format string) (usecase.Exporter, error) {
	e, ok := r[format]
	if !ok {
		return nil, domain.ErrUnknownFormat
	}
	return e, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(TimeLayout)
}

// row 將申請轉為字串欄位 (CSV 用)
func row(w domain.WithdrawalRequest) []string {
	return []string{
		strconv.FormatUint(w.ID, 10),
		w.AccountID,
		strconv.FormatInt(w.Amount, 10),
		string(w.Status),
		formatTime(w.CreatedAt),
		formatTime(w.DecidedAt),
	}
}
