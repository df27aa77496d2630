package metrics

import "time"

// Collector 收集錢包操作的 metrics
// 實作可以輸出到不同後端 (Prometheus 等)
type Collector interface {
	// RecordOperation 記錄一次操作，outcome 為 "ok" 或錯誤代碼
	RecordOperation(operation, outcome string, duration time.Duration)
	// RecordNotification 記錄一次提款通知的結果
	RecordNotification(success bool, duration time.Duration)
	// RecordNotificationDropped 通知佇列已滿被丟棄
	RecordNotificationDropped()
	// SetPendingWithdrawals 目前 Pending 的提款申請數
	SetPendingWithdrawals(n int)
}

// NoOpCollector 不做任何事，未設定 metrics 時使用
type NoOpCollector struct{}

func (NoOpCollector) RecordOperation(operation, outcome string, duration time.Duration) {}

func (NoOpCollector) RecordNotification(success bool, duration time.Duration) {}

func (NoOpCollector) RecordNotificationDropped() {}

func (NoOpCollector) SetPendingWithdrawals(n int) {}

var _ Collector = NoOpCollector{}
