package notify

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/JoeShih716/go-mem-wallet/internal/app/core/usecase"
)

// ErrCircuitOpen 斷路器開啟中，通知直接略過
var ErrCircuitOpen = errors.New("notifier circuit open")

// BreakerConfig 斷路器設定
type BreakerConfig struct {
	// MaxRequests half-open 時允許通過的請求數
	MaxRequests uint32 `yaml:"max_requests"`
	// Interval closed 狀態下重置計數的週期，0 表示不重置
	Interval time.Duration `yaml:"interval"`
	// Timeout open 狀態維持多久後進入 half-open
	Timeout time.Duration `yaml:"timeout"`
	// ConsecutiveFailures 連續失敗幾次後開啟
	ConsecutiveFailures uint32 `yaml:"consecutive_failures"`
}

// DefaultBreakerConfig 預設: 連續 5 次失敗開啟，30 秒後嘗試
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:         1,
		Timeout:             30 * time.Second,
		ConsecutiveFailures: 5,
	}
}

// Breaker 以 gobreaker 包裝任一 Notifier，SMTP 持續失敗時不再嘗試連線
type Breaker struct {
	next usecase.Notifier
	cb   *gobreaker.CircuitBreaker
}

// NewBreaker 建立斷路器
//
// 參數:
//
//	name: string - 斷路器名稱 (log 用)
//	next: usecase.Notifier - 實際寄送通知的 Notifier
//	cfg: BreakerConfig - 斷路器設定
//	log: *zap.Logger - 記錄狀態變化
//
// 回傳值:
//
//	*Breaker: 包裝後的 Notifier
func NewBreaker(name string, next usecase.Notifier, cfg BreakerConfig, log *zap.Logger) *Breaker {
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = DefaultBreakerConfig().ConsecutiveFailures
	}
	threshold := cfg.ConsecutiveFailures
	log = log.Named("breaker")

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("notifier circuit state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}
	return &Breaker{
		next: next,
		cb:   gobreaker.NewCircuitBreaker(settings),
	}
}

func (b *Breaker) NotifyWithdrawal(ctx context.Context, accountID string, amount int64) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.next.NotifyWithdrawal(ctx, accountID, amount)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrCircuitOpen
	}
	return err
}

// State 目前斷路器狀態 (closed, half-open, open)
func (b *Breaker) State() string {
	return b.cb.State().String()
}

var _ usecase.Notifier = (*Breaker)(nil)
