package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/JoeShih716/go-mem-wallet/internal/app/core/usecase"
)

// LogNotifier 未設定 SMTP 時使用，只寫 log
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: log.Named("notify")}
}

func (n *LogNotifier) NotifyWithdrawal(_ context.Context, accountID string, amount int64) error {
	n.log.Info(WithdrawalSubject,
		zap.String("account_id", accountID),
		zap.Int64("amount", amount))
	return nil
}

var _ usecase.Notifier = (*LogNotifier)(nil)
