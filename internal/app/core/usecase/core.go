package usecase

import (
	"bytes"
	"context"
	"crypto/subtle"
	"errors"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/JoeShih716/go-mem-wallet/internal/app/core/domain"
	"github.com/JoeShih716/go-mem-wallet/pkg/async"
	"github.com/JoeShih716/go-mem-wallet/pkg/metrics"
)

// AdminCredential 管理員帳密，由設定檔提供
type AdminCredential struct {
	User     string
	Password string
}

// Dispatcher 背景執行通知任務，不可阻塞呼叫端
type Dispatcher interface {
	Dispatch(task async.Task) error
}

// CoreUseCase 是核心業務邏輯層
//
// 在 Wallet 之上負責: 管理員驗證、提款通知、匯出、metrics 與 log
type CoreUseCase struct {
	wallet     Wallet
	admin      AdminCredential
	notifier   Notifier
	dispatcher Dispatcher
	exporters  ExporterRegistry
	metrics    metrics.Collector
	logger     *zap.Logger
}

// CoreOption 設定 CoreUseCase 的選項
type CoreOption func(*CoreUseCase)

// WithNotifier 提款送出後透過 dispatcher 在背景寄送通知
func WithNotifier(notifier Notifier, dispatcher Dispatcher) CoreOption {
	return func(c *CoreUseCase) {
		c.notifier = notifier
		c.dispatcher = dispatcher
	}
}

// WithExporters 設定匯出格式，未設定時 Export 一律回傳 domain.ErrUnknownFormat
func WithExporters(registry ExporterRegistry) CoreOption {
	return func(c *CoreUseCase) {
		c.exporters = registry
	}
}

// WithMetrics 設定 metrics collector
func WithMetrics(collector metrics.Collector) CoreOption {
	return func(c *CoreUseCase) {
		c.metrics = collector
	}
}

// WithCoreLogger 設定 logger
func WithCoreLogger(logger *zap.Logger) CoreOption {
	return func(c *CoreUseCase) {
		c.logger = logger
	}
}

func NewCoreUseCase(wallet Wallet, admin AdminCredential, opts ...CoreOption) *CoreUseCase {
	c := &CoreUseCase{
		wallet:    wallet,
		admin:     admin,
		metrics:   metrics.NoOpCollector{},
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("core")
	c.metrics.SetPendingWithdrawals(c.wallet.Stats(context.Background()).Pending)
	return c
}

// AuthorizeAdmin 驗證管理員帳密 (constant-time 比對)
func (c *CoreUseCase) AuthorizeAdmin(user, password string) error {
	if c.admin.User == "" || c.admin.Password == "" {
		return domain.ErrAdminUnauthorized
	}
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(c.admin.User))
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(c.admin.Password))
	if userOK&passOK != 1 {
		c.logger.Warn("admin authorization failed", zap.String("user", user))
		return domain.ErrAdminUnauthorized
	}
	return nil
}

// SignUp 註冊
func (c *CoreUseCase) SignUp(ctx context.Context, id, name, credential string) (account domain.Account, err error) {
	defer c.observe("sign_up", time.Now(), &err, zap.String("account_id", id))
	return c.wallet.CreateAccount(ctx, id, name, credential)
}

// Login 登入 (驗證帳密與帳戶狀態)
func (c *CoreUseCase) Login(ctx context.Context, id, credential string) (account domain.Account, err error) {
	defer c.observe("login", time.Now(), &err, zap.String("account_id", id))
	return c.wallet.Authenticate(ctx, id, credential)
}

// GetAccount 取得帳戶資料
func (c *CoreUseCase) GetAccount(ctx context.Context, id string) (domain.Account, error) {
	return c.wallet.GetAccount(ctx, id)
}

// Deposit 存款
func (c *CoreUseCase) Deposit(ctx context.Context, id string, amount int64, method string) (balance int64, err error) {
	defer c.observe("deposit", time.Now(), &err,
		zap.String("account_id", id), zap.Int64("amount", amount), zap.String("method", method))
	return c.wallet.Deposit(ctx, id, amount, method)
}

// Transfer 轉帳，回傳轉出方餘額
func (c *CoreUseCase) Transfer(ctx context.Context, fromID, toID string, amount int64) (balance int64, err error) {
	defer c.observe("transfer", time.Now(), &err,
		zap.String("from", fromID), zap.String("to", toID), zap.Int64("amount", amount))
	return c.wallet.Transfer(ctx, fromID, toID, amount)
}

// Recharge 手機儲值
func (c *CoreUseCase) Recharge(ctx context.Context, id string, recharge domain.Recharge) (balance int64, err error) {
	defer c.observe("recharge", time.Now(), &err,
		zap.String("account_id", id), zap.String("operator", recharge.Operator), zap.Int64("amount", recharge.Amount))
	return c.wallet.Recharge(ctx, id, recharge)
}

// UpdateProfile 更新名稱或密碼
func (c *CoreUseCase) UpdateProfile(ctx context.Context, id string, update domain.ProfileUpdate) (account domain.Account, err error) {
	defer c.observe("update_profile", time.Now(), &err, zap.String("account_id", id))
	return c.wallet.UpdateProfile(ctx, id, update)
}

// Withdraw 送出提款申請，成功後在背景寄送通知
//
// 通知失敗只記錄 log 與 metrics，不影響申請結果
func (c *CoreUseCase) Withdraw(ctx context.Context, accountID string, amount int64) (requestID uint64, err error) {
	defer c.observe("withdraw", time.Now(), &err, zap.String("account_id", accountID), zap.Int64("amount", amount))

	requestID, err = c.wallet.Submit(ctx, accountID, amount)
	if err != nil {
		return 0, err
	}
	c.refreshPending(ctx)
	c.notify(requestID, accountID, amount)
	return requestID, nil
}

// History 帳戶的提款紀錄 (由舊到新)
func (c *CoreUseCase) History(ctx context.Context, accountID string) ([]domain.WithdrawalRequest, error) {
	if _, err := c.wallet.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	return slices.Collect(c.wallet.History(accountID)), nil
}

// SetStatus 變更帳戶狀態 (管理員)
func (c *CoreUseCase) SetStatus(ctx context.Context, id string, status domain.AccountStatus) (err error) {
	defer c.observe("set_status", time.Now(), &err, zap.String("account_id", id), zap.String("status", string(status)))
	return c.wallet.SetStatus(ctx, id, status)
}

// Approve 核准提款申請 (管理員)
func (c *CoreUseCase) Approve(ctx context.Context, requestID uint64) (request domain.WithdrawalRequest, err error) {
	defer c.observe("approve", time.Now(), &err, zap.Uint64("request_id", requestID))
	request, err = c.wallet.Approve(ctx, requestID)
	if err == nil {
		c.refreshPending(ctx)
	}
	return request, err
}

// Reject 駁回提款申請並退款 (管理員)
func (c *CoreUseCase) Reject(ctx context.Context, requestID uint64) (request domain.WithdrawalRequest, err error) {
	defer c.observe("reject", time.Now(), &err, zap.Uint64("request_id", requestID))
	request, err = c.wallet.Reject(ctx, requestID)
	if err == nil {
		c.refreshPending(ctx)
	}
	return request, err
}

// Stats 提款申請統計 (管理員)
func (c *CoreUseCase) Stats(ctx context.Context) domain.QueueStats {
	return c.wallet.Stats(ctx)
}

// Dashboard 管理後台總覽 (管理員)
func (c *CoreUseCase) Dashboard(ctx context.Context) domain.Dashboard {
	return c.wallet.Dashboard(ctx)
}

// ListRequests 依條件列出提款申請 (管理員)
func (c *CoreUseCase) ListRequests(_ context.Context, filter domain.WithdrawalFilter) []domain.WithdrawalRequest {
	return slices.Collect(c.wallet.Requests(filter))
}

// Export 將提款申請匯出為指定格式 (管理員)
//
// 參數:
//
//	ctx: 上下文
//	format: string - 匯出格式 ("csv", "xlsx")
//	filter: domain.WithdrawalFilter - 篩選條件
//
// 回傳值:
//
//	[]byte: 檔案內容
//	string: Content-Type
//	error: 格式不支援時回傳 domain.ErrUnknownFormat
func (c *CoreUseCase) Export(ctx context.Context, format string, filter domain.WithdrawalFilter) (data []byte, contentType string, err error) {
	defer c.observe("export", time.Now(), &err, zap.String("format", format))

	if c.exporters == nil {
		return nil, "", domain.ErrUnknownFormat
	}
	exporter, err := c.exporters.Get(format)
	if err != nil {
		return nil, "", err
	}
	var buf bytes.Buffer
	if err := exporter.Export(&buf, c.ListRequests(ctx, filter)); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), exporter.ContentType(), nil
}

// notify 將通知丟到背景執行，佇列滿或 dispatcher 已關閉時直接放棄
func (c *CoreUseCase) notify(requestID uint64, accountID string, amount int64) {
	if c.notifier == nil || c.dispatcher == nil {
		return
	}
	log := c.logger.With(zap.Uint64("request_id", requestID), zap.String("account_id", accountID))

	err := c.dispatcher.Dispatch(func(ctx context.Context) error {
		start := time.Now()
		err := c.notifier.NotifyWithdrawal(ctx, accountID, amount)
		c.metrics.RecordNotification(err == nil, time.Since(start))
		if err != nil {
			log.Warn("withdrawal notification failed", zap.Error(err))
		}
		return err
	})
	if err != nil {
		if errors.Is(err, async.ErrQueueFull) {
			c.metrics.RecordNotificationDropped()
		}
		log.Warn("withdrawal notification not queued", zap.Error(err))
	}
}

func (c *CoreUseCase) refreshPending(ctx context.Context) {
	c.metrics.SetPendingWithdrawals(c.wallet.Stats(ctx).Pending)
}

// observe 記錄 metrics，失敗時寫 log
// 業務錯誤 (餘額不足等) 只記 debug，儲存失敗或未知錯誤記 error
func (c *CoreUseCase) observe(operation string, start time.Time, errp *error, fields ...zap.Field) {
	err := *errp
	code := domain.Code(err)
	c.metrics.RecordOperation(operation, code, time.Since(start))

	switch {
	case err == nil:
		c.logger.Debug(operation, fields...)
	case code == "internal" || code == "persist_failed":
		c.logger.Error(operation+" failed", append(fields, zap.Error(err))...)
	default:
		c.logger.Debug(operation+" rejected", append(fields, zap.String("code", code))...)
	}
}
