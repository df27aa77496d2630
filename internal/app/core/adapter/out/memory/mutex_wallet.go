package memory

import (
	"cmp"
	"context"
	"fmt"
	"iter"
	"maps"
	"math"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JoeShih716/go-mem-wallet/internal/app/core/domain"
	"github.com/JoeShih716/go-mem-wallet/internal/app/core/usecase"
)

// MutexWallet 是一個使用單一 Mutex 實現的錢包 (帳本 + 提款佇列)
//
// 結構:
//
//	accounts: 帳戶資料 Map
//	withdrawals: 提款申請，依建立順序排列
//	mu: 保護上述兩者，讀後寫的操作全程持有 (包含寫入 Store)
//	store: 每次異動後整份覆寫
//	journal: Write-Ahead Log，記錄已提交的異動
type MutexWallet struct {
	mu sync.RWMutex

	accounts      map[string]*domain.Account
	withdrawals   []*domain.WithdrawalRequest
	requestIndex  map[uint64]int
	nextRequestID uint64
	sequence      uint64

	store   usecase.Store
	journal usecase.Journal
	hasher  usecase.CredentialHasher
	policy  domain.Policy
	logger  *zap.Logger
	now     func() time.Time
}

// Option 設定 MutexWallet 的選項
type Option func(*MutexWallet)

// WithJournal 設定帳務日誌
func WithJournal(journal usecase.Journal) Option {
	return func(m *MutexWallet) {
		m.journal = journal
	}
}

// WithJournalSequence 從 WAL 最後一筆的序號接續
func WithJournalSequence(last uint64) Option {
	return func(m *MutexWallet) {
		m.sequence = last
	}
}

// WithLogger 設定 logger
func WithLogger(logger *zap.Logger) Option {
	return func(m *MutexWallet) {
		m.logger = logger
	}
}

// WithClock 設定時間來源 (測試用)
func WithClock(now func() time.Time) Option {
	return func(m *MutexWallet) {
		m.now = now
	}
}

// NewMutexWallet 從 Store 載入資料並建立 MutexWallet
//
// 參數:
//
//	ctx: 上下文
//	store: 儲存層
//	hasher: 密碼雜湊
//	policy: 帳務規則
//	opts: 選項
//
// 回傳:
//
//	*MutexWallet: MutexWallet 實例
//	error: 載入失敗
func NewMutexWallet(ctx context.Context, store usecase.Store, hasher usecase.CredentialHasher, policy domain.Policy, opts ...Option) (*MutexWallet, error) {
	m := &MutexWallet{
		store:  store,
		hasher: hasher,
		policy: policy,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}

	snapshot, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load wallet store: %w", err)
	}
	m.restore(snapshot)

	m.logger.Info("wallet loaded",
		zap.Int("accounts", len(m.accounts)),
		zap.Int("withdrawals", len(m.withdrawals)),
		zap.Uint64("next_request_id", m.nextRequestID))
	return m, nil
}

// restore 以 Snapshot 初始化記憶體狀態，只有 NewMutexWallet 呼叫，無需 Lock
func (m *MutexWallet) restore(snapshot *usecase.Snapshot) {
	m.accounts = make(map[string]*domain.Account, len(snapshot.Accounts))
	for id, account := range snapshot.Accounts {
		m.accounts[id] = account
	}

	m.withdrawals = slices.Clone(snapshot.Withdrawals)
	slices.SortStableFunc(m.withdrawals, func(a, b *domain.WithdrawalRequest) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	m.requestIndex = make(map[uint64]int, len(m.withdrawals))
	m.nextRequestID = 1
	for i, w := range m.withdrawals {
		m.requestIndex[w.ID] = i
		if w.ID >= m.nextRequestID {
			m.nextRequestID = w.ID + 1
		}
	}
}

// CreateAccount 註冊新帳戶
func (m *MutexWallet) CreateAccount(ctx context.Context, id, name, credential string) (domain.Account, error) {
	if strings.TrimSpace(id) == "" || credential == "" {
		return domain.Account{}, domain.ErrInvalidAccount
	}
	// bcrypt 很慢，不在鎖內執行
	hash, err := m.hasher.Hash(credential)
	if err != nil {
		return domain.Account{}, fmt.Errorf("hash credential: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var created *domain.Account
	err = m.update(ctx, func(tx *walletTx) error {
		if _, ok := m.accounts[id]; ok {
			return domain.ErrDuplicateAccount
		}
		created = domain.NewAccount(id, name, hash, m.policy.InitialStatus(), tx.now)
		tx.accounts[id] = created
		tx.record(&domain.JournalEntry{Type: domain.EntryTypeSignUp, To: id, Detail: string(created.Status)})
		return nil
	})
	if err != nil {
		return domain.Account{}, err
	}
	return *created, nil
}

// Authenticate 驗證帳密與帳戶狀態
func (m *MutexWallet) Authenticate(ctx context.Context, id, credential string) (domain.Account, error) {
	account, err := m.GetAccount(ctx, id)
	if err != nil {
		return domain.Account{}, err
	}
	if !m.hasher.Verify(account.CredentialHash, credential) {
		return domain.Account{}, domain.ErrBadCredential
	}
	switch account.Status {
	case domain.AccountStatusBlocked:
		return domain.Account{}, domain.ErrAccountBlocked
	case domain.AccountStatusPending:
		if m.policy.RequireApproval {
			return domain.Account{}, domain.ErrAccountNotApproved
		}
	}
	return account, nil
}

// GetAccount 取得帳戶副本
func (m *MutexWallet) GetAccount(ctx context.Context, id string) (domain.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	account, ok := m.accounts[id]
	if !ok {
		return domain.Account{}, domain.ErrAccountNotFound
	}
	return *account, nil
}

// Deposit 存款，金額需在 Policy 存款上下限內，method 記入 journal
func (m *MutexWallet) Deposit(ctx context.Context, id string, amount int64, method string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var balance int64
	err := m.update(ctx, func(tx *walletTx) error {
		account, err := tx.account(id)
		if err != nil {
			return err
		}
		if err := domain.ValidateDepositMethod(method); err != nil {
			return err
		}
		if err := m.policy.ValidateDeposit(amount); err != nil {
			return err
		}
		if err := account.Deposit(amount); err != nil {
			return err
		}
		balance = account.Balance
		tx.record(&domain.JournalEntry{Type: domain.EntryTypeDeposit, To: id, Amount: amount, Detail: method})
		return nil
	})
	return balance, err
}

// WithdrawDebit 純扣款，檢查提款上下限與餘額
func (m *MutexWallet) WithdrawDebit(ctx context.Context, id string, amount int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var balance int64
	err := m.update(ctx, func(tx *walletTx) error {
		account, err := tx.debitWithdraw(id, amount)
		if err != nil {
			return err
		}
		balance = account.Balance
		tx.record(&domain.JournalEntry{Type: domain.EntryTypeWithdraw, From: id, Amount: amount})
		return nil
	})
	return balance, err
}

// Transfer 轉帳，扣款與入帳一起提交
func (m *MutexWallet) Transfer(ctx context.Context, fromID, toID string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, domain.ErrInvalidAmount
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var balance int64
	err := m.update(ctx, func(tx *walletTx) error {
		from, err := tx.account(fromID)
		if err != nil {
			return err
		}
		to, err := tx.account(toID)
		if err != nil {
			return err
		}
		if fromID == toID {
			return domain.ErrSameAccount
		}
		if err := from.Withdraw(amount); err != nil {
			return err
		}
		if err := to.Deposit(amount); err != nil {
			return err
		}
		balance = from.Balance
		tx.record(&domain.JournalEntry{Type: domain.EntryTypeTransfer, From: fromID, To: toID, Amount: amount})
		return nil
	})
	return balance, err
}

// Recharge 手機儲值 (從餘額扣款)
func (m *MutexWallet) Recharge(ctx context.Context, id string, recharge domain.Recharge) (int64, error) {
	if err := recharge.Validate(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var balance int64
	err := m.update(ctx, func(tx *walletTx) error {
		account, err := tx.account(id)
		if err != nil {
			return err
		}
		if err := account.Withdraw(recharge.Amount); err != nil {
			return err
		}
		balance = account.Balance
		tx.record(&domain.JournalEntry{
			Type:   domain.EntryTypeRecharge,
			From:   id,
			Amount: recharge.Amount,
			Detail: recharge.Operator + " " + recharge.Mobile,
		})
		return nil
	})
	return balance, err
}

// SetStatus 變更帳戶狀態
func (m *MutexWallet) SetStatus(ctx context.Context, id string, status domain.AccountStatus) error {
	if !status.Valid() {
		return domain.ErrInvalidStatus
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	return m.update(ctx, func(tx *walletTx) error {
		account, err := tx.account(id)
		if err != nil {
			return err
		}
		account.Status = status
		account.UpdatedAt = tx.now
		tx.record(&domain.JournalEntry{Type: domain.EntryTypeStatus, To: id, Detail: string(status)})
		return nil
	})
}

// UpdateProfile 更新名稱或密碼，帳戶 ID 保持不變
func (m *MutexWallet) UpdateProfile(ctx context.Context, id string, update domain.ProfileUpdate) (domain.Account, error) {
	if update.Empty() {
		return domain.Account{}, domain.ErrInvalidProfile
	}
	if update.Name != nil && strings.TrimSpace(*update.Name) == "" {
		return domain.Account{}, domain.ErrInvalidProfile
	}

	var hash string
	if update.Credential != nil {
		if *update.Credential == "" {
			return domain.Account{}, domain.ErrInvalidProfile
		}
		var err error
		if hash, err = m.hasher.Hash(*update.Credential); err != nil {
			return domain.Account{}, fmt.Errorf("hash credential: %w", err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var updated *domain.Account
	err := m.update(ctx, func(tx *walletTx) error {
		account, err := tx.account(id)
		if err != nil {
			return err
		}
		var fields []string
		if update.Name != nil {
			account.Name = *update.Name
			fields = append(fields, "name")
		}
		if update.Credential != nil {
			account.CredentialHash = hash
			fields = append(fields, "credential")
		}
		account.UpdatedAt = tx.now
		updated = account
		tx.record(&domain.JournalEntry{Type: domain.EntryTypeProfile, To: id, Detail: strings.Join(fields, ",")})
		return nil
	})
	if err != nil {
		return domain.Account{}, err
	}
	return *updated, nil
}

// Dashboard 總覽統計
func (m *MutexWallet) Dashboard(ctx context.Context) domain.Dashboard {
	m.mu.RLock()
	defer m.mu.RUnlock()

	dashboard := domain.Dashboard{Accounts: len(m.accounts)}
	for _, account := range m.accounts {
		// 總和超出 int64 時固定為 MaxInt64
		if account.Balance > math.MaxInt64-dashboard.TotalBalance {
			dashboard.TotalBalance = math.MaxInt64
			continue
		}
		dashboard.TotalBalance += account.Balance
	}
	for _, w := range m.withdrawals {
		dashboard.Withdrawals.Add(w.Status)
	}
	return dashboard
}

// Submit 送出提款申請
//
// 先扣款 (escrow) 再建立 Pending 申請，兩者一起提交；扣款失敗時不建立申請
func (m *MutexWallet) Submit(ctx context.Context, accountID string, amount int64) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var requestID uint64
	err := m.update(ctx, func(tx *walletTx) error {
		if _, err := tx.debitWithdraw(accountID, amount); err != nil {
			return err
		}
		request := tx.appendRequest(accountID, amount)
		requestID = request.ID
		tx.record(&domain.JournalEntry{
			Type:      domain.EntryTypeSubmit,
			From:      accountID,
			Amount:    amount,
			RequestID: request.ID,
		})
		return nil
	})
	return requestID, err
}

// Approve 核准提款申請，款項已於送出時扣除
func (m *MutexWallet) Approve(ctx context.Context, requestID uint64) (domain.WithdrawalRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var approved *domain.WithdrawalRequest
	err := m.update(ctx, func(tx *walletTx) error {
		request, err := tx.request(requestID)
		if err != nil {
			return err
		}
		if err := request.Approve(tx.now); err != nil {
			return err
		}
		approved = request
		tx.record(&domain.JournalEntry{
			Type:      domain.EntryTypeApprove,
			From:      request.AccountID,
			Amount:    request.Amount,
			RequestID: request.ID,
		})
		return nil
	})
	if err != nil {
		return domain.WithdrawalRequest{}, err
	}
	return *approved, nil
}

// Reject 駁回提款申請並退款，狀態與退款一起提交
func (m *MutexWallet) Reject(ctx context.Context, requestID uint64) (domain.WithdrawalRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var rejected *domain.WithdrawalRequest
	err := m.update(ctx, func(tx *walletTx) error {
		request, err := tx.request(requestID)
		if err != nil {
			return err
		}
		if err := request.Reject(tx.now); err != nil {
			return err
		}
		owner, err := tx.account(request.AccountID)
		if err != nil {
			return err
		}
		if err := owner.Deposit(request.Amount); err != nil {
			return err
		}
		rejected = request
		tx.record(&domain.JournalEntry{
			Type:      domain.EntryTypeReject,
			To:        request.AccountID,
			Amount:    request.Amount,
			RequestID: request.ID,
		})
		return nil
	})
	if err != nil {
		return domain.WithdrawalRequest{}, err
	}
	return *rejected, nil
}

// History 指定帳戶的提款紀錄
func (m *MutexWallet) History(accountID string) iter.Seq[domain.WithdrawalRequest] {
	return m.Requests(domain.WithdrawalFilter{AccountID: accountID})
}

// Requests 依條件列出提款申請
//
// 每次迭代都在鎖內複製符合條件的資料，再於鎖外逐筆回傳，
// 因此可以重複迭代，迭代中呼叫錢包的其他方法也不會死鎖
func (m *MutexWallet) Requests(filter domain.WithdrawalFilter) iter.Seq[domain.WithdrawalRequest] {
	return func(yield func(domain.WithdrawalRequest) bool) {
		for _, request := range m.collect(filter) {
			if !yield(request) {
				return
			}
		}
	}
}

func (m *MutexWallet) collect(filter domain.WithdrawalFilter) []domain.WithdrawalRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()

	requests := make([]domain.WithdrawalRequest, 0)
	for _, w := range m.withdrawals {
		if filter.Match(w) {
			requests = append(requests, *w)
		}
	}
	return requests
}

// Stats 提款申請統計
func (m *MutexWallet) Stats(ctx context.Context) domain.QueueStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var stats domain.QueueStats
	for _, w := range m.withdrawals {
		stats.Add(w.Status)
	}
	return stats
}

// update 在暫存交易上執行 fn，成功後寫入 Store 再替換記憶體狀態
// 呼叫端必須持有寫鎖
func (m *MutexWallet) update(ctx context.Context, fn func(tx *walletTx) error) error {
	tx := &walletTx{
		wallet:        m,
		accounts:      make(map[string]*domain.Account, 2),
		requests:      make(map[uint64]*domain.WithdrawalRequest, 1),
		nextRequestID: m.nextRequestID,
		now:           m.now(),
	}
	if err := fn(tx); err != nil {
		return err
	}
	return m.commit(ctx, tx)
}

// commit 組出新的完整狀態，寫入 Store 成功後才替換
func (m *MutexWallet) commit(ctx context.Context, tx *walletTx) error {
	accounts := maps.Clone(m.accounts)
	if accounts == nil {
		accounts = make(map[string]*domain.Account, len(tx.accounts))
	}
	for id, account := range tx.accounts {
		accounts[id] = account
	}

	withdrawals := make([]*domain.WithdrawalRequest, len(m.withdrawals), len(m.withdrawals)+len(tx.appended))
	copy(withdrawals, m.withdrawals)
	for id, request := range tx.requests {
		withdrawals[m.requestIndex[id]] = request
	}
	withdrawals = append(withdrawals, tx.appended...)

	snapshot := &usecase.Snapshot{Accounts: accounts, Withdrawals: withdrawals}
	if err := m.store.Save(ctx, snapshot); err != nil {
		m.logger.Error("failed to persist wallet, changes discarded", zap.Error(err))
		return fmt.Errorf("%w: %v", domain.ErrPersistFailed, err)
	}

	for i, request := range tx.appended {
		m.requestIndex[request.ID] = len(m.withdrawals) + i
	}
	m.accounts = accounts
	m.withdrawals = withdrawals
	m.nextRequestID = tx.nextRequestID

	m.writeJournal(tx)
	return nil
}

// writeJournal 寫入 WAL，Store 已是最終狀態，失敗只記錄 log
func (m *MutexWallet) writeJournal(tx *walletTx) {
	for _, entry := range tx.entries {
		m.sequence++
		entry.Sequence = m.sequence
		entry.EntryID = uuid.New()
		entry.CreatedAt = tx.now.UnixNano()
		if m.journal == nil {
			continue
		}
		if err := m.journal.Write(entry); err != nil {
			m.logger.Error("failed to write journal",
				zap.Uint64("sequence", entry.Sequence),
				zap.Stringer("type", entry.Type),
				zap.Error(err))
		}
	}
}

// walletTx 單一操作的暫存變更
// 只修改複製出來的帳戶與申請，提交前不影響 MutexWallet 的狀態
type walletTx struct {
	wallet        *MutexWallet
	accounts      map[string]*domain.Account
	requests      map[uint64]*domain.WithdrawalRequest
	appended      []*domain.WithdrawalRequest
	entries       []*domain.JournalEntry
	nextRequestID uint64
	now           time.Time
}

// account 取得可修改的帳戶副本
func (tx *walletTx) account(id string) (*domain.Account, error) {
	if account, ok := tx.accounts[id]; ok {
		return account, nil
	}
	account, ok := tx.wallet.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	c := account.Clone()
	c.UpdatedAt = tx.now
	tx.accounts[id] = c
	return c, nil
}

// request 取得可修改的提款申請副本
func (tx *walletTx) request(id uint64) (*domain.WithdrawalRequest, error) {
	if request, ok := tx.requests[id]; ok {
		return request, nil
	}
	i, ok := tx.wallet.requestIndex[id]
	if !ok {
		return nil, domain.ErrRequestNotFound
	}
	c := tx.wallet.withdrawals[i].Clone()
	tx.requests[id] = c
	return c, nil
}

// debitWithdraw 依提款規則扣款
func (tx *walletTx) debitWithdraw(id string, amount int64) (*domain.Account, error) {
	account, err := tx.account(id)
	if err != nil {
		return nil, err
	}
	if err := tx.wallet.policy.ValidateWithdraw(amount); err != nil {
		return nil, err
	}
	if err := account.Withdraw(amount); err != nil {
		return nil, err
	}
	return account, nil
}

func (tx *walletTx) appendRequest(accountID string, amount int64) *domain.WithdrawalRequest {
	request := domain.NewWithdrawalRequest(tx.nextRequestID, accountID, amount, tx.now)
	tx.nextRequestID++
	tx.appended = append(tx.appended, request)
	return request
}

func (tx *walletTx) record(entry *domain.JournalEntry) {
	tx.entries = append(tx.entries, entry)
}

var _ usecase.Wallet = (*MutexWallet)(nil)
