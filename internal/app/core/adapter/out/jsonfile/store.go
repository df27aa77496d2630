package jsonfile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/JoeShih716/go-mem-wallet/internal/app/core/domain"
	"github.com/JoeShih716/go-mem-wallet/internal/app/core/usecase"
)

const (
	// UsersFile 帳戶檔名
	UsersFile = "users.json"
	// WithdrawalsFile 提款申請檔名
	WithdrawalsFile = "withdraws.json"
	// TimeLayout 檔案內的時間格式
	TimeLayout = "2006-01-02 15:04:05"

	fileMode = 0o600
)

// userRecord users.json 內單一帳戶 (key 為帳戶 ID)
type userRecord struct {
	Name      string `json:"name"`
	Password  string `json:"password"`
	Balance   amount `json:"balance"`
	Status    string `json:"status,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// withdrawRecord withdraws.json 內單一申請
type withdrawRecord struct {
	ID        uint64 `json:"id,omitempty"`
	User      string `json:"user"`
	Amount    amount `json:"amount"`
	Status    string `json:"status"`
	Timestamp string `json:"timestamp,omitempty"`
	DecidedAt string `json:"decided_at,omitempty"`
}

// amount 整數金額，讀取時容許舊檔案內的小數 (無條件捨去)
type amount int64

func (a *amount) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*a = 0
		return nil
	}
	if v, err := strconv.ParseInt(string(data), 10, 64); err == nil {
		*a = amount(v)
		return nil
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("invalid amount %s", data)
	}
	*a = amount(math.Trunc(f))
	return nil
}

// Store 以兩個 JSON 檔案實作 usecase.Store，格式與舊版資料檔相容
type Store struct {
	dir string
	loc *time.Location

	// 同一個目錄只允許一個寫入者
	mu sync.Mutex
}

// Option Store 選項
type Option func(*Store)

// WithLocation 檔案內時間字串使用的時區 (預設 UTC)
func WithLocation(loc *time.Location) Option {
	return func(s *Store) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// NewStore 建立 Store，目錄不存在時會建立
//
// 參數:
//
//	dir: string - users.json 與 withdraws.json 所在目錄
//
// 回傳值:
//
//	*Store: Store 實例
//	error: 無法建立目錄時回傳錯誤
func NewStore(dir string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	s := &Store{
		dir: dir,
		loc: time.UTC,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Load 讀取兩個檔案，不存在時視為空資料
func (s *Store) Load(_ context.Context) (*usecase.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := usecase.NewSnapshot()

	users := make(map[string]userRecord)
	if err := s.readFile(UsersFile, &users); err != nil {
		return nil, err
	}
	for id, u := range users {
		status := domain.AccountStatus(u.Status)
		if !status.Valid() {
			// 舊資料沒有 status 欄位
			status = domain.AccountStatusActive
		}
		snapshot.Accounts[id] = &domain.Account{
			ID:             id,
			Name:           u.Name,
			CredentialHash: u.Password,
			Balance:        int64(u.Balance),
			Status:         status,
			CreatedAt:      s.parseTime(u.CreatedAt),
			UpdatedAt:      s.parseTime(u.UpdatedAt),
		}
	}

	var withdrawals []withdrawRecord
	if err := s.readFile(WithdrawalsFile, &withdrawals); err != nil {
		return nil, err
	}
	for i, w := range withdrawals {
		id := w.ID
		if id == 0 {
			// 舊資料以陣列位置作為申請編號
			id = uint64(i + 1)
		}
		status, err := domain.ParseWithdrawalStatus(w.Status)
		if err != nil {
			return nil, fmt.Errorf("%s entry %d: %w", WithdrawalsFile, i, err)
		}
		snapshot.Withdrawals = append(snapshot.Withdrawals, &domain.WithdrawalRequest{
			ID:        id,
			AccountID: w.User,
			Amount:    int64(w.Amount),
			Status:    status,
			CreatedAt: s.parseTime(w.Timestamp),
			DecidedAt: s.parseTime(w.DecidedAt),
		})
	}
	return snapshot, nil
}

// Save 兩個檔案都先寫成暫存檔，再依序 rename
//
// withdraws.json 替換失敗時會把 users.json 還原成舊內容，
// Save 回傳錯誤時磁碟上不會留下一新一舊的組合
func (s *Store) Save(_ context.Context, snapshot *usecase.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := make(map[string]userRecord, len(snapshot.Accounts))
	for id, a := range snapshot.Accounts {
		users[id] = userRecord{
			Name:      a.Name,
			Password:  a.CredentialHash,
			Balance:   amount(a.Balance),
			Status:    string(a.Status),
			CreatedAt: s.formatTime(a.CreatedAt),
			UpdatedAt: s.formatTime(a.UpdatedAt),
		}
	}

	withdrawals := make([]withdrawRecord, 0, len(snapshot.Withdrawals))
	for _, w := range snapshot.Withdrawals {
		withdrawals = append(withdrawals, withdrawRecord{
			ID:        w.ID,
			User:      w.AccountID,
			Amount:    amount(w.Amount),
			Status:    string(w.Status),
			Timestamp: s.formatTime(w.CreatedAt),
			DecidedAt: s.formatTime(w.DecidedAt),
		})
	}

	usersData, err := encode(UsersFile, users)
	if err != nil {
		return err
	}
	withdrawalsData, err := encode(WithdrawalsFile, withdrawals)
	if err != nil {
		return err
	}

	usersTmp, err := s.stage(UsersFile, usersData)
	if err != nil {
		return err
	}
	defer os.Remove(usersTmp) // rename 成功後為 no-op
	withdrawalsTmp, err := s.stage(WithdrawalsFile, withdrawalsData)
	if err != nil {
		return err
	}
	defer os.Remove(withdrawalsTmp)

	usersPath := filepath.Join(s.dir, UsersFile)
	previous, err := os.ReadFile(usersPath)
	existed := err == nil
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("read %s: %w", UsersFile, err)
	}

	if err := os.Rename(usersTmp, usersPath); err != nil {
		return fmt.Errorf("rename %s: %w", UsersFile, err)
	}
	if err := os.Rename(withdrawalsTmp, filepath.Join(s.dir, WithdrawalsFile)); err != nil {
		err = fmt.Errorf("rename %s: %w", WithdrawalsFile, err)
		if rerr := s.restore(UsersFile, previous, existed); rerr != nil {
			return errors.Join(err, rerr)
		}
		return err
	}
	return nil
}

// restore 把檔案還原成 rename 之前的內容，原本不存在就刪除
func (s *Store) restore(name string, previous []byte, existed bool) error {
	path := filepath.Join(s.dir, name)
	if !existed {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("restore %s: %w", name, err)
		}
		return nil
	}
	tmp, err := s.stage(name, previous)
	if err != nil {
		return fmt.Errorf("restore %s: %w", name, err)
	}
	defer os.Remove(tmp)
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("restore %s: %w", name, err)
	}
	return nil
}

func (s *Store) readFile(name string, v any) error {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

func encode(name string, v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", name, err)
	}
	return data, nil
}

// stage 寫入並 fsync 暫存檔，回傳暫存檔路徑
func (s *Store) stage(name string, data []byte) (string, error) {
	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp for %s: %w", name, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("sync %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Chmod(tmpName, fileMode); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("chmod %s: %w", name, err)
	}
	return tmpName, nil
}

func (s *Store) parseTime(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	t, err := time.ParseInLocation(TimeLayout, v, s.loc)
	if err != nil {
		return time.Time{}
	}
	return t
}

func (s *Store) formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(s.loc).Format(TimeLayout)
}

var _ usecase.Store = (*Store)(nil)
