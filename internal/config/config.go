package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/JoeShih716/go-mem-wallet/internal/app/core/adapter/out/notify"
	"github.com/JoeShih716/go-mem-wallet/internal/app/core/domain"
	"github.com/JoeShih716/go-mem-wallet/pkg/async"
	"github.com/JoeShih716/go-mem-wallet/pkg/logging"
	"github.com/JoeShih716/go-mem-wallet/pkg/mysql"
)

// 儲存層種類
const (
	DriverJSON  = "json"
	DriverMySQL = "mysql"
)

// Config walletd 的完整設定
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Log        logging.Config   `yaml:"log"`
	Storage    StorageConfig    `yaml:"storage"`
	Journal    JournalConfig    `yaml:"journal"`
	Policy     PolicyConfig     `yaml:"policy"`
	Credential CredentialConfig `yaml:"credential"`
	Admin      AdminConfig      `yaml:"admin"`
	SMTP       SMTPConfig       `yaml:"smtp"`
	Notify     NotifyConfig     `yaml:"notify"`
}

type ServerConfig struct {
	// Addr gRPC 監聽位址
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Addr      string `yaml:"addr"`
	Namespace string `yaml:"namespace"`
}

type StorageConfig struct {
	// Driver: json 或 mysql
	Driver string `yaml:"driver"`
	// Dir json driver 的資料目錄 (users.json, withdraws.json)
	Dir string `yaml:"dir"`
	// Timezone json 檔案內時間字串的時區 (IANA 名稱)，空字串為 UTC
	Timezone    string       `yaml:"timezone"`
	AutoMigrate bool         `yaml:"auto_migrate"`
	MySQL       mysql.Config `yaml:"mysql"`
}

// Location 解析 Timezone
func (s StorageConfig) Location() (*time.Location, error) {
	if s.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("storage.timezone: %w", err)
	}
	return loc, nil
}

type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type PolicyConfig struct {
	MinWithdraw int64 `yaml:"min_withdraw"`
	// MaxWithdraw 0 表示不限制
	MaxWithdraw int64 `yaml:"max_withdraw"`
	MinDeposit  int64 `yaml:"min_deposit"`
	// MaxDeposit 0 表示不限制
	MaxDeposit      int64 `yaml:"max_deposit"`
	RequireApproval bool  `yaml:"require_approval"`
}

// Policy 轉為 domain.Policy
func (p PolicyConfig) Policy() domain.Policy {
	return domain.Policy{
		MinWithdraw:     p.MinWithdraw,
		MaxWithdraw:     p.MaxWithdraw,
		MinDeposit:      p.MinDeposit,
		MaxDeposit:      p.MaxDeposit,
		RequireApproval: p.RequireApproval,
	}
}

type CredentialConfig struct {
	BcryptCost int `yaml:"bcrypt_cost"`
}

// AdminConfig 管理員帳密，不可寫入 log
type AdminConfig struct {
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

type SMTPConfig struct {
	// Enabled 關閉時通知只寫 log
	Enabled           bool `yaml:"enabled"`
	notify.SMTPConfig `yaml:",inline"`
}

type NotifyConfig struct {
	async.Config `yaml:",inline"`
	Breaker      notify.BreakerConfig `yaml:"breaker"`
}

// Default 預設設定
func Default() *Config {
	policy := domain.DefaultPolicy()
	return &Config{
		Server: ServerConfig{
			Addr:            ":50051",
			ShutdownTimeout: 10 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Addr:      ":9090",
			Namespace: "wallet",
		},
		Log: logging.DefaultConfig(),
		Storage: StorageConfig{
			Driver: DriverJSON,
			Dir:    "data",
		},
		Journal: JournalConfig{
			Enabled: true,
			Path:    "data/wal.log",
		},
		Policy: PolicyConfig{
			MinWithdraw:     policy.MinWithdraw,
			MaxWithdraw:     policy.MaxWithdraw,
			MinDeposit:      policy.MinDeposit,
			MaxDeposit:      policy.MaxDeposit,
			RequireApproval: policy.RequireApproval,
		},
		Credential: CredentialConfig{
			BcryptCost: 10,
		},
		SMTP: SMTPConfig{
			SMTPConfig: notify.SMTPConfig{
				Port:     587,
				Currency: "Rs",
			},
		},
		Notify: NotifyConfig{
			Config: async.Config{
				QueueSize: 100,
				Workers:   2,
				Timeout:   10 * time.Second,
			},
			Breaker: notify.DefaultBreakerConfig(),
		},
	}
}

// Load 載入設定
//
// 順序: 預設值 -> YAML 檔 -> .env -> 環境變數，後者覆蓋前者
//
// 參數:
//
//	path: string - YAML 設定檔路徑，空字串表示只使用預設值與環境變數
//
// 回傳值:
//
//	*Config: 設定
//	error: 讀檔、解析或驗證失敗
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	// .env 為選用，已存在的環境變數不會被覆蓋
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	envString("WALLET_SERVER_ADDR", &c.Server.Addr)
	envString("WALLET_METRICS_ADDR", &c.Metrics.Addr)
	envString("LOG_LEVEL", &c.Log.Level)
	envString("WALLET_STORAGE_DRIVER", &c.Storage.Driver)
	envString("WALLET_DATA_DIR", &c.Storage.Dir)
	envString("WALLET_JOURNAL_PATH", &c.Journal.Path)
	envString("WALLET_MYSQL_HOST", &c.Storage.MySQL.Host)
	envString("WALLET_MYSQL_USER", &c.Storage.MySQL.User)
	envString("WALLET_MYSQL_PASSWORD", &c.Storage.MySQL.Password)
	envString("WALLET_MYSQL_DBNAME", &c.Storage.MySQL.DBName)
	envString("WALLET_ADMIN_USER", &c.Admin.User)
	envString("WALLET_ADMIN_PASSWORD", &c.Admin.Password)
	envString("WALLET_SMTP_HOST", &c.SMTP.Host)
	envString("WALLET_SMTP_USERNAME", &c.SMTP.Username)
	envString("WALLET_SMTP_PASSWORD", &c.SMTP.Password)
	envString("WALLET_SMTP_FROM", &c.SMTP.From)

	if err := envInt("WALLET_MYSQL_PORT", &c.Storage.MySQL.Port); err != nil {
		return err
	}
	if err := envInt("WALLET_SMTP_PORT", &c.SMTP.Port); err != nil {
		return err
	}
	if err := envBool("WALLET_SMTP_ENABLED", &c.SMTP.Enabled); err != nil {
		return err
	}
	if err := envBool("WALLET_REQUIRE_APPROVAL", &c.Policy.RequireApproval); err != nil {
		return err
	}
	return envBool("WALLET_METRICS_ENABLED", &c.Metrics.Enabled)
}

// Validate 檢查設定是否可用
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}
	switch c.Storage.Driver {
	case DriverJSON:
		if c.Storage.Dir == "" {
			return errors.New("storage.dir is required for the json driver")
		}
		if _, err := c.Storage.Location(); err != nil {
			return err
		}
	case DriverMySQL:
		if c.Storage.MySQL.Host == "" || c.Storage.MySQL.DBName == "" {
			return errors.New("storage.mysql host and dbname are required for the mysql driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Journal.Enabled && c.Journal.Path == "" {
		return errors.New("journal.path is required when the journal is enabled")
	}
	if c.Policy.MinWithdraw <= 0 {
		return errors.New("policy.min_withdraw must be positive")
	}
	if c.Policy.MaxWithdraw != 0 && c.Policy.MaxWithdraw < c.Policy.MinWithdraw {
		return errors.New("policy.max_withdraw must be 0 or at least min_withdraw")
	}
	if c.Policy.MinDeposit <= 0 {
		return errors.New("policy.min_deposit must be positive")
	}
	if c.Policy.MaxDeposit != 0 && c.Policy.MaxDeposit < c.Policy.MinDeposit {
		return errors.New("policy.max_deposit must be 0 or at least min_deposit")
	}
	if c.Admin.User == "" || c.Admin.Password == "" {
		return errors.New("admin user and password are required")
	}
	if c.SMTP.Enabled && c.SMTP.Host == "" {
		return errors.New("smtp.host is required when smtp is enabled")
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return errors.New("metrics.addr is required when metrics are enabled")
	}
	return nil
}

func envString(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("env %s: %w", key, err)
	}
	*dst = n
	return nil
}

func envBool(key string, dst *bool) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("env %s: %w", key, err)
	}
	*dst = b
	return nil
}
