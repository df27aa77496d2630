package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/JoeShih716/go-mem-wallet/internal/app/core/usecase"
)

// WithdrawalSubject 提款通知信件主旨
const WithdrawalSubject = "Withdraw Request Received"

// implicitTLSPort 連線即使用 TLS 的埠號，其他埠號使用 STARTTLS
const implicitTLSPort = 465

// ErrNoRecipient 帳戶 ID 不是 email，無法寄送
var ErrNoRecipient = errors.New("account id is not an email address")

// SMTPConfig 寄信設定
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	// From 寄件者，未設定時使用 Username
	From string `yaml:"from"`
	// Currency 信件內的幣別前綴
	Currency string `yaml:"currency"`
}

// SMTPNotifier 透過 SMTP 寄送提款通知給帳戶本人 (帳戶 ID 即 email)
type SMTPNotifier struct {
	cfg    SMTPConfig
	dialer net.Dialer
}

func NewSMTPNotifier(cfg SMTPConfig) *SMTPNotifier {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	if cfg.Currency == "" {
		cfg.Currency = "Rs"
	}
	return &SMTPNotifier{cfg: cfg}
}

// NotifyWithdrawal 寄送「已收到提款申請」通知
func (n *SMTPNotifier) NotifyWithdrawal(ctx context.Context, accountID string, amount int64) error {
	if !strings.Contains(accountID, "@") {
		return ErrNoRecipient
	}
	body := fmt.Sprintf("Your withdraw request of %s %d has been received and is being processed.", n.cfg.Currency, amount)
	return n.send(ctx, accountID, WithdrawalSubject, body)
}

func (n *SMTPNotifier) send(ctx context.Context, to, subject, body string) error {
	addr := net.JoinHostPort(n.cfg.Host, strconv.Itoa(n.cfg.Port))
	tlsConfig := &tls.Config{ServerName: n.cfg.Host}

	conn, err := n.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial smtp: %w", err)
	}
	defer conn.Close()

	// net/smtp 不吃 context，改用 deadline 控制逾時
	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return err
		}
	}

	if n.cfg.Port == implicitTLSPort {
		conn = tls.Client(conn, tlsConfig)
	}

	client, err := smtp.NewClient(conn, n.cfg.Host)
	if err != nil {
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer client.Close()

	if n.cfg.Port != implicitTLSPort {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(tlsConfig); err != nil {
				return fmt.Errorf("starttls: %w", err)
			}
		}
	}

	if n.cfg.Username != "" {
		auth := smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := client.Mail(n.cfg.From); err != nil {
		return err
	}
	if err := client.Rcpt(to); err != nil {
		return err
	}

	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(buildMessage(n.cfg.From, to, subject, body)); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}

func buildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	b.WriteString("\r\n")
	return []byte(b.String())
}

var _ usecase.Notifier = (*SMTPNotifier)(nil)
