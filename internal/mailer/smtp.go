package mailer

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/commitlog/dailyagent/internal/service"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SMTPOptions 发信配置
type SMTPOptions struct {
	Host        string
	Port        int
	Username    string
	Password    string
	From        string
	FromName    string
	ReplyTo     string
	ImplicitTLS bool
	Timeout     time.Duration
}

// deliverFunc 发送一封已编码的邮件，测试中替换
type deliverFunc func(ctx context.Context, opts SMTPOptions, to string, msg []byte) error

// SMTPSender 通过 SMTP 发送提醒和总结邮件
type SMTPSender struct {
	opts    SMTPOptions
	logger  *zap.Logger
	deliver deliverFunc
	now     func() time.Time
}

// NewSMTPSender 构造 SMTPSender
func NewSMTPSender(opts SMTPOptions, logger *zap.Logger) (*SMTPSender, error) {
	if strings.TrimSpace(opts.Host) == "" || strings.TrimSpace(opts.From) == "" {
		return nil, errors.New("smtp host and from address are required")
	}
	if opts.Port == 0 {
		opts.Port = 587
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.ReplyTo == "" {
		opts.ReplyTo = opts.From
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SMTPSender{opts: opts, logger: logger, deliver: deliverSMTP, now: time.Now}, nil
}

// SendCheckin 实现 service.Notifier
func (s *SMTPSender) SendCheckin(ctx context.Context, msg service.CheckinMessage) error {
	email, err := RenderCheckin(msg)
	if err != nil {
		return err
	}
	return s.send(ctx, email)
}

// SendSummary 实现 service.Notifier
func (s *SMTPSender) SendSummary(ctx context.Context, msg service.SummaryMessage) error {
	email, err := RenderSummary(msg)
	if err != nil {
		return err
	}
	return s.send(ctx, email)
}

func (s *SMTPSender) send(ctx context.Context, email Email) error {
	raw, err := s.compose(email)
	if err != nil {
		return err
	}
	if err := s.deliver(ctx, s.opts, email.To, raw); err != nil {
		return fmt.Errorf("send mail to %s: %w", email.To, err)
	}
	s.logger.Info("email sent", zap.String("to", email.To), zap.String("subject", email.Subject))
	return nil
}

// compose 生成 multipart/alternative 邮件，纯文本在前、HTML 在后
func (s *SMTPSender) compose(email Email) ([]byte, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	if err := writePart(writer, "text/plain; charset=UTF-8", email.TextBody); err != nil {
		return nil, err
	}
	if err := writePart(writer, "text/html; charset=UTF-8", email.HTMLBody); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	from := mail.Address{Name: s.opts.FromName, Address: s.opts.From}
	domain := s.opts.From[strings.LastIndex(s.opts.From, "@")+1:]

	var msg bytes.Buffer
	headers := []struct{ key, value string }{
		{"From", from.String()},
		{"To", email.To},
		{"Reply-To", s.opts.ReplyTo},
		{"Subject", mime.QEncoding.Encode("UTF-8", email.Subject)},
		{"Date", s.now().Format(time.RFC1123Z)},
		{"Message-ID", fmt.Sprintf("<%s@%s>", uuid.NewString(), domain)},
		{"MIME-Version", "1.0"},
		{"Content-Type", fmt.Sprintf("multipart/alternative; boundary=%q", writer.Boundary())},
	}
	for _, h := range headers {
		fmt.Fprintf(&msg, "%s: %s\r\n", h.key, h.value)
	}
	msg.WriteString("\r\n")
	msg.Write(body.Bytes())
	return msg.Bytes(), nil
}

func writePart(writer *multipart.Writer, contentType, content string) error {
	part, err := writer.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {contentType},
		"Content-Transfer-Encoding": {"quoted-printable"},
	})
	if err != nil {
		return err
	}
	qp := quotedprintable.NewWriter(part)
	if _, err := qp.Write([]byte(content)); err != nil {
		return err
	}
	return qp.Close()
}

// deliverSMTP 连接服务器；非隐式 TLS 时服务器支持 STARTTLS 就升级。
func deliverSMTP(ctx context.Context, opts SMTPOptions, to string, msg []byte) error {
	addr := net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port))
	dialer := &net.Dialer{Timeout: opts.Timeout}

	var (
		conn net.Conn
		err  error
	)
	if opts.ImplicitTLS {
		conn, err = (&tls.Dialer{NetDialer: dialer, Config: &tls.Config{ServerName: opts.Host}}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return err
	}
	deadline := time.Now().Add(opts.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)

	client, err := smtp.NewClient(conn, opts.Host)
	if err != nil {
		_ = conn.Close()
		return err
	}
	defer client.Close()

	if !opts.ImplicitTLS {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: opts.Host}); err != nil {
				return err
			}
		}
	}
	if opts.Username != "" {
		if err := client.Auth(smtp.PlainAuth("", opts.Username, opts.Password, opts.Host)); err != nil {
			return err
		}
	}
	if err := client.Mail(opts.From); err != nil {
		return err
	}
	if err := client.Rcpt(to); err != nil {
		return err
	}
	wc, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := wc.Write(msg); err != nil {
		_ = wc.Close()
		return err
	}
	if err := wc.Close(); err != nil {
		return err
	}
	return client.Quit()
}

// LogSender 在未配置 SMTP 时使用，只把邮件内容写进日志
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender 构造 LogSender
func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{logger: logger}
}

// SendCheckin 实现 service.Notifier
func (l *LogSender) SendCheckin(_ context.Context, msg service.CheckinMessage) error {
	email, err := RenderCheckin(msg)
	if err != nil {
		return err
	}
	l.log(email)
	return nil
}

// SendSummary 实现 service.Notifier
func (l *LogSender) SendSummary(_ context.Context, msg service.SummaryMessage) error {
	email, err := RenderSummary(msg)
	if err != nil {
		return err
	}
	l.log(email)
	return nil
}

func (l *LogSender) log(email Email) {
	l.logger.Info("smtp not configured, email logged instead of sent",
		zap.String("to", email.To),
		zap.String("subject", email.Subject),
		zap.String("body", email.TextBody),
	)
}
