package email

import (
	"bytes"
	"crypto/tls"
	"embed"
	"fmt"
	"html/template"
	"net/smtp"
	"sort"
	"strings"
	"time"

	"plgshop/pkg/logger"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// Config 邮件配置
type Config struct {
	Host     string // SMTP服务器地址
	Port     int    // SMTP服务器端口
	Username string // 邮箱账号
	Password string // 邮箱密码
	From     string // 发件人
	FromName string // 发件人名称
	UseTLS   bool   // 直接建立TLS连接（465端口）
}

// EmailType 邮件类型，对应模板名
type EmailType string

const (
	// TypeVerification 登录/注册验证码
	TypeVerification EmailType = "verification"
	// TypeWelcome 欢迎邮件
	TypeWelcome EmailType = "welcome"
	// TypeOrderPaid 付款完成通知
	TypeOrderPaid EmailType = "order_paid"
)

const productName = "PLG Shop"

// EmailData 邮件数据
type EmailData struct {
	To          string
	Subject     string
	VerifyCode  string
	ExpireTime  time.Time
	ProductName string
	OrderName   string
	TotalAmount int64
}

// Sender 发信接口
type Sender interface {
	Send(to, subject, htmlBody string) error
}

// Service 邮件服务
type Service struct {
	sender Sender
	logger *logger.Logger
}

// NewService 创建邮件服务，sender为空时使用SMTP
func NewService(config Config, sender Sender, log *logger.Logger) *Service {
	if sender == nil {
		sender = &SMTPSender{config: config}
	}
	return &Service{sender: sender, logger: log}
}

// SendEmail 渲染模板并发送
func (s *Service) SendEmail(emailType EmailType, data EmailData) error {
	if data.ProductName == "" {
		data.ProductName = productName
	}
	if data.Subject == "" {
		switch emailType {
		case TypeVerification:
			data.Subject = fmt.Sprintf("%s - 登录验证码", data.ProductName)
		case TypeWelcome:
			data.Subject = fmt.Sprintf("欢迎加入%s", data.ProductName)
		case TypeOrderPaid:
			data.Subject = fmt.Sprintf("%s - 订单 %s 已付款", data.ProductName, data.OrderName)
		}
	}

	content, err := Render(emailType, data)
	if err != nil {
		return err
	}
	if err := s.sender.Send(data.To, data.Subject, content); err != nil {
		return err
	}

	s.logger.Info("邮件已发送", "to", data.To, "type", string(emailType))
	return nil
}

// Render 渲染邮件模板
func Render(emailType EmailType, data EmailData) (string, error) {
	buf := new(bytes.Buffer)
	if err := templates.ExecuteTemplate(buf, string(emailType)+".html", data); err != nil {
		return "", fmt.Errorf("渲染邮件模板失败: %w", err)
	}
	return buf.String(), nil
}

// SendVerificationCode 发送验证码邮件
func (s *Service) SendVerificationCode(to, code string, ttl time.Duration) error {
	return s.SendEmail(TypeVerification, EmailData{
		To:         to,
		VerifyCode: code,
		ExpireTime: time.Now().Add(ttl),
	})
}

// SendWelcomeEmail 发送欢迎邮件
func (s *Service) SendWelcomeEmail(to string) error {
	return s.SendEmail(TypeWelcome, EmailData{To: to})
}

// SendOrderPaid 发送付款完成通知
func (s *Service) SendOrderPaid(to, orderName string, total int64) error {
	return s.SendEmail(TypeOrderPaid, EmailData{To: to, OrderName: orderName, TotalAmount: total})
}

// SMTPSender 通过SMTP发信
type SMTPSender struct {
	config Config
}

// Send 发送HTML邮件
func (s *SMTPSender) Send(to, subject, body string) error {
	message := buildMessage(s.config, to, subject, body)
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	auth := smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)

	if !s.config.UseTLS {
		// STARTTLS由smtp.SendMail自动协商
		if err := smtp.SendMail(addr, auth, s.config.From, []string{to}, message); err != nil {
			return fmt.Errorf("发送邮件失败: %w", err)
		}
		return nil
	}

	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: s.config.Host})
	if err != nil {
		return fmt.Errorf("创建TLS连接失败: %w", err)
	}
	client, err := smtp.NewClient(conn, s.config.Host)
	if err != nil {
		return fmt.Errorf("创建SMTP客户端失败: %w", err)
	}
	defer client.Close()

	if err = client.Auth(auth); err != nil {
		return fmt.Errorf("SMTP认证失败: %w", err)
	}
	if err = client.Mail(s.config.From); err != nil {
		return fmt.Errorf("设置发件人失败: %w", err)
	}
	if err = client.Rcpt(to); err != nil {
		return fmt.Errorf("设置收件人失败: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("准备发送数据失败: %w", err)
	}
	if _, err = w.Write(message); err != nil {
		return fmt.Errorf("写入邮件内容失败: %w", err)
	}
	if err = w.Close(); err != nil {
		return fmt.Errorf("关闭数据写入失败: %w", err)
	}
	return client.Quit()
}

func buildMessage(cfg Config, to, subject, body string) []byte {
	header := map[string]string{
		"From":         fmt.Sprintf("%s <%s>", cfg.FromName, cfg.From),
		"To":           to,
		"Subject":      subject,
		"MIME-Version": "1.0",
		"Content-Type": "text/html; charset=UTF-8",
	}
	keys := make([]string, 0, len(header))
	for k := range header {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %s\r\n", k, header[k])
	}
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}
