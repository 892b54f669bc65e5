package queue

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net"
	"strings"
	"time"

	"github.com/aq2208/gorder-bookstore/internal/usecase"
	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

// MailSender delivers one rendered HTML message.
type MailSender interface {
	Send(ctx context.Context, to, subject, html string) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

// SMTPSender delivers through an SMTP relay. Every send is bounded by the
// caller's deadline or cfg.Timeout, whichever comes first.
type SMTPSender struct {
	cfg SMTPConfig
}

func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &SMTPSender{cfg: cfg}
}

func (s *SMTPSender) Send(ctx context.Context, to, subject, html string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m := mail.NewMsg()
	if err := m.From(s.cfg.From); err != nil {
		return fmt.Errorf("from address: %w", err)
	}
	if err := m.To(to); err != nil {
		return fmt.Errorf("recipient address: %w", err)
	}
	m.Subject(headerSafe(subject))
	m.SetBodyString(mail.TypeTextHTML, html)

	c, err := mail.NewClient(s.cfg.Host, s.clientOptions()...)
	if err != nil {
		return err
	}
	return c.DialAndSendWithContext(ctx, m)
}

func (s *SMTPSender) clientOptions() []mail.Option {
	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithTimeout(s.cfg.Timeout),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
		mail.WithDialContextFunc(deadlineDialer(s.cfg.Timeout)),
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}
	return opts
}

// deadlineDialer pins the whole SMTP conversation to the dial context's
// deadline, so a relay that stops talking cannot hold the caller.
func deadlineDialer(timeout time.Duration) mail.DialContextFunc {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		d := net.Dialer{Timeout: timeout}
		conn, err := d.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}
		deadline := time.Now().Add(timeout)
		if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
			deadline = dl
		}
		if err := conn.SetDeadline(deadline); err != nil {
			_ = conn.Close()
			return nil, err
		}
		return conn, nil
	}
}

func headerSafe(v string) string {
	return strings.NewReplacer("\r", "", "\n", "").Replace(v)
}

// LogSender stands in for SMTP when no mail host is configured.
type LogSender struct {
	Log *zap.Logger
}

func (s LogSender) Send(_ context.Context, to, subject, _ string) error {
	s.Log.Info("mail suppressed, no smtp host", zap.String("to", to), zap.String("subject", subject))
	return nil
}

var mailTemplates = template.Must(template.New("mail").Parse(`
{{define "order.confirmed"}}
<div style="max-width: 600px; margin: 0 auto; padding: 20px; font-family: Arial, sans-serif;">
  <div style="background-color: #1a237e; padding: 20px; text-align: center;">
    <h1 style="color: white; margin: 0;">Order Confirmation</h1>
  </div>
  <div style="padding: 20px; background-color: #f5f5f5; border-radius: 5px; margin-top: 20px;">
    <h2>Thank you for your order!</h2>
    <p><strong>Order ID:</strong> {{.OrderID}}</p>
    <p><strong>Order Date:</strong> {{.At.Format "02 Jan 2006"}}</p>
    <p><strong>Total Amount:</strong> ₹{{.TotalAmount.StringFixed 2}}</p>
    <p><strong>Payment:</strong> {{.PaymentMethod}}</p>
    <h3>Items Ordered</h3>
    {{range .Lines}}
    <div style="padding: 10px; background-color: white; margin: 10px 0; border-radius: 5px;">
      <p><strong>{{.Title}}</strong></p>
      <p>Quantity: {{.Quantity}}</p>
      <p>Price: ₹{{.UnitPrice.StringFixed 2}}</p>
    </div>
    {{end}}
    <h3>Shipping Address</h3>
    <p>{{.ShippingAddress.Street}}</p>
    <p>{{.ShippingAddress.City}}, {{.ShippingAddress.State}}</p>
    <p>{{.ShippingAddress.PinCode}}</p>
    {{with .ShippingAddress.Country}}<p>{{.}}</p>{{end}}
  </div>
</div>
{{end}}
{{define "order.status"}}
<div style="max-width: 600px; margin: 0 auto; padding: 20px; font-family: Arial, sans-serif;">
  <div style="background-color: #1a237e; padding: 20px; text-align: center;">
    <h1 style="color: white; margin: 0;">Order Update</h1>
  </div>
  <div style="padding: 20px; background-color: #f5f5f5; border-radius: 5px; margin-top: 20px;">
    <p>Your order <strong>{{.OrderID}}</strong> is now <strong>{{.Status}}</strong>.</p>
    {{with .Location}}<p>Current location: {{.}}</p>{{end}}
    {{if .TrackingNumber}}<p>Tracking number: {{.TrackingNumber}}{{with .Courier}} ({{.}}){{end}}</p>{{end}}
    <p>Updated {{.At.Format "02 Jan 2006 15:04 MST"}}</p>
  </div>
</div>
{{end}}
`))

// Mailer turns notifications into customer emails.
type Mailer struct {
	sender  MailSender
	log     *zap.Logger
	timeout time.Duration
}

// DefaultSendTimeout caps one delivery attempt. Inline delivery runs on the
// checkout request, so it must finish well inside the HTTP write timeout.
const DefaultSendTimeout = 5 * time.Second

func NewMailer(sender MailSender, log *zap.Logger) *Mailer {
	return &Mailer{sender: sender, log: log, timeout: DefaultSendTimeout}
}

func Render(msg usecase.NotificationMsg) (subject, html string, err error) {
	switch msg.Kind {
	case usecase.NotifyOrderConfirmed:
		subject = "Order Confirmation - " + msg.OrderID
	case usecase.NotifyStatusChanged:
		subject = "Order " + msg.OrderID + " is " + string(msg.Status)
	default:
		return "", "", fmt.Errorf("unknown notification kind %q", msg.Kind)
	}
	var b bytes.Buffer
	if err := mailTemplates.ExecuteTemplate(&b, string(msg.Kind), msg); err != nil {
		return "", "", err
	}
	return subject, b.String(), nil
}

// HandleNotification is used with JSONHandler[usecase.NotificationMsg].
func (m *Mailer) HandleNotification(ctx context.Context, msg usecase.NotificationMsg) error {
	if msg.Email == "" {
		m.log.Debug("notification without recipient", zap.String("order_id", msg.OrderID), zap.String("kind", string(msg.Kind)))
		return nil
	}
	subject, html, err := Render(msg)
	if err != nil {
		// a message that cannot render will never render; drop it
		m.log.Error("render notification", zap.String("order_id", msg.OrderID), zap.Error(err))
		return nil
	}
	sendCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	if err := m.sender.Send(sendCtx, msg.Email, subject, html); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	m.log.Info("mail sent", zap.String("order_id", msg.OrderID), zap.String("kind", string(msg.Kind)))
	return nil
}

// InlineNotifier mails directly when no broker is configured.
type InlineNotifier struct {
	Mailer *Mailer
}

func (n InlineNotifier) Notify(ctx context.Context, msg usecase.NotificationMsg) error {
	return n.Mailer.HandleNotification(ctx, msg)
}

var _ usecase.Notifier = InlineNotifier{}
