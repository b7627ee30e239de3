// Package notify emails the summary of a run.
package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"carparams/internal/components/telemetry"

	"github.com/jordan-wright/email"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("carparams/notify")

const report_notify_send = "notify.send"

type SMTPConfig struct {
	Server   string   `json:"server"`
	Port     int      `json:"port"`
	From     string   `json:"from"`
	Password string   `json:"password"`
	To       []string `json:"to"`
}

// Notifier sends run summaries, it is a no-op when no server is configured.
type Notifier struct {
	config SMTPConfig
	tel    telemetry.API
}

func NewNotifier(config SMTPConfig, tel telemetry.API) Notifier {
	return Notifier{config: config, tel: tel}
}

func (n Notifier) Enabled() bool {
	return n.config.Server != "" && len(n.config.To) > 0
}

func (n Notifier) Send(ctx context.Context, subject, body string) error {
	if !n.Enabled() {
		return nil
	}
	_, span := tracer.Start(ctx, "Send")
	defer span.End()

	mail := email.NewEmail()
	mail.From = fmt.Sprintf("carparams <%s>", n.config.From)
	mail.To = n.config.To
	mail.Subject = subject
	mail.Text = []byte(body)

	addr := fmt.Sprintf("%s:%d", n.config.Server, n.config.Port)
	err := mail.Send(addr, smtp.PlainAuth("", n.config.From, n.config.Password, n.config.Server))
	if err != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = mail.Send(addr, nil)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to send email")
		n.tel.ReportBroken(report_notify_send, err)
		return err
	}
	return nil
}
