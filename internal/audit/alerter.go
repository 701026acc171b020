package audit

import (
	"fmt"
	"net/smtp"
	"time"

	"github.com/jordan-wright/email"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/afelipegc/plata/internal/config"
)

// Alerter sends conservation alerts to the ops mailbox via SMTP.
type Alerter struct {
	cfg *config.Config
	log *logrus.Logger
}

// NewAlerter creates a new alerter.
func NewAlerter(cfg *config.Config, log *logrus.Logger) *Alerter {
	return &Alerter{cfg: cfg, log: log}
}

// SendDriftAlert mails the drift details to the configured ops address.
func (a *Alerter) SendDriftAlert(current, provisioned decimal.Decimal) error {
	e := email.NewEmail()
	e.From = a.cfg.SenderEmail
	e.To = []string{a.cfg.AlertEmail}
	e.Subject = "Ledger conservation violated"

	body := fmt.Sprintf(
		"The conservation audit found a drift in the ledger totals.\n\n"+
			"Current balance total:     %s\n"+
			"Provisioned balance total: %s\n"+
			"Difference:                %s\n"+
			"Detected at:               %s\n\n"+
			"Transfers must never create or destroy money; investigate the "+
			"transaction log before accepting further transfers.\n",
		current, provisioned, current.Sub(provisioned),
		time.Now().UTC().Format("2006-01-02 15:04:05"),
	)
	e.Text = []byte(body)

	addr := fmt.Sprintf("%s:%s", a.cfg.SMTPHost, a.cfg.SMTPPort)
	var auth smtp.Auth
	if a.cfg.SMTPUsername != "" {
		auth = smtp.PlainAuth("", a.cfg.SMTPUsername, a.cfg.SMTPPassword, a.cfg.SMTPHost)
	}
	if err := e.Send(addr, auth); err != nil {
		return fmt.Errorf("failed to send alert email: %w", err)
	}

	a.log.Infof("drift alert sent to %s", a.cfg.AlertEmail)
	return nil
}
