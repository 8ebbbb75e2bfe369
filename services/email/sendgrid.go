package emailsvc

import (
	"fmt"
	"net/http"
	"net/mail"
	"time"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/trezcool/presence/core"
)

var (
	host     = "https://api.sendgrid.com"
	endpoint = "/v3/mail/send"
)

const (
	maxAttempts  = 3
	retryBackoff = 2 * time.Second
)

// sendgridService sends guardian notifications through the SendGrid v3 API,
// retrying throttled and failed requests.
type sendgridService struct {
	key        string
	from       *sgmail.Email
	subjPrefix string
	logger     core.Logger

	api   func(req rest.Request) (*rest.Response, error)
	sleep func(d time.Duration)
}

var _ core.EmailService = (*sendgridService)(nil)

func NewSendgridService(conf *core.Config, logger core.Logger) core.EmailService {
	return &sendgridService{
		key:        conf.SendgridApiKey,
		from:       sgmail.NewEmail(conf.DefaultFromEmail.Name, conf.DefaultFromEmail.Address),
		subjPrefix: "[" + conf.AppName + "] ",
		logger:     logger,
		api:        sendgrid.API,
		sleep:      time.Sleep,
	}
}

func (svc *sendgridService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		go func(msg *core.EmailMessage) {
			if err := msg.Render(); err != nil {
				svc.logger.Error(fmt.Sprintf("rendering email: %v", err), err)
				return
			}
			if msg.HasRecipients() && msg.HasContent() {
				svc.send(msg.Subject, svc.prepare(*msg))
			}
		}(msg)
	}
}

func (svc *sendgridService) prepare(msg core.EmailMessage) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = svc.subjPrefix + msg.Subject
	for _, to := range msg.To {
		p.AddTos(sgEmail(to))
	}
	for _, cc := range msg.Cc {
		p.AddCCs(sgEmail(cc))
	}
	for _, bcc := range msg.Bcc {
		p.AddBCCs(sgEmail(bcc))
	}
	for k, v := range msg.Tags {
		p.SetCustomArg(k, v)
	}

	m := sgmail.NewV3Mail()
	m.SetFrom(svc.from)
	m.AddPersonalizations(p)
	if msg.Category != "" {
		m.AddCategories(msg.Category)
	}

	m.AddContent(sgmail.NewContent("text/plain", msg.TextContent))
	if msg.HTMLContent != "" {
		m.AddContent(sgmail.NewContent("text/html", msg.HTMLContent))
	}
	return m
}

func sgEmail(addr mail.Address) *sgmail.Email {
	return sgmail.NewEmail(addr.Name, addr.Address)
}

// send posts m, retrying on transport errors, 429 and 5xx answers.
// It reports whether SendGrid accepted the message.
func (svc *sendgridService) send(subject string, m *sgmail.SGMailV3) bool {
	body := sgmail.GetRequestBody(m)
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		req := sendgrid.GetRequest(svc.key, endpoint, host)
		req.Method = http.MethodPost
		req.Body = body

		res, err := svc.api(req)
		switch {
		case err == nil && res.StatusCode < http.StatusBadRequest:
			return true
		case err == nil && res.StatusCode != http.StatusTooManyRequests && res.StatusCode < http.StatusInternalServerError:
			svc.logger.Error(fmt.Sprintf("sending email %q - status: %d - Body: %s", subject, res.StatusCode, res.Body))
			return false
		case attempt == maxAttempts:
			if err != nil {
				svc.logger.Error(fmt.Sprintf("sending email %q: %v", subject, err), err)
			} else {
				svc.logger.Error(fmt.Sprintf("sending email %q - status: %d - giving up", subject, res.StatusCode))
			}
			return false
		}
		svc.logger.Debug(fmt.Sprintf("sending email %q: attempt %d failed, retrying", subject, attempt))
		svc.sleep(time.Duration(attempt) * retryBackoff)
	}
	return false
}
