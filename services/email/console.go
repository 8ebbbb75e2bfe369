package emailsvc

import (
	"fmt"
	"log"
	"mime/multipart"
	"net/mail"
	"net/textproto"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/presence/core"
)

// consoleService writes every message, MIME-encoded, to a std logger.
type consoleService struct {
	std        *log.Logger
	from       mail.Address
	subjPrefix string
	logger     core.Logger
}

var _ core.EmailService = (*consoleService)(nil)

func NewConsoleService(std *log.Logger, conf *core.Config, logger core.Logger) core.EmailService {
	return &consoleService{
		std:        std,
		from:       conf.DefaultFromEmail,
		subjPrefix: "[" + conf.AppName + "] ",
		logger:     logger,
	}
}

func (svc consoleService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		go func(msg *core.EmailMessage) {
			if body, ok := svc.sendMessage(msg); ok && svc.std != nil {
				svc.std.Println(body)
			}
		}(msg)
	}
}

// sendMessage renders msg and encodes it. It reports false when there is nothing to send.
func (svc consoleService) sendMessage(msg *core.EmailMessage) (string, bool) {
	if err := msg.Render(); err != nil {
		svc.logger.Error(fmt.Sprintf("rendering email: %v", err), errors.Wrap(err, "rendering email"))
		return "", false
	}
	if !msg.HasRecipients() || !msg.HasContent() {
		return "", false
	}
	body, err := svc.encode(*msg)
	if err != nil {
		svc.logger.Error(fmt.Sprintf("encoding email: %v", err), err)
		return "", false
	}
	return body, true
}

func (svc consoleService) encode(msg core.EmailMessage) (string, error) {
	body := new(strings.Builder)

	// Write mail header
	_, _ = fmt.Fprintf(body, "From: %s\r\n", svc.from.String())
	_, _ = fmt.Fprint(body, "MIME-Version: 1.0\r\n")
	_, _ = fmt.Fprintf(body, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	_, _ = fmt.Fprintf(body, "Subject: %s\r\n", svc.subjPrefix+msg.Subject)
	_, _ = fmt.Fprintf(body, "To: %s\r\n", joinAddresses(msg.To))
	if len(msg.Cc) > 0 {
		_, _ = fmt.Fprintf(body, "CC: %s\r\n", joinAddresses(msg.Cc))
	}
	if len(msg.Bcc) > 0 {
		_, _ = fmt.Fprintf(body, "BCC: %s\r\n", joinAddresses(msg.Bcc))
	}
	if msg.Category != "" {
		_, _ = fmt.Fprintf(body, "X-Category: %s\r\n", msg.Category)
	}
	if len(msg.Tags) > 0 {
		_, _ = fmt.Fprintf(body, "X-Tags: %s\r\n", joinTags(msg.Tags))
	}

	altW := multipart.NewWriter(body)
	_, _ = fmt.Fprintf(body, "Content-Type: multipart/alternative; boundary=%s\r\n\r\n", altW.Boundary())

	w, err := altW.CreatePart(textproto.MIMEHeader{"Content-Type": {"text/plain; charset=utf-8"}})
	if err != nil {
		return "", errors.Wrap(err, "creating text/plain part")
	}
	_, _ = fmt.Fprintf(w, "%s\r\n", msg.TextContent)

	if msg.HTMLContent != "" {
		w, err = altW.CreatePart(textproto.MIMEHeader{"Content-Type": {"text/html; charset=utf-8"}})
		if err != nil {
			return "", errors.Wrap(err, "creating text/html part")
		}
		_, _ = fmt.Fprintf(w, "%s\r\n", msg.HTMLContent)
	}
	if err = altW.Close(); err != nil {
		return "", errors.Wrap(err, "closing multipart writer")
	}
	return body.String(), nil
}

func joinAddresses(addrs []mail.Address) string {
	toJoin := make([]string, 0, len(addrs))
	for _, a := range addrs {
		toJoin = append(toJoin, a.String())
	}
	return strings.Join(toJoin, ", ")
}

// joinTags formats tags as "k1=v1; k2=v2", sorted by key.
func joinTags(tags map[string]string) string {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = k + "=" + tags[k]
	}
	return strings.Join(pairs, "; ")
}

// ConsoleServiceMock sends synchronously and keeps the encoded messages instead of printing them.
type ConsoleServiceMock struct {
	consoleService

	mu   sync.Mutex
	sent []string
}

func NewConsoleServiceMock(conf *core.Config, logger core.Logger) *ConsoleServiceMock {
	return &ConsoleServiceMock{
		consoleService: consoleService{
			from:       conf.DefaultFromEmail,
			subjPrefix: "[" + conf.AppName + "] ",
			logger:     logger,
		},
	}
}

func (svc *ConsoleServiceMock) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		// run synchronously
		if body, ok := svc.sendMessage(msg); ok {
			svc.mu.Lock()
			svc.sent = append(svc.sent, body)
			svc.mu.Unlock()
		}
	}
}

// Sent returns the encoded messages sent so far.
func (svc *ConsoleServiceMock) Sent() []string {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	sent := make([]string, len(svc.sent))
	copy(sent, svc.sent)
	return sent
}
