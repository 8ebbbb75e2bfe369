package core

import (
	"bytes"
	"fmt"
	htmltmpl "html/template"
	"io"
	"io/fs"
	"net/mail"
	"path"
	"strings"
	"sync"
	texttmpl "text/template"

	"github.com/pkg/errors"
)

const emailTemplatesDir = "templates/email"

// EmailMessage is a notification email. Content comes either from BodyStr or
// from the templates registered under TemplateName.
type EmailMessage struct {
	To      []mail.Address
	Cc      []mail.Address
	Bcc     []mail.Address
	Subject string
	BodyStr string // plain text, skips the templates

	TemplateName string // without ext
	TemplateData interface{}
	TextContent  string
	HTMLContent  string

	// tracking metadata, passed on to providers that support it
	Category string
	Tags     map[string]string
}

// ContextData is what email templates are executed with.
type ContextData struct {
	AppName         string
	FrontendBaseURL string
	Data            interface{}
}

// EmailService is any service that can send emails
type EmailService interface {
	// SendMessages sends messages concurrently
	SendMessages(messages ...*EmailMessage)
}

type executor interface {
	ExecuteTemplate(w io.Writer, name string, data interface{}) error
	Lookup(name string) bool
}

type textExec struct{ *texttmpl.Template }

func (t textExec) Lookup(name string) bool { return t.Template.Lookup(name) != nil }

type htmlExec struct{ *htmltmpl.Template }

func (t htmlExec) Lookup(name string) bool { return t.Template.Lookup(name) != nil }

// mailTemplate pairs the text and html renditions of one notification.
type mailTemplate struct {
	text executor
	html executor
}

type templateSet struct {
	mu      sync.RWMutex
	byName  map[string]*mailTemplate
	context ContextData
}

var emailTemplates templateSet

func (s *templateSet) get(name string) *mailTemplate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byName[name]
}

func (s *templateSet) data(m *EmailMessage) ContextData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ctx := s.context
	ctx.Data = m.TemplateData
	return ctx
}

func execute(tmpl executor, name string, data ContextData) (string, error) {
	if tmpl == nil || !tmpl.Lookup(name) {
		return "", nil
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Render fills TextContent and HTMLContent. A text template defining
// "subject" provides the subject of messages that have none.
func (m *EmailMessage) Render() (err error) {
	if m.BodyStr != "" {
		m.TextContent = m.BodyStr
	}
	if m.TemplateName == "" {
		return nil
	}
	tmpl := emailTemplates.get(m.TemplateName)
	if tmpl == nil {
		return nil
	}

	data := emailTemplates.data(m)
	if m.Subject == "" {
		subject, err := execute(tmpl.text, "subject", data)
		if err != nil {
			return errors.Wrapf(err, "rendering %s subject", m.TemplateName)
		}
		m.Subject = strings.TrimSpace(subject)
	}
	if m.BodyStr == "" {
		if m.TextContent, err = execute(tmpl.text, "base", data); err != nil {
			return errors.Wrapf(err, "rendering %s.txt", m.TemplateName)
		}
	}
	if m.HTMLContent, err = execute(tmpl.html, "base", data); err != nil {
		return errors.Wrapf(err, "rendering %s.gohtml", m.TemplateName)
	}
	return nil
}

func (m *EmailMessage) HasRecipients() bool { return len(m.To) > 0 }
func (m *EmailMessage) HasContent() bool    { return m.TextContent != "" || m.HTMLContent != "" }

// ParseEmailTemplates parses the email templates found in fsys under templates/email.
// Files starting with "_" are layouts shared by every template of the same extension.
// Broken templates are logged and skipped.
func ParseEmailTemplates(fsys fs.FS, conf *Config, logger Logger) {
	byName := make(map[string]*mailTemplate)
	strict := conf.Debug || conf.TestMode

	fps, err := fs.Glob(fsys, path.Join(emailTemplatesDir, "*"))
	if err != nil {
		logger.Error(fmt.Sprintf("core.ParseEmailTemplates: %v", err), err)
	}
	for _, fp := range fps {
		fname := path.Base(fp)
		ext := path.Ext(fname)
		if strings.HasPrefix(fname, "_") {
			continue
		}
		name := strings.TrimSuffix(fname, ext)
		tmpl, ok := byName[name]
		if !ok {
			tmpl = new(mailTemplate)
		}

		layout := path.Join(emailTemplatesDir, "_base"+ext)
		switch ext {
		case ".txt":
			t, err := texttmpl.ParseFS(fsys, layout, fp)
			if err != nil {
				logger.Error(fmt.Sprintf("core.ParseEmailTemplates(%s): %v", fp, err), err)
				continue
			}
			if strict {
				t = t.Option("missingkey=error")
			}
			tmpl.text = textExec{t}
		case ".gohtml":
			t, err := htmltmpl.ParseFS(fsys, layout, fp)
			if err != nil {
				logger.Error(fmt.Sprintf("core.ParseEmailTemplates(%s): %v", fp, err), err)
				continue
			}
			if strict {
				t = t.Option("missingkey=error")
			}
			tmpl.html = htmlExec{t}
		default:
			continue
		}
		byName[name] = tmpl
	}

	emailTemplates.mu.Lock()
	defer emailTemplates.mu.Unlock()
	emailTemplates.byName = byName
	emailTemplates.context = ContextData{AppName: conf.AppName, FrontendBaseURL: conf.FrontendBaseURL}
}
