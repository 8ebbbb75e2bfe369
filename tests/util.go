package testutil

import (
	"fmt"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/presence/core"
)

// NewValidator returns a validator set up the way the apps set it up.
func NewValidator() (*validator.Validate, ut.Translator) {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	return validate, translator
}

// Logger records every message it receives.
type Logger struct {
	mu       sync.Mutex
	Messages []string
}

var _ core.Logger = (*Logger)(nil)

func (l *Logger) log(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Messages = append(l.Messages, fmt.Sprintf("%s: %s", level, msg))
}

func (l *Logger) Debug(msg string, _ ...interface{}) { l.log("DEBUG", msg) }
func (l *Logger) Info(msg string, _ ...interface{})  { l.log("INFO", msg) }
func (l *Logger) Warn(msg string, _ ...interface{})  { l.log("WARN", msg) }
func (l *Logger) Error(msg string, _ ...interface{}) { l.log("ERROR", msg) }
func (l *Logger) Fatal(msg string, _ ...interface{}) { l.log("FATAL", msg) }

// Lines returns a copy of the recorded messages.
func (l *Logger) Lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	lines := make([]string, len(l.Messages))
	copy(lines, l.Messages)
	return lines
}

// SeqRand returns the given values in order, repeating the last one.
type SeqRand struct {
	mu     sync.Mutex
	Values []float64
	Ints   []int
}

func (r *SeqRand) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.Values) == 0 {
		return 0
	}
	v := r.Values[0]
	if len(r.Values) > 1 {
		r.Values = r.Values[1:]
	}
	return v
}

func (r *SeqRand) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.Ints) == 0 {
		return 0
	}
	v := r.Ints[0]
	if len(r.Ints) > 1 {
		r.Ints = r.Ints[1:]
	}
	return v % n
}

// Mailer records the messages it is asked to send, without rendering them.
type Mailer struct {
	mu   sync.Mutex
	Sent []*core.EmailMessage
}

var _ core.EmailService = (*Mailer)(nil)

func (m *Mailer) SendMessages(messages ...*core.EmailMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, messages...)
}

// Messages returns a copy of the sent messages.
func (m *Mailer) Messages() []*core.EmailMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := make([]*core.EmailMessage, len(m.Sent))
	copy(msgs, m.Sent)
	return msgs
}
