// Package otp delivers one-time sign-in codes by SMS.
//
// No SMS gateway is wired in: LogSender writes the message to the log (the
// development setup) and Recorder keeps messages in memory for tests. A real
// gateway only has to implement Sender.
package otp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// Message is one outgoing SMS.
type Message struct {
	To   string // E.164, e.g. "+919876543210"
	Body string
}

// Sender delivers a Message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// CodeMessage builds the sign-in SMS for code.
func CodeMessage(to, code string) Message {
	return Message{
		To:   to,
		Body: fmt.Sprintf("Your TopTuitions sign-in code is %s. It expires in a few minutes.", code),
	}
}

// E164 joins a country prefix ("+91") and a national number ("9876543210").
func E164(countryCode, national string) string {
	cc := strings.TrimSpace(countryCode)
	if !strings.HasPrefix(cc, "+") {
		cc = "+" + cc
	}
	return cc + strings.TrimSpace(national)
}

// LogSender logs every message instead of sending it.
type LogSender struct {
	logger *slog.Logger
}

var _ Sender = (*LogSender)(nil)

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return errors.New("otp: message has no recipient")
	}
	s.logger.InfoContext(ctx, "sms (not sent, log sender)",
		slog.String("to", msg.To),
		slog.String("body", msg.Body),
	)
	return nil
}

// Recorder stores messages in memory. Set Err to make Send fail.
type Recorder struct {
	mu   sync.Mutex
	sent []Message
	Err  error
}

var _ Sender = (*Recorder)(nil)

func (r *Recorder) Send(_ context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.sent = append(r.sent, msg)
	return nil
}

// Sent returns a copy of everything sent so far.
func (r *Recorder) Sent() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.sent))
	copy(out, r.sent)
	return out
}

// Last returns the most recent message.
func (r *Recorder) Last() (Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sent) == 0 {
		return Message{}, false
	}
	return r.sent[len(r.sent)-1], true
}
