// Package assistant answers free-text portal questions, delegating to an
// external completion service when one is configured and otherwise routing the
// message to a keyword intent rendered from live content.
package assistant

import (
	"context"
	"strings"
	"time"

	"github.com/kkkkikiki/portal/internal/logger"
	"github.com/kkkkikiki/portal/internal/metrics"
	"github.com/kkkkikiki/portal/internal/model"
)

// DefaultRowLimit caps rows per collection in replies and delegated context
const DefaultRowLimit = 10

var jst = time.FixedZone("JST", 9*60*60)

// Completer is the external completion service
type Completer interface {
	Enabled() bool
	Complete(ctx context.Context, systemContext, userMessage string) (string, error)
}

// Config tunes a Responder
type Config struct {
	// RowLimit caps rows per collection. Zero means DefaultRowLimit.
	RowLimit int

	// Location is used for calendar-month scoping and dates. Nil means JST.
	Location *time.Location
}

// Reply is a rendered answer together with how it was produced
type Reply struct {
	Text   string
	Intent Intent
	Source string // "llm" or "local"
}

// Responder turns one message into one reply
type Responder struct {
	source    Source
	completer Completer
	cfg       Config
	log       *logger.Logger
	now       func() time.Time
}

// Option configures a Responder
type Option func(*Responder)

// WithLogger sets the logger
func WithLogger(l *logger.Logger) Option {
	return func(r *Responder) {
		r.log = l
	}
}

// WithClock sets the time source used for month scoping
func WithClock(now func() time.Time) Option {
	return func(r *Responder) {
		r.now = now
	}
}

// NewResponder creates a Responder. completer may be nil.
func NewResponder(source Source, completer Completer, cfg Config, opts ...Option) *Responder {
	if cfg.RowLimit <= 0 {
		cfg.RowLimit = DefaultRowLimit
	}
	if cfg.Location == nil {
		cfg.Location = jst
	}
	r := &Responder{
		source:    source,
		completer: completer,
		cfg:       cfg,
		log:       logger.Nop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Respond returns the reply text for message. It always returns a non-empty string.
func (r *Responder) Respond(ctx context.Context, message string) string {
	return r.Answer(ctx, message).Text
}

// Answer is Respond with the routing outcome attached
func (r *Responder) Answer(ctx context.Context, message string) (reply Reply) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("Assistant panicked", "panic", p)
			reply = Reply{Text: apologyText, Intent: IntentUnmatched, Source: "local"}
		}
		metrics.RecordAssistantReply(reply.Source, string(reply.Intent))
	}()

	snap, err := r.source.Load(ctx)
	if err != nil {
		// No delegation without content; classify against an empty snapshot.
		r.log.Error("Failed to load content snapshot, answering locally", "error", err)
		snap = &model.ContentSnapshot{}
	} else if text, ok := r.delegate(ctx, message, snap); ok {
		return Reply{Text: text, Intent: Classify(message, snap), Source: "llm"}
	}

	intent := Classify(message, snap)
	rc := renderContext{now: r.now(), loc: r.cfg.Location, limit: r.cfg.RowLimit}
	return Reply{Text: render(intent, strings.ToLower(message), snap, rc), Intent: intent, Source: "local"}
}

// delegate asks the completion service. Any failure falls back to local rendering.
func (r *Responder) delegate(ctx context.Context, message string, snap *model.ContentSnapshot) (string, bool) {
	if r.completer == nil || !r.completer.Enabled() {
		return "", false
	}

	text, err := r.completer.Complete(ctx, r.systemContext(snap), message)
	if err != nil {
		r.log.Warn("Completion failed, answering locally", "error", err)
		return "", false
	}
	if strings.TrimSpace(text) == "" {
		return "", false
	}
	return text, true
}

func (r *Responder) systemContext(snap *model.ContentSnapshot) string {
	var b strings.Builder
	b.WriteString("あなたは日本の自治体ポータルサイトの案内役です。")
	b.WriteString("以下のポータルの最新データだけを根拠に、丁寧な日本語で簡潔に答えてください。")
	b.WriteString("データにない情報は推測せず、わからないと伝えてください。\n")
	b.WriteString("今日の日付: ")
	b.WriteString(r.now().In(r.cfg.Location).Format("2006/01/02"))
	b.WriteString("\n\n")
	if dump := dumpSnapshot(snap, r.cfg.RowLimit, r.cfg.Location); dump != "" {
		b.WriteString(dump)
	} else {
		b.WriteString("（現在公開中のデータはありません）")
	}
	return b.String()
}
