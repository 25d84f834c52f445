// Package chat drives the request/response lifecycle of a conversation
// against the RAG backend. The orchestrator owns the in-flight state; all
// of its methods must be called from the owning event loop. The only work
// allowed off-loop is the resolver closure returned by Submit, which does
// the network call and nothing else.
package chat

import (
	"context"
	"log"
	"strings"
	"time"

	"campusiq-chat/internal/ragapi"
	"campusiq-chat/internal/session"
)

// ErrorReply is the fixed answer shown for any failed query. The real error
// goes to the diagnostics log, never into the conversation.
const ErrorReply = "Sorry, I encountered an error processing your query. Please try again."

type Querier interface {
	Query(ctx context.Context, query string, k int) (ragapi.QueryResult, error)
}

// QueryRecord summarizes one resolved query for the audit log.
type QueryRecord struct {
	AskedAt     time.Time
	Question    string
	OK          bool
	SourceCount int
	Elapsed     time.Duration
}

// Outcome is the result of one in-flight query. It must be handed back to
// Complete exactly once, on the event loop.
type Outcome struct {
	token   uint64
	elapsed time.Duration
	result  ragapi.QueryResult
	err     error
}

func (o Outcome) Failed() bool { return o.err != nil }

type Orchestrator struct {
	store  *session.Store
	client Querier
	topK   int

	pending bool
	token   uint64
	closed  bool

	record func(QueryRecord)
	logf   func(format string, args ...any)
}

type Option func(*Orchestrator)

// WithRecorder registers a callback invoked once per resolved query.
func WithRecorder(fn func(QueryRecord)) Option {
	return func(o *Orchestrator) { o.record = fn }
}

func WithLogger(logf func(format string, args ...any)) Option {
	return func(o *Orchestrator) { o.logf = logf }
}

func NewOrchestrator(store *session.Store, client Querier, topK int, opts ...Option) *Orchestrator {
	if topK <= 0 {
		topK = ragapi.DefaultTopK
	}
	o := &Orchestrator{
		store:  store,
		client: client,
		topK:   topK,
		logf:   log.Printf,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Pending reports whether a query is currently in flight.
func (o *Orchestrator) Pending() bool { return o.pending }

// Submit starts a query for the given question. It appends the user message
// and returns the resolver to run off-loop, whose Outcome must then be
// passed to Complete. Submissions are rejected (nil, false) when the
// question is empty after trimming, when a query is already in flight, or
// after Close; nothing is appended and no call is made in those cases.
func (o *Orchestrator) Submit(question string) (func(ctx context.Context) Outcome, bool) {
	question = strings.TrimSpace(question)
	if question == "" || o.pending || o.closed {
		return nil, false
	}

	o.store.Append(session.NewUserMessage(question))
	o.pending = true
	o.token++

	token := o.token
	client := o.client
	k := o.topK
	return func(ctx context.Context) Outcome {
		start := time.Now()
		result, err := client.Query(ctx, question, k)
		return Outcome{
			token:   token,
			elapsed: time.Since(start),
			result:  result,
			err:     err,
		}
	}, true
}

// Complete applies a resolution: it appends the bot message (answer or
// fixed error reply) and returns it. An outcome whose token no longer
// matches the current in-flight query, or that arrives after Close, is
// discarded and reported as (zero, false).
func (o *Orchestrator) Complete(out Outcome) (session.Message, bool) {
	if o.closed || !o.pending || out.token != o.token {
		o.logf("chat: discarding stale query outcome (token=%d current=%d)", out.token, o.token)
		return session.Message{}, false
	}
	o.pending = false

	var msg session.Message
	if out.err != nil {
		o.logf("chat: query failed after %s: %v", out.elapsed.Round(time.Millisecond), out.err)
		msg = session.NewErrorMessage(ErrorReply)
	} else {
		msg = session.NewBotMessage(out.result.Response, convertSources(out.result.Sources))
	}
	o.store.Append(msg)

	if o.record != nil {
		o.record(QueryRecord{
			AskedAt:     time.Now(),
			Question:    lastQuestion(o.store),
			OK:          out.err == nil,
			SourceCount: len(msg.Sources),
			Elapsed:     out.elapsed,
		})
	}
	return msg, true
}

// Close detaches the orchestrator from its session. Any outcome resolved
// afterwards is discarded rather than applied to the torn-down store.
func (o *Orchestrator) Close() {
	o.closed = true
}

func convertSources(in []ragapi.Source) []session.Source {
	if len(in) == 0 {
		return nil
	}
	out := make([]session.Source, 0, len(in))
	for _, s := range in {
		st := session.ScoreRelevance
		if s.ScoreType == string(session.ScoreRerank) {
			st = session.ScoreRerank
		}
		out = append(out, session.Source{
			Title:          s.Title,
			URL:            s.URL,
			Score:          s.Score,
			ScoreType:      st,
			ContentPreview: s.ContentPreview,
		})
	}
	return out
}

func lastQuestion(store *session.Store) string {
	snap := store.Snapshot()
	for i := len(snap) - 1; i >= 0; i-- {
		if snap[i].Role == session.RoleUser {
			return snap[i].Content
		}
	}
	return ""
}
