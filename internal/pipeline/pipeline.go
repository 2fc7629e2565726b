// Package pipeline drives one conversational exchange at a time: it sends the
// conversation and the current traits profile to the analysis service, folds
// the returned patch into the profile, and records the reply.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/20223096/mbti-app/internal/analysis"
	"github.com/20223096/mbti-app/internal/conversation"
	"github.com/20223096/mbti-app/internal/storage"
	"github.com/20223096/mbti-app/internal/traits"
)

const (
	DefaultGreeting      = "안녕! 상황을 말해줘 🙂"
	DefaultResetGreeting = "대화를 초기화했어. 다시 말해줘!"

	// FallbackReply stands in for an absent or empty assistant_message.
	FallbackReply = "응답이 비었어."

	failurePrefix = "에러: "
)

var (
	ErrEmptyMessage = errors.New("pipeline: empty message")
	ErrBusy         = errors.New("pipeline: a turn is already in flight")
)

// Analyzer is the remote collaborator. Implemented by analysis.Client.
type Analyzer interface {
	Chat(ctx context.Context, req analysis.ChatRequest) (analysis.ChatResponse, error)
}

// ProfileStore is the subset of profile.Manager the pipeline drives.
type ProfileStore interface {
	Ensure(label string) (traits.Profile, error)
	CurrentSnapshot() *traits.Profile
	Commit(p traits.Profile) error
	Reset() error
}

// Journal records finished exchanges. Implemented by storage.Store.
type Journal interface {
	SaveExchange(e storage.Exchange) error
}

// Selection holds the free-text tags sent with every turn.
type Selection struct {
	Label             string `json:"mbti"`
	RelationshipType  string `json:"relationship_type"`
	RelationshipState string `json:"relationship_state"`
}

// NormalizeLabel trims and upper-cases a classification label.
func NormalizeLabel(label string) string {
	return strings.ToUpper(strings.TrimSpace(label))
}

type Outcome string

const (
	OutcomeApplied Outcome = "applied"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// TurnResult describes how a submitted turn ended.
type TurnResult struct {
	Outcome    Outcome           `json:"outcome"`
	Reply      conversation.Turn `json:"reply"`
	PatchCount int               `json:"patch_count"`
	Error      string            `json:"error,omitempty"`

	// Advisory fields passed through from the analysis.
	Summary    string   `json:"summary,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// Status is the display-facing view of the pipeline.
type Status struct {
	State     string    `json:"state"`
	Sending   bool      `json:"sending"`
	Selection Selection `json:"selection"`
	SessionID string    `json:"session_id"`
}

// Options tunes a Pipeline. Zero values pick the defaults.
type Options struct {
	Greeting      string
	ResetGreeting string
	// HistoryWindow bounds how many trailing turns are sent; 0 sends all.
	HistoryWindow int
	Journal       Journal
}

// Pipeline admits at most one in-flight turn. The mutex only guards state
// transitions and the selection; the remote call runs unlocked while the
// state machine sits in Sending.
type Pipeline struct {
	analyzer  Analyzer
	profiles  ProfileStore
	log       *conversation.Log
	journal   Journal
	sessionID string

	resetGreeting string
	window        int

	mu    sync.Mutex
	state State
	sel   Selection
}

// New creates a Pipeline whose log starts with the greeting.
func New(analyzer Analyzer, profiles ProfileStore, opts Options) *Pipeline {
	if opts.Greeting == "" {
		opts.Greeting = DefaultGreeting
	}
	if opts.ResetGreeting == "" {
		opts.ResetGreeting = DefaultResetGreeting
	}
	return &Pipeline{
		analyzer:      analyzer,
		profiles:      profiles,
		log:           conversation.NewLog(opts.Greeting),
		journal:       opts.Journal,
		sessionID:     uuid.NewString(),
		resetGreeting: opts.ResetGreeting,
		window:        opts.HistoryWindow,
		state:         Idle,
	}
}

// Submit runs one turn for text. Blank text returns ErrEmptyMessage and a
// turn already in flight returns ErrBusy; both leave every piece of state
// untouched. Any other problem is reported inside the result as a failure
// turn, never as an error.
func (p *Pipeline) Submit(ctx context.Context, text string) (TurnResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return TurnResult{}, ErrEmptyMessage
	}

	p.mu.Lock()
	if p.state != Idle {
		p.mu.Unlock()
		return TurnResult{}, ErrBusy
	}
	if err := p.transitionLocked(Sending); err != nil {
		p.mu.Unlock()
		return TurnResult{}, err
	}
	sel := p.sel
	p.log.Append(conversation.UserTurn(text))
	p.mu.Unlock()

	start := time.Now()
	snap := p.profiles.CurrentSnapshot()
	req := analysis.ChatRequest{
		Messages:          toMessages(p.log.Window(p.window)),
		MBTI:              analysis.Optional(sel.Label),
		RelationshipType:  analysis.Optional(sel.RelationshipType),
		RelationshipState: analysis.Optional(sel.RelationshipState),
		TraitsProfile:     snap,
	}

	resp, err := p.chat(ctx, req)
	var res TurnResult
	if err != nil {
		res = p.fail(err)
	} else {
		res = p.apply(resp, snap)
	}

	elapsed := time.Since(start)
	turnDuration.Observe(elapsed.Seconds())
	turnsTotal.WithLabelValues(string(res.Outcome)).Inc()
	p.record(sel, text, res, elapsed)

	return res, nil
}

// chat calls the analyzer, turning a panic into an error so the turn still
// ends in Idle.
func (p *Pipeline) chat(ctx context.Context, req analysis.ChatRequest) (resp analysis.ChatResponse, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("analyzer panicked: %v", r)
		}
	}()
	return p.analyzer.Chat(ctx, req)
}

func (p *Pipeline) fail(err error) TurnResult {
	slog.Warn("turn failed", "session", p.sessionID, "error", err)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.mustTransitionLocked(Failed)
	reply := conversation.AssistantTurn(failurePrefix+err.Error(), nil)
	p.log.Append(reply)
	p.mustTransitionLocked(Idle)

	return TurnResult{Outcome: OutcomeFailed, Reply: reply, Error: err.Error()}
}

func (p *Pipeline) apply(resp analysis.ChatResponse, snap *traits.Profile) TurnResult {
	p.mu.Lock()
	p.mustTransitionLocked(Applying)
	p.mu.Unlock()

	res := TurnResult{Outcome: OutcomeSkipped}
	patches, ok := resp.Analysis.Patch()
	switch {
	case !ok:
		slog.Debug("no usable traits patch in response", "session", p.sessionID)
	case snap == nil:
		slog.Debug("no profile snapshot, patch skipped", "session", p.sessionID, "entries", len(patches))
	default:
		updated := snap.WithPatches(patches)
		if err := p.profiles.Commit(updated); err != nil {
			slog.Warn("committing patched profile failed", "session", p.sessionID, "error", err)
		}
		res.Outcome = OutcomeApplied
		res.PatchCount = len(patches)
		patchEntriesApplied.Add(float64(len(patches)))
	}

	text := resp.AssistantMessage
	if strings.TrimSpace(text) == "" {
		text = FallbackReply
	}
	res.Reply = conversation.AssistantTurn(text, resp.Analysis.FollowUps())
	res.Summary = resp.Analysis.Summary()
	if c, ok := resp.Analysis.Confidence(); ok {
		res.Confidence = &c
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.log.Append(res.Reply)
	p.mustTransitionLocked(Idle)
	return res
}

func (p *Pipeline) record(sel Selection, text string, res TurnResult, elapsed time.Duration) {
	if p.journal == nil {
		return
	}
	suggestions, _ := json.Marshal(res.Reply.Suggestions)
	if res.Reply.Suggestions == nil {
		suggestions = []byte("[]")
	}
	err := p.journal.SaveExchange(storage.Exchange{
		ID:            uuid.NewString(),
		SessionID:     p.sessionID,
		CreatedAt:     time.Now().UTC(),
		Label:         sel.Label,
		UserText:      text,
		AssistantText: res.Reply.Text,
		Suggestions:   string(suggestions),
		Outcome:       string(res.Outcome),
		PatchCount:    res.PatchCount,
		Error:         res.Error,
		DurationMs:    elapsed.Milliseconds(),
	})
	if err != nil {
		slog.Warn("journaling exchange failed", "session", p.sessionID, "error", err)
	}
}

// Reset clears the log to the reset greeting and drops the persisted
// profile. It is refused with ErrBusy while a turn is in flight.
func (p *Pipeline) Reset() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != Idle {
		return ErrBusy
	}
	p.log.Reset(p.resetGreeting)
	if err := p.profiles.Reset(); err != nil {
		return fmt.Errorf("resetting profile: %w", err)
	}
	return nil
}

// SetSelection replaces the tags sent with later turns. A non-empty label is
// normalized and its profile ensured. Refused with ErrBusy mid-turn.
func (p *Pipeline) SetSelection(sel Selection) error {
	sel.Label = NormalizeLabel(sel.Label)
	sel.RelationshipType = strings.TrimSpace(sel.RelationshipType)
	sel.RelationshipState = strings.TrimSpace(sel.RelationshipState)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != Idle {
		return ErrBusy
	}
	p.sel = sel
	if sel.Label == "" {
		return nil
	}
	if _, err := p.profiles.Ensure(sel.Label); err != nil {
		return fmt.Errorf("ensuring profile for %s: %w", sel.Label, err)
	}
	return nil
}

func (p *Pipeline) Selection() Selection {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sel
}

func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Pipeline) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Status{
		State:     p.state.String(),
		Sending:   p.state != Idle,
		Selection: p.sel,
		SessionID: p.sessionID,
	}
}

// Messages returns a copy of the conversation log.
func (p *Pipeline) Messages() []conversation.Turn {
	return p.log.Turns()
}

// Profile returns the current profile snapshot, or nil.
func (p *Pipeline) Profile() *traits.Profile {
	return p.profiles.CurrentSnapshot()
}

func (p *Pipeline) SessionID() string { return p.sessionID }

func (p *Pipeline) transitionLocked(next State) error {
	s, err := p.state.next(next)
	if err != nil {
		return err
	}
	p.state = s
	return nil
}

// mustTransitionLocked is for transitions the turn flow guarantees.
func (p *Pipeline) mustTransitionLocked(next State) {
	if err := p.transitionLocked(next); err != nil {
		panic(err)
	}
}

func toMessages(turns []conversation.Turn) []analysis.Message {
	out := make([]analysis.Message, len(turns))
	for i, t := range turns {
		out[i] = analysis.Message{Role: string(t.Role), Content: t.Text}
	}
	return out
}
