package stock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"stockbot/internal/eventbus"
	logx "stockbot/pkg/logx"
)

// Source fetches the current snapshot from upstream.
type Source interface {
	Fetch(ctx context.Context) (Snapshot, error)
}

// Target is a resolved delivery destination for one cycle.
type Target interface {
	// Emoji returns custom emoji markup for a normalized item key, or "".
	Emoji(key string) string
	// Mentionable reports whether the group exists and can be pinged now.
	Mentionable(g GroupID) bool
	Send(ctx context.Context, msg Message) error
}

// Deliverer resolves the target. It returns an error wrapping
// ErrTargetMissing when no guild or channel is reachable.
type Deliverer interface {
	Target(ctx context.Context) (Target, error)
}

// Outcome classifies one poll cycle.
type Outcome string

const (
	OutcomeSent          Outcome = "sent"
	OutcomeFetchFailed   Outcome = "fetch_failed"
	OutcomeEmpty         Outcome = "empty"
	OutcomeTargetMissing Outcome = "target_missing"
	OutcomeSendFailed    Outcome = "send_failed"
)

// CycleResult is the summary of the most recent cycle (for !status and /status).
type CycleResult struct {
	At      time.Time     `json:"at"`
	Outcome Outcome       `json:"outcome"`
	Items   int           `json:"items"`
	Pinged  []GroupID     `json:"pinged,omitempty"`
	Err     string        `json:"err,omitempty"`
	Took    time.Duration `json:"took"`
}

type CheckerConfig struct {
	Registry    *Registry
	Exclusions  Exclusions
	Render      RenderOptions
	EmojiPrefix bool
}

// Checker is the poll-and-notify pipeline: fetch, classify, render, send.
type Checker struct {
	cfg CheckerConfig
	src Source
	dst Deliverer
	log logx.Logger
	bus eventbus.Bus
	now func() time.Time

	mu   sync.Mutex
	last CycleResult
}

func NewChecker(cfg CheckerConfig, src Source, dst Deliverer, log logx.Logger, bus eventbus.Bus) *Checker {
	return &Checker{cfg: cfg, src: src, dst: dst, log: log, bus: bus, now: time.Now}
}

// Check runs one cycle. The returned error wraps ErrEmptySnapshot,
// ErrTargetMissing or the source/send error; the result is always recorded.
func (c *Checker) Check(ctx context.Context) (res CycleResult, err error) {
	start := c.now()
	res.At = start
	defer func() {
		res.Took = c.now().Sub(start)
		if err != nil {
			res.Err = err.Error()
		}
		c.mu.Lock()
		c.last = res
		c.mu.Unlock()
		if c.bus != nil {
			c.bus.Publish(eventbus.Event{Type: eventbus.TypeCycleDone, Time: res.At, Data: res})
		}
	}()

	snap, err := c.src.Fetch(ctx)
	if err != nil {
		res.Outcome = OutcomeFetchFailed
		return res, err
	}
	res.Items = snap.Len()
	if res.Items == 0 {
		res.Outcome = OutcomeEmpty
		return res, ErrEmptySnapshot
	}

	tgt, err := c.dst.Target(ctx)
	if err != nil {
		res.Outcome = OutcomeTargetMissing
		if !errors.Is(err, ErrTargetMissing) {
			err = fmt.Errorf("%w: %w", ErrTargetMissing, err)
		}
		return res, err
	}

	var emojis EmojiResolver
	if c.cfg.EmojiPrefix {
		emojis = tgt.Emoji
	}
	cls := Classify(snap, c.cfg.Registry, c.cfg.Exclusions, emojis)
	msg := Render(cls, tgt.Mentionable, c.cfg.Render, start)

	if err := tgt.Send(ctx, msg); err != nil {
		res.Outcome = OutcomeSendFailed
		return res, fmt.Errorf("send notification: %w", err)
	}
	res.Outcome = OutcomeSent
	res.Pinged = msg.MentionGroups
	return res, nil
}

// Job runs Check and logs the outcome by class. It never returns an error
// so a failed cycle cannot stop the scheduler; the next wake is the retry.
func (c *Checker) Job(ctx context.Context) error {
	res, err := c.Check(ctx)
	fields := []logx.Field{
		logx.String("outcome", string(res.Outcome)),
		logx.Int("items", res.Items),
		logx.Duration("took", res.Took),
	}
	switch res.Outcome {
	case OutcomeSent:
		c.log.Info("stock notification sent", append(fields, logx.Int("pinged", len(res.Pinged)))...)
	case OutcomeFetchFailed:
		c.log.Warn("inventory fetch failed; cycle aborted", append(fields, logx.Err(err))...)
	case OutcomeEmpty:
		c.log.Info("no seeds or gear in upstream response; nothing sent", fields...)
	case OutcomeTargetMissing:
		c.log.Error("delivery target missing; cycle aborted", append(fields, logx.Err(err))...)
	case OutcomeSendFailed:
		c.log.Warn("stock notification failed", append(fields, logx.Err(err))...)
	}
	return nil
}

// Last returns the most recent cycle result (zero before the first run).
func (c *Checker) Last() CycleResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}
