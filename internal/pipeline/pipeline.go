// Package pipeline orchestrates message processing: keyword matching, rate
// limiting, formatting, and forwarding, across the historical backfill and
// the live monitoring phases.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/telescout/telescout/internal/events"
	"github.com/telescout/telescout/internal/logger"
	"github.com/telescout/telescout/internal/matcher"
	"github.com/telescout/telescout/internal/storage"
	"github.com/telescout/telescout/internal/telegram"
)

// Outcome classifies the result of processing one matched message.
type Outcome string

const (
	OutcomeSent        Outcome = "sent"
	OutcomeRateLimited Outcome = "rate-limited"
	OutcomeError       Outcome = "error"

	// outcomeSkipped covers no-text, no-match, and duplicate messages;
	// not recorded or published.
	outcomeSkipped Outcome = ""
)

// maxTrackedMessages bounds the in-memory dedup set. When exceeded, the
// oldest half is dropped, mirroring the bounded cache the tool has always
// used.
const maxTrackedMessages = 10000

// Client is the Telegram surface the pipeline consumes.
type Client interface {
	HistorySince(ctx context.Context, ch telegram.Channel, since time.Time) ([]telegram.Message, error)
	Subscribe(ctx context.Context, channels []telegram.Channel) (<-chan telegram.Message, error)
	Forward(ctx context.Context, text string) error
}

// ForwardLimiter gates forwards by the hourly budget.
type ForwardLimiter interface {
	Allow(channelID int64) bool
}

// OutcomeStore persists forward outcomes. Optional.
type OutcomeStore interface {
	RecordOutcome(ctx context.Context, rec *storage.ForwardRecord) error
}

// Options holds the immutable pipeline settings for one run.
type Options struct {
	Channels     []telegram.Channel
	TimeWindow   time.Duration // historical scan depth; 0 disables backfill
	ForwardDelay time.Duration // pause after each successful forward
	MaxLength    int           // forwarded content cap
	MaxAttempts  int           // send attempts for retryable failures
	BaseBackoff  time.Duration // backoff base, doubled per attempt
}

type messageKey struct {
	channelID int64
	messageID int
}

// Pipeline runs the match, limit, format, forward sequence. Historical and
// live sources feed the same handle path; all forward attempts are
// serialized through sendMu so the rate limiter and the inter-forward delay
// see one globally ordered stream.
type Pipeline struct {
	client    Client
	matcher   *matcher.Matcher
	limiter   ForwardLimiter
	store     OutcomeStore
	publisher events.Publisher
	opts      Options
	log       *logger.Logger

	titles map[int64]string

	sendMu sync.Mutex

	dedupMu    sync.Mutex
	seen       map[messageKey]bool
	seenOrder  []messageKey
	counters stats

	runID uuid.UUID

	now  func() time.Time
	wait func(ctx context.Context, d time.Duration) error
}

// SetRunID stamps outcome events with the owning run. Called by the run
// manager before Run.
func (p *Pipeline) SetRunID(id uuid.UUID) {
	p.runID = id
}

// New creates a pipeline. store and publisher may be nil.
func New(client Client, m *matcher.Matcher, limiter ForwardLimiter, opts Options, store OutcomeStore, publisher events.Publisher) *Pipeline {
	titles := make(map[int64]string, len(opts.Channels))
	for _, ch := range opts.Channels {
		title := ch.Title
		if title == "" {
			title = fmt.Sprintf("channel %d", ch.ID)
		}
		titles[ch.ID] = title
	}

	return &Pipeline{
		client:    client,
		matcher:   m,
		limiter:   limiter,
		store:     store,
		publisher: publisher,
		opts:      opts,
		log:       logger.Get(),
		titles:    titles,
		seen:      make(map[messageKey]bool),
		now:       time.Now,
		wait:      sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SeedDedup marks previously sent messages so a restarted run does not
// forward them again.
func (p *Pipeline) SeedDedup(records []storage.ForwardRecord) {
	p.dedupMu.Lock()
	defer p.dedupMu.Unlock()
	for _, rec := range records {
		key := messageKey{channelID: rec.ChannelID, messageID: rec.MessageID}
		if !p.seen[key] {
			p.seen[key] = true
			p.seenOrder = append(p.seenOrder, key)
		}
	}
}

// Stats returns a snapshot of the run statistics.
func (p *Pipeline) Stats() Snapshot {
	return p.counters.snapshot(p.now())
}

// Run executes the enabled phases and blocks until they finish or ctx is
// canceled. With live enabled the subscription starts before the backfill so
// no message falls in the gap between the two phases.
func (p *Pipeline) Run(ctx context.Context, historical, live bool) error {
	p.counters.start(p.now())
	defer p.counters.setState(StateStopped)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var updates <-chan telegram.Message
	if live {
		var err error
		updates, err = p.client.Subscribe(runCtx, p.opts.Channels)
		if err != nil {
			return fmt.Errorf("subscribe: %w", err)
		}
	}

	if historical && p.opts.TimeWindow > 0 {
		p.counters.setState(StateScanning)
		if err := p.ScanHistorical(runCtx); err != nil {
			// a fatal client error kills the whole run; per-channel
			// failures were already absorbed inside the scan
			if telegram.IsFatal(err) || !live {
				return err
			}
			p.log.Error().Err(err).Msg("historical scan failed, continuing with live monitoring")
		}
	}

	if !live {
		return nil
	}

	p.counters.setState(StateMonitoring)
	p.log.Info().Msg("live monitoring active")
	return p.consume(runCtx, updates)
}

// ScanHistorical processes each channel's history within the configured
// window, oldest first. Per-channel failures are logged and skipped; only
// cancellation or a fatal client error aborts the scan.
func (p *Pipeline) ScanHistorical(ctx context.Context) error {
	since := p.now().Add(-p.opts.TimeWindow)
	p.log.Info().Time("since", since).Int("channels", len(p.opts.Channels)).
		Msg("scanning historical messages")

	var totalScanned, totalForwarded int64
	for _, ch := range p.opts.Channels {
		if ctx.Err() != nil {
			p.log.Info().Msg("historical scan canceled")
			return ctx.Err()
		}

		messages, err := p.client.HistorySince(ctx, ch, since)
		if err != nil {
			if ctx.Err() != nil || telegram.IsFatal(err) {
				return err
			}
			p.counters.addError()
			p.log.Error().Err(err).Int64("channel_id", ch.ID).Msg("history fetch failed, skipping channel")
			continue
		}

		var forwarded int64
		for _, msg := range messages {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if p.handle(ctx, msg, true) == OutcomeSent {
				forwarded++
			}
		}

		p.log.Info().Str("channel", p.titles[ch.ID]).Int("scanned", len(messages)).
			Int64("forwarded", forwarded).Msg("channel scan complete")
		totalScanned += int64(len(messages))
		totalForwarded += forwarded
	}

	p.log.Info().Int64("scanned", totalScanned).Int64("forwarded", totalForwarded).
		Msg("historical scan complete")
	return nil
}

// consume processes live updates until ctx is canceled.
func (p *Pipeline) consume(ctx context.Context, updates <-chan telegram.Message) error {
	for {
		select {
		case <-ctx.Done():
			p.log.Info().Msg("live monitoring stopped")
			return nil
		case msg, ok := <-updates:
			if !ok {
				return fmt.Errorf("update stream closed")
			}
			p.handle(ctx, msg, false)
		}
	}
}

// handle runs one message through the full path. Per-message errors are
// absorbed here and never abort the calling phase.
func (p *Pipeline) handle(ctx context.Context, msg telegram.Message, historical bool) Outcome {
	p.counters.addScanned()

	// text-only policy: media without a caption has nothing to match
	if strings.TrimSpace(msg.Text) == "" {
		return outcomeSkipped
	}

	matched := p.matcher.Match(msg.Text)
	if len(matched) == 0 {
		return outcomeSkipped
	}
	p.counters.addMatched()

	key := messageKey{channelID: msg.ChannelID, messageID: msg.ID}
	if p.alreadySeen(key) {
		p.log.Debug().Int64("channel_id", msg.ChannelID).Int("message_id", msg.ID).
			Msg("duplicate message, skipping")
		return outcomeSkipped
	}

	// limiter check, send, and delay form one critical section so the two
	// phases cannot interleave forwards
	p.sendMu.Lock()
	defer p.sendMu.Unlock()

	if !p.limiter.Allow(msg.ChannelID) {
		p.counters.addRateLimited()
		p.log.Warn().Int64("channel_id", msg.ChannelID).Int("message_id", msg.ID).
			Msg("rate limit exceeded, skipping forward")
		p.recordOutcome(ctx, msg, matched, OutcomeRateLimited, "hourly budget exhausted")
		return OutcomeRateLimited
	}

	content := BuildForward(p.titles[msg.ChannelID], msg, matched, historical, p.opts.MaxLength)

	if err := p.send(ctx, content); err != nil {
		p.counters.addError()
		p.log.Error().Err(err).Int64("channel_id", msg.ChannelID).Int("message_id", msg.ID).
			Msg("forward failed")
		p.recordOutcome(ctx, msg, matched, OutcomeError, err.Error())
		return OutcomeError
	}

	p.markSeen(key)
	p.counters.addForwarded()
	p.log.Info().Str("channel", p.titles[msg.ChannelID]).Int("message_id", msg.ID).
		Strs("keywords", matched).Msg("message forwarded")
	p.recordOutcome(ctx, msg, matched, OutcomeSent, "")

	// smooth outbound traffic independent of the hourly budget
	_ = p.wait(ctx, p.opts.ForwardDelay)
	return OutcomeSent
}

// send forwards content with bounded retries. Flood waits pause for the
// server-mandated time; other retryable errors back off exponentially.
func (p *Pipeline) send(ctx context.Context, content string) error {
	var lastErr error
	for attempt := 0; attempt < p.opts.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := p.opts.BaseBackoff << (attempt - 1)
			if fw, ok := lastErr.(*telegram.FloodWaitError); ok {
				delay = time.Duration(fw.Seconds) * time.Second
			}
			p.log.Warn().Err(lastErr).Int("attempt", attempt+1).Dur("backoff", delay).
				Msg("retrying forward")
			if err := p.wait(ctx, delay); err != nil {
				return err
			}
		}

		lastErr = p.client.Forward(ctx, content)
		if lastErr == nil {
			return nil
		}
		if !telegram.IsRetryable(lastErr) {
			return lastErr
		}
	}
	return fmt.Errorf("forward failed after %d attempts: %w", p.opts.MaxAttempts, lastErr)
}

func (p *Pipeline) alreadySeen(key messageKey) bool {
	p.dedupMu.Lock()
	defer p.dedupMu.Unlock()
	return p.seen[key]
}

func (p *Pipeline) markSeen(key messageKey) {
	p.dedupMu.Lock()
	defer p.dedupMu.Unlock()

	if p.seen[key] {
		return
	}
	p.seen[key] = true
	p.seenOrder = append(p.seenOrder, key)

	if len(p.seenOrder) > maxTrackedMessages {
		drop := p.seenOrder[:len(p.seenOrder)/2]
		p.seenOrder = p.seenOrder[len(p.seenOrder)/2:]
		for _, old := range drop {
			delete(p.seen, old)
		}
	}
}

// recordOutcome persists and publishes an outcome. Both are best-effort.
func (p *Pipeline) recordOutcome(ctx context.Context, msg telegram.Message, matched []string, outcome Outcome, reason string) {
	if p.store != nil {
		rec := &storage.ForwardRecord{
			ChannelID: msg.ChannelID,
			MessageID: msg.ID,
			Keywords:  strings.Join(matched, ","),
			Outcome:   string(outcome),
			Reason:    reason,
		}
		if err := p.store.RecordOutcome(ctx, rec); err != nil {
			p.log.Warn().Err(err).Msg("failed to persist outcome")
		}
	}

	if p.publisher != nil {
		event := events.OutcomeEvent{
			RunID:     p.runID,
			ChannelID: msg.ChannelID,
			MessageID: msg.ID,
			Keywords:  matched,
			Outcome:   string(outcome),
			Reason:    reason,
			At:        p.now(),
		}
		if err := p.publisher.PublishOutcome(ctx, event); err != nil {
			p.log.Warn().Err(err).Msg("failed to publish outcome event")
		}
	}
}
