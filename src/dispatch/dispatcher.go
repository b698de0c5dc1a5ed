package dispatch

import (
	"context"
	"fmt"
	"line_chatbot/src/flow"
	"line_chatbot/src/intent"
	"line_chatbot/src/logger"
	"line_chatbot/src/metrics"
	"line_chatbot/src/model"
	"line_chatbot/src/storage"
	"time"

	"github.com/hashicorp/go-multierror"
)

// ----------------------------------------------------
// ================ Collaborators ================

type Replier interface {
	Reply(ctx context.Context, replyToken string, msgs []model.Message) error
}

type LoadingIndicator interface {
	ShowLoading(ctx context.Context, userID string) error
}

type ProfileFetcher interface {
	Profile(ctx context.Context, userID string) (*model.Profile, error)
}

type ContentFetcher interface {
	Content(ctx context.Context, messageID string) (*model.Content, error)
}

// Describer turns image or audio content into text
type Describer interface {
	Describe(ctx context.Context, prompt string, data []byte, mimeType string) (string, error)
}

// Recorder persists side records of one-shot events
type Recorder interface {
	CheckIn(ctx context.Context, c model.BeaconCheckin) (bool, error)
	SaveProfile(ctx context.Context, p model.Profile) error
}

// Claimer reserves an event id so redeliveries are handled once
type Claimer interface {
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) (bool, error)
}

type Classifier interface {
	Classify(ctx context.Context, in intent.Input) (intent.Route, error)
}

type BookingFlow interface {
	Start(ctx context.Context, userID string) ([]model.Message, error)
	Menu() []model.Message
	HandleText(ctx context.Context, userID, text string) ([]model.Message, error)
	HandlePostback(ctx context.Context, userID, action string, params *model.PostbackParams) ([]model.Message, bool, error)
}

type BookingCommands interface {
	View(ctx context.Context, userID string) ([]model.Message, error)
	Cancel(ctx context.Context, userID, text string) ([]model.Message, error)
}

type ChatFlow interface {
	Handle(ctx context.Context, userID, text string) ([]model.Message, error)
}

// Deps wires the dispatcher. Loading, Describer, Recorder and Claimer may be nil.
type Deps struct {
	Replier    Replier
	Loading    LoadingIndicator
	Profiles   ProfileFetcher
	Content    ContentFetcher
	Describer  Describer
	Recorder   Recorder
	Claimer    Claimer
	Classifier Classifier
	Booking    BookingFlow
	Commands   BookingCommands
	Chat       ChatFlow
	Replies    flow.EventReplies
}

type Options struct {
	// DedupTTL is how long a handled event id is remembered
	DedupTTL time.Duration
	// ClaimTTL bounds an in-flight claim, so a crash mid-event does not block redelivery for DedupTTL
	ClaimTTL time.Duration
	Location *time.Location
	Now      func() time.Time
}

const (
	claimPending = "pending"
	claimDone    = "done"
)

// ----------------------------------------------------
// ================ Dispatcher ================

// Result summarises one webhook batch
type Result struct {
	Handled int
	Skipped int
	Failed  int
	Err     error
}

// Dispatcher routes webhook events to flows one at a time, in batch order
type Dispatcher struct {
	deps     Deps
	dedupTTL time.Duration
	claimTTL time.Duration
	loc      *time.Location
	now      func() time.Time
}

func New(deps Deps, opts Options) *Dispatcher {
	if opts.DedupTTL <= 0 {
		opts.DedupTTL = 10 * time.Minute
	}
	if opts.ClaimTTL <= 0 || opts.ClaimTTL > opts.DedupTTL {
		opts.ClaimTTL = min(time.Minute, opts.DedupTTL)
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Dispatcher{
		deps:     deps,
		dedupTTL: opts.DedupTTL,
		claimTTL: opts.ClaimTTL,
		loc:      opts.Location,
		now:      opts.Now,
	}
}

// Dispatch handles every event of a batch sequentially. A failing event is
// logged and counted; it never stops the rest of the batch.
func (d *Dispatcher) Dispatch(ctx context.Context, events []model.Event) Result {
	start := time.Now()
	defer func() { metrics.BatchDuration.Observe(time.Since(start).Seconds()) }()

	var res Result
	var errs *multierror.Error

	for i, ev := range events {
		evCtx := logger.WithFields(ctx, map[string]any{
			"event_type":       string(ev.Type),
			"webhook_event_id": ev.WebhookEventID,
			"user_id":          ev.Source.UserID,
		})

		if !d.claim(evCtx, ev) {
			logger.Ctx(evCtx).Info().Msg("Skipping redelivered event")
			metrics.EventsHandled.WithLabelValues(string(ev.Type), "duplicate").Inc()
			res.Skipped++
			continue
		}

		err := d.handleSafely(evCtx, ev)
		d.settle(evCtx, ev, err == nil)
		if err != nil {
			logger.Ctx(evCtx).Error().Err(err).Msg("Event handling failed")
			metrics.EventsHandled.WithLabelValues(string(ev.Type), "error").Inc()
			errs = multierror.Append(errs, fmt.Errorf("event %d (%s): %w", i, ev.Type, err))
			res.Failed++
			continue
		}
		metrics.EventsHandled.WithLabelValues(string(ev.Type), "ok").Inc()
		res.Handled++
	}

	res.Err = errs.ErrorOrNil()
	logger.Ctx(ctx).Info().
		Int("events", len(events)).
		Int("handled", res.Handled).
		Int("skipped", res.Skipped).
		Int("failed", res.Failed).
		Msg("Webhook batch dispatched")
	return res
}

// claim reports whether ev should be handled. Events without an id and
// store failures are always handled.
func (d *Dispatcher) claim(ctx context.Context, ev model.Event) bool {
	if d.deps.Claimer == nil || ev.WebhookEventID == "" {
		return true
	}
	ok, err := d.deps.Claimer.SetNX(ctx, storage.EventKey(ev.WebhookEventID), claimPending, d.claimTTL)
	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).Msg("Event claim failed, handling anyway")
		return true
	}
	return ok
}

// settle keeps the claim of a handled event for DedupTTL and releases the
// claim of a failed one so a redelivery is handled again
func (d *Dispatcher) settle(ctx context.Context, ev model.Event, handled bool) {
	if d.deps.Claimer == nil || ev.WebhookEventID == "" {
		return
	}
	key := storage.EventKey(ev.WebhookEventID)
	if handled {
		if err := d.deps.Claimer.Set(ctx, key, claimDone, d.dedupTTL); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Msg("Failed to keep event claim")
		}
		return
	}
	if _, err := d.deps.Claimer.Delete(ctx, key); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Msg("Failed to release event claim")
	}
}

func (d *Dispatcher) handleSafely(ctx context.Context, ev model.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return d.handle(ctx, ev)
}

func (d *Dispatcher) handle(ctx context.Context, ev model.Event) error {
	switch ev.Type {
	case model.EventMessage:
		d.showLoading(ctx, ev)
		return d.handleMessage(ctx, ev)
	case model.EventPostback:
		d.showLoading(ctx, ev)
		return d.handlePostback(ctx, ev)
	case model.EventFollow:
		return d.handleFollow(ctx, ev)
	case model.EventJoin:
		return d.reply(ctx, ev.ReplyToken, model.TextMessage(d.deps.Replies.GroupGreeting))
	case model.EventMemberJoined:
		return d.handleMemberJoined(ctx, ev)
	case model.EventBeacon:
		return d.handleBeacon(ctx, ev)
	default:
		logger.Ctx(ctx).Debug().Msg("Event logged only")
		return nil
	}
}

// showLoading is best effort and only applies to 1:1 chats
func (d *Dispatcher) showLoading(ctx context.Context, ev model.Event) {
	if d.deps.Loading == nil || !ev.IsIndividual() {
		return
	}
	if err := d.deps.Loading.ShowLoading(ctx, ev.Source.UserID); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Msg("Loading indicator failed")
	}
}

func (d *Dispatcher) reply(ctx context.Context, replyToken string, msgs ...model.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	if err := d.deps.Replier.Reply(ctx, replyToken, msgs); err != nil {
		metrics.ReplyErrors.Inc()
		return fmt.Errorf("reply failed: %w", err)
	}
	return nil
}
