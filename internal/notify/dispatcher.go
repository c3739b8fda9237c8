package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/heuritech/gitlab-slack-notifier/internal/event"
	"github.com/heuritech/gitlab-slack-notifier/models"
)

// DefaultWorkers bounds the number of concurrent per-recipient sends.
const DefaultWorkers = 4

// DispatcherOptions tunes a Dispatcher.
type DispatcherOptions struct {
	// FallbackChannel receives messages that could not reach some recipients.
	FallbackChannel string
	// DebugChannel, when set, gets a copy of every derived message with the
	// raw event attached.
	DebugChannel string
	// Workers bounds concurrent sends. Zero means DefaultWorkers.
	Workers int
	// OnOutcome is called for every outcome once the dispatch completes.
	OnOutcome func(deliveryID string, o models.Outcome)
}

// Dispatcher delivers the notification of an event to each recipient and
// reports the ones it could not reach on the fallback channel.
type Dispatcher struct {
	deriver *Deriver
	sender  Sender
	handles Handles
	opts    DispatcherOptions
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(deriver *Deriver, sender Sender, handles Handles, opts DispatcherOptions) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	return &Dispatcher{deriver: deriver, sender: sender, handles: handles, opts: opts}
}

// Derive exposes the notification ev would produce without sending it.
func (d *Dispatcher) Derive(ctx context.Context, ev *event.Event) (*Notification, error) {
	return d.deriver.Derive(ctx, ev)
}

// target is a recipient whose chat handle is known.
type target struct {
	email  string
	handle string
}

// Dispatch derives the notification of ev and delivers it. Recipients are
// resolved to handles first, sends then fan out, and only once every send
// has returned are unreachable recipients reported on the fallback channel.
//
// An error means nothing was sent to recipients: either the event could not
// be decoded or a GitLab lookup failed.
func (d *Dispatcher) Dispatch(ctx context.Context, deliveryID string, ev *event.Event) ([]models.Outcome, error) {
	log := slog.With("delivery", deliveryID, "event", ev.Describe())

	n, err := d.deriver.Derive(ctx, ev)
	if err != nil {
		log.Error("notify: deriving notification failed", "error", err)
		return nil, err
	}

	if d.opts.DebugChannel != "" {
		d.mirror(ctx, log, n.Message, ev)
	}

	if n.IsEmpty() || len(n.Recipients) == 0 {
		log.Info("notify: event did not produce notifications", "rule", n.Rule)
		return nil, nil
	}

	unresolved := models.NewEmailSet()
	var targets []target
	for _, email := range n.Recipients.Sorted() {
		handle, ok := d.handles.Lookup(email)
		if !ok {
			unresolved.Add(email)
			continue
		}
		targets = append(targets, target{email: email, handle: handle})
	}

	deliveries := make([]models.Delivery, len(targets))
	var g errgroup.Group
	g.SetLimit(d.opts.Workers)
	for i, t := range targets {
		g.Go(func() error {
			deliveries[i] = d.sender.Send(ctx, n.Message, t.handle)
			return nil
		})
	}
	_ = g.Wait()

	var outcomes []models.Outcome
	for i, t := range targets {
		res := deliveries[i]
		if !res.Delivered {
			log.Warn("notify: send to recipient failed", "handle", t.handle, "email", t.email, "response", res.Raw)
			unresolved.Add(t.email)
			continue
		}
		log.Debug("notify: sent", "handle", t.handle, "response", res.Raw)
		outcomes = append(outcomes, models.Outcome{
			Kind:        models.OutcomeDelivered,
			Destination: t.handle,
			Recipients:  []string{t.email},
			Message:     n.Message,
			Detail:      res.Raw,
		})
	}

	if len(unresolved) > 0 {
		outcomes = append(outcomes, d.fallback(ctx, log, n.Message, unresolved))
	}

	log.Info("notify: event dispatched", "rule", n.Rule,
		"recipients", len(n.Recipients), "unresolved", len(unresolved))
	if d.opts.OnOutcome != nil {
		for _, o := range outcomes {
			d.opts.OnOutcome(deliveryID, o)
		}
	}
	return outcomes, nil
}

// fallback posts msg on the fallback channel, naming the emails that have
// no reachable chat user.
func (d *Dispatcher) fallback(ctx context.Context, log *slog.Logger, msg models.Message, unresolved models.EmailSet) models.Outcome {
	emails := unresolved.Sorted()
	out := msg.Clone()
	out.Text += UnresolvedSuffix(emails)

	res := d.sender.Send(ctx, out, d.opts.FallbackChannel)
	o := models.Outcome{
		Kind:        models.OutcomeFallbackDelivered,
		Destination: d.opts.FallbackChannel,
		Recipients:  emails,
		Message:     out,
		Detail:      res.Raw,
	}
	if !res.Delivered {
		log.Error("notify: fallback send failed", "channel", d.opts.FallbackChannel,
			"emails", emails, "response", res.Raw)
		o.Kind = models.OutcomeDeliveryFailed
		o.Detail = fmt.Sprintf("failed to send slack message to %v or %s: %s",
			emails, d.opts.FallbackChannel, res.Raw)
	}
	return o
}

// UnresolvedSuffix is appended to a message broadcast on the fallback channel.
func UnresolvedSuffix(emails []string) string {
	return fmt.Sprintf(" (user emails [%s] do not match a slack username !)", strings.Join(emails, ", "))
}

func (d *Dispatcher) mirror(ctx context.Context, log *slog.Logger, msg models.Message, ev *event.Event) {
	out := msg.Clone()
	out.Attachments = append(out.Attachments, models.Attachment{Text: string(ev.Raw)})
	if res := d.sender.Send(ctx, out, d.opts.DebugChannel); !res.Delivered {
		log.Warn("notify: debug mirror failed", "channel", d.opts.DebugChannel, "response", res.Raw)
	}
}
