package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"WolverineBrief/internal/domain"
	"WolverineBrief/internal/ports"
)

// DistributorDeps wires the driven adapters of the distribute stage.
type DistributorDeps struct {
	Transport   ports.Transport
	Notifier    ports.Notifier
	Logger      *slog.Logger
	Subject     string
	Concurrency int
	DryRun      bool
}

// Distributor sends a composed digest to every active subscriber.
type Distributor struct {
	transport   ports.Transport
	notifier    ports.Notifier
	logger      *slog.Logger
	subject     string
	concurrency int
	dryRun      bool
}

// NewDistributor constructs the distribute stage. Notifier may be nil.
func NewDistributor(deps DistributorDeps) *Distributor {
	d := &Distributor{
		transport:   deps.Transport,
		notifier:    deps.Notifier,
		logger:      deps.Logger,
		subject:     deps.Subject,
		concurrency: deps.Concurrency,
		dryRun:      deps.DryRun,
	}
	if d.logger == nil {
		d.logger = slog.New(slog.DiscardHandler)
	}
	if d.concurrency <= 0 {
		d.concurrency = 1
	}
	return d
}

type deliverySlot struct {
	attempted bool
	failure   *domain.DeliveryFailure
}

// Distribute attempts delivery to each active subscriber. A failure for one
// subscriber never affects another; nothing is retried.
func (d *Distributor) Distribute(ctx context.Context, digest domain.Digest, subscribers []domain.Subscriber) domain.DeliveryReport {
	slots := make([]deliverySlot, len(subscribers))

	var g errgroup.Group
	g.SetLimit(d.concurrency)
	for i, sub := range subscribers {
		if !sub.Active() {
			continue
		}
		slots[i].attempted = true
		g.Go(func() error {
			slots[i].failure = d.deliver(ctx, digest, sub)
			return nil
		})
	}
	_ = g.Wait()

	var report domain.DeliveryReport
	for _, slot := range slots {
		if !slot.attempted {
			continue
		}
		report.Attempted++
		if slot.failure != nil {
			report.Failed++
			report.Failures = append(report.Failures, *slot.failure)
			continue
		}
		report.Succeeded++
	}

	d.logger.Info("distribution finished",
		"attempted", report.Attempted,
		"succeeded", report.Succeeded,
		"failed", report.Failed,
		"dry_run", d.dryRun)
	d.notify(ctx, report)
	return report
}

func (d *Distributor) deliver(ctx context.Context, digest domain.Digest, sub domain.Subscriber) *domain.DeliveryFailure {
	channels := sub.DeliveryChannels()
	if len(channels) == 0 {
		return &domain.DeliveryFailure{SubscriberID: sub.Identifier(), Reason: "no delivery channel"}
	}

	var reasons []string
	for _, ch := range channels {
		if err := d.send(ctx, digest, sub, ch); err != nil {
			d.logger.Warn("delivery failed", "subscriber", sub.Identifier(), "channel", ch, "error", err)
			reasons = append(reasons, err.Error())
		}
	}
	if len(reasons) > 0 {
		return &domain.DeliveryFailure{SubscriberID: sub.Identifier(), Reason: strings.Join(reasons, "; ")}
	}
	return nil
}

func (d *Distributor) send(ctx context.Context, digest domain.Digest, sub domain.Subscriber, ch domain.Channel) error {
	address := sub.Address(ch)
	if address == "" {
		return &domain.DeliveryError{SubscriberID: sub.Identifier(), Channel: ch, Err: fmt.Errorf("no %s address", ch)}
	}

	if d.dryRun {
		d.logger.Info("dry run: would deliver", "subscriber", sub.Identifier(), "channel", ch, "recipient", address)
		return nil
	}
	if d.transport == nil {
		return &domain.DeliveryError{SubscriberID: sub.Identifier(), Channel: ch, Err: fmt.Errorf("transport is not configured")}
	}

	msg := domain.Message{
		Recipient: address,
		Channel:   ch,
		Subject:   d.subject,
		Body:      digest.RenderedText,
	}
	if err := d.transport.Send(ctx, msg); err != nil {
		return &domain.DeliveryError{SubscriberID: sub.Identifier(), Channel: ch, Err: err}
	}
	return nil
}

func (d *Distributor) notify(ctx context.Context, report domain.DeliveryReport) {
	if d.notifier == nil || d.dryRun {
		return
	}
	if err := d.notifier.Publish(ctx, SummaryMessage(report)); err != nil {
		d.logger.Warn("operator notification failed", "error", err)
	}
}

// SummaryMessage is the one-line operator summary of a run,
// followed by one line per failed subscriber.
func SummaryMessage(report domain.DeliveryReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Wolverine Brief delivery: attempted=%d succeeded=%d failed=%d",
		report.Attempted, report.Succeeded, report.Failed)
	for _, f := range report.Failures {
		fmt.Fprintf(&b, "\n- %s: %s", f.SubscriberID, f.Reason)
	}
	return b.String()
}
