package service

import (
	"context"
	"fmt"
	"time"

	"payreminder/internal/errors"
	"payreminder/internal/metrics"
	"payreminder/internal/models"
	"payreminder/internal/phone"
	"payreminder/internal/policy"
	"payreminder/internal/sanitize"
	"payreminder/internal/tracing"
	"payreminder/pkg/whatsapp"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// QueueStore is the slice of the database the dispatcher drives.
type QueueStore interface {
	FetchPending(ctx context.Context, limit int) ([]models.QueueEntry, error)
	MarkSending(ctx context.Context, id int64) (bool, error)
	MarkSent(ctx context.Context, id int64, channelMessageID string) error
	MarkFailed(ctx context.Context, id int64, reason string) error
}

// Dispatcher drains the pending backlog through the channel client while
// honoring the send window, the rate budget, and humanized delays.
type Dispatcher struct {
	store        QueueStore
	client       whatsapp.Client
	limiter      *policy.RateLimiter
	window       *policy.SendWindow
	delays       *policy.DelayPolicy
	countryCode  string
	batchSize    int
	batchDelay   time.Duration
	bypassWindow bool
	logger       *logrus.Logger

	// sleep is replaceable in tests so runs complete instantly.
	sleep func(ctx context.Context, d time.Duration) error
}

type DispatcherOptions struct {
	CountryCode  string
	BatchSize    int
	BatchDelay   time.Duration
	BypassWindow bool
}

func NewDispatcher(store QueueStore, client whatsapp.Client, limiter *policy.RateLimiter,
	window *policy.SendWindow, delays *policy.DelayPolicy, opts DispatcherOptions,
	logger *logrus.Logger) *Dispatcher {
	return &Dispatcher{
		store:        store,
		client:       client,
		limiter:      limiter,
		window:       window,
		delays:       delays,
		countryCode:  opts.CountryCode,
		batchSize:    opts.BatchSize,
		batchDelay:   opts.BatchDelay,
		bypassWindow: opts.BypassWindow,
		logger:       logger,
		sleep:        sleepCtx,
	}
}

// Run drains the backlog in batches until it is empty, the window closes,
// the context is cancelled, or the store fails. Every outcome short of a
// store failure is reported through the summary rather than an error.
func (d *Dispatcher) Run(ctx context.Context) (models.RunSummary, error) {
	runID := uuid.New().String()
	ctx = tracing.WithRunID(ctx, runID)
	ctx = tracing.WithStartTime(ctx, time.Now())

	ctx, span := tracing.StartSpan(ctx, "dispatcher.run")
	defer span.End()

	logger := d.logger.WithField("run_id", runID)
	logger.Info("Starting dispatch run")
	metrics.IncrementCounter("dispatch_runs_total", nil, "Total dispatch runs started")

	var summary models.RunSummary
	for {
		batch, err := d.store.FetchPending(ctx, d.batchSize)
		if err != nil {
			tracing.RecordError(ctx, err)
			return summary, errors.Wrap(err, errors.KindStore, "failed to fetch pending entries")
		}
		if len(batch) == 0 {
			break
		}

		batchSummary, open, err := d.processBatch(ctx, logger, batch, summary.Sent)
		summary.Add(batchSummary)
		if err != nil {
			tracing.RecordError(ctx, err)
			return summary, err
		}
		if !open {
			break
		}

		// A batch where nothing was sent or failed means every entry was
		// deferred. Fetching again would spin on the same rows.
		if batchSummary.Sent == 0 && batchSummary.Failed == 0 {
			break
		}
		if len(batch) < d.batchSize {
			break
		}

		logger.WithField("batch_delay", d.batchDelay.String()).Debug("Pausing between batches")
		if err := d.sleep(ctx, d.batchDelay); err != nil {
			return summary, err
		}
	}

	tracing.AddSpanAttributes(ctx,
		attribute.Int("dispatch.sent", summary.Sent),
		attribute.Int("dispatch.failed", summary.Failed),
		attribute.Int("dispatch.skipped", summary.Skipped),
	)

	logger.WithFields(logrus.Fields{
		"sent":     summary.Sent,
		"failed":   summary.Failed,
		"skipped":  summary.Skipped,
		"duration": tracing.Duration(ctx).String(),
	}).Info("Dispatch run complete")

	return summary, nil
}

// processBatch walks one batch. The returned bool reports whether the send
// window is still open; a false value ends the run with the remaining
// entries left pending.
func (d *Dispatcher) processBatch(ctx context.Context, logger *logrus.Entry,
	batch []models.QueueEntry, alreadySent int) (models.RunSummary, bool, error) {
	var summary models.RunSummary

	for i := range batch {
		entry := &batch[i]

		select {
		case <-ctx.Done():
			summary.Skipped += len(batch) - i
			return summary, false, ctx.Err()
		default:
		}

		if !d.bypassWindow {
			if ok, reason := d.window.Allows(); !ok {
				logger.WithFields(logrus.Fields{
					"reason": reason,
					"kind":   string(errors.KindPolicyDeferral),
				}).Info("Send window closed, leaving remaining entries pending")
				metrics.IncrementCounter("dispatch_deferrals_total",
					map[string]string{"cause": "window_closed"}, "Entries left pending by send policy")
				summary.Skipped += len(batch) - i
				return summary, false, nil
			}
		}

		if ok, reason := d.limiter.CanSend(); !ok {
			logger.WithFields(logrus.Fields{
				"entry_id": entry.ID,
				"reason":   reason,
				"kind":     string(errors.KindPolicyDeferral),
			}).Info("Rate budget exhausted, leaving entry pending")
			metrics.IncrementCounter("dispatch_deferrals_total",
				map[string]string{"cause": "rate_budget"}, "Entries left pending by send policy")
			summary.Skipped++
			continue
		}

		outcome, err := d.processEntry(ctx, logger, entry)
		if err != nil {
			summary.Skipped += len(batch) - i
			return summary, false, err
		}

		switch outcome {
		case outcomeSent:
			summary.Sent++
		case outcomeFailed:
			summary.Failed++
		case outcomeSkipped:
			summary.Skipped++
			continue
		}

		if i < len(batch)-1 {
			delay := d.delays.Sample(alreadySent + summary.Sent)
			logger.WithFields(logrus.Fields{
				"entry_id": entry.ID,
				"delay":    delay.String(),
			}).Debug("Humanized delay before next entry")
			if err := d.sleep(ctx, delay); err != nil {
				summary.Skipped += len(batch) - i - 1
				return summary, false, err
			}
		}
	}

	return summary, true, nil
}

type entryOutcome int

const (
	outcomeSent entryOutcome = iota
	outcomeFailed
	outcomeSkipped
)

// processEntry takes one claimed entry to a terminal state. Validation
// failures never consume rate budget; a channel attempt always does,
// whether it succeeds or not. Only store failures return an error.
func (d *Dispatcher) processEntry(ctx context.Context, logger *logrus.Entry,
	entry *models.QueueEntry) (entryOutcome, error) {
	entryLogger := logger.WithField("entry_id", entry.ID)

	claimed, err := d.store.MarkSending(ctx, entry.ID)
	if err != nil {
		return outcomeSkipped, errors.Wrap(err, errors.KindStore,
			fmt.Sprintf("failed to claim entry %d", entry.ID))
	}
	if !claimed {
		entryLogger.Debug("Entry already claimed by another run")
		return outcomeSkipped, nil
	}

	destination, err := phone.Normalize(entry.Destination, d.countryCode)
	if err != nil {
		reason := errors.New(errors.KindValidation, err.Error())
		if markErr := d.store.MarkFailed(ctx, entry.ID, errors.Reason(reason)); markErr != nil {
			return outcomeSkipped, errors.Wrap(markErr, errors.KindStore,
				fmt.Sprintf("failed to record validation failure for entry %d", entry.ID))
		}
		entryLogger.WithError(err).WithField("destination", phone.Mask(entry.Destination)).
			Warn("Invalid destination, entry failed without a channel attempt")
		metrics.IncrementCounter("dispatch_validation_failures_total", nil, "Entries failed before a channel attempt")
		return outcomeFailed, nil
	}

	body := sanitize.Message(entry.Body)
	if body == "" {
		reason := errors.New(errors.KindValidation, "message body empty after sanitization")
		if markErr := d.store.MarkFailed(ctx, entry.ID, errors.Reason(reason)); markErr != nil {
			return outcomeSkipped, errors.Wrap(markErr, errors.KindStore,
				fmt.Sprintf("failed to record validation failure for entry %d", entry.ID))
		}
		entryLogger.Warn("Empty message body, entry failed without a channel attempt")
		metrics.IncrementCounter("dispatch_validation_failures_total", nil, "Entries failed before a channel attempt")
		return outcomeFailed, nil
	}

	sendStart := time.Now()
	messageID, sendErr := d.client.SendText(ctx, destination, body)
	d.limiter.RecordSend()
	metrics.RecordTimer("channel_send_duration", time.Since(sendStart), nil, "Channel API send latency")

	if sendErr != nil {
		if markErr := d.store.MarkFailed(ctx, entry.ID, errors.Reason(sendErr)); markErr != nil {
			return outcomeSkipped, errors.Wrap(markErr, errors.KindStore,
				fmt.Sprintf("failed to record send failure for entry %d", entry.ID))
		}
		entryLogger.WithError(sendErr).WithFields(logrus.Fields{
			"destination": phone.Mask(destination),
			"kind":        string(errors.KindOf(sendErr)),
		}).Error("Channel send failed")
		metrics.IncrementCounter("dispatch_send_failures_total", nil, "Channel send attempts that failed")
		return outcomeFailed, nil
	}

	if err := d.store.MarkSent(ctx, entry.ID, messageID); err != nil {
		return outcomeSkipped, errors.Wrap(err, errors.KindStore,
			fmt.Sprintf("failed to record delivery of entry %d", entry.ID))
	}

	entryLogger.WithFields(logrus.Fields{
		"destination":        phone.Mask(destination),
		"channel_message_id": messageID,
	}).Info("Message sent")
	metrics.IncrementCounter("dispatch_sent_total", nil, "Messages delivered to the channel")
	return outcomeSent, nil
}

// RateStats exposes the limiter's current budget for the admin surface.
func (d *Dispatcher) RateStats() policy.Stats {
	return d.limiter.GetStats()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
