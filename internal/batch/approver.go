// Package batch submits several approved events in one go.
package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"google.golang.org/api/calendar/v3"

	"quickcal/internal/models"
	"quickcal/internal/store"
)

// LedgerKey is the store key of the submission ledger.
const LedgerKey = "batch.submitted"

// Ledger keeps track of which events have been submitted.
// The key is the local event UID, and the value is the id of the created event.
type Ledger map[string]string

// EventCreator creates a single calendar event.
type EventCreator interface {
	CreateEvent(ctx context.Context, event models.CalendarEvent) (*calendar.Event, error)
}

// Result summarizes one Approve call.
type Result struct {
	Created []*calendar.Event
	Skipped int
	Failed  int
}

// Approver submits events one after another, remembering what it already
// submitted so a re-run does not create duplicates.
type Approver struct {
	logger *slog.Logger
	events EventCreator
	store  store.Store
	dryRun bool
}

// NewApprover creates a new Approver.
func NewApprover(logger *slog.Logger, events EventCreator, s store.Store, dryRun bool) *Approver {
	return &Approver{
		logger: logger,
		events: events,
		store:  s,
		dryRun: dryRun,
	}
}

// Approve submits every event not yet in the ledger. A failing event does
// not stop the rest; all failures are returned joined together.
func (a *Approver) Approve(ctx context.Context, events []models.CalendarEvent) (*Result, error) {
	a.logger.Info("Starting batch submission.", "count", len(events))
	if a.dryRun {
		a.logger.Info("Performing a dry run. No changes will be made.")
	}

	ledger, err := a.loadLedger(ctx)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	var errs []error
	for _, event := range events {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		if id, exists := ledger[event.UID]; exists && event.UID != "" {
			a.logger.Debug("Event already submitted, skipping.", "summary", event.Summary, "id", id)
			res.Skipped++
			continue
		}

		if a.dryRun {
			a.logger.Info("[DRY RUN] Would create event", "summary", event.Summary, "start", event.Start.DateTime)
			continue
		}

		created, err := a.events.CreateEvent(ctx, event)
		if err != nil {
			a.logger.Error("Failed to submit event", "summary", event.Summary, "error", err)
			res.Failed++
			errs = append(errs, fmt.Errorf("%q: %w", event.Summary, err))
			continue
		}
		res.Created = append(res.Created, created)

		if event.UID != "" {
			ledger[event.UID] = created.Id
			if err := a.saveLedger(ctx, ledger); err != nil {
				errs = append(errs, err)
			}
		}
	}

	a.logger.Info("Batch submission finished.", "created", len(res.Created), "skipped", res.Skipped, "failed", res.Failed)
	return res, errors.Join(errs...)
}

func (a *Approver) loadLedger(ctx context.Context) (Ledger, error) {
	b, err := a.store.Get(ctx, LedgerKey)
	if errors.Is(err, store.ErrNotFound) {
		a.logger.Info("No submission ledger found, starting fresh.")
		return make(Ledger), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load submission ledger: %w", err)
	}

	ledger := make(Ledger)
	if err := json.Unmarshal(b, &ledger); err != nil {
		return nil, fmt.Errorf("failed to decode submission ledger: %w", err)
	}
	return ledger, nil
}

func (a *Approver) saveLedger(ctx context.Context, ledger Ledger) error {
	b, err := json.Marshal(ledger)
	if err != nil {
		return fmt.Errorf("failed to marshal submission ledger: %w", err)
	}
	if err := a.store.Set(ctx, LedgerKey, b); err != nil {
		return fmt.Errorf("failed to save submission ledger: %w", err)
	}
	return nil
}
