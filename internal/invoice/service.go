package invoice

import (
	"context"
	"log/slog"
	"time"

	"github.com/odyssey-erp/invoicer/internal/platform/kv"
	"github.com/odyssey-erp/invoicer/internal/settings"
)

// Service orchestrates invoice use cases.
type Service struct {
	store      *Store
	normalizer *Normalizer
	settings   settings.Source
	logger     *slog.Logger
	now        func() time.Time
}

// NewService wires the invoice service.
func NewService(store *Store, normalizer *Normalizer, src settings.Source, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, normalizer: normalizer, settings: src, logger: logger, now: time.Now}
}

// Settings exposes the settings source used for fallbacks.
func (s *Service) Settings() settings.CompanySettings {
	return s.settings.Current()
}

// Draft returns a fresh, unsaved invoice.
func (s *Service) Draft() Record {
	return NewDraft(s.settings.Current())
}

// Save normalizes draft and upserts it.
func (s *Service) Save(ctx context.Context, draft Record) (Record, error) {
	var rec Record
	err := s.store.update(ctx, func(records []Record) ([]Record, []Event, error) {
		numbers := make([]string, 0, len(records))
		for _, existing := range records {
			numbers = append(numbers, existing.InvoiceNumber)
		}
		normalized, err := s.normalizer.NormalizeForSave(draft, numbers)
		if err != nil {
			return nil, nil, err
		}
		rec = normalized
		return upsert(records, rec), []Event{{Kind: EventUpserted, Record: rec}}, nil
	})
	if err != nil {
		return Record{}, err
	}
	s.logger.Info("invoice saved", slog.String("invoice", rec.InvoiceNumber), slog.String("status", string(rec.Status)))
	return rec, nil
}

// List returns every saved invoice.
func (s *Service) List(ctx context.Context) ([]Record, error) {
	return s.store.List(ctx)
}

// Get returns the invoice with the given number.
func (s *Service) Get(ctx context.Context, number string) (Record, error) {
	rec, ok, err := s.store.FindByNumber(ctx, number)
	if err != nil {
		return Record{}, err
	}
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

// Delete removes the invoice with the given id.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.store.Remove(ctx, id)
}

// RecordPayment marks the invoice paid on the given day.
func (s *Service) RecordPayment(ctx context.Context, number string, at time.Time) (Record, error) {
	var rec Record
	err := s.store.update(ctx, func(records []Record) ([]Record, []Event, error) {
		for _, existing := range records {
			if existing.InvoiceNumber != number {
				continue
			}
			rec = existing
			rec.Status = StatusPaid
			rec.Timeline.PaymentDate = NewDate(at)
			rec.SavedAt = s.now().UTC()
			return upsert(records, rec), []Event{{Kind: EventUpserted, Record: rec}}, nil
		}
		return nil, nil, ErrNotFound
	})
	if err != nil {
		return Record{}, err
	}
	s.logger.Info("invoice paid", slog.String("invoice", number))
	return rec, nil
}

// MarkOverdue flips DUE invoices issued more than dueAfter before now to
// OVERDUE and returns the affected numbers. The whole sweep is one write.
func (s *Service) MarkOverdue(ctx context.Context, now time.Time, dueAfter time.Duration) ([]string, error) {
	cutoff := now.Add(-dueAfter)
	var flipped []string
	err := s.store.update(ctx, func(records []Record) ([]Record, []Event, error) {
		flipped = nil
		var events []Event
		next := make([]Record, len(records))
		for i, rec := range records {
			next[i] = rec
			if rec.Status != StatusDue || rec.Timeline.InvoiceDate.IsZero() {
				continue
			}
			if !rec.Timeline.InvoiceDate.Time().Before(cutoff) {
				continue
			}
			rec.Status = StatusOverdue
			rec.SavedAt = now.UTC()
			next[i] = rec
			flipped = append(flipped, rec.InvoiceNumber)
			events = append(events, Event{Kind: EventUpserted, Record: rec})
		}
		if len(events) == 0 {
			return nil, nil, kv.ErrUnchanged
		}
		return next, events, nil
	})
	if err != nil {
		return nil, err
	}
	if len(flipped) > 0 {
		s.logger.Info("invoices overdue", slog.Int("count", len(flipped)))
	}
	return flipped, nil
}
