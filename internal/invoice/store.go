package invoice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/odyssey-erp/invoicer/internal/platform/kv"
)

// Key is the persistence key of the invoice collection.
const Key = "invoices"

// EventKind describes a store mutation.
type EventKind string

const (
	EventUpserted EventKind = "upserted"
	EventRemoved  EventKind = "removed"
)

// Event is delivered to subscribers after a successful write.
type Event struct {
	Kind   EventKind `json:"kind"`
	Record Record    `json:"record"`
}

// Store keeps every invoice as one serialized collection.
type Store struct {
	kv     kv.Store
	logger *slog.Logger

	subMu  sync.RWMutex
	nextID int
	subs   map[int]func(Event)
}

// NewStore constructs a Store over backend.
func NewStore(backend kv.Store, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{kv: backend, logger: logger, subs: make(map[int]func(Event))}
}

// List returns all records in storage order.
func (s *Store) List(ctx context.Context) ([]Record, error) {
	return s.load(ctx)
}

// FindByNumber looks a record up by invoice number.
func (s *Store) FindByNumber(ctx context.Context, number string) (Record, bool, error) {
	records, err := s.load(ctx)
	if err != nil {
		return Record{}, false, err
	}
	for _, rec := range records {
		if rec.InvoiceNumber == number {
			return rec, true, nil
		}
	}
	return Record{}, false, nil
}

// Upsert replaces any record sharing rec's invoice number and appends rec.
func (s *Store) Upsert(ctx context.Context, rec Record) error {
	if rec.InvoiceNumber == "" {
		return ErrMissingNumber
	}
	return s.update(ctx, func(records []Record) ([]Record, []Event, error) {
		return upsert(records, rec), []Event{{Kind: EventUpserted, Record: rec}}, nil
	})
}

// Remove deletes the record with the given id. Missing ids are ignored.
func (s *Store) Remove(ctx context.Context, id string) error {
	return s.update(ctx, func(records []Record) ([]Record, []Event, error) {
		kept := make([]Record, 0, len(records))
		var events []Event
		for _, rec := range records {
			if rec.ID == id {
				events = append(events, Event{Kind: EventRemoved, Record: rec})
				continue
			}
			kept = append(kept, rec)
		}
		if len(events) == 0 {
			return nil, nil, kv.ErrUnchanged
		}
		return kept, events, nil
	})
}

// mutation derives the next collection and the events it causes. Returning
// kv.ErrUnchanged skips the write.
type mutation func(records []Record) ([]Record, []Event, error)

// update applies fn as one atomic read-modify-write of the collection, so
// writers in other processes sharing the backend cannot lose each other's
// changes. Events are published once the write has landed.
func (s *Store) update(ctx context.Context, fn mutation) error {
	var events []Event
	err := s.kv.Update(ctx, Key, func(current string, exists bool) (string, error) {
		events = nil
		next, evts, err := fn(s.decode(current, exists))
		if err != nil {
			return "", err
		}
		raw, err := json.Marshal(next)
		if err != nil {
			return "", fmt.Errorf("invoice: encode: %w", err)
		}
		events = evts
		return string(raw), nil
	})
	if err != nil {
		if errors.Is(err, kv.ErrUnchanged) {
			return nil
		}
		return err
	}
	for _, evt := range events {
		s.publish(evt)
	}
	return nil
}

func upsert(records []Record, rec Record) []Record {
	kept := make([]Record, 0, len(records)+1)
	for _, existing := range records {
		if existing.InvoiceNumber != rec.InvoiceNumber {
			kept = append(kept, existing)
		}
	}
	return append(kept, rec)
}

// Subscribe registers fn for mutation events and returns its cancel func.
func (s *Store) Subscribe(fn func(Event)) func() {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}

func (s *Store) publish(evt Event) {
	s.subMu.RLock()
	subs := make([]func(Event), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.subMu.RUnlock()
	for _, fn := range subs {
		fn(evt)
	}
}

func (s *Store) load(ctx context.Context) ([]Record, error) {
	raw, ok, err := s.kv.Get(ctx, Key)
	if err != nil {
		return nil, fmt.Errorf("invoice: load: %w", err)
	}
	return s.decode(raw, ok), nil
}

func (s *Store) decode(raw string, ok bool) []Record {
	if !ok || raw == "" {
		return []Record{}
	}
	var records []Record
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		s.logger.Warn("invoice collection unreadable, treating as empty", slog.Any("error", err))
		return []Record{}
	}
	if records == nil {
		records = []Record{}
	}
	return records
}
