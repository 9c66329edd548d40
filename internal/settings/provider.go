package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/currency"

	"github.com/odyssey-erp/invoicer/internal/platform/httpx"
	"github.com/odyssey-erp/invoicer/internal/platform/kv"
)

// ValidationError lists invalid settings fields.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return "settings: invalid " + strings.Join(keys, ", ")
}

// Unwrap lets httpx map the error to 400.
func (e *ValidationError) Unwrap() error { return httpx.ErrValidation }

// FieldErrors exposes the per-field messages.
func (e *ValidationError) FieldErrors() map[string]string { return e.Fields }

// Provider holds the process-wide settings and persists every change.
type Provider struct {
	store    kv.Store
	logger   *slog.Logger
	validate *validator.Validate

	mu      sync.RWMutex
	current CompanySettings

	subMu  sync.Mutex
	nextID int
	subs   map[int]func(CompanySettings)
}

// Load reads persisted settings, seeding defaults on first run. A corrupt
// value degrades to defaults and is logged.
func Load(ctx context.Context, store kv.Store, logger *slog.Logger) (*Provider, error) {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Provider{store: store, logger: logger, validate: validator.New(validator.WithRequiredStructEnabled())}

	raw, ok, err := store.Get(ctx, Key)
	if err != nil {
		return nil, fmt.Errorf("settings: load: %w", err)
	}
	if !ok {
		p.current = Defaults()
		if err := p.persist(ctx, p.current); err != nil {
			return nil, err
		}
		return p, nil
	}

	var stored CompanySettings
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		logger.Warn("settings blob unreadable, using defaults", slog.Any("error", err))
		p.current = Defaults()
		return p, nil
	}
	p.current = stored
	return p, nil
}

// Current returns a copy of the active settings.
func (p *Provider) Current() CompanySettings {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}

// Update validates next and replaces the active settings wholesale.
func (p *Provider) Update(ctx context.Context, next CompanySettings) (CompanySettings, error) {
	next.Currency = strings.ToUpper(strings.TrimSpace(next.Currency))
	if err := p.check(next); err != nil {
		return CompanySettings{}, err
	}
	if err := p.replace(ctx, next); err != nil {
		return CompanySettings{}, err
	}
	return next, nil
}

// Reset restores and persists the defaults.
func (p *Provider) Reset(ctx context.Context) (CompanySettings, error) {
	defaults := Defaults()
	if err := p.replace(ctx, defaults); err != nil {
		return CompanySettings{}, err
	}
	return defaults, nil
}

// Subscribe registers fn to run after every successful change. The returned
// func removes the subscription.
func (p *Provider) Subscribe(fn func(CompanySettings)) func() {
	p.subMu.Lock()
	defer p.subMu.Unlock()
	if p.subs == nil {
		p.subs = make(map[int]func(CompanySettings))
	}
	id := p.nextID
	p.nextID++
	p.subs[id] = fn
	return func() {
		p.subMu.Lock()
		defer p.subMu.Unlock()
		delete(p.subs, id)
	}
}

func (p *Provider) replace(ctx context.Context, next CompanySettings) error {
	p.mu.Lock()
	if err := p.persist(ctx, next); err != nil {
		p.mu.Unlock()
		return err
	}
	p.current = next
	p.mu.Unlock()

	p.subMu.Lock()
	fns := make([]func(CompanySettings), 0, len(p.subs))
	for _, fn := range p.subs {
		fns = append(fns, fn)
	}
	p.subMu.Unlock()
	for _, fn := range fns {
		fn(next)
	}
	return nil
}

func (p *Provider) check(s CompanySettings) error {
	fields := make(map[string]string)
	if err := p.validate.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			fields[jsonName(fe.Field())] = fe.Tag()
		}
	}
	if _, ok := fields["currency"]; !ok {
		if _, err := currency.ParseISO(s.Currency); err != nil {
			fields["currency"] = "iso4217"
		}
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func (p *Provider) persist(ctx context.Context, s CompanySettings) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("settings: encode: %w", err)
	}
	if err := p.store.Set(ctx, Key, string(raw)); err != nil {
		return fmt.Errorf("settings: save: %w", err)
	}
	return nil
}

func jsonName(field string) string {
	if field == "" {
		return field
	}
	return strings.ToLower(field[:1]) + field[1:]
}
