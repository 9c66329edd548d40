package invoice

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/invoicer/internal/platform/httpx"
	"github.com/odyssey-erp/invoicer/internal/platform/kv"
	"github.com/odyssey-erp/invoicer/internal/settings"
)

func newTestService(t *testing.T) (*Service, *Store) {
	t.Helper()
	src := settings.Static(settings.Defaults())
	store := NewStore(kv.NewMemory(), nil)
	normalizer := NewNormalizer(src)
	normalizer.Now = func() time.Time { return fixedNow }
	svc := NewService(store, normalizer, src, nil)
	svc.now = func() time.Time { return fixedNow }
	return svc, store
}

func TestServiceSaveScenario(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	rec, err := svc.Save(ctx, Record{
		ClientName:  "Jane Doe",
		ClientEmail: "jane@x.com",
		Items:       []LineItem{{Description: "Design", Quantity: 2, UnitPrice: 50}},
		IncludeVAT:  BoolPtr(true),
	})
	require.NoError(t, err)
	assert.Regexp(t, `^INV-\d{6}$`, rec.InvoiceNumber)

	totals := rec.Totals(svc.Settings())
	assert.InDelta(t, 100, totals.Subtotal, 1e-9)
	assert.InDelta(t, 15, totals.VAT, 1e-9)
	assert.InDelta(t, 115, totals.Total, 1e-9)

	records, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, rec.InvoiceNumber, records[0].InvoiceNumber)

	// Re-saving keeps a single record under the same number.
	rec.Notes = "thanks"
	_, err = svc.Save(ctx, rec)
	require.NoError(t, err)
	records, err = svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "thanks", records[0].Notes)
}

func TestServiceSaveRejectedLeavesStoreUntouched(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.Save(ctx, Record{ClientName: "", ClientEmail: "a@b.c"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, httpx.ErrValidation))

	records, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestServiceGetNotFound(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Get(context.Background(), "INV-000000")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestServiceRecordPayment(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	saved, err := svc.Save(ctx, Record{ClientName: "A", ClientEmail: "a@b.c"})
	require.NoError(t, err)

	paid, err := svc.RecordPayment(ctx, saved.InvoiceNumber, fixedNow.Add(48*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, paid.Status)
	assert.Equal(t, "2024-06-16", paid.Timeline.PaymentDate.String())
	assert.Equal(t, saved.Timeline.InvoiceDate, paid.Timeline.InvoiceDate)

	_, err = svc.RecordPayment(ctx, "INV-000000", fixedNow)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestServiceMarkOverdue(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	old := NewDate(fixedNow.AddDate(0, 0, -10))
	recent := NewDate(fixedNow.AddDate(0, 0, -2))

	require.NoError(t, store.Upsert(ctx, Record{ID: "1", InvoiceNumber: "INV-100001", Status: StatusDue, Timeline: Timeline{InvoiceDate: old}}))
	require.NoError(t, store.Upsert(ctx, Record{ID: "2", InvoiceNumber: "INV-100002", Status: StatusDue, Timeline: Timeline{InvoiceDate: recent}}))
	require.NoError(t, store.Upsert(ctx, Record{ID: "3", InvoiceNumber: "INV-100003", Status: StatusPaid, Timeline: Timeline{InvoiceDate: old}}))

	flipped, err := svc.MarkOverdue(ctx, fixedNow, 7*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []string{"INV-100001"}, flipped)

	rec, err := svc.Get(ctx, "INV-100001")
	require.NoError(t, err)
	assert.Equal(t, StatusOverdue, rec.Status)
	rec, err = svc.Get(ctx, "INV-100003")
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, rec.Status)
}

func TestServiceDelete(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	saved, err := svc.Save(ctx, Record{ClientName: "A", ClientEmail: "a@b.c"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, saved.ID))
	_, err = svc.Get(ctx, saved.InvoiceNumber)
	assert.ErrorIs(t, err, ErrNotFound)
}

// Server and worker each open the same database, as the two binaries do.
func TestServiceWritersSharingBackendKeepEverySave(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "invoicer.db")
	src := settings.Static(settings.Defaults())
	open := func() *Service {
		backend, err := kv.OpenSQLite(ctx, path)
		require.NoError(t, err)
		t.Cleanup(func() { _ = backend.Close() })
		normalizer := NewNormalizer(src)
		normalizer.Now = func() time.Time { return fixedNow }
		return NewService(NewStore(backend, nil), normalizer, src, nil)
	}
	server, worker := open(), open()

	const saves = 20
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for range saves {
			_, err := server.Save(ctx, Record{ClientName: "A", ClientEmail: "a@b.c"})
			assert.NoError(t, err)
		}
	}()
	go func() {
		defer wg.Done()
		for range saves {
			_, err := worker.MarkOverdue(ctx, fixedNow.AddDate(0, 1, 0), 7*24*time.Hour)
			assert.NoError(t, err)
		}
	}()
	wg.Wait()

	records, err := server.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, saves)
	numbers := make(map[string]struct{}, saves)
	for _, rec := range records {
		numbers[rec.InvoiceNumber] = struct{}{}
	}
	assert.Len(t, numbers, saves)

	flipped, err := worker.MarkOverdue(ctx, fixedNow.AddDate(0, 1, 0), 7*24*time.Hour)
	require.NoError(t, err)
	records, err = server.List(ctx)
	require.NoError(t, err)
	for _, rec := range records {
		assert.Equal(t, StatusOverdue, rec.Status)
	}
	assert.LessOrEqual(t, len(flipped), saves)
}

func TestServiceRecordPaymentUnknownLeavesStoreUntouched(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	var events int
	store.Subscribe(func(Event) { events++ })

	_, err := svc.RecordPayment(ctx, "INV-999999", fixedNow)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, events)
}
