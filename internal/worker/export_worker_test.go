package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	sheetsmem "fintrack/internal/sheets/memory"
	"fintrack/internal/store/memory"
)

// flakyExporter fails the first n exports.
type flakyExporter struct {
	mu       sync.Mutex
	failures int
	exported []string
}

func (f *flakyExporter) Export(_ context.Context, tx core.Transaction) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return "", errors.New("sheets unavailable")
	}
	f.exported = append(f.exported, tx.ID)
	return "row", nil
}

func newTx(id string) core.Transaction {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	return core.Transaction{
		ID:        id,
		UserID:    "u1",
		Type:      core.Expense,
		Amount:    decimal.RequireFromString("9.99"),
		Category:  "Shopping",
		Date:      core.NewDate(2025, 3, 1),
		Currency:  "USD",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func pendingIDs(t *testing.T, st *memory.Store) []string {
	t.Helper()
	pending, err := st.PendingSync(context.Background(), 100)
	require.NoError(t, err)
	ids := make([]string, len(pending))
	for i, p := range pending {
		ids[i] = p.ID
	}
	return ids
}

func TestExportWorker_HandleUpsert(t *testing.T) {
	st := memory.New("USD")
	sheet := sheetsmem.New()
	w := NewExportWorker(st, sheet, 10, nil)
	ctx := context.Background()

	_, err := st.CreateTransaction(ctx, newTx("a"))
	require.NoError(t, err)

	err = w.HandleEvent(ctx, amqp.NewTransactionEvent(amqp.KindUpserted, "a", "u1"))
	require.NoError(t, err)

	rows := sheet.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, "a", rows[0][0])
	assert.Empty(t, pendingIDs(t, st))
}

func TestExportWorker_UpsertOfMissingTransactionIsSkipped(t *testing.T) {
	sheet := sheetsmem.New()
	w := NewExportWorker(memory.New("USD"), sheet, 10, nil)

	err := w.HandleEvent(context.Background(), amqp.NewTransactionEvent(amqp.KindUpserted, "gone", "u1"))
	require.NoError(t, err)
	assert.Equal(t, 0, sheet.Len())
}

func TestExportWorker_ExportFailureMarksErrorAndReturns(t *testing.T) {
	st := memory.New("USD")
	exp := &flakyExporter{failures: 1}
	w := NewExportWorker(st, exp, 10, nil)
	ctx := context.Background()

	_, err := st.CreateTransaction(ctx, newTx("a"))
	require.NoError(t, err)

	err = w.HandleEvent(ctx, amqp.NewTransactionEvent(amqp.KindUpserted, "a", "u1"))
	require.Error(t, err)
	assert.Equal(t, []string{"a"}, pendingIDs(t, st), "failed exports stay pending for the sweep")

	res, err := w.ProcessPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Total: 1, Synced: 1}, res)
	assert.Empty(t, pendingIDs(t, st))
	assert.Equal(t, []string{"a"}, exp.exported)
}

func TestExportWorker_HandleDelete(t *testing.T) {
	st := memory.New("USD")
	sheet := sheetsmem.New()
	w := NewExportWorker(st, sheet, 10, nil)
	ctx := context.Background()

	_, err := sheet.Export(ctx, newTx("a"))
	require.NoError(t, err)

	require.NoError(t, w.HandleEvent(ctx, amqp.NewTransactionEvent(amqp.KindDeleted, "a", "u1")))
	assert.Equal(t, 0, sheet.Len())
}

func TestExportWorker_DeleteWithoutRemoverIsSkipped(t *testing.T) {
	w := NewExportWorker(memory.New("USD"), &flakyExporter{}, 10, nil)
	assert.Nil(t, w.remover)
	assert.NoError(t, w.HandleEvent(context.Background(), amqp.NewTransactionEvent(amqp.KindDeleted, "a", "u1")))
}

func TestExportWorker_UnknownKind(t *testing.T) {
	w := NewExportWorker(memory.New("USD"), sheetsmem.New(), 10, nil)
	err := w.HandleEvent(context.Background(), &amqp.TransactionEvent{ID: "a", Kind: "transaction.archived"})
	assert.Error(t, err)
}

func TestExportWorker_ProcessPendingRespectsBatchSize(t *testing.T) {
	st := memory.New("USD")
	sheet := sheetsmem.New()
	w := NewExportWorker(st, sheet, 2, nil)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		_, err := st.CreateTransaction(ctx, newTx(id))
		require.NoError(t, err)
	}

	res, err := w.ProcessPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Total: 2, Synced: 2}, res)
	assert.Len(t, pendingIDs(t, st), 1)

	res, err = w.ProcessPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Synced)
	assert.Equal(t, 3, sheet.Len())

	res, err = w.ProcessPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{}, res)
}

func TestExportWorker_UpdatedTransactionIsReexported(t *testing.T) {
	st := memory.New("USD")
	sheet := sheetsmem.New()
	w := NewExportWorker(st, sheet, 10, nil)
	ctx := context.Background()

	tx, err := st.CreateTransaction(ctx, newTx("a"))
	require.NoError(t, err)
	_, err = w.ProcessPending(ctx)
	require.NoError(t, err)

	tx.Amount = decimal.RequireFromString("20")
	_, err = st.UpdateTransaction(ctx, tx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, pendingIDs(t, st))

	_, err = w.ProcessPending(ctx)
	require.NoError(t, err)
	rows := sheet.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, "20.00", rows[0][4])
}

func TestExportWorker_StartupSyncCheck(t *testing.T) {
	st := memory.New("USD")
	exp := &flakyExporter{failures: 1}
	w := NewExportWorker(st, exp, 1, nil)
	ctx := context.Background()

	res, err := w.StartupSyncCheck(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Total)

	for _, id := range []string{"a", "b", "c"} {
		_, err := st.CreateTransaction(ctx, newTx(id))
		require.NoError(t, err)
	}
	res, err = w.StartupSyncCheck(ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Total: 3, Synced: 2, Errors: 1}, res)
}

func TestExportWorker_SweepStopsOnCancel(t *testing.T) {
	st := memory.New("USD")
	w := NewExportWorker(st, sheetsmem.New(), 10, nil)
	_, err := st.CreateTransaction(context.Background(), newTx("a"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = w.ProcessPending(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScheduler(t *testing.T) {
	s := NewScheduler(nil)
	var runs atomic.Int32
	job := JobFunc{JobName: "count", Fn: func(context.Context) error {
		runs.Add(1)
		return nil
	}}

	assert.Error(t, s.AddJob("not a schedule", job))
	require.NoError(t, s.AddJob("@every 1s", job))

	require.NoError(t, s.RunNow(job))
	assert.Equal(t, int32(1), runs.Load())

	assert.False(t, s.IsRunning())
	require.NoError(t, s.Start())
	assert.Error(t, s.Start())
	assert.True(t, s.IsRunning())

	assert.Eventually(t, func() bool { return runs.Load() >= 2 }, 3*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	assert.False(t, s.IsRunning())
	assert.NoError(t, s.Stop(ctx))
	assert.Error(t, s.Start())
}

func TestSweepJob(t *testing.T) {
	st := memory.New("USD")
	sheet := sheetsmem.New()
	w := NewExportWorker(st, sheet, 10, nil)
	_, err := st.CreateTransaction(context.Background(), newTx("a"))
	require.NoError(t, err)

	job := w.SweepJob()
	assert.Equal(t, "export-pending", job.Name())
	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 1, sheet.Len())
}
