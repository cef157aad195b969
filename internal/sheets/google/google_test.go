package google

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"fintrack/internal/core"
	ports "fintrack/internal/sheets"
)

// fakeSheet serves the subset of the Sheets values API the client uses.
type fakeSheet struct {
	mu    sync.Mutex
	rows  [][]string
	gets  int
	calls []string
}

func (f *fakeSheet) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, rng, ok := strings.Cut(r.URL.Path, "/values/")
	if !ok {
		http.Error(w, "unexpected path "+r.URL.Path, http.StatusNotFound)
		return
	}
	_, cells, _ := strings.Cut(rng, "!")

	switch {
	case r.Method == http.MethodGet:
		f.gets++
		f.calls = append(f.calls, "get "+cells)
		f.writeValues(w, cells)
	case r.Method == http.MethodPut:
		f.calls = append(f.calls, "update "+cells)
		row, _ := rowFromRange(cells)
		f.set(row, decodeRow(r))
		writeJSON(w, map[string]any{"updatedRange": rng})
	case r.Method == http.MethodPost && strings.HasSuffix(cells, ":append"):
		f.calls = append(f.calls, "append")
		f.rows = append(f.rows, decodeRow(r))
		n := len(f.rows)
		writeJSON(w, map[string]any{
			"updates": map[string]any{"updatedRange": fmt.Sprintf("Transactions!A%d:I%d", n, n)},
		})
	case r.Method == http.MethodPost && strings.HasSuffix(cells, ":clear"):
		cells = strings.TrimSuffix(cells, ":clear")
		f.calls = append(f.calls, "clear "+cells)
		row, _ := rowFromRange(cells)
		f.set(row, nil)
		writeJSON(w, map[string]any{"clearedRange": cells})
	default:
		http.Error(w, "unexpected request", http.StatusBadRequest)
	}
}

func (f *fakeSheet) set(row int, values []string) {
	for len(f.rows) < row {
		f.rows = append(f.rows, nil)
	}
	f.rows[row-1] = values
}

func (f *fakeSheet) writeValues(w http.ResponseWriter, cells string) {
	var out [][]any
	if cells == "A:A" {
		for _, row := range f.rows {
			if len(row) == 0 {
				out = append(out, []any{})
				continue
			}
			out = append(out, []any{row[0]})
		}
	} else if row, ok := rowFromRange(cells); ok && row <= len(f.rows) && len(f.rows[row-1]) > 0 {
		out = append(out, toAny(f.rows[row-1]))
	}
	writeJSON(w, map[string]any{"values": out})
}

func decodeRow(r *http.Request) []string {
	var vr struct {
		Values [][]any `json:"values"`
	}
	_ = json.NewDecoder(r.Body).Decode(&vr)
	if len(vr.Values) == 0 {
		return nil
	}
	out := make([]string, len(vr.Values[0]))
	for i, v := range vr.Values[0] {
		out[i] = fmt.Sprint(v)
	}
	return out
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T) (*Client, *fakeSheet) {
	t.Helper()
	fake := &fakeSheet{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return NewWithService(svc, "sheet-id", "Transactions", nil), fake
}

func sampleTx(id string) core.Transaction {
	return core.Transaction{
		ID:       id,
		UserID:   "u1",
		Type:     core.Expense,
		Amount:   decimal.RequireFromString("12.5"),
		Category: "Food & Dining",
		Date:     core.NewDate(2024, 3, 9),
		Currency: "usd",
		Note:     " lunch ",
	}
}

func TestClient_EnsureHeader(t *testing.T) {
	c, fake := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.EnsureHeader(ctx))
	require.Len(t, fake.rows, 1)
	assert.Equal(t, ports.Header, fake.rows[0])

	// Second call sees the header and writes nothing.
	require.NoError(t, c.EnsureHeader(ctx))
	assert.Equal(t, []string{"get A1:I1", "update A1:I1", "get A1:I1"}, fake.calls)
}

func TestClient_ExportAppendsThenUpdates(t *testing.T) {
	c, fake := newTestClient(t)
	ctx := context.Background()
	require.NoError(t, c.EnsureHeader(ctx))

	ref, err := c.Export(ctx, sampleTx("tx-1"))
	require.NoError(t, err)
	assert.Equal(t, "Transactions!A2:I2", ref)
	require.Len(t, fake.rows, 2)
	assert.Equal(t, []string{"tx-1", "2024-03-09", "expense", "Food & Dining", "12.50", "USD", "lunch", "u1", ""}, fake.rows[1])

	updated := sampleTx("tx-1")
	updated.Amount = decimal.RequireFromString("20")
	ref, err = c.Export(ctx, updated)
	require.NoError(t, err)
	assert.Equal(t, "Transactions!A2:I2", ref)
	require.Len(t, fake.rows, 2)
	assert.Equal(t, "20.00", fake.rows[1][4])
}

func TestClient_ExportFindsExistingRowWithoutCache(t *testing.T) {
	c, fake := newTestClient(t)
	ctx := context.Background()
	fake.rows = [][]string{ports.Header, {"tx-a"}, {"tx-b"}}

	ref, err := c.Export(ctx, sampleTx("tx-b"))
	require.NoError(t, err)
	assert.Equal(t, "Transactions!A3:I3", ref)
	assert.Len(t, fake.rows, 3)

	// tx-a was indexed by the same read.
	gets := fake.gets
	_, err = c.Export(ctx, sampleTx("tx-a"))
	require.NoError(t, err)
	assert.Equal(t, gets, fake.gets)
}

func TestClient_Remove(t *testing.T) {
	c, fake := newTestClient(t)
	ctx := context.Background()

	_, err := c.Export(ctx, sampleTx("tx-1"))
	require.NoError(t, err)
	_, err = c.Export(ctx, sampleTx("tx-2"))
	require.NoError(t, err)

	require.NoError(t, c.Remove(ctx, "tx-1"))
	assert.Empty(t, fake.rows[0])
	assert.Equal(t, "tx-2", fake.rows[1][0])

	// Unknown ids are ignored.
	require.NoError(t, c.Remove(ctx, "missing"))
}

func TestClient_ExportRequiresID(t *testing.T) {
	c, _ := newTestClient(t)
	_, err := c.Export(context.Background(), core.Transaction{})
	assert.Error(t, err)
}

func TestClient_NilService(t *testing.T) {
	c := NewWithService(nil, "id", "", nil)
	assert.Equal(t, "Transactions", c.sheetName)

	_, err := c.Export(context.Background(), sampleTx("tx-1"))
	assert.EqualError(t, err, "sheets service not initialized")
	assert.Error(t, c.Remove(context.Background(), "tx-1"))
	assert.Error(t, c.EnsureHeader(context.Background()))
}

func TestNewClient_Credentials(t *testing.T) {
	_, err := NewClient(context.Background(), Options{})
	assert.EqualError(t, err, "missing spreadsheet id")

	_, err = NewClient(context.Background(), Options{SpreadsheetID: "id"})
	assert.EqualError(t, err, "missing service account credentials")

	_, err = NewClient(context.Background(), Options{
		SpreadsheetID:   "id",
		CredentialsFile: filepath.Join(t.TempDir(), "missing.json"),
	})
	assert.ErrorContains(t, err, "read service account file")
}

func TestLoadCredentials(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sa.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"type":"service_account"}`), 0o600))

	b, err := loadCredentials("", path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"service_account"}`, string(b))

	b, err = loadCredentials(` {"inline":true} `, path)
	require.NoError(t, err)
	assert.Equal(t, `{"inline":true}`, string(b))
}

func TestIndexIDs(t *testing.T) {
	values := [][]any{
		{"ID"},
		{"tx-1"},
		{},
		{" tx-2 "},
		{"tx-1"},
	}
	assert.Equal(t, map[string]int{"tx-1": 2, "tx-2": 4}, indexIDs(values))
}

func TestRowFromRange(t *testing.T) {
	tests := []struct {
		in   string
		row  int
		want bool
	}{
		{"Transactions!A12:I12", 12, true},
		{"'My Sheet'!A3:I3", 3, true},
		{"A7", 7, true},
		{"Transactions!A:A", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			row, ok := rowFromRange(tt.in)
			assert.Equal(t, tt.want, ok)
			assert.Equal(t, tt.row, row)
		})
	}
}

func TestLastColumn(t *testing.T) {
	assert.Equal(t, "I", lastColumn())
}
