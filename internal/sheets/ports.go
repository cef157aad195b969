package sheets

import (
	"context"
	"strings"

	"fintrack/internal/core"
)

// Ports for outbound export adapters.
type (
	// TransactionExporter writes one row per transaction. Exporting the same
	// transaction twice overwrites its row.
	TransactionExporter interface {
		Export(ctx context.Context, tx core.Transaction) (rowRef string, err error)
	}

	// TransactionRemover clears the row of a deleted transaction.
	TransactionRemover interface {
		Remove(ctx context.Context, id string) error
	}
)

// Header is the first row of the export sheet.
var Header = []string{"ID", "Date", "Type", "Category", "Amount", "Currency", "Note", "User", "Updated"}

// Row renders tx in Header order. Amounts keep two decimals so the sheet
// can parse them as numbers.
func Row(tx core.Transaction) []string {
	updated := ""
	if !tx.UpdatedAt.IsZero() {
		updated = tx.UpdatedAt.UTC().Format("2006-01-02 15:04:05")
	}
	return []string{
		tx.ID,
		tx.Date.String(),
		string(tx.Type),
		tx.Category,
		tx.Amount.StringFixed(2),
		core.NormalizeCurrency(tx.Currency),
		strings.TrimSpace(tx.Note),
		tx.UserID,
		updated,
	}
}
