package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
	"fintrack/internal/store"
	"fintrack/internal/store/storetest"
)

func TestMemoryStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return New("USD") })
}

func TestNew_DefaultCurrency(t *testing.T) {
	p, err := New("").GetProfile(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "USD", p.Currency)

	p, err = New("EUR").GetProfile(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "EUR", p.Currency)
}

func TestConcurrentWrites(t *testing.T) {
	s := New("USD")
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tx := storetest.NewTransaction("u1", core.Expense, "1", "USD", core.NewDate(2025, 1, 1), time.Now())
			tx.ID = uuid.NewString()
			_, err := s.CreateTransaction(ctx, tx)
			assert.NoError(t, err)
			_, err = s.ListTransactions(ctx, "u1")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	list, err := s.ListTransactions(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, list, 50)
}
