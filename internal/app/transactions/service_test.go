package transactions

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bankcore/internal/app/ledger"
	"bankcore/internal/domain"
	"bankcore/internal/lock"
	"bankcore/internal/util"
)

type memAccountRepo struct {
	mu       sync.Mutex
	accounts map[string]domain.Account
}

func newMemAccountRepo() *memAccountRepo {
	return &memAccountRepo{accounts: make(map[string]domain.Account)}
}

func (r *memAccountRepo) Create(ctx context.Context, account *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[account.ID] = *account
	return nil
}

func (r *memAccountRepo) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := account
	return &copied, nil
}

func (r *memAccountRepo) Save(ctx context.Context, account *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[account.ID] = *account
	return nil
}

type memTransactionRepo struct {
	mu           sync.Mutex
	transactions map[string]domain.Transaction
}

func newMemTransactionRepo() *memTransactionRepo {
	return &memTransactionRepo{transactions: make(map[string]domain.Transaction)}
}

func (r *memTransactionRepo) Create(ctx context.Context, tx *domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transactions[tx.ID] = *tx
	return nil
}

func (r *memTransactionRepo) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx, ok := r.transactions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := tx
	return &copied, nil
}

func (r *memTransactionRepo) Save(ctx context.Context, tx *domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transactions[tx.ID] = *tx
	return nil
}

func (r *memTransactionRepo) ListByAccount(ctx context.Context, accountID string) ([]domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Transaction
	for _, tx := range r.transactions {
		if tx.SourceAccountID == accountID || tx.DestinationAccountID == accountID {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (r *memTransactionRepo) SumCompletedStandardDebits(ctx context.Context, accountID string, day time.Time) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)
	total := decimal.Zero
	for _, tx := range r.transactions {
		if tx.SourceAccountID != accountID ||
			tx.Status != domain.TransactionStatusCompleted ||
			tx.Type != domain.TransactionTypeStandard ||
			tx.CompletedAt == nil {
			continue
		}
		if tx.CompletedAt.Before(dayStart) || !tx.CompletedAt.Before(dayEnd) {
			continue
		}
		total = total.Add(tx.Amount)
	}
	return total, nil
}

type memOutboxRepo struct {
	mu       sync.Mutex
	messages []domain.OutboxMessage
}

func (r *memOutboxRepo) Create(ctx context.Context, msg *domain.OutboxMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, *msg)
	return nil
}

func (r *memOutboxRepo) GetPending(ctx context.Context, limit int) ([]domain.OutboxMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.OutboxMessage
	for _, msg := range r.messages {
		if msg.Status == domain.OutboxStatusPending {
			out = append(out, msg)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *memOutboxRepo) MarkSent(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.messages {
		if r.messages[i].ID == id {
			r.messages[i].Status = domain.OutboxStatusSent
			return nil
		}
	}
	return domain.ErrNotFound
}

type fixture struct {
	accounts *memAccountRepo
	txs      *memTransactionRepo
	outbox   *memOutboxRepo
	ledger   ledger.LedgerService
	svc      TransactionService
}

func newFixture() *fixture {
	accounts := newMemAccountRepo()
	txs := newMemTransactionRepo()
	outbox := &memOutboxRepo{}
	ledgerSvc := ledger.NewLedgerService(accounts, lock.NewKeyed(), zap.NewNop())
	return &fixture{
		accounts: accounts,
		txs:      txs,
		outbox:   outbox,
		ledger:   ledgerSvc,
		svc:      NewTransactionService(accounts, txs, outbox, ledgerSvc, zap.NewNop()),
	}
}

func (f *fixture) openAccount(t *testing.T, balance string) *domain.Account {
	t.Helper()
	account, err := f.ledger.Open(context.Background(), "user-1", decimal.RequireFromString(balance))
	require.NoError(t, err)
	return account
}

func TestCreateAndProcessStandardTransfer(t *testing.T) {
	f := newFixture()
	source := f.openAccount(t, "1000")
	destination := f.openAccount(t, "0")

	tx, err := f.svc.CreateAndProcess(context.Background(), CreateRequest{
		SourceAccountID:      source.ID,
		DestinationAccountID: destination.ID,
		Amount:               decimal.NewFromInt(100),
		Type:                 domain.TransactionTypeStandard,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusCompleted, tx.Status)
	require.NotNil(t, tx.CompletedAt)
	assert.True(t, tx.Fee.Equal(decimal.RequireFromString("0.1")), "fee: %s", tx.Fee)

	sourceBalance, err := f.ledger.GetBalance(context.Background(), source.ID)
	require.NoError(t, err)
	destinationBalance, err := f.ledger.GetBalance(context.Background(), destination.ID)
	require.NoError(t, err)
	assert.True(t, sourceBalance.Equal(decimal.RequireFromString("899.9")), "source: %s", sourceBalance)
	assert.True(t, destinationBalance.Equal(decimal.NewFromInt(100)), "destination: %s", destinationBalance)

	// Completion must leave an event in the outbox.
	pending, err := f.outbox.GetPending(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, domain.EventTypeTransactionCompleted, pending[0].EventType)
	assert.Equal(t, tx.ID, pending[0].AggregateID)
}

func TestCreateAndProcessValidationOrder(t *testing.T) {
	f := newFixture()
	active := f.openAccount(t, "1000")
	blocked := f.openAccount(t, "1000")
	_, err := f.ledger.Block(context.Background(), blocked.ID)
	require.NoError(t, err)

	tests := []struct {
		name    string
		req     CreateRequest
		wantErr error
	}{
		{
			// Same account wins even when everything else is wrong too.
			"same account",
			CreateRequest{SourceAccountID: active.ID, DestinationAccountID: active.ID,
				Amount: decimal.NewFromInt(-5), Type: domain.TransactionTypeStandard},
			domain.ErrSameAccount,
		},
		{
			"inactive account before amount check",
			CreateRequest{SourceAccountID: blocked.ID, DestinationAccountID: active.ID,
				Amount: decimal.NewFromInt(-5), Type: domain.TransactionTypeStandard},
			domain.ErrAccountNotActive,
		},
		{
			"non-positive amount",
			CreateRequest{SourceAccountID: active.ID, DestinationAccountID: f.openAccount(t, "0").ID,
				Amount: decimal.Zero, Type: domain.TransactionTypeStandard},
			domain.ErrInvalidAmount,
		},
		{
			"unknown source",
			CreateRequest{SourceAccountID: "missing", DestinationAccountID: active.ID,
				Amount: decimal.NewFromInt(5), Type: domain.TransactionTypeStandard},
			domain.ErrNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateAndProcess(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCreateAndProcessInsufficientIncludesFee(t *testing.T) {
	f := newFixture()
	source := f.openAccount(t, "100")
	destination := f.openAccount(t, "0")

	// 100 INSTANT carries a 0.5 fee; the balance covers the amount but not
	// the total.
	_, err := f.svc.CreateAndProcess(context.Background(), CreateRequest{
		SourceAccountID:      source.ID,
		DestinationAccountID: destination.ID,
		Amount:               decimal.NewFromInt(100),
		Type:                 domain.TransactionTypeInstant,
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	sourceBalance, getErr := f.ledger.GetBalance(context.Background(), source.ID)
	require.NoError(t, getErr)
	assert.True(t, sourceBalance.Equal(decimal.NewFromInt(100)))
}

func TestProcessRejectsNonPending(t *testing.T) {
	f := newFixture()
	source := f.openAccount(t, "1000")
	destination := f.openAccount(t, "0")

	tx, err := f.svc.CreateAndProcess(context.Background(), CreateRequest{
		SourceAccountID:      source.ID,
		DestinationAccountID: destination.ID,
		Amount:               decimal.NewFromInt(10),
		Type:                 domain.TransactionTypeStandard,
	})
	require.NoError(t, err)

	_, err = f.svc.Process(context.Background(), tx.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestProcessMarksFailedWhenAccountChangedSinceValidation(t *testing.T) {
	f := newFixture()
	source := f.openAccount(t, "1000")
	destination := f.openAccount(t, "0")

	tx := domain.NewTransaction(util.GenerateUUID(), source.ID, destination.ID,
		decimal.NewFromInt(10), decimal.RequireFromString("0.01"),
		domain.TransactionTypeStandard, time.Now())
	require.NoError(t, f.txs.Create(context.Background(), tx))

	_, err := f.ledger.Block(context.Background(), source.ID)
	require.NoError(t, err)

	_, err = f.svc.Process(context.Background(), tx.ID)
	assert.ErrorIs(t, err, domain.ErrAccountNotActive)

	stored, getErr := f.txs.GetByID(context.Background(), tx.ID)
	require.NoError(t, getErr)
	assert.Equal(t, domain.TransactionStatusFailed, stored.Status)
}

func TestDailyTotalCountsOnlyCompletedStandardDebits(t *testing.T) {
	f := newFixture()
	source := f.openAccount(t, "10000")
	destination := f.openAccount(t, "0")

	_, err := f.svc.CreateAndProcess(context.Background(), CreateRequest{
		SourceAccountID:      source.ID,
		DestinationAccountID: destination.ID,
		Amount:               decimal.NewFromInt(100),
		Type:                 domain.TransactionTypeStandard,
	})
	require.NoError(t, err)
	_, err = f.svc.CreateAndProcess(context.Background(), CreateRequest{
		SourceAccountID:      source.ID,
		DestinationAccountID: destination.ID,
		Amount:               decimal.NewFromInt(200),
		Type:                 domain.TransactionTypeInstant,
	})
	require.NoError(t, err)

	total, err := f.svc.DailyTotal(context.Background(), source.ID, time.Now())
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.NewFromInt(100)), "total: %s", total)

	// The destination side has no debits.
	total, err = f.svc.DailyTotal(context.Background(), destination.ID, time.Now())
	require.NoError(t, err)
	assert.True(t, total.IsZero())
}

func TestConcurrentTransfersNeverOverdraw(t *testing.T) {
	f := newFixture()
	source := f.openAccount(t, "100")
	destination := f.openAccount(t, "0")

	// 30 transfers of 10.01 against a balance of 100: at most 9 can land.
	const attempts = 30
	var wg sync.WaitGroup
	wg.Add(attempts)
	for i := 0; i < attempts; i++ {
		go func() {
			defer wg.Done()
			_, _ = f.svc.CreateAndProcess(context.Background(), CreateRequest{
				SourceAccountID:      source.ID,
				DestinationAccountID: destination.ID,
				Amount:               decimal.NewFromInt(10),
				Type:                 domain.TransactionTypeStandard,
			})
		}()
	}
	wg.Wait()

	sourceBalance, err := f.ledger.GetBalance(context.Background(), source.ID)
	require.NoError(t, err)
	destinationBalance, err := f.ledger.GetBalance(context.Background(), destination.ID)
	require.NoError(t, err)
	assert.False(t, sourceBalance.IsNegative(), "source overdrawn: %s", sourceBalance)
	assert.True(t, sourceBalance.Add(destinationBalance).LessThanOrEqual(decimal.NewFromInt(100)),
		"money created from nothing: %s + %s", sourceBalance, destinationBalance)
}
