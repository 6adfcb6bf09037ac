package repository

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/munon-registry/internal/model"
)

// AccountStore is implemented by the MySQL and in-memory account stores.
type AccountStore interface {
	Create(ctx context.Context, a model.Account) error
	GetByAddress(ctx context.Context, address string) (model.Account, error)
	List(ctx context.Context) ([]model.Account, error)
}

// AccountRepo mirrors the 'accounts' table.
type AccountRepo struct{ DB *sql.DB }

func NewAccountRepo(db *sql.DB) *AccountRepo { return &AccountRepo{DB: db} }

// InitSchema creates the accounts table.
func (r *AccountRepo) InitSchema(ctx context.Context) error {
	_, err := r.DB.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS accounts (
		address       CHAR(42)     PRIMARY KEY,
		password_hash VARCHAR(100) NOT NULL,
		created_at    DATETIME     NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`)
	return err
}

// Create inserts the account.
func (r *AccountRepo) Create(ctx context.Context, a model.Account) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO accounts (address, password_hash) VALUES (?,?)",
		strings.ToLower(a.Address), a.PasswordHash)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return ErrAccountExists
		}
		return err
	}
	return nil
}

// GetByAddress fetches an account by normalized address.
func (r *AccountRepo) GetByAddress(ctx context.Context, address string) (model.Account, error) {
	address = strings.ToLower(strings.TrimSpace(address))
	var a model.Account
	err := r.DB.QueryRowContext(ctx,
		"SELECT address,password_hash,created_at FROM accounts WHERE address=? LIMIT 1",
		address).Scan(&a.Address, &a.PasswordHash, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Account{}, ErrAccountNotFound
	}
	return a, err
}

// List returns all accounts ordered by registration time.
func (r *AccountRepo) List(ctx context.Context) ([]model.Account, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT address,password_hash,created_at FROM accounts ORDER BY created_at, address")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Account{}
	for rows.Next() {
		var a model.Account
		if err := rows.Scan(&a.Address, &a.PasswordHash, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// MemoryAccountRepo keeps accounts in process memory.  It backs the
// STORAGE=memory mode and tests.
type MemoryAccountRepo struct {
	mu       sync.Mutex
	accounts map[string]model.Account
	now      func() time.Time
}

func NewMemoryAccountRepo() *MemoryAccountRepo {
	return &MemoryAccountRepo{accounts: map[string]model.Account{}, now: time.Now}
}

func (r *MemoryAccountRepo) Create(_ context.Context, a model.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a.Address = strings.ToLower(a.Address)
	if _, ok := r.accounts[a.Address]; ok {
		return ErrAccountExists
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = r.now().UTC()
	}
	r.accounts[a.Address] = a
	return nil
}

func (r *MemoryAccountRepo) GetByAddress(_ context.Context, address string) (model.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[strings.ToLower(strings.TrimSpace(address))]
	if !ok {
		return model.Account{}, ErrAccountNotFound
	}
	return a, nil
}

func (r *MemoryAccountRepo) List(_ context.Context) ([]model.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Account, 0, len(r.accounts))
	for _, a := range r.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Address < out[j].Address
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
