package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"welth/internal/core"
)

type AccountService struct {
	store AccountStore
}

func NewAccountService(store AccountStore) *AccountService {
	return &AccountService{store: store}
}

func (s *AccountService) Create(ctx context.Context, userID string, a core.Account) (*core.Account, error) {
	a.Name = strings.TrimSpace(a.Name)
	if err := a.Validate(); err != nil {
		return nil, err
	}
	created, err := s.store.CreateAccount(ctx, userID, a)
	if err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}
	return created, nil
}

func (s *AccountService) List(ctx context.Context, userID string) ([]core.Account, error) {
	accounts, err := s.store.ListAccounts(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return accounts, nil
}

func (s *AccountService) GetWithTransactions(ctx context.Context, userID, id string) (*core.AccountWithTransactions, error) {
	return s.store.GetAccountWithTransactions(ctx, userID, id)
}

func (s *AccountService) SetDefault(ctx context.Context, userID, id string) (*core.Account, error) {
	a, err := s.store.SetDefaultAccount(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "Default account changed", "user_id", userID, "account_id", id)
	return a, nil
}
