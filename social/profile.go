package social

import (
	"context"
	"encoding/json"
	"fmt"

	"hive-client/cache"
	"hive-client/chain"
)

// GetAccounts fetches accounts by name, serving each from cache where
// possible and batching the rest into one call.
func (s *Service) GetAccounts(ctx context.Context, names []string) (map[string]Account, error) {
	out := make(map[string]Account, len(names))
	var missing []string

	if s.store != nil {
		for _, name := range names {
			var cached Account
			if s.store.GetJSON(ctx, cache.Key("account", name), &cached) {
				out[name] = cached
			} else {
				missing = append(missing, name)
			}
		}
	} else {
		missing = names
	}
	if len(missing) == 0 {
		return out, nil
	}

	var fetched []Account
	if err := s.client.CallInto(ctx, "condenser_api.get_accounts", []any{missing}, &fetched); err != nil {
		return nil, err
	}
	for _, acct := range fetched {
		out[acct.Name] = acct
		if s.store != nil {
			s.store.SetJSON(ctx, cache.Key("account", acct.Name), acct, s.ttl.Account)
		}
	}
	return out, nil
}

// GetAccount fetches one account.
func (s *Service) GetAccount(ctx context.Context, name string) (*Account, error) {
	accounts, err := s.GetAccounts(ctx, []string{name})
	if err != nil {
		return nil, err
	}
	acct, ok := accounts[name]
	if !ok {
		return nil, chain.NewValidationError("account", fmt.Sprintf("%q does not exist", name))
	}
	return &acct, nil
}

// GetProfile fetches an account's profile document.
func (s *Service) GetProfile(ctx context.Context, name string) (Profile, error) {
	acct, err := s.GetAccount(ctx, name)
	if err != nil {
		return Profile{}, err
	}
	return ParseProfile(*acct), nil
}

// UpdateProfile rewrites the account's posting metadata profile. Only
// posting metadata is touched, so a posting credential suffices.
func (s *Service) UpdateProfile(ctx context.Context, account string, profile Profile) error {
	if account == "" {
		return chain.NewValidationError("account", "required")
	}
	doc, err := json.Marshal(map[string]any{"profile": profile})
	if err != nil {
		return fmt.Errorf("social: encode profile: %w", err)
	}
	op := chain.AccountUpdate2Operation{
		Account:             account,
		PostingJSONMetadata: string(doc),
		Extensions:          []any{},
	}
	if _, err := s.broker.Broadcast(ctx, []chain.Operation{op}); err != nil {
		return err
	}
	if s.store != nil {
		s.store.Invalidate(ctx, cache.Key("account", account))
	}
	return nil
}
