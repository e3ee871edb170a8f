/*
Copyright 2024 The Skynet Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package lifecycle

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// CurrencyTransaction moves both currencies at once; negative deltas spend.
type CurrencyTransaction struct {
	Currency        int64 `json:"currency"`
	PremiumCurrency int64 `json:"premium_currency"`
}

// Transaction applies a currency delta atomically: it succeeds entirely or
// not at all, and never lets a balance go negative. Returns false when the
// player cannot afford it.
func (s *Service) Transaction(ctx context.Context, player uuid.UUID, tx CurrencyTransaction) (bool, error) {
	currency, premium, err := s.store.PlayerCurrencies(ctx, player)
	if err != nil {
		return false, err
	}

	currency += tx.Currency
	premium += tx.PremiumCurrency
	if currency < 0 || premium < 0 {
		return false, nil
	}

	if err := s.store.SetPlayerCurrencies(ctx, player, currency, premium); err != nil {
		return false, err
	}
	return true, s.invalidateIfOnServer(ctx, player)
}

// InventoryTransaction adjusts item counts; negative deltas consume. All or
// nothing: one short item rejects the whole batch.
func (s *Service) InventoryTransaction(ctx context.Context, player uuid.UUID, deltas map[string]int64) (bool, error) {
	if len(deltas) == 0 {
		return true, nil
	}

	inventory, err := s.store.PlayerInventory(ctx, player)
	if err != nil {
		return false, err
	}

	next := make(map[string]int64, len(deltas))
	for item, delta := range deltas {
		count := inventory[item] + delta
		if count < 0 {
			return false, nil
		}
		next[item] = count
	}
	for item, count := range next {
		if err := s.store.SetPlayerInventoryItem(ctx, player, item, count); err != nil {
			return false, err
		}
	}
	return true, s.invalidateIfOnServer(ctx, player)
}

// UpdateGroups grants and revokes groups. Each entry is "name" for a
// permanent grant, "name/seconds" for an expiring one, or "-name" for a
// revocation.
func (s *Service) UpdateGroups(ctx context.Context, player uuid.UUID, entries []string) error {
	for _, entry := range entries {
		if name, ok := strings.CutPrefix(entry, "-"); ok {
			if err := s.store.RemovePlayerGroup(ctx, player, name); err != nil {
				return err
			}
			continue
		}

		name := entry
		ttl := 0
		if base, raw, ok := strings.Cut(entry, "/"); ok {
			secs, err := strconv.Atoi(raw)
			if err != nil {
				return fmt.Errorf("parse group ttl %q: %w", entry, err)
			}
			name, ttl = base, secs
		}
		if err := s.store.AddPlayerGroup(ctx, player, name, ttl); err != nil {
			return err
		}
	}

	if len(entries) == 0 {
		return nil
	}
	return s.invalidateIfOnServer(ctx, player)
}

// SetProperty writes one player property and reloads them on their server.
func (s *Service) SetProperty(ctx context.Context, player uuid.UUID, key, value string) error {
	if err := s.store.SetPlayerProperty(ctx, player, key, value); err != nil {
		return err
	}
	return s.invalidateIfOnServer(ctx, player)
}
