package service

import (
	"context"
	"errors"
	"fmt"

	"facility-bot/internal/model"
	"facility-bot/internal/pkg/lock"
	"facility-bot/internal/repository"
	"facility-bot/internal/shop"
)

// Shop service errors.
var (
	ErrItemNotFound        = errors.New("item not found")
	ErrAlreadyOwned        = errors.New("item already owned")
	ErrMissingPrerequisite = errors.New("prerequisite item not owned")
)

// OwnedListing pairs an owned item with its catalog entry.
type OwnedListing struct {
	Config     shop.ItemConfig
	AcquiredAt repository.OwnedItem
}

// ShopService handles commissary purchases. Purchases for one
// participant are serialized with a per-participant lock so the
// ownership check and the debit cannot interleave.
type ShopService struct {
	ledger    *LedgerService
	inventory *repository.InventoryRepository
	locks     *lock.KeyLock
}

// NewShopService creates a new ShopService instance.
func NewShopService(ledger *LedgerService, inventory *repository.InventoryRepository, locks *lock.KeyLock) *ShopService {
	return &ShopService{
		ledger:    ledger,
		inventory: inventory,
		locks:     locks,
	}
}

// Catalog returns all commissary items in display order.
func (s *ShopService) Catalog() []shop.ItemConfig {
	return shop.All()
}

// Purchase buys an item for a participant. The item must not be
// owned yet, its prerequisite (if any) must be owned, and the balance
// must cover the full price.
func (s *ShopService) Purchase(ctx context.Context, userID int64, itemID shop.ItemID) (shop.ItemConfig, error) {
	item, ok := shop.Get(itemID)
	if !ok {
		return shop.ItemConfig{}, ErrItemNotFound
	}

	s.locks.Lock(userID)
	defer s.locks.Unlock(userID)

	owned, err := s.inventory.Has(ctx, userID, string(itemID))
	if err != nil {
		return shop.ItemConfig{}, fmt.Errorf("failed to check ownership: %w", err)
	}
	if owned {
		return shop.ItemConfig{}, ErrAlreadyOwned
	}

	if item.Requires != "" {
		hasPrereq, err := s.inventory.Has(ctx, userID, string(item.Requires))
		if err != nil {
			return shop.ItemConfig{}, fmt.Errorf("failed to check prerequisite: %w", err)
		}
		if !hasPrereq {
			return shop.ItemConfig{}, ErrMissingPrerequisite
		}
	}

	if _, err := s.ledger.Withdraw(ctx, userID, item.Price, model.KindShopPurchase, "bought "+string(itemID)); err != nil {
		return shop.ItemConfig{}, err
	}

	added, err := s.inventory.Add(ctx, userID, string(itemID))
	if err == nil && !added {
		err = ErrAlreadyOwned
	}
	if err != nil {
		// The debit already committed; give the money back.
		if _, refundErr := s.ledger.Credit(ctx, userID, item.Price, model.KindShopPurchase, "refund "+string(itemID)); refundErr != nil {
			return shop.ItemConfig{}, fmt.Errorf("failed to refund after purchase failure: %w", refundErr)
		}
		return shop.ItemConfig{}, fmt.Errorf("failed to record purchase: %w", err)
	}

	return item, nil
}

// Inventory returns everything a participant owns, joined with the
// catalog. Items no longer in the catalog are skipped.
func (s *ShopService) Inventory(ctx context.Context, userID int64) ([]OwnedListing, error) {
	owned, err := s.inventory.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load inventory: %w", err)
	}

	listings := make([]OwnedListing, 0, len(owned))
	for _, o := range owned {
		if item, ok := shop.Get(shop.ItemID(o.ItemID)); ok {
			listings = append(listings, OwnedListing{Config: item, AcquiredAt: o})
		}
	}
	return listings, nil
}
