package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"facility-bot/internal/interaction"
	"facility-bot/internal/service"
	"facility-bot/internal/shop"
)

const shopDomain = "shop"

// ShopHandler serves the commissary: catalog listing, purchases, and
// inventory.
type ShopHandler struct {
	shop *service.ShopService
	log  zerolog.Logger
}

// NewShopHandler creates the shop handler.
func NewShopHandler(shopService *service.ShopService, log zerolog.Logger) *ShopHandler {
	return &ShopHandler{
		shop: shopService,
		log:  log.With().Str("handler", shopDomain).Logger(),
	}
}

// Register wires the handler into the dispatcher.
func (h *ShopHandler) Register(d *interaction.Dispatcher) {
	d.Command(shopDomain, h.catalog)
	d.Command("inventory", h.inventory)
	d.Component(shopDomain, h.press)
}

func (h *ShopHandler) catalog(_ context.Context, _ interaction.CommandInvoked) (interaction.Render, error) {
	items := h.shop.Catalog()

	var b strings.Builder
	b.WriteString("The commissary is open.\n")
	controls := make([]interaction.Control, 0, len(items))
	for _, item := range items {
		fmt.Fprintf(&b, "%s %s — %d credits. %s\n", item.Emoji, item.Name, item.Price, item.Description)
		controls = append(controls, interaction.Control{
			ID:    interaction.CustomID(shopDomain, "buy", string(item.ID)),
			Label: fmt.Sprintf("%s %s (%d)", item.Emoji, item.Name, item.Price),
		})
	}

	return interaction.Render{Text: b.String(), Controls: controls}, nil
}

func (h *ShopHandler) press(ctx context.Context, ev interaction.ComponentActivated, action interaction.Action) (interaction.Render, error) {
	if action.Verb != "buy" {
		return renderError(h.log, interaction.ErrInvalidSession, "shop "+action.Verb), nil
	}

	item, err := h.shop.Purchase(ctx, ev.UserID, shop.ItemID(action.Payload))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrItemNotFound):
			return renderError(h.log, interaction.ErrInvalidSession, "shop buy"), nil
		case errors.Is(err, service.ErrAlreadyOwned):
			return interaction.Render{Text: "You already own that.", Ephemeral: true}, nil
		case errors.Is(err, service.ErrMissingPrerequisite):
			return interaction.Render{Text: "You need the previous clearance level first.", Ephemeral: true}, nil
		case errors.Is(err, service.ErrInsufficientFunds):
			return interaction.Render{Text: "You can't afford that.", Ephemeral: true}, nil
		default:
			return renderError(h.log, err, "shop buy"), nil
		}
	}

	return interaction.Render{
		Text:      fmt.Sprintf("%s %s acquired for %d credits.", item.Emoji, item.Name, item.Price),
		Ephemeral: true,
	}, nil
}

func (h *ShopHandler) inventory(ctx context.Context, ev interaction.CommandInvoked) (interaction.Render, error) {
	listings, err := h.shop.Inventory(ctx, ev.UserID)
	if err != nil {
		return renderError(h.log, err, "inventory"), nil
	}
	if len(listings) == 0 {
		return interaction.Render{Text: "You own nothing yet. Visit the commissary.", Ephemeral: true}, nil
	}

	var b strings.Builder
	b.WriteString("Your locker:\n")
	for _, l := range listings {
		fmt.Fprintf(&b, "%s %s\n", l.Config.Emoji, l.Config.Name)
	}
	return interaction.Render{Text: b.String(), Ephemeral: true}, nil
}
