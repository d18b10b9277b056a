// Package shop defines the facility commissary catalog.
package shop

// ItemID identifies a commissary item.
type ItemID string

// Catalog item identifiers.
const (
	ItemKeycard1 ItemID = "keycard_1"
	ItemKeycard2 ItemID = "keycard_2"
	ItemKeycard3 ItemID = "keycard_3"
	ItemKeycard4 ItemID = "keycard_4"
	ItemKeycard5 ItemID = "keycard_5"
	ItemLabCoat  ItemID = "lab_coat"
	ItemRadio    ItemID = "radio"
	ItemMug      ItemID = "mug"
)

// ItemConfig holds the configuration for a commissary item. Items are
// unique per participant; keycards additionally require owning the
// previous clearance level.
type ItemConfig struct {
	ID          ItemID
	Name        string
	Emoji       string
	Price       int64
	Requires    ItemID // empty when the item has no prerequisite
	Description string
}

// Items contains the full catalog.
var Items = map[ItemID]ItemConfig{
	ItemKeycard1: {
		ID:          ItemKeycard1,
		Name:        "Level 1 Keycard",
		Emoji:       "🪪",
		Price:       500,
		Description: "Grants access to general staff areas.",
	},
	ItemKeycard2: {
		ID:          ItemKeycard2,
		Name:        "Level 2 Keycard",
		Emoji:       "🪪",
		Price:       1500,
		Requires:    ItemKeycard1,
		Description: "Grants access to research wings.",
	},
	ItemKeycard3: {
		ID:          ItemKeycard3,
		Name:        "Level 3 Keycard",
		Emoji:       "🪪",
		Price:       5000,
		Requires:    ItemKeycard2,
		Description: "Grants access to containment corridors.",
	},
	ItemKeycard4: {
		ID:          ItemKeycard4,
		Name:        "Level 4 Keycard",
		Emoji:       "🪪",
		Price:       15000,
		Requires:    ItemKeycard3,
		Description: "Grants access to high-security zones.",
	},
	ItemKeycard5: {
		ID:          ItemKeycard5,
		Name:        "Level 5 Keycard",
		Emoji:       "🪪",
		Price:       50000,
		Requires:    ItemKeycard4,
		Description: "Grants access to everything, in theory.",
	},
	ItemLabCoat: {
		ID:          ItemLabCoat,
		Name:        "Lab Coat",
		Emoji:       "🥼",
		Price:       800,
		Description: "Standard issue. Mostly for looks.",
	},
	ItemRadio: {
		ID:          ItemRadio,
		Name:        "Site Radio",
		Emoji:       "📻",
		Price:       1200,
		Description: "Picks up three channels, two of them static.",
	},
	ItemMug: {
		ID:          ItemMug,
		Name:        "Anomalous Mug",
		Emoji:       "☕",
		Price:       300,
		Description: "Never quite empty. Never quite full.",
	},
}

// displayOrder fixes the catalog ordering for listings.
var displayOrder = []ItemID{
	ItemKeycard1, ItemKeycard2, ItemKeycard3, ItemKeycard4, ItemKeycard5,
	ItemLabCoat, ItemRadio, ItemMug,
}

// All returns the catalog in display order.
func All() []ItemConfig {
	items := make([]ItemConfig, 0, len(displayOrder))
	for _, id := range displayOrder {
		if item, ok := Items[id]; ok {
			items = append(items, item)
		}
	}
	return items
}

// Get returns the item config for a given ID.
func Get(id ItemID) (ItemConfig, bool) {
	item, ok := Items[id]
	return item, ok
}
