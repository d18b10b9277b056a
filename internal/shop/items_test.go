package shop

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogIntegrity(t *testing.T) {
	for id, item := range Items {
		assert.Equal(t, id, item.ID, "map key must match item ID")
		assert.NotEmpty(t, item.Name)
		assert.Greater(t, item.Price, int64(0))

		if item.Requires != "" {
			_, ok := Items[item.Requires]
			assert.True(t, ok, "prerequisite %s of %s must exist", item.Requires, id)
		}
	}
}

func TestPrerequisiteChainsTerminate(t *testing.T) {
	for id := range Items {
		seen := map[ItemID]bool{}
		for cur := id; cur != ""; {
			require.False(t, seen[cur], "prerequisite cycle through %s", cur)
			seen[cur] = true
			cur = Items[cur].Requires
		}
	}
}

func TestKeycardPricesEscalate(t *testing.T) {
	cards := []ItemID{ItemKeycard1, ItemKeycard2, ItemKeycard3, ItemKeycard4, ItemKeycard5}
	for i := 1; i < len(cards); i++ {
		assert.Greater(t, Items[cards[i]].Price, Items[cards[i-1]].Price,
			"%s should cost more than %s", cards[i], cards[i-1])
	}
}

func TestAllReturnsFullCatalogInOrder(t *testing.T) {
	all := All()
	require.Len(t, all, len(Items))
	assert.Equal(t, ItemKeycard1, all[0].ID)
}

func TestGetUnknownItem(t *testing.T) {
	_, ok := Get("plasma_rifle")
	assert.False(t, ok)
}
