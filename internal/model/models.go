// Package model defines the data models for the facility bot.
package model

import "time"

// Account represents a participant in the facility economy.
// Balance never goes negative: downward mutations clamp at zero.
// Reputation grows with every positive credit and only drops on an
// explicit admin reset.
type Account struct {
	UserID     int64     `db:"user_id"`
	Balance    int64     `db:"balance"`
	Reputation int64     `db:"reputation"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// LedgerEntry is an append-only audit record for a balance mutation.
// Sequence is ledger-wide and monotonic; it is recovered at startup by
// scanning the newest entries rather than kept in a counter table.
type LedgerEntry struct {
	Sequence  int64     `db:"sequence"`
	UserID    int64     `db:"user_id"`
	Delta     int64     `db:"delta"`
	Resulting int64     `db:"resulting"`
	Kind      string    `db:"kind"`
	Reason    string    `db:"reason"`
	CreatedAt time.Time `db:"created_at"`
}

// Achievement is a one-time award earned from game outcomes.
type Achievement struct {
	UserID   int64     `db:"user_id"`
	Code     string    `db:"code"`
	EarnedAt time.Time `db:"earned_at"`
}

// DailyRank represents a participant's daily game performance.
type DailyRank struct {
	UserID    int64 `db:"user_id"`
	NetProfit int64 `db:"net_profit"`
}

// Ledger entry kinds for categorizing balance mutations.
const (
	KindInitial       = "initial"        // Account creation
	KindTransfer      = "transfer"       // Participant-to-participant transfer
	KindWork          = "work"           // Work reward or penalty
	KindShopPurchase  = "shop_purchase"  // Shop item purchase
	KindAdminSet      = "admin_set"      // Admin set balance
	KindCrystalBet    = "crystal_bet"    // Crystallization bet placement
	KindCrystalWin    = "crystal_win"    // Crystallization cash-out
	KindClimbBet      = "climb_bet"      // Cognitive climb bet placement
	KindClimbWin      = "climb_win"      // Cognitive climb cash-out
	KindCandyBet      = "candy_bet"      // Candy game bet placement
	KindCandyWin      = "candy_win"      // Candy game cash-out
	KindStaringBet    = "staring_bet"    // Staring contest buy-in
	KindStaringWin    = "staring_win"    // Staring contest pot share
	KindStaringRefund = "staring_refund" // Staring contest cancelled lobby refund
	KindRouletteBet   = "roulette_bet"   // Pit roulette bet placement
	KindRouletteWin   = "roulette_win"   // Pit roulette payout
	KindAchievement   = "achievement"    // Achievement reputation bonus
)

// GameKinds returns the ledger kinds that count towards daily game rankings.
// Transfers, work rewards and shop purchases are excluded.
func GameKinds() []string {
	return []string{
		KindCrystalBet, KindCrystalWin,
		KindClimbBet, KindClimbWin,
		KindCandyBet, KindCandyWin,
		KindStaringBet, KindStaringWin,
		KindRouletteBet, KindRouletteWin,
	}
}
