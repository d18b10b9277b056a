// Package service provides business logic implementations.
// Property-based tests for the ledger's balance arithmetic.
package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

// simAccount mirrors the balance and reputation rules enforced by
// LedgerService and the account repository: balances clamp at zero,
// reputation grows only on credits.
type simAccount struct {
	balance    int64
	reputation int64
}

func (a *simAccount) credit(amount int64) {
	a.balance += amount
	a.reputation += amount
}

func (a *simAccount) penalize(amount int64) {
	a.balance -= amount
	if a.balance < 0 {
		a.balance = 0
	}
}

func (a *simAccount) withdraw(amount int64) bool {
	if a.balance < amount {
		return false
	}
	a.balance -= amount
	return true
}

// TestBalanceNeverNegative applies a random sequence of credits,
// penalties, and withdrawals and checks the balance floor holds after
// every step.
func TestBalanceNeverNegative(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		account := &simAccount{}

		ops := rapid.IntRange(1, 50).Draw(t, "ops")
		for i := 0; i < ops; i++ {
			amount := rapid.Int64Range(1, 10000).Draw(t, "amount")
			switch rapid.IntRange(0, 2).Draw(t, "op") {
			case 0:
				account.credit(amount)
			case 1:
				account.penalize(amount)
			case 2:
				account.withdraw(amount)
			}
			if account.balance < 0 {
				t.Fatalf("balance went negative: %d", account.balance)
			}
		}
	})
}

// TestReputationMonotonicUnderMutations checks that no ordinary
// mutation sequence ever lowers reputation.
func TestReputationMonotonicUnderMutations(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		account := &simAccount{}

		prev := int64(0)
		ops := rapid.IntRange(1, 50).Draw(t, "ops")
		for i := 0; i < ops; i++ {
			amount := rapid.Int64Range(1, 10000).Draw(t, "amount")
			switch rapid.IntRange(0, 2).Draw(t, "op") {
			case 0:
				account.credit(amount)
			case 1:
				account.penalize(amount)
			case 2:
				account.withdraw(amount)
			}
			if account.reputation < prev {
				t.Fatalf("reputation dropped from %d to %d", prev, account.reputation)
			}
			prev = account.reputation
		}
	})
}

// TestWithdrawAllOrNothing checks a withdrawal either moves the full
// amount or moves nothing.
func TestWithdrawAllOrNothing(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		balance := rapid.Int64Range(0, 100000).Draw(t, "balance")
		amount := rapid.Int64Range(1, 100000).Draw(t, "amount")

		account := &simAccount{balance: balance}
		ok := account.withdraw(amount)

		if ok {
			assert.Equal(t, balance-amount, account.balance)
		} else {
			assert.Equal(t, balance, account.balance)
			assert.Less(t, balance, amount)
		}
	})
}

// TestTransferConservation checks a successful transfer preserves the
// combined balance of both parties.
func TestTransferConservation(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		senderBalance := rapid.Int64Range(1, 1000000).Draw(t, "senderBalance")
		receiverBalance := rapid.Int64Range(0, 1000000).Draw(t, "receiverBalance")
		amount := rapid.Int64Range(1, senderBalance).Draw(t, "amount")

		sender := &simAccount{balance: senderBalance}
		receiver := &simAccount{balance: receiverBalance, reputation: 0}

		ok := sender.withdraw(amount)
		if !ok {
			t.Fatalf("withdraw of %d from %d should succeed", amount, senderBalance)
		}
		receiver.credit(amount)

		assert.Equal(t, senderBalance+receiverBalance, sender.balance+receiver.balance)
		assert.Equal(t, amount, receiver.reputation, "recipient reputation grows by received amount")
	})
}

// TestTransferValidation exercises the argument checks that run
// before any funds move.
func TestTransferValidation(t *testing.T) {
	svc := &LedgerService{}

	t.Run("self transfer rejected", func(t *testing.T) {
		_, _, err := svc.Transfer(t.Context(), 5, 5, 100)
		assert.ErrorIs(t, err, ErrInvalidTarget)
	})

	t.Run("non-positive amount rejected", func(t *testing.T) {
		_, _, err := svc.Transfer(t.Context(), 5, 6, 0)
		assert.ErrorIs(t, err, ErrInvalidAmount)

		_, _, err = svc.Transfer(t.Context(), 5, 6, -10)
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})
}
