// Package parimutuel implements pit roulette: one betting round per
// channel over the outcome space 0..36. The first bet opens the round
// and arms the close timer; each further bet must come from a new
// player. At expiry one outcome is drawn and matching bets pay a
// multiplier scaled to how specific the choice was.
package parimutuel

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"facility-bot/internal/model"
	"facility-bot/internal/outbox"
	"facility-bot/internal/pkg/lock"
)

// outcomeSpace is the number of distinct draws: 0 through 36.
const outcomeSpace = 37

// Service errors.
var (
	ErrInvalidBet    = errors.New("bet must be positive")
	ErrBetTooLarge   = errors.New("bet exceeds maximum")
	ErrInvalidChoice = errors.New("unrecognized bet choice")
	ErrAlreadyBet    = errors.New("already placed a bet this round")
)

// ChoiceKind classifies how specific a choice is.
type ChoiceKind int

const (
	ChoiceSingle ChoiceKind = iota // exactly one number
	ChoiceParity                   // odd or even (zero pays neither)
	ChoiceHalf                     // low 1-18 or high 19-36
	ChoiceDozen                    // 1-12, 13-24, 25-36
)

// Choice is a parsed bet selection.
type Choice struct {
	Kind   ChoiceKind
	Number int  // single number
	Flag   bool // odd / high when true
	Dozen  int  // 1..3
	Label  string
}

// ParseChoice maps a selection string to a Choice. Accepted forms:
// a number "0".."36", "odd", "even", "low", "high", "dozen1".."dozen3".
func ParseChoice(s string) (Choice, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "odd":
		return Choice{Kind: ChoiceParity, Flag: true, Label: "odd"}, nil
	case "even":
		return Choice{Kind: ChoiceParity, Flag: false, Label: "even"}, nil
	case "low":
		return Choice{Kind: ChoiceHalf, Flag: false, Label: "low (1-18)"}, nil
	case "high":
		return Choice{Kind: ChoiceHalf, Flag: true, Label: "high (19-36)"}, nil
	case "dozen1":
		return Choice{Kind: ChoiceDozen, Dozen: 1, Label: "first dozen"}, nil
	case "dozen2":
		return Choice{Kind: ChoiceDozen, Dozen: 2, Label: "second dozen"}, nil
	case "dozen3":
		return Choice{Kind: ChoiceDozen, Dozen: 3, Label: "third dozen"}, nil
	}

	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 || n >= outcomeSpace {
		return Choice{}, ErrInvalidChoice
	}
	return Choice{Kind: ChoiceSingle, Number: n, Label: strconv.Itoa(n)}, nil
}

// Matches reports whether the draw is in the choice's winning set.
// Zero wins only a straight-up bet on zero.
func (c Choice) Matches(draw int) bool {
	switch c.Kind {
	case ChoiceSingle:
		return draw == c.Number
	case ChoiceParity:
		if draw == 0 {
			return false
		}
		return (draw%2 == 1) == c.Flag
	case ChoiceHalf:
		if draw == 0 {
			return false
		}
		return (draw >= 19) == c.Flag
	case ChoiceDozen:
		return draw >= (c.Dozen-1)*12+1 && draw <= c.Dozen*12
	}
	return false
}

// Config parameterizes the service. The multipliers default to 36x
// for a single number, 2x for parity and halves, 3x for dozens.
type Config struct {
	RoundDuration  time.Duration
	MaxBet         int64
	SingleMult     int64
	BroadMult      int64
	DozenMult      int64
}

func (c *Config) multiplier(kind ChoiceKind) int64 {
	switch kind {
	case ChoiceSingle:
		if c.SingleMult > 0 {
			return c.SingleMult
		}
		return 36
	case ChoiceDozen:
		if c.DozenMult > 0 {
			return c.DozenMult
		}
		return 3
	default:
		if c.BroadMult > 0 {
			return c.BroadMult
		}
		return 2
	}
}

// Bet is one player's stake in a round.
type Bet struct {
	UserID int64
	Choice Choice
	Amount int64
}

type round struct {
	channelID int64
	bets      []Bet
	players   map[int64]bool
	closed    bool
}

// Snapshot is a read-only view of a round for rendering.
type Snapshot struct {
	ChannelID int64
	Bets      []Bet
	Opened    bool // true when this call opened the round
}

// Ledger is the slice of the economy service the round service needs.
type Ledger interface {
	Withdraw(ctx context.Context, userID, amount int64, kind, reason string) (*model.Account, error)
	Credit(ctx context.Context, userID, amount int64, kind, reason string) (*model.Account, error)
}

// Notifier pushes the round result to the channel once the draw is in.
type Notifier interface {
	RoundClosed(channelID int64, text string)
}

// Service owns every open round, keyed by channel. Bets for one
// channel are serialized with the shared key lock.
type Service struct {
	cfg      Config
	ledger   Ledger
	notifier Notifier
	events   *outbox.Outbox
	locks    *lock.KeyLock
	log      zerolog.Logger

	mu     sync.Mutex
	rounds map[int64]*round

	rngMu sync.Mutex
	rng   *rand.Rand
}

// New creates a Service. rng is injected so tests can pin draws.
func New(cfg Config, ledger Ledger, notifier Notifier, events *outbox.Outbox, locks *lock.KeyLock, rng *rand.Rand, log zerolog.Logger) *Service {
	return &Service{
		cfg:      cfg,
		ledger:   ledger,
		notifier: notifier,
		events:   events,
		locks:    locks,
		log:      log.With().Str("component", "roulette").Logger(),
		rounds:   make(map[int64]*round),
		rng:      rng,
	}
}

// Place puts a bet on the channel's round, opening one if none is
// live. A player bets at most once per round; the membership check
// runs before the debit, so a rejected repeat moves no funds.
func (s *Service) Place(ctx context.Context, channelID, userID int64, choice Choice, amount int64) (Snapshot, error) {
	if amount <= 0 {
		return Snapshot{}, ErrInvalidBet
	}
	if s.cfg.MaxBet > 0 && amount > s.cfg.MaxBet {
		return Snapshot{}, ErrBetTooLarge
	}

	s.locks.Lock(channelID)
	defer s.locks.Unlock(channelID)

	s.mu.Lock()
	r, live := s.rounds[channelID]
	s.mu.Unlock()

	opened := false
	if !live {
		r = &round{channelID: channelID, players: make(map[int64]bool)}
		opened = true
	} else if r.players[userID] {
		return Snapshot{}, ErrAlreadyBet
	}

	if _, err := s.ledger.Withdraw(ctx, userID, amount, model.KindRouletteBet, "roulette bet on "+choice.Label); err != nil {
		return Snapshot{}, err
	}

	r.players[userID] = true
	r.bets = append(r.bets, Bet{UserID: userID, Choice: choice, Amount: amount})

	if opened {
		s.mu.Lock()
		s.rounds[channelID] = r
		s.mu.Unlock()
		time.AfterFunc(s.cfg.RoundDuration, func() {
			s.close(channelID)
		})
	}

	bets := make([]Bet, len(r.bets))
	copy(bets, r.bets)
	return Snapshot{ChannelID: channelID, Bets: bets, Opened: opened}, nil
}

// close draws the outcome and settles. The round leaves the registry
// before any payout goes out: a new round can open in the channel
// immediately, and a slow credit loop cannot double-settle.
func (s *Service) close(channelID int64) {
	s.locks.Lock(channelID)
	s.mu.Lock()
	r, ok := s.rounds[channelID]
	if ok {
		delete(s.rounds, channelID)
	}
	s.mu.Unlock()
	if !ok || r.closed {
		s.locks.Unlock(channelID)
		return
	}
	r.closed = true
	s.locks.Unlock(channelID)

	s.rngMu.Lock()
	draw := s.rng.Intn(outcomeSpace)
	s.rngMu.Unlock()

	s.settle(r, draw)
}

func (s *Service) settle(r *round, draw int) {
	ctx := context.Background()

	var result strings.Builder
	fmt.Fprintf(&result, "The pit settles on %d.\n", draw)

	for _, b := range r.bets {
		if !b.Choice.Matches(draw) {
			fmt.Fprintf(&result, "Participant %d loses %d on %s.\n", b.UserID, b.Amount, b.Choice.Label)
			s.events.Publish(outbox.Event{Game: "roulette", UserID: b.UserID, Bet: b.Amount})
			continue
		}

		payout := b.Amount * s.cfg.multiplier(b.Choice.Kind)
		if _, err := s.ledger.Credit(ctx, b.UserID, payout, model.KindRouletteWin, "roulette win on "+b.Choice.Label); err != nil {
			s.log.Error().Err(err).
				Int64("user_id", b.UserID).
				Int64("payout", payout).
				Msg("roulette payout failed; round stays settled")
			continue
		}
		fmt.Fprintf(&result, "Participant %d wins %d on %s.\n", b.UserID, payout, b.Choice.Label)
		s.events.Publish(outbox.Event{Game: "roulette", UserID: b.UserID, Bet: b.Amount, Payout: payout, Won: true})
	}

	s.notifier.RoundClosed(r.channelID, result.String())
}
