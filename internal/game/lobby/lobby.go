// Package lobby implements the staring contest: a multiplayer
// elimination game with an open lobby phase. Players buy in while the
// lobby is open; once it starts, elimination rounds thin the field
// until the pot is settled. Sessions live in an in-process registry
// keyed by the hosting message id; joins are serialized per key.
package lobby

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"facility-bot/internal/model"
	"facility-bot/internal/outbox"
	"facility-bot/internal/pkg/lock"
)

// Mode selects how elimination rounds end the game.
type Mode int

const (
	// SuddenDeath ends the game on the first round with any death;
	// the pot splits among that round's survivors.
	SuddenDeath Mode = iota
	// LastSurvivor keeps running rounds until at most one player is
	// left.
	LastSurvivor
)

// ParseMode maps a config string to a Mode, defaulting to SuddenDeath.
func ParseMode(s string) Mode {
	if s == "last_survivor" {
		return LastSurvivor
	}
	return SuddenDeath
}

// Coordinator errors.
var (
	ErrInvalidBet       = errors.New("bet must be positive")
	ErrBetTooLarge      = errors.New("bet exceeds maximum")
	ErrSessionNotFound  = errors.New("no open lobby for this message")
	ErrSessionClosed    = errors.New("lobby is no longer open")
	ErrAlreadyJoined    = errors.New("already in this lobby")
	ErrLobbyFull        = errors.New("lobby is full")
	ErrNotHost          = errors.New("only the host can start the game")
	ErrNotEnoughPlayers = errors.New("at least two players are needed")
)

// Ledger is the slice of the economy service the coordinator needs.
type Ledger interface {
	Withdraw(ctx context.Context, userID, amount int64, kind, reason string) (*model.Account, error)
	Credit(ctx context.Context, userID, amount int64, kind, reason string) (*model.Account, error)
}

// Notifier pushes timer-driven updates back to the platform. final
// means the hosting message should lose its controls.
type Notifier interface {
	Publish(channelID, messageID int64, text string, final bool)
}

// Config parameterizes the coordinator.
type Config struct {
	MaxPlayers    int
	LobbyDuration time.Duration
	RoundDelay    time.Duration
	Mode          Mode
	MaxBet        int64
}

type phase int

const (
	phaseOpen phase = iota
	phaseRunning
	phaseResolved
)

// Session is one staring contest from lobby to settlement.
type Session struct {
	MessageID int64
	ChannelID int64
	HostID    int64
	Bet       int64

	phase   phase
	players []int64
	timer   *time.Timer
	aborted bool
}

// Snapshot is a read-only view of a session for rendering.
type Snapshot struct {
	MessageID int64
	ChannelID int64
	HostID    int64
	Bet       int64
	Players   []int64
	Open      bool
}

func (s *Session) snapshot() Snapshot {
	players := make([]int64, len(s.players))
	copy(players, s.players)
	return Snapshot{
		MessageID: s.MessageID,
		ChannelID: s.ChannelID,
		HostID:    s.HostID,
		Bet:       s.Bet,
		Players:   players,
		Open:      s.phase == phaseOpen,
	}
}

// Coordinator owns every live session. Per-message critical sections
// come from the shared key lock, so two joins for the same lobby can
// never both see the last free slot.
type Coordinator struct {
	cfg      Config
	ledger   Ledger
	notifier Notifier
	events   *outbox.Outbox
	locks    *lock.KeyLock
	log      zerolog.Logger

	mu       sync.Mutex
	sessions map[int64]*Session

	rngMu sync.Mutex
	rng   *rand.Rand
}

// New creates a Coordinator. rng is injected so tests can pin rolls.
func New(cfg Config, ledger Ledger, notifier Notifier, events *outbox.Outbox, locks *lock.KeyLock, rng *rand.Rand, log zerolog.Logger) *Coordinator {
	if cfg.MaxPlayers <= 0 {
		cfg.MaxPlayers = 6
	}
	return &Coordinator{
		cfg:      cfg,
		ledger:   ledger,
		notifier: notifier,
		events:   events,
		locks:    locks,
		log:      log.With().Str("component", "staring").Logger(),
		sessions: make(map[int64]*Session),
		rng:      rng,
	}
}

// Open validates the stake and debits the host. The session is not
// joinable until Bind attaches it to its hosting message, because the
// message id does not exist before the first render is sent.
func (c *Coordinator) Open(ctx context.Context, channelID, hostID, bet int64) (*Session, error) {
	if bet <= 0 {
		return nil, ErrInvalidBet
	}
	if c.cfg.MaxBet > 0 && bet > c.cfg.MaxBet {
		return nil, ErrBetTooLarge
	}

	if _, err := c.ledger.Withdraw(ctx, hostID, bet, model.KindStaringBet, "staring contest buy-in"); err != nil {
		return nil, err
	}

	return &Session{
		ChannelID: channelID,
		HostID:    hostID,
		Bet:       bet,
		players:   []int64{hostID},
	}, nil
}

// Bind registers the session under its hosting message and arms the
// auto-start timer. A session that was already aborted stays out of
// the registry.
func (c *Coordinator) Bind(s *Session, messageID int64) {
	c.mu.Lock()
	if s.aborted {
		c.mu.Unlock()
		return
	}
	s.MessageID = messageID
	c.sessions[messageID] = s
	c.mu.Unlock()

	s.timer = time.AfterFunc(c.cfg.LobbyDuration, func() {
		c.autoStart(messageID)
	})
}

// Abort refunds the host's buy-in for a session that never reached
// Bind, which happens when the hosting message could not be created.
// A bound session is unaffected; its own timer owns the refund path.
func (c *Coordinator) Abort(s *Session) {
	c.mu.Lock()
	if s.aborted || s.MessageID != 0 {
		c.mu.Unlock()
		return
	}
	s.aborted = true
	c.mu.Unlock()

	if _, err := c.ledger.Credit(context.Background(), s.HostID, s.Bet, model.KindStaringRefund, "staring contest could not open"); err != nil {
		c.log.Error().Err(err).Int64("user_id", s.HostID).Msg("host refund failed")
	}
}

func (c *Coordinator) get(messageID int64) (*Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[messageID]
	return s, ok
}

func (c *Coordinator) remove(messageID int64) {
	c.mu.Lock()
	delete(c.sessions, messageID)
	c.mu.Unlock()
}

// Join adds a player to an open lobby. The check-then-debit sequence
// runs under the per-message lock, so a rejected join moves no funds
// and a full lobby admits nobody past capacity.
func (c *Coordinator) Join(ctx context.Context, messageID, userID int64) (Snapshot, error) {
	c.locks.Lock(messageID)
	defer c.locks.Unlock(messageID)

	s, ok := c.get(messageID)
	if !ok {
		return Snapshot{}, ErrSessionNotFound
	}
	if s.phase != phaseOpen {
		return Snapshot{}, ErrSessionClosed
	}
	for _, p := range s.players {
		if p == userID {
			return Snapshot{}, ErrAlreadyJoined
		}
	}
	if len(s.players) >= c.cfg.MaxPlayers {
		return Snapshot{}, ErrLobbyFull
	}

	if _, err := c.ledger.Withdraw(ctx, userID, s.Bet, model.KindStaringBet, "staring contest buy-in"); err != nil {
		return Snapshot{}, err
	}
	s.players = append(s.players, userID)

	snap := s.snapshot()
	if len(s.players) >= c.cfg.MaxPlayers {
		c.begin(s)
	}
	return snap, nil
}

// Start lets the host begin before the timer fires. Needs at least
// two players.
func (c *Coordinator) Start(messageID, actorID int64) (Snapshot, error) {
	c.locks.Lock(messageID)
	defer c.locks.Unlock(messageID)

	s, ok := c.get(messageID)
	if !ok {
		return Snapshot{}, ErrSessionNotFound
	}
	if s.phase != phaseOpen {
		return Snapshot{}, ErrSessionClosed
	}
	if actorID != s.HostID {
		return Snapshot{}, ErrNotHost
	}
	if len(s.players) < 2 {
		return Snapshot{}, ErrNotEnoughPlayers
	}

	snap := s.snapshot()
	c.begin(s)
	return snap, nil
}

// Snapshot returns the current view of a session for rendering.
func (c *Coordinator) Snapshot(messageID int64) (Snapshot, error) {
	c.locks.Lock(messageID)
	defer c.locks.Unlock(messageID)

	s, ok := c.get(messageID)
	if !ok {
		return Snapshot{}, ErrSessionNotFound
	}
	return s.snapshot(), nil
}

// autoStart fires when the lobby timer expires. An explicitly started
// session has already left phaseOpen and the check makes this a
// no-op; an underfilled lobby is cancelled and refunded.
func (c *Coordinator) autoStart(messageID int64) {
	c.locks.Lock(messageID)

	s, ok := c.get(messageID)
	if !ok || s.phase != phaseOpen {
		c.locks.Unlock(messageID)
		return
	}
	if len(s.players) < 2 {
		s.phase = phaseResolved
		c.remove(messageID)
		c.locks.Unlock(messageID)
		c.cancel(s)
		return
	}
	c.begin(s)
	c.locks.Unlock(messageID)
}

// begin transitions Open -> Running and hands the game to its own
// goroutine. Callers hold the per-message lock.
func (c *Coordinator) begin(s *Session) {
	s.phase = phaseRunning
	if s.timer != nil {
		s.timer.Stop()
	}
	go c.run(s)
}

// cancel refunds every buy-in of an underfilled lobby.
func (c *Coordinator) cancel(s *Session) {
	ctx := context.Background()
	for _, p := range s.players {
		if _, err := c.ledger.Credit(ctx, p, s.Bet, model.KindStaringRefund, "staring contest cancelled"); err != nil {
			c.log.Error().Err(err).Int64("user_id", p).Msg("lobby refund failed")
		}
	}
	c.notifier.Publish(s.ChannelID, s.MessageID,
		"The staring contest was cancelled: not enough participants. Buy-ins refunded.", true)
}

// run plays the elimination rounds and settles the pot. The session
// is removed from the registry before any payout goes out, so a slow
// credit cannot be mistaken for a live game or settle twice.
func (c *Coordinator) run(s *Session) {
	survivors := make([]int64, len(s.players))
	copy(survivors, s.players)
	pot := s.Bet * int64(len(s.players))

	var narrative strings.Builder
	fmt.Fprintf(&narrative, "The contest begins with %d participants. Pot: %d.\n", len(survivors), pot)

	round := 1
	for len(survivors) > 1 {
		time.Sleep(c.cfg.RoundDelay)

		capacity := c.cfg.MaxPlayers - (round - 1)
		if capacity < 1 {
			capacity = 1
		}
		chance := 1.0 / float64(capacity)

		c.rngMu.Lock()
		c.rng.Shuffle(len(survivors), func(i, j int) {
			survivors[i], survivors[j] = survivors[j], survivors[i]
		})
		var remaining []int64
		deaths := 0
		for _, p := range survivors {
			if c.rng.Float64() < chance {
				deaths++
				fmt.Fprintf(&narrative, "Round %d: participant %d blinked.\n", round, p)
			} else {
				remaining = append(remaining, p)
			}
		}
		c.rngMu.Unlock()

		survivors = remaining
		if deaths == 0 {
			fmt.Fprintf(&narrative, "Round %d: everyone held their gaze.\n", round)
		}

		if c.cfg.Mode == SuddenDeath && deaths > 0 {
			break
		}
		round++
	}

	c.locks.Lock(s.MessageID)
	s.phase = phaseResolved
	c.remove(s.MessageID)
	c.locks.Unlock(s.MessageID)

	narrative.WriteString(c.settle(s, survivors, pot))
	c.notifier.Publish(s.ChannelID, s.MessageID, narrative.String(), true)
}

// settle pays the pot out to the survivors. A failed credit is logged
// and skipped; the game is already resolved and is never re-run.
func (c *Coordinator) settle(s *Session, survivors []int64, pot int64) string {
	ctx := context.Background()

	if len(survivors) == 0 {
		for _, p := range s.players {
			c.events.Publish(outbox.Event{Game: "staring", UserID: p, Bet: s.Bet})
		}
		return "Nobody survived. The pot is lost."
	}

	share := pot / int64(len(survivors))
	for _, p := range survivors {
		if _, err := c.ledger.Credit(ctx, p, share, model.KindStaringWin, "staring contest pot share"); err != nil {
			c.log.Error().Err(err).
				Int64("user_id", p).
				Int64("share", share).
				Msg("pot payout failed; game stays resolved")
			continue
		}
		c.events.Publish(outbox.Event{Game: "staring", UserID: p, Bet: s.Bet, Payout: share, Won: true})
	}
	for _, p := range s.players {
		if !contains(survivors, p) {
			c.events.Publish(outbox.Event{Game: "staring", UserID: p, Bet: s.Bet})
		}
	}

	if len(survivors) == 1 {
		return fmt.Sprintf("Participant %d takes the whole pot: %d.", survivors[0], pot)
	}
	return fmt.Sprintf("%d survivors split the pot: %d each.", len(survivors), share)
}

func contains(players []int64, id int64) bool {
	for _, p := range players {
		if p == id {
			return true
		}
	}
	return false
}
