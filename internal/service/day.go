// Package service provides business logic implementations.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"badminton-expense-bot/internal/allocation"
	"badminton-expense-bot/internal/court"
	"badminton-expense-bot/internal/model"
	"badminton-expense-bot/internal/reconcile"
)

// Validation errors surfaced to the user before any state changes.
// A rejected action leaves the document untouched.
var (
	ErrInvalidDayKey       = errors.New("day key must be YYYY-MM-DD")
	ErrEmptyPlayerName     = errors.New("player name must not be empty")
	ErrPlayerNameTooLong   = fmt.Errorf("player name longer than %d characters", model.MaxPlayerNameLen)
	ErrDuplicatePlayer     = errors.New("player already on the roster")
	ErrUnknownPlayer       = errors.New("player is not on the roster")
	ErrPlayerCount         = errors.New("a game needs exactly 4 distinct players")
	ErrInvalidShuttlecocks = errors.New("shuttlecock count must be positive")
	ErrNegativePrice       = errors.New("price must not be negative")
	ErrIndexOutOfRange     = errors.New("no such entry")
)

// sessionState tracks the per-day load lifecycle.
type sessionState int

const (
	stateUninitialized sessionState = iota
	stateLoading
	stateReady
)

// DayService holds the active day document and applies all user
// mutations to it. Every successful mutation is written through the
// reconciler; persistence failures degrade silently to local caching
// and never roll back the in-memory change.
type DayService struct {
	rec    *reconcile.Reconciler
	policy allocation.Policy

	defaultPlayers []string
	defaultRate    float64

	now func() time.Time

	mu          sync.Mutex
	state       sessionState
	key         string
	data        *model.AppData
	unsubscribe func()
}

// NewDayService creates a DayService. defaultPlayers and defaultRate
// seed brand-new days and the reset action.
func NewDayService(rec *reconcile.Reconciler, policy allocation.Policy, defaultPlayers []string, defaultRate float64) *DayService {
	return &DayService{
		rec:            rec,
		policy:         policy,
		defaultPlayers: append([]string{}, defaultPlayers...),
		defaultRate:    defaultRate,
		now:            time.Now,
		data:           model.NewAppData(),
	}
}

// DefaultData builds the document used when a day has never been
// stored: the configured roster and court rate, nothing else.
func (s *DayService) DefaultData() *model.AppData {
	d := model.NewAppData()
	d.Players = append(d.Players, s.defaultPlayers...)
	d.CourtSetup.RatePerHour = s.defaultRate
	return d
}

// SelectDate loads the document for key and makes it the active day,
// moving this session's change subscription along with it.
func (s *DayService) SelectDate(ctx context.Context, key string) error {
	if !model.ValidDayKey(key) {
		return ErrInvalidDayKey
	}

	s.mu.Lock()
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	s.state = stateLoading
	s.key = key
	s.mu.Unlock()

	data := s.rec.Load(ctx, key)

	s.mu.Lock()
	defer s.mu.Unlock()
	// A competing SelectDate may have landed while we were loading;
	// its result wins and ours is dropped.
	if s.key != key {
		return nil
	}
	s.data = data
	s.state = stateReady
	s.unsubscribe = s.rec.Subscribe(key, s.applyRemote)

	log.Info().Str("key", key).Int("players", len(data.Players)).Int("games", len(data.Games)).Msg("Day loaded")
	return nil
}

// applyRemote installs a document delivered by the change feed. Stale
// deliveries for a day no longer active are ignored.
func (s *DayService) applyRemote(key string, data *model.AppData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != stateReady || s.key != key {
		return
	}
	s.data = data
	log.Info().Str("key", key).Msg("Day updated from remote change")
}

// Close cancels the change subscription.
func (s *DayService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	s.state = stateUninitialized
}

// Key returns the active day key.
func (s *DayService) Key() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.key
}

// Data returns a snapshot of the active document.
func (s *DayService) Data() *model.AppData {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.Clone()
}

// Summary computes the court fee and the cost allocation for the
// active document under the configured policy.
func (s *DayService) Summary() (allocation.Summary, float64) {
	s.mu.Lock()
	data := s.data.Clone()
	s.mu.Unlock()

	fee := court.TotalFee(data.CourtSetup)
	return allocation.Compute(s.policy, data.Players, data.Games, data.ShuttlecockPrice, fee), fee
}

// mutate runs fn against the active document under the lock and, when
// fn reports success, writes the result through the reconciler.
func (s *DayService) mutate(ctx context.Context, fn func(d *model.AppData) error) error {
	s.mu.Lock()
	if err := fn(s.data); err != nil {
		s.mu.Unlock()
		return err
	}
	snapshot := s.data.Clone()
	key := s.key
	if key == "" {
		key = model.SingletonKey
	}
	s.mu.Unlock()

	s.rec.Save(ctx, snapshot, key)
	return nil
}

// AddPlayer appends a new name to the roster.
func (s *DayService) AddPlayer(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	return s.mutate(ctx, func(d *model.AppData) error {
		if name == "" {
			return ErrEmptyPlayerName
		}
		if len([]rune(name)) > model.MaxPlayerNameLen {
			return ErrPlayerNameTooLong
		}
		if d.HasPlayer(name) {
			return ErrDuplicatePlayer
		}
		d.Players = append(d.Players, name)
		return nil
	})
}

// RemovePlayer removes the roster entry at index. Every game the
// player appears in is removed with them, and their paid mark is
// dropped so a later same-named player starts unpaid.
func (s *DayService) RemovePlayer(ctx context.Context, index int) error {
	return s.mutate(ctx, func(d *model.AppData) error {
		if index < 0 || index >= len(d.Players) {
			return ErrIndexOutOfRange
		}
		name := d.Players[index]
		d.Players = append(d.Players[:index], d.Players[index+1:]...)

		games := d.Games[:0]
		for _, g := range d.Games {
			if !g.Has(name) {
				games = append(games, g)
			}
		}
		d.Games = games

		paid := d.PaidPlayers[:0]
		for _, p := range d.PaidPlayers {
			if p != name {
				paid = append(paid, p)
			}
		}
		d.PaidPlayers = paid
		return nil
	})
}

// AddGame logs a doubles match. All four names must be distinct and on
// the roster, and the shuttlecock count positive.
func (s *DayService) AddGame(ctx context.Context, p1, p2, p3, p4 string, shuttlecocks float64, reused bool) error {
	return s.mutate(ctx, func(d *model.AppData) error {
		names := []string{p1, p2, p3, p4}
		seen := make(map[string]bool, model.PlayersPerGame)
		for _, n := range names {
			if n == "" || seen[n] {
				return ErrPlayerCount
			}
			seen[n] = true
			if !d.HasPlayer(n) {
				return fmt.Errorf("%w: %s", ErrUnknownPlayer, n)
			}
		}
		if shuttlecocks <= 0 {
			return ErrInvalidShuttlecocks
		}
		d.Games = append(d.Games, model.Game{
			Player1:            p1,
			Player2:            p2,
			Player3:            p3,
			Player4:            p4,
			Shuttlecocks:       shuttlecocks,
			ReusedShuttlecocks: reused,
			Date:               s.now().Format(time.RFC3339),
		})
		return nil
	})
}

// RemoveGame deletes the logged game at index.
func (s *DayService) RemoveGame(ctx context.Context, index int) error {
	return s.mutate(ctx, func(d *model.AppData) error {
		if index < 0 || index >= len(d.Games) {
			return ErrIndexOutOfRange
		}
		d.Games = append(d.Games[:index], d.Games[index+1:]...)
		return nil
	})
}

// SetShuttlecockPrice sets the shuttlecock price. A unit price under
// the usage policy, the day's total under the slot policy.
func (s *DayService) SetShuttlecockPrice(ctx context.Context, price float64) error {
	return s.mutate(ctx, func(d *model.AppData) error {
		if price < 0 {
			return ErrNegativePrice
		}
		d.ShuttlecockPrice = price
		return nil
	})
}

// SetCourtRate sets the hourly court rate.
func (s *DayService) SetCourtRate(ctx context.Context, rate float64) error {
	return s.mutate(ctx, func(d *model.AppData) error {
		if rate < 0 {
			return ErrNegativePrice
		}
		d.CourtSetup.RatePerHour = rate
		return nil
	})
}

// AddCourtEntry logs one court booking interval. Inverted spans are
// accepted and simply bill zero.
func (s *DayService) AddCourtEntry(ctx context.Context, entry model.CourtSetupEntry) error {
	return s.mutate(ctx, func(d *model.AppData) error {
		d.CourtSetup.Entries = append(d.CourtSetup.Entries, entry)
		return nil
	})
}

// RemoveCourtEntry deletes the booking at index.
func (s *DayService) RemoveCourtEntry(ctx context.Context, index int) error {
	return s.mutate(ctx, func(d *model.AppData) error {
		if index < 0 || index >= len(d.CourtSetup.Entries) {
			return ErrIndexOutOfRange
		}
		d.CourtSetup.Entries = append(d.CourtSetup.Entries[:index], d.CourtSetup.Entries[index+1:]...)
		return nil
	})
}

// SetPaid marks or unmarks a rostered player as having paid.
func (s *DayService) SetPaid(ctx context.Context, name string, paid bool) error {
	return s.mutate(ctx, func(d *model.AppData) error {
		if !d.HasPlayer(name) {
			return fmt.Errorf("%w: %s", ErrUnknownPlayer, name)
		}
		if paid {
			if !d.IsPaid(name) {
				d.PaidPlayers = append(d.PaidPlayers, name)
			}
			return nil
		}
		out := d.PaidPlayers[:0]
		for _, p := range d.PaidPlayers {
			if p != name {
				out = append(out, p)
			}
		}
		d.PaidPlayers = out
		return nil
	})
}

// Reset restores the active day to the configured defaults: games,
// paid marks and prices cleared, the default roster installed.
func (s *DayService) Reset(ctx context.Context) error {
	return s.mutate(ctx, func(d *model.AppData) error {
		*d = *s.DefaultData()
		return nil
	})
}
