// Package model defines the data models for the badminton expense bot.
package model

import (
	"strings"
	"time"
)

// SingletonKey is the document key used when day partitioning is disabled.
const SingletonKey = "default"

// MaxPlayerNameLen is the longest accepted player display name.
const MaxPlayerNameLen = 10

// PlayersPerGame is the number of slots in a doubles match.
const PlayersPerGame = 4

// Game records one doubles match. Player slot order is preserved for
// display only; it carries no meaning for cost allocation.
type Game struct {
	Player1            string  `json:"player1"`
	Player2            string  `json:"player2"`
	Player3            string  `json:"player3"`
	Player4            string  `json:"player4"`
	Shuttlecocks       float64 `json:"shuttlecocks"`
	ReusedShuttlecocks bool    `json:"reusedShuttlecocks,omitempty"`
	Date               string  `json:"date"`
}

// Players returns the four slot names in display order.
func (g *Game) Players() [PlayersPerGame]string {
	return [PlayersPerGame]string{g.Player1, g.Player2, g.Player3, g.Player4}
}

// Has reports whether the named player fills one of the game's slots.
func (g *Game) Has(name string) bool {
	return g.Player1 == name || g.Player2 == name || g.Player3 == name || g.Player4 == name
}

// CourtSetupEntry is one court booking interval. Hours and minutes are
// clock-of-day values; inverted spans bill zero rather than erroring.
type CourtSetupEntry struct {
	CourtNumber string `json:"courtNumber"`
	StartHour   int    `json:"startHour"`
	StartMinute int    `json:"startMinute"`
	EndHour     int    `json:"endHour"`
	EndMinute   int    `json:"endMinute"`
}

// CourtSetup holds the hourly rate and the day's court bookings.
type CourtSetup struct {
	RatePerHour float64           `json:"ratePerHour"`
	Entries     []CourtSetupEntry `json:"entries"`
}

// AppData is the aggregate root persisted as a single JSON document per
// day key. It is read and written atomically; the remote store resolves
// concurrent writers by last write wins.
type AppData struct {
	ShuttlecockPrice float64    `json:"shuttlecockPrice"`
	CourtSetup       CourtSetup `json:"courtSetup"`
	Players          []string   `json:"players"`
	Games            []Game     `json:"games"`
	PaidPlayers      []string   `json:"paidPlayers"`
}

// NewAppData returns an empty document with non-nil slices so it
// serializes as [] rather than null.
func NewAppData() *AppData {
	return &AppData{
		CourtSetup:  CourtSetup{Entries: []CourtSetupEntry{}},
		Players:     []string{},
		Games:       []Game{},
		PaidPlayers: []string{},
	}
}

// HasPlayer reports whether name is on the roster.
func (d *AppData) HasPlayer(name string) bool {
	for _, p := range d.Players {
		if p == name {
			return true
		}
	}
	return false
}

// IsPaid reports whether name is marked as having paid.
func (d *AppData) IsPaid(name string) bool {
	for _, p := range d.PaidPlayers {
		if p == name {
			return true
		}
	}
	return false
}

// GamesFor counts the games the named player appears in.
func (d *AppData) GamesFor(name string) int {
	n := 0
	for i := range d.Games {
		if d.Games[i].Has(name) {
			n++
		}
	}
	return n
}

// Clone returns a deep copy, so in-memory state can keep mutating while
// a snapshot is handed to an async save.
func (d *AppData) Clone() *AppData {
	return &AppData{
		ShuttlecockPrice: d.ShuttlecockPrice,
		CourtSetup: CourtSetup{
			RatePerHour: d.CourtSetup.RatePerHour,
			Entries:     append([]CourtSetupEntry{}, d.CourtSetup.Entries...),
		},
		Players:     append([]string{}, d.Players...),
		Games:       append([]Game{}, d.Games...),
		PaidPlayers: append([]string{}, d.PaidPlayers...),
	}
}

// DayKey formats t as the YYYY-MM-DD document key.
func DayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// ValidDayKey reports whether key is a YYYY-MM-DD date or the singleton key.
func ValidDayKey(key string) bool {
	if key == SingletonKey {
		return true
	}
	if len(key) != 10 || strings.Count(key, "-") != 2 {
		return false
	}
	_, err := time.Parse("2006-01-02", key)
	return err == nil
}
