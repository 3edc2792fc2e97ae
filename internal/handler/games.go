package handler

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v3"

	"badminton-expense-bot/internal/service"
)

// GameHandler handles game logging commands.
type GameHandler struct {
	days *service.DayService
}

// NewGameHandler creates a new GameHandler.
func NewGameHandler(days *service.DayService) *GameHandler {
	return &GameHandler{days: days}
}

// HandleGame handles the /game command: logs one doubles match.
// Format: /game <p1> <p2> <p3> <p4> <shuttlecocks> [reused]
func (h *GameHandler) HandleGame(c tele.Context) error {
	args := c.Args()
	if len(args) < 5 {
		return c.Reply("❌ Usage: /game <p1> <p2> <p3> <p4> <shuttlecocks> [reused]")
	}

	shuttlecocks, err := strconv.ParseFloat(args[4], 64)
	if err != nil {
		return c.Reply("❌ Shuttlecock count must be a number")
	}
	reused := len(args) > 5 && strings.EqualFold(args[5], "reused")

	if err := h.days.AddGame(context.Background(), args[0], args[1], args[2], args[3], shuttlecocks, reused); err != nil {
		return c.Reply("❌ " + err.Error())
	}

	note := ""
	if reused {
		note = " (re-used, ½ cost)"
	}
	return c.Reply(fmt.Sprintf("🏸 Logged: %s, %s vs %s, %s — %g shuttlecocks%s",
		args[0], args[1], args[2], args[3], shuttlecocks, note))
}

// HandleGames handles the /games command: lists the day's games.
func (h *GameHandler) HandleGames(c tele.Context) error {
	data := h.days.Data()
	if len(data.Games) == 0 {
		return c.Reply("🏸 No games logged yet. Log one with /game")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🏸 Games on %s:\n", h.days.Key())
	for i, g := range data.Games {
		note := ""
		if g.ReusedShuttlecocks {
			note = " (re-used)"
		}
		fmt.Fprintf(&b, "%d. %s, %s vs %s, %s — %g shuttlecocks%s\n",
			i+1, g.Player1, g.Player2, g.Player3, g.Player4, g.Shuttlecocks, note)
	}
	return c.Reply(b.String())
}

// HandleRemoveGame handles the /removegame command.
// Format: /removegame <number from /games>
func (h *GameHandler) HandleRemoveGame(c tele.Context) error {
	args := c.Args()
	if len(args) != 1 {
		return c.Reply("❌ Usage: /removegame <number from /games>")
	}
	index, err := strconv.Atoi(args[0])
	if err != nil {
		return c.Reply("❌ Usage: /removegame <number from /games>")
	}

	if err := h.days.RemoveGame(context.Background(), index-1); err != nil {
		return c.Reply("❌ No such game number")
	}
	return c.Reply(fmt.Sprintf("🗑 Game %d removed", index))
}
