// Package handler provides Telegram bot command handlers. Handlers are
// a thin presentation layer: they parse arguments, call the day
// service, and render replies; validation errors come back from the
// service and are shown as blocking messages with nothing applied.
package handler

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v3"

	"badminton-expense-bot/internal/service"
)

// PlayerHandler handles roster commands.
type PlayerHandler struct {
	days *service.DayService
}

// NewPlayerHandler creates a new PlayerHandler.
func NewPlayerHandler(days *service.DayService) *PlayerHandler {
	return &PlayerHandler{days: days}
}

// HandlePlayers handles the /players command: lists the roster with
// paid marks.
func (h *PlayerHandler) HandlePlayers(c tele.Context) error {
	data := h.days.Data()
	if len(data.Players) == 0 {
		return c.Reply("🏸 Roster is empty. Add players with /addplayer <name>")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🏸 Players on %s:\n", h.days.Key())
	for i, name := range data.Players {
		mark := " "
		if data.IsPaid(name) {
			mark = "✅"
		}
		fmt.Fprintf(&b, "%d. %s %s (%d games)\n", i+1, name, mark, data.GamesFor(name))
	}
	return c.Reply(b.String())
}

// HandleAddPlayer handles the /addplayer command.
// Format: /addplayer <name>
func (h *PlayerHandler) HandleAddPlayer(c tele.Context) error {
	args := c.Args()
	if len(args) < 1 {
		return c.Reply("❌ Usage: /addplayer <name>")
	}

	name := strings.Join(args, " ")
	if err := h.days.AddPlayer(context.Background(), name); err != nil {
		return c.Reply("❌ " + err.Error())
	}
	return c.Reply(fmt.Sprintf("✅ %s joined the roster", strings.TrimSpace(name)))
}

// HandleRemovePlayer handles the /removeplayer command. The player's
// games disappear with them.
// Format: /removeplayer <number from /players>
func (h *PlayerHandler) HandleRemovePlayer(c tele.Context) error {
	args := c.Args()
	if len(args) != 1 {
		return c.Reply("❌ Usage: /removeplayer <number from /players>")
	}
	index, err := strconv.Atoi(args[0])
	if err != nil {
		return c.Reply("❌ Usage: /removeplayer <number from /players>")
	}

	data := h.days.Data()
	if index < 1 || index > len(data.Players) {
		return c.Reply("❌ No such player number")
	}
	name := data.Players[index-1]

	if err := h.days.RemovePlayer(context.Background(), index-1); err != nil {
		return c.Reply("❌ " + err.Error())
	}
	return c.Reply(fmt.Sprintf("🗑 %s removed, along with their games", name))
}

// HandlePaid handles the /paid command.
// Format: /paid <name>
func (h *PlayerHandler) HandlePaid(c tele.Context) error {
	return h.setPaid(c, true)
}

// HandleUnpaid handles the /unpaid command.
// Format: /unpaid <name>
func (h *PlayerHandler) HandleUnpaid(c tele.Context) error {
	return h.setPaid(c, false)
}

func (h *PlayerHandler) setPaid(c tele.Context, paid bool) error {
	args := c.Args()
	if len(args) < 1 {
		verb := "/paid"
		if !paid {
			verb = "/unpaid"
		}
		return c.Reply(fmt.Sprintf("❌ Usage: %s <name>", verb))
	}

	name := strings.Join(args, " ")
	if err := h.days.SetPaid(context.Background(), name, paid); err != nil {
		return c.Reply("❌ " + err.Error())
	}
	if paid {
		return c.Reply(fmt.Sprintf("✅ %s marked as paid", name))
	}
	return c.Reply(fmt.Sprintf("↩️ %s marked as unpaid", name))
}
