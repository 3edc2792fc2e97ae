package handler

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v3"

	"badminton-expense-bot/internal/model"
	"badminton-expense-bot/internal/service"
)

// SetupHandler handles day selection, prices and court bookings.
type SetupHandler struct {
	days *service.DayService
}

// NewSetupHandler creates a new SetupHandler.
func NewSetupHandler(days *service.DayService) *SetupHandler {
	return &SetupHandler{days: days}
}

// HandleDate handles the /date command: switches the active day.
// Format: /date <YYYY-MM-DD>
func (h *SetupHandler) HandleDate(c tele.Context) error {
	args := c.Args()
	if len(args) != 1 {
		return c.Reply("❌ Usage: /date <YYYY-MM-DD>")
	}

	if err := h.days.SelectDate(context.Background(), args[0]); err != nil {
		return c.Reply("❌ " + err.Error())
	}
	return c.Reply(fmt.Sprintf("📅 Switched to %s", args[0]))
}

// HandlePrice handles the /price command: sets the shuttlecock price.
// Format: /price <amount>
func (h *SetupHandler) HandlePrice(c tele.Context) error {
	args := c.Args()
	if len(args) != 1 {
		return c.Reply("❌ Usage: /price <amount>")
	}
	price, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return c.Reply("❌ Price must be a number")
	}

	if err := h.days.SetShuttlecockPrice(context.Background(), price); err != nil {
		return c.Reply("❌ " + err.Error())
	}
	return c.Reply(fmt.Sprintf("✅ Shuttlecock price set to %g", price))
}

// HandleRate handles the /rate command: sets the hourly court rate.
// Format: /rate <amount>
func (h *SetupHandler) HandleRate(c tele.Context) error {
	args := c.Args()
	if len(args) != 1 {
		return c.Reply("❌ Usage: /rate <amount per hour>")
	}
	rate, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return c.Reply("❌ Rate must be a number")
	}

	if err := h.days.SetCourtRate(context.Background(), rate); err != nil {
		return c.Reply("❌ " + err.Error())
	}
	return c.Reply(fmt.Sprintf("✅ Court rate set to %g per hour", rate))
}

// HandleCourt handles the /court command: logs one booking interval.
// Format: /court <court> <start HH:MM> <end HH:MM>
func (h *SetupHandler) HandleCourt(c tele.Context) error {
	args := c.Args()
	if len(args) != 3 {
		return c.Reply("❌ Usage: /court <court> <start HH:MM> <end HH:MM>")
	}

	startHour, startMinute, err := parseClock(args[1])
	if err != nil {
		return c.Reply("❌ " + err.Error())
	}
	endHour, endMinute, err := parseClock(args[2])
	if err != nil {
		return c.Reply("❌ " + err.Error())
	}

	entry := model.CourtSetupEntry{
		CourtNumber: args[0],
		StartHour:   startHour,
		StartMinute: startMinute,
		EndHour:     endHour,
		EndMinute:   endMinute,
	}
	if err := h.days.AddCourtEntry(context.Background(), entry); err != nil {
		return c.Reply("❌ " + err.Error())
	}
	return c.Reply(fmt.Sprintf("✅ Court %s booked %s–%s", args[0], args[1], args[2]))
}

// HandleRemoveCourt handles the /removecourt command.
// Format: /removecourt <number>
func (h *SetupHandler) HandleRemoveCourt(c tele.Context) error {
	args := c.Args()
	if len(args) != 1 {
		return c.Reply("❌ Usage: /removecourt <number>")
	}
	index, err := strconv.Atoi(args[0])
	if err != nil {
		return c.Reply("❌ Usage: /removecourt <number>")
	}

	if err := h.days.RemoveCourtEntry(context.Background(), index-1); err != nil {
		return c.Reply("❌ No such court booking")
	}
	return c.Reply(fmt.Sprintf("🗑 Court booking %d removed", index))
}

// HandleReset handles the /reset command: restores the day's defaults.
func (h *SetupHandler) HandleReset(c tele.Context) error {
	if err := h.days.Reset(context.Background()); err != nil {
		return c.Reply("❌ " + err.Error())
	}
	return c.Reply("🔄 Day reset: games, payments and prices cleared")
}

// parseClock parses "HH:MM" into hour and minute of day.
func parseClock(s string) (int, int, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("time %q must be HH:MM", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("time %q must be HH:MM", s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("time %q must be HH:MM", s)
	}
	return hour, minute, nil
}
