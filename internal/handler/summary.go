package handler

import (
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v3"

	"badminton-expense-bot/internal/allocation"
	"badminton-expense-bot/internal/court"
	"badminton-expense-bot/internal/model"
	"badminton-expense-bot/internal/service"
)

// SummaryHandler renders the day's cost breakdown.
type SummaryHandler struct {
	days     *service.DayService
	currency string
}

// NewSummaryHandler creates a new SummaryHandler.
func NewSummaryHandler(days *service.DayService, currency string) *SummaryHandler {
	return &SummaryHandler{days: days, currency: currency}
}

// HandleStart handles the /start command: shows available commands.
func (h *SummaryHandler) HandleStart(c tele.Context) error {
	return c.Reply(
		"🏸 Badminton expense splitter\n\n" +
			"/date <YYYY-MM-DD> - switch day\n" +
			"/players - show the roster\n" +
			"/addplayer <name> - add a player\n" +
			"/removeplayer <n> - remove a player\n" +
			"/game <p1> <p2> <p3> <p4> <shuttlecocks> [reused] - log a match\n" +
			"/games - list logged games\n" +
			"/price <amount> - shuttlecock price\n" +
			"/rate <amount> - court rate per hour\n" +
			"/court <court> <start> <end> - log a booking\n" +
			"/summary - who owes what\n" +
			"/paid <name> - mark as paid\n" +
			"/reset - start the day over",
	)
}

// HandleSummary handles the /summary command.
func (h *SummaryHandler) HandleSummary(c tele.Context) error {
	data := h.days.Data()
	if len(data.Players) == 0 {
		return c.Reply("🏸 Add players to see the summary")
	}

	summary, fee := h.days.Summary()

	var b strings.Builder
	fmt.Fprintf(&b, "📊 Summary for %s\n\n", h.days.Key())

	if len(data.Games) > 0 && summary.Policy == allocation.PolicyUsage {
		fmt.Fprintf(&b, "Shuttlecocks used: %.1f\n", summary.TotalShuttlecocks)
		fmt.Fprintf(&b, "Shuttlecock cost: %s%.2f\n", h.currency, summary.TotalShuttlecockCost)
	}
	fmt.Fprintf(&b, "Court fee: %s%.2f", h.currency, fee)
	if hours := courtHours(data.CourtSetup); hours > 0 {
		fmt.Fprintf(&b, " (%.1f h)", hours)
	}
	fmt.Fprintf(&b, "\nTotal: %s%.2f\n\n", h.currency, summary.TotalCost)

	for _, share := range summary.Shares {
		mark := "⬜"
		if data.IsPaid(share.Name) {
			mark = "✅"
		}
		fmt.Fprintf(&b, "%s %s — %s%.0f (%d games)\n", mark, share.Name, h.currency, share.RoundedCost, share.Games)
	}
	fmt.Fprintf(&b, "\nCollect: %s%.0f", h.currency, summary.RoundedTotal)

	return c.Reply(b.String())
}

func courtHours(setup model.CourtSetup) float64 {
	var hours float64
	for _, e := range setup.Entries {
		hours += court.BillableHours(e)
	}
	return hours
}
