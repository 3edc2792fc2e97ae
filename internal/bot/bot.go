// Package bot provides the Telegram bot initialization and handler
// registration.
package bot

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"badminton-expense-bot/internal/config"
	"badminton-expense-bot/internal/handler"
	"badminton-expense-bot/internal/service"
)

// Bot wraps the telebot instance with application dependencies.
type Bot struct {
	bot *tele.Bot
	cfg *config.Config

	playerHandler  *handler.PlayerHandler
	gameHandler    *handler.GameHandler
	setupHandler   *handler.SetupHandler
	summaryHandler *handler.SummaryHandler
}

// Dependencies holds everything the bot handlers need.
type Dependencies struct {
	Config     *config.Config
	DayService *service.DayService
}

// New creates a new Bot instance with the given dependencies.
func New(deps *Dependencies) (*Bot, error) {
	if deps.Config.Bot.Token == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	pref := tele.Settings{
		Token:  deps.Config.Bot.Token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}

	teleBot, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	b := &Bot{
		bot: teleBot,
		cfg: deps.Config,

		playerHandler:  handler.NewPlayerHandler(deps.DayService),
		gameHandler:    handler.NewGameHandler(deps.DayService),
		setupHandler:   handler.NewSetupHandler(deps.DayService),
		summaryHandler: handler.NewSummaryHandler(deps.DayService, deps.Config.Club.Currency),
	}

	b.registerMiddleware()
	b.registerHandlers()

	return b, nil
}

// registerMiddleware registers all middleware.
func (b *Bot) registerMiddleware() {
	b.bot.Use(WhitelistMiddleware(b.cfg))
	b.bot.Use(LoggingMiddleware())
}

// registerHandlers registers all command handlers.
func (b *Bot) registerHandlers() {
	b.bot.Handle("/start", b.summaryHandler.HandleStart)
	b.bot.Handle("/help", b.summaryHandler.HandleStart)
	b.bot.Handle("/summary", b.summaryHandler.HandleSummary)

	b.bot.Handle("/players", b.playerHandler.HandlePlayers)
	b.bot.Handle("/addplayer", b.playerHandler.HandleAddPlayer)
	b.bot.Handle("/removeplayer", b.playerHandler.HandleRemovePlayer)
	b.bot.Handle("/paid", b.playerHandler.HandlePaid)
	b.bot.Handle("/unpaid", b.playerHandler.HandleUnpaid)

	b.bot.Handle("/game", b.gameHandler.HandleGame)
	b.bot.Handle("/games", b.gameHandler.HandleGames)
	b.bot.Handle("/removegame", b.gameHandler.HandleRemoveGame)

	b.bot.Handle("/date", b.setupHandler.HandleDate)
	b.bot.Handle("/price", b.setupHandler.HandlePrice)
	b.bot.Handle("/rate", b.setupHandler.HandleRate)
	b.bot.Handle("/court", b.setupHandler.HandleCourt)
	b.bot.Handle("/removecourt", b.setupHandler.HandleRemoveCourt)
	b.bot.Handle("/reset", b.setupHandler.HandleReset)
}

// Start starts the bot polling.
func (b *Bot) Start() {
	log.Info().Msg("Starting bot...")
	b.bot.Start()
}

// Stop stops the bot gracefully.
func (b *Bot) Stop() {
	log.Info().Msg("Stopping bot...")
	b.bot.Stop()
}
