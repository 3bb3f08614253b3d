// Package bot owns the Discord gateway connection.
package bot

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/jensholdgaard/discord-auction-bot/internal/bot/commands"
	"github.com/jensholdgaard/discord-auction-bot/internal/config"
)

// Bot wraps the Discord session and command handlers.
type Bot struct {
	session  *discordgo.Session
	cfg      config.DiscordConfig
	logger   *slog.Logger
	handlers *commands.Handlers
	removers []func()
}

// NewSession creates an unopened Discord session. REST calls work before
// the gateway is opened, so publishers can share it.
func NewSession(cfg config.DiscordConfig) (*discordgo.Session, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("creating discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds
	return session, nil
}

// New creates a new Bot instance.
func New(session *discordgo.Session, cfg config.DiscordConfig, handlers *commands.Handlers, logger *slog.Logger) *Bot {
	return &Bot{
		session:  session,
		cfg:      cfg,
		logger:   logger,
		handlers: handlers,
	}
}

// Start opens the Discord connection and registers slash commands.
func (b *Bot) Start(ctx context.Context) error {
	b.removers = append(b.removers,
		b.session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
			b.logger.InfoContext(ctx, "bot is ready", slog.String("user", r.User.Username))
		}),
		b.session.AddHandler(b.handlers.InteractionCreate),
	)

	if err := b.session.Open(); err != nil {
		b.removeHandlers()
		return fmt.Errorf("opening discord session: %w", err)
	}

	registered, err := b.session.ApplicationCommandBulkOverwrite(b.session.State.User.ID, b.cfg.GuildID, commands.SlashCommands(), discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("registering slash commands: %w", err)
	}

	b.logger.InfoContext(ctx, "slash commands registered", slog.Int("count", len(registered)))
	return nil
}

// Stop closes the gateway connection. Slash commands stay registered for
// whichever replica leads next.
func (b *Bot) Stop() error {
	b.removeHandlers()
	return b.session.Close()
}

func (b *Bot) removeHandlers() {
	for _, remove := range b.removers {
		remove()
	}
	b.removers = nil
}
