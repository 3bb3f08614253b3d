// Package publish delivers auction side effects to Discord.
package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/jensholdgaard/discord-auction-bot/internal/auction"
	"github.com/jensholdgaard/discord-auction-bot/internal/bot/render"
)

// Session is the subset of *discordgo.Session used for publishing.
type Session interface {
	ChannelMessageEditEmbed(channelID, messageID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
}

// Publisher implements auction.Renderer, auction.Notifier and auction.Announcer.
type Publisher struct {
	session       Session
	logsChannelID string
	logger        *slog.Logger
}

var (
	_ auction.Renderer  = (*Publisher)(nil)
	_ auction.Notifier  = (*Publisher)(nil)
	_ auction.Announcer = (*Publisher)(nil)
)

// New creates a Publisher. An empty logsChannelID disables the logs record.
func New(session Session, logsChannelID string, logger *slog.Logger) *Publisher {
	return &Publisher{session: session, logsChannelID: logsChannelID, logger: logger}
}

// Render edits the auction's public message. Auctions without a message yet
// are skipped.
func (p *Publisher) Render(ctx context.Context, s auction.Snapshot) error {
	if s.ChannelID == "" || s.MessageID == "" {
		return nil
	}
	if _, err := p.session.ChannelMessageEditEmbed(s.ChannelID, s.MessageID, render.Embed(s), discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("editing auction %d message: %w", s.ID, err)
	}
	return nil
}

// NotifyOutbid direct-messages the previous bidder, falling back to a
// mention in the auction channel when the DM cannot be delivered.
func (p *Publisher) NotifyOutbid(ctx context.Context, o auction.Outbid) error {
	dmErr := p.direct(ctx, o)
	if dmErr == nil {
		return nil
	}

	p.logger.WarnContext(ctx, "outbid DM failed, falling back to channel",
		slog.Int64("auction_id", o.AuctionID),
		slog.String("user", o.PreviousBidder),
		slog.Any("error", dmErr),
	)
	if o.ChannelID == "" {
		return fmt.Errorf("notifying %s: %w", o.PreviousBidder, dmErr)
	}
	if _, err := p.session.ChannelMessageSend(o.ChannelID, render.OutbidMention(o), discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("notifying %s: %w", o.PreviousBidder, errors.Join(dmErr, err))
	}
	return nil
}

func (p *Publisher) direct(ctx context.Context, o auction.Outbid) error {
	ch, err := p.session.UserChannelCreate(o.PreviousBidder, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("opening DM channel: %w", err)
	}
	if _, err := p.session.ChannelMessageSend(ch.ID, render.OutbidDirect(o), discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("sending DM: %w", err)
	}
	return nil
}

// Announce closes the auction's public message, posts the result in its
// channel and records it in the logs channel. Every step is attempted.
func (p *Publisher) Announce(ctx context.Context, f auction.Finalized) error {
	var errs []error

	if f.ChannelID != "" {
		if f.MessageID != "" {
			if _, err := p.session.ChannelMessageEditEmbed(f.ChannelID, f.MessageID, render.ClosedEmbed(f), discordgo.WithContext(ctx)); err != nil {
				errs = append(errs, fmt.Errorf("closing auction %d message: %w", f.AuctionID, err))
			}
		}
		if _, err := p.session.ChannelMessageSend(f.ChannelID, render.Result(f), discordgo.WithContext(ctx)); err != nil {
			errs = append(errs, fmt.Errorf("posting auction %d result: %w", f.AuctionID, err))
		}
	}

	if p.logsChannelID != "" {
		if _, err := p.session.ChannelMessageSendEmbed(p.logsChannelID, render.LogEmbed(f), discordgo.WithContext(ctx)); err != nil {
			errs = append(errs, fmt.Errorf("logging auction %d: %w", f.AuctionID, err))
		}
	}

	return errors.Join(errs...)
}
