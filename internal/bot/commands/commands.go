// Package commands implements the bot's slash commands.
package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jensholdgaard/discord-auction-bot/internal/auction"
	"github.com/jensholdgaard/discord-auction-bot/internal/bot/render"
	"github.com/jensholdgaard/discord-auction-bot/internal/clock"
	"github.com/jensholdgaard/discord-auction-bot/internal/config"
	"github.com/jensholdgaard/discord-auction-bot/internal/store"
)

// Auctions is the bidding engine as seen by the commands.
type Auctions interface {
	CreateAuction(ctx context.Context, p auction.CreateParams) (*store.Auction, error)
	AttachMessage(ctx context.Context, auctionID int64, channelID, messageID string) error
	PlaceBid(ctx context.Context, auctionID int64, bidder string, amount int64) (*auction.BidReceipt, error)
	EditAuction(ctx context.Context, auctionID int64, editor string, field auction.Field, value int64) (*store.Auction, error)
	EndEarly(ctx context.Context, auctionID int64, actor string) (*auction.Finalized, error)
	CancelAuction(ctx context.Context, auctionID int64, actor string) (*auction.Finalized, error)
	ListOpenAuctions(ctx context.Context) ([]auction.Summary, error)
}

// Participants manages auctioneers and outbid preferences.
type Participants interface {
	ToggleAuctioneer(ctx context.Context, userID string) (bool, error)
	IsAuctioneer(ctx context.Context, userID string) (bool, error)
	ListAuctioneers(ctx context.Context) ([]store.Participant, error)
	SetOutbidOptIn(ctx context.Context, userID string, enabled bool) (bool, error)
}

// Poster posts auction messages into a channel.
type Poster interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Request is a slash command invocation stripped of transport details.
type Request struct {
	Command   string
	UserID    string
	ChannelID string
	Options   map[string]*discordgo.ApplicationCommandInteractionDataOption
}

// Reply is what the invoking user sees.
type Reply struct {
	Content   string
	Embeds    []*discordgo.MessageEmbed
	Ephemeral bool
}

// Handlers process Discord interactions.
type Handlers struct {
	auctions Auctions
	people   Participants
	poster   Poster
	ownerID  string

	startThrottle *Throttle
	editThrottle  *Throttle

	logger *slog.Logger
	tracer trace.Tracer
}

// NewHandlers creates new command handlers.
func NewHandlers(auctions Auctions, people Participants, poster Poster, discord config.DiscordConfig, cfg config.AuctionConfig, clk clock.Clock, logger *slog.Logger, tp trace.TracerProvider) *Handlers {
	return &Handlers{
		auctions:      auctions,
		people:        people,
		poster:        poster,
		ownerID:       discord.OwnerID,
		startThrottle: NewThrottle(cfg.StartRate, clk),
		editThrottle:  NewThrottle(cfg.EditRate, clk),
		logger:        logger,
		tracer:        tp.Tracer("github.com/jensholdgaard/discord-auction-bot/internal/bot/commands"),
	}
}

// InteractionCreate handles incoming slash command interactions.
func (h *Handlers) InteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	data := i.ApplicationCommandData()
	req := Request{
		Command:   data.Name,
		ChannelID: i.ChannelID,
		Options:   make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(data.Options)),
	}
	switch {
	case i.Member != nil && i.Member.User != nil:
		req.UserID = i.Member.User.ID
	case i.User != nil:
		req.UserID = i.User.ID
	}
	for _, opt := range data.Options {
		req.Options[opt.Name] = opt
	}

	ctx := context.Background()
	reply := h.Handle(ctx, req)
	if err := respond(s, i, reply); err != nil {
		h.logger.ErrorContext(ctx, "responding to interaction",
			slog.String("command", req.Command),
			slog.Any("error", err),
		)
	}
}

// Handle runs one command and returns the reply for its invoker.
func (h *Handlers) Handle(ctx context.Context, req Request) Reply {
	ctx, span := h.tracer.Start(ctx, "Handlers."+req.Command,
		trace.WithAttributes(
			attribute.String("command", req.Command),
			attribute.String("user.id", req.UserID),
		),
	)
	defer span.End()

	var reply Reply
	switch req.Command {
	case "auctioneer":
		reply = h.handleAuctioneer(ctx, req)
	case "auction":
		reply = h.handleAuction(ctx, req)
	case "bid":
		reply = h.handleBid(ctx, req)
	case "edit":
		reply = h.handleEdit(ctx, req)
	case "endearly":
		reply = h.handleEndEarly(ctx, req)
	case "cancel":
		reply = h.handleCancel(ctx, req)
	case "list":
		reply = h.handleList(ctx, req)
	case "outbid-notify":
		reply = h.handleOutbidNotify(ctx, req)
	default:
		reply = ephemeral("Unknown command")
	}
	return reply
}

func (h *Handlers) handleAuctioneer(ctx context.Context, req Request) Reply {
	if h.ownerID == "" || req.UserID != h.ownerID {
		return ephemeral("❌ Only the bot owner can manage auctioneers.")
	}
	target := userOpt(req, "user")
	if target == "" {
		return ephemeral("❌ Pick a user.")
	}
	added, err := h.people.ToggleAuctioneer(ctx, target)
	if err != nil {
		return h.failure(ctx, req, err)
	}
	if added {
		return ephemeral(fmt.Sprintf("✅ %s is now an auctioneer.", render.Mention(target)))
	}
	return ephemeral(fmt.Sprintf("🗑️ %s is no longer an auctioneer.", render.Mention(target)))
}

func (h *Handlers) handleAuction(ctx context.Context, req Request) Reply {
	ok, err := h.people.IsAuctioneer(ctx, req.UserID)
	if err != nil {
		return h.failure(ctx, req, err)
	}
	if !ok {
		return ephemeral("❌ You are not an auctioneer.")
	}
	if allowed, wait := h.startThrottle.Allow(req.UserID); !allowed {
		return retryAfter(wait)
	}

	p := auction.CreateParams{
		ItemRef:     stringOpt(req, "item-ref"),
		ItemName:    stringOpt(req, "name"),
		Description: stringOpt(req, "description"),
		ImageURL:    stringOpt(req, "image-url"),
		ChannelID:   req.ChannelID,
		Creator:     req.UserID,
		MinBid:      intOpt(req, "min-bid"),
		Interval:    intOpt(req, "interval"),
		Duration:    time.Duration(intOpt(req, "duration")) * time.Minute,
	}
	if _, ok := req.Options["buyout"]; ok {
		b := intOpt(req, "buyout")
		p.BuyoutPrice = &b
	}

	rec, err := h.auctions.CreateAuction(ctx, p)
	if err != nil {
		return h.failure(ctx, req, err)
	}

	msg, err := h.poster.ChannelMessageSendEmbed(req.ChannelID, render.Embed(auction.Snapshot{Auction: *rec}), discordgo.WithContext(ctx))
	if err != nil {
		h.logger.ErrorContext(ctx, "posting auction message",
			slog.Int64("auction_id", rec.ID),
			slog.Any("error", err),
		)
		return ephemeral(fmt.Sprintf("⚠️ Auction #%d started, but its message could not be posted here.", rec.ID))
	}
	if err := h.auctions.AttachMessage(ctx, rec.ID, req.ChannelID, msg.ID); err != nil {
		h.logger.ErrorContext(ctx, "attaching auction message",
			slog.Int64("auction_id", rec.ID),
			slog.Any("error", err),
		)
	}
	return ephemeral(fmt.Sprintf("✅ Auction #%d started for **%s**.", rec.ID, rec.ItemName))
}

func (h *Handlers) handleBid(ctx context.Context, req Request) Reply {
	id := intOpt(req, "auction-id")
	amount := intOpt(req, "amount")
	receipt, err := h.auctions.PlaceBid(ctx, id, req.UserID, amount)
	if err != nil {
		return h.failure(ctx, req, err)
	}
	if receipt.Buyout {
		return ephemeral(fmt.Sprintf("🏁 You bought out auction #%d for %s credits.", receipt.AuctionID, render.Credits(receipt.Amount)))
	}
	return ephemeral(fmt.Sprintf("✅ Bid of %s credits placed on auction #%d.", render.Credits(receipt.Amount), receipt.AuctionID))
}

func (h *Handlers) handleEdit(ctx context.Context, req Request) Reply {
	if allowed, wait := h.editThrottle.Allow(req.UserID); !allowed {
		return retryAfter(wait)
	}
	field, err := auction.ParseField(stringOpt(req, "field"))
	if err != nil {
		return h.failure(ctx, req, err)
	}
	id := intOpt(req, "auction-id")
	if _, err := h.auctions.EditAuction(ctx, id, req.UserID, field, intOpt(req, "value")); err != nil {
		return h.failure(ctx, req, err)
	}
	return ephemeral(fmt.Sprintf("✅ Auction #%d updated.", id))
}

func (h *Handlers) handleEndEarly(ctx context.Context, req Request) Reply {
	f, err := h.auctions.EndEarly(ctx, intOpt(req, "auction-id"), req.UserID)
	if err != nil {
		return h.failure(ctx, req, err)
	}
	if !f.HasWinner() {
		return ephemeral(fmt.Sprintf("✅ Auction #%d ended with no bids.", f.AuctionID))
	}
	return ephemeral(fmt.Sprintf("✅ Auction #%d ended. %s wins with %s credits.", f.AuctionID, render.Mention(f.WinnerID), render.Credits(f.FinalBid)))
}

func (h *Handlers) handleCancel(ctx context.Context, req Request) Reply {
	f, err := h.auctions.CancelAuction(ctx, intOpt(req, "auction-id"), req.UserID)
	if err != nil {
		return h.failure(ctx, req, err)
	}
	return ephemeral(fmt.Sprintf("🛑 Auction #%d cancelled.", f.AuctionID))
}

func (h *Handlers) handleList(ctx context.Context, req Request) Reply {
	switch stringOpt(req, "what") {
	case "auctioneers":
		list, err := h.people.ListAuctioneers(ctx)
		if err != nil {
			return h.failure(ctx, req, err)
		}
		return Reply{Embeds: []*discordgo.MessageEmbed{render.Auctioneers(list)}, Ephemeral: true}
	default:
		list, err := h.auctions.ListOpenAuctions(ctx)
		if err != nil {
			return h.failure(ctx, req, err)
		}
		page := auction.Paginate(list, int(intOpt(req, "page")), auction.DefaultPageSize)
		return Reply{Embeds: []*discordgo.MessageEmbed{render.Listing(page)}}
	}
}

func (h *Handlers) handleOutbidNotify(ctx context.Context, req Request) Reply {
	enabled := boolOpt(req, "enabled")
	changed, err := h.people.SetOutbidOptIn(ctx, req.UserID, enabled)
	if err != nil {
		return h.failure(ctx, req, err)
	}
	switch {
	case enabled && changed:
		return ephemeral("🔔 You will be notified when you are outbid.")
	case enabled:
		return ephemeral("🔔 Outbid notifications are already on.")
	case changed:
		return ephemeral("🔕 Outbid notifications turned off.")
	default:
		return ephemeral("🔕 Outbid notifications are already off.")
	}
}

// failure maps an error to a reply. Rejections are the user's to fix;
// anything else is logged.
func (h *Handlers) failure(ctx context.Context, req Request, err error) Reply {
	if auction.IsRejection(err) {
		return ephemeral("❌ " + sentence(err.Error()))
	}

	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	h.logger.ErrorContext(ctx, "command failed",
		slog.String("command", req.Command),
		slog.String("user", req.UserID),
		slog.Any("error", err),
	)
	if errors.Is(err, auction.ErrUnavailable) {
		return ephemeral("⚠️ The auction house is temporarily unavailable. Please try again.")
	}
	return ephemeral("⚠️ Something went wrong. Please try again later.")
}

func retryAfter(wait time.Duration) Reply {
	secs := int64((wait + time.Second - 1) / time.Second)
	return ephemeral(fmt.Sprintf("⏳ Slow down! Try again in %ds.", secs))
}

func sentence(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	s = string(unicode.ToUpper(r)) + s[size:]
	if !strings.HasSuffix(s, ".") {
		s += "."
	}
	return s
}

func ephemeral(msg string) Reply {
	return Reply{Content: msg, Ephemeral: true}
}

func stringOpt(req Request, name string) string {
	if opt, ok := req.Options[name]; ok && opt.Type == discordgo.ApplicationCommandOptionString {
		return strings.TrimSpace(opt.StringValue())
	}
	return ""
}

func intOpt(req Request, name string) int64 {
	if opt, ok := req.Options[name]; ok && opt.Type == discordgo.ApplicationCommandOptionInteger {
		return opt.IntValue()
	}
	return 0
}

func boolOpt(req Request, name string) bool {
	if opt, ok := req.Options[name]; ok && opt.Type == discordgo.ApplicationCommandOptionBoolean {
		return opt.BoolValue()
	}
	return false
}

func userOpt(req Request, name string) string {
	if opt, ok := req.Options[name]; ok && opt.Type == discordgo.ApplicationCommandOptionUser {
		return opt.UserValue(nil).ID
	}
	return ""
}

func respond(s *discordgo.Session, i *discordgo.InteractionCreate, r Reply) error {
	data := &discordgo.InteractionResponseData{
		Content: r.Content,
		Embeds:  r.Embeds,
	}
	if r.Ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	return s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	})
}
