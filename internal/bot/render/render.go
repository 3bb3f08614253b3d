// Package render turns auction state into Discord messages.
package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/jensholdgaard/discord-auction-bot/internal/auction"
	"github.com/jensholdgaard/discord-auction-bot/internal/store"
)

// Embed colors.
const (
	ColorOpen      = 0x5865F2
	ColorClosed    = 0x2ECC71
	ColorNoWinner  = 0xE67E22
	ColorCancelled = 0x95A5A6
	ColorListing   = 0x3498DB
)

var printer = message.NewPrinter(language.English)

// Credits formats n with thousands separators.
func Credits(n int64) string {
	return printer.Sprintf("%d", n)
}

// Timestamp renders t as a Discord timestamp shown in each reader's locale.
func Timestamp(t time.Time) string {
	return fmt.Sprintf("<t:%d:f>", t.Unix())
}

// Mention renders a user mention.
func Mention(userID string) string {
	return "<@" + userID + ">"
}

func title(itemName, itemRef string) string {
	if itemName != "" {
		return itemName
	}
	return itemRef
}

// Embed is the public view of an auction.
func Embed(s auction.Snapshot) *discordgo.MessageEmbed {
	a := s.Auction

	buyout := "*None*"
	if a.BuyoutPrice != nil {
		buyout = Credits(*a.BuyoutPrice)
	}
	current := "*None*"
	if a.CurrentBid != nil {
		current = Credits(*a.CurrentBid)
		if a.CurrentBidder != nil {
			current += " by " + Mention(*a.CurrentBidder)
		}
	}

	var b strings.Builder
	if a.Description != "" {
		b.WriteString(a.Description)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "💰 **Min Bid:** %s\n", Credits(a.MinBid))
	fmt.Fprintf(&b, "🔼 **Interval:** %s\n", Credits(a.Interval))
	fmt.Fprintf(&b, "🏷️ **Buyout:** %s\n", buyout)
	fmt.Fprintf(&b, "💸 **Current Bid:** %s\n", current)
	fmt.Fprintf(&b, "⏰ **Ends:** %s", Timestamp(a.EndTime))

	color := ColorOpen
	switch a.Status {
	case store.StatusClosed:
		color = ColorClosed
		if a.WinnerID == nil {
			color = ColorNoWinner
		}
		b.WriteString("\n\n**Status:** closed")
	case store.StatusCancelled:
		color = ColorCancelled
		b.WriteString("\n\n**Status:** cancelled")
	}

	e := &discordgo.MessageEmbed{
		Title:       title(a.ItemName, a.ItemRef),
		Description: b.String(),
		Color:       color,
		Footer:      &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("Auction ID: %d · Item: %s", a.ID, a.ItemRef)},
	}
	if a.ImageURL != "" {
		e.Image = &discordgo.MessageEmbedImage{URL: a.ImageURL}
	}
	return e
}

// ClosedEmbed replaces the auction message once it stops taking bids.
func ClosedEmbed(f auction.Finalized) *discordgo.MessageEmbed {
	var b strings.Builder
	if f.Description != "" {
		b.WriteString(f.Description)
		b.WriteString("\n\n")
	}
	b.WriteString(Result(f))

	color := ColorClosed
	switch {
	case f.Reason == auction.ReasonCancelled:
		color = ColorCancelled
	case !f.HasWinner():
		color = ColorNoWinner
	}

	e := &discordgo.MessageEmbed{
		Title:       "🔒 " + title(f.ItemName, f.ItemRef),
		Description: b.String(),
		Color:       color,
		Footer:      &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("Auction ID: %d · Item: %s", f.AuctionID, f.ItemRef)},
	}
	if f.ImageURL != "" {
		e.Image = &discordgo.MessageEmbedImage{URL: f.ImageURL}
	}
	return e
}

// Result is the one-line outcome posted in the auction channel.
func Result(f auction.Finalized) string {
	switch f.Reason {
	case auction.ReasonBuyout:
		return fmt.Sprintf("🏁 Auction ended immediately! %s bought out the item for %s credits.", Mention(f.WinnerID), Credits(f.FinalBid))
	case auction.ReasonCancelled:
		return fmt.Sprintf("🛑 Auction #%d was cancelled by %s.", f.AuctionID, Mention(f.EndedBy))
	case auction.ReasonNoBids:
		return fmt.Sprintf("⚠️ Auction #%d ended with no bids.", f.AuctionID)
	case auction.ReasonEndedEarly:
		return fmt.Sprintf("🏁 Auction #%d was ended early by %s. %s wins with %s credits.",
			f.AuctionID, Mention(f.EndedBy), Mention(f.WinnerID), Credits(f.FinalBid))
	default:
		return fmt.Sprintf("🏁 Auction #%d has ended! %s wins with %s credits.", f.AuctionID, Mention(f.WinnerID), Credits(f.FinalBid))
	}
}

// LogEmbed is the permanent record posted to the logs channel.
func LogEmbed(f auction.Finalized) *discordgo.MessageEmbed {
	winner, final := "*None*", "*None*"
	if f.HasWinner() {
		winner = Mention(f.WinnerID)
		final = Credits(f.FinalBid) + " credits"
	}

	var b strings.Builder
	if f.Description != "" {
		b.WriteString(f.Description)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "**Auction ID:** %d\n", f.AuctionID)
	fmt.Fprintf(&b, "**Item:** %s\n", f.ItemRef)
	fmt.Fprintf(&b, "**Auctioneer:** %s\n", Mention(f.Auctioneer))
	fmt.Fprintf(&b, "**Winner:** %s\n", winner)
	fmt.Fprintf(&b, "**Final Bid:** %s\n", final)
	fmt.Fprintf(&b, "**Reason:** %s\n", f.Reason)
	fmt.Fprintf(&b, "**Ended At:** %s", Timestamp(f.EndedAt))

	color := ColorClosed
	if !f.HasWinner() {
		color = ColorNoWinner
	}
	e := &discordgo.MessageEmbed{
		Title:       "📦 Auction Closed: " + title(f.ItemName, f.ItemRef),
		Description: b.String(),
		Color:       color,
	}
	if f.ImageURL != "" {
		e.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: f.ImageURL}
	}
	return e
}

// OutbidDirect is the direct message sent to an outbid bidder.
func OutbidDirect(o auction.Outbid) string {
	return fmt.Sprintf("📣 You've been outbid in auction #%d (%s)! The new bid is %s credits.",
		o.AuctionID, o.ItemName, Credits(o.NewAmount))
}

// OutbidMention is posted in the auction channel when a direct message fails.
func OutbidMention(o auction.Outbid) string {
	return fmt.Sprintf("📣 %s, you've been outbid in auction #%d! The new bid is %s credits.",
		Mention(o.PreviousBidder), o.AuctionID, Credits(o.NewAmount))
}

// Listing renders one page of open auctions.
func Listing(p auction.Page) *discordgo.MessageEmbed {
	e := &discordgo.MessageEmbed{
		Title:  "📢 Active Auctions",
		Color:  ColorListing,
		Footer: &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("Page %d/%d · %d open", p.Number, p.Pages, p.Total)},
	}
	if len(p.Items) == 0 {
		e.Description = "No active auctions at the moment."
		return e
	}
	for _, s := range p.Items {
		bid := "*None*"
		if s.CurrentBid != nil {
			bid = Credits(*s.CurrentBid)
		}
		value := fmt.Sprintf("💰 Min: %s · 💸 Current: %s", Credits(s.MinBid), bid)
		if s.BuyoutPrice != nil {
			value += " · 🏷️ Buyout: " + Credits(*s.BuyoutPrice)
		}
		value += "\n⏰ Ends " + Timestamp(s.EndTime)
		if s.ChannelID != "" {
			value += " in <#" + s.ChannelID + ">"
		}
		e.Fields = append(e.Fields, &discordgo.MessageEmbedField{
			Name:  fmt.Sprintf("#%d · %s", s.ID, title(s.ItemName, s.ItemRef)),
			Value: value,
		})
	}
	return e
}

// Auctioneers renders the auctioneer registry.
func Auctioneers(list []store.Participant) *discordgo.MessageEmbed {
	e := &discordgo.MessageEmbed{Title: "🧑‍⚖️ Registered Auctioneers", Color: ColorListing}
	if len(list) == 0 {
		e.Description = "⚠️ No auctioneers found."
		return e
	}
	lines := make([]string, 0, len(list))
	for _, p := range list {
		lines = append(lines, "• "+Mention(p.UserID))
	}
	e.Description = strings.Join(lines, "\n")
	return e
}
