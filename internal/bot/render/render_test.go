package render_test

import (
	"strings"
	"testing"
	"time"

	"github.com/jensholdgaard/discord-auction-bot/internal/auction"
	"github.com/jensholdgaard/discord-auction-bot/internal/bot/render"
	"github.com/jensholdgaard/discord-auction-bot/internal/store"
)

func ptr[T any](v T) *T { return &v }

var endTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestCredits(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{1234567, "1,234,567"},
	}
	for _, tt := range tests {
		if got := render.Credits(tt.in); got != tt.want {
			t.Errorf("Credits(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEmbed_OpenAuction(t *testing.T) {
	s := auction.Snapshot{Auction: store.Auction{
		ID:          7,
		ItemRef:     "sword-1",
		ItemName:    "Sword of Testing",
		Description: "Sharp.",
		ImageURL:    "https://example.com/sword.png",
		MinBid:      1000,
		Interval:    50,
		Status:      store.StatusOpen,
		EndTime:     endTime,
	}}

	e := render.Embed(s)
	if e.Title != "Sword of Testing" {
		t.Errorf("title = %q", e.Title)
	}
	for _, want := range []string{
		"Sharp.",
		"**Min Bid:** 1,000",
		"**Interval:** 50",
		"**Buyout:** *None*",
		"**Current Bid:** *None*",
		"<t:" + "1772366400" + ":f>",
	} {
		if !strings.Contains(e.Description, want) {
			t.Errorf("description missing %q:\n%s", want, e.Description)
		}
	}
	if e.Color != render.ColorOpen {
		t.Errorf("color = %x, want open", e.Color)
	}
	if e.Image == nil || e.Image.URL != s.ImageURL {
		t.Errorf("image = %+v", e.Image)
	}
	if e.Footer == nil || !strings.Contains(e.Footer.Text, "Auction ID: 7") {
		t.Errorf("footer = %+v", e.Footer)
	}
}

func TestEmbed_WithBidAndBuyout(t *testing.T) {
	s := auction.Snapshot{Auction: store.Auction{
		ID:            3,
		ItemRef:       "shield",
		MinBid:        10,
		Interval:      5,
		BuyoutPrice:   ptr(int64(5000)),
		CurrentBid:    ptr(int64(2500)),
		CurrentBidder: ptr("u1"),
		Status:        store.StatusOpen,
		EndTime:       endTime,
	}}

	e := render.Embed(s)
	if e.Title != "shield" {
		t.Errorf("title falls back to item ref, got %q", e.Title)
	}
	if !strings.Contains(e.Description, "**Buyout:** 5,000") {
		t.Errorf("missing buyout: %s", e.Description)
	}
	if !strings.Contains(e.Description, "**Current Bid:** 2,500 by <@u1>") {
		t.Errorf("missing current bid: %s", e.Description)
	}
	if e.Image != nil {
		t.Errorf("expected no image, got %+v", e.Image)
	}
}

func TestEmbed_ClosedColors(t *testing.T) {
	won := auction.Snapshot{Auction: store.Auction{Status: store.StatusClosed, WinnerID: ptr("u1"), EndTime: endTime}}
	if got := render.Embed(won).Color; got != render.ColorClosed {
		t.Errorf("won color = %x", got)
	}
	unsold := auction.Snapshot{Auction: store.Auction{Status: store.StatusClosed, EndTime: endTime}}
	if got := render.Embed(unsold).Color; got != render.ColorNoWinner {
		t.Errorf("unsold color = %x", got)
	}
	cancelled := auction.Snapshot{Auction: store.Auction{Status: store.StatusCancelled, EndTime: endTime}}
	if got := render.Embed(cancelled).Color; got != render.ColorCancelled {
		t.Errorf("cancelled color = %x", got)
	}
}

func TestResult(t *testing.T) {
	base := auction.Finalized{AuctionID: 9, WinnerID: "w", FinalBid: 1500, EndedBy: "a"}
	tests := []struct {
		reason auction.Reason
		winner bool
		want   string
	}{
		{auction.ReasonBuyout, true, "🏁 Auction ended immediately! <@w> bought out the item for 1,500 credits."},
		{auction.ReasonExpired, true, "🏁 Auction #9 has ended! <@w> wins with 1,500 credits."},
		{auction.ReasonNoBids, false, "⚠️ Auction #9 ended with no bids."},
		{auction.ReasonEndedEarly, true, "🏁 Auction #9 was ended early by <@a>. <@w> wins with 1,500 credits."},
		{auction.ReasonCancelled, false, "🛑 Auction #9 was cancelled by <@a>."},
	}
	for _, tt := range tests {
		t.Run(string(tt.reason), func(t *testing.T) {
			f := base
			f.Reason = tt.reason
			if !tt.winner {
				f.WinnerID, f.FinalBid = "", 0
			}
			if got := render.Result(f); got != tt.want {
				t.Errorf("Result() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLogEmbed(t *testing.T) {
	f := auction.Finalized{
		AuctionID:  4,
		ItemRef:    "helm",
		ItemName:   "Helm",
		Auctioneer: "a",
		WinnerID:   "w",
		FinalBid:   200,
		Reason:     auction.ReasonExpired,
		EndedAt:    endTime,
	}
	e := render.LogEmbed(f)
	for _, want := range []string{"**Auction ID:** 4", "**Winner:** <@w>", "**Final Bid:** 200 credits", "**Reason:** expired"} {
		if !strings.Contains(e.Description, want) {
			t.Errorf("log embed missing %q:\n%s", want, e.Description)
		}
	}

	f.WinnerID, f.FinalBid, f.Reason = "", 0, auction.ReasonNoBids
	e = render.LogEmbed(f)
	if !strings.Contains(e.Description, "**Winner:** *None*") {
		t.Errorf("expected no winner:\n%s", e.Description)
	}
	if e.Color != render.ColorNoWinner {
		t.Errorf("color = %x", e.Color)
	}
}

func TestClosedEmbed(t *testing.T) {
	f := auction.Finalized{AuctionID: 2, ItemRef: "ring", Reason: auction.ReasonCancelled, EndedBy: "a"}
	e := render.ClosedEmbed(f)
	if !strings.HasPrefix(e.Title, "🔒") {
		t.Errorf("title = %q", e.Title)
	}
	if !strings.Contains(e.Description, "cancelled") {
		t.Errorf("description = %q", e.Description)
	}
	if e.Color != render.ColorCancelled {
		t.Errorf("color = %x", e.Color)
	}
}

func TestOutbidMessages(t *testing.T) {
	o := auction.Outbid{AuctionID: 5, ItemName: "Bow", PreviousBidder: "p", NewAmount: 1200}
	if got := render.OutbidDirect(o); !strings.HasPrefix(got, "📣 You've been outbid in auction #5") || !strings.Contains(got, "1,200") {
		t.Errorf("OutbidDirect() = %q", got)
	}
	if got := render.OutbidMention(o); !strings.Contains(got, "<@p>") {
		t.Errorf("OutbidMention() = %q", got)
	}
}

func TestListing(t *testing.T) {
	empty := render.Listing(auction.Paginate(nil, 1, auction.DefaultPageSize))
	if empty.Description != "No active auctions at the moment." {
		t.Errorf("empty listing = %q", empty.Description)
	}

	list := []auction.Summary{
		{ID: 1, ItemRef: "a", ItemName: "Alpha", MinBid: 10, EndTime: endTime, ChannelID: "c1"},
		{ID: 2, ItemRef: "b", MinBid: 20, CurrentBid: ptr(int64(30)), BuyoutPrice: ptr(int64(100)), EndTime: endTime},
	}
	e := render.Listing(auction.Paginate(list, 1, auction.DefaultPageSize))
	if len(e.Fields) != 2 {
		t.Fatalf("got %d fields, want 2", len(e.Fields))
	}
	if e.Fields[0].Name != "#1 · Alpha" || !strings.Contains(e.Fields[0].Value, "<#c1>") {
		t.Errorf("field 0 = %+v", e.Fields[0])
	}
	if !strings.Contains(e.Fields[1].Value, "Buyout: 100") {
		t.Errorf("field 1 = %+v", e.Fields[1])
	}
	if e.Footer.Text != "Page 1/1 · 2 open" {
		t.Errorf("footer = %q", e.Footer.Text)
	}
}

func TestAuctioneers(t *testing.T) {
	if got := render.Auctioneers(nil).Description; got != "⚠️ No auctioneers found." {
		t.Errorf("empty = %q", got)
	}
	got := render.Auctioneers([]store.Participant{{UserID: "1"}, {UserID: "2"}}).Description
	if got != "• <@1>\n• <@2>" {
		t.Errorf("list = %q", got)
	}
}
