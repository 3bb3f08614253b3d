package publish_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jensholdgaard/discord-auction-bot/internal/auction"
	"github.com/jensholdgaard/discord-auction-bot/internal/bot/publish"
	"github.com/jensholdgaard/discord-auction-bot/internal/store"
)

type sent struct {
	channelID string
	messageID string
	content   string
	embed     *discordgo.MessageEmbed
}

type fakeSession struct {
	mu      sync.Mutex
	edits   []sent
	texts   []sent
	embeds  []sent
	dmFail  error
	sendErr map[string]error
}

func (f *fakeSession) ChannelMessageEditEmbed(channelID, messageID string, embed *discordgo.MessageEmbed, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, sent{channelID: channelID, messageID: messageID, embed: embed})
	return &discordgo.Message{ID: messageID}, nil
}

func (f *fakeSession) ChannelMessageSend(channelID, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.sendErr[channelID]; err != nil {
		return nil, err
	}
	f.texts = append(f.texts, sent{channelID: channelID, content: content})
	return &discordgo.Message{ID: "m"}, nil
}

func (f *fakeSession) ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.sendErr[channelID]; err != nil {
		return nil, err
	}
	f.embeds = append(f.embeds, sent{channelID: channelID, embed: embed})
	return &discordgo.Message{ID: "m"}, nil
}

func (f *fakeSession) UserChannelCreate(recipientID string, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	if f.dmFail != nil {
		return nil, f.dmFail
	}
	return &discordgo.Channel{ID: "dm-" + recipientID}, nil
}

func newPublisher(s *fakeSession, logs string) *publish.Publisher {
	return publish.New(s, logs, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRender(t *testing.T) {
	s := &fakeSession{}
	p := newPublisher(s, "")

	snap := auction.Snapshot{Auction: store.Auction{ID: 1, ItemRef: "x", ChannelID: "c", MessageID: "msg", Status: store.StatusOpen}}
	require.NoError(t, p.Render(context.Background(), snap))
	require.Len(t, s.edits, 1)
	assert.Equal(t, "c", s.edits[0].channelID)
	assert.Equal(t, "msg", s.edits[0].messageID)

	snap.MessageID = ""
	require.NoError(t, p.Render(context.Background(), snap))
	assert.Len(t, s.edits, 1, "auctions without a message are skipped")
}

func TestNotifyOutbid_DirectMessage(t *testing.T) {
	s := &fakeSession{}
	p := newPublisher(s, "")

	o := auction.Outbid{AuctionID: 3, ItemName: "Bow", ChannelID: "c", PreviousBidder: "u1", NewAmount: 20}
	require.NoError(t, p.NotifyOutbid(context.Background(), o))
	require.Len(t, s.texts, 1)
	assert.Equal(t, "dm-u1", s.texts[0].channelID)
	assert.Contains(t, s.texts[0].content, "You've been outbid in auction #3")
}

func TestNotifyOutbid_FallsBackToChannel(t *testing.T) {
	s := &fakeSession{dmFail: errors.New("cannot send messages to this user")}
	p := newPublisher(s, "")

	o := auction.Outbid{AuctionID: 3, ChannelID: "c", PreviousBidder: "u1", NewAmount: 20}
	require.NoError(t, p.NotifyOutbid(context.Background(), o))
	require.Len(t, s.texts, 1)
	assert.Equal(t, "c", s.texts[0].channelID)
	assert.Contains(t, s.texts[0].content, "<@u1>")
}

func TestNotifyOutbid_BothFail(t *testing.T) {
	dmErr := errors.New("dm closed")
	chErr := errors.New("missing access")
	s := &fakeSession{dmFail: dmErr, sendErr: map[string]error{"c": chErr}}
	p := newPublisher(s, "")

	err := p.NotifyOutbid(context.Background(), auction.Outbid{AuctionID: 3, ChannelID: "c", PreviousBidder: "u1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, dmErr)
	assert.ErrorIs(t, err, chErr)
}

func TestAnnounce(t *testing.T) {
	s := &fakeSession{}
	p := newPublisher(s, "logs")

	f := auction.Finalized{
		AuctionID: 5, ItemRef: "ring", ChannelID: "c", MessageID: "msg",
		WinnerID: "w", FinalBid: 100, Reason: auction.ReasonExpired,
	}
	require.NoError(t, p.Announce(context.Background(), f))

	require.Len(t, s.edits, 1)
	require.Len(t, s.texts, 1)
	assert.Equal(t, "🏁 Auction #5 has ended! <@w> wins with 100 credits.", s.texts[0].content)
	require.Len(t, s.embeds, 1)
	assert.Equal(t, "logs", s.embeds[0].channelID)
}

func TestAnnounce_ContinuesAfterFailure(t *testing.T) {
	chErr := errors.New("channel deleted")
	s := &fakeSession{sendErr: map[string]error{"c": chErr}}
	p := newPublisher(s, "logs")

	f := auction.Finalized{AuctionID: 5, ChannelID: "c", Reason: auction.ReasonNoBids}
	err := p.Announce(context.Background(), f)
	require.ErrorIs(t, err, chErr)
	assert.Len(t, s.embeds, 1, "logs record is still written")
}

func TestAnnounce_NoLogsChannel(t *testing.T) {
	s := &fakeSession{}
	p := newPublisher(s, "")

	require.NoError(t, p.Announce(context.Background(), auction.Finalized{AuctionID: 1, ChannelID: "c", Reason: auction.ReasonNoBids}))
	assert.Empty(t, s.embeds)
	assert.Len(t, s.texts, 1)
}
