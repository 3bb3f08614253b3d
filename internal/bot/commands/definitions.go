package commands

import "github.com/bwmarrin/discordgo"

func minValue(v float64) *float64 { return &v }

func auctionIDOption() *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionInteger,
		Name:        "auction-id",
		Description: "Auction ID",
		Required:    true,
		MinValue:    minValue(1),
	}
}

// SlashCommands returns the slash command definitions.
func SlashCommands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        "auctioneer",
			Description: "Add or remove an auctioneer (owner only)",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "User to toggle",
					Required:    true,
				},
			},
		},
		{
			Name:        "auction",
			Description: "Start an item auction in this channel",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "item-ref",
					Description: "Item identifier, used for the auction cooldown",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "name",
					Description: "Item name",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "duration",
					Description: "Duration in minutes",
					Required:    true,
					MinValue:    minValue(1),
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "min-bid",
					Description: "Minimum bid",
					Required:    true,
					MinValue:    minValue(1),
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "interval",
					Description: "Minimum raise over the current bid",
					Required:    true,
					MinValue:    minValue(1),
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "buyout",
					Description: "Buyout price",
					MinValue:    minValue(1),
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "description",
					Description: "Item description",
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "image-url",
					Description: "Item image URL",
				},
			},
		},
		{
			Name:        "bid",
			Description: "Place a bid on an auction",
			Options: []*discordgo.ApplicationCommandOption{
				auctionIDOption(),
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "amount",
					Description: "Bid amount",
					Required:    true,
					MinValue:    minValue(1),
				},
			},
		},
		{
			Name:        "edit",
			Description: "Change a setting of your auction",
			Options: []*discordgo.ApplicationCommandOption{
				auctionIDOption(),
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "field",
					Description: "Setting to change",
					Required:    true,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "Minimum bid", Value: "minbid"},
						{Name: "Interval", Value: "interval"},
						{Name: "Buyout (0 removes it)", Value: "buyout"},
						{Name: "Time left in minutes", Value: "time"},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "value",
					Description: "New value",
					Required:    true,
					MinValue:    minValue(0),
				},
			},
		},
		{
			Name:        "endearly",
			Description: "End your auction now and award the highest bid",
			Options:     []*discordgo.ApplicationCommandOption{auctionIDOption()},
		},
		{
			Name:        "cancel",
			Description: "Cancel your auction without a winner",
			Options:     []*discordgo.ApplicationCommandOption{auctionIDOption()},
		},
		{
			Name:        "list",
			Description: "List open auctions or auctioneers",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "what",
					Description: "What to list",
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "Auctions", Value: "auctions"},
						{Name: "Auctioneers", Value: "auctioneers"},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "page",
					Description: "Page number",
					MinValue:    minValue(1),
				},
			},
		},
		{
			Name:        "outbid-notify",
			Description: "Get a direct message when you are outbid",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionBoolean,
					Name:        "enabled",
					Description: "Turn notifications on or off",
					Required:    true,
				},
			},
		},
	}
}
