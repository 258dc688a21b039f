package bot

import "github.com/bwmarrin/discordgo"

var (
	permManageMessages = int64(discordgo.PermissionManageMessages)
	permKickMembers    = int64(discordgo.PermissionKickMembers)
	permBanMembers     = int64(discordgo.PermissionBanMembers)
	permManageServer   = int64(discordgo.PermissionManageServer)
	permAdministrator  = int64(discordgo.PermissionAdministrator)
)

func (b *Bot) registerCommands() error {
	commands := []*discordgo.ApplicationCommand{
		{
			Name:                     "warn",
			Description:              "Warn a user",
			DefaultMemberPermissions: &permManageMessages,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "User to warn", Required: true},
				{Type: discordgo.ApplicationCommandOptionString, Name: "reason", Description: "Reason for the warning", Required: false},
			},
		},
		{
			Name:                     "kick",
			Description:              "Kick a user",
			DefaultMemberPermissions: &permKickMembers,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "User to kick", Required: true},
				{Type: discordgo.ApplicationCommandOptionString, Name: "reason", Description: "Reason for the kick", Required: false},
			},
		},
		{
			Name:                     "mute",
			Description:              "Mute a user, optionally for a limited time",
			DefaultMemberPermissions: &permManageMessages,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "User to mute", Required: true},
				{Type: discordgo.ApplicationCommandOptionString, Name: "duration", Description: "Duration such as 30m, 2h or 7d (omit for permanent)", Required: false},
				{Type: discordgo.ApplicationCommandOptionString, Name: "reason", Description: "Reason for the mute", Required: false},
			},
		},
		{
			Name:                     "unmute",
			Description:              "Unmute a user",
			DefaultMemberPermissions: &permManageMessages,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "User to unmute", Required: true},
				{Type: discordgo.ApplicationCommandOptionString, Name: "reason", Description: "Reason for the unmute", Required: false},
			},
		},
		{
			Name:                     "ban",
			Description:              "Ban a user, optionally for a limited time",
			DefaultMemberPermissions: &permBanMembers,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "User to ban", Required: true},
				{Type: discordgo.ApplicationCommandOptionString, Name: "duration", Description: "Duration such as 30m, 2h or 7d (omit for permanent)", Required: false},
				{Type: discordgo.ApplicationCommandOptionString, Name: "reason", Description: "Reason for the ban", Required: false},
			},
		},
		{
			Name:                     "unban",
			Description:              "Unban a user by id",
			DefaultMemberPermissions: &permBanMembers,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionString, Name: "user_id", Description: "Id of the banned user (shown in the modlog)", Required: true},
				{Type: discordgo.ApplicationCommandOptionString, Name: "reason", Description: "Reason for the unban", Required: false},
			},
		},
		{
			Name:                     "modnote",
			Description:              "Record a note about a user in the modlog",
			DefaultMemberPermissions: &permManageServer,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "User the note is about", Required: true},
				{Type: discordgo.ApplicationCommandOptionString, Name: "note", Description: "Note to record", Required: true},
			},
		},
		{
			Name:                     "modlog",
			Description:              "Show recent modlog entries for a user",
			DefaultMemberPermissions: &permManageServer,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "User to look up", Required: true},
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "number", Description: "Number of entries (default 5)", Required: false},
				{Type: discordgo.ApplicationCommandOptionString, Name: "filter", Description: "Only entries containing this text", Required: false},
			},
		},
		{
			Name:                     "modlogchannel",
			Description:              "View or set the modlog channel",
			DefaultMemberPermissions: &permManageMessages,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionChannel, Name: "channel", Description: "Channel to broadcast moderation actions to", Required: false},
				{Type: discordgo.ApplicationCommandOptionBoolean, Name: "reset", Description: "Clear the configured channel", Required: false},
			},
		},
		{
			Name:                     "muterole",
			Description:              "View or set the mute role",
			DefaultMemberPermissions: &permManageMessages,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionRole, Name: "role", Description: "Role granted to muted users", Required: false},
				{Type: discordgo.ApplicationCommandOptionBoolean, Name: "reset", Description: "Clear the configured role", Required: false},
			},
		},
		{
			Name:                     "blacklist",
			Description:              "Manage the global command blacklist",
			DefaultMemberPermissions: &permAdministrator,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type: discordgo.ApplicationCommandOptionString, Name: "action", Description: "add, remove or list", Required: true,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "add", Value: "add"},
						{Name: "remove", Value: "remove"},
						{Name: "list", Value: "list"},
					},
				},
				{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "User to add or remove", Required: false},
			},
		},
		{
			Name:                     "gamechannel",
			Description:              "View or set the games channel",
			DefaultMemberPermissions: &permManageServer,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionChannel, Name: "channel", Description: "Channel where games are played", Required: false},
			},
		},
		{
			Name:        "signups",
			Description: "Open signups for a game in the games channel",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionString, Name: "game", Description: "Name of the game", Required: true},
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "minimum", Description: "Minimum players (default 2)", Required: false},
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "maximum", Description: "Maximum players (default 50)", Required: false},
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "rounds", Description: "Number of rounds (default 1)", Required: false},
			},
		},
		{
			Name:                     "gameend",
			Description:              "End the running game and declare the winners",
			DefaultMemberPermissions: &permManageServer,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionUser, Name: "winner", Description: "Winner of the game", Required: false},
				{Type: discordgo.ApplicationCommandOptionUser, Name: "winner2", Description: "Additional winner", Required: false},
				{Type: discordgo.ApplicationCommandOptionUser, Name: "winner3", Description: "Additional winner", Required: false},
			},
		},
		{
			Name:        "scoreboard",
			Description: "Show a user's cumulative game score",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "User to look up (default: you)", Required: false},
			},
		},
		{
			Name:        "highscore",
			Description: "Show the top game scores for this server",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "count", Description: "Number of entries (default 5, max 9)", Required: false},
			},
		},
		{
			Name:                     "changescore",
			Description:              "Adjust a user's game score",
			DefaultMemberPermissions: &permManageServer,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "User whose score to change", Required: true},
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "points", Description: "Points to add (negative to subtract)", Required: true},
			},
		},
		{
			Name:        "uptime",
			Description: "Show how long the bot has been online",
		},
	}

	for _, command := range commands {
		if _, err := b.session.ApplicationCommandCreate(b.session.State.User.ID, "", command); err != nil {
			return err
		}
	}
	return nil
}
