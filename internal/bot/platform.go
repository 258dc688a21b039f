package bot

import (
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"xenonbot/internal/games"
	"xenonbot/internal/moderation"
	"xenonbot/internal/storage"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// moderation.Platform implementation over the gateway session.

func (b *Bot) GuildAvailable(guildID string) bool {
	_, err := b.session.State.Guild(guildID)
	return err == nil
}

func (b *Bot) MemberRoles(guildID, userID string) ([]string, error) {
	member, err := b.session.State.Member(guildID, userID)
	if err == nil {
		return member.Roles, nil
	}
	member, err = b.session.GuildMember(guildID, userID)
	if err != nil {
		if isNotFound(err) {
			return nil, moderation.ErrNotFound
		}
		return nil, err
	}
	return member.Roles, nil
}

func (b *Bot) AddRole(guildID, userID, roleID, reason string) error {
	return b.session.GuildMemberRoleAdd(guildID, userID, roleID, discordgo.WithAuditLogReason(reason))
}

func (b *Bot) RemoveRole(guildID, userID, roleID, reason string) error {
	return b.session.GuildMemberRoleRemove(guildID, userID, roleID, discordgo.WithAuditLogReason(reason))
}

func (b *Bot) Kick(guildID, userID, reason string) error {
	return b.session.GuildMemberDeleteWithReason(guildID, userID, reason)
}

func (b *Bot) Ban(guildID, userID, reason string) error {
	return b.session.GuildBanCreateWithReason(guildID, userID, reason, 0)
}

func (b *Bot) Unban(guildID, userID, reason string) error {
	return b.session.GuildBanDelete(guildID, userID, discordgo.WithAuditLogReason(reason))
}

func (b *Bot) IsBanned(guildID, userID string) (bool, error) {
	_, err := b.session.GuildBan(guildID, userID)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (b *Bot) SendLogEmbed(channelID string, entry storage.ModLogEntry) error {
	_, err := b.session.ChannelMessageSendEmbed(channelID, b.entryEmbed(entry))
	return err
}

func (b *Bot) NotifyUser(userID string, entry storage.ModLogEntry) error {
	channel, err := b.session.UserChannelCreate(userID)
	if err != nil {
		return err
	}
	_, err = b.session.ChannelMessageSendEmbed(channel.ID, b.entryEmbed(entry))
	return err
}

// games.Platform implementation.

func (b *Bot) OpenSignup(channelID string, signup games.Signup) (string, error) {
	embed := &discordgo.MessageEmbed{
		Title: fmt.Sprintf("Game of '%s' by %s", capitalize(signup.Game), signup.HostName),
		Description: fmt.Sprintf("Sign up by reacting %s to this message!\n%d Rounds\nMinimum Players: %d\nMaximum Players: %d",
			games.SignupEmoji, signup.Rounds, signup.Minimum, signup.Maximum),
		Color: rand.Intn(0x1000000),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Current Signups", Value: "None", Inline: true},
		},
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("React %s to close signups and start the game or react %s to cancel the game.\nOnly the host or server moderators can start or cancel the game.",
				games.StartEmoji, games.CancelEmoji),
		},
	}

	msg, err := b.session.ChannelMessageSendEmbed(channelID, embed)
	if err != nil {
		return "", err
	}
	for _, emoji := range []string{games.SignupEmoji, games.StartEmoji, games.CancelEmoji} {
		if err := b.session.MessageReactionAdd(channelID, msg.ID, emoji); err != nil {
			b.logger.Warn("signup reaction failed", zap.String("emoji", emoji), zap.Error(err))
		}
	}
	return msg.ID, nil
}

func (b *Bot) UpdateSignup(channelID, messageID string, participants []string) error {
	msg, err := b.session.ChannelMessage(channelID, messageID)
	if err != nil {
		return err
	}
	if len(msg.Embeds) == 0 || len(msg.Embeds[0].Fields) == 0 {
		return nil
	}

	value := "None"
	if len(participants) > 0 {
		value = strings.Join(participants, "\n")
	}
	embed := msg.Embeds[0]
	embed.Fields[0].Value = value
	_, err = b.session.ChannelMessageEditEmbed(channelID, messageID, embed)
	return err
}

func (b *Bot) Announce(channelID, message string) error {
	_, err := b.session.ChannelMessageSend(channelID, message)
	return err
}

func (b *Bot) entryEmbed(entry storage.ModLogEntry) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title: fmt.Sprintf("%s | %s", capitalize(entry.Kind), entry.User),
		Color: b.cfg.EmbedColors.Action,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Moderator", Value: "<@" + entry.ModeratorID + ">", Inline: true},
			{Name: "User", Value: "<@" + entry.UserID + ">", Inline: true},
			{Name: "Duration", Value: durationText(entry.Duration), Inline: true},
			{Name: "Reason", Value: entry.Reason, Inline: false},
		},
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("User ID: %s | %s", entry.UserID, entry.Timestamp.Format(time.RFC1123)),
		},
	}
}

func durationText(duration *int64) string {
	switch {
	case duration == nil:
		return "NA"
	case *duration == moderation.PermanentDuration:
		return "Forever"
	default:
		return fmt.Sprintf("%d Minutes", *duration)
	}
}

func capitalize(value string) string {
	if value == "" {
		return value
	}
	return strings.ToUpper(value[:1]) + value[1:]
}

func isNotFound(err error) bool {
	var restErr *discordgo.RESTError
	return errors.As(err, &restErr) && restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound
}
