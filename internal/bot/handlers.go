package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"xenonbot/internal/games"
	"xenonbot/internal/moderation"

	"github.com/bwmarrin/discordgo"
	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
)

const messageLimit = 2000

func (b *Bot) onInteractionCreate(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if interaction.Type != discordgo.InteractionApplicationCommand {
		return
	}

	ctx := context.Background()
	actor := interactionActor(interaction)

	if actor.ID != "" {
		blacklisted, err := b.store.IsBlacklisted(ctx, actor.ID)
		if err != nil {
			b.logger.Warn("blacklist lookup failed", zap.Error(err))
		} else if blacklisted {
			b.respondText(session, interaction, "You are blacklisted from using this bot.", true)
			return
		}
	}

	if interaction.GuildID == "" {
		b.respondText(session, interaction, "This command can only be used in a server.", true)
		return
	}

	data := interaction.ApplicationCommandData()
	options := optionMap(data.Options)

	switch data.Name {
	case "warn":
		b.handleWarn(ctx, session, interaction, actor, options)
	case "kick":
		b.handleKick(ctx, session, interaction, actor, options)
	case "mute":
		b.handleMute(ctx, session, interaction, actor, options)
	case "unmute":
		b.handleUnmute(ctx, session, interaction, actor, options)
	case "ban":
		b.handleBan(ctx, session, interaction, actor, options)
	case "unban":
		b.handleUnban(ctx, session, interaction, actor, options)
	case "modnote":
		b.handleModnote(ctx, session, interaction, actor, options)
	case "modlog":
		b.handleModlog(ctx, session, interaction, options)
	case "modlogchannel":
		b.handleModlogChannel(ctx, session, interaction, options)
	case "muterole":
		b.handleMuteRole(ctx, session, interaction, options)
	case "blacklist":
		b.handleBlacklist(ctx, session, interaction, actor, options)
	case "gamechannel":
		b.handleGameChannel(ctx, session, interaction, options)
	case "signups":
		b.handleSignups(ctx, session, interaction, actor, options)
	case "gameend":
		b.handleGameEnd(ctx, session, interaction, options)
	case "scoreboard":
		b.handleScoreboard(ctx, session, interaction, actor, options)
	case "highscore":
		b.handleHighscore(ctx, session, interaction, options)
	case "changescore":
		b.handleChangeScore(ctx, session, interaction, options)
	case "uptime":
		b.handleUptime(session, interaction)
	}
}

func (b *Bot) handleWarn(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, actor moderation.Actor, options optionIndex) {
	target := options.user(session, "user")
	if target == nil {
		b.respondText(session, interaction, "No such user.", true)
		return
	}
	entry, err := b.mod.Warn(ctx, interaction.GuildID, actor, userActor(target), options.text("reason", "-"))
	if err != nil {
		b.reportError(session, interaction, err)
		return
	}
	b.respondEmbed(session, interaction, b.entryEmbed(entry), false)
}

func (b *Bot) handleKick(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, actor moderation.Actor, options optionIndex) {
	target := options.user(session, "user")
	if target == nil {
		b.respondText(session, interaction, "No such user.", true)
		return
	}
	entry, err := b.mod.Kick(ctx, interaction.GuildID, actor, userActor(target), options.text("reason", "-"))
	if err != nil {
		b.reportError(session, interaction, err)
		return
	}
	b.respondEmbed(session, interaction, b.entryEmbed(entry), false)
}

func (b *Bot) handleMute(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, actor moderation.Actor, options optionIndex) {
	target := options.user(session, "user")
	if target == nil {
		b.respondText(session, interaction, "No such user.", true)
		return
	}

	duration := moderation.PermanentDuration
	if raw := options.text("duration", ""); raw != "" {
		parsed, err := moderation.ParseDuration(raw)
		if err != nil {
			b.respondText(session, interaction, err.Error(), true)
			return
		}
		duration = parsed
	}

	entry, err := b.mod.Mute(ctx, interaction.GuildID, actor, userActor(target), duration, options.text("reason", "-"))
	if err != nil {
		b.reportError(session, interaction, err)
		return
	}
	b.respondEmbed(session, interaction, b.entryEmbed(entry), false)
}

func (b *Bot) handleUnmute(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, actor moderation.Actor, options optionIndex) {
	target := options.user(session, "user")
	if target == nil {
		b.respondText(session, interaction, "No such user.", true)
		return
	}
	entry, err := b.mod.Unmute(ctx, interaction.GuildID, actor, userActor(target), options.text("reason", "-"))
	if err != nil {
		b.reportError(session, interaction, err)
		return
	}
	b.respondEmbed(session, interaction, b.entryEmbed(entry), false)
}

func (b *Bot) handleBan(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, actor moderation.Actor, options optionIndex) {
	target := options.user(session, "user")
	if target == nil {
		b.respondText(session, interaction, "No such user.", true)
		return
	}

	duration := moderation.PermanentDuration
	if raw := options.text("duration", ""); raw != "" {
		parsed, err := moderation.ParseDuration(raw)
		if err != nil {
			b.respondText(session, interaction, err.Error(), true)
			return
		}
		duration = parsed
	}

	entry, err := b.mod.Ban(ctx, interaction.GuildID, actor, userActor(target), duration, options.text("reason", "-"))
	if err != nil {
		b.reportError(session, interaction, err)
		return
	}
	b.respondEmbed(session, interaction, b.entryEmbed(entry), false)
}

func (b *Bot) handleUnban(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, actor moderation.Actor, options optionIndex) {
	userID := options.text("user_id", "")
	if _, err := strconv.ParseUint(userID, 10, 64); err != nil {
		b.respondText(session, interaction, "Invalid ID. Unbans must be made with the ID of the user.", true)
		return
	}

	target := moderation.Actor{ID: userID, Name: userID}
	if user, err := session.User(userID); err == nil {
		target.Name = user.String()
	}

	entry, err := b.mod.Unban(ctx, interaction.GuildID, actor, target, options.text("reason", "-"))
	if err != nil {
		b.reportError(session, interaction, err)
		return
	}
	b.respondEmbed(session, interaction, b.entryEmbed(entry), false)
}

func (b *Bot) handleModnote(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, actor moderation.Actor, options optionIndex) {
	target := options.user(session, "user")
	if target == nil {
		b.respondText(session, interaction, "No such user.", true)
		return
	}
	entry, err := b.mod.Modnote(ctx, interaction.GuildID, actor, userActor(target), options.text("note", ""))
	if err != nil {
		b.reportError(session, interaction, err)
		return
	}
	b.respondEmbed(session, interaction, b.entryEmbed(entry), true)
}

func (b *Bot) handleModlog(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options optionIndex) {
	target := options.user(session, "user")
	if target == nil {
		b.respondText(session, interaction, "No such user.", true)
		return
	}
	number := int(options.integer("number", 5))
	filter := options.text("filter", "")

	entries, err := b.mod.Recent(ctx, interaction.GuildID, target.ID, number, filter)
	if err != nil {
		b.reportError(session, interaction, err)
		return
	}

	header := fmt.Sprintf("%d logs found for the user %s:", len(entries), target.String())
	if len(entries) == 1 {
		header = fmt.Sprintf("1 log found for the user %s:", target.String())
	}
	if filter != "" {
		header = strings.TrimSuffix(header, ":") + fmt.Sprintf(" with filter %s:", filter)
	}

	// Entries arrive newest first; display oldest at the top.
	lines := make([]string, 0, len(entries)+1)
	lines = append(lines, header)
	for i := len(entries) - 1; i >= 0; i-- {
		entry := entries[i]
		punishment := capitalize(entry.Kind)
		if entry.Duration != nil && *entry.Duration > 0 {
			punishment += fmt.Sprintf(" for %d minutes", *entry.Duration)
		}
		lines = append(lines, fmt.Sprintf("[%s] (%s) %s | %s - Reason: %s",
			humanize.Time(entry.Timestamp), entry.Moderator, punishment, entry.User, entry.Reason))
	}

	b.respondChunked(session, interaction, strings.Join(lines, "\n"))
}

func (b *Bot) handleModlogChannel(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options optionIndex) {
	if options.boolean("reset") {
		if err := b.store.SetModlogChannel(ctx, interaction.GuildID, ""); err != nil {
			b.reportError(session, interaction, err)
			return
		}
		b.respondText(session, interaction, "Modlog channel set to: None", false)
		return
	}

	channel := options.channel(session, "channel")
	if channel == nil {
		settings, err := b.store.GetGuildSettings(ctx, interaction.GuildID)
		if err != nil {
			b.reportError(session, interaction, err)
			return
		}
		value := "None"
		if settings.ModlogChannelID != "" {
			value = "<#" + settings.ModlogChannelID + ">"
		}
		b.respondText(session, interaction, "This server's modlog channel is set to: "+value, false)
		return
	}

	if err := b.store.SetModlogChannel(ctx, interaction.GuildID, channel.ID); err != nil {
		b.reportError(session, interaction, err)
		return
	}
	b.respondText(session, interaction, "Modlog channel set to: <#"+channel.ID+">", false)
}

func (b *Bot) handleMuteRole(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options optionIndex) {
	if options.boolean("reset") {
		if err := b.store.SetMuteRole(ctx, interaction.GuildID, ""); err != nil {
			b.reportError(session, interaction, err)
			return
		}
		b.respondText(session, interaction, "Mute role set to: None", false)
		return
	}

	role := options.role(session, interaction.GuildID, "role")
	if role == nil {
		settings, err := b.store.GetGuildSettings(ctx, interaction.GuildID)
		if err != nil {
			b.reportError(session, interaction, err)
			return
		}
		value := "None"
		if settings.MuteRoleID != "" {
			value = "<@&" + settings.MuteRoleID + ">"
		}
		b.respondText(session, interaction, "This server's mute role is set to: "+value, false)
		return
	}

	if err := b.store.SetMuteRole(ctx, interaction.GuildID, role.ID); err != nil {
		b.reportError(session, interaction, err)
		return
	}
	b.respondText(session, interaction, "Mute role set to: <@&"+role.ID+">", false)
}

func (b *Bot) handleBlacklist(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, actor moderation.Actor, options optionIndex) {
	if b.cfg.OwnerID == "" || actor.ID != b.cfg.OwnerID {
		b.respondText(session, interaction, "Only the bot owner can manage the blacklist.", true)
		return
	}

	switch options.text("action", "") {
	case "add":
		target := options.user(session, "user")
		if target == nil {
			b.respondText(session, interaction, "No such user.", true)
			return
		}
		if target.ID == b.cfg.OwnerID {
			b.respondText(session, interaction, "The owner of the bot cannot be blacklisted.", true)
			return
		}
		if err := b.store.AddBlacklist(ctx, target.ID); err != nil {
			b.reportError(session, interaction, err)
			return
		}
		b.respondText(session, interaction, target.String()+" is now blacklisted.", true)
	case "remove":
		target := options.user(session, "user")
		if target == nil {
			b.respondText(session, interaction, "No such user.", true)
			return
		}
		if err := b.store.RemoveBlacklist(ctx, target.ID); err != nil {
			b.reportError(session, interaction, err)
			return
		}
		b.respondText(session, interaction, target.String()+" is no longer blacklisted.", true)
	case "list":
		users, err := b.store.ListBlacklist(ctx)
		if err != nil {
			b.reportError(session, interaction, err)
			return
		}
		if len(users) == 0 {
			b.respondText(session, interaction, "The blacklist is empty.", true)
			return
		}
		mentions := make([]string, 0, len(users))
		for _, userID := range users {
			mentions = append(mentions, "<@"+userID+">")
		}
		b.respondText(session, interaction, "Blacklisted users: "+strings.Join(mentions, ", "), true)
	}
}

func (b *Bot) handleGameChannel(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options optionIndex) {
	channel := options.channel(session, "channel")
	if channel == nil {
		channelID, err := b.store.GameChannel(ctx, interaction.GuildID)
		if err != nil {
			b.reportError(session, interaction, err)
			return
		}
		if channelID == "" {
			b.respondText(session, interaction, "There is no games channel for this server.", false)
			return
		}
		b.respondText(session, interaction, "The current games channel is <#"+channelID+">.", false)
		return
	}

	if err := b.store.SetGameChannel(ctx, interaction.GuildID, channel.ID); err != nil {
		b.reportError(session, interaction, err)
		return
	}
	b.respondText(session, interaction, "The games channel is now set to <#"+channel.ID+">.", false)
}

func (b *Bot) handleSignups(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, actor moderation.Actor, options optionIndex) {
	signup := games.Signup{
		Game:     options.text("game", ""),
		HostName: actor.Name,
		Minimum:  int(options.integer("minimum", int64(b.cfg.Games.SignupMinimum))),
		Maximum:  int(options.integer("maximum", int64(b.cfg.Games.SignupMaximum))),
		Rounds:   int(options.integer("rounds", 1)),
	}

	if err := b.games.Open(ctx, interaction.GuildID, interaction.ChannelID, actor.ID, signup); err != nil {
		b.reportError(session, interaction, err)
		return
	}
	b.respondText(session, interaction, "Signups are open!", true)
}

func (b *Bot) handleGameEnd(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options optionIndex) {
	var winners []games.Player
	for _, name := range []string{"winner", "winner2", "winner3"} {
		if user := options.user(session, name); user != nil {
			winners = append(winners, games.Player{ID: user.ID, Name: user.String()})
		}
	}

	if err := b.games.Finish(ctx, interaction.GuildID, winners); err != nil {
		b.reportError(session, interaction, err)
		return
	}
	b.respondText(session, interaction, "Game ended.", true)
}

func (b *Bot) handleScoreboard(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, actor moderation.Actor, options optionIndex) {
	userID, name := actor.ID, actor.Name
	if user := options.user(session, "user"); user != nil {
		userID, name = user.ID, user.String()
	}

	score, err := b.store.Score(ctx, interaction.GuildID, userID)
	if err != nil {
		b.reportError(session, interaction, err)
		return
	}
	b.respondText(session, interaction, fmt.Sprintf("%s has a score of %d.", name, score), false)
}

func (b *Bot) handleHighscore(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options optionIndex) {
	count := int(options.integer("count", 5))
	if count < 1 {
		count = 1
	}
	if count > 9 {
		count = 9
	}

	scores, err := b.store.TopScores(ctx, interaction.GuildID, count)
	if err != nil {
		b.reportError(session, interaction, err)
		return
	}
	if len(scores) == 0 {
		b.respondText(session, interaction, "Nobody has a score yet.", false)
		return
	}

	lines := make([]string, 0, len(scores))
	for _, score := range scores {
		lines = append(lines, fmt.Sprintf("<@%s> - %d points", score.UserID, score.Score))
	}
	b.respondText(session, interaction, strings.Join(lines, "\n"), false)
}

func (b *Bot) handleChangeScore(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options optionIndex) {
	target := options.user(session, "user")
	if target == nil {
		b.respondText(session, interaction, "No such user.", true)
		return
	}

	score, err := b.store.AddScore(ctx, interaction.GuildID, target.ID, options.integer("points", 0))
	if err != nil {
		b.reportError(session, interaction, err)
		return
	}
	b.respondText(session, interaction, fmt.Sprintf("%s's score has been changed to %d.", target.String(), score), false)
}

func (b *Bot) handleUptime(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	embed := &discordgo.MessageEmbed{
		Title:       "Uptime",
		Description: fmt.Sprintf("Online since %s (%s).", b.started.Format(time.RFC1123), humanize.Time(b.started)),
		Color:       b.cfg.EmbedColors.Action,
	}
	b.respondEmbed(session, interaction, embed, false)
}

// reportError answers the moderator with domain errors verbatim and
// hides everything else behind a generic message.
func (b *Bot) reportError(session *discordgo.Session, interaction *discordgo.InteractionCreate, err error) {
	switch {
	case errors.Is(err, moderation.ErrNoMuteRole):
		b.respondText(session, interaction, "No mute role has been set for this server. Use /muterole for more information.", true)
	case errors.Is(err, moderation.ErrNotMuted),
		errors.Is(err, moderation.ErrNotBanned),
		errors.Is(err, moderation.ErrInvalidDuration),
		errors.Is(err, moderation.ErrNotFound),
		errors.Is(err, games.ErrGameInProgress),
		errors.Is(err, games.ErrNoGameChannel),
		errors.Is(err, games.ErrWrongChannel),
		errors.Is(err, games.ErrNoGame):
		b.respondText(session, interaction, capitalize(err.Error())+".", true)
	default:
		b.logger.Error("command failed", zap.Error(err))
		b.respondText(session, interaction, "Something went wrong while running that command.", true)
	}
}

func (b *Bot) respondText(session *discordgo.Session, interaction *discordgo.InteractionCreate, content string, ephemeral bool) {
	data := &discordgo.InteractionResponseData{Content: content}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	err := session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	})
	if err != nil {
		b.logger.Warn("interaction respond failed", zap.Error(err))
	}
}

func (b *Bot) respondEmbed(session *discordgo.Session, interaction *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, ephemeral bool) {
	data := &discordgo.InteractionResponseData{Embeds: []*discordgo.MessageEmbed{embed}}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	err := session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	})
	if err != nil {
		b.logger.Warn("interaction respond failed", zap.Error(err))
	}
}

// respondChunked splits long output over the initial response and
// follow-ups, cutting at line breaks or spaces.
func (b *Bot) respondChunked(session *discordgo.Session, interaction *discordgo.InteractionCreate, content string) {
	chunks := splitMessage(content, messageLimit)
	if len(chunks) == 0 {
		return
	}
	b.respondText(session, interaction, chunks[0], false)
	for _, chunk := range chunks[1:] {
		_, err := session.FollowupMessageCreate(interaction.Interaction, true, &discordgo.WebhookParams{Content: chunk})
		if err != nil {
			b.logger.Warn("followup failed", zap.Error(err))
			return
		}
	}
}

func splitMessage(content string, limit int) []string {
	var chunks []string
	for len(content) > limit {
		cut := strings.LastIndexByte(content[:limit], '\n')
		if cut <= 0 {
			cut = strings.LastIndexByte(content[:limit], ' ')
		}
		if cut <= 0 {
			cut = limit
		}
		chunks = append(chunks, content[:cut])
		content = strings.TrimLeft(content[cut:], "\n ")
	}
	if content != "" {
		chunks = append(chunks, content)
	}
	return chunks
}

type optionIndex map[string]*discordgo.ApplicationCommandInteractionDataOption

func optionMap(options []*discordgo.ApplicationCommandInteractionDataOption) optionIndex {
	index := make(optionIndex, len(options))
	for _, option := range options {
		index[option.Name] = option
	}
	return index
}

func (o optionIndex) text(name, fallback string) string {
	if option, ok := o[name]; ok {
		return option.StringValue()
	}
	return fallback
}

func (o optionIndex) integer(name string, fallback int64) int64 {
	if option, ok := o[name]; ok {
		return option.IntValue()
	}
	return fallback
}

func (o optionIndex) boolean(name string) bool {
	if option, ok := o[name]; ok {
		return option.BoolValue()
	}
	return false
}

func (o optionIndex) user(session *discordgo.Session, name string) *discordgo.User {
	if option, ok := o[name]; ok {
		return option.UserValue(session)
	}
	return nil
}

func (o optionIndex) channel(session *discordgo.Session, name string) *discordgo.Channel {
	if option, ok := o[name]; ok {
		return option.ChannelValue(session)
	}
	return nil
}

func (o optionIndex) role(session *discordgo.Session, guildID, name string) *discordgo.Role {
	if option, ok := o[name]; ok {
		return option.RoleValue(session, guildID)
	}
	return nil
}

func userActor(user *discordgo.User) moderation.Actor {
	return moderation.Actor{ID: user.ID, Name: user.String()}
}

func interactionActor(interaction *discordgo.InteractionCreate) moderation.Actor {
	if interaction.Member != nil && interaction.Member.User != nil {
		return moderation.Actor{ID: interaction.Member.User.ID, Name: interaction.Member.User.String()}
	}
	if interaction.User != nil {
		return moderation.Actor{ID: interaction.User.ID, Name: interaction.User.String()}
	}
	return moderation.Actor{}
}
