package bot

import (
	"context"
	"sync"
	"time"

	"xenonbot/internal/config"
	"xenonbot/internal/games"
	"xenonbot/internal/moderation"
	"xenonbot/internal/storage"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

type Bot struct {
	cfg     config.Config
	logger  *zap.Logger
	store   *storage.Store
	mod     *moderation.Service
	games   *games.Manager
	session *discordgo.Session

	started     time.Time
	rebuildOnce sync.Once
}

func New(cfg config.Config, logger *zap.Logger, store *storage.Store, mod *moderation.Service, gamesMgr *games.Manager) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, err
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildBans |
		discordgo.IntentsGuildMessageReactions

	b := &Bot{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		mod:     mod,
		games:   gamesMgr,
		session: session,
	}
	mod.SetPlatform(b)
	gamesMgr.SetPlatform(b)
	return b, nil
}

func (b *Bot) Start() error {
	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onInteractionCreate)
	b.session.AddHandler(b.onReactionAdd)
	b.session.AddHandler(b.onReactionRemove)
	b.session.AddHandler(b.onGuildMemberRemove)

	if err := b.session.Open(); err != nil {
		return err
	}

	if err := b.registerCommands(); err != nil {
		return err
	}

	b.started = time.Now()
	return nil
}

func (b *Bot) Close() {
	if b.session != nil {
		_ = b.session.Close()
	}
}

func (b *Bot) onReady(session *discordgo.Session, event *discordgo.Ready) {
	b.logger.Info("discord ready", zap.String("user", session.State.User.Username))
	b.mod.SetIdentity(session.State.User.ID, session.State.User.Username)

	// Guild state is only populated once the gateway is ready, so the
	// scheduler rebuild waits until here.
	b.rebuildOnce.Do(func() {
		go func() {
			if err := b.mod.Rebuild(context.Background()); err != nil {
				b.logger.Error("scheduler rebuild failed", zap.Error(err))
			}
		}()
	})
}

func (b *Bot) onReactionAdd(session *discordgo.Session, event *discordgo.MessageReactionAdd) {
	if event.GuildID == "" || event.UserID == session.State.User.ID {
		return
	}

	user := games.Player{ID: event.UserID, Name: event.UserID}
	if event.Member != nil && event.Member.User != nil {
		user.Name = event.Member.User.Username
	}

	isModerator := false
	if perms, err := session.UserChannelPermissions(event.UserID, event.ChannelID); err == nil {
		isModerator = perms&discordgo.PermissionManageServer != 0
	}

	b.games.HandleReactionAdd(context.Background(), event.GuildID, event.MessageID, user, event.Emoji.Name, isModerator)
}

func (b *Bot) onReactionRemove(session *discordgo.Session, event *discordgo.MessageReactionRemove) {
	if event.GuildID == "" || event.UserID == session.State.User.ID {
		return
	}
	b.games.HandleReactionRemove(context.Background(), event.GuildID, event.MessageID, event.UserID, event.Emoji.Name)
}

func (b *Bot) onGuildMemberRemove(session *discordgo.Session, event *discordgo.GuildMemberRemove) {
	if event.GuildID == "" || event.User == nil {
		return
	}

	// The removal payload carries no roles and the state cache drops the
	// member before this handler runs; the service decides from its own
	// open mute entries.
	member := moderation.Actor{ID: event.User.ID, Name: event.User.String()}
	b.mod.HandleMemberRemove(context.Background(), event.GuildID, member, event.Roles)
}
