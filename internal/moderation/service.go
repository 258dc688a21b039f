package moderation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"xenonbot/internal/scheduler"
	"xenonbot/internal/storage"

	"go.uber.org/zap"
)

// Actor identifies a moderator or a moderated user by id and display
// name. The name is only used for the audit trail.
type Actor struct {
	ID   string
	Name string
}

// Platform is the slice of the chat platform the moderation service
// needs. The bot layer implements it over the gateway session; tests
// substitute a fake.
type Platform interface {
	GuildAvailable(guildID string) bool
	// MemberRoles returns the member's role ids, or ErrNotFound if the
	// user is not a member of the guild.
	MemberRoles(guildID, userID string) ([]string, error)
	AddRole(guildID, userID, roleID, reason string) error
	RemoveRole(guildID, userID, roleID, reason string) error
	Kick(guildID, userID, reason string) error
	Ban(guildID, userID, reason string) error
	Unban(guildID, userID, reason string) error
	IsBanned(guildID, userID string) (bool, error)
	SendLogEmbed(channelID string, entry storage.ModLogEntry) error
	NotifyUser(userID string, entry storage.ModLogEntry) error
}

// Service orchestrates moderation actions: every action is written to
// the modlog first, then broadcast and materialized on the platform,
// and timed punishments are handed to the scheduler for automatic
// reversal.
type Service struct {
	store    *storage.Store
	sched    *scheduler.Scheduler
	platform Platform
	clock    scheduler.Clock
	logger   *zap.Logger
	self     Actor
}

func NewService(store *storage.Store, sched *scheduler.Scheduler, logger *zap.Logger) *Service {
	return &Service{
		store:  store,
		sched:  sched,
		clock:  scheduler.RealClock(),
		logger: logger,
	}
}

// SetPlatform must be called before any action handler runs.
func (s *Service) SetPlatform(platform Platform) {
	s.platform = platform
}

func (s *Service) WithClock(clock scheduler.Clock) {
	s.clock = clock
}

// SetIdentity records the bot's own identity, used as the moderator on
// automatic reversals. Must be set before Rebuild.
func (s *Service) SetIdentity(id, name string) {
	s.self = Actor{ID: id, Name: name}
}

// Warn logs a warning. No scheduler interaction.
func (s *Service) Warn(ctx context.Context, guildID string, actor, target Actor, reason string) (storage.ModLogEntry, error) {
	return s.log(ctx, guildID, actor, target, ActionWarn, reason, nil, true, true)
}

// Kick cancels any pending timed punishment for the target, logs the
// kick and requests the removal.
func (s *Service) Kick(ctx context.Context, guildID string, actor, target Actor, reason string) (storage.ModLogEntry, error) {
	s.cancelTracked(ctx, guildID, target.ID)
	entry, err := s.log(ctx, guildID, actor, target, ActionKick, reason, nil, true, true)
	if err != nil {
		return entry, err
	}
	if err := s.platform.Kick(guildID, target.ID, reason); err != nil {
		return entry, fmt.Errorf("kick %s: %w", target.ID, err)
	}
	return entry, nil
}

// Mute grants the configured mute role. duration is in minutes, or
// PermanentDuration for an open-ended mute. A mute on an already muted
// user supersedes the previous one and resets the timer.
func (s *Service) Mute(ctx context.Context, guildID string, actor, target Actor, duration int64, reason string) (storage.ModLogEntry, error) {
	if duration != PermanentDuration && duration <= 0 {
		return storage.ModLogEntry{}, fmt.Errorf("%w: duration must be positive or permanent", ErrInvalidDuration)
	}

	settings, err := s.store.GetGuildSettings(ctx, guildID)
	if err != nil {
		return storage.ModLogEntry{}, err
	}
	if settings.MuteRoleID == "" {
		return storage.ModLogEntry{}, ErrNoMuteRole
	}

	s.cancelTracked(ctx, guildID, target.ID)

	entry, err := s.log(ctx, guildID, actor, target, ActionMute, reason, &duration, true, true)
	if err != nil {
		return entry, err
	}
	if err := s.platform.AddRole(guildID, target.ID, settings.MuteRoleID, reason); err != nil {
		return entry, fmt.Errorf("grant mute role: %w", err)
	}

	if duration > 0 {
		fireAt := s.clock.Now().Add(time.Duration(duration) * time.Minute)
		s.sched.Schedule(guildID, target.ID, fireAt, func() error {
			return s.autoUnmute(guildID, target, duration)
		})
	}
	return entry, nil
}

// Unmute reverses a mute. Fails with ErrNotMuted when the target does
// not hold the mute role.
func (s *Service) Unmute(ctx context.Context, guildID string, actor, target Actor, reason string) (storage.ModLogEntry, error) {
	settings, err := s.store.GetGuildSettings(ctx, guildID)
	if err != nil {
		return storage.ModLogEntry{}, err
	}
	if settings.MuteRoleID == "" {
		return storage.ModLogEntry{}, ErrNoMuteRole
	}

	roles, err := s.platform.MemberRoles(guildID, target.ID)
	if err != nil {
		return storage.ModLogEntry{}, fmt.Errorf("resolve member: %w", err)
	}
	if !contains(roles, settings.MuteRoleID) {
		return storage.ModLogEntry{}, ErrNotMuted
	}

	if err := s.store.MarkComplete(ctx, guildID, target.ID); err != nil {
		return storage.ModLogEntry{}, err
	}
	entry, err := s.log(ctx, guildID, actor, target, ActionUnmute, reason, nil, true, true)
	if err != nil {
		return entry, err
	}
	if err := s.platform.RemoveRole(guildID, target.ID, settings.MuteRoleID, reason); err != nil {
		return entry, fmt.Errorf("revoke mute role: %w", err)
	}
	s.sched.Cancel(guildID, target.ID)
	return entry, nil
}

// Ban bans the target. duration semantics match Mute.
func (s *Service) Ban(ctx context.Context, guildID string, actor, target Actor, duration int64, reason string) (storage.ModLogEntry, error) {
	if duration != PermanentDuration && duration <= 0 {
		return storage.ModLogEntry{}, fmt.Errorf("%w: duration must be positive or permanent", ErrInvalidDuration)
	}

	s.cancelTracked(ctx, guildID, target.ID)

	entry, err := s.log(ctx, guildID, actor, target, ActionBan, reason, &duration, true, true)
	if err != nil {
		return entry, err
	}
	if err := s.platform.Ban(guildID, target.ID, reason); err != nil {
		return entry, fmt.Errorf("ban %s: %w", target.ID, err)
	}

	if duration > 0 {
		fireAt := s.clock.Now().Add(time.Duration(duration) * time.Minute)
		s.sched.Schedule(guildID, target.ID, fireAt, func() error {
			return s.autoUnban(guildID, target, duration)
		})
	}
	return entry, nil
}

// Unban reverses a ban. Fails with ErrNotBanned when no ban record
// exists for the target.
func (s *Service) Unban(ctx context.Context, guildID string, actor, target Actor, reason string) (storage.ModLogEntry, error) {
	banned, err := s.platform.IsBanned(guildID, target.ID)
	if err != nil {
		return storage.ModLogEntry{}, fmt.Errorf("resolve ban: %w", err)
	}
	if !banned {
		return storage.ModLogEntry{}, ErrNotBanned
	}

	if err := s.store.MarkComplete(ctx, guildID, target.ID); err != nil {
		return storage.ModLogEntry{}, err
	}
	entry, err := s.log(ctx, guildID, actor, target, ActionUnban, reason, nil, true, false)
	if err != nil {
		return entry, err
	}
	if err := s.platform.Unban(guildID, target.ID, reason); err != nil {
		return entry, fmt.Errorf("unban %s: %w", target.ID, err)
	}
	s.sched.Cancel(guildID, target.ID)
	return entry, nil
}

// Modnote records a note in the modlog without broadcasting it. Notes
// only surface through Recent.
func (s *Service) Modnote(ctx context.Context, guildID string, actor, target Actor, note string) (storage.ModLogEntry, error) {
	return s.log(ctx, guildID, actor, target, ActionModnote, note, nil, false, false)
}

// Recent returns the most recent log entries for the target, filtered
// by a case-insensitive substring match on kind or reason.
func (s *Service) Recent(ctx context.Context, guildID, userID string, limit int, filter string) ([]storage.ModLogEntry, error) {
	if limit <= 0 {
		limit = 5
	}
	return s.store.RecentModLog(ctx, guildID, userID, limit, filter)
}

// HandleMemberRemove ends any tracked punishment for a member that
// left or was removed. Muted members get a closing unmute entry; there
// is nothing left to revoke, so no platform call. The removal event
// carries no roles and the state cache is purged before it reaches us,
// so whether the member was muted is read from the open mute entries,
// with the roles slice kept as a fast path for callers that have it.
func (s *Service) HandleMemberRemove(ctx context.Context, guildID string, member Actor, roleIDs []string) {
	muted, err := s.store.HasIncomplete(ctx, guildID, member.ID, string(ActionMute))
	if err != nil {
		s.logger.Warn("modlog lookup failed", zap.String("guild_id", guildID), zap.Error(err))
	}

	s.cancelTracked(ctx, guildID, member.ID)

	if !muted {
		settings, err := s.store.GetGuildSettings(ctx, guildID)
		if err != nil {
			s.logger.Warn("settings lookup failed", zap.String("guild_id", guildID), zap.Error(err))
			return
		}
		if settings.MuteRoleID == "" || !contains(roleIDs, settings.MuteRoleID) {
			return
		}
	}
	if err := s.store.MarkComplete(ctx, guildID, member.ID); err != nil {
		s.logger.Warn("mark complete failed", zap.String("guild_id", guildID), zap.Error(err))
	}
	if _, err := s.log(ctx, guildID, s.self, member, ActionUnmute, "User left the server.", nil, true, false); err != nil {
		s.logger.Warn("member remove log failed", zap.String("guild_id", guildID), zap.Error(err))
	}
}

// Rebuild scans incomplete timed entries at startup and reschedules
// their reversal. Entries whose guild or target can no longer be
// resolved are marked complete and dropped.
func (s *Service) Rebuild(ctx context.Context) error {
	entries, err := s.store.IncompleteModLog(ctx)
	if err != nil {
		return err
	}

	scheduled := 0
	for _, entry := range entries {
		if entry.Duration == nil || *entry.Duration <= 0 {
			continue
		}
		action := Action(entry.Kind)
		if action != ActionMute && action != ActionBan {
			continue
		}

		if !s.resolvable(entry.GuildID, entry.UserID) {
			if err := s.store.MarkComplete(ctx, entry.GuildID, entry.UserID); err != nil {
				return err
			}
			continue
		}

		target := Actor{ID: entry.UserID, Name: entry.User}
		duration := *entry.Duration
		fireAt := entry.Timestamp.Add(time.Duration(duration) * time.Minute)

		var undo func() error
		switch action {
		case ActionMute:
			undo = func() error { return s.autoUnmute(entry.GuildID, target, duration) }
		case ActionBan:
			undo = func() error { return s.autoUnban(entry.GuildID, target, duration) }
		}
		s.sched.Schedule(entry.GuildID, entry.UserID, fireAt, undo)
		scheduled++
	}

	s.logger.Info("punishment scheduler rebuilt", zap.Int("scheduled", scheduled))
	return nil
}

func (s *Service) resolvable(guildID, userID string) bool {
	if !s.platform.GuildAvailable(guildID) {
		return false
	}
	if _, err := s.platform.MemberRoles(guildID, userID); err == nil {
		return true
	}
	banned, err := s.platform.IsBanned(guildID, userID)
	return err == nil && banned
}

func (s *Service) autoUnmute(guildID string, target Actor, duration int64) error {
	ctx := context.Background()

	settings, err := s.store.GetGuildSettings(ctx, guildID)
	if err != nil {
		return err
	}
	if settings.MuteRoleID == "" {
		return s.resolveSilently(ctx, guildID, target.ID, "mute role no longer set")
	}

	roles, err := s.platform.MemberRoles(guildID, target.ID)
	if errors.Is(err, ErrNotFound) {
		return s.resolveSilently(ctx, guildID, target.ID, "member gone")
	}
	if err != nil {
		return fmt.Errorf("resolve member: %w", err)
	}
	if !contains(roles, settings.MuteRoleID) {
		return s.resolveSilently(ctx, guildID, target.ID, "mute role already removed")
	}

	if err := s.store.MarkComplete(ctx, guildID, target.ID); err != nil {
		return err
	}
	reason := fmt.Sprintf("Automatic unmute after %d minutes.", duration)
	if _, err := s.log(ctx, guildID, s.self, target, ActionUnmute, reason, nil, true, true); err != nil {
		return err
	}
	return s.platform.RemoveRole(guildID, target.ID, settings.MuteRoleID, reason)
}

func (s *Service) autoUnban(guildID string, target Actor, duration int64) error {
	ctx := context.Background()

	banned, err := s.platform.IsBanned(guildID, target.ID)
	if errors.Is(err, ErrNotFound) || (err == nil && !banned) {
		return s.resolveSilently(ctx, guildID, target.ID, "ban record gone")
	}
	if err != nil {
		return fmt.Errorf("resolve ban: %w", err)
	}

	if err := s.store.MarkComplete(ctx, guildID, target.ID); err != nil {
		return err
	}
	reason := fmt.Sprintf("Automatic unban after %d minutes.", duration)
	if _, err := s.log(ctx, guildID, s.self, target, ActionUnban, reason, nil, true, false); err != nil {
		return err
	}
	return s.platform.Unban(guildID, target.ID, reason)
}

// resolveSilently closes out an entry whose original audience is gone.
func (s *Service) resolveSilently(ctx context.Context, guildID, userID, detail string) error {
	s.logger.Info("punishment already resolved",
		zap.String("guild_id", guildID),
		zap.String("user_id", userID),
		zap.String("detail", detail))
	return s.store.MarkComplete(ctx, guildID, userID)
}

// cancelTracked drops the pending timer for the pair, if any, and
// completes its log entries. A kicked, re-muted or re-banned user's
// old timer is meaningless.
func (s *Service) cancelTracked(ctx context.Context, guildID, userID string) {
	if !s.sched.Cancel(guildID, userID) {
		return
	}
	if err := s.store.MarkComplete(ctx, guildID, userID); err != nil {
		s.logger.Warn("mark complete failed",
			zap.String("guild_id", guildID),
			zap.String("user_id", userID),
			zap.Error(err))
	}
}

func (s *Service) log(ctx context.Context, guildID string, actor, target Actor, action Action, reason string, duration *int64, broadcast, notifyUser bool) (storage.ModLogEntry, error) {
	entry := storage.ModLogEntry{
		GuildID:     guildID,
		Moderator:   actor.Name,
		ModeratorID: actor.ID,
		User:        target.Name,
		UserID:      target.ID,
		Timestamp:   s.clock.Now(),
		Kind:        string(action),
		Duration:    duration,
		Reason:      reason,
	}
	id, err := s.store.AppendModLog(ctx, entry)
	if err != nil {
		return entry, fmt.Errorf("append modlog: %w", err)
	}
	entry.ID = id

	if broadcast {
		s.broadcast(ctx, guildID, entry, notifyUser)
	}
	return entry, nil
}

func (s *Service) broadcast(ctx context.Context, guildID string, entry storage.ModLogEntry, notifyUser bool) {
	settings, err := s.store.GetGuildSettings(ctx, guildID)
	if err != nil {
		s.logger.Warn("settings lookup failed", zap.String("guild_id", guildID), zap.Error(err))
	} else if settings.ModlogChannelID != "" {
		if err := s.platform.SendLogEmbed(settings.ModlogChannelID, entry); err != nil {
			s.logger.Warn("modlog broadcast failed",
				zap.String("guild_id", guildID),
				zap.String("channel_id", settings.ModlogChannelID),
				zap.Error(err))
		}
	}
	if notifyUser {
		// DMs regularly fail for users with closed DMs, not a fault.
		if err := s.platform.NotifyUser(entry.UserID, entry); err != nil {
			s.logger.Debug("user notify failed", zap.String("user_id", entry.UserID), zap.Error(err))
		}
	}
}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}
