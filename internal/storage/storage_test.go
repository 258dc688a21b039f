package storage

import (
	"context"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(store.Close)

	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func TestGuildSettingsUpsert(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	settings, err := store.GetGuildSettings(ctx, "g1")
	if err != nil {
		t.Fatalf("get settings: %v", err)
	}
	if settings.ModlogChannelID != "" || settings.MuteRoleID != "" {
		t.Fatalf("expected empty settings for unknown guild, got %+v", settings)
	}

	if err := store.SetModlogChannel(ctx, "g1", "c1"); err != nil {
		t.Fatalf("set modlog channel: %v", err)
	}
	if err := store.SetMuteRole(ctx, "g1", "r1"); err != nil {
		t.Fatalf("set mute role: %v", err)
	}

	settings, err = store.GetGuildSettings(ctx, "g1")
	if err != nil {
		t.Fatalf("get settings: %v", err)
	}
	if settings.ModlogChannelID != "c1" || settings.MuteRoleID != "r1" {
		t.Fatalf("unexpected settings %+v", settings)
	}

	// Resetting one field must not disturb the other.
	if err := store.SetModlogChannel(ctx, "g1", ""); err != nil {
		t.Fatalf("reset modlog channel: %v", err)
	}
	settings, err = store.GetGuildSettings(ctx, "g1")
	if err != nil {
		t.Fatalf("get settings: %v", err)
	}
	if settings.ModlogChannelID != "" {
		t.Fatalf("expected cleared channel, got %q", settings.ModlogChannelID)
	}
	if settings.MuteRoleID != "r1" {
		t.Fatalf("expected mute role kept, got %q", settings.MuteRoleID)
	}
}

func TestBlacklist(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	listed, err := store.IsBlacklisted(ctx, "u1")
	if err != nil {
		t.Fatalf("is blacklisted: %v", err)
	}
	if listed {
		t.Fatalf("expected u1 not blacklisted")
	}

	if err := store.AddBlacklist(ctx, "u1"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := store.AddBlacklist(ctx, "u1"); err != nil {
		t.Fatalf("add twice: %v", err)
	}
	if err := store.AddBlacklist(ctx, "u2"); err != nil {
		t.Fatalf("add: %v", err)
	}

	listed, err = store.IsBlacklisted(ctx, "u1")
	if err != nil {
		t.Fatalf("is blacklisted: %v", err)
	}
	if !listed {
		t.Fatalf("expected u1 blacklisted")
	}

	users, err := store.ListBlacklist(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %v", users)
	}

	if err := store.RemoveBlacklist(ctx, "u1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	listed, err = store.IsBlacklisted(ctx, "u1")
	if err != nil {
		t.Fatalf("is blacklisted: %v", err)
	}
	if listed {
		t.Fatalf("expected u1 removed")
	}
}

func TestModLogRecentAndFilter(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Unix(1000, 0)
	duration := int64(30)
	entries := []ModLogEntry{
		{GuildID: "g1", Moderator: "mod", ModeratorID: "m1", User: "alice", UserID: "u1", Timestamp: base, Kind: "warn", Reason: "spamming"},
		{GuildID: "g1", Moderator: "mod", ModeratorID: "m1", User: "alice", UserID: "u1", Timestamp: base.Add(time.Minute), Kind: "mute", Duration: &duration, Reason: "kept spamming"},
		{GuildID: "g1", Moderator: "mod", ModeratorID: "m1", User: "alice", UserID: "u1", Timestamp: base.Add(2 * time.Minute), Kind: "kick", Reason: "enough"},
		{GuildID: "g1", Moderator: "mod", ModeratorID: "m1", User: "bob", UserID: "u2", Timestamp: base, Kind: "warn", Reason: "other user"},
		{GuildID: "g2", Moderator: "mod", ModeratorID: "m1", User: "alice", UserID: "u1", Timestamp: base, Kind: "ban", Reason: "other guild"},
	}
	for _, entry := range entries {
		if _, err := store.AppendModLog(ctx, entry); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	got, err := store.RecentModLog(ctx, "g1", "u1", 10, "")
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got))
	}
	if got[0].Kind != "kick" || got[2].Kind != "warn" {
		t.Fatalf("expected newest first, got %s..%s", got[0].Kind, got[2].Kind)
	}
	if got[1].Duration == nil || *got[1].Duration != 30 {
		t.Fatalf("expected duration 30 on mute entry, got %v", got[1].Duration)
	}

	got, err = store.RecentModLog(ctx, "g1", "u1", 10, "SPAM")
	if err != nil {
		t.Fatalf("recent filtered: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 spam entries, got %d", len(got))
	}

	got, err = store.RecentModLog(ctx, "g1", "u1", 1, "")
	if err != nil {
		t.Fatalf("recent limited: %v", err)
	}
	if len(got) != 1 || got[0].Kind != "kick" {
		t.Fatalf("expected single newest entry, got %v", got)
	}
}

func TestMarkCompleteAndIncomplete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	duration := int64(60)
	permanent := int64(-1)
	base := time.Unix(1000, 0)
	if _, err := store.AppendModLog(ctx, ModLogEntry{GuildID: "g1", UserID: "u1", User: "alice", Timestamp: base, Kind: "mute", Duration: &duration}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := store.AppendModLog(ctx, ModLogEntry{GuildID: "g1", UserID: "u2", User: "bob", Timestamp: base.Add(time.Minute), Kind: "ban", Duration: &permanent}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := store.AppendModLog(ctx, ModLogEntry{GuildID: "g1", UserID: "u3", User: "carol", Timestamp: base, Kind: "warn", Complete: true}); err != nil {
		t.Fatalf("append: %v", err)
	}

	incomplete, err := store.IncompleteModLog(ctx)
	if err != nil {
		t.Fatalf("incomplete: %v", err)
	}
	if len(incomplete) != 2 {
		t.Fatalf("expected 2 incomplete entries, got %d", len(incomplete))
	}
	if incomplete[0].UserID != "u1" {
		t.Fatalf("expected oldest first, got %s", incomplete[0].UserID)
	}

	open, err := store.HasIncomplete(ctx, "g1", "u1", "mute")
	if err != nil {
		t.Fatalf("has incomplete: %v", err)
	}
	if !open {
		t.Fatalf("expected open mute for u1")
	}
	open, err = store.HasIncomplete(ctx, "g1", "u1", "ban")
	if err != nil {
		t.Fatalf("has incomplete: %v", err)
	}
	if open {
		t.Fatalf("expected no open ban for u1")
	}

	if err := store.MarkComplete(ctx, "g1", "u1"); err != nil {
		t.Fatalf("mark complete: %v", err)
	}
	if err := store.MarkComplete(ctx, "g1", "u1"); err != nil {
		t.Fatalf("mark complete twice: %v", err)
	}

	open, err = store.HasIncomplete(ctx, "g1", "u1", "mute")
	if err != nil {
		t.Fatalf("has incomplete: %v", err)
	}
	if open {
		t.Fatalf("expected mute closed for u1")
	}

	incomplete, err = store.IncompleteModLog(ctx)
	if err != nil {
		t.Fatalf("incomplete: %v", err)
	}
	if len(incomplete) != 1 || incomplete[0].UserID != "u2" {
		t.Fatalf("expected only u2 left, got %v", incomplete)
	}
}

func TestGameScores(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	channel, err := store.GameChannel(ctx, "g1")
	if err != nil {
		t.Fatalf("game channel: %v", err)
	}
	if channel != "" {
		t.Fatalf("expected no channel, got %q", channel)
	}
	if err := store.SetGameChannel(ctx, "g1", "c1"); err != nil {
		t.Fatalf("set channel: %v", err)
	}
	if err := store.SetGameChannel(ctx, "g1", "c2"); err != nil {
		t.Fatalf("replace channel: %v", err)
	}
	channel, err = store.GameChannel(ctx, "g1")
	if err != nil {
		t.Fatalf("game channel: %v", err)
	}
	if channel != "c2" {
		t.Fatalf("expected c2, got %q", channel)
	}

	score, err := store.AddScore(ctx, "g1", "u1", 1)
	if err != nil {
		t.Fatalf("add score: %v", err)
	}
	if score != 1 {
		t.Fatalf("expected score 1, got %d", score)
	}
	score, err = store.AddScore(ctx, "g1", "u1", 4)
	if err != nil {
		t.Fatalf("add score: %v", err)
	}
	if score != 5 {
		t.Fatalf("expected score 5, got %d", score)
	}
	score, err = store.AddScore(ctx, "g1", "u1", -2)
	if err != nil {
		t.Fatalf("subtract score: %v", err)
	}
	if score != 3 {
		t.Fatalf("expected score 3, got %d", score)
	}

	if _, err := store.AddScore(ctx, "g1", "u2", 1); err != nil {
		t.Fatalf("add score: %v", err)
	}
	top, err := store.TopScores(ctx, "g1", 5)
	if err != nil {
		t.Fatalf("top scores: %v", err)
	}
	if len(top) != 2 || top[0].UserID != "u1" || top[0].Score != 3 {
		t.Fatalf("unexpected top scores %v", top)
	}
}
