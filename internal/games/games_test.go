package games

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"xenonbot/internal/storage"

	"go.uber.org/zap"
)

type fakeTimer struct {
	stop bool
	fn   func()
}

func (t *fakeTimer) Stop() bool {
	t.stop = true
	return true
}

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func (f *fakeClock) Now() time.Time { return f.now }

func (f *fakeClock) AfterFunc(d time.Duration, fn func()) Timer {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &fakeTimer{fn: fn}
	f.timers = append(f.timers, t)
	return t
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	pending := append([]*fakeTimer{}, f.timers...)
	f.timers = nil
	f.mu.Unlock()
	for _, timer := range pending {
		timer.fn()
	}
}

type fakeGamePlatform struct {
	mu       sync.Mutex
	nextID   int
	openErr  error
	updates  [][]string
	messages []string
}

func (p *fakeGamePlatform) OpenSignup(channelID string, signup Signup) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.openErr != nil {
		return "", p.openErr
	}
	p.nextID++
	return fmt.Sprintf("msg-%d", p.nextID), nil
}

func (p *fakeGamePlatform) UpdateSignup(channelID, messageID string, participants []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updates = append(p.updates, append([]string{}, participants...))
	return nil
}

func (p *fakeGamePlatform) Announce(channelID, message string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, message)
	return nil
}

func (p *fakeGamePlatform) lastMessage() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.messages) == 0 {
		return ""
	}
	return p.messages[len(p.messages)-1]
}

func newTestManager(t *testing.T) (*Manager, *fakeGamePlatform, *fakeClock, *storage.Store) {
	t.Helper()
	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := store.SetGameChannel(context.Background(), "g1", "c-games"); err != nil {
		t.Fatalf("set game channel: %v", err)
	}

	clock := &fakeClock{now: time.Unix(0, 0)}
	platform := &fakeGamePlatform{}
	manager := NewManager(store, zap.NewNop(), 3*time.Second)
	manager.WithClock(clock)
	manager.SetPlatform(platform)
	return manager, platform, clock, store
}

func openGame(t *testing.T, manager *Manager, signup Signup) string {
	t.Helper()
	if err := manager.Open(context.Background(), "g1", "c-games", "host1", signup); err != nil {
		t.Fatalf("open: %v", err)
	}
	return "msg-1"
}

func TestOpenChecksChannel(t *testing.T) {
	manager, _, _, _ := newTestManager(t)
	ctx := context.Background()

	err := manager.Open(ctx, "g1", "c-other", "host1", Signup{Game: "uno"})
	if !errors.Is(err, ErrWrongChannel) {
		t.Fatalf("expected ErrWrongChannel, got %v", err)
	}

	err = manager.Open(ctx, "g2", "c-games", "host1", Signup{Game: "uno"})
	if !errors.Is(err, ErrNoGameChannel) {
		t.Fatalf("expected ErrNoGameChannel, got %v", err)
	}
}

func TestOnlyOneGamePerGuild(t *testing.T) {
	manager, _, _, _ := newTestManager(t)
	ctx := context.Background()

	openGame(t, manager, Signup{Game: "uno"})
	err := manager.Open(ctx, "g1", "c-games", "host2", Signup{Game: "chess"})
	if !errors.Is(err, ErrGameInProgress) {
		t.Fatalf("expected ErrGameInProgress, got %v", err)
	}
}

func TestOpenRollsBackOnPlatformError(t *testing.T) {
	manager, platform, _, _ := newTestManager(t)
	ctx := context.Background()

	platform.openErr = errors.New("boom")
	if err := manager.Open(ctx, "g1", "c-games", "host1", Signup{Game: "uno"}); err == nil {
		t.Fatalf("expected error")
	}

	platform.openErr = nil
	if err := manager.Open(ctx, "g1", "c-games", "host1", Signup{Game: "uno"}); err != nil {
		t.Fatalf("expected reopen after failure, got %v", err)
	}
}

func TestSignupsDebounced(t *testing.T) {
	manager, platform, clock, _ := newTestManager(t)
	ctx := context.Background()
	messageID := openGame(t, manager, Signup{Game: "uno"})

	manager.HandleReactionAdd(ctx, "g1", messageID, Player{ID: "u1", Name: "alice"}, SignupEmoji, false)
	manager.HandleReactionAdd(ctx, "g1", messageID, Player{ID: "u2", Name: "bob"}, SignupEmoji, false)
	manager.HandleReactionAdd(ctx, "g1", messageID, Player{ID: "u1", Name: "alice"}, SignupEmoji, false)

	if len(platform.updates) != 0 {
		t.Fatalf("expected edit deferred, got %v", platform.updates)
	}

	clock.Advance(3 * time.Second)

	if len(platform.updates) != 1 {
		t.Fatalf("expected a single coalesced edit, got %d", len(platform.updates))
	}
	if strings.Join(platform.updates[0], ",") != "alice,bob" {
		t.Fatalf("unexpected roster %v", platform.updates[0])
	}

	roster := manager.Participants("g1")
	if len(roster) != 2 {
		t.Fatalf("expected deduped roster, got %v", roster)
	}
}

func TestReactionRemoveWithdraws(t *testing.T) {
	manager, platform, clock, _ := newTestManager(t)
	ctx := context.Background()
	messageID := openGame(t, manager, Signup{Game: "uno"})

	manager.HandleReactionAdd(ctx, "g1", messageID, Player{ID: "u1", Name: "alice"}, SignupEmoji, false)
	manager.HandleReactionRemove(ctx, "g1", messageID, "u1", SignupEmoji)
	clock.Advance(3 * time.Second)

	if len(platform.updates) == 0 {
		t.Fatalf("expected an edit")
	}
	last := platform.updates[len(platform.updates)-1]
	if len(last) != 0 {
		t.Fatalf("expected empty roster, got %v", last)
	}
}

func TestStartRequiresMinimum(t *testing.T) {
	manager, platform, _, _ := newTestManager(t)
	ctx := context.Background()
	messageID := openGame(t, manager, Signup{Game: "uno", Minimum: 2})

	manager.HandleReactionAdd(ctx, "g1", messageID, Player{ID: "u1", Name: "alice"}, SignupEmoji, false)
	manager.HandleReactionAdd(ctx, "g1", messageID, Player{ID: "host1", Name: "host"}, StartEmoji, false)

	if !strings.Contains(platform.lastMessage(), "does not meet the requirement") {
		t.Fatalf("expected rejection, got %q", platform.lastMessage())
	}
	if !manager.SignupOpen("g1") {
		t.Fatalf("expected signups still open")
	}
}

func TestStartOnlyByHostOrModerator(t *testing.T) {
	manager, platform, _, _ := newTestManager(t)
	ctx := context.Background()
	messageID := openGame(t, manager, Signup{Game: "uno", Minimum: 1})

	manager.HandleReactionAdd(ctx, "g1", messageID, Player{ID: "u1", Name: "alice"}, SignupEmoji, false)

	// A plain player cannot start the game.
	manager.HandleReactionAdd(ctx, "g1", messageID, Player{ID: "u1", Name: "alice"}, StartEmoji, false)
	if !manager.SignupOpen("g1") {
		t.Fatalf("expected signups still open")
	}

	// A moderator can, even without being the host.
	manager.HandleReactionAdd(ctx, "g1", messageID, Player{ID: "u2", Name: "staff"}, StartEmoji, true)
	if manager.SignupOpen("g1") {
		t.Fatalf("expected game running")
	}
	if !strings.Contains(platform.lastMessage(), "Starting game with 1 players") {
		t.Fatalf("unexpected announcement %q", platform.lastMessage())
	}
}

func TestCancelReopens(t *testing.T) {
	manager, platform, _, _ := newTestManager(t)
	ctx := context.Background()
	messageID := openGame(t, manager, Signup{Game: "uno"})

	manager.HandleReactionAdd(ctx, "g1", messageID, Player{ID: "host1", Name: "host"}, CancelEmoji, false)
	if !strings.Contains(platform.lastMessage(), "Game cancelled by host") {
		t.Fatalf("unexpected announcement %q", platform.lastMessage())
	}

	if err := manager.Open(ctx, "g1", "c-games", "host1", Signup{Game: "chess"}); err != nil {
		t.Fatalf("expected reopen after cancel, got %v", err)
	}
}

func TestFinishAwardsPoints(t *testing.T) {
	manager, platform, _, store := newTestManager(t)
	ctx := context.Background()
	messageID := openGame(t, manager, Signup{Game: "uno", Minimum: 1})

	if err := manager.Finish(ctx, "g1", nil); !errors.Is(err, ErrNoGame) {
		t.Fatalf("expected ErrNoGame before start, got %v", err)
	}

	manager.HandleReactionAdd(ctx, "g1", messageID, Player{ID: "u1", Name: "alice"}, SignupEmoji, false)
	manager.HandleReactionAdd(ctx, "g1", messageID, Player{ID: "host1", Name: "host"}, StartEmoji, false)

	winners := []Player{{ID: "u1", Name: "alice"}}
	if err := manager.Finish(ctx, "g1", winners); err != nil {
		t.Fatalf("finish: %v", err)
	}
	if !strings.Contains(platform.lastMessage(), "Winners: alice") {
		t.Fatalf("unexpected announcement %q", platform.lastMessage())
	}

	score, err := store.Score(ctx, "g1", "u1")
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if score != 1 {
		t.Fatalf("expected 1 point, got %d", score)
	}

	if err := manager.Open(ctx, "g1", "c-games", "host1", Signup{Game: "chess"}); err != nil {
		t.Fatalf("expected reopen after finish, got %v", err)
	}
}

func TestStaleEditSkipped(t *testing.T) {
	manager, platform, clock, _ := newTestManager(t)
	ctx := context.Background()
	messageID := openGame(t, manager, Signup{Game: "uno"})

	manager.HandleReactionAdd(ctx, "g1", messageID, Player{ID: "u1", Name: "alice"}, SignupEmoji, false)
	manager.HandleReactionAdd(ctx, "g1", messageID, Player{ID: "host1", Name: "host"}, CancelEmoji, false)

	clock.Advance(3 * time.Second)
	if len(platform.updates) != 0 {
		t.Fatalf("expected no edit for a cancelled game, got %v", platform.updates)
	}
}
