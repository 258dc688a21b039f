package games

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"xenonbot/internal/storage"

	"go.uber.org/zap"
)

// Reactions driving the signup message: man raising hand, play, stop.
const (
	SignupEmoji = "\U0001F64B\u200d\u2642\ufe0f"
	StartEmoji  = "\u25b6\ufe0f"
	CancelEmoji = "\u23f9\ufe0f"
)

var (
	ErrGameInProgress = errors.New("only one game can be played at a time")
	ErrNoGameChannel  = errors.New("no games channel has been set for this server")
	ErrWrongChannel   = errors.New("games can only be played in the designated channel")
	ErrNoGame         = errors.New("no game is currently running")
)

type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type Timer interface {
	Stop() bool
}

type realClock struct{}

type realTimer struct{ t *time.Timer }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return realTimer{t: time.AfterFunc(d, f)}
}

func (t realTimer) Stop() bool { return t.t.Stop() }

// Signup describes an announced game.
type Signup struct {
	Game     string
	HostName string
	Rounds   int
	Minimum  int
	Maximum  int
}

// Player is a signed-up participant.
type Player struct {
	ID   string
	Name string
}

// Platform is the slice of the chat platform the games manager needs.
type Platform interface {
	// OpenSignup posts the signup message with its control reactions
	// and returns the message id.
	OpenSignup(channelID string, signup Signup) (string, error)
	UpdateSignup(channelID, messageID string, participants []string) error
	Announce(channelID, message string) error
}

type phase int

const (
	phaseOpen phase = iota
	phaseRunning
)

type session struct {
	channelID   string
	messageID   string
	hostID      string
	signup      Signup
	phase       phase
	players     []Player
	pendingEdit bool
}

// Manager tracks at most one game per guild through
// idle -> open-for-signups -> running, with reaction-driven signups.
// Roster edits to the signup message are debounced: a burst of reaction
// events produces a single edit once the delay elapses.
type Manager struct {
	store     *storage.Store
	platform  Platform
	clock     Clock
	logger    *zap.Logger
	editDelay time.Duration

	mu       sync.Mutex
	sessions map[string]*session
}

func NewManager(store *storage.Store, logger *zap.Logger, editDelay time.Duration) *Manager {
	if editDelay <= 0 {
		editDelay = 3 * time.Second
	}
	return &Manager{
		store:     store,
		clock:     realClock{},
		logger:    logger,
		editDelay: editDelay,
		sessions:  make(map[string]*session),
	}
}

func (m *Manager) SetPlatform(platform Platform) {
	m.platform = platform
}

func (m *Manager) WithClock(clock Clock) {
	m.clock = clock
}

// Open starts signups for a new game. Only one game may run per guild,
// and only in the configured games channel.
func (m *Manager) Open(ctx context.Context, guildID, channelID, hostID string, signup Signup) error {
	if signup.Minimum <= 0 {
		signup.Minimum = 2
	}
	if signup.Maximum <= 0 {
		signup.Maximum = 50
	}
	if signup.Rounds <= 0 {
		signup.Rounds = 1
	}

	gameChannel, err := m.store.GameChannel(ctx, guildID)
	if err != nil {
		return err
	}
	if gameChannel == "" {
		return ErrNoGameChannel
	}
	if gameChannel != channelID {
		return ErrWrongChannel
	}

	sess := &session{channelID: channelID, hostID: hostID, signup: signup, phase: phaseOpen}

	m.mu.Lock()
	if _, exists := m.sessions[guildID]; exists {
		m.mu.Unlock()
		return ErrGameInProgress
	}
	m.sessions[guildID] = sess
	m.mu.Unlock()

	messageID, err := m.platform.OpenSignup(channelID, signup)
	if err != nil {
		m.mu.Lock()
		delete(m.sessions, guildID)
		m.mu.Unlock()
		return fmt.Errorf("open signup: %w", err)
	}

	m.mu.Lock()
	sess.messageID = messageID
	m.mu.Unlock()
	return nil
}

// HandleReactionAdd processes a reaction on the signup message. Only
// the host or a moderator (isModerator) may start or cancel the game.
func (m *Manager) HandleReactionAdd(ctx context.Context, guildID, messageID string, user Player, emoji string, isModerator bool) {
	m.mu.Lock()
	sess := m.sessions[guildID]
	if sess == nil || sess.messageID != messageID {
		m.mu.Unlock()
		return
	}
	canControl := isModerator || user.ID == sess.hostID

	switch emoji {
	case SignupEmoji:
		if sess.phase != phaseOpen {
			m.mu.Unlock()
			return
		}
		for _, p := range sess.players {
			if p.ID == user.ID {
				m.mu.Unlock()
				return
			}
		}
		sess.players = append(sess.players, user)
		m.scheduleEditLocked(guildID, sess)
		m.mu.Unlock()

	case StartEmoji:
		if sess.phase != phaseOpen || !canControl {
			m.mu.Unlock()
			return
		}
		count := len(sess.players)
		channelID := sess.channelID
		if count < sess.signup.Minimum || count > sess.signup.Maximum {
			m.mu.Unlock()
			m.announce(channelID, fmt.Sprintf("Received request to start the game by %s, but the number of players does not meet the requirement.", user.Name))
			return
		}
		sess.phase = phaseRunning
		m.mu.Unlock()
		m.announce(channelID, fmt.Sprintf("Request by %s: Starting game with %d players.", user.Name, count))

	case CancelEmoji:
		if !canControl {
			m.mu.Unlock()
			return
		}
		channelID := sess.channelID
		delete(m.sessions, guildID)
		m.mu.Unlock()
		m.announce(channelID, fmt.Sprintf("Game cancelled by %s.", user.Name))
	}
}

// HandleReactionRemove withdraws a signup while the game is open.
func (m *Manager) HandleReactionRemove(ctx context.Context, guildID, messageID, userID, emoji string) {
	if emoji != SignupEmoji {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	sess := m.sessions[guildID]
	if sess == nil || sess.messageID != messageID || sess.phase != phaseOpen {
		return
	}
	for i, p := range sess.players {
		if p.ID == userID {
			sess.players = append(sess.players[:i], sess.players[i+1:]...)
			m.scheduleEditLocked(guildID, sess)
			return
		}
	}
}

// Finish ends a running game, awards one point per winner and clears
// the guild back to idle.
func (m *Manager) Finish(ctx context.Context, guildID string, winners []Player) error {
	m.mu.Lock()
	sess := m.sessions[guildID]
	if sess == nil || sess.phase != phaseRunning {
		m.mu.Unlock()
		return ErrNoGame
	}
	channelID := sess.channelID
	delete(m.sessions, guildID)
	m.mu.Unlock()

	var names []string
	for _, winner := range winners {
		if _, err := m.store.AddScore(ctx, guildID, winner.ID, 1); err != nil {
			return err
		}
		names = append(names, winner.Name)
	}

	if len(names) == 0 {
		m.announce(channelID, "Game over! No winners this time.")
		return nil
	}
	m.announce(channelID, fmt.Sprintf("Game over! Winners: %s. Players in first place have earned one point each.", strings.Join(names, ", ")))
	return nil
}

// Participants returns the current roster, or nil when no game exists.
func (m *Manager) Participants(guildID string) []Player {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess := m.sessions[guildID]
	if sess == nil {
		return nil
	}
	players := make([]Player, len(sess.players))
	copy(players, sess.players)
	return players
}

// SignupOpen reports whether the guild currently accepts signups.
func (m *Manager) SignupOpen(guildID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess := m.sessions[guildID]
	return sess != nil && sess.phase == phaseOpen
}

func (m *Manager) scheduleEditLocked(guildID string, sess *session) {
	if sess.pendingEdit {
		return
	}
	sess.pendingEdit = true
	m.clock.AfterFunc(m.editDelay, func() {
		m.flushEdit(guildID, sess)
	})
}

func (m *Manager) flushEdit(guildID string, sess *session) {
	m.mu.Lock()
	if m.sessions[guildID] != sess {
		m.mu.Unlock()
		return
	}
	sess.pendingEdit = false
	channelID, messageID := sess.channelID, sess.messageID
	names := make([]string, 0, len(sess.players))
	for _, p := range sess.players {
		names = append(names, p.Name)
	}
	m.mu.Unlock()

	if err := m.platform.UpdateSignup(channelID, messageID, names); err != nil {
		m.logger.Warn("signup edit failed",
			zap.String("guild_id", guildID),
			zap.String("message_id", messageID),
			zap.Error(err))
	}
}

func (m *Manager) announce(channelID, message string) {
	if err := m.platform.Announce(channelID, message); err != nil {
		m.logger.Warn("announce failed", zap.String("channel_id", channelID), zap.Error(err))
	}
}
