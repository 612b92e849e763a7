package session

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ptcgsim/battle-server-go/internal/card"
	"github.com/ptcgsim/battle-server-go/internal/game"
)

// InitialHandSize is dealt to each player at battle creation when the
// battle was created with deck lists.
const InitialHandSize = 5

// Result summarizes a finished battle for recording.
type Result struct {
	BattleID string
	Mode     Mode
	Winner   *int // nil on tie or fault
	IsTie    bool
	Turns    int
	Duration time.Duration
}

// ResultRecorder persists finished battle results. Implementations must
// tolerate being called from session goroutines.
type ResultRecorder interface {
	RecordResult(ctx context.Context, res Result) error
}

// Config carries the manager's tunables.
type Config struct {
	// GracePeriod keeps finished sessions addressable (read-only) before
	// eviction.
	GracePeriod time.Duration
	// AITurnTimeout bounds the wait for an external AI driver's action.
	// Zero disables the stall timeout.
	AITurnTimeout time.Duration
	// ConfidenceThreshold gates effect-instruction execution; zero keeps
	// the resolver's default.
	ConfidenceThreshold float64
	// ReplayDir, when set, receives a gzipped replay file per finished
	// battle.
	ReplayDir string
	// Seed for deck shuffles and coin flips; zero means time-based.
	Seed int64
}

// Manager owns the battle table: battle_id to session, with explicit
// create/evict lifecycle. Sessions never share state with one another.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	library  *card.Library
	recorder ResultRecorder // may be nil
	cfg      Config
	rng      *rand.Rand
	rngMu    sync.Mutex
	logger   *zap.Logger
}

// NewManager creates the session manager. recorder may be nil when no
// result persistence is configured.
func NewManager(library *card.Library, recorder ResultRecorder, cfg Config, logger *zap.Logger) *Manager {
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = 5 * time.Minute
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Manager{
		sessions: make(map[string]*Session),
		library:  library,
		recorder: recorder,
		cfg:      cfg,
		rng:      rand.New(rand.NewSource(seed)),
		logger:   logger,
	}
}

// Create starts a new battle in Setup phase and spawns its serializing
// loop. deckNames selects a loaded deck list per player; empty entries
// leave that player deckless (sandbox flows place cards directly).
func (m *Manager) Create(mode Mode, deckNames [2]string) (*Session, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("unknown battle mode %q", mode)
	}

	battleID := uuid.New().String()
	state := game.NewGameState(battleID)

	for idx, name := range deckNames {
		if name == "" {
			continue
		}
		deck, err := m.library.Deck(name)
		if err != nil {
			return nil, err
		}
		p := state.Player(idx)
		p.Deck = m.shuffled(deck)
		for i := 0; i < InitialHandSize && len(p.Deck) > 0; i++ {
			top := p.Deck[0]
			p.Deck = p.Deck[1:]
			p.Hand = append(p.Hand, top)
		}
	}

	resolver := game.NewResolver(m.newRand(), m.logger)
	if m.cfg.ConfidenceThreshold > 0 {
		resolver.SetConfidenceThreshold(m.cfg.ConfidenceThreshold)
	}
	sess := newSession(battleID, mode, state, resolver, game.NewSandbox(m.logger),
		m.library, m.cfg.AITurnTimeout, m.logger)
	sess.onFinished = m.battleFinished

	m.mu.Lock()
	m.sessions[battleID] = sess
	m.mu.Unlock()

	go sess.run()

	m.logger.Info("battle created",
		zap.String("battle_id", battleID),
		zap.String("mode", string(mode)),
	)
	return sess, nil
}

// Get returns the session for the battle ID.
func (m *Manager) Get(battleID string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[battleID]
	return sess, ok
}

// End explicitly tears a battle down and removes it from the table.
func (m *Manager) End(battleID string) bool {
	m.mu.Lock()
	sess, ok := m.sessions[battleID]
	if ok {
		delete(m.sessions, battleID)
	}
	m.mu.Unlock()
	if !ok {
		return false
	}
	sess.Close()
	m.logger.Info("battle ended", zap.String("battle_id", battleID))
	return true
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// CloseAll tears down every session, for shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		sessions = append(sessions, sess)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, sess := range sessions {
		sess.Close()
	}
}

// CleanupFinished periodically evicts finished sessions whose grace
// period elapsed. Runs until the context is cancelled.
func (m *Manager) CleanupFinished(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweep(time.Now())
		}
	}
}

func (m *Manager) sweep(now time.Time) {
	m.mu.Lock()
	var evict []*Session
	for id, sess := range m.sessions {
		finishedAt, done := sess.Finished()
		if done && now.Sub(finishedAt) >= m.cfg.GracePeriod {
			delete(m.sessions, id)
			evict = append(evict, sess)
		}
	}
	m.mu.Unlock()

	for _, sess := range evict {
		sess.Close()
		m.logger.Info("evicted finished battle", zap.String("battle_id", sess.ID))
	}
}

// battleFinished runs once per battle, from its own session loop.
func (m *Manager) battleFinished(s *Session, winner *int, tie bool) {
	if m.cfg.ReplayDir != "" {
		if path, err := s.Replay().Save(m.cfg.ReplayDir); err != nil {
			m.logger.Warn("failed to save battle replay",
				zap.String("battle_id", s.ID),
				zap.Error(err),
			)
		} else {
			m.logger.Info("battle replay saved",
				zap.String("battle_id", s.ID),
				zap.String("path", path),
			)
		}
	}
	m.recordResult(s, winner, tie)
}

func (m *Manager) recordResult(s *Session, winner *int, tie bool) {
	if m.recorder == nil {
		return
	}
	// Invoked from the session loop, so reading state here is safe.
	res := Result{
		BattleID: s.ID,
		Mode:     s.Mode,
		Winner:   winner,
		IsTie:    tie,
		Turns:    s.state.TurnNumber,
		Duration: time.Since(s.CreatedAt),
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.recorder.RecordResult(ctx, res); err != nil {
		m.logger.Warn("failed to record battle result",
			zap.String("battle_id", s.ID),
			zap.Error(err),
		)
	}
}

func (m *Manager) shuffled(deck []*card.Card) []*card.Card {
	out := append([]*card.Card(nil), deck...)
	m.rngMu.Lock()
	m.rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	m.rngMu.Unlock()
	return out
}

func (m *Manager) newRand() *rand.Rand {
	m.rngMu.Lock()
	defer m.rngMu.Unlock()
	return rand.New(rand.NewSource(m.rng.Int63()))
}
