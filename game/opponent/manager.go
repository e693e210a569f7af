package opponent

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"rps-lite/game"
)

// Instance is a spawned opponent with its own game session.
type Instance struct {
	ID      uint64
	Persona *Persona
	Seed    int64
	Game    *game.Game
}

// Manager spawns opponents and keeps track of the live ones.
type Manager struct {
	registry  *PersonaRegistry
	instances map[uint64]*Instance
	mu        sync.RWMutex
	rng       *rand.Rand
	nextID    uint64
}

// NewManager creates a manager with the given persona registry. seed 0 uses the clock.
func NewManager(registry *PersonaRegistry, seed int64) *Manager {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Manager{
		registry:  registry,
		instances: make(map[uint64]*Instance),
		rng:       rand.New(rand.NewSource(seed)),
	}
}

// Registry returns the underlying PersonaRegistry.
func (m *Manager) Registry() *PersonaRegistry {
	return m.registry
}

// Spawn creates an opponent for the persona with a fresh seeded game of the given length.
func (m *Manager) Spawn(personaID string, rounds int) (*Instance, error) {
	persona := m.registry.Get(personaID)
	if persona == nil {
		return nil, fmt.Errorf("unknown persona %q", personaID)
	}

	m.mu.Lock()
	m.nextID++
	id := m.nextID
	seed := m.rng.Int63()
	m.mu.Unlock()

	tier, params := persona.Settings()
	g, err := game.NewGame(game.Config{
		Mode:      game.ModeVsAI,
		MaxRounds: rounds,
		Tier:      tier,
		Params:    params,
		Seed:      seed,
	})
	if err != nil {
		return nil, fmt.Errorf("spawn opponent %s: %w", persona.Name, err)
	}

	inst := &Instance{
		ID:      id,
		Persona: persona,
		Seed:    seed,
		Game:    g,
	}

	m.mu.Lock()
	m.instances[id] = inst
	m.mu.Unlock()

	log.Infof("[Opponent] Spawned %s (ID=%d tier=%s)", persona.Name, id, tier)
	return inst, nil
}

// Despawn removes an instance from tracking.
func (m *Manager) Despawn(id uint64) {
	m.mu.Lock()
	inst := m.instances[id]
	delete(m.instances, id)
	m.mu.Unlock()

	if inst != nil {
		log.Infof("[Opponent] Despawned %s (ID=%d)", inst.Persona.Name, id)
	}
}

// Live returns the number of tracked instances.
func (m *Manager) Live() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.instances)
}
