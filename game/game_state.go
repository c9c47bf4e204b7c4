package game

import (
	"fmt"
	"sync"
)

type PlayerStatus int

const (
	StatusWaiting PlayerStatus = iota
	StatusSeated
	StatusEliminated
)

func (s PlayerStatus) String() string {
	switch s {
	case StatusSeated:
		return "seated"
	case StatusEliminated:
		return "eliminated"
	default:
		return "waiting"
	}
}

// Snapshot is a copy of the game state at one instant.
type Snapshot struct {
	Round      int
	Players    int
	Chairs     []int
	Available  int
	Eliminated []int
	Winner     int
}

// LastEliminated returns the most recent loser, or 0 before the first one.
func (s Snapshot) LastEliminated() int {
	if len(s.Eliminated) == 0 {
		return 0
	}
	return s.Eliminated[len(s.Eliminated)-1]
}

// GameState records who is still playing, who sits where and who lost.
// Players only touch it through Claim; everything else belongs to the
// coordinator. All of it lives under the lock shared with the pool.
type GameState struct {
	mu         *sync.Mutex
	pool       *ChairPool
	initial    int
	players    int
	round      int
	status     []PlayerStatus // indexed by player id, slot 0 unused
	eliminated []int
	winner     int
}

// NewGameState sets up a game for players players and players-1 chairs.
func NewGameState(mu *sync.Mutex, pool *ChairPool, players int) (*GameState, error) {
	if players < 2 {
		return nil, fmt.Errorf("%w: need at least 2 players, got %d", ErrInvalidConfig, players)
	}
	if err := pool.Initialize(players - 1); err != nil {
		return nil, err
	}
	return &GameState{
		mu:      mu,
		pool:    pool,
		initial: players,
		players: players,
		status:  make([]PlayerStatus, players+1),
	}, nil
}

// Claim is a player's only write. The claim and, on NotSeated, the player's
// own elimination happen in one critical section, so the coordinator sees the
// elimination as soon as it sees the pool drained.
func (s *GameState) Claim(playerID int) (ClaimResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if playerID <= 0 || playerID > s.initial {
		return NotSeated, invalidState("claim", "unknown player %d", playerID)
	}
	if s.status[playerID] == StatusEliminated {
		return NotSeated, invalidState("claim", "player %d is already eliminated", playerID)
	}

	res, err := s.pool.claimLocked(playerID)
	if err != nil {
		return res, err
	}
	if res == Seated {
		s.status[playerID] = StatusSeated
	} else {
		s.status[playerID] = StatusEliminated
		s.eliminated = append(s.eliminated, playerID)
	}
	return res, nil
}

// BeginRound opens the next round. Every round after the first empties the
// chairs, removes one and re-arms the gate for players-1 claims.
func (s *GameState) BeginRound() (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.winner != 0 {
		return Snapshot{}, invalidState("begin round", "game already won by player %d", s.winner)
	}
	s.round++
	if s.round > 1 {
		s.pool.resetLocked()
		if err := s.pool.removeOneLocked(); err != nil {
			return Snapshot{}, err
		}
		if err := s.pool.releaseLocked(s.players - 1); err != nil {
			return Snapshot{}, err
		}
	}
	if chairs := len(s.pool.slots); s.players != chairs+1 {
		return Snapshot{}, &InvariantViolation{
			Round:     s.round,
			Invariant: "players == chairs+1",
			Detail:    fmt.Sprintf("%d players, %d chairs", s.players, chairs),
		}
	}
	for id := 1; id <= s.initial; id++ {
		if s.status[id] != StatusEliminated {
			s.status[id] = StatusWaiting
		}
	}
	return s.snapshotLocked(), nil
}

// DropPlayer removes the round's loser from the active count.
func (s *GameState) DropPlayer() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.players <= 1 {
		return invalidState("drop player", "%d players left", s.players)
	}
	s.players--
	return nil
}

// CheckSettled verifies the round ended with every chair taken, exactly one
// new loser and nobody left waiting on the gate.
func (s *GameState) CheckSettled() (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	violation := func(invariant, format string, args ...any) error {
		return &InvariantViolation{Round: s.round, Invariant: invariant, Detail: fmt.Sprintf(format, args...)}
	}

	if occupied, chairs := s.pool.occupiedLocked(), len(s.pool.slots); occupied != chairs {
		return Snapshot{}, violation("all chairs occupied", "%d of %d chairs occupied", occupied, chairs)
	}
	if s.pool.available != 0 || s.pool.parked != 0 {
		return Snapshot{}, violation("race settled", "%d units left, %d claimants parked", s.pool.available, s.pool.parked)
	}
	if got, want := len(s.eliminated), s.initial-s.players; got != want || got != s.round {
		return Snapshot{}, violation("exactly one loser per round", "%d eliminated after %d rounds with %d players left", got, s.round, s.players)
	}

	seen := make(map[int]bool, len(s.eliminated))
	for _, id := range s.eliminated {
		if seen[id] {
			return Snapshot{}, violation("unique eliminations", "player %d eliminated twice", id)
		}
		seen[id] = true
	}
	for _, occupant := range s.pool.slots {
		if seen[occupant] {
			return Snapshot{}, violation("losers hold no chair", "eliminated player %d is seated", occupant)
		}
	}
	return s.snapshotLocked(), nil
}

// Finish declares the last seated player the winner and retires the final
// chair, leaving one player and no chairs.
func (s *GameState) Finish() (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.players != 1 {
		return Snapshot{}, invalidState("finish", "%d players still active", s.players)
	}
	if len(s.pool.slots) != 1 || s.pool.slots[0] == 0 {
		return Snapshot{}, &InvariantViolation{Round: s.round, Invariant: "single seated winner", Detail: fmt.Sprintf("chairs %v", s.pool.slots)}
	}
	winner := s.pool.slots[0]
	for _, id := range s.eliminated {
		if id == winner {
			return Snapshot{}, &InvariantViolation{Round: s.round, Invariant: "winner never eliminated", Detail: fmt.Sprintf("player %d", winner)}
		}
	}
	s.winner = winner

	s.pool.resetLocked()
	if err := s.pool.removeOneLocked(); err != nil {
		return Snapshot{}, err
	}
	return s.snapshotLocked(), nil
}

func (s *GameState) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *GameState) snapshotLocked() Snapshot {
	eliminated := make([]int, len(s.eliminated))
	copy(eliminated, s.eliminated)
	return Snapshot{
		Round:      s.round,
		Players:    s.players,
		Chairs:     s.pool.occupantsLocked(),
		Available:  s.pool.available,
		Eliminated: eliminated,
		Winner:     s.winner,
	}
}

// Status returns a player's current status.
func (s *GameState) Status(playerID int) PlayerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	if playerID <= 0 || playerID > s.initial {
		return StatusWaiting
	}
	return s.status[playerID]
}

func (s *GameState) Players() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.players
}
