package game

import (
	"context"
	"sync"
)

// ClaimResult tells a player whether its claim attempt ended in a chair.
type ClaimResult int

const (
	NotSeated ClaimResult = iota
	Seated
)

func (r ClaimResult) String() string {
	if r == Seated {
		return "seated"
	}
	return "not seated"
}

// ChairPool is a counting gate over a row of chairs.
//
// available is the number of units a player may still take this round. It is
// kept apart from the slots so that taking a unit and writing the occupant
// happen in one critical section of the shared lock. A slot holding 0 is empty.
type ChairPool struct {
	mu        *sync.Mutex
	changed   *sync.Cond
	slots     []int
	available int
	parked    int
	closed    bool
}

// NewChairPool creates n empty chairs with n units available, guarded by mu.
func NewChairPool(mu *sync.Mutex, n int) *ChairPool {
	if n < 0 {
		n = 0
	}
	p := &ChairPool{
		mu:        mu,
		slots:     make([]int, n),
		available: n,
	}
	p.changed = sync.NewCond(mu)
	return p
}

// Initialize replaces the row with n empty chairs and n units.
// It is refused while any chair is occupied or a claimant is parked.
func (p *ChairPool) Initialize(n int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if n < 0 {
		return invalidState("initialize", "negative chair count %d", n)
	}
	if occupied := p.occupiedLocked(); occupied > 0 || p.parked > 0 {
		return invalidState("initialize", "%d chairs occupied and %d claimants waiting", occupied, p.parked)
	}
	p.slots = make([]int, n)
	p.available = n
	p.changed.Broadcast()
	return nil
}

// TryClaim takes one unit, blocking while none is available, and seats the
// player in the first empty chair. A unit obtained when every chair is already
// taken yields NotSeated. Once the pool is closed it returns ErrGameOver.
func (p *ChairPool) TryClaim(playerID int) (ClaimResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.claimLocked(playerID)
}

func (p *ChairPool) claimLocked(playerID int) (ClaimResult, error) {
	if playerID <= 0 {
		return NotSeated, invalidState("claim", "player id must be positive, got %d", playerID)
	}
	for p.available == 0 && !p.closed {
		p.parked++
		p.changed.Wait()
		p.parked--
	}
	if p.closed {
		return NotSeated, ErrGameOver
	}

	p.available--
	p.changed.Broadcast()

	for i, occupant := range p.slots {
		if occupant == 0 {
			p.slots[i] = playerID
			return Seated, nil
		}
	}
	return NotSeated, nil
}

// TryAcquire takes one unit without blocking and reports whether it did.
// A successful probe must be paired with Release(1).
func (p *ChairPool) TryAcquire() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || p.available == 0 {
		return false
	}
	p.available--
	p.changed.Broadcast()
	return true
}

// Release returns n units to the gate, waking parked claimants.
func (p *ChairPool) Release(n int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.releaseLocked(n)
}

func (p *ChairPool) releaseLocked(n int) error {
	if n < 0 {
		return invalidState("release", "negative release %d", n)
	}
	if p.available+n > len(p.slots) {
		return invalidState("release", "%d units would exceed %d chairs", p.available+n, len(p.slots))
	}
	p.available += n
	p.changed.Broadcast()
	return nil
}

// Reset empties every chair. The unit count is left alone.
func (p *ChairPool) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetLocked()
}

func (p *ChairPool) resetLocked() {
	for i := range p.slots {
		p.slots[i] = 0
	}
}

// RemoveOne drops the last chair. The chair must be empty and the unit count
// must still fit the shorter row.
func (p *ChairPool) RemoveOne() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.removeOneLocked()
}

func (p *ChairPool) removeOneLocked() error {
	n := len(p.slots)
	if n == 0 {
		return invalidState("remove chair", "no chairs left")
	}
	if p.slots[n-1] != 0 {
		return invalidState("remove chair", "last chair is occupied by player %d", p.slots[n-1])
	}
	if p.occupiedLocked() > n-1 || p.available > n-1 {
		return invalidState("remove chair", "%d occupied and %d available do not fit %d chairs", p.occupiedLocked(), p.available, n-1)
	}
	p.slots = p.slots[:n-1]
	return nil
}

// WaitDrained blocks until no unit is left, i.e. every unit handed out this
// round has been taken by a claimant. It returns ErrGameOver if the pool is
// closed first, or the context error.
func (p *ChairPool) WaitDrained(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	stop := wakeOnCancel(ctx, p.mu, p.changed)
	defer stop()

	for p.available > 0 && !p.closed {
		if err := ctx.Err(); err != nil {
			return err
		}
		p.changed.Wait()
	}
	if p.closed {
		return ErrGameOver
	}
	return ctx.Err()
}

// Close ends the game for the pool: parked and future claimants get ErrGameOver.
func (p *ChairPool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.changed.Broadcast()
}

func (p *ChairPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.slots)
}

func (p *ChairPool) Available() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.available
}

// Parked is the number of claimants currently blocked on an empty gate.
func (p *ChairPool) Parked() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.parked
}

// Occupants returns the occupant of each chair in order, 0 for empty chairs.
func (p *ChairPool) Occupants() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.occupantsLocked()
}

func (p *ChairPool) occupantsLocked() []int {
	out := make([]int, len(p.slots))
	copy(out, p.slots)
	return out
}

func (p *ChairPool) occupiedLocked() int {
	n := 0
	for _, occupant := range p.slots {
		if occupant != 0 {
			n++
		}
	}
	return n
}
