package state

import (
	"errors"
	"sync"
)

// StateMachine drives a set of states through declared transitions.
type StateMachine interface {
	ChangeState(state State) error
	GetCurrentState() State
	AddTransition(from State, to State, condition func() bool) error
}

// State is one node of a StateMachine.
type State interface {
	OnEnter()
	OnExit()
	GetID() string
}

// ErrTransitionNotAllowed is returned when a state transition is not allowed.
var ErrTransitionNotAllowed = errors.New("state transition not allowed")

// BaseStateMachine only moves along transitions registered with AddTransition.
// A transition whose condition returns false is rejected as well.
type BaseStateMachine struct {
	currentState State
	transitions  map[string]map[string]func() bool // fromState -> toState -> condition
	history      []string
	mutex        sync.RWMutex
}

func NewBaseStateMachine(initialState State) *BaseStateMachine {
	machine := &BaseStateMachine{
		currentState: initialState,
		transitions:  make(map[string]map[string]func() bool),
		history:      []string{initialState.GetID()},
	}
	initialState.OnEnter()
	return machine
}

func (sm *BaseStateMachine) ChangeState(newState State) error {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	conditions, exists := sm.transitions[sm.currentState.GetID()]
	if !exists {
		return ErrTransitionNotAllowed
	}
	condition, exists := conditions[newState.GetID()]
	if !exists {
		return ErrTransitionNotAllowed
	}
	if condition != nil && !condition() {
		return ErrTransitionNotAllowed
	}

	sm.currentState.OnExit()
	sm.currentState = newState
	sm.history = append(sm.history, newState.GetID())
	sm.currentState.OnEnter()

	return nil
}

func (sm *BaseStateMachine) GetCurrentState() State {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()
	return sm.currentState
}

func (sm *BaseStateMachine) AddTransition(from State, to State, condition func() bool) error {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	fromID := from.GetID()
	toID := to.GetID()

	if _, exists := sm.transitions[fromID]; !exists {
		sm.transitions[fromID] = make(map[string]func() bool)
	}

	sm.transitions[fromID][toID] = condition
	return nil
}

// History returns the ids of every state entered so far, oldest first.
func (sm *BaseStateMachine) History() []string {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()
	out := make([]string, len(sm.history))
	copy(out, sm.history)
	return out
}

// Phase is a State identified by name with an optional enter hook.
type Phase struct {
	ID    string
	Enter func()
}

func NewPhase(id string) *Phase {
	return &Phase{ID: id}
}

func (p *Phase) GetID() string {
	return p.ID
}

func (p *Phase) OnEnter() {
	if p.Enter != nil {
		p.Enter()
	}
}

func (p *Phase) OnExit() {}
