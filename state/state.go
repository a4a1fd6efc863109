package state

import (
	"errors"
	"sync"

	"github.com/wfunc/marketgame/models"
)

// ErrTransitionNotAllowed is returned when a state transition is not allowed.
var ErrTransitionNotAllowed = errors.New("state transition not allowed")

// Condition 转换条件，返回 false 时拒绝转换
type Condition func(p *models.Player) bool

// Machine 玩家回合状态机: NOT_STARTED -> IN_PROGRESS -> DONE，每回合开始时重置
type Machine struct {
	transitions map[models.ActionStatus]map[models.ActionStatus]Condition // from -> to -> condition
	mutex       sync.RWMutex
}

func NewMachine() *Machine {
	return &Machine{
		transitions: make(map[models.ActionStatus]map[models.ActionStatus]Condition),
	}
}

// NewTurnMachine returns a machine with the standard per-round transitions.
func NewTurnMachine() *Machine {
	m := NewMachine()
	m.AddTransition(models.StatusNotStarted, models.StatusInProgress, nil)
	m.AddTransition(models.StatusInProgress, models.StatusDone, nil)
	return m
}

func (m *Machine) AddTransition(from, to models.ActionStatus, condition Condition) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, exists := m.transitions[from]; !exists {
		m.transitions[from] = make(map[models.ActionStatus]Condition)
	}
	m.transitions[from][to] = condition
}

// Transition moves p to the given status.
func (m *Machine) Transition(p *models.Player, to models.ActionStatus) error {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	conditions, exists := m.transitions[p.ActionStatus]
	if !exists {
		return ErrTransitionNotAllowed
	}
	condition, exists := conditions[to]
	if !exists {
		return ErrTransitionNotAllowed
	}
	if condition != nil && !condition(p) {
		return ErrTransitionNotAllowed
	}

	p.ActionStatus = to
	return nil
}

// Begin 玩家开始一个行为
func (m *Machine) Begin(p *models.Player, action models.ActionKind) error {
	if err := m.Transition(p, models.StatusInProgress); err != nil {
		return err
	}
	p.CurrentAction = &action
	return nil
}

// Complete finishes the player's turn, starting it first if needed.
// The player may be left half-updated on error; callers work on a copy.
func (m *Machine) Complete(p *models.Player, action models.ActionKind) error {
	if p.ActionStatus == models.StatusNotStarted {
		if err := m.Begin(p, action); err != nil {
			return err
		}
	}
	if err := m.Transition(p, models.StatusDone); err != nil {
		return err
	}
	p.CurrentAction = &action
	return nil
}

// Expire forces an in-progress turn to DONE without any other change.
func (m *Machine) Expire(p *models.Player) bool {
	if p.ActionStatus != models.StatusInProgress {
		return false
	}
	return m.Transition(p, models.StatusDone) == nil
}

// Reset 新回合开始时重置玩家状态
func Reset(p *models.Player) {
	p.ActionStatus = models.StatusNotStarted
	p.CurrentAction = nil
}
