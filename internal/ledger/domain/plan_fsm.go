package domain

import (
	"context"

	"github.com/wyfcoding/pkg/fsm"
)

// 方案状态机事件
const (
	evActivate         fsm.Event = "ACTIVATE"
	evPause            fsm.Event = "PAUSE"
	evResume           fsm.Event = "RESUME"
	evStop             fsm.Event = "STOP"
	evRestartCompleted fsm.Event = "RESTART_COMPLETED"
	evRestartStopped   fsm.Event = "RESTART_STOPPED"
)

// newPlanMachine 以账本当前视图状态为起点构建方案状态机
func newPlanMachine(phase PlanPhase) *fsm.Machine {
	m := fsm.NewMachine(fsm.State(phase))
	for _, from := range []PlanPhase{PhaseNone, PhaseStopped, PhaseCompleted} {
		m.AddTransition(fsm.State(from), evActivate, fsm.State(PhaseActive))
	}
	m.AddTransition(fsm.State(PhaseActive), evPause, fsm.State(PhasePaused))
	m.AddTransition(fsm.State(PhasePaused), evResume, fsm.State(PhaseActive))
	// 结算推进到期的暂停方案仍可恢复，恢复后保持 COMPLETED
	m.AddTransition(fsm.State(PhaseCompleted), evResume, fsm.State(PhaseCompleted))
	m.AddTransition(fsm.State(PhaseActive), evStop, fsm.State(PhaseStopped))
	m.AddTransition(fsm.State(PhasePaused), evStop, fsm.State(PhaseStopped))
	m.AddTransition(fsm.State(PhaseCompleted), evRestartCompleted, fsm.State(PhaseActive))
	m.AddTransition(fsm.State(PhaseStopped), evRestartStopped, fsm.State(PhaseActive))
	return m
}

// fire 校验当前状态能否接受事件，拒绝时返回对应的领域错误
func (l *Ledger) fire(event fsm.Event) error {
	phase := l.Phase()
	if err := newPlanMachine(phase).Trigger(context.Background(), event); err != nil {
		return rejection(phase, event)
	}
	return nil
}

func rejection(phase PlanPhase, event fsm.Event) error {
	switch event {
	case evActivate:
		return ErrAlreadyHasActivePlan
	case evPause, evStop:
		switch phase {
		case PhaseCompleted:
			return ErrAlreadyCompleted
		case PhasePaused:
			return ErrAlreadyPaused
		}
		return ErrNoActivePlan
	case evResume:
		if phase == PhaseActive {
			return ErrNotPaused
		}
		return ErrNoActivePlan
	case evRestartCompleted, evRestartStopped:
		switch phase {
		case PhaseNone:
			return ErrNoPreviousPlan
		case PhaseActive, PhasePaused:
			return ErrAlreadyHasActivePlan
		}
		return ErrPlanNotRestartable
	}
	return ErrPlanNotRestartable
}
