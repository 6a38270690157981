package application

import (
	"context"

	"github.com/wyfcoding/investledger/internal/ledger/domain"
	"github.com/wyfcoding/investledger/pkg/logger"
)

// PlanService 投资方案生命周期
type PlanService struct {
	ledgers *LedgerStore
	catalog domain.PlanCatalog
}

// NewPlanService 创建方案服务
func NewPlanService(ledgers *LedgerStore, catalog domain.PlanCatalog) *PlanService {
	return &PlanService{ledgers: ledgers, catalog: catalog}
}

// Activate 激活方案。方案条款取自目录，客户端只提供方案 ID 与金额
func (s *PlanService) Activate(ctx context.Context, cmd ActivatePlanCommand) (*LedgerDTO, error) {
	logger.Info(ctx, "activating plan", "user_id", cmd.UserID, "plan_id", cmd.PlanID, "amount", cmd.Amount.String())

	if err := ValidateUserID(cmd.UserID); err != nil {
		return nil, err
	}
	if err := ValidateAmount(cmd.Amount); err != nil {
		return nil, err
	}
	l, err := s.ledgers.ApplyLedgerUpdate(ctx, "activate_plan", cmd.UserID, func(tx *LedgerTx, l *domain.Ledger) error {
		// 已有进行中方案时优先拒绝，不再校验目录与金额区间
		if l.HasActivePlan() {
			return domain.ErrAlreadyHasActivePlan
		}
		def, err := s.catalog.Get(tx.Context(), cmd.PlanID)
		if err != nil {
			return err
		}
		if err := ValidatePlanAmount(def, cmd.Amount); err != nil {
			return err
		}
		if err := l.Activate(def, cmd.Amount, tx.Now()); err != nil {
			return err
		}
		return tx.Emit(domain.NewPlanEvent(domain.EventPlanActivated, l))
	})
	logOutcome(ctx, "activate plan", err, "user_id", cmd.UserID, "plan_id", cmd.PlanID, "amount", cmd.Amount.String())
	if err != nil {
		return nil, err
	}
	return toLedgerDTO(l), nil
}

// Manage 暂停/恢复/停止/重启当前方案，restart 只用于已停止的方案
func (s *PlanService) Manage(ctx context.Context, userID string, action ManageAction) (*LedgerDTO, error) {
	if err := ValidateUserID(userID); err != nil {
		return nil, err
	}

	var (
		apply     func(l *domain.Ledger, tx *LedgerTx) error
		eventType string
	)
	switch action {
	case ActionPause:
		apply = func(l *domain.Ledger, tx *LedgerTx) error { return l.Pause(tx.Now()) }
		eventType = domain.EventPlanPaused
	case ActionResume:
		apply = func(l *domain.Ledger, tx *LedgerTx) error { return l.Resume(tx.Now()) }
		eventType = domain.EventPlanResumed
	case ActionStop:
		apply = func(l *domain.Ledger, tx *LedgerTx) error { return l.Stop(tx.Now()) }
		eventType = domain.EventPlanStopped
	case ActionRestart:
		apply = func(l *domain.Ledger, tx *LedgerTx) error { return l.RestartAfterStop(tx.Now()) }
		eventType = domain.EventPlanRestarted
	default:
		return nil, domain.NewValidationError("invalid action %q", string(action))
	}

	l, err := s.ledgers.ApplyLedgerUpdate(ctx, "plan_"+string(action), userID, func(tx *LedgerTx, l *domain.Ledger) error {
		if err := apply(l, tx); err != nil {
			return err
		}
		return tx.Emit(domain.NewPlanEvent(eventType, l))
	})
	logOutcome(ctx, "manage plan", err, "user_id", userID, "action", string(action))
	if err != nil {
		return nil, err
	}
	return toLedgerDTO(l), nil
}

// RestartCompleted 用原条款重启已到期的方案
func (s *PlanService) RestartCompleted(ctx context.Context, userID string) (*LedgerDTO, error) {
	if err := ValidateUserID(userID); err != nil {
		return nil, err
	}

	l, err := s.ledgers.ApplyLedgerUpdate(ctx, "plan_restart_completed", userID, func(tx *LedgerTx, l *domain.Ledger) error {
		if err := l.RestartAfterCompletion(tx.Now()); err != nil {
			return err
		}
		return tx.Emit(domain.NewPlanEvent(domain.EventPlanRestarted, l))
	})
	logOutcome(ctx, "restart completed plan", err, "user_id", userID)
	if err != nil {
		return nil, err
	}
	return toLedgerDTO(l), nil
}

// ListPlans 方案目录
func (s *PlanService) ListPlans(ctx context.Context) ([]*PlanDefinitionDTO, error) {
	defs, err := s.catalog.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*PlanDefinitionDTO, 0, len(defs))
	for _, d := range defs {
		out = append(out, toPlanDefinitionDTO(d))
	}
	return out, nil
}

// SeedPlans 启动时写入配置中的方案，目录中已有同 ID 条目的保持不变
func SeedPlans(ctx context.Context, catalog domain.PlanCatalog, defs []*domain.PlanDefinition) error {
	for _, def := range defs {
		_, err := catalog.Get(ctx, def.ID)
		if err == nil {
			continue
		}
		if domain.KindOf(err) != domain.KindNotFound {
			return err
		}
		if err := catalog.Upsert(ctx, def); err != nil {
			return err
		}
		logger.Info(ctx, "plan seeded", "plan_id", def.ID, "name", def.Name)
	}
	return nil
}
