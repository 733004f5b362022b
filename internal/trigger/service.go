package trigger

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/tessera-io/tessera/internal/definition"
	"github.com/tessera-io/tessera/internal/observability"
	"github.com/tessera-io/tessera/internal/rights"
	"github.com/tessera-io/tessera/model"
)

// Store is the slice of instance persistence the action service needs to
// commit a fully-mutated working copy.
type Store interface {
	Save(ctx context.Context, inst *model.WorkflowInstance) error
}

// Service executes a named action end to end: permission check, trigger run
// on a working copy, step recompute, and a single atomic commit. A failed run
// never reaches the store.
type Service struct {
	log    *zap.Logger
	exec   *Executor
	rights *rights.Evaluator
	store  Store
}

// NewService creates an action execution service.
func NewService(log *zap.Logger, exec *Executor, ev *rights.Evaluator, store Store) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{log: log, exec: exec, rights: ev, store: store}
}

// ExecuteAction runs the named action of the instance's current step on
// behalf of the user. The stored instance is only replaced when every trigger
// succeeded and the step recompute completed; any failure leaves the stored
// instance untouched.
func (s *Service) ExecuteAction(ctx context.Context, snap *definition.Snapshot, inst *model.WorkflowInstance, user *model.User, roleAction model.RoleAction, actionName string) (*model.WorkflowInstance, error) {
	ctx, span := observability.StartSpan(ctx, "trigger.ExecuteAction",
		observability.AttrEntityType.String(inst.EntityType),
		observability.AttrInstanceID.String(inst.ID),
		observability.AttrAction.String(actionName),
		observability.AttrRoleAction.String(string(roleAction)))
	var opErr error
	defer func() { observability.EndSpanWithError(span, opErr) }()

	action, err := s.findAction(snap, inst, actionName)
	if err != nil {
		opErr = err
		return nil, err
	}

	allowed, err := s.rights.CanAct(ctx, snap, inst, user, roleAction, actionName)
	if err != nil {
		opErr = err
		return nil, err
	}
	if !allowed {
		opErr = model.NewPermissionDeniedError(
			fmt.Sprintf("user %s may not %s action %q on instance %s", user.SubjectID, roleAction, actionName, inst.ID))
		return nil, opErr
	}

	working := inst.Clone()
	if err := s.exec.RunTriggers(ctx, snap, &working, user, action.Triggers, action.Message); err != nil {
		opErr = err
		return nil, err
	}

	if err := s.store.Save(ctx, &working); err != nil {
		opErr = err
		return nil, err
	}

	s.log.Info("action executed",
		zap.String("instance", inst.ID),
		zap.String("entityType", inst.EntityType),
		zap.String("action", actionName),
		zap.String("step", working.CurrentStep),
		zap.String("subject", user.SubjectID))
	return &working, nil
}

// findAction locates the named action on the instance's current step.
func (s *Service) findAction(snap *definition.Snapshot, inst *model.WorkflowInstance, actionName string) (*model.Action, error) {
	et, err := snap.EntityType(inst.EntityType)
	if err != nil {
		return nil, err
	}
	step := et.FindStep(inst.CurrentStep)
	if step == nil && inst.CurrentStep == "" {
		step = et.InitialStep()
	}
	if step == nil {
		return nil, model.NewNotFoundError(
			fmt.Sprintf("instance %s has no resolvable step", inst.ID))
	}
	action := step.FindAction(actionName)
	if action == nil {
		return nil, model.NewNotFoundError(
			fmt.Sprintf("action %q not found on step %q", actionName, step.Name))
	}
	return action, nil
}
