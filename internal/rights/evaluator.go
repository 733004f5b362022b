// Package rights decides which actions a user may perform on a workflow
// instance, given its current step and the role grants in the active model
// snapshot.
package rights

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/tessera-io/tessera/internal/definition"
	"github.com/tessera-io/tessera/internal/expr"
	"github.com/tessera-io/tessera/internal/observability"
	"github.com/tessera-io/tessera/model"
)

// Evaluator computes permitted actions. It never mutates instance state, and
// it never coerces a failing condition expression to false: a malformed
// expression is surfaced as a CONDITION_EVALUATION_ERROR so model authoring
// bugs do not masquerade as denials.
type Evaluator struct {
	log *zap.Logger
}

// NewEvaluator creates a rights evaluator.
func NewEvaluator(log *zap.Logger) *Evaluator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Evaluator{log: log}
}

// GetAllowedActions returns the actions on the instance's current step whose
// RoleAction matches the requested one and whose role grant holds for the
// user, in the step's declaration order. An unresolvable step, a step with no
// matching actions, or a user holding none of the required roles all yield an
// empty slice, never an error.
func (e *Evaluator) GetAllowedActions(ctx context.Context, snap *definition.Snapshot, inst *model.WorkflowInstance, user *model.User, roleAction model.RoleAction) ([]model.Action, error) {
	et, err := snap.EntityType(inst.EntityType)
	if err != nil {
		return nil, err
	}

	step := currentStep(et, inst)
	if step == nil {
		return nil, nil
	}

	var allowed []model.Action
	for _, action := range step.Actions {
		if action.RoleAction != roleAction {
			continue
		}
		ok, err := e.actionPermitted(snap, inst, user, action)
		if err != nil {
			return nil, err
		}
		if ok {
			allowed = append(allowed, action)
		}
	}

	observability.RightsChecks.WithLabelValues(inst.EntityType, string(roleAction)).Inc()
	e.log.Debug("evaluated allowed actions",
		zap.String("entityType", inst.EntityType),
		zap.String("instance", inst.ID),
		zap.String("step", step.Name),
		zap.String("roleAction", string(roleAction)),
		zap.Int("allowed", len(allowed)))
	return allowed, nil
}

// CanAct reports whether one named action on the current step is permitted
// for the user.
func (e *Evaluator) CanAct(ctx context.Context, snap *definition.Snapshot, inst *model.WorkflowInstance, user *model.User, roleAction model.RoleAction, actionName string) (bool, error) {
	actions, err := e.GetAllowedActions(ctx, snap, inst, user, roleAction)
	if err != nil {
		return false, err
	}
	for _, action := range actions {
		if action.Name == actionName {
			return true, nil
		}
	}
	return false, nil
}

// Can is the coarse, whole-instance check: it is true when any action on the
// current step is allowed for the role action, or when any of the user's
// roles carries a grant for it whose condition holds. Used for checks that
// are not tied to a named action, such as delete permission.
func (e *Evaluator) Can(ctx context.Context, snap *definition.Snapshot, inst *model.WorkflowInstance, user *model.User, roleAction model.RoleAction) (bool, error) {
	actions, err := e.GetAllowedActions(ctx, snap, inst, user, roleAction)
	if err != nil {
		return false, err
	}
	if len(actions) > 0 {
		return true, nil
	}

	env := expr.EnvFor(inst, user)
	for _, roleName := range user.Roles {
		role, err := snap.Role(roleName)
		if err != nil {
			continue
		}
		grant, ok := role.Grant(roleAction)
		if !ok {
			continue
		}
		ok, err = grantHolds(grant, env)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// actionPermitted checks the role attached to one action. An action without a
// role is open to any authenticated user.
func (e *Evaluator) actionPermitted(snap *definition.Snapshot, inst *model.WorkflowInstance, user *model.User, action model.Action) (bool, error) {
	if action.Role == "" {
		return true, nil
	}
	if !user.HasRole(action.Role) {
		return false, nil
	}
	role, err := snap.Role(action.Role)
	if err != nil {
		return false, model.NewConditionEvaluationError(
			fmt.Sprintf("action %q references undefined role %q", action.Name, action.Role), "")
	}
	grant, ok := role.Grant(action.RoleAction)
	if !ok {
		return false, nil
	}
	return grantHolds(grant, expr.EnvFor(inst, user))
}

func grantHolds(grant model.RoleGrant, env expr.Env) (bool, error) {
	if grant.Condition == "" {
		return true, nil
	}
	return expr.EvalBoolSource(grant.Condition, env)
}

// currentStep locates the instance's step, falling back to the definition's
// initial step when CurrentStep is unset. Returns nil when neither resolves.
func currentStep(et *model.EntityType, inst *model.WorkflowInstance) *model.Step {
	if inst.CurrentStep != "" {
		return et.FindStep(inst.CurrentStep)
	}
	return et.InitialStep()
}
