// Package trigger applies an action's ordered trigger list to a working copy
// of a workflow instance and recomputes its current step. The executor never
// persists anything itself: callers commit the working copy only when the
// whole run succeeded and discard it otherwise.
package trigger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tessera-io/tessera/internal/definition"
	"github.com/tessera-io/tessera/internal/expr"
	"github.com/tessera-io/tessera/internal/observability"
	"github.com/tessera-io/tessera/model"
)

// Messenger delivers outbound messages produced by send_message triggers.
type Messenger interface {
	Send(ctx context.Context, msg model.OutboundMessage) error
}

// InstanceFactory creates child instances for create_child triggers.
type InstanceFactory interface {
	CreateChild(ctx context.Context, parent *model.WorkflowInstance, entityType string, props model.Properties) (*model.WorkflowInstance, error)
}

// NopMessenger discards all messages.
type NopMessenger struct{}

// Send implements Messenger.
func (NopMessenger) Send(context.Context, model.OutboundMessage) error { return nil }

// LogMessenger writes outbound messages to the log instead of delivering
// them. It is the delivery sink used when messaging is enabled without a
// real backend.
type LogMessenger struct {
	log  *zap.Logger
	from string
}

// NewLogMessenger creates a log-backed messenger. The from address is
// attached to every delivery record.
func NewLogMessenger(log *zap.Logger, from string) *LogMessenger {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogMessenger{log: log, from: from}
}

// Send implements Messenger.
func (m *LogMessenger) Send(_ context.Context, msg model.OutboundMessage) error {
	m.log.Info("outbound message",
		zap.String("from", m.from),
		zap.String("to", msg.To),
		zap.String("template", msg.Template),
		zap.String("subject", msg.Subject),
		zap.String("instance", msg.InstanceID))
	return nil
}

// Executor runs trigger pipelines.
type Executor struct {
	log       *zap.Logger
	messenger Messenger
	factory   InstanceFactory
	now       func() time.Time
}

// NewExecutor creates an Executor. A nil messenger discards messages; a nil
// factory makes create_child triggers fail.
func NewExecutor(log *zap.Logger, messenger Messenger, factory InstanceFactory) *Executor {
	if log == nil {
		log = zap.NewNop()
	}
	if messenger == nil {
		messenger = NopMessenger{}
	}
	return &Executor{
		log:       log,
		messenger: messenger,
		factory:   factory,
		now:       time.Now,
	}
}

// RunTriggers applies the triggers strictly in order against inst, which must
// be a working copy the caller is prepared to discard. Each trigger observes
// the mutations of all earlier triggers in the same run. On the first failure
// the run aborts with a TRIGGER_EXECUTION_ERROR and inst is left as mutated
// so far; the caller must not persist it. After all triggers succeed,
// CurrentStep is recomputed from the mutated properties.
func (e *Executor) RunTriggers(ctx context.Context, snap *definition.Snapshot, inst *model.WorkflowInstance, user *model.User, triggers []model.Trigger, message *model.MessageTemplate) error {
	ctx, span := observability.StartSpan(ctx, "trigger.RunTriggers",
		observability.AttrEntityType.String(inst.EntityType),
		observability.AttrInstanceID.String(inst.ID))
	var runErr error
	defer func() { observability.EndSpanWithError(span, runErr) }()

	start := e.now()
	for i, trig := range triggers {
		if err := ctx.Err(); err != nil {
			runErr = model.NewTriggerExecutionError(err.Error(), trig.Type).WithCause(err)
			break
		}
		if err := e.apply(ctx, snap, inst, user, trig, message); err != nil {
			e.log.Warn("trigger run aborted",
				zap.String("instance", inst.ID),
				zap.String("trigger", trig.Type),
				zap.Int("position", i),
				zap.Error(err))
			runErr = err
			break
		}
	}

	if runErr == nil {
		runErr = e.recompute(snap, inst, user)
	}

	outcome := "success"
	if runErr != nil {
		outcome = "failure"
	}
	observability.TriggerRuns.WithLabelValues(inst.EntityType, outcome).Inc()
	observability.TriggerRunDuration.WithLabelValues(inst.EntityType).Observe(e.now().Sub(start).Seconds())
	return runErr
}

// apply executes one trigger against the working copy.
func (e *Executor) apply(ctx context.Context, snap *definition.Snapshot, inst *model.WorkflowInstance, user *model.User, trig model.Trigger, message *model.MessageTemplate) error {
	env := expr.EnvFor(inst, user)

	switch trig.Type {
	case model.TriggerSetProperty:
		node, err := expr.Parse(trig.Value)
		if err != nil {
			return model.NewTriggerExecutionError(
				fmt.Sprintf("set_property %q: %v", trig.Property, err), trig.Type).WithCause(err)
		}
		val, err := expr.Eval(node, env)
		if err != nil {
			return model.NewTriggerExecutionError(
				fmt.Sprintf("set_property %q: %v", trig.Property, err), trig.Type).WithCause(err)
		}
		if inst.Properties == nil {
			inst.Properties = model.Properties{}
		}
		inst.Properties[trig.Property] = val

	case model.TriggerEmitEvent:
		if inst.Events == nil {
			inst.Events = map[string]model.InstanceEvent{}
		}
		now := e.now()
		inst.Events[trig.Event] = model.InstanceEvent{ID: uuid.NewString(), Date: &now}

	case model.TriggerSendMessage:
		tmpl := message
		if tmpl == nil {
			tmpl = &model.MessageTemplate{Name: trig.Template}
		}
		msg := model.OutboundMessage{
			Template:   tmpl.Name,
			Subject:    tmpl.Subject,
			Body:       tmpl.Body,
			To:         tmpl.To,
			InstanceID: inst.ID,
			Payload:    inst.Properties.Clone(),
		}
		if err := e.messenger.Send(ctx, msg); err != nil {
			return model.NewTriggerExecutionError(
				fmt.Sprintf("send_message %q: %v", msg.Template, err), trig.Type).WithCause(err)
		}

	case model.TriggerCreateChild:
		if e.factory == nil {
			return model.NewTriggerExecutionError("create_child: no instance factory configured", trig.Type)
		}
		props := model.Properties{}
		for name, src := range trig.Properties {
			node, err := expr.Parse(src)
			if err != nil {
				return model.NewTriggerExecutionError(
					fmt.Sprintf("create_child property %q: %v", name, err), trig.Type).WithCause(err)
			}
			val, err := expr.Eval(node, env)
			if err != nil {
				return model.NewTriggerExecutionError(
					fmt.Sprintf("create_child property %q: %v", name, err), trig.Type).WithCause(err)
			}
			props[name] = val
		}
		if _, err := e.factory.CreateChild(ctx, inst, trig.EntityType, props); err != nil {
			return model.NewTriggerExecutionError(
				fmt.Sprintf("create_child %q: %v", trig.EntityType, err), trig.Type).WithCause(err)
		}

	default:
		return model.NewTriggerExecutionError(
			fmt.Sprintf("unknown trigger type %q", trig.Type), trig.Type)
	}
	return nil
}

// recompute sets inst.CurrentStep from the mutated properties.
func (e *Executor) recompute(snap *definition.Snapshot, inst *model.WorkflowInstance, user *model.User) error {
	et, err := snap.EntityType(inst.EntityType)
	if err != nil {
		return err
	}
	step, err := ResolveCurrentStep(et, inst, user)
	if err != nil {
		return err
	}
	inst.CurrentStep = step
	return nil
}

// ResolveCurrentStep evaluates each step's guard conditions against the
// instance, in the definition's declared step order, and returns the name of
// the first step whose guards all hold. A step with no conditions always
// matches. Returns the empty string when no step matches. Condition failures
// are surfaced, never treated as false.
func ResolveCurrentStep(et *model.EntityType, inst *model.WorkflowInstance, user *model.User) (string, error) {
	env := expr.EnvFor(inst, user)
	for _, step := range et.Steps {
		all := true
		for _, cond := range step.Conditions {
			ok, err := expr.EvalBoolSource(cond, env)
			if err != nil {
				return "", err
			}
			if !ok {
				all = false
				break
			}
		}
		if all {
			return step.Name, nil
		}
	}
	return "", nil
}
