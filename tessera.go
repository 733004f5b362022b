// Package tessera is a workflow-definition engine. It loads declarative
// entity-type and workflow models, tracks running instances, evaluates
// role-based rights on steps, executes ordered trigger pipelines, and keeps
// an append-only version history of step submissions.
//
// The Engine facade bundles the engine services behind one surface. Model
// snapshots are immutable and published per version key; operations resolve
// the snapshot once and use it for the whole call, so a concurrent publish
// never affects an in-flight operation.
package tessera

import (
	"context"

	"go.uber.org/zap"

	"github.com/tessera-io/tessera/internal/definition"
	"github.com/tessera-io/tessera/internal/identity"
	"github.com/tessera-io/tessera/internal/instance"
	"github.com/tessera-io/tessera/internal/observability"
	"github.com/tessera-io/tessera/internal/rights"
	"github.com/tessera-io/tessera/internal/stepver"
	"github.com/tessera-io/tessera/internal/trigger"
	"github.com/tessera-io/tessera/model"
)

// Engine is the workflow engine facade.
type Engine struct {
	log       *zap.Logger
	versions  *definition.Versions
	rights    *rights.Evaluator
	instances *instance.Service
	actions   *trigger.Service
	tracker   *stepver.Tracker
	users     model.UserProvider
}

// Options configures an Engine. Zero-value fields fall back to in-memory
// stores, a no-op messenger, and a context-backed user provider.
type Options struct {
	Logger        *zap.Logger
	InstanceStore instance.Store
	VersionStore  stepver.VersionStore
	Messenger     trigger.Messenger
	Users         model.UserProvider
}

// New creates an Engine. Models are published afterwards with PublishModel.
func New(opts Options) *Engine {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	instStore := opts.InstanceStore
	if instStore == nil {
		instStore = instance.NewMemoryStore()
	}
	verStore := opts.VersionStore
	if verStore == nil {
		verStore = stepver.NewMemoryVersionStore()
	}
	users := opts.Users
	if users == nil {
		users = identity.ContextProvider{}
	}

	versions := definition.NewVersions()
	evaluator := rights.NewEvaluator(log)
	instances := instance.NewService(log, instStore, versions, evaluator)
	executor := trigger.NewExecutor(log, opts.Messenger, instances)
	actions := trigger.NewService(log, executor, evaluator, instStore)
	tracker := stepver.NewTracker(log, verStore)

	return &Engine{
		log:       log,
		versions:  versions,
		rights:    evaluator,
		instances: instances,
		actions:   actions,
		tracker:   tracker,
		users:     users,
	}
}

// CurrentUser resolves the calling user through the configured provider. The
// default provider reads the user attached to the context with
// model.WithUser.
func (e *Engine) CurrentUser(ctx context.Context) (*model.User, error) {
	return e.users.CurrentUser(ctx)
}

// PublishModel parses the source, builds an inheritance-resolved snapshot,
// and publishes it under the version key. Readers holding an older snapshot
// are unaffected.
func (e *Engine) PublishModel(versionKey string, src definition.Source) (*definition.Snapshot, error) {
	docs, err := definition.NewLoader().Load(src)
	if err != nil {
		return nil, err
	}
	snap, err := definition.BuildSnapshot(docs)
	if err != nil {
		return nil, err
	}
	e.PublishSnapshot(versionKey, snap)
	return snap, nil
}

// PublishSnapshot publishes an already-built snapshot under the version key.
func (e *Engine) PublishSnapshot(versionKey string, snap *definition.Snapshot) {
	e.versions.AddOrUpdate(versionKey, snap)

	observability.ModelPublishes.WithLabelValues(versionKey).Inc()
	observability.ModelVersionsLoaded.Set(float64(len(e.versions.ListVersions())))
	e.log.Info("model published",
		zap.String("version", versionKey),
		zap.Int("entityTypes", len(snap.EntityTypes())),
		zap.String("checksum", snap.Checksum()))
}

// Snapshot resolves the snapshot for a version key, or the default snapshot
// when the key is empty.
func (e *Engine) Snapshot(versionKey string) (*definition.Snapshot, error) {
	if versionKey == "" {
		return e.versions.Default()
	}
	return e.versions.Snapshot(versionKey)
}

// ListModelVersions returns all published version keys in publish order.
func (e *Engine) ListModelVersions() []string {
	return e.versions.ListVersions()
}

// CreateInstance creates an instance of the entity type under the default
// model version, resolving the initial step from the initial properties.
func (e *Engine) CreateInstance(ctx context.Context, entityType, variant, parentID string, initialProps model.Properties, user *model.User) (*model.WorkflowInstance, error) {
	snap, err := e.versions.Default()
	if err != nil {
		return nil, err
	}
	return e.instances.Create(ctx, snap, entityType, variant, parentID, initialProps, user)
}

// GetInstance loads an instance by ID.
func (e *Engine) GetInstance(ctx context.Context, id string) (*model.WorkflowInstance, error) {
	return e.instances.Get(ctx, id)
}

// GetAllowedActions returns the actions the user may perform on the
// instance's current step for the given role action, in declaration order.
func (e *Engine) GetAllowedActions(ctx context.Context, inst *model.WorkflowInstance, user *model.User, roleAction model.RoleAction) ([]model.Action, error) {
	snap, err := e.versions.Default()
	if err != nil {
		return nil, err
	}
	return e.rights.GetAllowedActions(ctx, snap, inst, user, roleAction)
}

// Can is the coarse permission check for a role action on an instance.
func (e *Engine) Can(ctx context.Context, inst *model.WorkflowInstance, user *model.User, roleAction model.RoleAction) (bool, error) {
	snap, err := e.versions.Default()
	if err != nil {
		return false, err
	}
	return e.rights.Can(ctx, snap, inst, user, roleAction)
}

// ExecuteAction runs a named action end to end and commits the result
// atomically. A failed trigger run never reaches the store.
func (e *Engine) ExecuteAction(ctx context.Context, inst *model.WorkflowInstance, user *model.User, roleAction model.RoleAction, actionName string) (*model.WorkflowInstance, error) {
	snap, err := e.versions.Default()
	if err != nil {
		return nil, err
	}
	return e.actions.ExecuteAction(ctx, snap, inst, user, roleAction, actionName)
}

// RecordStepVersion appends a snapshot of submitted step data.
func (e *Engine) RecordStepVersion(ctx context.Context, inst *model.WorkflowInstance, stepName string, data model.Properties, submittedBy string) (model.StepVersion, error) {
	snap, err := e.versions.Default()
	if err != nil {
		return model.StepVersion{}, err
	}
	return e.tracker.RecordVersion(ctx, snap, inst, stepName, data, submittedBy)
}

// GetStepVersions returns the recorded submission history for a step.
func (e *Engine) GetStepVersions(ctx context.Context, inst *model.WorkflowInstance, stepName string) ([]model.StepVersion, error) {
	snap, err := e.versions.Default()
	if err != nil {
		return nil, err
	}
	return e.tracker.GetStepVersions(ctx, snap, inst, stepName)
}

// AddEvent sets a named event marker on an instance.
func (e *Engine) AddEvent(ctx context.Context, id, eventName string, user *model.User) (*model.WorkflowInstance, error) {
	snap, err := e.versions.Default()
	if err != nil {
		return nil, err
	}
	return e.instances.AddEvent(ctx, snap, id, eventName, user)
}

// DeleteEvent removes a named event marker; absent events are a no-op.
func (e *Engine) DeleteEvent(ctx context.Context, id, eventName string, user *model.User) (*model.WorkflowInstance, error) {
	snap, err := e.versions.Default()
	if err != nil {
		return nil, err
	}
	return e.instances.DeleteEvent(ctx, snap, id, eventName, user)
}

// DeleteInstance removes an instance when the user holds delete permission.
func (e *Engine) DeleteInstance(ctx context.Context, id string, user *model.User) error {
	snap, err := e.versions.Default()
	if err != nil {
		return err
	}
	return e.instances.Delete(ctx, snap, id, user)
}
