// Package instance manages the lifecycle of workflow instances: creation
// with initial step resolution, event markers, and deletion.
package instance

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tessera-io/tessera/internal/definition"
	"github.com/tessera-io/tessera/internal/observability"
	"github.com/tessera-io/tessera/internal/rights"
	"github.com/tessera-io/tessera/internal/trigger"
	"github.com/tessera-io/tessera/model"
)

// Store persists workflow instances.
type Store interface {
	GetByID(ctx context.Context, id string) (*model.WorkflowInstance, error)
	GetByEntityType(ctx context.Context, name string) ([]model.WorkflowInstance, error)
	Save(ctx context.Context, inst *model.WorkflowInstance) error
	Delete(ctx context.Context, id string) error
}

// Service is the instance lifecycle service. It also acts as the instance
// factory for create_child triggers.
type Service struct {
	log      *zap.Logger
	store    Store
	versions *definition.Versions
	rights   *rights.Evaluator
	now      func() time.Time
}

// NewService creates an instance service.
func NewService(log *zap.Logger, store Store, versions *definition.Versions, ev *rights.Evaluator) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{log: log, store: store, versions: versions, rights: ev, now: time.Now}
}

// Create validates the entity type against the snapshot, assigns a fresh ID,
// resolves the initial step from the initial properties, and persists the
// instance. Embedded entity types can only exist under a parent. ParentID is
// a non-owning back-reference.
func (s *Service) Create(ctx context.Context, snap *definition.Snapshot, entityType, variant, parentID string, initialProps model.Properties, user *model.User) (*model.WorkflowInstance, error) {
	et, err := snap.EntityType(entityType)
	if err != nil {
		return nil, err
	}
	if et.IsEmbedded && parentID == "" {
		return nil, model.NewValidationError([]model.FieldError{{
			Field:   "entity_type",
			Message: fmt.Sprintf("entity type %q is embedded and requires a parent", entityType),
		}})
	}
	if variant != "" && !hasVariant(et, variant) {
		return nil, model.NewValidationError([]model.FieldError{{
			Field:   "variant",
			Message: fmt.Sprintf("entity type %q has no variant %q", entityType, variant),
		}})
	}

	now := s.now().UTC()
	inst := &model.WorkflowInstance{
		ID:         uuid.NewString(),
		EntityType: entityType,
		Variant:    variant,
		Properties: initialProps.Clone(),
		Events:     map[string]model.InstanceEvent{},
		ParentID:   parentID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	step, err := trigger.ResolveCurrentStep(et, inst, user)
	if err != nil {
		return nil, err
	}
	inst.CurrentStep = step

	if err := s.store.Save(ctx, inst); err != nil {
		return nil, err
	}

	observability.InstanceCreations.WithLabelValues(entityType).Inc()
	s.log.Info("instance created",
		zap.String("instance", inst.ID),
		zap.String("entityType", entityType),
		zap.String("step", inst.CurrentStep),
		zap.String("parent", parentID))
	return inst, nil
}

// CreateChild implements trigger.InstanceFactory against the default model
// version.
func (s *Service) CreateChild(ctx context.Context, parent *model.WorkflowInstance, entityType string, props model.Properties) (*model.WorkflowInstance, error) {
	snap, err := s.versions.Default()
	if err != nil {
		return nil, err
	}
	return s.Create(ctx, snap, entityType, "", parent.ID, props, model.UserFrom(ctx))
}

// Get loads an instance by ID.
func (s *Service) Get(ctx context.Context, id string) (*model.WorkflowInstance, error) {
	return s.store.GetByID(ctx, id)
}

// ListByEntityType returns all instances of the named entity type.
func (s *Service) ListByEntityType(ctx context.Context, name string) ([]model.WorkflowInstance, error) {
	return s.store.GetByEntityType(ctx, name)
}

// AddEvent sets the named event marker on the instance and recomputes the
// current step, since step guards may test for it.
func (s *Service) AddEvent(ctx context.Context, snap *definition.Snapshot, id, eventName string, user *model.User) (*model.WorkflowInstance, error) {
	inst, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	working := inst.Clone()
	if working.Events == nil {
		working.Events = map[string]model.InstanceEvent{}
	}
	now := s.now().UTC()
	working.Events[eventName] = model.InstanceEvent{ID: uuid.NewString(), Date: &now}

	if err := s.recomputeAndSave(ctx, snap, &working, user); err != nil {
		return nil, err
	}
	return &working, nil
}

// DeleteEvent removes the named event marker. Removing an absent event is an
// idempotent no-op; the stored instance is not rewritten in that case.
func (s *Service) DeleteEvent(ctx context.Context, snap *definition.Snapshot, id, eventName string, user *model.User) (*model.WorkflowInstance, error) {
	inst, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !inst.HasEvent(eventName) {
		return inst, nil
	}

	working := inst.Clone()
	delete(working.Events, eventName)

	if err := s.recomputeAndSave(ctx, snap, &working, user); err != nil {
		return nil, err
	}
	s.log.Info("instance event deleted",
		zap.String("instance", id),
		zap.String("event", eventName))
	return &working, nil
}

// Delete removes an instance when the user holds delete permission. Children
// are left untouched; ParentID is a back-reference only.
func (s *Service) Delete(ctx context.Context, snap *definition.Snapshot, id string, user *model.User) error {
	inst, err := s.store.GetByID(ctx, id)
	if err != nil {
		return err
	}

	allowed, err := s.rights.Can(ctx, snap, inst, user, model.RoleActionDelete)
	if err != nil {
		return err
	}
	if !allowed {
		return model.NewPermissionDeniedError(
			fmt.Sprintf("user %s may not delete instance %s", user.SubjectID, id))
	}

	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info("instance deleted",
		zap.String("instance", id),
		zap.String("entityType", inst.EntityType),
		zap.String("subject", user.SubjectID))
	return nil
}

func (s *Service) recomputeAndSave(ctx context.Context, snap *definition.Snapshot, inst *model.WorkflowInstance, user *model.User) error {
	et, err := snap.EntityType(inst.EntityType)
	if err != nil {
		return err
	}
	step, err := trigger.ResolveCurrentStep(et, inst, user)
	if err != nil {
		return err
	}
	inst.CurrentStep = step
	return s.store.Save(ctx, inst)
}

func hasVariant(et *model.EntityType, variant string) bool {
	for _, v := range et.Variants {
		if v == variant {
			return true
		}
	}
	return false
}
