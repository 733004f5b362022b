// Package stepver keeps the append-only version history of step submissions
// per workflow instance.
package stepver

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tessera-io/tessera/internal/definition"
	"github.com/tessera-io/tessera/internal/observability"
	"github.com/tessera-io/tessera/internal/schema"
	"github.com/tessera-io/tessera/model"
)

// VersionStore persists step versions. Append assigns the next sequence
// number for the (instance, step) pair under a store-level serialization
// point, so concurrent submissions never produce duplicates or gaps.
type VersionStore interface {
	Append(ctx context.Context, v model.StepVersion) (model.StepVersion, error)
	List(ctx context.Context, instanceID, stepName string) ([]model.StepVersion, error)
}

// Tracker records and serves step version history. Versions are immutable
// once recorded; there is no update or delete.
type Tracker struct {
	log   *zap.Logger
	store VersionStore
	now   func() time.Time
}

// NewTracker creates a step version tracker.
func NewTracker(log *zap.Logger, store VersionStore) *Tracker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Tracker{log: log, store: store, now: time.Now}
}

// RecordVersion appends a snapshot of submitted step data. The step must
// exist on the instance's definition, otherwise ENTITY_NOT_FOUND. When the
// step binds a form, the data is validated against it first. Sequence numbers
// start at 1 and are strictly increasing per (instance, step).
func (t *Tracker) RecordVersion(ctx context.Context, snap *definition.Snapshot, inst *model.WorkflowInstance, stepName string, data model.Properties, submittedBy string) (model.StepVersion, error) {
	step, err := t.resolveStep(snap, inst, stepName)
	if err != nil {
		return model.StepVersion{}, err
	}

	if step.Form != "" {
		form, err := snap.Form(step.Form)
		if err != nil {
			return model.StepVersion{}, err
		}
		if err := schema.ValidateFormData(snap, form, data); err != nil {
			return model.StepVersion{}, err
		}
	}

	v := model.StepVersion{
		InstanceID:    inst.ID,
		StepName:      stepName,
		SubmittedData: data.Clone(),
		SubmittedAt:   t.now().UTC(),
		SubmittedBy:   submittedBy,
	}
	stored, err := t.store.Append(ctx, v)
	if err != nil {
		return model.StepVersion{}, err
	}

	observability.StepVersionsRecorded.WithLabelValues(stepName).Inc()
	t.log.Info("step version recorded",
		zap.String("instance", inst.ID),
		zap.String("step", stepName),
		zap.Int("sequence", stored.SequenceNumber),
		zap.String("submittedBy", submittedBy))
	return stored, nil
}

// GetStepVersions returns the recorded history for the step in sequence
// order. An unknown step name is ENTITY_NOT_FOUND; a known step with no
// recorded versions is an empty result.
func (t *Tracker) GetStepVersions(ctx context.Context, snap *definition.Snapshot, inst *model.WorkflowInstance, stepName string) ([]model.StepVersion, error) {
	if _, err := t.resolveStep(snap, inst, stepName); err != nil {
		return nil, err
	}
	return t.store.List(ctx, inst.ID, stepName)
}

func (t *Tracker) resolveStep(snap *definition.Snapshot, inst *model.WorkflowInstance, stepName string) (*model.Step, error) {
	et, err := snap.EntityType(inst.EntityType)
	if err != nil {
		return nil, err
	}
	step := et.FindStep(stepName)
	if step == nil {
		return nil, model.NewEntityNotFoundError(
			fmt.Sprintf("step %q does not exist on entity type %q", stepName, inst.EntityType))
	}
	return step, nil
}
