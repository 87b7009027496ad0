package recommend

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kindred-app/kindred/internal/events"
	"github.com/kindred-app/kindred/internal/scoring"
	"github.com/kindred-app/kindred/internal/store"
)

// LoadWeights returns the user's effective weight set. Users with no stored
// rows get the balanced preset; stored rows overlay balanced defaults, so a
// partially configured user still has all seven factors defined.
func (e *Engine) LoadWeights(ctx context.Context, userID uuid.UUID) (scoring.WeightSet, error) {
	rows, err := e.store.GetWeights(ctx, userID)
	if err != nil {
		return scoring.WeightSet{}, err
	}
	ws := scoring.BalancedWeights()
	for _, row := range rows {
		fw := scoring.FactorWeight{Weight: row.Weight, Enabled: row.Enabled}
		if err := ws.Set(row.FactorName, fw); err != nil {
			e.logger.Warn("skipping stored weight with unknown factor", "factor", row.FactorName, "user_id", userID)
		}
	}
	return ws, nil
}

// UpdateWeight validates and upserts a single factor weight, then drops the
// user's cached set. Out-of-range weights and unknown factor names are
// rejected, never clamped.
func (e *Engine) UpdateWeight(ctx context.Context, userID uuid.UUID, factorName string, weight float64, enabled bool) (scoring.WeightSet, error) {
	if err := scoring.ValidateWeight(factorName, weight); err != nil {
		return scoring.WeightSet{}, err
	}
	row := &store.RecommendationWeight{
		UserID:     userID,
		FactorName: factorName,
		Weight:     weight,
		Enabled:    enabled,
	}
	if err := e.store.UpsertWeight(ctx, row); err != nil {
		return scoring.WeightSet{}, err
	}
	e.invalidateWeights(userID)
	e.publishWeightsUpdated(events.WeightsUpdatedEvent{UserID: userID.String(), FactorName: factorName})
	return e.LoadWeights(ctx, userID)
}

// ApplyPreset upserts all seven factors from a named preset in one pass.
func (e *Engine) ApplyPreset(ctx context.Context, userID uuid.UUID, presetName string) (scoring.WeightSet, error) {
	ws, ok := scoring.Preset(presetName)
	if !ok {
		return scoring.WeightSet{}, fmt.Errorf("%w: %q", ErrUnknownPreset, presetName)
	}
	for _, name := range scoring.FactorNames {
		fw, _ := ws.Get(name)
		row := &store.RecommendationWeight{
			UserID:     userID,
			FactorName: name,
			Weight:     fw.Weight,
			Enabled:    fw.Enabled,
		}
		if err := e.store.UpsertWeight(ctx, row); err != nil {
			return scoring.WeightSet{}, err
		}
	}
	e.invalidateWeights(userID)
	e.publishWeightsUpdated(events.WeightsUpdatedEvent{UserID: userID.String(), Preset: presetName})
	return ws, nil
}

// weightsFor serves the per-request weight read through a short-TTL cache so
// a scoring run never reloads weights per candidate, while weight edits still
// take effect across requests quickly.
func (e *Engine) weightsFor(ctx context.Context, userID uuid.UUID) (scoring.WeightSet, error) {
	ttl := e.cfg.WeightCacheTTL()

	e.cacheMu.Lock()
	if cached, ok := e.weightCache[userID]; ok && time.Since(cached.loadedAt) < ttl {
		e.cacheMu.Unlock()
		return cached.weights, nil
	}
	e.cacheMu.Unlock()

	ws, err := e.LoadWeights(ctx, userID)
	if err != nil {
		return scoring.WeightSet{}, err
	}

	e.cacheMu.Lock()
	e.weightCache[userID] = cachedWeights{weights: ws, loadedAt: time.Now()}
	e.cacheMu.Unlock()
	return ws, nil
}

func (e *Engine) invalidateWeights(userID uuid.UUID) {
	e.cacheMu.Lock()
	delete(e.weightCache, userID)
	e.cacheMu.Unlock()
}

func (e *Engine) handleWeightsUpdated(data []byte) {
	var ev events.WeightsUpdatedEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		e.logger.Warn("bad weights-updated payload", "error", err)
		return
	}
	id, err := uuid.Parse(ev.UserID)
	if err != nil {
		return
	}
	e.invalidateWeights(id)
}

func (e *Engine) publishWeightsUpdated(ev events.WeightsUpdatedEvent) {
	if e.events == nil {
		return
	}
	if err := e.events.Publish(events.SubjectWeightsUpdated, ev); err != nil {
		e.logger.Warn("failed to publish weights event", "error", err)
	}
}
