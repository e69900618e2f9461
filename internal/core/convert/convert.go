// Package convert maps extraction-pipeline records into the engine's
// canonical entity/relationship shape. It is stateless and pure apart from
// id generation for records that arrive without one.
package convert

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/weavelabs/weave/internal/core/model"
)

// defaultConfidence is assigned when the extractor reports no confidence at
// all; an unknown extractor is trusted halfway, not fully.
const defaultConfidence = 0.5

// Skip records one malformed input dropped during conversion.
type Skip struct {
	Index  int    `json:"index"`
	ID     string `json:"id,omitempty"`
	Reason string `json:"reason"`
}

type Converter struct {
	log *zap.Logger
}

func NewConverter(log *zap.Logger) *Converter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Converter{log: log}
}

// Entities converts extracted entities to canonical records. Malformed
// records are skipped with a logged reason and never abort the batch.
func (c *Converter) Entities(in []model.ExtractedEntity) ([]*model.Entity, []Skip) {
	out := make([]*model.Entity, 0, len(in))
	var skipped []Skip
	now := time.Now().UTC()

	for i, rec := range in {
		name := rec.Name
		if name == "" {
			name = rec.Text
		}
		if name == "" {
			skipped = append(skipped, c.skip(i, rec.ID, "entity has neither name nor text"))
			continue
		}
		if rec.Type == "" {
			skipped = append(skipped, c.skip(i, rec.ID, fmt.Sprintf("entity %q has no type", name)))
			continue
		}

		id := rec.ID
		if id == "" {
			id = uuid.New().String()
		}

		props := map[string]interface{}{}
		for k, v := range rec.Metadata {
			props[k] = v
		}
		if rec.Text != "" && rec.Text != name {
			props["surface_form"] = rec.Text
		}
		if rec.EndOffset > rec.StartOffset {
			props["start_offset"] = rec.StartOffset
			props["end_offset"] = rec.EndOffset
		}

		out = append(out, &model.Entity{
			ID:         id,
			Name:       name,
			Labels:     []string{rec.Type},
			Properties: props,
			Confidence: confidence(rec.Confidence),
			Source:     rec.Source,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}
	return out, skipped
}

// Relationships converts extracted relationships. Endpoint existence is not
// checked here; that is the coordinator's job at persistence time.
func (c *Converter) Relationships(in []model.ExtractedRelationship) ([]*model.Relationship, []Skip) {
	out := make([]*model.Relationship, 0, len(in))
	var skipped []Skip
	now := time.Now().UTC()

	for i, rec := range in {
		if rec.SourceID == "" || rec.TargetID == "" {
			skipped = append(skipped, c.skip(i, rec.ID, "relationship is missing source or target"))
			continue
		}
		if rec.RelationType == "" {
			skipped = append(skipped, c.skip(i, rec.ID, fmt.Sprintf("relationship %s->%s has no type", rec.SourceID, rec.TargetID)))
			continue
		}

		id := rec.ID
		if id == "" {
			id = uuid.New().String()
		}

		props := map[string]interface{}{}
		for k, v := range rec.Metadata {
			props[k] = v
		}
		if rec.Context != "" {
			props["context"] = rec.Context
		}

		out = append(out, &model.Relationship{
			ID:         id,
			Type:       rec.RelationType,
			SourceID:   rec.SourceID,
			TargetID:   rec.TargetID,
			Properties: props,
			Confidence: confidence(rec.Confidence),
			Source:     rec.Source,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}
	return out, skipped
}

func (c *Converter) skip(index int, id, reason string) Skip {
	c.log.Warn("skipping malformed extraction record",
		zap.Int("index", index), zap.String("id", id), zap.String("reason", reason))
	return Skip{Index: index, ID: id, Reason: reason}
}

func confidence(raw float64) float64 {
	if raw == 0 {
		return defaultConfidence
	}
	return model.ClampConfidence(raw)
}
