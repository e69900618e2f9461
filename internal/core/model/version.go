package model

import (
	"fmt"
	"math"
	"time"
)

type RecordKind int

const (
	KindEntity RecordKind = iota
	KindRelationship
)

func (k RecordKind) String() string {
	if k == KindRelationship {
		return "relationship"
	}
	return "entity"
}

func (k RecordKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *RecordKind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "entity":
		*k = KindEntity
	case "relationship":
		*k = KindRelationship
	default:
		return fmt.Errorf("unknown record kind %q", text)
	}
	return nil
}

type ChangeType string

const (
	ChangeCreate ChangeType = "create"
	ChangeUpdate ChangeType = "update"
)

const DefaultBranch = "main"

// Version is one immutable entry in a logical identity's version chain.
// Exactly one version per (logical id, branch) is current at any instant;
// an unset ValidTo means the version is still open.
type Version struct {
	VersionID         string        `json:"version_id"`
	LogicalID         string        `json:"logical_id"`
	Kind              RecordKind    `json:"kind"`
	Branch            string        `json:"branch_name"`
	ChangeType        ChangeType    `json:"change_type"`
	ChangeSource      string        `json:"change_source,omitempty"`
	ValidFrom         time.Time     `json:"valid_from"`
	ValidTo           *time.Time    `json:"valid_to,omitempty"`
	PredecessorID     string        `json:"predecessor_version_id,omitempty"`
	SuccessorIDs      []string      `json:"successor_version_ids,omitempty"`
	IsCurrent         bool          `json:"is_current"`
	InitialConfidence float64       `json:"initial_confidence"`
	DecayRate         float64       `json:"decay_rate"`
	Entity            *Entity       `json:"entity,omitempty"`
	Relationship      *Relationship `json:"relationship,omitempty"`
}

// Contains reports whether t falls inside [ValidFrom, ValidTo), treating an
// unset ValidTo as +infinity.
func (v *Version) Contains(t time.Time) bool {
	if t.Before(v.ValidFrom) {
		return false
	}
	return v.ValidTo == nil || t.Before(*v.ValidTo)
}

// ConfidenceAt computes the decayed confidence at the given instant. It is a
// pure function of the initial confidence, decay rate and version age, so it
// can never go stale.
func (v *Version) ConfidenceAt(now time.Time) float64 {
	if v.DecayRate <= 0 {
		return ClampConfidence(v.InitialConfidence)
	}
	days := now.Sub(v.ValidFrom).Hours() / 24
	if days < 0 {
		days = 0
	}
	return ClampConfidence(v.InitialConfidence * math.Exp(-v.DecayRate*days))
}

func (v *Version) Clone() *Version {
	out := *v
	out.SuccessorIDs = append([]string(nil), v.SuccessorIDs...)
	if v.ValidTo != nil {
		to := *v.ValidTo
		out.ValidTo = &to
	}
	if v.Entity != nil {
		out.Entity = v.Entity.Clone()
	}
	if v.Relationship != nil {
		out.Relationship = v.Relationship.Clone()
	}
	return &out
}
