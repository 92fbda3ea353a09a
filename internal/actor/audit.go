package actor

import (
	"context"
	"time"

	id "warden/pkg/domain"
)

// Audit is the "who did this, when" block embedded in every read model.
type Audit struct {
	Version     int64      `json:"version"`
	CreatedByID id.ActorID `json:"-"`
	CreatedBy   Actor      `json:"created_by"`
	CreatedOn   time.Time  `json:"created_on"`
	UpdatedByID id.ActorID `json:"-"`
	UpdatedBy   Actor      `json:"updated_by"`
	UpdatedOn   time.Time  `json:"updated_on"`
}

// NewAudit builds an Audit whose actors are not resolved yet.
func NewAudit(version int64, createdBy id.ActorID, createdOn time.Time, updatedBy id.ActorID, updatedOn time.Time) Audit {
	return Audit{
		Version:     version,
		CreatedByID: createdBy,
		CreatedOn:   createdOn,
		UpdatedByID: updatedBy,
		UpdatedOn:   updatedOn,
	}
}

// Link is an optional actor field resolved alongside audits.
type Link struct {
	ID     id.ActorID
	Target **Actor
}

// Materialize resolves the actors of every audit with one Find call.
func (s *Service) Materialize(ctx context.Context, audits ...*Audit) error {
	return s.MaterializeLinks(ctx, audits, nil)
}

// MaterializeLinks resolves audits and links with one Find call.
func (s *Service) MaterializeLinks(ctx context.Context, audits []*Audit, links []Link) error {
	if len(audits) == 0 && len(links) == 0 {
		return nil
	}
	ids := make([]id.ActorID, 0, 2*len(audits)+len(links))
	for _, a := range audits {
		ids = append(ids, a.CreatedByID, a.UpdatedByID)
	}
	for _, l := range links {
		ids = append(ids, l.ID)
	}
	actors, err := s.Find(ctx, ids)
	if err != nil {
		return err
	}
	for _, a := range audits {
		a.CreatedBy = actors[a.CreatedByID]
		a.UpdatedBy = actors[a.UpdatedByID]
	}
	for _, l := range links {
		resolved := actors[l.ID]
		*l.Target = &resolved
	}
	return nil
}
