package memory

import (
	"context"

	"github.com/sharifevents/shop-service/internal/core/domain/entity"
	"github.com/sharifevents/shop-service/internal/core/ports"
)

type catalogRepo struct{ repos }

func (r catalogRepo) Resolve(ctx context.Context, ref entity.ItemRef) (*entity.Item, error) {
	defer r.enter()()
	it, ok := r.s.st.items[ref]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return &it, nil
}

func (r catalogRepo) SetTeamStatus(ctx context.Context, teamID int64, status entity.TeamStatus) error {
	defer r.enter()()
	ref := entity.ItemRef{Kind: entity.KindCompetitionTeam, ID: teamID}
	it, ok := r.s.st.items[ref]
	if !ok {
		return ports.ErrNotFound
	}
	it.TeamStatus = status
	r.s.st.items[ref] = it
	return nil
}

func (r catalogRepo) Owned(ctx context.Context, userID int64, ref entity.ItemRef) (bool, error) {
	defer r.enter()()
	key := enrollKey{UserID: userID, ItemID: ref.ID}
	switch ref.Kind {
	case entity.KindPresentation:
		return r.s.st.enrollments[key], nil
	case entity.KindSoloCompetition:
		return r.s.st.registrations[key], nil
	case entity.KindCompetitionTeam:
		it, ok := r.s.st.items[ref]
		return ok && it.LeaderID == userID && it.TeamStatus == entity.TeamActive, nil
	}
	return false, nil
}

type fulfillmentRepo struct{ repos }

func (r fulfillmentRepo) Enroll(ctx context.Context, userID, presentationID int64) error {
	defer r.enter()()
	r.s.st.enrollments[enrollKey{UserID: userID, ItemID: presentationID}] = true
	return nil
}

func (r fulfillmentRepo) Register(ctx context.Context, userID, competitionID int64) error {
	defer r.enter()()
	r.s.st.registrations[enrollKey{UserID: userID, ItemID: competitionID}] = true
	return nil
}

func (r fulfillmentRepo) ActivateTeam(ctx context.Context, teamID int64) error {
	defer r.enter()()
	ref := entity.ItemRef{Kind: entity.KindCompetitionTeam, ID: teamID}
	it, ok := r.s.st.items[ref]
	if !ok {
		return ports.ErrNotFound
	}
	it.TeamStatus = entity.TeamActive
	r.s.st.items[ref] = it
	return nil
}
