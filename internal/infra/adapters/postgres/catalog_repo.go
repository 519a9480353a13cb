package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sharifevents/shop-service/internal/core/domain/entity"
	"github.com/sharifevents/shop-service/internal/core/ports"
)

type catalogRepo struct{ repos }

func (r catalogRepo) Resolve(ctx context.Context, ref entity.ItemRef) (*entity.Item, error) {
	it := entity.Item{Ref: ref}
	var err error
	switch ref.Kind {
	case entity.KindPresentation:
		err = r.q.QueryRowContext(ctx,
			`SELECT description, is_paid, price, active FROM presentations WHERE id = $1`, ref.ID).
			Scan(&it.Description, &it.IsPaid, &it.BasePrice, &it.Available)
	case entity.KindSoloCompetition:
		err = r.q.QueryRowContext(ctx,
			`SELECT description, is_paid, price, active FROM solo_competitions WHERE id = $1`, ref.ID).
			Scan(&it.Description, &it.IsPaid, &it.BasePrice, &it.Available)
	case entity.KindCompetitionTeam:
		err = r.q.QueryRowContext(ctx,
			`SELECT t.description, c.is_paid, c.price_per_group, (t.active AND c.active),
			        t.leader_id, c.requires_approval, t.status
			 FROM competition_teams t
			 JOIN group_competitions c ON c.id = t.competition_id
			 WHERE t.id = $1`, ref.ID).
			Scan(&it.Description, &it.IsPaid, &it.BasePrice, &it.Available,
				&it.LeaderID, &it.RequiresApproval, &it.TeamStatus)
	default:
		return nil, fmt.Errorf("resolve item: unknown kind %q", ref.Kind)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ports.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", ref, err)
	}
	return &it, nil
}

func (r catalogRepo) SetTeamStatus(ctx context.Context, teamID int64, status entity.TeamStatus) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE competition_teams SET status = $2 WHERE id = $1`, teamID, status)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r catalogRepo) Owned(ctx context.Context, userID int64, ref entity.ItemRef) (bool, error) {
	var (
		q    string
		args []any
	)
	switch ref.Kind {
	case entity.KindPresentation:
		q = `SELECT EXISTS (SELECT 1 FROM enrollments WHERE user_id = $1 AND presentation_id = $2)`
		args = []any{userID, ref.ID}
	case entity.KindSoloCompetition:
		q = `SELECT EXISTS (SELECT 1 FROM registrations WHERE user_id = $1 AND competition_id = $2)`
		args = []any{userID, ref.ID}
	case entity.KindCompetitionTeam:
		q = `SELECT EXISTS (SELECT 1 FROM competition_teams WHERE id = $2 AND leader_id = $1 AND status = $3)`
		args = []any{userID, ref.ID, entity.TeamActive}
	default:
		return false, fmt.Errorf("owned check: unknown kind %q", ref.Kind)
	}
	var exists bool
	err := r.q.QueryRowContext(ctx, q, args...).Scan(&exists)
	return exists, err
}

type fulfillmentRepo struct{ repos }

func (r fulfillmentRepo) Enroll(ctx context.Context, userID, presentationID int64) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO enrollments (user_id, presentation_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, userID, presentationID)
	return err
}

func (r fulfillmentRepo) Register(ctx context.Context, userID, competitionID int64) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO registrations (user_id, competition_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, userID, competitionID)
	return err
}

func (r fulfillmentRepo) ActivateTeam(ctx context.Context, teamID int64) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE competition_teams SET status = $2 WHERE id = $1`, teamID, entity.TeamActive)
	if err != nil {
		return err
	}
	return requireRow(res)
}
