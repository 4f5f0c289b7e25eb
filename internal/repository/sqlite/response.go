package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/garnizeh/talentflow/pkg/models"
)

func (r *txRepo) AddResponse(ctx context.Context, resp *models.AssessmentResponse) error {
	if resp == nil {
		return fmt.Errorf("response is nil")
	}

	body, err := marshalText(resp.Responses)
	if err != nil {
		return err
	}
	if _, err := r.tx.ExecContext(ctx,
		`INSERT INTO assessment_responses (id, assessment_id, candidate_id, responses, submitted) VALUES (?, ?, ?, ?, ?)`,
		resp.ID, resp.AssessmentID, resp.CandidateID, body, millis(resp.SubmittedAt)); err != nil {
		return fmt.Errorf("insert response: %w", err)
	}

	return nil
}

func (r *txRepo) ListResponses(ctx context.Context, assessmentID string) ([]models.AssessmentResponse, error) {
	rows, err := r.tx.QueryContext(ctx, `SELECT id, assessment_id, candidate_id, responses, submitted FROM assessment_responses WHERE assessment_id = ? ORDER BY submitted ASC, rowid ASC`, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("query responses: %w", err)
	}
	defer rows.Close()

	out := []models.AssessmentResponse{}
	for rows.Next() {
		var (
			resp      models.AssessmentResponse
			body      string
			submitted int64
		)
		if err := rows.Scan(&resp.ID, &resp.AssessmentID, &resp.CandidateID, &body, &submitted); err != nil {
			return nil, fmt.Errorf("scan response: %w", err)
		}
		if err := json.Unmarshal([]byte(body), &resp.Responses); err != nil {
			return nil, fmt.Errorf("decode response %s: %w", resp.ID, err)
		}
		resp.SubmittedAt = fromMillis(submitted)
		out = append(out, resp)
	}

	return out, rows.Err()
}
