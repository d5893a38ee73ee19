package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/jalniti/waterwallet/internal/models"
)

// encodeSessionMaps serializes the answers and choice map for SQL columns.
// An absent choice map is stored as the empty string so staleness survives a
// round trip: nil means "no list is live".
func encodeSessionMaps(session *models.Session) (answers string, choices string, err error) {
	a, err := json.Marshal(session.Answers)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode answers: %w", err)
	}
	if session.ChoiceMap == nil {
		return string(a), "", nil
	}
	c, err := json.Marshal(session.ChoiceMap)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode choice map: %w", err)
	}
	return string(a), string(c), nil
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanSession reads one session row.
func scanSession(row rowScanner) (*models.Session, error) {
	var session models.Session
	var step, flow, answersJSON, choicesJSON string
	err := row.Scan(&session.UserID, &step, &flow, &answersJSON, &choicesJSON,
		&session.ListPrompt, &session.InvalidCount, &session.CreatedAt, &session.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan session row: %w", err)
	}
	session.Step = models.Step(step)
	session.Flow = models.Flow(flow)

	session.Answers = make(map[models.AnswerKey]string)
	if answersJSON != "" && answersJSON != "{}" {
		if err := json.Unmarshal([]byte(answersJSON), &session.Answers); err != nil {
			return nil, fmt.Errorf("failed to decode answers: %w", err)
		}
	}
	if choicesJSON != "" {
		session.ChoiceMap = make(map[int]string)
		if err := json.Unmarshal([]byte(choicesJSON), &session.ChoiceMap); err != nil {
			return nil, fmt.Errorf("failed to decode choice map: %w", err)
		}
	}
	return &session, nil
}
