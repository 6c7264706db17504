package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eventscape/relevance/internal/apperrors"
	"github.com/eventscape/relevance/internal/models"
)

// ErrVersionConflict is returned by SaveInterest when the stored version no longer matches
// the version the caller read.
var ErrVersionConflict = errors.New("interest version conflict")

// InterestsRepository reads and writes the interest vector stored on the users table.
type InterestsRepository struct {
	db *pgxpool.Pool
}

// NewInterestsRepository creates a new interests repository.
func NewInterestsRepository(db *pgxpool.Pool) *InterestsRepository {
	return &InterestsRepository{db: db}
}

// GetInterest returns the user's interest vector (nil when absent) and its version.
func (r *InterestsRepository) GetInterest(ctx context.Context, userID uuid.UUID) (*models.UserInterest, error) {
	interest := models.UserInterest{UserID: userID}

	var emb nullableEmbedding

	err := r.db.QueryRow(ctx, `
		SELECT embedding, interest_version, interest_updated_at
		FROM users
		WHERE id = $1`, userID,
	).Scan(&emb, &interest.Version, &interest.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("user", "user not found")
		}

		return nil, fmt.Errorf("failed to get user interest: %w", err)
	}

	interest.Vector = emb

	return &interest, nil
}

// SaveInterest overwrites the user's interest vector when the stored version equals
// expectedVersion, and returns the new version. Returns ErrVersionConflict when another
// writer got there first and a NotFoundError when the user no longer exists.
func (r *InterestsRepository) SaveInterest(
	ctx context.Context, userID uuid.UUID, vector []float32, expectedVersion int64,
) (int64, error) {
	var newVersion int64

	err := r.db.QueryRow(ctx, `
		UPDATE users
		SET embedding = $1, interest_version = interest_version + 1, interest_updated_at = now()
		WHERE id = $2 AND interest_version = $3
		RETURNING interest_version`,
		vectorArg(vector), userID, expectedVersion,
	).Scan(&newVersion)
	if err == nil {
		return newVersion, nil
	}

	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("failed to save user interest: %w", err)
	}

	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists); err != nil {
		return 0, fmt.Errorf("failed to check user existence: %w", err)
	}

	if !exists {
		return 0, apperrors.NewNotFoundError("user", "user not found")
	}

	return 0, ErrVersionConflict
}

// InterestedUsers returns users whose interest vector has cosine similarity above minSimilarity
// with embedding, most similar first. Uses pgvector cosine distance (<=>); similarity = 1 - distance.
func (r *InterestsRepository) InterestedUsers(
	ctx context.Context, embedding []float32, minSimilarity float64, limit int,
) ([]models.InterestMatch, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, (1 - (embedding <=> $1)) AS similarity
		FROM users
		WHERE embedding IS NOT NULL AND (1 - (embedding <=> $1)) > $2
		ORDER BY embedding <=> $1
		LIMIT $3`,
		vectorArg(embedding), minSimilarity, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query interested users: %w", err)
	}
	defer rows.Close()

	var matches []models.InterestMatch

	for rows.Next() {
		var m models.InterestMatch
		if err := rows.Scan(&m.UserID, &m.Similarity); err != nil {
			return nil, fmt.Errorf("failed to scan interested user: %w", err)
		}

		matches = append(matches, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating interested users: %w", err)
	}

	return matches, nil
}
