package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/alfrecampione/golden-review-backend/observability"
)

// ErrPolicyNotFound is returned when no policy row matches the number.
var ErrPolicyNotFound = errors.New("policy not found")

const policyTable = "qq.policies"

// PolicyRepository resolves policy numbers to their owning customer.
type PolicyRepository struct {
	db     *sqlx.DB
	logger observability.Logger
	qb     squirrel.StatementBuilderType
}

// NewPolicyRepository creates a policy repository over the given pool.
func NewPolicyRepository(db *sqlx.DB, logger observability.Logger) *PolicyRepository {
	return &PolicyRepository{
		db:     db,
		logger: logger,
		qb:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// CustomerIDByPolicy returns the customer id that owns the given policy
// number, or ErrPolicyNotFound.
func (r *PolicyRepository) CustomerIDByPolicy(ctx context.Context, policyNumber string) (string, error) {
	query, args, err := r.qb.
		Select("customer_id").
		From(policyTable).
		Where(squirrel.Eq{"policy_number": policyNumber}).
		Limit(1).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("build query: %w", err)
	}

	var customerID string
	err = r.db.GetContext(ctx, &customerID, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrPolicyNotFound
	}
	if err != nil {
		return "", fmt.Errorf("lookup policy %s: %w", policyNumber, err)
	}
	return customerID, nil
}
