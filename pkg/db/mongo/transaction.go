package mongo

import (
	"context"
	"fmt"

	apperrors "canchas/pkg/errors"

	"go.mongodb.org/mongo-driver/mongo"
)

type TransactionFunc func(ctx context.Context) error

type TransactionManager interface {
	ExecuteTransaction(ctx context.Context, fn TransactionFunc) error
	// Atomic reports whether ExecuteTransaction rolls back on error. When it
	// does not, callers own compensation of partial writes.
	Atomic() bool
}

type mongoTransactionManager struct {
	client       *mongo.Client
	transactions bool
}

// NewTransactionManager returns a manager that runs fn inside a multi-document
// transaction when transactions is true. Standalone servers do not support
// transactions; pass false there and fn runs directly against ctx.
func NewTransactionManager(client *mongo.Client, transactions bool) TransactionManager {
	return &mongoTransactionManager{
		client:       client,
		transactions: transactions && client != nil,
	}
}

func (m *mongoTransactionManager) Atomic() bool {
	return m.transactions
}

func (m *mongoTransactionManager) ExecuteTransaction(ctx context.Context, fn TransactionFunc) error {
	if !m.transactions {
		return fn(ctx)
	}

	// Nested calls join the surrounding transaction.
	if _, ok := ctx.(mongo.SessionContext); ok {
		return fn(ctx)
	}

	session, err := m.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (any, error) {
		return nil, fn(sessCtx)
	})

	if err != nil {
		if apperrors.IsAppError(err) {
			return err
		}
		return fmt.Errorf("transaction failed: %w", err)
	}

	return nil
}
