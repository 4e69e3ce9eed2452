package mongo

import (
	"context"
	"errors"
	"testing"
)

func TestTransactionManager_WithoutTransactions(t *testing.T) {
	tm := NewTransactionManager(nil, true)

	if tm.Atomic() {
		t.Fatal("a manager without a client cannot be atomic")
	}

	called := false
	err := tm.ExecuteTransaction(context.Background(), func(ctx context.Context) error {
		called = true
		return nil
	})
	if err != nil || !called {
		t.Fatalf("ExecuteTransaction() err=%v called=%v", err, called)
	}

	want := errors.New("boom")
	err = tm.ExecuteTransaction(context.Background(), func(ctx context.Context) error { return want })
	if !errors.Is(err, want) {
		t.Errorf("expected fn error to be returned unchanged, got %v", err)
	}
}
