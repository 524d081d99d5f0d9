package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v2"
	"go.uber.org/zap/zaptest"

	"github.com/wasipo/harbor-sub000/internal/core/domain"
)

func TestTxManager_CommitsOnSuccess(t *testing.T) {
	mock := newMockPool(t)
	manager := NewTxManager(mock, zaptest.NewLogger(t))
	assignments := NewRoleAssignmentRepository(mock)

	assignment := domain.RoleAssignment{UserID: domain.NewUserID(), RoleID: domain.NewRoleID(), AssignedAt: time.Now()}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO iam\.user_roles`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err := manager.WithinTx(context.Background(), func(ctx context.Context) error {
		if _, ok := txFrom(ctx); !ok {
			t.Fatal("expected transaction in context")
		}
		return assignments.Insert(ctx, assignment)
	})
	if err != nil {
		t.Fatalf("WithinTx returned error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTxManager_RollsBackOnError(t *testing.T) {
	mock := newMockPool(t)
	manager := NewTxManager(mock, zaptest.NewLogger(t))
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := manager.WithinTx(context.Background(), func(ctx context.Context) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTxManager_NestedCallJoinsTransaction(t *testing.T) {
	mock := newMockPool(t)
	manager := NewTxManager(mock, nil)

	mock.ExpectBegin()
	mock.ExpectCommit()

	err := manager.WithinTx(context.Background(), func(ctx context.Context) error {
		return manager.WithinTx(ctx, func(context.Context) error { return nil })
	})
	if err != nil {
		t.Fatalf("WithinTx returned error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
