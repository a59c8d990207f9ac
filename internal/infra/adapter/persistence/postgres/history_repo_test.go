package postgres_test

import (
	"context"
	"errors"
	"math"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/go-cmp/cmp"

	"pablos-ai/internal/domain/entity"
	"pablos-ai/internal/infra/adapter/persistence/postgres"
)

var t0 = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

/* ──────────────────────────────── Append ──────────────────────────────── */

func TestHistoryRepo_Append(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO conversation_messages`)).
		WithArgs(int64(7), "user", "halo", t0).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM conversation_messages`)).
		WithArgs(int64(7), 50).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	repo := postgres.NewHistoryRepo(db, 50)
	err := repo.Append(context.Background(), &entity.Message{UserID: 7, Role: entity.RoleUser, Content: "halo", CreatedAt: t0})
	if err != nil {
		t.Fatalf("Append err=%v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestHistoryRepo_Append_RollsBackOnError(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO conversation_messages`)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM conversation_messages`)).
		WillReturnError(errors.New("deadlock"))
	mock.ExpectRollback()

	repo := postgres.NewHistoryRepo(db, 50)
	err := repo.Append(context.Background(), &entity.Message{UserID: 7, Role: entity.RoleUser, Content: "halo", CreatedAt: t0})
	if err == nil {
		t.Fatal("want error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestHistoryRepo_Append_Invalid(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	repo := postgres.NewHistoryRepo(db, 50)
	err := repo.Append(context.Background(), &entity.Message{UserID: 0, Role: entity.RoleUser, Content: "x"})
	if !errors.Is(err, entity.ErrValidationFailed) {
		t.Fatalf("err=%v, want validation error", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

/* ──────────────────────────────── Recent ──────────────────────────────── */

func TestHistoryRepo_Recent(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	rows := sqlmock.NewRows([]string{"user_id", "role", "content", "created_at"}).
		AddRow(int64(7), "assistant", "halo juga", t0.Add(time.Second)).
		AddRow(int64(7), "user", "halo", t0)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT user_id, role, content, created_at`)).
		WithArgs(int64(7), 8).
		WillReturnRows(rows)

	repo := postgres.NewHistoryRepo(db, 50)
	got, err := repo.Recent(context.Background(), 7, 8)
	if err != nil {
		t.Fatalf("Recent err=%v", err)
	}

	want := []*entity.Message{
		{UserID: 7, Role: entity.RoleUser, Content: "halo", CreatedAt: t0},
		{UserID: 7, Role: entity.RoleAssistant, Content: "halo juga", CreatedAt: t0.Add(time.Second)},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestHistoryRepo_Recent_LimitClampedToRetention(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	rows := sqlmock.NewRows([]string{"user_id", "role", "content", "created_at"}).
		AddRow(int64(7), "user", "halo", t0)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT user_id, role, content, created_at`)).
		WithArgs(int64(7), 50).
		WillReturnRows(rows)

	got, err := postgres.NewHistoryRepo(db, 50).Recent(context.Background(), 7, math.MaxInt)
	if err != nil {
		t.Fatalf("Recent err=%v", err)
	}
	if len(got) != 1 || cap(got) > 50 {
		t.Fatalf("len=%d cap=%d", len(got), cap(got))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestHistoryRepo_Recent_ZeroLimit(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	got, err := postgres.NewHistoryRepo(db, 50).Recent(context.Background(), 7, 0) // クエリは発行されない
	if err != nil || len(got) != 0 {
		t.Fatalf("got=%v err=%v", got, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestHistoryRepo_Recent_QueryError(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(`FROM conversation_messages`).WillReturnError(errors.New("connection reset"))

	_, err := postgres.NewHistoryRepo(db, 50).Recent(context.Background(), 7, 8)
	if err == nil {
		t.Fatal("want error")
	}
}

/* ──────────────────────────────── Clear ──────────────────────────────── */

func TestHistoryRepo_Clear(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM conversation_messages WHERE user_id = $1`)).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 3))

	if err := postgres.NewHistoryRepo(db, 50).Clear(context.Background(), 7); err != nil {
		t.Fatalf("Clear err=%v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
