package repository

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kazakhbala01/qazevAPP/internal/models"
)

func startFixtureSession() *models.ChargingSession {
	return &models.ChargingSession{
		ConnectorID:   7,
		UserID:        42,
		TransactionID: "tx-1",
		Status:        models.SessionActive,
		StartTime:     time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC),
	}
}

func TestStartInsertsSessionAndFlipsConnector(t *testing.T) {
	db, conn := openScriptDB(
		scriptStep{contains: "SELECT status FROM connectors", columns: []string{"status"}, rows: [][]driver.Value{{models.ConnectorAvailable}}},
		scriptStep{contains: "SELECT EXISTS", columns: []string{"exists"}, rows: [][]driver.Value{{false}}},
		scriptStep{contains: "INSERT INTO charging_sessions", columns: []string{"id"}, rows: [][]driver.Value{{int64(3)}}},
		scriptStep{contains: "UPDATE connectors SET status"},
	)
	defer db.Close()

	repo := NewSessionRepository(db)
	session := startFixtureSession()
	if err := repo.Start(context.Background(), session); err != nil {
		t.Fatalf("start: %v", err)
	}

	if session.ID != 3 {
		t.Fatalf("expected id 3, got %d", session.ID)
	}
	if !conn.committed {
		t.Fatal("transaction not committed")
	}
	if !conn.exhausted() {
		t.Fatalf("expected all %d statements, saw %d", len(conn.steps), conn.pos)
	}
}

// Two simultaneous starts by one user on different connectors both pass the
// EXISTS check; the partial unique index catches the loser and the violation
// must surface as the domain error, not a raw driver error.
func TestStartMapsActiveUserIndexViolation(t *testing.T) {
	db, conn := openScriptDB(
		scriptStep{contains: "SELECT status FROM connectors", columns: []string{"status"}, rows: [][]driver.Value{{models.ConnectorAvailable}}},
		scriptStep{contains: "SELECT EXISTS", columns: []string{"exists"}, rows: [][]driver.Value{{false}}},
		scriptStep{contains: "INSERT INTO charging_sessions", err: &pgconn.PgError{Code: "23505", ConstraintName: "charging_sessions_active_user"}},
	)
	defer db.Close()

	repo := NewSessionRepository(db)
	err := repo.Start(context.Background(), startFixtureSession())
	if !errors.Is(err, models.ErrUserAlreadyCharging) {
		t.Fatalf("expected ErrUserAlreadyCharging, got %v", err)
	}
	if conn.committed {
		t.Fatal("transaction must roll back")
	}
}

func TestStartMapsActiveConnectorIndexViolation(t *testing.T) {
	db, _ := openScriptDB(
		scriptStep{contains: "SELECT status FROM connectors", columns: []string{"status"}, rows: [][]driver.Value{{models.ConnectorAvailable}}},
		scriptStep{contains: "SELECT EXISTS", columns: []string{"exists"}, rows: [][]driver.Value{{false}}},
		scriptStep{contains: "INSERT INTO charging_sessions", err: &pgconn.PgError{Code: "23505", ConstraintName: "charging_sessions_active_connector"}},
	)
	defer db.Close()

	repo := NewSessionRepository(db)
	err := repo.Start(context.Background(), startFixtureSession())
	if !errors.Is(err, models.ErrConnectorUnavailable) {
		t.Fatalf("expected ErrConnectorUnavailable, got %v", err)
	}
}

func TestStartRejectsBusyConnector(t *testing.T) {
	db, conn := openScriptDB(
		scriptStep{contains: "SELECT status FROM connectors", columns: []string{"status"}, rows: [][]driver.Value{{models.ConnectorInUse}}},
	)
	defer db.Close()

	repo := NewSessionRepository(db)
	err := repo.Start(context.Background(), startFixtureSession())
	if !errors.Is(err, models.ErrConnectorUnavailable) {
		t.Fatalf("expected ErrConnectorUnavailable, got %v", err)
	}
	if !conn.exhausted() {
		t.Fatal("insert must not be attempted on a busy connector")
	}
}
