package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned when a key is absent; callers fall back to the database.
var ErrMiss = errors.New("redisstore: miss")

// ActiveSession is the hot index of an in-flight session, keyed by connector
// so MeterValues can resolve the transaction without a database round trip.
type ActiveSession struct {
	SessionID     int64  `json:"session_id"`
	TransactionID string `json:"transaction_id"`
	ConnectorID   int64  `json:"connector_id"`
	UserID        int64  `json:"user_id"`
}

// Store caches active sessions and their latest meter readings.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStore returns a redis-backed store.
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

func connectorKey(connectorID int64) string {
	return fmt.Sprintf("sessions:active:connector:%d", connectorID)
}

func meterKey(transactionID string) string {
	return fmt.Sprintf("telemetry:meter:%s", transactionID)
}

// SaveActive indexes an in-flight session by its connector.
func (s *Store) SaveActive(ctx context.Context, session ActiveSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, connectorKey(session.ConnectorID), data, s.ttl).Err()
}

// GetActiveByConnector resolves the in-flight session on a connector.
func (s *Store) GetActiveByConnector(ctx context.Context, connectorID int64) (*ActiveSession, error) {
	result, err := s.client.Get(ctx, connectorKey(connectorID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, err
	}
	var session ActiveSession
	if err := json.Unmarshal([]byte(result), &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// DeleteActive evicts the index entry and the meter snapshot for a stopped
// session.
func (s *Store) DeleteActive(ctx context.Context, connectorID int64, transactionID string) error {
	return s.client.Del(ctx, connectorKey(connectorID), meterKey(transactionID)).Err()
}

// SaveMeter caches the latest cumulative reading for a transaction.
func (s *Store) SaveMeter(ctx context.Context, transactionID string, meterValue float64) error {
	return s.client.Set(ctx, meterKey(transactionID), strconv.FormatFloat(meterValue, 'f', -1, 64), s.ttl).Err()
}

// GetMeter returns the latest cached reading for a transaction.
func (s *Store) GetMeter(ctx context.Context, transactionID string) (float64, error) {
	result, err := s.client.Get(ctx, meterKey(transactionID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, ErrMiss
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(result, 64)
}
