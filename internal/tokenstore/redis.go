package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// Hash fields of the redis state key. They mirror the JSON layout of the
// file store.
const (
	fieldAuthorizationCode           = "authorization_code"
	fieldAuthorizationCodeCapturedAt = "authorization_code_captured_at"
	fieldAccessToken                 = "access_token"
	fieldAccessTokenExpiry           = "access_token_expiry"
)

// stateKeySuffix is appended to the configured prefix.
const stateKeySuffix = "state"

// RedisStore keeps the token state in a single redis hash. HSET and HDEL of
// several fields are atomic, which keeps the token and its expiry together.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore creates a redis-backed Store under keyPrefix.
func NewRedisStore(client *redis.Client, keyPrefix string) *RedisStore {
	return &RedisStore{
		client: client,
		key:    keyPrefix + stateKeySuffix,
	}
}

// Key returns the redis key holding the state hash.
func (s *RedisStore) Key() string {
	return s.key
}

// Credential implements Store.
func (s *RedisStore) Credential(ctx context.Context) (Credential, bool, error) {
	values, err := s.client.HMGet(ctx, s.key, fieldAccessToken, fieldAccessTokenExpiry).Result()
	if err != nil {
		return Credential{}, false, fmt.Errorf("failed to get token: %w", err)
	}

	token := stringValue(values[0])
	if token == "" {
		return Credential{}, false, nil
	}

	expiry, err := int64Value(values[1])
	if err != nil {
		return Credential{}, false, fmt.Errorf("failed to parse token expiry: %w", err)
	}

	rec := record{AccessToken: token, AccessTokenExpiry: expiry}
	cred, ok := rec.credential()
	return cred, ok, nil
}

// PutCredential implements Store.
func (s *RedisStore) PutCredential(ctx context.Context, cred Credential) error {
	if cred.AccessToken == "" {
		return ErrEmptyToken
	}

	var rec record
	rec.setCredential(cred)

	err := s.client.HSet(ctx, s.key,
		fieldAccessToken, rec.AccessToken,
		fieldAccessTokenExpiry, rec.AccessTokenExpiry,
	).Err()
	if err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}

// ClearCredential implements Store.
func (s *RedisStore) ClearCredential(ctx context.Context) error {
	if err := s.client.HDel(ctx, s.key, fieldAccessToken, fieldAccessTokenExpiry).Err(); err != nil {
		return fmt.Errorf("failed to clear token: %w", err)
	}
	return nil
}

// PendingCode implements Store.
func (s *RedisStore) PendingCode(ctx context.Context) (PendingCode, bool, error) {
	values, err := s.client.HMGet(ctx, s.key, fieldAuthorizationCode, fieldAuthorizationCodeCapturedAt).Result()
	if err != nil {
		return PendingCode{}, false, fmt.Errorf("failed to get authorization code: %w", err)
	}

	capturedAt, err := int64Value(values[1])
	if err != nil {
		return PendingCode{}, false, fmt.Errorf("failed to parse authorization code timestamp: %w", err)
	}

	rec := record{
		AuthorizationCode:           stringValue(values[0]),
		AuthorizationCodeCapturedAt: capturedAt,
	}
	code, ok := rec.pendingCode()
	return code, ok, nil
}

// PutPendingCode implements Store.
func (s *RedisStore) PutPendingCode(ctx context.Context, code PendingCode) error {
	if code.Code == "" {
		return ErrEmptyCode
	}

	var rec record
	rec.setPendingCode(code)

	err := s.client.HSet(ctx, s.key,
		fieldAuthorizationCode, rec.AuthorizationCode,
		fieldAuthorizationCodeCapturedAt, rec.AuthorizationCodeCapturedAt,
	).Err()
	if err != nil {
		return fmt.Errorf("failed to save authorization code: %w", err)
	}
	return nil
}

// ClearPendingCode implements Store.
func (s *RedisStore) ClearPendingCode(ctx context.Context) error {
	if err := s.client.HDel(ctx, s.key, fieldAuthorizationCode, fieldAuthorizationCodeCapturedAt).Err(); err != nil {
		return fmt.Errorf("failed to clear authorization code: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// stringValue converts an HMGET slot, which is nil for a missing field.
func stringValue(v interface{}) string {
	s, _ := v.(string)
	return s
}

func int64Value(v interface{}) (int64, error) {
	s := stringValue(v)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, errors.New("not an integer: " + s)
	}
	return n, nil
}
