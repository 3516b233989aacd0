// Package otp stores short-lived numeric passcodes in Redis.
//
// Each code lives under its own key with a fixed TTL, so expiry is enforced
// by Redis and never compared in application code. A per-email set indexes
// the live codes so they can be cleared before a new one is issued.
package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// TTL is how long an issued code stays usable.
const TTL = 10 * time.Minute

const (
	codeMin       = 100000
	codeSpan      = 900000 // codes are in [100000, 999999]
	issueAttempts = 5
)

var (
	ErrNotFound    = errors.New("otp not found or expired")
	ErrCodeCollide = errors.New("could not allocate a unique otp")
)

// Store handles OTP persistence in Redis
type Store struct {
	client *redis.Client
	now    func() time.Time
}

func NewStore(client *redis.Client) *Store {
	return &Store{client: client, now: time.Now}
}

// codeKey generates the Redis key for one issued code
func codeKey(email, code string) string {
	return fmt.Sprintf("otp:%s:%s", email, code)
}

// indexKey generates the Redis key for the set of codes issued to an email
func indexKey(email string) string {
	return fmt.Sprintf("otp_index:%s", email)
}

// GenerateCode returns a uniformly random 6-digit code.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeSpan))
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return strconv.FormatInt(codeMin+n.Int64(), 10), nil
}

// Issue creates a new code for email and returns it. Existing codes for the
// email are left alone; call Clear first to invalidate them.
func (s *Store) Issue(ctx context.Context, email string) (string, error) {
	for range issueAttempts {
		code, err := GenerateCode()
		if err != nil {
			return "", err
		}

		// SET NX EX: value and TTL land atomically, and a live duplicate is never overwritten.
		ok, err := s.client.SetNX(ctx, codeKey(email, code), s.now().Unix(), TTL).Result()
		if err != nil {
			return "", fmt.Errorf("failed to store otp: %w", err)
		}
		if !ok {
			continue
		}

		pipe := s.client.Pipeline()
		pipe.SAdd(ctx, indexKey(email), code)
		pipe.Expire(ctx, indexKey(email), TTL)
		if _, err := pipe.Exec(ctx); err != nil {
			return "", fmt.Errorf("failed to index otp: %w", err)
		}

		return code, nil
	}

	return "", ErrCodeCollide
}

// Exists reports whether (email, code) matches a live record without
// consuming it.
func (s *Store) Exists(ctx context.Context, email, code string) (bool, error) {
	n, err := s.client.Exists(ctx, codeKey(email, code)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to look up otp: %w", err)
	}
	return n > 0, nil
}

// Consume deletes the record for (email, code). Only one caller can consume a
// given record; everyone else, and any caller presenting a wrong or expired
// code, gets ErrNotFound.
func (s *Store) Consume(ctx context.Context, email, code string) error {
	n, err := s.client.Del(ctx, codeKey(email, code)).Result()
	if err != nil {
		return fmt.Errorf("failed to consume otp: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}

	if err := s.client.SRem(ctx, indexKey(email), code).Err(); err != nil {
		return fmt.Errorf("failed to unindex otp: %w", err)
	}
	return nil
}

// Clear deletes every code issued to email.
func (s *Store) Clear(ctx context.Context, email string) error {
	codes, err := s.client.SMembers(ctx, indexKey(email)).Result()
	if err != nil {
		return fmt.Errorf("failed to list otps: %w", err)
	}

	keys := make([]string, 0, len(codes)+1)
	for _, code := range codes {
		keys = append(keys, codeKey(email, code))
	}
	keys = append(keys, indexKey(email))

	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to clear otps: %w", err)
	}
	return nil
}
