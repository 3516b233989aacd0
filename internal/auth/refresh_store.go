package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RefreshStore is the server-side allow-list of live refresh tokens. A
// refresh token is honored only while its hash is present here.
type RefreshStore struct {
	client *redis.Client
}

func NewRefreshStore(client *redis.Client) *RefreshStore {
	return &RefreshStore{client: client}
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func getTokenKey(tokenHash string) string {
	return fmt.Sprintf("refresh_token:%s", tokenHash)
}

func getUserTokensKey(userID uuid.UUID) string {
	return fmt.Sprintf("user_tokens:%s", userID.String())
}

// Store records a refresh token for userID until expiresAt.
func (r *RefreshStore) Store(ctx context.Context, userID uuid.UUID, token string, expiresAt time.Time) error {
	tokenHash := hashToken(token)
	userTokensKey := getUserTokensKey(userID)

	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return errors.New("token expiration time is in the past")
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, getTokenKey(tokenHash), userID.String(), ttl)
	pipe.SAdd(ctx, userTokensKey, tokenHash)
	// The index lives as long as the newest token it holds.
	pipe.Expire(ctx, userTokensKey, ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store refresh token: %w", err)
	}

	return nil
}

// Lookup returns the owner of a live refresh token.
func (r *RefreshStore) Lookup(ctx context.Context, token string) (uuid.UUID, error) {
	raw, err := r.client.Get(ctx, getTokenKey(hashToken(token))).Result()
	if errors.Is(err, redis.Nil) {
		return uuid.Nil, ErrRefreshTokenNotFound
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to get refresh token: %w", err)
	}

	userID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, ErrRefreshTokenNotFound
	}
	return userID, nil
}

// Revoke removes a refresh token. Exactly one concurrent caller wins; the
// others get ErrRefreshTokenNotFound.
func (r *RefreshStore) Revoke(ctx context.Context, userID uuid.UUID, token string) error {
	tokenHash := hashToken(token)

	n, err := r.client.Del(ctx, getTokenKey(tokenHash)).Result()
	if err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	if n == 0 {
		return ErrRefreshTokenNotFound
	}

	if err := r.client.SRem(ctx, getUserTokensKey(userID), tokenHash).Err(); err != nil {
		return fmt.Errorf("failed to update user token index: %w", err)
	}
	return nil
}

// RevokeAllForUser drops every refresh token issued to userID.
func (r *RefreshStore) RevokeAllForUser(ctx context.Context, userID uuid.UUID) error {
	userTokensKey := getUserTokensKey(userID)

	tokenHashes, err := r.client.SMembers(ctx, userTokensKey).Result()
	if err != nil {
		return fmt.Errorf("failed to get user tokens: %w", err)
	}

	keys := make([]string, 0, len(tokenHashes)+1)
	for _, tokenHash := range tokenHashes {
		keys = append(keys, getTokenKey(tokenHash))
	}
	keys = append(keys, userTokensKey)

	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to revoke all user tokens: %w", err)
	}

	return nil
}
