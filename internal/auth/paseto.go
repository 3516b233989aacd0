package auth

import (
	"fmt"
	"time"

	"aidanwoods.dev/go-paseto"
	"github.com/google/uuid"
)

// PasetoService handles PASETO token creation and validation
// Uses v4.local (symmetric encryption with XChaCha20-Poly1305)
type PasetoService struct {
	symmetricKey paseto.V4SymmetricKey
	// implicit is bound into every token as the implicit assertion, so an
	// access token never decrypts as a refresh token and vice versa.
	implicit []byte
}

func NewPasetoService(symmetricKey []byte, kind TokenKind) (*PasetoService, error) {
	if len(symmetricKey) != 32 {
		return nil, fmt.Errorf("symmetric key must be exactly 32 bytes, got %d", len(symmetricKey))
	}

	key, err := paseto.V4SymmetricKeyFromBytes(symmetricKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create symmetric key: %w", err)
	}

	return &PasetoService{
		symmetricKey: key,
		implicit:     []byte(kind),
	}, nil
}

// CreateToken generates a new PASETO v4.local token for userID
func (s *PasetoService) CreateToken(userID uuid.UUID, duration time.Duration) (string, error) {
	now := time.Now()

	token := paseto.NewToken()
	token.SetSubject(userID.String())
	token.SetIssuedAt(now)
	token.SetNotBefore(now)
	token.SetExpiration(now.Add(duration))

	return token.V4Encrypt(s.symmetricKey, s.implicit), nil
}

// VerifyToken decrypts a v4.local token, checks its time claims and returns
// the subject. Every failure is ErrInvalidToken.
func (s *PasetoService) VerifyToken(tokenStr string) (*TokenClaims, error) {
	parser := paseto.NewParser()
	parser.AddRule(paseto.ValidAt(time.Now()))

	token, err := parser.ParseV4Local(s.symmetricKey, tokenStr, s.implicit)
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, err := pasetoClaims(token)
	if err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func pasetoClaims(token *paseto.Token) (*TokenClaims, error) {
	sub, err := token.GetSubject()
	if err != nil {
		return nil, err
	}
	userID, err := uuid.Parse(sub)
	if err != nil {
		return nil, err
	}

	var claims TokenClaims
	claims.UserID = userID
	if claims.IssuedAt, err = token.GetIssuedAt(); err != nil {
		return nil, err
	}
	if claims.ExpiresAt, err = token.GetExpiration(); err != nil {
		return nil, err
	}
	return &claims, nil
}
