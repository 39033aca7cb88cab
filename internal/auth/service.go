package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/odyssey-erp/salon-inventory/internal/shared"
)

// RepositoryPort abstracts key persistence.
type RepositoryPort interface {
	GetKey(ctx context.Context, id string) (APIKey, error)
	InsertKey(ctx context.Context, key APIKey) (time.Time, error)
	TouchKey(ctx context.Context, id string, at time.Time) error
	RevokeKey(ctx context.Context, id string, at time.Time) error
}

// Service resolves bearer tokens to tenant identities.
type Service struct {
	repo RepositoryPort
	cost int
	now  func() time.Time
}

// NewService constructs Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo, cost: bcrypt.DefaultCost, now: time.Now}
}

// Authenticate parses "<keyID>.<secret>" and verifies it.
func (s *Service) Authenticate(ctx context.Context, token string) (shared.Identity, error) {
	keyID, secret, ok := strings.Cut(strings.TrimSpace(token), ".")
	if !ok || keyID == "" || secret == "" {
		return shared.Identity{}, ErrInvalidCredentials
	}
	key, err := s.repo.GetKey(ctx, keyID)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return shared.Identity{}, ErrInvalidCredentials
		}
		return shared.Identity{}, err
	}
	if !key.Active() {
		return shared.Identity{}, ErrKeyRevoked
	}
	if err := bcrypt.CompareHashAndPassword(key.SecretHash, []byte(secret)); err != nil {
		return shared.Identity{}, ErrInvalidCredentials
	}
	_ = s.repo.TouchKey(ctx, key.ID, s.now().UTC())
	return shared.Identity{BusinessID: key.BusinessID, UserID: key.UserID, Scopes: key.Scopes}, nil
}

// IssueKey creates a key and returns the plaintext token once.
func (s *Service) IssueKey(ctx context.Context, businessID, userID int64, name string, scopes []string) (IssuedKey, error) {
	if businessID == 0 {
		return IssuedKey{}, shared.InvalidInput("business required")
	}
	scopes = normalizeScopes(scopes)
	if len(scopes) == 0 {
		return IssuedKey{}, shared.InvalidInput("at least one scope required")
	}
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return IssuedKey{}, fmt.Errorf("auth: generate secret: %w", err)
	}
	secret := base64.RawURLEncoding.EncodeToString(raw)
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), s.cost)
	if err != nil {
		return IssuedKey{}, fmt.Errorf("auth: hash secret: %w", err)
	}
	key := APIKey{
		ID:         uuid.NewString(),
		BusinessID: businessID,
		UserID:     userID,
		Name:       strings.TrimSpace(name),
		SecretHash: hash,
		Scopes:     scopes,
	}
	key.CreatedAt, err = s.repo.InsertKey(ctx, key)
	if err != nil {
		return IssuedKey{}, err
	}
	return IssuedKey{Key: key, Token: key.ID + "." + secret}, nil
}

// RevokeKey disables a key owned by businessID.
func (s *Service) RevokeKey(ctx context.Context, businessID int64, id string) error {
	key, err := s.repo.GetKey(ctx, id)
	if errors.Is(err, ErrKeyNotFound) || (err == nil && key.BusinessID != businessID) {
		return ErrUnknownKey
	}
	if err != nil {
		return err
	}
	if err := s.repo.RevokeKey(ctx, id, s.now().UTC()); err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return ErrUnknownKey
		}
		return err
	}
	return nil
}

func normalizeScopes(scopes []string) []string {
	unique := make(map[string]struct{}, len(scopes))
	out := make([]string, 0, len(scopes))
	for _, sc := range scopes {
		sc = strings.TrimSpace(strings.ToLower(sc))
		if sc == "" {
			continue
		}
		if _, ok := unique[sc]; ok {
			continue
		}
		unique[sc] = struct{}{}
		out = append(out, sc)
	}
	return out
}
