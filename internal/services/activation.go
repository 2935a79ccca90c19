package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/warapp/apiserver/config"
	"github.com/warapp/apiserver/internal/apperrors"
	"github.com/warapp/apiserver/internal/mailer"
	"github.com/warapp/apiserver/types"
)

// Publisher dispatches a payload to the named broker channel.
type Publisher interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

// ActivationService issues and verifies activation tokens and hands the
// confirmation email to the broker. Tokens are short-lived HS256 JWTs whose
// subject is the user id; no activation state is stored server-side.
type ActivationService struct {
	secret    []byte
	tokenTTL  time.Duration
	baseURL   string
	from      string
	publisher Publisher
	channel   string
}

func NewActivationService(cfg config.ActivationConfig, publisher Publisher, channel string) *ActivationService {
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &ActivationService{
		secret:    []byte(cfg.Secret),
		tokenTTL:  ttl,
		baseURL:   cfg.BaseURL,
		from:      cfg.From,
		publisher: publisher,
		channel:   channel,
	}
}

// TokenFor signs a fresh activation token for the user.
func (s *ActivationService) TokenFor(user types.User) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   user.ID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Verify parses an activation token and returns the user id it was issued
// for. Expired, forged, and malformed tokens all map to the same rejection.
func (s *ActivationService) Verify(tokenString string) (uuid.UUID, error) {
	claims := jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return uuid.Nil, apperrors.ErrInvalidActivationToken
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, apperrors.ErrInvalidActivationToken
	}
	return userID, nil
}

// SendEmail composes the confirmation email and publishes it for the
// worker to deliver.
func (s *ActivationService) SendEmail(ctx context.Context, user types.User) error {
	token, err := s.TokenFor(user)
	if err != nil {
		return apperrors.NewInternal(err)
	}

	message := mailer.Message{
		From:    s.from,
		To:      user.Email,
		Subject: "Confirmação de cadastro",
		Text: fmt.Sprintf(`%s, clique no link abaixo para ativar seu cadastro

%s/api/v1/activation/%s

Atenciosamente,
Equipe War`, user.Username, s.baseURL, token),
	}

	data, err := json.Marshal(message)
	if err != nil {
		return apperrors.NewInternal(err)
	}

	if _, err := s.publisher.Publish(ctx, s.channel, data, map[string]string{
		"user_id": user.ID.String(),
	}); err != nil {
		return apperrors.NewInternal(err)
	}
	return nil
}
