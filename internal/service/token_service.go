package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/board-api/internal/auth"
	"github.com/spec-kit/board-api/internal/config"
	"github.com/spec-kit/board-api/internal/domain"
	"github.com/spec-kit/board-api/internal/events"
)

// SessionCache is the TTL store holding the one current token string per
// (credential, device, subject). It is the authority on token currency;
// a valid signature alone never authenticates a request.
type SessionCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// credential holds the per-kind signing and storage parameters.
type credential struct {
	name      string
	secret    []byte
	ttl       time.Duration
	keyPrefix string
}

func (c credential) key(deviceID, subjectID string) string {
	return c.keyPrefix + deviceID + subjectID
}

// TokenService issues, verifies, rotates and revokes device-bound
// access/refresh pairs.
//
// Rotation is last-write-wins: two concurrent rotations for the same
// device and subject both succeed and the earlier pair is theft-flagged on
// its next use.
type TokenService struct {
	codec       *auth.TokenManager
	cache       SessionCache
	events      events.Dispatcher
	logger      *zap.Logger
	tokenPrefix string
	access      credential
	refresh     credential
}

// TokenDependencies bundles collaborators for the token service.
type TokenDependencies struct {
	Cache  SessionCache
	Events events.Dispatcher
	Logger *zap.Logger
	// Now overrides the clock used for signing and expiry checks.
	Now func() time.Time
}

// NewTokenService builds the service from an already validated auth config.
func NewTokenService(cfg config.AuthConfig, deps TokenDependencies) *TokenService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenService{
		codec:       auth.NewTokenManager(cfg.TokenPurpose, deps.Now),
		cache:       deps.Cache,
		events:      deps.Events,
		logger:      logger,
		tokenPrefix: cfg.TokenPrefix,
		access: credential{
			name:      "access",
			secret:    []byte(cfg.AccessTokenSecret),
			ttl:       cfg.AccessTokenTTL,
			keyPrefix: cfg.AccessKeyPrefix,
		},
		refresh: credential{
			name:      "refresh",
			secret:    []byte(cfg.RefreshTokenSecret),
			ttl:       cfg.RefreshTokenTTL,
			keyPrefix: cfg.RefreshKeyPrefix,
		},
	}
}

// IssueDeviceID allocates a fresh device partition key.
func (s *TokenService) IssueDeviceID() string {
	return uuid.NewString()
}

// IssuePair signs a new access/refresh pair and makes it current for the
// device, replacing whatever was current before.
func (s *TokenService) IssuePair(ctx context.Context, subjectID, deviceID string) (domain.TokenPair, error) {
	return s.issue(ctx, subjectID, deviceID, events.EventSessionIssued)
}

func (s *TokenService) issue(ctx context.Context, subjectID, deviceID string, eventType events.EventType) (domain.TokenPair, error) {
	accessToken, accessExp, err := s.codec.Sign(subjectID, s.access.secret, s.access.ttl)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}
	refreshToken, refreshExp, err := s.codec.Sign(subjectID, s.refresh.secret, s.refresh.ttl)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}

	if err := s.cache.Set(ctx, s.access.key(deviceID, subjectID), accessToken, s.access.ttl); err != nil {
		return domain.TokenPair{}, s.infra("store access token", err)
	}
	if err := s.cache.Set(ctx, s.refresh.key(deviceID, subjectID), refreshToken, s.refresh.ttl); err != nil {
		return domain.TokenPair{}, s.infra("store refresh token", err)
	}

	s.logger.Debug("session pair issued",
		zap.String("event", string(eventType)),
		zap.String("subject_id", subjectID),
		zap.String("device_id", deviceID))
	s.publish(ctx, events.NewEvent(eventType, subjectID, deviceID, nil))

	return domain.TokenPair{
		AccessToken:      s.tokenPrefix + accessToken,
		RefreshToken:     s.tokenPrefix + refreshToken,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// VerifyAccess authenticates a transport access token for the device.
func (s *TokenService) VerifyAccess(ctx context.Context, token, deviceID string) (string, error) {
	return s.verify(ctx, s.access, token, deviceID)
}

// VerifyRefresh authenticates a transport refresh token for the device.
func (s *TokenService) VerifyRefresh(ctx context.Context, token, deviceID string) (string, error) {
	return s.verify(ctx, s.refresh, token, deviceID)
}

func (s *TokenService) verify(ctx context.Context, cred credential, token, deviceID string) (string, error) {
	raw, err := auth.StripPrefix(token, s.tokenPrefix)
	if err != nil {
		return "", err
	}
	verified, err := s.codec.Verify(raw, cred.secret)
	if err != nil {
		return "", err
	}
	subjectID := verified.SubjectID

	current, ok, err := s.cache.Get(ctx, cred.key(deviceID, subjectID))
	if err != nil {
		return "", s.infra("read "+cred.name+" token", err)
	}
	if !ok {
		s.flagTheft(ctx, subjectID, deviceID, cred.name, events.ReasonCacheMiss)
		return "", fmt.Errorf("%w: %s token is no longer current", auth.ErrTheftDetected, cred.name)
	}
	if subtle.ConstantTimeCompare([]byte(current), []byte(raw)) != 1 {
		s.flagTheft(ctx, subjectID, deviceID, cred.name, events.ReasonCacheMismatch)
		theft := fmt.Errorf("%w: %s token superseded", auth.ErrTheftDetected, cred.name)
		if err := s.deleteSession(ctx, subjectID, deviceID); err != nil {
			return "", errors.Join(theft, err)
		}
		return "", theft
	}
	return subjectID, nil
}

// Rotate exchanges an expired access token and a current refresh token for
// a new pair. The access token is only decoded, never trusted: it must name
// the same subject the refresh token proves.
func (s *TokenService) Rotate(ctx context.Context, expiredAccess, refreshToken, deviceID string) (domain.TokenPair, string, error) {
	rawAccess, err := auth.StripPrefix(expiredAccess, s.tokenPrefix)
	if err != nil {
		return domain.TokenPair{}, "", err
	}
	claimed, err := s.codec.Decode(rawAccess)
	if err != nil {
		return domain.TokenPair{}, "", err
	}

	subjectID, err := s.VerifyRefresh(ctx, refreshToken, deviceID)
	if err != nil {
		return domain.TokenPair{}, "", err
	}

	if claimed.SubjectID != subjectID {
		s.flagTheft(ctx, subjectID, deviceID, s.refresh.name, events.ReasonSubjectMismatch)
		theft := fmt.Errorf("%w: access and refresh subjects differ", auth.ErrTheftDetected)
		if err := s.deleteSession(ctx, subjectID, deviceID); err != nil {
			return domain.TokenPair{}, "", errors.Join(theft, err)
		}
		return domain.TokenPair{}, "", theft
	}

	pair, err := s.issue(ctx, subjectID, deviceID, events.EventSessionRotated)
	if err != nil {
		return domain.TokenPair{}, "", err
	}
	return pair, subjectID, nil
}

// Revoke deletes both cache entries for the device. Revoking an absent
// session is not an error.
func (s *TokenService) Revoke(ctx context.Context, subjectID, deviceID string) error {
	if err := s.deleteSession(ctx, subjectID, deviceID); err != nil {
		return err
	}
	s.publish(ctx, events.NewEvent(events.EventSessionRevoked, subjectID, deviceID,
		events.RevokedPayload{Reason: events.ReasonLogout}))
	return nil
}

// RevokeClaimed handles a request that carried only one of the two tokens.
// The present token is decoded without verification to find which session
// to revoke. The returned error always reports theft.
func (s *TokenService) RevokeClaimed(ctx context.Context, token, deviceID string) error {
	raw, err := auth.StripPrefix(token, s.tokenPrefix)
	if err != nil {
		raw = token
	}
	claimed, err := s.codec.Decode(raw)
	if err != nil {
		s.logger.Warn("asymmetric session cookies with undecodable token",
			zap.String("device_id", deviceID), zap.Error(err))
		return fmt.Errorf("%w: single token presented", auth.ErrTheftDetected)
	}

	s.flagTheft(ctx, claimed.SubjectID, deviceID, "", events.ReasonAsymmetricCookie)
	theft := fmt.Errorf("%w: single token presented", auth.ErrTheftDetected)
	if err := s.deleteSession(ctx, claimed.SubjectID, deviceID); err != nil {
		return errors.Join(theft, err)
	}
	return theft
}

func (s *TokenService) deleteSession(ctx context.Context, subjectID, deviceID string) error {
	err := s.cache.Delete(ctx,
		s.access.key(deviceID, subjectID),
		s.refresh.key(deviceID, subjectID),
	)
	if err != nil {
		return s.infra("revoke session", err)
	}
	return nil
}

func (s *TokenService) flagTheft(ctx context.Context, subjectID, deviceID, credName, reason string) {
	s.logger.Warn("session theft detected",
		zap.String("subject_id", subjectID),
		zap.String("device_id", deviceID),
		zap.String("credential", credName),
		zap.String("reason", reason))
	s.publish(ctx, events.NewEvent(events.EventTheftDetected, subjectID, deviceID,
		events.TheftPayload{Reason: reason, Credential: credName}))
}

func (s *TokenService) infra(op string, err error) error {
	s.logger.Error("session cache failure", zap.String("op", op), zap.Error(err))
	return fmt.Errorf("%w: %s: %v", auth.ErrInfrastructure, op, err)
}

func (s *TokenService) publish(ctx context.Context, event events.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn("session event handler failed",
			zap.String("event", string(event.Type)), zap.Error(err))
	}
}
