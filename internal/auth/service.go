package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/magnifycash/backend/internal/blockchain"
	"github.com/magnifycash/backend/internal/db"
)

const (
	challengeExpiry    = 7 * 24 * time.Hour
	challengeNotBefore = 24 * time.Hour
)

var (
	ErrNonceUsed      = errors.New("nonce unknown, expired or already used")
	ErrMessageExpired = errors.New("sign-in message outside its validity window")
	ErrDomainMismatch = errors.New("sign-in message for another domain")
	ErrInvalidToken   = errors.New("invalid token")
	ErrSessionRevoked = errors.New("session revoked")
)

type Repository interface {
	UpsertUser(ctx context.Context, walletAddress, username string) (*db.User, error)
	GetUserByID(ctx context.Context, userID string) (*db.User, error)
	CreateSession(ctx context.Context, userID, refreshHash, userAgent, ipAddress string, expiresAt time.Time) (*db.Session, error)
	GetSessionByID(ctx context.Context, sessionID string) (*db.Session, error)
	RevokeSession(ctx context.Context, sessionID string) error
	UpdateSessionRefreshHash(ctx context.Context, sessionID, refreshHash string) error
}

type NonceStore interface {
	Issue(ctx context.Context, nonce string, ttl time.Duration) (bool, error)
	Consume(ctx context.Context, nonce string) (bool, error)
}

// SnapshotInvalidator drops a wallet's cached contract data on sign-out.
type SnapshotInvalidator interface {
	Invalidate(ctx context.Context, wallet string) error
}

type Options struct {
	Domain     string
	URI        string
	ChainID    int64
	NonceTTL   time.Duration
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type Service struct {
	repo      Repository
	jwt       *JWTManager
	nonces    NonceStore
	verifier  SignatureVerifier
	snapshots SnapshotInvalidator
	opts      Options
	log       zerolog.Logger
	now       func() time.Time
}

type AuthTokens struct {
	AccessToken  string
	RefreshToken string
	SessionID    string
	User         *db.User
}

// Challenge carries the walletAuth parameters the mini-app passes to the wallet.
type Challenge struct {
	Nonce          string    `json:"nonce"`
	Statement      string    `json:"statement"`
	IssuedAt       time.Time `json:"issuedAt"`
	ExpirationTime time.Time `json:"expirationTime"`
	NotBefore      time.Time `json:"notBefore"`
	Message        string    `json:"message,omitempty"`
}

type LoginInput struct {
	Message   string
	Signature string
	Username  string
	UserAgent string
	IPAddress string
}

func NewService(repo Repository, jwt *JWTManager, nonces NonceStore, verifier SignatureVerifier, snapshots SnapshotInvalidator, opts Options, log zerolog.Logger) *Service {
	if opts.NonceTTL <= 0 {
		opts.NonceTTL = 10 * time.Minute
	}
	return &Service{
		repo:      repo,
		jwt:       jwt,
		nonces:    nonces,
		verifier:  verifier,
		snapshots: snapshots,
		opts:      opts,
		log:       log.With().Str("component", "auth").Logger(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Challenge issues a single-use nonce. When wallet is given the full message
// to sign is returned as well.
func (s *Service) Challenge(ctx context.Context, wallet string) (*Challenge, error) {
	nonce := strings.ReplaceAll(uuid.NewString(), "-", "")
	ok, err := s.nonces.Issue(ctx, nonce, s.opts.NonceTTL)
	if err != nil {
		return nil, fmt.Errorf("issue nonce: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("issue nonce: collision")
	}

	now := s.now()
	ch := &Challenge{
		Nonce:          nonce,
		Statement:      SignInStatement,
		IssuedAt:       now,
		ExpirationTime: now.Add(challengeExpiry),
		NotBefore:      now.Add(-challengeNotBefore),
	}
	if wallet != "" {
		addr, err := blockchain.NormalizeAddress(wallet)
		if err != nil {
			return nil, err
		}
		ch.Message = SignInMessage{
			Domain:         s.opts.Domain,
			Address:        addr,
			Statement:      SignInStatement,
			URI:            s.opts.URI,
			Version:        "1",
			ChainID:        s.opts.ChainID,
			Nonce:          nonce,
			IssuedAt:       now,
			ExpirationTime: &ch.ExpirationTime,
			NotBefore:      &ch.NotBefore,
		}.String()
	}
	return ch, nil
}

func (s *Service) Login(ctx context.Context, in LoginInput) (*AuthTokens, error) {
	msg, err := ParseSignInMessage(in.Message)
	if err != nil {
		return nil, err
	}
	if s.opts.Domain != "" && msg.Domain != s.opts.Domain {
		return nil, ErrDomainMismatch
	}
	now := s.now()
	if msg.ExpirationTime != nil && !now.Before(*msg.ExpirationTime) {
		return nil, ErrMessageExpired
	}
	if msg.NotBefore != nil && now.Before(*msg.NotBefore) {
		return nil, ErrMessageExpired
	}

	fresh, err := s.nonces.Consume(ctx, msg.Nonce)
	if err != nil {
		return nil, fmt.Errorf("consume nonce: %w", err)
	}
	if !fresh {
		return nil, ErrNonceUsed
	}

	if err := s.verifier.Verify(ctx, msg.Address, in.Message, in.Signature); err != nil {
		s.log.Warn().Err(err).Str("wallet", msg.Address).Msg("wallet signature rejected")
		return nil, err
	}

	user, err := s.repo.UpsertUser(ctx, msg.Address, strings.TrimSpace(in.Username))
	if err != nil {
		return nil, err
	}

	bundle, err := s.createSessionAndTokens(ctx, user, in.UserAgent, in.IPAddress)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("wallet", user.WalletAddress).Str("session_id", bundle.SessionID).Msg("wallet signed in")

	return &AuthTokens{AccessToken: bundle.AccessToken, RefreshToken: bundle.RefreshToken, SessionID: bundle.SessionID, User: user}, nil
}

type sessionBundle struct {
	AccessToken  string
	RefreshToken string
	SessionID    string
}

func (s *Service) Refresh(ctx context.Context, refreshToken, userAgent, ipAddress string) (*AuthTokens, error) {
	claims, err := s.jwt.Parse(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Type != TokenRefresh {
		return nil, fmt.Errorf("%w: wrong type", ErrInvalidToken)
	}

	session, err := s.repo.GetSessionByID(ctx, claims.SessionID)
	if err != nil {
		return nil, err
	}
	if session.RevokedAt != nil {
		return nil, ErrSessionRevoked
	}
	if s.now().After(session.ExpiresAt) {
		return nil, fmt.Errorf("%w: session expired", ErrInvalidToken)
	}
	if session.RefreshTokenHash != hashToken(refreshToken) {
		return nil, fmt.Errorf("%w: refresh token mismatch", ErrInvalidToken)
	}

	if err := s.repo.RevokeSession(ctx, session.ID); err != nil {
		return nil, err
	}

	user, err := s.repo.GetUserByID(ctx, session.UserID)
	if err != nil {
		return nil, err
	}

	bundle, err := s.createSessionAndTokens(ctx, user, userAgent, ipAddress)
	if err != nil {
		return nil, err
	}

	return &AuthTokens{AccessToken: bundle.AccessToken, RefreshToken: bundle.RefreshToken, SessionID: bundle.SessionID, User: user}, nil
}

// Logout revokes the session and drops the wallet's cached snapshot. A bad
// token is not an error: the cookies are cleared either way.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.jwt.Parse(refreshToken)
	if err != nil {
		return nil
	}
	if claims.Type != TokenRefresh || claims.SessionID == "" {
		return nil
	}
	if err := s.repo.RevokeSession(ctx, claims.SessionID); err != nil {
		return err
	}
	if s.snapshots != nil && claims.WalletAddress != "" {
		if err := s.snapshots.Invalidate(ctx, claims.WalletAddress); err != nil {
			s.log.Warn().Err(err).Str("wallet", claims.WalletAddress).Msg("snapshot invalidate on logout failed")
		}
	}
	return nil
}

func (s *Service) Me(ctx context.Context, userID string) (*db.User, error) {
	return s.repo.GetUserByID(ctx, userID)
}

func (s *Service) createSessionAndTokens(ctx context.Context, user *db.User, userAgent, ipAddress string) (*sessionBundle, error) {
	expiresAt := s.now().Add(s.opts.RefreshTTL)
	sessionSeed := uuid.NewString()
	session, err := s.repo.CreateSession(ctx, user.ID, hashToken(sessionSeed), userAgent, ipAddress, expiresAt)
	if err != nil {
		return nil, err
	}

	accessToken, err := s.jwt.Mint(user.ID, session.ID, user.WalletAddress, TokenAccess, s.opts.AccessTTL)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.jwt.Mint(user.ID, session.ID, user.WalletAddress, TokenRefresh, s.opts.RefreshTTL)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateSessionRefreshHash(ctx, session.ID, hashToken(refreshToken)); err != nil {
		return nil, err
	}

	return &sessionBundle{AccessToken: accessToken, RefreshToken: refreshToken, SessionID: session.ID}, nil
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func ClientIP(r *http.Request) string {
	xff := strings.TrimSpace(r.Header.Get("X-Forwarded-For"))
	if xff != "" {
		parts := strings.Split(xff, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}

	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil {
		return host
	}
	return r.RemoteAddr
}
