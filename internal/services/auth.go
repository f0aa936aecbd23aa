package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/yungbote/neurobridge-tutor/internal/data/repos"
	"github.com/yungbote/neurobridge-tutor/internal/domain"
	"github.com/yungbote/neurobridge-tutor/internal/platform/ctxutil"
	"github.com/yungbote/neurobridge-tutor/internal/platform/dbctx"
	"github.com/yungbote/neurobridge-tutor/internal/platform/logger"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"

	// bcrypt ignores everything past 72 bytes; hash exactly what it reads.
	bcryptMaxPasswordBytes = 72

	DefaultAccessTTL  = 480 * time.Minute
	DefaultRefreshTTL = 30 * 24 * time.Hour
	DefaultBcryptCost = 12
)

type AuthConfig struct {
	SecretKey  string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	BcryptCost int
}

type RegisterInput struct {
	Email    string               `json:"email"`
	FullName string               `json:"full_name"`
	Password string               `json:"password"`
	Role     domain.CaregiverRole `json:"role"`
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

type tokenClaims struct {
	Type string `json:"type"`
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*TokenPair, error)
	Login(ctx context.Context, email, password string) (*TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
	SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error)
	Me(ctx context.Context) (*domain.Caregiver, error)
}

type authService struct {
	log        *logger.Logger
	caregivers repos.CaregiverRepo
	cfg        AuthConfig
	now        func() time.Time
}

func NewAuthService(baseLog *logger.Logger, caregivers repos.CaregiverRepo, cfg AuthConfig) AuthService {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = DefaultAccessTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = DefaultRefreshTTL
	}
	if cfg.BcryptCost < bcrypt.MinCost || cfg.BcryptCost > bcrypt.MaxCost {
		cfg.BcryptCost = DefaultBcryptCost
	}
	return &authService{
		log:        baseLog.With("service", "AuthService"),
		caregivers: caregivers,
		cfg:        cfg,
		now:        time.Now,
	}
}

func (s *authService) Register(ctx context.Context, in RegisterInput) (*TokenPair, error) {
	const op = "auth.register"
	email := strings.ToLower(trimmed(in.Email))
	name := trimmed(in.FullName)
	if !strings.Contains(email, "@") || len(email) > 255 {
		return nil, domain.InvalidArgument(op, "a valid email is required")
	}
	if n := utf8.RuneCountInString(name); n < 1 || n > 150 {
		return nil, domain.InvalidArgument(op, "full_name must be 1-150 characters")
	}
	if n := utf8.RuneCountInString(in.Password); n < 8 || n > 128 {
		return nil, domain.InvalidArgument(op, "password must be 8-128 characters")
	}
	role := in.Role
	if role == "" {
		role = domain.RoleParent
	}
	if !role.Valid() {
		return nil, domain.InvalidArgument(op, fmt.Sprintf("unknown role %q", role))
	}

	dbc := dbctx.Context{Ctx: ctx}
	existing, err := s.caregivers.GetByEmail(dbc, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.NewError(domain.CodeConflict, op, "email already registered", nil)
	}

	hash, err := bcrypt.GenerateFromPassword(passwordBytes(in.Password), s.cfg.BcryptCost)
	if err != nil {
		return nil, domain.Wrap(domain.CodeInternal, op, err)
	}
	c := &domain.Caregiver{
		ID:           uuid.New(),
		Email:        email,
		FullName:     name,
		PasswordHash: string(hash),
		Role:         role,
	}
	if err := s.caregivers.Create(dbc, c); err != nil {
		return nil, err
	}
	s.log.Info("Caregiver registered", "caregiver_id", c.ID, "role", c.Role)
	return s.issue(c)
}

func (s *authService) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	const op = "auth.login"
	invalid := domain.NewError(domain.CodeUnauthorized, op, "invalid email or password", nil)
	c, err := s.caregivers.GetByEmail(dbctx.Context{Ctx: ctx}, email)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, invalid
	}
	if err := bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), passwordBytes(password)); err != nil {
		return nil, invalid
	}
	return s.issue(c)
}

func (s *authService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	const op = "auth.refresh"
	claims, err := s.parse(refreshToken, tokenTypeRefresh)
	if err != nil {
		return nil, domain.NewError(domain.CodeUnauthorized, op, "invalid or expired refresh token", err)
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, domain.NewError(domain.CodeUnauthorized, op, "invalid token subject", err)
	}
	c, err := s.caregivers.GetByID(dbctx.Context{Ctx: ctx}, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, domain.NewError(domain.CodeUnauthorized, op, "caregiver not found", nil)
	}
	return s.issue(c)
}

// SetContextFromToken validates an access token and attaches the caregiver
// it names to ctx.
func (s *authService) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
	const op = "auth.token"
	claims, err := s.parse(tokenString, tokenTypeAccess)
	if err != nil {
		return ctx, domain.NewError(domain.CodeUnauthorized, op, "invalid or expired access token", err)
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return ctx, domain.NewError(domain.CodeUnauthorized, op, "invalid token subject", err)
	}
	return ctxutil.WithRequestData(ctx, &ctxutil.RequestData{
		TokenString: tokenString,
		CaregiverID: id,
		Role:        claims.Role,
	}), nil
}

func (s *authService) Me(ctx context.Context) (*domain.Caregiver, error) {
	rd, err := caregiverFrom(ctx, "auth.me")
	if err != nil {
		return nil, err
	}
	c, err := s.caregivers.GetByID(dbctx.Context{Ctx: ctx}, rd.CaregiverID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, domain.NotFound("auth.me", "caregiver")
	}
	return c, nil
}

func (s *authService) issue(c *domain.Caregiver) (*TokenPair, error) {
	access, err := s.sign(c, tokenTypeAccess, s.cfg.AccessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := s.sign(c, tokenTypeRefresh, s.cfg.RefreshTTL)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh, TokenType: "bearer"}, nil
}

func (s *authService) sign(c *domain.Caregiver, typ string, ttl time.Duration) (string, error) {
	now := s.now()
	claims := tokenClaims{
		Type: typ,
		Role: string(c.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   c.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.SecretKey))
	if err != nil {
		return "", domain.Wrap(domain.CodeInternal, "auth.sign", err)
	}
	return signed, nil
}

func (s *authService) parse(tokenString, wantType string) (*tokenClaims, error) {
	tokenString = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(tokenString), "Bearer "))
	if tokenString == "" {
		return nil, errors.New("missing token")
	}
	claims := &tokenClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(s.cfg.SecretKey), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, err
	}
	if claims.Type != wantType {
		return nil, fmt.Errorf("token type %q, want %q", claims.Type, wantType)
	}
	return claims, nil
}

func passwordBytes(pw string) []byte {
	b := []byte(pw)
	if len(b) > bcryptMaxPasswordBytes {
		b = b[:bcryptMaxPasswordBytes]
	}
	return b
}
