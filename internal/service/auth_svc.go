package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidPassphrase = errors.New("口令错误")
	ErrInvalidToken      = errors.New("令牌无效或已过期")
)

const operatorIssuer = "shopfront-console"

// OperatorClaims 运营令牌声明；控制台只有一个共享口令，没有用户体系
type OperatorClaims struct {
	jwt.RegisteredClaims
}

// TokenStore 运营令牌的持久化位置
type TokenStore interface {
	SetOperatorToken(ctx context.Context, token string) error
	Logout(ctx context.Context) error
}

// ==================== AuthService ====================

// AuthService 口令登录 + JWT 运营令牌
type AuthService struct {
	passphraseHash []byte
	secret         []byte
	ttl            time.Duration
	clock          clock.Clock
	store          TokenStore
}

func NewAuthService(passphraseHash, secret string, ttl time.Duration, clk clock.Clock, store TokenStore) *AuthService {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &AuthService{
		passphraseHash: []byte(passphraseHash),
		secret:         []byte(secret),
		ttl:            ttl,
		clock:          clk,
		store:          store,
	}
}

// HashPassphrase 生成配置用的口令哈希
func HashPassphrase(passphrase string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(passphrase), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Login 校验口令并签发令牌，令牌同时写入本地状态
func (s *AuthService) Login(ctx context.Context, passphrase string) (string, time.Time, error) {
	if len(s.passphraseHash) == 0 {
		return "", time.Time{}, ErrInvalidPassphrase
	}
	if err := bcrypt.CompareHashAndPassword(s.passphraseHash, []byte(passphrase)); err != nil {
		return "", time.Time{}, ErrInvalidPassphrase
	}

	now := s.clock.Now()
	expiresAt := now.Add(s.ttl)
	claims := &OperatorClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    operatorIssuer,
			Subject:   "operator",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("签发令牌失败: %w", err)
	}
	if err := s.store.SetOperatorToken(ctx, token); err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

func (s *AuthService) Logout(ctx context.Context) error {
	return s.store.Logout(ctx)
}

// ParseToken 校验签名、签发者与有效期
func (s *AuthService) ParseToken(tokenString string) (*OperatorClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &OperatorClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return s.secret, nil
	},
		jwt.WithIssuer(operatorIssuer),
		jwt.WithTimeFunc(s.clock.Now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims, ok := token.Claims.(*OperatorClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, ErrInvalidToken
}
