// Package auth 校验外部身份服务签发的 JWT，得到调用方用户 ID
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMissingToken 请求未携带令牌
	ErrMissingToken = errors.New("missing bearer token")
	// ErrInvalidToken 令牌无效或已过期
	ErrInvalidToken = errors.New("invalid token")
)

// Claims 令牌声明，subject 即用户 ID
type Claims struct {
	jwt.RegisteredClaims
}

// Verifier HS256 令牌校验器
type Verifier struct {
	secret []byte
	issuer string
}

// NewVerifier 创建校验器，issuer 为空时不校验签发方
func NewVerifier(secret, issuer string) *Verifier {
	return &Verifier{secret: []byte(secret), issuer: issuer}
}

// Verify 校验令牌并返回用户 ID
func (v *Verifier) Verify(token string) (string, error) {
	if token == "" {
		return "", ErrMissingToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: subject missing", ErrInvalidToken)
	}
	return claims.Subject, nil
}

// Sign 签发令牌，用于测试与本地调试
func (v *Verifier) Sign(userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
