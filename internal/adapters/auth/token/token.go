package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrEmptySecret は署名鍵が設定されていない場合に返されます。
	ErrEmptySecret = errors.New("token: secret is empty")
	// ErrMissingSubject はトークンに sub クレームが無い場合に返されます。
	ErrMissingSubject = errors.New("token: subject is missing")
)

// Authenticator は HS256 で署名されたアクセストークンを検証します。
type Authenticator struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// Option は Authenticator の生成オプションです。
type Option func(*Authenticator)

// WithNow は有効期限の判定に使う時刻関数を差し替えます。
func WithNow(now func() time.Time) Option {
	return func(a *Authenticator) {
		if now != nil {
			a.now = now
		}
	}
}

// New は Authenticator を生成します。
func New(secret, issuer string, opts ...Option) (*Authenticator, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	a := &Authenticator{secret: []byte(secret), issuer: issuer, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Authenticate はトークンを検証し、sub クレームのアカウント ID を返します。
func (a *Authenticator) Authenticate(_ context.Context, raw string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	}
	if a.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(a.issuer))
	}

	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	}, parserOpts...)
	if err != nil {
		return "", fmt.Errorf("token: parse: %w", err)
	}
	if !tok.Valid {
		return "", fmt.Errorf("token: invalid claims")
	}
	if claims.Subject == "" {
		return "", ErrMissingSubject
	}
	return claims.Subject, nil
}

// Issue は subject 宛のトークンを ttl の有効期限付きで発行します。
func (a *Authenticator) Issue(subject string, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", ErrMissingSubject
	}
	now := a.now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    a.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("token: sign: %w", err)
	}
	return signed, nil
}
