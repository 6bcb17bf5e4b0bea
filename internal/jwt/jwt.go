package jwt

import (
	"fmt"
	"strconv"
	"time"

	gojose "github.com/go-jose/go-jose/v4"
	gojwt "github.com/go-jose/go-jose/v4/jwt"
)

// Generator signs and validates the bearer tokens. Access tokens carry the
// user email as subject; refresh tokens carry the user id as subject plus a
// jti linking to the persisted redemption row.
type Generator struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewGenerator constructs a generator around the process-wide signing secret.
func NewGenerator(secret string, accessTTL, refreshTTL time.Duration) *Generator {
	return &Generator{secret: []byte(secret), accessTTL: accessTTL, refreshTTL: refreshTTL}
}

// RefreshTokenClaims is the custom payload embedded in refresh tokens.
type RefreshTokenClaims struct {
	JTI string `json:"jti"`
}

var allowedAlgorithms = []gojose.SignatureAlgorithm{gojose.HS256}

func (g *Generator) signer() (gojose.Signer, error) {
	return gojose.NewSigner(
		gojose.SigningKey{Algorithm: gojose.HS256, Key: g.secret},
		(&gojose.SignerOptions{}).WithType("JWT"),
	)
}

// GenerateAccessToken produces a signed access JWT for the user email.
func (g *Generator) GenerateAccessToken(email string) (string, error) {
	signer, err := g.signer()
	if err != nil {
		return "", fmt.Errorf("new signer: %w", err)
	}

	now := time.Now().UTC()
	claims := gojwt.Claims{
		Subject:  email,
		IssuedAt: gojwt.NewNumericDate(now),
		Expiry:   gojwt.NewNumericDate(now.Add(g.accessTTL)),
	}

	token, err := gojwt.Signed(signer).Claims(claims).Serialize()
	if err != nil {
		return "", fmt.Errorf("serialize access token: %w", err)
	}
	return token, nil
}

// GenerateRefreshToken produces a signed refresh JWT embedding the jti.
func (g *Generator) GenerateRefreshToken(userID int64, jti string) (string, error) {
	signer, err := g.signer()
	if err != nil {
		return "", fmt.Errorf("new signer: %w", err)
	}

	now := time.Now().UTC()
	std := gojwt.Claims{
		Subject:  strconv.FormatInt(userID, 10),
		IssuedAt: gojwt.NewNumericDate(now),
		Expiry:   gojwt.NewNumericDate(now.Add(g.refreshTTL)),
	}
	custom := RefreshTokenClaims{JTI: jti}

	token, err := gojwt.Signed(signer).Claims(std).Claims(custom).Serialize()
	if err != nil {
		return "", fmt.Errorf("serialize refresh token: %w", err)
	}
	return token, nil
}

// ValidateAccessToken verifies signature and expiry and returns the subject
// email.
func (g *Generator) ValidateAccessToken(token string) (string, error) {
	std, _, err := g.parse(token)
	if err != nil {
		return "", err
	}
	if std.Subject == "" {
		return "", fmt.Errorf("access token missing subject")
	}
	return std.Subject, nil
}

// ParseRefreshToken verifies signature and expiry and returns the embedded
// user id and jti.
func (g *Generator) ParseRefreshToken(token string) (int64, string, error) {
	std, custom, err := g.parse(token)
	if err != nil {
		return 0, "", err
	}
	if custom.JTI == "" {
		return 0, "", fmt.Errorf("refresh token missing jti")
	}
	userID, err := strconv.ParseInt(std.Subject, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("refresh token subject: %w", err)
	}
	return userID, custom.JTI, nil
}

func (g *Generator) parse(token string) (gojwt.Claims, RefreshTokenClaims, error) {
	parsed, err := gojwt.ParseSigned(token, allowedAlgorithms)
	if err != nil {
		return gojwt.Claims{}, RefreshTokenClaims{}, fmt.Errorf("parse token: %w", err)
	}

	var std gojwt.Claims
	var custom RefreshTokenClaims
	if err := parsed.Claims(g.secret, &std, &custom); err != nil {
		return gojwt.Claims{}, RefreshTokenClaims{}, fmt.Errorf("verify token: %w", err)
	}

	if err := std.Validate(gojwt.Expected{Time: time.Now().UTC()}); err != nil {
		return gojwt.Claims{}, RefreshTokenClaims{}, fmt.Errorf("validate claims: %w", err)
	}

	return std, custom, nil
}
