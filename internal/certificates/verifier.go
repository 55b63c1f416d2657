package certificates

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const defaultVerificationTTL = 90 * 24 * time.Hour

var (
	errMissingSigningSecret = errors.New("signing secret must be provided")
	errMissingCertificateID = errors.New("certificate id claim must be provided")
)

// VerifierConfig configures the certificate verification token issuer.
type VerifierConfig struct {
	SigningSecret []byte
	Issuer        string
	Audience      string
	TokenTTL      time.Duration
	Clock         func() time.Time
}

// Verifier issues and validates signed claims attesting that a certificate
// was produced by this service, without exposing the record store.
type Verifier struct {
	config VerifierConfig
	clock  func() time.Time
}

type verificationClaims struct {
	Participant string `json:"participant"`
	jwt.RegisteredClaims
}

// NewVerifier constructs a Verifier with sane defaults.
func NewVerifier(cfg VerifierConfig) *Verifier {
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = defaultVerificationTTL
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Verifier{
		config: VerifierConfig{
			SigningSecret: cfg.SigningSecret,
			Issuer:        cfg.Issuer,
			Audience:      cfg.Audience,
			TokenTTL:      ttl,
			Clock:         clock,
		},
		clock: clock,
	}
}

// IssueVerification produces a signed token and its expiry (seconds) for the
// persisted record.
func (v *Verifier) IssueVerification(record Record) (string, int64, error) {
	if len(v.config.SigningSecret) == 0 {
		return "", 0, errMissingSigningSecret
	}
	if record.CertificateID == "" {
		return "", 0, errMissingCertificateID
	}

	now := v.clock().UTC()
	expiresAt := now.Add(v.config.TokenTTL).UTC()

	claims := verificationClaims{
		Participant: record.ParticipantName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   record.CertificateID,
			Issuer:    v.config.Issuer,
			Audience:  []string{v.config.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(v.config.SigningSecret)
	if err != nil {
		return "", 0, err
	}

	return signed, int64(expiresAt.Sub(now).Seconds()), nil
}

// ValidateVerification ensures the token is well formed and returns the
// certificate identifier it attests.
func (v *Verifier) ValidateVerification(tokenString string) (string, error) {
	if len(v.config.SigningSecret) == 0 {
		return "", errMissingSigningSecret
	}

	claims := &verificationClaims{}
	_, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(token *jwt.Token) (interface{}, error) {
			if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, fmt.Errorf("unexpected signing algorithm: %s", token.Method.Alg())
			}
			return v.config.SigningSecret, nil
		},
		jwt.WithAudience(v.config.Audience),
		jwt.WithIssuer(v.config.Issuer),
		jwt.WithTimeFunc(v.clock),
	)
	if err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", errMissingCertificateID
	}
	return claims.Subject, nil
}
