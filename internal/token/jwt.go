package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dtroode/identity-server/internal/model"
)

// MinSecretLength is the shortest accepted HMAC key, in bytes.
const MinSecretLength = 32

var _ model.TokenCodec = (*JWT)(nil)

func init() {
	// iat and exp keep milliseconds so a token lives as long as the reported expiresInMs.
	jwt.TimePrecision = time.Millisecond
}

// reserved claims are owned by the codec and cannot be set by callers.
var reserved = map[string]struct{}{
	"sub": {},
	"iat": {},
	"exp": {},
	"nbf": {},
}

// JWT signs and verifies compact HS256 access tokens.
type JWT struct {
	secretKey []byte
	parser    *jwt.Parser
	now       func() time.Time
}

// NewJWT creates a new JWT codec with the provided secret key.
func NewJWT(secretKey string) (*JWT, error) {
	if len(secretKey) < MinSecretLength {
		return nil, fmt.Errorf("signing secret must be at least %d bytes", MinSecretLength)
	}

	return &JWT{
		secretKey: []byte(secretKey),
		// Claims are checked by hand so that subject is compared before expiry.
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithoutClaimsValidation(),
		),
		now: time.Now,
	}, nil
}

// Generate creates a token for subject valid for ttl. A zero ttl produces a token
// that is already expired.
func (j *JWT) Generate(subject string, claims map[string]any, ttl time.Duration) (string, error) {
	if ttl < 0 {
		return "", fmt.Errorf("negative token ttl %s", ttl)
	}

	now := j.now()
	mc := jwt.MapClaims{}
	for k, v := range claims {
		if _, ok := reserved[k]; ok {
			continue
		}
		mc[k] = v
	}
	mc["sub"] = subject
	mc["iat"] = jwt.NewNumericDate(now)
	mc["exp"] = jwt.NewNumericDate(now.Add(ttl))

	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, mc).SignedString(j.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}

	return tokenString, nil
}

// Validate checks signature, then that the subject equals expectedSubject, then expiry.
// A subject mismatch yields false without error; every other failure is ErrInvalidToken.
func (j *JWT) Validate(tokenString, expectedSubject string) (bool, error) {
	claims, err := j.parse(tokenString)
	if err != nil {
		return false, err
	}

	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return false, fmt.Errorf("%w: missing subject", model.ErrInvalidToken)
	}
	if subject != expectedSubject {
		return false, nil
	}

	if err := j.checkExpiry(claims); err != nil {
		return false, err
	}

	return true, nil
}

// ExtractSubject returns the subject of a correctly signed, unexpired token.
func (j *JWT) ExtractSubject(tokenString string) (string, error) {
	claims, err := j.parse(tokenString)
	if err != nil {
		return "", err
	}
	if err := j.checkExpiry(claims); err != nil {
		return "", err
	}

	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return "", fmt.Errorf("%w: missing subject", model.ErrInvalidToken)
	}

	return subject, nil
}

func (j *JWT) parse(tokenString string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	token, err := j.parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("wrong signing method %v", t.Header["alg"])
		}
		return j.secretKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("%w: signature rejected", model.ErrInvalidToken)
	}

	return claims, nil
}

func (j *JWT) checkExpiry(claims jwt.MapClaims) error {
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrInvalidToken, err)
	}
	if exp == nil {
		return fmt.Errorf("%w: missing expiry", model.ErrInvalidToken)
	}
	if !j.now().Before(exp.Time) {
		return fmt.Errorf("%w: %w", model.ErrInvalidToken, jwt.ErrTokenExpired)
	}

	return nil
}
