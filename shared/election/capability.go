package election

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	DefaultVotingSessionTTL = 30 * time.Minute
	capabilityIssuer        = "election-core"
)

// CapabilityClaims is the payload of a verified-voter capability
type CapabilityClaims struct {
	TenantID      string             `json:"tid"`
	MatricID      string             `json:"mid"`
	Method        VerificationMethod `json:"method"`
	PartitionCode string             `json:"code,omitempty"`
	jwt.RegisteredClaims
}

// CapabilityIssuer signs and checks the short-lived capability a voter
// receives after verification and presents when casting ballots
type CapabilityIssuer struct {
	secret []byte
	ttl    time.Duration
	now    Clock
}

// NewCapabilityIssuer creates a CapabilityIssuer signing with HS256
func NewCapabilityIssuer(secret string, ttl time.Duration, clock Clock) *CapabilityIssuer {
	if ttl <= 0 {
		ttl = DefaultVotingSessionTTL
	}
	if clock == nil {
		clock = SystemClock
	}
	return &CapabilityIssuer{secret: []byte(secret), ttl: ttl, now: clock}
}

// Issue signs a capability for a verified voter
func (c *CapabilityIssuer) Issue(voter *VerifiedVoter) (string, time.Time, error) {
	now := c.now()
	expires := now.Add(c.ttl)
	claims := CapabilityClaims{
		TenantID: voter.TenantID.String(),
		MatricID: voter.MatricID,
		Method:   voter.Method,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    capabilityIssuer,
			Subject:   voter.MatricID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	if voter.Method == MethodVotingCode {
		claims.PartitionCode = voter.PartitionCode
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign voting capability: %w", err)
	}
	return signed, expires, nil
}

// Verify checks signature, expiry and that the capability belongs to this
// tenant and matric ID. Every failure is ErrNotEligible.
func (c *CapabilityIssuer) Verify(token string, tenantID uuid.UUID, matric string) (*CapabilityClaims, error) {
	if token == "" {
		return nil, ErrNotEligible
	}

	claims := &CapabilityClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(capabilityIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil || !parsed.Valid {
		return nil, ErrNotEligible
	}

	if claims.TenantID != tenantID.String() || claims.MatricID != NormalizeMatric(matric) {
		return nil, ErrNotEligible
	}
	return claims, nil
}
