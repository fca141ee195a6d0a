package election

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Clock returns the current instant. Stores take one so tests can move time.
type Clock func() time.Time

// SystemClock is UTC wall time truncated to the precision both databases keep
func SystemClock() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// NormalizeEmail lower-cases and trims an email address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeMatric upper-cases and trims a matric ID
func NormalizeMatric(matric string) string {
	return strings.ToUpper(strings.TrimSpace(matric))
}

// ValidEmail reports whether email looks like an address
func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// VerificationMethod records how a voter proved their identity
type VerificationMethod string

const (
	MethodEmailToken VerificationMethod = "email_token"
	MethodVotingCode VerificationMethod = "voting_code"
)

// VerifiedVoter is the identity established by a successful verification
type VerifiedVoter struct {
	TenantID      uuid.UUID          `json:"tenant_id"`
	MatricID      string             `json:"matric_id"`
	Email         string             `json:"email"`
	PartitionCode string             `json:"partition_code"`
	Method        VerificationMethod `json:"method"`
}
