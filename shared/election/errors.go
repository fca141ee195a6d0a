package election

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// ErrorKind groups errors by how a caller should react to them
type ErrorKind string

const (
	KindValidation     ErrorKind = "validation"
	KindAuthorization  ErrorKind = "authorization"
	KindConflict       ErrorKind = "conflict"
	KindNotFound       ErrorKind = "not_found"
	KindExhausted      ErrorKind = "exhausted"
	KindInfrastructure ErrorKind = "infrastructure"
)

var (
	ErrValidation = errors.New("invalid request")

	ErrNotEligible = errors.New("you are not an eligible voter, kindly reach out to the electoral committee")

	ErrAlreadyVoted        = errors.New("you have already voted")
	ErrVotedVoterImmutable = fmt.Errorf("%w: a voter who has voted cannot be changed", ErrAlreadyVoted)
	ErrDuplicateVoter      = errors.New("matric ID is already enrolled")
	ErrDuplicateVote       = errors.New("a ballot for this position has already been cast")
	ErrDuplicateName       = errors.New("a voting code with this name already exists")
	ErrDuplicateCandidate  = errors.New("candidate already exists for this position")
	ErrPartitionInUse      = errors.New("voting code still has bound voters")
	ErrCandidateHasVotes   = errors.New("candidate has recorded votes")
	ErrInactivePartition   = errors.New("voting code is inactive")

	ErrUnknownVoter     = errors.New("voter not found")
	ErrUnknownPartition = errors.New("voting code not found")
	ErrUnknownCandidate = errors.New("candidate not found")

	ErrInvalidToken = errors.New("this verification link is invalid")
	ErrExpiredToken = errors.New("this verification link has expired, please request a new one")
	ErrAlreadyUsed  = errors.New("this verification link has already been used")

	ErrCodeSpaceExhausted = errors.New("could not generate a unique voting code, widen the code space")
	ErrRateLimited        = errors.New("please wait before requesting another verification email")

	ErrDeliveryFailed = errors.New("failed to send verification email, please try again later")
)

// DuplicateVoteError carries the choice the voter already made for the position
type DuplicateVoteError struct {
	Position          string
	PreviousCandidate string
}

func (e *DuplicateVoteError) Error() string {
	if e.PreviousCandidate == "" {
		return fmt.Sprintf("you have already voted for %s", e.Position)
	}
	return fmt.Sprintf("you have already voted for %s. You voted for %s", e.Position, e.PreviousCandidate)
}

// Is lets errors.Is match ErrDuplicateVote
func (e *DuplicateVoteError) Is(target error) bool {
	return target == ErrDuplicateVote
}

// PartitionInUseError carries the number of voters still bound to the code
type PartitionInUseError struct {
	Code        string
	BoundVoters int64
}

func (e *PartitionInUseError) Error() string {
	return fmt.Sprintf("cannot delete voting code %s: %d voter(s) are still assigned to it", e.Code, e.BoundVoters)
}

// Is lets errors.Is match ErrPartitionInUse
func (e *PartitionInUseError) Is(target error) bool {
	return target == ErrPartitionInUse
}

// RateLimitedError says how long until another verification email may be requested
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return ErrRateLimited.Error()
}

// Is lets errors.Is match ErrRateLimited
func (e *RateLimitedError) Is(target error) bool {
	return target == ErrRateLimited
}

// Kind classifies err into the error taxonomy
func Kind(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation), errors.Is(err, ErrInvalidToken):
		return KindValidation
	case errors.Is(err, ErrNotEligible):
		return KindAuthorization
	case errors.Is(err, ErrAlreadyVoted), errors.Is(err, ErrDuplicateVoter), errors.Is(err, ErrDuplicateVote),
		errors.Is(err, ErrDuplicateName), errors.Is(err, ErrDuplicateCandidate), errors.Is(err, ErrPartitionInUse),
		errors.Is(err, ErrCandidateHasVotes), errors.Is(err, ErrInactivePartition),
		errors.Is(err, ErrExpiredToken), errors.Is(err, ErrAlreadyUsed):
		return KindConflict
	case errors.Is(err, ErrUnknownVoter), errors.Is(err, ErrUnknownPartition), errors.Is(err, ErrUnknownCandidate):
		return KindNotFound
	case errors.Is(err, ErrCodeSpaceExhausted), errors.Is(err, ErrRateLimited):
		return KindExhausted
	default:
		return KindInfrastructure
	}
}

// validationError wraps ErrValidation with a field-specific message
func validationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// isDuplicateKey reports whether err is a unique constraint violation
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}

// isForeignKeyViolation reports whether err is a foreign key violation
func isForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "FOREIGN KEY constraint failed") ||
		strings.Contains(msg, "violates foreign key constraint")
}
