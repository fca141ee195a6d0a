package utils

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/pavitra93/go-election-system/shared/election"
)

// defaultRetryAfter is advertised when a rate limit error carries no duration
const defaultRetryAfter = time.Minute

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
}

// SuccessResponse sends a successful response
func SuccessResponse(c *gin.Context, statusCode int, message string, data interface{}) {
	c.JSON(statusCode, APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// ErrorResponse sends an error response
func ErrorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, APIResponse{
		Success: false,
		Error:   message,
	})
}

// CodedErrorResponse sends an error response with a machine-readable code and optional context
func CodedErrorResponse(c *gin.Context, statusCode int, code, message string, data interface{}) {
	c.JSON(statusCode, APIResponse{
		Success: false,
		Error:   message,
		Code:    code,
		Data:    data,
	})
}

// BadRequestResponse sends a 400 Bad Request response
func BadRequestResponse(c *gin.Context, message string) {
	CodedErrorResponse(c, http.StatusBadRequest, "ValidationError", message, nil)
}

// UnauthorizedResponse sends a 401 Unauthorized response
func UnauthorizedResponse(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusUnauthorized, message)
}

// ForbiddenResponse sends a 403 Forbidden response
func ForbiddenResponse(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusForbidden, message)
}

// NotFoundResponse sends a 404 Not Found response
func NotFoundResponse(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusNotFound, message)
}

// InternalServerErrorResponse sends a 500 Internal Server Error response
func InternalServerErrorResponse(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusInternalServerError, message)
}

// ServiceUnavailableResponse sends a 503 Service Unavailable response
func ServiceUnavailableResponse(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusServiceUnavailable, message)
}

// TooManyRequestsResponse sends a 429 with a Retry-After hint in seconds
func TooManyRequestsResponse(c *gin.Context, code, message string, retryAfterSeconds int) {
	if retryAfterSeconds > 0 {
		c.Header("Retry-After", strconv.Itoa(retryAfterSeconds))
	}
	CodedErrorResponse(c, http.StatusTooManyRequests, code, message, nil)
}

// CreatedResponse sends a 201 Created response
func CreatedResponse(c *gin.Context, message string, data interface{}) {
	SuccessResponse(c, http.StatusCreated, message, data)
}

// OKResponse sends a 200 OK response
func OKResponse(c *gin.Context, message string, data interface{}) {
	SuccessResponse(c, http.StatusOK, message, data)
}

// ErrorStatus maps an election error to its HTTP status and response code
func ErrorStatus(err error) (int, string) {
	var dup *election.DuplicateVoteError
	var inUse *election.PartitionInUseError

	switch {
	case errors.As(err, &dup):
		return http.StatusBadRequest, "DuplicateVote"
	case errors.As(err, &inUse):
		return http.StatusBadRequest, "PartitionInUse"
	case errors.Is(err, election.ErrValidation):
		return http.StatusBadRequest, "ValidationError"
	case errors.Is(err, election.ErrNotEligible):
		return http.StatusBadRequest, "NotEligible"
	case errors.Is(err, election.ErrVotedVoterImmutable):
		return http.StatusBadRequest, "VotedVoterImmutable"
	case errors.Is(err, election.ErrAlreadyVoted):
		return http.StatusBadRequest, "AlreadyVoted"
	case errors.Is(err, election.ErrDuplicateVoter):
		return http.StatusBadRequest, "DuplicateVoter"
	case errors.Is(err, election.ErrDuplicateName):
		return http.StatusBadRequest, "DuplicateName"
	case errors.Is(err, election.ErrDuplicateCandidate):
		return http.StatusBadRequest, "DuplicateCandidate"
	case errors.Is(err, election.ErrCandidateHasVotes):
		return http.StatusBadRequest, "CandidateHasVotes"
	case errors.Is(err, election.ErrInactivePartition):
		return http.StatusBadRequest, "InactivePartition"
	case errors.Is(err, election.ErrUnknownCandidate):
		return http.StatusBadRequest, "UnknownCandidate"
	case errors.Is(err, election.ErrUnknownPartition):
		return http.StatusNotFound, "UnknownPartition"
	case errors.Is(err, election.ErrUnknownVoter):
		return http.StatusNotFound, "UnknownVoter"
	case errors.Is(err, election.ErrInvalidToken):
		return http.StatusBadRequest, "InvalidToken"
	case errors.Is(err, election.ErrExpiredToken):
		return http.StatusBadRequest, "ExpiredToken"
	case errors.Is(err, election.ErrAlreadyUsed):
		return http.StatusBadRequest, "AlreadyUsed"
	case errors.Is(err, election.ErrRateLimited):
		return http.StatusTooManyRequests, "RateLimited"
	case errors.Is(err, election.ErrCodeSpaceExhausted):
		return http.StatusInternalServerError, "CodeSpaceExhausted"
	case errors.Is(err, election.ErrDeliveryFailed):
		return http.StatusInternalServerError, "DeliveryFailed"
	default:
		return http.StatusInternalServerError, "InternalError"
	}
}

// publicMessage hides infrastructure detail from callers
func publicMessage(err error, code string) string {
	switch code {
	case "DeliveryFailed":
		return election.ErrDeliveryFailed.Error()
	case "InternalError":
		return "An error occurred while processing your request. Please try again."
	default:
		return err.Error()
	}
}

// ElectionErrorResponse writes err in the standard envelope. Conflict errors
// carry the context a caller needs without probing again.
func ElectionErrorResponse(c *gin.Context, err error) {
	status, code := ErrorStatus(err)
	message := publicMessage(err, code)

	if status >= http.StatusInternalServerError {
		logrus.WithFields(logrus.Fields{
			"path": c.FullPath(),
			"code": code,
		}).WithError(err).Error("Request failed")
	}

	var data interface{}
	var dup *election.DuplicateVoteError
	var inUse *election.PartitionInUseError
	switch {
	case errors.As(err, &dup):
		data = gin.H{"position": dup.Position, "previous_candidate": dup.PreviousCandidate}
	case errors.As(err, &inUse):
		data = gin.H{"code": inUse.Code, "bound_voters": inUse.BoundVoters}
	}

	if status == http.StatusTooManyRequests {
		TooManyRequestsResponse(c, code, message, retryAfterSeconds(err))
		return
	}
	CodedErrorResponse(c, status, code, message, data)
}

// retryAfterSeconds rounds the remaining rate window up to whole seconds
func retryAfterSeconds(err error) int {
	retry := defaultRetryAfter
	var limited *election.RateLimitedError
	if errors.As(err, &limited) && limited.RetryAfter > 0 {
		retry = limited.RetryAfter
	}
	return int((retry + time.Second - 1) / time.Second)
}
