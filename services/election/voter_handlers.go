package main

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/pavitra93/go-election-system/shared/election"
	"github.com/pavitra93/go-election-system/shared/metrics"
	"github.com/pavitra93/go-election-system/shared/models"
	"github.com/pavitra93/go-election-system/shared/utils"
)

// CapabilityHeader carries the voting capability on vote requests
const CapabilityHeader = "X-Voting-Capability"

// VerificationRequest asks for an emailed verification link
type VerificationRequest struct {
	Email    string `json:"email" binding:"required"`
	MatricID string `json:"matric_id" binding:"required"`
}

// CodeVerificationRequest verifies a voter with their partition code
type CodeVerificationRequest struct {
	Email    string `json:"email" binding:"required"`
	MatricID string `json:"matric_id" binding:"required"`
	Code     string `json:"code" binding:"required"`
}

// VoteRequest casts one ballot
type VoteRequest struct {
	MatricID    string    `json:"matric_id" binding:"required"`
	CandidateID uuid.UUID `json:"candidate_id" binding:"required"`
}

// VotingSession is returned once a voter is verified
type VotingSession struct {
	Capability string                  `json:"capability"`
	ExpiresAt  time.Time               `json:"expires_at"`
	Voter      *election.VerifiedVoter `json:"voter"`
}

// PublicCandidate is a candidate as shown on the ballot
type PublicCandidate struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	IsVoid      bool      `json:"is_void"`
}

// BallotPosition groups the candidates of one position
type BallotPosition struct {
	Position   string            `json:"position"`
	Candidates []PublicCandidate `json:"candidates"`
}

// tenantParam parses :tenant_id, answering 400 when it is not a UUID
func tenantParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("tenant_id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid election id")
		return uuid.Nil, false
	}
	return id, true
}

func (s *server) requestVerification(c *gin.Context) {
	tenantID, ok := tenantParam(c)
	if !ok {
		return
	}
	var req VerificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Email and matric ID are required")
		return
	}

	err := s.core.Tokens.RequestToken(c.Request.Context(), tenantID, req.Email, req.MatricID)
	metrics.VerificationRequests.WithLabelValues(string(election.MethodEmailToken), metrics.Outcome(err)).Inc()
	if err != nil {
		utils.ElectionErrorResponse(c, err)
		return
	}

	utils.OKResponse(c, "Verification email sent. Check your inbox.", gin.H{
		"expires_in_minutes": int(s.cfg.TokenTTL / time.Minute),
	})
}

func (s *server) verifyCode(c *gin.Context) {
	tenantID, ok := tenantParam(c)
	if !ok {
		return
	}
	var req CodeVerificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Email, matric ID and code are required")
		return
	}

	voter, err := s.core.Eligibility.VerifyCode(c.Request.Context(), tenantID, req.Email, req.MatricID, req.Code)
	metrics.VerificationRequests.WithLabelValues(string(election.MethodVotingCode), metrics.Outcome(err)).Inc()
	if err != nil {
		utils.ElectionErrorResponse(c, err)
		return
	}

	session, err := s.issueSession(voter)
	if err != nil {
		utils.ElectionErrorResponse(c, err)
		return
	}
	utils.OKResponse(c, "Verification successful", session)
}

func (s *server) issueSession(voter *election.VerifiedVoter) (*VotingSession, error) {
	capability, expiresAt, err := s.core.Capabilities.Issue(voter)
	if err != nil {
		return nil, err
	}
	return &VotingSession{Capability: capability, ExpiresAt: expiresAt, Voter: voter}, nil
}

// consumeToken redeems an emailed link. Browsers are redirected to the
// voting client, API clients asking for JSON get the session directly.
func (s *server) consumeToken(c *gin.Context) {
	wantsJSON := c.NegotiateFormat(gin.MIMEHTML, gin.MIMEJSON) == gin.MIMEJSON

	voter, err := s.core.Tokens.Consume(c.Request.Context(), c.Param("token"))
	metrics.TokenConsumptions.WithLabelValues(metrics.Outcome(err)).Inc()
	if err != nil {
		if wantsJSON {
			utils.ElectionErrorResponse(c, err)
			return
		}
		status, _ := utils.ErrorStatus(err)
		renderVerificationFailure(c, status, failureMessage(err), s.cfg.ClientHomeURL)
		return
	}

	session, err := s.issueSession(voter)
	if err != nil {
		if wantsJSON {
			utils.ElectionErrorResponse(c, err)
			return
		}
		renderVerificationFailure(c, http.StatusInternalServerError, failureMessage(err), s.cfg.ClientHomeURL)
		return
	}

	if wantsJSON {
		utils.OKResponse(c, "Email verified", session)
		return
	}

	query := url.Values{
		"tenant_id": {voter.TenantID.String()},
		"matric_id": {voter.MatricID},
	}
	fragment := url.Values{"capability": {session.Capability}}
	c.Redirect(http.StatusFound, s.cfg.ClientVoteURL+"?"+query.Encode()+"#"+fragment.Encode())
}

func (s *server) castVote(c *gin.Context) {
	tenantID, ok := tenantParam(c)
	if !ok {
		return
	}
	var req VoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Matric ID and candidate ID are required")
		return
	}

	capability := c.GetHeader(CapabilityHeader)
	if capability == "" {
		capability = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	}

	receipt, err := s.core.Ledger.CastVote(c.Request.Context(), tenantID, req.MatricID, req.CandidateID, capability)
	metrics.BallotCasts.WithLabelValues(metrics.Outcome(err)).Inc()
	if err != nil {
		utils.ElectionErrorResponse(c, err)
		return
	}

	logrus.WithFields(logrus.Fields{
		"tenant_id": tenantID,
		"position":  receipt.Position,
	}).Debug("Vote recorded")
	utils.OKResponse(c, "Vote cast for "+receipt.CandidateName, receipt)
}

func (s *server) publicCandidates(c *gin.Context) {
	tenantID, ok := tenantParam(c)
	if !ok {
		return
	}
	candidates, err := s.core.Roster.List(c.Request.Context(), tenantID)
	if err != nil {
		utils.ElectionErrorResponse(c, err)
		return
	}
	utils.OKResponse(c, "Candidates retrieved", groupByPosition(candidates))
}

// groupByPosition relies on candidates arriving sorted by position
func groupByPosition(candidates []models.Candidate) []BallotPosition {
	positions := []BallotPosition{}
	for _, cand := range candidates {
		if len(positions) == 0 || positions[len(positions)-1].Position != cand.Position {
			positions = append(positions, BallotPosition{Position: cand.Position})
		}
		last := &positions[len(positions)-1]
		last.Candidates = append(last.Candidates, PublicCandidate{
			ID:          cand.ID,
			Name:        cand.Name,
			Description: cand.Description,
			IsVoid:      cand.IsVoid,
		})
	}
	return positions
}

func (s *server) publicResults(c *gin.Context) {
	tenantID, ok := tenantParam(c)
	if !ok {
		return
	}
	results, err := s.core.Results.Results(c.Request.Context(), tenantID)
	if err != nil {
		utils.ElectionErrorResponse(c, err)
		return
	}
	utils.OKResponse(c, "Results retrieved", results)
}

func (s *server) publicPositionResults(c *gin.Context) {
	tenantID, ok := tenantParam(c)
	if !ok {
		return
	}
	result, err := s.core.Results.PositionResults(c.Request.Context(), tenantID, c.Param("position"))
	if err != nil {
		utils.ElectionErrorResponse(c, err)
		return
	}
	utils.OKResponse(c, "Results retrieved", result)
}
