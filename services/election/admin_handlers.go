package main

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/pavitra93/go-election-system/shared/election"
	"github.com/pavitra93/go-election-system/shared/middleware"
	"github.com/pavitra93/go-election-system/shared/models"
	"github.com/pavitra93/go-election-system/shared/utils"
)

const maxBulkItems = 5000

// CreatePartitionRequest represents the request to create a partition
type CreatePartitionRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

// BulkEnrollRequest whitelists many voters at once
type BulkEnrollRequest struct {
	Voters []election.EnrollEntry `json:"voters" binding:"required"`
}

// BulkAssignRequest binds existing voters to one partition
type BulkAssignRequest struct {
	MatricIDs []string `json:"matric_ids" binding:"required"`
}

// BulkReassignRequest moves voters between partitions
type BulkReassignRequest struct {
	Items []election.Reassignment `json:"items" binding:"required"`
}

// AddCandidateRequest represents the request to add a candidate
type AddCandidateRequest struct {
	Name        string `json:"name" binding:"required"`
	Position    string `json:"position" binding:"required"`
	Description string `json:"description"`
}

// adminTenant resolves the tenant of the authenticated administrator
func adminTenant(c *gin.Context) (uuid.UUID, bool) {
	id, err := middleware.GetTenantIDFromContext(c)
	if err != nil {
		utils.UnauthorizedResponse(c, "Tenant information not found")
		return uuid.Nil, false
	}
	return id, true
}

// Partitions

func (s *server) createPartition(c *gin.Context) {
	tenantID, ok := adminTenant(c)
	if !ok {
		return
	}
	var req CreatePartitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Partition name is required")
		return
	}
	p, err := s.core.Partitions.Create(c.Request.Context(), tenantID, req.Name, req.Description)
	if err != nil {
		utils.ElectionErrorResponse(c, err)
		return
	}
	utils.CreatedResponse(c, "Partition created", p)
}

func (s *server) listPartitions(c *gin.Context) {
	tenantID, ok := adminTenant(c)
	if !ok {
		return
	}
	list, err := s.core.Partitions.List(c.Request.Context(), tenantID)
	if err != nil {
		utils.ElectionErrorResponse(c, err)
		return
	}
	utils.OKResponse(c, "Partitions retrieved", list)
}

func (s *server) generateCode(c *gin.Context) {
	tenantID, ok := adminTenant(c)
	if !ok {
		return
	}
	code, err := s.core.Partitions.GenerateCode(c.Request.Context(), tenantID)
	if err != nil {
		utils.ElectionErrorResponse(c, err)
		return
	}
	utils.OKResponse(c, "Code generated", gin.H{"code": code})
}

func (s *server) getPartition(c *gin.Context) {
	tenantID, ok := adminTenant(c)
	if !ok {
		return
	}
	p, err := s.core.Partitions.Get(c.Request.Context(), tenantID, c.Param("code"))
	if err != nil {
		utils.ElectionErrorResponse(c, err)
		return
	}
	utils.OKResponse(c, "Partition retrieved", p)
}

func (s *server) updatePartition(c *gin.Context) {
	tenantID, ok := adminTenant(c)
	if !ok {
		return
	}
	var req election.PartitionUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request format")
		return
	}
	p, err := s.core.Partitions.Update(c.Request.Context(), tenantID, c.Param("code"), req)
	if err != nil {
		utils.ElectionErrorResponse(c, err)
		return
	}
	utils.OKResponse(c, "Partition updated", p)
}

func (s *server) deletePartition(c *gin.Context) {
	tenantID, ok := adminTenant(c)
	if !ok {
		return
	}
	if err := s.core.Partitions.Delete(c.Request.Context(), tenantID, c.Param("code")); err != nil {
		utils.ElectionErrorResponse(c, err)
		return
	}
	utils.OKResponse(c, "Partition deleted", nil)
}

func (s *server) listPartitionVoters(c *gin.Context) {
	tenantID, ok := adminTenant(c)
	if !ok {
		return
	}
	code := c.Param("code")
	if _, err := s.core.Partitions.Get(c.Request.Context(), tenantID, code); err != nil {
		utils.ElectionErrorResponse(c, err)
		return
	}
	voters, err := s.core.Eligibility.List(c.Request.Context(), tenantID, election.VoterFilter{PartitionCode: code})
	if err != nil {
		utils.ElectionErrorResponse(c, err)
		return
	}
	utils.OKResponse(c, "Voters retrieved", voters)
}

func (s *server) bulkAssign(c *gin.Context) {
	tenantID, ok := adminTenant(c)
	if !ok {
		return
	}
	var req BulkAssignRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.MatricIDs) == 0 {
		utils.BadRequestResponse(c, "matric_ids must be a non-empty list")
		return
	}
	if len(req.MatricIDs) > maxBulkItems {
		utils.BadRequestResponse(c, "At most "+strconv.Itoa(maxBulkItems)+" voters per request")
		return
	}
	summary, err := s.core.Eligibility.BulkAssign(c.Request.Context(), tenantID, c.Param("code"), req.MatricIDs)
	if err != nil {
		utils.ElectionErrorResponse(c, err)
		return
	}
	utils.OKResponse(c, "Bulk assignment processed", summary)
}

func (s *server) unassignVoter(c *gin.Context) {
	tenantID, ok := adminTenant(c)
	if !ok {
		return
	}
	if err := s.core.Eligibility.Unassign(c.Request.Context(), tenantID, c.Param("code"), c.Param("matric_id")); err != nil {
		utils.ElectionErrorResponse(c, err)
		return
	}
	utils.OKResponse(c, "Voter removed from partition", nil)
}

// Voters

func (s *server) enrollVoter(c *gin.Context) {
	tenantID, ok := adminTenant(c)
	if !ok {
		return
	}
	var req election.EnrollEntry
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request format")
		return
	}
	voter, err := s.core.Eligibility.EnrollOne(c.Request.Context(), tenantID, req)
	if err != nil {
		utils.ElectionErrorResponse(c, err)
		return
	}
	utils.CreatedResponse(c, "Voter enrolled", voter)
}

func (s *server) enrollVoters(c *gin.Context) {
	tenantID, ok := adminTenant(c)
	if !ok {
		return
	}
	var req BulkEnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Voters) == 0 {
		utils.BadRequestResponse(c, "voters must be a non-empty list")
		return
	}
	if len(req.Voters) > maxBulkItems {
		utils.BadRequestResponse(c, "At most "+strconv.Itoa(maxBulkItems)+" voters per request")
		return
	}
	summary := s.core.Eligibility.Enroll(c.Request.Context(), tenantID, req.Voters)
	utils.OKResponse(c, "Bulk enrollment processed", summary)
}

func (s *server) bulkReassign(c *gin.Context) {
	tenantID, ok := adminTenant(c)
	if !ok {
		return
	}
	var req BulkReassignRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Items) == 0 {
		utils.BadRequestResponse(c, "items must be a non-empty list")
		return
	}
	if len(req.Items) > maxBulkItems {
		utils.BadRequestResponse(c, "At most "+strconv.Itoa(maxBulkItems)+" voters per request")
		return
	}
	summary := s.core.Eligibility.BulkReassign(c.Request.Context(), tenantID, req.Items)
	utils.OKResponse(c, "Bulk reassignment processed", summary)
}

func (s *server) listVoters(c *gin.Context) {
	tenantID, ok := adminTenant(c)
	if !ok {
		return
	}
	filter := election.VoterFilter{PartitionCode: c.Query("partition_code")}
	if raw := c.Query("has_voted"); raw != "" {
		voted, err := strconv.ParseBool(raw)
		if err != nil {
			utils.BadRequestResponse(c, "has_voted must be true or false")
			return
		}
		filter.HasVoted = &voted
	}
	voters, err := s.core.Eligibility.List(c.Request.Context(), tenantID, filter)
	if err != nil {
		utils.ElectionErrorResponse(c, err)
		return
	}
	utils.OKResponse(c, "Voters retrieved", voters)
}

func (s *server) voterStats(c *gin.Context) {
	tenantID, ok := adminTenant(c)
	if !ok {
		return
	}
	stats, err := s.core.Eligibility.Stats(c.Request.Context(), tenantID)
	if err != nil {
		utils.ElectionErrorResponse(c, err)
		return
	}
	utils.OKResponse(c, "Enrollment statistics retrieved", stats)
}

func (s *server) getVoter(c *gin.Context) {
	tenantID, ok := adminTenant(c)
	if !ok {
		return
	}
	voter, err := s.core.Eligibility.Lookup(c.Request.Context(), tenantID, c.Param("matric_id"))
	if err != nil {
		utils.ElectionErrorResponse(c, err)
		return
	}
	utils.OKResponse(c, "Voter retrieved", voter)
}

func (s *server) updateVoter(c *gin.Context) {
	tenantID, ok := adminTenant(c)
	if !ok {
		return
	}
	var req election.VoterUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request format")
		return
	}
	voter, err := s.core.Eligibility.Update(c.Request.Context(), tenantID, c.Param("matric_id"), req)
	if err != nil {
		utils.ElectionErrorResponse(c, err)
		return
	}
	utils.OKResponse(c, "Voter updated", voter)
}

func (s *server) deleteVoter(c *gin.Context) {
	tenantID, ok := adminTenant(c)
	if !ok {
		return
	}
	if err := s.core.Eligibility.Delete(c.Request.Context(), tenantID, c.Param("matric_id")); err != nil {
		utils.ElectionErrorResponse(c, err)
		return
	}
	utils.OKResponse(c, "Voter deleted", nil)
}

// Candidates

func (s *server) addCandidate(c *gin.Context) {
	tenantID, ok := adminTenant(c)
	if !ok {
		return
	}
	var req AddCandidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Candidate name and position are required")
		return
	}
	cand, err := s.core.Roster.AddCandidate(c.Request.Context(), tenantID, req.Name, req.Position, req.Description)
	if err != nil {
		utils.ElectionErrorResponse(c, err)
		return
	}
	utils.CreatedResponse(c, "Candidate added", cand)
}

func (s *server) listCandidates(c *gin.Context) {
	tenantID, ok := adminTenant(c)
	if !ok {
		return
	}
	var (
		cands []models.Candidate
		err   error
	)
	if position := strings.TrimSpace(c.Query("position")); position != "" {
		cands, err = s.core.Roster.ListByPosition(c.Request.Context(), tenantID, position)
	} else {
		cands, err = s.core.Roster.List(c.Request.Context(), tenantID)
	}
	if err != nil {
		utils.ElectionErrorResponse(c, err)
		return
	}
	utils.OKResponse(c, "Candidates retrieved", cands)
}

func (s *server) listPositions(c *gin.Context) {
	tenantID, ok := adminTenant(c)
	if !ok {
		return
	}
	positions, err := s.core.Roster.Positions(c.Request.Context(), tenantID)
	if err != nil {
		utils.ElectionErrorResponse(c, err)
		return
	}
	utils.OKResponse(c, "Positions retrieved", positions)
}

func (s *server) ensureVoid(c *gin.Context) {
	tenantID, ok := adminTenant(c)
	if !ok {
		return
	}
	created, err := s.core.Roster.EnsureVoidCandidates(c.Request.Context(), tenantID)
	if err != nil {
		utils.ElectionErrorResponse(c, err)
		return
	}
	utils.OKResponse(c, "VOID candidates ensured", gin.H{"positions": created})
}

func (s *server) deleteCandidate(c *gin.Context) {
	tenantID, ok := adminTenant(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid candidate id")
		return
	}
	if err := s.core.Roster.Delete(c.Request.Context(), tenantID, id); err != nil {
		utils.ElectionErrorResponse(c, err)
		return
	}
	utils.OKResponse(c, "Candidate deleted", nil)
}

// Results and links

func (s *server) adminResults(c *gin.Context) {
	tenantID, ok := adminTenant(c)
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

func (s *server) auditResults(c *gin.Context) {
	tenantID, ok := adminTenant(c)
	if !ok {
		return
	}
	audit, err := s.core.Results.Audit(c.Request.Context(), tenantID)
	if err != nil {
		utils.ElectionErrorResponse(c, err)
		return
	}
	utils.OKResponse(c, "Tally audit completed", audit)
}

func (s *server) generateLink(c *gin.Context) {
	tenantID, ok := adminTenant(c)
	if !ok {
		return
	}
	link, err := s.core.Links.Generate(c.Request.Context(), tenantID)
	if err != nil {
		utils.ElectionErrorResponse(c, err)
		return
	}
	utils.CreatedResponse(c, "Voting link generated", link)
}

func (s *server) listLinks(c *gin.Context) {
	tenantID, ok := adminTenant(c)
	if !ok {
		return
	}
	links, err := s.core.Links.List(c.Request.Context(), tenantID)
	if err != nil {
		utils.ElectionErrorResponse(c, err)
		return
	}
	utils.OKResponse(c, "Voting links retrieved", links)
}
