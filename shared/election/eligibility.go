package election

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/pavitra93/go-election-system/shared/models"
)

// EligibilityStore holds the whitelist of each tenant
type EligibilityStore struct {
	db  *gorm.DB
	now Clock
}

// NewEligibilityStore creates an EligibilityStore backed by db
func NewEligibilityStore(db *gorm.DB, clock Clock) *EligibilityStore {
	if clock == nil {
		clock = SystemClock
	}
	return &EligibilityStore{db: db, now: clock}
}

// EnrollEntry is one voter to add to the whitelist
type EnrollEntry struct {
	Email         string `json:"email"`
	MatricID      string `json:"matric_id"`
	PartitionCode string `json:"partition_code"`
}

// EntryError is a per-item failure inside a bulk operation
type EntryError struct {
	MatricID string `json:"matric_id"`
	Error    string `json:"error"`
}

// EnrollSummary reports the outcome of a bulk enrollment
type EnrollSummary struct {
	Created    []string     `json:"created"`
	Duplicates []string     `json:"duplicates"`
	Errors     []EntryError `json:"errors"`
}

// AssignSummary reports the outcome of a bulk assignment or reassignment
type AssignSummary struct {
	Assigned     []string     `json:"assigned"`
	NotFound     []string     `json:"not_found"`
	AlreadyVoted []string     `json:"already_voted"`
	Errors       []EntryError `json:"errors"`
}

// Reassignment moves one voter to another voting code
type Reassignment struct {
	MatricID      string `json:"matric_id"`
	PartitionCode string `json:"partition_code"`
}

// VoterUpdate holds the mutable fields of an unvoted voter
type VoterUpdate struct {
	Email         *string `json:"email"`
	PartitionCode *string `json:"partition_code"`
}

// VoterFilter narrows List
type VoterFilter struct {
	PartitionCode string
	HasVoted      *bool
}

// IsEligible returns the voter whose email and matric ID both match.
// Any mismatch is ErrNotEligible without saying which field was wrong.
func (s *EligibilityStore) IsEligible(ctx context.Context, tenantID uuid.UUID, email, matric string) (*models.VoterRecord, error) {
	email = NormalizeEmail(email)
	matric = NormalizeMatric(matric)
	if email == "" || matric == "" {
		return nil, ErrNotEligible
	}

	var voter models.VoterRecord
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND matric_id = ? AND email = ?", tenantID, matric, email).
		First(&voter).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotEligible
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check eligibility: %w", err)
	}
	return &voter, nil
}

// VerifyCode checks a voter against the voting code they were handed.
// The code must be the one the voter is bound to; deactivated codes still verify.
func (s *EligibilityStore) VerifyCode(ctx context.Context, tenantID uuid.UUID, email, matric, code string) (*VerifiedVoter, error) {
	voter, err := s.IsEligible(ctx, tenantID, email, matric)
	if err != nil {
		return nil, err
	}
	if voter.PartitionCode != normalizeCode(code) {
		return nil, ErrNotEligible
	}
	if voter.HasVoted {
		return nil, ErrAlreadyVoted
	}
	return &VerifiedVoter{
		TenantID:      tenantID,
		MatricID:      voter.MatricID,
		Email:         voter.Email,
		PartitionCode: voter.PartitionCode,
		Method:        MethodVotingCode,
	}, nil
}

// Lookup returns a voter by matric ID
func (s *EligibilityStore) Lookup(ctx context.Context, tenantID uuid.UUID, matric string) (*models.VoterRecord, error) {
	return lookupVoter(s.db.WithContext(ctx), tenantID, NormalizeMatric(matric))
}

func lookupVoter(db *gorm.DB, tenantID uuid.UUID, matric string) (*models.VoterRecord, error) {
	var voter models.VoterRecord
	err := db.Where("tenant_id = ? AND matric_id = ?", tenantID, matric).First(&voter).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUnknownVoter
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load voter: %w", err)
	}
	return &voter, nil
}

// EnrollOne adds a single voter to the whitelist
func (s *EligibilityStore) EnrollOne(ctx context.Context, tenantID uuid.UUID, entry EnrollEntry) (*models.VoterRecord, error) {
	return s.enroll(ctx, tenantID, entry, map[string]*models.Partition{})
}

// Enroll adds many voters. Each entry succeeds or fails on its own.
func (s *EligibilityStore) Enroll(ctx context.Context, tenantID uuid.UUID, entries []EnrollEntry) *EnrollSummary {
	summary := &EnrollSummary{
		Created:    []string{},
		Duplicates: []string{},
		Errors:     []EntryError{},
	}
	partitions := map[string]*models.Partition{}

	for _, entry := range entries {
		voter, err := s.enroll(ctx, tenantID, entry, partitions)
		switch {
		case err == nil:
			summary.Created = append(summary.Created, voter.MatricID)
		case errors.Is(err, ErrDuplicateVoter):
			summary.Duplicates = append(summary.Duplicates, NormalizeMatric(entry.MatricID))
		default:
			summary.Errors = append(summary.Errors, EntryError{MatricID: NormalizeMatric(entry.MatricID), Error: err.Error()})
		}
	}

	logrus.WithFields(logrus.Fields{
		"tenant_id":  tenantID,
		"created":    len(summary.Created),
		"duplicates": len(summary.Duplicates),
		"errors":     len(summary.Errors),
	}).Info("Bulk enrollment processed")

	return summary
}

func (s *EligibilityStore) enroll(ctx context.Context, tenantID uuid.UUID, entry EnrollEntry, partitions map[string]*models.Partition) (*models.VoterRecord, error) {
	email := NormalizeEmail(entry.Email)
	matric := NormalizeMatric(entry.MatricID)
	code := normalizeCode(entry.PartitionCode)

	if matric == "" {
		return nil, validationError("matric ID is required")
	}
	if !ValidEmail(email) {
		return nil, validationError("invalid email address %q", entry.Email)
	}
	if code == "" {
		return nil, validationError("voting code is required")
	}

	partition, ok := partitions[code]
	if !ok {
		p, err := findPartition(s.db.WithContext(ctx), tenantID, code)
		if err != nil && !errors.Is(err, ErrUnknownPartition) {
			return nil, err
		}
		partition = p
		partitions[code] = p
	}
	if partition == nil {
		return nil, ErrUnknownPartition
	}
	if !partition.IsActive {
		return nil, ErrInactivePartition
	}

	now := s.now()
	voter := models.VoterRecord{
		TenantID:      tenantID,
		MatricID:      matric,
		Email:         email,
		PartitionCode: code,
		BoundAt:       now,
	}
	if err := s.db.WithContext(ctx).Create(&voter).Error; err != nil {
		if isDuplicateKey(err) {
			return nil, ErrDuplicateVoter
		}
		// The code was deleted after we looked it up
		if isForeignKeyViolation(err) {
			delete(partitions, code)
			return nil, ErrUnknownPartition
		}
		return nil, fmt.Errorf("failed to enroll voter: %w", err)
	}
	return &voter, nil
}

// Bind moves an unvoted voter to an active voting code.
// The check on the voter and on the target code is part of the single UPDATE.
func (s *EligibilityStore) Bind(ctx context.Context, tenantID uuid.UUID, matric, code string) (*models.VoterRecord, error) {
	return s.update(ctx, tenantID, NormalizeMatric(matric), VoterUpdate{PartitionCode: &code})
}

// Update changes the email and/or voting code of a voter who has not voted
func (s *EligibilityStore) Update(ctx context.Context, tenantID uuid.UUID, matric string, upd VoterUpdate) (*models.VoterRecord, error) {
	return s.update(ctx, tenantID, NormalizeMatric(matric), upd)
}

func (s *EligibilityStore) update(ctx context.Context, tenantID uuid.UUID, matric string, upd VoterUpdate) (*models.VoterRecord, error) {
	fields := map[string]interface{}{}
	code := ""
	if upd.Email != nil {
		email := NormalizeEmail(*upd.Email)
		if !ValidEmail(email) {
			return nil, validationError("invalid email address %q", *upd.Email)
		}
		fields["email"] = email
	}
	if upd.PartitionCode != nil {
		code = normalizeCode(*upd.PartitionCode)
		if code == "" {
			return nil, validationError("voting code is required")
		}
		fields["partition_code"] = code
		fields["bound_at"] = s.now()
	}
	if len(fields) == 0 {
		return nil, validationError("nothing to update")
	}

	db := s.db.WithContext(ctx)
	q := db.Model(&models.VoterRecord{}).
		Where("tenant_id = ? AND matric_id = ? AND has_voted = ?", tenantID, matric, false)
	if code != "" {
		q = q.Where("EXISTS (SELECT 1 FROM partitions p WHERE p.tenant_id = ? AND p.code = ? AND p.is_active = ?)", tenantID, code, true)
	}
	res := q.Updates(fields)
	if res.Error != nil {
		if code != "" && isForeignKeyViolation(res.Error) {
			return nil, ErrUnknownPartition
		}
		return nil, fmt.Errorf("failed to update voter: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, s.classifyBindFailure(db, tenantID, matric, code)
	}

	return lookupVoter(db, tenantID, matric)
}

// classifyBindFailure explains why a conditional voter update touched no rows
func (s *EligibilityStore) classifyBindFailure(db *gorm.DB, tenantID uuid.UUID, matric, code string) error {
	voter, err := lookupVoter(db, tenantID, matric)
	if err != nil {
		return err
	}
	if voter.HasVoted {
		return ErrVotedVoterImmutable
	}
	if code == "" {
		return ErrUnknownVoter
	}
	partition, err := findPartition(db, tenantID, code)
	if err != nil {
		return err
	}
	if !partition.IsActive {
		return ErrInactivePartition
	}
	// The partition changed between the UPDATE and this read
	return ErrUnknownPartition
}

// BulkAssign binds many voters to one voting code
func (s *EligibilityStore) BulkAssign(ctx context.Context, tenantID uuid.UUID, code string, matrics []string) (*AssignSummary, error) {
	code = normalizeCode(code)
	partition, err := findPartition(s.db.WithContext(ctx), tenantID, code)
	if err != nil {
		return nil, err
	}
	if !partition.IsActive {
		return nil, ErrInactivePartition
	}

	items := make([]Reassignment, 0, len(matrics))
	for _, m := range matrics {
		items = append(items, Reassignment{MatricID: m, PartitionCode: code})
	}
	summary := s.reassign(ctx, tenantID, items)

	logrus.WithFields(logrus.Fields{
		"tenant_id":     tenantID,
		"code":          code,
		"assigned":      len(summary.Assigned),
		"not_found":     len(summary.NotFound),
		"already_voted": len(summary.AlreadyVoted),
	}).Info("Bulk assignment processed")

	return summary, nil
}

// BulkReassign moves each voter to its own target code
func (s *EligibilityStore) BulkReassign(ctx context.Context, tenantID uuid.UUID, items []Reassignment) *AssignSummary {
	return s.reassign(ctx, tenantID, items)
}

func (s *EligibilityStore) reassign(ctx context.Context, tenantID uuid.UUID, items []Reassignment) *AssignSummary {
	summary := &AssignSummary{
		Assigned:     []string{},
		NotFound:     []string{},
		AlreadyVoted: []string{},
		Errors:       []EntryError{},
	}
	seen := make(map[string]bool, len(items))

	for _, item := range items {
		matric := NormalizeMatric(item.MatricID)
		if matric == "" {
			summary.Errors = append(summary.Errors, EntryError{MatricID: item.MatricID, Error: "matric ID is required"})
			continue
		}
		if seen[matric] {
			continue
		}
		seen[matric] = true

		code := item.PartitionCode
		_, err := s.update(ctx, tenantID, matric, VoterUpdate{PartitionCode: &code})
		switch {
		case err == nil:
			summary.Assigned = append(summary.Assigned, matric)
		case errors.Is(err, ErrUnknownVoter):
			summary.NotFound = append(summary.NotFound, matric)
		case errors.Is(err, ErrAlreadyVoted):
			summary.AlreadyVoted = append(summary.AlreadyVoted, matric)
		default:
			summary.Errors = append(summary.Errors, EntryError{MatricID: matric, Error: err.Error()})
		}
	}
	return summary
}

// Delete removes a voter who has not voted, along with any verification token
func (s *EligibilityStore) Delete(ctx context.Context, tenantID uuid.UUID, matric string) error {
	return s.remove(ctx, tenantID, NormalizeMatric(matric), "")
}

// Unassign removes a voter from a voting code. The binding is mandatory,
// so the voter leaves the whitelist until enrolled again.
func (s *EligibilityStore) Unassign(ctx context.Context, tenantID uuid.UUID, code, matric string) error {
	code = normalizeCode(code)
	if code == "" {
		return validationError("voting code is required")
	}
	return s.remove(ctx, tenantID, NormalizeMatric(matric), code)
}

func (s *EligibilityStore) remove(ctx context.Context, tenantID uuid.UUID, matric, code string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Where("tenant_id = ? AND matric_id = ? AND has_voted = ?", tenantID, matric, false)
		if code != "" {
			q = q.Where("partition_code = ?", code)
		}
		res := q.Delete(&models.VoterRecord{})
		if res.Error != nil {
			return fmt.Errorf("failed to delete voter: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			voter, err := lookupVoter(tx, tenantID, matric)
			if err != nil {
				return err
			}
			if voter.HasVoted {
				return ErrVotedVoterImmutable
			}
			return validationError("voter %s is not assigned to voting code %s", matric, code)
		}

		if err := tx.Where("tenant_id = ? AND matric_id = ?", tenantID, matric).
			Delete(&models.VerificationToken{}).Error; err != nil {
			return fmt.Errorf("failed to delete verification token: %w", err)
		}
		return nil
	})
}

// List returns voters with the name of the code they are bound to
func (s *EligibilityStore) List(ctx context.Context, tenantID uuid.UUID, filter VoterFilter) ([]models.VoterView, error) {
	q := s.db.WithContext(ctx).
		Table("voter_records AS v").
		Select("v.matric_id, v.email, v.partition_code, p.name AS partition_name, v.has_voted, v.bound_at, v.voted_at").
		Joins("LEFT JOIN partitions p ON p.tenant_id = v.tenant_id AND p.code = v.partition_code").
		Where("v.tenant_id = ?", tenantID)
	if filter.PartitionCode != "" {
		q = q.Where("v.partition_code = ?", normalizeCode(filter.PartitionCode))
	}
	if filter.HasVoted != nil {
		q = q.Where("v.has_voted = ?", *filter.HasVoted)
	}

	views := []models.VoterView{}
	if err := q.Order("v.matric_id").Scan(&views).Error; err != nil {
		return nil, fmt.Errorf("failed to list voters: %w", err)
	}
	return views, nil
}

// Stats counts enrolled, voted and pending voters
func (s *EligibilityStore) Stats(ctx context.Context, tenantID uuid.UUID) (*models.EnrollmentStats, error) {
	var stats models.EnrollmentStats
	db := s.db.WithContext(ctx).Model(&models.VoterRecord{})
	if err := db.Where("tenant_id = ?", tenantID).Count(&stats.Total).Error; err != nil {
		return nil, fmt.Errorf("failed to count voters: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(&models.VoterRecord{}).
		Where("tenant_id = ? AND has_voted = ?", tenantID, true).
		Count(&stats.Voted).Error; err != nil {
		return nil, fmt.Errorf("failed to count voters: %w", err)
	}
	stats.Pending = stats.Total - stats.Voted
	return &stats, nil
}
