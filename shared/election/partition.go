package election

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/pavitra93/go-election-system/shared/models"
)

const (
	DefaultCodeDigits      = 5
	DefaultCodeMaxAttempts = 10
	maxPartitionNameLength = 100
)

// CodeGenerator draws a random numeric code of the given width
type CodeGenerator func(digits int) (string, error)

// RandomNumericCode draws a code uniformly from [10^(digits-1), 10^digits)
func RandomNumericCode(digits int) (string, error) {
	low := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits-1)), nil)
	span := new(big.Int).Mul(low, big.NewInt(9))
	n, err := rand.Int(rand.Reader, span)
	if err != nil {
		return "", fmt.Errorf("failed to draw voting code: %w", err)
	}
	return n.Add(n, low).String(), nil
}

// PartitionRegistry manages the voting codes of each tenant
type PartitionRegistry struct {
	db          *gorm.DB
	generate    CodeGenerator
	digits      int
	maxAttempts int
}

// PartitionOption customises a PartitionRegistry
type PartitionOption func(*PartitionRegistry)

// WithCodeGenerator replaces the random code source
func WithCodeGenerator(gen CodeGenerator) PartitionOption {
	return func(r *PartitionRegistry) { r.generate = gen }
}

// WithCodeSpace sets the code width and the number of draws before giving up
func WithCodeSpace(digits, maxAttempts int) PartitionOption {
	return func(r *PartitionRegistry) {
		r.digits = digits
		r.maxAttempts = maxAttempts
	}
}

// NewPartitionRegistry creates a PartitionRegistry backed by db
func NewPartitionRegistry(db *gorm.DB, opts ...PartitionOption) *PartitionRegistry {
	r := &PartitionRegistry{
		db:          db,
		generate:    RandomNumericCode,
		digits:      DefaultCodeDigits,
		maxAttempts: DefaultCodeMaxAttempts,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// PartitionUpdate holds the mutable fields of a partition
type PartitionUpdate struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	IsActive    *bool   `json:"is_active"`
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func findPartition(db *gorm.DB, tenantID uuid.UUID, code string) (*models.Partition, error) {
	var p models.Partition
	err := db.Where("tenant_id = ? AND code = ?", tenantID, code).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUnknownPartition
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load voting code: %w", err)
	}
	return &p, nil
}

func validatePartitionName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", validationError("name is required")
	}
	if len(name) > maxPartitionNameLength {
		return "", validationError("name cannot exceed %d characters", maxPartitionNameLength)
	}
	return name, nil
}

// GenerateCode draws a code not yet used by the tenant. The result is not
// reserved; Create relies on the unique index for that.
func (r *PartitionRegistry) GenerateCode(ctx context.Context, tenantID uuid.UUID) (string, error) {
	db := r.db.WithContext(ctx)
	for attempt := 0; attempt < r.maxAttempts; attempt++ {
		code, err := r.generate(r.digits)
		if err != nil {
			return "", err
		}
		var count int64
		if err := db.Model(&models.Partition{}).
			Where("tenant_id = ? AND code = ?", tenantID, code).
			Count(&count).Error; err != nil {
			return "", fmt.Errorf("failed to check voting code: %w", err)
		}
		if count == 0 {
			return code, nil
		}
	}
	return "", ErrCodeSpaceExhausted
}

// Create stores a new partition under a freshly drawn code
func (r *PartitionRegistry) Create(ctx context.Context, tenantID uuid.UUID, name, description string) (*models.Partition, error) {
	name, err := validatePartitionName(name)
	if err != nil {
		return nil, err
	}
	db := r.db.WithContext(ctx)

	taken, err := r.nameTaken(db, tenantID, name)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrDuplicateName
	}

	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		code, err := r.generate(r.digits)
		if err != nil {
			return nil, err
		}

		partition := models.Partition{
			TenantID:    tenantID,
			Code:        code,
			Name:        name,
			Description: strings.TrimSpace(description),
			IsActive:    true,
		}
		err = db.Create(&partition).Error
		if err == nil {
			logrus.WithFields(logrus.Fields{
				"tenant_id": tenantID,
				"code":      code,
				"attempts":  attempt,
			}).Info("Voting code created")
			return &partition, nil
		}
		if !isDuplicateKey(err) {
			return nil, fmt.Errorf("failed to create voting code: %w", err)
		}

		// Either the name was taken concurrently or the code collided
		taken, err := r.nameTaken(db, tenantID, name)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, ErrDuplicateName
		}
		logrus.WithFields(logrus.Fields{
			"tenant_id": tenantID,
			"attempt":   attempt,
		}).Debug("Voting code collision, drawing again")
	}

	logrus.WithField("tenant_id", tenantID).Warn("Voting code space exhausted")
	return nil, ErrCodeSpaceExhausted
}

func (r *PartitionRegistry) nameTaken(db *gorm.DB, tenantID uuid.UUID, name string) (bool, error) {
	var count int64
	if err := db.Model(&models.Partition{}).
		Where("tenant_id = ? AND name = ?", tenantID, name).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check voting code name: %w", err)
	}
	return count > 0, nil
}

// List returns every partition of the tenant with live voter counts
func (r *PartitionRegistry) List(ctx context.Context, tenantID uuid.UUID) ([]models.PartitionSummary, error) {
	db := r.db.WithContext(ctx)

	var partitions []models.Partition
	if err := db.Where("tenant_id = ?", tenantID).Order("created_at DESC").Find(&partitions).Error; err != nil {
		return nil, fmt.Errorf("failed to list voting codes: %w", err)
	}

	counts, err := r.voterCounts(db, tenantID, "")
	if err != nil {
		return nil, err
	}

	summaries := make([]models.PartitionSummary, 0, len(partitions))
	for _, p := range partitions {
		summaries = append(summaries, summarize(p, counts[p.Code]))
	}
	return summaries, nil
}

// Get returns one partition with live voter counts
func (r *PartitionRegistry) Get(ctx context.Context, tenantID uuid.UUID, code string) (*models.PartitionSummary, error) {
	db := r.db.WithContext(ctx)
	code = normalizeCode(code)

	p, err := findPartition(db, tenantID, code)
	if err != nil {
		return nil, err
	}
	counts, err := r.voterCounts(db, tenantID, code)
	if err != nil {
		return nil, err
	}
	summary := summarize(*p, counts[code])
	return &summary, nil
}

type codeCount struct {
	PartitionCode string
	Total         int64
	Voted         int64
}

func (r *PartitionRegistry) voterCounts(db *gorm.DB, tenantID uuid.UUID, code string) (map[string]codeCount, error) {
	q := db.Model(&models.VoterRecord{}).
		Select("partition_code, COUNT(*) AS total, SUM(CASE WHEN has_voted THEN 1 ELSE 0 END) AS voted").
		Where("tenant_id = ?", tenantID)
	if code != "" {
		q = q.Where("partition_code = ?", code)
	}

	var rows []codeCount
	if err := q.Group("partition_code").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to count voters per code: %w", err)
	}

	counts := make(map[string]codeCount, len(rows))
	for _, row := range rows {
		counts[row.PartitionCode] = row
	}
	return counts, nil
}

func summarize(p models.Partition, c codeCount) models.PartitionSummary {
	return models.PartitionSummary{
		Code:        p.Code,
		Name:        p.Name,
		Description: p.Description,
		IsActive:    p.IsActive,
		CreatedAt:   p.CreatedAt,
		VoterCount:  c.Total,
		VotedCount:  c.Voted,
		Pending:     c.Total - c.Voted,
	}
}

// Update renames, re-describes or (de)activates a partition.
// Deactivation only blocks new bindings.
func (r *PartitionRegistry) Update(ctx context.Context, tenantID uuid.UUID, code string, upd PartitionUpdate) (*models.Partition, error) {
	db := r.db.WithContext(ctx)
	code = normalizeCode(code)

	fields := map[string]interface{}{}
	if upd.Name != nil {
		name, err := validatePartitionName(*upd.Name)
		if err != nil {
			return nil, err
		}
		fields["name"] = name
	}
	if upd.Description != nil {
		fields["description"] = strings.TrimSpace(*upd.Description)
	}
	if upd.IsActive != nil {
		fields["is_active"] = *upd.IsActive
	}
	if len(fields) == 0 {
		return nil, validationError("nothing to update")
	}

	res := db.Model(&models.Partition{}).Where("tenant_id = ? AND code = ?", tenantID, code).Updates(fields)
	if res.Error != nil {
		if isDuplicateKey(res.Error) {
			return nil, ErrDuplicateName
		}
		return nil, fmt.Errorf("failed to update voting code: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrUnknownPartition
	}
	return findPartition(db, tenantID, code)
}

// Delete removes a partition only while no voter is bound to it.
// The emptiness check and the delete are one statement.
func (r *PartitionRegistry) Delete(ctx context.Context, tenantID uuid.UUID, code string) error {
	db := r.db.WithContext(ctx)
	code = normalizeCode(code)

	res := db.Where("tenant_id = ? AND code = ?", tenantID, code).
		Where("NOT EXISTS (SELECT 1 FROM voter_records v WHERE v.tenant_id = ? AND v.partition_code = ?)", tenantID, code).
		Delete(&models.Partition{})
	if res.Error != nil && !isForeignKeyViolation(res.Error) {
		return fmt.Errorf("failed to delete voting code: %w", res.Error)
	}
	// A voter bound concurrently trips the foreign key instead of NOT EXISTS
	if res.Error == nil && res.RowsAffected > 0 {
		logrus.WithFields(logrus.Fields{"tenant_id": tenantID, "code": code}).Info("Voting code deleted")
		return nil
	}

	if _, err := findPartition(db, tenantID, code); err != nil {
		return err
	}
	var bound int64
	if err := db.Model(&models.VoterRecord{}).
		Where("tenant_id = ? AND partition_code = ?", tenantID, code).
		Count(&bound).Error; err != nil {
		return fmt.Errorf("failed to count bound voters: %w", err)
	}
	return &PartitionInUseError{Code: code, BoundVoters: bound}
}
