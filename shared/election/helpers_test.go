package election

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/pavitra93/go-election-system/shared/config"
	"github.com/pavitra93/go-election-system/shared/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := config.ConnectSQLite(dsn)
	require.NoError(t, err)
	require.NoError(t, config.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type sentMail struct {
	To      string
	Subject string
	Body    string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMail
	fail bool
}

func (n *fakeNotifier) Send(_ context.Context, to, subject, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail {
		return errors.New("smtp unavailable")
	}
	n.sent = append(n.sent, sentMail{To: to, Subject: subject, Body: body})
	return nil
}

var rawTokenInBody = regexp.MustCompile(`[a-f0-9]{64}`)

// lastToken extracts the raw token from the most recent email
func (n *fakeNotifier) lastToken(t *testing.T) string {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	require.NotEmpty(t, n.sent, "no email was sent")
	token := rawTokenInBody.FindString(n.sent[len(n.sent)-1].Body)
	require.NotEmpty(t, token, "email carries no token")
	return token
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.BallotEvent
	err    error
}

func (p *recordingPublisher) PublishBallot(_ context.Context, e models.BallotEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

// sequentialCodes returns the given codes in order, repeating the last one
func sequentialCodes(codes ...string) (CodeGenerator, *int) {
	calls := 0
	var mu sync.Mutex
	return func(int) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		i := calls
		calls++
		if i >= len(codes) {
			i = len(codes) - 1
		}
		return codes[i], nil
	}, &calls
}

type fixture struct {
	db        *gorm.DB
	clock     *fakeClock
	notifier  *fakeNotifier
	publisher *recordingPublisher
	core      *Core
	tenant    uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithDB(t, newTestDB(t))
}

func newFixtureWithDB(t *testing.T, db *gorm.DB) *fixture {
	t.Helper()
	f := &fixture{
		db:        db,
		clock:     newFakeClock(),
		notifier:  &fakeNotifier{},
		publisher: &recordingPublisher{},
	}
	f.core = NewCore(f.db, Options{
		CapabilitySecret: "test-capability-secret",
		VerifyLinkBase:   "https://vote.example.edu/api/verify-email",
		VotingLinkBase:   "https://vote.example.edu/vote",
		Notifier:         f.notifier,
		Publisher:        f.publisher,
		Clock:            f.clock.Now,
	})
	f.tenant = f.newTenant(t, "electoral-"+uuid.NewString()[:8]+"@example.edu")
	return f
}

func (f *fixture) newTenant(t *testing.T, email string) uuid.UUID {
	t.Helper()
	tenant := models.Tenant{Name: "Electoral Committee", Email: email, PasswordHash: "x", IsActive: true}
	require.NoError(t, f.db.Create(&tenant).Error)
	return tenant.ID
}

func (f *fixture) partition(t *testing.T, tenant uuid.UUID, name string) *models.Partition {
	t.Helper()
	p, err := f.core.Partitions.Create(context.Background(), tenant, name, "")
	require.NoError(t, err)
	return p
}

func (f *fixture) enroll(t *testing.T, tenant uuid.UUID, email, matric, code string) *models.VoterRecord {
	t.Helper()
	v, err := f.core.Eligibility.EnrollOne(context.Background(), tenant, EnrollEntry{Email: email, MatricID: matric, PartitionCode: code})
	require.NoError(t, err)
	return v
}

func (f *fixture) candidate(t *testing.T, tenant uuid.UUID, name, position string) *models.Candidate {
	t.Helper()
	c, err := f.core.Roster.AddCandidate(context.Background(), tenant, name, position, "")
	require.NoError(t, err)
	return c
}

func (f *fixture) void(t *testing.T, tenant uuid.UUID, position string) *models.Candidate {
	t.Helper()
	var c models.Candidate
	require.NoError(t, f.db.Where("tenant_id = ? AND position = ? AND is_void = ?", tenant, position, true).First(&c).Error)
	return &c
}

func (f *fixture) capability(t *testing.T, tenant uuid.UUID, matric string) string {
	t.Helper()
	token, _, err := f.core.Capabilities.Issue(&VerifiedVoter{TenantID: tenant, MatricID: matric, Method: MethodEmailToken})
	require.NoError(t, err)
	return token
}

func (f *fixture) voteCount(t *testing.T, id uuid.UUID) int64 {
	t.Helper()
	var c models.Candidate
	require.NoError(t, f.db.First(&c, "id = ?", id).Error)
	return c.VoteCount
}

func (f *fixture) positionTotal(t *testing.T, tenant uuid.UUID, position string) int64 {
	t.Helper()
	res, err := f.core.Results.PositionResults(context.Background(), tenant, position)
	require.NoError(t, err)
	return res.TotalVotes
}
