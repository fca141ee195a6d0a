package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	"github.com/pavitra93/go-election-system/shared/config"
	"github.com/pavitra93/go-election-system/shared/election"
	"github.com/pavitra93/go-election-system/shared/models"
)

type cliEnv struct {
	db     *gorm.DB
	tenant uuid.UUID
	code   string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	db, err := config.ConnectSQLite(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)

	env := &cliEnv{db: db}
	_, err = env.run(t, "migrate")
	require.NoError(t, err)

	tenant := models.Tenant{Name: "Electoral Committee", Email: "committee@example.edu", PasswordHash: "x", IsActive: true}
	require.NoError(t, db.Create(&tenant).Error)
	env.tenant = tenant.ID

	p, err := election.NewPartitionRegistry(db).Create(context.Background(), tenant.ID, "Main", "")
	require.NoError(t, err)
	env.code = p.Code
	return env
}

func (e *cliEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := rootCmd(func() (*gorm.DB, error) { return e.db, nil })
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "voters.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestEnrollFromCSV(t *testing.T) {
	e := newCLIEnv(t)
	path := writeCSV(t, "email,matric,code\n"+
		"ada@example.edu,SVG001,"+e.code+"\n"+
		"bob@example.edu,SVG002\n"+
		"ada@example.edu,SVG001,"+e.code+"\n"+
		"carol@example.edu,SVG003,00000\n")

	out, err := e.run(t, "enroll", "--tenant", e.tenant.String(), "--file", path, "--code", e.code)
	require.NoError(t, err)
	assert.Contains(t, out, "created: 2, duplicates: 1, errors: 1")
	assert.Contains(t, out, "SVG003")

	var count int64
	require.NoError(t, e.db.Model(&models.VoterRecord{}).Where("tenant_id = ?", e.tenant).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestReadEnrollCSVRejectsShortRows(t *testing.T) {
	_, err := readEnrollCSV(strings.NewReader("ada@example.edu\n"), "")
	assert.Error(t, err)

	_, err = readEnrollCSV(strings.NewReader("email,matric\n"), "")
	assert.Error(t, err)
}

func TestResultsFormats(t *testing.T) {
	e := newCLIEnv(t)
	_, err := election.NewCandidateRoster(e.db).AddCandidate(context.Background(), e.tenant, "Grace", "President", "")
	require.NoError(t, err)

	out, err := e.run(t, "results", "--tenant", e.tenant.String())
	require.NoError(t, err)
	var asJSON models.ElectionResults
	require.NoError(t, json.Unmarshal([]byte(out), &asJSON))
	require.Len(t, asJSON.Positions, 1)
	assert.Equal(t, "President", asJSON.Positions[0].Position)

	out, err = e.run(t, "results", "--tenant", e.tenant.String(), "--format", "yaml")
	require.NoError(t, err)
	var asYAML models.ElectionResults
	require.NoError(t, yaml.Unmarshal([]byte(out), &asYAML))
	assert.Equal(t, asJSON.Positions[0].Candidates[0].Name, asYAML.Positions[0].Candidates[0].Name)

	_, err = e.run(t, "results", "--tenant", e.tenant.String(), "--format", "xml")
	assert.Error(t, err)
	_, err = e.run(t, "results", "--tenant", "not-a-uuid")
	assert.Error(t, err)
}

func TestAuditDetectsDiscrepancy(t *testing.T) {
	e := newCLIEnv(t)
	c, err := election.NewCandidateRoster(e.db).AddCandidate(context.Background(), e.tenant, "Grace", "President", "")
	require.NoError(t, err)

	out, err := e.run(t, "audit", "--tenant", e.tenant.String())
	require.NoError(t, err)
	assert.Contains(t, out, "tally is consistent")

	require.NoError(t, e.db.Model(&models.Candidate{}).Where("id = ?", c.ID).Update("vote_count", 3).Error)
	out, err = e.run(t, "audit", "--tenant", e.tenant.String())
	assert.ErrorIs(t, err, errInconsistentTally)
	assert.Contains(t, out, "counter 3, ballots 0")
}
