package main

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	"github.com/pavitra93/go-election-system/shared/config"
	"github.com/pavitra93/go-election-system/shared/election"
)

type dbOpener func() (*gorm.DB, error)

// errInconsistentTally makes audit exit non-zero
var errInconsistentTally = errors.New("tally audit found discrepancies")

func rootCmd(open dbOpener) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "electionctl",
		Short:         "Operate the election database",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(migrateCmd(open), enrollCmd(open), resultsCmd(open), auditCmd(open))
	return cmd
}

func migrateCmd(open dbOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := open()
			if err != nil {
				return err
			}
			if err := config.Migrate(db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date")
			return nil
		},
	}
}

func tenantFlag(cmd *cobra.Command) (uuid.UUID, error) {
	raw, _ := cmd.Flags().GetString("tenant")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("--tenant must be a tenant UUID: %w", err)
	}
	return id, nil
}

func enrollCmd(open dbOpener) *cobra.Command {
	var (
		file        string
		defaultCode string
	)
	cmd := &cobra.Command{
		Use:   "enroll",
		Short: "Whitelist voters from a CSV file (email, matric, code)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			tenantID, err := tenantFlag(cmd)
			if err != nil {
				return err
			}
			f, err := os.Open(file)
			if err != nil {
				return fmt.Errorf("open %s: %w", file, err)
			}
			defer f.Close()

			entries, err := readEnrollCSV(f, defaultCode)
			if err != nil {
				return err
			}

			db, err := open()
			if err != nil {
				return err
			}
			store := election.NewEligibilityStore(db, election.SystemClock)
			summary := store.Enroll(cmd.Context(), tenantID, entries)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "created: %d, duplicates: %d, errors: %d\n",
				len(summary.Created), len(summary.Duplicates), len(summary.Errors))
			for _, e := range summary.Errors {
				fmt.Fprintf(out, "  %s: %s\n", e.MatricID, e.Error)
			}
			return nil
		},
	}
	cmd.Flags().String("tenant", "", "Tenant ID")
	cmd.Flags().StringVarP(&file, "file", "f", "", "CSV file with columns email, matric, code")
	cmd.Flags().StringVar(&defaultCode, "code", "", "Voting code for rows without one")
	_ = cmd.MarkFlagRequired("tenant")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// readEnrollCSV parses rows of email, matric[, code]. A header row is
// skipped when its first cell is "email".
func readEnrollCSV(r io.Reader, defaultCode string) ([]election.EnrollEntry, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var entries []election.EnrollEntry
	for line := 1; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(record[0]), "email") {
			continue
		}
		if len(record) < 2 {
			return nil, fmt.Errorf("line %d: expected email and matric columns", line)
		}

		entry := election.EnrollEntry{Email: record[0], MatricID: record[1], PartitionCode: defaultCode}
		if len(record) > 2 && strings.TrimSpace(record[2]) != "" {
			entry.PartitionCode = record[2]
		}
		entries = append(entries, entry)
	}
	if len(entries) == 0 {
		return nil, errors.New("no voters found in file")
	}
	return entries, nil
}

func resultsCmd(open dbOpener) *cobra.Command {
	var (
		format   string
		position string
	)
	cmd := &cobra.Command{
		Use:   "results",
		Short: "Print the results of an election",
		RunE: func(cmd *cobra.Command, _ []string) error {
			tenantID, err := tenantFlag(cmd)
			if err != nil {
				return err
			}
			if format != "json" && format != "yaml" {
				return fmt.Errorf("unsupported format %q, use json or yaml", format)
			}

			db, err := open()
			if err != nil {
				return err
			}
			agg := election.NewResultsAggregator(db)

			var out interface{}
			if position != "" {
				out, err = agg.PositionResults(cmd.Context(), tenantID, position)
			} else {
				out, err = agg.Results(cmd.Context(), tenantID)
			}
			if err != nil {
				return err
			}
			return encode(cmd.OutOrStdout(), format, out)
		},
	}
	cmd.Flags().String("tenant", "", "Tenant ID")
	cmd.Flags().StringVar(&format, "format", "json", "Output format: json or yaml")
	cmd.Flags().StringVar(&position, "position", "", "Only this position")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}

func auditCmd(open dbOpener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Compare vote counters with recorded ballots",
		RunE: func(cmd *cobra.Command, _ []string) error {
			tenantID, err := tenantFlag(cmd)
			if err != nil {
				return err
			}
			db, err := open()
			if err != nil {
				return err
			}
			audit, err := election.NewResultsAggregator(db).Audit(cmd.Context(), tenantID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "candidates: %d, ballots: %d\n", audit.Candidates, audit.Ballots)
			if audit.Consistent {
				fmt.Fprintln(out, "tally is consistent")
				return nil
			}
			for _, d := range audit.Discrepancies {
				fmt.Fprintf(out, "  %s / %s (%s): counter %d, ballots %d\n", d.Position, d.Name, d.CandidateID, d.Counter, d.Ballots)
			}
			return errInconsistentTally
		},
	}
	cmd.Flags().String("tenant", "", "Tenant ID")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}

func encode(w io.Writer, format string, v interface{}) error {
	if format == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(v)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
