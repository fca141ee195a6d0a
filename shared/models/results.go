package models

// CandidateResult is one row of a position's tally
type CandidateResult struct {
	CandidateID string `json:"candidate_id" yaml:"candidate_id"`
	Name        string `json:"name" yaml:"name"`
	Votes       int64  `json:"votes" yaml:"votes"`
	Percentage  string `json:"percentage" yaml:"percentage"`
	IsVoid      bool   `json:"is_void" yaml:"is_void"`
}

// PositionResult is the tally for a single contested position
type PositionResult struct {
	Position   string            `json:"position" yaml:"position"`
	TotalVotes int64             `json:"total_votes" yaml:"total_votes"`
	Candidates []CandidateResult `json:"candidates" yaml:"candidates"`
}

// ElectionResults is the full tally of a tenant's election
type ElectionResults struct {
	Positions       []PositionResult `json:"positions" yaml:"positions"`
	GrandTotalVotes int64            `json:"grand_total_votes" yaml:"grand_total_votes"`
}

// TallyDiscrepancy reports a candidate whose counter disagrees with its ballot count
type TallyDiscrepancy struct {
	CandidateID string `json:"candidate_id" yaml:"candidate_id"`
	Name        string `json:"name" yaml:"name"`
	Position    string `json:"position" yaml:"position"`
	Counter     int64  `json:"counter" yaml:"counter"`
	Ballots     int64  `json:"ballots" yaml:"ballots"`
}

// TallyAudit is the outcome of comparing counters with the ballot ledger
type TallyAudit struct {
	Consistent    bool               `json:"consistent" yaml:"consistent"`
	Candidates    int                `json:"candidates" yaml:"candidates"`
	Ballots       int64              `json:"ballots" yaml:"ballots"`
	Discrepancies []TallyDiscrepancy `json:"discrepancies" yaml:"discrepancies"`
}
