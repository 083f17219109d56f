package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"loopscan/domain/core"
	"loopscan/domain/echo"
	"loopscan/domain/run"
	"loopscan/domain/sky"
	"loopscan/domain/verdict"
	"loopscan/ports"
)

// createdAtLayout is fixed width so text ordering matches time ordering.
const createdAtLayout = "2006-01-02T15:04:05.000000000Z"

// ResultRepositoryImpl implements ResultRepository over sqlx. Queries
// are written with ? placeholders and rebound for the driver.
type ResultRepositoryImpl struct {
	db *sqlx.DB
}

// NewResultRepository creates a new result repository
func NewResultRepository(db *sqlx.DB) *ResultRepositoryImpl {
	return &ResultRepositoryImpl{db: db}
}

var _ ports.ResultRepository = (*ResultRepositoryImpl)(nil)

type runRow struct {
	RunID       string          `db:"run_id"`
	Kind        string          `db:"kind"`
	Provider    string          `db:"provider"`
	NSide       int             `db:"nside"`
	MapHash     string          `db:"map_hash"`
	ConfigHash  string          `db:"config_hash"`
	Seed        int64           `db:"seed"`
	CodeVersion string          `db:"code_version"`
	Mode        string          `db:"mode"`
	Fingerprint string          `db:"fingerprint"`
	Config      string          `db:"config"`
	Diagnostics string          `db:"diagnostics"`
	Validation  sql.NullString  `db:"validation"`
	MatchCount  int             `db:"match_count"`
	Status      string          `db:"status"`
	EmpiricalP  sql.NullFloat64 `db:"empirical_p"`
	CreatedAt   string          `db:"created_at"`
}

type matchRow struct {
	RunID      string  `db:"run_id"`
	Seq        int     `db:"seq"`
	ATheta     float64 `db:"a_theta"`
	APhi       float64 `db:"a_phi"`
	BTheta     float64 `db:"b_theta"`
	BPhi       float64 `db:"b_phi"`
	Bin        float64 `db:"bin_deg"`
	Separation float64 `db:"separation_deg"`
	Deviation  float64 `db:"deviation_deg"`
	Score      float64 `db:"score"`
	Ambiguous  bool    `db:"ambiguous"`
}

const runColumns = `run_id, kind, provider, nside, map_hash, config_hash, seed, code_version, mode,
	fingerprint, config, diagnostics, validation, match_count, status, empirical_p, created_at`

// SaveReport stores a report and its matches in one transaction,
// replacing an earlier report with the same run id.
func (r *ResultRepositoryImpl) SaveReport(ctx context.Context, report *run.Report) error {
	row, err := toRunRow(report)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM echo_matches WHERE run_id = ?`), row.RunID); err != nil {
		return fmt.Errorf("clear matches: %w", err)
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM runs WHERE run_id = ?`), row.RunID); err != nil {
		return fmt.Errorf("clear run: %w", err)
	}
	if _, err := tx.NamedExecContext(ctx, `
		INSERT INTO runs (`+runColumns+`)
		VALUES (:run_id, :kind, :provider, :nside, :map_hash, :config_hash, :seed, :code_version, :mode,
			:fingerprint, :config, :diagnostics, :validation, :match_count, :status, :empirical_p, :created_at)
	`, row); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	if report.Outcome != nil {
		for i, m := range report.Outcome.Matches {
			mr := matchRow{
				RunID:      row.RunID,
				Seq:        i,
				ATheta:     m.A.Theta,
				APhi:       m.A.Phi,
				BTheta:     m.B.Theta,
				BPhi:       m.B.Phi,
				Bin:        m.Bin,
				Separation: m.Separation,
				Deviation:  m.Deviation,
				Score:      m.Score,
				Ambiguous:  m.Ambiguous,
			}
			if _, err := tx.NamedExecContext(ctx, `
				INSERT INTO echo_matches (run_id, seq, a_theta, a_phi, b_theta, b_phi, bin_deg,
					separation_deg, deviation_deg, score, ambiguous)
				VALUES (:run_id, :seq, :a_theta, :a_phi, :b_theta, :b_phi, :bin_deg,
					:separation_deg, :deviation_deg, :score, :ambiguous)
			`, mr); err != nil {
				return fmt.Errorf("insert match %d: %w", i, err)
			}
		}
	}
	return tx.Commit()
}

// GetReport loads a report with its matches
func (r *ResultRepositoryImpl) GetReport(ctx context.Context, runID core.RunID) (*run.Report, error) {
	var row runRow
	err := r.db.GetContext(ctx, &row, r.db.Rebind(`SELECT `+runColumns+` FROM runs WHERE run_id = ?`), runID.String())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.NewNotFoundError("run", runID.String())
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}

	report, err := fromRunRow(row)
	if err != nil {
		return nil, err
	}
	matches, err := r.ListMatches(ctx, runID, ports.MatchFilters{})
	if err != nil {
		return nil, err
	}
	report.Outcome.Matches = matches
	return report, nil
}

// ListRuns returns the most recent runs first
func (r *ResultRepositoryImpl) ListRuns(ctx context.Context, limit int) ([]run.RunSummary, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY created_at DESC, run_id`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	var rows []runRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	out := make([]run.RunSummary, 0, len(rows))
	for _, row := range rows {
		manifest, err := row.manifest()
		if err != nil {
			return nil, err
		}
		s := run.RunSummary{Manifest: manifest, MatchCount: row.MatchCount, Status: verdict.Status(row.Status)}
		if row.EmpiricalP.Valid {
			p := row.EmpiricalP.Float64
			s.EmpiricalP = &p
		}
		out = append(out, s)
	}
	return out, nil
}

// ListMatches returns a run's matches in canonical order
func (r *ResultRepositoryImpl) ListMatches(ctx context.Context, runID core.RunID, filters ports.MatchFilters) ([]echo.EchoMatch, error) {
	query := `SELECT run_id, seq, a_theta, a_phi, b_theta, b_phi, bin_deg, separation_deg, deviation_deg, score, ambiguous
		FROM echo_matches WHERE run_id = ?`
	args := []interface{}{runID.String()}
	if filters.Bin != nil {
		query += ` AND bin_deg = ?`
		args = append(args, *filters.Bin)
	}
	if filters.MinScore != nil {
		query += ` AND score >= ?`
		args = append(args, *filters.MinScore)
	}
	query += ` ORDER BY seq`
	if filters.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filters.Limit)
	}

	var rows []matchRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	out := make([]echo.EchoMatch, len(rows))
	for i, row := range rows {
		out[i] = echo.EchoMatch{
			RunID:      core.RunID(row.RunID),
			A:          sky.Direction{Theta: row.ATheta, Phi: row.APhi},
			B:          sky.Direction{Theta: row.BTheta, Phi: row.BPhi},
			Bin:        row.Bin,
			Separation: row.Separation,
			Deviation:  row.Deviation,
			Score:      row.Score,
			Ambiguous:  row.Ambiguous,
		}
	}
	return out, nil
}

func toRunRow(report *run.Report) (runRow, error) {
	m := report.Manifest
	row := runRow{
		RunID:       m.RunID.String(),
		Kind:        string(m.Kind),
		Provider:    m.Provider,
		NSide:       m.NSide,
		MapHash:     m.Fingerprint.MapHash.String(),
		ConfigHash:  m.Fingerprint.ConfigHash.String(),
		Seed:        m.Fingerprint.Seed,
		CodeVersion: m.Fingerprint.CodeVersion,
		Mode:        m.Fingerprint.Mode,
		Fingerprint: m.Fingerprint.Fingerprint.String(),
		Config:      string(report.Config),
		Diagnostics: "{}",
		CreatedAt:   m.CreatedAt.Time().UTC().Format(createdAtLayout),
	}
	if len(report.Config) == 0 {
		row.Config = "{}"
	}
	if report.Outcome != nil {
		diag, err := json.Marshal(report.Outcome.Diagnostics)
		if err != nil {
			return runRow{}, fmt.Errorf("encode diagnostics: %w", err)
		}
		row.Diagnostics = string(diag)
		row.MatchCount = len(report.Outcome.Matches)
	}
	if v := report.Validation; v != nil {
		data, err := json.Marshal(v)
		if err != nil {
			return runRow{}, fmt.Errorf("encode validation: %w", err)
		}
		row.Validation = sql.NullString{String: string(data), Valid: true}
		row.Status = string(v.Status)
		row.EmpiricalP = sql.NullFloat64{Float64: v.EmpiricalP, Valid: true}
	}
	return row, nil
}

func (row runRow) manifest() (run.RunManifest, error) {
	created, err := time.Parse(createdAtLayout, row.CreatedAt)
	if err != nil {
		return run.RunManifest{}, fmt.Errorf("parse created_at of %s: %w", row.RunID, err)
	}
	return run.RunManifest{
		RunID:    core.RunID(row.RunID),
		Kind:     run.Kind(row.Kind),
		Provider: row.Provider,
		NSide:    row.NSide,
		Fingerprint: run.RunFingerprint{
			MapHash:     core.Hash(row.MapHash),
			ConfigHash:  core.Hash(row.ConfigHash),
			Seed:        row.Seed,
			CodeVersion: row.CodeVersion,
			Mode:        row.Mode,
			Fingerprint: core.Hash(row.Fingerprint),
		},
		CreatedAt: core.Timestamp(created),
	}, nil
}

func fromRunRow(row runRow) (*run.Report, error) {
	manifest, err := row.manifest()
	if err != nil {
		return nil, err
	}
	report := &run.Report{
		Manifest: manifest,
		Config:   json.RawMessage(row.Config),
		Outcome:  &echo.ScanOutcome{RunID: manifest.RunID},
	}
	if err := json.Unmarshal([]byte(row.Diagnostics), &report.Outcome.Diagnostics); err != nil {
		return nil, fmt.Errorf("decode diagnostics of %s: %w", row.RunID, err)
	}
	if row.Validation.Valid {
		var v verdict.ValidationResult
		if err := json.Unmarshal([]byte(row.Validation.String), &v); err != nil {
			return nil, fmt.Errorf("decode validation of %s: %w", row.RunID, err)
		}
		report.Validation = &v
	}
	return report, nil
}
