package etl

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nordic-credit/registry-cli/internal/config"
	"github.com/nordic-credit/registry-cli/internal/registry"
)

// stubExtractor returns canned records without hitting any API.
type stubExtractor struct {
	records []registry.Record
	err     error
}

func (s *stubExtractor) Run(_ context.Context, _ []string) ([]registry.Record, error) {
	return s.records, s.err
}

func pipelineConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	idFile := filepath.Join(dir, "ids.txt")
	require.NoError(t, os.WriteFile(idFile, []byte("5560001111\n5560002222\n"), 0o644))

	refFile := filepath.Join(dir, "reference.csv")
	require.NoError(t, os.WriteFile(refFile, []byte(
		"\ufeffCorporateID_Clean,Company,Category\n"+
			"556000-1111,Alfa AB,Bank\n"+
			"5560001111,Alfa Duplicate,Bank\n"+
			"5560002222,Beta AB,Insurance\n"), 0o644))

	return &config.Config{
		Input: config.InputConfig{
			IDFile:         idFile,
			ReferenceFile:  refFile,
			IDColumn:       "CorporateID_Clean",
			NameColumn:     "Company",
			CategoryColumn: "Category",
			LastRunFile:    filepath.Join(dir, "etl_last_run.json"),
		},
	}
}

func TestPipeline_Run(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cfg := pipelineConfig(t)

	mock.ExpectExec("INSERT INTO etl_runs").
		WithArgs(pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	expectCompanyUpsert(mock, 2)
	mock.ExpectExec("UPDATE etl_runs").
		WithArgs(int64(2), int64(1), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	p := &Pipeline{
		cfg: cfg,
		extract: &stubExtractor{records: []registry.Record{
			{OrgNumber: "5560001111", Status: registry.StatusSuccess, Name: "Alfa Aktiebolag"},
			{OrgNumber: "5560002222", Status: registry.StatusError, Error: "HTTP 500"},
		}},
		loader: NewLoader(mock),
		runLog: NewRunLog(mock),
	}

	outcome, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, outcome.Success)
	assert.Equal(t, 2, outcome.Processed)
	assert.NoError(t, mock.ExpectationsWereMet())

	// The handoff document is written next to the inputs.
	data, err := os.ReadFile(cfg.Input.LastRunFile)
	require.NoError(t, err)
	var doc RunOutcome
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.True(t, doc.Success)
	assert.Equal(t, 2, doc.Processed)
	assert.NotEmpty(t, doc.Timestamp)
}

func TestPipeline_Run_ExtractFailureRecorded(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cfg := pipelineConfig(t)

	mock.ExpectExec("INSERT INTO etl_runs").
		WithArgs(pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("UPDATE etl_runs").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	p := &Pipeline{
		cfg:     cfg,
		extract: &stubExtractor{err: eris.New("auth: token endpoint returned 403")},
		loader:  NewLoader(mock),
		runLog:  NewRunLog(mock),
	}

	outcome, err := p.Run(context.Background())
	require.Error(t, err)
	require.NotNil(t, outcome)
	assert.False(t, outcome.Success)
	assert.Contains(t, outcome.Error, "403")
	assert.NoError(t, mock.ExpectationsWereMet())

	data, readErr := os.ReadFile(cfg.Input.LastRunFile)
	require.NoError(t, readErr)
	var doc RunOutcome
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.False(t, doc.Success)
	assert.NotEmpty(t, doc.Error)
}

func TestPipeline_Run_EmptyIdentifierFile(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cfg := pipelineConfig(t)
	require.NoError(t, os.WriteFile(cfg.Input.IDFile, []byte("\n\n"), 0o644))

	mock.ExpectExec("INSERT INTO etl_runs").
		WithArgs(pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("UPDATE etl_runs").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	p := &Pipeline{
		cfg:     cfg,
		extract: &stubExtractor{},
		loader:  NewLoader(mock),
		runLog:  NewRunLog(mock),
	}

	_, err = p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no organisation ids")
	assert.NoError(t, mock.ExpectationsWereMet())
}
