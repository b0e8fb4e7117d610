package etl

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/nordic-credit/registry-cli/internal/db"
)

// companyColumns lists the insertable columns of the companies table, in
// COPY order.
var companyColumns = []string{
	"org_number",
	"name",
	"category",
	"api_status",
	"is_active",
	"is_deregistered",
	"registration_date",
	"street_address",
	"city",
	"postal_code",
	"country",
	"sni_code",
	"sni_description",
	"legal_form_code",
	"legal_form_description",
	"query_timestamp",
}

// companyUpdateCols are the mutable fields refreshed on re-upsert. Everything
// else, including created_at, is left untouched.
var companyUpdateCols = []string{"name", "category", "api_status", "is_active"}

// LoadResult reports the outcome of one bulk load.
type LoadResult struct {
	Processed         int
	DuplicatesRemoved int
}

// Loader writes reconciled records into the companies table.
type Loader struct {
	pool db.Pool
}

// NewLoader creates a Loader backed by the given connection pool.
func NewLoader(pool db.Pool) *Loader {
	return &Loader{pool: pool}
}

// Upsert bulk-upserts the reconciled records in a single transaction.
// Conflicts on org_number update the mutable fields and bump updated_at;
// the write is all-or-nothing.
func (l *Loader) Upsert(ctx context.Context, rec ReconcileResult) (LoadResult, error) {
	rows := make([][]any, 0, len(rec.Records))
	for _, r := range rec.Records {
		rows = append(rows, companyRow(r))
	}

	zap.L().Info("executing bulk upsert",
		zap.String("component", "etl.load"),
		zap.Int("rows", len(rows)),
	)

	n, err := db.BulkUpsert(ctx, l.pool, db.UpsertConfig{
		Table:        "companies",
		Columns:      companyColumns,
		ConflictKeys: []string{"org_number"},
		UpdateCols:   companyUpdateCols,
		ExtraSet:     []string{"updated_at = now()"},
	}, rows)
	if err != nil {
		return LoadResult{}, eris.Wrap(err, "etl: upsert companies")
	}

	zap.L().Info("bulk upsert complete",
		zap.String("component", "etl.load"),
		zap.Int64("rows_affected", n),
		zap.Int("duplicates_removed", rec.Duplicates),
	)
	return LoadResult{Processed: len(rows), DuplicatesRemoved: rec.Duplicates}, nil
}

// companyRow flattens one reconciled record into COPY values. Records
// without registry data keep their enrichment columns null.
func companyRow(r Reconciled) []any {
	if r.Record == nil {
		return []any{
			r.OrgNumber,
			nil, // name
			nullIfEmpty(r.Category),
			nil, // api_status
			nil, // is_active
			nil, // is_deregistered
			nil, // registration_date
			nil, nil, nil, nil, // address block
			nil, nil, // sni
			nil, nil, // legal form
			nil, // query_timestamp
		}
	}

	rec := r.Record

	var queried *time.Time
	if !rec.QueriedAt.IsZero() {
		t := rec.QueriedAt
		queried = &t
	}

	return []any{
		r.OrgNumber,
		nullIfEmpty(rec.Name),
		nullIfEmpty(r.Category),
		nullIfEmpty(string(rec.Status)),
		CoerceBool(rec.IsActive),
		CoerceBool(rec.IsDeregistered),
		CoerceDate(rec.RegistrationDate),
		nullIfEmpty(rec.StreetAddress),
		nullIfEmpty(rec.City),
		nullIfEmpty(rec.PostalCode),
		nullIfEmpty(rec.Country),
		nullIfEmpty(rec.SNICode),
		nullIfEmpty(rec.SNIDescription),
		nullIfEmpty(rec.LegalFormCode),
		nullIfEmpty(rec.LegalFormDescription),
		queried,
	}
}
