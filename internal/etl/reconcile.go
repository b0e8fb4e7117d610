package etl

import (
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/nordic-credit/registry-cli/internal/registry"
)

// Reconciled joins one reference row with its fetched registry record.
// Record is nil when the registry fetch produced nothing for this
// identifier: the reference dataset defines the canonical entity universe,
// so the row is kept with null enrichment fields.
type Reconciled struct {
	OrgNumber     string // normalized
	ReferenceName string
	Category      string
	Record        *registry.Record
}

// ReconcileResult aggregates the join output.
type ReconcileResult struct {
	Records    []Reconciled
	Duplicates int // reference rows dropped for sharing a normalized identifier
	Matched    int // reference rows with registry data attached
}

// NormalizeID strips hyphens and whitespace from an identifier so that
// formatting differences ("1234-5678" vs "12345678") do not break the join.
func NormalizeID(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '-' || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// Reconcile left-joins the reference dataset with the fetched records on
// normalized identifier and collapses duplicates to the first occurrence.
// Fetched records without a reference row are dropped.
func Reconcile(reference []ReferenceRow, fetched []registry.Record) ReconcileResult {
	byID := make(map[string]*registry.Record, len(fetched))
	for i := range fetched {
		id := NormalizeID(fetched[i].OrgNumber)
		if id == "" {
			continue
		}
		if _, ok := byID[id]; !ok {
			byID[id] = &fetched[i]
		}
	}

	var res ReconcileResult
	seen := make(map[string]bool, len(reference))
	for _, ref := range reference {
		id := NormalizeID(ref.OrgNumber)
		if id == "" {
			continue
		}
		if seen[id] {
			res.Duplicates++
			continue
		}
		seen[id] = true

		rec := byID[id]
		if rec != nil {
			res.Matched++
		}
		res.Records = append(res.Records, Reconciled{
			OrgNumber:     id,
			ReferenceName: ref.Name,
			Category:      ref.Category,
			Record:        rec,
		})
	}

	zap.L().Info("reconciliation complete",
		zap.String("component", "etl.reconcile"),
		zap.Int("reference_rows", len(reference)),
		zap.Int("fetched", len(fetched)),
		zap.Int("matched", res.Matched),
		zap.Int("duplicates_removed", res.Duplicates),
	)
	return res
}
