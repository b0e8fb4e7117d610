package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartition_Completeness(t *testing.T) {
	for _, tc := range []struct {
		size, workers int
	}{
		{1, 1}, {5, 2}, {10, 3}, {12, 12}, {3, 12}, {100, 7},
	} {
		t.Run(fmt.Sprintf("%d_ids_%d_workers", tc.size, tc.workers), func(t *testing.T) {
			ids := make([]string, tc.size)
			for i := range ids {
				ids[i] = fmt.Sprintf("556000%04d", i)
			}

			chunks := partition(ids, tc.workers)

			var union []string
			for _, c := range chunks {
				union = append(union, c...)
			}
			assert.Equal(t, ids, union, "union of chunks must equal input with no omissions or duplicates")
			assert.LessOrEqual(t, len(chunks), tc.workers)
		})
	}
}

func TestPartition_LastChunkAbsorbsRemainder(t *testing.T) {
	ids := []string{"a", "b", "c", "d", "e", "f", "g"}
	chunks := partition(ids, 3)

	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 2)
	assert.Len(t, chunks[1], 2)
	assert.Len(t, chunks[2], 3)
}

func TestExtractor_Run(t *testing.T) {
	srv := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		switch req["identitetsbeteckning"] {
		case "5560005678":
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte("not found"))
		default:
			fmt.Fprintf(w, `{"organisationer":[{
				"organisationsnamn":{"organisationsnamnLista":[{"namn":"Org %s"}]},
				"verksamOrganisation":{"kod":"JA"}
			}]}`, req["identitetsbeteckning"])
		}
	})
	defer srv.Close()

	e := NewExtractor(fetcherOptions(srv), 3, 0)

	ids := []string{"5560001234", "5560005678", "5560009999", "5560007777"}
	records, err := e.Run(context.Background(), ids)
	require.NoError(t, err)
	require.Len(t, records, 4)

	byID := make(map[string]Record, len(records))
	for _, rec := range records {
		byID[rec.OrgNumber] = rec
	}
	require.Len(t, byID, 4, "every identifier appears exactly once")

	assert.Equal(t, StatusSuccess, byID["5560001234"].Status)
	assert.Equal(t, "Org 5560001234", byID["5560001234"].Name)
	assert.Equal(t, StatusError, byID["5560005678"].Status)
	assert.Equal(t, StatusSuccess, byID["5560009999"].Status)
	assert.Equal(t, StatusSuccess, byID["5560007777"].Status)
}

func TestExtractor_Run_Empty(t *testing.T) {
	e := NewExtractor(Options{}, 4, 0)
	records, err := e.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, records)
}

func TestExtractor_Run_AuthFailureAborts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte("denied"))
	}))
	defer srv.Close()

	opts := testOptions(srv.URL)
	opts.APIURL = srv.URL
	e := NewExtractor(opts, 2, 0)

	_, err := e.Run(context.Background(), []string{"5560001234", "5560005678"})
	require.Error(t, err)

	var authErr *AuthError
	assert.ErrorAs(t, err, &authErr)
}
