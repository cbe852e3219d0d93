package cpic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cpicopts "github.com/pharmakb/pharmakb/pkg/options/cpic"
)

func testOptions(baseURL string) *cpicopts.Options {
	opts := cpicopts.NewOptions()
	opts.APIBaseURL = baseURL
	opts.PairsFile = ""
	opts.Timeout = 5 * time.Second
	opts.MaxRetries = 1
	return opts
}

func TestParseActivityScore(t *testing.T) {
	cases := []struct {
		raw  string
		want *float64
	}{
		{``, nil},
		{`null`, nil},
		{`"n/a"`, nil},
		{`"No Result"`, nil},
		{`"2.0"`, ptr(2.0)},
		{`1.5`, ptr(1.5)},
		{`"0"`, ptr(0.0)},
	}
	for _, tc := range cases {
		got := parseActivityScore(json.RawMessage(tc.raw))
		if tc.want == nil {
			assert.Nil(t, got, "raw=%s", tc.raw)
		} else {
			require.NotNil(t, got, "raw=%s", tc.raw)
			assert.Equal(t, *tc.want, *got)
		}
	}
}

func ptr(v float64) *float64 { return &v }

func TestDiplotypes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "genesymbol=eq.CYP2D6", r.URL.RawQuery)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"genesymbol":"CYP2D6","diplotype":"*1/*1","generesult":"Normal Metabolizer","totalactivityscore":"2.0","ehrpriority":"Normal/Routine/Low Risk","drugrecommendation":""},
			{"genesymbol":"CYP2D6","diplotype":"*4/*4","generesult":"Poor Metabolizer","totalactivityscore":"0.0","ehrpriority":"Abnormal/Priority/High Risk","drugrecommendation":"Avoid codeine."}
		]`))
	}))
	defer srv.Close()

	client, err := New(testOptions(srv.URL))
	require.NoError(t, err)

	// Lowercase gene is uppercased before hitting the API.
	records, err := client.Diplotypes(context.Background(), "cyp2d6")
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "*1/*1", records[0].Diplotype)
	assert.Equal(t, "Normal Metabolizer", records[0].Phenotype)
	require.NotNil(t, records[0].ActivityScore)
	assert.Equal(t, 2.0, *records[0].ActivityScore)

	assert.Equal(t, "Avoid codeine.", records[1].Recommendation)
	require.NotNil(t, records[1].ActivityScore)
	assert.Zero(t, *records[1].ActivityScore)
}

func TestDiplotypesRetriesTransientFailures(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	client, err := New(testOptions(srv.URL))
	require.NoError(t, err)

	records, err := client.Diplotypes(context.Background(), "TPMT")
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, 2, attempts)
}

func TestDiplotypesClientErrorNotRetried(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client, err := New(testOptions(srv.URL))
	require.NoError(t, err)

	_, err = client.Diplotypes(context.Background(), "CYP2D6")
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}
