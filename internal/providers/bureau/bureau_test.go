package bureau

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/santiagomg2003-png/motor-credito/internal/cache"
	"github.com/santiagomg2003-png/motor-credito/internal/domain"
)

const cleanReport = `<?xml version="1.0" encoding="utf-8"?>
<report found="true">
  <score>720</score>
  <days_past_due>0</days_past_due>
  <obligations_in_arrears>0</obligations_in_arrears>
  <charge_offs>false</charge_offs>
  <recently_normalized>false</recently_normalized>
</report>`

func TestParseReport(t *testing.T) {
	t.Run("Clean", func(t *testing.T) {
		report, err := ParseReport([]byte(cleanReport))
		require.NoError(t, err)
		assert.Equal(t, &domain.BureauReport{Score: 720}, report)
	})

	t.Run("Delinquent", func(t *testing.T) {
		raw := `<report><score> 580 </score><days_past_due>95</days_past_due>
			<obligations_in_arrears>2</obligations_in_arrears><charge_offs>true</charge_offs>
			<recently_normalized>1</recently_normalized></report>`
		report, err := ParseReport([]byte(raw))
		require.NoError(t, err)
		assert.Equal(t, 580, report.Score)
		assert.Equal(t, 95, report.HistoricalDaysPastDue)
		assert.Equal(t, 2, report.ObligationsInArrears)
		assert.True(t, report.HistoricalChargeOffs)
		assert.True(t, report.RecentlyNormalized)
	})

	t.Run("Wrapped", func(t *testing.T) {
		raw := `<envelope><body><report><score>700</score><obligations_in_arrears>0</obligations_in_arrears></report></body></envelope>`
		report, err := ParseReport([]byte(raw))
		require.NoError(t, err)
		assert.Equal(t, 700, report.Score)
	})

	t.Run("NotFound", func(t *testing.T) {
		report, err := ParseReport([]byte(`<report found="false"/>`))
		require.NoError(t, err)
		assert.Nil(t, report)
	})

	malformed := map[string]string{
		"NotXML":         "score=720",
		"NoReport":       "<response/>",
		"MissingScore":   "<report><obligations_in_arrears>0</obligations_in_arrears></report>",
		"MissingArrears": "<report><score>700</score></report>",
		"BadInt":         "<report><score>high</score><obligations_in_arrears>0</obligations_in_arrears></report>",
		"BadBool":        "<report><score>700</score><obligations_in_arrears>0</obligations_in_arrears><charge_offs>maybe</charge_offs></report>",
		"Negative":       "<report><score>700</score><obligations_in_arrears>-1</obligations_in_arrears></report>",
	}
	for name, raw := range malformed {
		t.Run(name, func(t *testing.T) {
			_, err := ParseReport([]byte(raw))
			assert.True(t, errors.Is(err, ErrMalformedReport), "got %v", err)
		})
	}
}

func TestClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("document") {
		case "1020304050":
			w.Header().Set("Content-Type", "application/xml")
			_, _ = w.Write([]byte(cleanReport))
		case "404":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer srv.Close()

	client := NewClient(srv.URL+"/reports", time.Second)
	ctx := context.Background()

	report, err := client.LookupReport(ctx, "1020304050")
	require.NoError(t, err)
	assert.Equal(t, 720, report.Score)

	report, err = client.LookupReport(ctx, "404")
	require.NoError(t, err)
	assert.Nil(t, report)

	_, err = client.LookupReport(ctx, "500")
	assert.Error(t, err)
}

type countingLookup struct {
	report *domain.BureauReport
	err    error
	calls  int
}

func (c *countingLookup) LookupReport(_ context.Context, _ string) (*domain.BureauReport, error) {
	c.calls++
	return c.report, c.err
}

func TestCachedLookup(t *testing.T) {
	ctx := context.Background()

	t.Run("CachesReports", func(t *testing.T) {
		next := &countingLookup{report: &domain.BureauReport{Score: 650}}
		lookup := NewCachedLookup(next, cache.NewLRUCache(10), time.Hour)

		for i := 0; i < 3; i++ {
			report, err := lookup.LookupReport(ctx, "123")
			require.NoError(t, err)
			assert.Equal(t, 650, report.Score)
		}
		assert.Equal(t, 1, next.calls)
	})

	t.Run("DoesNotCacheAbsence", func(t *testing.T) {
		next := &countingLookup{}
		lookup := NewCachedLookup(next, cache.NewLRUCache(10), time.Hour)

		_, _ = lookup.LookupReport(ctx, "123")
		_, _ = lookup.LookupReport(ctx, "123")
		assert.Equal(t, 2, next.calls)
	})

	t.Run("PropagatesErrors", func(t *testing.T) {
		next := &countingLookup{err: errors.New("bureau down")}
		lookup := NewCachedLookup(next, cache.NewLRUCache(10), 0)

		_, err := lookup.LookupReport(ctx, "123")
		assert.Error(t, err)
	})
}
