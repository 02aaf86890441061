package mockdata

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/weather-history-etl/internal/domain"
)

func TestGenerate_CleanTableNormalizes(t *testing.T) {
	rows := Generate(Options{Months: 12, Seed: 1})
	require.Len(t, rows, 365)
	assert.Equal(t, "2022年01月01日", rows[0].DateText)

	norm := domain.Normalize(rows, domain.NormalizeOptions{})
	assert.Len(t, norm.Observations, 365)
	assert.Empty(t, norm.Rejected)
	assert.Zero(t, norm.Inverted)

	agg := domain.Aggregate(norm.Observations)
	require.Len(t, agg.Monthly, 12)
	assert.Less(t, agg.Monthly[0].MeanHighTemp, agg.Monthly[6].MeanHighTemp, "January is colder than July")
}

func TestGenerate_MalformedRowsAreDropped(t *testing.T) {
	rows := Generate(Options{Months: 2, Seed: 1, MalformedEvery: 10})

	norm := domain.Normalize(rows, domain.NormalizeOptions{})
	dropped := norm.DroppedByReason()

	assert.Equal(t, len(rows)/10, len(norm.Rejected))
	assert.Equal(t, 2, dropped[domain.DropTemperature])
	assert.Equal(t, 1, dropped[domain.DropDate])
	assert.Equal(t, 1, dropped[domain.DropSky])
	assert.Equal(t, 1, dropped[domain.DropDuplicateDate])
}

func TestGenerate_Deterministic(t *testing.T) {
	start := time.Date(2023, time.June, 1, 0, 0, 0, 0, time.UTC)
	a := Generate(Options{Start: start, Months: 3, Seed: 42})
	b := Generate(Options{Start: start, Months: 3, Seed: 42})
	assert.Equal(t, a, b)
}
