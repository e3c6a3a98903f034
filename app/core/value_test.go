package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResult(t *testing.T) {
	r := NewResult([]byte(`{"matrix":[[0.5,0.5],[0.1,0.9]],"forecast":[1,2,3],"bad":[[1],[2,3]],"mixed":[1,"x"]}`))

	t.Run("matrix", func(t *testing.T) {
		m, err := r.Matrix("matrix")
		require.NoError(t, err)
		assert.Equal(t, [][]float64{{0.5, 0.5}, {0.1, 0.9}}, m)
	})

	t.Run("ragged matrix", func(t *testing.T) {
		_, err := r.Matrix("bad")
		assert.ErrorContains(t, err, "not rectangular")
	})

	t.Run("missing matrix", func(t *testing.T) {
		_, err := r.Matrix("transition_matrix")
		assert.Error(t, err)
	})

	t.Run("floats", func(t *testing.T) {
		f, err := r.Floats("forecast")
		require.NoError(t, err)
		assert.Equal(t, []float64{1, 2, 3}, f)
		_, err = r.Floats("mixed")
		assert.Error(t, err)
	})

	t.Run("has", func(t *testing.T) {
		assert.True(t, r.Has("forecast"))
		assert.False(t, r.Has("coefficients"))
	})
}

func TestTimeSeriesFromResult(t *testing.T) {
	ts, err := TimeSeriesFromResult(NewResult([]byte(`{"years":[2000,2005,2010],"values":[10,20,35]}`)))
	require.NoError(t, err)
	assert.Equal(t, TimeSeries{Years: []int{2000, 2005, 2010}, Values: []float64{10, 20, 35}}, ts)

	_, err = TimeSeriesFromResult(NewResult([]byte(`{"years":[2000,2005],"values":[10]}`)))
	assert.Error(t, err)

	_, err = TimeSeriesFromResult(NewResult([]byte(`{"values":[10]}`)))
	assert.Error(t, err)
}

func TestDisplayKindTitle(t *testing.T) {
	assert.Equal(t, "State Transition", DisplayStateTransition.Title())
	assert.Equal(t, "Trend", DisplayTrend.Title())
	assert.Equal(t, "Unknown", DisplayUnset.Title())
}
