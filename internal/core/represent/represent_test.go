package represent

import (
	"testing"

	"t2/internal/core/candidate"
	"t2/internal/core/dbscan"
	perr "t2/internal/platform/errors"

	"github.com/stretchr/testify/require"
)

func snr(v ...float64) []candidate.Candidate {
	out := make([]candidate.Candidate, len(v))
	for i, s := range v {
		out[i] = candidate.Candidate{Significance: s, TimeIndex: i}
	}
	return out
}

func TestSelectMax(t *testing.T) {
	cs := snr(25, 40, 15, 10, 5)
	got, err := Select(cs, dbscan.Assignment{0, 0, 0, dbscan.Noise, 0})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, 40.0, got[0].Significance)
}

func TestSelectOrderedByLabel(t *testing.T) {
	cs := snr(1, 9, 3, 7)
	got, err := Select(cs, dbscan.Assignment{1, 0, 1, 0})
	require.NoError(t, err)
	require.Equal(t, []float64{9, 3}, []float64{got[0].Significance, got[1].Significance})
}

func TestSelectTieFirstWins(t *testing.T) {
	cs := snr(30, 30, 30)
	got, err := Select(cs, dbscan.Assignment{0, 0, 0})
	require.NoError(t, err)
	require.Equal(t, 0, got[0].TimeIndex)
}

func TestSelectAllNoise(t *testing.T) {
	got, err := Select(snr(50, 60), dbscan.Assignment{dbscan.Noise, dbscan.Noise})
	require.NoError(t, err)
	require.Empty(t, got)

	got, err = Select(nil, dbscan.Assignment{})
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestSelectMaximality(t *testing.T) {
	cs := snr(3, 8, 1, 12, 4, 7, 2)
	labels := dbscan.Assignment{0, 1, 0, 1, 2, 2, 0}
	got, err := Select(cs, labels)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for k, rep := range got {
		for i, l := range labels {
			if l == k {
				require.GreaterOrEqual(t, rep.Significance, cs[i].Significance)
			}
		}
	}
}

func TestSelectLengthMismatch(t *testing.T) {
	_, err := Select(snr(1, 2), dbscan.Assignment{0})
	require.True(t, perr.IsCode(err, perr.ErrorCodeClustering))
}
