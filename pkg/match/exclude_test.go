package match

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyExcludes(t *testing.T) {
	files := []string{
		"report.html",
		"drafts/wip.html",
		"notebooks/analysis.ipynb",
		"notebooks/scratch/tmp.ipynb",
	}

	tests := []struct {
		name     string
		excludes []string
		want     []string
	}{
		{
			name:     "no excludes keeps everything",
			excludes: nil,
			want:     files,
		},
		{
			name:     "directory glob",
			excludes: []string{"drafts/**"},
			want:     []string{"report.html", "notebooks/analysis.ipynb", "notebooks/scratch/tmp.ipynb"},
		},
		{
			name:     "recursive glob",
			excludes: []string{"**/scratch/**"},
			want:     []string{"report.html", "drafts/wip.html", "notebooks/analysis.ipynb"},
		},
		{
			name:     "multiple patterns",
			excludes: []string{"drafts/**", "**/*.ipynb"},
			want:     []string{"report.html"},
		},
		{
			name:     "exclude everything",
			excludes: []string{"**"},
			want:     []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ApplyExcludes(files, tt.excludes)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestApplyExcludesInvalidPattern(t *testing.T) {
	_, err := ApplyExcludes([]string{"report.html"}, []string{"[unclosed"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidPattern))

	var expandErr *ExpandError
	require.True(t, errors.As(err, &expandErr))
	assert.Equal(t, "[unclosed", expandErr.Arg)
}

func TestApplyExcludesWindowsSeparators(t *testing.T) {
	got, err := ApplyExcludes(
		[]string{"drafts/wip.html", "report.html"},
		[]string{`drafts\wip.html`},
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"report.html"}, got)
}
