package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadList(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{
			name: "comments and blanks skipped",
			content: "# CA controller archives\n" +
				"https://dca.sco.ca.gov/04_From_500_To_Beyond.zip\n" +
				"   # disabled\n\n" +
				"  file:///data/02_From_100_To_500.zip  \n",
			want: []string{
				"https://dca.sco.ca.gov/04_From_500_To_Beyond.zip",
				"file:///data/02_From_100_To_500.zip",
			},
		},
		{
			name:    "crlf line endings",
			content: "s3://bucket/a.zip\r\ns3://bucket/b.zip\r\n",
			want:    []string{"s3://bucket/a.zip", "s3://bucket/b.zip"},
		},
		{name: "empty", content: "", want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "sources.txt")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			got, err := ReadList(path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadList_Missing(t *testing.T) {
	_, err := ReadList(filepath.Join(t.TempDir(), "nope.txt"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestReadList_RejectsBadLines(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "unsupported scheme",
			content: "https://sco.ca.gov/a.zip\n\nftp://sco.ca.gov/b.zip\n",
			want:    `:3: bad source entry: unsupported scheme "ftp"`,
		},
		{
			name:    "two sources on one line",
			content: "# list\ns3://bucket/a.zip s3://bucket/b.zip\n",
			want:    ":2: bad source entry: one source per line",
		},
		{
			name:    "repeated source",
			content: "s3://bucket/a.zip\ns3://bucket/b.zip\n  s3://bucket/a.zip\n",
			want:    ":3: bad source entry: repeats line 1",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "sources.txt")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			got, err := ReadList(path)
			require.ErrorIs(t, err, ErrBadListEntry)
			assert.Contains(t, err.Error(), path+tt.want)
			assert.Nil(t, got)
		})
	}
}
