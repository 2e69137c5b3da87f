package remote

import (
	"io/ioutil"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidkik/rmasync/pkg/period"
)

func TestParseFilePeriod(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		exp      string
		expError bool
	}{
		{
			name:     "Monthly",
			filename: "MI4.CMPNY.CMPNY.WDAI_UDAI.202101.monthly.0001.txt.zip",
			exp:      "2021-01-01 00:00 to 2021-01-31 23:59",
		},
		{
			name:     "Range",
			filename: "MI4.CMPNY.CMPNY.WDAI_UDAI.20210110-20210112.daily.0001.txt",
			exp:      "2021-01-10 00:00 to 2021-01-12 23:59",
		},
		{
			name:     "Minute",
			filename: "MI4.CRYPTO.CRYPTO.W01M_U01M.202101101230.minutely.txt",
			exp:      "2021-01-10 12:30 to 2021-01-10 12:30",
		},
		{name: "TooFewFields", filename: "README.txt", expError: true},
		{name: "BadPeriod", filename: "MI4.CMPNY.CMPNY.WDAI_UDAI.latest.txt", expError: true},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			p, err := ParseFilePeriod(test.filename)
			if test.expError {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, test.exp, p.String())
		})
	}
}

func TestFsClient(t *testing.T) {
	fs := afero.NewMemMapFs()
	name := "MI4.CMPNY.CMPNY.WDAI_UDAI.20210110.daily.txt"
	modTime := time.Date(2021, 1, 11, 0, 0, 0, 0, time.UTC)
	require.NoError(t, afero.WriteFile(fs, "/data/daily/"+name, []byte("contents"), 0644))
	require.NoError(t, fs.Chtimes("/data/daily/"+name, modTime, modTime))

	client := NewFsClient(fs)
	defer client.Close()

	_, err := client.ReadDir("/data/monthly")
	assert.True(t, IsNotExist(err))

	infos, err := client.ReadDir("/data/daily")
	require.NoError(t, err)
	require.Len(t, infos, 1)

	f, err := Describe("/data/daily", infos[0])
	require.NoError(t, err)
	assert.Equal(t, "/data/daily/"+name, f.Path)
	assert.Equal(t, name, f.Name())
	assert.Equal(t, int64(len("contents")), f.Size)
	assert.True(t, modTime.Equal(f.ModTime))
	assert.Equal(t, period.FormatToken(f.Period), "20210110")

	rc, err := client.Open(f.Path)
	require.NoError(t, err)
	defer rc.Close()
	contents, err := ioutil.ReadAll(rc)
	assert.NoError(t, err)
	assert.Equal(t, "contents", string(contents))
}
