package sync

import (
	"bytes"
	"context"
	"io/ioutil"
	"os"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	logrusTest "github.com/sirupsen/logrus/hooks/test"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidkik/rmasync/pkg/errors"
	"github.com/sidkik/rmasync/pkg/layout"
	"github.com/sidkik/rmasync/pkg/metrics"
	"github.com/sidkik/rmasync/pkg/output"
	"github.com/sidkik/rmasync/pkg/period"
	"github.com/sidkik/rmasync/pkg/remote"
	"github.com/sidkik/rmasync/pkg/table"
)

const (
	monthlyDir = "/MI4/CMPNY/WDAI_UDAI/monthly"
	dailyDir   = "/MI4/CMPNY/WDAI_UDAI/daily"

	header = "id\tassetCode\twindowTimestamp\tdataType\tbuzz\n"
)

func filename(token, bucket string) string {
	return "MI4.CMPNY.CMPNY.WDAI_UDAI." + token + "." + bucket + ".0001.txt"
}

// newTestPlanner returns a Planner that serves files from memory. The cache
// lives in a temporary directory that's removed when the test ends.
func newTestPlanner(t *testing.T, files map[string]string) (*Planner, *bytes.Buffer) {
	remoteFs := afero.NewMemMapFs()
	for path, contents := range files {
		require.NoError(t, afero.WriteFile(remoteFs, path, []byte(contents), 0644))
	}

	cacheDir, err := ioutil.TempDir("", "rma-cache")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(cacheDir) })

	client := remote.NewFsClient(afero.NewBasePathFs(remoteFs, "/"))
	p := NewPlanner(client, cacheDir, metrics.New(prometheus.NewRegistry()))
	p.clock = clockwork.NewFakeClock()

	var stdout bytes.Buffer
	p.stdout = &stdout
	return p, &stdout
}

func request(t *testing.T, start, end string) Request {
	p, err := period.Parse(start, end)
	require.NoError(t, err)
	return Request{
		AssetClass: layout.Company,
		Frequency:  layout.DailyDaily,
		Period:     p,
		Prefix:     "/MI4",
		Template:   layout.DefaultTemplate,
	}
}

func listedPaths(files []remote.File) []string {
	var paths []string
	for _, f := range files {
		paths = append(paths, f.Path)
	}
	return paths
}

func TestFetchSkipsCoveredFiles(t *testing.T) {
	p, _ := newTestPlanner(t, map[string]string{
		monthlyDir + "/" + filename("202101", "monthly"):  header,
		dailyDir + "/" + filename("20210110", "daily"):    header,
		dailyDir + "/" + filename("20210201", "daily"):    header,
		dailyDir + "/" + filename("20201231", "daily"):    header,
		monthlyDir + "/" + filename("202103", "monthly"):  header,
		dailyDir + "/" + filename("20210131-20210201", "daily"): header,
	})
	logHook := logrusTest.NewGlobal()

	res, err := p.Download(context.Background(), request(t, "2021-01", "2021-02"), output.ListSelector)
	require.NoError(t, err)

	// The January file covers 2021-01-10, but not 2021-02-01 or the file
	// that spans the end of January.
	assert.Equal(t, []string{
		monthlyDir + "/" + filename("202101", "monthly"),
		dailyDir + "/" + filename("20210131-20210201", "daily"),
		dailyDir + "/" + filename("20210201", "daily"),
	}, listedPaths(res.Listing))
	assert.Equal(t, 3, res.Files)

	// The hourly and minutely directories don't exist.
	var warnings int
	for _, entry := range logHook.AllEntries() {
		if entry.Message == "Directory not found" {
			warnings++
		}
	}
	assert.Equal(t, 2, warnings)
}

func TestCopyDirectory(t *testing.T) {
	p, _ := newTestPlanner(t, map[string]string{
		dailyDir + "/" + filename("20210110", "daily"): header,
		dailyDir + "/" + filename("20210201", "daily"): header,
		dailyDir + "/README":                           "not a data file",
	})
	sink := output.NewListing(ioutil.Discard)
	window, err := period.Parse("2021", "")
	require.NoError(t, err)

	january, err := period.Parse("2021-01", "")
	require.NoError(t, err)
	coverage := Coverage{}.Extend(january)

	res, next, err := p.copyDirectory(context.Background(), dailyDir, window, sink, coverage)
	require.NoError(t, err)
	assert.Equal(t, []string{dailyDir + "/" + filename("20210201", "daily")}, listedPaths(res.Listing))

	envelope, ok := next.Envelope()
	require.True(t, ok)
	assert.Equal(t, january.Start, envelope.Start)
	assert.Equal(t, "2021-02-01 23:59", envelope.End.Format("2006-01-02 15:04"))

	// A missing directory contributes nothing and leaves coverage alone.
	res, next, err = p.copyDirectory(context.Background(), "/missing", window, sink, coverage)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Files)
	assert.Equal(t, coverage, next)
}

func TestDownloadTable(t *testing.T) {
	p, _ := newTestPlanner(t, map[string]string{
		monthlyDir + "/" + filename("202101", "monthly"): header +
			"1\tUSD\t2021-01-05T00:00:00.000Z\tNews\t1\n" +
			"2\tEUR\t2021-01-05T00:00:00.000Z\tNews\t2\n",
		dailyDir + "/" + filename("20210201", "daily"): header +
			"3\tUSD\t2021-02-01T00:00:00.000Z\tNews\t3\n",
	})

	req := request(t, "2021-01", "2021-02")
	req.Assets = []string{"USD"}
	res, err := p.Download(context.Background(), req, output.TableSelector)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "3"}, res.Table.Column(table.IDColumn))
}

func TestDownloadDedupe(t *testing.T) {
	rows := header + "1\tUSD\t2021-01-31T00:00:00.000Z\tNews\t1\n"
	p, _ := newTestPlanner(t, map[string]string{
		dailyDir + "/" + filename("20210131", "daily"):          rows,
		dailyDir + "/" + filename("20210130-20210131", "daily"): rows,
	})

	req := request(t, "2021-01", "")
	res, err := p.Download(context.Background(), req, output.TableSelector)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Table.Len())

	req.Dedupe = true
	res, err = p.Download(context.Background(), req, output.TableSelector)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Table.Len())
}

func TestDownloadConcat(t *testing.T) {
	p, stdout := newTestPlanner(t, map[string]string{
		monthlyDir + "/" + filename("202101", "monthly"): header + "1\tUSD\t2021-01-05T00:00:00.000Z\tNews\t1\n",
		dailyDir + "/" + filename("20210201", "daily"):   header + "2\tUSD\t2021-02-01T00:00:00.000Z\tNews\t2\n",
	})

	_, err := p.Download(context.Background(), request(t, "2021-01", "2021-02"), "")
	require.NoError(t, err)
	assert.Equal(t, header+
		"1\tUSD\t2021-01-05T00:00:00.000Z\tNews\t1\n"+
		"2\tUSD\t2021-02-01T00:00:00.000Z\tNews\t2\n", stdout.String())
}

func TestDownloadNoFiles(t *testing.T) {
	p, _ := newTestPlanner(t, map[string]string{
		monthlyDir + "/" + filename("202101", "monthly"): header,
	})
	logHook := logrusTest.NewGlobal()

	res, err := p.Download(context.Background(), request(t, "2019", ""), output.TableSelector)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Files)
	require.NotNil(t, res.Table)
	assert.Equal(t, 0, res.Table.Len())

	last := logHook.LastEntry()
	require.NotNil(t, last)
	assert.Equal(t, "No files found within time range", last.Message)
}

func TestDownloadCancelled(t *testing.T) {
	p, _ := newTestPlanner(t, map[string]string{
		monthlyDir + "/" + filename("202101", "monthly"): header,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Download(ctx, request(t, "2021", ""), output.ListSelector)
	assert.True(t, errors.Is(err, context.Canceled), "%v", err)
}

func TestDownloadHeaderMismatch(t *testing.T) {
	p, _ := newTestPlanner(t, map[string]string{
		monthlyDir + "/" + filename("202101", "monthly"): header,
		dailyDir + "/" + filename("20210201", "daily"):   "id\tsentiment\n",
	})

	_, err := p.Download(context.Background(), request(t, "2021-01", "2021-02"), "")
	var mismatch errors.HeaderMismatchError
	assert.True(t, errors.As(err, &mismatch), "%v", err)
}

func TestListDirectories(t *testing.T) {
	tests := []struct {
		name    string
		files   map[string]string
		req     Request
		expDirs []string
		expErr  bool
	}{
		{
			name: "DefaultPrefix",
			req: Request{
				AssetClass: layout.Company,
				Frequency:  layout.YearlyDaily,
				Buckets:    []layout.Bucket{layout.Daily},
				Template:   layout.DefaultTemplate,
			},
			expDirs: []string{"/mrn-mi-w/PRO/MI4/CMPNY_COR/W365_UDAI/daily"},
		},
		{
			name: "Trial",
			req: Request{
				AssetClass: layout.Currency,
				Frequency:  layout.DailyHourly,
				Buckets:    []layout.Bucket{layout.Hourly, layout.Monthly},
				Prefix:     "/MI4",
				Trial:      true,
				Template:   layout.DefaultTemplate,
			},
			expDirs: []string{
				"/MI4/TRIAL/CUR/WDAI_UHOU/monthly",
				"/MI4/TRIAL/CUR/WDAI_UHOU/hourly",
			},
		},
		{
			name: "DetectBuckets",
			files: map[string]string{
				"/monthly/README": "",
				"/daily/README":   "",
			},
			req: Request{
				AssetClass: layout.Company,
				Frequency:  layout.DailyDaily,
				Buckets:    []layout.Bucket{layout.Daily},
			},
			expDirs: []string{"daily"},
		},
		{
			name: "DetectAssetClasses",
			files: map[string]string{
				"/CMPNY/README": "",
				"/COU/README":   "",
			},
			req: Request{
				AssetClass: layout.Country,
				Frequency:  layout.DailyDaily,
				Buckets:    []layout.Bucket{layout.Monthly},
			},
			expDirs: []string{"COU/WDAI_UDAI/monthly"},
		},
		{
			name: "DetectEmptyRoot",
			req: Request{
				AssetClass: layout.Company,
				Frequency:  layout.DailyDaily,
			},
			expErr: true,
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			p, _ := newTestPlanner(t, test.files)
			dirs, err := p.ListDirectories(test.req)
			if test.expErr {
				var templateErr errors.TemplateError
				assert.True(t, errors.As(err, &templateErr), "%v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.expDirs, dirs)
		})
	}
}
