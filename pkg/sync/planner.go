package sync

import (
	"context"
	"io"
	"os"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"

	"github.com/sidkik/rmasync/pkg/cache"
	"github.com/sidkik/rmasync/pkg/errors"
	"github.com/sidkik/rmasync/pkg/layout"
	"github.com/sidkik/rmasync/pkg/metrics"
	"github.com/sidkik/rmasync/pkg/output"
	"github.com/sidkik/rmasync/pkg/period"
	"github.com/sidkik/rmasync/pkg/remote"
)

// Request describes the files to download.
type Request struct {
	AssetClass layout.AssetClass
	Frequency  layout.Frequency
	Period     period.Period

	// Assets and Sources restrict the rows collected into a table. They
	// don't affect which files are fetched.
	Assets  []string
	Sources []string

	// Buckets restricts the directories that are searched. All buckets are
	// searched if it's empty.
	Buckets []layout.Bucket

	// Prefix defaults to layout.DefaultPrefix.
	Prefix string
	Trial  bool

	// Template is detected from the remote root directory if it's empty.
	Template string

	// Dedupe removes duplicate rows from the collected table.
	Dedupe bool
}

// Planner fetches the remote files matching requests. It owns a single
// remote session, and isn't safe for concurrent use.
type Planner struct {
	client    remote.Client
	transport *cache.Transport
	metrics   *metrics.Recorder
	clock     clockwork.Clock
	stdout    io.Writer
}

// NewPlanner creates a Planner that reads through a cache rooted at
// cacheRoot.
func NewPlanner(client remote.Client, cacheRoot string, recorder *metrics.Recorder) *Planner {
	return &Planner{
		client:    client,
		transport: cache.New(client, cacheRoot, recorder),
		metrics:   recorder,
		clock:     clockwork.NewRealClock(),
		stdout:    os.Stdout,
	}
}

// Download fetches the files matching req into the sink addressed by
// selector. See output.ParseSelector for the selector syntax.
func (p *Planner) Download(ctx context.Context, req Request, selector string) (res output.Result, err error) {
	sink, err := output.ParseSelector(selector, p.transport, p.stdout, output.Filter{
		Assets:  req.Assets,
		Sources: req.Sources,
		Window:  req.Period,
	})
	if err != nil {
		return output.Result{}, errors.WithContext(err, "parse output")
	}
	defer func() {
		if closeErr := sink.Close(); err == nil && closeErr != nil {
			err = errors.WithContext(closeErr, "close output")
		}
	}()

	res, err = p.Fetch(ctx, req, sink)
	if err != nil {
		return output.Result{}, err
	}

	if req.Dedupe && res.Table != nil {
		removed := res.Table.Dedupe()
		log.WithField("rows", removed).Debug("Removed duplicate rows")
	}
	return res, nil
}

// Fetch hands every file matching req to sink, and returns the merged
// result. If no files match, a warning is logged and sink's empty result is
// returned.
func (p *Planner) Fetch(ctx context.Context, req Request, sink output.Sink) (output.Result, error) {
	start := p.clock.Now()
	dirs, err := p.ListDirectories(req)
	if err != nil {
		return output.Result{}, err
	}

	result := sink.Empty()
	var coverage Coverage
	for _, dir := range dirs {
		var partial output.Result
		partial, coverage, err = p.copyDirectory(ctx, dir, req.Period, sink, coverage)
		if err != nil {
			return output.Result{}, err
		}
		result = result.Merge(partial)
	}

	if result.Files == 0 {
		log.WithField("period", req.Period).Warn("No files found within time range")
	} else {
		log.WithField("files", result.Files).Debug("Processed files")
	}
	p.metrics.DownloadDuration(p.clock.Now().Sub(start).Seconds())
	return result, nil
}

// copyDirectory hands the files in dir that overlap window, and that aren't
// covered yet, to sink. It returns the coverage extended by the files it
// processed.
func (p *Planner) copyDirectory(ctx context.Context, dir string, window period.Period,
	sink output.Sink, coverage Coverage) (output.Result, Coverage, error) {

	entries, err := p.client.ReadDir(dir)
	if err != nil {
		if remote.IsNotExist(err) {
			log.WithError(err).WithField("dir", dir).Warn("Directory not found")
			p.metrics.MissingDirectory()
			return output.Result{}, coverage, nil
		}
		return output.Result{}, coverage, errors.WithContext(err, "list "+dir)
	}

	log.WithField("dir", dir).Debug("Searching directory")
	var matching []remote.File
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		f, err := remote.Describe(dir, entry)
		if err != nil {
			log.WithError(err).WithField("dir", dir).Warn("Skipping file with unrecognized name")
			continue
		}

		if !period.Overlaps(window, f.Period) || coverage.Covers(f.Period) {
			continue
		}
		matching = append(matching, f)
	}
	log.WithFields(log.Fields{
		"dir":   dir,
		"files": len(matching),
	}).Info("Found files")

	var result output.Result
	var processed []period.Period
	for _, f := range matching {
		if err := ctx.Err(); err != nil {
			return output.Result{}, coverage, err
		}

		partial, err := sink.CopyFile(f)
		if err != nil {
			return output.Result{}, coverage, errors.WithContext(err, "copy "+f.Path)
		}
		p.metrics.FileProcessed(output.Name(sink))
		result = result.Merge(partial)
		processed = append(processed, f.Period)
	}
	return result, coverage.Extend(processed...), nil
}

// ListDirectories returns the directories that are searched for req,
// broadest bucket first.
func (p *Planner) ListDirectories(req Request) ([]string, error) {
	template := req.Template
	if template == "" {
		var err error
		template, err = p.DetectTemplate()
		if err != nil {
			return nil, err
		}
	}

	return Directories(req, template), nil
}

// Directories returns the directories that are searched for req under
// template, broadest bucket first. req.Template is ignored.
func Directories(req Request, template string) []string {
	prefix := req.Prefix
	if prefix == "" {
		prefix = layout.DefaultPrefix
	}
	prefix = layout.TrialPrefix(prefix, req.Trial)
	return layout.CandidateDirectories(req.AssetClass, req.Frequency, req.Buckets, template, prefix)
}

// DetectTemplate guesses the directory template from the remote root
// directory.
func (p *Planner) DetectTemplate() (string, error) {
	entries, err := p.client.ReadDir(".")
	if err != nil {
		return "", errors.WithContext(err, "list root directory")
	}

	var names []string
	for _, entry := range entries {
		names = append(names, entry.Name())
	}

	template, err := layout.DetectTemplate(names)
	if err != nil {
		return "", err
	}
	log.WithField("template", template).Debug("Detected directory template")
	return template, nil
}

// Close ends the remote session.
func (p *Planner) Close() error {
	return p.client.Close()
}
