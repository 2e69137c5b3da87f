package sync

import (
	"io"

	homedir "github.com/mitchellh/go-homedir"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"golang.org/x/crypto/ssh"

	"github.com/sidkik/rmasync/pkg/errors"
	"github.com/sidkik/rmasync/pkg/keys"
	"github.com/sidkik/rmasync/pkg/metrics"
	"github.com/sidkik/rmasync/pkg/remote"
)

// DefaultCacheDir is where remote files are cached when no directory is
// configured.
const DefaultCacheDir = "~/.rma/cache"

// ConnectOptions configures Connect.
type ConnectOptions struct {
	User string

	// Key is the private key text. If it's nil, the key is read from
	// KeyPath, which defaults to ~/.ssh/<User>.
	Key     io.Reader
	KeyPath string

	// Host defaults to remote.DefaultHost.
	Host string

	// KnownHosts is a known_hosts file used to verify the server. The
	// server isn't verified if it's empty.
	KnownHosts string

	// Mirror is a local copy of the server's tree. If it's set, files are
	// read from it instead of connecting to Host.
	Mirror string

	// CacheDir defaults to DefaultCacheDir.
	CacheDir string

	// Metrics defaults to metrics.Default.
	Metrics *metrics.Recorder
}

// Connect authenticates with the server and returns a Planner for it.
func Connect(opts ConnectOptions) (*Planner, error) {
	cacheDir := opts.CacheDir
	if cacheDir == "" {
		cacheDir = DefaultCacheDir
	}
	cacheDir, err := homedir.Expand(cacheDir)
	if err != nil {
		return nil, errors.WithContext(err, "expand cache directory")
	}

	recorder := opts.Metrics
	if recorder == nil {
		recorder = metrics.Default
	}

	client, err := dial(opts)
	if err != nil {
		return nil, err
	}
	return NewPlanner(client, cacheDir, recorder), nil
}

func dial(opts ConnectOptions) (remote.Client, error) {
	if opts.Mirror != "" {
		mirror, err := homedir.Expand(opts.Mirror)
		if err != nil {
			return nil, errors.WithContext(err, "expand mirror directory")
		}
		log.WithField("dir", mirror).Debug("Reading from local mirror")
		return remote.NewFsClient(afero.NewBasePathFs(afero.NewOsFs(), mirror)), nil
	}

	signer, err := loadKey(opts)
	if err != nil {
		return nil, err
	}

	host := opts.Host
	if host == "" {
		host = remote.DefaultHost
	}

	knownHosts := opts.KnownHosts
	if knownHosts != "" {
		knownHosts, err = homedir.Expand(knownHosts)
		if err != nil {
			return nil, errors.WithContext(err, "expand known hosts path")
		}
	}
	return remote.Dial(opts.User, signer, host, knownHosts)
}

func loadKey(opts ConnectOptions) (ssh.Signer, error) {
	if opts.Key != nil {
		return keys.Load(opts.Key)
	}

	path := opts.KeyPath
	if path == "" {
		var err error
		path, err = keys.DefaultPath(opts.User)
		if err != nil {
			return nil, err
		}
	} else {
		var err error
		path, err = homedir.Expand(path)
		if err != nil {
			return nil, errors.WithContext(err, "expand key path")
		}
	}

	log.WithField("path", path).Debug("Loading private key")
	return keys.LoadFile(path)
}
