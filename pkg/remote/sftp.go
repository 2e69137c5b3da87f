package remote

import (
	"io"
	"net"
	"os"
	"strings"
	"time"

	"github.com/pkg/sftp"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/sidkik/rmasync/pkg/errors"
)

const (
	// DefaultHost is the production SFTP server.
	DefaultHost = "sftp.news.refinitiv.com"

	defaultPort = "22"
	dialTimeout = 30 * time.Second
)

type sftpClient struct {
	sshConn    *ssh.Client
	sftpClient *sftp.Client
}

// Dial opens an SFTP session with host, authenticating as user with signer.
// If knownHostsPath is empty, the server's host key isn't verified.
func Dial(user string, signer ssh.Signer, host, knownHostsPath string) (Client, error) {
	hostKeyCallback := ssh.InsecureIgnoreHostKey()
	if knownHostsPath != "" {
		var err error
		hostKeyCallback, err = knownhosts.New(knownHostsPath)
		if err != nil {
			return nil, errors.WithContext(err, "load known hosts")
		}
	} else {
		log.WithField("host", host).Debug("Not verifying the server's host key")
	}

	addr := host
	if _, _, err := net.SplitHostPort(host); err != nil {
		addr = net.JoinHostPort(host, defaultPort)
	}

	sshConn, err := ssh.Dial("tcp", addr, &ssh.ClientConfig{
		User:            user,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: hostKeyCallback,
		Timeout:         dialTimeout,
	})
	if err != nil {
		if strings.Contains(err.Error(), "unable to authenticate") {
			return nil, errors.AuthError{Cause: err}
		}
		return nil, errors.WithContext(err, "dial")
	}

	client, err := sftp.NewClient(sshConn)
	if err != nil {
		sshConn.Close()
		return nil, errors.WithContext(err, "start sftp")
	}

	log.WithField("host", addr).Debug("Connected")
	return &sftpClient{sshConn: sshConn, sftpClient: client}, nil
}

func (c *sftpClient) ReadDir(dir string) ([]os.FileInfo, error) {
	return c.sftpClient.ReadDir(dir)
}

func (c *sftpClient) Open(path string) (io.ReadCloser, error) {
	return c.sftpClient.Open(path)
}

func (c *sftpClient) Close() error {
	sftpErr := c.sftpClient.Close()
	if err := c.sshConn.Close(); err != nil {
		return err
	}
	return sftpErr
}
