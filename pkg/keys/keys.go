// Package keys loads the private keys used to authenticate with the SFTP
// server. Keys may be in any format understood by x/crypto/ssh (OpenSSH,
// PEM), or an unencrypted PuTTY RSA key.
package keys

import (
	"bufio"
	"bytes"
	"crypto/rsa"
	"encoding/base64"
	"fmt"
	"io"
	"io/ioutil"
	"math/big"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	homedir "github.com/mitchellh/go-homedir"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"golang.org/x/crypto/ssh"

	"github.com/sidkik/rmasync/pkg/errors"
)

// Mocked out for unit testing.
var fs = afero.NewOsFs()

// KeyDir is where keys are looked up when no path is given.
const KeyDir = "~/.ssh"

var linesPattern = regexp.MustCompile(`-Lines:\s*(\d+)`)

// DefaultPath returns the key file for the given account, i.e. ~/.ssh/<user>.
func DefaultPath(user string) (string, error) {
	dir, err := homedir.Expand(KeyDir)
	if err != nil {
		return "", errors.WithContext(err, "expand key directory")
	}
	return filepath.Join(dir, user), nil
}

// LoadFile reads and parses the private key at path.
func LoadFile(path string) (ssh.Signer, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, errors.AuthError{Cause: errors.WithContext(err, "open key")}
	}
	defer f.Close()
	return Load(f)
}

// Load parses a private key. The OpenSSH formats are tried first, then
// PuTTY's.
func Load(r io.Reader) (ssh.Signer, error) {
	keyBytes, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, errors.AuthError{Cause: errors.WithContext(err, "read key")}
	}

	signer, sshErr := ssh.ParsePrivateKey(keyBytes)
	if sshErr == nil {
		return signer, nil
	}
	log.WithError(sshErr).Debug("Key isn't in OpenSSH format. Trying PuTTY format")

	key, err := parsePuttyKey(keyBytes)
	if err != nil {
		return nil, errors.AuthError{Cause: fmt.Errorf(
			"unrecognized key format (openssh: %s; putty: %s)", sshErr, err)}
	}

	signer, err = ssh.NewSignerFromKey(key)
	if err != nil {
		return nil, errors.AuthError{Cause: errors.WithContext(err, "create signer")}
	}
	return signer, nil
}

type puttyPublicKey struct {
	Type string
	E    *big.Int
	N    *big.Int
	Rest []byte `ssh:"rest"`
}

type puttyPrivateKey struct {
	D    *big.Int
	P    *big.Int
	Q    *big.Int
	Iqmp *big.Int
	Rest []byte `ssh:"rest"`
}

// parsePuttyKey rebuilds an RSA key from the public and private sections of
// a PuTTY key file.
func parsePuttyKey(keyBytes []byte) (*rsa.PrivateKey, error) {
	headers, sections, err := puttySections(keyBytes)
	if err != nil {
		return nil, err
	}

	if enc := headers["Encryption"]; enc != "" && enc != "none" {
		return nil, fmt.Errorf("encrypted PuTTY keys aren't supported (%s)", enc)
	}

	if len(sections) != 2 {
		return nil, fmt.Errorf("expected public and private sections, found %d", len(sections))
	}

	var pub puttyPublicKey
	if err := ssh.Unmarshal(sections[0], &pub); err != nil {
		return nil, errors.WithContext(err, "parse public key")
	}
	if pub.Type != ssh.KeyAlgoRSA {
		return nil, fmt.Errorf("unsupported key type %q", pub.Type)
	}

	var pvt puttyPrivateKey
	if err := ssh.Unmarshal(sections[1], &pvt); err != nil {
		return nil, errors.WithContext(err, "parse private key")
	}

	key := &rsa.PrivateKey{
		PublicKey: rsa.PublicKey{N: pub.N, E: int(pub.E.Int64())},
		D:         pvt.D,
		Primes:    []*big.Int{pvt.P, pvt.Q},
	}
	if err := key.Validate(); err != nil {
		return nil, errors.WithContext(err, "validate key")
	}

	// Derives dP, dQ and the CRT coefficient from the primes.
	key.Precompute()
	if key.Precomputed.Qinv.Cmp(pvt.Iqmp) != 0 {
		return nil, errors.New("inconsistent CRT coefficient")
	}
	return key, nil
}

// puttySections returns the key file's headers, and the decoded contents of
// each "*-Lines: N" section in file order.
func puttySections(keyBytes []byte) (map[string]string, [][]byte, error) {
	headers := map[string]string{}
	var sections [][]byte

	scanner := bufio.NewScanner(bytes.NewReader(keyBytes))
	for scanner.Scan() {
		line := scanner.Text()
		match := linesPattern.FindStringSubmatch(line)
		if match == nil {
			if i := strings.Index(line, ":"); i > 0 {
				headers[line[:i]] = strings.TrimSpace(line[i+1:])
			}
			continue
		}

		n, err := strconv.Atoi(match[1])
		if err != nil {
			return nil, nil, errors.WithContext(err, "parse line count")
		}

		var encoded strings.Builder
		for i := 0; i < n && scanner.Scan(); i++ {
			encoded.WriteString(strings.TrimSpace(scanner.Text()))
		}

		decoded, err := base64.StdEncoding.DecodeString(encoded.String())
		if err != nil {
			return nil, nil, errors.WithContext(err, "decode section")
		}
		sections = append(sections, decoded)
	}

	if err := scanner.Err(); err != nil {
		return nil, nil, errors.WithContext(err, "read key")
	}
	return headers, sections, nil
}
