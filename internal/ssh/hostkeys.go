// internal/ssh/hostkeys.go

package ssh

import (
	"fmt"
	"net"
	"os"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// HostKeyMismatch is returned when the bastion presents a key that is not
// listed in the configured known_hosts file.
type HostKeyMismatch struct {
	Host        string
	Fingerprint string
	Err         error
}

func (e *HostKeyMismatch) Error() string {
	return fmt.Sprintf("host key verification failed for %s (%s): %v", e.Host, e.Fingerprint, e.Err)
}

func (e *HostKeyMismatch) Unwrap() error {
	return e.Err
}

// newHostKeyCallback weryfikuje klucz bastionu w known_hosts, jeśli plik jest skonfigurowany.
// Klucze bastionów są efemeryczne i nie są dostarczane razem z bazą, więc bez pliku
// akceptujemy każdy klucz.
func newHostKeyCallback(knownHostsFile string) (ssh.HostKeyCallback, error) {
	if knownHostsFile == "" {
		return ssh.InsecureIgnoreHostKey(), nil
	}

	if _, err := os.Stat(knownHostsFile); err != nil {
		return nil, fmt.Errorf("known hosts file %s: %w", knownHostsFile, err)
	}

	callback, err := knownhosts.New(knownHostsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to create hostKeyCallback: %w", err)
	}

	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		if err := callback(hostname, remote, key); err != nil {
			return &HostKeyMismatch{
				Host:        hostname,
				Fingerprint: ssh.FingerprintSHA256(key),
				Err:         err,
			}
		}
		return nil
	}, nil
}
