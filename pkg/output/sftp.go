package output

import (
	"context"
	"fmt"
	"net"
	"path"
	"sync"

	"github.com/pkg/sftp"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"
)

// PublishError represents a failed remote write.
type PublishError struct {
	// Op is the operation that failed (e.g., "connect", "mkdir", "write")
	Op string

	// Path is the document path, if any
	Path string

	// Err is the underlying error
	Err error

	// IsTemporary indicates if the error is temporary and can be retried
	IsTemporary bool

	// IsAuthError indicates if the error is related to authentication
	IsAuthError bool
}

func (e *PublishError) Error() string {
	if e.Path != "" {
		return e.Op + " " + e.Path + ": " + e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *PublishError) Unwrap() error {
	return e.Err
}

// Temporary reports whether retrying may succeed.
func (e *PublishError) Temporary() bool {
	return e.IsTemporary
}

// SFTPWriter publishes documents to a remote host. The connection is
// opened on the first write and reused until Close.
type SFTPWriter struct {
	config *SFTPConfig
	logger zerolog.Logger

	mu     sync.Mutex
	ssh    *ssh.Client
	client *sftp.Client
}

// NewSFTPWriter creates a writer for config. No connection is made yet.
func NewSFTPWriter(config *SFTPConfig, logger zerolog.Logger) (*SFTPWriter, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &SFTPWriter{
		config: config,
		logger: logger.With().Str("component", "sftp").Str("host", config.Address()).Logger(),
	}, nil
}

// newSFTPWriterWithClient wraps an established SFTP session.
func newSFTPWriterWithClient(config *SFTPConfig, client *sftp.Client, logger zerolog.Logger) *SFTPWriter {
	return &SFTPWriter{config: config, client: client, logger: logger}
}

func (w *SFTPWriter) connect(ctx context.Context) (*sftp.Client, error) {
	if w.client != nil {
		return w.client, nil
	}

	clientConfig, err := w.config.BuildSSHClientConfig()
	if err != nil {
		return nil, &PublishError{Op: "connect", Err: err, IsAuthError: true}
	}

	address := w.config.Address()
	w.logger.Debug().Msg("establishing SSH connection")

	dialer := net.Dialer{Timeout: w.config.ConnectionTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, &PublishError{Op: "connect", Err: err, IsTemporary: true}
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, address, clientConfig)
	if err != nil {
		conn.Close()
		return nil, &PublishError{Op: "connect", Err: err, IsAuthError: true}
	}
	w.ssh = ssh.NewClient(sshConn, chans, reqs)

	w.client, err = sftp.NewClient(w.ssh)
	if err != nil {
		w.ssh.Close()
		w.ssh = nil
		return nil, &PublishError{
			Op:          "sftp-init",
			Err:         fmt.Errorf("failed to create SFTP client: %w", err),
			IsTemporary: true,
		}
	}

	w.logger.Info().Msg("SFTP session established")
	return w.client, nil
}

// WriteFile uploads data to RemoteRoot/p, creating parent directories.
func (w *SFTPWriter) WriteFile(ctx context.Context, p string, data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	client, err := w.connect(ctx)
	if err != nil {
		return err
	}

	remote := path.Join(w.config.RemoteRoot, p)
	if err := client.MkdirAll(path.Dir(remote)); err != nil {
		return &PublishError{Op: "mkdir", Path: remote, Err: err}
	}

	f, err := client.Create(remote)
	if err != nil {
		return &PublishError{Op: "create", Path: remote, Err: err, IsTemporary: true}
	}
	n, err := f.Write(data)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return &PublishError{Op: "write", Path: remote, Err: err, IsTemporary: true}
	}

	if w.config.FileMode != 0 {
		if err := client.Chmod(remote, w.config.FileMode); err != nil {
			w.logger.Warn().Err(err).Str("path", remote).Msg("failed to set file permissions")
		}
	}

	w.logger.Debug().Str("path", remote).Int("bytes", n).Msg("document published")
	return nil
}

// Close ends the SFTP session and the SSH connection.
func (w *SFTPWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var err error
	if w.client != nil {
		err = w.client.Close()
		w.client = nil
	}
	if w.ssh != nil {
		if cerr := w.ssh.Close(); err == nil {
			err = cerr
		}
		w.ssh = nil
	}
	return err
}
