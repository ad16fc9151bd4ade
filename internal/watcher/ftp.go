package watcher

import (
	"context"
	"io"
	"net"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/invoice-audit/internal/config"
)

// InboxSync pulls vendor-dropped invoice documents from an FTP server into
// the local incoming directory.
type InboxSync struct {
	cfg     config.FTPConfig
	timeout time.Duration

	// dial is swappable in tests.
	dial func(ctx context.Context, addr string, timeout time.Duration) (ftpConn, error)
}

// ftpConn is the subset of the FTP server connection the sync uses.
type ftpConn interface {
	Login(user, password string) error
	List(path string) ([]*ftp.Entry, error)
	Retr(path string) (io.ReadCloser, error)
	Delete(path string) error
	Quit() error
}

// serverConn adapts *ftp.ServerConn to ftpConn.
type serverConn struct {
	*ftp.ServerConn
}

func (c serverConn) Retr(path string) (io.ReadCloser, error) {
	return c.ServerConn.Retr(path)
}

// NewInboxSync creates an InboxSync from FTP settings.
func NewInboxSync(cfg config.FTPConfig) *InboxSync {
	return &InboxSync{
		cfg:     cfg,
		timeout: 30 * time.Second,
		dial: func(ctx context.Context, addr string, timeout time.Duration) (ftpConn, error) {
			conn, err := ftp.Dial(addr, ftp.DialWithTimeout(timeout), ftp.DialWithContext(ctx))
			if err != nil {
				return nil, err
			}
			return serverConn{conn}, nil
		},
	}
}

// Sync downloads every eligible file from the remote inbox into incomingDir
// and deletes it from the server. Returns the downloaded file names.
func (s *InboxSync) Sync(ctx context.Context, incomingDir string) ([]string, error) {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))

	zap.L().Debug("ftp: connecting", zap.String("addr", addr), zap.String("dir", s.cfg.RemoteDir))

	conn, err := s.dial(ctx, addr, s.timeout)
	if err != nil {
		return nil, eris.Wrap(err, "ftp: dial")
	}
	defer conn.Quit() //nolint:errcheck

	user, pass := s.cfg.User, s.cfg.Password
	if user == "" {
		user, pass = "anonymous", "anonymous@"
	}
	if err := conn.Login(user, pass); err != nil {
		return nil, eris.Wrap(err, "ftp: login")
	}

	entries, err := conn.List(s.cfg.RemoteDir)
	if err != nil {
		return nil, eris.Wrap(err, "ftp: list inbox")
	}

	if err := os.MkdirAll(incomingDir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "ftp: create %s", incomingDir)
	}

	var fetched []string
	for _, entry := range entries {
		if entry.Type != ftp.EntryTypeFile || !Eligible(entry.Name) {
			continue
		}
		remote := path.Join(s.cfg.RemoteDir, entry.Name)
		local := filepath.Join(incomingDir, entry.Name)

		if err := s.fetchOne(conn, remote, local); err != nil {
			zap.L().Warn("ftp: fetch failed, leaving on server",
				zap.String("file", entry.Name), zap.Error(err))
			continue
		}

		// Remove from the server only after the local write succeeded.
		if err := conn.Delete(remote); err != nil {
			zap.L().Warn("ftp: delete after fetch failed", zap.String("file", entry.Name), zap.Error(err))
		}
		fetched = append(fetched, entry.Name)
	}

	if len(fetched) > 0 {
		zap.L().Info("ftp: inbox synced", zap.Int("files", len(fetched)))
	}
	return fetched, nil
}

func (s *InboxSync) fetchOne(conn ftpConn, remote, local string) error {
	resp, err := conn.Retr(remote)
	if err != nil {
		return eris.Wrapf(err, "ftp: retrieve %s", remote)
	}
	defer resp.Close() //nolint:errcheck

	file, err := os.Create(local)
	if err != nil {
		return eris.Wrapf(err, "ftp: create %s", local)
	}
	defer file.Close() //nolint:errcheck

	if _, err := io.Copy(file, resp); err != nil {
		os.Remove(local) //nolint:errcheck
		return eris.Wrapf(err, "ftp: write %s", local)
	}
	return nil
}
