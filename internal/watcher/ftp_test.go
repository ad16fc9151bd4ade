package watcher

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/invoice-audit/internal/config"
)

type fakeFTPConn struct {
	loginUser string
	loginPass string
	loginErr  error
	entries   []*ftp.Entry
	files     map[string]string
	retrErr   map[string]error
	deleted   []string
	quit      bool
}

func (f *fakeFTPConn) Login(user, password string) error {
	f.loginUser, f.loginPass = user, password
	return f.loginErr
}

func (f *fakeFTPConn) List(_ string) ([]*ftp.Entry, error) {
	return f.entries, nil
}

func (f *fakeFTPConn) Retr(path string) (io.ReadCloser, error) {
	if err := f.retrErr[path]; err != nil {
		return nil, err
	}
	content, ok := f.files[path]
	if !ok {
		return nil, errors.New("no such file")
	}
	return io.NopCloser(strings.NewReader(content)), nil
}

func (f *fakeFTPConn) Delete(path string) error {
	f.deleted = append(f.deleted, path)
	return nil
}

func (f *fakeFTPConn) Quit() error {
	f.quit = true
	return nil
}

func newTestSync(cfg config.FTPConfig, conn *fakeFTPConn) *InboxSync {
	s := NewInboxSync(cfg)
	s.dial = func(_ context.Context, _ string, _ time.Duration) (ftpConn, error) {
		return conn, nil
	}
	return s
}

func TestSync_DownloadsEligibleFiles(t *testing.T) {
	conn := &fakeFTPConn{
		entries: []*ftp.Entry{
			{Name: "inv-1.pdf", Type: ftp.EntryTypeFile},
			{Name: "scan.png", Type: ftp.EntryTypeFile},
			{Name: "notes.txt", Type: ftp.EntryTypeFile},
			{Name: "archive", Type: ftp.EntryTypeFolder},
		},
		files: map[string]string{
			"/inbox/inv-1.pdf": "pdf bytes",
			"/inbox/scan.png":  "png bytes",
		},
	}
	s := newTestSync(config.FTPConfig{
		Host: "ftp.example.com", Port: 21,
		User: "vendor", Password: "secret", RemoteDir: "/inbox",
	}, conn)

	dir := t.TempDir()
	fetched, err := s.Sync(context.Background(), dir)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"inv-1.pdf", "scan.png"}, fetched)

	data, err := os.ReadFile(filepath.Join(dir, "inv-1.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "pdf bytes", string(data))

	assert.Equal(t, "vendor", conn.loginUser)
	assert.Equal(t, "secret", conn.loginPass)
	assert.ElementsMatch(t, []string{"/inbox/inv-1.pdf", "/inbox/scan.png"}, conn.deleted)
	assert.True(t, conn.quit)
}

func TestSync_AnonymousWhenNoUser(t *testing.T) {
	conn := &fakeFTPConn{}
	s := newTestSync(config.FTPConfig{Host: "ftp.example.com", Port: 21, RemoteDir: "/"}, conn)

	_, err := s.Sync(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "anonymous", conn.loginUser)
	assert.Equal(t, "anonymous@", conn.loginPass)
}

func TestSync_FetchFailureLeavesFileOnServer(t *testing.T) {
	conn := &fakeFTPConn{
		entries: []*ftp.Entry{
			{Name: "bad.pdf", Type: ftp.EntryTypeFile},
			{Name: "good.pdf", Type: ftp.EntryTypeFile},
		},
		files:   map[string]string{"/inbox/good.pdf": "ok"},
		retrErr: map[string]error{"/inbox/bad.pdf": errors.New("transfer aborted")},
	}
	s := newTestSync(config.FTPConfig{Host: "h", Port: 21, RemoteDir: "/inbox"}, conn)

	fetched, err := s.Sync(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, []string{"good.pdf"}, fetched)
	assert.Equal(t, []string{"/inbox/good.pdf"}, conn.deleted)
}

func TestSync_LoginFailure(t *testing.T) {
	conn := &fakeFTPConn{loginErr: errors.New("530 login incorrect")}
	s := newTestSync(config.FTPConfig{Host: "h", Port: 21, User: "u", Password: "bad"}, conn)

	_, err := s.Sync(context.Background(), t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ftp: login")
}

func TestSync_DialFailure(t *testing.T) {
	s := NewInboxSync(config.FTPConfig{Host: "h", Port: 21})
	s.dial = func(_ context.Context, _ string, _ time.Duration) (ftpConn, error) {
		return nil, errors.New("connection refused")
	}

	_, err := s.Sync(context.Background(), t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ftp: dial")
}
