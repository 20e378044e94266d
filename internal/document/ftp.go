package document

import (
	"context"
	"io"
	"net"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// FTPOptions configures the FTP source.
type FTPOptions struct {
	Timeout time.Duration
	TempDir string // where downloads land; default os.TempDir()
}

// FTPSource lists and downloads bid files from a directory on an FTP server.
type FTPSource struct {
	raw      string
	host     string
	dir      string
	user     string
	password string
	opts     FTPOptions
}

// NewFTPSource creates an FTPSource from ftp://[user[:pass]@]host[:port]/dir.
// Without user info the login is anonymous.
func NewFTPSource(rawURL string, opts FTPOptions) (*FTPSource, error) {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	host, dir, user, password, err := parseFTPURL(rawURL)
	if err != nil {
		return nil, err
	}
	return &FTPSource{
		raw:      rawURL,
		host:     host,
		dir:      dir,
		user:     user,
		password: password,
		opts:     opts,
	}, nil
}

// parseFTPURL extracts host (with port), directory, and credentials.
func parseFTPURL(rawURL string) (host, dir, user, password string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", "", "", eris.Wrap(err, "parse ftp url")
	}
	if u.Scheme != "ftp" {
		return "", "", "", "", eris.Errorf("expected ftp scheme, got %q", u.Scheme)
	}
	if u.Host == "" {
		return "", "", "", "", eris.New("empty host in ftp url")
	}

	host = u.Host
	if _, _, splitErr := net.SplitHostPort(host); splitErr != nil {
		host = net.JoinHostPort(host, "21")
	}

	dir = u.Path
	if dir == "" {
		dir = "/"
	}

	user, password = "anonymous", "anonymous@"
	if u.User != nil {
		user = u.User.Username()
		password, _ = u.User.Password()
	}
	return host, dir, user, password, nil
}

func (s *FTPSource) connect(ctx context.Context) (*ftp.ServerConn, error) {
	zap.L().Debug("ftp: connecting", zap.String("host", s.host), zap.String("dir", s.dir))

	conn, err := ftp.Dial(s.host, ftp.DialWithTimeout(s.opts.Timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, eris.Wrap(err, "ftp dial")
	}
	if err := conn.Login(s.user, s.password); err != nil {
		conn.Quit() //nolint:errcheck
		return nil, eris.Wrap(err, "ftp login")
	}
	return conn, nil
}

// List returns supported regular files in the remote directory.
func (s *FTPSource) List(ctx context.Context) ([]string, error) {
	conn, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Quit() //nolint:errcheck

	entries, err := conn.List(s.dir)
	if err != nil {
		return nil, eris.Wrapf(err, "ftp list %s", s.dir)
	}

	var names []string
	for _, e := range entries {
		if e.Type != ftp.EntryTypeFile || !Supported(e.Name) {
			continue
		}
		names = append(names, e.Name)
	}
	sort.Strings(names)
	return names, nil
}

// Fetch downloads name into a temporary directory.
func (s *FTPSource) Fetch(ctx context.Context, name string) (string, func(), error) {
	noop := func() {}

	tmp, err := os.MkdirTemp(s.opts.TempDir, "bids-ftp-*")
	if err != nil {
		return "", noop, eris.Wrap(err, "ftp: create temp dir")
	}
	cleanup := func() { os.RemoveAll(tmp) } //nolint:errcheck

	conn, err := s.connect(ctx)
	if err != nil {
		cleanup()
		return "", noop, err
	}
	defer conn.Quit() //nolint:errcheck

	resp, err := conn.Retr(path.Join(s.dir, name))
	if err != nil {
		cleanup()
		return "", noop, eris.Wrapf(err, "ftp retrieve %s", name)
	}
	defer resp.Close() //nolint:errcheck

	local := filepath.Join(tmp, filepath.Base(name))
	f, err := os.Create(local) //nolint:gosec
	if err != nil {
		cleanup()
		return "", noop, eris.Wrap(err, "ftp: create file")
	}
	defer f.Close() //nolint:errcheck

	n, err := io.Copy(f, resp)
	if err != nil {
		cleanup()
		return "", noop, eris.Wrapf(err, "ftp: write %s", name)
	}

	zap.L().Debug("ftp: downloaded", zap.String("file", name), zap.Int64("bytes", n))
	return local, cleanup, nil
}

func (s *FTPSource) String() string {
	u, err := url.Parse(s.raw)
	if err != nil {
		return s.raw
	}
	// Never echo a password into logs or run records.
	return u.Redacted()
}
