// Package webdavbridge exposes an smb1.Client as a golang.org/x/net/webdav
// FileSystem, translating POSIX-style DAV paths to the console's backslash
// paths and recovering from dropped SMB1 sessions transparently.
package webdavbridge

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"strings"
	"sync"

	"golang.org/x/net/webdav"

	"github.com/JohnDeved/n3ds-smb/internal/logger"
	"github.com/JohnDeved/n3ds-smb/internal/smb1"
)

// entry is the subset of smb1.DirEntry this package keeps around once a
// directory listing has been translated to DAV semantics.
type entry struct {
	name  string
	size  int64
	isDir bool
}

// Provider implements webdav.FileSystem over a single SMB1 session. All
// console access is serialized behind mu, mirroring the one-session-at-a-time
// nature of the NT LM 0.12 dialect: the console has no concept of concurrent
// requests on one TID/UID pair.
type Provider struct {
	client   *smb1.Client
	readOnly bool
	metrics  *Metrics

	mu sync.Mutex
}

// NewProvider wraps client. m may be nil to disable metrics collection.
func NewProvider(client *smb1.Client, readOnly bool, m *Metrics) *Provider {
	return &Provider{client: client, readOnly: readOnly, metrics: m}
}

// ensureConnected reconnects the session if it was never established or has
// gone stale since the last request. Callers must hold mu.
func (p *Provider) ensureConnected(ctx context.Context) error {
	if !p.client.Connected() {
		return p.reconnectLocked(ctx)
	}
	if p.client.Echo() {
		return nil
	}
	return p.reconnectLocked(ctx)
}

func (p *Provider) reconnectLocked(ctx context.Context) error {
	logger.WarnCtx(ctx, "webdavbridge: session stale, reconnecting")
	_ = p.client.Close()
	if err := p.client.Connect(ctx); err != nil {
		return err
	}
	p.metrics.observeReconnect()
	return nil
}

func (p *Provider) listEntries(ctx context.Context, davDir string) ([]entry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ensureConnected(ctx); err != nil {
		return nil, err
	}
	raw, err := p.client.Listdir(toRemotePath(davDir))
	if err != nil {
		return nil, err
	}
	out := make([]entry, 0, len(raw))
	for _, e := range raw {
		if e.Name == "." || e.Name == ".." {
			continue
		}
		out = append(out, entry{name: e.Name, size: int64(e.Size), isDir: e.IsDir})
	}
	return out, nil
}

func (p *Provider) stat(ctx context.Context, davPath string) (entry, error) {
	davPath = normPath(davPath)
	if davPath == "/" {
		return entry{isDir: true}, nil
	}
	entries, err := p.listEntries(ctx, davParent(davPath))
	if err != nil {
		return entry{}, err
	}
	name := davName(davPath)
	for _, e := range entries {
		if strings.EqualFold(e.name, name) {
			return e, nil
		}
	}
	return entry{}, fs.ErrNotExist
}

func (p *Provider) Mkdir(ctx context.Context, name string, _ os.FileMode) error {
	if p.readOnly {
		return fs.ErrPermission
	}
	if normPath(name) == "/" {
		return ErrBadRequest
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ensureConnected(ctx); err != nil {
		return err
	}
	return translateErr(p.client.Mkdir(toRemotePath(normPath(name))))
}

func (p *Provider) RemoveAll(ctx context.Context, name string) error {
	if p.readOnly {
		return fs.ErrPermission
	}
	davPath := normPath(name)
	if davPath == "/" {
		return ErrBadRequest
	}
	ent, err := p.stat(ctx, davPath)
	if err != nil {
		return translateErr(err)
	}
	if ent.isDir {
		return p.removeDir(ctx, davPath)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ensureConnected(ctx); err != nil {
		return err
	}
	return translateErr(p.client.Delete(toRemotePath(davPath)))
}

func (p *Provider) removeDir(ctx context.Context, davPath string) error {
	children, err := p.listEntries(ctx, davPath)
	if err != nil {
		return translateErr(err)
	}
	for _, c := range children {
		if err := p.RemoveAll(ctx, davJoin(davPath, c.name)); err != nil {
			return err
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ensureConnected(ctx); err != nil {
		return err
	}
	return translateErr(p.client.Rmdir(toRemotePath(davPath)))
}

// Rename attempts a single server-side rename first. A directory whose
// server-side rename fails falls back to create-at-destination + per-child
// recursive move + delete-source, mirroring move_recursive in the Python
// original: a cross-directory rename that the console's filesystem driver
// can't satisfy atomically still has to succeed by relocating the tree
// piece by piece.
func (p *Provider) Rename(ctx context.Context, oldName, newName string) error {
	if p.readOnly {
		return fs.ErrPermission
	}
	oldPath := normPath(oldName)
	newPath := normPath(newName)

	direct := p.renameDirect(ctx, oldPath, newPath)
	if direct == nil {
		return nil
	}

	ent, statErr := p.stat(ctx, oldPath)
	if statErr != nil || !ent.isDir {
		return translateErr(direct)
	}
	return p.moveRecursive(ctx, oldPath, newPath)
}

func (p *Provider) renameDirect(ctx context.Context, oldPath, newPath string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ensureConnected(ctx); err != nil {
		return err
	}
	return p.client.Rename(toRemotePath(oldPath), toRemotePath(newPath))
}

func (p *Provider) moveRecursive(ctx context.Context, oldPath, newPath string) error {
	if newPath == "/" {
		return ErrBadRequest
	}
	if err := p.Mkdir(ctx, newPath, 0); err != nil {
		return translateErr(err)
	}

	children, err := p.listEntries(ctx, oldPath)
	if err != nil {
		return translateErr(err)
	}
	for _, c := range children {
		childOld := davJoin(oldPath, c.name)
		childNew := davJoin(newPath, c.name)
		if c.isDir {
			if err := p.Rename(ctx, childOld, childNew); err != nil {
				return err
			}
			continue
		}
		if err := p.renameDirect(ctx, childOld, childNew); err != nil {
			return translateErr(err)
		}
	}

	return p.RemoveAll(ctx, oldPath)
}

func (p *Provider) Stat(ctx context.Context, name string) (os.FileInfo, error) {
	davPath := normPath(name)
	ent, err := p.stat(ctx, davPath)
	if err != nil {
		return nil, translateErr(err)
	}
	fname := davName(davPath)
	if davPath == "/" {
		fname = "/"
	}
	return fileInfo{name: fname, entry: ent}, nil
}

func (p *Provider) OpenFile(ctx context.Context, name string, flag int, _ os.FileMode) (webdav.File, error) {
	davPath := normPath(name)

	if flag&os.O_CREATE != 0 {
		if p.readOnly {
			return nil, fs.ErrPermission
		}
		if davPath == "/" {
			return nil, ErrBadRequest
		}
		ent, statErr := p.stat(ctx, davPath)
		exists := statErr == nil
		if exists && flag&os.O_EXCL != 0 {
			return nil, fs.ErrExist
		}
		if !exists {
			if err := p.createEmpty(ctx, davPath); err != nil {
				return nil, translateErr(err)
			}
			ent = entry{name: davName(davPath)}
		}
		if flag&os.O_TRUNC != 0 {
			ent.size = 0
		}
		return &fileHandle{p: p, davPath: davPath, entry: ent, writable: true}, nil
	}

	ent, err := p.stat(ctx, davPath)
	if err != nil {
		return nil, translateErr(err)
	}
	if ent.isDir {
		return &fileHandle{p: p, davPath: davPath, entry: ent, isDir: true}, nil
	}
	writable := flag&(os.O_WRONLY|os.O_RDWR) != 0
	return &fileHandle{p: p, davPath: davPath, entry: ent, writable: writable}, nil
}

func (p *Provider) createEmpty(ctx context.Context, davPath string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ensureConnected(ctx); err != nil {
		return err
	}
	fid, err := p.client.Open(toRemotePath(davPath), smb1.DefaultWriteOpen())
	if err != nil {
		return err
	}
	p.client.CloseFile(fid)
	return nil
}

// diskInfo reports the console's free/total space by wrapping
// Client.DiskInfo. No FileSystem method calls it, and no WebDAV quota
// properties are reported.
func (p *Provider) diskInfo(ctx context.Context) (smb1.DiskInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ensureConnected(ctx); err != nil {
		return smb1.DiskInfo{}, err
	}
	return p.client.DiskInfo()
}

var _ webdav.FileSystem = (*Provider)(nil)

func translateErr(err error) error {
	if err == nil {
		return nil
	}
	var opErr *smb1.OperationError
	if errors.As(err, &opErr) {
		switch {
		case opErr.IsNotFound():
			return fs.ErrNotExist
		case opErr.IsAccessDenied():
			return fs.ErrPermission
		}
	}
	return err
}
