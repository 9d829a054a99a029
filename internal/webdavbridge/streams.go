package webdavbridge

import (
	"context"
	"io"
	"io/fs"
	"time"

	"golang.org/x/net/webdav"

	"github.com/JohnDeved/n3ds-smb/internal/smb1"
)

var _ webdav.File = (*fileHandle)(nil)

const streamChunk = 32768

// fileHandle is the webdav.File returned by Provider.OpenFile. It opens its
// SMB1 file-id lazily on the first Read or Write, and never seeks the remote
// fid itself: every SMB1 read/write already carries an explicit offset, so
// Seek only needs to move the local cursor.
type fileHandle struct {
	p        *Provider
	davPath  string
	entry    entry
	isDir    bool
	writable bool

	fid    uint16
	hasFid bool
	pos    int64

	children []entry
	dirPos   int
}

func (f *fileHandle) Close() error {
	if !f.hasFid {
		return nil
	}
	f.p.mu.Lock()
	defer f.p.mu.Unlock()
	f.p.client.CloseFile(f.fid)
	f.hasFid = false
	return nil
}

func (f *fileHandle) Read(b []byte) (int, error) {
	if f.isDir {
		return 0, fs.ErrInvalid
	}
	if len(b) == 0 {
		return 0, nil
	}

	f.p.mu.Lock()
	defer f.p.mu.Unlock()
	if err := f.p.ensureConnected(context.Background()); err != nil {
		return 0, err
	}
	if !f.hasFid {
		fid, err := f.p.client.Open(toRemotePath(f.davPath), smb1.DefaultReadOpen())
		if err != nil {
			return 0, translateErr(err)
		}
		f.fid, f.hasFid = fid, true
	}

	want := len(b)
	if want > streamChunk {
		want = streamChunk
	}
	chunk, err := f.p.client.Read(f.fid, uint64(f.pos), uint32(want))
	if err != nil {
		return 0, translateErr(err)
	}
	if len(chunk) == 0 {
		return 0, io.EOF
	}
	n := copy(b, chunk)
	f.pos += int64(n)
	f.p.metrics.observeBytesRead(n)
	return n, nil
}

func (f *fileHandle) Write(b []byte) (int, error) {
	if f.isDir || !f.writable {
		return 0, fs.ErrInvalid
	}
	if len(b) == 0 {
		return 0, nil
	}

	f.p.mu.Lock()
	defer f.p.mu.Unlock()
	if err := f.p.ensureConnected(context.Background()); err != nil {
		return 0, err
	}
	if !f.hasFid {
		fid, err := f.p.client.Open(toRemotePath(f.davPath), smb1.DefaultWriteOpen())
		if err != nil {
			return 0, translateErr(err)
		}
		f.fid, f.hasFid = fid, true
	}

	maxChunk := f.p.client.MaxWriteChunk()
	total := 0
	for total < len(b) {
		end := total + maxChunk
		if end > len(b) {
			end = len(b)
		}
		chunk := b[total:end]
		if _, err := f.p.client.Write(f.fid, chunk, uint64(f.pos)); err != nil {
			return total, translateErr(err)
		}
		f.pos += int64(len(chunk))
		total += len(chunk)
	}
	f.p.metrics.observeBytesWritten(total)
	if f.pos > f.entry.size {
		f.entry.size = f.pos
	}
	return total, nil
}

func (f *fileHandle) Seek(offset int64, whence int) (int64, error) {
	var newPos int64
	switch whence {
	case io.SeekStart:
		newPos = offset
	case io.SeekCurrent:
		newPos = f.pos + offset
	case io.SeekEnd:
		newPos = f.entry.size + offset
	default:
		return 0, fs.ErrInvalid
	}
	if newPos < 0 {
		return 0, fs.ErrInvalid
	}
	f.pos = newPos
	return f.pos, nil
}

func (f *fileHandle) Readdir(count int) ([]fs.FileInfo, error) {
	if !f.isDir {
		return nil, fs.ErrInvalid
	}
	if f.children == nil && f.dirPos == 0 {
		children, err := f.p.listEntries(context.Background(), f.davPath)
		if err != nil {
			return nil, translateErr(err)
		}
		f.children = children
	}

	var out []fs.FileInfo
	for f.dirPos < len(f.children) {
		c := f.children[f.dirPos]
		f.dirPos++
		out = append(out, fileInfo{name: c.name, entry: c})
		if count > 0 && len(out) >= count {
			return out, nil
		}
	}
	if count > 0 && len(out) == 0 {
		return nil, io.EOF
	}
	return out, nil
}

func (f *fileHandle) Stat() (fs.FileInfo, error) {
	name := davName(f.davPath)
	if f.davPath == "/" {
		name = "/"
	}
	return fileInfo{name: name, entry: f.entry}, nil
}

// fileInfo is the fs.FileInfo this package hands back for both Provider.Stat
// and directory listings. smb1.DirEntry carries no timestamps (the listing
// parser keeps only name, size and attributes), so ModTime is zero.
type fileInfo struct {
	name  string
	entry entry
}

func (fi fileInfo) Name() string       { return fi.name }
func (fi fileInfo) Size() int64        { return fi.entry.size }
func (fi fileInfo) ModTime() time.Time { return time.Time{} }
func (fi fileInfo) IsDir() bool        { return fi.entry.isDir }
func (fi fileInfo) Sys() any           { return nil }

func (fi fileInfo) Mode() fs.FileMode {
	if fi.entry.isDir {
		return fs.ModeDir | 0o555
	}
	return 0o444
}
