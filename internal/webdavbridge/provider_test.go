package webdavbridge

import (
	"errors"
	"io/fs"
	"testing"

	"github.com/JohnDeved/n3ds-smb/internal/smb1"
)

func TestTranslateErrMapsNotFound(t *testing.T) {
	err := &smb1.OperationError{Op: "open", Status: smb1.StatusObjectNameNotFound}
	if got := translateErr(err); !errors.Is(got, fs.ErrNotExist) {
		t.Errorf("translateErr(not found) = %v, want fs.ErrNotExist", got)
	}
}

func TestTranslateErrMapsAccessDenied(t *testing.T) {
	err := &smb1.OperationError{Op: "open", Status: smb1.StatusAccessDenied}
	if got := translateErr(err); !errors.Is(got, fs.ErrPermission) {
		t.Errorf("translateErr(access denied) = %v, want fs.ErrPermission", got)
	}
}

func TestTranslateErrPassesThroughOther(t *testing.T) {
	err := errors.New("boom")
	if got := translateErr(err); got != err {
		t.Errorf("translateErr(other) = %v, want passthrough", got)
	}
}

func TestTranslateErrNil(t *testing.T) {
	if got := translateErr(nil); got != nil {
		t.Errorf("translateErr(nil) = %v, want nil", got)
	}
}

func TestFileInfoModeDirVsFile(t *testing.T) {
	dir := fileInfo{name: "d", entry: entry{isDir: true}}
	if !dir.Mode().IsDir() {
		t.Error("expected directory mode bit set")
	}
	file := fileInfo{name: "f", entry: entry{isDir: false, size: 42}}
	if file.Mode().IsDir() {
		t.Error("expected no directory mode bit on file")
	}
	if file.Size() != 42 {
		t.Errorf("Size() = %d, want 42", file.Size())
	}
}

func TestProviderRejectsRootMutation(t *testing.T) {
	p := NewProvider(nil, false, nil)
	if err := p.Mkdir(nil, "/", 0); err != ErrBadRequest { //nolint:staticcheck // nil Context is fine, Mkdir never reaches the client for this path
		t.Errorf("Mkdir(/) = %v, want ErrBadRequest", err)
	}
	if err := p.RemoveAll(nil, "/"); err != ErrBadRequest { //nolint:staticcheck
		t.Errorf("RemoveAll(/) = %v, want ErrBadRequest", err)
	}
}

func TestNilMetricsAreNoOps(t *testing.T) {
	var m *Metrics
	m.observeRequest("GET", "ok")
	m.observeReconnect()
	m.observeBytesRead(10)
	m.observeBytesWritten(10)
}
