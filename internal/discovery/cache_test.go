package discovery

import (
	"os"
	"path/filepath"
	"testing"
)

func withFakeHome(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	return dir
}

func TestLoadCacheMissing(t *testing.T) {
	withFakeHome(t)
	ip, name := loadCache()
	if ip != "" || name != "" {
		t.Fatalf("expected empty cache, got (%q, %q)", ip, name)
	}
}

func TestSaveAndLoadCache(t *testing.T) {
	withFakeHome(t)
	saveCache("192.168.1.42", "3DS-AB12")
	ip, name := loadCache()
	if ip != "192.168.1.42" || name != "3DS-AB12" {
		t.Fatalf("got (%q, %q), want (192.168.1.42, 3DS-AB12)", ip, name)
	}
}

func TestLoadCacheRejectsInvalidIP(t *testing.T) {
	home := withFakeHome(t)
	path := filepath.Join(home, cacheFileName)
	if err := os.WriteFile(path, []byte("not-an-ip 3DS-AB12"), 0o644); err != nil {
		t.Fatal(err)
	}
	ip, name := loadCache()
	if ip != "" || name != "" {
		t.Fatalf("expected empty result for malformed cache, got (%q, %q)", ip, name)
	}
}
