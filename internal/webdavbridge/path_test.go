package webdavbridge

import "testing"

func TestNormPath(t *testing.T) {
	cases := map[string]string{
		"":            "/",
		"/":           "/",
		"foo":         "/foo",
		"/foo/":       "/foo",
		"/foo/../bar": "/bar",
		"/foo//bar":   "/foo/bar",
	}
	for in, want := range cases {
		if got := normPath(in); got != want {
			t.Errorf("normPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDavParentAndName(t *testing.T) {
	if got := davParent("/a/b/c"); got != "/a/b" {
		t.Errorf("davParent = %q, want /a/b", got)
	}
	if got := davParent("/a"); got != "/" {
		t.Errorf("davParent(/a) = %q, want /", got)
	}
	if got := davParent("/"); got != "/" {
		t.Errorf("davParent(/) = %q, want /", got)
	}
	if got := davName("/a/b/c"); got != "c" {
		t.Errorf("davName = %q, want c", got)
	}
	if got := davName("/"); got != "" {
		t.Errorf("davName(/) = %q, want empty", got)
	}
}

func TestDavJoin(t *testing.T) {
	if got := davJoin("/", "foo"); got != "/foo" {
		t.Errorf("davJoin(/, foo) = %q, want /foo", got)
	}
	if got := davJoin("/a", "b"); got != "/a/b" {
		t.Errorf("davJoin(/a, b) = %q, want /a/b", got)
	}
}

func TestToRemotePath(t *testing.T) {
	cases := map[string]string{
		"/":        `\`,
		"/foo":     `\foo`,
		"/foo/bar": `\foo\bar`,
		"foo/bar":  `\foo\bar`,
	}
	for in, want := range cases {
		if got := toRemotePath(in); got != want {
			t.Errorf("toRemotePath(%q) = %q, want %q", in, got, want)
		}
	}
}
