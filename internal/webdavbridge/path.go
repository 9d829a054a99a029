package webdavbridge

import (
	"path"
	"strings"
)

// normPath rewrites a WebDAV request path to the canonical slash-rooted,
// cleaned form used as the key into every lookup in this package.
func normPath(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	p = path.Clean(p)
	if p == "." {
		return "/"
	}
	return p
}

func davParent(p string) string {
	p = normPath(p)
	if p == "/" {
		return "/"
	}
	parent := path.Dir(strings.TrimRight(p, "/"))
	if parent == "" {
		return "/"
	}
	return parent
}

func davName(p string) string {
	p = normPath(p)
	if p == "/" {
		return ""
	}
	return path.Base(strings.TrimRight(p, "/"))
}

func davJoin(parent, name string) string {
	parent = normPath(parent)
	if parent == "/" {
		return "/" + name
	}
	return strings.TrimRight(parent, "/") + "/" + name
}

// toRemotePath rewrites a normalized DAV path to the backslash-rooted form
// the SMB1 wire protocol expects.
func toRemotePath(davPath string) string {
	davPath = normPath(davPath)
	if davPath == "/" {
		return `\`
	}
	return `\` + strings.ReplaceAll(strings.TrimPrefix(davPath, "/"), "/", `\`)
}
