package webdavbridge

import "errors"

// ErrBadRequest is returned for requests this bridge can never satisfy
// regardless of console state, such as creating or removing the share root.
var ErrBadRequest = errors.New("webdavbridge: bad request")
