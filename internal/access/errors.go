package access

import "errors"

// ErrNotFound is returned by Store implementations when a user row does not
// exist. Read paths treat it as "no access", not as a failure.
var ErrNotFound = errors.New("user not found")

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
