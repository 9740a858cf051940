package server

import "errors"

// errConflict marks rejections of an action that was already performed
// (duplicate vote, repeated transition, second trivia generation). Handlers
// map it to 409 so retried requests fail loudly instead of double-applying.
var errConflict = errors.New("conflict")
