package storage

import "errors"

var ErrNotFound = errors.New("session not found")
