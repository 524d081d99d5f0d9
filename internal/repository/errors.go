// Package repository holds the storage-agnostic errors every repository
// implementation maps its driver errors onto.
package repository

import "errors"

// ErrNotFound: no row matched the lookup.
var ErrNotFound = errors.New("repository: not found")

// ErrConflict: a unique key already holds the value being written.
var ErrConflict = errors.New("repository: conflict")
