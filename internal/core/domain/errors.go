package domain

import "errors"

var (
	// ErrInvalidIdentifier indicates an identifier string is not a canonical ULID.
	ErrInvalidIdentifier = errors.New("invalid identifier")
	// ErrDuplicateIdentifier indicates a strict identifier collection received the same id twice.
	ErrDuplicateIdentifier = errors.New("duplicate identifier")
	// ErrNoPrimaryCategory indicates a primary category was requested from an empty category set.
	ErrNoPrimaryCategory = errors.New("no primary category")
	// ErrInvalidPermissionKey indicates a permission key is not a dotted resource.action pair.
	ErrInvalidPermissionKey = errors.New("invalid permission key")
	// ErrInvalidName indicates a name or display attribute is empty or too long.
	ErrInvalidName = errors.New("invalid name")
	// ErrInvalidEmail indicates an email address failed validation.
	ErrInvalidEmail = errors.New("invalid email")
	// ErrInvalidStatus indicates an unknown account status value.
	ErrInvalidStatus = errors.New("invalid account status")
	// ErrInvalidEffectivePeriod indicates an assignment ends before it starts.
	ErrInvalidEffectivePeriod = errors.New("invalid effective period")
)
