package domain

import "errors"

var (
	// ErrInternalServerError will throw if any the Internal Server Error happen
	ErrInternalServerError = errors.New("internal server error")
	// ErrNotFound will throw if the requested item is not exists
	ErrNotFound = errors.New("your requested item is not found")
	// ErrConflict will throw if the current action already exists
	ErrConflict = errors.New("your item already exist")
	// ErrBadParamInput will throw if the given request-body or params is not valid
	ErrBadParamInput = errors.New("given param is not valid")
	// ErrCacheMiss will throw if the requested key is absent from the cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrAlreadyLiked reports a duplicate like: the relation already exists.
	// Treated as an idempotent no-op, never as a hard failure.
	ErrAlreadyLiked = errors.New("already liked")
	// ErrNotLiked reports a duplicate unlike: the relation is already removed.
	ErrNotLiked = errors.New("already removed")
	// ErrNotVerified gates engagement actions behind account verification.
	// Its text is shown to the user verbatim.
	ErrNotVerified = errors.New("account is not verified yet")
)
