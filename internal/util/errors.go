package util

import "errors"

var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrInvalidPattern   = errors.New("unknown pattern type")
)
