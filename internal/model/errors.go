package model

import "errors"

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation error")
	ErrConflict   = errors.New("conflict")

	// ErrDuplicate reports that an equivalent unsurfaced observation or
	// notification marker already exists; callers treat it as benign.
	ErrDuplicate = errors.New("duplicate")
)
