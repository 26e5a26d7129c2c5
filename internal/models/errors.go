package models

import (
	"errors"
)

var (
	ErrInvalidDateRange = errors.New("invalid date range")
	ErrNoDataTypes      = errors.New("at least one data type is required")
	ErrNoTenant         = errors.New("tenant id is required")
)
