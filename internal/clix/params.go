package clix

import (
	"strings"

	"github.com/spf13/pflag"
)

type PaginationParams struct {
	Limit  int
	Offset int
}

func ParsePagination(flags *pflag.FlagSet) (PaginationParams, error) {
	limit, _ := flags.GetInt("limit")
	offset, _ := flags.GetInt("offset")
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return PaginationParams{Limit: limit, Offset: offset}, nil
}

// ParseDataTypes reads the --types flag, accepting both repeated flags and a
// single comma-separated value, and drops empties.
func ParseDataTypes(flags *pflag.FlagSet) ([]string, error) {
	raw, err := flags.GetStringSlice("types")
	if err != nil {
		return nil, err
	}
	var types []string
	for _, chunk := range raw {
		for _, t := range strings.Split(chunk, ",") {
			trimmed := strings.TrimSpace(t)
			if trimmed != "" {
				types = append(types, trimmed)
			}
		}
	}
	return types, nil
}
