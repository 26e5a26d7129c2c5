package clix

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("limit", 20, "")
	flags.Int("offset", 0, "")
	flags.StringSlice("types", nil, "")
	return flags
}

func TestParsePagination(t *testing.T) {
	flags := flagSet()
	require.NoError(t, flags.Parse([]string{"--limit", "5", "--offset", "10"}))

	page, err := ParsePagination(flags)
	require.NoError(t, err)
	assert.Equal(t, 5, page.Limit)
	assert.Equal(t, 10, page.Offset)
}

func TestParsePaginationDefaultsBadValues(t *testing.T) {
	flags := flagSet()
	require.NoError(t, flags.Parse([]string{"--limit", "-1", "--offset", "-3"}))

	page, err := ParsePagination(flags)
	require.NoError(t, err)
	assert.Equal(t, 20, page.Limit)
	assert.Equal(t, 0, page.Offset)
}

func TestParseDataTypes(t *testing.T) {
	flags := flagSet()
	require.NoError(t, flags.Parse([]string{"--types", "orders, sessions", "--types", "users"}))

	types, err := ParseDataTypes(flags)
	require.NoError(t, err)
	assert.Equal(t, []string{"orders", "sessions", "users"}, types)
}

func TestParseDataTypesEmpty(t *testing.T) {
	flags := flagSet()
	require.NoError(t, flags.Parse([]string{"--types", " , "}))

	types, err := ParseDataTypes(flags)
	require.NoError(t, err)
	assert.Empty(t, types)
}
