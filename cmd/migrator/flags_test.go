package main

import (
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/migrator/internal/application/migrator"
)

func parseRunFlags(t *testing.T, defaults migrator.RunOptions, set flagSet, testMode bool, args ...string) (migrator.RunOptions, error) {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	f := addRunFlags(cmd, defaults, set)
	require.NoError(t, cmd.ParseFlags(args))
	return f.options(cmd, testMode)
}

func TestRunFlags_Orders(t *testing.T) {
	set := flagsPaging | flagsDates | flagsFields | flagsOrders

	t.Run("defaults", func(t *testing.T) {
		opts, err := parseRunFlags(t, migrator.DefaultOrderOptions(), set, false)
		require.NoError(t, err)
		want := migrator.DefaultOrderOptions()
		assert.Equal(t, want.Limit, opts.Limit)
		assert.Equal(t, want.PerPage, opts.PerPage)
		assert.Equal(t, want.Status, opts.Status)
		assert.Equal(t, want.Sorting, opts.Sorting)
		assert.False(t, opts.TestMode, "configured mode applies without --mode")
		assert.Nil(t, opts.Before)
	})

	t.Run("every flag", func(t *testing.T) {
		opts, err := parseRunFlags(t, migrator.DefaultOrderOptions(), set, false,
			"--before", "2024-02-01",
			"--after", "2024-01-01T10:00:00Z",
			"--limit", "25",
			"--perpage", "10",
			"--next", " https://shop/next ",
			"--ids", "1,2",
			"--exclude", "3, 4",
			"--no-update",
			"--remove-orphans",
			"--fields", "tags,status",
			"--exclude-fields", "customer_note",
			"--dry-run",
			"--mode", "test",
			"--skip-customers",
			"--status", "closed",
		)
		require.NoError(t, err)

		assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), *opts.Before)
		assert.Equal(t, time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), *opts.After)
		assert.Equal(t, 25, opts.Limit)
		assert.Equal(t, 10, opts.PerPage)
		assert.Equal(t, "https://shop/next", opts.Next)
		assert.Equal(t, []int64{1, 2}, opts.IDs)
		assert.Equal(t, []string{"3", "4"}, opts.Exclude)
		assert.True(t, opts.NoUpdate)
		assert.True(t, opts.RemoveOrphans)
		assert.Equal(t, []string{"tags", "status"}, opts.Fields)
		assert.Equal(t, []string{"customer_note"}, opts.ExcludeFields)
		assert.True(t, opts.DryRun)
		assert.True(t, opts.TestMode)
		assert.True(t, opts.SkipCustomers)
		assert.Equal(t, "closed", opts.Status)
	})

	t.Run("live mode overrides the configuration", func(t *testing.T) {
		opts, err := parseRunFlags(t, migrator.DefaultOrderOptions(), set, true, "--mode", "live")
		require.NoError(t, err)
		assert.False(t, opts.TestMode)
	})
}

func TestRunFlags_Errors(t *testing.T) {
	set := flagsPaging | flagsDates | flagsFields | flagsOrders

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"bad date", []string{"--before", "yesterday"}, "invalid --before"},
		{"bad mode", []string{"--mode", "staging"}, "invalid --mode"},
		{"page too large", []string{"--perpage", "500"}, ""},
		{"zero limit", []string{"--limit", "0"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseRunFlags(t, migrator.DefaultOrderOptions(), set, false, tt.args...)
			require.Error(t, err)
			if tt.want != "" {
				assert.Contains(t, err.Error(), tt.want)
			}
		})
	}
}

func TestRunFlags_ProductsKeepUnregisteredDefaults(t *testing.T) {
	opts, err := parseRunFlags(t, migrator.DefaultProductOptions(), flagsPaging|flagsDates|flagsFields|flagsProducts, false,
		"--product-type", "variable", "--handle", "classic-tee")
	require.NoError(t, err)
	assert.Equal(t, "variable", opts.ProductType)
	assert.Equal(t, "classic-tee", opts.Handle)
	assert.Equal(t, migrator.DefaultProductOptions().Status, opts.Status)
	assert.Equal(t, migrator.DefaultProductOptions().Sorting, opts.Sorting)
}

func TestRunFlags_OrderTagsKeepForcedFields(t *testing.T) {
	opts, err := parseRunFlags(t, migrator.DefaultOrderTagOptions(), flagsPaging|flagsDates, false, "--ids", "7")
	require.NoError(t, err)
	assert.Equal(t, migrator.DefaultOrderTagOptions().Fields, opts.Fields)
	assert.True(t, opts.NoCreate)
	assert.Equal(t, []int64{7}, opts.IDs)
}

func TestParseDate(t *testing.T) {
	got, err := parseDate("  ")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = parseDate("2024-03-05T06:07:08")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 5, 6, 7, 8, 0, time.UTC), *got)
}
