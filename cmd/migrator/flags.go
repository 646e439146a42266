package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/erp/migrator/internal/application/migrator"
)

// runFlags holds the flags shared by the import commands. Defaults come
// from the command's default RunOptions.
type runFlags struct {
	defaults migrator.RunOptions

	before        string
	after         string
	limit         int
	perPage       int
	next          string
	ids           []int64
	exclude       []string
	noUpdate      bool
	noCreate      bool
	removeOrphans bool
	fields        []string
	excludeFields []string
	dryRun        bool
	mode          string
	skipCustomers bool
	status        string
	productType   string
	handle        string
	sorting       string
}

// flagSet selects the optional flags a command understands
type flagSet uint8

const (
	flagsPaging flagSet = 1 << iota
	flagsDates
	flagsFields
	flagsOrders
	flagsProducts
)

func addRunFlags(cmd *cobra.Command, defaults migrator.RunOptions, set flagSet) *runFlags {
	f := &runFlags{defaults: defaults}
	fs := cmd.Flags()

	fs.IntVar(&f.limit, "limit", defaults.Limit, "Maximum number of entities to process")
	fs.BoolVar(&f.noUpdate, "no-update", defaults.NoUpdate, "Skip entities that were already migrated")
	fs.BoolVar(&f.noCreate, "no-create", defaults.NoCreate, "Only update entities that were already migrated")
	fs.BoolVar(&f.dryRun, "dry-run", false, "Process everything but write nothing")
	fs.StringSliceVar(&f.exclude, "exclude", nil, "Remote ids (or SKU patterns for products) to skip")

	if set&flagsPaging != 0 {
		fs.IntVar(&f.perPage, "perpage", defaults.PerPage, "Entities fetched per page (max 250)")
		fs.StringVar(&f.next, "next", "", "Resume from the cursor printed by a previous run")
	}
	if set&flagsDates != 0 {
		fs.StringVar(&f.before, "before", "", "Only entities created before this date (YYYY-MM-DD or RFC 3339)")
		fs.StringVar(&f.after, "after", "", "Only entities created after this date (YYYY-MM-DD or RFC 3339)")
		fs.Int64SliceVar(&f.ids, "ids", nil, "Only these remote ids")
	}
	if set&flagsFields != 0 {
		fs.BoolVar(&f.removeOrphans, "remove-orphans", defaults.RemoveOrphans, "Delete local sub-entities that no longer exist remotely")
		fs.StringSliceVar(&f.fields, "fields", defaults.Fields, "Only update these fields")
		fs.StringSliceVar(&f.excludeFields, "exclude-fields", nil, "Never update these fields")
	}
	if set&flagsOrders != 0 {
		fs.StringVar(&f.mode, "mode", "", "test masks customer phone numbers and emails; live copies them (default from migration.test_mode)")
		fs.BoolVar(&f.skipCustomers, "skip-customers", false, "Import orders as guest orders")
		fs.StringVar(&f.status, "status", defaults.Status, "Remote order status filter (open, closed, cancelled, any)")
		fs.StringVar(&f.sorting, "sorting", defaults.Sorting, "Remote sort order")
	}
	if set&flagsProducts != 0 {
		fs.StringVar(&f.status, "status", defaults.Status, "Remote product status filter (active, archived, draft)")
		fs.StringVar(&f.productType, "product-type", defaults.ProductType, "single, variable or all")
		fs.StringVar(&f.handle, "handle", "", "Only the product with this handle")
	}
	return f
}

// options converts the parsed flags into validated run options. testMode
// applies when --mode was not given.
func (f *runFlags) options(cmd *cobra.Command, testMode bool) (migrator.RunOptions, error) {
	opts := f.defaults
	opts.Limit = f.limit
	opts.NoUpdate = f.noUpdate
	opts.NoCreate = f.noCreate
	opts.DryRun = f.dryRun
	opts.Exclude = trimAll(f.exclude)
	opts.IDs = f.ids
	opts.SkipCustomers = f.skipCustomers
	opts.Handle = strings.TrimSpace(f.handle)

	if cmd.Flags().Lookup("perpage") != nil {
		opts.PerPage = f.perPage
		opts.Next = strings.TrimSpace(f.next)
	}
	if cmd.Flags().Lookup("fields") != nil {
		opts.RemoveOrphans = f.removeOrphans
		opts.Fields = trimAll(f.fields)
		opts.ExcludeFields = trimAll(f.excludeFields)
	}
	if cmd.Flags().Lookup("status") != nil {
		opts.Status = f.status
	}
	if cmd.Flags().Lookup("sorting") != nil {
		opts.Sorting = f.sorting
	}
	if cmd.Flags().Lookup("product-type") != nil {
		opts.ProductType = f.productType
	}

	var err error
	if opts.Before, err = parseDate(f.before); err != nil {
		return opts, fmt.Errorf("invalid --before: %w", err)
	}
	if opts.After, err = parseDate(f.after); err != nil {
		return opts, fmt.Errorf("invalid --after: %w", err)
	}

	if cmd.Flags().Lookup("mode") != nil {
		switch f.mode {
		case "":
			opts.TestMode = testMode
		case "test":
			opts.TestMode = true
		case "live":
			opts.TestMode = false
		default:
			return opts, fmt.Errorf("invalid --mode %q: must be test or live", f.mode)
		}
	}

	if err := opts.Validate(); err != nil {
		return opts, err
	}
	return opts, nil
}

var dateLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

func parseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%q is not a date", s)
}

func trimAll(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
