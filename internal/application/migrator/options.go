package migrator

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/erp/migrator/internal/domain/migration"
)

// RunOptions are the per-run settings shared by every importer. Field tags
// name the CLI flag each value comes from so validation errors read like
// flag errors.
type RunOptions struct {
	Before        *time.Time `flag:"before"`
	After         *time.Time `flag:"after"`
	Limit         int        `flag:"limit" validate:"gte=1"`
	PerPage       int        `flag:"perpage" validate:"gte=1,lte=250"`
	Next          string     `flag:"next"`
	IDs           []int64    `flag:"ids" validate:"dive,gt=0"`
	Exclude       []string   `flag:"exclude" validate:"dive,required"`
	NoUpdate      bool       `flag:"no-update"`
	NoCreate      bool       `flag:"no-create"`
	RemoveOrphans bool       `flag:"remove-orphans"`
	Fields        []string   `flag:"fields"`
	ExcludeFields []string   `flag:"exclude-fields"`
	DryRun        bool       `flag:"dry-run"`
	TestMode      bool       `flag:"mode"`
	SkipCustomers bool       `flag:"skip-customers"`
	Status        string     `flag:"status" validate:"max=32"`
	ProductType   string     `flag:"product-type" validate:"omitempty,oneof=single variable all"`
	Handle        string     `flag:"handle"`
	Sorting       string     `flag:"sorting" validate:"max=64"`
}

// DefaultOrderOptions returns the defaults of the orders command
func DefaultOrderOptions() RunOptions {
	return RunOptions{
		Limit:    math.MaxInt,
		PerPage:  250,
		Status:   "any",
		Sorting:  "id asc",
		TestMode: true,
	}
}

// DefaultOrderTagOptions returns the defaults of the order-tags command
func DefaultOrderTagOptions() RunOptions {
	return RunOptions{
		Limit:    1000,
		PerPage:  50,
		Status:   "any",
		NoCreate: true,
		Fields:   []string{"tags"},
	}
}

// DefaultProductOptions returns the defaults of the products command
func DefaultProductOptions() RunOptions {
	return RunOptions{
		Limit:       1000,
		PerPage:     50,
		Status:      "active",
		ProductType: migration.ProductTypeAll,
	}
}

// DefaultCouponOptions returns the defaults of the coupons command. Coupons
// are fetched one discount per page.
func DefaultCouponOptions() RunOptions {
	return RunOptions{
		Limit:   1000,
		PerPage: 1,
	}
}

// DefaultSubscriptionOptions returns the defaults of the subscriptions command
func DefaultSubscriptionOptions() RunOptions {
	return RunOptions{
		Limit:   math.MaxInt,
		PerPage: 100,
	}
}

// DefaultPaymentMethodOptions returns the defaults of the payment-methods command
func DefaultPaymentMethodOptions() RunOptions {
	return RunOptions{
		Limit:   math.MaxInt,
		PerPage: 100,
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report flag names instead of Go field names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := fld.Tag.Get("flag")
		if name == "" || name == "-" {
			return fld.Name
		}
		return "--" + name
	})
	return v
}

// Validate checks the options. Every problem is reported, wrapped in
// migration.ErrInvalidOptions.
func (o RunOptions) Validate() error {
	var problems []string

	if err := validate.Struct(o); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("%w: %v", migration.ErrInvalidOptions, err)
		}
		for _, e := range verrs {
			problems = append(problems, fmt.Sprintf("%s: %s", e.Field(), validationMessage(e)))
		}
	}

	if o.Before != nil && o.After != nil && !o.Before.After(*o.After) {
		problems = append(problems, "--before: must be later than --after")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", migration.ErrInvalidOptions, strings.Join(problems, "; "))
	}
	return nil
}

// validationMessage returns a human-readable validation message
func validationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "must not be empty"
	case "oneof":
		return "must be one of: " + e.Param()
	case "gte":
		return "must be at least " + e.Param()
	case "lte":
		return "must be at most " + e.Param()
	case "gt":
		return "must be greater than " + e.Param()
	case "max":
		if e.Kind() == reflect.String {
			return "must be at most " + e.Param() + " characters"
		}
		return "must be at most " + e.Param()
	default:
		return "invalid value"
	}
}

// FieldSelector builds the field selector of a run over the known fields of
// the importer.
func (o RunOptions) FieldSelector(known []string) (*migration.FieldSelector, error) {
	return migration.NewFieldSelector(known, o.Fields, o.ExcludeFields)
}

// Excluded reports whether a remote id was passed with --exclude
func (o RunOptions) Excluded(remoteID string) bool {
	for _, ex := range o.Exclude {
		if strings.TrimSpace(ex) == remoteID {
			return true
		}
	}
	return false
}
