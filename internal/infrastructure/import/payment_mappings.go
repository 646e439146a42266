package csvimport

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/erp/migrator/internal/domain/migration"
)

// Stripe PAN migration file columns
const (
	ColumnCustomerIDOld = "customer_id_old"
	ColumnSourceIDOld   = "source_id_old"
	ColumnCustomerIDNew = "customer_id_new"
	ColumnSourceIDNew   = "source_id_new"
)

// PaymentMappingColumns lists the required header of the mapping file
var PaymentMappingColumns = []string{ColumnCustomerIDOld, ColumnSourceIDOld, ColumnCustomerIDNew, ColumnSourceIDNew}

// paymentMappingRules validates Stripe object ids
var paymentMappingRules = []FieldRule{
	Field(ColumnCustomerIDOld).Required().Pattern(`^cus_\w+$`, "a Stripe customer id").Build(),
	Field(ColumnSourceIDOld).Required().Pattern(`^(card|src|pm)_\w+$`, "a Stripe card, source or payment method id").Unique().Build(),
	Field(ColumnCustomerIDNew).Required().Pattern(`^cus_\w+$`, "a Stripe customer id").Build(),
	Field(ColumnSourceIDNew).Required().Pattern(`^(card|src|pm)_\w+$`, "a Stripe card, source or payment method id").Build(),
}

// PaymentMappingFile loads the Stripe PAN migration CSV. It implements
// migration.PaymentMappingSource.
type PaymentMappingFile struct {
	path   string
	logger *zap.Logger
}

var _ migration.PaymentMappingSource = (*PaymentMappingFile)(nil)

// NewPaymentMappingFile creates a source reading path
func NewPaymentMappingFile(path string, logger *zap.Logger) *PaymentMappingFile {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentMappingFile{path: path, logger: logger}
}

// LoadPaymentMappings reads and validates every row of the file
func (f *PaymentMappingFile) LoadPaymentMappings(ctx context.Context) ([]migration.PaymentMethodMapping, error) {
	file, err := os.Open(f.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", migration.ErrInvalidMigrationFile, err)
	}
	defer file.Close()

	var opts []ParserOption
	if strings.EqualFold(filepath.Ext(f.path), ".tsv") {
		opts = append(opts, WithDelimiter('\t'))
	}
	mappings, err := ParsePaymentMappings(file, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.path, err)
	}
	f.logger.Info("loaded payment method mappings",
		zap.String("path", f.path),
		zap.Int("rows", len(mappings)),
	)
	return mappings, nil
}

// ParsePaymentMappings parses a mapping file. Any invalid row fails the whole
// file; the error lists the offending rows.
func ParsePaymentMappings(r io.Reader, opts ...ParserOption) ([]migration.PaymentMethodMapping, error) {
	parser, err := NewCSVParser(r, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", migration.ErrInvalidMigrationFile, err)
	}
	if err := parser.ParseHeader(); err != nil {
		return nil, fmt.Errorf("%w: %v", migration.ErrInvalidMigrationFile, err)
	}
	if missing := parser.MissingHeaders(PaymentMappingColumns); len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing columns %s", migration.ErrInvalidMigrationFile, strings.Join(missing, ", "))
	}

	rows, err := parser.ReadAllRows()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", migration.ErrInvalidMigrationFile, err)
	}

	validator := NewFieldValidator(paymentMappingRules, 20)
	mappings := make([]migration.PaymentMethodMapping, 0, len(rows))
	for _, row := range rows {
		if !validator.ValidateRow(row) {
			continue
		}
		mappings = append(mappings, migration.PaymentMethodMapping{
			CustomerIDOld: row.Get(ColumnCustomerIDOld),
			SourceIDOld:   row.Get(ColumnSourceIDOld),
			CustomerIDNew: row.Get(ColumnCustomerIDNew),
			SourceIDNew:   row.Get(ColumnSourceIDNew),
		})
	}
	if validator.Errors().HasErrors() {
		return nil, fmt.Errorf("%w: %s", migration.ErrInvalidMigrationFile, validator.Errors().String())
	}
	return mappings, nil
}
