package csvimport

import (
	"fmt"
	"regexp"
	"strings"
)

// FieldRule describes how one column is validated
type FieldRule struct {
	Column      string
	Required    bool
	Pattern     *regexp.Regexp
	PatternDesc string
	Unique      bool
}

// FieldRuleBuilder provides a fluent API for building field rules
type FieldRuleBuilder struct {
	rule FieldRule
}

// Field starts a rule for a column
func Field(column string) *FieldRuleBuilder {
	return &FieldRuleBuilder{rule: FieldRule{Column: column}}
}

// Required marks the column as mandatory
func (b *FieldRuleBuilder) Required() *FieldRuleBuilder {
	b.rule.Required = true
	return b
}

// Pattern requires non-empty values to match a regular expression
func (b *FieldRuleBuilder) Pattern(pattern, description string) *FieldRuleBuilder {
	b.rule.Pattern = regexp.MustCompile(pattern)
	b.rule.PatternDesc = description
	return b
}

// Unique rejects a value seen in an earlier row
func (b *FieldRuleBuilder) Unique() *FieldRuleBuilder {
	b.rule.Unique = true
	return b
}

// Build returns the rule
func (b *FieldRuleBuilder) Build() FieldRule {
	return b.rule
}

// ---------------------------------------------------------------------------
// Row errors
// ---------------------------------------------------------------------------

// RowError is a validation failure in one cell
type RowError struct {
	Row     int
	Column  string
	Message string
}

// Error implements the error interface
func (e RowError) Error() string {
	return fmt.Sprintf("row %d, column '%s': %s", e.Row, e.Column, e.Message)
}

// ErrorCollection keeps up to maxErrors row errors and counts the rest
type ErrorCollection struct {
	errors     []RowError
	maxErrors  int
	totalCount int
}

// newErrorCollection creates a collection; maxErrors <= 0 means 100
func newErrorCollection(maxErrors int) *ErrorCollection {
	if maxErrors <= 0 {
		maxErrors = 100
	}
	return &ErrorCollection{maxErrors: maxErrors}
}

// Add records an error
func (ec *ErrorCollection) Add(err RowError) {
	ec.totalCount++
	if len(ec.errors) < ec.maxErrors {
		ec.errors = append(ec.errors, err)
	}
}

// Errors returns the kept errors
func (ec *ErrorCollection) Errors() []RowError {
	return ec.errors
}

// HasErrors reports whether anything was recorded
func (ec *ErrorCollection) HasErrors() bool {
	return ec.totalCount > 0
}

// String returns a summary of all errors
func (ec *ErrorCollection) String() string {
	if !ec.HasErrors() {
		return "no errors"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d error(s) found", ec.totalCount)
	if ec.totalCount > len(ec.errors) {
		fmt.Fprintf(&sb, " (showing first %d)", len(ec.errors))
	}
	for _, err := range ec.errors {
		sb.WriteString("; ")
		sb.WriteString(err.Error())
	}
	return sb.String()
}

// ---------------------------------------------------------------------------
// Validator
// ---------------------------------------------------------------------------

// FieldValidator applies rules to rows and collects failures
type FieldValidator struct {
	rules  []FieldRule
	seen   map[string]map[string]int
	errors *ErrorCollection
}

// NewFieldValidator creates a validator
func NewFieldValidator(rules []FieldRule, maxErrors int) *FieldValidator {
	return &FieldValidator{
		rules:  rules,
		seen:   make(map[string]map[string]int),
		errors: newErrorCollection(maxErrors),
	}
}

// ValidateRow validates every ruled column of a row
func (v *FieldValidator) ValidateRow(row *Row) bool {
	ok := true
	for _, rule := range v.rules {
		value := row.Get(rule.Column)

		if value == "" {
			if rule.Required {
				v.errors.Add(RowError{Row: row.LineNumber, Column: rule.Column, Message: "value is required"})
				ok = false
			}
			continue
		}

		if rule.Pattern != nil && !rule.Pattern.MatchString(value) {
			v.errors.Add(RowError{
				Row:     row.LineNumber,
				Column:  rule.Column,
				Message: fmt.Sprintf("%q is not %s", value, rule.PatternDesc),
			})
			ok = false
		}

		if rule.Unique {
			if v.seen[rule.Column] == nil {
				v.seen[rule.Column] = make(map[string]int)
			}
			if first, dup := v.seen[rule.Column][value]; dup {
				v.errors.Add(RowError{
					Row:     row.LineNumber,
					Column:  rule.Column,
					Message: fmt.Sprintf("duplicate value %q (first seen in row %d)", value, first),
				})
				ok = false
			} else {
				v.seen[rule.Column][value] = row.LineNumber
			}
		}
	}
	return ok
}

// Errors returns the collected failures
func (v *FieldValidator) Errors() *ErrorCollection {
	return v.errors
}
