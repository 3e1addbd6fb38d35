// Package option carries composable query modifiers for the generic store.
package option

import (
	"fmt"

	"gorm.io/gorm"
)

// QueryOption mutates a gorm statement before execution.
type QueryOption interface {
	Apply(db *gorm.DB) *gorm.DB
}

// Operator is a SQL comparison operator for filter conditions.
type Operator string

const (
	EQ  Operator = "="
	NEQ Operator = "<>"
	GT  Operator = ">"
	GTE Operator = ">="
	LT  Operator = "<"
	LTE Operator = "<="
)

// Condition is a single field comparison.
type Condition struct {
	Field    string
	Operator Operator
	Value    any
}

type conditionOption struct {
	cond Condition
}

func (o conditionOption) Apply(db *gorm.DB) *gorm.DB {
	return db.Where(fmt.Sprintf("%s %s ?", o.cond.Field, o.cond.Operator), o.cond.Value)
}

// ApplyOperator adds a comparison condition to the query.
func ApplyOperator(cond Condition) QueryOption {
	return conditionOption{cond: cond}
}

type inOption struct {
	field  string
	values any
}

func (o inOption) Apply(db *gorm.DB) *gorm.DB {
	return db.Where(fmt.Sprintf("%s IN ?", o.field), o.values)
}

// WithIn restricts a field to a set of values.
func WithIn(field string, values any) QueryOption {
	return inOption{field: field, values: values}
}

type sortByOption struct {
	order string
}

func (o sortByOption) Apply(db *gorm.DB) *gorm.DB {
	return db.Order(o.order)
}

// WithSortBy sets the result ordering, e.g. "booking_date ASC".
func WithSortBy(order string) QueryOption {
	return sortByOption{order: order}
}

type limitOption struct {
	limit int
}

func (o limitOption) Apply(db *gorm.DB) *gorm.DB {
	return db.Limit(o.limit)
}

// WithLimit caps the number of returned rows.
func WithLimit(limit int) QueryOption {
	return limitOption{limit: limit}
}
