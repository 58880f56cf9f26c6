/**
 * Copyright 2020 TryFix Engineering.
 * All rights reserved.
 * Authors:
 *    Gayan Yapa (gmbyapa@gmail.com)
 */

package data

import (
	"fmt"
	"github.com/tryfix/errors"
	"strings"
)

// Row is an immutable tuple of typed fields. Supported field types are nil, int64, float64,
// string, []byte and bool. The join engines never look inside a row except through
// projections, comparators and the configured time field.
type Row []interface{}

// NewRow builds a row normalising go integer types to int64.
func NewRow(fields ...interface{}) Row {
	r := make(Row, len(fields))
	for i, f := range fields {
		switch v := f.(type) {
		case int:
			r[i] = int64(v)
		case int32:
			r[i] = int64(v)
		case float32:
			r[i] = float64(v)
		default:
			r[i] = v
		}
	}

	return r
}

func (r Row) Arity() int {
	return len(r)
}

func (r Row) Field(i int) interface{} {
	return r[i]
}

func (r Row) IsNullAt(i int) bool {
	return r[i] == nil
}

// Int64 returns the field at i as an int64.
func (r Row) Int64(i int) (int64, error) {
	if i < 0 || i >= len(r) {
		return 0, errors.Errorf(`field index [%d] out of range for arity %d`, i, len(r))
	}

	v, ok := r[i].(int64)
	if !ok {
		return 0, errors.Errorf(`field [%d] is %T, expected int64`, i, r[i])
	}

	return v, nil
}

// Copy returns a shallow copy of the row. Byte slices are cloned.
func (r Row) Copy() Row {
	if r == nil {
		return nil
	}

	c := make(Row, len(r))
	for i, f := range r {
		if b, ok := f.([]byte); ok {
			f = append([]byte(nil), b...)
		}
		c[i] = f
	}

	return c
}

func (r Row) String() string {
	fields := make([]string, len(r))
	for i, f := range r {
		if f == nil {
			fields[i] = `null`
			continue
		}
		fields[i] = fmt.Sprint(f)
	}

	return `(` + strings.Join(fields, `,`) + `)`
}
