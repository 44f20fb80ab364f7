package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/aevon-lab/cubexport/internal/core/cube"
	xerr "github.com/aevon-lab/cubexport/internal/core/errors"
	"github.com/lib/pq"
)

// pqInsufficientPrivilege is SQLSTATE 42501.
const pqInsufficientPrivilege = "42501"

type scanner interface {
	Scan(dest ...interface{}) error
}

// scanDimensionRow scans one dimension row. Compatible with both sql.Row and sql.Rows.
func scanDimensionRow(row scanner) (cube.Dimension, error) {
	var (
		d       cube.Dimension
		typeTag string
	)
	err := row.Scan(
		&d.ID,
		&d.Name,
		&typeTag,
		&d.Size,
		&d.Explicit,
		&d.Level,
		&d.FKIndexID,
		&d.FKLabelID,
		&d.Unlimited,
		&d.Units,
		&d.Calendar,
	)
	if err != nil {
		return cube.Dimension{}, fmt.Errorf("failed to scan dimension row: %w", err)
	}
	d.Type, err = cube.ParseScalarType(typeTag)
	if err != nil {
		return cube.Dimension{}, err
	}
	return d, nil
}

func scanAttributeRow(row scanner) (cube.Attribute, error) {
	var (
		a        cube.Attribute
		variable sql.NullString
		typeTag  string
	)
	if err := row.Scan(&a.ID, &variable, &a.Key, &typeTag, &a.Value); err != nil {
		return cube.Attribute{}, fmt.Errorf("failed to scan attribute row: %w", err)
	}
	if variable.Valid && variable.String != "" {
		scope := variable.String
		a.Scope = &scope
	}
	t, err := cube.ParseScalarType(typeTag)
	if err != nil {
		return cube.Attribute{}, err
	}
	a.Type = t
	return a, nil
}

// classify maps a driver error to an export failure kind. Errors that are
// neither a missing row nor a privilege failure get fallback.
func classify(op string, err error, fallback func(op, msg string, err error) *xerr.Error) error {
	if err == nil {
		return nil
	}
	var e *xerr.Error
	if errors.As(err, &e) {
		return err
	}
	if errors.Is(err, sql.ErrNoRows) {
		return xerr.NotFound(op, "no matching row", err)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == pqInsufficientPrivilege {
		return xerr.Permission(op, "insufficient privilege", err)
	}
	return fallback(op, "query failed", err)
}
