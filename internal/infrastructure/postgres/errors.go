package postgres

import (
	"errors"

	"github.com/lib/pq"
)

// PostgreSQLのエラーコード
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
	codeInvalidText         = "22P02"
)

func pqCode(err error) string {
	var pgErr *pq.Error
	if errors.As(err, &pgErr) {
		return string(pgErr.Code)
	}
	return ""
}

func pqConstraint(err error) string {
	var pgErr *pq.Error
	if errors.As(err, &pgErr) {
		return pgErr.Constraint
	}
	return ""
}

// isInvalidUUID はUUID形式でないIDを渡された場合に true を返す
func isInvalidUUID(err error) bool {
	return pqCode(err) == codeInvalidText
}
