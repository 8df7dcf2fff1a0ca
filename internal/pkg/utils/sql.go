package utils

import "database/sql"

// ToSQLStr wraps a string into sql.NullString, empty maps to NULL
func ToSQLStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// FromSQLStr unwraps sql.NullString, NULL maps to empty
func FromSQLStr(sqlStr sql.NullString) string {
	if !sqlStr.Valid {
		return ""
	}
	return sqlStr.String
}
