package database

import "database/sql"

// ExecRequireRows turns a zero-row UPDATE into notFound.
func ExecRequireRows(result sql.Result, err, notFound error) error {
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
