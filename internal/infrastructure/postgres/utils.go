package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func pgErrCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// isForeignKeyViolation 23503: la reserva apunta a una LP inexistente.
func isForeignKeyViolation(err error) bool { return pgErrCode(err) == "23503" }

// isCheckViolation 23514: por ejemplo ambos o ningún consumidor definidos.
func isCheckViolation(err error) bool { return pgErrCode(err) == "23514" }

// isInvalidTextRepresentation 22P02: un id que no es UUID comparado contra una columna UUID.
func isInvalidTextRepresentation(err error) bool { return pgErrCode(err) == "22P02" }

// isNoMatch la consulta por clave no encontró fila, o la clave no puede existir en la columna.
func isNoMatch(err error) bool {
	return errors.Is(err, pgx.ErrNoRows) || isInvalidTextRepresentation(err)
}
