package repository

import (
	"errors"

	"cargodesk-backend/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record already exists")
)

// ChatFilter narrows chat listings. Zero values match everything.
type ChatFilter struct {
	CustomerID    string
	ParticipantID string
	Kind          model.ChatKind
	Status        model.ChatStatus
	Limit         int
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
