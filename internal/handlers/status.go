package handlers

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/warapp/apiserver/internal/apperrors"
)

// StatusHandler reports a snapshot of the service's dependencies.
type StatusHandler struct {
	db     *sql.DB
	dbName string
}

func NewStatusHandler(db *sql.DB, dbName string) *StatusHandler {
	return &StatusHandler{db: db, dbName: dbName}
}

type statusResponse struct {
	UpdatedAt    time.Time          `json:"updated_at"`
	Dependencies statusDependencies `json:"dependencies"`
}

type statusDependencies struct {
	Database databaseStatus `json:"database"`
}

type databaseStatus struct {
	Version           string `json:"version"`
	MaxConnections    int    `json:"max_connections"`
	OpenedConnections int    `json:"opened_connections"`
}

// Get queries the database for its version, connection ceiling, and the
// number of connections currently opened against this database.
func (h *StatusHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var status databaseStatus

	if err := h.db.QueryRowContext(ctx, `SHOW server_version`).Scan(&status.Version); err != nil {
		writeError(w, apperrors.NewInternal(err))
		return
	}

	var maxConnections string
	if err := h.db.QueryRowContext(ctx, `SHOW max_connections`).Scan(&maxConnections); err != nil {
		writeError(w, apperrors.NewInternal(err))
		return
	}
	parsed, err := strconv.Atoi(maxConnections)
	if err != nil {
		writeError(w, apperrors.NewInternal(err))
		return
	}
	status.MaxConnections = parsed

	const openedQuery = `
		SELECT count(1)::int
		FROM pg_stat_activity
		WHERE datname = $1`
	if err := h.db.QueryRowContext(ctx, openedQuery, h.dbName).Scan(&status.OpenedConnections); err != nil {
		writeError(w, apperrors.NewInternal(err))
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{
		UpdatedAt: time.Now(),
		Dependencies: statusDependencies{
			Database: status,
		},
	})
}
