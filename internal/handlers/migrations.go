package handlers

import (
	"errors"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/warapp/apiserver/internal/apperrors"
)

// MigrationsHandler exposes the migration runner over HTTP: GET lists the
// pending migrations (dry run), POST applies them.
type MigrationsHandler struct {
	dsn           string
	migrationsDir string
}

func NewMigrationsHandler(dsn, migrationsDir string) *MigrationsHandler {
	return &MigrationsHandler{dsn: dsn, migrationsDir: migrationsDir}
}

// MigrationsRouter registers migration routes on the given router.
func MigrationsRouter(r chi.Router, dsn, migrationsDir string) {
	handler := NewMigrationsHandler(dsn, migrationsDir)

	r.Get("/", handler.List)
	r.Post("/", handler.Apply)
}

type migrationInfo struct {
	Version uint   `json:"version"`
	Name    string `json:"name"`
}

// List returns the migrations that would run, without running them.
func (h *MigrationsHandler) List(w http.ResponseWriter, _ *http.Request) {
	pending, err := h.pending()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pending)
}

// Apply runs all pending migrations. 201 when at least one ran, 200 when
// the schema was already current.
func (h *MigrationsHandler) Apply(w http.ResponseWriter, _ *http.Request) {
	pending, err := h.pending()
	if err != nil {
		writeError(w, err)
		return
	}

	migrator, err := migrate.New("file://"+h.migrationsDir, h.dsn)
	if err != nil {
		writeError(w, apperrors.NewInternal(err))
		return
	}
	defer func() {
		_, _ = migrator.Close()
	}()

	if err := migrator.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			writeJSON(w, http.StatusOK, []migrationInfo{})
			return
		}
		writeError(w, apperrors.NewInternal(err))
		return
	}

	writeJSON(w, http.StatusCreated, pending)
}

func (h *MigrationsHandler) pending() ([]migrationInfo, error) {
	current, err := h.currentVersion()
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(h.migrationsDir)
	if err != nil {
		return nil, apperrors.NewInternal(err)
	}

	pending := []migrationInfo{}
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, ".up.sql") {
			continue
		}
		info, ok := parseMigrationName(name)
		if !ok {
			continue
		}
		if info.Version > current {
			pending = append(pending, info)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].Version < pending[j].Version })
	return pending, nil
}

func (h *MigrationsHandler) currentVersion() (uint, error) {
	migrator, err := migrate.New("file://"+h.migrationsDir, h.dsn)
	if err != nil {
		return 0, apperrors.NewInternal(err)
	}
	defer func() {
		_, _ = migrator.Close()
	}()

	version, _, err := migrator.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return 0, nil
		}
		return 0, apperrors.NewInternal(err)
	}
	return version, nil
}

func parseMigrationName(filename string) (migrationInfo, bool) {
	base := strings.TrimSuffix(filename, ".up.sql")
	parts := strings.SplitN(base, "_", 2)
	if len(parts) != 2 {
		return migrationInfo{}, false
	}
	version, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return migrationInfo{}, false
	}
	return migrationInfo{Version: uint(version), Name: parts[1]}, true
}
