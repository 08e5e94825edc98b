package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/kookoo-caribbean/kookoo/internal/api"
	"github.com/kookoo-caribbean/kookoo/internal/dataapi"
	dbstore "github.com/kookoo-caribbean/kookoo/internal/db"
	"github.com/kookoo-caribbean/kookoo/internal/middleware"
	"github.com/kookoo-caribbean/kookoo/internal/services"
	"github.com/kookoo-caribbean/kookoo/internal/utils"
)

func main() {
	addr := utils.SafeEnv("KOOKOO_ADDR", ":8080")
	commit := os.Getenv("KOOKOO_COMMIT")
	buildTime := os.Getenv("KOOKOO_BUILD_TIME")

	submissionStore, leadStore, err := openStore()
	if err != nil {
		// Fail closed: never serve the submission endpoint with no usable
		// persistence backend.
		log.Fatalf("store configuration error: %v", err)
	}

	authSvc := services.NewAuthService(
		os.Getenv("KOOKOO_ADMIN_EMAIL"),
		os.Getenv("KOOKOO_ADMIN_PASSWORD_HASH"),
		middleware.SignToken,
	)
	if !authSvc.Enabled() {
		log.Printf("admin credentials not configured; lead dashboard endpoints will reject logins")
	}

	rt := api.NewRouter(
		services.NewSubmissionService(submissionStore),
		authSvc,
		services.NewLeadService(leadStore),
	)

	mux := http.NewServeMux()
	rt.Register(mux)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok":         true,
			"name":       "KooKoo Lead API",
			"commit":     commit,
			"build_time": buildTime,
		})
	})

	// Frontend serving strategy (priority):
	// 1) Static files if KOOKOO_STATIC_DIR is set (fullstack image)
	// 2) Dev proxy if KOOKOO_DEV_FRONTEND_URL is set (proxy / to Vite dev)
	if staticDir := os.Getenv("KOOKOO_STATIC_DIR"); staticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(staticDir)))
	} else if devURL := os.Getenv("KOOKOO_DEV_FRONTEND_URL"); devURL != "" {
		if u, err := url.Parse(devURL); err == nil {
			mux.Handle("/", httputil.NewSingleHostReverseProxy(u))
		} else {
			log.Printf("invalid KOOKOO_DEV_FRONTEND_URL=%q: %v", devURL, err)
		}
	}

	handler := middleware.NoStore(
		middleware.SecureHeaders(
			middleware.CORS(os.Getenv("KOOKOO_CORS_ORIGIN"))(mux)))

	log.Printf("KooKoo lead server listening on %s", addr)
	if err := http.ListenAndServe(addr, handler); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

// openStore selects the persistence backend: a direct SQLite database when
// KOOKOO_SQLITE_PATH is set (transactional), otherwise the remote data API
// when its URL and privileged key are both present (best-effort writes).
// With neither, startup fails.
func openStore() (services.SubmissionStore, services.LeadStore, error) {
	if sqlitePath := os.Getenv("KOOKOO_SQLITE_PATH"); sqlitePath != "" {
		if err := os.MkdirAll(filepath.Dir(sqlitePath), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create sqlite dir: %w", err)
		}
		dsn := fmt.Sprintf("file:%s?cache=shared&_busy_timeout=5000", filepath.ToSlash(sqlitePath))
		sqliteDB, err := sql.Open("sqlite3", dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite: %w", err)
		}
		if err := dbstore.RunMigrations(sqliteDB, os.Getenv("KOOKOO_MIGRATIONS_DIR")); err != nil {
			return nil, nil, fmt.Errorf("run migrations: %w", err)
		}
		store, err := dbstore.NewSQLiteStore(sqliteDB)
		if err != nil {
			return nil, nil, fmt.Errorf("init sqlite store: %w", err)
		}
		log.Printf("using sqlite store at %s (transactional)", sqlitePath)
		return store, store, nil
	}

	apiURL := os.Getenv("KOOKOO_DATA_API_URL")
	apiKey := os.Getenv("KOOKOO_DATA_API_KEY")
	if apiURL != "" && apiKey != "" {
		client, err := dataapi.New(apiURL, apiKey)
		if err != nil {
			return nil, nil, err
		}
		log.Printf("using remote data API at %s (non-transactional fallback)", apiURL)
		return client, client, nil
	}
	if apiURL != "" || apiKey != "" {
		return nil, nil, fmt.Errorf("remote data API partially configured: both KOOKOO_DATA_API_URL and KOOKOO_DATA_API_KEY are required")
	}
	return nil, nil, fmt.Errorf("no persistence backend: set KOOKOO_SQLITE_PATH or KOOKOO_DATA_API_URL + KOOKOO_DATA_API_KEY")
}
