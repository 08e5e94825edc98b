package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/kookoo-caribbean/kookoo/internal/middleware"
	"github.com/kookoo-caribbean/kookoo/internal/services"
)

type Router struct {
	submissions *services.SubmissionService
	auth        *services.AuthService
	leads       *services.LeadService
}

func NewRouter(submissions *services.SubmissionService, auth *services.AuthService, leads *services.LeadService) *Router {
	return &Router{submissions: submissions, auth: auth, leads: leads}
}

func (rt *Router) Register(mux *http.ServeMux) {
	mux.HandleFunc("/submit", rt.handleSubmit)              // POST
	mux.HandleFunc("/api/admin/login", rt.handleAdminLogin) // POST
	mux.Handle("/api/leads", middleware.WithAuth(middleware.RequireAuth(http.HandlerFunc(rt.handleLeads))))
	mux.Handle("/api/leads/export", middleware.WithAuth(middleware.RequireAuth(http.HandlerFunc(rt.handleLeadsExport))))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if se, ok := services.AsServiceError(err); ok {
		switch se.Code {
		case services.ErrorInvalid:
			status = http.StatusBadRequest
		case services.ErrorUnauthorized:
			status = http.StatusUnauthorized
		case services.ErrorForbidden:
			status = http.StatusForbidden
		case services.ErrorNotFound:
			status = http.StatusNotFound
		case services.ErrorConflict:
			status = http.StatusConflict
		case services.ErrorUnavailable:
			status = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

// POST /submit — the lead submission endpoint. Unauthenticated by design;
// the privileged store credential lives on this server, never in the browser.
func (rt *Router) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req services.SubmitRequest
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid payload: " + err.Error()})
		return
	}
	result, err := rt.submissions.Submit(r.Context(), &req)
	if err != nil {
		log.Printf("submit error: %v", err)
		if _, ok := services.AsServiceError(err); ok {
			writeError(w, err)
			return
		}
		// Persistence failures surface to the caller with the underlying
		// message; the client shows a generic failure and may resubmit.
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"ok": true, "respondent_id": result.RespondentID})
}

// POST /api/admin/login
func (rt *Router) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	result, err := rt.auth.Login(req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": result.Token, "email": result.Email})
}

// GET /api/leads?limit=n
func (rt *Router) handleLeads(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	leads, err := rt.leads.ListLeads(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"leads": leads, "count": len(leads)})
}

// GET /api/leads/export — long-format CSV, one row per answered question.
func (rt *Router) handleLeadsExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	b, err := rt.leads.ExportCSV(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=leads.csv")
	_, _ = w.Write(b)
}
