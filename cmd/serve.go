package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/invoice-audit/internal/model"
	"github.com/sells-group/invoice-audit/internal/pipeline"
	"github.com/sells-group/invoice-audit/internal/watcher"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the audit HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		env, err := buildEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(env),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func newRouter(env *env) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "Invoice Audit System API"})
	})

	r.Post("/api/upload", env.handleUpload)
	r.Get("/api/reports", env.handleReports)
	r.Post("/api/action", env.handleAction)
	r.Post("/api/rerun", env.handleRerun)
	r.Post("/api/chat", env.handleChat)
	r.Get("/api/incoming-files", env.handleIncomingFiles)
	r.Post("/api/process-existing", env.handleProcessExisting)
	r.Get("/api/download/{filename}", env.handleDownload)

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// runSummary is the wire shape returned after a pipeline pass.
type runSummary struct {
	InvoiceID     string   `json:"invoice_id,omitempty"`
	FileName      string   `json:"file_name"`
	Status        string   `json:"status"`
	IsValid       bool     `json:"is_valid"`
	Discrepancies []string `json:"discrepancies"`
	Error         string   `json:"error,omitempty"`
}

func summarize(state *pipeline.State) runSummary {
	s := runSummary{
		FileName:      state.FileName,
		Status:        string(state.Status),
		IsValid:       state.IsValid,
		Discrepancies: state.Discrepancies,
		Error:         state.ErrorMessage,
	}
	if state.Report != nil {
		s.InvoiceID = state.Report.InvoiceID
	}
	return s
}

// POST /api/upload: multipart upload into the incoming directory, then a
// full audit of the uploaded document.
func (e *env) handleUpload(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	if !watcher.Eligible(name) {
		writeError(w, http.StatusBadRequest, "unsupported file type")
		return
	}

	if err := os.MkdirAll(cfg.Paths.IncomingDir, 0o755); err != nil {
		writeError(w, http.StatusInternalServerError, "save upload")
		return
	}
	dst, err := os.Create(filepath.Join(cfg.Paths.IncomingDir, name))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "save upload")
		return
	}
	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		writeError(w, http.StatusInternalServerError, "save upload")
		return
	}
	dst.Close()

	state, err := e.Pipeline.Run(r.Context(), pipeline.Request{FileName: name})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	e.finishRun(r.Context(), state)

	writeJSON(w, http.StatusOK, summarize(state))
}

// GET /api/reports: every audit record, newest first.
func (e *env) handleReports(w http.ResponseWriter, _ *http.Request) {
	records, err := e.Reports.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// POST /api/action: a human approve/reject decision on a queued report.
func (e *env) handleAction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		InvoiceID string `json:"invoice_id"`
		Action    string `json:"action"`
		Notes     string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.InvoiceID == "" || req.Action == "" {
		writeError(w, http.StatusBadRequest, "invoice_id and action are required")
		return
	}

	record, err := e.Reports.Apply(req.InvoiceID, req.Action, req.Notes)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// POST /api/rerun: re-validate with human-corrected data. A passing rerun
// flips the stored report to Approved.
func (e *env) handleRerun(w http.ResponseWriter, r *http.Request) {
	var req struct {
		InvoiceID   string               `json:"invoice_id"`
		UpdatedData *model.InvoiceRecord `json:"updated_data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.InvoiceID == "" || req.UpdatedData == nil {
		writeError(w, http.StatusBadRequest, "invoice_id and updated_data are required")
		return
	}

	state, err := e.Pipeline.Run(r.Context(), pipeline.Request{
		FileName:  req.InvoiceID,
		IsRerun:   true,
		Corrected: req.UpdatedData,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if state.IsValid {
		if _, err := e.Reports.MarkApproved(req.InvoiceID, &model.ReportData{
			Invoice:          req.UpdatedData,
			ValidationStatus: model.ReportStatusPass,
		}); err != nil {
			zap.L().Warn("report not updated", zap.String("invoice", req.InvoiceID), zap.Error(err))
		}
	}

	writeJSON(w, http.StatusOK, summarize(state))
}

// POST /api/chat: question answering over the indexed audits.
func (e *env) handleChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Question string   `json:"question"`
		History  []string `json:"history"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	answer, err := e.QA.Ask(r.Context(), req.Question, req.History)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"answer": answer})
}

type incomingFile struct {
	Name   string `json:"name"`
	SizeKB int64  `json:"size_kb"`
	Date   string `json:"date"`
}

// GET /api/incoming-files: eligible documents waiting in the incoming
// directory, newest first.
func (e *env) handleIncomingFiles(w http.ResponseWriter, _ *http.Request) {
	names, err := e.Watcher.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	type entry struct {
		file incomingFile
		mod  time.Time
	}
	entries := make([]entry, 0, len(names))
	for _, name := range names {
		info, err := os.Stat(filepath.Join(cfg.Paths.IncomingDir, name))
		if err != nil {
			continue
		}
		entries = append(entries, entry{
			file: incomingFile{
				Name:   name,
				SizeKB: info.Size() / 1024,
				Date:   info.ModTime().Format(time.RFC3339),
			},
			mod: info.ModTime(),
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].mod.After(entries[j].mod) })

	files := make([]incomingFile, len(entries))
	for i, en := range entries {
		files[i] = en.file
	}
	writeJSON(w, http.StatusOK, files)
}

// POST /api/process-existing: audit a document already sitting in the
// incoming directory.
func (e *env) handleProcessExisting(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Filename string `json:"filename"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	name := filepath.Base(req.Filename)
	if name == "" || name == "." {
		writeError(w, http.StatusBadRequest, "filename is required")
		return
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.IncomingDir, name)); err != nil {
		writeError(w, http.StatusNotFound, "file not found")
		return
	}

	state, err := e.Pipeline.Run(r.Context(), pipeline.Request{FileName: name})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	e.finishRun(r.Context(), state)

	writeJSON(w, http.StatusOK, summarize(state))
}

// GET /api/download/{filename}: serve a rendered HTML report.
func (e *env) handleDownload(w http.ResponseWriter, r *http.Request) {
	name := filepath.Base(chi.URLParam(r, "filename"))
	path := e.Reports.HTMLPath(name)
	if _, err := os.Stat(path); err != nil {
		writeError(w, http.StatusNotFound, "report not found")
		return
	}
	http.ServeFile(w, r, path)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
