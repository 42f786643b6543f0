package interfaces

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"school-soa/internal/audit"
	"school-soa/internal/auth"
	"school-soa/internal/billing/application"
	billing "school-soa/internal/billing/domain"
	"school-soa/internal/observability/metrics"
)

const (
	enrollmentsPrefix = "/api/v1/enrollments/"
	bulkPath          = "/api/v1/statements/bulk"
	filesPath         = "/api/v1/statements/files"
)

// FileLister returns generated file history for an enrollment.
type FileLister interface {
	ListByEnrollment(ctx context.Context, enrollmentID string) ([]application.StatementFile, error)
}

// StatementHandler handles statement APIs.
type StatementHandler struct {
	service     *application.StatementService
	bulk        application.BulkTrigger
	files       FileLister
	auditLogger audit.Logger
	logger      *zap.Logger
}

// NewStatementHandler constructs a handler. bulk, files and auditLogger are optional.
func NewStatementHandler(service *application.StatementService, bulk application.BulkTrigger, files FileLister, auditLogger audit.Logger, logger *zap.Logger) (*StatementHandler, error) {
	if service == nil {
		return nil, errors.New("statement handler: nil service")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatementHandler{service: service, bulk: bulk, files: files, auditLogger: auditLogger, logger: logger}, nil
}

// ServeHTTP handles /api/v1/enrollments/{id}/statement* and /api/v1/statements/*.
func (h *StatementHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	switch {
	case path == bulkPath && r.Method == http.MethodPost:
		h.handleBulk(w, r)
		return
	case path == filesPath && r.Method == http.MethodGet:
		h.handleFiles(w, r)
		return
	case strings.HasPrefix(path, enrollmentsPrefix):
		parts := strings.Split(strings.TrimPrefix(path, enrollmentsPrefix), "/")
		if len(parts) >= 2 && parts[0] != "" && parts[1] == "statement" {
			h.handleEnrollment(w, r, parts[0], parts[2:])
			return
		}
	}
	w.WriteHeader(http.StatusNotFound)
}

func (h *StatementHandler) handleEnrollment(w http.ResponseWriter, r *http.Request, enrollmentID string, rest []string) {
	if len(rest) == 0 && r.Method == http.MethodGet {
		h.handleGet(w, r, enrollmentID)
		return
	}
	if len(rest) == 1 {
		switch rest[0] {
		case "export.pdf":
			if r.Method == http.MethodGet {
				h.handleExport(w, r, enrollmentID, "pdf")
				return
			}
		case "export.xlsx":
			if r.Method == http.MethodGet {
				h.handleExport(w, r, enrollmentID, "xlsx")
				return
			}
		case "generate":
			if r.Method == http.MethodPost {
				h.handleGenerate(w, r, enrollmentID)
				return
			}
		}
	}
	w.WriteHeader(http.StatusNotFound)
}

type statementResponse struct {
	Enrollment  *application.Enrollment       `json:"enrollment"`
	MonthLabels [billing.AcademicMonths]string `json:"month_labels"`
	Statement   billing.Statement              `json:"statement"`
}

func (h *StatementHandler) handleGet(w http.ResponseWriter, r *http.Request, enrollmentID string) {
	enrollment, err := h.authorizedEnrollment(r, enrollmentID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	stmt := h.service.Statement(enrollment)
	metrics.IncStatementCompute(metrics.ResultSuccess)
	writeJSON(w, http.StatusOK, statementResponse{Enrollment: enrollment, MonthLabels: billing.MonthLabels, Statement: stmt})
	h.logAudit(r, audit.ActionStatementView, enrollmentID, enrollment.SchoolYearID, nil)
}

func (h *StatementHandler) handleExport(w http.ResponseWriter, r *http.Request, enrollmentID, format string) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveStatementExport(format, result, time.Since(start))
	}()

	enrollment, err := h.authorizedEnrollment(r, enrollmentID)
	if err != nil {
		result = metrics.ResultError
		h.respondServiceError(w, err)
		return
	}
	stmt := h.service.Statement(enrollment)

	var data []byte
	contentType := "application/pdf"
	if format == "xlsx" {
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		data, err = BuildStatementXLSX(enrollment, stmt)
	} else {
		data, err = BuildStatementPDF(enrollment, stmt)
	}
	if err != nil {
		result = metrics.ResultError
		h.logger.Error("statement export failed", zap.String("enrollment_id", enrollmentID), zap.String("format", format), zap.Error(err))
		http.Error(w, "export "+format+" error", http.StatusInternalServerError)
		return
	}
	fileName := strings.TrimSuffix(application.StatementFileName(enrollment, stmt.AsOf), ".pdf") + "." + format
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+fileName+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
	h.logAudit(r, audit.ActionStatementExport, enrollmentID, enrollment.SchoolYearID, map[string]any{"format": format})
}

func (h *StatementHandler) handleGenerate(w http.ResponseWriter, r *http.Request, enrollmentID string) {
	enrollment, err := h.authorizedEnrollment(r, enrollmentID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	file, err := h.service.Generate(r.Context(), enrollment)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, file)
	h.logAudit(r, audit.ActionStatementGenerate, enrollmentID, enrollment.SchoolYearID, map[string]any{"file_name": file.FileName})
}

func (h *StatementHandler) handleBulk(w http.ResponseWriter, r *http.Request) {
	if h.bulk == nil {
		http.Error(w, "bulk generation disabled", http.StatusServiceUnavailable)
		return
	}
	var req struct {
		SchoolYearID string `json:"school_year_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.SchoolYearID) == "" {
		http.Error(w, "school_year_id required", http.StatusBadRequest)
		return
	}
	result, err := h.bulk.Run(r.Context(), req.SchoolYearID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
	h.logAudit(r, audit.ActionStatementBulk, "", req.SchoolYearID, map[string]any{
		"run_id":    result.RunID,
		"succeeded": result.Succeeded,
		"failed":    result.Failed,
		"completed": result.Completed,
	})
}

func (h *StatementHandler) handleFiles(w http.ResponseWriter, r *http.Request) {
	if h.files == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	enrollmentID := r.URL.Query().Get("enrollment_id")
	if enrollmentID == "" {
		http.Error(w, "enrollment_id required", http.StatusBadRequest)
		return
	}
	list, err := h.files.ListByEnrollment(r.Context(), enrollmentID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	if list == nil {
		list = []application.StatementFile{}
	}
	writeJSON(w, http.StatusOK, list)
}

// authorizedEnrollment loads the enrollment and checks the caller may see it.
func (h *StatementHandler) authorizedEnrollment(r *http.Request, enrollmentID string) (*application.Enrollment, error) {
	enrollment, err := h.service.Enrollment(r.Context(), enrollmentID)
	if err != nil {
		return nil, err
	}
	if err := auth.EnsureStudentAccess(r.Context(), enrollment.StudentID); err != nil {
		return nil, err
	}
	return enrollment, nil
}

func (h *StatementHandler) logAudit(r *http.Request, action audit.Action, enrollmentID, schoolYearID string, meta map[string]any) {
	if h.auditLogger == nil {
		return
	}
	entry := audit.FromRequest(r, action)
	if id, ok := auth.IdentityFromContext(r.Context()); ok {
		entry.SchoolID = id.SchoolID
		entry.Actor = id.Subject
		entry.Role = string(id.Role)
	}
	entry.EnrollmentID = enrollmentID
	entry.SchoolYearID = schoolYearID
	if meta != nil {
		if err := entry.SetMetadata(meta); err != nil {
			h.logger.Warn("audit metadata dropped", zap.String("action", string(action)), zap.Error(err))
		}
	}
	if err := h.auditLogger.Log(r.Context(), entry); err != nil {
		h.logger.Warn("audit log failed", zap.String("action", string(action)), zap.Error(err))
	}
}

func (h *StatementHandler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		return
	case errors.Is(err, billing.ErrEnrollmentNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, auth.ErrForbidden):
		http.Error(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, context.Canceled):
		http.Error(w, "canceled", http.StatusRequestTimeout)
	default:
		h.logger.Error("statement request failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
