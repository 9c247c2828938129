package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"face-attendance-go/internal/api/middleware"
	"face-attendance-go/internal/core/attendance"
	"face-attendance-go/internal/core/enrollment"
	"face-attendance-go/internal/db/repository"
	"face-attendance-go/internal/integrations/opencv"
	"face-attendance-go/internal/server/sse"
	"face-attendance-go/internal/utils"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// DefaultMaxUpload begrenzt die Größe hochgeladener Bilder
const DefaultMaxUpload = 10 << 20

// Enrollment ist die Registrierungsschnittstelle der API
type Enrollment interface {
	Enroll(ctx context.Context, req enrollment.Request) (*enrollment.Result, error)
	Delete(id string) error
}

// Dependencies sind die Dienste, auf die die Handler zugreifen
type Dependencies struct {
	Repo       repository.Repository
	Enrollment Enrollment
	Pool       utils.PoolStats
	Manager    *attendance.Manager
	Live       *attendance.LiveSession
	Hub        *sse.Hub
	Debug      *opencv.DebugService
	MaxUpload  int64
}

// APIHandler behandelt API-Anfragen für das System
type APIHandler struct {
	repo       repository.Repository
	enrollment Enrollment
	pool       utils.PoolStats
	manager    *attendance.Manager
	live       *attendance.LiveSession
	hub        *sse.Hub
	debug      *opencv.DebugService
	maxUpload  int64
	started    time.Time
}

// NewAPIHandler erstellt einen neuen API-Handler
func NewAPIHandler(deps Dependencies) *APIHandler {
	maxUpload := deps.MaxUpload
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUpload
	}
	return &APIHandler{
		repo:       deps.Repo,
		enrollment: deps.Enrollment,
		pool:       deps.Pool,
		manager:    deps.Manager,
		live:       deps.Live,
		hub:        deps.Hub,
		debug:      deps.Debug,
		maxUpload:  maxUpload,
		started:    time.Now(),
	}
}

// RegisterRoutes registriert alle API-Routen
func (h *APIHandler) RegisterRoutes(router *gin.RouterGroup) {
	// Studenten
	router.POST("/students", h.EnrollStudent)
	router.GET("/students", h.ListStudents)
	router.GET("/students/exists/:roll", h.StudentExists)
	router.GET("/students/:id", h.GetStudent)
	router.DELETE("/students/:id", h.DeleteStudent)
	router.GET("/students/:id/upload-payload", h.UploadPayload)

	// Klassen
	router.POST("/classes", h.AddClass)
	router.GET("/classes", h.ListClasses)
	router.GET("/classes/active", h.ActiveClasses)
	router.GET("/classes/dates", h.ClassesWithDates)
	router.DELETE("/classes/:id", h.DeleteClass)

	// Anwesenheit
	router.GET("/attendance/report", h.AttendanceReport)
	router.GET("/attendance/session", h.SessionState)
	router.POST("/attendance/:class/select", h.SelectClass)
	router.POST("/attendance/:class/recognize", h.Recognize)
	router.POST("/attendance/:class/mark", h.Mark)
	router.POST("/attendance/:class/manual", h.Manual)
	router.POST("/attendance/:class/out", h.MarkOut)
	router.POST("/attendance/:class/reset", h.ResetSession)
	router.GET("/attendance/:class/daily", h.DailyAttendance)

	// System
	router.GET("/status", h.GetStatus)
	router.GET("/events", h.Events)
	router.GET("/system/stats", h.SystemStats)

	if h.debug != nil {
		h.debug.RegisterRoutes(router)
	}
}

// errorMapping ordnet Fehler einem Statuscode und einer Nachricht zu
var errorMapping = []struct {
	err    error
	status int
	id     string
}{
	{enrollment.ErrMissingFields, http.StatusBadRequest, "error.missing_fields"},
	{opencv.ErrInvalidImage, http.StatusBadRequest, "error.invalid_image"},
	{opencv.ErrNoFaceDetected, http.StatusUnprocessableEntity, "error.no_face"},
	{opencv.ErrDuplicateIdentity, http.StatusConflict, "error.duplicate_identity"},
	{repository.ErrDuplicateStudent, http.StatusConflict, "error.duplicate_student"},
	{repository.ErrStudentNotFound, http.StatusNotFound, "error.student_not_found"},
	{attendance.ErrStudentNotFound, http.StatusNotFound, "error.student_not_found"},
	{repository.ErrClassNotFound, http.StatusNotFound, "error.class_not_found"},
	{attendance.ErrClassNotFound, http.StatusNotFound, "error.class_not_found"},
	{repository.ErrClassExists, http.StatusConflict, "error.duplicate_class"},
	{repository.ErrRecordNotFound, http.StatusNotFound, "error.record_not_found"},
	{attendance.ErrNoClassToday, http.StatusUnprocessableEntity, "error.no_class_today"},
	{attendance.ErrInvalidStatus, http.StatusBadRequest, "error.invalid_status"},
	{attendance.ErrNoActiveClass, http.StatusConflict, "error.no_active_class"},
	{opencv.ErrModelNotTrained, http.StatusConflict, "error.model_not_trained"},
	{opencv.ErrNoTrainingData, http.StatusUnprocessableEntity, "error.no_training_data"},
	{enrollment.ErrPoolClosed, http.StatusServiceUnavailable, "error.busy"},
	{context.Canceled, http.StatusRequestTimeout, "error.invalid_request"},
	{context.DeadlineExceeded, http.StatusRequestTimeout, "error.invalid_request"},
}

// classifyError liefert Statuscode und Nachrichtenschlüssel für err
func classifyError(err error) (int, string) {
	for _, m := range errorMapping {
		if errors.Is(err, m.err) {
			return m.status, m.id
		}
	}
	return http.StatusInternalServerError, "error.internal"
}

// respondError sendet einen lokalisierten Fehler
func respondError(c *gin.Context, err error, data map[string]interface{}) {
	status, id := classifyError(err)
	if status >= http.StatusInternalServerError {
		log.Errorf("%s %s failed: %v", c.Request.Method, c.FullPath(), err)
	} else {
		log.Debugf("%s %s rejected: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(status, gin.H{
		"error":  middleware.T(c, id, data),
		"code":   id,
		"detail": err.Error(),
	})
}

// respondMessage sendet eine lokalisierte Fehlermeldung ohne zugrunde liegenden Fehler
func respondMessage(c *gin.Context, status int, id string) {
	c.JSON(status, gin.H{"error": middleware.T(c, id, nil), "code": id})
}

// readImage liest das hochgeladene Bild aus dem Formularfeld "image"
func (h *APIHandler) readImage(c *gin.Context) ([]byte, error) {
	file, _, err := c.Request.FormFile("image")
	if err != nil {
		return nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxUpload+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	if int64(len(data)) > h.maxUpload {
		return nil, fmt.Errorf("image exceeds %d bytes", h.maxUpload)
	}
	if len(data) == 0 {
		return nil, errors.New("empty image")
	}
	return data, nil
}

// GetStatus gibt den Systemstatus zurück
func (h *APIHandler) GetStatus(c *gin.Context) {
	status := gin.H{
		"status":    "ok",
		"timestamp": time.Now(),
		"uptime":    time.Since(h.started).Round(time.Second).String(),
	}
	if h.live != nil {
		class, students := h.live.ActiveClass()
		status["session"] = gin.H{"class": class, "students": students}
	}
	c.JSON(http.StatusOK, status)
}
