package handlers

import (
	"net/http"
	"strings"

	"face-attendance-go/internal/api/middleware"
	"face-attendance-go/internal/core/models"
	"face-attendance-go/internal/db/repository"

	"github.com/gin-gonic/gin"
)

// ClassRequest ist der Inhalt von POST /classes
type ClassRequest struct {
	Name        string   `json:"name" binding:"required"`
	Description string   `json:"description"`
	Days        []string `json:"days"`
	StartTime   string   `json:"start_time"`
	EndTime     string   `json:"end_time"`
}

// Validate prüft Uhrzeiten und Reihenfolge
func (r *ClassRequest) Validate() bool {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return false
	}
	if r.StartTime == "" && r.EndTime == "" {
		return true
	}
	start, err := models.ClockMinutes(r.StartTime)
	if err != nil {
		return false
	}
	end, err := models.ClockMinutes(r.EndTime)
	if err != nil {
		return false
	}
	return start < end
}

// AddClass legt eine Klasse an. Ohne Stundenplan gilt Mo-Fr 09:00-10:00.
func (h *APIHandler) AddClass(c *gin.Context) {
	var req ClassRequest
	if err := c.ShouldBindJSON(&req); err != nil || !req.Validate() {
		respondMessage(c, http.StatusBadRequest, "error.invalid_request")
		return
	}

	class := &models.Class{
		Name:        req.Name,
		Description: req.Description,
		Days:        req.Days,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
	}
	if _, err := h.repo.AddClass(class); err != nil {
		respondError(c, err, nil)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": middleware.T(c, "msg.class_added", map[string]interface{}{"Name": class.Name}),
		"class":   class,
	})
}

// ListClasses gibt alle Klassen zurück
func (h *APIHandler) ListClasses(c *gin.Context) {
	classes, err := h.repo.ListClasses()
	if err != nil {
		respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, classes)
}

// DeleteClass löscht eine Klasse. Ist sie gerade ausgewählt, verwirft die
// Live-Sitzung die Auswahl bei der nächsten Erkennung.
func (h *APIHandler) DeleteClass(c *gin.Context) {
	class, err := h.repo.GetClass(c.Param("id"))
	if err != nil {
		respondError(c, err, nil)
		return
	}
	if class == nil {
		respondError(c, repository.ErrClassNotFound, nil)
		return
	}
	if err := h.repo.DeleteClass(class.ID); err != nil {
		respondError(c, err, nil)
		return
	}
	if h.live != nil {
		h.live.Invalidate([]string{class.Name})
	}
	c.JSON(http.StatusOK, gin.H{"message": middleware.T(c, "msg.class_deleted", nil)})
}

// ActiveClasses gibt die Klassen zurück, die gerade laut Stundenplan laufen
func (h *APIHandler) ActiveClasses(c *gin.Context) {
	classes, err := h.repo.ActiveClasses(h.manager.Now())
	if err != nil {
		respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, classes)
}

// ClassesWithDates gibt alle Klassen mit ihren Erfassungstagen zurück
func (h *APIHandler) ClassesWithDates(c *gin.Context) {
	classes, err := h.repo.ClassesWithDates()
	if err != nil {
		respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, classes)
}
