package handlers

import (
	"errors"
	"net/http"
	"strings"

	"face-attendance-go/internal/api/middleware"
	"face-attendance-go/internal/core/enrollment"
	"face-attendance-go/internal/core/models"
	"face-attendance-go/internal/integrations/opencv"
	"face-attendance-go/internal/util/timezone"

	"github.com/gin-gonic/gin"
)

// UploadPayloadType kennzeichnet Upload-Links für Studentenfotos
const UploadPayloadType = "student_upload"

// EnrollStudent registriert einen Studenten aus einem Multipart-Formular
// (name, roll_number, classes, image)
func (h *APIHandler) EnrollStudent(c *gin.Context) {
	image, err := h.readImage(c)
	if err != nil {
		respondMessage(c, http.StatusBadRequest, "error.no_image")
		return
	}

	req := enrollment.Request{
		Name:       c.PostForm("name"),
		RollNumber: c.PostForm("roll_number"),
		Classes:    splitClasses(c.PostFormArray("classes")),
		Image:      image,
	}

	result, err := h.enrollment.Enroll(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, opencv.ErrDuplicateIdentity) && result != nil {
			status, id := classifyError(err)
			c.JSON(status, gin.H{
				"error":     middleware.T(c, id, map[string]interface{}{"Name": result.Screen.BestName}),
				"code":      id,
				"screening": result.Screen,
			})
			return
		}
		respondError(c, err, nil)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": middleware.T(c, "msg.enrolled", map[string]interface{}{
			"Name":  result.Student.Name,
			"Count": len(result.Student.ImagePaths),
		}),
		"student":   result.Student,
		"screening": result.Screen,
	})
}

// splitClasses erlaubt sowohl wiederholte Felder als auch kommagetrennte Listen
func splitClasses(values []string) []string {
	classes := make([]string, 0, len(values))
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				classes = append(classes, part)
			}
		}
	}
	return classes
}

// ListStudents gibt alle registrierten Studenten zurück
func (h *APIHandler) ListStudents(c *gin.Context) {
	students, err := h.repo.ListStudents()
	if err != nil {
		respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, students)
}

// GetStudent gibt einen Studenten zurück
func (h *APIHandler) GetStudent(c *gin.Context) {
	student, err := h.repo.GetStudent(c.Param("id"))
	if err != nil {
		respondError(c, err, nil)
		return
	}
	if student == nil {
		respondMessage(c, http.StatusNotFound, "error.student_not_found")
		return
	}
	c.JSON(http.StatusOK, student)
}

// DeleteStudent löscht einen Studenten, seine Anwesenheit und seinen Korpus
func (h *APIHandler) DeleteStudent(c *gin.Context) {
	if err := h.enrollment.Delete(c.Param("id")); err != nil {
		respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": middleware.T(c, "msg.student_deleted", nil)})
}

// StudentExists prüft, ob eine Matrikelnummer bereits mit Bildern registriert ist
func (h *APIHandler) StudentExists(c *gin.Context) {
	exists, id, err := h.repo.StudentExists(c.Param("roll"))
	if err != nil {
		respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"exists": exists, "student_id": id})
}

// UploadPayload liefert den Inhalt eines Upload-Links für einen Studenten
func (h *APIHandler) UploadPayload(c *gin.Context) {
	student, err := h.repo.GetStudent(c.Param("id"))
	if err != nil {
		respondError(c, err, nil)
		return
	}
	if student == nil {
		respondMessage(c, http.StatusNotFound, "error.student_not_found")
		return
	}
	c.JSON(http.StatusOK, models.StudentUploadPayload{
		Type:        UploadPayloadType,
		StudentID:   student.ID,
		Name:        student.Name,
		GeneratedAt: timezone.Now(),
	})
}
