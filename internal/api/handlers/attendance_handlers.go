package handlers

import (
	"net/http"
	"strconv"

	"face-attendance-go/internal/api/middleware"
	"face-attendance-go/internal/core/attendance"
	"face-attendance-go/internal/core/models"
	"face-attendance-go/internal/util/timezone"

	"github.com/gin-gonic/gin"
)

// ManualRequest ist der Inhalt von POST /attendance/:class/manual
type ManualRequest struct {
	StudentID string                  `json:"student_id" binding:"required"`
	Status    models.AttendanceStatus `json:"status" binding:"required"`
}

// OutRequest ist der Inhalt von POST /attendance/:class/out
type OutRequest struct {
	StudentID string `json:"student_id" binding:"required"`
}

// SelectClass trainiert den Erkenner auf der Klassenliste und setzt die Sitzung zurück
func (h *APIHandler) SelectClass(c *gin.Context) {
	class := c.Param("class")
	n, err := h.live.SelectClass(class)
	if err != nil {
		respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":  middleware.T(c, "msg.class_selected", map[string]interface{}{"Name": class, "Count": n}),
		"class":    class,
		"students": n,
	})
}

// ensureSelected wählt die Klasse aus der URL aus, falls eine andere aktiv ist
func (h *APIHandler) ensureSelected(c *gin.Context) (string, bool) {
	class := c.Param("class")
	if active, _ := h.live.ActiveClass(); active == class {
		return class, true
	}
	if _, err := h.live.SelectClass(class); err != nil {
		respondError(c, err, nil)
		return "", false
	}
	return class, true
}

// requireSingle liest das Formularfeld "single"
func requireSingle(c *gin.Context) bool {
	single, err := strconv.ParseBool(c.DefaultPostForm("single", "false"))
	return err == nil && single
}

// Recognize erkennt Gesichter in einem Bild ohne Anwesenheit zu schreiben
func (h *APIHandler) Recognize(c *gin.Context) {
	image, err := h.readImage(c)
	if err != nil {
		respondMessage(c, http.StatusBadRequest, "error.no_image")
		return
	}
	if _, ok := h.ensureSelected(c); !ok {
		return
	}

	outcome, err := h.live.Recognize(image, requireSingle(c))
	if err != nil {
		respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

// Mark erkennt Gesichter und schreibt die Anwesenheit der ganzen Klasse
func (h *APIHandler) Mark(c *gin.Context) {
	image, err := h.readImage(c)
	if err != nil {
		respondMessage(c, http.StatusBadRequest, "error.no_image")
		return
	}
	if _, ok := h.ensureSelected(c); !ok {
		return
	}

	capture, err := h.live.Capture(c.Request.Context(), image, requireSingle(c))
	if err != nil {
		respondError(c, err, nil)
		return
	}

	resp := gin.H{"outcome": capture.Outcome}
	if capture.Pass != nil {
		resp["pass"] = capture.Pass
		resp["message"] = middleware.T(c, "msg.marked", map[string]interface{}{"Count": len(capture.Pass.Records)})
	}
	c.JSON(http.StatusOK, resp)
}

// Manual setzt den Status eines Studenten von Hand
func (h *APIHandler) Manual(c *gin.Context) {
	var req ManualRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondMessage(c, http.StatusBadRequest, "error.invalid_request")
		return
	}

	record, written, err := h.manager.Manual(c.Param("class"), req.StudentID, req.Status)
	if err != nil {
		respondError(c, err, nil)
		return
	}

	msg := "msg.manual_written"
	if !written {
		msg = "msg.manual_kept"
	}
	c.JSON(http.StatusOK, gin.H{
		"message": middleware.T(c, msg, nil),
		"record":  record,
		"written": written,
	})
}

// MarkOut setzt die Gehzeit eines Studenten auf jetzt
func (h *APIHandler) MarkOut(c *gin.Context) {
	var req OutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondMessage(c, http.StatusBadRequest, "error.invalid_request")
		return
	}

	record, err := h.manager.MarkOut(c.Param("class"), req.StudentID)
	if err != nil {
		respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":  middleware.T(c, "msg.out_time", nil),
		"record":   record,
		"duration": attendance.Duration(record.InTime, record.OutTime),
	})
}

// ResetSession leert die Erkennungsmenge der Klasse für heute
func (h *APIHandler) ResetSession(c *gin.Context) {
	class := c.Param("class")
	existed := h.manager.ResetSession(class)

	msg := "msg.session_reset"
	if !existed {
		msg = "msg.session_empty"
	}
	c.JSON(http.StatusOK, gin.H{
		"message": middleware.T(c, msg, map[string]interface{}{"Name": class}),
		"reset":   existed,
	})
}

// SessionState zeigt die ausgewählte Klasse und den letzten Durchlauf
func (h *APIHandler) SessionState(c *gin.Context) {
	class, students := h.live.ActiveClass()
	resp := gin.H{"class": class, "students": students, "date": h.manager.Today()}
	if class != "" {
		resp["detected"] = h.manager.Session().Len(class, h.manager.Today())
	}
	if last := h.live.LastPass(); last != nil {
		resp["last_pass"] = last
	}
	c.JSON(http.StatusOK, resp)
}

// DailyAttendance gibt die Anwesenheit einer Klasse an einem Tag zurück (?date=YYYY-MM-DD)
func (h *APIHandler) DailyAttendance(c *gin.Context) {
	class := c.Param("class")
	date := c.DefaultQuery("date", h.manager.Today())
	if _, err := timezone.ParseDate(date); err != nil {
		respondMessage(c, http.StatusBadRequest, "error.invalid_date")
		return
	}

	entries, err := h.repo.DailyClassAttendance(class, date)
	if err != nil {
		respondError(c, err, nil)
		return
	}

	records := make([]models.AttendanceRecord, 0, len(entries))
	for _, e := range entries {
		records = append(records, models.AttendanceRecord{Status: e.Status})
	}

	c.JSON(http.StatusOK, gin.H{
		"class":   class,
		"date":    date,
		"entries": entries,
		"summary": attendance.Summarize(class, date, records),
	})
}

// AttendanceReport erstellt einen Bericht über einen Zeitraum (?from=&to=&class=)
func (h *APIHandler) AttendanceReport(c *gin.Context) {
	today := h.manager.Today()
	from, err := timezone.ParseDate(c.DefaultQuery("from", today))
	if err != nil {
		respondMessage(c, http.StatusBadRequest, "error.invalid_date")
		return
	}
	to, err := timezone.ParseDate(c.DefaultQuery("to", today))
	if err != nil || to.Before(from) {
		respondMessage(c, http.StatusBadRequest, "error.invalid_date")
		return
	}

	rows, err := h.repo.AttendanceReport(from, to, c.Query("class"))
	if err != nil {
		respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"from":  timezone.Date(from),
		"to":    timezone.Date(to),
		"count": len(rows),
		"rows":  rows,
	})
}
