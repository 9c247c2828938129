package attendance

import (
	"fmt"
	"math"
	"time"

	"face-attendance-go/internal/core/models"
	"face-attendance-go/internal/util/timezone"
)

// DefaultLateWindow ist die Zeitspanne nach Beginn, in der noch "late" vergeben wird
const DefaultLateWindow = 60

// NotCalculated wird als Dauer angezeigt, solange Ein- oder Ausgangszeit fehlt
const NotCalculated = "Not calculated"

// StatusByTime bestimmt den Status aus der Minutendifferenz zwischen now und Beginn.
// diff <= 0 ist present, diff <= lateWindow ist late, alles danach absent.
func StatusByTime(now time.Time, start string, lateWindow int) (models.AttendanceStatus, error) {
	startMinutes, err := models.ClockMinutes(start)
	if err != nil {
		return models.StatusAbsent, fmt.Errorf("invalid class start time %q: %w", start, err)
	}
	if lateWindow < 0 {
		lateWindow = DefaultLateWindow
	}

	diff := now.Hour()*60 + now.Minute() - startMinutes
	switch {
	case diff <= 0:
		return models.StatusPresent, nil
	case diff <= lateWindow:
		return models.StatusLate, nil
	default:
		return models.StatusAbsent, nil
	}
}

// StatusForClass ist StatusByTime für eine Klasse. Eine unbekannte Klasse oder
// eine ungültige Startzeit ergibt absent.
func StatusForClass(class *models.Class, now time.Time, lateWindow int) models.AttendanceStatus {
	if class == nil {
		return models.StatusAbsent
	}
	status, err := StatusByTime(now, class.StartTime, lateWindow)
	if err != nil {
		return models.StatusAbsent
	}
	return status
}

// Duration berechnet die Anwesenheitsdauer zwischen in und out als H:MM:SS
func Duration(in, out string) string {
	if in == "" || out == "" {
		return NotCalculated
	}
	start, err := time.Parse(timezone.ClockLayout, in)
	if err != nil {
		return "Error"
	}
	end, err := time.Parse(timezone.ClockLayout, out)
	if err != nil {
		return "Error"
	}
	d := end.Sub(start)
	if d < 0 {
		return "Error"
	}

	secs := int(d.Seconds())
	return fmt.Sprintf("%d:%02d:%02d", secs/3600, secs/60%60, secs%60)
}

// Summarize erstellt die Tageszusammenfassung aus geschriebenen Datensätzen.
// Alles außer present zählt als abwesend.
func Summarize(className, date string, records []models.AttendanceRecord) models.DailySummary {
	summary := models.DailySummary{Class: className, Date: date, Total: len(records)}
	for _, r := range records {
		if r.Status == models.StatusPresent {
			summary.Present++
		}
	}
	summary.Absent = summary.Total - summary.Present
	if summary.Total > 0 {
		pct := float64(summary.Present) / float64(summary.Total) * 100
		summary.Percentage = math.Round(pct*100) / 100
	}
	return summary
}
