package opencv

import (
	"context"
	"errors"

	"face-attendance-go/config"
	"face-attendance-go/internal/core/models"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// ErrDuplicateIdentity wird zurückgegeben, wenn das Gesicht bereits registriert ist
var ErrDuplicateIdentity = errors.New("face matches an already enrolled student")

// errStopScan beendet den Korpusdurchlauf nach einem Treffer
var errStopScan = errors.New("stop scan")

// Corpus liefert alle Studenten mit gespeicherten Gesichtsbildern
type Corpus interface {
	EachEnrolled(fn func(models.Student) error) error
}

// ScreenResult ist die Entscheidung der Duplikatprüfung
type ScreenResult struct {
	Duplicate     bool       `json:"duplicate"`
	BestStudentID string     `json:"best_student_id,omitempty"`
	BestName      string     `json:"best_name,omitempty"`
	BestScore     float64    `json:"best_score"`
	Best          Similarity `json:"best"`
	Comparisons   int        `json:"comparisons"`
	EarlyExit     bool       `json:"early_exit"`
}

// Screener prüft neue Gesichter gegen den vorhandenen Korpus
type Screener struct {
	detector *FaceDetector
	cfg      config.ScreeningConfig
	size     int
}

// NewScreener erstellt eine Duplikatprüfung
func NewScreener(detector *FaceDetector, cfg config.ScreeningConfig, faceSize int) *Screener {
	if cfg.ComparisonsPerStudent <= 0 {
		cfg.ComparisonsPerStudent = 20
	}
	if cfg.PairThreshold <= 0 {
		cfg.PairThreshold = 0.65
	}
	if cfg.FinalThreshold <= 0 {
		cfg.FinalThreshold = 0.55
	}
	if faceSize <= 0 {
		faceSize = DefaultFaceSize
	}
	return &Screener{detector: detector, cfg: cfg, size: faceSize}
}

// observe übernimmt einen Vergleich. Überschreitet ein Einzelmaß die Paarschwelle,
// gilt dieser Vergleich als Treffer und true beendet den Durchlauf.
func (r *ScreenResult) observe(sim Similarity, student models.Student, pairThreshold float64) bool {
	r.Comparisons++
	tripped := sim.Exceeds(pairThreshold)
	if !tripped && sim.Combined <= r.BestScore {
		return false
	}
	r.BestScore = sim.Combined
	r.Best = sim
	r.BestStudentID = student.ID
	r.BestName = student.Name
	if tripped {
		r.Duplicate = true
		r.EarlyExit = true
	}
	return tripped
}

// Screen sucht das größte Gesicht im Bild und prüft es gegen den Korpus.
// Ohne erkanntes Gesicht wird ErrNoFaceDetected zurückgegeben, die Registrierung muss dann blockiert werden.
func (s *Screener) Screen(ctx context.Context, img gocv.Mat, corpus Corpus) (ScreenResult, error) {
	face, _, err := s.detector.LargestFace(img)
	if err != nil {
		return ScreenResult{}, err
	}
	defer face.Close()
	return s.ScreenFace(ctx, face, corpus)
}

// ScreenFace prüft einen bereits ausgeschnittenen Graustufen-Gesichtsausschnitt
func (s *Screener) ScreenFace(ctx context.Context, face gocv.Mat, corpus Corpus) (ScreenResult, error) {
	if face.Empty() {
		return ScreenResult{}, ErrNoFaceDetected
	}
	candidate := Normalize(face, s.size)
	defer candidate.Close()

	var result ScreenResult
	result.BestScore = -1

	err := corpus.EachEnrolled(func(student models.Student) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		limit := len(student.ImagePaths)
		if limit > s.cfg.ComparisonsPerStudent {
			limit = s.cfg.ComparisonsPerStudent
		}

		for _, path := range student.ImagePaths[:limit] {
			sim, ok := s.compareFile(candidate, path)
			if !ok {
				continue
			}
			if result.observe(sim, student, s.cfg.PairThreshold) {
				return errStopScan
			}
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStopScan) {
		return ScreenResult{}, err
	}

	if !result.Duplicate && result.Comparisons > 0 && result.BestScore > s.cfg.FinalThreshold {
		result.Duplicate = true
	}
	if result.Comparisons == 0 {
		result.BestScore = 0
	}

	log.WithFields(log.Fields{
		"duplicate":   result.Duplicate,
		"best":        result.BestName,
		"score":       result.BestScore,
		"comparisons": result.Comparisons,
	}).Info("Identity screening finished")

	return result, nil
}

func (s *Screener) compareFile(candidate gocv.Mat, path string) (Similarity, bool) {
	stored := gocv.IMRead(path, gocv.IMReadGrayScale)
	defer stored.Close()
	if stored.Empty() {
		log.Debugf("Skipping unreadable corpus image %s", path)
		return Similarity{}, false
	}

	normalized := Normalize(stored, s.size)
	defer normalized.Close()

	sim, err := Compare(candidate, normalized)
	if err != nil {
		log.WithError(err).Debugf("Comparison with %s failed", path)
		return Similarity{}, false
	}
	return sim, true
}
