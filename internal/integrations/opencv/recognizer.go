package opencv

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"face-attendance-go/config"
	"face-attendance-go/internal/core/models"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
	"gocv.io/x/gocv/contrib"
)

var (
	// ErrNoTrainingData wird zurückgegeben, wenn kein Student der Liste ladbare Bilder hat
	ErrNoTrainingData = errors.New("no usable training images for roster")
	// ErrModelNotTrained wird zurückgegeben, wenn vor dem Training erkannt werden soll
	ErrModelNotTrained = errors.New("recognizer has not been trained")
)

// labelEntry ordnet einem LBPH-Label einen Studenten zu
type labelEntry struct {
	StudentID  string `json:"student_id"`
	Name       string `json:"name"`
	RollNumber string `json:"roll_number"`
}

// Recognizer erkennt Studenten mit einem LBPH-Klassifikator.
// Nach jeder Änderung der Studentenliste muss neu trainiert werden.
type Recognizer struct {
	detector *FaceDetector
	cfg      config.RecognitionConfig
	size     int

	mutex  sync.RWMutex
	model  *contrib.LBPHFaceRecognizer
	labels map[int]labelEntry
	class  string
}

// modelMeta wird neben der Modelldatei gespeichert
type modelMeta struct {
	Class  string             `json:"class"`
	Labels map[int]labelEntry `json:"labels"`
}

// NewRecognizer erstellt einen untrainierten Erkenner
func NewRecognizer(detector *FaceDetector, cfg config.RecognitionConfig, faceSize int) *Recognizer {
	if cfg.ImagesPerStudent <= 0 {
		cfg.ImagesPerStudent = 20
	}
	if cfg.DistanceThreshold <= 0 {
		cfg.DistanceThreshold = 80
	}
	if faceSize <= 0 {
		faceSize = DefaultFaceSize
	}
	return &Recognizer{detector: detector, cfg: cfg, size: faceSize}
}

// Model liefert die Klasse und die Studenten-IDs des geladenen oder trainierten Modells
func (r *Recognizer) Model() (string, []string, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	if r.model == nil {
		return "", nil, false
	}
	ids := make([]string, 0, len(r.labels))
	for _, entry := range r.labels {
		ids = append(ids, entry.StudentID)
	}
	sort.Strings(ids)
	return r.class, ids, true
}

// Train baut ein neues Modell aus den ersten Bildern jedes Studenten der Klasse.
// Studenten ohne ladbare Bilder werden übersprungen. Gibt die Anzahl trainierter Studenten zurück.
func (r *Recognizer) Train(class string, roster []models.Student) (int, error) {
	var (
		images []gocv.Mat
		labels []int
	)
	defer func() { CloseAll(images) }()

	labelMap := make(map[int]labelEntry)
	next := 0
	for _, student := range roster {
		loaded := r.loadStudentImages(student)
		if len(loaded) == 0 {
			log.Debugf("Student %s has no loadable images, excluded from training", student.ID)
			continue
		}
		for range loaded {
			labels = append(labels, next)
		}
		images = append(images, loaded...)
		labelMap[next] = labelEntry{StudentID: student.ID, Name: student.Name, RollNumber: student.RollNumber}
		next++
	}

	if len(images) == 0 {
		r.mutex.Lock()
		r.model = nil
		r.labels = nil
		r.class = ""
		r.mutex.Unlock()
		return 0, ErrNoTrainingData
	}

	model := contrib.NewLBPHFaceRecognizer()
	model.Train(images, labels)

	r.mutex.Lock()
	r.model = model
	r.labels = labelMap
	r.class = class
	r.mutex.Unlock()

	log.Infof("Recognizer trained on %d students of %s with %d images", len(labelMap), class, len(images))
	return len(labelMap), nil
}

func (r *Recognizer) loadStudentImages(student models.Student) []gocv.Mat {
	limit := len(student.ImagePaths)
	if limit > r.cfg.ImagesPerStudent {
		limit = r.cfg.ImagesPerStudent
	}

	out := make([]gocv.Mat, 0, limit)
	for _, path := range student.ImagePaths[:limit] {
		img := gocv.IMRead(path, gocv.IMReadGrayScale)
		if img.Empty() {
			_ = img.Close()
			continue
		}
		out = append(out, Normalize(img, r.size))
		_ = img.Close()
	}
	return out
}

// Recognize erkennt alle Gesichter im Bild. Mit requireSingle wird bei mehr als
// einem Gesicht OutcomeMultiplePeople geliefert, ohne zu klassifizieren.
// Gesichter mit Distanz über der Schwelle werden verworfen.
func (r *Recognizer) Recognize(img gocv.Mat, requireSingle bool) (models.RecognitionOutcome, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	if r.model == nil {
		return models.RecognitionOutcome{}, ErrModelNotTrained
	}

	det, err := r.detector.Detect(img)
	if err != nil {
		return models.RecognitionOutcome{}, err
	}
	defer det.Close()

	switch {
	case len(det.Boxes) == 0:
		return models.RecognitionOutcome{Kind: models.OutcomeNoFace}, nil
	case requireSingle && len(det.Boxes) > 1:
		return models.RecognitionOutcome{Kind: models.OutcomeMultiplePeople, FaceCount: len(det.Boxes)}, nil
	}

	matches := make([]models.RecognitionResult, 0, len(det.Boxes))
	for _, box := range det.Boxes {
		region := det.Gray.Region(box)
		match, ok := r.classify(region, box)
		_ = region.Close()
		if ok {
			matches = append(matches, match)
		}
	}

	return models.RecognitionOutcome{
		Kind:      models.OutcomeMatches,
		FaceCount: len(det.Boxes),
		Matches:   matches,
	}, nil
}

// classify ordnet einen Graustufen-Gesichtsausschnitt einem Studenten zu.
// Distanzen ab der Schwelle und unbekannte Labels werden verworfen. r.mutex muss gehalten werden.
func (r *Recognizer) classify(gray gocv.Mat, box image.Rectangle) (models.RecognitionResult, bool) {
	face := Normalize(gray, r.size)
	defer face.Close()

	resp := r.model.PredictExtendedResponse(face)
	distance := float64(resp.Confidence)
	entry, known := r.labels[int(resp.Label)]
	if !known || distance >= r.cfg.DistanceThreshold {
		log.Debugf("Face at %v rejected (label=%d, distance=%.2f)", box, resp.Label, distance)
		return models.RecognitionResult{}, false
	}

	return models.RecognitionResult{
		StudentID:    entry.StudentID,
		Name:         entry.Name,
		RollNumber:   entry.RollNumber,
		Confidence:   DistanceConfidence(distance, r.cfg.DistanceThreshold),
		FaceLocation: box,
	}, true
}

// DistanceConfidence wandelt eine LBPH-Distanz in eine Konfidenz in [0,1] um
func DistanceConfidence(distance, threshold float64) float64 {
	if threshold <= 0 {
		return 0
	}
	c := (threshold - distance) / threshold
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// Save schreibt das Modell und die Label-Zuordnung neben die Modelldatei
func (r *Recognizer) Save(path string) error {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	if r.model == nil {
		return ErrModelNotTrained
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create model directory: %w", err)
	}

	r.model.SaveFile(path)

	data, err := json.MarshalIndent(modelMeta{Class: r.class, Labels: r.labels}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode labels: %w", err)
	}
	if err := os.WriteFile(LabelsPath(path), data, 0644); err != nil {
		return fmt.Errorf("failed to write labels: %w", err)
	}

	log.Infof("Recognizer model saved to %s", path)
	return nil
}

// Load lädt ein zuvor gespeichertes Modell samt Label-Zuordnung
func (r *Recognizer) Load(path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("model file not available: %w", err)
	}
	data, err := os.ReadFile(LabelsPath(path))
	if err != nil {
		return fmt.Errorf("failed to read labels: %w", err)
	}
	var meta modelMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("failed to decode labels: %w", err)
	}
	if len(meta.Labels) == 0 {
		return fmt.Errorf("label file %s has no students", LabelsPath(path))
	}

	model := contrib.NewLBPHFaceRecognizer()
	model.LoadFile(path)

	r.mutex.Lock()
	r.model = model
	r.labels = meta.Labels
	r.class = meta.Class
	r.mutex.Unlock()

	log.Infof("Recognizer model for %s loaded from %s (%d students)", meta.Class, path, len(meta.Labels))
	return nil
}

// LabelsPath liefert den Pfad der Label-Datei zu einer Modelldatei
func LabelsPath(modelPath string) string {
	return strings.TrimSuffix(modelPath, filepath.Ext(modelPath)) + "_labels.json"
}
