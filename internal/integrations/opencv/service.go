package opencv

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"

	"face-attendance-go/config"
	"face-attendance-go/internal/core/models"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// Service bündelt Detektor, Augmenter, Duplikatprüfung und Erkenner
type Service struct {
	Detector   *FaceDetector
	Augmenter  *Augmenter
	Screener   *Screener
	Recognizer *Recognizer
	DebugSvc   *DebugService

	modelFile string
	mutex     sync.Mutex
	closed    bool
}

// NewService erstellt den Vision-Service aus der Konfiguration
func NewService(cfg *config.Config) (*Service, error) {
	detector, err := NewFaceDetector(cfg.Detector)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize face detector: %w", err)
	}

	size := cfg.Enrollment.FaceSize
	service := &Service{
		Detector:   detector,
		Augmenter:  NewAugmenter(cfg.Enrollment.Variants, size),
		Screener:   NewScreener(detector, cfg.Screening, size),
		Recognizer: NewRecognizer(detector, cfg.Recognition, size),
		DebugSvc:   NewDebugService(cfg.Debug.MaxFrames),
		modelFile:  cfg.Recognition.ModelFile,
	}

	if service.modelFile != "" {
		if err := service.Recognizer.Load(service.modelFile); err != nil {
			log.Debugf("No stored recognizer model loaded: %v", err)
		}
	}

	return service, nil
}

// CropFace dekodiert ein Bild und schneidet das größte Gesicht aus
func (s *Service) CropFace(buf []byte) (gocv.Mat, error) {
	img, err := Decode(buf)
	if err != nil {
		return gocv.NewMat(), err
	}
	defer img.Close()

	face, _, err := s.Detector.LargestFace(img)
	return face, err
}

// ScreenFace prüft einen Gesichtsausschnitt gegen den Korpus
func (s *Service) ScreenFace(ctx context.Context, face gocv.Mat, corpus Corpus) (ScreenResult, error) {
	return s.Screener.ScreenFace(ctx, face, corpus)
}

// Augment erzeugt den Trainingskorpus aus einem Gesichtsausschnitt
func (s *Service) Augment(face gocv.Mat, rng *rand.Rand) ([]gocv.Mat, error) {
	return s.Augmenter.Augment(face, rng)
}

// Train trainiert den Erkenner auf der Klassenliste und speichert das Modell, falls konfiguriert
func (s *Service) Train(class string, roster []models.Student) (int, error) {
	n, err := s.Recognizer.Train(class, roster)
	if err != nil {
		return 0, err
	}
	if s.modelFile != "" {
		if err := s.Recognizer.Save(s.modelFile); err != nil {
			log.WithError(err).Warn("Could not persist recognizer model")
		}
	}
	return n, nil
}

// LoadedModel liefert Klasse und Studenten des aktuellen Modells, etwa nach dem Laden beim Start
func (s *Service) LoadedModel() (string, []string, bool) {
	return s.Recognizer.Model()
}

// Recognize dekodiert ein Bild, erkennt die Gesichter und legt ein Debug-Bild ab
func (s *Service) Recognize(buf []byte, class string, requireSingle bool) (models.RecognitionOutcome, error) {
	img, err := Decode(buf)
	if err != nil {
		return models.RecognitionOutcome{}, err
	}
	defer img.Close()

	outcome, err := s.Recognizer.Recognize(img, requireSingle)
	if err != nil {
		return outcome, err
	}
	if outcome.Kind != models.OutcomeNoFace {
		s.DebugSvc.Record(img, class, outcome)
	}
	return outcome, nil
}

// Close gibt die Ressourcen frei
func (s *Service) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.Detector.Close()
}
