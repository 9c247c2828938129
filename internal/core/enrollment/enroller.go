package enrollment

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"

	"face-attendance-go/config"
	"face-attendance-go/internal/core/models"
	"face-attendance-go/internal/integrations/opencv"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// ErrMissingFields wird zurückgegeben, wenn Name, Rollennummer oder Bild fehlen
var ErrMissingFields = errors.New("name, roll number and image are required")

// Vision ist der Teil der Bildverarbeitung, den die Registrierung benötigt
type Vision interface {
	CropFace(buf []byte) (gocv.Mat, error)
	ScreenFace(ctx context.Context, face gocv.Mat, corpus opencv.Corpus) (opencv.ScreenResult, error)
	Augment(face gocv.Mat, rng *rand.Rand) ([]gocv.Mat, error)
}

// Store ist der Teil der Persistenz, den die Registrierung benötigt
type Store interface {
	opencv.Corpus
	AddStudent(student *models.Student) (string, error)
	GetStudent(id string) (*models.Student, error)
	UpdateImagePaths(id string, paths []string) error
	DeleteStudent(id string) error
}

// Request ist ein Registrierungsauftrag
type Request struct {
	Name       string   `json:"name"`
	RollNumber string   `json:"roll_number"`
	Classes    []string `json:"classes"`
	Image      []byte   `json:"-"`
}

// Result ist das Ergebnis einer erfolgreichen Registrierung
type Result struct {
	Student *models.Student     `json:"student"`
	Screen  opencv.ScreenResult `json:"screening"`
	Dir     string              `json:"dir"`
}

// RosterListener erfährt, welche Klassenlisten sich durch eine Registrierung oder Löschung geändert haben
type RosterListener interface {
	Invalidate(classes []string)
}

// Enroller registriert Studenten: Gesicht finden, Duplikate prüfen, Korpus erzeugen und speichern
type Enroller struct {
	vision   Vision
	store    Store
	root     string
	newRNG   func() *rand.Rand
	listener RosterListener
}

// NewEnroller erstellt einen Enroller
func NewEnroller(vision Vision, store Store, cfg config.EnrollmentConfig) *Enroller {
	root := cfg.StudentsDir
	if root == "" {
		root = filepath.Join("data", "students")
	}
	return &Enroller{
		vision: vision,
		store:  store,
		root:   root,
		newRNG: func() *rand.Rand { return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())) },
	}
}

// OnRosterChange setzt den Empfänger für Änderungen an Klassenlisten
func (e *Enroller) OnRosterChange(l RosterListener) {
	e.listener = l
}

func (e *Enroller) notify(classes []string) {
	if e.listener != nil && len(classes) > 0 {
		e.listener.Invalidate(classes)
	}
}

// Root gibt das Wurzelverzeichnis des Korpus zurück
func (e *Enroller) Root() string {
	return e.root
}

// Enroll führt die Registrierung aus. Eine fehlgeschlagene Duplikatprüfung blockiert
// jeden Schreibzugriff auf Korpus und Datenbank.
func (e *Enroller) Enroll(ctx context.Context, req Request) (*Result, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.RollNumber = strings.TrimSpace(req.RollNumber)
	if req.Name == "" || req.RollNumber == "" || len(req.Image) == 0 {
		return nil, ErrMissingFields
	}

	face, err := e.vision.CropFace(req.Image)
	if err != nil {
		return nil, err
	}
	defer face.Close()

	screen, err := e.vision.ScreenFace(ctx, face, e.store)
	if err != nil {
		return nil, fmt.Errorf("identity screening failed: %w", err)
	}
	if screen.Duplicate {
		log.WithFields(log.Fields{
			"roll_number": req.RollNumber,
			"match":       screen.BestStudentID,
			"score":       screen.BestScore,
		}).Warn("Enrollment blocked by identity screening")
		return &Result{Screen: screen}, fmt.Errorf("%w: %s (score %.2f)", opencv.ErrDuplicateIdentity, screen.BestName, screen.BestScore)
	}

	student := &models.Student{
		Name:       req.Name,
		RollNumber: req.RollNumber,
		Classes:    req.Classes,
	}
	if _, err := e.store.AddStudent(student); err != nil {
		return nil, err
	}

	dir := StudentDir(e.root, req.RollNumber, req.Name)
	paths, err := e.writeCorpus(face, dir)
	if err == nil {
		err = e.store.UpdateImagePaths(student.ID, paths)
	}
	if err != nil {
		_ = os.RemoveAll(dir)
		if delErr := e.store.DeleteStudent(student.ID); delErr != nil {
			log.WithError(delErr).Errorf("Failed to roll back student %s", student.ID)
		}
		return nil, fmt.Errorf("failed to store face corpus: %w", err)
	}
	student.ImagePaths = paths

	log.WithFields(log.Fields{
		"student_id":  student.ID,
		"roll_number": student.RollNumber,
		"images":      len(paths),
	}).Info("Student enrolled")
	e.notify(student.Classes)

	return &Result{Student: student, Screen: screen, Dir: dir}, nil
}

func (e *Enroller) writeCorpus(face gocv.Mat, dir string) ([]string, error) {
	variants, err := e.vision.Augment(face, e.newRNG())
	if err != nil {
		return nil, err
	}
	defer opencv.CloseAll(variants)
	return WriteCorpus(dir, variants)
}

// Delete entfernt einen Studenten, seine Anwesenheit und sein Korpusverzeichnis
func (e *Enroller) Delete(id string) error {
	student, err := e.store.GetStudent(id)
	if err != nil {
		return err
	}
	if err := e.store.DeleteStudent(id); err != nil {
		return err
	}
	if student != nil {
		dir := StudentDir(e.root, student.RollNumber, student.Name)
		if err := os.RemoveAll(dir); err != nil {
			log.WithError(err).Warnf("Could not remove corpus directory %s", dir)
		}
		e.notify(student.Classes)
	}
	return nil
}

// StudentDir liefert das Korpusverzeichnis {root}/{roll}_{name}, Leerzeichen werden zu Unterstrichen
func StudentDir(root, rollNumber, name string) string {
	return filepath.Join(root, fmt.Sprintf("%s_%s", rollNumber, strings.ReplaceAll(name, " ", "_")))
}

// FileName liefert den Dateinamen für den Variantenindex
func FileName(index int) string {
	return fmt.Sprintf("face_%03d.jpg", index)
}

// WriteCorpus schreibt die Varianten als face_000.jpg ... in dir
func WriteCorpus(dir string, faces []gocv.Mat) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create corpus directory: %w", err)
	}
	paths := make([]string, 0, len(faces))
	for i, f := range faces {
		path := filepath.Join(dir, FileName(i))
		if ok := gocv.IMWrite(path, f); !ok {
			return nil, fmt.Errorf("failed to write %s", path)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
