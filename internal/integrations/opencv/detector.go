package opencv

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"

	"face-attendance-go/config"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

var (
	// ErrNoFaceDetected wird zurückgegeben, wenn im Bild kein Gesicht gefunden wurde
	ErrNoFaceDetected = errors.New("no face detected")
	// ErrInvalidImage wird zurückgegeben, wenn ein Bildpuffer nicht dekodiert werden kann
	ErrInvalidImage = errors.New("image could not be decoded")
)

// cascadeSearchDirs sind die üblichen Installationsorte der OpenCV-Haar-Cascades
var cascadeSearchDirs = []string{
	".",
	"./models/haarcascades",
	"/usr/local/share/opencv4/haarcascades",
	"/usr/share/opencv4/haarcascades",
	"/opt/homebrew/share/opencv4/haarcascades",
	"/usr/share/opencv/haarcascades",
}

// ResolveCascade sucht die Cascade-Datei am angegebenen Pfad und in den Standardverzeichnissen
func ResolveCascade(file string) (string, error) {
	if file == "" {
		file = "haarcascade_frontalface_default.xml"
	}
	if _, err := os.Stat(file); err == nil {
		return file, nil
	}
	base := filepath.Base(file)
	for _, dir := range cascadeSearchDirs {
		candidate := filepath.Join(dir, base)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("cascade file %s not found", file)
}

// Detection enthält die gefundenen Gesichter und das Graustufenbild.
// Gray gehört dem Aufrufer und muss mit Close freigegeben werden.
type Detection struct {
	Boxes []image.Rectangle
	Gray  gocv.Mat
}

// Close gibt das Graustufenbild frei
func (d *Detection) Close() {
	_ = d.Gray.Close()
}

// Largest liefert das Rechteck mit der größten Fläche
func (d *Detection) Largest() (image.Rectangle, bool) {
	return LargestBox(d.Boxes)
}

// LargestBox liefert das Rechteck mit der größten Fläche
func LargestBox(boxes []image.Rectangle) (image.Rectangle, bool) {
	if len(boxes) == 0 {
		return image.Rectangle{}, false
	}
	best := boxes[0]
	for _, b := range boxes[1:] {
		if b.Dx()*b.Dy() > best.Dx()*best.Dy() {
			best = b
		}
	}
	return best, true
}

// FaceDetector findet Gesichter mit einem Haar-Cascade-Klassifikator
type FaceDetector struct {
	cfg        config.DetectorConfig
	classifier gocv.CascadeClassifier
	mutex      sync.Mutex // der Klassifikator ist nicht threadsicher
}

// NewFaceDetector lädt die Cascade und erstellt den Detektor
func NewFaceDetector(cfg config.DetectorConfig) (*FaceDetector, error) {
	path, err := ResolveCascade(cfg.CascadeFile)
	if err != nil {
		return nil, err
	}

	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(path) {
		_ = classifier.Close()
		return nil, fmt.Errorf("failed to load cascade classifier from %s", path)
	}

	if cfg.ScaleFactor <= 1 {
		cfg.ScaleFactor = 1.1
	}
	if cfg.MinNeighbors <= 0 {
		cfg.MinNeighbors = 4
	}
	if cfg.MinSize <= 0 {
		cfg.MinSize = 30
	}

	log.Infof("Face detector initialized with cascade %s (scale=%.2f, neighbors=%d, min=%dpx)",
		path, cfg.ScaleFactor, cfg.MinNeighbors, cfg.MinSize)

	return &FaceDetector{cfg: cfg, classifier: classifier}, nil
}

// Detect findet alle Gesichter im Bild. Kein Gesicht ist kein Fehler.
func (fd *FaceDetector) Detect(img gocv.Mat) (*Detection, error) {
	if img.Empty() {
		return nil, ErrInvalidImage
	}

	gray := ToGray(img)

	fd.mutex.Lock()
	boxes := fd.classifier.DetectMultiScaleWithParams(
		gray,
		fd.cfg.ScaleFactor,
		fd.cfg.MinNeighbors,
		0,
		image.Pt(fd.cfg.MinSize, fd.cfg.MinSize),
		image.Pt(0, 0),
	)
	fd.mutex.Unlock()

	log.Debugf("Detected %d face(s) in %dx%d image", len(boxes), img.Cols(), img.Rows())
	return &Detection{Boxes: boxes, Gray: gray}, nil
}

// LargestFace schneidet das größte Gesicht als Graustufenbild aus.
// Die zurückgegebene Mat gehört dem Aufrufer.
func (fd *FaceDetector) LargestFace(img gocv.Mat) (gocv.Mat, image.Rectangle, error) {
	det, err := fd.Detect(img)
	if err != nil {
		return gocv.NewMat(), image.Rectangle{}, err
	}
	defer det.Close()

	box, ok := det.Largest()
	if !ok {
		return gocv.NewMat(), image.Rectangle{}, ErrNoFaceDetected
	}

	region := det.Gray.Region(box)
	defer region.Close()
	return region.Clone(), box, nil
}

// Close gibt den Klassifikator frei
func (fd *FaceDetector) Close() error {
	fd.mutex.Lock()
	defer fd.mutex.Unlock()
	return fd.classifier.Close()
}

// ToGray liefert eine Graustufenkopie des Bildes
func ToGray(img gocv.Mat) gocv.Mat {
	gray := gocv.NewMat()
	switch img.Channels() {
	case 1:
		img.CopyTo(&gray)
	case 4:
		gocv.CvtColor(img, &gray, gocv.ColorBGRAToGray)
	default:
		gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)
	}
	return gray
}

// Decode dekodiert einen Bildpuffer beliebigen Formats
func Decode(buf []byte) (gocv.Mat, error) {
	if len(buf) == 0 {
		return gocv.NewMat(), ErrInvalidImage
	}
	img, err := gocv.IMDecode(buf, gocv.IMReadColor)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if img.Empty() {
		_ = img.Close()
		return gocv.NewMat(), ErrInvalidImage
	}
	return img, nil
}
