package opencv

import (
	"fmt"
	"image"
	"image/color"
	"net/http"
	"strconv"
	"sync"
	"time"

	"face-attendance-go/internal/core/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// DebugFrame ist ein annotiertes Bild eines Erkennungsdurchlaufs
type DebugFrame struct {
	ID        string             `json:"id"`
	Timestamp time.Time          `json:"timestamp"`
	Class     string             `json:"class"`
	Outcome   models.OutcomeKind `json:"outcome"`
	Faces     int                `json:"faces"`
	Matches   []string           `json:"matches"`
	ImageData []byte             `json:"-"`
}

// DebugService hält die letzten Erkennungsbilder im Speicher
type DebugService struct {
	frames    map[string]*DebugFrame
	order     []*DebugFrame
	maxFrames int
	mutex     sync.RWMutex
}

// NewDebugService erstellt einen Debug-Service
func NewDebugService(maxFrames int) *DebugService {
	if maxFrames <= 0 {
		maxFrames = 30
	}
	return &DebugService{
		frames:    make(map[string]*DebugFrame),
		order:     make([]*DebugFrame, 0, maxFrames),
		maxFrames: maxFrames,
	}
}

// Add speichert ein Bild und verdrängt bei Bedarf das älteste
func (s *DebugService) Add(frame *DebugFrame) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if frame.ID == "" {
		frame.ID = uuid.NewString()
	}
	if frame.Timestamp.IsZero() {
		frame.Timestamp = time.Now()
	}

	s.frames[frame.ID] = frame
	s.order = append(s.order, frame)
	if len(s.order) > s.maxFrames {
		oldest := s.order[0]
		delete(s.frames, oldest.ID)
		s.order = s.order[1:]
	}

	log.Debugf("Debug frame %s stored (%s, %d faces)", frame.ID, frame.Outcome, frame.Faces)
}

// Latest liefert die neuesten count Bilder, das neueste zuerst
func (s *DebugService) Latest(count int) []*DebugFrame {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if count <= 0 || count > len(s.order) {
		count = len(s.order)
	}
	result := make([]*DebugFrame, 0, count)
	for i := len(s.order) - 1; i >= len(s.order)-count; i-- {
		result = append(result, s.order[i])
	}
	return result
}

// Get liefert ein Bild anhand seiner ID
func (s *DebugService) Get(id string) *DebugFrame {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.frames[id]
}

// Record annotiert das Bild mit den Erkennungen und speichert es
func (s *DebugService) Record(img gocv.Mat, class string, outcome models.RecognitionOutcome) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("Panic while annotating debug frame: %v", r)
		}
	}()

	data, err := Annotate(img, outcome.Matches)
	if err != nil {
		log.WithError(err).Warn("Could not encode debug frame")
		return
	}

	names := make([]string, 0, len(outcome.Matches))
	for _, m := range outcome.Matches {
		names = append(names, m.Name)
	}
	s.Add(&DebugFrame{
		Class:     class,
		Outcome:   outcome.Kind,
		Faces:     outcome.FaceCount,
		Matches:   names,
		ImageData: data,
	})
}

// Annotate zeichnet Rahmen und Namen ein und liefert das Bild als JPEG
func Annotate(img gocv.Mat, matches []models.RecognitionResult) ([]byte, error) {
	vis := img.Clone()
	defer vis.Close()

	green := color.RGBA{0, 255, 0, 0}
	for _, m := range matches {
		r := m.FaceLocation
		gocv.Rectangle(&vis, r, green, 2)
		label := fmt.Sprintf("%s %.2f", m.Name, m.Confidence)
		gocv.PutText(&vis, label, image.Pt(r.Min.X, r.Min.Y-5), gocv.FontHersheyPlain, 1.2, green, 2)
	}

	buf, err := gocv.IMEncode(".jpg", vis)
	if err != nil {
		return nil, err
	}
	defer buf.Close()

	raw := buf.GetBytes()
	out := make([]byte, len(raw))
	copy(out, raw)
	return out, nil
}

// RegisterRoutes registriert die Debug-Endpunkte
func (s *DebugService) RegisterRoutes(group *gin.RouterGroup) {
	group.GET("/debug/frames", s.handleLatest)
	group.GET("/debug/frames/:id", s.handleFrame)
}

func (s *DebugService) handleLatest(c *gin.Context) {
	count, err := strconv.Atoi(c.DefaultQuery("count", "10"))
	if err != nil {
		count = 10
	}

	type frameMetadata struct {
		*DebugFrame
		URL string `json:"url"`
	}

	frames := s.Latest(count)
	metadata := make([]frameMetadata, len(frames))
	for i, f := range frames {
		metadata[i] = frameMetadata{DebugFrame: f, URL: "/api/debug/frames/" + f.ID}
	}

	c.JSON(http.StatusOK, gin.H{
		"count":  len(metadata),
		"frames": metadata,
	})
}

func (s *DebugService) handleFrame(c *gin.Context) {
	frame := s.Get(c.Param("id"))
	if frame == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "frame not found", "id": c.Param("id")})
		return
	}

	c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
	c.Header("Pragma", "no-cache")
	c.Header("Expires", "0")
	c.Data(http.StatusOK, "image/jpeg", frame.ImageData)
}
