package opencv

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// Gewichte des kombinierten Ähnlichkeitswerts
const (
	templateWeight   = 0.5
	histogramWeight  = 0.3
	structuralWeight = 0.2
)

// Similarity enthält die Einzelwerte eines Gesichtsvergleichs
type Similarity struct {
	Template   float64 `json:"template"`
	Histogram  float64 `json:"histogram"`
	Structural float64 `json:"structural"`
	Combined   float64 `json:"combined"`
}

// Max liefert den größten der vier Werte
func (s Similarity) Max() float64 {
	m := s.Template
	for _, v := range []float64{s.Histogram, s.Structural, s.Combined} {
		if v > m {
			m = v
		}
	}
	return m
}

// Exceeds prüft, ob einer der vier Werte über der Schwelle liegt
func (s Similarity) Exceeds(threshold float64) bool {
	return s.Max() > threshold
}

// CombineScores gewichtet die drei Einzelmaße zu einem Gesamtwert
func CombineScores(template, histogram, structural float64) Similarity {
	return Similarity{
		Template:   template,
		Histogram:  histogram,
		Structural: structural,
		Combined:   templateWeight*template + histogramWeight*histogram + structuralWeight*structural,
	}
}

// StructuralFromMSE bildet den mittleren quadratischen Fehler auf (0,1] ab
func StructuralFromMSE(mse float64) float64 {
	if mse <= 0 {
		return 1
	}
	return 1 / (1 + mse/10000)
}

// Compare vergleicht zwei 8-Bit-Graustufenbilder gleicher Größe
func Compare(a, b gocv.Mat) (Similarity, error) {
	if a.Empty() || b.Empty() {
		return Similarity{}, ErrInvalidImage
	}
	if a.Rows() != b.Rows() || a.Cols() != b.Cols() {
		return Similarity{}, fmt.Errorf("image sizes differ: %dx%d vs %dx%d", a.Cols(), a.Rows(), b.Cols(), b.Rows())
	}

	template := TemplateScore(a, b)
	histogram := HistogramScore(a, b)
	mse, err := MeanSquaredError(a, b)
	if err != nil {
		return Similarity{}, err
	}
	return CombineScores(template, histogram, StructuralFromMSE(mse)), nil
}

// TemplateScore ist die normierte Kreuzkorrelation beider Bilder
func TemplateScore(a, b gocv.Mat) float64 {
	result := gocv.NewMat()
	defer result.Close()
	mask := gocv.NewMat()
	defer mask.Close()

	gocv.MatchTemplate(a, b, &result, gocv.TmCcoeffNormed, mask)
	if result.Empty() {
		return 0
	}
	_, maxVal, _, _ := gocv.MinMaxLoc(result)
	return float64(maxVal)
}

// HistogramScore ist die Korrelation der Grauwert-Histogramme
func HistogramScore(a, b gocv.Mat) float64 {
	ha := grayHistogram(a)
	defer ha.Close()
	hb := grayHistogram(b)
	defer hb.Close()

	return float64(gocv.CompareHist(ha, hb, gocv.HistCmpCorrel))
}

func grayHistogram(m gocv.Mat) gocv.Mat {
	hist := gocv.NewMat()
	mask := gocv.NewMat()
	defer mask.Close()
	gocv.CalcHist([]gocv.Mat{m}, []int{0}, mask, &hist, []int{256}, []float64{0, 256}, false)
	return hist
}

// MeanSquaredError berechnet den mittleren quadratischen Pixelfehler
func MeanSquaredError(a, b gocv.Mat) (float64, error) {
	pa, err := grayPixels(a)
	if err != nil {
		return 0, err
	}
	pb, err := grayPixels(b)
	if err != nil {
		return 0, err
	}
	if len(pa) != len(pb) || len(pa) == 0 {
		return 0, fmt.Errorf("pixel buffers differ: %d vs %d", len(pa), len(pb))
	}

	var sum float64
	for i := range pa {
		d := float64(pa[i]) - float64(pb[i])
		sum += d * d
	}
	return sum / float64(len(pa)), nil
}

// grayPixels kopiert die Pixel eines 8-Bit-Graustufenbildes
func grayPixels(m gocv.Mat) ([]byte, error) {
	if m.Channels() != 1 || m.Type() != gocv.MatTypeCV8U {
		return nil, fmt.Errorf("expected 8-bit grayscale image, got type %v", m.Type())
	}
	src := m
	if !m.IsContinuous() {
		src = m.Clone()
		defer src.Close()
	}
	data, err := src.DataPtrUint8()
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Normalize bringt ein Graustufenbild auf size x size
func Normalize(gray gocv.Mat, size int) gocv.Mat {
	dst := gocv.NewMat()
	if gray.Rows() == size && gray.Cols() == size {
		gray.CopyTo(&dst)
		return dst
	}
	gocv.Resize(gray, &dst, image.Pt(size, size), 0, 0, gocv.InterpolationLinear)
	return dst
}
