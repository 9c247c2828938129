package opencv

import (
	"fmt"
	"image"
	"math"
	"math/rand/v2"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// Standardgrößen des Trainingskorpus
const (
	DefaultVariants = 100
	DefaultFaceSize = 100
)

// Variantenfamilien, ausgewählt über index % 10
const (
	VariantBrightness = iota
	VariantGaussianNoise
	VariantRotation
	VariantEqualize
	VariantBlur
	VariantContrast
	VariantSaltPepper
	VariantFlip
	VariantScale
	VariantMorphology
)

// Augmenter erzeugt aus einem Gesichtsausschnitt einen Satz synthetischer Trainingsbilder
type Augmenter struct {
	variants int
	size     int
}

// NewAugmenter erstellt einen Augmenter für count Varianten der Kantenlänge size
func NewAugmenter(count, size int) *Augmenter {
	if count <= 0 {
		count = DefaultVariants
	}
	if size <= 0 {
		size = DefaultFaceSize
	}
	return &Augmenter{variants: count, size: size}
}

// Augment erzeugt alle Varianten. Index 0 ist der unveränderte, skalierte Ausschnitt.
// Schlägt eine Variante fehl, wird an ihrer Stelle der unveränderte Ausschnitt verwendet.
// Die Mats gehören dem Aufrufer, siehe CloseAll.
func (a *Augmenter) Augment(face gocv.Mat, rng *rand.Rand) ([]gocv.Mat, error) {
	if face.Empty() {
		return nil, ErrInvalidImage
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	gray := ToGray(face)
	defer gray.Close()

	out := make([]gocv.Mat, 0, a.variants)
	for i := 0; i < a.variants; i++ {
		var variant gocv.Mat
		if i == 0 {
			variant = gray.Clone()
		} else {
			v, err := safeVariant(gray, i, rng)
			if err != nil {
				log.WithError(err).Debugf("Variant %d failed, using original face", i)
				v = gray.Clone()
			}
			variant = v
		}

		resized := Normalize(variant, a.size)
		_ = variant.Close()
		out = append(out, resized)
	}
	return out, nil
}

// safeVariant fängt Panics der OpenCV-Bindings ab und meldet sie als Fehler
func safeVariant(face gocv.Mat, index int, rng *rand.Rand) (out gocv.Mat, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("variant %d panicked: %v", index, r)
		}
	}()
	out, err = Variant(face, index, rng)
	if err == nil && out.Empty() {
		_ = out.Close()
		err = fmt.Errorf("variant %d produced an empty image", index)
	}
	return out, err
}

// Variant wendet die Transformationsfamilie index % 10 auf ein Graustufenbild an
func Variant(face gocv.Mat, index int, rng *rand.Rand) (gocv.Mat, error) {
	family := index % 10

	// Pixelweise Familien
	switch family {
	case VariantBrightness:
		delta := float64(rng.IntN(81) - 40)
		return mapPixels(face, func(p byte) byte { return clip(float64(p) + delta) })
	case VariantGaussianNoise:
		return mapPixels(face, func(p byte) byte { return clip(float64(p) + rng.NormFloat64()*15) })
	case VariantSaltPepper:
		return mapPixels(face, func(p byte) byte {
			switch r := rng.Float64(); {
			case r < 0.05:
				return 0
			case r > 0.95:
				return 255
			}
			return p
		})
	}

	rows, cols := face.Rows(), face.Cols()
	center := image.Pt(cols/2, rows/2)
	dst := gocv.NewMat()

	switch family {
	case VariantRotation:
		angle := rng.Float64()*30 - 15
		m := gocv.GetRotationMatrix2D(center, angle, 1.0)
		defer m.Close()
		gocv.WarpAffine(face, &dst, m, image.Pt(cols, rows))

	case VariantEqualize:
		gocv.EqualizeHist(face, &dst)

	case VariantBlur:
		k := 3 + 2*rng.IntN(2)
		gocv.GaussianBlur(face, &dst, image.Pt(k, k), 0, 0, gocv.BorderDefault)

	case VariantContrast:
		alpha := 0.8 + rng.Float64()*0.7
		beta := float64(rng.IntN(41) - 20)
		gocv.ConvertScaleAbs(face, &dst, alpha, beta)

	case VariantFlip:
		gocv.Flip(face, &dst, 1)

	case VariantScale:
		scale := 0.9 + rng.Float64()*0.2
		m := gocv.GetRotationMatrix2D(center, 0, scale)
		defer m.Close()
		gocv.WarpAffine(face, &dst, m, image.Pt(cols, rows))

	default:
		kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(3, 3))
		defer kernel.Close()
		op := gocv.MorphOpen
		if rng.Float64() > 0.5 {
			op = gocv.MorphClose
		}
		gocv.MorphologyEx(face, &dst, op, kernel)
	}

	return dst, nil
}

// mapPixels wendet fn auf jedes Pixel eines 8-Bit-Graustufenbildes an
func mapPixels(face gocv.Mat, fn func(byte) byte) (gocv.Mat, error) {
	if face.Channels() != 1 || face.Type() != gocv.MatTypeCV8U {
		return gocv.NewMat(), fmt.Errorf("expected 8-bit grayscale image, got type %v", face.Type())
	}
	src := face
	if !face.IsContinuous() {
		src = face.Clone()
		defer src.Close()
	}
	data, err := src.DataPtrUint8()
	if err != nil {
		return gocv.NewMat(), err
	}

	out := make([]byte, len(data))
	for i, p := range data {
		out[i] = fn(p)
	}
	return matFromGray(out, face.Rows(), face.Cols())
}

// matFromGray erzeugt eine eigenständige 8-Bit-Mat aus Pixeldaten
func matFromGray(data []byte, rows, cols int) (gocv.Mat, error) {
	tmp, err := gocv.NewMatFromBytes(rows, cols, gocv.MatTypeCV8U, data)
	if err != nil {
		return gocv.NewMat(), err
	}
	defer tmp.Close()
	return tmp.Clone(), nil
}

func clip(v float64) byte {
	return byte(math.Max(0, math.Min(255, math.Round(v))))
}

// CloseAll gibt eine Liste von Mats frei
func CloseAll(mats []gocv.Mat) {
	for i := range mats {
		_ = mats[i].Close()
	}
}
