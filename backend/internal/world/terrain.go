package world

import (
	"math"
)

// HeightField карта высот воксельного террейна в единицах вокселей
type HeightField struct {
	Width   int
	Depth   int
	Heights []int
}

// At высота столбца (x, z); вне карты 0
func (h HeightField) At(x, z int) int {
	if x < 0 || z < 0 || x >= h.Width || z >= h.Depth {
		return 0
	}
	return h.Heights[z*h.Width+x]
}

// Voxels суммарное число вокселей во всех столбцах (столбец высоты n дает n+1 вокселей)
func (h HeightField) Voxels() int {
	total := 0
	for _, height := range h.Heights {
		total += height + 1
	}
	return total
}

// noise2D - хеш-шум в диапазоне [0..1)
func noise2D(x, y float64) float64 {
	h := x*12.9898 + y*78.233
	sinH := math.Sin(h)
	return math.Abs(sinH*43758.5453) - math.Floor(math.Abs(sinH*43758.5453))
}

func lerp(a, b, t float64) float64 {
	return a + t*(b-a)
}

func smoothstep(t float64) float64 {
	return t * t * (3.0 - 2.0*t)
}

// smoothNoise - билинейно сглаженный шум
func smoothNoise(x, y float64) float64 {
	x0 := math.Floor(x)
	y0 := math.Floor(y)

	sx := smoothstep(x - x0)
	sy := smoothstep(y - y0)

	nx0 := lerp(noise2D(x0, y0), noise2D(x0+1, y0), sx)
	nx1 := lerp(noise2D(x0, y0+1), noise2D(x0+1, y0+1), sx)
	return lerp(nx0, nx1, sy)
}

// GenerateHeightField строит детерминированную карту высот из нескольких октав шума.
// Высоты лежат в диапазоне [0..maxHeight].
func GenerateHeightField(width, depth, maxHeight int, seed float64) HeightField {
	field := HeightField{Width: width, Depth: depth, Heights: make([]int, width*depth)}
	if width == 0 || depth == 0 {
		return field
	}

	// Разные масштабы и амплитуды для фрактального шума
	scales := []float64{1.0, 0.5, 0.25}
	amplitudes := []float64{0.5, 0.3, 0.2}

	for z := 0; z < depth; z++ {
		for x := 0; x < width; x++ {
			nx := float64(x)/float64(width) + seed
			nz := float64(z)/float64(depth) + seed

			value := 0.0
			for layer := range scales {
				value += smoothNoise(nx*scales[layer]*8.0, nz*scales[layer]*8.0) * amplitudes[layer]
			}

			height := int(math.Round(value * float64(maxHeight)))
			field.Heights[z*width+x] = min(max(height, 0), maxHeight)
		}
	}
	return field
}
