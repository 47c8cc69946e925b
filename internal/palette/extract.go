package palette

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"math"
	"slices"
	"strings"

	"github.com/cenkalti/dominantcolor"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/muesli/clusters"
	"github.com/muesli/kmeans"
	"github.com/rs/zerolog/log"
)

// Method selects how Extract derives colors from an image.
type Method string

const (
	// MethodDominant picks weighted dominant colors.
	MethodDominant Method = "dominant"
	// MethodKMeans clusters sampled pixels with k-means.
	MethodKMeans Method = "kmeans"
)

// maxSamples bounds the number of pixels fed to k-means.
const maxSamples = 12000

// ParseMethod converts a method name; the empty string selects MethodDominant.
func ParseMethod(name string) (Method, error) {
	switch Method(strings.ToLower(strings.TrimSpace(name))) {
	case "", MethodDominant:
		return MethodDominant, nil
	case MethodKMeans:
		return MethodKMeans, nil
	default:
		return "", fmt.Errorf("unknown extraction method: %s", name)
	}
}

type weightedColor struct {
	col    colorful.Color
	weight float64
}

// Extract derives a palette of at most k colors from img.
//
// The strongest color comes first, followed by colors chosen to be far apart
// in Lab space. k is clamped to 1..TableSize. MethodKMeans falls back to
// MethodDominant when clustering produces nothing.
func Extract(img image.Image, k int, method Method) Palette {
	k = min(max(k, 1), TableSize)

	var cands []weightedColor
	if method == MethodKMeans {
		cands = kmeansCandidates(img, k)
		if len(cands) == 0 {
			log.Warn().Msg("kmeans produced no clusters, falling back to dominant colors")
		}
	}
	if len(cands) == 0 {
		cands = dominantCandidates(img, k)
	}

	picked := selectDiverse(cands, k)
	out := make(Palette, 0, len(picked))
	for _, c := range picked {
		r, g, b := c.Clamped().RGB255()
		out = append(out, Color{R: r, G: g, B: b})
	}
	return out
}

func dominantCandidates(img image.Image, k int) []weightedColor {
	found := dominantcolor.FindWeight(img, max(24, k*8))
	if len(found) == 0 {
		found = append(found, dominantcolor.Color{
			RGBA:   color.RGBA{R: 128, G: 128, B: 128, A: 255},
			Weight: 1,
		})
	}

	out := make([]weightedColor, 0, len(found))
	for _, c := range found {
		col, _ := colorful.MakeColor(c.RGBA)
		out = append(out, weightedColor{col: col.Clamped(), weight: max(c.Weight, 1e-6)})
	}
	return out
}

func kmeansCandidates(img image.Image, k int) []weightedColor {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil
	}

	step := 1
	if w*h > maxSamples {
		step = int(math.Sqrt(float64(w*h)/float64(maxSamples))) + 1
	}

	var dataset clusters.Observations
	for y := b.Min.Y; y < b.Max.Y; y += step {
		for x := b.Min.X; x < b.Max.X; x += step {
			r, g, bl, a := img.At(x, y).RGBA()
			if a == 0 {
				continue
			}
			dataset = append(dataset, clusters.Coordinates{
				float64(r) / 65535.0,
				float64(g) / 65535.0,
				float64(bl) / 65535.0,
			})
		}
	}
	if len(dataset) == 0 {
		return nil
	}

	km := kmeans.New()
	cc, err := km.Partition(dataset, min(max(k*4, k+2), len(dataset)))
	if err != nil {
		log.Debug().Err(err).Msg("kmeans partition failed")
		return nil
	}

	out := make([]weightedColor, 0, len(cc))
	for _, c := range cc {
		if len(c.Center) < 3 || len(c.Observations) == 0 {
			continue
		}
		col := colorful.Color{R: c.Center[0], G: c.Center[1], B: c.Center[2]}.Clamped()
		out = append(out, weightedColor{col: col, weight: float64(len(c.Observations))})
	}
	return out
}

// selectDiverse seeds with the heaviest candidate and then greedily adds the
// candidate farthest (in Lab) from everything picked, scaled by its weight.
func selectDiverse(cands []weightedColor, k int) []colorful.Color {
	if len(cands) == 0 {
		return nil
	}
	k = min(k, len(cands))

	maxW := 0.0
	for _, c := range cands {
		maxW = max(maxW, c.weight)
	}

	seed := 0
	for i, c := range cands {
		if c.weight > cands[seed].weight {
			seed = i
		}
	}

	picked := []int{seed}
	used := make([]bool, len(cands))
	used[seed] = true

	for len(picked) < k {
		best, bestScore := -1, -1.0
		for i, c := range cands {
			if used[i] {
				continue
			}
			nearest := math.MaxFloat64
			for _, p := range picked {
				nearest = min(nearest, c.col.DistanceLab(cands[p].col))
			}
			score := nearest * (0.55 + 0.45*math.Sqrt(c.weight/maxW))
			if score > bestScore {
				best, bestScore = i, score
			}
		}
		if best < 0 {
			break
		}
		used[best] = true
		picked = append(picked, best)
	}

	out := make([]colorful.Color, 0, len(picked))
	for _, i := range picked {
		out = append(out, cands[i].col)
	}
	return out
}

// SortByLuminance orders colors from darkest to brightest. It returns a new
// palette; p is left untouched.
func SortByLuminance(p Palette) Palette {
	out := slices.Clone(p)
	slices.SortStableFunc(out, func(a, b Color) int {
		la := luminance(a)
		lb := luminance(b)
		switch {
		case la < lb:
			return -1
		case la > lb:
			return 1
		}
		return 0
	})
	return out
}

func luminance(c Color) float64 {
	r, g, b := colorful.Color{
		R: float64(c.R) / 255.0,
		G: float64(c.G) / 255.0,
		B: float64(c.B) / 255.0,
	}.LinearRgb()
	return 0.2126*r + 0.7152*g + 0.0722*b
}

// FormatLUT renders p as a LUT file that Parse reads back unchanged. A
// non-empty comment is written as a leading ";" line.
func FormatLUT(p Palette, comment string) []byte {
	var buf bytes.Buffer
	for _, line := range strings.Split(comment, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			fmt.Fprintf(&buf, "; %s\n", line)
		}
	}
	for _, c := range p {
		fmt.Fprintf(&buf, "#%02X%02X%02X\n", c.R, c.G, c.B)
	}
	return buf.Bytes()
}

// Swatch renders the palette as a horizontal strip of tile x tile squares.
func Swatch(p Palette, tile int) *image.NRGBA {
	if tile <= 0 {
		tile = 16
	}
	img := image.NewNRGBA(image.Rect(0, 0, tile*max(len(p), 1), tile))
	for i, c := range p {
		nc := color.NRGBA{R: c.R, G: c.G, B: c.B, A: 0xff}
		for y := 0; y < tile; y++ {
			for x := i * tile; x < (i+1)*tile; x++ {
				img.SetNRGBA(x, y, nc)
			}
		}
	}
	return img
}
