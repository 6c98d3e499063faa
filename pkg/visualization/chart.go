// Package visualization renders QC results as raster line charts.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
)

// margin is the blank border around the plot area in pixels
const margin = 32

var (
	background = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	axisColor  = color.RGBA{R: 0, G: 0, B: 0, A: 255}

	palette = []color.RGBA{
		{R: 31, G: 119, B: 180, A: 255},
		{R: 255, G: 127, B: 14, A: 255},
		{R: 44, G: 160, B: 44, A: 255},
		{R: 214, G: 39, B: 40, A: 255},
		{R: 148, G: 103, B: 189, A: 255},
		{R: 140, G: 86, B: 75, A: 255},
		{R: 227, G: 119, B: 194, A: 255},
	}
)

// Point is one (x, y) sample of a series
type Point struct {
	X float64
	Y float64
}

// Series is a named polyline
type Series struct {
	Name   string
	Points []Point
}

// Chart is a line chart over a fixed data range
type Chart struct {
	Title string

	width  int
	height int

	xMin, xMax float64
	yMin, yMax float64
	fixed      bool

	series []Series
}

// NewChart creates a chart of the given pixel size. The data range grows to
// fit every series added unless fixed with SetRange.
func NewChart(title string, width, height int) *Chart {
	return &Chart{
		Title:  title,
		width:  width,
		height: height,
		xMin:   math.Inf(1),
		xMax:   math.Inf(-1),
		yMin:   math.Inf(1),
		yMax:   math.Inf(-1),
	}
}

// SetRange fixes the data range
func (c *Chart) SetRange(xMin, xMax, yMin, yMax float64) {
	c.xMin, c.xMax, c.yMin, c.yMax = xMin, xMax, yMin, yMax
	c.fixed = true
}

// Add appends a series, dropping non-finite points
func (c *Chart) Add(s Series) {
	finite := make([]Point, 0, len(s.Points))
	for _, p := range s.Points {
		if isNonFinite(p.X) || isNonFinite(p.Y) {
			continue
		}
		finite = append(finite, p)
		if c.fixed {
			continue
		}
		c.xMin, c.xMax = math.Min(c.xMin, p.X), math.Max(c.xMax, p.X)
		c.yMin, c.yMax = math.Min(c.yMin, p.Y), math.Max(c.yMax, p.Y)
	}
	c.series = append(c.series, Series{Name: s.Name, Points: finite})
}

func isNonFinite(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}

// Series returns the series added so far
func (c *Chart) Series() []Series {
	return c.series
}

// Color returns the line color of the i-th series
func Color(i int) color.RGBA {
	return palette[i%len(palette)]
}

// Pixel maps a data point to image coordinates
func (c *Chart) Pixel(p Point) (int, int) {
	xMin, xMax := span(c.xMin, c.xMax)
	yMin, yMax := span(c.yMin, c.yMax)
	plotW := float64(c.width - 2*margin)
	plotH := float64(c.height - 2*margin)

	x := margin + (p.X-xMin)/(xMax-xMin)*plotW
	y := float64(c.height-margin) - (p.Y-yMin)/(yMax-yMin)*plotH
	return int(math.Round(x)), int(math.Round(y))
}

// span widens an empty or degenerate range so it can be divided by
func span(lo, hi float64) (float64, float64) {
	if math.IsInf(lo, 0) || math.IsInf(hi, 0) {
		return 0, 1
	}
	if hi <= lo {
		return lo - 0.5, lo + 0.5
	}
	return lo, hi
}

// Render draws the axes and every series
func (c *Chart) Render() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, c.width, c.height))
	for y := 0; y < c.height; y++ {
		for x := 0; x < c.width; x++ {
			img.SetRGBA(x, y, background)
		}
	}

	line(img, margin, c.height-margin, c.width-margin, c.height-margin, axisColor)
	line(img, margin, margin, margin, c.height-margin, axisColor)

	for i, s := range c.series {
		col := Color(i)
		for j, p := range s.Points {
			x, y := c.Pixel(p)
			marker(img, x, y, col)
			if j > 0 {
				px, py := c.Pixel(s.Points[j-1])
				line(img, px, py, x, y, col)
			}
		}
	}
	return img
}

// line draws a segment with Bresenham's algorithm
func line(img *image.RGBA, x0, y0, x1, y1 int, col color.RGBA) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	for {
		img.SetRGBA(x0, y0, col)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func marker(img *image.RGBA, x, y int, col color.RGBA) {
	for dy := -2; dy <= 2; dy++ {
		for dx := -2; dx <= 2; dx++ {
			img.SetRGBA(x+dx, y+dy, col)
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// SavePNG writes img to filename, creating its directory
func SavePNG(img image.Image, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return err
	}
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err := png.Encode(file, img); err != nil {
		file.Close()
		return fmt.Errorf("encode %s: %w", filename, err)
	}
	return file.Close()
}
