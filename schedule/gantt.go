package schedule

import (
	"errors"
	"image/color"
	"io"

	"github.com/fogleman/gg"
)

const (
	// GanttWidth is the pixel width of every chart.
	GanttWidth   = 1200
	ganttRowH    = 28
	ganttLabelW  = 360
	ganttPadding = 20
)

var ganttPalette = []color.NRGBA{
	{R: 0x3B, G: 0x82, B: 0xF6, A: 0xFF},
	{R: 0x10, G: 0xB9, B: 0x81, A: 0xFF},
	{R: 0xF5, G: 0x9E, B: 0x0B, A: 0xFF},
	{R: 0xEF, G: 0x44, B: 0x44, A: 0xFF},
	{R: 0x8B, G: 0x5C, B: 0xF6, A: 0xFF},
	{R: 0x06, G: 0xB6, B: 0xD4, A: 0xFF},
}

// GanttHeight is the pixel height of a chart with rows week bars.
func GanttHeight(rows int) int {
	return ganttPadding*3 + ganttRowH*rows
}

// GanttRowsFor returns how many week bars fit in heightPx, at least one.
func GanttRowsFor(heightPx float64) int {
	rows := int((heightPx - ganttPadding*3) / ganttRowH)
	if rows < 1 {
		return 1
	}
	return rows
}

// GanttPNG draws one bar per week, grouped and colored by module, and writes a PNG.
func GanttPNG(m Map, w io.Writer) error {
	rows := m.Rows()
	if rows == 0 {
		return errors.New("gantt: schedule is empty")
	}
	first, last := m.Span()
	days := last.Sub(first).Hours()/24 + 1
	height := GanttHeight(rows)

	dc := gg.NewContext(GanttWidth, height)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	chartX := float64(ganttLabelW)
	chartW := float64(GanttWidth - ganttLabelW - ganttPadding)
	scale := chartW / days

	dc.SetRGB(0.2, 0.2, 0.2)
	dc.DrawStringAnchored(first.Format(DateLayout), chartX, ganttPadding, 0, 0.5)
	dc.DrawStringAnchored(last.Format(DateLayout), chartX+chartW, ganttPadding, 1, 0.5)

	y := float64(ganttPadding * 2)
	for i, ms := range m {
		c := ganttPalette[i%len(ganttPalette)]
		for _, e := range ms.Entries {
			dc.SetRGB(0.1, 0.1, 0.1)
			dc.DrawStringAnchored(truncate(ms.Module+" / "+e.WeekLabel, 52), ganttPadding, y+ganttRowH/2, 0, 0.5)

			x := chartX + e.Start.Sub(first).Hours()/24*scale
			barW := (e.End.Sub(e.Start).Hours()/24 + 1) * scale
			dc.SetColor(c)
			dc.DrawRectangle(x, y+4, barW, ganttRowH-8)
			dc.Fill()
			y += ganttRowH
		}
	}

	dc.SetRGB(0.8, 0.8, 0.8)
	dc.SetLineWidth(1)
	dc.DrawLine(chartX, float64(ganttPadding*2), chartX, y)
	dc.Stroke()

	return dc.EncodePNG(w)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
