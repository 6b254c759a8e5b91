package main

import (
	"fmt"
	"image/color"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/subsea-teleop/internal/db"
	"github.com/banshee-data/subsea-teleop/internal/security"
)

var palette = []color.Color{
	color.RGBA{R: 0xd6, G: 0x27, B: 0x28, A: 0xff},
	color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff},
	color.RGBA{R: 0x2c, G: 0xa0, B: 0x2c, A: 0xff},
	color.RGBA{R: 0xff, G: 0x7f, B: 0x0e, A: 0xff},
}

// series is one named line on a panel. Rows for which include is false break
// the line instead of being drawn as zero.
type series struct {
	name    string
	include func(db.CycleRow) bool
	value   func(db.CycleRow) float64
}

type panel struct {
	file   string
	title  string
	ylabel string
	series []series
}

func closedAttitude(r db.CycleRow) bool { return r.ClosedLoopAttitude() }
func openAttitude(r db.CycleRow) bool   { return !r.ClosedLoopAttitude() }
func closedDepth(r db.CycleRow) bool    { return r.ClosedLoopDepth() }
func openDepth(r db.CycleRow) bool      { return !r.ClosedLoopDepth() }

var panels = []panel{
	{
		file:   "attitude",
		title:  "Attitude setpoints",
		ylabel: "Angle (deg)",
		series: []series{
			{"roll", closedAttitude, func(r db.CycleRow) float64 { return r.Roll }},
			{"pitch", closedAttitude, func(r db.CycleRow) float64 { return r.Pitch }},
			{"yaw", closedAttitude, func(r db.CycleRow) float64 { return r.Yaw }},
		},
	},
	{
		file:   "depth",
		title:  "Depth setpoint",
		ylabel: "Depth (m)",
		series: []series{
			{"depth", closedDepth, func(r db.CycleRow) float64 { return r.Depth }},
		},
	},
	{
		file:   "open-loop",
		title:  "Open-loop outputs",
		ylabel: "Normalised effort",
		series: []series{
			{"moment x", openAttitude, func(r db.CycleRow) float64 { return r.MomentX }},
			{"moment y", openAttitude, func(r db.CycleRow) float64 { return r.MomentY }},
			{"moment z", openAttitude, func(r db.CycleRow) float64 { return r.MomentZ }},
			{"force z", openDepth, func(r db.CycleRow) float64 { return r.ForceZ }},
		},
	},
	{
		file:   "translation",
		title:  "Surge and sway",
		ylabel: "Normalised force",
		series: []series{
			{"force x", func(db.CycleRow) bool { return true }, func(r db.CycleRow) float64 { return r.ForceX }},
			{"force y", func(db.CycleRow) bool { return true }, func(r db.CycleRow) float64 { return r.ForceY }},
		},
	},
}

// segments splits rows into contiguous runs where s applies, with X in
// seconds since the session started.
func segments(s db.Session, rows []db.CycleRow, sr series) []plotter.XYs {
	var out []plotter.XYs
	var cur plotter.XYs
	for _, r := range rows {
		if !sr.include(r) {
			if len(cur) > 0 {
				out = append(out, cur)
				cur = nil
			}
			continue
		}
		cur = append(cur, plotter.XY{X: r.Time.Sub(s.Started).Seconds(), Y: sr.value(r)})
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}

// renderSession writes one PNG per panel that has data into dir and returns
// the paths written.
func renderSession(s db.Session, rows []db.CycleRow, dir string) ([]string, error) {
	var written []string
	for _, pn := range panels {
		p := plot.New()
		p.Title.Text = fmt.Sprintf("Session %s - %s", s.ID, pn.title)
		p.X.Label.Text = "Time (s)"
		p.Y.Label.Text = pn.ylabel
		p.Legend.Top = true
		p.Legend.Left = false
		p.Legend.XOffs = -10
		p.Legend.YOffs = -10

		drawn := false
		for i, sr := range pn.series {
			legend := false
			for _, seg := range segments(s, rows, sr) {
				line, err := plotter.NewLine(seg)
				if err != nil {
					return written, fmt.Errorf("%s %s: %w", pn.file, sr.name, err)
				}
				line.Color = palette[i%len(palette)]
				line.Width = vg.Points(1)
				p.Add(line)
				if !legend {
					p.Legend.Add(sr.name, line)
					legend = true
				}
				drawn = true
			}
		}
		if !drawn {
			continue
		}

		path, err := security.ValidateOutputPath(filepath.Join(dir, security.SessionFilename(pn.file, s.ID, "png")))
		if err != nil {
			return written, err
		}
		if err := p.Save(12*vg.Inch, 5*vg.Inch, path); err != nil {
			return written, fmt.Errorf("save %s plot: %w", pn.file, err)
		}
		written = append(written, path)
	}
	return written, nil
}
