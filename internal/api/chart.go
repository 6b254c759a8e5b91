package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/subsea-teleop/internal/db"
	"github.com/banshee-data/subsea-teleop/internal/httputil"
)

const echartsAssetsPrefix = "https://go-echarts.github.io/go-echarts-assets/assets/"

// maxChartPoints bounds the samples per series; longer sessions are strided.
const maxChartPoints = 4000

// setpointChart renders a session's closed-loop setpoints and open-loop
// efforts. Query params:
//   - session (optional; defaults to the most recent session)
func (s *Server) setpointChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if !s.requireSessions(w) {
		return
	}

	id := r.URL.Query().Get("session")
	if id == "" {
		recent, err := s.sessions.ListSessions(r.Context(), 1)
		if err != nil {
			httputil.InternalServerError(w, err.Error())
			return
		}
		if len(recent) == 0 {
			httputil.NotFound(w, "no sessions recorded")
			return
		}
		id = recent[0].ID
	}
	if _, err := s.sessions.GetSession(r.Context(), id); err != nil {
		writeSessionError(w, err)
		return
	}
	rows, err := s.sessions.SessionCycles(r.Context(), id)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}

	page := components.NewPage()
	page.SetAssetsHost(echartsAssetsPrefix)
	page.PageTitle = "Teleop setpoints"
	page.AddCharts(attitudeChart(id, rows), depthChart(id, rows))

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("render error: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func stride(n int) int {
	if n <= maxChartPoints {
		return 1
	}
	return (n + maxChartPoints - 1) / maxChartPoints
}

// series holds one line's points; gaps mark cycles where the value does not
// apply.
type series struct {
	name string
	data []opts.LineData
}

func (s *series) add(ok bool, v float64) {
	if ok {
		s.data = append(s.data, opts.LineData{Value: v})
		return
	}
	s.data = append(s.data, opts.LineData{Value: "-"})
}

func newLine(title, subtitle, yName string) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "420px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "seq", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: yName}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "inside"}),
	)
	return line
}

func attitudeChart(id string, rows []db.CycleRow) *charts.Line {
	step := stride(len(rows))
	x := make([]string, 0, len(rows)/step+1)
	roll := &series{name: "roll sp"}
	pitch := &series{name: "pitch sp"}
	yaw := &series{name: "yaw sp"}
	mz := &series{name: "yaw moment"}
	for i := 0; i < len(rows); i += step {
		c := rows[i]
		x = append(x, strconv.FormatUint(c.Seq, 10))
		closed := c.ClosedLoopAttitude()
		roll.add(closed, c.Roll)
		pitch.add(closed, c.Pitch)
		yaw.add(closed, c.Yaw)
		mz.add(!closed, c.MomentZ)
	}

	line := newLine("Attitude", fmt.Sprintf("session=%s cycles=%d stride=%d", id, len(rows), step), "deg")
	line.SetXAxis(x)
	for _, s := range []*series{roll, pitch, yaw, mz} {
		line.AddSeries(s.name, s.data, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
	}
	return line
}

func depthChart(id string, rows []db.CycleRow) *charts.Line {
	step := stride(len(rows))
	x := make([]string, 0, len(rows)/step+1)
	depth := &series{name: "depth sp"}
	fz := &series{name: "heave force"}
	for i := 0; i < len(rows); i += step {
		c := rows[i]
		x = append(x, strconv.FormatUint(c.Seq, 10))
		closed := c.ClosedLoopDepth()
		depth.add(closed, c.Depth)
		fz.add(!closed, c.ForceZ)
	}

	line := newLine("Depth", fmt.Sprintf("session=%s", id), "m")
	line.SetXAxis(x)
	line.AddSeries(depth.name, depth.data, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
	line.AddSeries(fz.name, fz.data, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
	return line
}
