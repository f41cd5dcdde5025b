package timeseries

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"text/template"
	"time"

	"benchsheet/internal/dataframe"
	"benchsheet/internal/experiment"
	"benchsheet/internal/plot/timeseries/mappings"
	plotTemplate "benchsheet/internal/plot/timeseries/templates/plot"
	wrapperTemplate "benchsheet/internal/plot/timeseries/templates/wrapper"

	"github.com/sirupsen/logrus"
)

type TimeseriesPlotGenerator struct {
	logger *logrus.Logger
}

func NewTimeseriesPlotGenerator(logger *logrus.Logger) *TimeseriesPlotGenerator {
	return &TimeseriesPlotGenerator{logger: logger}
}

type PlotOptions struct {
	// XAxis is the key axis holding the time label, for example "sec".
	XAxis string
	// SeriesAxes select one line per distinct label tuple.
	SeriesAxes []string
	YField     string
	// Select restricts the plotted entries.
	Select      experiment.Partial
	Interval    float64
	MinOverride *float64
	MaxOverride *float64
	// FileName is the name the wrapper uses to \input the plot.
	FileName string
}

type point struct {
	x, y float64
}

type series struct {
	name   string
	points []point
}

func (g *TimeseriesPlotGenerator) Generate(table *dataframe.Table, opts PlotOptions) (string, string, error) {
	g.logger.WithFields(logrus.Fields{
		"table":    table.Name(),
		"x_axis":   opts.XAxis,
		"y_field":  opts.YField,
		"interval": opts.Interval,
	}).Debug("Generating timeseries plot")

	entries := table.Query(opts.Select)
	all := g.collectSeries(entries, opts)
	if len(all) == 0 {
		return "", "", fmt.Errorf("no data found in %s for field %s", table.Name(), opts.YField)
	}

	xMapping := mappings.GetFieldMapping(opts.XAxis)
	yMapping := mappings.GetFieldMapping(opts.YField)

	plotData := g.preparePlotData(table.Name(), len(entries), all, opts, xMapping, yMapping)
	wrapperData := g.prepareWrapperData(table.Name(), opts, yMapping)

	plotOutput, err := g.renderPlot(plotData)
	if err != nil {
		return "", "", fmt.Errorf("failed to render plot: %w", err)
	}

	wrapperOutput, err := g.renderWrapper(wrapperData)
	if err != nil {
		return "", "", fmt.Errorf("failed to render wrapper: %w", err)
	}

	return plotOutput, wrapperOutput, nil
}

// collectSeries groups entries by their series labels, in entry order.
func (g *TimeseriesPlotGenerator) collectSeries(entries []dataframe.Entry, opts PlotOptions) []*series {
	var order []*series
	byName := make(map[string]*series)
	skipped := 0

	for _, e := range entries {
		y, ok := e.Sample.Get(opts.YField).Get()
		if !ok {
			continue
		}
		xLabel, _ := e.Key.Label(opts.XAxis)
		x, err := strconv.ParseFloat(xLabel, 64)
		if err != nil {
			skipped++
			continue
		}

		parts := make([]string, len(opts.SeriesAxes))
		for i, a := range opts.SeriesAxes {
			parts[i], _ = e.Key.Label(a)
		}
		name := strings.Join(parts, "/")
		s, ok := byName[name]
		if !ok {
			s = &series{name: name}
			byName[name] = s
			order = append(order, s)
		}
		s.points = append(s.points, point{x: x, y: y})
	}

	if skipped > 0 {
		g.logger.WithFields(logrus.Fields{
			"x_axis":  opts.XAxis,
			"skipped": skipped,
		}).Warn("Entries without a numeric time label were not plotted")
	}

	for _, s := range order {
		s.points = g.aggregateData(s.points, opts.Interval)
	}
	return order
}

func (g *TimeseriesPlotGenerator) preparePlotData(
	tableName string,
	entries int,
	all []*series,
	opts PlotOptions,
	xMapping, yMapping mappings.FieldMapping,
) *plotTemplate.PlotData {
	var plotSeries []plotTemplate.PlotSeries
	yMin := math.Inf(1)
	yMax := math.Inf(-1)
	xMin := math.Inf(1)
	xMax := math.Inf(-1)

	for i, s := range all {
		style := mappings.GetSeriesStyle(i)
		ps := plotTemplate.PlotSeries{
			Name:        s.name,
			Points:      len(s.points),
			Style:       style.ToTikzOptions(),
			LegendEntry: strings.ReplaceAll(s.name, "_", "\\_"),
		}
		for _, p := range s.points {
			ps.Coordinates = append(ps.Coordinates, fmt.Sprintf("(%.6f,%.6f)", p.x, p.y))
			xMin = math.Min(xMin, p.x)
			xMax = math.Max(xMax, p.x)
			yMin = math.Min(yMin, p.y)
			yMax = math.Max(yMax, p.y)
		}
		plotSeries = append(plotSeries, ps)
	}

	xMinStr, xMaxStr := g.determineAxisLimits(xMapping, nil, nil, xMin, xMax)
	yMinStr, yMaxStr := g.determineAxisLimits(yMapping, opts.MinOverride, opts.MaxOverride, yMin, yMax)

	interval := "none"
	if opts.Interval > 0 {
		interval = strconv.FormatFloat(opts.Interval, 'f', -1, 64)
	}

	return &plotTemplate.PlotData{
		GeneratedDate: time.Now().Format("2006-01-02 15:04:05"),
		Table:         tableName,
		Selection:     selection(opts.Select),
		SeriesAxis:    strings.Join(opts.SeriesAxes, "/"),
		Entries:       entries,
		Interval:      interval,
		Title:         yMapping.Label,
		XLabel:        xMapping.Label,
		YLabel:        yMapping.Label,
		XMin:          xMinStr,
		XMax:          xMaxStr,
		YMin:          yMinStr,
		YMax:          yMaxStr,
		Plots:         plotSeries,
	}
}

func selection(p experiment.Partial) string {
	if len(p) == 0 {
		return "all"
	}
	var parts []string
	for k, v := range p {
		parts = append(parts, k+"="+v)
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}

// aggregateData averages the points falling into each interval-wide bucket.
func (g *TimeseriesPlotGenerator) aggregateData(points []point, interval float64) []point {
	if interval <= 0 {
		sort.SliceStable(points, func(i, j int) bool { return points[i].x < points[j].x })
		return points
	}

	type bucket struct {
		sum   float64
		count int
	}
	buckets := make(map[int64]*bucket)
	for _, p := range points {
		idx := int64(math.Floor(p.x / interval))
		b, ok := buckets[idx]
		if !ok {
			b = &bucket{}
			buckets[idx] = b
		}
		b.sum += p.y
		b.count++
	}

	aggregated := make([]point, 0, len(buckets))
	for idx, b := range buckets {
		aggregated = append(aggregated, point{x: float64(idx) * interval, y: b.sum / float64(b.count)})
	}
	sort.Slice(aggregated, func(i, j int) bool {
		return aggregated[i].x < aggregated[j].x
	})
	return aggregated
}

func (g *TimeseriesPlotGenerator) determineAxisLimits(
	mapping mappings.FieldMapping,
	minOverride, maxOverride *float64,
	dataMin, dataMax float64,
) (string, string) {
	var minStr, maxStr string

	if minOverride != nil {
		minStr = fmt.Sprintf("%.2f", *minOverride)
	} else if minVal, ok := mapping.Min.(float64); ok {
		minStr = fmt.Sprintf("%.2f", minVal)
	} else if mapping.Min == "auto" {
		minStr = fmt.Sprintf("%.2f", dataMin*0.95)
	} else {
		minStr = "0"
	}

	if maxOverride != nil {
		maxStr = fmt.Sprintf("%.2f", *maxOverride)
	} else if maxVal, ok := mapping.Max.(float64); ok {
		maxStr = fmt.Sprintf("%.2f", maxVal)
	} else if mapping.Max == "auto" {
		maxStr = fmt.Sprintf("%.2f", dataMax*1.05)
	} else {
		maxStr = "100"
	}

	return minStr, maxStr
}

func (g *TimeseriesPlotGenerator) prepareWrapperData(tableName string, opts PlotOptions, yMapping mappings.FieldMapping) *wrapperTemplate.WrapperData {
	fileName := opts.FileName
	if fileName == "" {
		fileName = fmt.Sprintf("%s-%s.tikz", tableName, opts.YField)
	}
	return &wrapperTemplate.WrapperData{
		GeneratedDate: time.Now().Format("2006-01-02 15:04:05"),
		Table:         tableName,
		YField:        opts.YField,
		PlotFileName:  fileName,
		ShortCaption:  yMapping.ShortLabel,
		Caption:       fmt.Sprintf("The %s per %s", yMapping.Label, strings.Join(opts.SeriesAxes, "/")),
		Label:         strings.TrimSuffix(fileName, ".tikz"),
	}
}

func (g *TimeseriesPlotGenerator) renderPlot(data *plotTemplate.PlotData) (string, error) {
	tmpl, err := template.New("plot").Parse(plotTemplate.PlotTemplate)
	if err != nil {
		return "", fmt.Errorf("failed to parse plot template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute plot template: %w", err)
	}

	return buf.String(), nil
}

func (g *TimeseriesPlotGenerator) renderWrapper(data *wrapperTemplate.WrapperData) (string, error) {
	tmpl, err := template.New("wrapper").Parse(wrapperTemplate.WrapperTemplate)
	if err != nil {
		return "", fmt.Errorf("failed to parse wrapper template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute wrapper template: %w", err)
	}

	return buf.String(), nil
}
