package templates

const PlotTemplate = `% Generated on {{.GeneratedDate}}
%
% Table: {{.Table}}
% Selection: {{.Selection}}
% Series axis: {{.SeriesAxis}}
% Entries: {{.Entries}}
% Bucket width: {{.Interval}}
%
\begin{tikzpicture}
	\begin{axis}[
		% title={ {{.Title}} },
		xlabel={ {{.XLabel}} },
		ylabel={ {{.YLabel}} },
		width=\textwidth,
		height=0.6\textwidth,
		xmin={{.XMin}}, xmax={{.XMax}},
		ymin={{.YMin}}, ymax={{.YMax}},
		ymajorgrids,
		grid style=dashed,
		legend columns=2,
		legend pos=north east,
	]

{{range .Plots}}
% Series: {{.Name}} ({{.Points}} points)
\addplot+[{{.Style}}]
  coordinates {
{{range .Coordinates}}    {{.}}
{{end}}  };
\addlegendentry{ {{.LegendEntry}} }

{{end}}
	\end{axis}
\end{tikzpicture}
`

type PlotData struct {
	GeneratedDate string
	Table         string
	Selection     string
	SeriesAxis    string
	Entries       int
	Interval      string
	Title         string
	XLabel        string
	YLabel        string
	XMin          string
	XMax          string
	YMin          string
	YMax          string
	Plots         []PlotSeries
}

type PlotSeries struct {
	Name        string
	Points      int
	Style       string
	LegendEntry string
	Coordinates []string
}
