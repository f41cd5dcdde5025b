package mappings

type PlotStyle struct {
	Color       string
	LineStyle   string
	LineWidth   string
	Mark        string
	MarkOptions string
}

// SeriesStyles cycles through line styles first and colors second, so
// neighbouring series stay apart in print.
var SeriesStyles = []PlotStyle{
	{Color: "red", LineStyle: "dotted", LineWidth: "thick", Mark: "triangle*", MarkOptions: "scale=0.5,fill=red"},
	{Color: "blue", LineStyle: "densely dashed", LineWidth: "thick", Mark: "square", MarkOptions: "scale=0.3"},
	{Color: "green!70!black", LineStyle: "densely dotted", LineWidth: "thick", Mark: "*", MarkOptions: "scale=0.3,fill=green!70!black"},
	{Color: "orange", LineStyle: "dashdotted", LineWidth: "thick", Mark: "diamond*", MarkOptions: "scale=0.5,fill=orange"},
	{Color: "purple", LineStyle: "loosely dotted", LineWidth: "thick", Mark: "pentagon*", MarkOptions: "scale=0.5,fill=purple"},
	{Color: "brown", LineStyle: "densely dashed", LineWidth: "thick", Mark: "x", MarkOptions: "scale=0.5"},
	{Color: "black", LineStyle: "densely dotted", LineWidth: "thick", Mark: "o", MarkOptions: "scale=0.3"},
	{Color: "cyan", LineStyle: "solid", LineWidth: "thick", Mark: "pentagon", MarkOptions: "scale=0.5"},

	{Color: "magenta", LineStyle: "solid", LineWidth: "thick", Mark: "star", MarkOptions: "scale=0.5,fill=magenta"},
	{Color: "red!70!black", LineStyle: "solid", LineWidth: "thick", Mark: "triangle*", MarkOptions: "scale=0.5,fill=red!70!black"},
	{Color: "blue!70!black", LineStyle: "solid", LineWidth: "thick", Mark: "square", MarkOptions: "scale=0.3"},
	{Color: "teal", LineStyle: "solid", LineWidth: "thick", Mark: "*", MarkOptions: "scale=0.5,fill=teal"},
	{Color: "violet", LineStyle: "solid", LineWidth: "thick", Mark: "diamond*", MarkOptions: "scale=0.5,fill=violet"},
	{Color: "olive", LineStyle: "solid", LineWidth: "thick", Mark: "pentagon*", MarkOptions: "scale=0.5,fill=olive"},
}

func GetSeriesStyle(index int) PlotStyle {
	if index < 0 {
		index = 0
	}
	return SeriesStyles[index%len(SeriesStyles)]
}

func (ps PlotStyle) ToTikzOptions() string {
	options := ps.Color
	if ps.LineStyle != "" {
		options += "," + ps.LineStyle
	}
	if ps.LineWidth != "" {
		options += "," + ps.LineWidth
	}
	if ps.Mark != "none" && ps.Mark != "" {
		options += ",mark=" + ps.Mark
		if ps.MarkOptions != "" {
			options += ",mark options={" + ps.MarkOptions + "}"
		}
	}
	return options
}
