package templates

const WrapperTemplate = `% Generated on {{.GeneratedDate}}
% Table: {{.Table}}
% Field: {{.YField}}
\begin{center}
    \begin{figure}[H]
    \centering
    \resizebox{1\linewidth}{!}{\input{./{{.PlotFileName}} }}
    \caption[{{.ShortCaption}}]{ {{.Caption}} }
    \label{fig:{{.Label}}}
    \end{figure}
\end{center}
`

type WrapperData struct {
	GeneratedDate string
	Table         string
	YField        string
	PlotFileName  string
	ShortCaption  string
	Caption       string
	Label         string
}
