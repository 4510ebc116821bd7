package render

// Theme holds colors for context tree rendering.
type Theme struct {
	Background string
	NodeFill   string
	NodeBorder string
	TextColor  string

	// Node fills by share of the root's entry count.
	HotFill  string // >= HotShare
	WarmFill string // >= WarmShare

	RootBorder string
	Edge       string

	// Unhandled callees.
	ExternalText string
	ExternalEdge string

	ClusterBorder string
	ClusterLabel  string
}

// Heat thresholds, as a fraction of the root's entry count.
const (
	HotShare  = 0.5
	WarmShare = 0.1
)

// NASA is the NASA/Bauhaus theme: geometric, monochrome, sparse color.
var NASA = Theme{
	Background: "#F5F5F5",
	NodeFill:   "white",
	NodeBorder: "#1A1A1A",
	TextColor:  "#1A1A1A",

	HotFill:  "#FFCCBC", // deep orange 100
	WarmFill: "#FFF3E0", // orange 50

	RootBorder: "#0B3D91", // NASA blue
	Edge:       "#424242",

	ExternalText: "#9E9E9E",
	ExternalEdge: "#FC3D21", // NASA red

	ClusterBorder: "#BDBDBD",
	ClusterLabel:  "#757575",
}
