package engine

import "github.com/dd0wney/cluso-graphmetrics/pkg/algorithms"

// Node is a request node reference. Any string is a valid id, including the
// empty one.
type Node struct {
	ID string `json:"id"`
}

// Link is a directed, optionally weighted edge between two node ids. An
// endpoint that names no node makes the link unresolvable; it is dropped,
// not rejected.
type Link struct {
	Source string   `json:"source"`
	Target string   `json:"target"`
	Weight *float64 `json:"weight,omitempty"`
}

// Request is one metrics computation
type Request struct {
	Nodes             []Node  `json:"nodes"`
	Links             []Link  `json:"links" validate:"dive"`
	UseWeights        bool    `json:"useWeights"`
	LouvainResolution float64 `json:"louvainResolution" validate:"gt=0"`
}

// NewRequest returns a request carrying the defaults applied when a field is
// omitted from the wire: weights enabled and resolution 1.0. Decode JSON into it.
func NewRequest() Request {
	return Request{
		UseWeights:        true,
		LouvainResolution: 1.0,
	}
}

// NodeIDs returns the node ids in request order
func (r *Request) NodeIDs() []string {
	ids := make([]string, len(r.Nodes))
	for i, n := range r.Nodes {
		ids[i] = n.ID
	}
	return ids
}

func (r *Request) algorithmLinks() []algorithms.Link {
	links := make([]algorithms.Link, len(r.Links))
	for i, l := range r.Links {
		links[i] = algorithms.Link{Source: l.Source, Target: l.Target, Weight: l.Weight}
	}
	return links
}

// NodeMetrics holds the per-node output values
type NodeMetrics struct {
	DegreeIn       int     `json:"degree_in"`
	DegreeOut      int     `json:"degree_out"`
	DegreeTotal    int     `json:"degree_total"`
	DegreeInW      float64 `json:"degree_in_w"`
	DegreeOutW     float64 `json:"degree_out_w"`
	DegreeTotalW   float64 `json:"degree_total_w"`
	EigenvectorRaw float64 `json:"eigenvector_raw"`
	Eigenvector    float64 `json:"eigenvector"`
}

// EdgeFlag classifies an input link against the partition
type EdgeFlag struct {
	IntraCommunity bool `json:"intraCommunity"`
	BridgeEdge     bool `json:"bridgeEdge"`
}

// ScoredNode is one entry of the centrality ranking
type ScoredNode struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// Stats describes how a computation went
type Stats struct {
	Nodes               int                `json:"nodes"`
	Links               int                `json:"links"`
	DroppedLinks        int                `json:"droppedLinks"`
	Communities         int                `json:"communities"`
	PowerIterations     int                `json:"powerIterations"`
	CentralityConverged bool               `json:"centralityConverged"`
	LocalMovePasses     int                `json:"localMovePasses"`
	LocalMoves          int                `json:"localMoves"`
	PhaseMillis         map[string]float64 `json:"phaseMillis,omitempty"`
}

// Result is the complete output of one computation. Edge flags are keyed by
// the link's position in the request.
type Result struct {
	NodeMetrics    map[string]NodeMetrics `json:"nodeMetrics"`
	Communities    map[string]int         `json:"communities"`
	EdgeFlags      map[int]EdgeFlag       `json:"edgeFlags"`
	ModularityQ    float64                `json:"modularityQ"`
	TopEigenvector []ScoredNode           `json:"topEigenvector"`
	Stats          *Stats                 `json:"stats,omitempty"`
}

// Phase names a progress checkpoint
type Phase string

const (
	PhaseBuildingAdjacency Phase = "building adjacency"
	PhasePowerIteration    Phase = "power iteration"
	PhaseLocalMoves        Phase = "local moves"
	PhaseFinalizing        Phase = "finalizing"
	PhaseAssembling        Phase = "assembling"
)

// Progress is a checkpoint emitted while a computation runs. Step is the
// iteration or pass number within the phase, zero when entering it.
type Progress struct {
	Phase Phase `json:"phase"`
	Step  int   `json:"step,omitempty"`
}

// ProgressFunc receives checkpoints. Calls are serialized by the engine.
type ProgressFunc func(Progress)
