package domain

// GraphGroup defines the category of a node.
type GraphGroup string

const (
	GroupCommonCriteria GraphGroup = "cc"
	GroupFIPS           GraphGroup = "fips"
)

// GraphNode represents a certificate in the reference graph projection.
type GraphNode struct {
	ID         string     `json:"id"` // short hash id
	Digest     string     `json:"dgst"`
	Label      string     `json:"label"`
	Group      GraphGroup `json:"group"`
	Status     Status     `json:"status,omitempty"`
	Vendor     string     `json:"vendor,omitempty"`
	CertNumber string     `json:"cert_number,omitempty"`

	ReferencedBy           int `json:"referenced_by"`
	IndirectlyReferencedBy int `json:"indirectly_referenced_by"`
	References             int `json:"references"`
}

// EdgeType defines the nature of the connection between nodes.
type EdgeType string

const (
	TypeReference EdgeType = "reference"
)

// GraphEdge is a directed reference from one certificate to another.
type GraphEdge struct {
	From string   `json:"from"`
	To   string   `json:"to"`
	Type EdgeType `json:"type,omitempty"`
}

// GraphData is the whole graph state handed to API consumers.
type GraphData struct {
	Nodes      []GraphNode `json:"nodes"`
	Edges      []GraphEdge `json:"edges"`
	Components [][]string  `json:"components,omitempty"` // node ids per weakly connected component
}
