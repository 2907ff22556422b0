package domain

// StageStatus is the outcome of one pipeline stage for one document.
type StageStatus string

const (
	StagePending StageStatus = ""
	StageOK      StageStatus = "ok"
	StageFailed  StageStatus = "failed"
)

// Advance moves the status forward. OK is terminal; pending never comes back.
func (s StageStatus) Advance(next StageStatus) StageStatus {
	if s == StageOK || next == StagePending {
		return s
	}
	return next
}

// DocumentState tracks a single document through download, conversion and extraction.
type DocumentState struct {
	Download   StageStatus `json:"download,omitempty"`
	Convert    StageStatus `json:"convert,omitempty"`
	Extract    StageStatus `json:"extract,omitempty"`
	Garbage    bool        `json:"garbage,omitempty"`     // converter reported low-confidence text
	HTTPStatus int         `json:"http_status,omitempty"` // last download status code
}

// DownloadOK reports whether the PDF is on disk and usable.
func (s DocumentState) DownloadOK() bool { return s.Download == StageOK }

// ConvertOK reports whether the text file is usable.
func (s DocumentState) ConvertOK() bool { return s.Convert == StageOK }

// ExtractOK reports whether keywords were extracted.
func (s DocumentState) ExtractOK() bool { return s.Extract == StageOK }

// State is the per-certificate processing state.
type State struct {
	Report     DocumentState `json:"report"`
	Target     DocumentState `json:"target"`
	Analyzed   bool          `json:"analyzed"`
	FileStatus bool          `json:"file_status"` // false when reference resolution flagged the certificate
	Errors     []string      `json:"errors,omitempty"`
}

// NewState returns the state of a freshly parsed certificate.
func NewState() State {
	return State{FileStatus: true}
}

// Doc returns a pointer to the state of the selected document.
func (s *State) Doc(kind DocumentKind) *DocumentState {
	if kind == DocumentTarget {
		return &s.Target
	}
	return &s.Report
}

// AnyExtracted reports whether at least one document has keyword data.
func (s State) AnyExtracted() bool {
	return s.Report.ExtractOK() || s.Target.ExtractOK()
}

// Reset puts every stage back to pending. Used only for explicit re-runs.
func (s *State) Reset() {
	*s = NewState()
}

func (s State) clone() State {
	out := s
	if s.Errors != nil {
		out.Errors = append([]string(nil), s.Errors...)
	}
	return out
}

// DatasetState records which pipeline stages have completed for the whole dataset.
type DatasetState struct {
	MetaSourcesParsed bool `json:"meta_sources_parsed"`
	PDFsDownloaded    bool `json:"pdfs_downloaded"`
	PDFsConverted     bool `json:"pdfs_converted"`
	CertsAnalyzed     bool `json:"certs_analyzed"`
}
