package model

// Signal names one of the three scoring dimensions.
type Signal string

const (
	SignalAnomaly Signal = "anomaly"
	SignalSocial  Signal = "social"
	SignalAction  Signal = "action"
)

// Signals lists every signal in report order.
var Signals = []Signal{SignalAnomaly, SignalSocial, SignalAction}

// SignalScore is one scorer's output. Score is nil when the oracle reply could not be parsed.
type SignalScore struct {
	Signal    Signal `json:"signal"`
	Score     *int   `json:"score"`
	Reasoning string `json:"reasoning"`
	Raw       string `json:"-"`
}

// Present reports whether a score was parsed.
func (s SignalScore) Present() bool { return s.Score != nil }

// Labels returned by the classifier.
const (
	LabelBot          = "Bot"
	LabelHuman        = "Human"
	LabelUnclassified = "Unclassified"
)

// Verdict is the classifier output.
type Verdict struct {
	Label      string   `json:"classification"`
	Confidence *float64 `json:"confidence"`
	Reasoning  string   `json:"reasoning"`
	Raw        string   `json:"-"`
}

// Classified reports whether the verdict carries a real label.
func (v Verdict) Classified() bool { return v.Label != "" && v.Label != LabelUnclassified }

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }

// Float64Ptr returns a pointer to v.
func Float64Ptr(v float64) *float64 { return &v }
