package model

// VariableInfo is a bounded, display-oriented view of a single live value.
// It never embeds the value itself so that arbitrarily large or cyclic
// object graphs can be surfaced to a client incrementally.
type VariableInfo struct {
	Name         string `json:"name"`
	Value        string `json:"value"`
	Type         string `json:"type"`
	JSON         string `json:"json,omitempty"`
	IsBrowseable bool   `json:"isBrowseable"`
	CanInspect   bool   `json:"canInspect"`
}

// ErrorInfo describes a single compile or evaluation diagnostic.
type ErrorInfo struct {
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
}

// Fault captures an unhandled error raised by user code at run time.
type Fault struct {
	Type       string `json:"type"`
	Message    string `json:"message"`
	StackTrace string `json:"stackTrace,omitempty"`
}
