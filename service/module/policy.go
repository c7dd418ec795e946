package module

// Policy controls which references a script may load. The block list takes
// precedence; a non-empty allow list admits only its entries. A nil policy
// admits everything.
type Policy struct {
	AllowList []string `json:"allowList,omitempty" yaml:"allowList,omitempty"`
	BlockList []string `json:"blockList,omitempty" yaml:"blockList,omitempty"`
}

// IsAllowed reports whether the named module may be loaded.
func (p *Policy) IsAllowed(name string) bool {
	if p == nil {
		return true
	}
	for _, blocked := range p.BlockList {
		if blocked == name {
			return false
		}
	}
	if len(p.AllowList) == 0 {
		return true
	}
	for _, allowed := range p.AllowList {
		if allowed == name {
			return true
		}
	}
	return false
}
