package merging

import "github.com/Ramsey-B/fern/pkg/models"

// Policy names the winner for fields both sources report. Fields reported by
// one source only always pass through; this table only decides contested
// fields. PRIMARY is the authoritative scoring source, so it wins any
// contested field the table does not list.
type Policy struct {
	Contested map[string]models.SourceKind
}

// DefaultPolicy returns the production precedence table. Minutes played is
// the one field both feeds routinely report.
func DefaultPolicy() Policy {
	return Policy{
		Contested: map[string]models.SourceKind{
			"minutes": models.SourceKindPrimary,
		},
	}
}

// Winner returns which source supplies a field both sources reported
func (p Policy) Winner(field string) models.SourceKind {
	if kind, ok := p.Contested[field]; ok {
		return kind
	}
	return models.SourceKindPrimary
}
