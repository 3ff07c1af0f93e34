// Package identity derives ATS identifiers from the resume filename
// convention `<DisplayName>__<candidateId>__<applicationId>.pdf`.
package identity

import (
	"strings"

	"github.com/google/uuid"
)

// Identity cross-references a resume file with the ATS. It is derived from
// the filename on demand and never stored.
type Identity struct {
	DisplayName   string
	CandidateID   uuid.UUID
	ApplicationID uuid.UUID
}

// FromFilename parses the filename convention. ok is false when the name
// does not match; ATS archival and stage sync degrade gracefully for such
// files.
func FromFilename(filename string) (Identity, bool) {
	base := filename
	if i := strings.LastIndexByte(base, '/'); i >= 0 {
		base = base[i+1:]
	}

	ext := ""
	if i := strings.LastIndexByte(base, '.'); i >= 0 {
		ext = base[i:]
		base = base[:i]
	}
	if !strings.EqualFold(ext, ".pdf") {
		return Identity{}, false
	}

	parts := strings.Split(base, "__")
	if len(parts) != 3 || parts[0] == "" {
		return Identity{}, false
	}

	candidateID, err := uuid.Parse(parts[1])
	if err != nil {
		return Identity{}, false
	}
	applicationID, err := uuid.Parse(parts[2])
	if err != nil {
		return Identity{}, false
	}

	return Identity{
		DisplayName:   parts[0],
		CandidateID:   candidateID,
		ApplicationID: applicationID,
	}, true
}
