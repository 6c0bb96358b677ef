package domain

import (
	"fmt"
	"strings"
	"time"
)

// DocumentKind identifies a print form generated for an application.
type DocumentKind string

const (
	DocumentStatement DocumentKind = "STATEMENT"
	DocumentContract  DocumentKind = "CONTRACT"
)

func (k DocumentKind) String() string { return string(k) }

func (k DocumentKind) IsValid() bool {
	return k == DocumentStatement || k == DocumentContract
}

func ParseDocumentKindFromString(s string) (DocumentKind, error) {
	k := DocumentKind(strings.ToUpper(strings.TrimSpace(s)))
	if !k.IsValid() {
		return "", fmt.Errorf("%w: invalid document kind %q", ErrValidation, s)
	}
	return k, nil
}

// DocumentHandle is the rendering collaborator's receipt for an accepted
// print request. Holding a handle does not imply the artifact is finished;
// Location points at where the finished document can be fetched.
type DocumentHandle struct {
	ID            string       `json:"id"`
	ApplicationNo string       `json:"applicationNo"`
	Kind          DocumentKind `json:"kind"`
	Location      string       `json:"location,omitempty"`
	RequestedAt   time.Time    `json:"requestedAt"`
	CompletedAt   *time.Time   `json:"completedAt,omitempty"`
}
