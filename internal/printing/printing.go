package printing

import (
	"context"

	"github.com/kursadbilgin/issuance-engine/internal/domain"
)

// Renderer is the outbound port to the print-form rendering collaborator.
type Renderer interface {
	Render(ctx context.Context, request RenderRequest) (*RenderResponse, error)
}

// RenderRequest carries everything the renderer needs to lay out a form.
// Card fields are only set for contract documents.
type RenderRequest struct {
	Kind          domain.DocumentKind `json:"kind"`
	ApplicationNo string              `json:"applicationNo"`
	ApplicantName string              `json:"applicantName"`
	ProductCode   string              `json:"productCode"`
	CardNo        string              `json:"cardNo,omitempty"`
	PanMasked     string              `json:"panMasked,omitempty"`
	ExpiryMonth   int                 `json:"expiryMonth,omitempty"`
	ExpiryYear    int                 `json:"expiryYear,omitempty"`
}

// RenderResponse stores renderer call metadata for audit and persistence.
type RenderResponse struct {
	StatusCode int
	Location   string
	RequestID  string
}
