package api

import "context"

// Attribute is one credential attribute name/value pair
type Attribute struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// IssueData keeps structure for one out-of-band issuance call
type IssueData struct {
	ReferenceID    string      `json:"referenceId"`
	CredentialType string      `json:"credentialType"`
	SchemaID       string      `json:"schemaId,omitempty"`
	CredDefID      string      `json:"credDefId,omitempty"`
	Attributes     []Attribute `json:"attributes"`
	Template       string      `json:"template,omitempty"`
	Logo           string      `json:"logo,omitempty"`
	OrgID          string      `json:"orgId,omitempty"`
}

// Issuer issues one credential, delivery to the recipient is out-of-band
type Issuer interface {
	IssueCredential(ctx context.Context, data *IssueData) error
}
