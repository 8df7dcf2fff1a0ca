package api

const (
	// PrmFile is form parameter name for the uploaded recipient list
	PrmFile = "file"
	// PrmEmail is form parameter for uploader notification email
	PrmEmail = "email"
	// PrmClientID is form parameter for the progress subscription channel
	PrmClientID = "clientId"
	// PrmTemplateID is form parameter for the certificate template reference
	PrmTemplateID = "templateId"
	// PrmCredentialType is form parameter for the protocol family of the credential
	PrmCredentialType = "credentialType"
	// PrmSchemaID is form parameter for an explicit schema, overrides the template's one
	PrmSchemaID = "schemaId"
	// PrmCredDefID is form parameter for an explicit credential definition
	PrmCredDefID = "credDefId"
)

// HdrRequestID carries the id of the cached parsed upload pending dispatch
const HdrRequestID = "x-request-id"

// Identity headers set by the auth proxy in front of the service
const (
	HdrOrgID      = "x-org-id"
	HdrUploaderID = "x-user-id"
)

// Progress event names published to subscribed clients
const (
	EvCompleted      = "bulk-issuance-process-completed"
	EvRetryCompleted = "bulk-issuance-process-retry-completed"
	EvError          = "error-in-bulk-issuance-process"
	EvRetryError     = "error-in-bulk-issuance-retry-process"
)

// Credential protocol families accepted by the pipeline
const (
	CredTypeIndy    = "indy"
	CredTypeJSONLD  = "jsonld"
	CredTypeDefault = CredTypeIndy
)
