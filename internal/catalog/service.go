// Package catalog implements the in-memory Service Registry: the priced
// route table the gateway advertises and matches incoming requests against.
package catalog

// Service describes one priced upstream route.
type Service struct {
	ID            string            `json:"id" validate:"required"`
	DisplayName   string            `json:"displayName" validate:"required"`
	Description   string            `json:"description"`
	Price         string            `json:"price" validate:"required"`
	Method        string            `json:"method" validate:"required,oneof=GET POST"`
	Path          string            `json:"path" validate:"required"`
	UpstreamTag   string            `json:"upstreamTag" validate:"required"`
	CostEstimate  string            `json:"costEstimate,omitempty"`
	InputSchema   map[string]any    `json:"inputSchema,omitempty"`
	MimeType      string            `json:"mimeType,omitempty"`
	Category      string            `json:"category"`
	AcceptedRails []string          `json:"acceptedRails,omitempty"`
	CacheTTLSecs  int               `json:"cacheTtlSeconds,omitempty"`
	Extra         map[string]string `json:"extra,omitempty"`
}

// key returns the (method,path) uniqueness key for a service.
func (s Service) key() string {
	return s.Method + " " + s.Path
}
