package mailchimp

import "fmt"

const (
	HealthStatusChimpy  = "Everything's Chimpy!"
	HealthStatusHealthy = "healthy"

	MemberStatusSubscribed = "subscribed"
	MergeFieldFirstName    = "FNAME"
)

type PingResponse struct {
	HealthStatus string `json:"health_status"`
}

// IsHealthy accepts the status string the live API returns as well as the
// plain "healthy" some proxies and mocks report.
func (p *PingResponse) IsHealthy() bool {
	return p != nil && (p.HealthStatus == HealthStatusChimpy || p.HealthStatus == HealthStatusHealthy)
}

type List struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type MemberRequest struct {
	EmailAddress string            `json:"email_address"`
	Status       string            `json:"status"`
	MergeFields  map[string]string `json:"merge_fields,omitempty"`
	Tags         []string          `json:"tags,omitempty"`
}

type Member struct {
	ID           string `json:"id"`
	EmailAddress string `json:"email_address"`
	Status       string `json:"status"`
	ListID       string `json:"list_id"`
}

// APIError is the problem document returned with every non-2xx response.
type APIError struct {
	Status   int    `json:"status"`
	Type     string `json:"type"`
	Title    string `json:"title"`
	Detail   string `json:"detail"`
	Instance string `json:"instance"`
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("mailchimp: %d %s", e.Status, e.Title)
	}
	return fmt.Sprintf("mailchimp: %d %s: %s", e.Status, e.Title, e.Detail)
}
