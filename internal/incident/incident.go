// Package incident parses monitoring alert payloads into a validated
// incident descriptor. Validation happens once at this boundary; everything
// downstream can rely on the required fields being present.
package incident

import (
	"encoding/json"
	"io"
	"os"
	"time"

	triageerrors "logtriage/internal/errors"
)

// Resource identifies the monitored resource an incident fired on.
type Resource struct {
	Type   string            `json:"type"`
	Labels map[string]string `json:"labels"`
}

// Incident is a validated alert descriptor. StartedAt is always set; EndedAt
// is nil while the incident is still open.
type Incident struct {
	IncidentID       string          `json:"incident_id"`
	StartedAt        time.Time       `json:"-"`
	EndedAt          *time.Time      `json:"-"`
	State            string          `json:"state,omitempty"`
	Resource         Resource        `json:"resource"`
	PolicyName       string          `json:"policy_name,omitempty"`
	ConditionName    string          `json:"condition_name,omitempty"`
	Summary          string          `json:"summary,omitempty"`
	ScopingProjectID string          `json:"scoping_project_id,omitempty"`
	Metric           json.RawMessage `json:"metric,omitempty"`
	ObservedValue    json.RawMessage `json:"observed_value,omitempty"`
	ThresholdValue   json.RawMessage `json:"threshold_value,omitempty"`
	URL              string          `json:"url,omitempty"`
}

// rawEnvelope mirrors the wire shape of the alert payload. Timestamps are
// unix seconds; ended_at is null or absent for open incidents.
type rawEnvelope struct {
	Incident *rawIncident `json:"incident"`
}

type rawIncident struct {
	IncidentID       string          `json:"incident_id"`
	StartedAt        *int64          `json:"started_at"`
	EndedAt          *int64          `json:"ended_at"`
	State            string          `json:"state"`
	Resource         *Resource       `json:"resource"`
	PolicyName       string          `json:"policy_name"`
	ConditionName    string          `json:"condition_name"`
	Summary          string          `json:"summary"`
	ScopingProjectID string          `json:"scoping_project_id"`
	Metric           json.RawMessage `json:"metric"`
	ObservedValue    json.RawMessage `json:"observed_value"`
	ThresholdValue   json.RawMessage `json:"threshold_value"`
	URL              string          `json:"url"`
}

// Parse decodes and validates an incident descriptor from r.
func Parse(r io.Reader) (*Incident, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, triageerrors.NewIncidentMalformedError(err)
	}
	return ParseBytes(data)
}

// ParseFile decodes and validates an incident descriptor from a JSON file.
func ParseFile(path string) (*Incident, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, triageerrors.NewIncidentFileError(path, err)
	}
	return ParseBytes(data)
}

// ParseBytes decodes and validates an incident descriptor from JSON bytes.
func ParseBytes(data []byte) (*Incident, error) {
	var envelope rawEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, triageerrors.NewIncidentMalformedError(err)
	}
	if envelope.Incident == nil {
		return nil, triageerrors.NewIncidentFieldError("incident", "is missing")
	}

	raw := envelope.Incident
	if raw.StartedAt == nil || *raw.StartedAt <= 0 {
		return nil, triageerrors.NewIncidentFieldError("started_at", "is missing or not a positive unix timestamp")
	}
	if raw.Resource == nil || raw.Resource.Type == "" {
		return nil, triageerrors.NewIncidentFieldError("resource.type", "is missing")
	}
	if raw.Resource.Labels == nil {
		return nil, triageerrors.NewIncidentFieldError("resource.labels", "is missing")
	}

	inc := &Incident{
		IncidentID:       raw.IncidentID,
		StartedAt:        time.Unix(*raw.StartedAt, 0).UTC(),
		State:            raw.State,
		Resource:         *raw.Resource,
		PolicyName:       raw.PolicyName,
		ConditionName:    raw.ConditionName,
		Summary:          raw.Summary,
		ScopingProjectID: raw.ScopingProjectID,
		Metric:           raw.Metric,
		ObservedValue:    raw.ObservedValue,
		ThresholdValue:   raw.ThresholdValue,
		URL:              raw.URL,
	}
	if raw.EndedAt != nil && *raw.EndedAt > 0 {
		ended := time.Unix(*raw.EndedAt, 0).UTC()
		inc.EndedAt = &ended
	}
	return inc, nil
}

// ProjectID resolves the project the incident belongs to: the scoping project
// when set, otherwise the resource's project_id label. Empty when neither is
// present, in which case the caller must supply one explicitly.
func (i *Incident) ProjectID() string {
	if i.ScopingProjectID != "" {
		return i.ScopingProjectID
	}
	return i.Resource.Labels["project_id"]
}

// Open reports whether the incident has no recorded end.
func (i *Incident) Open() bool {
	return i.EndedAt == nil
}
