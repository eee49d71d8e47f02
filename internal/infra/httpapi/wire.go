package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/runoshun/tracksync/internal/domain"
)

// ref is an id that the server sends either as a string or as a populated
// document ({"_id": ..., "name": ...}).
type ref struct {
	ID   string
	Name string
}

func (r *ref) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if data[0] == '"' {
		return json.Unmarshal(data, &r.ID)
	}
	var doc struct {
		ID    string `json:"_id"`
		AltID string `json:"id"`
		Name  string `json:"name"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	r.ID = firstNonEmpty(doc.ID, doc.AltID)
	r.Name = doc.Name
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// wireEntry is a time entry as sent by the server. Duration is in seconds.
// Fields are ordered to minimize memory padding.
type wireEntry struct {
	StartTime     time.Time  `json:"startTime"`
	EndTime       *time.Time `json:"endTime"`
	Project       ref        `json:"projectId"`
	ID            string     `json:"_id"`
	AltID         string     `json:"id"`
	ProjectName   string     `json:"projectName"`
	EntryIDs      []string   `json:"entryIds"`
	Duration      float64    `json:"duration"`
	TaskSubmitted bool       `json:"taskSubmitted"`
}

func (w wireEntry) toDomain() domain.RemoteEntry {
	d := time.Duration(w.Duration * float64(time.Second))
	if d == 0 && w.EndTime != nil && w.EndTime.After(w.StartTime) {
		d = w.EndTime.Sub(w.StartTime)
	}
	return domain.RemoteEntry{
		ID:            firstNonEmpty(w.ID, w.AltID),
		ProjectID:     w.Project.ID,
		ProjectName:   firstNonEmpty(w.ProjectName, w.Project.Name),
		StartTime:     w.StartTime,
		Duration:      d,
		EntryIDs:      w.EntryIDs,
		TaskSubmitted: w.TaskSubmitted,
	}
}

// wireGroup is one element of the entries-by-project pending shape.
type wireGroup struct {
	Project     ref         `json:"projectId"`
	ProjectName string      `json:"projectName"`
	Entries     []wireEntry `json:"entries"`
}

func (g wireGroup) toDomain() []domain.RemoteEntry {
	out := make([]domain.RemoteEntry, 0, len(g.Entries))
	for _, w := range g.Entries {
		e := w.toDomain()
		if e.ProjectID == "" {
			e.ProjectID = g.Project.ID
		}
		if e.ProjectName == "" {
			e.ProjectName = firstNonEmpty(g.ProjectName, g.Project.Name)
		}
		out = append(out, e)
	}
	return out
}

// decodePending accepts the three pending shapes: a bare entry array,
// {"entries": [...]}, and {"entriesByProject": [...] | {projectId: [...]}}.
func decodePending(body []byte) ([]domain.RemoteEntry, error) {
	body = bytes.TrimSpace(unwrapData(body))
	if len(body) == 0 || string(body) == "null" {
		return nil, nil
	}

	if body[0] == '[' {
		var entries []wireEntry
		if err := json.Unmarshal(body, &entries); err != nil {
			return nil, fmt.Errorf("decode pending entries: %w", err)
		}
		return entriesToDomain(entries), nil
	}

	var obj struct {
		Entries          []wireEntry     `json:"entries"`
		EntriesByProject json.RawMessage `json:"entriesByProject"`
	}
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, fmt.Errorf("decode pending entries: %w", err)
	}
	out := entriesToDomain(obj.Entries)

	byProject := bytes.TrimSpace(obj.EntriesByProject)
	if len(byProject) == 0 || string(byProject) == "null" {
		return out, nil
	}
	if byProject[0] == '[' {
		var groups []wireGroup
		if err := json.Unmarshal(byProject, &groups); err != nil {
			return nil, fmt.Errorf("decode entriesByProject: %w", err)
		}
		for _, g := range groups {
			out = append(out, g.toDomain()...)
		}
		return out, nil
	}

	// Object keyed by project id. Go maps are unordered, so keys are walked
	// in document order to keep the server's ordering.
	keys, err := objectKeys(byProject)
	if err != nil {
		return nil, fmt.Errorf("decode entriesByProject: %w", err)
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(byProject, &m); err != nil {
		return nil, fmt.Errorf("decode entriesByProject: %w", err)
	}
	for _, projectID := range keys {
		raw := bytes.TrimSpace(m[projectID])
		g := wireGroup{Project: ref{ID: projectID}}
		if len(raw) > 0 && raw[0] == '[' {
			err = json.Unmarshal(raw, &g.Entries)
		} else {
			err = json.Unmarshal(raw, &g)
			if g.Project.ID == "" {
				g.Project.ID = projectID
			}
		}
		if err != nil {
			return nil, fmt.Errorf("decode entriesByProject[%s]: %w", projectID, err)
		}
		out = append(out, g.toDomain()...)
	}
	return out, nil
}

func entriesToDomain(entries []wireEntry) []domain.RemoteEntry {
	out := make([]domain.RemoteEntry, 0, len(entries))
	for _, w := range entries {
		out = append(out, w.toDomain())
	}
	return out
}

// objectKeys returns the top-level keys of a JSON object in document order.
func objectKeys(data []byte) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token %v", tok)
		}
		keys = append(keys, key)
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil, err
		}
	}
	return keys, nil
}

// wireTask is a report task as sent by the server.
// Fields are ordered to minimize memory padding.
type wireTask struct {
	Report struct {
		ID         string `json:"_id"`
		ReportDate string `json:"reportDate"`
	} `json:"report"`
	Project         ref      `json:"projectId"`
	ID              string   `json:"_id"`
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	ReportID        string   `json:"reportId"`
	ReportDate      string   `json:"reportDate"`
	AttachmentPaths []string `json:"attachments"`
}

func (w wireTask) toDomain() domain.ReportTask {
	return domain.ReportTask{
		ID:              w.ID,
		ProjectID:       w.Project.ID,
		TaskName:        w.Title,
		Description:     w.Description,
		ReportID:        firstNonEmpty(w.Report.ID, w.ReportID),
		ReportDate:      normalizeDay(firstNonEmpty(w.Report.ReportDate, w.ReportDate)),
		AttachmentPaths: w.AttachmentPaths,
	}
}

// normalizeDay reduces an RFC 3339 timestamp to its calendar day.
func normalizeDay(s string) string {
	if len(s) > len(domain.DayLayout) {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t.Format(domain.DayLayout)
		}
		return s[:len(domain.DayLayout)]
	}
	return s
}

// decodeList decodes either a bare array or an object holding the array
// under key.
func decodeList[T any](body []byte, key string) ([]T, error) {
	body = bytes.TrimSpace(unwrapData(body))
	if len(body) == 0 || string(body) == "null" {
		return nil, nil
	}
	if body[0] == '[' {
		var out []T
		err := json.Unmarshal(body, &out)
		return out, err
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, err
	}
	raw, ok := obj[key]
	if !ok {
		return nil, nil
	}
	var out []T
	err := json.Unmarshal(raw, &out)
	return out, err
}

// decodeOne decodes either a bare object or an object nested under key.
func decodeOne[T any](body []byte, key string) (*T, error) {
	body = bytes.TrimSpace(unwrapData(body))
	if len(body) == 0 || string(body) == "null" {
		return nil, nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, err
	}
	if nested, ok := obj[key]; ok {
		body = bytes.TrimSpace(nested)
		if len(body) == 0 || string(body) == "null" {
			return nil, nil
		}
	}
	var out T
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
