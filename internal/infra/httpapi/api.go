package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/runoshun/tracksync/internal/domain"
)

// API implements the authenticated endpoints on top of the Gateway.
type API struct {
	gw *Gateway
}

// Ensure API implements the domain ports.
var (
	_ domain.TimeEntryAPI = (*API)(nil)
	_ domain.ReportAPI    = (*API)(nil)
)

// NewAPI creates an API.
func NewAPI(gw *Gateway) *API {
	return &API{gw: gw}
}

// ListProjects returns the projects visible to the user.
func (a *API) ListProjects(ctx context.Context) ([]domain.Project, error) {
	resp, err := a.gw.Get(ctx, "projects")
	if err != nil {
		return nil, err
	}
	projects, err := decodeList[domain.Project](resp.Body, "projects")
	if err != nil {
		return nil, fmt.Errorf("decode projects: %w", err)
	}
	return projects, nil
}

// OpenEntry returns the server's running entry, or nil.
func (a *API) OpenEntry(ctx context.Context) (*domain.RemoteEntry, error) {
	resp, err := a.gw.Get(ctx, "projects/time-entries/open-entry")
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	w, err := decodeOne[wireEntry](resp.Body, "timeEntry")
	if err != nil {
		return nil, fmt.Errorf("decode open entry: %w", err)
	}
	if w == nil {
		return nil, nil
	}
	e := w.toDomain()
	if e.ID == "" || w.EndTime != nil {
		return nil, nil
	}
	return &e, nil
}

// StartEntry starts a server entry for the project and returns its id.
func (a *API) StartEntry(ctx context.Context, projectID string) (string, error) {
	resp, err := a.gw.Request(ctx, http.MethodPost, "projects/time-entries/start-time/"+url.PathEscape(projectID), nil)
	if err != nil {
		return "", err
	}
	w, err := decodeOne[wireEntry](resp.Body, "timeEntry")
	if err != nil {
		return "", fmt.Errorf("decode started entry: %w", err)
	}
	if w == nil {
		return "", nil
	}
	return firstNonEmpty(w.ID, w.AltID), nil
}

// EndEntry ends the server entry. An empty id ends whichever entry is open.
func (a *API) EndEntry(ctx context.Context, entryID string) error {
	var err error
	if entryID == "" {
		_, err = a.gw.Request(ctx, http.MethodPost, "projects/time-entries/end-time", nil)
	} else {
		_, err = a.gw.Request(ctx, http.MethodPut, "projects/time-entries/end-time/"+url.PathEscape(entryID), nil)
	}
	return err
}

// MyPending returns the entries without submitted tasks.
func (a *API) MyPending(ctx context.Context) ([]domain.RemoteEntry, error) {
	resp, err := a.gw.Get(ctx, "projects/time-entries/my-pending")
	if err != nil {
		return nil, err
	}
	return decodePending(resp.Body)
}

// MarkSubmitted flags one raw entry as task-submitted.
func (a *API) MarkSubmitted(ctx context.Context, entryID string) error {
	body := map[string]bool{"taskSubmitted": true}
	_, err := a.gw.Request(ctx, http.MethodPatch, "projects/time-entries/"+url.PathEscape(entryID), body)
	return err
}

// MyTasks returns the tasks reported for a project on a day.
func (a *API) MyTasks(ctx context.Context, projectID, day string) ([]domain.ReportTask, error) {
	q := url.Values{}
	q.Set("projectId", projectID)
	q.Set("date", day)
	resp, err := a.gw.Get(ctx, "reports/daily-reports/my-tasks", WithQuery(q))
	if err != nil {
		return nil, err
	}
	wire, err := decodeList[wireTask](resp.Body, "tasks")
	if err != nil {
		return nil, fmt.Errorf("decode tasks: %w", err)
	}
	tasks := make([]domain.ReportTask, 0, len(wire))
	for _, w := range wire {
		t := w.toDomain()
		if t.ProjectID == "" {
			t.ProjectID = projectID
		}
		if t.ReportDate == "" {
			t.ReportDate = day
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

type createTaskBody struct {
	Meta        map[string]any `json:"meta,omitempty"`
	ProjectID   string         `json:"projectId"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
}

type wireReport struct {
	ID         string     `json:"_id"`
	ReportDate string     `json:"reportDate"`
	Tasks      []wireTask `json:"tasks"`
}

type createReportBody struct {
	ReportID    string           `json:"reportId,omitempty"`
	Orientation string           `json:"orientation"`
	ReportDate  string           `json:"reportDate"`
	Tasks       []createTaskBody `json:"tasks"`
}

// CreateReport creates tasks on the day report, reusing in.ReportID when set.
func (a *API) CreateReport(ctx context.Context, in domain.CreateReportInput) (*domain.Report, error) {
	body := createReportBody{
		ReportID:    in.ReportID,
		Orientation: in.Orientation,
		ReportDate:  in.ReportDate,
	}
	for _, t := range in.Tasks {
		tb := createTaskBody{ProjectID: t.ProjectID, Title: t.TaskName, Description: t.Description}
		if len(t.AttachmentPaths) > 0 {
			tb.Meta = map[string]any{"attachments": t.AttachmentPaths}
		}
		body.Tasks = append(body.Tasks, tb)
	}

	resp, err := a.gw.Request(ctx, http.MethodPost, "reports/daily-reports", body)
	if err != nil {
		return nil, err
	}

	var out wireReport
	w, err := decodeOne[wireReport](resp.Body, "report")
	if err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	if w != nil {
		out = *w
	}

	report := &domain.Report{
		ID:   firstNonEmpty(out.ID, in.ReportID),
		Date: firstNonEmpty(normalizeDay(out.ReportDate), in.ReportDate),
	}
	for _, wt := range out.Tasks {
		t := wt.toDomain()
		t.ReportID = firstNonEmpty(t.ReportID, report.ID)
		t.ReportDate = firstNonEmpty(t.ReportDate, report.Date)
		report.Tasks = append(report.Tasks, t)
	}
	return report, nil
}
