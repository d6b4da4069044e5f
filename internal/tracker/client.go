// Package tracker is the REST client for the work tracking service. It fetches
// a team's ranked backlog and per-item detail with dependency relations.
package tracker

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/ldi/backvet/pkg/models"
)

const (
	apiVersion = "7.0"

	// defaultBacklogLevel is the requirement-level backlog of a team.
	defaultBacklogLevel = "Microsoft.RequirementCategory"

	// relPredecessor marks a reverse dependency link: the target item must be
	// done before the item carrying the relation. Every other relation type is
	// ignored.
	relPredecessor = "System.LinkTypes.Dependency-Reverse"
)

type Client struct {
	http         *resty.Client
	orgURL       string
	BacklogLevel string
}

// New builds a client for the given organization URL, authenticating every
// request with the personal access token. There is deliberately no retry:
// a failed call aborts the run.
func New(orgURL, token string, timeout time.Duration) *Client {
	http := resty.New().
		SetBaseURL(strings.TrimRight(orgURL, "/")).
		SetTimeout(timeout).
		SetBasicAuth("", token).
		SetHeader("Accept", "application/json")

	return &Client{
		http:         http,
		orgURL:       strings.TrimRight(orgURL, "/"),
		BacklogLevel: defaultBacklogLevel,
	}
}

type backlogResponse struct {
	WorkItems []struct {
		Target struct {
			ID int `json:"id"`
		} `json:"target"`
	} `json:"workItems"`
}

type workItemResponse struct {
	ID     int `json:"id"`
	Fields struct {
		Title         string `json:"System.Title"`
		WorkItemType  string `json:"System.WorkItemType"`
		AreaPath      string `json:"System.AreaPath"`
		IterationPath string `json:"System.IterationPath"`
		Parent        *int   `json:"System.Parent"`
	} `json:"fields"`
	Relations []struct {
		Rel string `json:"rel"`
		URL string `json:"url"`
	} `json:"relations"`
}

// GetBacklog returns the work item ids of the team backlog in rank order.
func (c *Client) GetBacklog(ctx context.Context, project, team string) ([]int, error) {
	var body backlogResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&body).
		SetQueryParam("api-version", apiVersion).
		Get(fmt.Sprintf("/%s/%s/_apis/work/backlogs/%s/workItems",
			url.PathEscape(project), url.PathEscape(team), url.PathEscape(c.BacklogLevel)))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch backlog for team %s: %w", team, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("backlog fetch for team %s returned %s", team, resp.Status())
	}

	ids := make([]int, 0, len(body.WorkItems))
	for _, wi := range body.WorkItems {
		ids = append(ids, wi.Target.ID)
	}
	return ids, nil
}

// GetWorkItem fetches one item with its relations expanded and maps it to a
// BacklogItem. Only reverse dependency relations are consumed; the related id
// is the trailing path segment of the relation URL.
func (c *Client) GetWorkItem(ctx context.Context, id int) (*models.BacklogItem, error) {
	var body workItemResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&body).
		SetQueryParam("api-version", apiVersion).
		SetQueryParam("$expand", "relations").
		Get(fmt.Sprintf("/_apis/wit/workitems/%d", id))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch work item %d: %w", id, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("work item %d fetch returned %s", id, resp.Status())
	}

	item := models.NewBacklogItem(body.ID)
	item.Title = body.Fields.Title
	item.Type = body.Fields.WorkItemType
	item.AreaPath = body.Fields.AreaPath
	item.IterationPath = body.Fields.IterationPath
	item.ParentID = body.Fields.Parent

	for _, rel := range body.Relations {
		if rel.Rel != relPredecessor {
			continue
		}
		target, err := relationTarget(rel.URL)
		if err != nil {
			return nil, fmt.Errorf("work item %d has a malformed dependency link: %w", id, err)
		}
		item.Predecessors.Add(target)
	}

	return item, nil
}

// ItemURL is the direct link to an item in the tracking service web UI.
func (c *Client) ItemURL(project string, id int) string {
	return fmt.Sprintf("%s/%s/_workitems/edit/%d", c.orgURL, url.PathEscape(project), id)
}

func relationTarget(raw string) (int, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid relation url %q: %w", raw, err)
	}
	id, err := strconv.Atoi(path.Base(u.Path))
	if err != nil {
		return 0, fmt.Errorf("relation url %q does not end in an item id", raw)
	}
	return id, nil
}
