package event

// Project is the project block shared by every GitLab webhook payload.
type Project struct {
	ID                int64  `json:"id"`
	PathWithNamespace string `json:"path_with_namespace"`
	WebURL            string `json:"web_url"`
}

// User is the user who triggered the event.
type User struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Pipeline is the input of the pipeline-status rule.
type Pipeline struct {
	Project    Project            `json:"project"`
	User       User               `json:"user"`
	Commit     Commit             `json:"commit"`
	Attributes PipelineAttributes `json:"object_attributes"`
	Builds     []Build            `json:"builds"`
}

// PipelineAttributes holds the pipeline's own fields.
type PipelineAttributes struct {
	ID     int64  `json:"id"`
	Status string `json:"status"`
}

// Commit is the head commit a pipeline ran on.
type Commit struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Build is one job of a pipeline.
type Build struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Stage  string `json:"stage"`
	Status string `json:"status"`
}

// Note is the input of the merge-request comment rule.
type Note struct {
	// ProjectID is the top-level project_id of note payloads.
	ProjectID    int64           `json:"project_id"`
	Project      Project         `json:"project"`
	User         User            `json:"user"`
	Attributes   NoteAttributes  `json:"object_attributes"`
	MergeRequest *MergeRequestRef `json:"merge_request"`
}

// NoteAttributes holds the comment itself.
type NoteAttributes struct {
	DiscussionID string `json:"discussion_id"`
	URL          string `json:"url"`
	Description  string `json:"description"`
	Note         string `json:"note"`
	NoteableType string `json:"noteable_type"`
}

// Body returns the comment text.
func (a NoteAttributes) Body() string {
	if a.Description != "" {
		return a.Description
	}
	return a.Note
}

// ProjectIDOrDefault returns the top-level project_id, falling back to the
// project block.
func (n *Note) ProjectIDOrDefault() int64 {
	if n.ProjectID != 0 {
		return n.ProjectID
	}
	return n.Project.ID
}

// MergeRequestRef is the merge request a note belongs to.
type MergeRequestRef struct {
	IID   int64  `json:"iid"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// MergeRequest is the input of the approval, merge and assignment rules.
type MergeRequest struct {
	Project    Project                `json:"project"`
	User       User                   `json:"user"`
	Attributes MergeRequestAttributes `json:"object_attributes"`
	Changes    Changes                `json:"changes"`
}

// MergeRequestAttributes holds the merge request fields of the event.
type MergeRequestAttributes struct {
	IID        int64  `json:"iid"`
	Title      string `json:"title"`
	URL        string `json:"url"`
	Action     string `json:"action"`
	AssigneeID *int64 `json:"assignee_id"`
}

// Ref returns the merge request as a MergeRequestRef.
func (a MergeRequestAttributes) Ref() MergeRequestRef {
	return MergeRequestRef{IID: a.IID, Title: a.Title, URL: a.URL}
}

// Changes lists the fields an update touched.
type Changes struct {
	Assignees *AssigneesChange `json:"assignees"`
}

// AssigneesChange is the before/after of the assignee list.
type AssigneesChange struct {
	Previous []Assignee `json:"previous"`
	Current  []Assignee `json:"current"`
}

// Assignee identifies an assigned user.
type Assignee struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}
