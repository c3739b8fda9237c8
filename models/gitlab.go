package models

// MergeRequest is the subset of a GitLab merge request the notifier reads.
type MergeRequest struct {
	IID      int64  `json:"iid"`
	Title    string `json:"title"`
	URL      string `json:"url"`
	AuthorID int64  `json:"author_id"`
}

// User is a GitLab user record. Email is empty when the token in use is not
// allowed to see it.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Email    string `json:"email"`
}

// Discussion is a merge request thread; only note authors are kept.
type Discussion struct {
	ID    string `json:"id"`
	Notes []Note `json:"notes"`
}

// Note is a single comment inside a Discussion.
type Note struct {
	ID       int64 `json:"id"`
	AuthorID int64 `json:"author_id"`
}
