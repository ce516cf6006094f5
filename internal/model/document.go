package model

const (
	ContentTypeText     = "text"
	ContentTypeMarkdown = "markdown"
)

type Document struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	Title       string `json:"title"`
	Content     string `json:"content"`
	ContentType string `json:"content_type"`
	FileKey     string `json:"file_key,omitempty"`
	State       int    `json:"state"`
	Ctime       int64  `json:"ctime"`
	Mtime       int64  `json:"mtime"`
}
