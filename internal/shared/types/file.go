package types

import "time"

// FileMetadata is a point-in-time snapshot of one filesystem entry.
type FileMetadata struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	IsDir     bool      `json:"is_dir"`
	IsBinary  bool      `json:"is_binary"`
	Modified  time.Time `json:"modified"`
	Extension string    `json:"extension,omitempty"`
	MIMEType  string    `json:"mime_type,omitempty"`
}

// Encoding identifies how file content is transported to the caller.
type Encoding string

const (
	EncodingUTF8   Encoding = "utf-8"
	EncodingBase64 Encoding = "base64"
)

// FileContent is the result of a successful read.
type FileContent struct {
	Content     string       `json:"content"`
	Metadata    FileMetadata `json:"metadata"`
	Encoding    Encoding     `json:"encoding"`
	Charset     string       `json:"charset,omitempty"`
	ETag        string       `json:"etag"`
	Immutable   bool         `json:"immutable"`
	NotModified bool         `json:"not_modified,omitempty"`
}

// DirectoryListing is the result of a successful directory listing.
type DirectoryListing struct {
	Path          string         `json:"path"`
	Files         []FileMetadata `json:"files"`
	TotalCount    int            `json:"total_count"`
	FilteredCount int            `json:"filtered_count"`
	FromArtifact  bool           `json:"from_artifact,omitempty"`
}
