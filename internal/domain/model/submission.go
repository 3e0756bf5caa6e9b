package model

// BinarySpec names a firmware binary and where to read it from. Location is a
// local path (globs allowed), an http(s) URL, or an s3://bucket/key URI.
type BinarySpec struct {
	Name     string `yaml:"name" validate:"required"`
	Location string `yaml:"location" validate:"required"`
}

// Submission is everything needed to request a test job for a commit.
type Submission struct {
	WorkflowID   string       `validate:"required"`
	CommitHash   string       `validate:"required,hexadecimal,min=7,max=64"`
	Binaries     []BinarySpec `validate:"required,min=1,dive"`
	ChangeNumber string       `validate:"omitempty,numeric"`
	Patchset     string       `validate:"omitempty,numeric"`
	Project      string
	Branch       string
	Comment      string
}

// JobSubmission is the create request sent to the CI service once every
// binary has been uploaded. BinaryIDs maps binary name to uploaded ID.
type JobSubmission struct {
	WorkflowID   string
	CommitHash   string
	BinaryIDs    map[string]string
	ChangeNumber string
	Patchset     string
	Project      string
	Branch       string
	Comment      string
}

// Workflow is a reusable test configuration on the CI service.
type Workflow struct {
	ID          string
	Name        string
	Description string
}
