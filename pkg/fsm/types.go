package fsm

// UploadRequest is the FSM input: one matched variation and the file chosen
// for it.
type UploadRequest struct {
	RunID         string
	ItemID        string
	VariationID   string
	VariationName string
	Directory     string
	FileName      string
	// Primary is set when the upload should become the item's primary image.
	Primary bool
}

// UploadResponse is the FSM output (accumulated across transitions)
type UploadResponse struct {
	// From Verify
	Outcome    string
	SkipReason string

	// From Upload
	UploadID       int64
	IdempotencyKey string
	UploadedName   string
	ImageID        string
	Bytes          int64
	PrimarySet     bool

	// From Associate
	AssociationWarning string

	// From Complete/Failed
	ErrorKind    string
	ErrorMessage string
}

// Done reports whether the upload reached a terminal outcome.
func (r *UploadResponse) Done() bool {
	return r.Outcome != ""
}

// State names
const (
	StateVerify    = "verify"
	StateUpload    = "upload"
	StateAssociate = "associate"
	StateComplete  = "complete"
	StateFailed    = "failed"
)

// Outcomes
const (
	OutcomeUploaded = "uploaded"
	OutcomeSkipped  = "skipped"
	OutcomeFailed   = "failed"
)

// Skip reasons
const (
	SkipVariationHasImage = "variation_has_image"
	SkipItemHasPrimary    = "item_has_primary_image"
	SkipNotFound          = "not_found"
)
