package parts

// OutcomeStatus classifies the result of importing one identifier.
// Statuses form a severity order so results from multiple suppliers can be
// combined by keeping the worst one.
type OutcomeStatus int

const (
	// StatusFailed means the target catalog rejected an operation or all
	// adapters failed hard. The partial operation list is preserved.
	StatusFailed OutcomeStatus = iota
	// StatusSkipped means the item was not imported on purpose, e.g. no
	// usable supplier data or an ambiguous catalog match.
	StatusSkipped
	// StatusPartial means the part was imported but some data could not be
	// applied (unmatched parameters, one supplier errored).
	StatusPartial
	// StatusUpToDate means the catalog already held identical data; the
	// plan was empty and nothing was executed.
	StatusUpToDate
	// StatusUpdated means an existing catalog part was brought in line.
	StatusUpdated
	// StatusCreated means a new catalog part was created.
	StatusCreated
)

// String returns the status name used in reports.
func (s OutcomeStatus) String() string {
	switch s {
	case StatusFailed:
		return "failed"
	case StatusSkipped:
		return "skipped"
	case StatusPartial:
		return "partial"
	case StatusUpToDate:
		return "up-to-date"
	case StatusUpdated:
		return "updated"
	case StatusCreated:
		return "created"
	default:
		return "unknown"
	}
}

// Combine keeps the more severe of two statuses.
func (s OutcomeStatus) Combine(o OutcomeStatus) OutcomeStatus {
	if o < s {
		return o
	}
	return s
}

// Success reports whether the item reached the catalog in full.
func (s OutcomeStatus) Success() bool {
	return s >= StatusUpToDate
}

// ExecutedOp is one applied (or attempted) mutation in the audit trail.
type ExecutedOp struct {
	Index       int
	Description string
	Err         string // empty unless this is the failing operation
}

// Conflict records one field disagreement between suppliers that the
// merger resolved by priority. Conflicts are reported, never dropped.
type Conflict struct {
	Key              IdentityKey
	Field            string
	ChosenSupplier   string
	ChosenValue      string
	RejectedSupplier string
	RejectedValue    string
}

// ImportOutcome is the per-identifier result delivered to the caller, in
// the order identifiers were submitted.
type ImportOutcome struct {
	Identifier string
	Status     OutcomeStatus
	Reason     string // for skipped/failed outcomes
	PartRef    string // catalog reference for created/updated parts
	Executed   []ExecutedOp
	Conflicts  []Conflict
	Err        error
}

// Skipped builds a skipped outcome with a reason.
func Skipped(identifier, reason string) ImportOutcome {
	return ImportOutcome{Identifier: identifier, Status: StatusSkipped, Reason: reason}
}

// Failed builds a failed outcome preserving the error and partial audit.
func Failed(identifier string, err error, executed []ExecutedOp) ImportOutcome {
	reason := ""
	if err != nil {
		reason = err.Error()
	}
	return ImportOutcome{
		Identifier: identifier,
		Status:     StatusFailed,
		Reason:     reason,
		Executed:   executed,
		Err:        err,
	}
}
