package shared

// Actor identifies the user performing a business operation. The engine only
// snapshots it onto ledger entries and audit records; authentication lives
// outside this application.
type Actor struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}
