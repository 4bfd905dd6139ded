package syncer

// State is a step of the per-table sync state machine.
type State string

const (
	StateStart           State = "START"
	StateLayoutParsed    State = "LAYOUT_PARSED"
	StateSchemaChecked   State = "SCHEMA_CHECKED"
	StateDataDecoded     State = "DATA_DECODED"
	StateExistingFetched State = "EXISTING_FETCHED"
	StateNoveltyComputed State = "NOVELTY_COMPUTED"
	StateInsertDone      State = "INSERT_DONE"
	StateSkippedNoNew    State = "SKIPPED_NO_NEW"
	StateSuccess         State = "SUCCESS"
	StateError           State = "ERROR"
)

// Status is the terminal outcome reported to callers.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// step names a state for metrics labels.
func (s State) step() string {
	switch s {
	case StateStart:
		return "layout"
	case StateLayoutParsed:
		return "schema"
	case StateSchemaChecked:
		return "decode"
	case StateDataDecoded:
		return "snapshot"
	case StateExistingFetched:
		return "novelty"
	case StateNoveltyComputed:
		return "insert"
	default:
		return "sync"
	}
}
