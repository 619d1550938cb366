package telemetry

// State accumulates telemetry fragments for the current print job and tracks
// job identity. It is owned by the single connection supervisor goroutine;
// there are no concurrent writers and no locking.
type State struct {
	cached map[string]any

	// jobFile is the last filename that triggered an image fetch. Empty
	// means the next nonzero filename must trigger one.
	jobFile string
}

// NewState returns an empty accumulator. The cache lives for the session
// lifetime; it is never reset wholesale, only the job marker is cleared.
func NewState() *State {
	return &State{cached: make(map[string]any)}
}

// Merge folds one fragment into the cached state and reports whether it marks
// the start of a new print job (the caller triggers the image fetch on true).
//
// Whitelisted keys present in the fragment overwrite cached entries
// (last-write-wins); absent keys leave prior values untouched. A fragment
// whose printProgress coerces to exactly 0 clears the job marker BEFORE the
// filename check, so a single fragment can end one job and start the next.
func (s *State) Merge(fragment RawFragment) bool {
	for _, key := range fragmentKeys {
		if value, ok := fragment[key]; ok {
			s.cached[key] = value
		}
	}

	// Job finished (progress back to zero): clear the marker so the next
	// job triggers a fetch even if it reuses the same filename. The 1.0
	// fallback keeps absent or unparsable progress from clearing.
	if raw, ok := fragment[KeyProgress]; ok && safeFloat(raw, 1.0) == 0 {
		s.jobFile = ""
	}

	filename := baseName(safeString(s.cached[KeyFileName], ""))
	if filename != "" && filename != s.jobFile {
		s.jobFile = filename
		return true
	}

	return false
}

// CurrentJob returns the filename of the job currently being tracked, or
// empty when none is.
func (s *State) CurrentJob() string {
	return s.jobFile
}

// Snapshot sanitizes the accumulated state into a typed snapshot.
func (s *State) Snapshot(imageURL string) Snapshot {
	return Sanitize(s.cached, imageURL)
}
