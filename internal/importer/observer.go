package importer

// Observer receives progress notifications during a run. Implementations
// must be safe for concurrent use: entity notifications arrive from many
// worker goroutines.
type Observer interface {
	// Phase is called when the run enters a new phase.
	Phase(name string)

	// EntityCreated is called after a remote create succeeds.
	EntityCreated(kind, name, url string)
}

func (imp *Importer) notifyPhase(name string) {
	for _, o := range imp.observers {
		o.Phase(name)
	}
}

func (imp *Importer) notifyCreated(kind, name, url string) {
	for _, o := range imp.observers {
		o.EntityCreated(kind, name, url)
	}
}
