package secondary

// ProgressNotifier defines the secondary port for best-effort live progress
// fan-out. Publishing must never block or fail the calling phase; slow
// subscribers lose entries instead.
type ProgressNotifier interface {
	// Publish delivers an entry to current subscribers of its ticket.
	Publish(entry *ProgressRecord)

	// Subscribe registers a live subscriber for a ticket. The returned
	// cancel function unregisters it and closes the channel; calling it
	// more than once is safe.
	Subscribe(ticketID string) (<-chan *ProgressRecord, func())
}
