package connector

import (
	"context"

	"github.com/pkorolev/factscan/internal/model"
)

// Connector produces raw candidate records from one external source.
// Connectors never fail the pipeline: transient failures surface as an
// error alongside zero records, and the caller logs and moves on.
type Connector interface {
	// Name identifies the source, e.g. "feed:factly.in" or "google-factcheck".
	Name() string

	// Fetch returns the source's current records. The returned error is
	// soft; records fetched before the failure are still usable.
	Fetch(ctx context.Context) ([]model.RawRecord, error)
}
