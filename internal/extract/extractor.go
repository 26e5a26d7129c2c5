package extract

import (
	"context"

	"tributary/internal/models"
)

// Extractor pulls raw records of one data type for a date range out of an
// upstream source. Implementations must be restartable: calling Fetch again
// with the same arguments after a partial failure is safe and produces the
// same logical record set. Cancellation is cooperative through the context;
// a cancelled stream stops producing and reports how far it got via Yielded.
type Extractor interface {
	// Source names the upstream this extractor reads from
	// (store.SourceWarehouse or store.SourceFileDrop).
	Source() string
	// Fetch starts producing records for the given type and range. It
	// never blocks; production happens on a goroutine behind the stream.
	Fetch(ctx context.Context, dataType string, r models.DateRange) *Stream
}

// Factory builds the extractor serving one data type for one tenant. The
// orchestrator calls it once per requested type, after config resolution.
type Factory func(cfg *models.TenantConfig, dataType string) (Extractor, error)
