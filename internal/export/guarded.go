package export

import (
	"context"

	"github.com/parkwatch/parkwatch/internal/monitoring/parkkihubi"
	"github.com/parkwatch/parkwatch/internal/provider/guard"
)

// GuardedDownloader wraps a Downloader with retry and circuit breaker
// protection. Filter pages are buffered per attempt so a retried chain
// never replays pages from a failed one. A CSV download that fails
// mid-stream saves nothing, so retrying the whole call still produces
// at most one file.
type GuardedDownloader struct {
	client Downloader
	guard  *guard.Guard
}

// NewGuardedDownloader wraps client with g.
func NewGuardedDownloader(client Downloader, g *guard.Guard) *GuardedDownloader {
	return &GuardedDownloader{client: client, guard: g}
}

var _ Downloader = (*GuardedDownloader)(nil)

func (d *GuardedDownloader) FetchExportFilters(ctx context.Context, onPage func([]parkkihubi.ExportFilters)) error {
	var pages [][]parkkihubi.ExportFilters
	err := d.guard.Do(ctx, "fetch_export_filters", func() error {
		pages = pages[:0]
		return d.client.FetchExportFilters(ctx, func(page []parkkihubi.ExportFilters) {
			pages = append(pages, page)
		})
	})
	if err != nil {
		return err
	}
	for _, page := range pages {
		onPage(page)
	}
	return nil
}

func (d *GuardedDownloader) DownloadCSV(ctx context.Context, sel parkkihubi.ExportSelection) (*parkkihubi.ExportDownload, error) {
	var download *parkkihubi.ExportDownload
	err := d.guard.Do(ctx, "download_csv", func() error {
		var err error
		download, err = d.client.DownloadCSV(ctx, sel)
		return err
	})
	if err != nil {
		return nil, err
	}
	return download, nil
}
