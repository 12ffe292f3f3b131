// Package crawler probes the protext.cz article ID space.
//
// # Components
//
//   - Ledger: run-scoped set of claimed IDs, so concurrent workers never
//     fetch the same ID twice
//   - RecordFetcher: builds the article URL for an ID, fetches it and hands
//     the page to the extractor
//   - Discoverer: reads the RSS feed (or the landing page) to learn the
//     newest and oldest live IDs
//
// # Usage
//
//	ledger := crawler.NewLedger()
//	records := crawler.NewRecordFetcher(client, extract.New())
//	if ledger.TryClaim(id) {
//		rec, err := records.FetchRecord(ctx, id)
//	}
//
// A nil record with a nil error is the normal "no article" answer: most IDs
// in the range are gaps, removed articles or pages that never finish loading.
package crawler
