// Package main provides the entry point for the protext scraper CLI.
//
// The scraper probes the numeric article ID space of protext.cz, extracts
// each press release and appends the results to a deduplicated JSON file.
//
// Usage:
//
//	protext scan --preset test
//	protext scan --min 100000 --max 101000 --categories Finance
//	protext categories content_20250101_120000.json
//
// See --help for all available options.
package main

func main() {
	Execute()
}
