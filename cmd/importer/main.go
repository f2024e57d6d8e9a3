package main

import "github.com/GoPolymarket/attestgate/internal/cli"

// importer --file transactions.csv [--config path]
func main() {
	cli.ExecuteImporter()
}
