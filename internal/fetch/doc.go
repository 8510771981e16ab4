// Package fetch retrieves content for an item by walking its resolved
// fallback chain. Each retrieval method gets a bounded timeout and a
// minimum-content-length gate; the first method that yields substantial
// content wins and the rest of the chain is skipped.
package fetch
