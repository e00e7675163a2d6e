// Factstore is a faceted report server over a clinical fact store.
//
// It stores typed clinical facts (measurements, allergies, medications,
// audit entries) and serves report queries that filter, group, date-bucket,
// aggregate, order, and paginate them.
//
// Usage:
//
//	# Start server with default configuration
//	factstore serve
//
//	# Start with custom configuration file
//	factstore serve --config /path/to/config.yaml
//
//	# Run a one-shot report query against the configured store
//	factstore query --type measurement --params "name=HBA1C&aggregate_by=avg*value"
//
//	# Show version information
//	factstore version
package main

func main() {
	Execute()
}
