package providers

import (
	"context"

	"meta-hand/models"
)

// Registry ist das Interface, das jede externe Registry (z.B. Addgene, NCBI Gene)
// implementieren muss.
type Registry interface {
	// Lookup führt eine Suche für einen Query-Term durch und gibt ein
	// standardisiertes Ergebnis zurück. Der Context trägt das Timeout.
	Lookup(ctx context.Context, query string) (*models.RegistryResult, error)

	// Name gibt den eindeutigen Namen der Registry zurück (z.B. "addgene").
	Name() string
}
