package app

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// Check runs a single extraction against an arbitrary URL, without touching
// storage. Useful to verify a store's selectors before tracking a product.
func (a *App) Check(ctx context.Context, storeName, url string) error {
	registry := a.newRegistry()

	extractor, ok := registry.Lookup(storeName)
	if !ok {
		return fmt.Errorf("no extractor registered for store %q (known: %s)", storeName, strings.Join(registry.Names(), ", "))
	}

	price, err := extractor.ExtractPrice(ctx, url)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "%s\n", price.StringFixed(2))
	return nil
}
