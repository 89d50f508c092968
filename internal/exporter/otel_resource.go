package exporter

import (
	"context"
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
)

// createOTELResource creates an OTEL resource from configuration attributes.
// Every process gets its own service.instance.id unless one is configured.
func createOTELResource(resourceAttrs map[string]string) (*resource.Resource, error) {
	attrs := make([]attribute.KeyValue, 0, len(resourceAttrs)+1)
	for k, v := range resourceAttrs {
		attrs = append(attrs, attribute.String(k, v))
	}
	if _, ok := resourceAttrs["service.instance.id"]; !ok {
		id, err := gonanoid.New()
		if err != nil {
			return nil, fmt.Errorf("failed to generate instance id: %w", err)
		}
		attrs = append(attrs, attribute.String("service.instance.id", id))
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(attrs...),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	return res, nil
}
