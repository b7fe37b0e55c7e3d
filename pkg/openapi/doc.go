// Package openapi reads the OpenAPI document PostgREST serves at its root
// and turns it into table and function metadata.
//
// Documents are parsed into Value, an order-preserving JSON tree whose
// accessors report the shape they found instead of panicking. Introspect
// walks Swagger v2 definitions or OpenAPI v3 components.schemas, and the
// emitters render the result as Go declarations or a metadata JSON document:
//
//	doc, err := openapi.LoadSpec("openapi.json")
//	if err != nil {
//		return err
//	}
//
//	intro := openapi.Introspect(doc)
//	src, err := openapi.EmitGo(intro, "models")
package openapi
