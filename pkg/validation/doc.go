// Package validation checks and normalizes JSON request bodies.
//
// Each write route has a Schema. A schema decodes the raw body, runs the
// normalizers (trim, lower-case, canonical RFC3339 dates) and then the
// go-playground/validator rules. Every failed rule is collected into one
// *ValidationError whose message reads
//
//	Validation error: email: Invalid email; password: must be at least 6 characters
//
// Array bodies report element paths by index, e.g. "1.status".
//
//	value, err := validation.RegisterSchema.Validate(body)
//	var verr *validation.ValidationError
//	if errors.As(err, &verr) { ... }
package validation
