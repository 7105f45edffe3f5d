// Package schema defines form definitions: fields, their kinds, validation
// rules and derivations, plus the JSON/YAML codec used by loaders and
// catalogs. Field names on the wire are id, label, type, required,
// defaultValue, options, validations and derived{parentIds, formula}; a
// definition encoded and decoded again keeps every derivation and validation
// entry, including rule types this version does not recognise.
//
// Values typed by users or stored as defaults are converted into
// value.Value through Field.Coerce, which is the single place kind-specific
// conversion happens.
package schema
