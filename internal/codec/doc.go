// Package codec embeds IR records in generated native source and recovers
// them after the external expansion step.
//
// A record is one line carrying a tag and the canonical JSON of an IR
// node, wrapped in doc comments between fixed markers:
//
//	/// JNI_BINDING_START v1
//	/// JNI_CLASS {"fields":[],"name":"Kebab"}
//	/// JNI_BINDING_END
//
// Doc comments survive macro expansion; the expanded source spells them
// as #[doc = "..."] attributes, which Scan reads as well.
package codec
