package ports

// AttributeSource provides configuration attributes supplied by the host,
// such as the data-* attributes of the collector's script tag.
type AttributeSource interface {
	// Attr returns the attribute value and whether it was present.
	Attr(name string) (string, bool)
}
