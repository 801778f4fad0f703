package domain

// Field describes one input collected by a document dialog, in order.
type Field struct {
	// Name keys the collected value in the render payload.
	Name string
	// Prompt is the question sent when the dialog reaches this field.
	Prompt string
	// Uppercase applies locale-correct uppercasing before submission.
	Uppercase bool
	// Spacious marks the one field that may contain spaces; in inline
	// parsing it absorbs the tokens left over after positional mapping.
	Spacious bool
}

// DocumentType is one entry of the fixed document catalog. Each type owns a
// command keyword, an ordered field list, and a render endpoint; the dialog
// engine, access gate, and delivery tail are shared across types.
type DocumentType struct {
	// Code identifies the type in the usage ledger and metrics ("fee").
	Code string
	// Command is the entry keyword without the leading slash ("pdf").
	Command string
	// Fields are collected in order, one dialog step each.
	Fields []Field
	// EndpointURL is the remote rendering endpoint for this type.
	EndpointURL string
	// FilenameSuffix is appended to "{NAME}_{SURNAME}" when non-empty.
	FilenameSuffix string
}

// SpaciousIndex returns the index of the spacious field, or -1 if none.
func (d DocumentType) SpaciousIndex() int {
	for i, f := range d.Fields {
		if f.Spacious {
			return i
		}
	}
	return -1
}

// Filename builds the attachment name from uppercased name/surname values,
// with spaces replaced by underscores, e.g. "ALI_VELI_DEKONT.pdf".
func (d DocumentType) Filename(name, surname string) string {
	base := name + "_" + surname
	if d.FilenameSuffix != "" {
		base += "_" + d.FilenameSuffix
	}
	out := make([]rune, 0, len(base))
	for _, r := range base {
		if r == ' ' {
			r = '_'
		}
		out = append(out, r)
	}
	return string(out) + ".pdf"
}
