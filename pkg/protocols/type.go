// Package protocols decodes the text lines emitted by the supported scale
// models. Every parser is stateless and safe for concurrent use.
package protocols

// Parser claims one scale wire format.
// ParseWeight is only meaningful on lines CanParse accepted.
type Parser struct {
	Name        string
	CanParse    func(line string) bool
	ParseWeight func(line string) (float64, bool)
}

const (
	NameLP7516  = "LP7516"
	NameMettler = "Mettler"
	NamePT      = "PT"
	NameDix     = "Dix"
)

const (
	stx = '\x02'
	etx = '\x03'
)
