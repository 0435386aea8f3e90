package protocols

import (
	"strings"
	"time"

	"github.com/NotCoffee418/scale_gateway/pkg/types"
	"github.com/rs/zerolog/log"
)

// Registry tries parsers in a fixed order. The first parser whose CanParse
// accepts a line owns it, whether or not a weight comes out.
type Registry struct {
	parsers []Parser
	now     func() time.Time
}

// NewRegistry keeps the given order. now stamps readings; nil means time.Now.
func NewRegistry(now func() time.Time, parsers ...Parser) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{
		parsers: parsers,
		now:     now,
	}
}

// Default returns the registry used in production.
// Order matters: Dix accepts almost anything with "kg" and goes last.
func Default(now func() time.Time) *Registry {
	return NewRegistry(now, LP7516(), Mettler(), PT(), Dix())
}

// Names lists the parsers in dispatch order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.parsers))
	for _, p := range r.parsers {
		names = append(names, p.Name)
	}
	return names
}

// Classify returns the parser that owns line.
func (r *Registry) Classify(line string) (Parser, bool) {
	for _, p := range r.parsers {
		if p.CanParse(line) {
			return p, true
		}
	}
	return Parser{}, false
}

// Dispatch walks a batch of raw lines and returns the first reading that
// decodes. Remaining lines of the batch are ignored once one is accepted.
func (r *Registry) Dispatch(lines []string) (types.Reading, bool) {
	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		log.Info().Msgf("data received from scale: [%s]", line)

		parser, ok := r.Classify(line)
		if !ok {
			log.Warn().Str("line", line).Msg("no protocol recognises line, discarded")
			continue
		}

		weight, ok := parser.ParseWeight(line)
		if !ok {
			log.Warn().Str("protocol", parser.Name).Str("line", line).Msg("protocol could not parse line")
			continue
		}

		log.Info().Str("protocol", parser.Name).Msgf(">>> %s: weight = %v kg <<<", parser.Name, weight)
		return types.Reading{
			Weight:         weight,
			ObservedAt:     r.now(),
			SourceProtocol: parser.Name,
		}, true
	}

	return types.Reading{}, false
}
