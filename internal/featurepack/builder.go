package featurepack

import (
	"github.com/i474232898/wx-briefing/internal/weather"
)

// UserContext is the flat, prompt-friendly description of the request.
type UserContext struct {
	UseCase     string   `json:"use_case"`
	Constraints []string `json:"constraints,omitempty"`
}

// Builder assembles a Pack. Every section is optional except units.
type Builder struct {
	pack       *Pack
	trustTools bool
	user       *UserContext
}

// NewBuilder starts a pack with the units section. trustTools gates the quick
// sections added through Quick.
func NewBuilder(units weather.Units, trustTools bool) *Builder {
	b := &Builder{pack: New(), trustTools: trustTools}
	b.pack.Set(SectionUnits, units.Labels())
	return b
}

// Place adds the resolved place; nil is ignored.
func (b *Builder) Place(p *weather.PlaceContext) *Builder {
	if p != nil {
		b.pack.Set(SectionPlace, *p)
	}
	return b
}

// Window adds the time window; nil is ignored.
func (b *Builder) Window(w *TimeWindow) *Builder {
	if w != nil {
		b.pack.Set(SectionWindow, *w)
	}
	return b
}

// Quick adds an opportunistic section. It is dropped when trust tools are
// off or the value is empty.
func (b *Builder) Quick(key string, value any) *Builder {
	if b.trustTools {
		b.pack.Set(key, value)
	}
	return b
}

// Add adds a section regardless of the trust-tools gate, for data the
// command itself asked for.
func (b *Builder) Add(key string, value any) *Builder {
	b.pack.Set(key, value)
	return b
}

// UseCase records the use case and constraint tags. Empty tags are skipped.
func (b *Builder) UseCase(useCase string, constraints ...string) *Builder {
	uc := &UserContext{UseCase: useCase}
	for _, c := range constraints {
		if c != "" {
			uc.Constraints = append(uc.Constraints, c)
		}
	}
	b.user = uc
	return b
}

// TrustTools reports whether quick sections are accepted.
func (b *Builder) TrustTools() bool {
	return b.trustTools
}

// Build returns the finished pack. user_context is always the last section.
func (b *Builder) Build() *Pack {
	if b.user != nil && b.user.UseCase != "" {
		b.pack.Set(SectionUserContext, *b.user)
	}
	return b.pack
}
