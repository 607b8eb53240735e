package continuation

// Config bounds one continuation run.
type Config struct {
	// MaxAttempts is the maximum number of completion calls per run.
	MaxAttempts int
	// TailWindow is how many trailing characters (runes) of the notes are sent
	// as context for the next continuation.
	TailWindow     int
	MaxNotesChars  int
	MaxSourceChars int
	// MaxTitleChars truncates the title; a longer title is not an error.
	MaxTitleChars int
}

// Defaults.
const (
	DefaultMaxAttempts    = 5
	DefaultTailWindow     = 2000
	DefaultMaxNotesChars  = 200000
	DefaultMaxSourceChars = 100000
	DefaultMaxTitleChars  = 500
)

// DefaultConfig returns the default bounds.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:    DefaultMaxAttempts,
		TailWindow:     DefaultTailWindow,
		MaxNotesChars:  DefaultMaxNotesChars,
		MaxSourceChars: DefaultMaxSourceChars,
		MaxTitleChars:  DefaultMaxTitleChars,
	}
}

// withDefaults fills zero or negative fields.
func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.TailWindow <= 0 {
		c.TailWindow = DefaultTailWindow
	}
	if c.MaxNotesChars <= 0 {
		c.MaxNotesChars = DefaultMaxNotesChars
	}
	if c.MaxSourceChars <= 0 {
		c.MaxSourceChars = DefaultMaxSourceChars
	}
	if c.MaxTitleChars <= 0 {
		c.MaxTitleChars = DefaultMaxTitleChars
	}
	return c
}
