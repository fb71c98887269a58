// ABOUTME: Options shared by the whisper engine and its stub
// ABOUTME: Selects the recognition language
package whisper

// DefaultLanguage is used when no language option is given
const DefaultLanguage = "en"

// Option configures an Engine
type Option func(language *string)

// WithLanguage sets the spoken language, or "auto" for detection
func WithLanguage(lang string) Option {
	return func(language *string) {
		if lang != "" {
			*language = lang
		}
	}
}
