package sanitizer

import (
	"strings"
	"unicode"
)

func TrimAndNormalize(s string) string {
	s = strings.TrimSpace(s)

	if s == "" {
		return ""
	}

	var result strings.Builder
	var lastWasSpace bool

	for _, r := range s {
		if unicode.IsSpace(r) {
			if !lastWasSpace {
				result.WriteRune(' ')
				lastWasSpace = true
			}
		} else {
			result.WriteRune(r)
			lastWasSpace = false
		}
	}

	return result.String()
}

// NormalizeID trims an opaque identifier. Identifiers never contain spaces.
func NormalizeID(id string) string {
	return strings.TrimSpace(id)
}

func NormalizeCodigo(codigo string) string {
	return strings.ToUpper(strings.ReplaceAll(TrimAndNormalize(codigo), " ", ""))
}

func NormalizeFecha(fecha string) string {
	return strings.TrimSpace(fecha)
}

// NormalizeHora accepts "H:MM" and pads it to "HH:MM".
func NormalizeHora(hora string) string {
	hora = strings.TrimSpace(hora)
	if len(hora) == 4 && hora[1] == ':' {
		return "0" + hora
	}
	return hora
}
