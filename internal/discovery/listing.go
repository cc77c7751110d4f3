package discovery

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Text recovery for work item type names. Used only when no typed payload
// could be decoded.

var (
	bulletPrefix     = regexp.MustCompile(`^(?:[-*•+]|\d+[.)])\s+`)
	markdownNoise    = strings.NewReplacer("**", "", "__", "", "`", "", "~~", "")
	trailingParen    = regexp.MustCompile(`\s*\([^()]*\)\s*$`)
	validCandidate   = regexp.MustCompile(`^[A-Za-zÀ-ÖØ-öø-ÿ _-]+$`)
	typePhrase       = regexp.MustCompile(`(?i)(?:tipo de work item|work item type)\s*:\s*([^\n\r,;|]+)`)
	jsonNameProperty = regexp.MustCompile(`"name"\s*:\s*"((?:[^"\\]|\\.)*)"`)
)

// nonTypeTokens are words that show up in type listings but never name a type.
var nonTypeTokens = map[string]bool{
	// states
	"new": true, "active": true, "closed": true, "resolved": true, "removed": true,
	"done": true, "to do": true, "todo": true, "doing": true, "in progress": true,
	"committed": true, "approved": true, "proposed": true, "design": true, "ready": true,
	"nuevo": true, "activo": true, "cerrado": true, "resuelto": true, "eliminado": true,
	"hecho": true, "en progreso": true, "aprobado": true, "propuesto": true,
	// generic nouns
	"state": true, "states": true, "type": true, "types": true, "field": true, "fields": true,
	"name": true, "description": true, "color": true, "icon": true, "category": true,
	"reference": true, "url": true, "value": true, "values": true, "true": true, "false": true,
	"estado": true, "estados": true, "tipo": true, "tipos": true, "campo": true, "campos": true,
	"nombre": true, "descripcion": true, "descripción": true, "categoria": true, "categoría": true,
	"work item": true, "work items": true, "work item types": true, "tipos de work item": true,
}

// knownTypeNames is scanned for in raw text during the enhancement pass.
var knownTypeNames = []string{
	"Task", "Tarea",
	"Bug", "Error", "Defecto",
	"User Story", "Historia", "Historia de usuario",
	"Epic", "Épica",
	"Feature", "Característica", "Funcionalidad",
	"Issue", "Incidencia", "Impedimento", "Impediment",
	"Test Case", "Caso de prueba", "Test Plan", "Test Suite",
	"Product Backlog Item", "Requirement", "Requisito",
	"Risk", "Riesgo", "Change Request",
}

// IsValidTypeCandidate rejects state names, generic nouns and anything that
// is not made of letters, spaces, hyphens or underscores.
func IsValidTypeCandidate(s string) bool {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) < 2 {
		return false
	}
	if nonTypeTokens[strings.ToLower(s)] {
		return false
	}
	return validCandidate.MatchString(s)
}

// ParseTypeListing extracts names from a bulleted listing such as
//
//	- **User Story** (enabled)
//	- Bug: tracks defects
func ParseTypeListing(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		loc := bulletPrefix.FindStringIndex(line)
		if loc == nil {
			continue
		}
		if name := cleanCandidate(line[loc[1]:]); IsValidTypeCandidate(name) {
			out = append(out, name)
		}
	}
	return out
}

// EnhanceCandidates scans text for explicit type phrases and known type names.
func EnhanceCandidates(text string) []string {
	var out []string
	for _, m := range typePhrase.FindAllStringSubmatch(text, -1) {
		if name := cleanCandidate(m[1]); IsValidTypeCandidate(name) {
			out = append(out, name)
		}
	}
	for _, name := range knownTypeNames {
		if containsWord(text, name) {
			out = append(out, name)
		}
	}
	return out
}

// ExtractNameProperties pulls "name":"..." values out of text that failed to
// decode as a typed payload.
func ExtractNameProperties(text string) []string {
	var out []string
	for _, m := range jsonNameProperty.FindAllStringSubmatch(text, -1) {
		name, err := strconv.Unquote(`"` + m[1] + `"`)
		if err != nil {
			name = m[1]
		}
		if name = strings.TrimSpace(name); IsValidTypeCandidate(name) {
			out = append(out, name)
		}
	}
	return out
}

// RecoverTypeNames runs every text heuristic and returns a sorted set.
func RecoverTypeNames(text string) []string {
	set := newNameSet()
	set.add(ParseTypeListing(text)...)
	set.add(ExtractNameProperties(text)...)
	set.add(EnhanceCandidates(text)...)
	return set.sorted()
}

func cleanCandidate(s string) string {
	s = markdownNoise.Replace(s)
	s = strings.TrimLeft(s, "# ")
	if i := strings.Index(s, ": "); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), ":")
	for {
		stripped := trailingParen.ReplaceAllString(s, "")
		if stripped == s {
			break
		}
		s = stripped
	}
	return strings.TrimSpace(s)
}

// containsWord matches name case-sensitively with letter boundaries on both sides.
func containsWord(text, name string) bool {
	for offset := 0; ; {
		i := strings.Index(text[offset:], name)
		if i < 0 {
			return false
		}
		start := offset + i
		end := start + len(name)
		before, _ := utf8.DecodeLastRuneInString(text[:start])
		after, _ := utf8.DecodeRuneInString(text[end:])
		if !isLetter(before) && !isLetter(after) {
			return true
		}
		offset = start + 1
	}
}

func isLetter(r rune) bool {
	return r != utf8.RuneError && unicode.IsLetter(r)
}

// nameSet deduplicates case-insensitively, keeping the first spelling.
type nameSet struct {
	byKey map[string]string
}

func newNameSet() *nameSet {
	return &nameSet{byKey: make(map[string]string)}
}

func (s *nameSet) add(names ...string) {
	for _, n := range names {
		key := strings.ToLower(n)
		if _, ok := s.byKey[key]; !ok {
			s.byKey[key] = n
		}
	}
}

func (s *nameSet) len() int { return len(s.byKey) }

func (s *nameSet) sorted() []string {
	out := make([]string, 0, len(s.byKey))
	for _, n := range s.byKey {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
