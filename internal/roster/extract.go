package roster

import (
	"regexp"
	"strings"
)

const nameWord = `[A-ZÁÉÍÓÚÑ][a-záéíóúñü]+`

var (
	namePattern   = regexp.MustCompile(`^` + nameWord + `(?:[ \-]` + nameWord + `){1,3}$`)
	bulletChars   = regexp.MustCompile(`[•·*\t]+`)
	trailingNote  = regexp.MustCompile(`\s*[-–—].*$`)
	trailingParen = regexp.MustCompile(`\(.*?\)$`)
	cellSplit     = regexp.MustCompile(`\s{2,}`)
)

// ExtractCandidates finds probable student names in free text taken from an
// exported report. It combines three heuristics:
//
//   - "Surname, Name" lines are rewritten as "Name Surname"
//   - lines of two to four capitalised words, after stripping bullets and
//     trailing grades or notes
//   - table cells separated by runs of spaces
//
// Results are returned in first-seen order without duplicates. The output is
// meant for manual review before import.
func ExtractCandidates(text string) []string {
	var lines []string
	for _, l := range strings.Split(text, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}

	var candidates []string
	for _, l := range lines {
		if !strings.Contains(l, ",") {
			continue
		}
		parts := strings.Split(l, ",")
		ok := len(parts) >= 2
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
			if parts[i] == "" {
				ok = false
			}
		}
		if ok {
			candidates = append(candidates, parts[1]+" "+parts[0])
		}
	}

	for _, l := range lines {
		clean := bulletChars.ReplaceAllString(l, " ")
		clean = trailingNote.ReplaceAllString(clean, "")
		clean = strings.TrimSpace(trailingParen.ReplaceAllString(clean, ""))
		if namePattern.MatchString(clean) {
			candidates = append(candidates, clean)
		}
	}

	for _, l := range lines {
		for _, cell := range cellSplit.Split(l, -1) {
			if cell = strings.TrimSpace(cell); namePattern.MatchString(cell) {
				candidates = append(candidates, cell)
			}
		}
	}

	seen := make(map[string]struct{}, len(candidates))
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
