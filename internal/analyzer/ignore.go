package analyzer

import (
	"regexp"
	"strings"

	"github.com/scan-io-git/blockscan/internal/pytree"
)

// Inline directives silence findings:
//
//	requests.get(url)  # blockscan: ignore[ASYNC001]
//	# blockscan: ignore
//	time.sleep(1)
//	open(p)  # noqa: ASYNC006
//
// A trailing directive applies to its own line, a directive alone on its line
// applies to the next line. Without a rule list it silences every rule.
var (
	blockscanDirective = regexp.MustCompile(`#\s*blockscan:\s*ignore(?:\[([^\]]*)\])?`)
	noqaDirective      = regexp.MustCompile(`(?i)#\s*noqa(?::\s*([A-Z0-9, ]+))?`)
)

// directive is the set of rule ids one comment silences. A nil set means all.
type directive map[string]struct{}

func (d directive) covers(id string) bool {
	if d == nil {
		return true
	}
	_, ok := d[id]
	return ok
}

// directives holds the directives keyed by the line they silence.
type directives map[int][]directive

func parseDirectives(comments map[int][]pytree.Comment) directives {
	ds := directives{}
	for line, cs := range comments {
		for _, c := range cs {
			d, ok := parseDirective(c.Text)
			if !ok {
				continue
			}
			target := line
			if c.Standalone {
				target++
			}
			ds[target] = append(ds[target], d)
		}
	}
	return ds
}

func parseDirective(text string) (directive, bool) {
	var m []string
	if m = blockscanDirective.FindStringSubmatch(text); m == nil {
		if m = noqaDirective.FindStringSubmatch(text); m == nil {
			return nil, false
		}
	}
	if strings.TrimSpace(m[1]) == "" {
		return nil, true
	}
	d := directive{}
	ids := strings.FieldsFunc(m[1], func(r rune) bool { return r == ',' || r == ' ' })
	for _, id := range ids {
		d[strings.ToUpper(id)] = struct{}{}
	}
	return d, true
}

func (ds directives) suppresses(line int, id string) bool {
	for _, d := range ds[line] {
		if d.covers(id) {
			return true
		}
	}
	return false
}
