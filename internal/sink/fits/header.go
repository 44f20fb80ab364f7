package fits

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/aevon-lab/cubexport/internal/core/cube"
)

const (
	cardLen  = 80
	blockLen = 2880
)

type header struct {
	cards []string
}

func (h *header) add(key, value, comment string) {
	card := fmt.Sprintf("%-8s= %s", key, value)
	if comment != "" {
		card += " / " + comment
	}
	h.cards = append(h.cards, padCard(card))
}

func (h *header) logical(key string, v bool) {
	s := "F"
	if v {
		s = "T"
	}
	h.add(key, fmt.Sprintf("%20s", s), "")
}

func (h *header) int(key string, v int64) {
	h.add(key, fmt.Sprintf("%20d", v), "")
}

func (h *header) float(key string, v float64) {
	h.add(key, fmt.Sprintf("%20s", formatFloat(v)), "")
}

func (h *header) string(key, v string) {
	h.add(key, quote(v), "")
}

// hierarch writes an attribute card. The comment carries the scalar type
// so the value can be parsed back exactly. Long strings are split over
// CONTINUE cards.
func (h *header) hierarch(key string, val cube.Value) error {
	if strings.Contains(key, "=") || strings.ContainsAny(key, "'\n") {
		return fmt.Errorf("attribute key %q cannot be stored in a FITS header", key)
	}
	prefix := "HIERARCH " + key + " = "
	comment := " / " + val.Type.String()

	text, quoted := attrText(val)
	if !quoted {
		card := prefix + text + comment
		if len(card) > cardLen {
			return fmt.Errorf("attribute %q does not fit a FITS card", key)
		}
		h.cards = append(h.cards, padCard(card))
		return nil
	}

	// Room for the quotes and the continuation marker.
	first := cardLen - len(prefix) - len(comment) - 3
	if first < 1 {
		return fmt.Errorf("attribute key %q is too long for a FITS card", key)
	}
	chunks := splitEscaped(text, first, cardLen-len("CONTINUE  ")-3)
	for i, chunk := range chunks {
		body := "'" + chunk
		if i < len(chunks)-1 {
			body += "&"
		}
		body += "'"
		if i == 0 {
			h.cards = append(h.cards, padCard(prefix+body+comment))
		} else {
			h.cards = append(h.cards, padCard("CONTINUE  "+body))
		}
	}
	return nil
}

func (h *header) bytes() []byte {
	out := make([]byte, 0, blockLen)
	for _, c := range h.cards {
		out = append(out, c...)
	}
	out = append(out, padCard("END")...)
	for len(out)%blockLen != 0 {
		out = append(out, ' ')
	}
	return out
}

func padCard(s string) string {
	if len(s) >= cardLen {
		return s[:cardLen]
	}
	return s + strings.Repeat(" ", cardLen-len(s))
}

func formatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'G', -1, 64)
	if !strings.ContainsAny(s, ".EN") {
		s += ".0"
	}
	return s
}

func quote(s string) string {
	s = strings.ReplaceAll(s, "'", "''")
	if len(s) < 8 {
		s += strings.Repeat(" ", 8-len(s))
	}
	return "'" + s + "'"
}

// attrText renders an attribute value. Text and non-finite floats are quoted.
func attrText(v cube.Value) (string, bool) {
	switch {
	case v.Type == cube.TypeText:
		return strings.ReplaceAll(v.Text, "'", "''"), true
	case v.Type.IsInteger():
		return strconv.FormatInt(v.Int, 10), false
	case math.IsNaN(v.Float) || math.IsInf(v.Float, 0):
		return v.String(), true
	default:
		return formatFloat(v.Float), false
	}
}

// splitEscaped cuts an escaped string into chunks without separating a
// doubled quote. The first chunk holds at most first bytes, the others rest.
func splitEscaped(s string, first, rest int) []string {
	var chunks []string
	limit := first
	for len(s) > limit {
		cut := limit
		// an odd run of quotes ending at the cut would split an escape
		n := 0
		for i := cut - 1; i >= 0 && s[i] == '\''; i-- {
			n++
		}
		if n%2 == 1 {
			cut--
		}
		chunks = append(chunks, s[:cut])
		s = s[cut:]
		limit = rest
	}
	return append(chunks, s)
}

// card is a parsed header line.
type card struct {
	key     string
	value   string
	quoted  bool
	comment string
}

func parseCard(raw string) (card, bool) {
	raw = padCard(raw)
	key := strings.TrimSpace(raw[:8])
	switch key {
	case "HIERARCH":
		rest := raw[9:]
		eq := strings.Index(rest, " = ")
		if eq < 0 {
			return card{}, false
		}
		c := card{key: "HIERARCH " + strings.TrimSpace(rest[:eq])}
		c.value, c.quoted, c.comment = parseValue(rest[eq+3:])
		return c, true
	case "CONTINUE":
		c := card{key: key}
		c.value, c.quoted, c.comment = parseValue(raw[8:])
		return c, true
	case "END", "COMMENT", "HISTORY", "":
		return card{key: key}, true
	}
	if raw[8:10] != "= " {
		return card{key: key}, true
	}
	c := card{key: key}
	c.value, c.quoted, c.comment = parseValue(raw[10:])
	return c, true
}

func parseValue(s string) (value string, quoted bool, comment string) {
	s = strings.TrimLeft(s, " ")
	if strings.HasPrefix(s, "'") {
		var b strings.Builder
		i := 1
		for i < len(s) {
			if s[i] == '\'' {
				if i+1 < len(s) && s[i+1] == '\'' {
					b.WriteByte('\'')
					i += 2
					continue
				}
				break
			}
			b.WriteByte(s[i])
			i++
		}
		rest := ""
		if i+1 < len(s) {
			rest = s[i+1:]
		}
		if j := strings.Index(rest, "/"); j >= 0 {
			comment = strings.TrimSpace(rest[j+1:])
		}
		return b.String(), true, comment
	}
	if j := strings.Index(s, "/"); j >= 0 {
		return strings.TrimSpace(s[:j]), false, strings.TrimSpace(s[j+1:])
	}
	return strings.TrimSpace(s), false, ""
}
