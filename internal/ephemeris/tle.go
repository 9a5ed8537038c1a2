package ephemeris

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"
)

// TLE is one named two-line element set.
type TLE struct {
	Name  string
	Line1 string
	Line2 string
}

// ParseTLE reads three line groups (name, line 1, line 2). Lines that do not
// start a valid group are skipped so a truncated or noisy catalog still yields
// the usable entries.
func ParseTLE(data []byte) ([]TLE, error) {
	var lines []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan tle catalog: %w", err)
	}

	var out []TLE
	for i := 0; i+2 < len(lines); {
		name, l1, l2 := lines[i], lines[i+1], lines[i+2]
		if strings.HasPrefix(l1, "1 ") && strings.HasPrefix(l2, "2 ") && !strings.HasPrefix(name, "1 ") {
			out = append(out, TLE{Name: name, Line1: l1, Line2: l2})
			i += 3
			continue
		}
		i++
	}
	return out, nil
}
