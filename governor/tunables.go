package governor

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseTargetLoads parses the target_loads tunable (spec §6): a
// space-or-colon separated list "load0 freq0:load1 freq1:load2 ..."
// meaning load0 applies for every frequency below freq0, load1 applies
// between freq0 and freq1, and so on, with the final load applying above
// the last boundary. A bare single number ("90") is the degenerate
// single-load case. The list must therefore have odd length once split.
func ParseTargetLoads(s string) ([]uint32, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == ':' || r == '\t' || r == '\n'
	})
	if len(fields) == 0 {
		return nil, fmt.Errorf("governor: empty target_loads")
	}
	if len(fields)%2 == 0 {
		return nil, fmt.Errorf("governor: target_loads must have an odd number of values, got %d", len(fields))
	}
	out := make([]uint32, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseUint(f, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("governor: invalid target_loads value %q: %w", f, err)
		}
		out[i] = uint32(v)
	}
	return out, nil
}

// FormatTargetLoads renders target_loads back to the sysfs show form.
func FormatTargetLoads(loads []uint32) string {
	var b strings.Builder
	for i, v := range loads {
		if i > 0 {
			if i%2 == 1 {
				b.WriteByte(' ')
			} else {
				b.WriteByte(':')
			}
		}
		b.WriteString(strconv.FormatUint(uint64(v), 10))
	}
	return b.String()
}

// TargetLoadAt resolves which target load applies at the given current
// frequency, per freq_to_targetload in the original driver: loads holds
// [load0, boundary0, load1, boundary1, ..., loadN] and we walk the
// boundaries until we find one above freq.
func TargetLoadAt(loads []uint32, freq uint32) uint32 {
	if len(loads) == 0 {
		return 90
	}
	i := 0
	for i < len(loads)-1 {
		boundary := loads[i+1]
		if freq < boundary {
			break
		}
		i += 2
	}
	return loads[i]
}
