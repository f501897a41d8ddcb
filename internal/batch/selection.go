package batch

import (
	"fmt"
	"regexp"

	"github.com/phongvanairdrop/NamsoCheckIn-Automation-GPM/internal/domain"
)

// rangeExpr accepts "Depin010-Depin180", with "-", ":" or spaces
// between the two names.
var rangeExpr = regexp.MustCompile(`^([a-zA-Z]+\d+)[-:\s]+([a-zA-Z]+\d+)$`)

// ParseRange splits a range argument into its start and end profile
// names.
func ParseRange(s string) (start, end string, err error) {
	m := rangeExpr.FindStringSubmatch(s)
	if m == nil {
		return "", "", fmt.Errorf("invalid range %q, expected e.g. Depin010-Depin180", s)
	}
	return m[1], m[2], nil
}

// SelectAll returns every credential, in load order.
func SelectAll(creds []domain.Credential) []domain.Credential {
	return creds
}

// SelectRange returns the contiguous run from start to end, inclusive,
// matched by profile name. A missing end name extends the range to the
// last credential; a missing start name is an error.
func SelectRange(creds []domain.Credential, start, end string) ([]domain.Credential, error) {
	startIdx, endIdx := -1, -1
	for i, c := range creds {
		if c.ProfileName == start && startIdx < 0 {
			startIdx = i
		}
		if c.ProfileName == end {
			endIdx = i
		}
	}
	if startIdx < 0 {
		return nil, fmt.Errorf("start profile %q not found", start)
	}
	if endIdx < 0 || endIdx < startIdx {
		return creds[startIdx:], nil
	}
	return creds[startIdx : endIdx+1], nil
}

// SelectFailed returns the credentials with no row in the existing
// results or whose last run recorded an error.
func SelectFailed(creds []domain.Credential, existing map[string]domain.Result) []domain.Credential {
	var out []domain.Credential
	for _, c := range creds {
		prev, ok := existing[c.Key()]
		if !ok || prev.Error != "" {
			out = append(out, c)
		}
	}
	return out
}
