package identity

import "strings"

type FullName struct {
	First      string `json:"first_name"`
	Middle     string `json:"middle_name,omitempty"`
	Last       string `json:"last_name"`
	SecondLast string `json:"second_last_name,omitempty"`
}

func (n FullName) String() string {
	return FormatFullName(n.First, n.Middle, n.Last, n.SecondLast)
}

// FormatFullName joins the non-blank parts with single spaces, keeping their order.
func FormatFullName(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return strings.Join(out, " ")
}
