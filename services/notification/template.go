package notification

import "strings"

const (
	defaultPrizeTemplate     = "Congratulations {name}! You won {prize}. Your code: {code}"
	defaultApprovalTemplate  = "Hi {name}, your task has been approved. {comment}"
	defaultRejectionTemplate = "Hi {name}, your task could not be verified. {comment}"
)

// render fills {placeholders} in tmpl, using fallback when tmpl is empty.
func render(tmpl, fallback string, vars map[string]string) string {
	if strings.TrimSpace(tmpl) == "" {
		tmpl = fallback
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.TrimSpace(strings.NewReplacer(pairs...).Replace(tmpl))
}
