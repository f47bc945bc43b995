package removebg

import "strings"

type Error struct {
	Title  string `json:"title"`
	Code   string `json:"code"`
	Detail string `json:"detail"`
}

type ErrorResponse struct {
	Errors []Error `json:"errors"`
}

// Message joins the error titles (and details when present) into one line.
func (r *ErrorResponse) Message() string {
	parts := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		msg := e.Title
		if e.Detail != "" {
			msg += ": " + e.Detail
		}
		if e.Code != "" {
			msg += " [" + e.Code + "]"
		}
		parts = append(parts, msg)
	}
	return strings.Join(parts, "; ")
}
