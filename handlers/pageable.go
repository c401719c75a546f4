package handlers

import (
	"fmt"
	"strings"
)

// PageableResponse wraps a result page with item counts
type PageableResponse struct {
	Items      []UserDTO `json:"items"`
	NumItems   int       `json:"num_items"`
	TotalItems int       `json:"total_items"`
}

// NewPageableResponse fills NumItems from the items slice
func NewPageableResponse(items []UserDTO, total int) PageableResponse {
	if items == nil {
		items = []UserDTO{}
	}
	return PageableResponse{Items: items, NumItems: len(items), TotalItems: total}
}

// buildOrderClause parses a sort expression into a SQL ORDER BY clause.
// Expected format: comma delimited columns, column and direction delimited by
// colon, direction defaulting to ascending.
//
//	"email:desc,created_at" => `ORDER BY "email" DESC, "created_at" ASC`
//
// Columns are validated against the allowlist; anything else is an error so a
// caller can never smuggle SQL through the sort parameter.
func buildOrderClause(sort string, allowed map[string]bool) (string, error) {
	var clauses []string
	for _, sortColumn := range strings.Split(sort, ",") {
		sortColumn = strings.TrimSpace(sortColumn)
		if sortColumn == "" {
			continue
		}

		parts := strings.Split(sortColumn, ":")
		column := parts[0]
		if !allowed[column] {
			return "", fmt.Errorf("sort column '%s' is not supported", column)
		}

		direction := "ASC"
		if len(parts) > 1 {
			switch strings.ToUpper(parts[1]) {
			case "ASC":
				direction = "ASC"
			case "DESC":
				direction = "DESC"
			default:
				return "", fmt.Errorf("invalid sort direction '%s'", parts[1])
			}
		}
		clauses = append(clauses, fmt.Sprintf("%q %s", column, direction))
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return "ORDER BY " + strings.Join(clauses, ", "), nil
}
