package gorm

import (
	"net/http"
	"strconv"
)

// MaxPaginationLimit is the maximum allowed limit for pagination queries.
const MaxPaginationLimit = 1000

// ParseLimitParam parses the "limit" query parameter from an HTTP request.
// Returns defaultLimit if the parameter is missing or invalid.
func ParseLimitParam(r *http.Request, defaultLimit int) int {
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultLimit
}

// ParseLimitParamWithMax parses the "limit" query parameter with a maximum cap.
// If maxLimit is 0, uses MaxPaginationLimit.
func ParseLimitParamWithMax(r *http.Request, defaultLimit, maxLimit int) int {
	if maxLimit <= 0 {
		maxLimit = MaxPaginationLimit
	}
	return min(ParseLimitParam(r, defaultLimit), maxLimit)
}

// ParseOffsetParam parses the "offset" query parameter from an HTTP request.
// Returns 0 if the parameter is missing or invalid.
func ParseOffsetParam(r *http.Request) int {
	if o := r.URL.Query().Get("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			return parsed
		}
	}
	return 0
}

// PaginationParams holds pagination parameters.
type PaginationParams struct {
	Limit  int
	Offset int
}

// ParsePaginationParams parses both limit and offset from an HTTP request.
// The limit is capped at MaxPaginationLimit.
func ParsePaginationParams(r *http.Request, defaultLimit int) PaginationParams {
	return PaginationParams{
		Limit:  ParseLimitParamWithMax(r, defaultLimit, MaxPaginationLimit),
		Offset: ParseOffsetParam(r),
	}
}
