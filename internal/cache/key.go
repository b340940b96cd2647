// Kiroku - Anime Journal Engagement and Recommendation Engine
// Copyright 2026 Rin S. (rin-sakamoto)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kiroku-project/kiroku

package cache

import (
	"fmt"
	"sort"
	"strings"

	"github.com/goccy/go-json"
)

// TagVolatile marks entries whose result shifts on any engagement write
// (trending, personalized). InvalidatePost always drops them.
const TagVolatile = "volatile"

// TagPost builds the dependency tag for a post.
func TagPost(postID string) string {
	return "post:" + postID
}

// TagCategory builds the dependency tag for a category.
func TagCategory(categoryID string) string {
	return "category:" + categoryID
}

// Params is a named parameter set for key building.
type Params map[string]interface{}

// Key builds a canonical cache key from an operation name and its
// parameters. Parameters are sorted by name, so {limit:5, timeframe:7} and
// {timeframe:7, limit:5} produce the same key.
func Key(op string, params Params) string {
	if len(params) == 0 {
		return op
	}

	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(op)
	for _, name := range names {
		b.WriteByte('|')
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(renderValue(params[name]))
	}
	return b.String()
}

// renderValue renders a parameter value deterministically. Slices and maps
// go through JSON; scalars use their natural formatting.
func renderValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case fmt.Stringer:
		return val.String()
	case int, int32, int64, uint, uint32, uint64, bool:
		return fmt.Sprintf("%v", val)
	case float32, float64:
		return fmt.Sprintf("%g", val)
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(data)
	}
}
