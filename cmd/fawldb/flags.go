package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/skshohagmiah/fawldb/internal/db"
)

func findOptionsFromFlags(cmd *cobra.Command) (db.FindOptions, error) {
	var opts db.FindOptions
	flags := cmd.Flags()

	wheres, _ := flags.GetStringArray("where")
	for _, w := range wheres {
		q, err := parseWhere(w)
		if err != nil {
			return opts, err
		}
		opts.Filters = append(opts.Filters, q)
	}

	if order, _ := flags.GetString("order"); order != "" {
		sort, err := parseOrder(order)
		if err != nil {
			return opts, err
		}
		opts.Sort = sort
	}

	if keyword, _ := flags.GetString("search"); keyword != "" {
		fields, _ := flags.GetStringSlice("in")
		if len(fields) == 0 {
			return opts, fmt.Errorf("--search needs at least one --in field")
		}
		opts.Search = &db.SearchOption{Keyword: keyword, Fields: fields}
	}

	opts.Skip, _ = flags.GetInt("skip")
	opts.Limit, _ = flags.GetInt("limit")
	return opts, nil
}

// parseWhere reads "field,operator,value". The value is decoded as JSON when
// possible so numbers and booleans keep their type; anything else is a string.
func parseWhere(s string) (db.Query, error) {
	parts := strings.SplitN(s, ",", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
		return db.Query{}, fmt.Errorf("invalid --where %q, expected field,operator,value", s)
	}

	var value interface{}
	if err := json.Unmarshal([]byte(parts[2]), &value); err != nil {
		value = parts[2]
	}
	return db.Query{Field: parts[0], Operator: parts[1], Value: value}, nil
}

func parseOrder(s string) (*db.SortOption, error) {
	field, dir, found := strings.Cut(s, ":")
	if field == "" {
		return nil, fmt.Errorf("invalid --order %q", s)
	}
	if !found {
		dir = "asc"
	}
	return &db.SortOption{Field: field, Direction: dir}, nil
}
