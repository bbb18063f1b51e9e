package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/skshohagmiah/fawldb/internal/db"
	"github.com/skshohagmiah/fawldb/internal/protocol"
)

var opNames = map[byte]string{
	protocol.OpInsert: "insert",
	protocol.OpFind:   "find",
	protocol.OpUpdate: "update",
	protocol.OpDelete: "delete",
	protocol.OpGet:    "get",
	protocol.OpCount:  "count",
}

// Handler executes decoded binary requests against the document store
type Handler struct {
	db      *db.DocStore
	metrics *Metrics
	log     *slog.Logger
}

// NewHandler creates a request handler
func NewHandler(store *db.DocStore, metrics *Metrics, log *slog.Logger) *Handler {
	return &Handler{db: store, metrics: metrics, log: log}
}

// Handle runs req and returns the encoded response frame
func (h *Handler) Handle(req *protocol.Request) []byte {
	startTime := time.Now()
	op := opNames[req.OpCode]

	value, err := h.dispatch(req)

	status := "ok"
	var response []byte
	switch {
	case errors.Is(err, db.ErrDocumentNotFound):
		status = "not_found"
		response = protocol.EncodeNotFoundResponse()
	case err != nil:
		status = "error"
		response = protocol.EncodeErrorResponse(err)
		h.log.Debug("request failed", "op", op, "collection", req.Collection, "error", err)
	default:
		response = protocol.EncodeValueResponse(value)
	}

	h.metrics.observe(op, status, time.Since(startTime).Seconds())
	return response
}

func (h *Handler) dispatch(req *protocol.Request) ([]byte, error) {
	if h.db == nil {
		return nil, fmt.Errorf("document store not available")
	}

	coll, err := h.db.Collection(req.Collection)
	if err != nil {
		return nil, err
	}

	switch req.OpCode {
	case protocol.OpInsert:
		return h.insert(coll, req.Body)
	case protocol.OpGet:
		return h.get(coll, req)
	case protocol.OpFind:
		return h.find(coll, req.Body)
	case protocol.OpCount:
		return h.count(coll, req.Body)
	case protocol.OpUpdate:
		return h.update(coll, req.Body, req.Update)
	case protocol.OpDelete:
		return h.delete(coll, req.Body)
	default:
		return nil, fmt.Errorf("unknown opcode: 0x%02x", req.OpCode)
	}
}

func (h *Handler) insert(coll *db.Collection, body []byte) ([]byte, error) {
	doc, err := parseDocument(body)
	if err != nil {
		return nil, err
	}
	id, err := coll.Insert(doc)
	if err != nil {
		return nil, err
	}
	return json.Marshal(map[string]int64{"id": id})
}

func (h *Handler) get(coll *db.Collection, req *protocol.Request) ([]byte, error) {
	id, err := req.ID()
	if err != nil {
		return nil, err
	}
	doc, err := coll.Get(id)
	if err != nil {
		return nil, err
	}
	return json.Marshal(doc)
}

func (h *Handler) find(coll *db.Collection, body []byte) ([]byte, error) {
	opts, err := parseFindOptions(body)
	if err != nil {
		return nil, err
	}
	results, err := coll.Find(opts)
	if err != nil {
		return nil, err
	}
	if h.metrics != nil {
		h.metrics.QueryResults.Observe(float64(len(results)))
	}
	return json.Marshal(results)
}

func (h *Handler) count(coll *db.Collection, body []byte) ([]byte, error) {
	opts, err := parseFindOptions(body)
	if err != nil {
		return nil, err
	}
	n, err := coll.Count(opts)
	if err != nil {
		return nil, err
	}
	return json.Marshal(map[string]int64{"count": n})
}

func (h *Handler) update(coll *db.Collection, query, update []byte) ([]byte, error) {
	findOpts, err := parseFindOptions(query)
	if err != nil {
		return nil, err
	}
	updateOpts, err := parseUpdateOptions(update)
	if err != nil {
		return nil, err
	}
	n, err := coll.UpdateMany(findOpts, updateOpts)
	if err != nil {
		return nil, err
	}
	return json.Marshal(map[string]int64{"updated": n})
}

func (h *Handler) delete(coll *db.Collection, body []byte) ([]byte, error) {
	opts, err := parseFindOptions(body)
	if err != nil {
		return nil, err
	}
	n, err := coll.DeleteMany(opts)
	if err != nil {
		return nil, err
	}
	return json.Marshal(map[string]int64{"deleted": n})
}

// parseDocument decodes a JSON object
func parseDocument(data []byte) (db.Document, error) {
	var doc db.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", db.ErrInvalidDocument, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: document must be a JSON object", db.ErrInvalidDocument)
	}
	return doc, nil
}

// parseFindOptions decodes query JSON; an empty body matches everything
func parseFindOptions(data []byte) (db.FindOptions, error) {
	if len(data) == 0 {
		return db.FindOptions{}, nil
	}
	var queryData map[string]interface{}
	if err := json.Unmarshal(data, &queryData); err != nil {
		return db.FindOptions{}, fmt.Errorf("%w: invalid query format: %v", db.ErrInvalidQuery, err)
	}
	return buildFindOptions(queryData)
}

// parseUpdateOptions decodes {"set": {...}, "unset": [...], "merge": bool}.
// Merge defaults to true.
func parseUpdateOptions(data []byte) (db.UpdateOptions, error) {
	var optsData map[string]interface{}
	if err := json.Unmarshal(data, &optsData); err != nil {
		return db.UpdateOptions{}, fmt.Errorf("%w: invalid update format: %v", db.ErrInvalidQuery, err)
	}
	return buildUpdateOptions(optsData)
}

// buildFindOptions converts decoded query JSON into FindOptions. A key with
// the wrong JSON type is rejected rather than dropped, since dropping it
// would widen the query. A null value counts as absent.
func buildFindOptions(queryData map[string]interface{}) (db.FindOptions, error) {
	opts := db.FindOptions{
		Filters: []db.Query{},
	}

	// Parse filters
	if filtersRaw := queryData["filters"]; filtersRaw != nil {
		filtersArr, ok := filtersRaw.([]interface{})
		if !ok {
			return opts, fmt.Errorf("%w: 'filters' must be an array", db.ErrInvalidQuery)
		}
		for i, f := range filtersArr {
			filterMap, ok := f.(map[string]interface{})
			if !ok {
				return opts, fmt.Errorf("%w: filter %d must be an object", db.ErrInvalidQuery, i)
			}
			field, ok := filterMap["field"].(string)
			if !ok || field == "" {
				return opts, fmt.Errorf("%w: filter %d needs a string 'field'", db.ErrInvalidQuery, i)
			}
			operator, ok := filterMap["operator"].(string)
			if !ok {
				return opts, fmt.Errorf("%w: filter %d needs a string 'operator'", db.ErrInvalidQuery, i)
			}
			opts.Filters = append(opts.Filters, db.Query{
				Field:    field,
				Operator: operator,
				Value:    filterMap["value"],
			})
		}
	}

	// Parse sort
	if sortRaw := queryData["sort"]; sortRaw != nil {
		sortMap, ok := sortRaw.(map[string]interface{})
		if !ok {
			return opts, fmt.Errorf("%w: 'sort' must be an object", db.ErrInvalidQuery)
		}
		field, ok := sortMap["field"].(string)
		if !ok {
			return opts, fmt.Errorf("%w: sort needs a string 'field'", db.ErrInvalidQuery)
		}
		direction, ok := optionalString(sortMap["direction"])
		if !ok {
			return opts, fmt.Errorf("%w: sort 'direction' must be a string", db.ErrInvalidQuery)
		}
		opts.Sort = &db.SortOption{Field: field, Direction: direction}
	}

	// Parse search
	if searchRaw := queryData["search"]; searchRaw != nil {
		searchMap, ok := searchRaw.(map[string]interface{})
		if !ok {
			return opts, fmt.Errorf("%w: 'search' must be an object", db.ErrInvalidQuery)
		}
		keyword, ok := optionalString(searchMap["keyword"])
		if !ok {
			return opts, fmt.Errorf("%w: search 'keyword' must be a string", db.ErrInvalidQuery)
		}
		fields, ok := stringList(searchMap["fields"])
		if !ok {
			return opts, fmt.Errorf("%w: search 'fields' must be a string or a list of strings", db.ErrInvalidQuery)
		}
		opts.Search = &db.SearchOption{Keyword: keyword, Fields: fields}
	}

	// Parse pagination
	var err error
	if opts.Skip, err = optionalInt(queryData, "skip"); err != nil {
		return opts, err
	}
	if opts.Limit, err = optionalInt(queryData, "limit"); err != nil {
		return opts, err
	}

	return opts, nil
}

func optionalString(val interface{}) (string, bool) {
	if val == nil {
		return "", true
	}
	s, ok := val.(string)
	return s, ok
}

// optionalInt reads a whole JSON number; absent or null is 0
func optionalInt(data map[string]interface{}, key string) (int, error) {
	raw := data[key]
	if raw == nil {
		return 0, nil
	}
	n, ok := raw.(float64)
	if !ok || n != math.Trunc(n) {
		return 0, fmt.Errorf("%w: '%s' must be an integer", db.ErrInvalidQuery, key)
	}
	return int(n), nil
}

// stringList accepts a single string or a list of strings
func stringList(val interface{}) ([]string, bool) {
	switch v := val.(type) {
	case nil:
		return nil, true
	case string:
		return []string{v}, true
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}

func buildUpdateOptions(optsData map[string]interface{}) (db.UpdateOptions, error) {
	opts := db.UpdateOptions{Merge: true}

	if setRaw, ok := optsData["set"]; ok {
		setMap, ok := setRaw.(map[string]interface{})
		if !ok {
			return opts, fmt.Errorf("%w: 'set' must be an object", db.ErrInvalidQuery)
		}
		opts.Set = db.Document(setMap)
	}
	unset, ok := stringList(optsData["unset"])
	if !ok {
		return opts, fmt.Errorf("%w: 'unset' must be a string or a list of strings", db.ErrInvalidQuery)
	}
	opts.Unset = unset
	if merge, ok := optsData["merge"].(bool); ok {
		opts.Merge = merge
	}

	if opts.Set == nil && len(opts.Unset) == 0 {
		return opts, fmt.Errorf("%w: update needs 'set' or 'unset'", db.ErrInvalidQuery)
	}
	return opts, nil
}
