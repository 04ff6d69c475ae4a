package chat

import (
	"context"
	"encoding/json"
	"iter"
	"net/http"
	"net/url"
)

// Paginate walks a cursor-paginated list endpoint, yielding the raw items
// found under itemsKey one at a time. Pages are fetched lazily: breaking out
// of the loop stops further requests. The walk ends when the server returns
// no cursor or an empty page, whichever comes first, so a buggy server that
// keeps handing out cursors for empty pages cannot loop forever. An error is
// yielded once and ends the sequence. Each call starts again from page one.
func (c *Client) Paginate(ctx context.Context, path string, query url.Values, itemsKey string) iter.Seq2[json.RawMessage, error] {
	return func(yield func(json.RawMessage, error) bool) {
		cursor := ""
		for {
			q := cloneValues(query)
			if cursor != "" {
				q.Set("cursor", cursor)
			}
			data, err := c.Request(ctx, http.MethodGet, path, q, nil)
			if err != nil {
				yield(nil, err)
				return
			}
			items, next, err := decodePage(path, data, itemsKey)
			if err != nil {
				yield(nil, err)
				return
			}
			for _, item := range items {
				if !yield(item, nil) {
					return
				}
			}
			if next == "" || len(items) == 0 {
				return
			}
			cursor = next
		}
	}
}

// decodePage splits one page into its items and the next cursor. A missing
// or null items key is an empty page.
func decodePage(path string, data json.RawMessage, itemsKey string) ([]json.RawMessage, string, error) {
	var page map[string]json.RawMessage
	if err := decode(path, data, &page); err != nil {
		return nil, "", err
	}
	var items []json.RawMessage
	if raw, ok := page[itemsKey]; ok {
		if err := decode(path, raw, &items); err != nil {
			return nil, "", err
		}
	}
	var next wireString
	if raw, ok := page["next_cursor"]; ok {
		if err := decode(path, raw, &next); err != nil {
			return nil, "", err
		}
	}
	return items, string(next), nil
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v)+1)
	for k, vals := range v {
		out[k] = append([]string(nil), vals...)
	}
	return out
}
