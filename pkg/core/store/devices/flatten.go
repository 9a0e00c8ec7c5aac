package devices

import (
	"strings"

	"github.com/jeremywohl/flatten"
	"github.com/nqd/flat"
)

// list hides slices from flatten so they are written as a single field
// instead of one field per index.
type list struct {
	items []interface{}
}

func wrapLists(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		switch t := v.(type) {
		case map[string]interface{}:
			out[k] = wrapLists(t)
		case []interface{}:
			out[k] = list{items: t}
		default:
			out[k] = v
		}
	}
	return out
}

func unwrapLists(m map[string]interface{}) map[string]interface{} {
	for k, v := range m {
		switch t := v.(type) {
		case map[string]interface{}:
			m[k] = unwrapLists(t)
		case list:
			m[k] = t.items
		}
	}
	return m
}

// flattenUpdates turns nested and dotted updates into dotted field paths.
func flattenUpdates(updates map[string]interface{}) (map[string]interface{}, error) {
	out, err := flatten.Flatten(wrapLists(updates), "", flatten.DotStyle)
	if err != nil {
		return nil, err
	}
	return unwrapLists(out), nil
}

// mergeDocument applies dotted updates on top of doc and returns the nested
// result.
func mergeDocument(doc, updates map[string]interface{}) (map[string]interface{}, error) {
	base, err := flatten.Flatten(wrapLists(doc), "", flatten.DotStyle)
	if err != nil {
		return nil, err
	}
	patch, err := flatten.Flatten(wrapLists(updates), "", flatten.DotStyle)
	if err != nil {
		return nil, err
	}
	for k, v := range patch {
		// a value replacing a subtree drops the old children and the
		// reverse drops the old leaf
		for bk := range base {
			if strings.HasPrefix(bk, k+".") || strings.HasPrefix(k, bk+".") {
				delete(base, bk)
			}
		}
		base[k] = v
	}
	nested, err := flat.Unflatten(base, &flat.Options{Delimiter: "."})
	if err != nil {
		return nil, err
	}
	return unwrapLists(nested), nil
}
