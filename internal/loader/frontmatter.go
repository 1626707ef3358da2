package loader

import (
	"bytes"
	stderrors "errors"

	"gopkg.in/yaml.v3"

	"github.com/conneroisu/verso/internal/errors"
	"github.com/conneroisu/verso/internal/view"
)

var fence = []byte("---")

// SplitFrontMatter separates a leading YAML block fenced by "---" lines
// from the body. Files without front matter return a nil map.
func SplitFrontMatter(raw []byte) (map[string]any, []byte, error) {
	first, rest, ok := cutLine(raw)
	if !ok || !bytes.Equal(bytes.TrimRight(first, " \t\r"), fence) {
		return nil, raw, nil
	}

	var (
		block []byte
		body  = rest
		found bool
	)
	for len(body) > 0 {
		line, next, _ := cutLine(body)
		if bytes.Equal(bytes.TrimRight(line, " \t\r"), fence) {
			block = rest[:len(rest)-len(body)]
			body = next
			found = true
			break
		}
		body = next
	}
	if !found {
		return nil, nil, errors.NewValidationError(errors.ErrCodeFrontMatter, "front matter is not closed")
	}

	data := make(map[string]any)
	if err := yaml.Unmarshal(block, &data); err != nil {
		return nil, nil, &errors.VersoError{
			Type:    errors.ErrorTypeValidation,
			Code:    errors.ErrCodeFrontMatter,
			Message: "failed to parse front matter",
			Cause:   err,
		}
	}
	return data, body, nil
}

func cutLine(b []byte) (line, rest []byte, ok bool) {
	if len(b) == 0 {
		return nil, nil, false
	}
	if i := bytes.IndexByte(b, '\n'); i >= 0 {
		return b[:i], b[i+1:], true
	}
	return b, nil, true
}

// Parse builds a view from raw file contents. Front matter becomes Data;
// the layout, engine and kind keys also set the matching view fields.
func Parse(p string, raw []byte) (*view.View, error) {
	data, body, err := SplitFrontMatter(raw)
	if err != nil {
		var ve *errors.VersoError
		if stderrors.As(err, &ve) {
			return nil, ve.WithPath(p)
		}
		return nil, err
	}

	v := view.New(p, body)
	if v.Contents == nil {
		v.Contents = []byte{}
	}
	for k, val := range data {
		v.Data[k] = val
	}

	if val, ok := data["layout"]; ok {
		v.Layout = view.ParseLayoutRef(val)
	}
	if engine, ok := data["engine"].(string); ok {
		v.Engine = engine
	}
	if kind, ok := data["kind"].(string); ok {
		if k := view.Kind(kind); k.Valid() {
			v.Kind = k
		}
	}
	return v, nil
}
