package sensorthings

import (
	stdjson "encoding/json"
	"fmt"
	"math/big"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/tidwall/gjson"
)

// gjson/sjson paths for the reserved SensorThings annotations. The leading @ would
// otherwise be read as a gjson modifier and the dot as a path separator.
const (
	pathID       = `\@iot\.id`
	pathSelfLink = `\@iot\.selfLink`
	pathNextLink = `\@iot\.nextLink`
)

const fieldID = "@iot.id"

// entitySet returns the last dot-separated segment of a collection ID.
func entitySet(collectionID string) string {
	if i := strings.LastIndex(collectionID, "."); i >= 0 {
		return collectionID[i+1:]
	}
	return collectionID
}

// entityPath addresses one entity of a set: Things(1), Things('abc').
func entityPath(setURL, key string) string {
	return setURL + "(" + key + ")"
}

// quoteKey renders s as an OData string literal. Embedded quotes are doubled and
// characters that are not valid in a path are percent-encoded.
func quoteKey(s string) string {
	escaped := strings.ReplaceAll(url.PathEscape(s), "%27", "''")
	return "'" + escaped + "'"
}

// integerID matches a base 10 integer, optionally signed, with single underscores
// allowed between digit groups.
var integerID = regexp.MustCompile(`^[+-]?[0-9]+(_[0-9]+)*$`)

// FormatItemID turns a caller supplied identifier into a key literal. Anything that
// parses as a base 10 integer becomes a numeric literal; everything else is quoted.
func FormatItemID(id string) string {
	s := strings.TrimSpace(id)
	if !integerID.MatchString(s) {
		return quoteKey(id)
	}
	if n, ok := new(big.Int).SetString(strings.ReplaceAll(s, "_", ""), 10); ok {
		return n.String()
	}
	return quoteKey(id)
}

// keyFromValue formats an @iot.id taken from an item. The JSON type decides the
// literal: numbers are written bare and strings are quoted, whatever they contain.
func keyFromValue(v any) (string, bool) {
	switch id := v.(type) {
	case nil:
		return "", false
	case string:
		return quoteKey(id), true
	case stdjson.Number:
		return id.String(), true
	case jsoniter.Number:
		return id.String(), true
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(id), 'f', -1, 32), true
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", id), true
	default:
		return "", false
	}
}

// keyFromResult formats an @iot.id read from a listing.
func keyFromResult(r gjson.Result) (string, bool) {
	switch r.Type {
	case gjson.Number:
		return r.Raw, true
	case gjson.String:
		return quoteKey(r.Str), true
	default:
		return "", false
	}
}
