package encoding

import (
	"errors"
	"io"

	jsoniter "github.com/json-iterator/go"
	"github.com/json-iterator/go/extra"
)

var ErrDecodeJSON = errors.New("failed to decode JSON")

// The stryder endpoint is not consistent about quoting numbers, so string values are accepted
// for numeric fields.
var json = func() jsoniter.API {
	extra.RegisterFuzzyDecoders()

	return jsoniter.ConfigCompatibleWithStandardLibrary
}()

func UnmarshalJSON[T any](reader io.Reader) (T, error) {
	var value T
	if err := json.NewDecoder(reader).Decode(&value); err != nil {
		return value, errors.Join(err, ErrDecodeJSON)
	}

	return value, nil
}

// MarshalJSON encodes value using the same configuration used for decoding.
func MarshalJSON(value any) ([]byte, error) {
	return json.Marshal(value)
}
