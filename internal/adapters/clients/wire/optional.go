package wire

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"

	"github.com/jsamuelsen/authrpc/internal/domain"
)

// DecodeOptional decodes the response into out, a pointer to a struct tagged
// with `json:"..."` names. Absent fields keep their zero value. Scalars are
// weakly typed, so "3600" fills an int field and 3600 fills a string field.
// A value that cannot be coerced fails with a *domain.ValidationError.
func DecodeOptional(raw RawResponse, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           out,
		DecodeHook:       mapstructure.DecodeHookFuncType(secondsHook),
	})
	if err != nil {
		return fmt.Errorf("building optional decoder: %w", err)
	}

	if err := decoder.Decode(raw.Map()); err != nil {
		return domain.NewValidationError(fieldOf(err), err.Error())
	}

	return nil
}

// Seconds is a duration carried on the wire as a number of seconds, either
// as a JSON number or as a numeric string.
type Seconds time.Duration

// Duration returns the value as a time.Duration.
func (s Seconds) Duration() time.Duration {
	return time.Duration(s)
}

var secondsType = reflect.TypeOf(Seconds(0))

// maxSeconds is the largest whole number of seconds a time.Duration holds.
const maxSeconds = float64(math.MaxInt64 / int64(time.Second))

func secondsHook(from, to reflect.Type, data any) (any, error) {
	if to != secondsType {
		return data, nil
	}

	var n float64

	switch v := data.(type) {
	case float64:
		n = v
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number of seconds", v)
		}

		n = parsed
	default:
		return nil, fmt.Errorf("%T is not a number of seconds", data)
	}

	switch {
	case math.IsNaN(n) || math.IsInf(n, 0):
		return nil, fmt.Errorf("%v is not a number of seconds", n)
	case n < 0:
		return nil, fmt.Errorf("negative seconds %v", n)
	case n > maxSeconds:
		return nil, fmt.Errorf("%v seconds is out of range", n)
	}

	whole, frac := math.Modf(n)

	return Seconds(time.Duration(whole)*time.Second + time.Duration(frac*float64(time.Second))), nil
}

// fieldOf pulls the offending key out of a mapstructure error message such as
// "decoding failed due to the following error(s):\n\n'expiresIn' ...".
func fieldOf(err error) string {
	msg := err.Error()

	start := strings.IndexByte(msg, '\'')
	if start < 0 {
		return ""
	}

	end := strings.IndexByte(msg[start+1:], '\'')
	if end < 0 {
		return ""
	}

	return msg[start+1 : start+1+end]
}
