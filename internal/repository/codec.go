package repository

import (
	"reflect"
	"time"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/spec-kit/issue-service/internal/docstore"
	"github.com/spec-kit/issue-service/internal/domain"
)

var timeType = reflect.TypeOf(time.Time{})

// timeHook turns stored timestamp strings back into time.Time.
func timeHook(from, to reflect.Type, data interface{}) (interface{}, error) {
	if to != timeType || from.Kind() != reflect.String {
		return data, nil
	}
	s := data.(string)
	if s == "" {
		return time.Time{}, nil
	}
	return domain.ParseTime(s)
}

// decode fills out from a stored document using the json field names.
func decode(doc docstore.Document, out interface{}) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		DecodeHook:       timeHook,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(doc.Data)
}

// putString sets key only for a non-empty value, so optional fields stay
// absent on the stored document.
func putString(m map[string]any, key, value string) {
	if value != "" {
		m[key] = value
	}
}

// decodeAll converts a snapshot, skipping documents that do not decode so
// one malformed record cannot hide the rest of the list.
func decodeAll[T any](docs []docstore.Document, logger *zap.Logger, one func(docstore.Document) (*T, error)) []T {
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		v, err := one(doc)
		if err != nil {
			logger.Warn("skipping undecodable document", zap.String("id", doc.ID), zap.Error(err))
			continue
		}
		out = append(out, *v)
	}
	return out
}

func nopIfNil(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
