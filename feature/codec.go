package feature

import (
	"github.com/goccy/go-json"

	"github.com/rushteam/recengine/core"
)

func encodeVector(v *Vector) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleFeature, core.ErrorCodeInternalError, err, "feature: encode %s %s", v.EntityKind, v.EntityID)
	}
	return b, nil
}

func decodeVector(b []byte) (*Vector, error) {
	var v Vector
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, err
	}
	if v.Numeric == nil {
		v.Numeric = make(map[string]float64)
	}
	if v.Categorical == nil {
		v.Categorical = make(map[string][]string)
	}
	return &v, nil
}
