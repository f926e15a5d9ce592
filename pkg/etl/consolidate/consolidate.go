// Package consolidate merges datasets that share one entity key.
package consolidate

import (
	"fmt"

	"github.com/de-tools/commerce-atlas/pkg/dataset"
)

// JoinKeyMismatchError reports a dataset that cannot be joined on the
// consolidation key.
type JoinKeyMismatchError struct {
	Key      string
	Dataset  string
	Position int
	Reason   string
}

func (e *JoinKeyMismatchError) Error() string {
	return fmt.Sprintf("consolidate on %q: dataset %s at position %d: %s", e.Key, e.Dataset, e.Position, e.Reason)
}

// Consolidate outer-joins tables left to right on key and fills every missing
// cell with its column's zero. The first table is the anchor: its keys come
// first, followed by keys introduced by later tables in order of appearance.
func Consolidate(name, key string, tables ...*dataset.Table) (*dataset.Table, error) {
	if len(tables) < 2 {
		return nil, fmt.Errorf("consolidate %s: need at least 2 datasets, got %d", name, len(tables))
	}

	anchor, ok := tables[0].Column(key)
	if !ok {
		return nil, &JoinKeyMismatchError{Key: key, Dataset: tables[0].Name(), Position: 0, Reason: "key column missing"}
	}
	for i, t := range tables[1:] {
		c, ok := t.Column(key)
		if !ok {
			return nil, &JoinKeyMismatchError{Key: key, Dataset: t.Name(), Position: i + 1, Reason: "key column missing"}
		}
		if c.Type != anchor.Type {
			return nil, &JoinKeyMismatchError{
				Key:      key,
				Dataset:  t.Name(),
				Position: i + 1,
				Reason:   fmt.Sprintf("key is %s, anchor key is %s", c.Type, anchor.Type),
			}
		}
	}

	acc := tables[0]
	for _, t := range tables[1:] {
		joined, err := dataset.OuterJoin(acc, t, key)
		if err != nil {
			return nil, fmt.Errorf("consolidate %s: %w", name, err)
		}
		acc = joined
	}

	return dataset.FillMissing(acc).WithName(name), nil
}
