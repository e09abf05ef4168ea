// Package registry tracks the host lights and meshes mirrored into the scene graph. Each
// registry keeps one record per host entity, owns the change subscriptions of that record and
// resolves transform notifications back to the entities they move.
package registry

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/Carmen-Shannon/oxy-bridge/engine/host"
	"github.com/Carmen-Shannon/oxy-bridge/engine/scenegraph"
	"k8s.io/apimachinery/pkg/util/sets"
)

// record is one tracked host entity.
type record[N scenegraph.Node] struct {
	entity    host.Handle
	transform host.Handle
	node      N
	tokens    []host.CallbackToken
}

// index stores records by entity and by parent transform. It is not synchronized; the owning
// registry holds its lock around every call.
type index[N scenegraph.Node] struct {
	records     map[host.Handle]*record[N]
	byTransform map[host.Handle]sets.Set[host.Handle]
}

func newIndex[N scenegraph.Node]() *index[N] {
	return &index[N]{
		records:     make(map[host.Handle]*record[N]),
		byTransform: make(map[host.Handle]sets.Set[host.Handle]),
	}
}

func (ix *index[N]) get(entity host.Handle) (*record[N], bool) {
	r, ok := ix.records[entity]
	return r, ok
}

func (ix *index[N]) insert(r *record[N]) {
	ix.records[r.entity] = r
	owners, ok := ix.byTransform[r.transform]
	if !ok {
		owners = sets.New[host.Handle]()
		ix.byTransform[r.transform] = owners
	}
	owners.Insert(r.entity)
}

func (ix *index[N]) remove(entity host.Handle) {
	r, ok := ix.records[entity]
	if !ok {
		return
	}
	delete(ix.records, entity)
	if owners, ok := ix.byTransform[r.transform]; ok {
		owners.Delete(entity)
		if owners.Len() == 0 {
			delete(ix.byTransform, r.transform)
		}
	}
}

// owners returns the records parented under transform, ordered by entity ID.
func (ix *index[N]) owners(transform host.Handle) []*record[N] {
	set, ok := ix.byTransform[transform]
	if !ok {
		return nil
	}
	entities := set.UnsortedList()
	slices.SortFunc(entities, func(a, b host.Handle) int { return cmp.Compare(a.ID(), b.ID()) })
	out := make([]*record[N], 0, len(entities))
	for _, e := range entities {
		out = append(out, ix.records[e])
	}
	return out
}

// entities returns every tracked entity ordered by ID.
func (ix *index[N]) entities() []host.Handle {
	out := make([]host.Handle, 0, len(ix.records))
	for e := range ix.records {
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b host.Handle) int { return cmp.Compare(a.ID(), b.ID()) })
	return out
}

func (ix *index[N]) len() int {
	return len(ix.records)
}

// subscribeAll registers every (entity, handler) pair and cancels the ones already registered
// if a later registration fails.
func subscribeAll(sub host.Subscriber, pairs ...subscription) ([]host.CallbackToken, error) {
	tokens := make([]host.CallbackToken, 0, len(pairs))
	for _, p := range pairs {
		token, err := sub.Subscribe(p.entity, p.handler)
		if err != nil {
			return nil, errors.Join(fmt.Errorf("subscribe %s: %w", p.entity, err), cancelAll(sub, tokens))
		}
		tokens = append(tokens, token)
	}
	return tokens, nil
}

// cancelAll deregisters every token, continuing past failures.
func cancelAll(sub host.Subscriber, tokens []host.CallbackToken) error {
	var errs []error
	for _, token := range tokens {
		if err := sub.Cancel(token); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type subscription struct {
	entity  host.Handle
	handler host.ChangeHandler
}
