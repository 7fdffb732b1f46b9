// SPDX-License-Identifier: MIT

package request

import (
	"context"
	"fmt"

	"github.com/icecore/icegate/internal/session"
)

// fakeStore is a call-recording session.Store for exercising the Request's
// caching and lifecycle behavior without a real backend.
type fakeStore struct {
	sessions map[string]map[string]string
	nextID   int

	// normalize, when set, rewrites values on write the way a real store
	// might canonicalize input.
	normalize func(string) string

	creates      int
	opens        int
	idFetches    int
	itemGets     map[string]int
	itemSets     map[string]int
	itemRemoves  map[string]int
	handleCloses int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sessions:    make(map[string]map[string]string),
		itemGets:    make(map[string]int),
		itemSets:    make(map[string]int),
		itemRemoves: make(map[string]int),
	}
}

func (f *fakeStore) seedSession(items map[string]string) string {
	f.nextID++
	id := fmt.Sprintf("seed-%d", f.nextID)
	data := make(map[string]string, len(items))
	for k, v := range items {
		data[k] = v
	}
	f.sessions[id] = data
	return id
}

func (f *fakeStore) peek(id, key string) (string, bool) {
	data, ok := f.sessions[id]
	if !ok {
		return "", false
	}
	v, ok := data[key]
	return v, ok
}

func (f *fakeStore) totalCalls() int {
	n := f.creates + f.opens + f.idFetches + f.handleCloses
	for _, c := range f.itemGets {
		n += c
	}
	for _, c := range f.itemSets {
		n += c
	}
	for _, c := range f.itemRemoves {
		n += c
	}
	return n
}

func (f *fakeStore) Open(ctx context.Context, id string) (session.Session, error) {
	f.opens++
	if _, ok := f.sessions[id]; !ok {
		return nil, session.ErrNotFound
	}
	return &fakeSession{store: f, id: id}, nil
}

func (f *fakeStore) Create(ctx context.Context) (session.Session, error) {
	f.creates++
	f.nextID++
	id := fmt.Sprintf("fake-%d", f.nextID)
	f.sessions[id] = make(map[string]string)
	return &fakeSession{store: f, id: id}, nil
}

func (f *fakeStore) Close() error { return nil }

type fakeSession struct {
	store *fakeStore
	id    string
}

func (s *fakeSession) ID(ctx context.Context) (string, error) {
	s.store.idFetches++
	return s.id, nil
}

func (s *fakeSession) Get(ctx context.Context, key string) (string, bool, error) {
	s.store.itemGets[key]++
	v, ok := s.store.sessions[s.id][key]
	return v, ok, nil
}

func (s *fakeSession) Set(ctx context.Context, key, value string) error {
	s.store.itemSets[key]++
	if s.store.normalize != nil {
		value = s.store.normalize(value)
	}
	s.store.sessions[s.id][key] = value
	return nil
}

func (s *fakeSession) Remove(ctx context.Context, key string) error {
	s.store.itemRemoves[key]++
	delete(s.store.sessions[s.id], key)
	return nil
}

func (s *fakeSession) Close() error {
	s.store.handleCloses++
	return nil
}
