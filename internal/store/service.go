// internal/store/service.go
package store

import (
	"context"
	"errors"
	"strings"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// WriteOptions mirrors the Firestore set options the proxy accepts.
type WriteOptions struct {
	Merge       bool     `json:"merge,omitempty"`
	MergeFields []string `json:"mergeFields,omitempty"`
}

// DocStore is the document access the handler needs; FirestoreStore is
// the production implementation.
type DocStore interface {
	Read(ctx context.Context, path []string) (map[string]any, error)
	Write(ctx context.Context, path []string, data map[string]any, opts WriteOptions) error
}

var errInvalidPath = errors.New("invalid document path")

// IsInvalidPath reports whether err came from a malformed document path
// (for example an odd number of segments).
func IsInvalidPath(err error) bool { return errors.Is(err, errInvalidPath) }

type FirestoreStore struct {
	client *firestore.Client
}

func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{client: client}
}

func (s *FirestoreStore) doc(path []string) (*firestore.DocumentRef, error) {
	ref := s.client.Doc(strings.Join(path, "/"))
	if ref == nil {
		return nil, errInvalidPath
	}
	return ref, nil
}

// Read fetches one document. A missing document is not an error: it
// yields an empty map, matching what callers expect from the proxy.
func (s *FirestoreStore) Read(ctx context.Context, path []string) (map[string]any, error) {
	ref, err := s.doc(path)
	if err != nil {
		return nil, err
	}
	snap, err := ref.Get(ctx)
	if status.Code(err) == codes.NotFound {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, err
	}
	return snap.Data(), nil
}

// Write sets one document, honoring merge semantics when requested.
func (s *FirestoreStore) Write(ctx context.Context, path []string, data map[string]any, opts WriteOptions) error {
	ref, err := s.doc(path)
	if err != nil {
		return err
	}
	var setOpts []firestore.SetOption
	switch {
	case len(opts.MergeFields) > 0:
		paths := make([]firestore.FieldPath, 0, len(opts.MergeFields))
		for _, f := range opts.MergeFields {
			paths = append(paths, strings.Split(f, "."))
		}
		setOpts = append(setOpts, firestore.Merge(paths...))
	case opts.Merge:
		setOpts = append(setOpts, firestore.MergeAll)
	}
	_, err = ref.Set(ctx, data, setOpts...)
	return err
}
