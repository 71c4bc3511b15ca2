// Package catalogtest provides an in-memory catalog service for tests.
package catalogtest

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"sync"

	"github.com/imgsync/imgsync/pkg/catalog"
	"github.com/imgsync/imgsync/pkg/errors"
)

// Association records one AssociateImage call.
type Association struct {
	VariationID string
	Version     int64
	ImageID     string
}

// Service is an in-memory catalog.Service. Listings always reflect the
// current image references, so repeated runs observe earlier uploads.
type Service struct {
	mu sync.Mutex

	items    []catalog.RemoteItem
	objects  map[string]*catalog.Object
	pageSize int
	imageSeq int
	byKey    map[string]string

	// FailPage makes the listing of that page (1-based) fail.
	FailPage int
	// CreateErrs are returned, in order, by the next CreateImage calls.
	CreateErrs []error
	// AssociateErrs are returned, in order, by the next AssociateImage calls.
	AssociateErrs []error
	// GetErrs are returned by GetObject for the given id.
	GetErrs map[string]error
	// BeforeAssociate runs before an association is applied.
	BeforeAssociate func(variationID string)

	ListCalls      int
	GetCalls       []string
	CreateCalls    []catalog.CreateImageRequest
	AssociateCalls []Association
}

var _ catalog.Service = (*Service)(nil)

// New creates a Service holding items, listed pageSize items per page
// (everything on one page when pageSize <= 0).
func New(pageSize int, items ...catalog.RemoteItem) *Service {
	s := &Service{
		objects:  make(map[string]*catalog.Object),
		pageSize: pageSize,
		byKey:    make(map[string]string),
		GetErrs:  make(map[string]error),
	}
	for _, item := range items {
		s.items = append(s.items, item)
		s.objects[item.ID] = &catalog.Object{ID: item.ID, Version: 1, ImageIDs: slices.Clone(item.ImageIDs)}
		for _, v := range item.Variations {
			s.objects[v.ID] = &catalog.Object{ID: v.ID, Version: 1, ImageIDs: slices.Clone(v.ImageIDs)}
		}
	}
	return s
}

// SetImages replaces the image references of an object, as another client would.
func (s *Service) SetImages(id string, imageIDs ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj := s.objects[id]
	obj.ImageIDs = imageIDs
	obj.Version++
}

// Images returns the current image references of an object.
func (s *Service) Images(id string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.objects[id].ImageIDs)
}

// Mutations counts CreateImage and AssociateImage calls.
func (s *Service) Mutations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.CreateCalls) + len(s.AssociateCalls)
}

// ImagesCreated counts distinct images created.
func (s *Service) ImagesCreated() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.imageSeq
}

func (s *Service) ListItems(ctx context.Context, cursor string) (*catalog.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ListCalls++

	start := 0
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil {
			return nil, errors.NewCatalogError("list items", errors.KindUnknown, 400, fmt.Errorf("bad cursor %q", cursor))
		}
		start = n
	}
	size := s.pageSize
	if size <= 0 {
		size = len(s.items)
	}
	if s.FailPage > 0 && (size == 0 || start/size+1 == s.FailPage) {
		return nil, errors.NewCatalogError("list items", errors.KindTransient, 503, fmt.Errorf("unavailable"))
	}

	end := min(start+size, len(s.items))
	page := &catalog.Page{}
	for _, item := range s.items[start:end] {
		page.Items = append(page.Items, s.snapshot(item))
	}
	if end < len(s.items) {
		page.Cursor = strconv.Itoa(end)
	}
	return page, nil
}

func (s *Service) snapshot(item catalog.RemoteItem) catalog.RemoteItem {
	out := item
	out.ImageIDs = slices.Clone(s.objects[item.ID].ImageIDs)
	out.Variations = make([]catalog.RemoteVariation, len(item.Variations))
	for i, v := range item.Variations {
		v.ImageIDs = slices.Clone(s.objects[v.ID].ImageIDs)
		out.Variations[i] = v
	}
	return out
}

func (s *Service) GetObject(ctx context.Context, id string) (*catalog.Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.GetCalls = append(s.GetCalls, id)

	if err := s.GetErrs[id]; err != nil {
		return nil, err
	}
	obj, ok := s.objects[id]
	if !ok {
		return nil, errors.NewCatalogError("get object", errors.KindNotFound, 404, fmt.Errorf("object %s", id))
	}
	return &catalog.Object{ID: obj.ID, Version: obj.Version, ImageIDs: slices.Clone(obj.ImageIDs)}, nil
}

func (s *Service) CreateImage(ctx context.Context, req catalog.CreateImageRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CreateCalls = append(s.CreateCalls, req)

	if len(s.CreateErrs) > 0 {
		err := s.CreateErrs[0]
		s.CreateErrs = s.CreateErrs[1:]
		if err != nil {
			return "", err
		}
	}
	if id, ok := s.byKey[req.IdempotencyKey]; ok {
		return id, nil
	}

	s.imageSeq++
	id := fmt.Sprintf("img-%d", s.imageSeq)
	s.byKey[req.IdempotencyKey] = id

	if req.TargetObjectID != "" {
		obj, ok := s.objects[req.TargetObjectID]
		if !ok {
			return "", errors.NewCatalogError("create image", errors.KindNotFound, 404, fmt.Errorf("object %s", req.TargetObjectID))
		}
		obj.ImageIDs = append(obj.ImageIDs, id)
		obj.Version++
	}
	return id, nil
}

func (s *Service) AssociateImage(ctx context.Context, variationID string, version int64, imageID string) error {
	if s.BeforeAssociate != nil {
		s.BeforeAssociate(variationID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.AssociateCalls = append(s.AssociateCalls, Association{VariationID: variationID, Version: version, ImageID: imageID})

	if len(s.AssociateErrs) > 0 {
		err := s.AssociateErrs[0]
		s.AssociateErrs = s.AssociateErrs[1:]
		if err != nil {
			return err
		}
	}
	obj, ok := s.objects[variationID]
	if !ok {
		return errors.NewCatalogError("associate image", errors.KindNotFound, 404, fmt.Errorf("object %s", variationID))
	}
	if obj.Version != version {
		return errors.NewCatalogError("associate image", errors.KindVersionConflict, 409, fmt.Errorf("version %d is stale, current %d", version, obj.Version))
	}
	obj.ImageIDs = append(obj.ImageIDs, imageID)
	obj.Version++
	return nil
}
