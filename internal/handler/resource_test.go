package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tour-booking-api/internal/httperr"
	"github.com/iliyamo/tour-booking-api/internal/query"
	"github.com/iliyamo/tour-booking-api/internal/repository"
)

type doc struct {
	ID   uint64 `json:"id"`
	Name string `json:"name"`
}

// fakeStore keeps docs in a map and records the inputs it saw.
type fakeStore struct {
	docs map[uint64]doc

	lastQuery  *query.Query
	lastFields map[string]any
	nextID     uint64
}

func newFakeStore(docs ...doc) *fakeStore {
	f := &fakeStore{docs: make(map[uint64]doc)}
	for _, d := range docs {
		f.docs[d.ID] = d
		if d.ID > f.nextID {
			f.nextID = d.ID
		}
	}
	return f
}

func (f *fakeStore) Find(_ context.Context, q *query.Query) ([]doc, error) {
	f.lastQuery = q
	out := make([]doc, 0, len(f.docs))
	for _, d := range f.docs {
		out = append(out, d)
	}
	return out, nil
}

func (f *fakeStore) FindByID(_ context.Context, id uint64) (doc, error) {
	d, ok := f.docs[id]
	if !ok {
		return doc{}, repository.ErrNotFound
	}
	return d, nil
}

func (f *fakeStore) Create(_ context.Context, fields map[string]any) (doc, error) {
	f.lastFields = fields
	f.nextID++
	name, _ := fields["name"].(string)
	d := doc{ID: f.nextID, Name: name}
	f.docs[d.ID] = d
	return d, nil
}

func (f *fakeStore) UpdateByID(_ context.Context, id uint64, fields map[string]any) (doc, error) {
	f.lastFields = fields
	d, ok := f.docs[id]
	if !ok {
		return doc{}, repository.ErrNotFound
	}
	if name, ok := fields["name"].(string); ok {
		d.Name = name
	}
	f.docs[id] = d
	return d, nil
}

func (f *fakeStore) DeleteByID(_ context.Context, id uint64) error {
	if _, ok := f.docs[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.docs, id)
	return nil
}

var docFields = map[string]string{"id": "id", "name": "name", "createdAt": "created_at"}

func request(method, target, body string) (*http.Request, *httptest.ResponseRecorder) {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	return req, httptest.NewRecorder()
}

func TestDeleteOne(t *testing.T) {
	store := newFakeStore(doc{ID: 3, Name: "alpha"})
	res := NewResource[doc](store, []string{"name"}, docFields)
	e := echo.New()

	// Missing id is a 404.
	req, rec := request(http.MethodDelete, "/docs/99", "")
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("99")
	err := res.DeleteOne(c)
	var he *httperr.Error
	if !errors.As(err, &he) || he.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", err)
	}

	// Existing id deletes with an empty 204 body.
	req, rec = request(http.MethodDelete, "/docs/3", "")
	c = e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("3")
	if err := res.DeleteOne(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Fatalf("expected empty body, got %q", rec.Body.String())
	}
	if _, err := store.FindByID(context.Background(), 3); !errors.Is(err, repository.ErrNotFound) {
		t.Fatal("document still present after delete")
	}
}

func TestListReportsResultCount(t *testing.T) {
	store := newFakeStore(doc{ID: 1, Name: "a"}, doc{ID: 2, Name: "b"})
	res := NewResource[doc](store, []string{"name"}, docFields)
	e := echo.New()

	req, rec := request(http.MethodGet, "/docs?sort=-name&limit=10", "")
	c := e.NewContext(req, rec)
	if err := res.List(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var body struct {
		Status  string          `json:"status"`
		Results int             `json:"results"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "success" || body.Results != 2 {
		t.Fatalf("unexpected envelope: %s", rec.Body.String())
	}
	if store.lastQuery == nil || len(store.lastQuery.OrderBy) == 0 || store.lastQuery.OrderBy[0] != "name DESC" {
		t.Fatalf("query pipeline not applied: %+v", store.lastQuery)
	}
}

func TestListAppliesParentFilter(t *testing.T) {
	store := newFakeStore()
	res := NewResource[doc](store, []string{"name"}, docFields).WithParent("tourId", "tour_id")
	e := echo.New()

	req, rec := request(http.MethodGet, "/tours/5/docs", "")
	c := e.NewContext(req, rec)
	c.SetParamNames("tourId")
	c.SetParamValues("5")
	if err := res.List(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	found := false
	for _, w := range store.lastQuery.Where {
		if w == "tour_id = ?" {
			found = true
		}
	}
	if !found {
		t.Fatalf("parent filter missing from query: %+v", store.lastQuery)
	}
}

func TestCreateFiltersUnknownFields(t *testing.T) {
	store := newFakeStore()
	res := NewResource[doc](store, []string{"name"}, docFields)
	e := echo.New()

	req, rec := request(http.MethodPost, "/docs", `{"name":"alpha","role":"admin","id":999}`)
	c := e.NewContext(req, rec)
	if err := res.Create(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if _, leaked := store.lastFields["role"]; leaked {
		t.Fatal("non-allow-listed field reached the store")
	}
	if _, leaked := store.lastFields["id"]; leaked {
		t.Fatal("client-chosen id reached the store")
	}
	if store.lastFields["name"] != "alpha" {
		t.Fatalf("allowed field dropped: %+v", store.lastFields)
	}
}

func TestGetOneMissing(t *testing.T) {
	store := newFakeStore()
	res := NewResource[doc](store, []string{"name"}, docFields)
	e := echo.New()

	req, rec := request(http.MethodGet, "/docs/12", "")
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("12")
	err := res.GetOne(c)
	var he *httperr.Error
	if !errors.As(err, &he) || he.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", err)
	}
	if he.Message != "No document found with that ID" {
		t.Fatalf("unexpected message %q", he.Message)
	}
}
