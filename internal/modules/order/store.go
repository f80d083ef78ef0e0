// README: Order store backed by Firestore; chunked in-filters and cursor pagination.
package order

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"courio/internal/types"
)

// Filter is the structured query over the orders collection.
type Filter struct {
	Statuses       []Status
	BusinessID     types.ID
	DriverID       types.ID
	CreatedFrom    time.Time
	CreatedTo      time.Time
	PaymentMethods []PaymentMethod
	Source         string
}

// Store is the persistence port the service talks to. The production
// implementation is FirestoreStore; tests substitute an in-memory fake.
type Store interface {
	Create(ctx context.Context, o *Order) (types.ID, error)
	Get(ctx context.Context, id types.ID) (*Order, error)
	UpdateFields(ctx context.Context, id types.ID, fields map[string]interface{}) error
	Delete(ctx context.Context, id types.ID) error
	Query(ctx context.Context, f Filter, pageSize int, cursor string) ([]*Order, string, error)
	ListRecent(ctx context.Context, businessID types.ID, since time.Time, limit int) ([]*Order, error)
	FindByDispatchNumber(ctx context.Context, dispatchNo string) (*Order, error)
	SetDispatchOrderNumber(ctx context.Context, id types.ID, dispatchNo string) error
}

const (
	ordersCollection = "orders"

	// maxInValues is Firestore's cardinality limit on a single
	// "value in {set}" disjunction. Larger filter sets are split into
	// multiple queries and merged; no part of the requested set is dropped.
	maxInValues = 10
)

type FirestoreStore struct {
	client *firestore.Client
}

func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{client: client}
}

func (s *FirestoreStore) orders() *firestore.CollectionRef {
	return s.client.Collection(ordersCollection)
}

func (s *FirestoreStore) Create(ctx context.Context, o *Order) (types.ID, error) {
	ref := s.orders().NewDoc()
	if _, err := ref.Create(ctx, docFromOrder(o)); err != nil {
		return "", fmt.Errorf("creating order document: %w", err)
	}
	return types.ID(ref.ID), nil
}

func (s *FirestoreStore) Get(ctx context.Context, id types.ID) (*Order, error) {
	snap, err := s.orders().Doc(string(id)).Get(ctx)
	if snap != nil && !snap.Exists() {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching order %s: %w", id, err)
	}
	return orderFromDoc(id, snap.Data()), nil
}

func (s *FirestoreStore) UpdateFields(ctx context.Context, id types.ID, fields map[string]interface{}) error {
	updates := make([]firestore.Update, 0, len(fields))
	for path, value := range fields {
		updates = append(updates, firestore.Update{Path: path, Value: value})
	}
	if _, err := s.orders().Doc(string(id)).Update(ctx, updates); err != nil {
		return fmt.Errorf("updating order %s: %w", id, err)
	}
	return nil
}

func (s *FirestoreStore) Delete(ctx context.Context, id types.ID) error {
	if _, err := s.orders().Doc(string(id)).Delete(ctx); err != nil {
		return fmt.Errorf("deleting order %s: %w", id, err)
	}
	return nil
}

// Query runs the structured filter. Status sets above the in-predicate limit
// are split into chunks, one query per chunk, and the results merged
// newest-first. Payment-method sets are applied server-side only when they fit
// in a single equality (one in-disjunction per Firestore query); otherwise the
// superset is scanned and filtered here, and scanning continues past
// non-matching rows so no part of the requested set is dropped.
func (s *FirestoreStore) Query(ctx context.Context, f Filter, pageSize int, cursor string) ([]*Order, string, error) {
	if pageSize <= 0 {
		pageSize = 50
	}
	cur, err := decodeCursor(cursor)
	if err != nil {
		return nil, "", fmt.Errorf("decoding cursor: %w", err)
	}
	return queryPages(ctx, f, pageSize, cur, s.fetchPage)
}

// fetchPage returns the next raw page after cur: every server-side predicate
// applied, chunks merged newest-first and trimmed to pageSize. A multi-valued
// payment set is the one predicate left for the caller to evaluate.
func (s *FirestoreStore) fetchPage(ctx context.Context, f Filter, pageSize int, cur *pageCursor) ([]*Order, error) {
	merged := make([]*Order, 0, pageSize)
	for _, chunk := range chunkStatuses(f.Statuses, maxInValues) {
		batch, err := s.queryChunk(ctx, f, chunk, pageSize, cur)
		if err != nil {
			return nil, err
		}
		merged = append(merged, batch...)
	}
	sortNewestFirst(merged)
	if len(merged) > pageSize {
		merged = merged[:pageSize]
	}
	return merged, nil
}

type pageFetcher func(ctx context.Context, f Filter, pageSize int, cur *pageCursor) ([]*Order, error)

// queryPages assembles one result page from successive raw pages. A raw page
// can thin out after client-side filtering, so the scan keeps advancing from
// the last raw row until the result page fills or the store runs out. The
// continuation cursor points at the last row returned, never past rows the
// scan has not examined.
func queryPages(ctx context.Context, f Filter, pageSize int, cur *pageCursor, fetch pageFetcher) ([]*Order, string, error) {
	out := make([]*Order, 0, pageSize)
	for {
		raw, err := fetch(ctx, f, pageSize, cur)
		if err != nil {
			return nil, "", err
		}
		out = append(out, filterPaymentMethods(raw, f.PaymentMethods)...)
		if len(out) >= pageSize {
			out = out[:pageSize]
			last := out[pageSize-1]
			next := encodeCursor(pageCursor{CreatedAt: last.Timeline.CreatedAt.UnixNano(), ID: string(last.ID)})
			return out, next, nil
		}
		if len(raw) < pageSize {
			return out, "", nil
		}
		lastRaw := raw[len(raw)-1]
		cur = &pageCursor{CreatedAt: lastRaw.Timeline.CreatedAt.UnixNano(), ID: string(lastRaw.ID)}
	}
}

// queryChunk runs one Firestore query for a single status chunk (nil chunk
// means no status predicate).
func (s *FirestoreStore) queryChunk(ctx context.Context, f Filter, statuses []Status, pageSize int, cur *pageCursor) ([]*Order, error) {
	q := s.orders().Query
	if len(statuses) == 1 {
		q = q.Where("status", "==", string(statuses[0]))
	} else if len(statuses) > 1 {
		vals := make([]string, len(statuses))
		for i, st := range statuses {
			vals[i] = string(st)
		}
		q = q.Where("status", "in", vals)
	}
	if f.BusinessID != "" {
		q = q.Where("businessId", "==", string(f.BusinessID))
	}
	if f.DriverID != "" {
		q = q.Where("driverId", "==", string(f.DriverID))
	}
	if f.Source != "" {
		q = q.Where("source", "==", f.Source)
	}
	if len(f.PaymentMethods) == 1 {
		q = q.Where("paymentMethod", "==", string(f.PaymentMethods[0]))
	}
	if !f.CreatedFrom.IsZero() {
		q = q.Where("createdAt", ">=", f.CreatedFrom)
	}
	if !f.CreatedTo.IsZero() {
		q = q.Where("createdAt", "<=", f.CreatedTo)
	}
	q = q.OrderBy("createdAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Desc)
	if cur != nil {
		q = q.StartAfter(time.Unix(0, cur.CreatedAt), cur.ID)
	}
	q = q.Limit(pageSize)
	return s.collect(ctx, q)
}

func (s *FirestoreStore) ListRecent(ctx context.Context, businessID types.ID, since time.Time, limit int) ([]*Order, error) {
	q := s.orders().Query
	if businessID != "" {
		q = q.Where("businessId", "==", string(businessID))
	}
	q = q.Where("createdAt", ">=", since).
		OrderBy("createdAt", firestore.Desc).
		Limit(limit)
	return s.collect(ctx, q)
}

func (s *FirestoreStore) FindByDispatchNumber(ctx context.Context, dispatchNo string) (*Order, error) {
	q := s.orders().Query.Where("dispatchOrderNumber", "==", dispatchNo).Limit(1)
	batch, err := s.collect(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(batch) == 0 {
		return nil, ErrNotFound
	}
	return batch[0], nil
}

// SetDispatchOrderNumber records the provider's id for an order. The field is
// write-once: a transaction re-reads the document and refuses to overwrite an
// existing, different number.
func (s *FirestoreStore) SetDispatchOrderNumber(ctx context.Context, id types.ID, dispatchNo string) error {
	ref := s.orders().Doc(string(id))
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if snap != nil && !snap.Exists() {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		existing := docString(snap.Data(), "dispatchOrderNumber")
		if existing != "" && existing != dispatchNo {
			return ErrConflict
		}
		return tx.Update(ref, []firestore.Update{{Path: "dispatchOrderNumber", Value: dispatchNo}})
	})
	if err != nil {
		return fmt.Errorf("recording dispatch number for order %s: %w", id, err)
	}
	return nil
}

func (s *FirestoreStore) collect(ctx context.Context, q firestore.Query) ([]*Order, error) {
	iter := q.Documents(ctx)
	defer iter.Stop()

	var out []*Order
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterating orders: %w", err)
		}
		out = append(out, orderFromDoc(types.ID(snap.Ref.ID), snap.Data()))
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Query helpers (pure; unit-tested without Firestore)
// ---------------------------------------------------------------------------

// pageCursor is the decoded form of the opaque continuation token: the sort
// key of the last record the previous page returned.
type pageCursor struct {
	CreatedAt int64  `json:"c"`
	ID        string `json:"i"`
}

func encodeCursor(c pageCursor) string {
	raw, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(raw)
}

func decodeCursor(token string) (*pageCursor, error) {
	if token == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, err
	}
	var c pageCursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// chunkStatuses splits a status set into slices of at most size values. An
// empty input yields a single nil chunk (no status predicate).
func chunkStatuses(statuses []Status, size int) [][]Status {
	if len(statuses) == 0 {
		return [][]Status{nil}
	}
	var chunks [][]Status
	for start := 0; start < len(statuses); start += size {
		end := start + size
		if end > len(statuses) {
			end = len(statuses)
		}
		chunks = append(chunks, statuses[start:end])
	}
	return chunks
}

// filterPaymentMethods applies a multi-valued payment filter client-side.
// Single values are pushed down as equality predicates, so only sets of two
// or more reach this path.
func filterPaymentMethods(orders []*Order, methods []PaymentMethod) []*Order {
	if len(methods) < 2 {
		return orders
	}
	want := make(map[PaymentMethod]struct{}, len(methods))
	for _, m := range methods {
		want[m] = struct{}{}
	}
	out := orders[:0]
	for _, o := range orders {
		if _, ok := want[o.PaymentMethod]; ok {
			out = append(out, o)
		}
	}
	return out
}

func sortNewestFirst(orders []*Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		a, b := orders[i].Timeline.CreatedAt, orders[j].Timeline.CreatedAt
		if !a.Equal(b) {
			return a.After(b)
		}
		return orders[i].ID > orders[j].ID
	})
}
