package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"stayhub/internal/domain"
)

func valStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}
func valBool(p *bool) any {
	if p == nil {
		return nil
	}
	return *p
}
func valF64(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}
func valAddress(a *domain.Address) any {
	if a == nil {
		return nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil
	}
	return string(b)
}

func strPtr(n sql.NullString) *string {
	if !n.Valid {
		return nil
	}
	s := n.String
	return &s
}
func f64Ptr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	f := n.Float64
	return &f
}

type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

// Upsert inserts or merges one listing keyed by (source, original_id) and
// returns the stored row.
func (r *Repo) Upsert(ctx context.Context, l domain.Listing) (domain.Listing, error) {
	if l.Source == "" || l.OriginalID == "" {
		return domain.Listing{}, &domain.StoreError{Op: "upsert", Err: errors.New("source and originalId are required")}
	}
	var addrCity, addrCountry *string
	if l.Address != nil {
		addrCity, addrCountry = l.Address.City, l.Address.Country
	}
	raw := string(l.RawData)
	if raw == "" {
		raw = "null"
	}
	_, err := r.db.ExecContext(ctx, upsertListingSQL,
		l.Source,
		l.OriginalID,
		valStr(l.Name),
		valStr(l.City),
		valStr(l.Country),
		valAddress(l.Address),
		valStr(addrCity),
		valStr(addrCountry),
		valStr(l.Availability),
		valBool(l.IsAvailable),
		valF64(l.PriceForNight),
		valF64(l.PricePerNight),
		valStr(l.PriceSegment),
		raw,
	)
	if err != nil {
		return domain.Listing{}, &domain.StoreError{Op: "upsert", Err: err}
	}
	out, err := scanListing(r.db.QueryRowContext(ctx, getListingByKeySQL, l.Source, l.OriginalID))
	if err != nil {
		return domain.Listing{}, &domain.StoreError{Op: "upsert", Err: err}
	}
	return out, nil
}

// Query returns every listing accepted by f in insertion (id) order.
func (r *Repo) Query(ctx context.Context, f domain.Filter) ([]domain.Listing, error) {
	where, args := buildListingsWhere(f)
	rows, err := r.db.QueryContext(ctx, selectListingCols+where+"\nORDER BY id", args...)
	if err != nil {
		return nil, &domain.StoreError{Op: "query", Err: err}
	}
	defer rows.Close()

	out := []domain.Listing{}
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, &domain.StoreError{Op: "query", Err: err}
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.StoreError{Op: "query", Err: err}
	}
	return out, nil
}

func (r *Repo) ListSources(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, listSourcesSQL)
	if err != nil {
		return nil, &domain.StoreError{Op: "list_sources", Err: err}
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, &domain.StoreError{Op: "list_sources", Err: err}
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.StoreError{Op: "list_sources", Err: err}
	}
	return out, nil
}

func (r *Repo) Stats(ctx context.Context) (domain.Stats, error) {
	st := domain.Stats{PerSource: map[string]int64{}}
	if err := r.db.QueryRowContext(ctx, countListingsSQL).Scan(&st.TotalCount); err != nil {
		return domain.Stats{}, &domain.StoreError{Op: "stats", Err: err}
	}
	rows, err := r.db.QueryContext(ctx, countPerSourceSQL)
	if err != nil {
		return domain.Stats{}, &domain.StoreError{Op: "stats", Err: err}
	}
	defer rows.Close()
	for rows.Next() {
		var (
			src string
			n   int64
		)
		if err := rows.Scan(&src, &n); err != nil {
			return domain.Stats{}, &domain.StoreError{Op: "stats", Err: err}
		}
		st.PerSource[src] = n
	}
	if err := rows.Err(); err != nil {
		return domain.Stats{}, &domain.StoreError{Op: "stats", Err: err}
	}
	return st, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanListing(sc rowScanner) (domain.Listing, error) {
	var (
		l                     domain.Listing
		name, city, country   sql.NullString
		hasAddr               bool
		addrCity, addrCountry sql.NullString
		availability, segment sql.NullString
		isAvailable           sql.NullBool
		pfn, ppn              sql.NullFloat64
		raw                   []byte
	)
	if err := sc.Scan(
		&l.ID, &l.Source, &l.OriginalID,
		&name, &city, &country,
		&hasAddr, &addrCity, &addrCountry,
		&availability, &isAvailable, &pfn, &ppn, &segment,
		&raw, &l.CreatedAt, &l.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Listing{}, domain.ErrNotFound
		}
		return domain.Listing{}, err
	}
	l.Name = strPtr(name)
	l.City = strPtr(city)
	l.Country = strPtr(country)
	l.Availability = strPtr(availability)
	l.PriceSegment = strPtr(segment)
	l.PriceForNight = f64Ptr(pfn)
	l.PricePerNight = f64Ptr(ppn)
	if isAvailable.Valid {
		b := isAvailable.Bool
		l.IsAvailable = &b
	}
	// nested fields merge per column, so rebuild the object from them
	if hasAddr {
		l.Address = &domain.Address{City: strPtr(addrCity), Country: strPtr(addrCountry)}
	}
	l.RawData = append(json.RawMessage(nil), raw...)
	return l, nil
}
