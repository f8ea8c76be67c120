package parcels

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ariefcatur/go-realtime-parcels.git/internal/paging"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound          = errors.New("parcel not found")
	ErrInvalidTransition = errors.New("invalid status transition")
)

const parcelColumns = `id, tracking_number, description, status, order_id, weight, agency_ids, version, updated_at`

type Repo struct{ DB *pgxpool.Pool }

// ListPage serves the paginated read endpoint. Ordering matches the live query so page
// boundaries stay stable.
func (r *Repo) ListPage(ctx context.Context, f Filter, offset, limit int) (paging.Page[Parcel], error) {
	offset, limit = paging.Clamp(offset, limit)
	countSQL, listSQL, args := buildListQuery(f, offset, limit)

	var page paging.Page[Parcel]
	if err := r.DB.QueryRow(ctx, countSQL, args[:len(args)-2]...).Scan(&page.Total); err != nil {
		return page, fmt.Errorf("count parcels: %w", err)
	}

	rows, err := r.DB.Query(ctx, listSQL, args...)
	if err != nil {
		return page, fmt.Errorf("list parcels: %w", err)
	}
	defer rows.Close()

	page.Rows = make([]Parcel, 0, limit)
	for rows.Next() {
		p, err := scanParcel(rows)
		if err != nil {
			return page, err
		}
		page.Rows = append(page.Rows, p)
	}
	return page, rows.Err()
}

// All loads every parcel; used to seed an empty replica.
func (r *Repo) All(ctx context.Context) ([]Parcel, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+parcelColumns+` FROM parcels ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Parcel
	for rows.Next() {
		p, err := scanParcel(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repo) Get(ctx context.Context, id string) (Parcel, error) {
	p, err := scanParcel(r.DB.QueryRow(ctx, `SELECT `+parcelColumns+` FROM parcels WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Parcel{}, ErrNotFound
	}
	return p, err
}

// UpdateStatus: lock row (FOR UPDATE) -> cek transisi -> update + naikkan version.
// The new version becomes the change-feed seq of this parcel.
func (r *Repo) UpdateStatus(ctx context.Context, id string, to Status) (Parcel, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Parcel{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var from Status
	err = tx.QueryRow(ctx, `SELECT status FROM parcels WHERE id=$1 FOR UPDATE`, id).Scan(&from)
	if errors.Is(err, pgx.ErrNoRows) {
		return Parcel{}, ErrNotFound
	}
	if err != nil {
		return Parcel{}, err
	}
	if !CanTransition(from, to) {
		return Parcel{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	p, err := scanParcel(tx.QueryRow(ctx, `
		UPDATE parcels SET status=$2, version=nextval('parcel_change_seq'), updated_at=now()
		WHERE id=$1
		RETURNING `+parcelColumns, id, to))
	if err != nil {
		return Parcel{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Parcel{}, err
	}
	return p, nil
}

// Create inserts a new parcel; its version is drawn from parcel_change_seq. An existing
// id is a no-op and returns the stored row with created=false.
func (r *Repo) Create(ctx context.Context, p Parcel) (Parcel, bool, error) {
	if p.Status == "" {
		p.Status = StatusInAgency
	}
	if p.AgencyIDs == nil {
		p.AgencyIDs = []string{}
	}
	out, err := scanParcel(r.DB.QueryRow(ctx, `
		INSERT INTO parcels (id, tracking_number, description, status, order_id, weight, agency_ids)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (id) DO NOTHING
		RETURNING `+parcelColumns,
		p.ID, p.TrackingNumber, p.Description, p.Status, p.OrderID, p.Weight, p.AgencyIDs))
	if errors.Is(err, pgx.ErrNoRows) {
		existing, err := r.Get(ctx, p.ID)
		return existing, false, err
	}
	if err != nil {
		return Parcel{}, false, fmt.Errorf("insert parcel: %w", err)
	}
	return out, true, nil
}

// Delete removes a parcel and returns the seq its delete change must carry, drawn
// from the same sequence as versions.
func (r *Repo) Delete(ctx context.Context, id string) (int64, error) {
	var seq int64
	err := r.DB.QueryRow(ctx, deleteSQL, id).Scan(&seq)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return seq, nil
}

const deleteSQL = `
	WITH d AS (DELETE FROM parcels WHERE id=$1 RETURNING id)
	SELECT nextval('parcel_change_seq') FROM d`

func scanParcel(row pgx.Row) (Parcel, error) {
	var p Parcel
	err := row.Scan(&p.ID, &p.TrackingNumber, &p.Description, &p.Status, &p.OrderID,
		&p.Weight, &p.AgencyIDs, &p.Version, &p.UpdatedAt)
	return p, err
}

// buildListQuery renders Filter as SQL. The last two args are limit and offset; the
// count query uses the rest.
func buildListQuery(f Filter, offset, limit int) (countSQL, listSQL string, args []any) {
	var conds []string
	if f.Status != "" {
		args = append(args, string(f.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if text, orderID, numeric := f.searchTerm(); text != "" {
		args = append(args, "%"+escapeLike(text)+"%")
		n := len(args)
		search := fmt.Sprintf("tracking_number ILIKE $%d OR description ILIKE $%d", n, n)
		if numeric {
			args = append(args, orderID)
			search += fmt.Sprintf(" OR order_id = $%d", len(args))
		}
		conds = append(conds, "("+search+")")
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}
	countSQL = `SELECT COUNT(*) FROM parcels` + where
	args = append(args, limit, offset)
	listSQL = fmt.Sprintf(`SELECT %s FROM parcels%s ORDER BY updated_at DESC, id LIMIT $%d OFFSET $%d`,
		parcelColumns, where, len(args)-1, len(args))
	return countSQL, listSQL, args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }
