package repositories

import (
	"context"
	"database/sql"

	"gigBack/internal/models"
)

var errVenueNotFound = &models.Error{Kind: models.ErrNotFound, Code: "VenueNotFound", Message: "venue not found"}

// maxListRetries bounds the compare-and-set loop on JSON list columns.
const maxListRetries = 5

type VenueRepository struct {
	db *sql.DB
}

func NewVenueRepository(db *sql.DB) *VenueRepository {
	return &VenueRepository{db: db}
}

// Create stores a venue profile. Profiles are owned by the account service;
// this exists for seeding and tests.
func (r *VenueRepository) Create(ctx context.Context, v models.Venue) (models.Venue, error) {
	if v.GigIDs == nil {
		v.GigIDs = []string{}
	}
	gigs, err := encodeJSON(v.GigIDs)
	if err != nil {
		return v, err
	}
	members, err := encodeJSON(v.Members)
	if err != nil {
		return v, err
	}
	_, err = r.db.ExecContext(ctx, `INSERT INTO venues (id, name, image, owner_id, email, gig_ids, members, reviews_total, reviews_positive)
		VALUES (?,?,?,?,?,?,?,?,?)`, v.ID, v.Name, v.Image, v.OwnerID, v.Email, gigs, members, v.ReviewsTotal, v.ReviewsPositive)
	return v, mapWriteErr(err, &models.Error{Kind: models.ErrConflict, Code: "VenueExists", Message: "venue already exists"})
}

func (r *VenueRepository) Get(ctx context.Context, id string) (models.Venue, error) {
	var (
		v       models.Venue
		gigs    sql.NullString
		members sql.NullString
	)
	err := r.db.QueryRowContext(ctx, `SELECT id, name, image, owner_id, email, gig_ids, members, reviews_total, reviews_positive
		FROM venues WHERE id = ?`, id).Scan(&v.ID, &v.Name, &v.Image, &v.OwnerID, &v.Email, &gigs, &members, &v.ReviewsTotal, &v.ReviewsPositive)
	if err != nil {
		return models.Venue{}, mapNoRows(err, errVenueNotFound)
	}
	v.GigIDs = []string{}
	if err := decodeJSON(gigs, &v.GigIDs); err != nil {
		return models.Venue{}, err
	}
	if err := decodeJSON(members, &v.Members); err != nil {
		return models.Venue{}, err
	}
	return v, nil
}

func (r *VenueRepository) AddGig(ctx context.Context, venueID, engagementID string) error {
	return editList(ctx, r.db, "venues", "gig_ids", venueID, errVenueNotFound, func(ids []string) []string {
		for _, id := range ids {
			if id == engagementID {
				return ids
			}
		}
		return append(ids, engagementID)
	})
}

func (r *VenueRepository) RemoveGig(ctx context.Context, venueID, engagementID string) error {
	return editList(ctx, r.db, "venues", "gig_ids", venueID, errVenueNotFound, func(ids []string) []string {
		return without(ids, engagementID)
	})
}

func (r *VenueRepository) AddReview(ctx context.Context, venueID string, positive bool) error {
	return bumpReviews(ctx, r.db, "venues", venueID, positive, errVenueNotFound)
}

// editList rewrites a JSON string list column with a compare-and-set on its
// previous value, retrying when another writer got there first.
func editList(ctx context.Context, db *sql.DB, table, column, id string, notFound error, fn func([]string) []string) error {
	for attempt := 0; attempt < maxListRetries; attempt++ {
		var raw sql.NullString
		err := db.QueryRowContext(ctx, `SELECT `+column+` FROM `+table+` WHERE id = ?`, id).Scan(&raw)
		if err != nil {
			return mapNoRows(err, notFound)
		}
		list := []string{}
		if err := decodeJSON(raw, &list); err != nil {
			return err
		}
		next, err := encodeJSON(fn(list))
		if err != nil {
			return err
		}
		if raw.Valid && next == raw.String {
			return nil
		}
		var res sql.Result
		if raw.Valid {
			res, err = db.ExecContext(ctx, `UPDATE `+table+` SET `+column+` = ? WHERE id = ? AND `+column+` = ?`, next, id, raw.String)
		} else {
			res, err = db.ExecContext(ctx, `UPDATE `+table+` SET `+column+` = ? WHERE id = ? AND `+column+` IS NULL`, next, id)
		}
		if err != nil {
			return err
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if rows > 0 {
			return nil
		}
	}
	return models.ErrVersionConflict
}

func bumpReviews(ctx context.Context, db *sql.DB, table, id string, positive bool, notFound error) error {
	inc := 0
	if positive {
		inc = 1
	}
	res, err := db.ExecContext(ctx, `UPDATE `+table+` SET reviews_total = reviews_total + 1, reviews_positive = reviews_positive + ? WHERE id = ?`, inc, id)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return notFound
	}
	return nil
}

func without(list []string, v string) []string {
	out := list[:0:0]
	for _, s := range list {
		if s != v {
			out = append(out, s)
		}
	}
	return out
}
