package services

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"gigBack/internal/models"
)

// BandService is the only writer of band membership, roles and splits.
// Every mutation replaces the member set as a whole and leaves the splits
// summing to exactly 100%.
type BandService struct {
	bands      BandRepository
	performers PerformerRepository
	locker     Locker
	events     Publisher
	clock      Clock
	log        Logger
	cfg        Config
}

func bandKey(id string) string { return "band:" + id }

// CreateBand registers a band profile owned by the creator, who becomes its
// sole admin with the full split.
func (s *BandService) CreateBand(ctx context.Context, name string, creator models.Performer) (models.Performer, []models.BandMember, error) {
	if name == "" {
		return models.Performer{}, nil, models.Missing("name")
	}
	if creator.ID == "" {
		return models.Performer{}, nil, models.Missing("creator_id")
	}
	band, err := s.performers.Create(ctx, models.Performer{
		ID:              uuid.NewString(),
		Kind:            models.PerformerBand,
		Name:            name,
		UserID:          creator.UserID,
		Email:           creator.Email,
		GigApplications: []string{},
		CreatedAt:       s.clock.Now(),
	})
	if err != nil {
		return band, nil, err
	}
	members := []models.BandMember{{
		BandID:      band.ID,
		PerformerID: creator.ID,
		UserID:      creator.UserID,
		Name:        creator.Name,
		Image:       creator.Image,
		Role:        models.RoleBandLeader,
		IsAdmin:     true,
		SplitBP:     models.FullSplitBP,
		JoinedAt:    s.clock.Now(),
	}}
	if err := s.bands.ReplaceMembers(ctx, band.ID, members); err != nil {
		return band, nil, err
	}
	return band, members, nil
}

// Members lists the band's members in join order.
func (s *BandService) Members(ctx context.Context, bandID string) ([]models.BandMember, error) {
	members, err := s.bands.Members(ctx, bandID)
	if err != nil {
		return nil, err
	}
	sortMembers(members)
	return members, nil
}

// AddMember inserts the performer and recomputes an even split.
func (s *BandService) AddMember(ctx context.Context, bandID, performerID string) ([]models.BandMember, error) {
	p, err := s.performers.Get(ctx, performerID)
	if err != nil {
		return nil, err
	}
	return s.update(ctx, bandID, func(members []models.BandMember) ([]models.BandMember, error) {
		for _, m := range members {
			if m.PerformerID == performerID {
				return nil, models.ErrAlreadyMember
			}
		}
		members = append(members, models.BandMember{
			BandID:      bandID,
			PerformerID: p.ID,
			UserID:      p.UserID,
			Name:        p.Name,
			Image:       p.Image,
			Role:        models.RoleBandMember,
			JoinedAt:    s.clock.Now(),
		})
		for i, v := range evenSplits(len(members)) {
			members[i].SplitBP = v
		}
		return members, nil
	})
}

// RemoveMember deletes the performer and spreads their split over the rest.
// The admin cannot be removed; transfer the role first.
func (s *BandService) RemoveMember(ctx context.Context, bandID, performerID string) ([]models.BandMember, error) {
	return s.update(ctx, bandID, func(members []models.BandMember) ([]models.BandMember, error) {
		idx := -1
		for i, m := range members {
			if m.PerformerID == performerID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, models.ErrMemberNotFound
		}
		if members[idx].IsAdmin {
			return nil, models.ErrLastAdmin
		}
		removed := members[idx].SplitBP
		rest := append(members[:idx:idx], members[idx+1:]...)
		current := make([]int64, len(rest))
		for i, m := range rest {
			current[i] = m.SplitBP
		}
		for i, v := range redistribute(current, removed) {
			rest[i].SplitBP = v
		}
		return rest, nil
	})
}

// SetSplits overrides every member's split. Values are percentages with at
// most two decimals and must cover exactly the current members.
func (s *BandService) SetSplits(ctx context.Context, bandID string, splits map[string]float64) ([]models.BandMember, error) {
	return s.update(ctx, bandID, func(members []models.BandMember) ([]models.BandMember, error) {
		if len(splits) != len(members) {
			return nil, models.ErrInvalidSplit
		}
		for i := range members {
			v, ok := splits[members[i].PerformerID]
			if !ok {
				return nil, models.ErrInvalidSplit
			}
			bp, err := toBasisPoints(v)
			if err != nil {
				return nil, err
			}
			members[i].SplitBP = bp
		}
		return members, nil
	})
}

// TransferAdmin applies role updates and hands the admin flag to newAdminID
// when it is set. Exactly one admin remains afterwards.
func (s *BandService) TransferAdmin(ctx context.Context, bandID, newAdminID string, updates map[string]models.RoleUpdate) ([]models.BandMember, error) {
	return s.update(ctx, bandID, func(members []models.BandMember) ([]models.BandMember, error) {
		index := make(map[string]int, len(members))
		for i, m := range members {
			index[m.PerformerID] = i
		}
		if newAdminID != "" {
			if _, ok := index[newAdminID]; !ok {
				return nil, models.ErrMemberNotFound
			}
		}
		for id := range updates {
			if _, ok := index[id]; !ok {
				return nil, models.ErrMemberNotFound
			}
		}

		hadAdmin := countAdmins(members) > 0
		var granted []string
		for id, u := range updates {
			m := &members[index[id]]
			if u.Role != nil {
				m.Role = *u.Role
			}
			if u.IsAdmin != nil {
				if *u.IsAdmin && !m.IsAdmin {
					granted = append(granted, id)
				}
				m.IsAdmin = *u.IsAdmin
			}
		}

		target := newAdminID
		if target == "" {
			switch len(granted) {
			case 0:
			case 1:
				target = granted[0]
			default:
				return nil, models.ErrNoAdminAssigned
			}
		}
		if target != "" {
			for i := range members {
				members[i].IsAdmin = members[i].PerformerID == target
			}
		}

		switch countAdmins(members) {
		case 1:
			return members, nil
		case 0:
			if hadAdmin {
				return nil, models.ErrLastAdmin
			}
			return nil, models.ErrNoAdminAssigned
		default:
			return nil, models.ErrNoAdminAssigned
		}
	})
}

// CreateInvite issues an invite that expires after the configured TTL.
func (s *BandService) CreateInvite(ctx context.Context, bandID, invitedBy, email string) (models.BandInvite, error) {
	if invitedBy == "" {
		return models.BandInvite{}, models.Missing("invited_by")
	}
	if _, err := s.performers.Get(ctx, bandID); err != nil {
		return models.BandInvite{}, err
	}
	now := s.clock.Now()
	return s.bands.CreateInvite(ctx, models.BandInvite{
		ID:           uuid.NewString(),
		BandID:       bandID,
		InvitedBy:    invitedBy,
		InvitedEmail: email,
		Status:       models.InvitePending,
		CreatedAt:    now,
		ExpiresAt:    now.Add(s.cfg.InviteTTL),
	})
}

// AcceptInvite joins the performer through a pending, unexpired invite.
func (s *BandService) AcceptInvite(ctx context.Context, inviteID, performerID string) ([]models.BandMember, error) {
	inv, err := s.bands.GetInvite(ctx, inviteID)
	if err != nil {
		return nil, err
	}
	if inv.Status != models.InvitePending {
		return nil, models.ErrInviteUsed
	}
	if !s.clock.Now().Before(inv.ExpiresAt) {
		return nil, models.ErrInviteExpired
	}
	members, err := s.AddMember(ctx, inv.BandID, performerID)
	if err != nil {
		return nil, err
	}
	if err := s.bands.MarkInviteAccepted(ctx, inv.ID); err != nil {
		s.log.Errorf("mark invite %s accepted: %v", inv.ID, err)
	}
	return members, nil
}

// SetJoinPassword stores a bcrypt hash of the band's join password.
func (s *BandService) SetJoinPassword(ctx context.Context, bandID, password string) error {
	if password == "" {
		return models.Missing("password")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.performers.SetJoinPassword(ctx, bandID, string(hash))
}

// JoinWithPassword joins the performer when the password matches.
func (s *BandService) JoinWithPassword(ctx context.Context, bandID, performerID, password string) ([]models.BandMember, error) {
	band, err := s.performers.Get(ctx, bandID)
	if err != nil {
		return nil, err
	}
	if band.JoinPasswordHash == "" {
		return nil, models.ErrInvalidPassword
	}
	if err := bcrypt.CompareHashAndPassword([]byte(band.JoinPasswordHash), []byte(password)); err != nil {
		return nil, models.ErrInvalidPassword
	}
	return s.AddMember(ctx, bandID, performerID)
}

// DeleteBand removes the band profile and its members.
func (s *BandService) DeleteBand(ctx context.Context, bandID string) error {
	unlock, err := s.locker.Lock(ctx, bandKey(bandID))
	if err != nil {
		return models.External("lock band", err)
	}
	defer unlock()
	if err := s.bands.DeleteBand(ctx, bandID); err != nil {
		return err
	}
	return s.performers.Delete(ctx, bandID)
}

// update loads the members under the band lock, applies fn and writes the
// result only if splits and admin invariants still hold.
func (s *BandService) update(ctx context.Context, bandID string, fn func([]models.BandMember) ([]models.BandMember, error)) ([]models.BandMember, error) {
	unlock, err := s.locker.Lock(ctx, bandKey(bandID))
	if err != nil {
		return nil, models.External("lock band", err)
	}
	defer unlock()

	members, err := s.bands.Members(ctx, bandID)
	if err != nil {
		return nil, err
	}
	sortMembers(members)
	next, err := fn(members)
	if err != nil {
		return nil, err
	}
	if err := checkSplits(next); err != nil {
		return nil, err
	}
	if len(next) > 0 && countAdmins(next) != 1 {
		return nil, models.ErrNoAdminAssigned
	}
	if err := s.bands.ReplaceMembers(ctx, bandID, next); err != nil {
		return nil, err
	}
	s.events.Publish(ctx, models.Event{
		Type:      models.EventBandChanged,
		SubjectID: bandID,
		At:        s.clock.Now(),
	})
	return next, nil
}

func sortMembers(members []models.BandMember) {
	sort.SliceStable(members, func(i, j int) bool {
		return members[i].JoinedAt.Before(members[j].JoinedAt)
	})
}
