package store

import (
	"sort"
	"time"

	"github.com/wapuda/virex/internal/domain"
)

// GlobalStats is the aggregate the /stats_global admin command renders.
type GlobalStats struct {
	Users       int
	ActiveToday int
	Free        int
	VIP         int
	Premium     int
	Banned      int
	TotalVideos int
}

func (s *Store) Globals() GlobalStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	today := s.now().Format(domain.DateFormat)
	var g GlobalStats
	g.Users = len(s.users)
	for _, u := range s.users {
		g.TotalVideos += u.TotalVideos
		if u.Banned {
			g.Banned++
		}
		if u.LastProcessTime.Format(domain.DateFormat) == today {
			g.ActiveToday++
		}
		switch u.Plan {
		case domain.PlanVIP:
			g.VIP++
		case domain.PlanPremium:
			g.Premium++
		default:
			g.Free++
		}
	}
	return g
}

// TopUsers returns up to n records ordered by total videos processed.
func (s *Store) TopUsers(n int) []domain.UserRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.UserRecord, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TotalVideos > out[j].TotalVideos })
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// BannedUsers lists banned records ordered by user id.
func (s *Store) BannedUsers() []domain.UserRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.UserRecord
	for _, u := range s.users {
		if u.Banned {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// ExpiringSoon lists paid users whose plan runs out within the next days
// and who have not been warned today. MarkExpiryWarned drops a user from
// the list until the next calendar day.
func (s *Store) ExpiringSoon(days int) []domain.UserRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := s.now()
	today := now.Format(domain.DateFormat)
	cutoff := now.Add(time.Duration(days) * 24 * time.Hour)
	var out []domain.UserRecord
	for _, u := range s.users {
		if u.Plan == domain.PlanFree || u.PlanExpires.IsZero() || u.ExpiryWarnedDate == today {
			continue
		}
		if u.PlanExpires.After(now) && u.PlanExpires.Before(cutoff) {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlanExpires.Before(out[j].PlanExpires) })
	return out
}

// MarkExpiryWarned latches today's advance warning for the user so the
// daily scan does not repeat it until tomorrow.
func (s *Store) MarkExpiryWarned(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.get(id)
	u.ExpiryWarnedDate = s.now().Format(domain.DateFormat)
	s.dirty = true
}

// ExpiredUnnotified lists users whose paid plan lapsed but who have not been
// told yet, and latches the flag so each is reported exactly once.
func (s *Store) ExpiredUnnotified() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	var out []int64
	for id, u := range s.users {
		s.refresh(u)
		if u.Plan == domain.PlanFree && !u.PlanExpires.IsZero() &&
			now.After(u.PlanExpires) && !u.ExpiryNotified {
			u.ExpiryNotified = true
			s.dirty = true
			out = append(out, id)
		}
	}
	return out
}
