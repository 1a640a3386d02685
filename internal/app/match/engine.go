/*
Package match, rating ledger and match computation.

The ledger is pure bookkeeping: it owns no lock and performs no I/O. The Room
serializes access to it under the room mutex, so every method here may assume
exclusive access.
*/
package match

import "time"

// MatchThreshold is the number of distinct positive ratings a title needs to
// count as matched. At 2, a single-member room can never match.
const MatchThreshold = 2

// ratingEntry is one user's current decision on one title. seq preserves
// submission order across the whole room so liker lists stay deterministic.
type ratingEntry struct {
	liked bool
	seq   int
}

// matchRecord remembers a title crossing the threshold. Records are append-only:
// a match is never revoked, even if a later re-rate drops the positive count.
type matchRecord struct {
	mediaID     string
	users       []string
	completedBy string
	matchedAt   time.Time
}

// ratingLedger holds a room's full rating history and its matched titles.
type ratingLedger struct {
	// ratings maps userName -> mediaID -> latest decision.
	ratings map[string]map[string]ratingEntry

	// matched lists titles in the order they crossed the threshold.
	matched    []matchRecord
	matchedSet map[string]struct{}

	nextSeq int
}

func newRatingLedger() *ratingLedger {
	return &ratingLedger{
		ratings:    make(map[string]map[string]ratingEntry),
		matchedSet: make(map[string]struct{}),
	}
}

// store records userName's decision on mediaID, keeping only the latest value,
// and reports whether this rating just created a new match. The returned
// record is nil when nothing new was matched.
func (l *ratingLedger) store(userName, mediaID string, liked bool) *matchRecord {
	userRatings, ok := l.ratings[userName]
	if !ok {
		userRatings = make(map[string]ratingEntry)
		l.ratings[userName] = userRatings
	}

	userRatings[mediaID] = ratingEntry{liked: liked, seq: l.nextSeq}
	l.nextSeq++

	if !liked {
		return nil
	}

	if _, already := l.matchedSet[mediaID]; already {
		return nil
	}

	likers := l.likersOf(mediaID)
	if len(likers) < MatchThreshold {
		return nil
	}

	record := matchRecord{
		mediaID:     mediaID,
		users:       likers,
		completedBy: userName,
		matchedAt:   time.Now(),
	}
	l.matched = append(l.matched, record)
	l.matchedSet[mediaID] = struct{}{}

	return &l.matched[len(l.matched)-1]
}

// likersOf returns the distinct users whose current rating of mediaID is
// positive, ordered by when they rated it.
func (l *ratingLedger) likersOf(mediaID string) []string {
	type liker struct {
		name string
		seq  int
	}

	var likers []liker
	for userName, userRatings := range l.ratings {
		if entry, ok := userRatings[mediaID]; ok && entry.liked {
			likers = append(likers, liker{name: userName, seq: entry.seq})
		}
	}

	// Insertion sort by seq; rooms are human-sized.
	for i := 1; i < len(likers); i++ {
		for j := i; j > 0 && likers[j-1].seq > likers[j].seq; j-- {
			likers[j-1], likers[j] = likers[j], likers[j-1]
		}
	}

	names := make([]string, len(likers))
	for i, lk := range likers {
		names[i] = lk.name
	}
	return names
}

// matches returns the matched records, most recently matched first. With
// includeOwn false, records whose completing rating came from userName are
// omitted; this supports broadcast-style views that skip self-triggered
// matches, while join/create replies pass true for full history.
func (l *ratingLedger) matches(userName string, includeOwn bool) []matchRecord {
	out := make([]matchRecord, 0, len(l.matched))
	for i := len(l.matched) - 1; i >= 0; i-- {
		record := l.matched[i]
		if !includeOwn && record.completedBy == userName {
			continue
		}
		out = append(out, record)
	}
	return out
}

// ratedBy returns the set of media IDs userName has rated, regardless of value.
func (l *ratingLedger) ratedBy(userName string) map[string]struct{} {
	out := make(map[string]struct{})
	for mediaID := range l.ratings[userName] {
		out[mediaID] = struct{}{}
	}
	return out
}
