package fsrs

import (
	"errors"
	"fmt"
)

// Rating is the recall quality reported for a review.
type Rating int

const (
	Again Rating = iota + 1
	Hard
	Good
	Easy
)

// ErrInvalidRating is wrapped by every error caused by a rating outside 1-4.
var ErrInvalidRating = errors.New("fsrs: invalid rating")

var ratingNames = [...]string{Again: "Again", Hard: "Hard", Good: "Good", Easy: "Easy"}

func (r Rating) IsValid() bool { return r >= Again && r <= Easy }

func (r Rating) String() string {
	if r.IsValid() {
		return ratingNames[r]
	}
	return fmt.Sprintf("Rating(%d)", int(r))
}
