package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Page is a step of the document review flow.
type Page int

const (
	Home     Page = iota // landing, document type picker
	Upload               // waiting for a file
	Review               // extraction shown, fields editable
	Feedback             // validation bundle shown
)

var pageNames = [...]string{"home", "upload", "review", "feedback"}

func (p Page) String() string {
	if p < Home || p > Feedback {
		return fmt.Sprintf("page(%d)", int(p))
	}
	return pageNames[p]
}

func (p Page) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p *Page) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, ok := ParsePage(s)
	if !ok {
		return fmt.Errorf("unknown page %q", s)
	}
	*p = v
	return nil
}

func ParsePage(s string) (Page, bool) {
	for i, n := range pageNames {
		if strings.EqualFold(strings.TrimSpace(s), n) {
			return Page(i), true
		}
	}
	return 0, false
}

// ErrIllegalTransition is returned for a move the flow does not allow.
var ErrIllegalTransition = errors.New("illegal page transition")

var next = map[Page]Page{
	Home:     Upload,
	Upload:   Review,
	Review:   Feedback,
	Feedback: Home,
}

// Next is the page that follows p.
func (p Page) Next() Page { return next[p] }

// CanTransition allows the forward step and a cancel back to Home from anywhere.
func CanTransition(from, to Page) bool {
	if to == Home {
		return true
	}
	n, ok := next[from]
	return ok && n == to
}
