// Package locator turns a document location into the pull request it shows.
package locator

import (
	"regexp"
	"strconv"
)

// pullPath matches /{owner}/{repo}/pull/{number}, optionally followed by a
// sub-view such as /files or /commits.
var pullPath = regexp.MustCompile(`^/([^/]+)/([^/]+)/pull/(\d+)(?:/|$)`)

// Identity names a single pull request. The zero value is "no identity".
type Identity struct {
	Owner  string `json:"owner"`
	Repo   string `json:"repo"`
	Number string `json:"number"`
}

// Locate parses path. ok is false for anything that is not a pull request view.
func Locate(path string) (id Identity, ok bool) {
	m := pullPath.FindStringSubmatch(path)
	if m == nil {
		return Identity{}, false
	}
	if _, err := strconv.ParseUint(m[3], 10, 64); err != nil {
		return Identity{}, false
	}
	return Identity{Owner: m[1], Repo: m[2], Number: m[3]}, true
}

// Equal reports whether both identities name the same view.
func (id Identity) Equal(o Identity) bool { return id == o }

// IsZero reports whether id is the "no identity" value.
func (id Identity) IsZero() bool { return id == Identity{} }

// PullNumber returns the numeric pull request number.
func (id Identity) PullNumber() (uint64, error) {
	return strconv.ParseUint(id.Number, 10, 64)
}

// Path renders the canonical pull request path.
func (id Identity) Path() string {
	return "/" + id.Owner + "/" + id.Repo + "/pull/" + id.Number
}

func (id Identity) String() string {
	return id.Owner + "/" + id.Repo + "#" + id.Number
}
