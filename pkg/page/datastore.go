package page

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

const (
	// Marker identifies the managed script block inside a page's head. A
	// republish finds the block by this string and rewrites it in place.
	Marker = "BEGIN PAGEHOST DATASTORE SECTION"

	// MaxDatastoreBytes caps a datastore object. The cap is enforced by the
	// signed upload policy, not by the browser.
	MaxDatastoreBytes = 2 * 1024 * 1024
)

//go:embed datastore.js.tmpl
var datastoreTemplate string

var datastoreIDPattern = regexp.MustCompile(`const datastoreId = "(\w+)";`)

// PostPolicy is the signed HTML form grant the browser uses to write the
// datastore object. It serializes to the shape the injected script expects.
type PostPolicy struct {
	URL    string            `json:"url"`
	Fields map[string]string `json:"fields"`
}

// Datastore carries everything the injected script needs to reach its
// backing object.
type Datastore struct {
	ID     string
	GetURL string
	Post   PostPolicy
}

// ExtractID recovers the datastore id from a previously published document,
// so a republish keeps writing to the same object. ok is false when doc has
// no managed block or the block carries no recoverable id.
func ExtractID(doc []byte) (id string, ok bool) {
	head := parseHead(doc)
	if head == nil {
		return "", false
	}
	script := findDatastoreScript(head)
	if script == nil {
		return "", false
	}
	m := datastoreIDPattern.FindStringSubmatch(scriptText(script))
	if m == nil {
		return "", false
	}
	return m[1], true
}

// renderScript fills the block template and indents it to sit inside the
// document head.
func renderScript(ds Datastore) (string, error) {
	post, err := json.Marshal(ds.Post)
	if err != nil {
		return "", fmt.Errorf("page: encode post policy: %w", err)
	}

	s := datastoreTemplate
	s = strings.ReplaceAll(s, "{{ datastore_id }}", ds.ID)
	s = strings.ReplaceAll(s, "{{ presigned_get_url }}", ds.GetURL)
	s = strings.ReplaceAll(s, "{{ presigned_post_dict }}", string(post))

	s = "\n" + s
	s = strings.ReplaceAll(s, "\n", "\n    ")
	return strings.TrimRight(s, " \t\n") + "\n", nil
}
