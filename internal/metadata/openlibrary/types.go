package openlibrary

import "encoding/json"

const typeRedirect = "/type/redirect"

type rawRef struct {
	Key string `json:"key"`
}

// textValue decodes fields Open Library stores either as a bare string or as
// {"type": "/type/text", "value": "..."}.
type textValue string

func (t *textValue) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = textValue(s)
		return nil
	}
	var obj struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	*t = textValue(obj.Value)
	return nil
}

type rawWork struct {
	Key              string          `json:"key"`
	Type             rawRef          `json:"type"`
	Location         string          `json:"location"`
	Title            string          `json:"title"`
	Subtitle         string          `json:"subtitle"`
	Description      textValue       `json:"description"`
	Subjects         []string        `json:"subjects"`
	Authors          []rawAuthorRole `json:"authors"`
	FirstPublishDate string          `json:"first_publish_date"`
}

// rawAuthorRole covers both {"author": {"key": ...}} and the older
// {"key": ...} shape found on legacy records.
type rawAuthorRole struct {
	Author rawRef `json:"author"`
	Key    string `json:"key"`
}

func (r rawAuthorRole) key() string {
	if r.Author.Key != "" {
		return r.Author.Key
	}
	return r.Key
}

type rawAuthor struct {
	Key          string    `json:"key"`
	Type         rawRef    `json:"type"`
	Location     string    `json:"location"`
	Name         string    `json:"name"`
	PersonalName string    `json:"personal_name"`
	Bio          textValue `json:"bio"`
	BirthDate    string    `json:"birth_date"`
	DeathDate    string    `json:"death_date"`
}

type rawSearchResponse struct {
	NumFound int            `json:"numFound"`
	Docs     []rawSearchDoc `json:"docs"`
}

type rawSearchDoc struct {
	Key              string   `json:"key"`
	Title            string   `json:"title"`
	AuthorName       []string `json:"author_name"`
	FirstPublishYear int      `json:"first_publish_year"`
}
