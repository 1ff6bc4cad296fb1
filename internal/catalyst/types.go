package catalyst

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/alfrecampione/golden-review-backend/internal/entity"
)

// listResponse is the shape of the paginated files listing endpoint.
type listResponse struct {
	Data       []documentItem `json:"Data"`
	PagesTotal int            `json:"PagesTotal"`
}

// documentItem mirrors one listing row. The provider has shipped several
// shapes over time, so the id and timestamps come under alternate names.
type documentItem struct {
	ID         flexID `json:"Id"`
	FileID     flexID `json:"FileId"`
	DocumentID flexID `json:"DocumentId"`

	FileName    string `json:"FileName"`
	ContentType string `json:"ContentType"`
	FileSize    int64  `json:"FileSize"`
	Length      int64  `json:"Length"`

	CreatedOn   *apiTime `json:"CreatedOn"`
	CreatedDate *apiTime `json:"CreatedDate"`
	ModifiedOn  *apiTime `json:"ModifiedOn"`
	UpdatedDate *apiTime `json:"UpdatedDate"`

	Category    string          `json:"Category"`
	Description string          `json:"Description"`
	Tags        json.RawMessage `json:"Tags"`
}

// id resolves the document id from whichever field the provider used.
func (it documentItem) id() string {
	for _, candidate := range []flexID{it.ID, it.FileID, it.DocumentID} {
		if candidate != "" {
			return string(candidate)
		}
	}
	return ""
}

// toEntity converts a listing row into the domain snapshot.
func (it documentItem) toEntity() entity.RemoteDocument {
	doc := entity.RemoteDocument{
		ID:          it.id(),
		FileName:    it.FileName,
		ContentType: it.ContentType,
		Size:        it.FileSize,
		Category:    it.Category,
		Description: it.Description,
		Tags:        it.Tags,
	}
	if doc.Size == 0 {
		doc.Size = it.Length
	}
	if created := firstTime(it.CreatedOn, it.CreatedDate); created != nil {
		doc.CreatedOn = created
	}
	if modified := firstTime(it.ModifiedOn, it.UpdatedDate); modified != nil {
		doc.ModifiedOn = modified
	}
	return doc
}

func firstTime(candidates ...*apiTime) *time.Time {
	for _, c := range candidates {
		if c != nil {
			t := time.Time(*c)
			return &t
		}
	}
	return nil
}

// flexID accepts either a JSON string or number.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		*f = flexID(n.String())
		return nil
	}
	return fmt.Errorf("unsupported id value: %s", string(b))
}

// apiTime parses the handful of timestamp layouts the provider emits.
type apiTime time.Time

var apiTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func (t *apiTime) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	for _, layout := range apiTimeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			*t = apiTime(parsed)
			return nil
		}
	}
	return fmt.Errorf("unsupported timestamp value: %q", s)
}

// RawPayload is the result of the raw-bytes document endpoint. Status is
// carried through because a non-2xx response is not an error at this
// layer: the materializer falls back to the properties endpoint.
type RawPayload struct {
	Status             int
	Data               []byte
	ContentType        string
	ContentDisposition string
}

// OK reports whether the raw fetch returned a success status with content.
func (p *RawPayload) OK() bool {
	return p.Status >= 200 && p.Status < 300 && len(p.Data) > 0
}

// PropertiesDocument is the structured-properties response, which embeds
// the file content as base64 under one of several historical field names.
type PropertiesDocument struct {
	FileName      string `json:"FileName"`
	FileNameLower string `json:"filename"`
	ContentType   string `json:"ContentType"`
	ContentTypeLC string `json:"contentType"`

	File                string `json:"File"`
	FileLower           string `json:"file"`
	FileBytesBase64     string `json:"FileBytesBase64"`
	FileByteArrayBase64 string `json:"FileByteArrayBase64"`
}

// ContentBase64 returns the first populated base64 content field.
func (d *PropertiesDocument) ContentBase64() string {
	for _, candidate := range []string{d.File, d.FileLower, d.FileBytesBase64, d.FileByteArrayBase64} {
		if candidate != "" {
			return candidate
		}
	}
	return ""
}

// Name returns the reported file name, preferring the canonical casing.
func (d *PropertiesDocument) Name() string {
	if d.FileName != "" {
		return d.FileName
	}
	return d.FileNameLower
}

// Type returns the reported content type, preferring the canonical casing.
func (d *PropertiesDocument) Type() string {
	if d.ContentType != "" {
		return d.ContentType
	}
	return d.ContentTypeLC
}
