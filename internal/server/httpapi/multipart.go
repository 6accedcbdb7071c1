package httpapi

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/dmitrijs2005/cardkeeper/internal/blobstore"
	"github.com/dmitrijs2005/cardkeeper/internal/common"
	"github.com/dmitrijs2005/cardkeeper/internal/saga"
	"github.com/dmitrijs2005/cardkeeper/internal/server/models"
)

const (
	maxGalleryItems = 10
	// formOverhead covers multipart boundaries, headers and text parts.
	formOverhead = 1 << 20
	maxTextPart  = 4 << 10
)

var errFileTooLarge = errors.New("file too large")

// formPart is one value of a requested form field: an upload or a text value.
type formPart struct {
	name   string
	upload *blobstore.Payload
	text   string
}

// readField streams the multipart body and returns the parts named field,
// in order. Other fields are skipped. Each upload is buffered in memory and
// capped at maxFile bytes.
func readField(r *http.Request, field string, maxFile int64) ([]formPart, error) {
	return readFields(r, maxFile, field)
}

// readFields is readField for several field names at once.
func readFields(r *http.Request, maxFile int64, fields ...string) ([]formPart, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, fmt.Errorf("%w: expected multipart/form-data: %v", common.ErrorValidation, err)
	}

	var parts []formPart
	for {
		p, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return parts, nil
		}
		if err != nil {
			return nil, classifyMultipartError(err)
		}

		if !slices.Contains(fields, p.FormName()) {
			if _, err := io.Copy(io.Discard, p); err != nil {
				return nil, classifyMultipartError(err)
			}
			continue
		}

		if p.FileName() == "" {
			b, err := io.ReadAll(io.LimitReader(p, maxTextPart))
			if err != nil {
				return nil, classifyMultipartError(err)
			}
			parts = append(parts, formPart{name: p.FormName(), text: string(b)})
			continue
		}

		data, err := io.ReadAll(io.LimitReader(p, maxFile+1))
		if err != nil {
			return nil, classifyMultipartError(err)
		}
		if int64(len(data)) > maxFile {
			return nil, fmt.Errorf("%w: %s exceeds %s", errFileTooLarge, p.FileName(), humanize.IBytes(uint64(maxFile)))
		}
		if len(data) == 0 {
			return nil, fmt.Errorf("%w: %s is empty", common.ErrorValidation, p.FileName())
		}
		parts = append(parts, formPart{name: p.FormName(), upload: &blobstore.Payload{
			Name:        p.FileName(),
			ContentType: p.Header.Get("Content-Type"),
			Size:        int64(len(data)),
			Body:        bytes.NewReader(data),
		}})
	}
}

func classifyMultipartError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return err
	}
	return fmt.Errorf("%w: malformed multipart body: %v", common.ErrorValidation, err)
}

// singleUpload returns the one file sent in field.
func singleUpload(r *http.Request, field string, maxFile int64) (*blobstore.Payload, error) {
	parts, err := readField(r, field, maxFile)
	if err != nil {
		return nil, err
	}
	var p *blobstore.Payload
	for _, part := range parts {
		if part.upload == nil {
			continue
		}
		if p != nil {
			return nil, fmt.Errorf("%w: %s takes a single file", common.ErrorValidation, field)
		}
		p = part.upload
	}
	if p == nil {
		return nil, fmt.Errorf("%w: %s file is required", common.ErrorValidation, field)
	}
	return p, nil
}

// Text fields of the business details form.
var businessDetailsFields = []string{"companyName", "companyAddress", "companyMobile", "companyEmail", "companyWebsite"}

func isMultipart(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "multipart/form-data"
}

// businessDetailsForm reads the company text fields and an optional logo
// file. A text companyLogo value is ignored, so a client can echo back the
// profile it was given.
func businessDetailsForm(r *http.Request, maxFile int64) (models.BusinessDetails, *blobstore.Payload, error) {
	var b models.BusinessDetails
	parts, err := readFields(r, maxFile, append(businessDetailsFields, fieldCompanyLogo)...)
	if err != nil {
		return b, nil, err
	}

	var logo *blobstore.Payload
	for _, part := range parts {
		if part.upload != nil {
			switch {
			case part.name != fieldCompanyLogo:
				return b, nil, fmt.Errorf("%w: %s takes no file", common.ErrorValidation, part.name)
			case logo != nil:
				return b, nil, fmt.Errorf("%w: %s takes a single file", common.ErrorValidation, fieldCompanyLogo)
			}
			logo = part.upload
			continue
		}
		switch part.name {
		case "companyName":
			b.CompanyName = part.text
		case "companyAddress":
			b.CompanyAddress = part.text
		case "companyMobile":
			b.CompanyMobile = part.text
		case "companyEmail":
			b.CompanyEmail = part.text
		case "companyWebsite":
			b.CompanyWebsite = part.text
		}
	}
	return b, logo, nil
}

// galleryItems turns the parts of field into saga items. File parts are new
// uploads; text parts keep an existing key, given as the key itself or as
// the delivery URL it was returned as.
func galleryItems(r *http.Request, field string, maxFile int64) ([]saga.Item, error) {
	parts, err := readField(r, field, maxFile)
	if err != nil {
		return nil, err
	}

	items := make([]saga.Item, 0, len(parts))
	for _, part := range parts {
		if part.upload != nil {
			items = append(items, saga.Upload(part.upload))
			continue
		}
		key := keyFromValue(part.text)
		if key == "" {
			continue
		}
		items = append(items, saga.Keep(key))
	}

	if len(items) > maxGalleryItems {
		return nil, fmt.Errorf("%w: at most %d %s", common.ErrorValidation, maxGalleryItems, field)
	}
	return items, nil
}

// keyFromValue accepts a bare key, a delivery URL carrying ?key=, or a
// storage URL (presigned or public) whose path ends in the key. Path-style
// URLs put the bucket in front of the key.
func keyFromValue(v string) string {
	v = strings.TrimSpace(v)
	if !strings.Contains(v, "?") && !strings.Contains(v, "://") {
		return v
	}
	u, err := url.Parse(v)
	if err != nil {
		return v
	}
	if k := u.Query().Get("key"); k != "" {
		return k
	}
	if !u.IsAbs() {
		return v
	}
	p := strings.TrimPrefix(u.Path, "/")
	if _, _, err := blobstore.ParseKey(p); err == nil {
		return p
	}
	if _, rest, ok := strings.Cut(p, "/"); ok {
		if _, _, err := blobstore.ParseKey(rest); err == nil {
			return rest
		}
	}
	return v
}
