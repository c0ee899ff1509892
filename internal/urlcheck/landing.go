package urlcheck

import (
	"context"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// maxLandingBody bounds how much of a landing page gets downloaded.
const maxLandingBody = 512 * 1024

var sensitiveFieldPattern = regexp.MustCompile(`(?i)(password|pass|kata[_-]?sandi|pin|otp|rekening|credit|cvv)`)

// LandingScanner fetches the landing page of an expanded URL and looks for
// credential-harvesting forms.
type LandingScanner struct {
	client *http.Client
}

func NewLandingScanner(timeout time.Duration) *LandingScanner {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &LandingScanner{
		client: &http.Client{Timeout: timeout},
	}
}

// HasCredentialForm fetches the page and reports whether it contains a form
// collecting passwords, PINs, OTPs, or bank details.
func (ls *LandingScanner) HasCredentialForm(ctx context.Context, rawURL string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")

	resp, err := ls.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxLandingBody))
	if err != nil {
		return false, err
	}

	return scanForms(doc), nil
}

func scanForms(doc *goquery.Document) bool {
	found := false

	doc.Find("form").Each(func(i int, s *goquery.Selection) {
		if found {
			return
		}

		s.Find("input").Each(func(j int, field *goquery.Selection) {
			fieldType, _ := field.Attr("type")
			if strings.EqualFold(fieldType, "password") {
				found = true
				return
			}

			name, _ := field.Attr("name")
			if name != "" && sensitiveFieldPattern.MatchString(name) {
				found = true
			}
		})
	})

	return found
}
