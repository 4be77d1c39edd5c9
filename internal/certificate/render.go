package certificate

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/beatvault/beatvault-server/internal/domain"
)

var certificateTemplate = template.Must(template.New("certificate").Funcs(template.FuncMap{
	"tierLabel": tierLabel,
	"issued":    func(t time.Time) string { return t.UTC().Format(time.RFC3339) },
}).Parse(`<h1>BeatVault Commercial License Certificate</h1>
<p><strong>License ID:</strong> {{.LicenseID}}</p>
<h2>Beat</h2>
<ul>
<li><strong>Title:</strong> {{.AssetTitle}}</li>
<li><strong>Asset ID:</strong> {{.AssetID}}</li>
<li><strong>Producer:</strong> {{.ArtistName}}</li>
</ul>
<h2>Licensee</h2>
<ul>
<li><strong>Licensee ID:</strong> {{.LicenseeID}}</li>
<li><strong>Email:</strong> {{.LicenseeEmail}}</li>
</ul>
<h2>Terms</h2>
<ul>
<li><strong>Tier:</strong> {{tierLabel .Tier}}</li>
<li><strong>Price:</strong> ${{.Price}}</li>
<li><strong>Issued:</strong> {{issued .IssuedAt}}</li>
</ul>
<h2>Rights Granted</h2>
<ol>
{{range .RightsText}}<li>{{.}}</li>
{{end}}</ol>
<p>This certificate is proof of purchase. Keep it with your release records.</p>
`))

// A cases.Caser keeps state between calls, so each label gets a fresh one.
func tierLabel(t domain.Tier) string {
	return cases.Title(language.English).String(string(t)) + " License"
}

// Render produces the Markdown document for cert. The output depends only on cert.
func Render(cert domain.Certificate) ([]byte, error) {
	var html bytes.Buffer
	if err := certificateTemplate.Execute(&html, cert); err != nil {
		return nil, fmt.Errorf("render certificate template: %w", err)
	}

	markdown, err := htmltomarkdown.ConvertString(html.String())
	if err != nil {
		return nil, fmt.Errorf("convert certificate to markdown: %w", err)
	}

	return []byte(strings.TrimSpace(markdown) + "\n"), nil
}
