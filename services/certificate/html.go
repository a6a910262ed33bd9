// Package certsvc renders downloadable certificate documents.
package certsvc

import (
	"bytes"
	htmltmpl "html/template"

	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core/certificate"
)

var certTmpl = htmltmpl.Must(htmltmpl.New("certificate").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>Certificate {{.Number}}</title>
  <style>
    body { font-family: Georgia, serif; text-align: center; margin: 4em; }
    .frame { border: 6px double #2c3e50; padding: 4em; }
    h1 { letter-spacing: .2em; }
    .name { font-size: 2em; margin: .5em 0; }
    .meta { color: #555; margin-top: 2em; }
  </style>
</head>
<body>
  <div class="frame">
    <h1>CERTIFICATE OF COMPLETION</h1>
    <p>This certifies that</p>
    <p class="name">{{.StudentName}}</p>
    <p>has successfully completed the module</p>
    <p><strong>{{.ModuleName}}</strong> ({{.Level}}) &mdash; {{.CategoryName}}</p>
    <p>with a final score of <strong>{{.Score}}%</strong></p>
    {{if .InstructorName}}<p class="meta">Instructor: {{.InstructorName}}</p>{{end}}
    <p class="meta">Certificate N&deg; {{.Number}} &middot; Issued {{.IssuedAt.Format "January 2, 2006"}}</p>
    <p class="meta">Verification ID: {{.PublicID}}</p>
  </div>
</body>
</html>
`))

// HTMLRenderer produces a self-contained HTML document for a certificate.
// A PDF backend can replace it without touching callers.
type HTMLRenderer struct{}

var _ certificate.Renderer = (*HTMLRenderer)(nil)

func NewHTMLRenderer() *HTMLRenderer {
	return &HTMLRenderer{}
}

func (r *HTMLRenderer) Render(cert certificate.Certificate) ([]byte, string, error) {
	var buff bytes.Buffer
	if err := certTmpl.Execute(&buff, cert); err != nil {
		return nil, "", errors.Wrap(err, "rendering certificate")
	}
	return buff.Bytes(), "text/html; charset=utf-8", nil
}
